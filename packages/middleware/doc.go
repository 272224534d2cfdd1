// Package middleware provides hammx.Middleware implementations for logging,
// default headers, retries, rate limiting, request ids and digest auth.
//
// Middlewares run in the order they are installed:
//
//	client, err := hammx.New(baseURL, hammx.WithMiddleware(
//		middleware.Logging(logger),
//		middleware.Retry(middleware.DefaultRetryConfig()),
//		middleware.DefaultHeaders(map[string]string{"X-API-Version": "2"}),
//	))
package middleware
