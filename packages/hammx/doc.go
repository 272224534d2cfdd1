// Package hammx is a small REST convenience layer over net/http.
//
// A Client is a session bound to a base URL. Resources are built by chaining
// path segments and are sent with one of the verb methods:
//
//	c, err := hammx.New("https://api.example.com", hammx.WithBearerToken(token))
//	if err != nil { ... }
//	defer c.Close()
//
//	resp, err := c.Path("users", 42, "repos").Get(ctx, hammx.WithQuery("page", "2"))
//
// The session keeps default headers, query parameters and credentials for
// every request. Cross-cutting behavior (logging, retries, caching, rate
// limiting) is added with Middleware; see the middleware and cache packages.
package hammx
