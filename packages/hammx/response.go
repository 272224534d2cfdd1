package hammx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/xeipuuv/gojsonschema"
)

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Status     string
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
	Method     string
	URL        string
}

func (r *Response) BodyString() string {
	return string(r.Body)
}

// BodyJSON decodes the body into generic Go values.
func (r *Response) BodyJSON() (any, error) {
	var result any
	if err := json.Unmarshal(r.Body, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// JSON decodes the body into v.
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", r.Method, r.URL, err)
	}
	return nil
}

// Get looks up a gjson path in the body, e.g. "data.0.name".
func (r *Response) Get(path string) gjson.Result {
	return gjson.GetBytes(r.Body, path)
}

func (r *Response) Header(key string) string {
	return r.Headers.Get(key)
}

func (r *Response) ContentType() string {
	return r.Header("Content-Type")
}

func (r *Response) IsJSON() bool {
	ct := r.ContentType()
	return strings.Contains(ct, "application/json") || strings.Contains(ct, "+json")
}

func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func (r *Response) IsRedirect() bool {
	return r.StatusCode >= 300 && r.StatusCode < 400
}

func (r *Response) IsClientError() bool {
	return r.StatusCode >= 400 && r.StatusCode < 500
}

func (r *Response) IsServerError() bool {
	return r.StatusCode >= 500
}

func (r *Response) DurationMs() int64 {
	return r.Duration.Milliseconds()
}

// Err returns a *StatusError for 4xx and 5xx responses and nil otherwise.
func (r *Response) Err() error {
	if r.StatusCode < 400 {
		return nil
	}
	return &StatusError{
		Method:     r.Method,
		URL:        r.URL,
		StatusCode: r.StatusCode,
		Status:     r.Status,
		Body:       r.Body,
	}
}

// SchemaError lists the JSON Schema violations found in a response body.
type SchemaError struct {
	Violations []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema validation failed: %s", strings.Join(e.Violations, "; "))
}

// ValidateSchema checks the body against a JSON Schema document.
func (r *Response) ValidateSchema(schema []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schema),
		gojsonschema.NewBytesLoader(r.Body),
	)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if result.Valid() {
		return nil
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		violations = append(violations, desc.String())
	}
	return &SchemaError{Violations: violations}
}
