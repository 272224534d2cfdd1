package output

import (
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/abdul-hamid-achik/hammx/packages/hammx"
)

// JSONOutput is one request/response exchange.
type JSONOutput struct {
	Request  JSONRequest  `json:"request"`
	Response JSONResponse `json:"response"`
	Schema   *JSONSchema  `json:"schema,omitempty"`
}

type JSONRequest struct {
	Method string `json:"method"`
	URL    string `json:"url"`
}

type JSONResponse struct {
	StatusCode int               `json:"statusCode"`
	Status     string            `json:"status"`
	Headers    map[string]string `json:"headers,omitempty"`
	Duration   int64             `json:"durationMs"`
	// Body holds the decoded JSON body, or the text for other bodies.
	Body any `json:"body,omitempty"`
}

type JSONSchema struct {
	Valid      bool     `json:"valid"`
	Violations []string `json:"violations,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// NewJSONOutput builds the document for resp. schemaErr is the result of
// Response.ValidateSchema; pass checked=false when no schema was used.
func NewJSONOutput(resp *hammx.Response, checked bool, schemaErr error) JSONOutput {
	out := JSONOutput{
		Request: JSONRequest{Method: resp.Method, URL: resp.URL},
		Response: JSONResponse{
			StatusCode: resp.StatusCode,
			Status:     statusText(resp),
			Headers:    flattenHeaders(resp),
			Duration:   resp.DurationMs(),
		},
	}

	if len(resp.Body) > 0 {
		var decoded any
		if resp.IsJSON() && json.Unmarshal(resp.Body, &decoded) == nil {
			out.Response.Body = decoded
		} else {
			out.Response.Body = resp.BodyString()
		}
	}

	if checked {
		out.Schema = &JSONSchema{Valid: schemaErr == nil}
		if schemaErr != nil {
			var v *hammx.SchemaError
			if errors.As(schemaErr, &v) {
				out.Schema.Violations = v.Violations
			} else {
				out.Schema.Error = schemaErr.Error()
			}
		}
	}
	return out
}

func flattenHeaders(resp *hammx.Response) map[string]string {
	if len(resp.Headers) == 0 {
		return nil
	}
	headers := make(map[string]string, len(resp.Headers))
	for k, v := range resp.Headers {
		headers[k] = strings.Join(v, ", ")
	}
	return headers
}

// WriteJSON encodes v indented, the way every JSON report is written.
func WriteJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
