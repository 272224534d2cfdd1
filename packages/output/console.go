package output

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/abdul-hamid-achik/hammx/packages/hammx"
	"github.com/fatih/color"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
)

// ErrNoMatch is returned when a select path finds nothing in the body.
var ErrNoMatch = errors.New("select path matched nothing")

type Printer struct {
	writer     io.Writer
	noColor    bool
	headers    bool
	raw        bool
	selectPath string

	green  *color.Color
	yellow *color.Color
	red    *color.Color
	cyan   *color.Color
	bold   *color.Color
}

type Option func(*Printer)

func WithWriter(w io.Writer) Option {
	return func(p *Printer) {
		p.writer = w
	}
}

func WithNoColor(nc bool) Option {
	return func(p *Printer) {
		p.noColor = nc
	}
}

// WithHeaders prints the response headers after the status line.
func WithHeaders(include bool) Option {
	return func(p *Printer) {
		p.headers = include
	}
}

// WithRaw prints only the body, unformatted. Selected strings lose their quotes.
func WithRaw(raw bool) Option {
	return func(p *Printer) {
		p.raw = raw
	}
}

// WithSelect narrows JSON bodies to a gjson path such as "data.#.id".
func WithSelect(path string) Option {
	return func(p *Printer) {
		p.selectPath = path
	}
}

func NewPrinter(opts ...Option) *Printer {
	p := &Printer{writer: os.Stdout}
	for _, opt := range opts {
		opt(p)
	}

	p.green = p.color(color.FgGreen)
	p.yellow = p.color(color.FgYellow)
	p.red = p.color(color.FgRed)
	p.cyan = p.color(color.FgCyan)
	p.bold = p.color(color.Bold)
	return p
}

func (p *Printer) color(attr color.Attribute) *color.Color {
	c := color.New(attr)
	if p.noColor {
		c.DisableColor()
	}
	return c
}

func (p *Printer) Response(resp *hammx.Response) error {
	body, isJSON, err := p.body(resp)
	if err != nil {
		return err
	}

	if p.raw {
		p.writeBody(body)
		return nil
	}

	fmt.Fprintf(p.writer, "%s %s\n",
		p.statusColor(resp.StatusCode).Sprint(statusText(resp)),
		p.cyan.Sprintf("(%dms)", resp.DurationMs()))

	if p.headers {
		p.printHeaders(resp.Headers)
	}

	if len(body) == 0 {
		return nil
	}
	fmt.Fprintln(p.writer)

	if isJSON {
		body = pretty.Pretty(body)
		if !p.noColor && !color.NoColor {
			body = pretty.Color(body, nil)
		}
	}
	p.writeBody(body)
	return nil
}

func (p *Printer) body(resp *hammx.Response) ([]byte, bool, error) {
	isJSON := resp.IsJSON() && gjson.ValidBytes(resp.Body)
	if p.selectPath == "" {
		return resp.Body, isJSON, nil
	}

	result := gjson.GetBytes(resp.Body, p.selectPath)
	if !result.Exists() {
		return nil, false, fmt.Errorf("%w: %s", ErrNoMatch, p.selectPath)
	}
	if p.raw && result.Type == gjson.String {
		return []byte(result.String()), false, nil
	}
	return []byte(result.Raw), true, nil
}

func (p *Printer) writeBody(body []byte) {
	if len(body) == 0 {
		return
	}
	_, _ = p.writer.Write(body)
	if body[len(body)-1] != '\n' {
		fmt.Fprintln(p.writer)
	}
}

func (p *Printer) printHeaders(h http.Header) {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		for _, v := range h[k] {
			fmt.Fprintf(p.writer, "%s: %s\n", p.bold.Sprint(k), v)
		}
	}
}

func (p *Printer) statusColor(code int) *color.Color {
	switch {
	case code >= 500:
		return p.red
	case code >= 400:
		return p.yellow
	case code >= 300:
		return p.cyan
	default:
		return p.green
	}
}

func statusText(resp *hammx.Response) string {
	if resp.Status != "" {
		return resp.Status
	}
	return strings.TrimSpace(fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode)))
}

// Schema reports the outcome of a schema check done with Response.ValidateSchema.
func (p *Printer) Schema(err error) {
	var schemaErr *hammx.SchemaError
	switch {
	case err == nil:
		fmt.Fprintf(p.writer, "%s valid\n", p.green.Sprint("Schema:"))
	case errors.As(err, &schemaErr):
		fmt.Fprintf(p.writer, "%s %d violation(s)\n", p.red.Sprint("Schema:"), len(schemaErr.Violations))
		for _, v := range schemaErr.Violations {
			fmt.Fprintf(p.writer, "  %s %s\n", p.red.Sprint("→"), v)
		}
	default:
		p.Error(err)
	}
}

func (p *Printer) Error(err error) {
	fmt.Fprintf(p.writer, "%s %v\n", p.red.Sprint("Error:"), err)
}

func (p *Printer) Info(format string, args ...any) {
	fmt.Fprintf(p.writer, format+"\n", args...)
}

func (p *Printer) Header(version string) {
	fmt.Fprintf(p.writer, "%s %s\n", p.bold.Sprint("hammx"), version)
}
