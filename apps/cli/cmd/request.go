package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/abdul-hamid-achik/hammx/packages/hammx"
	"github.com/abdul-hamid-achik/hammx/packages/output"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// Flags of the one-shot request.
var (
	pathFlag        string
	queryFlags      []string
	headerFlags     []string
	dataFlag        string
	authFlag        string
	interactiveFlag bool
	appendSlashFlag bool
	retryFlag       int
	rateLimitFlag   float64
	cacheFlag       string
	cacheTTLFlag    string
	userAgentFlag   string
	selectFlag      string
	schemaFlag      string
	rawFlag         bool
	includeFlag     bool
	failFlag        bool
	outputFlag      string
)

func init() {
	f := rootCmd.Flags()
	f.StringVarP(&pathFlag, "path", "p", "", "Path to append to the URL, e.g. users/42")
	f.StringArrayVarP(&queryFlags, "params", "q", nil, "Query parameter as key=value (repeatable)")
	f.StringArrayVarP(&headerFlags, "headers", "H", nil, "Header as key=value or 'Key: value' (repeatable)")
	f.StringVarP(&dataFlag, "data", "d", "", "JSON body, or @file to read it from a file")
	f.StringVarP(&authFlag, "auth", "a", getEnvString("HAMMX_AUTH", ""), "user:pass, a bearer token, 'oauth2 GRANT URL ID SECRET ...' or 'aws KEY SECRET REGION SERVICE' (env: HAMMX_AUTH)")
	f.BoolVarP(&interactiveFlag, "interactive", "i", false, "Start the interactive shell")

	f.BoolVar(&appendSlashFlag, "append-slash", getEnvBool("HAMMX_APPEND_SLASH", false), "Add a trailing slash to the URL (env: HAMMX_APPEND_SLASH)")
	f.IntVar(&retryFlag, "retry", getEnvInt("HAMMX_RETRY", 0), "Retries on 500/502/503/504 and transport errors (env: HAMMX_RETRY)")
	f.Float64Var(&rateLimitFlag, "rate-limit", getEnvFloat("HAMMX_RATE_LIMIT", 0), "Maximum requests per second (env: HAMMX_RATE_LIMIT)")
	f.StringVar(&cacheFlag, "cache", getEnvString("HAMMX_CACHE", ""), "Cache GET responses: memory, file[:DIR] or sqlite[:PATH] (env: HAMMX_CACHE)")
	f.StringVar(&cacheTTLFlag, "cache-ttl", getEnvString("HAMMX_CACHE_TTL", "60s"), "Lifetime of cached responses, in whole seconds (env: HAMMX_CACHE_TTL)")
	f.StringVar(&userAgentFlag, "user-agent", getEnvString("HAMMX_USER_AGENT", ""), "User-Agent header (env: HAMMX_USER_AGENT)")

	f.StringVarP(&selectFlag, "select", "s", "", "Print only this gjson path of the body, e.g. data.#.id")
	f.StringVar(&schemaFlag, "schema", "", "Validate the body against this JSON Schema file")
	f.BoolVar(&rawFlag, "raw", false, "Print only the body, unformatted")
	f.BoolVar(&includeFlag, "include", false, "Print response headers")
	f.BoolVarP(&failFlag, "fail", "f", getEnvBool("HAMMX_FAIL", false), "Exit 1 on 4xx and 5xx responses (env: HAMMX_FAIL)")
	f.StringVarP(&outputFlag, "output", "o", getEnvString("HAMMX_OUTPUT", "console"), "Output format: console, json (env: HAMMX_OUTPUT)")
}

// requestSpec is one request as described on the command line.
type requestSpec struct {
	Method  string
	Path    string
	Query   []string
	Headers []string
	Data    string
	Auth    string

	Select  string
	Schema  string
	Raw     bool
	Include bool
	Fail    bool
	Output  string
	NoColor bool
}

func requestCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if interactiveFlag {
		base := ""
		if len(args) > 0 {
			base = args[len(args)-1]
		}
		return runShell(ctx, cfg, base)
	}

	method, rawURL, err := splitArgs(args)
	if err != nil {
		return err
	}
	if method == "" && rawURL == "" && cfg.BaseURL == "" {
		_ = cmd.Help()
		return usageError(errors.New("a URL is required"))
	}
	base, err := resolveBase(rawURL, cfg)
	if err != nil {
		return err
	}

	client, cleanup, err := newClient(base, cfg, log.Logger)
	if err != nil {
		return err
	}
	defer cleanup()

	return runRequest(ctx, client.Resource, requestSpec{
		Method:  method,
		Path:    pathFlag,
		Query:   queryFlags,
		Headers: headerFlags,
		Data:    dataFlag,
		Auth:    authFlag,
		Select:  selectFlag,
		Schema:  schemaFlag,
		Raw:     rawFlag,
		Include: includeFlag,
		Fail:    failFlag,
		Output:  outputFlag,
		NoColor: cfg.GetNoColor(),
	}, cmd.OutOrStdout())
}

var knownMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "PATCH": true,
	"DELETE": true, "HEAD": true, "OPTIONS": true,
}

// splitArgs reads "METHOD URL", "URL", "METHOD" (URL from config) or nothing.
// The method defaults to GET.
func splitArgs(args []string) (method, rawURL string, err error) {
	switch len(args) {
	case 0:
		return "", "", nil
	case 1:
		if m := strings.ToUpper(args[0]); knownMethods[m] {
			return m, "", nil
		}
		return "GET", args[0], nil
	default:
		m := strings.ToUpper(args[0])
		if !knownMethods[m] {
			return "", "", usageError(fmt.Errorf("unknown method %q (use GET, POST, PUT, PATCH, DELETE, HEAD or OPTIONS)", args[0]))
		}
		return m, args[1], nil
	}
}

func runRequest(ctx context.Context, res *hammx.Resource, spec requestSpec, w io.Writer) error {
	if spec.Method == "" {
		spec.Method = "GET"
	}
	if spec.Output == "" {
		spec.Output = "console"
	}
	if spec.Output != "console" && spec.Output != "json" {
		return usageError(fmt.Errorf("unknown output format %q (use console or json)", spec.Output))
	}

	opts, err := requestOptions(spec)
	if err != nil {
		return err
	}

	var schema []byte
	if spec.Schema != "" {
		if schema, err = os.ReadFile(spec.Schema); err != nil {
			return usageError(fmt.Errorf("reading schema: %w", err))
		}
	}

	resp, err := res.Do(ctx, spec.Method, opts...)
	if err != nil {
		return withCode(ExitNetworkError, err)
	}

	var schemaErr error
	if schema != nil {
		schemaErr = resp.ValidateSchema(schema)
	}

	if spec.Output == "json" {
		if err := output.WriteJSON(w, output.NewJSONOutput(resp, schema != nil, schemaErr)); err != nil {
			return err
		}
	} else {
		printer := output.NewPrinter(
			output.WithWriter(w),
			output.WithNoColor(spec.NoColor),
			output.WithHeaders(spec.Include),
			output.WithRaw(spec.Raw),
			output.WithSelect(spec.Select),
		)
		if err := printer.Response(resp); err != nil {
			return withCode(ExitFailure, err)
		}
		if schema != nil {
			printer.Schema(schemaErr)
		}
	}

	if schemaErr != nil {
		var violations *hammx.SchemaError
		if errors.As(schemaErr, &violations) {
			return &ExitError{Code: ExitFailure, Err: schemaErr, Quiet: true}
		}
		return usageError(schemaErr)
	}

	if spec.Fail {
		return withCode(ExitFailure, resp.Err())
	}
	return nil
}

func requestOptions(spec requestSpec) ([]hammx.RequestOption, error) {
	var opts []hammx.RequestOption

	if segments := splitPath(spec.Path); len(segments) > 0 {
		opts = append(opts, hammx.WithPath(segments...))
	}

	for _, q := range spec.Query {
		k, v, err := parsePair(q)
		if err != nil {
			return nil, usageError(fmt.Errorf("invalid query parameter: %w", err))
		}
		opts = append(opts, hammx.WithQuery(k, v))
	}

	for _, h := range spec.Headers {
		k, v, err := parsePair(h)
		if err != nil {
			return nil, usageError(fmt.Errorf("invalid header: %w", err))
		}
		opts = append(opts, hammx.WithRequestHeader(k, v))
	}

	if spec.Data != "" {
		data, err := readData(spec.Data)
		if err != nil {
			return nil, err
		}
		// A fresh reader per request, so the options can be sent repeatedly.
		opts = append(opts, func(r *hammx.Request) {
			hammx.WithBody(strings.NewReader(data), "application/json")(r)
		})
	}

	a, err := parseAuth(spec.Auth)
	if err != nil {
		return nil, usageError(fmt.Errorf("invalid auth: %w", err))
	}
	if a != nil {
		opts = append(opts, hammx.WithRequestAuth(a))
	}
	return opts, nil
}

// readData returns the JSON body given inline or as @file.
func readData(data string) (string, error) {
	if name, ok := strings.CutPrefix(data, "@"); ok {
		b, err := os.ReadFile(name)
		if err != nil {
			return "", usageError(fmt.Errorf("reading data file: %w", err))
		}
		data = string(b)
	}
	if !json.Valid([]byte(data)) {
		return "", usageError(fmt.Errorf("invalid JSON data: %s", data))
	}
	return data, nil
}

// splitPath turns "a/b//c/" into path segments.
func splitPath(path string) []any {
	var segments []any
	for _, s := range strings.Split(path, "/") {
		if s = strings.TrimSpace(s); s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

// parsePair splits "key=value" or "Key: value" at the first separator.
func parsePair(s string) (string, string, error) {
	i := strings.IndexAny(s, "=:")
	if i < 0 {
		return "", "", fmt.Errorf("%q is not key=value", s)
	}
	key := strings.TrimSpace(s[:i])
	if key == "" {
		return "", "", fmt.Errorf("%q has an empty key", s)
	}
	return key, strings.TrimSpace(s[i+1:]), nil
}
