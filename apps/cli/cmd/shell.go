package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"

	"github.com/abdul-hamid-achik/hammx/packages/core/config"
	"github.com/abdul-hamid-achik/hammx/packages/hammx"
	"github.com/abdul-hamid-achik/hammx/packages/output"
	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var shellCmd = &cobra.Command{
	Use:   "shell [URL]",
	Short: "Build and send requests interactively",
	Long: `Start an interactive session. Set a base URL, add path segments,
parameters, headers and auth, then send the request with a verb.

The config file is watched and reloaded while the shell runs.

Commands:
  base URL            Set the base URL (clears the path)
  path SEG[/SEG]      Add path segments
  params KEY=VALUE    Add a query parameter
  headers KEY=VALUE   Add a header
  auth USER:PASS      Use basic auth
  auth TOKEN          Use a bearer token
  auth oauth2|aws ... Use OAuth2 or AWS SigV4, as with --auth
  get|post|put|patch|delete|head|options [JSON]
                      Send the request, with an optional JSON body
  show                Show the current request
  reset               Clear path, params, headers and auth
  help                Show this help
  exit                Leave the shell`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		base := ""
		if len(args) > 0 {
			base = args[0]
		}
		return runShell(ctx, cfg, base)
	},
}

const shellHelp = `Commands:
  base URL            Set the base URL
  path SEGMENT        Add path segments
  params KEY=VALUE    Add query parameters
  headers KEY=VALUE   Add HTTP headers
  auth USER:PASS      Add basic auth
  auth TOKEN          Add bearer token auth
  auth oauth2 ...     OAuth2 client_credentials or password grant
  auth aws ...        AWS SigV4: KEY SECRET REGION SERVICE
  get, post, put, patch, delete, head, options [JSON]
                      Execute the request
  show                Show the current request
  reset               Reset the current request
  exit                Exit the shell`

var shellVerbs = []string{"get", "post", "put", "patch", "delete", "head", "options"}

// Session is the state of an interactive shell. Commands and config reloads
// may arrive from different goroutines.
type Session struct {
	mu      sync.Mutex
	cfg     *config.Config
	base    string
	path    []string
	params  [][2]string
	headers map[string]string
	auth    string

	client  *sessionClient
	retired sync.WaitGroup

	out     io.Writer
	logger  zerolog.Logger
	printer *output.Printer
	bold    *color.Color
}

// NewSession starts a session. base may be empty, in which case the config
// base URL is used if there is one.
func NewSession(cfg *config.Config, base string, out io.Writer, logger zerolog.Logger) *Session {
	if base == "" {
		base = cfg.BaseURL
	}
	s := &Session{
		cfg:     cfg,
		base:    strings.TrimRight(base, "/"),
		headers: make(map[string]string),
		out:     out,
		logger:  logger,
		printer: output.NewPrinter(output.WithWriter(out), output.WithNoColor(cfg.GetNoColor())),
		bold:    color.New(color.Bold),
	}
	if cfg.GetNoColor() {
		s.bold.DisableColor()
	}
	return s
}

// sessionClient is a client plus the requests currently using it. A
// replaced client is closed once its last request returns.
type sessionClient struct {
	*hammx.Client
	cleanup  func()
	inflight sync.WaitGroup
}

// URL is the base URL joined with the current path, or "" without a base.
func (s *Session) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url()
}

func (s *Session) url() string {
	if s.base == "" {
		return ""
	}
	return hammx.DefaultURLBuilder(s.base, s.path, false)
}

func (s *Session) Prompt() string {
	u := s.URL()
	if u == "" {
		u = "No URL set"
	}
	return fmt.Sprintf("hammx [%s]> ", u)
}

// SetConfig swaps the config. The next request uses a client built from it.
func (s *Session) SetConfig(cfg *config.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	s.resetClient()
}

// resetClient drops the current client. Callers hold s.mu.
func (s *Session) resetClient() {
	old := s.client
	if old == nil {
		return
	}
	s.client = nil
	s.retired.Add(1)
	go func() {
		defer s.retired.Done()
		old.inflight.Wait()
		old.cleanup()
	}()
}

// Close releases the client once requests in flight have returned.
func (s *Session) Close() {
	s.mu.Lock()
	s.resetClient()
	s.mu.Unlock()
	s.retired.Wait()
}

// Exec runs one command line. It reports false once the session should end.
// Command errors are printed, not returned.
func (s *Session) Exec(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return true
	}

	command, args, _ := strings.Cut(line, " ")
	command = strings.ToLower(command)
	args = strings.TrimSpace(args)

	switch command {
	case "exit", "quit":
		return false
	case "help":
		fmt.Fprintln(s.out, shellHelp)
	case "base":
		s.setBase(args)
	case "path":
		s.addPath(args)
	case "params":
		s.addPair(args, "params", func(k, v string) { s.params = append(s.params, [2]string{k, v}) })
	case "headers":
		s.addPair(args, "headers", func(k, v string) { s.headers[k] = v })
	case "auth":
		s.mu.Lock()
		s.auth = args
		s.mu.Unlock()
	case "show":
		s.show()
	case "reset":
		s.mu.Lock()
		s.path = nil
		s.params = nil
		s.headers = make(map[string]string)
		s.auth = ""
		s.mu.Unlock()
		fmt.Fprintln(s.out, "Request reset")
	case "get", "post", "put", "patch", "delete", "head", "options":
		s.send(ctx, strings.ToUpper(command), args)
	default:
		fmt.Fprintf(s.out, "Unknown command: %s\n", command)
	}
	return true
}

func (s *Session) setBase(args string) {
	if err := hammx.ValidateURL(args); err != nil {
		s.printer.Error(err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.base = strings.TrimRight(args, "/")
	s.path = nil
	s.resetClient()
}

func (s *Session) addPath(args string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.base == "" {
		fmt.Fprintln(s.out, "Set a base URL first with 'base URL'")
		return
	}
	for _, seg := range splitPath(args) {
		s.path = append(s.path, seg.(string))
	}
}

func (s *Session) addPair(args, command string, set func(k, v string)) {
	k, v, err := parsePair(args)
	if err != nil || !strings.Contains(args, "=") {
		fmt.Fprintf(s.out, "Invalid format. Use: %s key=value\n", command)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	set(k, v)
}

func (s *Session) show() {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.url()
	if u == "" {
		u = "(none)"
	}
	fmt.Fprintf(s.out, "%s %s\n", s.bold.Sprint("URL:"), u)
	for _, p := range s.params {
		fmt.Fprintf(s.out, "%s %s=%s\n", s.bold.Sprint("Param:"), p[0], p[1])
	}
	keys := make([]string, 0, len(s.headers))
	for k := range s.headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(s.out, "%s %s: %s\n", s.bold.Sprint("Header:"), k, s.headers[k])
	}
	if s.auth != "" {
		fmt.Fprintf(s.out, "%s %s\n", s.bold.Sprint("Auth:"), authKind(s.auth))
	}
}

func (s *Session) send(ctx context.Context, method, args string) {
	s.mu.Lock()
	if s.base == "" {
		s.mu.Unlock()
		fmt.Fprintln(s.out, "Set a base URL first with 'base URL'")
		return
	}

	if s.client == nil {
		client, cleanup, err := newClient(s.base, s.cfg, s.logger)
		if err != nil {
			s.mu.Unlock()
			s.printer.Error(err)
			return
		}
		s.client = &sessionClient{Client: client, cleanup: cleanup}
	}

	spec := requestSpec{
		Method:  method,
		Path:    strings.Join(s.path, "/"),
		Auth:    s.auth,
		NoColor: s.cfg.GetNoColor(),
	}
	for _, p := range s.params {
		spec.Query = append(spec.Query, p[0]+"="+p[1])
	}
	for k, v := range s.headers {
		spec.Headers = append(spec.Headers, k+": "+v)
	}
	if args != "" && (method == "POST" || method == "PUT" || method == "PATCH") {
		if !json.Valid([]byte(args)) {
			s.mu.Unlock()
			fmt.Fprintln(s.out, "Invalid JSON data")
			return
		}
		spec.Data = args
	}
	current := s.client
	current.inflight.Add(1)
	defer current.inflight.Done()
	s.mu.Unlock()

	res := current.Resource
	fmt.Fprintln(s.out)
	if err := runRequest(ctx, res, spec, s.out); err != nil {
		s.printer.Error(err)
	}
	fmt.Fprintln(s.out)
}

func runShell(ctx context.Context, cfg *config.Config, base string) error {
	session := NewSession(cfg, base, os.Stdout, log.Logger)
	defer session.Close()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          session.Prompt(),
		HistoryFile:     historyFile(),
		AutoComplete:    shellCompleter(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("starting shell: %w", err)
	}
	defer rl.Close()

	if path := watchedConfig(); path != "" {
		go func() {
			err := config.Watch(ctx, path, func(reloaded *config.Config, err error) {
				if err != nil {
					log.Warn().Err(err).Str("file", path).Msg("config reload failed")
					return
				}
				next, err := applyOverrides(reloaded)
				if err != nil {
					log.Warn().Err(err).Msg("config reload failed")
					return
				}
				session.SetConfig(next)
				log.Info().Str("file", path).Msg("config reloaded")
			})
			if err != nil {
				log.Warn().Err(err).Msg("config watch stopped")
			}
		}()
	}

	session.printer.Header(version)
	session.printer.Info("%s\n", shellHelp)

	for ctx.Err() == nil {
		rl.SetPrompt(session.Prompt())
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if len(line) == 0 {
				break
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if !session.Exec(ctx, line) {
			break
		}
	}
	fmt.Println("Exiting...")
	return nil
}

// applyOverrides applies the selected profile and the command line flags to
// a reloaded config.
func applyOverrides(cfg *config.Config) (*config.Config, error) {
	cfg, err := cfg.Profile(profileFlag)
	if err != nil {
		return nil, err
	}
	overrides, err := flagOverrides()
	if err != nil {
		return nil, err
	}
	return cfg.Merge(overrides), nil
}

func watchedConfig() string {
	if configFlag != "" {
		return configFlag
	}
	return config.FindConfig(".")
}

func historyFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	dir = filepath.Join(dir, "hammx")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ""
	}
	return filepath.Join(dir, "history")
}

func shellCompleter() *readline.PrefixCompleter {
	items := []readline.PrefixCompleterInterface{
		readline.PcItem("base"),
		readline.PcItem("path"),
		readline.PcItem("params"),
		readline.PcItem("headers"),
		readline.PcItem("auth"),
		readline.PcItem("show"),
		readline.PcItem("reset"),
		readline.PcItem("help"),
		readline.PcItem("exit"),
	}
	for _, verb := range shellVerbs {
		items = append(items, readline.PcItem(verb))
	}
	return readline.NewPrefixCompleter(items...)
}
