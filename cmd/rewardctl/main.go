// rewardctl is the operator CLI for the pizza rewards catalog.
//
// Usage:
//
//	rewardctl [global flags] <command> [arguments]
//
//	rewardctl tui                       Interactive terminal UI (default on a terminal)
//	rewardctl list [--search t] [--page n] [--json]
//	rewardctl show <id>                 Preview one reward
//	rewardctl stores                    List stores
//	rewardctl create -f reward.json     Create a reward
//	rewardctl update -f reward.json     Update a reward (the file carries the id)
//	rewardctl duplicate <id>            Create "Copy of ..." of a reward
//	rewardctl delete <id> [--yes]       Delete a reward
//	rewardctl config [--save]           Show (or save) the effective config
//	rewardctl twin <subcommand>         Drive the rewards twin's admin plane
//	rewardctl version
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/wondertwin-ai/rewardcatalog/internal/backend"
	"github.com/wondertwin-ai/rewardcatalog/internal/catalog"
	"github.com/wondertwin-ai/rewardcatalog/internal/config"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "rewardctl: %v\n", err)
		os.Exit(1)
	}
}

// globals are the flags accepted before the subcommand.
type globals struct {
	configPath string
	envFile    string
	baseURL    string
	nonce      string
	timeout    time.Duration
	verbose    bool

	flags *pflag.FlagSet
}

// app is what every subcommand runs against.
type app struct {
	cfg        *config.Config
	configPath string
	logger     *slog.Logger
	stdin      io.Reader
	stdout     io.Writer
	stderr     io.Writer
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	g := &globals{}
	fs := pflag.NewFlagSet("rewardctl", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.SetInterspersed(false)
	fs.StringVar(&g.configPath, "config", "", "Config file (default: ~/.rewardctl/config.yaml)")
	fs.StringVar(&g.envFile, "env-file", ".env", "Load REWARDS_* variables from this file if present")
	fs.StringVar(&g.baseURL, "base-url", "", "Store Backend base URL")
	fs.StringVar(&g.nonce, "nonce", "", "X-WP-Nonce sent with every request")
	fs.DurationVar(&g.timeout, "timeout", 0, "Per-request timeout")
	fs.BoolVarP(&g.verbose, "verbose", "v", false, "Debug logging")
	fs.Usage = func() { printUsage(stderr, fs) }
	if err := fs.Parse(args); err != nil {
		return err
	}
	g.flags = fs

	rest := fs.Args()
	command := ""
	if len(rest) > 0 {
		command, rest = rest[0], rest[1:]
	}
	if command == "" {
		if !isTerminal(os.Stdout) {
			printUsage(stderr, fs)
			return errors.New("no command given")
		}
		command = "tui"
	}
	if command == "version" {
		fmt.Fprintf(stdout, "rewardctl version %s\n", version)
		return nil
	}
	if command == "help" {
		printUsage(stdout, fs)
		return nil
	}

	a, err := newApp(g, stdin, stdout, stderr, command == "tui")
	if err != nil {
		return err
	}

	switch command {
	case "tui":
		return a.cmdTUI(ctx)
	case "list":
		return a.cmdList(ctx, rest)
	case "show":
		return a.cmdShow(ctx, rest)
	case "stores":
		return a.cmdStores(ctx)
	case "create":
		return a.cmdSubmit(ctx, rest, false)
	case "update":
		return a.cmdSubmit(ctx, rest, true)
	case "duplicate":
		return a.cmdDuplicate(ctx, rest)
	case "delete":
		return a.cmdDelete(ctx, rest)
	case "config":
		return a.cmdConfig(rest)
	case "twin":
		return a.cmdTwin(ctx, rest)
	default:
		printUsage(stderr, fs)
		return fmt.Errorf("unknown command %q", command)
	}
}

// newApp resolves configuration in order: config file, .env, REWARDS_*
// environment, then global flags.
func newApp(g *globals, stdin io.Reader, stdout, stderr io.Writer, interactive bool) (*app, error) {
	path := g.configPath
	if path == "" {
		p, err := config.Path()
		if err != nil {
			return nil, err
		}
		path = p
	} else if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file: %w", err)
	}

	cfg, err := config.LoadFrom(path)
	if err != nil {
		return nil, err
	}
	if err := config.LoadDotEnv(g.envFile); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if g.flags.Changed("base-url") {
		cfg.BaseURL = g.baseURL
	}
	if g.flags.Changed("nonce") {
		cfg.Nonce = g.nonce
	}
	if g.flags.Changed("timeout") {
		cfg.Timeout = g.timeout
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logOut := stderr
	if interactive && !g.verbose {
		// Log lines would tear the alternate screen.
		logOut = io.Discard
	}
	return &app{
		cfg:        cfg,
		configPath: path,
		logger:     newLogger(logOut, g.verbose),
		stdin:      stdin,
		stdout:     stdout,
		stderr:     stderr,
	}, nil
}

// newLogger writes text to a terminal and JSON otherwise.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	options := &slog.HandlerOptions{Level: slog.LevelWarn}
	if verbose {
		options.Level = slog.LevelDebug
	}
	var handler slog.Handler
	if f, ok := w.(*os.File); ok && isTerminal(f) {
		handler = slog.NewTextHandler(w, options)
	} else {
		handler = slog.NewJSONHandler(w, options)
	}
	return slog.New(handler)
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// repository builds a Repository over the configured backend.
func (a *app) repository() *catalog.Repository {
	client := backend.New(a.cfg.BaseURL, a.cfg.Nonce, backend.WithTimeout(a.cfg.Timeout))
	return catalog.New(client, a.logger)
}

func printUsage(w io.Writer, fs *pflag.FlagSet) {
	fmt.Fprintf(w, `rewardctl %s: pizza rewards catalog

Usage:
  rewardctl [global flags] <command> [arguments]

Commands:
  tui                        Interactive terminal UI (default on a terminal)
  list                       One page of rewards (--search, --page, --json)
  show <id>                  Preview one reward
  stores                     List stores
  create -f <file>           Create a reward from a JSON file (comments allowed)
  update -f <file>           Update the reward named by the file's id
  duplicate <id>             Create a "Copy of ..." of a reward
  delete <id>                Delete a reward (--yes skips the prompt)
  config                     Show the effective config (--save writes it)
  twin <subcommand>          Twin admin: health, reset, seed <file>, faults,
                             fault <path>, clear-fault <path>, requests
  version                    Print the rewardctl version

Global flags:
%s
Environment:
  REWARDS_BASE_URL, REWARDS_NONCE, REWARDS_TIMEOUT override the config file.
`, version, fs.FlagUsages())
}
