package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/hpungsan/chemfetch/internal/batch"
	"github.com/hpungsan/chemfetch/internal/config"
	"github.com/hpungsan/chemfetch/internal/db"
	"github.com/hpungsan/chemfetch/internal/logging"
	"github.com/hpungsan/chemfetch/internal/mcp"
	"github.com/hpungsan/chemfetch/internal/ops"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"run": true, "resolve": true, "dedupe": true,
	"status": true, "runs": true, "report": true, "delete": true,
	"serve": true, "mcp": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode(args []string) bool {
	if len(args) < 2 {
		return false // No args → MCP server
	}
	arg := args[1]
	if cliCommands[arg] {
		return true
	}
	// Global flags (--home, --log-level, --help, --version) → CLI
	return len(arg) > 1 && arg[0] == '-'
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
        _                     __     _       _
    ___| |__   ___ _ __ ___  / _|___| |_ ___| |__
   / __| '_ \ / _ \ '_ ' _ \| |_/ _ \ __/ __| '_ \
  | (__| | | |  __/ | | | | |  _  __/ || (__| | | |
   \___|_| |_|\___|_| |_| |_|_|  \___|\__\___|_| |_|

  PubChem batch lookup

  Usage: chemfetch <command> [options]
         chemfetch --help

  MCP server mode requires piped input.`)
}

// appEnv holds what every command needs. open fills it from the home
// directory; tests fill it directly.
type appEnv struct {
	home     string
	db       *sql.DB
	cfg      *config.Config
	log      zerolog.Logger
	resolver batch.Resolver
}

// defaultHome returns ~/.chemfetch.
func defaultHome() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".chemfetch"), nil
}

// open loads config, builds the logger and opens the database under home.
// logLevel, when set, overrides the configured level.
func (e *appEnv) open(home, logLevel string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("could not determine working directory: %w", err)
	}

	cfg, err := config.LoadWithRepo(home, cwd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	database, err := db.Init(home)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	db.ConfigurePool(database, cfg)

	e.home = home
	e.db = database
	e.cfg = cfg
	e.log = logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	e.resolver = ops.NewResolver(cfg, nil)
	return nil
}

func (e *appEnv) close() {
	if e.db != nil {
		e.db.Close()
	}
}

// warnUnknownTools logs disabled_tools entries that name no MCP tool.
func (e *appEnv) warnUnknownTools() {
	if unknown := mcp.ValidateDisabledTools(e.cfg.DisabledTools); len(unknown) > 0 {
		e.log.Warn().Strs("tools", unknown).Msg("unknown tools in disabled_tools")
	}
}

// serveMCP runs the stdio MCP server until ctx is done or stdin closes.
func (e *appEnv) serveMCP(ctx context.Context) error {
	e.warnUnknownTools()
	log := logging.Component(e.log, "mcp")
	return mcp.Run(log.WithContext(ctx), e.db, e.cfg, e.resolver, Version)
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// CLI mode: known subcommand or global flag
	if isCLIMode(os.Args) {
		env := &appEnv{}
		defer env.close()
		if err := newCLIApp(env).RunContext(ctx, os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'chemfetch --help' for usage.\n")
		os.Exit(1)
	}

	// MCP server mode (default)
	home, err := defaultHome()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	env := &appEnv{}
	if err := env.open(home, ""); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer env.close()

	if err := env.serveMCP(ctx); err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
