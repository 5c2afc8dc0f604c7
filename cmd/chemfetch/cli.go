package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/hpungsan/chemfetch/internal/batch"
	"github.com/hpungsan/chemfetch/internal/errors"
	"github.com/hpungsan/chemfetch/internal/job"
	"github.com/hpungsan/chemfetch/internal/logging"
	"github.com/hpungsan/chemfetch/internal/ops"
	"github.com/hpungsan/chemfetch/internal/tui"
	"github.com/hpungsan/chemfetch/internal/web"
)

// shutdownWait bounds how long serve waits for a cancelled batch to checkpoint.
const shutdownWait = 10 * time.Second

// newCLIApp creates the CLI application with all commands.
func newCLIApp(env *appEnv) *cli.App {
	app := &cli.App{
		Name:    "chemfetch",
		Usage:   "Resolve chemical identifiers against PubChem in paced, resumable batches",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "home", EnvVars: []string{"CHEMFETCH_HOME"}, Usage: "Data directory (default ~/.chemfetch)"},
			&cli.StringFlag{Name: "log-level", Usage: "Log level: debug|info|warn|error"},
		},
		Before: func(c *cli.Context) error {
			if env.db != nil || c.Args().First() == "help" {
				return nil
			}
			home := c.String("home")
			if home == "" {
				var err error
				if home, err = defaultHome(); err != nil {
					return err
				}
			}
			return env.open(home, c.String("log-level"))
		},
		Commands: []*cli.Command{
			runCmd(env),
			resolveCmd(env),
			dedupeCmd(),
			statusCmd(env),
			runsCmd(env),
			reportCmd(env),
			deleteCmd(env),
			serveCmd(env),
			mcpCmd(env),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// commandContext returns the command context carrying the logger.
func (e *appEnv) commandContext(c *cli.Context) context.Context {
	return e.log.WithContext(c.Context)
}

const runDescription = `Reads one identifier per line. Blank lines are ignored and repeated
identifiers are looked up once. A run still marked running (left behind by a
crashed process) can only be resumed with --force.`

// runCmd creates the run command.
func runCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:        "run",
		Usage:       "Resolve every identifier in a file and write the results",
		Description: runDescription,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Usage: "File with one identifier per line (blank lines are ignored)"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Result file (overwritten)"},
			&cli.StringFlag{Name: "kind", Aliases: []string{"k"}, Usage: "Identifier kind: name|cid|smiles (default name)"},
			&cli.StringFlag{Name: "resume", Usage: "Run ID to resume"},
			&cli.BoolFlag{Name: "force", Usage: "Resume a run still marked running"},
			&cli.DurationFlag{Name: "interval", Usage: "Pause between identifiers (default from config)"},
			&cli.BoolFlag{Name: "plain", Usage: "Log progress instead of showing the progress view"},
		},
		Action: func(c *cli.Context) error {
			input := ops.RunInput{
				InputPath:  c.String("input"),
				OutputPath: c.String("output"),
				Kind:       c.String("kind"),
				ResumeID:   c.String("resume"),
				Force:      c.Bool("force"),
			}
			if input.ResumeID == "" && input.Kind == "" {
				input.Kind = "name"
			}
			if c.IsSet("interval") {
				d := c.Duration("interval")
				if d < 0 {
					return outputError(errors.NewInvalidRequest("interval must not be negative"))
				}
				input.Interval = &d
			}

			var (
				out *ops.RunOutput
				err error
			)
			if !c.Bool("plain") && term.IsTerminal(int(os.Stderr.Fd())) {
				// Only errors reach stderr while the progress view owns it
				quiet := env.log.Level(zerolog.ErrorLevel)
				out, err = tui.Run(quiet.WithContext(c.Context), os.Stderr, runTitle(input),
					func(ctx context.Context, onProgress batch.ProgressFunc) (*ops.RunOutput, error) {
						input.OnProgress = onProgress
						return ops.Run(ctx, env.db, env.cfg, env.resolver, input)
					})
			} else {
				log := env.log
				input.OnProgress = func(p batch.Progress) {
					log.Info().Int("index", p.Index).Int("total", p.Total).Msg(p.Status)
				}
				out, err = ops.Run(env.commandContext(c), env.db, env.cfg, env.resolver, input)
			}
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c.App.Writer, out)
		},
	}
}

func runTitle(input ops.RunInput) string {
	if input.ResumeID != "" {
		return "Resuming " + input.ResumeID
	}
	return "Processing " + filepath.Base(input.InputPath)
}

// resolveCmd creates the resolve command.
func resolveCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "resolve",
		Usage:     "Look up a single identifier",
		ArgsUsage: "<identifier>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "kind", Aliases: []string{"k"}, Value: "name", Usage: "Identifier kind: name|cid|smiles"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Resolve(env.commandContext(c), env.resolver, ops.ResolveInput{
				Identifier: c.Args().First(),
				Kind:       c.String("kind"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c.App.Writer, output)
		},
	}
}

// dedupeCmd creates the dedupe command.
func dedupeCmd() *cli.Command {
	return &cli.Command{
		Name:      "dedupe",
		Usage:     "Remove duplicate lines from a file in place",
		ArgsUsage: "<path>",
		Action: func(c *cli.Context) error {
			output, err := ops.Dedupe(ops.DedupeInput{Path: c.Args().First()})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c.App.Writer, output)
		},
	}
}

// statusCmd creates the status command.
func statusCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "Show the checkpoint of a run",
		ArgsUsage: "<run-id>",
		Action: func(c *cli.Context) error {
			output, err := ops.Status(env.commandContext(c), env.db, c.Args().First())
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c.App.Writer, output)
		},
	}
}

// runsCmd creates the runs command.
func runsCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "runs",
		Usage: "List runs, newest first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "status", Aliases: []string{"s"}, Usage: "Filter: running|completed|interrupted|failed"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Maximum results"},
			&cli.IntFlag{Name: "offset", Usage: "Pagination offset"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.ListRuns(env.commandContext(c), env.db, ops.ListRunsInput{
				Status: c.String("status"),
				Limit:  c.Int("limit"),
				Offset: c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c.App.Writer, output)
		},
	}
}

// reportCmd creates the report command.
func reportCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "report",
		Usage:     "Print a markdown report of a run",
		ArgsUsage: "<run-id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "Print the run and its items as JSON"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Report(env.commandContext(c), env.db, c.Args().First())
			if err != nil {
				return outputError(err)
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, output)
			}
			_, err = io.WriteString(c.App.Writer, output.Markdown)
			return err
		},
	}
}

// deleteCmd creates the delete command.
func deleteCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a stored run (output files are kept)",
		ArgsUsage: "<run-id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "force", Usage: "Delete even if the run is still marked running"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.DeleteRun(env.commandContext(c), env.db, ops.DeleteRunInput{
				ID:    c.Args().First(),
				Force: c.Bool("force"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c.App.Writer, output)
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the local web UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Value: 8790, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			log := logging.Component(env.log, "web")
			ctx := log.WithContext(c.Context)

			jobs := job.New(ctx, func(ctx context.Context, input ops.RunInput) (*ops.RunOutput, error) {
				return ops.Run(ctx, env.db, env.cfg, env.resolver, input)
			})

			srv, err := web.NewServer(env.db, env.cfg, jobs, log, Version, c.String("bind"), c.Int("port"))
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			if err := web.Run(ctx, srv); err != nil {
				return outputError(errors.NewInternal(err))
			}

			// Jobs stop with ctx; give the worker time to write output and checkpoint
			waitCtx, cancel := context.WithTimeout(context.Background(), shutdownWait)
			defer cancel()
			if err := jobs.Wait(waitCtx); err != nil {
				log.Warn().Err(err).Msg("batch still running at shutdown")
			}
			return nil
		},
	}
}

// mcpCmd creates the mcp command.
func mcpCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve MCP tools over stdio",
		Action: func(c *cli.Context) error {
			if err := env.serveMCP(c.Context); err != nil && c.Context.Err() == nil {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

// outputJSON outputs data as formatted JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var cErr *errors.ChemError
	if stderrors.As(err, &cErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", cErr.Code, cErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}
