package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/urfave/cli/v2"

	"github.com/dmmcquay/gammon-mcp/internal/config"
	"github.com/dmmcquay/gammon-mcp/internal/matfmt"
	"github.com/dmmcquay/gammon-mcp/internal/posid"
	"github.com/dmmcquay/gammon-mcp/internal/store"
	"github.com/dmmcquay/gammon-mcp/internal/xgmatch"
)

// newCLIApp creates the CLI application. Running it without a command
// starts the MCP server on stdio.
func newCLIApp(stdout io.Writer) *cli.App {
	app := &cli.App{
		Name:    "gammon-mcp",
		Usage:   "Backgammon position and match conversion server for MCP",
		Version: fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildTime),
		Writer:  stdout,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, EnvVars: []string{"GAMMON_MCP_CONFIG"}, Usage: "Path to config.json"},
			&cli.StringFlag{Name: "env-file", Usage: "Load environment variables from this file instead of .env"},
		},
		Before: func(c *cli.Context) error {
			if path := c.String("env-file"); path != "" {
				if config.LoadEnv(path) == "" {
					return fmt.Errorf("failed to load env file %s", path)
				}
				return nil
			}
			config.LoadEnv()
			return nil
		},
		Action: runServe,
		Commands: []*cli.Command{
			serveCmd(),
			convertCmd(),
			pipsCmd(),
			xg2matCmd(),
			matchesCmd(),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// loadConfig reads --config, falling back to the usual search path.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	if path == "" {
		path = config.GetConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Run the MCP server on stdio (default)",
		Action: runServe,
	}
}

func convertCmd() *cli.Command {
	return &cli.Command{
		Name:      "convert",
		Usage:     "Convert a position ID between XGID, GNUID and OGID",
		ArgsUsage: "<position-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "to", Aliases: []string{"t"}, Usage: "Output format: xgid|gnuid|ogid (default: all)"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return errors.New("convert expects exactly one position ID")
			}
			res, err := posid.Decode(c.Args().First())
			if err != nil {
				return err
			}

			if to := c.String("to"); to != "" {
				format, err := posid.ParseFormat(to)
				if err != nil {
					return err
				}
				id, err := posid.Encode(format, res.Board, res.Metadata)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(c.App.Writer, id)
				return err
			}

			all := posid.EncodeAll(res.Board, res.Metadata)
			formats := make([]string, 0, len(all))
			for f := range all {
				formats = append(formats, string(f))
			}
			sort.Strings(formats)
			for _, f := range formats {
				if _, err := fmt.Fprintf(c.App.Writer, "%-6s %s\n", f+":", all[posid.Format(f)]); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func pipsCmd() *cli.Command {
	return &cli.Command{
		Name:      "pips",
		Usage:     "Print the pip count of a position",
		ArgsUsage: "<position-id>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return errors.New("pips expects exactly one position ID")
			}
			res, err := posid.Decode(c.Args().First())
			if err != nil {
				return err
			}
			p := res.Board.PipCounts()
			_, err = fmt.Fprintf(c.App.Writer, "X: %d  O: %d\n", p.X, p.O)
			return err
		},
	}
}

func xg2matCmd() *cli.Command {
	return &cli.Command{
		Name:      "xg2mat",
		Usage:     "Convert .xg match files to .mat",
		ArgsUsage: "<file.xg>...",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output directory (default: next to each input)"},
			&cli.BoolFlag{Name: "stdout", Usage: "Write the .mat text to stdout instead of files"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return errors.New("xg2mat expects at least one .xg file")
			}
			outDir := c.String("out")
			if outDir != "" {
				if err := os.MkdirAll(outDir, 0o755); err != nil {
					return fmt.Errorf("failed to create %s: %w", outDir, err)
				}
			}

			for _, path := range c.Args().Slice() {
				pm, err := xgmatch.ParseFile(path)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				mat := matfmt.Write(pm)

				if c.Bool("stdout") {
					if _, err := io.WriteString(c.App.Writer, mat); err != nil {
						return err
					}
					continue
				}

				dir := outDir
				if dir == "" {
					dir = filepath.Dir(path)
				}
				target := filepath.Join(dir, matfmt.FileName(path))
				if err := os.WriteFile(target, []byte(mat), 0o644); err != nil {
					return fmt.Errorf("failed to write %s: %w", target, err)
				}
				fmt.Fprintf(c.App.Writer, "%s -> %s (%s)\n", path, target, xgmatch.Summarize(pm))
			}
			return nil
		},
	}
}

func matchesCmd() *cli.Command {
	return &cli.Command{
		Name:  "matches",
		Usage: "Inspect the converted match library",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List stored matches, newest first",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 20, Usage: "Maximum number of matches"},
				},
				Action: func(c *cli.Context) error {
					return withStore(c, func(ctx context.Context, s *store.Store) error {
						records, err := s.List(ctx, c.Int("limit"))
						if err != nil {
							return err
						}
						return outputJSON(c.App.Writer, records)
					})
				},
			},
			{
				Name:      "show",
				Usage:     "Print a stored match as .mat text",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Print the full record as JSON"},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return errors.New("show expects exactly one match id")
					}
					return withStore(c, func(ctx context.Context, s *store.Store) error {
						rec, err := s.Get(ctx, c.Args().First())
						if err != nil {
							return err
						}
						if c.Bool("json") {
							return outputJSON(c.App.Writer, rec)
						}
						_, err = io.WriteString(c.App.Writer, rec.Mat)
						return err
					})
				},
			},
		},
	}
}

func withStore(c *cli.Context, fn func(ctx context.Context, s *store.Store) error) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if !cfg.Store.Enabled {
		return errors.New("the match library is disabled in the configuration")
	}
	s, err := store.Open(cfg.Store.Dir)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(c.Context, s)
}

// outputJSON writes v as indented JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
