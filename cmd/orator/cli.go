package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/eringen/orator"
	"github.com/eringen/orator/audio"
	"github.com/eringen/orator/convert"
	"github.com/eringen/orator/logging"
	"github.com/eringen/orator/scaffold"
)

// newCLIApp creates the CLI application with all commands. Command output
// goes to out; logs go to stderr.
func newCLIApp(out io.Writer) *cli.App {
	app := &cli.App{
		Name:    "orator",
		Usage:   "Personal website toolkit for talks, readings, and books",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "Path to orator.yaml (default <root>/orator.yaml)"},
			&cli.StringFlag{Name: "root", Aliases: []string{"r"}, EnvVars: []string{"ORATOR_ROOT"}, Usage: "Site root directory"},
			&cli.StringFlag{Name: "log-mode", EnvVars: []string{"LOG_MODE"}, Usage: "Log output: dev or prod"},
		},
		Commands: []*cli.Command{
			serveCmd(),
			toStaticCmd(out),
			toBackendCmd(out),
			backupCmd(out),
			watchCmd(),
			newCmd(out),
			audioCmd(),
			versionCmd(out),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// loadConfig builds the site configuration from the config file, the
// environment, and the global flags.
func loadConfig(c *cli.Context) (orator.SiteConfig, error) {
	path := c.String("config")
	root := c.String("root")
	if path == "" && root != "" {
		path = filepath.Join(root, orator.DefaultConfigFile)
	}
	return orator.LoadConfig(path, func(cfg *orator.SiteConfig) {
		if root != "" {
			cfg.Root = root
		}
		if mode := c.String("log-mode"); mode != "" {
			cfg.LogMode = mode
		}
	})
}

func newLogger(cfg orator.SiteConfig) (*logging.Logger, error) {
	return logging.New(cfg.LogMode)
}

// setup loads the configuration and its logger.
func setup(c *cli.Context) (orator.SiteConfig, *logging.Logger, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return cfg, nil, cli.Exit(err.Error(), 1)
	}
	log, err := newLogger(cfg)
	if err != nil {
		return cfg, nil, cli.Exit(err.Error(), 1)
	}
	return cfg, log, nil
}

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the site and the admin API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Aliases: []string{"a"}, Usage: "Listen address (overrides config)"},
			&cli.BoolFlag{Name: "debug", Usage: "Enable diagnostic routes"},
		},
		Action: func(c *cli.Context) error {
			cfg, log, err := setup(c)
			if err != nil {
				return err
			}
			defer log.Sync()
			if addr := c.String("addr"); addr != "" {
				cfg.Addr = addr
			}
			if c.Bool("debug") {
				cfg.Debug = true
			}

			app := orator.New(cfg, orator.WithLogger(log))
			defer app.Close()

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			errc := make(chan error, 1)
			go func() { errc <- app.Start() }()

			select {
			case err := <-errc:
				return outputError(err)
			case <-ctx.Done():
			}
			log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return outputError(app.Shutdown(shutdownCtx))
		},
	}
}

func toStaticCmd(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "to-static",
		Usage: "Write data/pages.json and render every book",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "book", Aliases: []string{"b"}, Usage: "Render only this book (repeatable)"},
		},
		Action: func(c *cli.Context) error {
			cfg, log, err := setup(c)
			if err != nil {
				return err
			}
			defer log.Sync()
			opts := cfg.ConvertOptions(log)
			opts.Books = c.StringSlice("book")
			report, err := convert.ToStatic(c.Context, opts)
			if err != nil {
				return outputError(err)
			}
			if err := outputJSON(out, report); err != nil {
				return err
			}
			if failed := report.Failed(); len(failed) > 0 {
				log.Warn("some books were not rendered", "count", len(failed))
			}
			return nil
		},
	}
}

func toBackendCmd(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "to-backend",
		Usage: "Restore missing templates from their .bak copies",
		Action: func(c *cli.Context) error {
			cfg, log, err := setup(c)
			if err != nil {
				return err
			}
			defer log.Sync()
			restored, err := convert.ToBackend(cfg.ConvertOptions(log))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(out, map[string][]string{"restored": nonNil(restored)})
		},
	}
}

func backupCmd(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "backup",
		Usage: "Copy every template to a .bak file",
		Action: func(c *cli.Context) error {
			cfg, log, err := setup(c)
			if err != nil {
				return err
			}
			defer log.Sync()
			saved, err := convert.Backup(cfg.ConvertOptions(log))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(out, map[string][]string{"backed_up": nonNil(saved)})
		},
	}
}

func watchCmd() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Re-run to-static whenever pages, templates, or books change",
		Flags: []cli.Flag{
			&cli.DurationFlag{Name: "interval", Aliases: []string{"i"}, Value: 200 * time.Millisecond, Usage: "Polling interval"},
		},
		Action: func(c *cli.Context) error {
			cfg, log, err := setup(c)
			if err != nil {
				return err
			}
			defer log.Sync()
			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()
			err = convert.Watch(ctx, cfg.ConvertOptions(log), c.Duration("interval"))
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return outputError(err)
		},
	}
}

func newCmd(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "new",
		Usage:     "Create a new site skeleton",
		ArgsUsage: "<dir>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Site name (default derived from dir)"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("usage: orator new <dir>", 1)
			}
			dir := c.Args().First()
			name := c.String("name")
			if name == "" {
				name = scaffold.Title(filepath.Base(dir))
			}
			created, err := scaffold.Write(dir, scaffold.Data{SiteName: name})
			if err != nil {
				return outputError(err)
			}
			fmt.Fprintf(out, "Created %s (%d files)\n\n", dir, len(created))
			fmt.Fprintf(out, "Next steps:\n  cd %s\n  export ADMIN_PASSWORD=... ADMIN_SESSION_SECRET=...\n  orator serve\n", dir)
			return nil
		},
	}
}

func audioCmd() *cli.Command {
	return &cli.Command{
		Name:      "audio",
		Usage:     "Extract a recording's audio track to MP3 with ffmpeg",
		ArgsUsage: "<src> <dst.mp3>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "ffmpeg", Value: "ffmpeg", Usage: "ffmpeg binary"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return cli.Exit("usage: orator audio <src> <dst.mp3>", 1)
			}
			log, err := logging.New(c.String("log-mode"))
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			defer log.Sync()
			conv := audio.Converter{Binary: c.String("ffmpeg"), Log: log}
			return outputError(conv.ToMP3(c.Context, c.Args().Get(0), c.Args().Get(1)))
		},
	}
}

func versionCmd(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print the orator version",
		Action: func(c *cli.Context) error {
			_, err := fmt.Fprintf(out, "orator %s\n", Version)
			return err
		},
	}
}

// Helper functions

// outputJSON writes v to out as indented JSON.
func outputJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats err for the CLI. A nil error stays nil.
func outputError(err error) error {
	if err == nil {
		return nil
	}
	var ae *orator.APIError
	if errors.As(err, &ae) {
		return cli.Exit(ae.Message, 1)
	}
	return cli.Exit(err.Error(), 1)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
