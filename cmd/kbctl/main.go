package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/dgallion1/kbchat/internal/config"
	"github.com/dgallion1/kbchat/internal/parser"
	"github.com/dgallion1/kbchat/internal/pipeline"
	"github.com/dgallion1/kbchat/internal/render"
	"github.com/dgallion1/kbchat/internal/reply"
	"github.com/dgallion1/kbchat/internal/sidebar"
)

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:   "kbctl",
		Usage:  "Build and inspect the chat knowledge base",
		Writer: out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a TOML config file",
				EnvVars: []string{"KBCHAT_CONFIG"},
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "build",
				Usage:  "Convert new source documents and rewrite the manifest",
				Action: buildCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "dir",
						Usage: "Knowledge base directory (overrides KB_DIR)",
					},
					&cli.BoolFlag{
						Name:  "reconvert-stale",
						Usage: "Regenerate extracts older than their source",
					},
				},
			},
			{
				Name:   "files",
				Usage:  "List the files a running server publishes",
				Action: filesCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "server",
						Usage: "Base URL of the server (defaults to localhost on PORT)",
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "Request timeout",
						Value: 10 * time.Second,
					},
				},
			},
			{
				Name:      "ask",
				Usage:     "Send a prompt to the reply webhook",
				ArgsUsage: "<prompt>",
				Action:    askCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "html",
						Usage: "Print the reply as sanitized HTML",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Render the reply for the terminal",
					},
					&cli.StringFlag{
						Name:  "webhook",
						Usage: "Reply webhook URL (overrides REPLY_WEBHOOK_URL)",
					},
				},
			},
		},
	}
}

func loadConfig(c *cli.Context) (config.Config, error) {
	cfg, err := config.LoadFile(c.String("config"))
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func buildCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if dir := c.String("dir"); dir != "" {
		cfg.KBDir = dir
	}
	if c.IsSet("reconvert-stale") {
		cfg.ReconvertStale = c.Bool("reconvert-stale")
	}

	p := pipeline.New(pipeline.Options{
		Dir:            cfg.KBDir,
		ManifestName:   cfg.ManifestName,
		ReconvertStale: cfg.ReconvertStale,
		Parser: parser.Options{
			PDFValidate:          cfg.PDFValidate,
			PDFFallbackPdftotext: cfg.PDFFallbackPdftotext,
		},
	}, slog.Default())

	snap, err := p.Run(c.Context, pipeline.TriggerBuild)
	if err != nil {
		return cli.Exit(fmt.Sprintf("build failed: %v", err), 1)
	}

	w := c.App.Writer
	for _, d := range snap.Documents {
		if d.Error != "" {
			fmt.Fprintf(w, "%-9s %s: %s\n", d.Outcome, d.Source, d.Error)
			continue
		}
		fmt.Fprintf(w, "%-9s %s -> %s\n", d.Outcome, d.Source, d.Extract)
	}
	fmt.Fprintf(w, "manifest: %d entries (converted %d, unchanged %d, skipped %d, failed %d)\n",
		len(snap.Manifest), snap.Counts.Converted, snap.Counts.Unchanged, snap.Counts.Skipped, snap.Counts.Failed)
	return nil
}

func filesCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	base := c.String("server")
	if base == "" {
		base = "http://localhost:" + cfg.Port
	}

	files := sidebar.NewClient(base, cfg.ManifestName, c.Duration("timeout"), slog.Default()).Files(c.Context)
	w := c.App.Writer
	if msg := sidebar.Placeholder(files); msg != "" {
		fmt.Fprintln(w, msg)
		return nil
	}
	for _, f := range files {
		fmt.Fprintf(w, "%s\t%s\n", f.Name, f.Path)
	}
	return nil
}

func askCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	url := c.String("webhook")
	if url == "" {
		url = cfg.ReplyWebhookURL
	}
	if url == "" {
		return cli.Exit("no webhook configured: set REPLY_WEBHOOK_URL or pass --webhook", 2)
	}

	rc := reply.NewClient(url, cfg.ReplySessionID, cfg.ReplyTimeout, reply.WithLogger(slog.Default()))
	defer rc.Close()

	rep, askErr := rc.Ask(c.Context, strings.Join(c.Args().Slice(), " "))
	if errors.Is(askErr, reply.ErrEmptyPrompt) {
		return cli.Exit("a prompt is required", 2)
	}

	text := rep.Text
	switch {
	case c.Bool("html"):
		if text, err = render.Render(rep.Text); err != nil {
			return err
		}
	case c.Bool("pretty"):
		text = render.Terminal(rep.Text, "dark", 80)
	}
	fmt.Fprintln(c.App.Writer, text)

	if askErr != nil {
		return cli.Exit(fmt.Sprintf("reply service failed: %v", askErr), 1)
	}
	return nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
