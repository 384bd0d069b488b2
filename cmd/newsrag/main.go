// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/poiesic/newsrag"
	"github.com/poiesic/newsrag/config"
	"github.com/poiesic/newsrag/history"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "newsrag",
		Usage: "Chat with the news over retrieval-augmented generation",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a config file (defaults to newsrag.* in . or ./config)",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address (overrides server.address)",
					},
				},
			},
			{
				Name:   "ingest",
				Usage:  "Fetch the configured feeds and index them",
				Action: ingestCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "recreate",
						Usage: "Drop and recreate the collection before storing",
						Value: true,
					},
				},
			},
			{
				Name:      "query",
				Usage:     "Run a similarity query against the index",
				ArgsUsage: "<text>",
				Action:    queryCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "top-k",
						Aliases: []string{"k"},
						Usage:   "Number of results to return",
						Value:   5,
					},
				},
			},
			{
				Name:      "history",
				Usage:     "Print a chat session transcript",
				ArgsUsage: "<session-id>",
				Action:    historyCommand,
			},
			{
				Name:      "recover",
				Usage:     "Drop corrupted records from a chat session",
				ArgsUsage: "<session-id>",
				Action:    recoverCommand,
			},
		},
	}
}

func openSystem(c *cli.Context) (*newsrag.System, *config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	sys, err := newsrag.Open(cfg, newsrag.WithLogger(slog.Default()))
	if err != nil {
		return nil, nil, fmt.Errorf("opening system: %w", err)
	}
	return sys, cfg, nil
}

func serveCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sys, cfg, err := openSystem(c)
	if err != nil {
		return err
	}
	defer sys.Close()

	if err := sys.Health(ctx); err != nil {
		slog.Warn("starting with unhealthy dependencies", "err", err)
	}

	srv, err := sys.NewServer()
	if err != nil {
		return err
	}
	addr := cfg.Server.Address
	if c.IsSet("addr") {
		addr = c.String("addr")
	}
	return srv.ListenAndServe(ctx, addr, cfg.Server.ShutdownTimeout)
}

func ingestCommand(c *cli.Context) error {
	sys, _, err := openSystem(c)
	if err != nil {
		return err
	}
	defer sys.Close()

	summary, err := sys.Ingest(c.Context, c.Bool("recreate"))
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	out := c.App.Writer
	fmt.Fprintf(out, "Fetched:    %d (%d duplicates)\n", summary.Fetched, summary.Duplicates)
	fmt.Fprintf(out, "Embedded:   %d (%d skipped)\n", summary.Embedded, summary.Skipped)
	fmt.Fprintf(out, "Stored:     %d (dimension %d)\n", summary.Stored, summary.Dimension)
	fmt.Fprintf(out, "Duration:   %s\n", summary.Duration)
	for _, f := range summary.SourceFailures {
		fmt.Fprintf(out, "Failed:     %s: %v\n", f.Source, f.Err)
	}
	return nil
}

func queryCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("query text is required")
	}

	sys, _, err := openSystem(c)
	if err != nil {
		return err
	}
	defer sys.Close()

	results, err := sys.Search(c.Context, query, c.Int("top-k"))
	if err != nil {
		return err
	}

	out := c.App.Writer
	fmt.Fprintf(out, "Found %d hits\n", len(results))
	for i, hit := range results {
		fmt.Fprintf(out, "%d: '%s' [%0.3f]\n   %s\n", i, hit.Payload.Title, hit.Score, hit.Payload.Link)
	}
	return nil
}

func sessionArg(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", fmt.Errorf("exactly one session id is required")
	}
	return c.Args().First(), nil
}

func historyCommand(c *cli.Context) error {
	id, err := sessionArg(c)
	if err != nil {
		return err
	}
	sys, _, err := openSystem(c)
	if err != nil {
		return err
	}
	defer sys.Close()

	entries, err := sys.History().ReadAll(c.Context, id)
	if err != nil {
		return err
	}
	printEntries(c.App.Writer, entries)
	return nil
}

func printEntries(out io.Writer, entries []history.Entry) {
	for _, e := range entries {
		if e.Kind == history.Corrupted {
			fmt.Fprintf(out, "[corrupted] %s\n", e.Raw)
			continue
		}
		m := e.Message
		fmt.Fprintf(out, "[%s] %s: %s\n", m.Timestamp.Format("2006-01-02 15:04:05"), m.Type, m.Content)
	}
}

func recoverCommand(c *cli.Context) error {
	id, err := sessionArg(c)
	if err != nil {
		return err
	}
	sys, _, err := openSystem(c)
	if err != nil {
		return err
	}
	defer sys.Close()

	kept, err := sys.History().Recover(c.Context, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Kept %d messages\n", kept)
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
