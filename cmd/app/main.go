package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"text/tabwriter"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/cvdesk/internal"
	"github.com/starford/cvdesk/internal/analysisservice"
	pkgconfig "github.com/starford/cvdesk/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
		internal.WithVersion(version),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func runMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx,
		internal.WithConfig(cfg),
		internal.WithVersion(version),
		internal.WithLogOutput(os.Stderr),
	)
}

// withHistory opens the history for a one-shot command. Logs go to stderr so
// stdout carries only the command output.
func withHistory(fn func(ctx context.Context, cmd *cli.Command, svc *analysisservice.Service) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		svc, closeFn, err := internal.OpenHistory(ctx,
			internal.WithConfig(cfg),
			internal.WithLogOutput(os.Stderr),
		)
		if err != nil {
			return err
		}
		defer closeFn()
		return fn(ctx, cmd, svc)
	}
}

func historyList(_ context.Context, _ *cli.Command, svc *analysisservice.Service) error {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tCREATED\tFILE\tPROVIDER\tSECTIONS\tATS\tDOCUMENT")
	for _, r := range svc.History() {
		ats := "-"
		if r.ATSScore != nil {
			ats = strconv.Itoa(*r.ATSScore)
		}
		doc := "none"
		switch {
		case r.Legacy:
			doc = "inline"
		case r.HasDocument:
			doc = "stored"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\t%s\n",
			r.Index, r.CreatedAt, r.Filename, r.Provider, r.SectionCount, ats, doc)
	}
	return tw.Flush()
}

func historyClear(ctx context.Context, cmd *cli.Command, svc *analysisservice.Service) error {
	if !cmd.Bool("yes") {
		return errors.New("refusing to clear history without --yes")
	}
	return svc.Clear(ctx)
}

func historyExport(_ context.Context, cmd *cli.Command, svc *analysisservice.Service) error {
	data, err := svc.ExportHistory()
	if err != nil {
		return err
	}
	if out := cmd.Args().First(); out != "" && out != "-" {
		return os.WriteFile(out, data, 0o644)
	}
	_, err = os.Stdout.Write(append(data, '\n'))
	return err
}

func historyImport(ctx context.Context, cmd *cli.Command, svc *analysisservice.Service) error {
	in := cmd.Args().First()
	if in == "" {
		return errors.New("usage: history import <file>")
	}
	data, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	added, err := svc.Import(ctx, data)
	if err != nil {
		return err
	}
	fmt.Printf("imported %d record(s)\n", added)
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:    "cvdesk",
		Usage:   "Resume analysis desk: submit resumes to an AI backend and keep the feedback history",
		Version: version,
		Action:  run,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API (default)",
				Action: run,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the history to LLM clients over MCP stdio",
				Action: runMCP,
			},
			{
				Name:  "history",
				Usage: "Inspect and maintain the saved analyses",
				Commands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "List saved analyses, newest first",
						Action: withHistory(historyList),
					},
					{
						Name:   "clear",
						Usage:  "Delete all saved analyses",
						Action: withHistory(historyClear),
						Flags: []cli.Flag{
							&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "Confirm"},
						},
					},
					{
						Name:      "export",
						Usage:     "Write the history as JSON",
						ArgsUsage: "[file]",
						Action:    withHistory(historyExport),
					},
					{
						Name:      "import",
						Usage:     "Merge a JSON history export",
						ArgsUsage: "<file>",
						Action:    withHistory(historyImport),
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
