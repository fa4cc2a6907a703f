package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/ekaya-ask/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-ask/pkg/cache"
	"github.com/ekaya-inc/ekaya-ask/pkg/mcp"
	"github.com/ekaya-inc/ekaya-ask/pkg/mcp/tools"
	"github.com/ekaya-inc/ekaya-ask/pkg/schema"
)

func newMCPCmd(load configLoader) *cobra.Command {
	var files []string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the MCP tools over stdio.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			// zap writes to stderr, stdout carries the protocol
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			datasets, err := datasource.NewManager(cfg.Upload.Dir, cfg.Upload.MaxBytes, logger)
			if err != nil {
				return err
			}
			defer datasets.CloseAll()
			for _, path := range files {
				if _, err := datasets.OpenPath(cmd.Context(), path); err != nil {
					return err
				}
			}

			sessions := newSessionStore(cfg, a.clock)
			defer sessions.Close()

			s := mcp.NewServer("ekaya-ask", cfg.Version, logger)
			tools.RegisterAskTools(s.MCP(), &tools.AskToolDeps{
				Datasets: datasets,
				Pipeline: a.orchestrator,
				Sessions: sessions,
				Logger:   logger,
			})
			tools.RegisterHealthTool(s.MCP(), cfg.Version, datasets)
			return s.ServeStdio()
		},
	}
	cmd.Flags().StringSliceVarP(&files, "file", "f", nil, "dataset to expose (repeatable)")
	return cmd
}

func newAskCmd(load configLoader) *cobra.Command {
	var (
		file   string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "ask --file <dataset> <question>",
		Short: "Answer one question about a dataset.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx := cmd.Context()
			src, err := openFile(ctx, file)
			if err != nil {
				return err
			}
			defer src.Close()

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			bundle := a.orchestrator.ResolveSource(ctx, nil, strings.Join(args, " "), src)
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(bundle)
			}
			printBundle(cmd.OutOrStdout(), bundle)
			if bundle.Failed {
				return fmt.Errorf("question could not be answered")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "SQLite database or CSV file to query")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result bundle as JSON")
	return cmd
}

func newSchemaCmd(load configLoader) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "schema --file <dataset>",
		Short: "Print the tables and columns of a dataset.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			src, err := openFile(cmd.Context(), file)
			if err != nil {
				return err
			}
			defer src.Close()

			text, err := schema.NewIntrospector(logger).Describe(cmd.Context(), src)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), text)
			return err
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "SQLite database or CSV file")
	return cmd
}

func newCacheCmd(load configLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the query cache.",
	}

	run := func(op func(ctx context.Context, c *cache.Cache, policy cache.Policy) (int, error), verb string) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			clock := clockwork.NewRealClock()
			store, err := openCacheStore(cmd.Context(), cfg, clock, logger)
			if err != nil {
				return err
			}
			c := cache.New(store, clock, logger)
			defer func() { _ = c.Close() }()

			n, err := op(cmd.Context(), c, cfg.Cache.Policy())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %d cached answers\n", verb, n)
			return err
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "purge",
			Short: "Remove every cached answer.",
			Args:  cobra.NoArgs,
			RunE: run(func(ctx context.Context, c *cache.Cache, _ cache.Policy) (int, error) {
				return c.Purge(ctx)
			}, "Purged"),
		},
		&cobra.Command{
			Use:   "evict",
			Short: "Apply the eviction policy once.",
			Args:  cobra.NoArgs,
			RunE: run(func(ctx context.Context, c *cache.Cache, policy cache.Policy) (int, error) {
				return c.Evict(ctx, policy)
			}, "Evicted"),
		},
	)
	return cmd
}

func newConfigCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration without secrets.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return fmt.Errorf("failed to encode config: %w", err)
			}
			return enc.Close()
		},
	}
}
