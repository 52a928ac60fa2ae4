package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"siteembed/internal/config"
	"siteembed/internal/pipeline"

	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:           "siteembed",
		Short:         "Embed JSON data files into the site script",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runBuild,
	}
	configPath string
	dataDir    string
	targetPath string
	reportPath string
	noGit      bool
	since      string
)

var errStale = errors.New("target is out of date")

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Directory containing the JSON data files")
	rootCmd.PersistentFlags().StringVar(&targetPath, "target", "", "Script file to rewrite")
	rootCmd.PersistentFlags().StringVar(&reportPath, "report", "", "Write a JSON build report to this path")
	rootCmd.Flags().BoolVar(&noGit, "no-git", false, "Do not query git for changed lines")
	buildCmd.Flags().BoolVar(&noGit, "no-git", false, "Do not query git for changed lines")
	checkCmd.Flags().StringVar(&since, "since", "", "Also list datasets whose files changed since this git ref")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(datasetsCmd)
}

// loadConfig applies CLI flag overrides on top of the config file.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if dataDir != "" {
		cfg.Data.Dir = dataDir
	}
	if targetPath != "" {
		cfg.Target.Path = targetPath
	}
	if reportPath != "" {
		cfg.Report.Path = reportPath
	}
	return cfg, nil
}

func run(ctx context.Context, out io.Writer, opts pipeline.Options) (*pipeline.Result, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	b := pipeline.NewBuilder(cfg, out)
	res, runErr := b.Run(ctx, opts)

	if cfg.Report.Path != "" && b.Report() != nil {
		if err := b.Report().Save(cfg.Report.Path); err != nil {
			log.Printf("⚠️  Failed to save build report: %v", err)
		}
	}
	return res, runErr
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Rewrite the embedded data region of the target script",
	RunE:  runBuild,
}

func runBuild(cmd *cobra.Command, args []string) error {
	_, err := run(cmd.Context(), cmd.OutOrStdout(), pipeline.Options{GitHints: !noGit})
	return err
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the target script is up to date without writing it",
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := run(cmd.Context(), cmd.OutOrStdout(), pipeline.Options{DryRun: true, Since: since})
		if err != nil {
			return err
		}
		if res.Changed {
			return errStale
		}
		return nil
	},
}

var datasetsCmd = &cobra.Command{
	Use:   "datasets",
	Short: "List the configured datasets and whether their files exist",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "📂 Data directory: %s\n", cfg.Data.Dir)
		for _, ds := range cfg.Registry() {
			path := ds.Path
			if !filepath.IsAbs(path) {
				path = filepath.Join(cfg.Data.Dir, path)
			}
			status := "✓"
			if _, err := os.Stat(path); err != nil {
				status = "✗"
			}
			fmt.Fprintf(out, "  %s %-12s %s\n", status, ds.ID, path)
		}
		return nil
	},
}
