package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/fenilsonani/reclaim/internal/reporter"
	"github.com/fenilsonani/reclaim/internal/scanner"
	"github.com/fenilsonani/reclaim/internal/ui"
)

var (
	scanCategories []string
	scanTUI        bool
	scanTree       bool
	scanNoCache    bool
	scanMaxFiles   int
	outputFile     string
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the system for reclaimable space",
	Long: `Scans the enabled categories and reports what can be cleaned without
making any changes. The result is saved as the latest session so that
"reclaim clean --id" can refer to its items.

Use --tui for a live progress view or --tree for a grouped listing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := reporter.ParseFormat(outputFmt)
		if err != nil {
			return err
		}

		engine, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer engine.Close()

		opts := engine.ScanOptions(scanCategories)
		opts.NoCache = scanNoCache
		scan := func(ctx context.Context) (*scanner.Result, error) {
			res, _, err := engine.Scan(ctx, opts)
			return res, err
		}

		var result *scanner.Result
		switch {
		case scanTUI && term.IsTerminal(int(os.Stdout.Fd())):
			result, err = ui.RunScanTUI(cmd.Context(), engine.Progress, opts.Categories, scan)
		case format == reporter.FormatJSON || format == reporter.FormatYAML:
			result, err = scan(cmd.Context())
		default:
			result, err = ui.RunScanPlain(cmd.Context(), engine.Progress, os.Stderr, scan)
		}
		if result == nil {
			if err != nil {
				return fmt.Errorf("scan failed: %w", err)
			}
			return nil
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Scan incomplete: %v\n", err)
		}

		if scanTree {
			ui.PrintTree(os.Stdout, result.Items, scanMaxFiles)
			return nil
		}

		if outputFile != "" {
			if err := reporter.SaveToFile(result, outputFile, format); err != nil {
				return fmt.Errorf("failed to save report: %w", err)
			}
			fmt.Printf("Report saved to: %s\n", outputFile)
			return nil
		}

		rptr := reporter.New(os.Stdout, format)
		if err := rptr.Report(result); err != nil {
			return fmt.Errorf("failed to generate report: %w", err)
		}
		return nil
	},
}

func init() {
	scanCmd.Flags().StringSliceVarP(&scanCategories, "categories", "c", nil, "categories to scan (default: enabled in config)")
	scanCmd.Flags().StringVarP(&outputFmt, "output", "o", "table", "output format (table, summary, json, yaml)")
	scanCmd.Flags().StringVar(&outputFile, "file", "", "save report to file")
	scanCmd.Flags().BoolVar(&scanTUI, "tui", false, "show an interactive progress view")
	scanCmd.Flags().BoolVarP(&scanTree, "tree", "t", false, "print items grouped by directory")
	scanCmd.Flags().IntVar(&scanMaxFiles, "tree-max", 10, "items shown per directory in tree view")
	scanCmd.Flags().BoolVar(&scanNoCache, "no-cache", false, "ignore cached scan results")
}
