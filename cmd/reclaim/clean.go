package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fenilsonani/reclaim/internal/app"
	"github.com/fenilsonani/reclaim/internal/cleaner"
	"github.com/fenilsonani/reclaim/internal/config"
	"github.com/fenilsonani/reclaim/internal/reporter"
	"github.com/fenilsonani/reclaim/internal/risk"
)

var (
	cleanIDs       []string
	cleanPaths     []string
	cleanCategory  string
	cleanPermanent bool
	cleanRetention int
	dryRun         bool
	force          bool
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove items found by the last scan",
	Long: `Cleans items selected from the latest scan session. Items are moved to the
trash by default and can be restored with "reclaim trash restore".

Select items with --id (paths are taken from the session when --path is
omitted), with --path for unclassified paths, or with --category to pick
every safe item of one category.`,
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

		req, err := buildCleanRequest(engine)
		if err != nil {
			return err
		}
		if len(req.Paths) == 0 {
			fmt.Println("Nothing selected for cleanup.")
			return nil
		}

		if !force && !req.DryRun {
			action := "Move %d items to trash?"
			if !req.UseTrash {
				action = "Permanently delete %d items?"
			}
			if !confirm(os.Stdin, os.Stdout, fmt.Sprintf(action, len(req.Paths))) {
				fmt.Println("Cleanup cancelled")
				return nil
			}
		}

		result, err := engine.Clean(cmd.Context(), req)
		if err != nil {
			return fmt.Errorf("clean failed: %w", err)
		}

		rptr := reporter.New(os.Stdout, format)
		if err := rptr.ReportClean(result); err != nil {
			return fmt.Errorf("failed to generate report: %w", err)
		}
		if result.Failed > 0 {
			return fmt.Errorf("%d items failed", result.Failed)
		}
		return nil
	},
}

func buildCleanRequest(engine *app.Engine) (cleaner.Request, error) {
	req := cleaner.Request{
		IDs:           cleanIDs,
		Paths:         cleanPaths,
		UseTrash:      !cleanPermanent,
		RetentionDays: cleanRetention,
		DryRun:        dryRun,
	}

	needSession := cleanCategory != "" || (len(req.IDs) > 0 && len(req.Paths) == 0)
	if !needSession {
		return req, nil
	}

	sess, err := engine.Sessions.GetLatest()
	if errors.Is(err, config.ErrNoSession) {
		return req, errors.New("no scan session found, run \"reclaim scan\" first")
	}
	if err != nil {
		return req, err
	}
	req.Lookup = sess

	if cleanCategory != "" {
		if len(req.IDs) > 0 || len(req.Paths) > 0 {
			return req, errors.New("--category cannot be combined with --id or --path")
		}
		for _, item := range sess.Result.Items {
			if item.Category == cleanCategory && item.Risk == risk.Safe && item.Path != "" {
				req.IDs = append(req.IDs, item.ID)
				req.Paths = append(req.Paths, item.Path)
			}
		}
		return req, nil
	}

	req.Paths = make([]string, len(req.IDs))
	for i, id := range req.IDs {
		item, ok := sess.Find(id)
		if !ok {
			return req, fmt.Errorf("item %s is not in the latest session", id)
		}
		req.Paths[i] = item.Path
	}
	return req, nil
}

func init() {
	cleanCmd.Flags().StringSliceVar(&cleanIDs, "id", nil, "item ids from the latest scan")
	cleanCmd.Flags().StringSliceVar(&cleanPaths, "path", nil, "paths paired with --id, or unclassified paths")
	cleanCmd.Flags().StringVar(&cleanCategory, "category", "", "clean every safe item of a category")
	cleanCmd.Flags().BoolVar(&cleanPermanent, "permanent", false, "delete without the trash (always-safe kinds only)")
	cleanCmd.Flags().IntVar(&cleanRetention, "retention", 0, "days to keep trashed items (default from config)")
	cleanCmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be cleaned without changing anything")
	cleanCmd.Flags().BoolVarP(&force, "force", "f", false, "skip confirmation prompts")
	cleanCmd.Flags().StringVarP(&outputFmt, "output", "o", "table", "output format (table, summary, json, yaml)")
}
