package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/fenilsonani/reclaim/internal/reporter"
	"github.com/fenilsonani/reclaim/internal/trash"
	"github.com/fenilsonani/reclaim/pkg/utils"
)

var trashCmd = &cobra.Command{
	Use:   "trash",
	Short: "Inspect and manage the recoverable trash",
}

var trashListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List trashed items",
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

		items, err := engine.Trash.List(cmd.Context())
		if err != nil {
			return err
		}
		stats, err := engine.Trash.Stats(cmd.Context())
		if err != nil {
			return err
		}
		return reporter.New(os.Stdout, format).ReportTrash(items, stats)
	},
}

var trashRestoreCmd = &cobra.Command{
	Use:   "restore <id>...",
	Short: "Move trashed items back to their original paths",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer engine.Close()

		var failed int
		for _, id := range args {
			item, err := engine.Trash.Restore(cmd.Context(), id)
			switch {
			case errors.Is(err, trash.ErrRestoreConflict):
				failed++
				fmt.Fprintf(os.Stderr, "✗ %s: original path is occupied\n", id)
			case err != nil:
				failed++
				fmt.Fprintf(os.Stderr, "✗ %s: %v\n", id, err)
			default:
				fmt.Printf("✓ Restored %s (%s)\n", item.OriginalPath, utils.FormatBytes(item.Size))
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d items not restored", failed, len(args))
		}
		return nil
	},
}

var trashDeleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Permanently delete trashed items",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer engine.Close()

		if !force && !confirm(os.Stdin, os.Stdout, fmt.Sprintf("Permanently delete %d trashed items?", len(args))) {
			fmt.Println("Cancelled")
			return nil
		}

		var failed int
		for _, id := range args {
			item, err := engine.Trash.DeleteForever(cmd.Context(), id)
			if err != nil {
				failed++
				fmt.Fprintf(os.Stderr, "✗ %s: %v\n", id, err)
				continue
			}
			fmt.Printf("✓ Deleted %s (%s)\n", item.OriginalPath, utils.FormatBytes(item.Size))
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d items not deleted", failed, len(args))
		}
		return nil
	},
}

var trashEmptyCmd = &cobra.Command{
	Use:   "empty",
	Short: "Permanently delete everything in the trash",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer engine.Close()

		if !force && !confirm(os.Stdin, os.Stdout, "Permanently delete everything in the trash?") {
			fmt.Println("Cancelled")
			return nil
		}
		n, freed, err := engine.Trash.Empty(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Emptied trash: %d items, %s freed\n", n, utils.FormatBytes(freed))
		return nil
	},
}

var trashSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Purge expired items and enforce the size cap",
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

		res, err := engine.Trash.Sweep(cmd.Context(), time.Now())
		if err != nil {
			return err
		}
		return reporter.New(os.Stdout, format).ReportSweep(res)
	},
}

func init() {
	trashCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "output format (table, summary, json, yaml)")
	trashDeleteCmd.Flags().BoolVarP(&force, "force", "f", false, "skip confirmation prompts")
	trashEmptyCmd.Flags().BoolVarP(&force, "force", "f", false, "skip confirmation prompts")

	trashCmd.AddCommand(trashListCmd)
	trashCmd.AddCommand(trashRestoreCmd)
	trashCmd.AddCommand(trashDeleteCmd)
	trashCmd.AddCommand(trashEmptyCmd)
	trashCmd.AddCommand(trashSweepCmd)
}
