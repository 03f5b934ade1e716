package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fenilsonani/reclaim/internal/growth"
	"github.com/fenilsonani/reclaim/internal/reporter"
)

var growthCmd = &cobra.Command{
	Use:   "growth [category]",
	Short: "Project how fast categories grow",
	Long: `Fits a linear trend to the per-category sizes recorded by past scans and
estimates how many days remain until the disk is full at that rate.`,
	Args: cobra.MaximumNArgs(1),
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

		var projections []growth.Projection
		if len(args) == 1 {
			p, err := engine.Growth.Project(cmd.Context(), args[0])
			if errors.Is(err, growth.ErrInsufficientData) {
				fmt.Fprintf(os.Stderr, "Not enough history for %s yet; run a few scans first.\n", args[0])
				return nil
			}
			if err != nil {
				return err
			}
			projections = append(projections, *p)
		} else {
			projections, err = engine.Growth.ProjectAll(cmd.Context())
			if err != nil {
				return err
			}
		}
		return reporter.New(os.Stdout, format).ReportGrowth(projections)
	},
}

func init() {
	growthCmd.Flags().StringVarP(&outputFmt, "output", "o", "table", "output format (table, summary, json, yaml)")
}
