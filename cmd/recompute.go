package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/chrisdamba/salescount/internal/batch"
	"github.com/chrisdamba/salescount/internal/models"
	"github.com/chrisdamba/salescount/internal/report"
	"github.com/chrisdamba/salescount/internal/utils"
	"github.com/hashicorp/go-multierror"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var recomputeCmd = &cobra.Command{
	Use:   "recompute",
	Short: "Rebuild stored reports from the line store",
	Long: `Rebuilds the report of every location and business date in [--from, --to]
that has stored lines, using the current rules and interval settings, and
replaces what the report store held for them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		from, _ := cmd.Flags().GetString("from")
		to, _ := cmd.Flags().GetString("to")
		start, end, err := dateRange(from, to)
		if err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		engine, err := newEngine(ctx, cfg)
		if err != nil {
			return err
		}
		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.close()

		return runRecompute(ctx, cfg, st, engine, start, end)
	},
}

func runRecompute(ctx context.Context, cfg *models.Config, st *store, engine *report.Engine, from, to time.Time) error {
	parts, err := batch.Plan(ctx, st.lines, engine, from, to)
	if err != nil {
		return err
	}
	if len(parts) == 0 {
		utils.Log.Info("no stored lines in range")
		return nil
	}

	bar := progressbar.Default(int64(len(parts)), "recomputing")
	result := batch.Recompute(ctx, batch.Config{
		Lines:       st.lines,
		Reports:     st.reports,
		Engine:      engine,
		Partitions:  parts,
		Concurrency: cfg.Concurrency,
		Log:         utils.Log,
		OnDone: func(p models.Partition, rep *models.Report, err error) {
			_ = bar.Add(1)
		},
	})
	_ = bar.Finish()

	utils.Log.WithFields(logrus.Fields{
		"reports": len(result.Reports),
		"failed":  len(result.Errors),
	}).Info("recompute finished")

	var errs *multierror.Error
	for _, err := range result.Errors {
		errs = multierror.Append(errs, err)
	}
	if err := errs.ErrorOrNil(); err != nil {
		return fmt.Errorf("recompute incomplete: %w", err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(recomputeCmd)
	recomputeCmd.Flags().String("from", "", "First business date (YYYY-MM-DD)")
	recomputeCmd.Flags().String("to", "", "Last business date (YYYY-MM-DD); defaults to --from")
	_ = recomputeCmd.MarkFlagRequired("from")
}
