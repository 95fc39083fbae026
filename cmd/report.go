package cmd

import (
	"context"
	"fmt"

	"github.com/chrisdamba/salescount/internal/models"
	"github.com/chrisdamba/salescount/internal/output"
	"github.com/chrisdamba/salescount/internal/report"
	"github.com/chrisdamba/salescount/internal/utils"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Build reports straight from POS csv exports",
	Long: `Reads an item selection export and/or a modifier export and writes one report
per location and business date found in them. With --date and --location only
that report is built.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		itemsPath, _ := cmd.Flags().GetString("items")
		modifiersPath, _ := cmd.Flags().GetString("modifiers")
		location, _ := cmd.Flags().GetString("location")
		date, _ := cmd.Flags().GetString("date")
		save, _ := cmd.Flags().GetBool("save")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		engine, err := newEngine(ctx, cfg)
		if err != nil {
			return err
		}
		opts, err := ingestOptions(cfg, location)
		if err != nil {
			return err
		}
		ex, err := readExports(itemsPath, modifiersPath, opts)
		if err != nil {
			return err
		}

		reports, err := buildReports(engine, ex, location, date)
		if err != nil {
			return err
		}
		if len(reports) == 0 {
			utils.Log.Warn("no dated lines found in the input")
			return nil
		}

		if save {
			if err := saveReports(ctx, cfg, reports); err != nil {
				return err
			}
		}
		return writeReports(ctx, cfg, reports)
	},
}

// buildReports runs the engine for one date, or for every partition in the
// input when date is empty, and adds the unreadable rows to their audits.
func buildReports(engine *report.Engine, ex *exports, location, date string) ([]*models.Report, error) {
	var reports []*models.Report
	if date != "" {
		d, err := parseDateFlag("date", date)
		if err != nil {
			return nil, err
		}
		reports = append(reports, engine.Run(location, d, ex.items, ex.modifiers))
	} else {
		for _, rep := range engine.RunAll(ex.items, ex.modifiers) {
			if location == "" || sameLocation(location, rep.Location) {
				reports = append(reports, rep)
			}
		}
	}
	engine.AttachRejections(reports, ex.rejections)
	return reports, nil
}

func saveReports(ctx context.Context, cfg *models.Config, reports []*models.Report) error {
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	for _, rep := range reports {
		if err := st.reports.ReplaceReport(ctx, rep); err != nil {
			return fmt.Errorf("failed to save %s %s: %w", rep.Location, rep.DateString(), err)
		}
	}
	utils.Log.WithField("reports", len(reports)).Info("reports saved")
	return nil
}

func writeReports(ctx context.Context, cfg *models.Config, reports []*models.Report) error {
	dest, err := output.NewDestination(ctx, cfg)
	if err != nil {
		return err
	}

	var result *multierror.Error
	for _, rep := range reports {
		utils.Log.WithFields(logrus.Fields{
			"location":     rep.Location,
			"date":         rep.DateString(),
			"rows":         len(rep.Rows),
			"skipped":      rep.Audit.Skipped.Count,
			"unclassified": rep.Audit.Unclassified.Lines,
		}).Debug("writing report")
		if err := dest.WriteReport(ctx, rep); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s %s: %w", rep.Location, rep.DateString(), err))
		}
	}
	if err := dest.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().String("items", "", "Item selection export (csv)")
	reportCmd.Flags().String("modifiers", "", "Modifier selection export (csv)")
	reportCmd.Flags().String("location", "", "Only report this location; also fills exports without a location column")
	reportCmd.Flags().String("date", "", "Business date to report (YYYY-MM-DD); default is every date in the input")
	reportCmd.Flags().Bool("save", false, "Also store the reports in the report store")
}
