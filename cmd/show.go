package cmd

import (
	"errors"
	"fmt"

	"github.com/chrisdamba/salescount/internal/models"
	"github.com/chrisdamba/salescount/internal/repositories"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Write stored reports to the configured destination",
	Long: `Reads the stored report of --location on every business date in [--from, --to]
and writes it to the output destination. With --list it prints the stored
(location, date) pairs instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		location, _ := cmd.Flags().GetString("location")
		from, _ := cmd.Flags().GetString("from")
		to, _ := cmd.Flags().GetString("to")
		list, _ := cmd.Flags().GetBool("list")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.close()

		if list {
			parts, err := st.reports.ListReports(ctx)
			if err != nil {
				return err
			}
			for _, p := range parts {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", p.Location, p.Date.Format(models.DateLayout))
			}
			return nil
		}

		if location == "" || from == "" {
			return errors.New("show needs --location and --from, or --list")
		}
		start, end, err := dateRange(from, to)
		if err != nil {
			return err
		}

		var reports []*models.Report
		for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
			rep, err := st.reports.GetReport(ctx, location, d)
			if errors.Is(err, repositories.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			reports = append(reports, rep)
		}
		if len(reports) == 0 {
			return fmt.Errorf("no stored report for %s between %s and %s: %w",
				location, start.Format(models.DateLayout), end.Format(models.DateLayout), repositories.ErrNotFound)
		}
		return writeReports(ctx, cfg, reports)
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().String("location", "", "Location to show")
	showCmd.Flags().String("from", "", "First business date (YYYY-MM-DD)")
	showCmd.Flags().String("to", "", "Last business date (YYYY-MM-DD); defaults to --from")
	showCmd.Flags().Bool("list", false, "List stored reports")
}
