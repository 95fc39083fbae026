package cmd

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/chrisdamba/salescount/internal/factories"
	"github.com/chrisdamba/salescount/internal/models"
	"github.com/chrisdamba/salescount/internal/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Write synthetic POS exports for trying the tool out",
	RunE: func(cmd *cobra.Command, args []string) error {
		locations, _ := cmd.Flags().GetStringSlice("locations")
		from, _ := cmd.Flags().GetString("from")
		days, _ := cmd.Flags().GetInt("days")
		orders, _ := cmd.Flags().GetInt("orders")
		seed, _ := cmd.Flags().GetInt64("seed")
		dir, _ := cmd.Flags().GetString("dir")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		zone, err := cfg.Location()
		if err != nil {
			return err
		}
		start := time.Now().In(zone).AddDate(0, 0, -days)
		if from != "" {
			if start, err = parseDateFlag("from", from); err != nil {
				return err
			}
		}

		f := factories.NewLineFactory(seed)
		var items, modifiers []models.RawLine
		for _, location := range locations {
			for i := 0; i < days; i++ {
				it, mods := f.CreateDay(location, start.AddDate(0, 0, i), orders, zone)
				items = append(items, it...)
				modifiers = append(modifiers, mods...)
			}
		}

		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return err
		}
		if err := writeExport(filepath.Join(dir, "items.csv"), items, factories.WriteItemsCSV); err != nil {
			return err
		}
		if err := writeExport(filepath.Join(dir, "modifiers.csv"), modifiers, factories.WriteModifiersCSV); err != nil {
			return err
		}
		utils.Log.WithFields(logrus.Fields{
			"dir":       dir,
			"items":     len(items),
			"modifiers": len(modifiers),
		}).Info("sample exports written")
		return nil
	},
}

func writeExport(path string, lines []models.RawLine, write func(w io.Writer, lines []models.RawLine) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f, lines); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func init() {
	rootCmd.AddCommand(sampleCmd)
	sampleCmd.Flags().StringSlice("locations", []string{"Midtown", "Uptown"}, "Locations to generate")
	sampleCmd.Flags().String("from", "", "First date (YYYY-MM-DD); default is --days ago")
	sampleCmd.Flags().Int("days", 7, "Number of days")
	sampleCmd.Flags().Int("orders", 120, "Orders per location and day")
	sampleCmd.Flags().Int64("seed", 42, "Random seed")
	sampleCmd.Flags().String("dir", "sample", "Output directory")
}
