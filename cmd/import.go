package cmd

import (
	"context"
	"fmt"

	"github.com/chrisdamba/salescount/internal/models"
	"github.com/chrisdamba/salescount/internal/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load POS csv exports into the line store",
	RunE: func(cmd *cobra.Command, args []string) error {
		itemsPath, _ := cmd.Flags().GetString("items")
		modifiersPath, _ := cmd.Flags().GetString("modifiers")
		location, _ := cmd.Flags().GetString("location")

		cfg, err := loadConfig()
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

		ctx := cmd.Context()
		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.close()

		if err := storeLines(ctx, st, ex.items, ex.modifiers); err != nil {
			return err
		}
		utils.Log.WithFields(logrus.Fields{
			"items":     len(ex.items),
			"modifiers": len(ex.modifiers),
			"rejected":  len(ex.rejections),
		}).Info("import finished")
		return nil
	},
}

// storeLines drops undated lines, which no report can use, and stores the rest.
func storeLines(ctx context.Context, st *store, items, modifiers []models.RawLine) error {
	for _, batch := range []struct {
		kind  models.LineKind
		lines []models.RawLine
	}{
		{models.LineKindItem, items},
		{models.LineKindModifier, modifiers},
	} {
		var dated []models.RawLine
		for _, l := range batch.lines {
			if l.OrderTime.IsZero() {
				continue
			}
			dated = append(dated, l)
		}
		if dropped := len(batch.lines) - len(dated); dropped > 0 {
			utils.Log.WithFields(logrus.Fields{"kind": batch.kind, "dropped": dropped}).Warn("lines without an order timestamp were not stored")
		}
		if len(dated) == 0 {
			continue
		}
		if err := st.lines.BulkCreate(ctx, batch.kind, dated); err != nil {
			return fmt.Errorf("failed to store %s lines: %w", batch.kind, err)
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().String("items", "", "Item selection export (csv)")
	importCmd.Flags().String("modifiers", "", "Modifier selection export (csv)")
	importCmd.Flags().String("location", "", "Location for exports without a location column")
}
