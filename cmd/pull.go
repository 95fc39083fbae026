package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/chrisdamba/salescount/internal/models"
	"github.com/chrisdamba/salescount/internal/pos"
	"github.com/chrisdamba/salescount/internal/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Pull order lines from the POS API into the line store",
	Long: `Pulls every order of the business dates in [--from, --to] from Toast for the
given restaurants (default: those in pos.locations, else every restaurant the
credentials can see). With --generic-path the lines come from a plain JSON
sales endpoint for --location instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		from, _ := cmd.Flags().GetString("from")
		to, _ := cmd.Flags().GetString("to")
		restaurants, _ := cmd.Flags().GetStringSlice("restaurant")
		genericPath, _ := cmd.Flags().GetString("generic-path")
		location, _ := cmd.Flags().GetString("location")
		recompute, _ := cmd.Flags().GetBool("recompute")

		start, end, err := dateRange(from, to)
		if err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		client, err := newPOSClient(ctx, cfg, genericPath != "")
		if err != nil {
			return err
		}
		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.close()

		if genericPath != "" {
			if location == "" {
				return fmt.Errorf("--generic-path needs --location")
			}
			items, modifiers, rejections, err := client.PullGeneric(ctx, genericPath, location, start, end)
			if err != nil {
				return err
			}
			logRejections(genericPath, rejections)
			if err := storeLines(ctx, st, items, modifiers); err != nil {
				return err
			}
		} else {
			if len(restaurants) == 0 {
				if restaurants, err = restaurantGUIDs(ctx, client, cfg); err != nil {
					return err
				}
			}
			for _, guid := range restaurants {
				for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
					items, modifiers, err := client.PullOrders(ctx, guid, d)
					if err != nil {
						return fmt.Errorf("restaurant %s on %s: %w", guid, d.Format(models.DateLayout), err)
					}
					if err := storeLines(ctx, st, items, modifiers); err != nil {
						return err
					}
				}
			}
		}

		if recompute {
			engine, err := newEngine(ctx, cfg)
			if err != nil {
				return err
			}
			return runRecompute(ctx, cfg, st, engine, start, end)
		}
		return nil
	},
}

func restaurantGUIDs(ctx context.Context, client *pos.Client, cfg *models.Config) ([]string, error) {
	if len(cfg.POS.Locations) > 0 {
		guids := make([]string, 0, len(cfg.POS.Locations))
		for guid := range cfg.POS.Locations {
			guids = append(guids, guid)
		}
		sort.Strings(guids)
		return guids, nil
	}

	found, err := client.ListRestaurants(ctx)
	if err != nil {
		return nil, err
	}
	guids := make([]string, 0, len(found))
	for _, r := range found {
		utils.Log.WithFields(logrus.Fields{"guid": r.GUID, "name": r.Name}).Debug("found restaurant")
		guids = append(guids, r.GUID)
	}
	return guids, nil
}

func init() {
	rootCmd.AddCommand(pullCmd)
	pullCmd.Flags().String("from", "", "First business date (YYYY-MM-DD)")
	pullCmd.Flags().String("to", "", "Last business date (YYYY-MM-DD); defaults to --from")
	pullCmd.Flags().StringSlice("restaurant", nil, "Toast restaurant GUIDs to pull")
	pullCmd.Flags().String("generic-path", "", "Path of a plain JSON sales endpoint under pos.base_url")
	pullCmd.Flags().String("location", "", "Location name for --generic-path lines")
	pullCmd.Flags().Bool("recompute", false, "Rebuild the stored reports of the pulled dates")
	_ = pullCmd.MarkFlagRequired("from")
}
