package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/chrisdamba/salescount/internal/models"
	"github.com/chrisdamba/salescount/internal/utils"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "salescount",
	Short: "Counts POS sales by menu category, service and time interval",
	Long: `salescount turns point-of-sale item and modifier exports into per-interval
sales counts for a fixed set of menu categories, with Lunch and Dinner subtotals
and a grand total per location and business day.`,
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// An interrupt cancels the command's context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.salescount.yaml)")
	flags.StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
	flags.Int("interval", 60, "Interval width in minutes (30 or 60)")
	flags.String("early-morning", models.EarlyMorningSameDayDinner, "Where orders before lunch go: same_day_dinner, prior_day_dinner or overnight")
	flags.String("rules", "", "Category rules file (yaml, json, toml or csv)")
	flags.String("store", "sqlite", "Line and report store: sqlite or postgres")
	flags.StringP("output", "o", "console", "Report destination: console, csv, json, parquet or kafka")
	flags.String("tz", "UTC", "Time zone of order timestamps without an offset")

	cobra.CheckErr(viper.BindPFlag("interval_minutes", flags.Lookup("interval")))
	cobra.CheckErr(viper.BindPFlag("service.early_morning_policy", flags.Lookup("early-morning")))
	cobra.CheckErr(viper.BindPFlag("rules_file", flags.Lookup("rules")))
	cobra.CheckErr(viper.BindPFlag("store.driver", flags.Lookup("store")))
	cobra.CheckErr(viper.BindPFlag("output.destination", flags.Lookup("output")))
	cobra.CheckErr(viper.BindPFlag("time_zone", flags.Lookup("tz")))
}

// initConfig points viper at the config file; loadConfig does the reading.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		cobra.CheckErr(err)
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigName(".salescount")
		viper.SetConfigType("yaml")
	}

	levelString, _ := rootCmd.PersistentFlags().GetString("loglevel")
	if err := utils.SetLogLevel(levelString); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*models.Config, error) {
	cfg, err := models.LoadConfig(viper.GetViper(), cfgFile)
	if err != nil {
		return nil, err
	}
	if used := viper.ConfigFileUsed(); used != "" {
		utils.Log.WithField("file", used).Debug("using config file")
	}
	return cfg, nil
}
