package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile    string
	envFile    string
	dryRun     bool
	sinceHours int
	workers    int
	ledgerPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "shipnotify",
	Short: "Shipnotify - shipment notifications for personal orders",
	Long: `Shipnotify polls the order API for recently shipped personal orders,
uploads each order's invoice to Google Drive and sends the customer a
WhatsApp message with the delivery estimate, invoice link and tracking
numbers. A local processed-order ledger keeps repeated runs from
notifying the same customer twice.

Intended to be invoked from a scheduler; "shipnotify run" performs one
batch and exits.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.shipnotify.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "env file with credentials (default .env if present)")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", true, "send all notifications to the operator phone instead of customers")
	rootCmd.PersistentFlags().IntVar(&sinceHours, "since-hours", 48, "lookback window for order polling, in hours")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 4, "orders processed concurrently (1 = sequential)")
	rootCmd.PersistentFlags().StringVar(&ledgerPath, "ledger", "", "processed-order ledger file (overrides LEDGER_PATH)")

	// Bind flags to viper
	viper.BindPFlag("dry-run", rootCmd.PersistentFlags().Lookup("dry-run"))
	viper.BindPFlag("since-hours", rootCmd.PersistentFlags().Lookup("since-hours"))
	viper.BindPFlag("workers", rootCmd.PersistentFlags().Lookup("workers"))
	viper.BindPFlag("ledger", rootCmd.PersistentFlags().Lookup("ledger"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	// Credentials land in the process env before config.FromEnv runs.
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			fmt.Fprintln(os.Stderr, "Could not load env file:", err)
		}
	} else {
		_ = godotenv.Load() // .env is optional
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".shipnotify")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	// Override global variables with config values if flags weren't explicitly set
	if !rootCmd.PersistentFlags().Changed("dry-run") {
		if viper.IsSet("dry-run") {
			dryRun = viper.GetBool("dry-run")
		}
	}
	if !rootCmd.PersistentFlags().Changed("since-hours") {
		if v := viper.GetInt("since-hours"); v > 0 {
			sinceHours = v
		}
	}
	if !rootCmd.PersistentFlags().Changed("workers") {
		if v := viper.GetInt("workers"); v > 0 {
			workers = v
		}
	}
	if !rootCmd.PersistentFlags().Changed("ledger") {
		if v := viper.GetString("ledger"); v != "" {
			ledgerPath = v
		}
	}
}
