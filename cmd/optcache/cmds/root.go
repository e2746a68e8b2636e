// Package cmds holds the optcache command line: the API server plus maintenance commands
// working on the durable snapshot store.
package cmds

import (
	"os"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const (
	ConfigPathEnvKey = "OPTCACHE_CONFIG"
	LogLevelEnvKey   = "LOG_LEVEL"
	LogFormatEnvKey  = "LOG_FORMAT"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "optcache",
	Short: "Reference data options cache",
	Long:  `Serves dropdown options (clients, categories, items, sizes, suppliers) from a shared cache in front of the hosted database.`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if err := godotenv.Load(envFile); err != nil {
			log.Debug("The .env file not found.")
		}
		setupLogging()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before anything else")
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(prefetchCmd())
	rootCmd.AddCommand(invalidateCmd())
	rootCmd.AddCommand(purgeCmd())
}

// Execute runs the root command. It is called once by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogging() {
	if os.Getenv(LogFormatEnvKey) == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	}
	lvl, err := log.ParseLevel(os.Getenv(LogLevelEnvKey))
	if err != nil {
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}
