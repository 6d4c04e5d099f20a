package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "semcache",
	Short: "Semcache - Semantic cache decision engine for LLM workloads",
	Long: `Semcache answers repeated LLM queries from a local cache instead of
re-calling the model, matching queries exactly, by semantic similarity,
or by classified intent.

Features:
  - Exact, semantic, and intent-based query resolution
  - LRU/LFU/FIFO eviction with byte-level accounting
  - Token and cost savings tracked per decision
  - Immutable audit records with analytics and recommendations

Environment Variables:
  OPENAI_API_KEY      For text -> embedding conversion
  PINECONE_API_KEY    For the Pinecone index backend
  QDRANT_URL          For the Qdrant index backend`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./semcache.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable verbose output")

	// Bind to viper
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("semcache")
	}

	// Read environment variables
	viper.SetEnvPrefix("SEMCACHE")
	viper.AutomaticEnv()

	// Read config file if it exists
	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}
