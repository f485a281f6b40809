package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/megaplan/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "megaplan",
	Short: "Multi-agent debate planner",
	Long: `Megaplan runs a 7-stage multi-agent debate pipeline over a feature
request: an understander stage, parallel bold/paranoia proposers, parallel
critique and reducer stages, and a final consensus synthesis that produces
an implementation plan. Plans can be published to GitHub issues and refined
across runs.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/megaplan/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/megaplan")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("MEGAPLAN")
	// Replace dots with underscores for nested keys in env vars
	// e.g., MEGAPLAN_PIPELINE_OUTPUT_DIR for pipeline.output_dir
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
