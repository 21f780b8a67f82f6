package cmd

import (
	"github.com/spf13/cobra"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "open-index-search",
	Short: "A uniqueness-enforcing document index server",
	Long: `Open Index Search exposes document collections through uniform index
facades: validated inserts, idempotent upserts, paginated search and
composed join views, backed by local search indexes.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
}
