// Package cmd contains the blog-cms command line.
package cmd

import (
	"blog-cms/config"
	"blog-cms/logging"

	"github.com/spf13/cobra"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "blog-cms",
	Short: "Blog article service",
	Long: `blog-cms serves the public blog and its admin article pages.

Example usage:
  blog-cms serve                    # Start the HTTP server on $PORT
  blog-cms serve --storage=memory   # Run without postgres
  blog-cms migrate                  # Create or update the schema
  blog-cms seed --owner-email=...   # Default categories and an owner account`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		logging.Init(cfg.LogLevel, cfg.Debug)
		return nil
	},
}

// Execute runs the command named on the command line.
func Execute() error {
	return rootCmd.Execute()
}
