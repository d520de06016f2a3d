// Package cmd implements the gateway's command-line surface, grounded
// on the teacher's cmd/altmount/cmd cobra layout.
package cmd

import (
	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "gateway",
	Short: "WebDAV protocol gateway in front of a file-management backend",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to config.yaml")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
