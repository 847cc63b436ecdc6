// Package cli wires the pipeline into the veilguard command tree.
package cli

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "veilguard",
	Short: "Privacy sanitization for text, images, audio, and video",
	Long: `Veilguard detects sensitive content with independent detectors, fuses
their findings into one authoritative set, mitigates every finding, and
records an append-only audit line for each processed input.`,
	SilenceUsage: true,
}

// Execute runs the command tree.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "veilguard.yaml", "path to config file")
}
