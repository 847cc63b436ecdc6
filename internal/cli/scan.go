package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/veilguard-ai/veilguard/internal/pipeline"
)

func init() {
	rootCmd.AddCommand(scanTextCmd, scanImageCmd, scanAudioCmd, scanVideoCmd, scanFolderCmd)
}

var scanTextCmd = &cobra.Command{
	Use:   "scan-text <file>",
	Short: "Sanitize a text document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOne(cmd, args[0], func(a *app, path string) (*pipeline.Result, error) {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read input: %w", err)
			}
			return a.manager.ProcessText(cmd.Context(), path, string(data))
		})
	},
}

var scanImageCmd = &cobra.Command{
	Use:   "scan-image <file>",
	Short: "Sanitize an image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOne(cmd, args[0], func(a *app, path string) (*pipeline.Result, error) {
			return a.manager.ProcessImage(cmd.Context(), path)
		})
	},
}

var scanAudioCmd = &cobra.Command{
	Use:   "scan-audio <file>",
	Short: "Sanitize an audio input via its companion transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOne(cmd, args[0], func(a *app, path string) (*pipeline.Result, error) {
			return a.manager.ProcessAudio(cmd.Context(), path)
		})
	},
}

var scanVideoCmd = &cobra.Command{
	Use:   "scan-video <file>",
	Short: "Sanitize a video's pre-extracted frames",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOne(cmd, args[0], func(a *app, path string) (*pipeline.Result, error) {
			return a.manager.ProcessVideo(cmd.Context(), path)
		})
	},
}

var scanFolderCmd = &cobra.Command{
	Use:   "scan-folder <dir>",
	Short: "Sanitize every supported file under a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.close(cmd.Context())

		results, err := a.manager.ProcessFolder(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, results)
	},
}

// runOne builds the app, processes a single input, and prints its result.
// A failed input still prints its terminal result before the error exits
// the process nonzero.
func runOne(cmd *cobra.Command, path string, fn func(*app, string) (*pipeline.Result, error)) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close(cmd.Context())

	res, err := fn(a, path)
	if res != nil {
		if perr := printJSON(cmd, res); perr != nil {
			return perr
		}
	}
	return err
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
