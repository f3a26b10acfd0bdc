package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jeeftor/deskpilot/internal/capture"
	"github.com/jeeftor/deskpilot/internal/logging"
)

// screenshotCmd represents the screenshot command
var screenshotCmd = &cobra.Command{
	Use:   "screenshot [output-file]",
	Short: "Capture the desktop to a PNG file",
	Long: `Capture the full desktop and save it as a PNG file. Without an
argument the screenshot lands in the configured screenshot directory
with a timestamped name.

Examples:
  deskpilot screenshot
  deskpilot screenshot before-login.png`,
	Args: cobra.RangeArgs(0, 1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var outputDir, filename string
		if len(args) > 0 {
			outputDir = filepath.Dir(args[0])
			filename = filepath.Base(args[0])
		} else {
			outputDir = filepath.Join(GetDataDir(), "screenshots")
		}

		svc := capture.NewService(outputDir)

		var path string
		err := logging.LogOperation("screenshot", "", func() error {
			data, err := svc.CaptureFullScreen()
			if err != nil {
				return fmt.Errorf("capturing screen: %w", err)
			}
			path, err = svc.SaveScreenshot(data, filename)
			return err
		})
		if err != nil {
			return err
		}

		if stat, statErr := os.Stat(path); statErr == nil {
			logging.Success("Screenshot saved to %s (%d bytes)", path, stat.Size())
		} else {
			logging.Success("Screenshot saved to %s", path)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(screenshotCmd)
}
