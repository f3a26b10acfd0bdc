package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeeftor/deskpilot/internal/capture"
	"github.com/jeeftor/deskpilot/internal/constants"
	"github.com/jeeftor/deskpilot/internal/logging"
	"github.com/jeeftor/deskpilot/internal/recognition"
)

var findThreshold float64

// findCmd looks for a stored template on the current screen. Handy for
// tuning thresholds before wiring a template into a script.
var findCmd = &cobra.Command{
	Use:   "find [template-id]",
	Short: "Search the current screen for a stored template",
	Long: `Capture the desktop and search it for a stored template image.
Reports the best match location and confidence even when the match
falls below the threshold, which makes threshold tuning easy.

Exits 0 when the template is found, 1 when it is not.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := OpenStorage()
		if err != nil {
			return err
		}
		template, err := store.GetTemplateImage(args[0])
		if err != nil {
			return err
		}
		if len(template.Data) == 0 {
			return fmt.Errorf("template %s has no image data", template.ID)
		}

		threshold := findThreshold
		if threshold <= 0 {
			threshold = template.Threshold
		}
		if threshold <= 0 {
			threshold = constants.DefaultMatchThreshold
		}

		screen, err := capture.NewService("").CaptureFullScreen()
		if err != nil {
			return fmt.Errorf("capturing screen: %w", err)
		}

		result, err := recognition.NewService().FindImage(screen, template.Data, threshold)
		if err != nil {
			return err
		}

		if result.Found {
			logging.FoundTemplate.Logf("%s at (%d, %d) with confidence %.3f in %v",
				template.Name, result.Location.X, result.Location.Y,
				result.Confidence, result.SearchDuration)
			return nil
		}

		logging.NotFoundTemplate.Logf("%s (best confidence %.3f, threshold %.3f)",
			template.Name, result.Confidence, threshold)
		os.Exit(1)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(findCmd)
	findCmd.Flags().Float64VarP(&findThreshold, "threshold", "t", 0, "override the template's match threshold")
}
