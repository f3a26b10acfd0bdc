package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jeeftor/deskpilot/internal/automation"
	"github.com/jeeftor/deskpilot/internal/logging"
)

var inputWindow string

var inputCmd = &cobra.Command{
	Use:   "input",
	Short: "Send input to the desktop directly",
	Long: `Send keystrokes, text or clicks to the desktop without running a
script. Useful for testing key combos and window targeting before
putting them in a script.`,
}

var inputKeysCmd = &cobra.Command{
	Use:   "keys [combo...]",
	Short: "Press key combos like enter, ctrl+c or ctrl+shift+t",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctrl, err := inputController()
		if err != nil {
			return err
		}
		for _, combo := range args {
			logging.KeyTemplate.Logf("%s", combo)
			if err := ctrl.SendKeys(combo); err != nil {
				return fmt.Errorf("sending %q: %w", combo, err)
			}
		}
		return nil
	},
}

var inputTypeCmd = &cobra.Command{
	Use:   "type [text]",
	Short: "Type literal text into the focused window",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctrl, err := inputController()
		if err != nil {
			return err
		}
		logging.TypeTemplate.Logf("%d characters", len(args[0]))
		if err := ctrl.TypeText(args[0]); err != nil {
			return err
		}
		return nil
	},
}

var inputClickCmd = &cobra.Command{
	Use:   "click [x] [y]",
	Short: "Left-click at screen coordinates",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		x, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid x coordinate %q", args[0])
		}
		y, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid y coordinate %q", args[1])
		}

		ctrl, err := inputController()
		if err != nil {
			return err
		}
		logging.ClickTemplate.Logf("at (%d, %d)", x, y)
		if err := ctrl.Click(x, y); err != nil {
			return err
		}
		return nil
	},
}

// inputController builds a controller, activating the requested window
// first when --window is set
func inputController() (*automation.Controller, error) {
	ctrl := automation.NewController()
	if inputWindow != "" {
		if err := ctrl.SetTargetWindow(inputWindow); err != nil {
			return nil, fmt.Errorf("activating window %q: %w", inputWindow, err)
		}
	}
	return ctrl, nil
}

func init() {
	rootCmd.AddCommand(inputCmd)
	inputCmd.AddCommand(inputKeysCmd)
	inputCmd.AddCommand(inputTypeCmd)
	inputCmd.AddCommand(inputClickCmd)
	inputCmd.PersistentFlags().StringVarP(&inputWindow, "window", "w", "", "activate this window before sending input")
}
