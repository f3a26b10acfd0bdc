package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jeeftor/deskpilot/internal/engine"
	"github.com/jeeftor/deskpilot/internal/hotkey"
	"github.com/jeeftor/deskpilot/internal/logging"
)

var (
	runWindow  string
	runQuiet   bool
	runHotkeys bool
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [script-id]",
	Short: "Run an automation script to completion",
	Long: `Run an automation script and stream its execution log until it
finishes. The process exits 0 when the script completes and 1 when it
ends in an error state.

Ctrl+C requests a stop; the script halts at the next step boundary.

Examples:
  # Run a script
  deskpilot run login-flow

  # Run against a specific window regardless of the script's target
  deskpilot run login-flow --window "Firefox"

  # Run with pause/resume hotkeys from the config file
  deskpilot run login-flow --hotkeys`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		scriptID := args[0]

		eng, _, err := BuildEngine()
		if err != nil {
			return err
		}

		if runWindow != "" {
			eng.OverrideTargetWindow(runWindow)
			logging.Info("Target window overridden", "window", runWindow)
		}

		if !runQuiet {
			eng.OnLog(func(entry engine.ExecutionLog) {
				printLogEntry(entry)
			})
		}

		// Terminal state detection rides the state-change stream
		done := make(chan engine.Status, 1)
		eng.OnStateChange(func(state engine.ExecutionState) {
			if state.ScriptID == scriptID && state.Status.Terminal() {
				select {
				case done <- state.Status:
				default:
				}
			}
		})

		logging.StartTemplate.Logf("script %s", scriptID)
		if err := eng.Start(scriptID); err != nil {
			return fmt.Errorf("starting script %s: %w", scriptID, err)
		}

		var hotkeys *hotkey.Listener
		if runHotkeys {
			hotkeys = startHotkeys(eng, scriptID)
			if hotkeys != nil {
				defer hotkeys.Stop()
			}
		}

		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

		for {
			select {
			case <-sigs:
				logging.StopTemplate.Logf("script %s", scriptID)
				eng.Stop(scriptID)
			case status := <-done:
				switch status {
				case engine.StatusCompleted:
					logging.CompleteTemplate.Logf("script %s", scriptID)
					return nil
				case engine.StatusStopped:
					logging.UserInfo("Script %s stopped", scriptID)
					return nil
				default:
					logging.FailTemplate.Logf("script %s ended in an error state", scriptID)
					os.Exit(1)
				}
			}
		}
	},
}

// startHotkeys wires pause/resume/stop hotkeys from the config file
// onto the running script. Bindings without a script id attach to the
// one being run.
func startHotkeys(eng *engine.Engine, scriptID string) *hotkey.Listener {
	var bindings []hotkey.Binding
	if err := viper.UnmarshalKey("hotkeys", &bindings); err != nil {
		logging.Warn("Ignoring malformed hotkeys config", "error", err)
		return nil
	}
	if len(bindings) == 0 {
		logging.Warn("No hotkeys configured; --hotkeys has no effect")
		return nil
	}

	listener := hotkey.New(eng)
	registered := 0
	for _, b := range bindings {
		if b.ScriptID == "" {
			b.ScriptID = scriptID
		}
		if err := listener.Bind(b); err != nil {
			logging.Warn("Skipping hotkey binding", "keys", b.Keys, "error", err)
			continue
		}
		registered++
	}
	if registered == 0 {
		return nil
	}

	go func() {
		if err := listener.Start(); err != nil {
			logging.Warn("Hotkey listener exited", "error", err)
		}
	}()
	return listener
}

// printLogEntry renders an execution log entry for the console
func printLogEntry(entry engine.ExecutionLog) {
	prefix := fmt.Sprintf("[%s]", entry.Timestamp.Format("15:04:05"))
	switch entry.Level {
	case engine.LogError:
		fmt.Fprintf(os.Stderr, "%s ERROR %s\n", prefix, entry.Message)
	case engine.LogWarning:
		fmt.Printf("%s WARN  %s\n", prefix, entry.Message)
	default:
		fmt.Printf("%s       %s\n", prefix, entry.Message)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVarP(&runWindow, "window", "w", "", "override the script's target window")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "suppress the execution log stream")
	runCmd.Flags().BoolVar(&runHotkeys, "hotkeys", false, "enable hotkey bindings from the config file")
}
