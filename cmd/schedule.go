package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jeeftor/deskpilot/internal/engine"
	"github.com/jeeftor/deskpilot/internal/logging"
	"github.com/jeeftor/deskpilot/internal/scheduler"
)

// scheduleCmd represents the schedule command
var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run scripts on cron schedules from the config file",
	Long: `Run scripts on cron schedules. Schedules come from the config file:

  schedules:
    - spec: "0 9 * * 1-5"
      scriptId: morning-report
    - spec: "@every 30m"
      scriptId: keep-alive

The process stays in the foreground firing schedules until interrupted.
Ctrl+C stops the scheduler and any running scripts.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var entries []scheduler.Entry
		if err := viper.UnmarshalKey("schedules", &entries); err != nil {
			return fmt.Errorf("reading schedules from config: %w", err)
		}
		if len(entries) == 0 {
			return fmt.Errorf("no schedules configured; add a schedules section to the config file")
		}

		eng, _, err := BuildEngine()
		if err != nil {
			return err
		}

		eng.OnLog(func(entry engine.ExecutionLog) {
			printLogEntry(entry)
		})

		sched := scheduler.New(eng)
		for _, entry := range entries {
			if err := sched.Add(entry); err != nil {
				return err
			}
			logging.UserInfo("Scheduled %s: %s", entry.ScriptID, entry.Spec)
		}

		sched.Start()
		defer sched.Stop()

		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
		<-sigs

		logging.UserInfo("Shutting down scheduler")
		for _, state := range eng.AllExecutionStates() {
			if !state.Status.Terminal() {
				eng.Stop(state.ScriptID)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
}
