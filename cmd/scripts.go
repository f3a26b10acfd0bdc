package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jeeftor/deskpilot/internal/logging"
	"github.com/jeeftor/deskpilot/internal/script"
)

var scriptsCmd = &cobra.Command{
	Use:   "scripts",
	Short: "Manage stored automation scripts",
}

var scriptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored scripts",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := OpenStorage()
		if err != nil {
			return err
		}
		scripts, err := store.ListScripts()
		if err != nil {
			return err
		}
		if len(scripts) == 0 {
			fmt.Println("No scripts stored. Add one with: deskpilot scripts import <file.json>")
			return nil
		}

		idColor := color.New(color.FgCyan, color.Bold)
		nameColor := color.New(color.FgWhite)
		metaColor := color.New(color.FgHiBlack)

		for _, sc := range scripts {
			idColor.Printf("%-36s ", sc.ID)
			nameColor.Printf("%s", sc.Name)
			repeats := "once"
			if sc.InfiniteRepeat {
				repeats = "repeats forever"
			} else if sc.RepeatCount > 1 {
				repeats = fmt.Sprintf("repeats %dx", sc.RepeatCount)
			}
			metaColor.Printf("  (%d steps, %s)\n", len(sc.Steps), repeats)
		}
		return nil
	},
}

var scriptsShowCmd = &cobra.Command{
	Use:   "show [script-id]",
	Short: "Print a stored script as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := OpenStorage()
		if err != nil {
			return err
		}
		sc, err := store.GetScript(args[0])
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(sc, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

var scriptsValidateCmd = &cobra.Command{
	Use:   "validate [script-id]",
	Short: "Check a stored script for structural problems",
	Long: `Check a stored script for problems that would degrade a run:
duplicate or missing step ids, and jump or else branches pointing at
steps that do not exist.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := OpenStorage()
		if err != nil {
			return err
		}
		sc, err := store.GetScript(args[0])
		if err != nil {
			return err
		}

		warnings := sc.Validate()
		if len(warnings) == 0 {
			logging.Success("Script %s is valid (%d steps)", sc.ID, len(sc.Steps))
			return nil
		}
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
		logging.UserError("Script %s has %d problem(s)", sc.ID, len(warnings))
		os.Exit(1)
		return nil
	},
}

var scriptsImportCmd = &cobra.Command{
	Use:   "import [file.json]",
	Short: "Import a script from a JSON file into the store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}

		var sc script.AutomationScript
		if err := json.Unmarshal(data, &sc); err != nil {
			return fmt.Errorf("parsing %s: %w", args[0], err)
		}

		store, err := OpenStorage()
		if err != nil {
			return err
		}
		if err := store.SaveScript(&sc); err != nil {
			return err
		}

		for _, w := range sc.Validate() {
			logging.Warn("Script validation", "script_id", sc.ID, "warning", w)
		}
		logging.Success("Imported script %s (%s)", sc.ID, sc.Name)
		return nil
	},
}

var scriptsDeleteCmd = &cobra.Command{
	Use:   "delete [script-id]",
	Short: "Delete a stored script",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := OpenStorage()
		if err != nil {
			return err
		}
		if err := store.DeleteScript(args[0]); err != nil {
			return err
		}
		logging.Success("Deleted script %s", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scriptsCmd)
	scriptsCmd.AddCommand(scriptsListCmd)
	scriptsCmd.AddCommand(scriptsShowCmd)
	scriptsCmd.AddCommand(scriptsValidateCmd)
	scriptsCmd.AddCommand(scriptsImportCmd)
	scriptsCmd.AddCommand(scriptsDeleteCmd)
}
