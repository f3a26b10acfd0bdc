package cmd

import (
	"fmt"
	"runtime"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// These variables are set during the build using ldflags
var (
	buildVersion = "dev"
	buildCommit  = "none"
	buildTime    = "unknown"
)

var shortOutput bool

// formattedBuildTime returns the build time in a readable format
func formattedBuildTime() string {
	if t, err := time.Parse(time.RFC3339, buildTime); err == nil {
		return t.Format("2006-01-02 15:04:05 MST")
	}
	return buildTime
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		if shortOutput {
			fmt.Println(buildVersion)
			return
		}

		labelColor := color.New(color.FgWhite)
		versionColor := color.New(color.FgCyan, color.Bold)
		buildColor := color.New(color.FgYellow)
		commitColor := color.New(color.FgGreen)
		osArchColor := color.New(color.FgMagenta)

		labelColor.Printf("Version: ")
		versionColor.Printf("%s\n", buildVersion)

		labelColor.Printf("Built:   ")
		buildColor.Printf("%s\n", formattedBuildTime())

		labelColor.Printf("Commit:  ")
		commitColor.Printf("%s\n", buildCommit)

		labelColor.Printf("OS/Arch: ")
		osArchColor.Printf("%s/%s\n", runtime.GOOS, runtime.GOARCH)

		labelColor.Printf("Go:      ")
		fmt.Println(runtime.Version())
	},
}

func init() {
	versionCmd.Flags().BoolVarP(&shortOutput, "short", "n", false, "Print only version number")
	rootCmd.AddCommand(versionCmd)
}
