package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jeeftor/deskpilot/internal/logging"
	"github.com/jeeftor/deskpilot/internal/recognition"
	"github.com/jeeftor/deskpilot/internal/script"
)

var (
	templateName      string
	templateThreshold float64
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Manage template images used by image conditions",
}

var templatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored template images",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := OpenStorage()
		if err != nil {
			return err
		}
		templates, err := store.ListTemplateImages()
		if err != nil {
			return err
		}
		if len(templates) == 0 {
			fmt.Println("No templates stored. Add one with: deskpilot templates add <image.png>")
			return nil
		}

		idColor := color.New(color.FgCyan, color.Bold)
		nameColor := color.New(color.FgWhite)
		metaColor := color.New(color.FgHiBlack)

		for _, t := range templates {
			idColor.Printf("%-36s ", t.ID)
			nameColor.Printf("%s", t.Name)
			metaColor.Printf("  (threshold %.2f, %s)\n", t.Threshold, t.FilePath)
		}
		return nil
	},
}

var templatesAddCmd = &cobra.Command{
	Use:   "add [image-file]",
	Short: "Store an image file as a match template",
	Long: `Store an image file as a match template for image conditions.
The image must decode as PNG, JPEG or netpbm (PBM/PGM/PPM).

Examples:
  deskpilot templates add ok-button.png
  deskpilot templates add dialog.png --name "Save dialog" --threshold 0.9`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}

		// Reject files the matcher could never use
		img, err := recognition.DecodeImage(data)
		if err != nil {
			return fmt.Errorf("%s is not a usable template: %w", args[0], err)
		}
		bounds := img.Bounds()

		name := templateName
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
		}

		t := &script.TemplateImage{
			Name:      name,
			Threshold: templateThreshold,
		}

		store, err := OpenStorage()
		if err != nil {
			return err
		}
		if err := store.SaveTemplateImage(t, data); err != nil {
			return err
		}

		logging.Success("Stored template %s (%s, %dx%d)",
			t.ID, t.Name, bounds.Dx(), bounds.Dy())
		return nil
	},
}

var templatesDeleteCmd = &cobra.Command{
	Use:   "delete [template-id]",
	Short: "Delete a stored template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := OpenStorage()
		if err != nil {
			return err
		}
		if err := store.DeleteTemplateImage(args[0]); err != nil {
			return err
		}
		logging.Success("Deleted template %s", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(templatesCmd)
	templatesCmd.AddCommand(templatesListCmd)
	templatesCmd.AddCommand(templatesAddCmd)
	templatesCmd.AddCommand(templatesDeleteCmd)

	templatesAddCmd.Flags().StringVarP(&templateName, "name", "n", "", "template name (defaults to the file name)")
	templatesAddCmd.Flags().Float64VarP(&templateThreshold, "threshold", "t", 0, "match threshold, 0 uses the default")
}
