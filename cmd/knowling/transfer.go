package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <dir>",
	Short: "Import note files from a directory",
	Long: `Import every file in dir whose name matches notes.import_pattern as a new note.
Subdirectories are not searched.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withNotes(func(notes noteService, _ *Components) error {
			n, err := notes.ImportNotes(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d note(s) from %s\n", n, args[0])
			return nil
		})
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <dir>",
	Short: "Export every note to a new timestamped directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withNotes(func(notes noteService, _ *Components) error {
			n, dir, err := notes.ExportNotes(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d note(s) to %s\n", n, dir)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)
}
