package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hyperjump/knowling/internal/cli"
	"github.com/hyperjump/knowling/internal/notebook"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all notes, oldest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withNotes(func(notes noteService, _ *Components) error {
			list, err := notes.GetNotes(cmd.Context())
			if err != nil {
				return err
			}
			return cli.WriteNotes(cmd.OutOrStdout(), list, format())
		})
	},
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withNotes(func(notes noteService, _ *Components) error {
			note, err := notes.GetNoteByID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if note == nil {
				return fmt.Errorf("%w: %s", notebook.ErrNoteNotFound, args[0])
			}
			return cli.WriteNote(cmd.OutOrStdout(), note, format())
		})
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
}
