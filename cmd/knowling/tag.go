package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/hyperjump/knowling/internal/cli"
)

var tagCmd = &cobra.Command{
	Use:   "tag <note-id> <label...>",
	Short: "Attach a category to a note",
	Long:  `Attach a category to a note. The category is created if no category with that label exists, ignoring case.`,
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		label := strings.Join(args[1:], " ")
		return withNotes(func(notes noteService, _ *Components) error {
			note, err := notes.AddCategoryToNote(cmd.Context(), args[0], label)
			if err != nil {
				return err
			}
			return cli.WriteNote(cmd.OutOrStdout(), note, format())
		})
	},
}

var untagCmd = &cobra.Command{
	Use:   "untag <note-id> <category-id>",
	Short: "Detach a category from a note",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withNotes(func(notes noteService, _ *Components) error {
			note, err := notes.RemoveCategoryFromNote(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return cli.WriteNote(cmd.OutOrStdout(), note, format())
		})
	},
}

func init() {
	rootCmd.AddCommand(tagCmd)
	rootCmd.AddCommand(untagCmd)
}
