package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hyperjump/knowling/internal/cli"
)

var addCategories []string

var addCmd = &cobra.Command{
	Use:   "add [text...]",
	Short: "Create a note",
	Long: `Create a note from the arguments joined by spaces. With no arguments the
note text is read from standard input.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := noteText(cmd.InOrStdin(), args)
		if err != nil {
			return err
		}
		return withNotes(func(notes noteService, _ *Components) error {
			ctx := cmd.Context()
			note, err := notes.Upsert(ctx, "", text)
			if err != nil {
				return err
			}
			for _, label := range addCategories {
				if note, err = notes.AddCategoryToNote(ctx, note.ID, label); err != nil {
					return err
				}
			}
			return cli.WriteNote(cmd.OutOrStdout(), note, format())
		})
	},
}

var editCmd = &cobra.Command{
	Use:   "edit <id> [text...]",
	Short: "Replace the text of a note",
	Long:  `Replace the text of an existing note. With only an id the new text is read from standard input.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := noteText(cmd.InOrStdin(), args[1:])
		if err != nil {
			return err
		}
		return withNotes(func(notes noteService, _ *Components) error {
			note, err := notes.Upsert(cmd.Context(), args[0], text)
			if err != nil {
				return err
			}
			return cli.WriteNote(cmd.OutOrStdout(), note, format())
		})
	},
}

// noteText joins args, or reads r when args is empty.
func noteText(r io.Reader, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read note text: %w", err)
	}
	return string(data), nil
}

func init() {
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(editCmd)
	addCmd.Flags().StringSliceVarP(&addCategories, "category", "c", nil, "category label to attach (repeatable)")
}
