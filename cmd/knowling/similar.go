package main

import (
	"github.com/spf13/cobra"

	"github.com/hyperjump/knowling/internal/cli"
	"github.com/hyperjump/knowling/internal/notebook"
)

var (
	similarLimit     int
	similarThreshold float32
)

var similarCmd = &cobra.Command{
	Use:   "similar <id>",
	Short: "Find notes similar to a note",
	Long: `Find notes whose embedding is close to the given note. Only notes with a squared
L2 distance below the threshold are returned, nearest first.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var opts []notebook.SimilarOption
		if cmd.Flags().Changed("limit") {
			opts = append(opts, notebook.WithLimit(similarLimit))
		}
		if cmd.Flags().Changed("threshold") {
			opts = append(opts, notebook.WithThreshold(similarThreshold))
		}
		return withNotes(func(notes noteService, _ *Components) error {
			results, err := notes.GetSimilarNotesByID(cmd.Context(), args[0], opts...)
			if err != nil {
				return err
			}
			return cli.WriteSimilarNotes(cmd.OutOrStdout(), results, format())
		})
	},
}

func init() {
	rootCmd.AddCommand(similarCmd)
	similarCmd.Flags().IntVarP(&similarLimit, "limit", "n", 3, "maximum number of results (default from config)")
	similarCmd.Flags().Float32VarP(&similarThreshold, "threshold", "t", 0.01, "maximum distance, exclusive (default from config)")
}
