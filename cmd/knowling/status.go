package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hyperjump/knowling/internal/cli"
	"github.com/hyperjump/knowling/internal/storage"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show note, category, and embedding counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withNotes(func(notes noteService, c *Components) error {
			status, err := notes.Status(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if err := cli.WriteStatus(out, status, format()); err != nil {
				return err
			}
			if c != nil && format() == cli.OutputText {
				cfg := c.Config
				if diskBytes, err := storage.DiskUsageBytes(cfg.Storage.DatabasePath, cfg.Storage.VectorIndexPath); err == nil {
					fmt.Fprintf(out, "Disk usage: %d bytes\n", diskBytes)
				}
				fmt.Fprintln(out)
				fmt.Fprintln(out, "# configuration")
				fmt.Fprintf(out, "database_path:      %s\n", cfg.Storage.DatabasePath)
				fmt.Fprintf(out, "vector_index_path:  %s\n", cfg.Storage.VectorIndexPath)
				fmt.Fprintf(out, "vector_index_type:  %s\n", cfg.Vector.IndexType)
				fmt.Fprintf(out, "embedding_dims:     %d\n", cfg.Embedding.Dimensions)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
