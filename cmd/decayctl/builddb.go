package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arcazj/openbexi-earth-orbit/internal/satcat"
)

func newBuildDBCmd(root *rootOptions) *cobra.Command {
	var in, out string

	cmd := &cobra.Command{
		Use:   "build-db",
		Short: "Build the confirmed-decay feed from a SATCAT CSV",
		Long: `Read a CelesTrak SATCAT CSV export, keep payloads (OBJECT_TYPE PAY) with a
DECAY_DATE, and write them grouped by OBJECT_NAME as the decayed feed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			feed, stats, err := satcat.BuildFile(in)
			if err != nil {
				return err
			}
			if err := feed.WriteFile(out); err != nil {
				return err
			}

			root.logger(cmd).Info("decayed feed written", "input", in, "output", out, "rows_read", stats.RowsRead, "kept", stats.Kept)
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Input file:  %s\n", in)
			fmt.Fprintf(w, "Output file: %s\n", out)
			fmt.Fprintf(w, "Rows read:   %d\n", stats.RowsRead)
			fmt.Fprintf(w, "Records kept (DECAY_DATE not empty AND OBJECT_TYPE=PAY): %d\n", stats.Kept)
			return nil
		},
	}
	cmd.Flags().StringVar(&in, "satcat", "json/satcat.csv", "SATCAT CSV input")
	cmd.Flags().StringVar(&out, "out", "json/decayed/decayed.json", "Feed output path")
	return cmd
}
