package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arcazj/openbexi-earth-orbit/internal/registry"
)

func newRegistryCmd(root *rootOptions) *cobra.Command {
	var feed string

	cmd := &cobra.Command{
		Use:   "registry [catalog_id...]",
		Short: "Print normalized confirmed-decay records",
		Long: `Load the confirmed-decay feed and print its normalized records, one per
catalog id with the latest decay date. With arguments only those ids are
printed; any missing id makes the command fail.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			src := registry.NewSource(feed)
			reg := registry.NewCache(src, root.logger(cmd)).Load(cmd.Context())
			if reg == nil {
				return fmt.Errorf("could not load confirmed decays from %s", src.Name())
			}

			if len(args) == 0 {
				return writeJSON(cmd.OutOrStdout(), reg.Records())
			}

			var (
				found   []registry.Record
				missing int
			)
			for _, id := range args {
				rec, ok := reg.Lookup(id)
				if !ok {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", id, registry.ErrNotFound)
					missing++
					continue
				}
				found = append(found, rec)
			}
			if err := writeJSON(cmd.OutOrStdout(), found); err != nil {
				return err
			}
			if missing > 0 {
				return fmt.Errorf("%d of %d catalog ids not found", missing, len(args))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&feed, "decayed", registry.DefaultFeed, "Confirmed-decay feed, file or URL")
	return cmd
}
