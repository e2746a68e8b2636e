package cmds

import (
	"context"
	"fmt"
	"time"

	"optcache/internal/types"

	"github.com/spf13/cobra"
)

func prefetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prefetch [entity...]",
		Short: "Fetch entities once and persist them as snapshots (all global entities by default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			entities, err := parseEntities(args)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			store, err := newStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()
			err = store.PrefetchAll(ctx, entities...)
			if len(entities) == 0 {
				entities = types.GlobalEntityTypes
			}
			for _, e := range entities {
				entry, _ := store.Entry(e, "")
				status := "ok"
				if entry.Error != "" {
					status = entry.Error
				}
				fmt.Printf("%-12s %4d options  %s\n", e, len(entry.Data), status)
			}
			return err
		},
	}
}

func invalidateCmd() *cobra.Command {
	var parent string
	cmd := &cobra.Command{
		Use:   "invalidate <entity>",
		Short: "Drop the durable snapshot of an entity (every items bucket when no parent is given)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := types.ParseEntityType(args[0])
			if err != nil {
				return err
			}
			snaps, err := snapshotStore()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			keys := []types.CacheKey{types.NewKey(e, parent)}
			if e.ParentScoped() && parent == "" {
				all, err := snaps.LoadAll(ctx)
				if err != nil {
					return err
				}
				keys = keys[:0]
				for _, s := range all {
					if s.Entity == e {
						keys = append(keys, s.Key())
					}
				}
			}
			for _, k := range keys {
				if err := snaps.Delete(ctx, k); err != nil {
					return err
				}
				fmt.Printf("dropped %s\n", k)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&parent, "parent", "", "parent id (items only)")
	return cmd
}

func purgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Remove every durable snapshot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			snaps, err := snapshotStore()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			return snaps.ClearAll(ctx)
		},
	}
}
