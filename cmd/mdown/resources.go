package cmd

import (
	"errors"
	"fmt"

	"github.com/kerbaras/mdown/pkg/data"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newResourcesCmd(v *viper.Viper, version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resources",
		Short: "Inspect the cached resource store",
		Long: `The resource store keeps small lookups shared between runs, such as
resolved scanlation groups (keys like group:<id>).`,
	}

	// open runs fn against the resource store and closes it afterwards
	open := func(fn func(cmd *cobra.Command, store *data.ResourceStore, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(v, version, false)
			if err != nil {
				return err
			}
			defer rt.close()

			store, err := rt.openResources()
			if err != nil {
				return err
			}
			return fn(cmd, store, args)
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list [prefix]",
		Short: "List resource keys",
		Args:  cobra.MaximumNArgs(1),
		RunE: open(func(cmd *cobra.Command, store *data.ResourceStore, args []string) error {
			var prefix string
			if len(args) == 1 {
				prefix = args[0]
			}
			keys, err := store.Keys(cmd.Context(), prefix)
			if err != nil {
				return err
			}
			for _, k := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "Print a resource",
		Args:  cobra.ExactArgs(1),
		RunE: open(func(cmd *cobra.Command, store *data.ResourceStore, args []string) error {
			value, err := store.Get(cmd.Context(), args[0])
			if errors.Is(err, data.ErrResourceMissing) {
				return fmt.Errorf("no resource %q", args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(value))
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <key>...",
		Short: "Delete resources so they are fetched again",
		Args:  cobra.MinimumNArgs(1),
		RunE: open(func(cmd *cobra.Command, store *data.ResourceStore, args []string) error {
			for _, key := range args {
				if err := store.Delete(cmd.Context(), key); err != nil {
					return fmt.Errorf("deleting %s: %w", key, err)
				}
			}
			return nil
		}),
	})

	return cmd
}
