// -- cmd/graph.go --
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nesthivep/kgml/internal/observability"
)

func newGraphCommand() *cobra.Command {
	graphCmd := &cobra.Command{
		Use:   "graph",
		Short: "Inspect the persisted knowledge graph.",
	}
	graphCmd.AddCommand(newGraphExportCommand())
	graphCmd.AddCommand(newGraphStatsCommand())
	return graphCmd
}

func newGraphExportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Print the persisted graph as KGML text.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			graph, closer, err := openGraph(cmd.Context(), cfg, observability.GetLogger())
			if err != nil {
				return err
			}
			defer closer()

			fmt.Fprint(cmd.OutOrStdout(), graph.ExportKGML())
			return nil
		},
	}
}

func newGraphStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print node and edge counts for the persisted graph.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			graph, closer, err := openGraph(cmd.Context(), cfg, observability.GetLogger())
			if err != nil {
				return err
			}
			defer closer()

			stats := graph.Stats()
			out, err := jsonOut.MarshalIndent(stats, "", "  ")
			if err != nil {
				return fmt.Errorf("encode stats: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}
