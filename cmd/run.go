// -- cmd/run.go --
package cmd

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nesthivep/kgml/internal/executor"
	"github.com/nesthivep/kgml/internal/observability"
)

var jsonOut = jsoniter.ConfigCompatibleWithStandardLibrary

// fileResult is the per-file output of a run: the execution log, or the
// error that stopped the program.
type fileResult struct {
	File  string            `json:"file"`
	Log   []executor.Record `json:"log"`
	Error string            `json:"error,omitempty"`
}

func newRunCommand() *cobra.Command {
	var save bool

	runCmd := &cobra.Command{
		Use:   "run <file> [file...]",
		Short: "Execute one or more KGML program files.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := observability.GetLogger()

			// Each file runs against its own store so programs cannot
			// observe each other's state.
			results := make([]fileResult, len(args))
			g, gctx := errgroup.WithContext(cmd.Context())
			for i, file := range args {
				g.Go(func() error {
					graph, closer, err := openGraph(gctx, cfg, logger)
					if err != nil {
						return err
					}
					defer closer()

					source, err := os.ReadFile(file)
					if err != nil {
						return fmt.Errorf("read program %q: %w", file, err)
					}

					exec := executor.New(graph, logger,
						executor.WithMaxEvalDepth(cfg.Executor.MaxEvalDepth),
						executor.WithMaxLoopIterations(cfg.Executor.MaxLoopIterations))

					execCtx, execErr := exec.Execute(string(source))
					results[i] = fileResult{File: file, Log: execCtx.Log}
					if execErr != nil {
						results[i].Error = execErr.Error()
						logger.Error("Program failed", zap.String("file", file), zap.Error(execErr))
						return fmt.Errorf("execute %q: %w", file, execErr)
					}

					if save {
						if err := graph.Save(gctx); err != nil {
							return fmt.Errorf("save graph after %q: %w", file, err)
						}
					}
					return nil
				})
			}
			runErr := g.Wait()

			out, err := jsonOut.MarshalIndent(results, "", "  ")
			if err != nil {
				return fmt.Errorf("encode results: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return runErr
		},
	}

	runCmd.Flags().BoolVar(&save, "save", false, "persist the graph to the configured backend after a successful run")
	return runCmd
}
