// File: cmd/kgml/main.go
//
// The kgml binary wraps the CLI with an interactive mode: invoked without
// arguments it becomes a REPL executing KGML statements against one
// long-lived graph store, so state accumulates across inputs.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/nesthivep/kgml/cmd"
	"github.com/nesthivep/kgml/internal/config"
	"github.com/nesthivep/kgml/internal/executor"
	"github.com/nesthivep/kgml/internal/kgml"
	"github.com/nesthivep/kgml/internal/knowledgegraph"
	"github.com/nesthivep/kgml/internal/observability"
)

const banner = `
kgml %s -- knowledge graph reasoning shell
Type KGML statements; blocks may span lines. "exit" quits.
`

var osExit = os.Exit

func main() {
	// Set up a context that listens for interrupt signals (SIGINT, SIGTERM) for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	defer observability.Sync()

	// If arguments are passed, execute the command directly and exit.
	if len(os.Args) > 1 {
		if err := cmd.Execute(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				osExit(0) // Exit cleanly on graceful shutdown
			}
			osExit(1)
		}
		return
	}

	runShell(ctx)
}

// runShell is the interactive loop. One store lives for the whole
// session; every completed input runs through a fresh execution context.
func runShell(ctx context.Context) {
	cfg := config.NewDefaultConfig()
	observability.InitializeLogger(cfg.Logger)
	logger := observability.GetLogger()

	graph := knowledgegraph.New(logger)
	exec := executor.New(graph, logger,
		executor.WithMaxEvalDepth(cfg.Executor.MaxEvalDepth),
		executor.WithMaxLoopIterations(cfg.Executor.MaxLoopIterations))

	fmt.Printf(banner, cmd.Version)
	scanner := bufio.NewScanner(os.Stdin)
	var pending strings.Builder

	for {
		if ctx.Err() != nil {
			break
		}
		if pending.Len() == 0 {
			fmt.Print("kgml> ")
		} else {
			fmt.Print("....> ")
		}
		if !scanner.Scan() {
			break // Exit on EOF (Ctrl+D)
		}

		line := strings.TrimSpace(scanner.Text())
		if pending.Len() == 0 {
			switch line {
			case "":
				continue
			case "exit", "quit":
				fmt.Println("Exiting kgml.")
				return
			case "show":
				fmt.Print(graph.ExportKGML())
				continue
			}
		}

		pending.WriteString(line)
		pending.WriteByte('\n')
		source := pending.String()

		if _, err := kgml.Parse(source); err != nil {
			if inputIncomplete(err) {
				continue // keep reading until the block closes
			}
			fmt.Fprintln(os.Stderr, "Error:", err)
			pending.Reset()
			continue
		}
		pending.Reset()

		execCtx, err := exec.Execute(source)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			continue
		}
		for _, rec := range execCtx.Log {
			fmt.Printf("[%s] %v\n", rec.CommandType, rec.Result)
		}
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "Error reading from stdin:", err)
		osExit(1)
	}
	fmt.Println("Exiting kgml.")
}

// inputIncomplete reports whether a parse failure means the user has not
// finished typing a block, as opposed to a genuine syntax error.
func inputIncomplete(err error) bool {
	var syntaxErr *kgml.SyntaxError
	if !errors.As(err, &syntaxErr) {
		return false
	}
	return strings.Contains(syntaxErr.Msg, "unterminated") ||
		strings.Contains(syntaxErr.Msg, "EOF")
}
