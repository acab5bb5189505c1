package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/anthropic-exercise/codeintel/internal/config"
	"github.com/anthropic-exercise/codeintel/internal/indexer"
	"github.com/anthropic-exercise/codeintel/internal/project"
)

var flagForce bool

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index the project at --path, initializing it first if needed",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		p, err := openOrInitialize(flagPath)
		if err != nil {
			return err
		}
		defer p.Close()

		cb := indexer.ProgressCallbacks{
			OnFileStarted: func(path string) {
				fmt.Fprintf(os.Stderr, "indexing %s\n", path)
			},
			OnError: func(path string, err error) {
				fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			},
		}

		stats, err := p.IndexProject(ctx, flagForce, cb)
		if err != nil {
			return err
		}

		fmt.Printf("files: %d indexed, %d skipped, %d failed\n", stats.FilesIndexed, stats.FilesSkipped, stats.FilesFailed)
		fmt.Printf("chunks: %d added, %d updated, %d deleted\n", stats.ChunksAdded, stats.ChunksUpdated, stats.ChunksDeleted)
		fmt.Printf("duration: %s\n", stats.Duration)
		return nil
	},
}

func init() {
	indexCmd.Flags().BoolVar(&flagForce, "force", false, "bypass the file-hash skip and reprocess every candidate")
	rootCmd.AddCommand(indexCmd)
}

// openOrInitialize opens root's ProjectIndex, initializing it with the
// recommended defaults first if it has never been initialized.
func openOrInitialize(root string) (*project.Index, error) {
	if project.IsInitialized(root) {
		return project.Open(root)
	}
	return project.Initialize(root, config.DefaultConfig())
}

// signalContext returns a context cancelled on SIGINT/SIGTERM, so a
// long-running index_project honours cooperative cancellation rather
// than leaving partial per-file writes on kill.
func signalContext() (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sig:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, func() {
		signal.Stop(sig)
		cancel()
	}
}
