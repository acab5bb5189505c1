// Command codeintel is the CLI adapter over internal/project: a thin
// wrapper exposing index, search, status and reset as cobra
// subcommands.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/anthropic-exercise/codeintel/pkg/types"
)

var (
	version = "dev"

	flagPath string
)

// exitCode maps err to one of five CLI exit codes: 0 success
// (nil err), 1 generic failure, 2 configuration error, 3 store
// unavailable/corrupt, 4 cancelled/timeout.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, types.ErrConfig):
		return 2
	case errors.Is(err, types.ErrStoreUnavailable), errors.Is(err, types.ErrIntegrity):
		return 3
	case errors.Is(err, types.ErrCancelled), errors.Is(err, types.ErrDeadlineExceeded),
		errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return 4
	default:
		return 1
	}
}

var rootCmd = &cobra.Command{
	Use:     "codeintel",
	Short:   "Local, incremental code-intelligence engine",
	Version: version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagPath, "path", "C", ".", "project root")
}

func main() {
	log.SetOutput(os.Stderr)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "codeintel:", err)
		os.Exit(exitCode(err))
	}
}
