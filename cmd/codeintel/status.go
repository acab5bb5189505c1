package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/anthropic-exercise/codeintel/internal/project"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report the indexed state of the project at --path",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !project.IsInitialized(flagPath) {
			fmt.Println("not initialized")
			return nil
		}

		p, err := project.Open(flagPath)
		if err != nil {
			return err
		}
		defer p.Close()

		status, err := p.Status(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("root:              %s\n", status.Root)
		fmt.Printf("embedding model:   %s (%s)\n", status.EmbeddingModel, status.EmbeddingProvider)
		fmt.Printf("files:             %d\n", status.FileCount)
		fmt.Printf("chunks:            %d\n", status.ChunkCount)
		fmt.Printf("embeddings:        %d\n", status.EmbeddingCount)
		fmt.Printf("size:              %d bytes\n", status.SizeBytes)
		fmt.Printf("schema version:    %s\n", status.SchemaVersion)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
