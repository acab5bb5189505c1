package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/anthropic-exercise/codeintel/internal/project"
)

var flagYes bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Discard the project's indexed state (chunks, embeddings, relationships, metadata)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !flagYes {
			return fmt.Errorf("reset is destructive; pass --yes to confirm")
		}

		p, err := project.Open(flagPath)
		if err != nil {
			return err
		}
		defer p.Close()

		if err := p.Reset(); err != nil {
			return err
		}
		fmt.Println("index reset")
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolVar(&flagYes, "yes", false, "confirm the destructive reset")
	rootCmd.AddCommand(resetCmd)
}
