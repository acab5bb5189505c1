package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/anthropic-exercise/codeintel/internal/project"
	"github.com/anthropic-exercise/codeintel/internal/searcher"
	"github.com/anthropic-exercise/codeintel/internal/vectorstore"
	"github.com/anthropic-exercise/codeintel/pkg/types"
)

var (
	flagK         int
	flagJSON      bool
	flagSimilarTo string
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the indexed project, or find chunks similar to --similar-to",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := project.Open(flagPath)
		if err != nil {
			return err
		}
		defer p.Close()

		ctx := cmd.Context()

		if flagSimilarTo != "" {
			results, err := p.SearchSimilar(ctx, flagSimilarTo, flagK, searcher.Options{})
			if err != nil {
				return err
			}
			return printResults(results)
		}

		if len(args) == 0 {
			return fmt.Errorf("search requires a query argument or --similar-to")
		}
		results, err := p.Search(ctx, args[0], flagK, vectorstore.Filter{}, searcher.Options{})
		if err != nil {
			return err
		}
		return printResults(results)
	},
}

func init() {
	searchCmd.Flags().IntVar(&flagK, "k", 10, "maximum number of results")
	searchCmd.Flags().BoolVar(&flagJSON, "json", false, "print results as JSON")
	searchCmd.Flags().StringVar(&flagSimilarTo, "similar-to", "", "a chunk id or project-relative path to find chunks similar to")
	rootCmd.AddCommand(searchCmd)
}

func printResults(results []types.SearchResult) error {
	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	for _, r := range results {
		name := r.ChunkID
		path := ""
		if r.Chunk != nil {
			name = r.Chunk.Name
		}
		if r.File != nil {
			path = fmt.Sprintf("%s:%d-%d", r.File.Path, r.File.StartLine, r.File.EndLine)
		}
		fmt.Printf("[%d] %.3f  %s  %s\n", r.Rank, r.FinalScore, name, path)
	}
	if len(results) == 0 {
		fmt.Println("no results")
	}
	return nil
}
