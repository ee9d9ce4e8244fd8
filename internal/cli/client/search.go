package client

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/cloo-solutions/bookmind/internal/api/handlers"
	"github.com/cloo-solutions/bookmind/internal/service"
	"github.com/spf13/cobra"
)

// SearchCmd creates the search command.
func SearchCmd() *cobra.Command {
	var (
		topK         int
		days         int
		tags         []string
		category     string
		domain       string
		keywordOnly  bool
		semanticOnly bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search bookmarks",
		Long:  "Runs a single hybrid search without conversation state. An empty query lists recent bookmarks.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			req := handlers.SearchRequest{
				TopK: topK,
				Filters: service.SearchFilters{
					CategoryID:    category,
					Tags:          tags,
					Domain:        domain,
					TimeRangeDays: days,
				},
				KeywordOnly:  keywordOnly,
				SemanticOnly: semanticOnly,
			}
			if len(args) == 1 {
				req.Query = args[0]
			}

			resp, err := api.Search(req)
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}
			return printSearch(cmd.OutOrStdout(), resp, outputJSON)
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "n", service.DefaultTopK, "Maximum number of results")
	cmd.Flags().IntVar(&days, "days", 0, "Only bookmarks saved in the last N days")
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "Only bookmarks with any of these tags")
	cmd.Flags().StringVar(&category, "category", "", "Only bookmarks in this category id")
	cmd.Flags().StringVar(&domain, "domain", "", "Only bookmarks whose host contains this domain")
	cmd.Flags().BoolVar(&keywordOnly, "keyword-only", false, "Disable semantic matching")
	cmd.Flags().BoolVar(&semanticOnly, "semantic-only", false, "Disable keyword matching")

	return cmd
}

func printSearch(w io.Writer, resp *handlers.SearchResponse, outputJSON bool) error {
	if outputJSON {
		output, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(output))
		return nil
	}

	if len(resp.Bookmarks) == 0 {
		fmt.Fprintln(w, "No results found.")
		return nil
	}

	scores := make(map[string]service.SearchResultItem)
	if resp.SearchResult != nil {
		for _, item := range resp.Items {
			scores[item.BookmarkID] = item
		}
	}

	fmt.Fprintf(w, "Found %d results:\n\n", len(resp.Bookmarks))
	for i, b := range resp.Bookmarks {
		item := scores[b.ID]
		fmt.Fprintf(w, "%d. %s (%.2f, %s)\n", i+1, b.Title, item.Score, item.MatchReason)
		fmt.Fprintf(w, "   %s\n", b.URL)
		if len(b.Tags) > 0 {
			fmt.Fprintf(w, "   Tags: %s\n", strings.Join(b.Tags, ", "))
		}
		fmt.Fprintf(w, "   ID: %s\n", b.ID)
		if i < len(resp.Bookmarks)-1 {
			fmt.Fprintln(w, strings.Repeat("-", 40))
		}
	}
	return nil
}

// SimilarCmd lists bookmarks semantically close to a given one.
func SimilarCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "similar <bookmark-id>",
		Short: "Find bookmarks similar to a bookmark",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			resp, err := api.Similar(args[0], limit)
			if err != nil {
				return fmt.Errorf("similar failed: %w", err)
			}

			w := cmd.OutOrStdout()
			if outputJSON {
				output, _ := json.MarshalIndent(resp, "", "  ")
				fmt.Fprintln(w, string(output))
				return nil
			}
			if len(resp.Items) == 0 {
				fmt.Fprintln(w, "No similar bookmarks (is the bookmark indexed? run 'bookmind embed').")
				return nil
			}
			for i, item := range resp.Items {
				fmt.Fprintf(w, "%d. %s (%.2f)\n   %s\n", i+1, item.Bookmark.Title, item.Score, item.Bookmark.URL)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "Maximum number of results")

	return cmd
}

// StatsCmd prints embedding coverage for the collection.
func StatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show collection and semantic index statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			cov, err := api.Diagnostics()
			if err != nil {
				return fmt.Errorf("stats failed: %w", err)
			}
			printStats(cmd.OutOrStdout(), cov, outputJSON)
			return nil
		},
	}
}

func printStats(w io.Writer, cov *service.EmbeddingCoverage, outputJSON bool) {
	if outputJSON {
		output, _ := json.MarshalIndent(cov, "", "  ")
		fmt.Fprintln(w, string(output))
		return
	}

	fmt.Fprintf(w, "Bookmarks:        %d\n", cov.TotalBookmarks)
	fmt.Fprintf(w, "Indexed:          %d (%.0f%%)\n", cov.EmbeddedBookmarks, cov.Coverage*100)
	if cov.ModelKey != "" {
		fmt.Fprintf(w, "Embedding model:  %s\n", cov.ModelKey)
	}
	semantic := "off"
	if cov.SemanticAvailable {
		semantic = "on"
	}
	fmt.Fprintf(w, "Semantic search:  %s\n", semantic)
}
