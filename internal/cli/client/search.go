package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// ReferenceView is one retrieval result.
type ReferenceView struct {
	ItemID     string  `json:"item_id"`
	BaseID     string  `json:"base_id"`
	Title      string  `json:"title"`
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
	Source     string  `json:"source"`
	Type       string  `json:"type"`
}

type searchResponse struct {
	References []ReferenceView `json:"references"`
}

// SearchCmd creates the search command.
func SearchCmd() *cobra.Command {
	var (
		baseIDs []string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search knowledge bases",
		Long:  "Searches the given knowledge bases with semantic similarity.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClient(cmd)
			if err != nil {
				return err
			}

			req := map[string]interface{}{
				"base_ids": baseIDs,
				"text":     args[0],
			}
			if limit > 0 {
				req["limit"] = limit
			}

			resp, err := api.Post("/query", req)
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}

			var result searchResponse
			if err := json.Unmarshal(resp.Data, &result); err != nil {
				return fmt.Errorf("failed to parse search results: %w", err)
			}

			outputJSON, _ := cmd.Flags().GetBool("output")
			if outputJSON {
				out, _ := json.MarshalIndent(result, "", "  ")
				fmt.Println(string(out))
				return nil
			}

			if len(result.References) == 0 {
				fmt.Println("No results found.")
				return nil
			}

			fmt.Printf("Found %d results:\n\n", len(result.References))
			for i, ref := range result.References {
				fmt.Printf("%d. %s (%.2f)\n", i+1, ref.Title, ref.Similarity)
				content := ref.Content
				if len(content) > 100 {
					content = content[:97] + "..."
				}
				if content != "" {
					fmt.Printf("   %s\n", content)
				}
				fmt.Printf("   Source: %s\n", ref.Source)
				fmt.Printf("   ID: %s\n", ref.ItemID)
				if i < len(result.References)-1 {
					fmt.Println()
				}
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&baseIDs, "base", "b", nil, "Base id to search (repeatable)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of results")
	_ = cmd.MarkFlagRequired("base")

	return cmd
}
