package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// BaseView mirrors the API's knowledge base representation.
type BaseView struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	ModelID      string  `json:"model_id"`
	Dimensions   int     `json:"dimensions"`
	ItemCount    int     `json:"item_count"`
	Threshold    float64 `json:"threshold"`
	ChunkCount   int     `json:"chunk_count"`
	ChunkSize    int     `json:"chunk_size"`
	ChunkOverlap int     `json:"chunk_overlap"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
}

// BasesCmd creates the bases command group.
func BasesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bases",
		Short: "Manage knowledge bases",
	}

	cmd.AddCommand(basesListCmd())
	cmd.AddCommand(basesCreateCmd())
	cmd.AddCommand(basesShowCmd())
	cmd.AddCommand(basesRemoveCmd())

	return cmd
}

func basesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List knowledge bases",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClient(cmd)
			if err != nil {
				return err
			}

			resp, err := api.Get("/bases")
			if err != nil {
				return err
			}

			var bases []BaseView
			if err := json.Unmarshal(resp.Data, &bases); err != nil {
				return fmt.Errorf("failed to parse bases: %w", err)
			}

			outputJSON, _ := cmd.Flags().GetBool("output")
			if outputJSON {
				out, _ := json.MarshalIndent(bases, "", "  ")
				fmt.Println(string(out))
				return nil
			}

			if len(bases) == 0 {
				fmt.Println("No knowledge bases.")
				return nil
			}
			for _, b := range bases {
				fmt.Printf("%s  %s (%s, %d items)\n", b.ID, b.Name, b.ModelID, b.ItemCount)
			}
			return nil
		},
	}
}

func basesCreateCmd() *cobra.Command {
	var (
		modelID    string
		threshold  float64
		chunkCount int
		chunkSize  int
		overlap    int
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a knowledge base",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClient(cmd)
			if err != nil {
				return err
			}

			body := map[string]interface{}{
				"name":     args[0],
				"model_id": modelID,
			}
			if threshold > 0 {
				body["threshold"] = threshold
			}
			if chunkCount > 0 {
				body["chunk_count"] = chunkCount
			}
			if chunkSize > 0 {
				body["chunk_size"] = chunkSize
			}
			if overlap > 0 {
				body["chunk_overlap"] = overlap
			}

			resp, err := api.Post("/bases", body)
			if err != nil {
				return err
			}

			var base BaseView
			if err := json.Unmarshal(resp.Data, &base); err != nil {
				return fmt.Errorf("failed to parse base: %w", err)
			}

			fmt.Printf("Created base %s (%s, %d dimensions)\n", base.ID, base.Name, base.Dimensions)
			return nil
		},
	}

	cmd.Flags().StringVarP(&modelID, "model", "m", "mock-embedding", "Embedding model id")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Similarity threshold (0, 1]")
	cmd.Flags().IntVar(&chunkCount, "chunk-count", 0, "Split items into exactly this many chunks")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "Chunk size budget in characters")
	cmd.Flags().IntVar(&overlap, "chunk-overlap", 0, "Character overlap between chunks")

	return cmd
}

func basesShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a knowledge base",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClient(cmd)
			if err != nil {
				return err
			}

			resp, err := api.Get("/bases/" + args[0])
			if err != nil {
				return err
			}

			var base BaseView
			if err := json.Unmarshal(resp.Data, &base); err != nil {
				return fmt.Errorf("failed to parse base: %w", err)
			}

			out, _ := json.MarshalIndent(base, "", "  ")
			fmt.Println(string(out))
			return nil
		},
	}
}

func basesRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a knowledge base and its items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClient(cmd)
			if err != nil {
				return err
			}

			if _, err := api.Delete("/bases/" + args[0]); err != nil {
				return err
			}

			fmt.Printf("Deleted base %s\n", args[0])
			return nil
		},
	}
}
