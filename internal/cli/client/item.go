package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

type itemListResponse struct {
	Items   []ItemView `json:"items"`
	Cursor  string     `json:"cursor,omitempty"`
	HasMore bool       `json:"has_more"`
}

// ItemCmd creates the item command group.
func ItemCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "item",
		Short: "Inspect and manage knowledge items",
	}

	cmd.AddCommand(itemShowCmd())
	cmd.AddCommand(itemListCmd())
	cmd.AddCommand(itemChildrenCmd())
	cmd.AddCommand(itemRemoveCmd())

	return cmd
}

func itemShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show an item and its processing status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClient(cmd)
			if err != nil {
				return err
			}

			resp, err := api.Get("/items/" + args[0])
			if err != nil {
				return err
			}

			var item ItemView
			if err := json.Unmarshal(resp.Data, &item); err != nil {
				return fmt.Errorf("failed to parse item: %w", err)
			}

			outputJSON, _ := cmd.Flags().GetBool("output")
			if outputJSON {
				out, _ := json.MarshalIndent(item, "", "  ")
				fmt.Println(string(out))
				return nil
			}

			fmt.Printf("%s  %s\n", item.ID, item.Title)
			fmt.Printf("  Type:   %s\n", item.Type)
			fmt.Printf("  Status: %s\n", item.Status)
			if item.Error != "" {
				fmt.Printf("  Error:  %s\n", item.Error)
			}
			if item.Chunked {
				fmt.Println("  Chunked: yes")
			}
			if item.Degraded {
				fmt.Println("  Degraded: embedded with the deterministic fallback")
			}
			return nil
		},
	}
}

func itemListCmd() *cobra.Command {
	var (
		cursor string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "list <base-id>",
		Short: "List a base's items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClient(cmd)
			if err != nil {
				return err
			}

			path := fmt.Sprintf("/bases/%s/items?limit=%d", args[0], limit)
			if cursor != "" {
				path += "&cursor=" + cursor
			}
			resp, err := api.Get(path)
			if err != nil {
				return err
			}

			var page itemListResponse
			if err := json.Unmarshal(resp.Data, &page); err != nil {
				return fmt.Errorf("failed to parse items: %w", err)
			}

			if len(page.Items) == 0 {
				fmt.Println("No items.")
				return nil
			}
			for _, item := range page.Items {
				fmt.Printf("%s  [%s] %s (%s)\n", item.ID, item.Status, item.Title, item.Type)
			}
			if page.HasMore {
				fmt.Printf("\nMore items available, continue with --cursor %s\n", page.Cursor)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from previous response")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of items")

	return cmd
}

func itemChildrenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "children <id>",
		Short: "List an item's chunk children",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClient(cmd)
			if err != nil {
				return err
			}

			resp, err := api.Get("/items/" + args[0] + "/children")
			if err != nil {
				return err
			}

			var children []ItemView
			if err := json.Unmarshal(resp.Data, &children); err != nil {
				return fmt.Errorf("failed to parse children: %w", err)
			}

			if len(children) == 0 {
				fmt.Println("No chunk children.")
				return nil
			}
			for _, child := range children {
				fmt.Printf("%s  chunk %d [%s] %d chars\n", child.ID, child.ChunkIndex, child.Status, len(child.Content))
			}
			return nil
		},
	}
}

func itemRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete an item and everything derived from it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClient(cmd)
			if err != nil {
				return err
			}

			if _, err := api.Delete("/items/" + args[0]); err != nil {
				return err
			}

			fmt.Printf("Deleted item %s\n", args[0])
			return nil
		},
	}
}
