package client

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// ItemView mirrors the API's knowledge item representation.
type ItemView struct {
	ID         string `json:"id"`
	BaseID     string `json:"base_id"`
	ParentID   string `json:"parent_id,omitempty"`
	Type       string `json:"type"`
	Name       string `json:"name,omitempty"`
	Title      string `json:"title,omitempty"`
	Content    string `json:"content,omitempty"`
	SourceURL  string `json:"source_url,omitempty"`
	Chunked    bool   `json:"chunked"`
	ChunkIndex int    `json:"chunk_index,omitempty"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	Degraded   bool   `json:"degraded,omitempty"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

// AddCmd creates the add command.
func AddCmd() *cobra.Command {
	var (
		file    string
		url     string
		sitemap string
		dir     string
		name    string
	)

	cmd := &cobra.Command{
		Use:   "add <base-id> [note text]",
		Short: "Add a source unit to a knowledge base",
		Long: `Add a source unit to a knowledge base.

The unit type follows from the flags: --file uploads a local file,
--url ingests a web page, --sitemap ingests a sitemap listing, --dir
registers a directory. Without flags the remaining arguments (or
stdin) become a note.

Examples:
  corpora add b-123 "deploys run from the release branch"
  corpora add b-123 --file docs/runbook.txt
  corpora add b-123 --url https://example.com/handbook
  corpora add b-123 --sitemap https://example.com/sitemap.xml
  cat notes.txt | corpora add b-123`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClient(cmd)
			if err != nil {
				return err
			}

			baseID := args[0]
			body := map[string]string{"name": name}

			switch {
			case file != "":
				data, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("failed to read file: %w", err)
				}
				body["type"] = "file"
				body["content"] = string(data)
				if body["name"] == "" {
					body["name"] = filepath.Base(file)
				}
			case url != "":
				body["type"] = "url"
				body["url"] = url
			case sitemap != "":
				body["type"] = "sitemap"
				body["url"] = sitemap
			case dir != "":
				body["type"] = "directory"
				body["path"] = dir
			default:
				var content string
				if len(args) > 1 {
					content = args[1]
				} else {
					data, err := io.ReadAll(os.Stdin)
					if err != nil {
						return fmt.Errorf("failed to read stdin: %w", err)
					}
					content = string(data)
				}
				if content == "" {
					return fmt.Errorf("no note content provided")
				}
				body["type"] = "note"
				body["content"] = content
			}

			resp, err := api.Post("/bases/"+baseID+"/items", body)
			if err != nil {
				return err
			}

			var item ItemView
			if err := json.Unmarshal(resp.Data, &item); err != nil {
				return fmt.Errorf("failed to parse item: %w", err)
			}

			fmt.Printf("Accepted %s item %s (status: %s)\n", item.Type, item.ID, item.Status)
			fmt.Printf("Poll with: corpora item show %s\n", item.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Local file to ingest")
	cmd.Flags().StringVarP(&url, "url", "u", "", "Web page URL to ingest")
	cmd.Flags().StringVar(&sitemap, "sitemap", "", "Sitemap URL to ingest")
	cmd.Flags().StringVar(&dir, "dir", "", "Directory path to register")
	cmd.Flags().StringVar(&name, "name", "", "Display name for the unit")

	return cmd
}
