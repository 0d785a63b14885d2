//go:build e2e

package e2e

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestE2E_BaseLifecycle tests knowledge base CRUD operations
func TestE2E_BaseLifecycle(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	var baseID string

	t.Run("create base", func(t *testing.T) {
		resp, err := env.Post("/bases", map[string]interface{}{
			"name":     "E2E Docs",
			"model_id": "mock-embedding",
		})
		require.NoError(t, err)

		var base struct {
			ID         string  `json:"id"`
			Name       string  `json:"name"`
			ModelID    string  `json:"model_id"`
			Dimensions int     `json:"dimensions"`
			ItemCount  int     `json:"item_count"`
			Threshold  float64 `json:"threshold"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &base))
		assert.NotEmpty(t, base.ID)
		assert.Equal(t, "E2E Docs", base.Name)
		assert.Equal(t, "mock-embedding", base.ModelID)
		assert.Equal(t, 1536, base.Dimensions)
		assert.Equal(t, 0, base.ItemCount)

		baseID = base.ID
	})

	t.Run("get base by ID", func(t *testing.T) {
		resp, err := env.Get("/bases/" + baseID)
		require.NoError(t, err)

		var base struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &base))
		assert.Equal(t, baseID, base.ID)
		assert.Equal(t, "E2E Docs", base.Name)
	})

	t.Run("update base settings", func(t *testing.T) {
		resp, err := env.Patch("/bases/"+baseID, map[string]interface{}{
			"name":      "E2E Docs v2",
			"threshold": 0.5,
		})
		require.NoError(t, err)

		var base struct {
			Name      string  `json:"name"`
			Threshold float64 `json:"threshold"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &base))
		assert.Equal(t, "E2E Docs v2", base.Name)
		assert.InDelta(t, 0.5, base.Threshold, 1e-9)
	})

	t.Run("unknown model is rejected", func(t *testing.T) {
		_, err := env.Post("/bases", map[string]interface{}{
			"name":     "Bad Model",
			"model_id": "no-such-model",
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "400")
	})

	t.Run("list bases returns created base", func(t *testing.T) {
		resp, err := env.Get("/bases")
		require.NoError(t, err)

		var bases []struct {
			ID string `json:"id"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &bases))

		found := false
		for _, b := range bases {
			if b.ID == baseID {
				found = true
				break
			}
		}
		assert.True(t, found, "created base should be in list")
	})

	t.Run("delete base", func(t *testing.T) {
		_, err := env.Delete("/bases/" + baseID)
		require.NoError(t, err)

		_, err = env.Get("/bases/" + baseID)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "404")
	})
}

// TestE2E_NoteIngestion tests the async note pipeline from 202 to completed
func TestE2E_NoteIngestion(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	baseID := createBase(t, env, "Notes", map[string]interface{}{})

	resp, err := env.Post("/bases/"+baseID+"/items", map[string]interface{}{
		"type":    "note",
		"name":    "Release process",
		"content": "Deploys run from the release branch after the smoke suite passes.",
	})
	require.NoError(t, err)

	var accepted ItemState
	require.NoError(t, json.Unmarshal(resp.Data, &accepted))
	assert.Equal(t, "pending", accepted.Status)
	assert.Equal(t, "note", accepted.Type)

	item := env.WaitForItem(accepted.ID, 10*time.Second)
	assert.Equal(t, "completed", item.Status)
	assert.Equal(t, "Release process", item.Title)
	assert.False(t, item.Chunked)
	// mock-embedding is served natively, not as a fallback
	assert.False(t, item.Degraded)

	t.Run("item appears in base listing", func(t *testing.T) {
		resp, err := env.Get("/bases/" + baseID + "/items")
		require.NoError(t, err)

		var list struct {
			Items   []ItemState `json:"items"`
			HasMore bool        `json:"has_more"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &list))
		require.Len(t, list.Items, 1)
		assert.Equal(t, accepted.ID, list.Items[0].ID)
		assert.False(t, list.HasMore)
	})

	t.Run("base item count incremented", func(t *testing.T) {
		resp, err := env.Get("/bases/" + baseID)
		require.NoError(t, err)

		var base struct {
			ItemCount int `json:"item_count"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &base))
		assert.Equal(t, 1, base.ItemCount)
	})
}

// TestE2E_DegradedEmbedding tests the fallback flag when no remote provider is configured
func TestE2E_DegradedEmbedding(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	// The test server runs without provider credentials, so a remote
	// model resolves through the deterministic fallback.
	baseID := createBase(t, env, "Remote Model", map[string]interface{}{
		"model_id": "BAAI/bge-m3",
	})

	resp, err := env.Post("/bases/"+baseID+"/items", map[string]interface{}{
		"type":    "note",
		"content": "provider credentials are absent in this environment",
	})
	require.NoError(t, err)

	var accepted ItemState
	require.NoError(t, json.Unmarshal(resp.Data, &accepted))

	item := env.WaitForItem(accepted.ID, 10*time.Second)
	assert.Equal(t, "completed", item.Status)
	assert.True(t, item.Degraded)
}

// TestE2E_FileChunking tests file ingestion with chunking and source archival
func TestE2E_FileChunking(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	baseID := createBase(t, env, "Chunked Docs", map[string]interface{}{
		"chunk_count": 3,
	})

	content := strings.Repeat("Each operational runbook section describes one failure mode and its remedy. ", 40)
	resp, err := env.Post("/bases/"+baseID+"/items", map[string]interface{}{
		"type":    "file",
		"name":    "runbook.txt",
		"content": content,
	})
	require.NoError(t, err)

	var accepted ItemState
	require.NoError(t, json.Unmarshal(resp.Data, &accepted))

	item := env.WaitForItem(accepted.ID, 15*time.Second)
	require.Equal(t, "completed", item.Status)
	assert.True(t, item.Chunked)
	// chunked parents hold no content of their own
	assert.Empty(t, item.Content)

	t.Run("children carry ordered segments", func(t *testing.T) {
		resp, err := env.Get("/items/" + accepted.ID + "/children")
		require.NoError(t, err)

		var children []struct {
			ParentID   string `json:"parent_id"`
			Type       string `json:"type"`
			Content    string `json:"content"`
			ChunkIndex int    `json:"chunk_index"`
			Status     string `json:"status"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &children))
		require.Len(t, children, 3)

		for i, child := range children {
			assert.Equal(t, accepted.ID, child.ParentID)
			assert.Equal(t, "chunk", child.Type)
			assert.Equal(t, i, child.ChunkIndex)
			assert.Equal(t, "completed", child.Status)
			assert.NotEmpty(t, child.Content)
		}
	})

	t.Run("raw source archived for recovery", func(t *testing.T) {
		key := "sources/" + baseID + "/" + accepted.ID
		data, err := env.S3Client.GetObject(env.Ctx, key)
		require.NoError(t, err)
		assert.Equal(t, content, string(data))
	})
}

// TestE2E_Query tests similarity retrieval across ingested notes
func TestE2E_Query(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	baseID := createBase(t, env, "Search Corpus", map[string]interface{}{})

	notes := []string{
		"Postgres connection pools should stay below fifty connections per service.",
		"The deploy pipeline promotes images from staging to production on green builds.",
		"Customer exports run nightly and land in the warehouse bucket.",
	}
	for _, note := range notes {
		resp, err := env.Post("/bases/"+baseID+"/items", map[string]interface{}{
			"type":    "note",
			"content": note,
		})
		require.NoError(t, err)

		var accepted ItemState
		require.NoError(t, json.Unmarshal(resp.Data, &accepted))
		env.WaitForItem(accepted.ID, 10*time.Second)
	}

	t.Run("exact text retrieves its note", func(t *testing.T) {
		resp, err := env.Post("/query", map[string]interface{}{
			"base_ids": []string{baseID},
			"text":     notes[1],
		})
		require.NoError(t, err)

		var result struct {
			References []struct {
				ItemID     string  `json:"item_id"`
				BaseID     string  `json:"base_id"`
				Content    string  `json:"content"`
				Similarity float64 `json:"similarity"`
			} `json:"references"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &result))
		require.NotEmpty(t, result.References)

		top := result.References[0]
		assert.Equal(t, baseID, top.BaseID)
		assert.Equal(t, notes[1], top.Content)
		assert.Greater(t, top.Similarity, 0.99)
	})

	t.Run("unrelated text returns empty array", func(t *testing.T) {
		resp, err := env.Post("/query", map[string]interface{}{
			"base_ids": []string{baseID},
			"text":     "completely unrelated query about medieval falconry techniques",
		})
		require.NoError(t, err)

		var result struct {
			References []json.RawMessage `json:"references"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &result))
		assert.NotNil(t, result.References)
		assert.Empty(t, result.References)
	})

	t.Run("missing base ids is rejected", func(t *testing.T) {
		_, err := env.Post("/query", map[string]interface{}{
			"text": "anything",
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "400")
	})
}

// TestE2E_ItemRemoval tests item deletion and counter bookkeeping
func TestE2E_ItemRemoval(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	baseID := createBase(t, env, "Removal", map[string]interface{}{})

	resp, err := env.Post("/bases/"+baseID+"/items", map[string]interface{}{
		"type":    "note",
		"content": "short-lived note",
	})
	require.NoError(t, err)

	var accepted ItemState
	require.NoError(t, json.Unmarshal(resp.Data, &accepted))
	env.WaitForItem(accepted.ID, 10*time.Second)

	_, err = env.Delete("/items/" + accepted.ID)
	require.NoError(t, err)

	_, err = env.Get("/items/" + accepted.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")

	baseResp, err := env.Get("/bases/" + baseID)
	require.NoError(t, err)

	var base struct {
		ItemCount int `json:"item_count"`
	}
	require.NoError(t, json.Unmarshal(baseResp.Data, &base))
	assert.Equal(t, 0, base.ItemCount)
}

// TestE2E_IngestionFailure tests that an unreachable source lands the item in error
func TestE2E_IngestionFailure(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	baseID := createBase(t, env, "Failures", map[string]interface{}{})

	resp, err := env.Post("/bases/"+baseID+"/items", map[string]interface{}{
		"type": "url",
		"url":  "http://127.0.0.1:1/unreachable",
	})
	require.NoError(t, err)

	var accepted ItemState
	require.NoError(t, json.Unmarshal(resp.Data, &accepted))
	assert.Equal(t, "pending", accepted.Status)

	item := env.WaitForItem(accepted.ID, 30*time.Second)
	assert.Equal(t, "error", item.Status)
	assert.NotEmpty(t, item.Error)
}

// TestE2E_CLIWorkflow tests the CLI commands end-to-end
func TestE2E_CLIWorkflow(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()
	env.BuildBinaries()

	var baseID string
	var itemID string

	t.Run("corpora bases create", func(t *testing.T) {
		output, err := env.RunCorpora("bases", "create", "CLI Corpus", "--model", "mock-embedding")
		require.NoError(t, err, "create failed: %s", output)
		assert.Contains(t, output, "Created base")

		baseID = FieldAfter(output, "Created base")
		require.NotEmpty(t, baseID)
	})

	t.Run("corpora bases list shows the base", func(t *testing.T) {
		output, err := env.RunCorpora("bases", "list")
		require.NoError(t, err, "list failed: %s", output)
		assert.Contains(t, output, "CLI Corpus")
	})

	t.Run("corpora add creates a note", func(t *testing.T) {
		output, err := env.RunCorpora("add", baseID, "Incident reviews happen every Tuesday morning.")
		require.NoError(t, err, "add failed: %s", output)
		assert.Contains(t, output, "Accepted note item")

		itemID = FieldAfter(output, "Accepted note item")
		require.NotEmpty(t, itemID)

		env.WaitForItem(itemID, 10*time.Second)
	})

	t.Run("corpora add reads stdin", func(t *testing.T) {
		output, err := env.RunCorporaWithInput("Backups restore into the standby cluster first.", "add", baseID)
		require.NoError(t, err, "add failed: %s", output)
		assert.Contains(t, output, "Accepted note item")

		stdinItemID := FieldAfter(output, "Accepted note item")
		env.WaitForItem(stdinItemID, 10*time.Second)
	})

	t.Run("corpora item show reports completion", func(t *testing.T) {
		output, err := env.RunCorpora("item", "show", itemID)
		require.NoError(t, err, "show failed: %s", output)
		assert.Contains(t, output, "completed")
	})

	t.Run("corpora search finds the note", func(t *testing.T) {
		output, err := env.RunCorpora("search", "Incident reviews happen every Tuesday morning.", "--base", baseID)
		require.NoError(t, err, "search failed: %s", output)
		assert.Contains(t, output, "Incident reviews")
	})

	t.Run("corpora item rm deletes the note", func(t *testing.T) {
		output, err := env.RunCorpora("item", "rm", itemID)
		require.NoError(t, err, "rm failed: %s", output)

		_, err = env.RunCorpora("item", "show", itemID)
		require.Error(t, err)
	})
}

func createBase(t *testing.T, env *E2ETestEnv, name string, overrides map[string]interface{}) string {
	t.Helper()

	body := map[string]interface{}{
		"name":     name,
		"model_id": "mock-embedding",
	}
	for k, v := range overrides {
		body[k] = v
	}

	resp, err := env.Post("/bases", body)
	require.NoError(t, err)

	var base struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &base))
	require.NotEmpty(t, base.ID)
	return base.ID
}
