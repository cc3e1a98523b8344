//go:build e2e

package e2e

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ingestResult struct {
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
	ChunkCount int    `json:"chunk_count"`
}

func TestE2E_StudyJourney(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	var docID string

	t.Run("ingest youtube video", func(t *testing.T) {
		resp, err := env.Post("/documents/youtube", map[string]string{
			"url": "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		})
		require.NoError(t, err)
		require.Equal(t, 201, resp.StatusCode, string(resp.Raw))

		var result ingestResult
		require.NoError(t, json.Unmarshal(resp.Data, &result))
		assert.NotEmpty(t, result.DocumentID)
		assert.Equal(t, "Newton's Laws Explained", result.Title)
		assert.GreaterOrEqual(t, result.ChunkCount, 3)

		docID = result.DocumentID
	})

	t.Run("document appears in listing", func(t *testing.T) {
		resp, err := env.Get("/documents/")
		require.NoError(t, err)
		require.Equal(t, 200, resp.StatusCode)

		var page struct {
			Items []struct {
				ID         string `json:"id"`
				SourceType string `json:"source_type"`
				SourceURL  string `json:"source_url"`
			} `json:"items"`
			HasMore bool `json:"has_more"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &page))
		require.Len(t, page.Items, 1)
		assert.Equal(t, docID, page.Items[0].ID)
		assert.Equal(t, "youtube", page.Items[0].SourceType)
		assert.False(t, page.HasMore)
	})

	t.Run("generate flashcards", func(t *testing.T) {
		resp, err := env.Post(fmt.Sprintf("/documents/%s/flashcards", docID), nil)
		require.NoError(t, err)
		require.Equal(t, 200, resp.StatusCode, string(resp.Raw))

		var result struct {
			DocumentID string `json:"document_id"`
			Flashcards []struct {
				Question string `json:"question"`
				Answer   string `json:"answer"`
			} `json:"flashcards"`
			Count    int    `json:"count"`
			Provider string `json:"provider"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &result))
		assert.Equal(t, docID, result.DocumentID)
		require.NotEmpty(t, result.Flashcards)
		assert.Equal(t, "What force keeps planets in orbit?", result.Flashcards[0].Question)
		assert.Equal(t, len(result.Flashcards), result.Count)
		assert.Equal(t, "gemini", result.Provider, "first candidate in the chain should win")
	})

	t.Run("generate quiz", func(t *testing.T) {
		resp, err := env.Post(fmt.Sprintf("/documents/%s/quiz", docID), nil)
		require.NoError(t, err)
		require.Equal(t, 200, resp.StatusCode, string(resp.Raw))

		var result struct {
			Questions []struct {
				Question      string            `json:"question"`
				Options       map[string]string `json:"options"`
				CorrectAnswer string            `json:"correct_answer"`
				Explanation   string            `json:"explanation"`
			} `json:"questions"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &result))
		require.NotEmpty(t, result.Questions)
		first := result.Questions[0]
		assert.Equal(t, "C", first.CorrectAnswer)
		assert.Len(t, first.Options, 4)
		assert.NotEmpty(t, first.Explanation)
	})

	t.Run("chat streams answer tokens", func(t *testing.T) {
		events, err := env.PostSSE(fmt.Sprintf("/documents/%s/chat", docID), map[string]interface{}{
			"message": "What do Newton's laws describe?",
		})
		require.NoError(t, err)
		require.NotEmpty(t, events)

		last := events[len(events)-1]
		assert.Equal(t, true, last["done"])

		var answer string
		for _, ev := range events[:len(events)-1] {
			content, _ := ev["content"].(string)
			answer += content
		}
		assert.Equal(t, "Newton's laws describe motion.", answer)
	})

	t.Run("chat about unknown document returns 404", func(t *testing.T) {
		resp, err := env.Post("/documents/00000000-0000-0000-0000-000000000000/chat", map[string]interface{}{
			"message": "hello",
		})
		require.NoError(t, err)
		assert.Equal(t, 404, resp.StatusCode)
	})

	t.Run("delete document", func(t *testing.T) {
		resp, err := env.Delete(fmt.Sprintf("/documents/%s", docID))
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)

		getResp, err := env.Get(fmt.Sprintf("/documents/%s", docID))
		require.NoError(t, err)
		assert.Equal(t, 404, getResp.StatusCode)
	})
}

func TestE2E_ValidationFailures(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	t.Run("bad youtube url", func(t *testing.T) {
		resp, err := env.Post("/documents/youtube", map[string]string{
			"url": "https://example.com/not-a-video",
		})
		require.NoError(t, err)
		assert.Equal(t, 400, resp.StatusCode)
		assert.NotEmpty(t, resp.Error)
	})

	t.Run("flashcards for unknown document", func(t *testing.T) {
		resp, err := env.Post("/documents/00000000-0000-0000-0000-000000000000/flashcards", nil)
		require.NoError(t, err)
		assert.Equal(t, 404, resp.StatusCode)
	})

	t.Run("empty chat message", func(t *testing.T) {
		resp, err := env.Post("/documents/00000000-0000-0000-0000-000000000000/chat", map[string]string{
			"message": "   ",
		})
		require.NoError(t, err)
		assert.Equal(t, 400, resp.StatusCode)
	})
}
