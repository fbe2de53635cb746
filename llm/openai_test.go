package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestExtractLocation(t *testing.T) {
	srv := chatServer(t, `{"location_name": "Manhattan, NYC"}`)
	defer srv.Close()

	c := NewOpenAIClient("test-key", "gpt-4o")
	c.endpoint = srv.URL

	name, err := c.ExtractLocation(context.Background(), "flooding near central park in manhattan")
	require.NoError(t, err)
	assert.Equal(t, "Manhattan, NYC", name)
}

func TestExtractLocationStripsMarkdownFences(t *testing.T) {
	srv := chatServer(t, "```json\n{\"location_name\": \"Podgorica\"}\n```")
	defer srv.Close()

	c := NewOpenAIClient("test-key", "gpt-4o")
	c.endpoint = srv.URL

	name, err := c.ExtractLocation(context.Background(), "some text")
	require.NoError(t, err)
	assert.Equal(t, "Podgorica", name)
}

func TestExtractLocationNone(t *testing.T) {
	for _, content := range []string{
		`{"location_name": null}`,
		`{"location_name": ""}`,
		`{"location_name": "null"}`,
	} {
		srv := chatServer(t, content)
		c := NewOpenAIClient("test-key", "gpt-4o")
		c.endpoint = srv.URL

		_, err := c.ExtractLocation(context.Background(), "no places here")
		assert.ErrorIs(t, err, ErrNoLocation, "content: %s", content)
		srv.Close()
	}
}

func TestExtractLocationAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewOpenAIClient("test-key", "gpt-4o")
	c.endpoint = srv.URL

	_, err := c.ExtractLocation(context.Background(), "text")
	assert.Error(t, err)
}

func TestVerifyImage(t *testing.T) {
	srv := chatServer(t, `{"authentic": true, "confidence": 0.87, "notes": "consistent flood damage"}`)
	defer srv.Close()

	c := NewOpenAIClient("test-key", "gpt-4o")
	c.endpoint = srv.URL

	v, err := c.VerifyImage(context.Background(), "https://example.com/report.jpg")
	require.NoError(t, err)
	assert.True(t, v.Authentic)
	assert.InDelta(t, 0.87, v.Confidence, 1e-9)
}

func TestVerifyImageSendsImageContent(t *testing.T) {
	var gotBody chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		fmt.Fprint(w, `{"choices":[{"message":{"content":"{\"authentic\":false,\"confidence\":0.2}"}}]}`)
	}))
	defer srv.Close()

	c := NewOpenAIClient("test-key", "gpt-4o")
	c.endpoint = srv.URL

	_, err := c.VerifyImage(context.Background(), "https://example.com/x.jpg")
	require.NoError(t, err)

	require.Len(t, gotBody.Messages, 1)
	var foundImage bool
	for _, item := range gotBody.Messages[0].Content {
		if item.Type == "image_url" && item.ImageURL != nil {
			assert.Equal(t, "https://example.com/x.jpg", item.ImageURL.URL)
			foundImage = true
		}
	}
	assert.True(t, foundImage, "request must carry the image URL content item")
}
