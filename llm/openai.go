package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"disaster-coordination/models"
)

const openAIEndpoint = "https://api.openai.com/v1/chat/completions"

type message struct {
	Role    string        `json:"role"`
	Content []contentItem `json:"content"`
}

type contentItem struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// OpenAIClient talks to the OpenAI chat completions API.
type OpenAIClient struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

// NewOpenAIClient creates an OpenAI client.
func NewOpenAIClient(apiKey, model string) *OpenAIClient {
	return &OpenAIClient{
		apiKey:   apiKey,
		model:    model,
		endpoint: openAIEndpoint,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// SourceName returns the provider label.
func (c *OpenAIClient) SourceName() string { return "ChatGPT" }

// ExtractLocation asks the model for a geocodable place name in the text.
func (c *OpenAIClient) ExtractLocation(ctx context.Context, text string) (string, error) {
	prompt := fmt.Sprintf(`
Extract the most specific geocodable location name from the disaster report below.

%s

Please output the result as JSON:
{ "location_name": "value" }
Use a place name a geocoding service can resolve (e.g. "Manhattan, NYC", not "near the big bridge").
If no location can be identified, put null into "location_name".`, text)

	content, err := c.complete(ctx, []contentItem{{Type: "text", Text: prompt}})
	if err != nil {
		return "", err
	}

	var result struct {
		LocationName *string `json:"location_name"`
	}
	if err := json.Unmarshal([]byte(stripCodeFences(content)), &result); err != nil {
		return "", fmt.Errorf("failed to parse extraction result: %w", err)
	}
	if result.LocationName == nil || strings.TrimSpace(*result.LocationName) == "" ||
		strings.EqualFold(*result.LocationName, "null") {
		return "", ErrNoLocation
	}
	return strings.TrimSpace(*result.LocationName), nil
}

// VerifyImage asks the model whether the image looks like an authentic
// disaster-related photo.
func (c *OpenAIClient) VerifyImage(ctx context.Context, url string) (*models.ImageVerification, error) {
	prompt := `
Analyze the image and decide whether it shows an authentic disaster scene or disaster-relief context.
Flag signs of manipulation, AI generation, or unrelated content.

Please output the result as JSON:
{ "authentic": true, "confidence": 0.0, "notes": "value" }
confidence is in [0.0, 1.0].`

	content, err := c.complete(ctx, []contentItem{
		{Type: "text", Text: prompt},
		{Type: "image_url", ImageURL: &imageURL{URL: url}},
	})
	if err != nil {
		return nil, err
	}

	var result models.ImageVerification
	if err := json.Unmarshal([]byte(stripCodeFences(content)), &result); err != nil {
		return nil, fmt.Errorf("failed to parse verification result: %w", err)
	}
	return &result, nil
}

func (c *OpenAIClient) complete(ctx context.Context, content []contentItem) (string, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []message{
			{Role: "user", Content: content},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return chatResp.Choices[0].Message.Content, nil
}

var codeFenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// stripCodeFences unwraps JSON that the model wrapped in a markdown block.
func stripCodeFences(s string) string {
	if m := codeFenceRe.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return strings.TrimSpace(s)
}
