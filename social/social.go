package social

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/tidwall/gjson"

	"disaster-coordination/cache"
	"disaster-coordination/models"
)

// SearchClient searches a social platform for posts matching keywords.
type SearchClient interface {
	Search(ctx context.Context, keywords []string) ([]models.SocialPost, error)
}

// HTTPClient queries a generic social-search endpoint. The endpoint is
// expected to answer {"posts": [{id, user, content, platform, posted_at}]}.
type HTTPClient struct {
	endpoint string
	token    string
	client   *http.Client
}

// NewHTTPClient creates a social search client against endpoint.
func NewHTTPClient(endpoint, token string) *HTTPClient {
	return &HTTPClient{
		endpoint: endpoint,
		token:    token,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Search runs a keyword search and returns matching posts.
func (c *HTTPClient) Search(ctx context.Context, keywords []string) ([]models.SocialPost, error) {
	reqURL := fmt.Sprintf("%s?q=%s", c.endpoint, url.QueryEscape(strings.Join(keywords, " ")))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("social search returned status %d: %s", resp.StatusCode, string(body))
	}

	posts := []models.SocialPost{}
	for _, item := range gjson.GetBytes(body, "posts").Array() {
		post := models.SocialPost{
			ID:       item.Get("id").String(),
			User:     item.Get("user").String(),
			Content:  item.Get("content").String(),
			Platform: item.Get("platform").String(),
		}
		if ts := item.Get("posted_at").String(); ts != "" {
			if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
				post.PostedAt = parsed
			}
		}
		posts = append(posts, post)
	}
	return posts, nil
}

// Service is the cached read-through layer over a SearchClient. Results are
// cached per disaster with their own (shorter) TTL.
type Service struct {
	client SearchClient
	cache  *cache.Cache
	ttl    time.Duration
}

// NewService creates a cached social search service.
func NewService(client SearchClient, c *cache.Cache, ttl time.Duration) *Service {
	return &Service{
		client: client,
		cache:  c,
		ttl:    ttl,
	}
}

// PostsForDisaster returns recent posts mentioning the disaster. Lookup
// failures degrade to an empty result, never an error to the caller.
func (s *Service) PostsForDisaster(ctx context.Context, disasterID string, keywords []string) []models.SocialPost {
	key := cache.SocialKey(disasterID)
	if v, ok := s.cache.Get(key); ok {
		return v.([]models.SocialPost)
	}

	if s.client == nil || len(keywords) == 0 {
		return []models.SocialPost{}
	}

	posts, err := s.client.Search(ctx, keywords)
	if err != nil {
		log.WithError(err).Warnf("social search failed for disaster %s", disasterID)
		return []models.SocialPost{}
	}

	s.cache.SetWithTTL(key, posts, s.ttl)
	return posts
}
