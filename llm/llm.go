package llm

import (
	"context"
	"errors"

	"disaster-coordination/models"
)

// ErrNoLocation is returned by ExtractLocation when the text contains no
// identifiable place name.
var ErrNoLocation = errors.New("no location found in text")

// Client abstracts the LLM provider used for report enrichment.
// Implementations must be concurrency-safe if used across goroutines.
type Client interface {
	// ExtractLocation pulls a geocodable place name out of free text.
	ExtractLocation(ctx context.Context, text string) (string, error)
	// VerifyImage judges whether a report image looks like an authentic
	// disaster photo.
	VerifyImage(ctx context.Context, imageURL string) (*models.ImageVerification, error)
	// SourceName returns a short provider label (e.g., "ChatGPT").
	SourceName() string
}
