package models

import (
	"fmt"
	"time"
)

// Coordinate is an immutable lat/lng pair in degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate checks that the coordinate is within valid WGS84 bounds.
func (c Coordinate) Validate() error {
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("latitude %f out of range [-90, 90]", c.Lat)
	}
	if c.Lng < -180 || c.Lng > 180 {
		return fmt.Errorf("longitude %f out of range [-180, 180]", c.Lng)
	}
	return nil
}

// GeocodeResult is a resolved location produced by the geocoding resolver.
// Source is the name of the provider that produced the coordinates.
type GeocodeResult struct {
	Coordinates Coordinate `json:"coordinates"`
	Source      string     `json:"source"`
	ResolvedAt  time.Time  `json:"resolved_at"`
}

// ResourceType is a closed enum of resource categories.
type ResourceType string

const (
	ResourceShelter  ResourceType = "shelter"
	ResourceFood     ResourceType = "food"
	ResourceWater    ResourceType = "water"
	ResourceMedical  ResourceType = "medical"
	ResourceClothing ResourceType = "clothing"
	ResourceOther    ResourceType = "other"
)

// IsValid reports whether t is one of the known resource types.
func (t ResourceType) IsValid() bool {
	switch t {
	case ResourceShelter, ResourceFood, ResourceWater, ResourceMedical, ResourceClothing, ResourceOther:
		return true
	}
	return false
}

// AuditEntry is one append-only record in an entity's audit trail.
// Entries are never edited or removed once written.
type AuditEntry struct {
	Action    string         `json:"action"`
	UserID    string         `json:"user_id"`
	Timestamp time.Time      `json:"timestamp"`
	Changes   map[string]any `json:"changes,omitempty"`
}

// Disaster is the primary coordination record. Coordinates is nil when
// geocoding failed or was skipped; consumers must not treat nil as (0,0).
// NearbyResources is computed at creation time when the caller asks for it
// and is never stored.
type Disaster struct {
	ID              string           `json:"id"`
	Title           string           `json:"title"`
	LocationName    string           `json:"location_name"`
	Description     string           `json:"description,omitempty"`
	Coordinates     *Coordinate      `json:"coordinates"`
	Tags            []string         `json:"tags"`
	OwnerID         string           `json:"owner_id"`
	AuditTrail      []AuditEntry     `json:"audit_trail"`
	NearbyResources []NearbyResource `json:"nearby_resources,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// Resource is a relief resource, optionally tied to a disaster.
type Resource struct {
	ID           string       `json:"id"`
	DisasterID   *string      `json:"disaster_id"`
	Name         string       `json:"name"`
	Type         ResourceType `json:"type"`
	LocationName string       `json:"location_name,omitempty"`
	Coordinates  *Coordinate  `json:"coordinates"`
	Quantity     int          `json:"quantity"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Report verification states.
const (
	VerificationPending  = "pending"
	VerificationVerified = "verified"
	VerificationRejected = "rejected"
)

// Report is a citizen field report attached to a disaster.
type Report struct {
	ID                 string    `json:"id"`
	DisasterID         string    `json:"disaster_id"`
	UserID             string    `json:"user_id"`
	Content            string    `json:"content"`
	ImageURL           string    `json:"image_url,omitempty"`
	VerificationStatus string    `json:"verification_status"`
	VerificationNotes  string    `json:"verification_notes,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// ImageVerification is the LLM's judgement of a report image.
type ImageVerification struct {
	Authentic  bool    `json:"authentic"`
	Confidence float64 `json:"confidence"`
	Notes      string  `json:"notes,omitempty"`
}

// SocialPost is one item from a social-media search.
type SocialPost struct {
	ID       string    `json:"id"`
	User     string    `json:"user"`
	Content  string    `json:"content"`
	Platform string    `json:"platform"`
	PostedAt time.Time `json:"posted_at"`
}

// NearbyResource pairs a resource with its distance from a query origin.
type NearbyResource struct {
	Resource
	DistanceMeters float64 `json:"distance_meters"`
}

// NearbyDisaster pairs a disaster with its distance from a query origin.
type NearbyDisaster struct {
	Disaster
	DistanceMeters float64 `json:"distance_meters"`
}
