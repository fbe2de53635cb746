package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/google/uuid"

	"disaster-coordination/cache"
	"disaster-coordination/database"
	"disaster-coordination/llm"
	"disaster-coordination/metrics"
	"disaster-coordination/models"
)

// Sentinel errors surfaced to handlers for status mapping.
var (
	ErrTitleRequired       = errors.New("title is required")
	ErrNameRequired        = errors.New("name is required")
	ErrContentRequired     = errors.New("content is required")
	ErrInvalidResourceType = errors.New("invalid resource type")
	ErrNoCoordinates       = errors.New("disaster has no coordinates to search from")
	ErrNoImage             = errors.New("report has no image to verify")
	ErrVerifierUnavailable = errors.New("image verification is not configured")
)

// Geocoder resolves a free-text place name to coordinates. A (nil, nil)
// return means the name could not be resolved; that is not an error.
type Geocoder interface {
	Geocode(ctx context.Context, locationName string) (*models.GeocodeResult, error)
}

// SocialFeed returns recent social posts about a disaster. Implementations
// degrade to an empty slice on failure.
type SocialFeed interface {
	PostsForDisaster(ctx context.Context, disasterID string, keywords []string) []models.SocialPost
}

// Notifier receives entity change events after successful mutations.
// Delivery is fire-and-forget; the mutation never waits on it.
type Notifier interface {
	Notify(event models.EntityEvent)
}

// Service orchestrates persistence, enrichment and change notification.
//
// Enrichment (location extraction, geocoding, image checks, social lookups)
// is strictly best-effort: any enrichment failure is logged, counted and
// swallowed, and the write proceeds with whatever data is available. Only
// the datastore write itself can fail a mutation.
type Service struct {
	db            *database.Database
	geocoder      Geocoder
	llm           llm.Client
	social        SocialFeed
	notifier      Notifier
	cache         *cache.Cache
	defaultRadius int

	updatesMu sync.Mutex
}

// New wires the orchestrator. geocoder, llmClient, social and notifier may
// each be nil; the corresponding enrichment step is then skipped.
func New(db *database.Database, geocoder Geocoder, llmClient llm.Client, social SocialFeed, notifier Notifier, c *cache.Cache, defaultRadius int) *Service {
	return &Service{
		db:            db,
		geocoder:      geocoder,
		llm:           llmClient,
		social:        social,
		notifier:      notifier,
		cache:         c,
		defaultRadius: defaultRadius,
	}
}

// maxRecentUpdates bounds the per-disaster event feed kept in the cache.
const maxRecentUpdates = 50

func (s *Service) notify(event models.EntityEvent) {
	s.recordUpdate(event)
	if s.notifier != nil {
		s.notifier.Notify(event)
	}
}

// recordUpdate appends a disaster-scoped event to the cached recent-updates
// feed for that disaster. Unscoped events are not recorded.
func (s *Service) recordUpdate(event models.EntityEvent) {
	if event.DisasterID == "" {
		return
	}
	s.updatesMu.Lock()
	defer s.updatesMu.Unlock()

	key := cache.UpdatesKey(event.DisasterID)
	var events []models.EntityEvent
	if v, ok := s.cache.Get(key); ok {
		events = v.([]models.EntityEvent)
	}
	events = append(events, event)
	if len(events) > maxRecentUpdates {
		events = events[len(events)-maxRecentUpdates:]
	}
	s.cache.Set(key, events)
}

// RecentUpdates returns the cached change events for a disaster, oldest
// first. The feed is best-effort: entries age out with the cache TTL, so an
// empty slice means "nothing recent", not "nothing ever".
func (s *Service) RecentUpdates(ctx context.Context, disasterID string) ([]models.EntityEvent, error) {
	if _, err := s.db.GetDisaster(ctx, disasterID); err != nil {
		return nil, err
	}
	if v, ok := s.cache.Get(cache.UpdatesKey(disasterID)); ok {
		return v.([]models.EntityEvent), nil
	}
	return []models.EntityEvent{}, nil
}

// resolveCoordinates geocodes locationName, swallowing every failure.
func (s *Service) resolveCoordinates(ctx context.Context, locationName string) *models.Coordinate {
	if s.geocoder == nil || strings.TrimSpace(locationName) == "" {
		return nil
	}
	result, err := s.geocoder.Geocode(ctx, locationName)
	if err != nil {
		log.WithError(err).Warnf("geocoding failed for %q", locationName)
		metrics.EnrichmentStepFailures.WithLabelValues("geocode").Inc()
		return nil
	}
	if result == nil {
		return nil
	}
	coord := result.Coordinates
	return &coord
}

// extractLocation asks the LLM for a place name in text, swallowing every
// failure including "no location found". Successful extractions are cached
// by text so identical submissions don't re-bill the provider.
func (s *Service) extractLocation(ctx context.Context, text string) string {
	if s.llm == nil || strings.TrimSpace(text) == "" {
		return ""
	}
	key := cache.LocationKey(text)
	if v, ok := s.cache.Get(key); ok {
		return v.(string)
	}
	name, err := s.llm.ExtractLocation(ctx, text)
	if err != nil {
		if !errors.Is(err, llm.ErrNoLocation) {
			log.WithError(err).Warn("location extraction failed")
			metrics.EnrichmentStepFailures.WithLabelValues("extract").Inc()
		}
		return ""
	}
	s.cache.Set(key, name)
	return name
}

// DisasterIntake is the payload for creating a disaster.
// IncludeNearbyResources asks for a snapshot of resources already known
// around the disaster, attached to the create response.
type DisasterIntake struct {
	Title                  string   `json:"title"`
	LocationName           string   `json:"location_name"`
	Description            string   `json:"description"`
	Tags                   []string `json:"tags"`
	IncludeNearbyResources bool     `json:"include_nearby_resources"`
}

// CreateDisaster persists a new disaster after best-effort enrichment.
// When no location name is supplied the description is mined for one; the
// resulting name (if any) is then geocoded. When the caller opted in and
// coordinates were obtained, nearby resources are looked up and attached to
// the response. Every enrichment step may fail without failing the create,
// so a stored disaster may legitimately carry nil coordinates.
func (s *Service) CreateDisaster(ctx context.Context, userID string, intake DisasterIntake) (*models.Disaster, error) {
	if strings.TrimSpace(intake.Title) == "" {
		return nil, ErrTitleRequired
	}

	locationName := strings.TrimSpace(intake.LocationName)
	if locationName == "" {
		locationName = s.extractLocation(ctx, intake.Description)
	}

	now := time.Now().UTC()
	disaster := &models.Disaster{
		ID:           uuid.New().String(),
		Title:        intake.Title,
		LocationName: locationName,
		Description:  intake.Description,
		Coordinates:  s.resolveCoordinates(ctx, locationName),
		Tags:         intake.Tags,
		OwnerID:      userID,
		AuditTrail: []models.AuditEntry{
			{Action: "create", UserID: userID, Timestamp: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if disaster.Tags == nil {
		disaster.Tags = []string{}
	}

	// Best-effort situational summary; another swallowed enrichment step.
	if intake.IncludeNearbyResources && disaster.Coordinates != nil {
		nearby, err := s.db.FindNearbyResources(ctx, *disaster.Coordinates, s.defaultRadius, "")
		if err != nil {
			log.WithError(err).Warnf("nearby resource lookup failed for disaster %s", disaster.ID)
			metrics.EnrichmentStepFailures.WithLabelValues("nearby").Inc()
		} else {
			disaster.NearbyResources = nearby
		}
	}

	if err := s.db.CreateDisaster(ctx, disaster); err != nil {
		return nil, err
	}

	s.notify(models.EntityEvent{
		Kind:       models.KindDisaster,
		Action:     models.ActionCreated,
		DisasterID: disaster.ID,
		Payload:    disaster,
	})
	return disaster, nil
}

// DisasterUpdate carries the mutable disaster fields. Nil means "leave as is".
type DisasterUpdate struct {
	Title        *string   `json:"title"`
	LocationName *string   `json:"location_name"`
	Description  *string   `json:"description"`
	Tags         *[]string `json:"tags"`
}

// UpdateDisaster applies a partial update, appending an audit entry that
// records exactly the fields that changed. A changed location name triggers
// re-geocoding; if the new name cannot be resolved the coordinates are
// cleared rather than left stale.
func (s *Service) UpdateDisaster(ctx context.Context, id, userID string, upd DisasterUpdate) (*models.Disaster, error) {
	disaster, err := s.db.GetDisaster(ctx, id)
	if err != nil {
		return nil, err
	}

	changes := map[string]any{}
	if upd.Title != nil && *upd.Title != disaster.Title {
		if strings.TrimSpace(*upd.Title) == "" {
			return nil, ErrTitleRequired
		}
		changes["title"] = *upd.Title
		disaster.Title = *upd.Title
	}
	if upd.Description != nil && *upd.Description != disaster.Description {
		changes["description"] = *upd.Description
		disaster.Description = *upd.Description
	}
	if upd.Tags != nil {
		changes["tags"] = *upd.Tags
		disaster.Tags = *upd.Tags
		if disaster.Tags == nil {
			disaster.Tags = []string{}
		}
	}
	if upd.LocationName != nil && *upd.LocationName != disaster.LocationName {
		changes["location_name"] = *upd.LocationName
		disaster.LocationName = *upd.LocationName
		disaster.Coordinates = s.resolveCoordinates(ctx, disaster.LocationName)
	}

	if len(changes) == 0 {
		return disaster, nil
	}

	disaster.AuditTrail = append(disaster.AuditTrail, models.AuditEntry{
		Action:    "update",
		UserID:    userID,
		Timestamp: time.Now().UTC(),
		Changes:   changes,
	})
	disaster.UpdatedAt = time.Now().UTC()

	if err := s.db.UpdateDisaster(ctx, disaster); err != nil {
		return nil, err
	}

	s.notify(models.EntityEvent{
		Kind:       models.KindDisaster,
		Action:     models.ActionUpdated,
		DisasterID: disaster.ID,
		Payload:    disaster,
	})
	return disaster, nil
}

// DeleteDisaster removes a disaster and announces the deletion.
func (s *Service) DeleteDisaster(ctx context.Context, id string) error {
	if err := s.db.DeleteDisaster(ctx, id); err != nil {
		return err
	}
	s.notify(models.EntityEvent{
		Kind:       models.KindDisaster,
		Action:     models.ActionDeleted,
		DisasterID: id,
		Payload:    map[string]string{"id": id},
	})
	// Cached derived data for the disaster is now stale.
	s.cache.Delete(cache.SocialKey(id))
	return nil
}

// GetDisaster fetches one disaster.
func (s *Service) GetDisaster(ctx context.Context, id string) (*models.Disaster, error) {
	return s.db.GetDisaster(ctx, id)
}

// ListDisasters lists disasters, optionally filtered by tag.
func (s *Service) ListDisasters(ctx context.Context, tag string, limit int) ([]models.Disaster, error) {
	return s.db.ListDisasters(ctx, tag, limit)
}

// ResourceIntake is the payload for creating or replacing a resource.
type ResourceIntake struct {
	DisasterID   *string             `json:"disaster_id"`
	Name         string              `json:"name"`
	Type         models.ResourceType `json:"type"`
	LocationName string              `json:"location_name"`
	Coordinates  *models.Coordinate  `json:"coordinates"`
	Quantity     int                 `json:"quantity"`
}

func (s *Service) validateResourceIntake(ctx context.Context, intake *ResourceIntake) error {
	if strings.TrimSpace(intake.Name) == "" {
		return ErrNameRequired
	}
	if !intake.Type.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidResourceType, intake.Type)
	}
	if intake.Coordinates != nil {
		if err := intake.Coordinates.Validate(); err != nil {
			return err
		}
	}
	if intake.DisasterID != nil {
		if _, err := s.db.GetDisaster(ctx, *intake.DisasterID); err != nil {
			return err
		}
	}
	return nil
}

// CreateResource persists a resource. Explicit coordinates win; otherwise a
// location name is geocoded best-effort.
func (s *Service) CreateResource(ctx context.Context, intake ResourceIntake) (*models.Resource, error) {
	if err := s.validateResourceIntake(ctx, &intake); err != nil {
		return nil, err
	}

	coords := intake.Coordinates
	if coords == nil {
		coords = s.resolveCoordinates(ctx, intake.LocationName)
	}

	resource := &models.Resource{
		ID:           uuid.New().String(),
		DisasterID:   intake.DisasterID,
		Name:         intake.Name,
		Type:         intake.Type,
		LocationName: intake.LocationName,
		Coordinates:  coords,
		Quantity:     intake.Quantity,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.db.CreateResource(ctx, resource); err != nil {
		return nil, err
	}

	event := models.EntityEvent{
		Kind:    models.KindResource,
		Action:  models.ActionCreated,
		Payload: resource,
	}
	if resource.DisasterID != nil {
		event.DisasterID = *resource.DisasterID
	}
	s.notify(event)
	return resource, nil
}

// UpdateResource replaces a resource's mutable fields.
func (s *Service) UpdateResource(ctx context.Context, id string, intake ResourceIntake) (*models.Resource, error) {
	existing, err := s.db.GetResource(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.validateResourceIntake(ctx, &intake); err != nil {
		return nil, err
	}

	coords := intake.Coordinates
	if coords == nil && intake.LocationName != existing.LocationName {
		coords = s.resolveCoordinates(ctx, intake.LocationName)
	}
	if coords == nil && intake.LocationName == existing.LocationName {
		coords = existing.Coordinates
	}

	resource := &models.Resource{
		ID:           id,
		DisasterID:   intake.DisasterID,
		Name:         intake.Name,
		Type:         intake.Type,
		LocationName: intake.LocationName,
		Coordinates:  coords,
		Quantity:     intake.Quantity,
		CreatedAt:    existing.CreatedAt,
	}

	if err := s.db.UpdateResource(ctx, resource); err != nil {
		return nil, err
	}

	event := models.EntityEvent{
		Kind:    models.KindResource,
		Action:  models.ActionUpdated,
		Payload: resource,
	}
	if resource.DisasterID != nil {
		event.DisasterID = *resource.DisasterID
	}
	s.notify(event)
	return resource, nil
}

// DeleteResource removes a resource and announces the deletion scoped to
// the disaster it belonged to, if any.
func (s *Service) DeleteResource(ctx context.Context, id string) error {
	resource, err := s.db.GetResource(ctx, id)
	if err != nil {
		return err
	}
	if err := s.db.DeleteResource(ctx, id); err != nil {
		return err
	}

	event := models.EntityEvent{
		Kind:    models.KindResource,
		Action:  models.ActionDeleted,
		Payload: map[string]string{"id": id},
	}
	if resource.DisasterID != nil {
		event.DisasterID = *resource.DisasterID
	}
	s.notify(event)
	return nil
}

// GetResource fetches one resource.
func (s *Service) GetResource(ctx context.Context, id string) (*models.Resource, error) {
	return s.db.GetResource(ctx, id)
}

// ListResources lists resources with optional disaster/type filters.
func (s *Service) ListResources(ctx context.Context, disasterID string, resourceType models.ResourceType, limit int) ([]models.Resource, error) {
	if resourceType != "" && !resourceType.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidResourceType, resourceType)
	}
	return s.db.ListResources(ctx, disasterID, resourceType, limit)
}

// NearbyResources finds resources around an explicit origin.
func (s *Service) NearbyResources(ctx context.Context, origin models.Coordinate, radiusMeters int, resourceType models.ResourceType) ([]models.NearbyResource, error) {
	if resourceType != "" && !resourceType.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidResourceType, resourceType)
	}
	return s.db.FindNearbyResources(ctx, origin, radiusMeters, resourceType)
}

// NearbyResourcesForDisaster finds resources around a disaster's own
// coordinates. A disaster without coordinates cannot anchor a proximity
// search; callers surface ErrNoCoordinates as a client error. A negative
// radius selects the service default; any explicit value, zero included,
// goes to the query engine's range check untouched.
func (s *Service) NearbyResourcesForDisaster(ctx context.Context, disasterID string, radiusMeters int, resourceType models.ResourceType) ([]models.NearbyResource, error) {
	disaster, err := s.db.GetDisaster(ctx, disasterID)
	if err != nil {
		return nil, err
	}
	if disaster.Coordinates == nil {
		return nil, ErrNoCoordinates
	}
	if radiusMeters < 0 {
		radiusMeters = s.defaultRadius
	}
	return s.NearbyResources(ctx, *disaster.Coordinates, radiusMeters, resourceType)
}

// NearbyDisasters finds disasters around an origin. A negative radius
// selects the service default; explicit values are never substituted.
func (s *Service) NearbyDisasters(ctx context.Context, origin models.Coordinate, radiusMeters int) ([]models.NearbyDisaster, error) {
	if radiusMeters < 0 {
		radiusMeters = s.defaultRadius
	}
	return s.db.FindNearbyDisasters(ctx, origin, radiusMeters)
}

// ReportIntake is the payload for submitting a field report.
type ReportIntake struct {
	Content  string `json:"content"`
	ImageURL string `json:"image_url"`
}

// SubmitReport files a citizen report against a disaster. Reports start
// pending; verification is a separate, explicit step.
func (s *Service) SubmitReport(ctx context.Context, disasterID, userID string, intake ReportIntake) (*models.Report, error) {
	if strings.TrimSpace(intake.Content) == "" {
		return nil, ErrContentRequired
	}
	if _, err := s.db.GetDisaster(ctx, disasterID); err != nil {
		return nil, err
	}

	report := &models.Report{
		ID:                 uuid.New().String(),
		DisasterID:         disasterID,
		UserID:             userID,
		Content:            intake.Content,
		ImageURL:           intake.ImageURL,
		VerificationStatus: models.VerificationPending,
		CreatedAt:          time.Now().UTC(),
	}

	if err := s.db.CreateReport(ctx, report); err != nil {
		return nil, err
	}

	s.notify(models.EntityEvent{
		Kind:       models.KindReport,
		Action:     models.ActionCreated,
		DisasterID: disasterID,
		Payload:    report,
	})
	return report, nil
}

// ListReports returns a disaster's reports, newest first.
func (s *Service) ListReports(ctx context.Context, disasterID string, limit int) ([]models.Report, error) {
	if _, err := s.db.GetDisaster(ctx, disasterID); err != nil {
		return nil, err
	}
	return s.db.ListReportsByDisaster(ctx, disasterID, limit)
}

// VerifyReport runs the LLM image check on a report and records the
// verdict. Unlike enrichment during writes, this is an explicit operation
// and its failures are returned to the caller. Verdicts are cached per
// report so repeated calls don't re-bill the provider.
func (s *Service) VerifyReport(ctx context.Context, reportID string) (*models.Report, error) {
	report, err := s.db.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if report.ImageURL == "" {
		return nil, ErrNoImage
	}
	if s.llm == nil {
		return nil, ErrVerifierUnavailable
	}

	var verdict *models.ImageVerification
	key := cache.ImageVerifyKey(reportID)
	if v, ok := s.cache.Get(key); ok {
		verdict = v.(*models.ImageVerification)
	} else {
		verdict, err = s.llm.VerifyImage(ctx, report.ImageURL)
		if err != nil {
			metrics.EnrichmentStepFailures.WithLabelValues("verify").Inc()
			return nil, fmt.Errorf("image verification failed: %w", err)
		}
		s.cache.Set(key, verdict)
	}

	status := models.VerificationRejected
	if verdict.Authentic && verdict.Confidence >= 0.5 {
		status = models.VerificationVerified
	}
	if err := s.db.UpdateReportVerification(ctx, reportID, status, verdict.Notes); err != nil {
		return nil, err
	}
	report.VerificationStatus = status
	report.VerificationNotes = verdict.Notes

	s.notify(models.EntityEvent{
		Kind:       models.KindReport,
		Action:     models.ActionUpdated,
		DisasterID: report.DisasterID,
		Payload:    report,
	})
	return report, nil
}

// SocialMedia returns recent social posts about a disaster. The lookup is
// keyword-driven from the disaster's title, location and tags, and always
// degrades to an empty slice.
func (s *Service) SocialMedia(ctx context.Context, disasterID string) ([]models.SocialPost, error) {
	disaster, err := s.db.GetDisaster(ctx, disasterID)
	if err != nil {
		return nil, err
	}
	if s.social == nil {
		return []models.SocialPost{}, nil
	}

	keywords := []string{disaster.Title}
	if disaster.LocationName != "" {
		keywords = append(keywords, disaster.LocationName)
	}
	keywords = append(keywords, disaster.Tags...)

	return s.social.PostsForDisaster(ctx, disasterID, keywords), nil
}
