package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event type constants for outbox events.
const (
	EventTypePublicationCreated       = "publication.created"
	EventTypeCatalogPublicationSynced = "catalog_publication.synced"
	EventTypeSourceErrored            = "source.errored"
)

// Aggregate type constants for outbox events.
const (
	AggregateTypePublication        = "publication"
	AggregateTypeCatalogPublication = "catalog_publication"
	AggregateTypeSource             = "source"
)

// OutboxEvent represents an event to be published via the outbox pattern.
type OutboxEvent struct {
	EventID       uuid.UUID
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       []byte
	Attempts      int
	LastError     string
	CreatedAt     time.Time
	PublishedAt   *time.Time
}

// NewOutboxEvent creates a new outbox event with the given parameters.
// The payload is JSON-serialized automatically.
func NewOutboxEvent(eventType, aggregateID, aggregateType string, payload interface{}) (*OutboxEvent, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &OutboxEvent{
		EventID:       uuid.New(),
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Payload:       payloadBytes,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// PublicationCreatedPayload is the payload for publication.created events.
type PublicationCreatedPayload struct {
	PublicationID     int64  `json:"publication_id"`
	DOI               string `json:"doi,omitempty"`
	Catalog           string `json:"catalog"`
	CatalogIdentifier string `json:"catalog_identifier"`
}

// CatalogPublicationSyncedPayload is the payload for catalog_publication.synced events.
type CatalogPublicationSyncedPayload struct {
	CatalogPublicationID int64  `json:"catalog_publication_id"`
	PublicationID        int64  `json:"publication_id"`
	Catalog              string `json:"catalog"`
	CatalogIdentifier    string `json:"catalog_identifier"`
	Created              bool   `json:"created"`
	AuthorCount          int    `json:"author_count"`
}

// SourceErroredPayload is the payload for source.errored events.
type SourceErroredPayload struct {
	SourceID          int64  `json:"source_id"`
	Catalog           string `json:"catalog"`
	CatalogIdentifier string `json:"catalog_identifier"`
	Message           string `json:"message"`
}
