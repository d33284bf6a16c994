package eventstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// eventRecord is the relational shape of one stored event. The unique index
// on (storage_key, version) is what makes the optimistic concurrency check
// atomic: a racing append loses on insert, not on a stale read.
type eventRecord struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	StorageKey    string    `gorm:"size:200;not null;uniqueIndex:idx_ledger_events_stream_version,priority:1"`
	Version       int64     `gorm:"not null;uniqueIndex:idx_ledger_events_stream_version,priority:2"`
	TenantID      uuid.UUID `gorm:"type:uuid;not null;index"`
	StreamKind    string    `gorm:"size:50;not null"`
	StreamKey     string    `gorm:"size:100;not null"`
	EventType     string    `gorm:"size:100;not null"`
	OccurredAt    time.Time `gorm:"not null"`
	SchemaVersion int       `gorm:"not null;default:1"`
	Payload       []byte    `gorm:"not null"`
	CreatedAt     time.Time
}

// TableName returns the table name for event records
func (eventRecord) TableName() string {
	return "ledger_events"
}

// GormStore is the durable Store implementation over GORM. It works against
// Postgres in production and SQLite for embedded use; the schema is managed
// by the migration package (or AutoMigrate for SQLite).
type GormStore struct {
	db         *gorm.DB
	serializer *Serializer
}

// NewGormStore creates a durable event store over an open GORM connection
func NewGormStore(db *gorm.DB, serializer *Serializer) *GormStore {
	return &GormStore{db: db, serializer: serializer}
}

var _ Store = (*GormStore)(nil)

// AutoMigrate creates the event table. Intended for SQLite and tests; the
// Postgres schema is owned by the migration package.
func (s *GormStore) AutoMigrate() error {
	return s.db.AutoMigrate(&eventRecord{})
}

// Append implements Store
func (s *GormStore) Append(ctx context.Context, stream shared.StreamID, events []shared.DomainEvent, expectedVersion int64) (int64, error) {
	if err := validateAppend(stream, events, expectedVersion); err != nil {
		return 0, err
	}

	key := stream.StorageKey()
	committed := expectedVersion + int64(len(events))

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current int64
		if err := tx.Model(&eventRecord{}).
			Where("storage_key = ?", key).
			Select("COALESCE(MAX(version), 0)").
			Scan(&current).Error; err != nil {
			return fmt.Errorf("failed to read stream version: %w", err)
		}
		if current != expectedVersion {
			return concurrencyConflict(stream, expectedVersion, current)
		}

		records := make([]eventRecord, len(events))
		for i, event := range events {
			version := expectedVersion + int64(i) + 1
			payload, err := s.serializer.Serialize(event, version)
			if err != nil {
				return err
			}
			records[i] = eventRecord{
				ID:            event.EventID(),
				StorageKey:    key,
				Version:       version,
				TenantID:      stream.TenantID,
				StreamKind:    stream.Kind.String(),
				StreamKey:     stream.Key,
				EventType:     event.EventType(),
				OccurredAt:    event.OccurredAt().UTC(),
				SchemaVersion: event.SchemaVersion(),
				Payload:       payload,
			}
		}
		if err := tx.Create(&records).Error; err != nil {
			// A racing append that inserted first shows up as a unique
			// violation on (storage_key, version)
			if isUniqueViolation(err) {
				return concurrencyConflict(stream, expectedVersion, current)
			}
			return fmt.Errorf("failed to append events: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return committed, nil
}

// Events implements Store
func (s *GormStore) Events(ctx context.Context, stream shared.StreamID, fromVersion int64) ([]StoredEvent, error) {
	var records []eventRecord
	if err := s.db.WithContext(ctx).
		Where("storage_key = ? AND version > ?", stream.StorageKey(), fromVersion).
		Order("version ASC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}

	stored := make([]StoredEvent, 0, len(records))
	for _, record := range records {
		var env Envelope
		if err := json.Unmarshal(record.Payload, &env); err != nil {
			return nil, fmt.Errorf("corrupt envelope for event %s: %w", record.ID, err)
		}
		event, err := s.serializer.DeserializeEnvelope(env)
		if err != nil {
			return nil, err
		}
		stored = append(stored, StoredEvent{Version: record.Version, Event: event})
	}
	return stored, nil
}

// isUniqueViolation detects unique constraint failures across the Postgres
// and SQLite drivers
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value") || // postgres 23505
		strings.Contains(msg, "UNIQUE constraint failed") // sqlite
}
