package event

import (
	"context"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// outboxRecord is the relational shape of one outbox entry
type outboxRecord struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID      uuid.UUID `gorm:"type:uuid;not null;index"`
	EventID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	EventType     string    `gorm:"size:100;not null"`
	StreamID      string    `gorm:"size:200;not null"`
	StreamKind    string    `gorm:"size:50;not null"`
	StreamVersion int64     `gorm:"not null"`
	Payload       []byte    `gorm:"not null"`
	Status        string    `gorm:"size:20;not null;index"`
	RetryCount    int       `gorm:"not null;default:0"`
	MaxRetries    int       `gorm:"not null"`
	LastError     string
	NextRetryAt   *time.Time `gorm:"index"`
	ProcessedAt   *time.Time
	CreatedAt     time.Time `gorm:"not null;index"`
	UpdatedAt     time.Time `gorm:"not null"`
}

// TableName returns the table name for outbox records
func (outboxRecord) TableName() string {
	return "ledger_outbox"
}

func toRecord(e *shared.OutboxEntry) outboxRecord {
	return outboxRecord{
		ID:            e.ID,
		TenantID:      e.TenantID,
		EventID:       e.EventID,
		EventType:     e.EventType,
		StreamID:      e.StreamID,
		StreamKind:    e.StreamKind.String(),
		StreamVersion: e.StreamVersion,
		Payload:       e.Payload,
		Status:        string(e.Status),
		RetryCount:    e.RetryCount,
		MaxRetries:    e.MaxRetries,
		LastError:     e.LastError,
		NextRetryAt:   e.NextRetryAt,
		ProcessedAt:   e.ProcessedAt,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}

func toEntry(r outboxRecord) *shared.OutboxEntry {
	return &shared.OutboxEntry{
		ID:            r.ID,
		TenantID:      r.TenantID,
		EventID:       r.EventID,
		EventType:     r.EventType,
		StreamID:      r.StreamID,
		StreamKind:    shared.StreamKind(r.StreamKind),
		StreamVersion: r.StreamVersion,
		Payload:       r.Payload,
		Status:        shared.OutboxStatus(r.Status),
		RetryCount:    r.RetryCount,
		MaxRetries:    r.MaxRetries,
		LastError:     r.LastError,
		NextRetryAt:   r.NextRetryAt,
		ProcessedAt:   r.ProcessedAt,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

// GormOutboxRepository stores outbox entries in the ledger_outbox table
type GormOutboxRepository struct {
	db *gorm.DB
}

// NewGormOutboxRepository creates a GORM-backed outbox repository
func NewGormOutboxRepository(db *gorm.DB) *GormOutboxRepository {
	return &GormOutboxRepository{db: db}
}

var _ shared.OutboxRepository = (*GormOutboxRepository)(nil)

// WithTx returns a repository bound to the given transaction, so entries can
// commit together with other writes
func (r *GormOutboxRepository) WithTx(tx *gorm.DB) *GormOutboxRepository {
	return &GormOutboxRepository{db: tx}
}

// AutoMigrate creates the outbox table. Intended for SQLite and tests; the
// Postgres schema is owned by the migration package.
func (r *GormOutboxRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&outboxRecord{})
}

// Save implements shared.OutboxRepository
func (r *GormOutboxRepository) Save(ctx context.Context, entries ...*shared.OutboxEntry) error {
	if len(entries) == 0 {
		return nil
	}
	records := make([]outboxRecord, len(entries))
	for i, e := range entries {
		records[i] = toRecord(e)
	}
	return r.db.WithContext(ctx).Create(&records).Error
}

// FetchPending implements shared.OutboxRepository. It returns entries never
// delivered plus failed entries whose backoff has elapsed, oldest first.
func (r *GormOutboxRepository) FetchPending(ctx context.Context, limit int) ([]*shared.OutboxEntry, error) {
	var records []outboxRecord
	err := r.db.WithContext(ctx).
		Where("status = ? OR (status = ? AND next_retry_at <= ?)",
			shared.OutboxStatusPending, shared.OutboxStatusFailed, time.Now()).
		Order("created_at ASC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	entries := make([]*shared.OutboxEntry, len(records))
	for i, record := range records {
		entries[i] = toEntry(record)
	}
	return entries, nil
}

// Update implements shared.OutboxRepository
func (r *GormOutboxRepository) Update(ctx context.Context, entry *shared.OutboxEntry) error {
	entry.UpdatedAt = time.Now()
	record := toRecord(entry)
	return r.db.WithContext(ctx).Save(&record).Error
}

// MarkProcessing claims entries for one processor instance. Rows are locked
// with FOR UPDATE SKIP LOCKED so concurrent processors never claim the same
// entry; only the claimed subset is returned.
func (r *GormOutboxRepository) MarkProcessing(ctx context.Context, ids []uuid.UUID) ([]*shared.OutboxEntry, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var claimed []*shared.OutboxEntry
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		// SQLite has no row locks; its single writer makes the claim atomic
		// without them
		if tx.Dialector.Name() != "sqlite" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}
		var records []outboxRecord
		if err := q.
			Where("id IN ? AND status IN ?", ids, []string{
				string(shared.OutboxStatusPending),
				string(shared.OutboxStatusFailed),
			}).
			Find(&records).Error; err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}

		claimedIDs := make([]uuid.UUID, len(records))
		for i, record := range records {
			claimedIDs[i] = record.ID
		}
		now := time.Now()
		if err := tx.Model(&outboxRecord{}).
			Where("id IN ?", claimedIDs).
			Updates(map[string]interface{}{
				"status":     string(shared.OutboxStatusProcessing),
				"updated_at": now,
			}).Error; err != nil {
			return err
		}

		claimed = make([]*shared.OutboxEntry, len(records))
		for i, record := range records {
			entry := toEntry(record)
			entry.Status = shared.OutboxStatusProcessing
			entry.UpdatedAt = now
			claimed[i] = entry
		}
		return nil
	})
	return claimed, err
}

// DeleteOlderThan removes sent entries processed before the cutoff
func (r *GormOutboxRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("status = ? AND processed_at < ?", shared.OutboxStatusSent, before).
		Delete(&outboxRecord{})
	return result.RowsAffected, result.Error
}

// CountByStatus returns how many entries sit in each status
func (r *GormOutboxRepository) CountByStatus(ctx context.Context) (map[shared.OutboxStatus]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var results []statusCount
	err := r.db.WithContext(ctx).
		Model(&outboxRecord{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&results).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[shared.OutboxStatus]int64, len(results))
	for _, result := range results {
		counts[shared.OutboxStatus(result.Status)] = result.Count
	}
	return counts, nil
}
