package shared

import (
	"fmt"

	"github.com/google/uuid"
)

// StreamKind identifies the aggregate family a stream belongs to
type StreamKind string

const (
	StreamKindChartOfAccounts StreamKind = "chart-of-accounts"
	StreamKindJournalEntry    StreamKind = "journal-entry"
)

// IsValid checks if the kind is a known StreamKind
func (k StreamKind) IsValid() bool {
	switch k {
	case StreamKindChartOfAccounts, StreamKindJournalEntry:
		return true
	}
	return false
}

// String returns the string representation of StreamKind
func (k StreamKind) String() string {
	return string(k)
}

// StreamID identifies one aggregate instance's event stream within one tenant.
// It is constructed once and compared structurally; callers never rebuild it
// from string prefixes.
type StreamID struct {
	TenantID uuid.UUID
	Kind     StreamKind
	Key      string
}

// NewStreamID creates a stream identifier after validating its parts
func NewStreamID(tenantID uuid.UUID, kind StreamKind, key string) (StreamID, error) {
	if tenantID == uuid.Nil {
		return StreamID{}, NewDomainError("INVALID_STREAM", "Stream tenant ID cannot be empty")
	}
	if !kind.IsValid() {
		return StreamID{}, NewDomainError("INVALID_STREAM", fmt.Sprintf("Unknown stream kind %q", kind))
	}
	if key == "" {
		return StreamID{}, NewDomainError("INVALID_STREAM", "Stream key cannot be empty")
	}
	return StreamID{TenantID: tenantID, Kind: kind, Key: key}, nil
}

// ChartOfAccountsStream returns the stream id owning a tenant's chart of accounts.
// Its key is the tenant itself: one chart per tenant.
func ChartOfAccountsStream(tenantID uuid.UUID) StreamID {
	return StreamID{TenantID: tenantID, Kind: StreamKindChartOfAccounts, Key: tenantID.String()}
}

// JournalEntryStream returns the stream id owning one journal entry
func JournalEntryStream(tenantID, journalEntryID uuid.UUID) StreamID {
	return StreamID{TenantID: tenantID, Kind: StreamKindJournalEntry, Key: journalEntryID.String()}
}

// Equal compares two stream ids structurally
func (s StreamID) Equal(other StreamID) bool {
	return s.TenantID == other.TenantID && s.Kind == other.Kind && s.Key == other.Key
}

// IsZero returns true for the zero StreamID
func (s StreamID) IsZero() bool {
	return s.TenantID == uuid.Nil && s.Kind == "" && s.Key == ""
}

// String returns the canonical textual form, e.g.
// "chart-of-accounts-2f1e..." or "journal-entry-8a0c...".
func (s StreamID) String() string {
	return fmt.Sprintf("%s-%s", s.Kind, s.Key)
}

// StorageKey returns the composite key used by event stores. Tenant isolation
// is enforced by key composition: two tenants can never share a storage key.
func (s StreamID) StorageKey() string {
	return fmt.Sprintf("%s/%s-%s", s.TenantID, s.Kind, s.Key)
}
