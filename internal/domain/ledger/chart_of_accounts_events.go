package ledger

import (
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// ChartOfAccountsEvent is the closed set of events a chart-of-accounts stream
// can carry. The unexported marker keeps the set sealed so the aggregate's
// fold can match exhaustively.
type ChartOfAccountsEvent interface {
	shared.DomainEvent
	isChartOfAccountsEvent()
}

// AccountCreatedEvent is raised when a new account is added to the chart
type AccountCreatedEvent struct {
	shared.BaseDomainEvent
	AccountCode    string            `json:"account_code"`
	AccountName    string            `json:"account_name"`
	AccountType    AccountType       `json:"account_type"`
	ParentCode     string            `json:"parent_code,omitempty"`
	PostingAllowed bool              `json:"posting_allowed"`
	Special        SpecialAccountTag `json:"special,omitempty"`
	CreatedBy      uuid.UUID         `json:"created_by"`
}

// EventType returns the event type name
func (e *AccountCreatedEvent) EventType() string {
	return "AccountCreated"
}

func (e *AccountCreatedEvent) isChartOfAccountsEvent() {}

// NewAccountCreatedEvent creates a new AccountCreatedEvent scoped to the
// tenant's chart-of-accounts stream
func NewAccountCreatedEvent(tenantID uuid.UUID, account Account, createdBy uuid.UUID) *AccountCreatedEvent {
	return &AccountCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("AccountCreated", shared.ChartOfAccountsStream(tenantID)),
		AccountCode:     account.Code,
		AccountName:     account.Name,
		AccountType:     account.Type,
		ParentCode:      account.ParentCode,
		PostingAllowed:  account.PostingAllowed,
		Special:         account.Special,
		CreatedBy:       createdBy,
	}
}

// AccountDeactivatedEvent is raised when an account is taken out of use.
// Deactivation blocks new postings; history referencing the account stays.
type AccountDeactivatedEvent struct {
	shared.BaseDomainEvent
	AccountCode   string    `json:"account_code"`
	Reason        string    `json:"reason,omitempty"`
	DeactivatedBy uuid.UUID `json:"deactivated_by"`
	DeactivatedAt time.Time `json:"deactivated_at"`
}

// EventType returns the event type name
func (e *AccountDeactivatedEvent) EventType() string {
	return "AccountDeactivated"
}

func (e *AccountDeactivatedEvent) isChartOfAccountsEvent() {}

// NewAccountDeactivatedEvent creates a new AccountDeactivatedEvent
func NewAccountDeactivatedEvent(tenantID uuid.UUID, code, reason string, by uuid.UUID) *AccountDeactivatedEvent {
	return &AccountDeactivatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("AccountDeactivated", shared.ChartOfAccountsStream(tenantID)),
		AccountCode:     code,
		Reason:          reason,
		DeactivatedBy:   by,
		DeactivatedAt:   time.Now().UTC(),
	}
}

// AccountReactivatedEvent is raised when a deactivated account is restored
type AccountReactivatedEvent struct {
	shared.BaseDomainEvent
	AccountCode   string    `json:"account_code"`
	ReactivatedBy uuid.UUID `json:"reactivated_by"`
	ReactivatedAt time.Time `json:"reactivated_at"`
}

// EventType returns the event type name
func (e *AccountReactivatedEvent) EventType() string {
	return "AccountReactivated"
}

func (e *AccountReactivatedEvent) isChartOfAccountsEvent() {}

// NewAccountReactivatedEvent creates a new AccountReactivatedEvent
func NewAccountReactivatedEvent(tenantID uuid.UUID, code string, by uuid.UUID) *AccountReactivatedEvent {
	return &AccountReactivatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("AccountReactivated", shared.ChartOfAccountsStream(tenantID)),
		AccountCode:     code,
		ReactivatedBy:   by,
		ReactivatedAt:   time.Now().UTC(),
	}
}
