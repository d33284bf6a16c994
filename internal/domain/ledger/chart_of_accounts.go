package ledger

import (
	"fmt"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
)

const maxAccountCodeLength = 20

// ChartOfAccounts is the aggregate owning all accounts of one tenant. It is a
// disposable projection of the chart-of-accounts-{tenant} stream; account
// code uniqueness is enforced here by replaying prior AccountCreated events
// before accepting a new one.
type ChartOfAccounts struct {
	shared.EventSourcedAggregate
	tenantID uuid.UUID
	accounts map[string]Account
}

// NewChartOfAccounts creates an empty chart at version 0
func NewChartOfAccounts(tenantID uuid.UUID) (*ChartOfAccounts, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	return &ChartOfAccounts{
		EventSourcedAggregate: shared.NewEventSourcedAggregate(shared.ChartOfAccountsStream(tenantID)),
		tenantID:              tenantID,
		accounts:              make(map[string]Account),
	}, nil
}

// LoadChartOfAccounts reconstructs the chart by folding its persisted events
func LoadChartOfAccounts(tenantID uuid.UUID, events []shared.DomainEvent, version int64) (*ChartOfAccounts, error) {
	chart, err := NewChartOfAccounts(tenantID)
	if err != nil {
		return nil, err
	}
	if err := chart.LoadFromHistory(events, version, chart.apply); err != nil {
		return nil, err
	}
	return chart, nil
}

// TenantID returns the owning tenant
func (c *ChartOfAccounts) TenantID() uuid.UUID {
	return c.tenantID
}

// Account looks up an account by code
func (c *ChartOfAccounts) Account(code string) (Account, bool) {
	account, ok := c.accounts[code]
	return account, ok
}

// Accounts returns the number of accounts in the chart
func (c *ChartOfAccounts) Accounts() int {
	return len(c.accounts)
}

// CreateAccount adds a new account to the chart. Fails with
// DuplicateAccountError when the code is already taken in this tenant.
func (c *ChartOfAccounts) CreateAccount(code, name string, accountType AccountType, parentCode string, postingAllowed bool, special SpecialAccountTag, createdBy uuid.UUID) error {
	if code == "" {
		return shared.NewDomainError("INVALID_ACCOUNT_CODE", "Account code cannot be empty")
	}
	if len(code) > maxAccountCodeLength {
		return shared.NewDomainError("INVALID_ACCOUNT_CODE", fmt.Sprintf("Account code cannot exceed %d characters", maxAccountCodeLength))
	}
	if name == "" {
		return shared.NewDomainError("INVALID_ACCOUNT_NAME", "Account name cannot be empty")
	}
	if !accountType.IsValid() {
		return shared.NewDomainError("INVALID_ACCOUNT_TYPE", fmt.Sprintf("Account type %q is not valid", accountType))
	}
	if !special.IsValid() {
		return shared.NewDomainError("INVALID_ACCOUNT_TAG", fmt.Sprintf("Special account tag %q is not valid", special))
	}
	if createdBy == uuid.Nil {
		return shared.NewDomainError("INVALID_USER", "Creator user ID cannot be empty")
	}
	if _, exists := c.accounts[code]; exists {
		return &DuplicateAccountError{AccountCode: code}
	}
	if parentCode != "" {
		if _, exists := c.accounts[parentCode]; !exists {
			return shared.NewDomainError("INVALID_PARENT_ACCOUNT", fmt.Sprintf("Parent account %q does not exist", parentCode))
		}
	}

	account := Account{
		Code:           code,
		Name:           name,
		Type:           accountType,
		ParentCode:     parentCode,
		Active:         true,
		PostingAllowed: postingAllowed,
		Special:        special,
	}
	return c.Raise(NewAccountCreatedEvent(c.tenantID, account, createdBy), c.apply)
}

// DeactivateAccount blocks further postings to an account
func (c *ChartOfAccounts) DeactivateAccount(code, reason string, by uuid.UUID) error {
	account, ok := c.accounts[code]
	if !ok {
		return shared.NewDomainError("NOT_FOUND", fmt.Sprintf("Account %q not found", code))
	}
	if !account.Active {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Account %q is already inactive", code))
	}
	return c.Raise(NewAccountDeactivatedEvent(c.tenantID, code, reason, by), c.apply)
}

// ReactivateAccount restores a deactivated account
func (c *ChartOfAccounts) ReactivateAccount(code string, by uuid.UUID) error {
	account, ok := c.accounts[code]
	if !ok {
		return shared.NewDomainError("NOT_FOUND", fmt.Sprintf("Account %q not found", code))
	}
	if account.Active {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Account %q is already active", code))
	}
	return c.Raise(NewAccountReactivatedEvent(c.tenantID, code, by), c.apply)
}

// apply folds one event into the chart's state. The switch is exhaustive
// over the sealed ChartOfAccountsEvent set; anything else on the stream is a
// contract violation.
func (c *ChartOfAccounts) apply(event shared.DomainEvent) error {
	switch e := event.(type) {
	case *AccountCreatedEvent:
		c.accounts[e.AccountCode] = Account{
			Code:           e.AccountCode,
			Name:           e.AccountName,
			Type:           e.AccountType,
			ParentCode:     e.ParentCode,
			Active:         true,
			PostingAllowed: e.PostingAllowed,
			Special:        e.Special,
		}
	case *AccountDeactivatedEvent:
		account := c.accounts[e.AccountCode]
		account.Active = false
		c.accounts[e.AccountCode] = account
	case *AccountReactivatedEvent:
		account := c.accounts[e.AccountCode]
		account.Active = true
		c.accounts[e.AccountCode] = account
	default:
		return shared.NewDomainError("UNKNOWN_EVENT", fmt.Sprintf("Event %q does not belong to a chart-of-accounts stream", event.EventType()))
	}
	return nil
}
