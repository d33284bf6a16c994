// Package ledger is an event-sourced, multi-tenant double-entry accounting
// kernel. It owns the write side only: a chart-of-accounts aggregate, a
// journal-entry aggregate with a posting workflow, an append-only event
// store with optimistic concurrency, and multi-currency conversion that
// keeps converted entries balanced to the minor unit.
//
// The implementation lives under internal/; this file re-exports the
// surface embedding services need.
package ledger

import (
	applicationledger "github.com/erp/ledger/internal/application/ledger"
	domainledger "github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/erp/ledger/internal/infrastructure/eventstore"
)

// Money and currency
type (
	Money    = valueobject.Money
	Currency = valueobject.Currency
)

var (
	NewMoney            = valueobject.NewMoney
	MustMoney           = valueobject.MustMoney
	Zero                = valueobject.Zero
	NewMoneyFromDecimal = valueobject.NewMoneyFromDecimal
	ParseMajor          = valueobject.ParseMajor
	ParseCurrency       = valueobject.ParseCurrency
)

// Currencies with dedicated constants
const (
	USD = valueobject.USD
	EUR = valueobject.EUR
	GBP = valueobject.GBP
	CNY = valueobject.CNY
	JPY = valueobject.JPY
	KRW = valueobject.KRW
	HKD = valueobject.HKD
)

// Streams and events
type (
	StreamID    = shared.StreamID
	StreamKind  = shared.StreamKind
	DomainEvent = shared.DomainEvent
)

var (
	ChartOfAccountsStream = shared.ChartOfAccountsStream
	JournalEntryStream    = shared.JournalEntryStream
)

// Domain aggregates and entities
type (
	Account           = domainledger.Account
	AccountType       = domainledger.AccountType
	SpecialAccountTag = domainledger.SpecialAccountTag
	ChartOfAccounts   = domainledger.ChartOfAccounts
	JournalEntry      = domainledger.JournalEntry
	JournalLine       = domainledger.JournalLine
	EntryStatus       = domainledger.JournalEntryStatus
)

const (
	AccountTypeAsset     = domainledger.AccountTypeAsset
	AccountTypeLiability = domainledger.AccountTypeLiability
	AccountTypeEquity    = domainledger.AccountTypeEquity
	AccountTypeRevenue   = domainledger.AccountTypeRevenue
	AccountTypeExpense   = domainledger.AccountTypeExpense

	EntryStatusDraft    = domainledger.JournalEntryStatusDraft
	EntryStatusApproved = domainledger.JournalEntryStatusApproved
	EntryStatusPosted   = domainledger.JournalEntryStatusPosted
	EntryStatusReversed = domainledger.JournalEntryStatusReversed
)

// Ports the embedding service implements or consumes
type (
	AccountRepository    = domainledger.AccountRepository
	ExchangeRateProvider = domainledger.ExchangeRateProvider
	EventPublisher       = shared.EventPublisher
	EventHandler         = shared.EventHandler
	EventBus             = shared.EventBus
)

// Event store
type (
	EventStore  = eventstore.Store
	StoredEvent = eventstore.StoredEvent
	Serializer  = eventstore.Serializer
)

var (
	NewMemoryStore = eventstore.NewMemoryStore
	NewGormStore   = eventstore.NewGormStore
	NewSerializer  = eventstore.NewSerializer
)

// Application services
type (
	Service                    = applicationledger.LedgerService
	ServiceOption              = applicationledger.ServiceOption
	CreateAccountCommand       = applicationledger.CreateAccountCommand
	PostJournalEntryCommand    = applicationledger.PostJournalEntryCommand
	ReverseJournalEntryCommand = applicationledger.ReverseJournalEntryCommand
	JournalLineInput           = applicationledger.JournalLineInput
	CurrencyConverter          = applicationledger.CurrencyConverter
)

var (
	NewService                    = applicationledger.NewLedgerService
	NewCreateAccountCommand       = applicationledger.NewCreateAccountCommand
	NewPostJournalEntryCommand    = applicationledger.NewPostJournalEntryCommand
	NewReverseJournalEntryCommand = applicationledger.NewReverseJournalEntryCommand
	NewCurrencyConverter          = applicationledger.NewCurrencyConverter
	NewStoreAccountRepository     = applicationledger.NewStoreAccountRepository

	WithPublisher          = applicationledger.WithPublisher
	WithOutbox             = applicationledger.WithOutbox
	WithFunctionalCurrency = applicationledger.WithFunctionalCurrency
	WithConcurrencyRetries = applicationledger.WithConcurrencyRetries
)

// Error taxonomy
type DomainError = shared.DomainError

var (
	ErrNotFound            = shared.ErrNotFound
	ErrAlreadyExists       = shared.ErrAlreadyExists
	ErrInvalidInput        = shared.ErrInvalidInput
	ErrConcurrencyConflict = shared.ErrConcurrencyConflict
	ErrInvalidState        = shared.ErrInvalidState
	ErrInvariantViolation  = shared.ErrInvariantViolation
)

type (
	DuplicateAccountError       = domainledger.DuplicateAccountError
	UnbalancedEntryError        = domainledger.UnbalancedEntryError
	ExchangeRateNotFoundError   = domainledger.ExchangeRateNotFoundError
	AccountsNotFoundError       = domainledger.AccountsNotFoundError
	InvalidStateTransitionError = domainledger.InvalidStateTransitionError
)
