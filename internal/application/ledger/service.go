package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/erp/ledger/internal/infrastructure/eventstore"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// DefaultConcurrencyRetries bounds how often a service method reloads and
// retries after an optimistic concurrency conflict
const DefaultConcurrencyRetries = 3

// LedgerService orchestrates the write side of the ledger: it loads
// aggregates by replaying their streams, applies commands, appends the
// resulting events under an expected-version guard, and publishes only what
// the store accepted.
type LedgerService struct {
	store      eventstore.Store
	accounts   ledger.AccountRepository
	converter  *CurrencyConverter
	publisher  shared.EventPublisher
	outbox     shared.OutboxRepository
	serializer *eventstore.Serializer
	logger     *zap.Logger

	functionalCurrency valueobject.Currency
	maxRetries         int

	postedEntries   *telemetry.Counter
	conflictRetries *telemetry.Counter
}

// ServiceOption configures optional LedgerService collaborators
type ServiceOption func(*LedgerService)

// WithPublisher sets the post-commit event publisher
func WithPublisher(publisher shared.EventPublisher) ServiceOption {
	return func(s *LedgerService) { s.publisher = publisher }
}

// WithOutbox stages committed events in an outbox for reliable delivery.
// Entries are serialized with the store-assigned stream version.
func WithOutbox(outbox shared.OutboxRepository, serializer *eventstore.Serializer) ServiceOption {
	return func(s *LedgerService) {
		s.outbox = outbox
		s.serializer = serializer
	}
}

// WithFunctionalCurrency makes the service convert every posted entry into
// the given currency before it reaches the journal-entry aggregate
func WithFunctionalCurrency(currency valueobject.Currency) ServiceOption {
	return func(s *LedgerService) { s.functionalCurrency = currency }
}

// WithConcurrencyRetries overrides the retry budget for optimistic
// concurrency conflicts
func WithConcurrencyRetries(retries int) ServiceOption {
	return func(s *LedgerService) {
		if retries >= 0 {
			s.maxRetries = retries
		}
	}
}

// NewLedgerService creates the posting orchestrator. The account repository
// and exchange rate provider are required collaborators; publisher, outbox
// and functional currency are optional.
func NewLedgerService(store eventstore.Store, accounts ledger.AccountRepository, rates ledger.ExchangeRateProvider, logger *zap.Logger, opts ...ServiceOption) *LedgerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &LedgerService{
		store:      store,
		accounts:   accounts,
		converter:  NewCurrencyConverter(rates),
		logger:     logger,
		maxRetries: DefaultConcurrencyRetries,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.postedEntries, _ = telemetry.NewCounter("ledger.journal_entries.posted", "Journal entries posted successfully")
	s.conflictRetries, _ = telemetry.NewCounter("ledger.append.conflict_retries", "Appends retried after an optimistic concurrency conflict")
	return s
}

// CreateAccount adds an account to the tenant's chart of accounts. The chart
// is a single stream per tenant, so concurrent account creation for one
// tenant contends; conflicts are retried against a fresh replay within the
// retry budget.
func (s *LedgerService) CreateAccount(ctx context.Context, cmd CreateAccountCommand) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "create_account",
		attribute.String("tenant_id", cmd.TenantID.String()),
		attribute.String("account_code", cmd.AccountCode),
	)
	defer span.End()

	err := s.withConflictRetry(ctx, func() error {
		chart, err := s.loadChart(ctx, cmd.TenantID)
		if err != nil {
			return err
		}
		if err := chart.CreateAccount(cmd.AccountCode, cmd.AccountName, cmd.AccountType, cmd.ParentCode, cmd.PostingAllowed, cmd.Special, cmd.UserID); err != nil {
			return err
		}
		return s.commit(ctx, chart)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	s.logger.Info("account created",
		zap.String("tenant_id", cmd.TenantID.String()),
		zap.String("account_code", cmd.AccountCode),
		zap.String("account_type", cmd.AccountType.String()),
	)
	return nil
}

// DeactivateAccount closes an account for further posting
func (s *LedgerService) DeactivateAccount(ctx context.Context, tenantID, userID uuid.UUID, code, reason string) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "deactivate_account",
		attribute.String("tenant_id", tenantID.String()),
		attribute.String("account_code", code),
	)
	defer span.End()

	err := s.withConflictRetry(ctx, func() error {
		chart, err := s.loadChart(ctx, tenantID)
		if err != nil {
			return err
		}
		if err := chart.DeactivateAccount(code, reason, userID); err != nil {
			return err
		}
		return s.commit(ctx, chart)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	s.logger.Info("account deactivated",
		zap.String("tenant_id", tenantID.String()),
		zap.String("account_code", code),
	)
	return nil
}

// ReactivateAccount reopens a deactivated account for posting
func (s *LedgerService) ReactivateAccount(ctx context.Context, tenantID, userID uuid.UUID, code string) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "reactivate_account",
		attribute.String("tenant_id", tenantID.String()),
		attribute.String("account_code", code),
	)
	defer span.End()

	err := s.withConflictRetry(ctx, func() error {
		chart, err := s.loadChart(ctx, tenantID)
		if err != nil {
			return err
		}
		if err := chart.ReactivateAccount(code, userID); err != nil {
			return err
		}
		return s.commit(ctx, chart)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	s.logger.Info("account reactivated",
		zap.String("tenant_id", tenantID.String()),
		zap.String("account_code", code),
	)
	return nil
}

// PostJournalEntry validates, converts and posts a journal entry in one
// operation: account existence and postability checks, optional conversion
// to the functional currency, then the DRAFT -> APPROVED -> POSTED sequence
// recorded on a brand-new stream. The append expects version 0; a conflict
// means the entry id was already used and is surfaced, never retried.
func (s *LedgerService) PostJournalEntry(ctx context.Context, cmd PostJournalEntryCommand) (*ledger.JournalEntry, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "post_journal_entry",
		attribute.String("tenant_id", cmd.TenantID.String()),
		attribute.String("journal_entry_id", cmd.JournalEntryID.String()),
		attribute.Int("line_count", len(cmd.Lines)),
	)
	defer span.End()

	if err := s.checkAccounts(ctx, cmd.TenantID, cmd.Lines); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	lines := cmd.Lines
	if s.functionalCurrency != "" && lines[0].Currency() != s.functionalCurrency {
		converted, err := s.converter.ConvertLines(ctx, lines, s.functionalCurrency, cmd.PostingDate)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		span.SetAttributes(
			attribute.String("source_currency", lines[0].Currency().String()),
			attribute.String("functional_currency", s.functionalCurrency.String()),
		)
		lines = converted
	}

	entry, err := ledger.NewJournalEntry(cmd.TenantID, cmd.JournalEntryID, cmd.Reference, cmd.Description, cmd.PostingDate, cmd.UserID, lines)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := entry.Approve(cmd.UserID); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := entry.Post(cmd.UserID); err != nil {
		telemetry.RecordError(span, err)
		s.logger.Error("journal entry failed aggregate revalidation",
			zap.String("tenant_id", cmd.TenantID.String()),
			zap.String("journal_entry_id", cmd.JournalEntryID.String()),
			zap.Error(err),
		)
		return nil, err
	}

	if err := s.commit(ctx, entry); err != nil {
		telemetry.RecordError(span, err)
		if errors.Is(err, shared.ErrConcurrencyConflict) {
			return nil, fmt.Errorf("journal entry %s already exists for tenant %s: %w",
				cmd.JournalEntryID, cmd.TenantID, err)
		}
		return nil, err
	}

	s.postedEntries.Inc(ctx, attribute.String("tenant_id", cmd.TenantID.String()))
	s.logger.Info("journal entry posted",
		zap.String("tenant_id", cmd.TenantID.String()),
		zap.String("journal_entry_id", cmd.JournalEntryID.String()),
		zap.String("reference", cmd.Reference),
		zap.String("total_debit", entry.TotalDebit().String()),
	)
	return entry, nil
}

// ReverseJournalEntry posts a compensating entry for a posted original and
// marks the original REVERSED. The two streams are appended in sequence, not
// atomically: the reversal entry first, then the original's status event. A
// conflict on the second append is retried against a fresh replay; an
// already-reversed original makes the retry fail with a state error.
func (s *LedgerService) ReverseJournalEntry(ctx context.Context, cmd ReverseJournalEntryCommand) (*ledger.JournalEntry, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "reverse_journal_entry",
		attribute.String("tenant_id", cmd.TenantID.String()),
		attribute.String("journal_entry_id", cmd.JournalEntryID.String()),
		attribute.String("reversal_entry_id", cmd.ReversalEntryID.String()),
	)
	defer span.End()

	original, err := s.loadEntry(ctx, cmd.TenantID, cmd.JournalEntryID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	reversal, err := ledger.NewReversalEntry(original, cmd.ReversalEntryID, cmd.Reason, cmd.UserID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := reversal.Approve(cmd.UserID); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := reversal.Post(cmd.UserID); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := s.commit(ctx, reversal); err != nil {
		telemetry.RecordError(span, err)
		if errors.Is(err, shared.ErrConcurrencyConflict) {
			return nil, fmt.Errorf("reversal entry %s already exists for tenant %s: %w",
				cmd.ReversalEntryID, cmd.TenantID, err)
		}
		return nil, err
	}

	err = s.withConflictRetry(ctx, func() error {
		fresh, err := s.loadEntry(ctx, cmd.TenantID, cmd.JournalEntryID)
		if err != nil {
			return err
		}
		if err := fresh.MarkReversed(cmd.ReversalEntryID, cmd.Reason, cmd.UserID); err != nil {
			return err
		}
		return s.commit(ctx, fresh)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		s.logger.Error("reversal posted but original not marked reversed",
			zap.String("tenant_id", cmd.TenantID.String()),
			zap.String("journal_entry_id", cmd.JournalEntryID.String()),
			zap.String("reversal_entry_id", cmd.ReversalEntryID.String()),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("journal entry reversed",
		zap.String("tenant_id", cmd.TenantID.String()),
		zap.String("journal_entry_id", cmd.JournalEntryID.String()),
		zap.String("reversal_entry_id", cmd.ReversalEntryID.String()),
	)
	return reversal, nil
}

// JournalEntry replays and returns one entry; shared.ErrNotFound when the
// stream has no events
func (s *LedgerService) JournalEntry(ctx context.Context, tenantID, entryID uuid.UUID) (*ledger.JournalEntry, error) {
	return s.loadEntry(ctx, tenantID, entryID)
}

// ChartOfAccounts replays and returns the tenant's chart. An empty stream
// yields an empty chart, not an error.
func (s *LedgerService) ChartOfAccounts(ctx context.Context, tenantID uuid.UUID) (*ledger.ChartOfAccounts, error) {
	return s.loadChart(ctx, tenantID)
}

// checkAccounts asserts every referenced account exists and accepts postings
func (s *LedgerService) checkAccounts(ctx context.Context, tenantID uuid.UUID, lines []ledger.JournalLine) error {
	codes := make([]string, 0, len(lines))
	seen := make(map[string]struct{}, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.AccountCode]; ok {
			continue
		}
		seen[line.AccountCode] = struct{}{}
		codes = append(codes, line.AccountCode)
	}

	accounts, err := s.accounts.FindAllByCodes(ctx, tenantID, codes)
	if err != nil {
		return fmt.Errorf("failed to look up accounts: %w", err)
	}
	found := make(map[string]ledger.Account, len(accounts))
	for _, account := range accounts {
		found[account.Code] = account
	}

	var missing, unpostable []string
	for _, code := range codes {
		account, ok := found[code]
		switch {
		case !ok:
			missing = append(missing, code)
		case !account.CanPost():
			unpostable = append(unpostable, code)
		}
	}
	if len(missing) > 0 {
		return &ledger.AccountsNotFoundError{TenantScope: tenantID.String(), Codes: missing}
	}
	if len(unpostable) > 0 {
		return shared.NewDomainError("ACCOUNT_NOT_POSTABLE",
			fmt.Sprintf("Accounts do not accept postings: %s", strings.Join(unpostable, ", ")))
	}
	return nil
}

// loadChart replays the tenant's chart-of-accounts stream
func (s *LedgerService) loadChart(ctx context.Context, tenantID uuid.UUID) (*ledger.ChartOfAccounts, error) {
	stream := shared.ChartOfAccountsStream(tenantID)
	stored, err := s.store.Events(ctx, stream, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load chart of accounts: %w", err)
	}
	return ledger.LoadChartOfAccounts(tenantID, eventstore.DomainEvents(stored), eventstore.CurrentVersion(0, stored))
}

// loadEntry replays one journal-entry stream; shared.ErrNotFound when empty
func (s *LedgerService) loadEntry(ctx context.Context, tenantID, entryID uuid.UUID) (*ledger.JournalEntry, error) {
	stream := shared.JournalEntryStream(tenantID, entryID)
	stored, err := s.store.Events(ctx, stream, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load journal entry: %w", err)
	}
	if len(stored) == 0 {
		return nil, fmt.Errorf("%w: journal entry %s for tenant %s", shared.ErrNotFound, entryID, tenantID)
	}
	return ledger.LoadJournalEntry(tenantID, entryID, eventstore.DomainEvents(stored), eventstore.CurrentVersion(0, stored))
}

// commit appends the aggregate's uncommitted events under its expected
// version, advances the aggregate, stages outbox entries and publishes. The
// events are durable once Append returns; outbox and publish failures are
// logged, not propagated, because the outbox processor and projections
// recover from the store.
func (s *LedgerService) commit(ctx context.Context, agg shared.AggregateRoot) error {
	events := agg.UncommittedEvents()
	if len(events) == 0 {
		return nil
	}
	expected := agg.ExpectedVersion()
	committed, err := s.store.Append(ctx, agg.Stream(), events, expected)
	if err != nil {
		return err
	}
	firstVersion := committed - int64(len(events)) + 1
	if err := agg.MarkCommitted(committed); err != nil {
		return err
	}

	if s.outbox != nil && s.serializer != nil {
		entries := make([]*shared.OutboxEntry, len(events))
		for i, event := range events {
			version := firstVersion + int64(i)
			payload, err := s.serializer.Serialize(event, version)
			if err != nil {
				return fmt.Errorf("failed to serialize event for outbox: %w", err)
			}
			entries[i] = shared.NewOutboxEntry(event, version, payload)
		}
		if err := s.outbox.Save(ctx, entries...); err != nil {
			s.logger.Error("failed to stage outbox entries",
				zap.String("stream", agg.Stream().String()),
				zap.Error(err),
			)
		}
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, events...); err != nil {
			s.logger.Error("failed to publish committed events",
				zap.String("stream", agg.Stream().String()),
				zap.Error(err),
			)
		}
	}
	return nil
}

// withConflictRetry runs op, reloading and retrying on optimistic
// concurrency conflicts up to the retry budget. Every attempt starts from a
// fresh replay inside op, so a timed-out append is re-read before any retry.
func (s *LedgerService) withConflictRetry(ctx context.Context, op func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = op()
		if err == nil || !errors.Is(err, shared.ErrConcurrencyConflict) {
			return err
		}
		if attempt >= s.maxRetries {
			return fmt.Errorf("retry budget of %d exhausted: %w", s.maxRetries, err)
		}
		s.conflictRetries.Inc(ctx)
		s.logger.Warn("optimistic concurrency conflict, retrying",
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
}
