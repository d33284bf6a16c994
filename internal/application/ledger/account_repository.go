package ledger

import (
	"context"
	"fmt"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/eventstore"
	"github.com/google/uuid"
)

// StoreAccountRepository answers account lookups by replaying the tenant's
// chart-of-accounts stream. It is the default repository when no external
// read model is wired; deployments with a projected accounts table supply
// their own implementation instead.
type StoreAccountRepository struct {
	store eventstore.Store
}

// NewStoreAccountRepository creates an account repository over the event store
func NewStoreAccountRepository(store eventstore.Store) *StoreAccountRepository {
	return &StoreAccountRepository{store: store}
}

var _ ledger.AccountRepository = (*StoreAccountRepository)(nil)

// FindAllByCodes implements ledger.AccountRepository. Only accounts present
// in the chart are returned; callers detect missing codes by comparing the
// result against the request.
func (r *StoreAccountRepository) FindAllByCodes(ctx context.Context, tenantID uuid.UUID, codes []string) ([]ledger.Account, error) {
	stream := shared.ChartOfAccountsStream(tenantID)
	stored, err := r.store.Events(ctx, stream, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load chart of accounts: %w", err)
	}
	chart, err := ledger.LoadChartOfAccounts(tenantID, eventstore.DomainEvents(stored), eventstore.CurrentVersion(0, stored))
	if err != nil {
		return nil, err
	}

	accounts := make([]ledger.Account, 0, len(codes))
	for _, code := range codes {
		if account, ok := chart.Account(code); ok {
			accounts = append(accounts, account)
		}
	}
	return accounts, nil
}
