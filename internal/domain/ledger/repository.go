package ledger

import (
	"context"
	"time"

	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountRepository is the read-side lookup the posting service uses to
// verify that every account referenced by an entry exists for the tenant.
// Implementations return only the accounts actually found; any requested
// code missing from the result aborts the posting.
type AccountRepository interface {
	FindAllByCodes(ctx context.Context, tenantID uuid.UUID, codes []string) ([]Account, error)
}

// ExchangeRateProvider resolves a conversion rate for a currency pair on a
// date. A missing rate must be reported as ExchangeRateNotFoundError, never
// as a zero or stale rate.
type ExchangeRateProvider interface {
	Rate(ctx context.Context, from, to valueobject.Currency, on time.Time) (decimal.Decimal, error)
}
