package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionRepository persists append-only ledger entries.
// Append must lock the tenant's latest entry, recompute the balance
// chain and insert in one transaction so concurrent posts serialize.
type TransactionRepository interface {
	Append(ctx context.Context, tenantID uuid.UUID, build func(balanceBefore decimal.Decimal) (*Transaction, error)) (*Transaction, error)
	LatestBalance(ctx context.Context, tenantID uuid.UUID) (decimal.Decimal, error)
	FindByOrder(ctx context.Context, tenantID, orderID uuid.UUID) ([]Transaction, error)
	FindByPeriod(ctx context.Context, tenantID uuid.UUID, from, to time.Time, limit, offset int) ([]Transaction, int64, error)
}
