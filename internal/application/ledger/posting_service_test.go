package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/venda/backend/internal/domain/ledger"
	"github.com/venda/backend/internal/domain/shared"
)

// fakeTransactionRepository drives the Append callback the way the real
// repository does, handing each build the current chain balance.
type fakeTransactionRepository struct {
	balance decimal.Decimal
	entries []ledger.Transaction
}

func (r *fakeTransactionRepository) Append(ctx context.Context, tenantID uuid.UUID, build func(balanceBefore decimal.Decimal) (*ledger.Transaction, error)) (*ledger.Transaction, error) {
	tx, err := build(r.balance)
	if err != nil {
		return nil, err
	}
	r.balance = tx.BalanceAfter
	r.entries = append(r.entries, *tx)
	return tx, nil
}

func (r *fakeTransactionRepository) LatestBalance(ctx context.Context, tenantID uuid.UUID) (decimal.Decimal, error) {
	return r.balance, nil
}

func (r *fakeTransactionRepository) FindByOrder(ctx context.Context, tenantID, orderID uuid.UUID) ([]ledger.Transaction, error) {
	matched := make([]ledger.Transaction, 0)
	for _, tx := range r.entries {
		if tx.OrderID != nil && *tx.OrderID == orderID {
			matched = append(matched, tx)
		}
	}
	return matched, nil
}

func (r *fakeTransactionRepository) FindByPeriod(ctx context.Context, tenantID uuid.UUID, from, to time.Time, limit, offset int) ([]ledger.Transaction, int64, error) {
	if offset >= len(r.entries) {
		return nil, int64(len(r.entries)), nil
	}
	end := offset + limit
	if end > len(r.entries) {
		end = len(r.entries)
	}
	return r.entries[offset:end], int64(len(r.entries)), nil
}

type recordingObserver struct {
	posts int
}

func (o *recordingObserver) RecordLedgerPost(ctx context.Context, tenantID string) {
	o.posts++
}

func newPostingFixture() (*PostingService, *fakeTransactionRepository, *recordingObserver) {
	repo := &fakeTransactionRepository{balance: decimal.Zero}
	observer := &recordingObserver{}
	service := NewPostingService(repo, zap.NewNop())
	service.SetObserver(observer)
	return service, repo, observer
}

// ============================================
// Posting Tests
// ============================================

func TestPostingService_PostOrderDeposit(t *testing.T) {
	tenantID := uuid.New()

	t.Run("chains deposits through the running balance", func(t *testing.T) {
		service, repo, observer := newPostingFixture()

		require.NoError(t, service.PostOrderDeposit(context.Background(), tenantID, uuid.New(), decimal.NewFromInt(100), "Order ORD-20260901-0001"))
		require.NoError(t, service.PostOrderDeposit(context.Background(), tenantID, uuid.New(), decimal.NewFromInt(50), "Order ORD-20260901-0002"))

		require.Len(t, repo.entries, 2)
		assert.Equal(t, "0.00", repo.entries[0].BalanceBefore.StringFixed(2))
		assert.Equal(t, "100.00", repo.entries[0].BalanceAfter.StringFixed(2))
		assert.Equal(t, "100.00", repo.entries[1].BalanceBefore.StringFixed(2))
		assert.Equal(t, "150.00", repo.entries[1].BalanceAfter.StringFixed(2))
		assert.Equal(t, 2, observer.posts)
	})

	t.Run("links the order and description", func(t *testing.T) {
		service, repo, _ := newPostingFixture()
		orderID := uuid.New()

		require.NoError(t, service.PostOrderDeposit(context.Background(), tenantID, orderID, decimal.NewFromInt(75), "Order ORD-20260901-0003"))

		entries, err := repo.FindByOrder(context.Background(), tenantID, orderID)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "Order ORD-20260901-0003", entries[0].Description)
	})
}

func TestPostingService_PostDisbursement(t *testing.T) {
	tenantID := uuid.New()

	t.Run("deducts from the balance", func(t *testing.T) {
		service, _, observer := newPostingFixture()
		require.NoError(t, service.PostOrderDeposit(context.Background(), tenantID, uuid.New(), decimal.NewFromInt(200), "Order ORD-20260901-0001"))

		userID := uuid.New()
		resp, err := service.PostDisbursement(context.Background(), tenantID, decimal.NewFromInt(80), "Supplier payment", &userID)
		require.NoError(t, err)

		assert.Equal(t, "DISBURSEMENT", resp.Type)
		assert.Equal(t, "200.00", resp.BalanceBefore)
		assert.Equal(t, "120.00", resp.BalanceAfter)
		assert.Equal(t, 2, observer.posts)
	})

	t.Run("rejects disbursement beyond the balance", func(t *testing.T) {
		service, repo, observer := newPostingFixture()

		_, err := service.PostDisbursement(context.Background(), tenantID, decimal.NewFromInt(10), "Payout", nil)
		require.Error(t, err)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INSUFFICIENT_BALANCE", domainErr.Code)

		assert.Empty(t, repo.entries)
		assert.Equal(t, 0, observer.posts)
	})
}

func TestPostingService_Balance(t *testing.T) {
	tenantID := uuid.New()
	service, _, _ := newPostingFixture()

	balance, err := service.Balance(context.Background(), tenantID)
	require.NoError(t, err)
	assert.Equal(t, "0.00", balance)

	require.NoError(t, service.PostOrderDeposit(context.Background(), tenantID, uuid.New(), decimal.NewFromFloat(45.50), "Order ORD-20260901-0001"))

	balance, err = service.Balance(context.Background(), tenantID)
	require.NoError(t, err)
	assert.Equal(t, "45.50", balance)
}

func TestPostingService_ListByPeriod(t *testing.T) {
	tenantID := uuid.New()
	service, _, _ := newPostingFixture()

	for i := 0; i < 5; i++ {
		require.NoError(t, service.PostOrderDeposit(context.Background(), tenantID, uuid.New(), decimal.NewFromInt(10), "Order"))
	}

	from := time.Now().Add(-time.Hour)
	to := time.Now().Add(time.Hour)

	t.Run("paginates", func(t *testing.T) {
		page, total, err := service.ListByPeriod(context.Background(), tenantID, from, to, 2, 2)
		require.NoError(t, err)
		assert.Equal(t, int64(5), total)
		assert.Len(t, page, 2)
		assert.Equal(t, "20.00", page[0].BalanceBefore)
	})

	t.Run("defaults page and size", func(t *testing.T) {
		page, total, err := service.ListByPeriod(context.Background(), tenantID, from, to, 0, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(5), total)
		assert.Len(t, page, 5)
	})
}
