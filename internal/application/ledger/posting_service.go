package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/venda/backend/internal/domain/ledger"
)

// PostObserver receives posting outcomes for metrics
type PostObserver interface {
	RecordLedgerPost(ctx context.Context, tenantID string)
}

// PostingService appends entries to the tenant ledger. Every append runs
// through the repository's balance-chain lock so concurrent posts cannot
// fork the running balance.
type PostingService struct {
	txRepo   ledger.TransactionRepository
	observer PostObserver
	logger   *zap.Logger
}

// NewPostingService creates a new PostingService
func NewPostingService(txRepo ledger.TransactionRepository, logger *zap.Logger) *PostingService {
	return &PostingService{
		txRepo: txRepo,
		logger: logger,
	}
}

// SetObserver wires posting metrics
func (s *PostingService) SetObserver(observer PostObserver) {
	s.observer = observer
}

// PostOrderDeposit records the cash received for a fully paid order
func (s *PostingService) PostOrderDeposit(ctx context.Context, tenantID, orderID uuid.UUID, amount decimal.Decimal, description string) error {
	tx, err := s.txRepo.Append(ctx, tenantID, func(balanceBefore decimal.Decimal) (*ledger.Transaction, error) {
		entry, err := ledger.NewTransaction(tenantID, ledger.TransactionTypeDeposit, amount, balanceBefore)
		if err != nil {
			return nil, err
		}
		return entry.WithOrder(orderID).WithDescription(description), nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("ledger deposit posted",
		zap.String("tenant_id", tenantID.String()),
		zap.String("order_id", orderID.String()),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("balance_after", tx.BalanceAfter.StringFixed(2)))
	if s.observer != nil {
		s.observer.RecordLedgerPost(ctx, tenantID.String())
	}
	return nil
}

// PostDisbursement records cash leaving the drawer, such as a payout or
// supplier payment
func (s *PostingService) PostDisbursement(ctx context.Context, tenantID uuid.UUID, amount decimal.Decimal, description string, postedBy *uuid.UUID) (*TransactionResponse, error) {
	tx, err := s.txRepo.Append(ctx, tenantID, func(balanceBefore decimal.Decimal) (*ledger.Transaction, error) {
		entry, err := ledger.NewTransaction(tenantID, ledger.TransactionTypeDisbursement, amount, balanceBefore)
		if err != nil {
			return nil, err
		}
		entry.WithDescription(description)
		if postedBy != nil {
			entry.WithPostedBy(*postedBy)
		}
		return entry, nil
	})
	if err != nil {
		return nil, err
	}
	if s.observer != nil {
		s.observer.RecordLedgerPost(ctx, tenantID.String())
	}
	resp := ToTransactionResponse(tx)
	return &resp, nil
}

// Balance returns the tenant's current running balance
func (s *PostingService) Balance(ctx context.Context, tenantID uuid.UUID) (string, error) {
	balance, err := s.txRepo.LatestBalance(ctx, tenantID)
	if err != nil {
		return "", err
	}
	return balance.StringFixed(2), nil
}

// ListByPeriod returns ledger entries posted within a time window
func (s *PostingService) ListByPeriod(ctx context.Context, tenantID uuid.UUID, from, to time.Time, page, pageSize int) ([]TransactionResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	txs, total, err := s.txRepo.FindByPeriod(ctx, tenantID, from, to, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, err
	}
	responses := make([]TransactionResponse, 0, len(txs))
	for idx := range txs {
		responses = append(responses, ToTransactionResponse(&txs[idx]))
	}
	return responses, total, nil
}
