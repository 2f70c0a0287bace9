package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/venda/backend/internal/domain/shared"
)

// TransactionType classifies a ledger entry
type TransactionType string

const (
	TransactionTypeDeposit      TransactionType = "DEPOSIT"
	TransactionTypeDisbursement TransactionType = "DISBURSEMENT"
)

// IsValid checks if the transaction type is valid
func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionTypeDeposit, TransactionTypeDisbursement:
		return true
	}
	return false
}

// String returns the string representation of TransactionType
func (t TransactionType) String() string {
	return string(t)
}

// Transaction is one append-only ledger entry. Entries are never
// updated or deleted; corrections are posted as new entries.
// BalanceBefore and BalanceAfter are captured under a row lock on the
// latest entry so the running balance forms an unbroken chain.
type Transaction struct {
	shared.BaseEntity
	TenantID      uuid.UUID       `gorm:"type:uuid;not null;index:idx_ledger_tenant_posted"`
	Type          TransactionType `gorm:"type:varchar(20);not null"`
	Amount        decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	BalanceBefore decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	BalanceAfter  decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	OrderID       *uuid.UUID      `gorm:"type:uuid;index"`
	Description   string          `gorm:"type:varchar(500)"`
	PostedBy      *uuid.UUID      `gorm:"type:uuid"`
	PostedAt      time.Time       `gorm:"not null;index:idx_ledger_tenant_posted"`
}

// NewTransaction creates a ledger entry from the prior balance
func NewTransaction(tenantID uuid.UUID, txType TransactionType, amount, balanceBefore decimal.Decimal) (*Transaction, error) {
	if !txType.IsValid() {
		return nil, shared.NewDomainError("INVALID_TRANSACTION_TYPE", "Invalid ledger transaction type")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Transaction amount must be positive")
	}

	balanceAfter := balanceBefore
	switch txType {
	case TransactionTypeDeposit:
		balanceAfter = balanceBefore.Add(amount)
	case TransactionTypeDisbursement:
		if balanceBefore.LessThan(amount) {
			return nil, shared.NewDomainError("INSUFFICIENT_BALANCE", "Disbursement exceeds current balance")
		}
		balanceAfter = balanceBefore.Sub(amount)
	}

	return &Transaction{
		BaseEntity:    shared.NewBaseEntity(),
		TenantID:      tenantID,
		Type:          txType,
		Amount:        amount,
		BalanceBefore: balanceBefore,
		BalanceAfter:  balanceAfter,
		PostedAt:      time.Now(),
	}, nil
}

// WithOrder links the entry to the order that produced it
func (t *Transaction) WithOrder(orderID uuid.UUID) *Transaction {
	t.OrderID = &orderID
	return t
}

// WithDescription sets a human-readable memo
func (t *Transaction) WithDescription(desc string) *Transaction {
	t.Description = desc
	return t
}

// WithPostedBy records which user posted the entry
func (t *Transaction) WithPostedBy(userID uuid.UUID) *Transaction {
	t.PostedBy = &userID
	return t
}
