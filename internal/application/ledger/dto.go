package ledger

import (
	"time"

	"github.com/google/uuid"

	"github.com/venda/backend/internal/domain/ledger"
)

// PostDisbursementRequest records cash leaving the drawer
type PostDisbursementRequest struct {
	Amount      float64 `json:"amount" binding:"required,gt=0"`
	Description string  `json:"description" binding:"required"`
}

// TransactionResponse is the read-side view of one ledger entry
type TransactionResponse struct {
	ID            uuid.UUID  `json:"id"`
	Type          string     `json:"type"`
	Amount        string     `json:"amount"`
	BalanceBefore string     `json:"balance_before"`
	BalanceAfter  string     `json:"balance_after"`
	OrderID       *uuid.UUID `json:"order_id,omitempty"`
	Description   string     `json:"description,omitempty"`
	PostedAt      time.Time  `json:"posted_at"`
}

// ToTransactionResponse maps a ledger transaction to its response form
func ToTransactionResponse(tx *ledger.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:            tx.ID,
		Type:          tx.Type.String(),
		Amount:        tx.Amount.StringFixed(2),
		BalanceBefore: tx.BalanceBefore.StringFixed(2),
		BalanceAfter:  tx.BalanceAfter.StringFixed(2),
		OrderID:       tx.OrderID,
		Description:   tx.Description,
		PostedAt:      tx.PostedAt,
	}
}
