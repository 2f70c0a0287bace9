package ordering

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/venda/backend/internal/domain/shared"
	"github.com/venda/backend/internal/domain/shared/valueobject"
)

// LineKind is the closed set of order line variants. Reservation dispatches
// once over the kind instead of checking ad-hoc flags on each item.
type LineKind string

const (
	// LineKindProduct is a plain catalog product sold from inventory
	LineKindProduct LineKind = "PRODUCT"
	// LineKindToken is a pre-provisioned access token claimed from the token pool
	LineKindToken LineKind = "TOKEN"
	// LineKindOnDemandToken is an access token generated on the device at sale time
	LineKindOnDemandToken LineKind = "ONDEMAND_TOKEN"
	// LineKindCombo is a bundle that expands into component lines
	LineKindCombo LineKind = "COMBO"
)

// IsValid checks if the kind is a valid LineKind
func (k LineKind) IsValid() bool {
	switch k {
	case LineKindProduct, LineKindToken, LineKindOnDemandToken, LineKindCombo:
		return true
	}
	return false
}

// String returns the string representation of LineKind
func (k LineKind) String() string {
	return string(k)
}

// OrderLine represents one purchased unit group within an order.
// Provenance fields record where the line came from so a catalog mismatch
// can be diagnosed later without failing the sale.
type OrderLine struct {
	ID            uuid.UUID
	OrderID       uuid.UUID
	ParentLineID  *uuid.UUID // set for combo component lines
	Kind          LineKind
	Name          string
	SKU           string
	Category      string
	ProductID     *uuid.UUID
	VariantID     *uuid.UUID
	TokenConfigID *uuid.UUID
	Quantity      int
	UnitPrice     decimal.Decimal
	TotalPrice    decimal.Decimal
	Remark        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func newOrderLine(orderID uuid.UUID, kind LineKind, name string, quantity int, unitPrice valueobject.Money) (*OrderLine, error) {
	if !kind.IsValid() {
		return nil, shared.NewDomainError("INVALID_LINE_KIND", "Unknown order line kind")
	}
	if name == "" {
		return nil, shared.NewDomainError("INVALID_LINE_NAME", "Line name cannot be empty")
	}
	if quantity <= 0 {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Quantity must be positive")
	}
	if unitPrice.Amount().IsNegative() {
		return nil, shared.NewDomainError("INVALID_PRICE", "Unit price cannot be negative")
	}

	now := time.Now()
	qty := decimal.NewFromInt(int64(quantity))
	return &OrderLine{
		ID:         uuid.New(),
		OrderID:    orderID,
		Kind:       kind,
		Name:       name,
		Quantity:   quantity,
		UnitPrice:  unitPrice.Amount(),
		TotalPrice: unitPrice.Amount().Mul(qty),
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// NewProductLine creates a plain product line
func NewProductLine(orderID uuid.UUID, name, sku, category string, productID *uuid.UUID, quantity int, unitPrice valueobject.Money) (*OrderLine, error) {
	line, err := newOrderLine(orderID, LineKindProduct, name, quantity, unitPrice)
	if err != nil {
		return nil, err
	}
	line.SKU = sku
	line.Category = category
	line.ProductID = productID
	return line, nil
}

// NewTokenLine creates a pre-provisioned token line
func NewTokenLine(orderID uuid.UUID, name string, tokenConfigID uuid.UUID, quantity int, unitPrice valueobject.Money) (*OrderLine, error) {
	if tokenConfigID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TOKEN_CONFIG", "Token config ID cannot be empty")
	}
	line, err := newOrderLine(orderID, LineKindToken, name, quantity, unitPrice)
	if err != nil {
		return nil, err
	}
	line.TokenConfigID = &tokenConfigID
	return line, nil
}

// NewOnDemandTokenLine creates a line for a token generated on the device at sale time
func NewOnDemandTokenLine(orderID uuid.UUID, name string, tokenConfigID uuid.UUID, quantity int, unitPrice valueobject.Money) (*OrderLine, error) {
	if tokenConfigID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TOKEN_CONFIG", "Token config ID cannot be empty")
	}
	line, err := newOrderLine(orderID, LineKindOnDemandToken, name, quantity, unitPrice)
	if err != nil {
		return nil, err
	}
	line.TokenConfigID = &tokenConfigID
	return line, nil
}

// NewComboLine creates a bundle line. Components are attached through the
// order's AddComponentLine
// and carry zero price: the combo line owns the money.
func NewComboLine(orderID uuid.UUID, name string, quantity int, unitPrice valueobject.Money) (*OrderLine, error) {
	return newOrderLine(orderID, LineKindCombo, name, quantity, unitPrice)
}

// IsComponent returns true if this line is a combo component
func (l *OrderLine) IsComponent() bool {
	return l.ParentLineID != nil
}

// GetTotalMoney returns the line total as Money
func (l *OrderLine) GetTotalMoney() valueobject.Money {
	return valueobject.NewMoneyPHP(l.TotalPrice)
}

// GetUnitPriceMoney returns the unit price as Money
func (l *OrderLine) GetUnitPriceMoney() valueobject.Money {
	return valueobject.NewMoneyPHP(l.UnitPrice)
}
