package ordering

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/venda/backend/internal/domain/catalog"
	"github.com/venda/backend/internal/domain/inventory"
	"github.com/venda/backend/internal/domain/ordering"
	"github.com/venda/backend/internal/domain/shared"
	"github.com/venda/backend/internal/domain/shared/valueobject"
	"github.com/venda/backend/internal/domain/token"
)

// CommitObserver receives commit protocol outcomes for metrics
type CommitObserver interface {
	RecordOrderCommitted(ctx context.Context, tenantID string)
	RecordTokensSold(ctx context.Context, tenantID string, count int64)
	RecordRollback(ctx context.Context, tenantID, reason string)
}

// LedgerPoster posts the cash movement of a committed order to the ledger.
// Posting happens after the order is durable; a posting failure downgrades
// to a warning on the response instead of rolling the order back.
type LedgerPoster interface {
	PostOrderDeposit(ctx context.Context, tenantID, orderID uuid.UUID, amount decimal.Decimal, description string) error
}

// CommitService runs the order commit protocol: allocate an order number,
// persist the order, reserve every line's resources, finalize, then post
// to the ledger. Any failure before finalization unwinds all completed
// side effects in reverse order.
type CommitService struct {
	orderRepo       ordering.OrderRepository
	variantRepo     catalog.VariantRepository
	inventoryRepo   inventory.ItemRepository
	movementRepo    inventory.MovementRepository
	tokenRepo       token.TokenRepository
	tokenConfigRepo token.TokenConfigRepository
	tokenSaleRepo   token.TokenSaleRepository
	gateway         token.DeviceGateway
	allocator       *OrderNumberAllocator
	guard           shared.IdempotencyGuard
	guardCfg        shared.IdempotencyConfig
	poster          LedgerPoster
	observer        CommitObserver
	logger          *zap.Logger
}

// NewCommitService creates the commit protocol service
func NewCommitService(
	orderRepo ordering.OrderRepository,
	variantRepo catalog.VariantRepository,
	inventoryRepo inventory.ItemRepository,
	movementRepo inventory.MovementRepository,
	tokenRepo token.TokenRepository,
	tokenConfigRepo token.TokenConfigRepository,
	tokenSaleRepo token.TokenSaleRepository,
	gateway token.DeviceGateway,
	allocator *OrderNumberAllocator,
	guard shared.IdempotencyGuard,
	guardCfg shared.IdempotencyConfig,
	logger *zap.Logger,
) *CommitService {
	return &CommitService{
		orderRepo:       orderRepo,
		variantRepo:     variantRepo,
		inventoryRepo:   inventoryRepo,
		movementRepo:    movementRepo,
		tokenRepo:       tokenRepo,
		tokenConfigRepo: tokenConfigRepo,
		tokenSaleRepo:   tokenSaleRepo,
		gateway:         gateway,
		allocator:       allocator,
		guard:           guard,
		guardCfg:        guardCfg,
		logger:          logger,
	}
}

// SetLedgerPoster wires the ledger posting step
func (s *CommitService) SetLedgerPoster(poster LedgerPoster) {
	s.poster = poster
}

// SetObserver wires commit metrics
func (s *CommitService) SetObserver(observer CommitObserver) {
	s.observer = observer
}

// Commit executes the full commit protocol for one cart
func (s *CommitService) Commit(ctx context.Context, tenantID uuid.UUID, req CommitOrderRequest) (*CommitOrderResponse, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	// Replay check: a retried submission with the same key gets the stored
	// response back without re-executing anything. A miss claims the key,
	// which holds concurrent duplicates inside Check until this request
	// stores its response or fails and releases.
	replay, claimed, err := s.checkReplay(ctx, req.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	if replay != nil {
		return replay, nil
	}

	sg := newSaga(s.logger)
	resp, err := s.commit(ctx, sg, tenantID, req)
	if err != nil {
		sg.unwind(ctx)
		if claimed {
			s.releaseReplay(ctx, req.IdempotencyKey)
		}
		if s.observer != nil {
			s.observer.RecordRollback(ctx, tenantID.String(), rollbackReason(err))
		}
		return nil, err
	}

	if s.observer != nil {
		s.observer.RecordOrderCommitted(ctx, tenantID.String())
		if sold := int64(len(resp.Credentials)); sold > 0 {
			s.observer.RecordTokensSold(ctx, tenantID.String(), sold)
		}
	}
	s.storeReplay(ctx, req.IdempotencyKey, resp)
	return resp, nil
}

func rollbackReason(err error) string {
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return "INTERNAL"
}

func (s *CommitService) commit(ctx context.Context, sg *saga, tenantID uuid.UUID, req CommitOrderRequest) (*CommitOrderResponse, error) {
	warnings := make([]string, 0)

	order, err := s.createOrder(ctx, tenantID, req)
	if err != nil {
		return nil, err
	}
	orderID := order.ID
	sg.push("delete order", func(ctx context.Context) error {
		return s.orderRepo.DeleteWithLines(ctx, tenantID, orderID)
	})

	credentials := make([]SoldCredential, 0)
	for idx := range order.Lines {
		line := &order.Lines[idx]
		creds, warns, err := s.reserveLine(ctx, sg, order, line, req.PaymentMethod)
		if err != nil {
			return nil, err
		}
		credentials = append(credentials, creds...)
		warnings = append(warnings, warns...)
	}

	if err := s.finalize(ctx, order, req); err != nil {
		return nil, err
	}

	// Order is durable from here on. Ledger posting failure is reported,
	// not compensated.
	if warn := s.postToLedger(ctx, order); warn != "" {
		warnings = append(warnings, warn)
	}

	return &CommitOrderResponse{
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		Status:         order.Status.String(),
		PaymentStatus:  order.PaymentStatus.String(),
		Subtotal:       order.Subtotal.StringFixed(2),
		TaxAmount:      order.TaxAmount.StringFixed(2),
		DiscountAmount: order.DiscountAmount.StringFixed(2),
		TotalAmount:    order.TotalAmount.StringFixed(2),
		AmountReceived: order.AmountReceived.StringFixed(2),
		CompletedAt:    order.CompletedAt,
		Lines:          ToCommitLineResults(order.Lines),
		Credentials:    credentials,
		Warnings:       warnings,
	}, nil
}

// createOrder allocates an order number and persists the PENDING order with
// its lines. A number that loses the insert race is regenerated up to the
// allocator's retry budget; the final attempt uses a random suffix that
// cannot collide with the daily sequence.
func (s *CommitService) createOrder(ctx context.Context, tenantID uuid.UUID, req CommitOrderRequest) (*ordering.Order, error) {
	for attempt := 0; attempt <= s.allocator.MaxAttempts(); attempt++ {
		number, err := s.allocator.Next(ctx, tenantID, attempt)
		if err != nil {
			return nil, err
		}

		order, err := s.buildOrder(tenantID, number, req)
		if err != nil {
			return nil, err
		}

		err = s.orderRepo.Save(ctx, order)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, shared.ErrOrderNumberConflict) {
			return nil, err
		}
		s.logger.Warn("order number collision, regenerating",
			zap.String("order_number", number),
			zap.Int("attempt", attempt))
	}
	return nil, shared.ErrOrderNumberConflict
}

func (s *CommitService) buildOrder(tenantID uuid.UUID, number string, req CommitOrderRequest) (*ordering.Order, error) {
	order, err := ordering.NewOrder(tenantID, number, ordering.PaymentMethod(req.PaymentMethod))
	if err != nil {
		return nil, err
	}
	if req.CustomerRef != "" {
		order.SetCustomerRef(req.CustomerRef)
	}
	if req.Remark != "" {
		order.SetRemark(req.Remark)
	}
	order.CreatedBy = req.CommittedBy

	for _, item := range req.Lines {
		line, err := s.buildLine(order.ID, item)
		if err != nil {
			return nil, err
		}
		if err := order.AddLine(line); err != nil {
			return nil, err
		}
		for _, comp := range item.Components {
			compLine, err := s.buildLine(order.ID, comp)
			if err != nil {
				return nil, err
			}
			if err := order.AddComponentLine(line.ID, compLine); err != nil {
				return nil, err
			}
		}
	}

	if req.Tax != nil {
		if err := order.ApplyTax(valueobject.NewMoneyPHPFromFloat(*req.Tax)); err != nil {
			return nil, err
		}
	}
	if req.Discount != nil {
		if err := order.ApplyDiscount(valueobject.NewMoneyPHPFromFloat(*req.Discount)); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func (s *CommitService) buildLine(orderID uuid.UUID, item CommitLineItem) (*ordering.OrderLine, error) {
	price := valueobject.NewMoneyPHPFromFloat(item.UnitPrice)
	kind := ordering.LineKind(item.Kind)

	var line *ordering.OrderLine
	var err error
	switch kind {
	case ordering.LineKindProduct:
		line, err = ordering.NewProductLine(orderID, item.Name, item.SKU, item.Category, item.ProductID, item.Quantity, price)
	case ordering.LineKindToken:
		line, err = ordering.NewTokenLine(orderID, item.Name, deref(item.TokenConfigID), item.Quantity, price)
	case ordering.LineKindOnDemandToken:
		line, err = ordering.NewOnDemandTokenLine(orderID, item.Name, deref(item.TokenConfigID), item.Quantity, price)
	case ordering.LineKindCombo:
		line, err = ordering.NewComboLine(orderID, item.Name, item.Quantity, price)
	default:
		return nil, shared.NewDomainError("INVALID_LINE_KIND", fmt.Sprintf("Unknown line kind %q", item.Kind))
	}
	if err != nil {
		return nil, err
	}
	if item.VariantID != nil {
		line.VariantID = item.VariantID
	}
	if item.Remark != "" {
		line.Remark = item.Remark
	}
	return line, nil
}

// reserveLine dispatches one line to its reservation path. Combo lines carry
// the money and reserve nothing themselves; their components do the work.
func (s *CommitService) reserveLine(ctx context.Context, sg *saga, order *ordering.Order, line *ordering.OrderLine, paymentMethod string) ([]SoldCredential, []string, error) {
	switch line.Kind {
	case ordering.LineKindProduct:
		warns, err := s.reserveProduct(ctx, sg, order, line)
		return nil, warns, err
	case ordering.LineKindToken:
		creds, err := s.reserveTokens(ctx, sg, order, line, paymentMethod)
		return creds, nil, err
	case ordering.LineKindOnDemandToken:
		creds, err := s.generateTokens(ctx, sg, order, line, paymentMethod)
		return creds, nil, err
	case ordering.LineKindCombo:
		return nil, nil, nil
	}
	return nil, nil, shared.NewDomainError("INVALID_LINE_KIND", fmt.Sprintf("Unknown line kind %q", line.Kind))
}

// reserveProduct decrements inventory for a product line. Catalog and stock
// problems degrade to warnings: the POS keeps selling what is physically on
// the shelf even when the catalog disagrees.
func (s *CommitService) reserveProduct(ctx context.Context, sg *saga, order *ordering.Order, line *ordering.OrderLine) ([]string, error) {
	warnings := make([]string, 0)
	tenantID := order.TenantID

	variantID := line.VariantID
	if variantID == nil && line.SKU != "" {
		variant, err := s.variantRepo.FindBySKU(ctx, tenantID, line.SKU)
		if err != nil {
			warnings = append(warnings,
				fmt.Sprintf("Line %q: variant not found for SKU %q, inventory not adjusted", line.Name, line.SKU))
			return warnings, nil
		}
		variantID = &variant.ID
	}
	if variantID == nil {
		warnings = append(warnings,
			fmt.Sprintf("Line %q: no variant reference, inventory not adjusted", line.Name))
		return warnings, nil
	}

	item, err := s.inventoryRepo.FindByVariant(ctx, tenantID, *variantID)
	if err != nil {
		warnings = append(warnings,
			fmt.Sprintf("Line %q: no inventory record, inventory not adjusted", line.Name))
		return warnings, nil
	}

	qty := decimal.NewFromInt(int64(line.Quantity))
	if err := item.Decrement(qty); err != nil {
		warnings = append(warnings,
			fmt.Sprintf("Line %q: insufficient stock (%s on hand), sold anyway", line.Name, item.OnHand.StringFixed(0)))
		return warnings, nil
	}
	if err := s.inventoryRepo.SaveWithLock(ctx, item); err != nil {
		if errors.Is(err, shared.ErrConcurrencyConflict) {
			warnings = append(warnings,
				fmt.Sprintf("Line %q: concurrent stock update, inventory not adjusted", line.Name))
			return warnings, nil
		}
		return nil, err
	}

	movement, err := inventory.NewMovement(tenantID, *variantID, inventory.MovementTypeSale, qty)
	if err == nil {
		movement.WithOrder(order.ID)
		if err := s.movementRepo.Save(ctx, movement); err != nil {
			s.logger.Warn("inventory movement not recorded", zap.Error(err))
		}
	}

	restoreVariantID := *variantID
	sg.push("restore inventory", func(ctx context.Context) error {
		current, err := s.inventoryRepo.FindByVariant(ctx, tenantID, restoreVariantID)
		if err != nil {
			return err
		}
		if err := current.Increment(qty); err != nil {
			return err
		}
		if err := s.inventoryRepo.SaveWithLock(ctx, current); err != nil {
			return err
		}
		reversal, err := inventory.NewMovement(tenantID, restoreVariantID, inventory.MovementTypeReversal, qty)
		if err != nil {
			return err
		}
		reversal.WithOrder(order.ID)
		return s.movementRepo.Save(ctx, reversal)
	})
	return warnings, nil
}

// reserveTokens claims pre-provisioned tokens, verifies each against the
// device, and sells the verified ones. A token missing on the device is
// disabled and replaced from the pool; one that cannot be verified at all
// is disabled and the order fails. Disabling reflects device ground truth
// and survives rollback. Running out of replacements fails the order.
func (s *CommitService) reserveTokens(ctx context.Context, sg *saga, order *ordering.Order, line *ordering.OrderLine, paymentMethod string) ([]SoldCredential, error) {
	tenantID := order.TenantID
	configID := deref(line.TokenConfigID)
	need := line.Quantity

	claimed, err := s.tokenRepo.ClaimOldestAvailable(ctx, tenantID, configID, order.ID, need)
	if err != nil {
		return nil, err
	}
	claimedIDs := tokenIDs(claimed)
	sg.push("release token claim", func(ctx context.Context) error {
		return s.tokenRepo.ReleaseClaim(ctx, tenantID, claimedIDs)
	})
	if len(claimed) < need {
		return nil, s.insufficientTokens(ctx, tenantID, configID, need)
	}

	verified := make([]token.ReservableToken, 0, need)
	pending := claimed
	for len(verified) < need {
		if len(pending) == 0 {
			// Pool drained by disabled tokens; try one replacement claim.
			more, err := s.tokenRepo.ClaimOldestAvailable(ctx, tenantID, configID, order.ID, need-len(verified))
			if err != nil {
				return nil, err
			}
			if len(more) == 0 {
				return nil, s.insufficientTokens(ctx, tenantID, configID, need)
			}
			moreIDs := tokenIDs(more)
			claimedIDs = append(claimedIDs, moreIDs...)
			sg.push("release token claim", func(ctx context.Context) error {
				return s.tokenRepo.ReleaseClaim(ctx, tenantID, moreIDs)
			})
			pending = more
			continue
		}

		tok := pending[0]
		pending = pending[1:]

		result, err := s.gateway.VerifyToken(ctx, tok.Code)
		if err != nil {
			// Fail closed: an unverifiable token leaves the pool until an
			// operator re-checks it, and nothing gets sold unverified.
			s.logger.Warn("token verification failed against device, disabling",
				zap.String("token_code", tok.Code),
				zap.Error(err))
			if derr := s.tokenRepo.Disable(ctx, tenantID, tok.ID, fmt.Sprintf("verification failed: %v", err)); derr != nil {
				s.logger.Error("failed to disable unverifiable token",
					zap.String("token_code", tok.Code),
					zap.Error(derr))
			}
			return nil, shared.NewDomainError("DEVICE_VERIFICATION_FAILED",
				fmt.Sprintf("Device unreachable while verifying token %s: %v", tok.Code, err))
		}
		if !result.Exists {
			s.logger.Warn("token missing on device, disabling",
				zap.String("token_code", tok.Code),
				zap.String("reason", result.Reason))
			if err := s.tokenRepo.Disable(ctx, tenantID, tok.ID, result.Reason); err != nil {
				return nil, err
			}
			continue
		}
		verified = append(verified, tok)
	}

	soldIDs := make([]uuid.UUID, 0, len(verified))
	credentials := make([]SoldCredential, 0, len(verified))
	for _, tok := range verified {
		soldIDs = append(soldIDs, tok.ID)
		credentials = append(credentials, SoldCredential{
			LineID:         line.ID,
			Code:           tok.Code,
			Username:       tok.Username,
			MaskedPassword: tok.MaskedPassword(),
			ExpiresAt:      tok.ExpiresAt,
		})
	}

	if err := s.tokenRepo.MarkSold(ctx, tenantID, soldIDs); err != nil {
		return nil, err
	}
	sg.push("revert sold tokens", func(ctx context.Context) error {
		return s.tokenRepo.RevertSold(ctx, tenantID, soldIDs)
	})

	// Pushed before the first sale row exists so a mid-loop failure still
	// sweeps the rows already saved. DeleteByOrder is idempotent per order.
	sg.push("delete token sales", func(ctx context.Context) error {
		return s.tokenSaleRepo.DeleteByOrder(ctx, tenantID, order.ID)
	})
	unitPrice := line.UnitPrice
	for _, tok := range verified {
		sale, err := token.NewTokenSale(tenantID, tok.ID, order.ID, line.ID, unitPrice, paymentMethod)
		if err != nil {
			return nil, err
		}
		if order.CreatedBy != nil {
			sale.WithSeller(*order.CreatedBy)
		}
		if err := s.tokenSaleRepo.Save(ctx, sale); err != nil {
			return nil, err
		}
	}

	return credentials, nil
}

// generateTokens provisions on-demand credentials on the device. Generated
// tokens enter the pool as SOLD; rollback invalidates them rather than
// returning them, because the credential already exists on the device.
func (s *CommitService) generateTokens(ctx context.Context, sg *saga, order *ordering.Order, line *ordering.OrderLine, paymentMethod string) ([]SoldCredential, error) {
	tenantID := order.TenantID
	configID := deref(line.TokenConfigID)

	cfg, err := s.tokenConfigRepo.FindByIDForTenant(ctx, tenantID, configID)
	if err != nil {
		return nil, err
	}

	// Pushed up front so sale rows saved before a mid-batch generation
	// failure are swept with the rest of the order.
	sg.push("delete token sales", func(ctx context.Context) error {
		return s.tokenSaleRepo.DeleteByOrder(ctx, tenantID, order.ID)
	})

	credentials := make([]SoldCredential, 0, line.Quantity)
	for i := 0; i < line.Quantity; i++ {
		generated, err := s.gateway.GenerateCredential(ctx, token.CredentialRequest{
			NetworkName:     cfg.NetworkName,
			DurationMinutes: cfg.DurationMinutes,
			DeviceLimit:     cfg.DeviceLimit,
		})
		if err != nil {
			return nil, shared.NewDomainError("DEVICE_VERIFICATION_FAILED",
				fmt.Sprintf("Device failed to generate credential: %v", err))
		}

		tok, err := token.NewSoldToken(tenantID, configID, generated.Code, generated.Username, generated.Password, generated.ExpiresAt)
		if err != nil {
			return nil, err
		}
		if err := s.tokenRepo.Save(ctx, tok); err != nil {
			return nil, err
		}
		tokID := tok.ID
		sg.push("invalidate generated token", func(ctx context.Context) error {
			return s.tokenRepo.Invalidate(ctx, tenantID, tokID)
		})

		sale, err := token.NewTokenSale(tenantID, tok.ID, order.ID, line.ID, line.UnitPrice, paymentMethod)
		if err != nil {
			return nil, err
		}
		if err := s.tokenSaleRepo.Save(ctx, sale); err != nil {
			return nil, err
		}

		credentials = append(credentials, SoldCredential{
			LineID:         line.ID,
			Code:           tok.Code,
			Username:       tok.Username,
			MaskedPassword: tok.MaskedPassword(),
			ExpiresAt:      tok.ExpiresAt,
		})
	}

	return credentials, nil
}

func (s *CommitService) finalize(ctx context.Context, order *ordering.Order, req CommitOrderRequest) error {
	if err := order.RecordPayment(valueobject.NewMoneyPHPFromFloat(req.AmountReceived)); err != nil {
		return err
	}
	if err := order.Complete(); err != nil {
		return err
	}
	return s.orderRepo.SaveWithLock(ctx, order)
}

func (s *CommitService) postToLedger(ctx context.Context, order *ordering.Order) string {
	if s.poster == nil || !order.IsFullyPaid() || order.TotalAmount.IsZero() {
		return ""
	}
	desc := fmt.Sprintf("Order %s", order.OrderNumber)
	if err := s.poster.PostOrderDeposit(ctx, order.TenantID, order.ID, order.TotalAmount, desc); err != nil {
		s.logger.Warn("ledger posting failed",
			zap.String("order_number", order.OrderNumber),
			zap.Error(err))
		return fmt.Sprintf("Ledger posting failed for order %s; post manually", order.OrderNumber)
	}
	return ""
}

func (s *CommitService) insufficientTokens(ctx context.Context, tenantID, configID uuid.UUID, need int) error {
	available, err := s.tokenRepo.CountAvailable(ctx, tenantID, configID)
	if err != nil {
		available = 0
	}
	return shared.NewDomainError("INSUFFICIENT_TOKENS",
		fmt.Sprintf("Insufficient tokens: need %d, found %d available", need, available))
}

func (s *CommitService) validate(req CommitOrderRequest) error {
	if !ordering.PaymentMethod(req.PaymentMethod).IsValid() {
		return shared.NewDomainError("INVALID_PAYMENT_METHOD", fmt.Sprintf("Unknown payment method %q", req.PaymentMethod))
	}
	if len(req.Lines) == 0 {
		return shared.NewDomainError("NO_LINES", "Order must contain at least one line")
	}
	if req.AmountReceived < 0 {
		return shared.NewDomainError("INVALID_AMOUNT", "Amount received cannot be negative")
	}
	for _, item := range req.Lines {
		if err := s.validateLine(item, false); err != nil {
			return err
		}
	}
	return nil
}

func (s *CommitService) validateLine(item CommitLineItem, isComponent bool) error {
	kind := ordering.LineKind(item.Kind)
	if !kind.IsValid() {
		return shared.NewDomainError("INVALID_LINE_KIND", fmt.Sprintf("Unknown line kind %q", item.Kind))
	}
	if item.Quantity <= 0 {
		return shared.NewDomainError("INVALID_QUANTITY", fmt.Sprintf("Line %q: quantity must be positive", item.Name))
	}
	switch kind {
	case ordering.LineKindToken, ordering.LineKindOnDemandToken:
		if item.TokenConfigID == nil || *item.TokenConfigID == uuid.Nil {
			return shared.NewDomainError("INVALID_TOKEN_CONFIG", fmt.Sprintf("Line %q: token config is required", item.Name))
		}
	case ordering.LineKindCombo:
		if isComponent {
			return shared.NewDomainError("INVALID_LINE_KIND", "Combo lines cannot nest inside other combos")
		}
		if len(item.Components) == 0 {
			return shared.NewDomainError("NO_COMPONENTS", fmt.Sprintf("Combo %q must have at least one component", item.Name))
		}
	}
	for _, comp := range item.Components {
		if kind != ordering.LineKindCombo {
			return shared.NewDomainError("INVALID_LINE_KIND", fmt.Sprintf("Line %q: only combo lines carry components", item.Name))
		}
		if err := s.validateLine(comp, true); err != nil {
			return err
		}
	}
	return nil
}

// checkReplay consults the idempotency guard. It returns the stored
// response for a seen key, or claims an unseen key (claimed=true) so
// concurrent duplicates wait for this request's outcome. A claimed key
// must later be completed by storeReplay or abandoned by releaseReplay.
func (s *CommitService) checkReplay(ctx context.Context, key string) (resp *CommitOrderResponse, claimed bool, err error) {
	if key == "" || s.guard == nil || !s.guardCfg.Enabled {
		return nil, false, nil
	}
	payload, found, err := s.guard.Check(ctx, key)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, err
		}
		s.logger.Warn("idempotency check failed, proceeding", zap.Error(err))
		return nil, false, nil
	}
	if !found {
		return nil, true, nil
	}
	var replay CommitOrderResponse
	if err := json.Unmarshal(payload, &replay); err != nil {
		s.logger.Warn("stored idempotency payload unreadable, proceeding", zap.Error(err))
		return nil, false, nil
	}
	replay.Replayed = true
	return &replay, false, nil
}

func (s *CommitService) storeReplay(ctx context.Context, key string, resp *CommitOrderResponse) {
	if key == "" || s.guard == nil || !s.guardCfg.Enabled {
		return
	}
	payload, err := json.Marshal(resp)
	if err != nil {
		s.logger.Warn("idempotency payload marshal failed", zap.Error(err))
		return
	}
	if err := s.guard.Store(ctx, key, payload, s.guardCfg.TTL); err != nil {
		s.logger.Warn("idempotency store failed", zap.Error(err))
	}
}

// releaseReplay abandons an in-flight idempotency claim after a failed
// commit so a retry with the same key can execute
func (s *CommitService) releaseReplay(ctx context.Context, key string) {
	if key == "" || s.guard == nil || !s.guardCfg.Enabled {
		return
	}
	if err := s.guard.Release(ctx, key); err != nil {
		s.logger.Warn("idempotency release failed", zap.Error(err))
	}
}

func tokenIDs(tokens []token.ReservableToken) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(tokens))
	for _, t := range tokens {
		ids = append(ids, t.ID)
	}
	return ids
}

func deref(id *uuid.UUID) uuid.UUID {
	if id == nil {
		return uuid.Nil
	}
	return *id
}
