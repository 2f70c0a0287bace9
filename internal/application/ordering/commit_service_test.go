package ordering

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/venda/backend/internal/domain/catalog"
	"github.com/venda/backend/internal/domain/inventory"
	"github.com/venda/backend/internal/domain/ordering"
	"github.com/venda/backend/internal/domain/shared"
	"github.com/venda/backend/internal/domain/token"
	"github.com/venda/backend/internal/infrastructure/cache"
)

// MockOrderRepository is a mock implementation of ordering.OrderRepository
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) Save(ctx context.Context, order *ordering.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockOrderRepository) SaveWithLock(ctx context.Context, order *ordering.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockOrderRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*ordering.Order, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ordering.Order), args.Error(1)
}

func (m *MockOrderRepository) FindByNumber(ctx context.Context, tenantID uuid.UUID, orderNumber string) (*ordering.Order, error) {
	args := m.Called(ctx, tenantID, orderNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ordering.Order), args.Error(1)
}

func (m *MockOrderRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]ordering.Order, error) {
	args := m.Called(ctx, tenantID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ordering.Order), args.Error(1)
}

func (m *MockOrderRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOrderRepository) CountCreatedSince(ctx context.Context, tenantID uuid.UUID, since time.Time) (int64, error) {
	args := m.Called(ctx, tenantID, since)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOrderRepository) ExistsByNumber(ctx context.Context, tenantID uuid.UUID, orderNumber string) (bool, error) {
	args := m.Called(ctx, tenantID, orderNumber)
	return args.Bool(0), args.Error(1)
}

func (m *MockOrderRepository) DeleteWithLines(ctx context.Context, tenantID, orderID uuid.UUID) error {
	args := m.Called(ctx, tenantID, orderID)
	return args.Error(0)
}

// MockVariantRepository is a mock implementation of catalog.VariantRepository
type MockVariantRepository struct {
	mock.Mock
}

func (m *MockVariantRepository) Save(ctx context.Context, variant *catalog.Variant) error {
	args := m.Called(ctx, variant)
	return args.Error(0)
}

func (m *MockVariantRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*catalog.Variant, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Variant), args.Error(1)
}

func (m *MockVariantRepository) FindBySKU(ctx context.Context, tenantID uuid.UUID, sku string) (*catalog.Variant, error) {
	args := m.Called(ctx, tenantID, sku)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Variant), args.Error(1)
}

func (m *MockVariantRepository) FindByProduct(ctx context.Context, tenantID, productID uuid.UUID) ([]catalog.Variant, error) {
	args := m.Called(ctx, tenantID, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Variant), args.Error(1)
}

// MockInventoryRepository is a mock implementation of inventory.ItemRepository
type MockInventoryRepository struct {
	mock.Mock
}

func (m *MockInventoryRepository) Save(ctx context.Context, item *inventory.InventoryItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *MockInventoryRepository) SaveWithLock(ctx context.Context, item *inventory.InventoryItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *MockInventoryRepository) FindByVariant(ctx context.Context, tenantID, variantID uuid.UUID) (*inventory.InventoryItem, error) {
	args := m.Called(ctx, tenantID, variantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventory.InventoryItem), args.Error(1)
}

// MockMovementRepository is a mock implementation of inventory.MovementRepository
type MockMovementRepository struct {
	mock.Mock
}

func (m *MockMovementRepository) Save(ctx context.Context, movement *inventory.Movement) error {
	args := m.Called(ctx, movement)
	return args.Error(0)
}

func (m *MockMovementRepository) FindByOrder(ctx context.Context, tenantID, orderID uuid.UUID) ([]inventory.Movement, error) {
	args := m.Called(ctx, tenantID, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]inventory.Movement), args.Error(1)
}

// MockTokenRepository is a mock implementation of token.TokenRepository
type MockTokenRepository struct {
	mock.Mock
}

func (m *MockTokenRepository) Save(ctx context.Context, tok *token.ReservableToken) error {
	args := m.Called(ctx, tok)
	return args.Error(0)
}

func (m *MockTokenRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*token.ReservableToken, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*token.ReservableToken), args.Error(1)
}

func (m *MockTokenRepository) CountAvailable(ctx context.Context, tenantID, configID uuid.UUID) (int64, error) {
	args := m.Called(ctx, tenantID, configID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTokenRepository) ClaimOldestAvailable(ctx context.Context, tenantID, configID, orderID uuid.UUID, quantity int) ([]token.ReservableToken, error) {
	args := m.Called(ctx, tenantID, configID, orderID, quantity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]token.ReservableToken), args.Error(1)
}

func (m *MockTokenRepository) ReleaseClaim(ctx context.Context, tenantID uuid.UUID, tokenIDs []uuid.UUID) error {
	args := m.Called(ctx, tenantID, tokenIDs)
	return args.Error(0)
}

func (m *MockTokenRepository) MarkSold(ctx context.Context, tenantID uuid.UUID, tokenIDs []uuid.UUID) error {
	args := m.Called(ctx, tenantID, tokenIDs)
	return args.Error(0)
}

func (m *MockTokenRepository) RevertSold(ctx context.Context, tenantID uuid.UUID, tokenIDs []uuid.UUID) error {
	args := m.Called(ctx, tenantID, tokenIDs)
	return args.Error(0)
}

func (m *MockTokenRepository) Disable(ctx context.Context, tenantID, tokenID uuid.UUID, note string) error {
	args := m.Called(ctx, tenantID, tokenID, note)
	return args.Error(0)
}

func (m *MockTokenRepository) Invalidate(ctx context.Context, tenantID, tokenID uuid.UUID) error {
	args := m.Called(ctx, tenantID, tokenID)
	return args.Error(0)
}

// MockTokenConfigRepository is a mock implementation of token.TokenConfigRepository
type MockTokenConfigRepository struct {
	mock.Mock
}

func (m *MockTokenConfigRepository) Save(ctx context.Context, cfg *token.TokenConfig) error {
	args := m.Called(ctx, cfg)
	return args.Error(0)
}

func (m *MockTokenConfigRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*token.TokenConfig, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*token.TokenConfig), args.Error(1)
}

func (m *MockTokenConfigRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID) ([]token.TokenConfig, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]token.TokenConfig), args.Error(1)
}

// MockTokenSaleRepository is a mock implementation of token.TokenSaleRepository
type MockTokenSaleRepository struct {
	mock.Mock
}

func (m *MockTokenSaleRepository) Save(ctx context.Context, sale *token.TokenSale) error {
	args := m.Called(ctx, sale)
	return args.Error(0)
}

func (m *MockTokenSaleRepository) FindByOrder(ctx context.Context, tenantID, orderID uuid.UUID) ([]token.TokenSale, error) {
	args := m.Called(ctx, tenantID, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]token.TokenSale), args.Error(1)
}

func (m *MockTokenSaleRepository) DeleteByOrder(ctx context.Context, tenantID, orderID uuid.UUID) error {
	args := m.Called(ctx, tenantID, orderID)
	return args.Error(0)
}

// MockDeviceGateway is a mock implementation of token.DeviceGateway
type MockDeviceGateway struct {
	mock.Mock
}

func (m *MockDeviceGateway) VerifyToken(ctx context.Context, code string) (*token.VerifyResult, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*token.VerifyResult), args.Error(1)
}

func (m *MockDeviceGateway) GenerateCredential(ctx context.Context, req token.CredentialRequest) (*token.GeneratedCredential, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*token.GeneratedCredential), args.Error(1)
}

// MockLedgerPoster is a mock implementation of LedgerPoster
type MockLedgerPoster struct {
	mock.Mock
}

func (m *MockLedgerPoster) PostOrderDeposit(ctx context.Context, tenantID, orderID uuid.UUID, amount decimal.Decimal, description string) error {
	args := m.Called(ctx, tenantID, orderID, amount, description)
	return args.Error(0)
}

// mapGuard is an in-test idempotency guard. Misses claim the key; the
// claim is settled by Store or Release, and releases are recorded so
// tests can assert on them.
type mapGuard struct {
	mu       sync.Mutex
	entries  map[string][]byte
	pending  map[string]bool
	released []string
}

func newMapGuard() *mapGuard {
	return &mapGuard{
		entries: make(map[string][]byte),
		pending: make(map[string]bool),
	}
}

func (g *mapGuard) Check(ctx context.Context, key string) ([]byte, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if payload, ok := g.entries[key]; ok {
		return payload, true, nil
	}
	g.pending[key] = true
	return nil, false, nil
}

func (g *mapGuard) Store(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.pending, key)
	g.entries[key] = payload
	return nil
}

func (g *mapGuard) Release(ctx context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending[key] {
		delete(g.pending, key)
		g.released = append(g.released, key)
	}
	return nil
}

func (g *mapGuard) Close() error { return nil }

// commitFixture bundles the service under test with all its mocks
type commitFixture struct {
	service       *CommitService
	orderRepo     *MockOrderRepository
	variantRepo   *MockVariantRepository
	inventoryRepo *MockInventoryRepository
	movementRepo  *MockMovementRepository
	tokenRepo     *MockTokenRepository
	configRepo    *MockTokenConfigRepository
	saleRepo      *MockTokenSaleRepository
	gateway       *MockDeviceGateway
	guard         *mapGuard
}

func newCommitFixture(t *testing.T) *commitFixture {
	f := &commitFixture{
		orderRepo:     new(MockOrderRepository),
		variantRepo:   new(MockVariantRepository),
		inventoryRepo: new(MockInventoryRepository),
		movementRepo:  new(MockMovementRepository),
		tokenRepo:     new(MockTokenRepository),
		configRepo:    new(MockTokenConfigRepository),
		saleRepo:      new(MockTokenSaleRepository),
		gateway:       new(MockDeviceGateway),
		guard:         newMapGuard(),
	}
	allocator := NewOrderNumberAllocator(f.orderRepo, "ORD", time.UTC)
	f.service = NewCommitService(
		f.orderRepo,
		f.variantRepo,
		f.inventoryRepo,
		f.movementRepo,
		f.tokenRepo,
		f.configRepo,
		f.saleRepo,
		f.gateway,
		allocator,
		f.guard,
		shared.IdempotencyConfig{Enabled: true, TTL: time.Hour},
		zap.NewNop(),
	)
	return f
}

func (f *commitFixture) expectOrderCreation() {
	f.orderRepo.On("CountCreatedSince", mock.Anything, mock.Anything, mock.Anything).Return(int64(0), nil)
	f.orderRepo.On("Save", mock.Anything, mock.Anything).Return(nil)
}

func claimedToken(t *testing.T, tenantID, configID uuid.UUID, code string) token.ReservableToken {
	tok, err := token.NewReservableToken(tenantID, configID, code, "guest-"+code, "pw-"+code)
	require.NoError(t, err)
	tok.Status = token.TokenStatusReserved
	return *tok
}

func productRequest(variantID uuid.UUID) CommitOrderRequest {
	return CommitOrderRequest{
		PaymentMethod:  "CASH",
		AmountReceived: 50,
		Lines: []CommitLineItem{{
			Kind:      "PRODUCT",
			Name:      "Coke",
			SKU:       "SKU-001",
			VariantID: &variantID,
			Quantity:  2,
			UnitPrice: 25,
		}},
	}
}

func tokenRequest(configID uuid.UUID, quantity int) CommitOrderRequest {
	return CommitOrderRequest{
		PaymentMethod:  "GCASH",
		AmountReceived: float64(quantity) * 25,
		Lines: []CommitLineItem{{
			Kind:          "TOKEN",
			Name:          "WiFi 1hr",
			TokenConfigID: &configID,
			Quantity:      quantity,
			UnitPrice:     25,
		}},
	}
}

func domainCode(t *testing.T, err error) string {
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	return domainErr.Code
}

// ============================================
// Commit Tests
// ============================================

func TestCommitService_Commit_ProductLine(t *testing.T) {
	tenantID := uuid.New()
	variantID := uuid.New()

	t.Run("commits and decrements inventory", func(t *testing.T) {
		f := newCommitFixture(t)
		f.expectOrderCreation()

		item, err := inventory.NewInventoryItem(tenantID, variantID, decimal.NewFromInt(10))
		require.NoError(t, err)
		f.inventoryRepo.On("FindByVariant", mock.Anything, tenantID, variantID).Return(item, nil)
		f.inventoryRepo.On("SaveWithLock", mock.Anything, item).Return(nil)
		f.movementRepo.On("Save", mock.Anything, mock.Anything).Return(nil)
		f.orderRepo.On("SaveWithLock", mock.Anything, mock.Anything).Return(nil)

		resp, err := f.service.Commit(context.Background(), tenantID, productRequest(variantID))
		require.NoError(t, err)

		assert.Equal(t, "COMPLETED", resp.Status)
		assert.Equal(t, "PAID", resp.PaymentStatus)
		assert.Equal(t, "50.00", resp.TotalAmount)
		assert.Empty(t, resp.Warnings)
		assert.Empty(t, resp.Credentials)
		assert.Equal(t, "8", item.OnHand.String())
		f.orderRepo.AssertNotCalled(t, "DeleteWithLines", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("insufficient stock degrades to warning", func(t *testing.T) {
		f := newCommitFixture(t)
		f.expectOrderCreation()

		item, err := inventory.NewInventoryItem(tenantID, variantID, decimal.NewFromInt(1))
		require.NoError(t, err)
		f.inventoryRepo.On("FindByVariant", mock.Anything, tenantID, variantID).Return(item, nil)
		f.orderRepo.On("SaveWithLock", mock.Anything, mock.Anything).Return(nil)

		resp, err := f.service.Commit(context.Background(), tenantID, productRequest(variantID))
		require.NoError(t, err)

		assert.Equal(t, "COMPLETED", resp.Status)
		require.Len(t, resp.Warnings, 1)
		assert.Contains(t, resp.Warnings[0], "sold anyway")
		// On-hand untouched, no lock write attempted
		assert.Equal(t, "1", item.OnHand.String())
		f.inventoryRepo.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
	})

	t.Run("missing inventory record degrades to warning", func(t *testing.T) {
		f := newCommitFixture(t)
		f.expectOrderCreation()

		f.inventoryRepo.On("FindByVariant", mock.Anything, tenantID, variantID).Return(nil, shared.ErrNotFound)
		f.orderRepo.On("SaveWithLock", mock.Anything, mock.Anything).Return(nil)

		resp, err := f.service.Commit(context.Background(), tenantID, productRequest(variantID))
		require.NoError(t, err)
		require.Len(t, resp.Warnings, 1)
		assert.Contains(t, resp.Warnings[0], "inventory not adjusted")
	})
}

func TestCommitService_Commit_TokenLine(t *testing.T) {
	tenantID := uuid.New()
	configID := uuid.New()

	t.Run("sells verified tokens with masked credentials", func(t *testing.T) {
		f := newCommitFixture(t)
		f.expectOrderCreation()

		claimed := []token.ReservableToken{
			claimedToken(t, tenantID, configID, "WIFI-0001"),
			claimedToken(t, tenantID, configID, "WIFI-0002"),
		}
		f.tokenRepo.On("ClaimOldestAvailable", mock.Anything, tenantID, configID, mock.Anything, 2).Return(claimed, nil)
		f.gateway.On("VerifyToken", mock.Anything, "WIFI-0001").Return(&token.VerifyResult{Exists: true}, nil)
		f.gateway.On("VerifyToken", mock.Anything, "WIFI-0002").Return(&token.VerifyResult{Exists: true}, nil)
		f.tokenRepo.On("MarkSold", mock.Anything, tenantID, []uuid.UUID{claimed[0].ID, claimed[1].ID}).Return(nil)
		f.saleRepo.On("Save", mock.Anything, mock.Anything).Return(nil)
		f.orderRepo.On("SaveWithLock", mock.Anything, mock.Anything).Return(nil)

		resp, err := f.service.Commit(context.Background(), tenantID, tokenRequest(configID, 2))
		require.NoError(t, err)

		require.Len(t, resp.Credentials, 2)
		assert.Equal(t, "WIFI-0001", resp.Credentials[0].Code)
		assert.Equal(t, "pw****", resp.Credentials[0].MaskedPassword)
		f.saleRepo.AssertNumberOfCalls(t, "Save", 2)
		f.tokenRepo.AssertNotCalled(t, "ReleaseClaim", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("short claim rolls back with pool count in message", func(t *testing.T) {
		f := newCommitFixture(t)
		f.expectOrderCreation()

		claimed := []token.ReservableToken{claimedToken(t, tenantID, configID, "WIFI-0001")}
		f.tokenRepo.On("ClaimOldestAvailable", mock.Anything, tenantID, configID, mock.Anything, 2).Return(claimed, nil)
		f.tokenRepo.On("CountAvailable", mock.Anything, tenantID, configID).Return(int64(1), nil)
		f.tokenRepo.On("ReleaseClaim", mock.Anything, tenantID, mock.Anything).Return(nil)
		f.orderRepo.On("DeleteWithLines", mock.Anything, tenantID, mock.Anything).Return(nil)

		_, err := f.service.Commit(context.Background(), tenantID, tokenRequest(configID, 2))
		require.Error(t, err)
		assert.Equal(t, "INSUFFICIENT_TOKENS", domainCode(t, err))
		assert.Contains(t, err.Error(), "need 2, found 1 available")

		f.tokenRepo.AssertCalled(t, "ReleaseClaim", mock.Anything, tenantID, mock.Anything)
		f.orderRepo.AssertCalled(t, "DeleteWithLines", mock.Anything, tenantID, mock.Anything)
	})

	t.Run("unreachable device disables the token and unwinds", func(t *testing.T) {
		f := newCommitFixture(t)
		f.expectOrderCreation()

		claimed := []token.ReservableToken{claimedToken(t, tenantID, configID, "WIFI-0001")}
		f.tokenRepo.On("ClaimOldestAvailable", mock.Anything, tenantID, configID, mock.Anything, 1).Return(claimed, nil)
		f.gateway.On("VerifyToken", mock.Anything, "WIFI-0001").Return(nil, errors.New("connection refused"))
		f.tokenRepo.On("Disable", mock.Anything, tenantID, claimed[0].ID, mock.Anything).Return(nil)
		f.tokenRepo.On("ReleaseClaim", mock.Anything, tenantID, mock.Anything).Return(nil)
		f.orderRepo.On("DeleteWithLines", mock.Anything, tenantID, mock.Anything).Return(nil)

		_, err := f.service.Commit(context.Background(), tenantID, tokenRequest(configID, 1))
		require.Error(t, err)
		assert.Equal(t, "DEVICE_VERIFICATION_FAILED", domainCode(t, err))

		// Nothing was sold; the unverifiable token left the pool
		f.tokenRepo.AssertNotCalled(t, "MarkSold", mock.Anything, mock.Anything, mock.Anything)
		f.tokenRepo.AssertCalled(t, "Disable", mock.Anything, tenantID, claimed[0].ID, mock.Anything)
	})

	t.Run("server error during verification disables the token", func(t *testing.T) {
		f := newCommitFixture(t)
		f.expectOrderCreation()

		claimed := []token.ReservableToken{claimedToken(t, tenantID, configID, "WIFI-0001")}
		f.tokenRepo.On("ClaimOldestAvailable", mock.Anything, tenantID, configID, mock.Anything, 1).Return(claimed, nil)
		f.gateway.On("VerifyToken", mock.Anything, "WIFI-0001").
			Return(nil, errors.New("device: verify returned HTTP 500"))
		f.tokenRepo.On("Disable", mock.Anything, tenantID, claimed[0].ID, mock.MatchedBy(func(note string) bool {
			return strings.Contains(note, "HTTP 500")
		})).Return(nil)
		f.tokenRepo.On("ReleaseClaim", mock.Anything, tenantID, mock.Anything).Return(nil)
		f.orderRepo.On("DeleteWithLines", mock.Anything, tenantID, mock.Anything).Return(nil)

		_, err := f.service.Commit(context.Background(), tenantID, tokenRequest(configID, 1))
		require.Error(t, err)
		assert.Equal(t, "DEVICE_VERIFICATION_FAILED", domainCode(t, err))
		assert.Contains(t, err.Error(), "HTTP 500")

		f.tokenRepo.AssertExpectations(t)
		f.tokenRepo.AssertNotCalled(t, "MarkSold", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("sale save failure sweeps earlier sale rows", func(t *testing.T) {
		f := newCommitFixture(t)
		f.expectOrderCreation()

		claimed := []token.ReservableToken{
			claimedToken(t, tenantID, configID, "WIFI-0001"),
			claimedToken(t, tenantID, configID, "WIFI-0002"),
		}
		f.tokenRepo.On("ClaimOldestAvailable", mock.Anything, tenantID, configID, mock.Anything, 2).Return(claimed, nil)
		f.gateway.On("VerifyToken", mock.Anything, mock.Anything).Return(&token.VerifyResult{Exists: true}, nil)
		f.tokenRepo.On("MarkSold", mock.Anything, tenantID, mock.Anything).Return(nil)
		f.saleRepo.On("Save", mock.Anything, mock.Anything).Return(nil).Once()
		f.saleRepo.On("Save", mock.Anything, mock.Anything).Return(errors.New("connection reset")).Once()
		f.saleRepo.On("DeleteByOrder", mock.Anything, tenantID, mock.Anything).Return(nil)
		f.tokenRepo.On("RevertSold", mock.Anything, tenantID, mock.Anything).Return(nil)
		f.tokenRepo.On("ReleaseClaim", mock.Anything, tenantID, mock.Anything).Return(nil)
		f.orderRepo.On("DeleteWithLines", mock.Anything, tenantID, mock.Anything).Return(nil)

		_, err := f.service.Commit(context.Background(), tenantID, tokenRequest(configID, 2))
		require.Error(t, err)

		// The first sale row must not outlive the deleted order
		f.saleRepo.AssertCalled(t, "DeleteByOrder", mock.Anything, tenantID, mock.Anything)
		f.tokenRepo.AssertCalled(t, "RevertSold", mock.Anything, tenantID, mock.Anything)
		f.orderRepo.AssertCalled(t, "DeleteWithLines", mock.Anything, tenantID, mock.Anything)
	})

	t.Run("token missing on device is disabled and replaced", func(t *testing.T) {
		f := newCommitFixture(t)
		f.expectOrderCreation()

		stale := claimedToken(t, tenantID, configID, "WIFI-STALE")
		good := claimedToken(t, tenantID, configID, "WIFI-GOOD")
		replacement := claimedToken(t, tenantID, configID, "WIFI-EXTRA")

		f.tokenRepo.On("ClaimOldestAvailable", mock.Anything, tenantID, configID, mock.Anything, 2).
			Return([]token.ReservableToken{stale, good}, nil).Once()
		f.gateway.On("VerifyToken", mock.Anything, "WIFI-STALE").
			Return(&token.VerifyResult{Exists: false, Reason: "token not found on device"}, nil)
		f.gateway.On("VerifyToken", mock.Anything, "WIFI-GOOD").Return(&token.VerifyResult{Exists: true}, nil)
		f.tokenRepo.On("Disable", mock.Anything, tenantID, stale.ID, "token not found on device").Return(nil)
		f.tokenRepo.On("ClaimOldestAvailable", mock.Anything, tenantID, configID, mock.Anything, 1).
			Return([]token.ReservableToken{replacement}, nil).Once()
		f.gateway.On("VerifyToken", mock.Anything, "WIFI-EXTRA").Return(&token.VerifyResult{Exists: true}, nil)
		f.tokenRepo.On("MarkSold", mock.Anything, tenantID, []uuid.UUID{good.ID, replacement.ID}).Return(nil)
		f.saleRepo.On("Save", mock.Anything, mock.Anything).Return(nil)
		f.orderRepo.On("SaveWithLock", mock.Anything, mock.Anything).Return(nil)

		resp, err := f.service.Commit(context.Background(), tenantID, tokenRequest(configID, 2))
		require.NoError(t, err)

		require.Len(t, resp.Credentials, 2)
		assert.Equal(t, "WIFI-GOOD", resp.Credentials[0].Code)
		assert.Equal(t, "WIFI-EXTRA", resp.Credentials[1].Code)
		f.tokenRepo.AssertCalled(t, "Disable", mock.Anything, tenantID, stale.ID, "token not found on device")
	})
}

func TestCommitService_Commit_OnDemandLine(t *testing.T) {
	tenantID := uuid.New()
	configID := uuid.New()

	cfg, err := token.NewTokenConfig(tenantID, "1 Hour", 60, 1, "CafeWiFi")
	require.NoError(t, err)
	cfg.ID = configID

	request := CommitOrderRequest{
		PaymentMethod:  "CASH",
		AmountReceived: 30,
		Lines: []CommitLineItem{{
			Kind:          "ONDEMAND_TOKEN",
			Name:          "WiFi custom",
			TokenConfigID: &configID,
			Quantity:      1,
			UnitPrice:     30,
		}},
	}

	t.Run("generates and sells device credentials", func(t *testing.T) {
		f := newCommitFixture(t)
		f.expectOrderCreation()

		f.configRepo.On("FindByIDForTenant", mock.Anything, tenantID, configID).Return(cfg, nil)
		f.gateway.On("GenerateCredential", mock.Anything, token.CredentialRequest{
			NetworkName:     "CafeWiFi",
			DurationMinutes: 60,
			DeviceLimit:     1,
		}).Return(&token.GeneratedCredential{Code: "GEN-0001", Username: "guest", Password: "pw1234"}, nil)
		f.tokenRepo.On("Save", mock.Anything, mock.Anything).Return(nil)
		f.saleRepo.On("Save", mock.Anything, mock.Anything).Return(nil)
		f.orderRepo.On("SaveWithLock", mock.Anything, mock.Anything).Return(nil)

		resp, err := f.service.Commit(context.Background(), tenantID, request)
		require.NoError(t, err)
		require.Len(t, resp.Credentials, 1)
		assert.Equal(t, "GEN-0001", resp.Credentials[0].Code)
	})

	t.Run("generation failure unwinds with invalidation", func(t *testing.T) {
		f := newCommitFixture(t)
		f.expectOrderCreation()

		twoUnits := request
		twoUnits.Lines = []CommitLineItem{{
			Kind:          "ONDEMAND_TOKEN",
			Name:          "WiFi custom",
			TokenConfigID: &configID,
			Quantity:      2,
			UnitPrice:     30,
		}}

		f.configRepo.On("FindByIDForTenant", mock.Anything, tenantID, configID).Return(cfg, nil)
		f.gateway.On("GenerateCredential", mock.Anything, mock.Anything).
			Return(&token.GeneratedCredential{Code: "GEN-0001", Username: "guest", Password: "pw1234"}, nil).Once()
		f.gateway.On("GenerateCredential", mock.Anything, mock.Anything).
			Return(nil, errors.New("device busy")).Once()
		f.tokenRepo.On("Save", mock.Anything, mock.Anything).Return(nil)
		f.saleRepo.On("Save", mock.Anything, mock.Anything).Return(nil)
		f.saleRepo.On("DeleteByOrder", mock.Anything, tenantID, mock.Anything).Return(nil)
		f.tokenRepo.On("Invalidate", mock.Anything, tenantID, mock.Anything).Return(nil)
		f.orderRepo.On("DeleteWithLines", mock.Anything, tenantID, mock.Anything).Return(nil)

		_, err := f.service.Commit(context.Background(), tenantID, twoUnits)
		require.Error(t, err)
		assert.Equal(t, "DEVICE_VERIFICATION_FAILED", domainCode(t, err))

		// The first generated token cannot return to the pool, and its
		// sale row must not survive the deleted order
		f.tokenRepo.AssertCalled(t, "Invalidate", mock.Anything, tenantID, mock.Anything)
		f.saleRepo.AssertCalled(t, "DeleteByOrder", mock.Anything, tenantID, mock.Anything)
	})
}

func TestCommitService_Commit_Idempotency(t *testing.T) {
	tenantID := uuid.New()
	variantID := uuid.New()

	t.Run("replays the stored response without re-executing", func(t *testing.T) {
		f := newCommitFixture(t)

		stored := CommitOrderResponse{
			OrderID:     uuid.New(),
			OrderNumber: "ORD-20260901-0001",
			Status:      "COMPLETED",
		}
		payload, err := json.Marshal(stored)
		require.NoError(t, err)
		require.NoError(t, f.guard.Store(context.Background(), "key-1", payload, time.Hour))

		req := productRequest(variantID)
		req.IdempotencyKey = "key-1"

		resp, err := f.service.Commit(context.Background(), tenantID, req)
		require.NoError(t, err)
		assert.True(t, resp.Replayed)
		assert.Equal(t, "ORD-20260901-0001", resp.OrderNumber)
		f.orderRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("stores the response for later replay", func(t *testing.T) {
		f := newCommitFixture(t)
		f.expectOrderCreation()
		f.inventoryRepo.On("FindByVariant", mock.Anything, tenantID, variantID).Return(nil, shared.ErrNotFound)
		f.orderRepo.On("SaveWithLock", mock.Anything, mock.Anything).Return(nil)

		req := productRequest(variantID)
		req.IdempotencyKey = "key-2"

		first, err := f.service.Commit(context.Background(), tenantID, req)
		require.NoError(t, err)
		assert.False(t, first.Replayed)

		second, err := f.service.Commit(context.Background(), tenantID, req)
		require.NoError(t, err)
		assert.True(t, second.Replayed)
		assert.Equal(t, first.OrderNumber, second.OrderNumber)
		f.orderRepo.AssertNumberOfCalls(t, "Save", 1)
	})

	t.Run("failed commits release the key instead of storing", func(t *testing.T) {
		f := newCommitFixture(t)
		configID := uuid.New()
		f.expectOrderCreation()
		f.tokenRepo.On("ClaimOldestAvailable", mock.Anything, tenantID, configID, mock.Anything, 1).
			Return([]token.ReservableToken{}, nil)
		f.tokenRepo.On("CountAvailable", mock.Anything, tenantID, configID).Return(int64(0), nil)
		f.tokenRepo.On("ReleaseClaim", mock.Anything, tenantID, mock.Anything).Return(nil)
		f.orderRepo.On("DeleteWithLines", mock.Anything, tenantID, mock.Anything).Return(nil)

		req := tokenRequest(configID, 1)
		req.IdempotencyKey = "key-3"

		_, err := f.service.Commit(context.Background(), tenantID, req)
		require.Error(t, err)

		assert.Contains(t, f.guard.released, "key-3")
		_, found, err := f.guard.Check(context.Background(), "key-3")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("concurrent duplicates create exactly one order", func(t *testing.T) {
		f := newCommitFixture(t)
		f.expectOrderCreation()
		f.inventoryRepo.On("FindByVariant", mock.Anything, tenantID, variantID).Return(nil, shared.ErrNotFound)
		f.orderRepo.On("SaveWithLock", mock.Anything, mock.Anything).Return(nil)

		store := cache.NewInMemoryIdempotencyStore()
		defer func() {
			require.NoError(t, store.Close())
		}()
		allocator := NewOrderNumberAllocator(f.orderRepo, "ORD", time.UTC)
		service := NewCommitService(
			f.orderRepo, f.variantRepo, f.inventoryRepo, f.movementRepo,
			f.tokenRepo, f.configRepo, f.saleRepo, f.gateway, allocator,
			store, shared.IdempotencyConfig{Enabled: true, TTL: time.Hour},
			zap.NewNop(),
		)

		req := productRequest(variantID)
		req.IdempotencyKey = "key-race"

		var wg sync.WaitGroup
		responses := make([]*CommitOrderResponse, 2)
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				resp, err := service.Commit(context.Background(), tenantID, req)
				assert.NoError(t, err)
				responses[i] = resp
			}(i)
		}
		wg.Wait()

		require.NotNil(t, responses[0])
		require.NotNil(t, responses[1])
		f.orderRepo.AssertNumberOfCalls(t, "Save", 1)
		assert.Equal(t, responses[0].OrderNumber, responses[1].OrderNumber)
		assert.NotEqual(t, responses[0].Replayed, responses[1].Replayed)
	})
}

func TestCommitService_Commit_OrderNumberRetry(t *testing.T) {
	tenantID := uuid.New()
	variantID := uuid.New()

	f := newCommitFixture(t)
	f.orderRepo.On("CountCreatedSince", mock.Anything, mock.Anything, mock.Anything).Return(int64(0), nil)
	f.orderRepo.On("Save", mock.Anything, mock.Anything).Return(shared.ErrOrderNumberConflict).Once()
	f.orderRepo.On("Save", mock.Anything, mock.Anything).Return(nil).Once()
	f.inventoryRepo.On("FindByVariant", mock.Anything, tenantID, variantID).Return(nil, shared.ErrNotFound)
	f.orderRepo.On("SaveWithLock", mock.Anything, mock.Anything).Return(nil)

	resp, err := f.service.Commit(context.Background(), tenantID, productRequest(variantID))
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", resp.Status)
	f.orderRepo.AssertNumberOfCalls(t, "Save", 2)
}

func TestCommitService_Commit_LedgerPosting(t *testing.T) {
	tenantID := uuid.New()
	variantID := uuid.New()

	t.Run("posts the deposit for a fully paid order", func(t *testing.T) {
		f := newCommitFixture(t)
		poster := new(MockLedgerPoster)
		f.service.SetLedgerPoster(poster)

		f.expectOrderCreation()
		f.inventoryRepo.On("FindByVariant", mock.Anything, tenantID, variantID).Return(nil, shared.ErrNotFound)
		f.orderRepo.On("SaveWithLock", mock.Anything, mock.Anything).Return(nil)
		poster.On("PostOrderDeposit", mock.Anything, tenantID, mock.Anything, mock.Anything, mock.Anything).Return(nil)

		resp, err := f.service.Commit(context.Background(), tenantID, productRequest(variantID))
		require.NoError(t, err)
		assert.Equal(t, "PAID", resp.PaymentStatus)
		poster.AssertCalled(t, "PostOrderDeposit", mock.Anything, tenantID, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("posting failure is a warning, not a rollback", func(t *testing.T) {
		f := newCommitFixture(t)
		poster := new(MockLedgerPoster)
		f.service.SetLedgerPoster(poster)

		f.expectOrderCreation()
		f.inventoryRepo.On("FindByVariant", mock.Anything, tenantID, variantID).Return(nil, shared.ErrNotFound)
		f.orderRepo.On("SaveWithLock", mock.Anything, mock.Anything).Return(nil)
		poster.On("PostOrderDeposit", mock.Anything, tenantID, mock.Anything, mock.Anything, mock.Anything).
			Return(errors.New("ledger locked"))

		resp, err := f.service.Commit(context.Background(), tenantID, productRequest(variantID))
		require.NoError(t, err)

		require.Len(t, resp.Warnings, 1)
		assert.Contains(t, resp.Warnings[0], "Ledger posting failed")
		f.orderRepo.AssertNotCalled(t, "DeleteWithLines", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("partial payment is not posted", func(t *testing.T) {
		f := newCommitFixture(t)
		poster := new(MockLedgerPoster)
		f.service.SetLedgerPoster(poster)

		f.expectOrderCreation()
		f.inventoryRepo.On("FindByVariant", mock.Anything, tenantID, variantID).Return(nil, shared.ErrNotFound)
		f.orderRepo.On("SaveWithLock", mock.Anything, mock.Anything).Return(nil)

		req := productRequest(variantID)
		req.AmountReceived = 20

		resp, err := f.service.Commit(context.Background(), tenantID, req)
		require.NoError(t, err)
		assert.Equal(t, "PARTIAL", resp.PaymentStatus)
		poster.AssertNotCalled(t, "PostOrderDeposit", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestCommitService_Commit_Validation(t *testing.T) {
	tenantID := uuid.New()
	configID := uuid.New()

	tests := []struct {
		name     string
		mutate   func(*CommitOrderRequest)
		wantCode string
	}{
		{
			name:     "unknown payment method",
			mutate:   func(r *CommitOrderRequest) { r.PaymentMethod = "CHECK" },
			wantCode: "INVALID_PAYMENT_METHOD",
		},
		{
			name:     "no lines",
			mutate:   func(r *CommitOrderRequest) { r.Lines = nil },
			wantCode: "NO_LINES",
		},
		{
			name:     "negative amount",
			mutate:   func(r *CommitOrderRequest) { r.AmountReceived = -1 },
			wantCode: "INVALID_AMOUNT",
		},
		{
			name:     "unknown line kind",
			mutate:   func(r *CommitOrderRequest) { r.Lines[0].Kind = "SERVICE" },
			wantCode: "INVALID_LINE_KIND",
		},
		{
			name:     "zero quantity",
			mutate:   func(r *CommitOrderRequest) { r.Lines[0].Quantity = 0 },
			wantCode: "INVALID_QUANTITY",
		},
		{
			name:     "token line without config",
			mutate:   func(r *CommitOrderRequest) { r.Lines[0].TokenConfigID = nil },
			wantCode: "INVALID_TOKEN_CONFIG",
		},
		{
			name: "combo without components",
			mutate: func(r *CommitOrderRequest) {
				r.Lines = []CommitLineItem{{Kind: "COMBO", Name: "Bundle", Quantity: 1, UnitPrice: 60}}
			},
			wantCode: "NO_COMPONENTS",
		},
		{
			name: "components on a non-combo line",
			mutate: func(r *CommitOrderRequest) {
				r.Lines[0].Components = []CommitLineItem{{Kind: "PRODUCT", Name: "Coke", Quantity: 1}}
			},
			wantCode: "INVALID_LINE_KIND",
		},
		{
			name: "nested combo",
			mutate: func(r *CommitOrderRequest) {
				r.Lines = []CommitLineItem{{
					Kind: "COMBO", Name: "Bundle", Quantity: 1, UnitPrice: 60,
					Components: []CommitLineItem{{Kind: "COMBO", Name: "Inner", Quantity: 1}},
				}}
			},
			wantCode: "INVALID_LINE_KIND",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCommitFixture(t)
			req := tokenRequest(configID, 1)
			tt.mutate(&req)

			_, err := f.service.Commit(context.Background(), tenantID, req)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, domainCode(t, err))
			f.orderRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
		})
	}
}

func TestCommitService_Commit_ComboLine(t *testing.T) {
	tenantID := uuid.New()
	variantID := uuid.New()

	f := newCommitFixture(t)
	f.expectOrderCreation()

	item, err := inventory.NewInventoryItem(tenantID, variantID, decimal.NewFromInt(5))
	require.NoError(t, err)
	f.inventoryRepo.On("FindByVariant", mock.Anything, tenantID, variantID).Return(item, nil)
	f.inventoryRepo.On("SaveWithLock", mock.Anything, item).Return(nil)
	f.movementRepo.On("Save", mock.Anything, mock.Anything).Return(nil)
	f.orderRepo.On("SaveWithLock", mock.Anything, mock.Anything).Return(nil)

	req := CommitOrderRequest{
		PaymentMethod:  "CASH",
		AmountReceived: 60,
		Lines: []CommitLineItem{{
			Kind:      "COMBO",
			Name:      "Merienda Combo",
			Quantity:  1,
			UnitPrice: 60,
			Components: []CommitLineItem{{
				Kind:      "PRODUCT",
				Name:      "Coke",
				VariantID: &variantID,
				Quantity:  1,
				UnitPrice: 25,
			}},
		}},
	}

	resp, err := f.service.Commit(context.Background(), tenantID, req)
	require.NoError(t, err)

	// The combo owns the money; its component still moved inventory
	assert.Equal(t, "60.00", resp.TotalAmount)
	assert.Equal(t, "4", item.OnHand.String())
	require.Len(t, resp.Lines, 2)
}
