package ordering

import (
	"context"

	"github.com/google/uuid"

	"github.com/venda/backend/internal/domain/ordering"
	"github.com/venda/backend/internal/domain/shared"
)

// QueryService serves the read side of orders
type QueryService struct {
	orderRepo ordering.OrderRepository
}

// NewQueryService creates a new QueryService
func NewQueryService(orderRepo ordering.OrderRepository) *QueryService {
	return &QueryService{orderRepo: orderRepo}
}

// GetByID retrieves an order by ID
func (s *QueryService) GetByID(ctx context.Context, tenantID, orderID uuid.UUID) (*OrderResponse, error) {
	order, err := s.orderRepo.FindByIDForTenant(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	resp := ToOrderResponse(order)
	return &resp, nil
}

// GetByNumber retrieves an order by its order number
func (s *QueryService) GetByNumber(ctx context.Context, tenantID uuid.UUID, orderNumber string) (*OrderResponse, error) {
	order, err := s.orderRepo.FindByNumber(ctx, tenantID, orderNumber)
	if err != nil {
		return nil, err
	}
	resp := ToOrderResponse(order)
	return &resp, nil
}

// List retrieves orders with filtering and pagination
func (s *QueryService) List(ctx context.Context, tenantID uuid.UUID, filter OrderListFilter) ([]OrderResponse, int64, error) {
	domainFilter := shared.DefaultFilter()
	if filter.Page > 0 {
		domainFilter.Page = filter.Page
	}
	if filter.PageSize > 0 {
		domainFilter.PageSize = filter.PageSize
	}
	domainFilter.Search = filter.Search
	if filter.Status != nil {
		domainFilter.Filters["status"] = *filter.Status
	}
	if filter.StartDate != nil {
		domainFilter.Filters["start_date"] = *filter.StartDate
	}
	if filter.EndDate != nil {
		domainFilter.Filters["end_date"] = *filter.EndDate
	}

	orders, err := s.orderRepo.FindAllForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.orderRepo.CountForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]OrderResponse, 0, len(orders))
	for idx := range orders {
		responses = append(responses, ToOrderResponse(&orders[idx]))
	}
	return responses, total, nil
}
