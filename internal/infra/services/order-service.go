package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"messenger-connector/internal/domain/entities"
	"messenger-connector/internal/domain/interfaces/repository"
	Iservices "messenger-connector/internal/domain/interfaces/services"
	"messenger-connector/internal/infra/logger"
)

const dateLayout = "2006-01-02"

var (
	// ErrUnknownProduct is returned when no product has the requested code.
	ErrUnknownProduct = errors.New("unknown product")
	// ErrOutOfStock is returned when the product stock is lower than the quantity ordered.
	ErrOutOfStock = errors.New("insufficient stock")
)

// OrderService manages products and the orders placed on them.
type OrderService struct {
	ProductRepository repository.Repository[entities.Product]
	OrderRepository   repository.Repository[entities.Order]
	ProductsTable     string
	OrdersTable       string
	Logger            *logger.Logger
	Now               func() time.Time
}

var _ Iservices.IOrderService = (*OrderService)(nil)

func NewOrderService(products repository.Repository[entities.Product], orders repository.Repository[entities.Order], productsTable, ordersTable string, logger *logger.Logger) *OrderService {
	return &OrderService{
		ProductRepository: products,
		OrderRepository:   orders,
		ProductsTable:     productsTable,
		OrdersTable:       ordersTable,
		Logger:            logger,
		Now:               time.Now,
	}
}

// FindProduct returns the product with the given code.
func (th *OrderService) FindProduct(ctx context.Context, code string) (entities.Product, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	product, err := th.ProductRepository.FindOne(ctx, th.ProductsTable, "Code", code)
	if errors.Is(err, repository.ErrNotFound) {
		return entities.Product{}, fmt.Errorf("%w: %s", ErrUnknownProduct, code)
	}
	if err != nil {
		th.Logger.Error(fmt.Sprintf("Failed to find product '%s': %v", code, err))
		return entities.Product{}, err
	}
	return product, nil
}

// PlaceOrder records the order collected in the conversation and takes the
// quantity out of the product stock. An order for the same user and product
// replaces the previous one, and only the difference in quantity moves the
// stock.
func (th *OrderService) PlaceOrder(ctx context.Context, conversation entities.Conversation) (entities.Order, entities.Product, error) {
	product, err := th.FindProduct(ctx, conversation.ProductCode)
	if err != nil {
		return entities.Order{}, entities.Product{}, err
	}
	if conversation.Quantity <= 0 {
		return entities.Order{}, product, fmt.Errorf("invalid quantity %d", conversation.Quantity)
	}

	key := entities.OrderKey(conversation.MessengerID, product.Code)
	existing, err := th.OrderRepository.FindOne(ctx, th.OrdersTable, "Order_ID", key)
	found := err == nil
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		th.Logger.Error(fmt.Sprintf("Failed to look up order '%s': %v", key, err))
		return entities.Order{}, product, err
	}

	delta := conversation.Quantity
	if found {
		delta -= existing.Quantity
	}
	if product.Stock < delta {
		return entities.Order{}, product, fmt.Errorf("%w: %s has %d, %d requested", ErrOutOfStock, product.Code, product.Stock, delta)
	}

	order := entities.Order{
		OrderID:     key,
		MessengerID: conversation.MessengerID,
		ProductCode: product.Code,
		Quantity:    conversation.Quantity,
		Status:      entities.OrderStatusPending,
		Phone:       conversation.Phone,
		Address:     conversation.Address,
		OrderDate:   th.Now().Format(dateLayout),
	}
	if found {
		order, err = th.OrderRepository.Update(ctx, th.OrdersTable, existing.ID, order)
	} else {
		order, err = th.OrderRepository.Create(ctx, th.OrdersTable, order)
	}
	if err != nil {
		th.Logger.Error(fmt.Sprintf("Failed to save order '%s': %v", key, err))
		return entities.Order{}, product, err
	}

	if delta == 0 {
		return order, product, nil
	}
	product.Stock -= delta
	updated, err := th.ProductRepository.Update(ctx, th.ProductsTable, product.ID, product)
	if err != nil {
		th.Logger.Error(fmt.Sprintf("Order %s saved but stock update of %s failed: %v", order.OrderID, product.Code, err))
		return order, product, err
	}
	return order, updated, nil
}
