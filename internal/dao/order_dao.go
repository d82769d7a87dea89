package dao

import (
	"fmt"

	"gorm.io/gorm"

	"marketsim/internal/models"
)

// OrderDAO handles database operations for orders
type OrderDAO struct {
	db *gorm.DB
}

// OrderDAOInterface defines the contract for order data access
type OrderDAOInterface interface {
	Create(order *models.Order) error
	CreateWithTx(tx *gorm.DB, order *models.Order) error
	Update(order *models.Order) error
	UpdateWithTx(tx *gorm.DB, order *models.Order) error
	GetByID(orderID uint) (*models.Order, error)
	GetByIDWithTx(tx *gorm.DB, orderID uint) (*models.Order, error)
	ListBySession(sessionID string) ([]models.Order, error)
	ListPending(sessionID string) ([]models.Order, error)
	ListPendingWithTx(tx *gorm.DB, sessionID string) ([]models.Order, error)
}

func NewOrderDAO(db *gorm.DB) OrderDAOInterface {
	return &OrderDAO{db: db}
}

func (dao *OrderDAO) Create(order *models.Order) error {
	if err := dao.db.Create(order).Error; err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

func (dao *OrderDAO) CreateWithTx(tx *gorm.DB, order *models.Order) error {
	if err := tx.Create(order).Error; err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

func (dao *OrderDAO) Update(order *models.Order) error {
	if err := dao.db.Save(order).Error; err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	return nil
}

func (dao *OrderDAO) UpdateWithTx(tx *gorm.DB, order *models.Order) error {
	if err := tx.Save(order).Error; err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	return nil
}

// GetByID retrieves an order by ID. Not-found is returned unwrapped so
// callers can map it to their own sentinel.
func (dao *OrderDAO) GetByID(orderID uint) (*models.Order, error) {
	var order models.Order
	if err := dao.db.First(&order, orderID).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (dao *OrderDAO) GetByIDWithTx(tx *gorm.DB, orderID uint) (*models.Order, error) {
	var order models.Order
	if err := tx.First(&order, orderID).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (dao *OrderDAO) ListBySession(sessionID string) ([]models.Order, error) {
	var orders []models.Order
	if err := dao.db.Where("session_id = ?", sessionID).Order("created_at DESC").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to list session orders: %w", err)
	}
	return orders, nil
}

func (dao *OrderDAO) ListPending(sessionID string) ([]models.Order, error) {
	var orders []models.Order
	if err := dao.db.Where("session_id = ? AND status = ?", sessionID, models.OrderStatusPending).Order("created_at ASC").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to list pending orders: %w", err)
	}
	return orders, nil
}

func (dao *OrderDAO) ListPendingWithTx(tx *gorm.DB, sessionID string) ([]models.Order, error) {
	var orders []models.Order
	if err := tx.Where("session_id = ? AND status = ?", sessionID, models.OrderStatusPending).Order("created_at ASC").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to list pending orders: %w", err)
	}
	return orders, nil
}
