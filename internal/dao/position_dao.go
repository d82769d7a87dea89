package dao

import (
	"fmt"

	"gorm.io/gorm"

	"marketsim/internal/models"
)

// PositionDAO handles database operations for positions
type PositionDAO struct {
	db *gorm.DB
}

// PositionDAOInterface defines the contract for position data access
type PositionDAOInterface interface {
	Create(position *models.Position) error
	CreateWithTx(tx *gorm.DB, position *models.Position) error
	Update(position *models.Position) error
	UpdateWithTx(tx *gorm.DB, position *models.Position) error
	Get(sessionID, symbol string) (*models.Position, error)
	GetWithTx(tx *gorm.DB, sessionID, symbol string) (*models.Position, error)
	ListBySession(sessionID string) ([]models.Position, error)
	ListBySessionWithTx(tx *gorm.DB, sessionID string) ([]models.Position, error)
}

func NewPositionDAO(db *gorm.DB) PositionDAOInterface {
	return &PositionDAO{db: db}
}

func (dao *PositionDAO) Create(position *models.Position) error {
	if err := dao.db.Create(position).Error; err != nil {
		return fmt.Errorf("failed to create position: %w", err)
	}
	return nil
}

func (dao *PositionDAO) CreateWithTx(tx *gorm.DB, position *models.Position) error {
	if err := tx.Create(position).Error; err != nil {
		return fmt.Errorf("failed to create position: %w", err)
	}
	return nil
}

func (dao *PositionDAO) Update(position *models.Position) error {
	if err := dao.db.Save(position).Error; err != nil {
		return fmt.Errorf("failed to update position: %w", err)
	}
	return nil
}

func (dao *PositionDAO) UpdateWithTx(tx *gorm.DB, position *models.Position) error {
	if err := tx.Save(position).Error; err != nil {
		return fmt.Errorf("failed to update position: %w", err)
	}
	return nil
}

// Get returns the position row for session+symbol. Not-found is returned
// unwrapped so callers can map it to their own sentinel.
func (dao *PositionDAO) Get(sessionID, symbol string) (*models.Position, error) {
	var position models.Position
	if err := dao.db.Where("session_id = ? AND symbol = ?", sessionID, symbol).First(&position).Error; err != nil {
		return nil, err
	}
	return &position, nil
}

func (dao *PositionDAO) GetWithTx(tx *gorm.DB, sessionID, symbol string) (*models.Position, error) {
	var position models.Position
	if err := tx.Where("session_id = ? AND symbol = ?", sessionID, symbol).First(&position).Error; err != nil {
		return nil, err
	}
	return &position, nil
}

func (dao *PositionDAO) ListBySession(sessionID string) ([]models.Position, error) {
	var positions []models.Position
	if err := dao.db.Where("session_id = ?", sessionID).Order("symbol ASC").Find(&positions).Error; err != nil {
		return nil, fmt.Errorf("failed to list session positions: %w", err)
	}
	return positions, nil
}

func (dao *PositionDAO) ListBySessionWithTx(tx *gorm.DB, sessionID string) ([]models.Position, error) {
	var positions []models.Position
	if err := tx.Where("session_id = ?", sessionID).Order("symbol ASC").Find(&positions).Error; err != nil {
		return nil, fmt.Errorf("failed to list session positions: %w", err)
	}
	return positions, nil
}
