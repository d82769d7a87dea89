package dao

import (
	"fmt"

	"gorm.io/gorm"

	"marketsim/internal/models"
)

// SessionDAO handles database operations for sessions
type SessionDAO struct {
	db *gorm.DB
}

// SessionDAOInterface defines the contract for session data access
type SessionDAOInterface interface {
	Create(session *models.Session) error
	Update(session *models.Session) error
	UpdateWithTx(tx *gorm.DB, session *models.Session) error
	GetByID(sessionID string) (*models.Session, error)
	GetByIDWithTx(tx *gorm.DB, sessionID string) (*models.Session, error)
	ListByUser(userID string) ([]models.Session, error)
	ListActive() ([]models.Session, error)
}

func NewSessionDAO(db *gorm.DB) SessionDAOInterface {
	return &SessionDAO{db: db}
}

func (dao *SessionDAO) Create(session *models.Session) error {
	if err := dao.db.Create(session).Error; err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (dao *SessionDAO) Update(session *models.Session) error {
	if err := dao.db.Save(session).Error; err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}

func (dao *SessionDAO) UpdateWithTx(tx *gorm.DB, session *models.Session) error {
	if err := tx.Save(session).Error; err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}

// GetByID retrieves a session by ID. Not-found is returned unwrapped so
// callers can map it to their own sentinel.
func (dao *SessionDAO) GetByID(sessionID string) (*models.Session, error) {
	var session models.Session
	if err := dao.db.First(&session, "id = ?", sessionID).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (dao *SessionDAO) GetByIDWithTx(tx *gorm.DB, sessionID string) (*models.Session, error) {
	var session models.Session
	if err := tx.First(&session, "id = ?", sessionID).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (dao *SessionDAO) ListByUser(userID string) ([]models.Session, error) {
	var sessions []models.Session
	if err := dao.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("failed to list user sessions: %w", err)
	}
	return sessions, nil
}

// ListActive returns every session that is running and not ended.
func (dao *SessionDAO) ListActive() ([]models.Session, error) {
	var sessions []models.Session
	if err := dao.db.Where("is_active = ? AND ended_at IS NULL", true).Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("failed to list active sessions: %w", err)
	}
	return sessions, nil
}
