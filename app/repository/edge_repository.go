package repository

import (
	"gorm.io/gorm"

	"github.com/gitwithuli/edgeofict/app/models"
)

// edgeRepository implements the EdgeRepository interface
type edgeRepository struct {
	db *gorm.DB
}

// NewEdgeRepository creates a new edge repository instance
func NewEdgeRepository(db *gorm.DB) EdgeRepository {
	return &edgeRepository{db: db}
}

func (r *edgeRepository) Create(edge *models.Edge) error {
	return r.db.Create(edge).Error
}

func (r *edgeRepository) GetByUUID(uuid string) (*models.Edge, error) {
	var edge models.Edge
	err := r.db.Where("uuid = ?", uuid).First(&edge).Error
	if err != nil {
		return nil, err
	}
	return &edge, nil
}

func (r *edgeRepository) GetByUserID(userID uint) ([]models.Edge, error) {
	var edges []models.Edge
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&edges).Error
	return edges, err
}

func (r *edgeRepository) CountByUserID(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Edge{}).Where("user_id = ? AND archived = ?", userID, false).Count(&count).Error
	return count, err
}

func (r *edgeRepository) Update(edge *models.Edge) error {
	return r.db.Save(edge).Error
}

func (r *edgeRepository) Delete(id uint) error {
	return r.db.Delete(&models.Edge{}, id).Error
}
