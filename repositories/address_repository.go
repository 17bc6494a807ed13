package repositories

import (
	"context"

	"blog-cms/models"

	"gorm.io/gorm"
)

type AddressRepository interface {
	FirstOrCreate(ctx context.Context, ip string) (*models.Address, error)
}

type addressRepository struct {
	db *gorm.DB
}

func NewAddressRepository(db *gorm.DB) AddressRepository {
	return &addressRepository{db: db}
}

func (r *addressRepository) FirstOrCreate(ctx context.Context, ip string) (*models.Address, error) {
	var address models.Address
	err := r.db.WithContext(ctx).Where(models.Address{IP: ip}).FirstOrCreate(&address).Error
	return &address, err
}
