package repository

import (
	"context"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type AddressGormRepository struct {
	db *gorm.DB
}

// DI
func NewAddressGormRepository(db *gorm.DB) *AddressGormRepository {
	return &AddressGormRepository{db: db}
}

func (r *AddressGormRepository) Create(ctx context.Context, address model.Address) (model.Address, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		//最初の1件は自動でデフォルト
		var count int64
		if err := tx.Model(&model.Address{}).Where("user_id = ?", address.UserID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			address.IsDefault = true
		}
		return tx.Create(&address).Error
	})
	if err != nil {
		return model.Address{}, errors.Wrap(err, "create address")
	}
	return address, nil
}

func (r *AddressGormRepository) ListByUserID(ctx context.Context, userID int64) ([]model.Address, error) {
	var list []model.Address
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("is_default DESC, id ASC").
		Find(&list).Error; err != nil {
		return nil, errors.Wrap(err, "list addresses")
	}
	return list, nil
}

func (r *AddressGormRepository) FindByID(ctx context.Context, addressID int64) (model.Address, error) {
	var a model.Address
	if err := r.db.WithContext(ctx).First(&a, addressID).Error; err != nil {
		if isNotFound(err) {
			return model.Address{}, repo.ErrNotFound
		}
		return model.Address{}, errors.Wrap(err, "find address")
	}
	return a, nil
}

func (r *AddressGormRepository) FindDefault(ctx context.Context, userID int64) (model.Address, error) {
	var a model.Address
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_default = TRUE", userID).
		First(&a).Error
	if err != nil {
		if isNotFound(err) {
			return model.Address{}, repo.ErrNotFound
		}
		return model.Address{}, errors.Wrap(err, "find default address")
	}
	return a, nil
}

func (r *AddressGormRepository) Update(ctx context.Context, address model.Address) error {
	result := r.db.WithContext(ctx).
		Model(&model.Address{}).
		Where("id = ?", address.ID).
		Select("full_name", "phone", "street", "city", "state", "zip_code", "country").
		Updates(address)

	if result.Error != nil {
		return errors.Wrap(result.Error, "update address")
	}
	if result.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *AddressGormRepository) Delete(ctx context.Context, addressID int64) error {
	result := r.db.WithContext(ctx).
		Where("id = ?", addressID).
		Delete(&model.Address{})

	if result.Error != nil {
		return errors.Wrap(result.Error, "delete address")
	}
	if result.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// デフォルト住所を切り替える
func (r *AddressGormRepository) SetDefault(ctx context.Context, userID, addressID int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Address{}).
			Where("id = ? AND user_id = ?", addressID, userID).
			Count(&count).Error; err != nil {
			return errors.Wrap(err, "check address owner")
		}
		if count == 0 {
			return repo.ErrNotFound
		}

		//そのユーザーのdefaultを全て false
		if err := tx.Model(&model.Address{}).
			Where("user_id = ? AND is_default = TRUE", userID).
			Update("is_default", false).Error; err != nil {
			return errors.Wrap(err, "clear default address")
		}

		//指定住所だけ true
		if err := tx.Model(&model.Address{}).
			Where("id = ? AND user_id = ?", addressID, userID).
			Update("is_default", true).Error; err != nil {
			return errors.Wrap(err, "set default address")
		}
		return nil
	})
}
