package repository

import (
	"context"

	"storefront/internal/domain/model"
	domainrepo "storefront/internal/repository"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type userGormRepository struct {
	db *gorm.DB
}

// DI
// main.goでこれをnewしてusecaseに注入します。
func NewUserGormRepository(db *gorm.DB) domainrepo.UserRepository {
	return &userGormRepository{db: db}
}

func (r *userGormRepository) Create(ctx context.Context, user *model.User) error {
	err := r.db.WithContext(ctx).Create(user).Error
	if isDuplicate(err) {
		return domainrepo.ErrDuplicateEmail
	}
	return errors.Wrap(err, "create user")
}

// 見つからなければErrNotFound
func (r *userGormRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&u).Error
	if isNotFound(err) {
		return nil, domainrepo.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "find user by email")
	}
	return &u, nil
}

func (r *userGormRepository) FindByID(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error
	if isNotFound(err) {
		return nil, domainrepo.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "find user")
	}
	return &u, nil
}

func (r *userGormRepository) Update(ctx context.Context, user *model.User) error {
	return errors.Wrap(r.db.WithContext(ctx).Save(user).Error, "update user")
}
