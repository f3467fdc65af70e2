package usecase

import (
	"context"
	"errors"
	"strings"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/sirupsen/logrus"
)

type AddressInput struct {
	FullName string
	Phone    string
	Street   string
	City     string
	State    string
	ZipCode  string
	Country  string
}

func (in AddressInput) shipping() model.ShippingAddress {
	return model.ShippingAddress{
		FullName: strings.TrimSpace(in.FullName),
		Phone:    strings.TrimSpace(in.Phone),
		Street:   strings.TrimSpace(in.Street),
		City:     strings.TrimSpace(in.City),
		State:    strings.TrimSpace(in.State),
		ZipCode:  strings.TrimSpace(in.ZipCode),
		Country:  strings.TrimSpace(in.Country),
	}
}

// 保存済み配送先（アドレス帳）
type AddressUsecase struct {
	addresses repo.AddressRepository
	log       *logrus.Logger
}

func NewAddressUsecase(addresses repo.AddressRepository, log *logrus.Logger) *AddressUsecase {
	return &AddressUsecase{addresses: addresses, log: log}
}

func (u *AddressUsecase) List(ctx context.Context, userID int64) ([]model.Address, error) {
	if userID <= 0 {
		return nil, UnauthorizedError()
	}
	list, err := u.addresses.ListByUserID(ctx, userID)
	if err != nil {
		return nil, u.internal(err, "list addresses")
	}
	if list == nil {
		list = []model.Address{}
	}
	return list, nil
}

func (u *AddressUsecase) Create(ctx context.Context, userID int64, in AddressInput) (model.Address, error) {
	if userID <= 0 {
		return model.Address{}, UnauthorizedError()
	}
	s := in.shipping()
	if err := validateShipping(s); err != nil {
		return model.Address{}, err
	}

	created, err := u.addresses.Create(ctx, fromShipping(userID, s))
	if err != nil {
		return model.Address{}, u.internal(err, "create address")
	}
	return created, nil
}

func (u *AddressUsecase) Update(ctx context.Context, userID, addressID int64, in AddressInput) error {
	if _, err := u.owned(ctx, userID, addressID); err != nil {
		return err
	}
	s := in.shipping()
	if err := validateShipping(s); err != nil {
		return err
	}

	a := fromShipping(userID, s)
	a.ID = addressID
	if err := u.addresses.Update(ctx, a); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return NotFoundError("Address not found")
		}
		return u.internal(err, "update address")
	}
	return nil
}

func (u *AddressUsecase) Delete(ctx context.Context, userID, addressID int64) error {
	if _, err := u.owned(ctx, userID, addressID); err != nil {
		return err
	}
	if err := u.addresses.Delete(ctx, addressID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return NotFoundError("Address not found")
		}
		return u.internal(err, "delete address")
	}
	return nil
}

func (u *AddressUsecase) SetDefault(ctx context.Context, userID, addressID int64) error {
	if _, err := u.owned(ctx, userID, addressID); err != nil {
		return err
	}
	if err := u.addresses.SetDefault(ctx, userID, addressID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return NotFoundError("Address not found")
		}
		return u.internal(err, "set default address")
	}
	return nil
}

// 他人の住所は404
func (u *AddressUsecase) owned(ctx context.Context, userID, addressID int64) (model.Address, error) {
	if userID <= 0 {
		return model.Address{}, UnauthorizedError()
	}
	if addressID <= 0 {
		return model.Address{}, ValidationError("invalid address id")
	}
	a, err := u.addresses.FindByID(ctx, addressID)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && a.UserID != userID) {
		return model.Address{}, NotFoundError("Address not found")
	}
	if err != nil {
		return model.Address{}, u.internal(err, "find address")
	}
	return a, nil
}

func fromShipping(userID int64, s model.ShippingAddress) model.Address {
	if s.Country == "" {
		s.Country = model.DefaultCountry
	}
	return model.Address{
		UserID:   userID,
		FullName: s.FullName,
		Phone:    s.Phone,
		Street:   s.Street,
		City:     s.City,
		State:    s.State,
		ZipCode:  s.ZipCode,
		Country:  s.Country,
	}
}

func (u *AddressUsecase) internal(err error, op string) error {
	u.log.WithError(err).WithField("op", op).Error("address usecase failed")
	return InternalError()
}
