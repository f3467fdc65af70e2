package usecase

import (
	"context"
	"errors"
	"strings"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/sirupsen/logrus"
)

type ProductUsecase struct {
	tx          repo.TransactionManager
	productRepo repo.ProductRepository
	log         *logrus.Logger
	clock       Clock
}

// DI
func NewProductUsecase(tx repo.TransactionManager, productRepo repo.ProductRepository, log *logrus.Logger) *ProductUsecase {
	return &ProductUsecase{tx: tx, productRepo: productRepo, log: log, clock: systemClock{}}
}

// GET /productsの入力DTO
type ListProductsInput struct {
	Page     int
	Limit    int
	Q        string
	MinPrice *int64
	MaxPrice *int64
	Sort     string
}

type ProductListOutput struct {
	Items []model.Product `json:"items"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

func (u *ProductUsecase) ListPublicProducts(ctx context.Context, in ListProductsInput) (ProductListOutput, error) {
	if in.Page < 1 {
		return ProductListOutput{}, ValidationError("invalid page")
	}
	if in.Limit < 1 || in.Limit > 100 {
		return ProductListOutput{}, ValidationError("invalid limit")
	}
	if len(in.Q) > 100 {
		return ProductListOutput{}, ValidationError("q too long")
	}
	if in.MinPrice != nil && *in.MinPrice < 0 {
		return ProductListOutput{}, ValidationError("min_price must be >= 0")
	}
	if in.MaxPrice != nil && *in.MaxPrice < 0 {
		return ProductListOutput{}, ValidationError("max_price must be >= 0")
	}
	if in.MinPrice != nil && in.MaxPrice != nil && *in.MinPrice > *in.MaxPrice {
		return ProductListOutput{}, ValidationError("min_price must be <= max_price")
	}
	switch in.Sort {
	case "", "new", "price_asc", "price_desc", "best_selling":
	default:
		return ProductListOutput{}, ValidationError("invalid sort")
	}

	items, total, err := u.productRepo.ListPublic(ctx, repo.ProductListQuery{
		Page:     in.Page,
		Limit:    in.Limit,
		Q:        strings.TrimSpace(in.Q),
		MinPrice: in.MinPrice,
		MaxPrice: in.MaxPrice,
		Sort:     in.Sort,
	})
	if err != nil {
		return ProductListOutput{}, u.internal(err, "list products")
	}

	return ProductListOutput{
		Items: items,
		Total: total,
		Page:  in.Page,
		Limit: in.Limit,
	}, nil
}

// 非公開商品は404
func (u *ProductUsecase) GetProductDetail(ctx context.Context, productID int64) (model.Product, error) {
	if productID <= 0 {
		return model.Product{}, ValidationError("invalid product id")
	}

	p, err := u.productRepo.FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Product{}, NotFoundError("Product not found")
	}
	if err != nil {
		return model.Product{}, u.internal(err, "find product")
	}

	if !p.IsActive {
		return model.Product{}, NotFoundError("Product not found")
	}
	return p, nil
}

type AdminProductInput struct {
	Name        string
	Description string
	Price       int64
	Stock       int64
	ImageURL    string
	IsActive    bool
}

func validateProductInput(in AdminProductInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return ValidationError("name required")
	}
	if in.Price < 0 {
		return ValidationError("price must be >= 0")
	}
	if in.Stock < 0 {
		return ValidationError("stock must be >= 0")
	}
	return nil
}

func (u *ProductUsecase) AdminCreateProduct(ctx context.Context, adminUserID int64, in AdminProductInput) (model.Product, error) {
	if adminUserID <= 0 {
		return model.Product{}, UnauthorizedError()
	}
	if err := validateProductInput(in); err != nil {
		return model.Product{}, err
	}

	p, err := u.productRepo.Create(ctx, model.Product{
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Price:       in.Price,
		Stock:       in.Stock,
		ImageURL:    strings.TrimSpace(in.ImageURL),
		IsActive:    in.IsActive,
	})
	if err != nil {
		return model.Product{}, u.internal(err, "create product")
	}
	return p, nil
}

// 在庫はここでは変えない（/admin/inventory 経由のみ）
func (u *ProductUsecase) AdminUpdateProduct(ctx context.Context, adminUserID int64, productID int64, in AdminProductInput) error {
	if adminUserID <= 0 {
		return UnauthorizedError()
	}
	if productID <= 0 {
		return ValidationError("invalid product id")
	}
	if err := validateProductInput(in); err != nil {
		return err
	}

	err := u.productRepo.Update(ctx, model.Product{
		ID:          productID,
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Price:       in.Price,
		ImageURL:    strings.TrimSpace(in.ImageURL),
		IsActive:    in.IsActive,
	})
	if errors.Is(err, repo.ErrNotFound) {
		return NotFoundError("Product not found")
	}
	if err != nil {
		return u.internal(err, "update product")
	}
	return nil
}

func (u *ProductUsecase) AdminDeleteProduct(ctx context.Context, adminUserID int64, productID int64) error {
	if adminUserID <= 0 {
		return UnauthorizedError()
	}
	if productID <= 0 {
		return ValidationError("invalid product id")
	}

	err := u.productRepo.SoftDelete(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return NotFoundError("Product not found")
	}
	if err != nil {
		return u.internal(err, "delete product")
	}
	return nil
}

type stockSnapshot struct {
	Stock int64 `json:"stock"`
}

// 在庫の現在値を設定し、調整履歴と監査ログを同じTxで残す
func (u *ProductUsecase) AdminUpdateInventory(ctx context.Context, adminUserID int64, productID int64, newStock int64, reason string) (model.Product, error) {
	if adminUserID <= 0 {
		return model.Product{}, UnauthorizedError()
	}
	if productID <= 0 {
		return model.Product{}, ValidationError("invalid product id")
	}
	if newStock < 0 {
		return model.Product{}, ValidationError("stock must be >= 0")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return model.Product{}, ValidationError("reason required")
	}

	now := u.clock.Now()
	var updated model.Product
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Products().FindByID(ctx, productID)
		if errors.Is(err, repo.ErrNotFound) {
			return NotFoundError("Product not found")
		}
		if err != nil {
			return err
		}

		if err := r.Inventory().SetStock(ctx, productID, newStock); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return NotFoundError("Product not found")
			}
			return err
		}

		if err := r.Inventory().CreateAdjustment(ctx, model.InventoryAdjustment{
			ProductID:   productID,
			AdminUserID: adminUserID,
			Delta:       newStock - p.Stock,
			Reason:      reason,
			CreatedAt:   now,
		}); err != nil {
			return err
		}

		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  adminUserID,
			Action:       model.AuditActionUpdateStock,
			ResourceType: model.AuditResourceProduct,
			ResourceID:   productID,
			BeforeJSON:   toJSON(stockSnapshot{Stock: p.Stock}),
			AfterJSON:    toJSON(stockSnapshot{Stock: newStock}),
			CreatedAt:    now,
		}); err != nil {
			return err
		}

		p.Stock = newStock
		updated = p
		return nil
	})
	if err != nil {
		if _, ok := AsHTTPError(err); ok {
			return model.Product{}, err
		}
		return model.Product{}, u.internal(err, "update inventory")
	}

	u.log.WithFields(logrus.Fields{
		"product_id": productID,
		"admin_id":   adminUserID,
		"stock":      newStock,
	}).Info("inventory updated")
	return updated, nil
}

func (u *ProductUsecase) internal(err error, op string) error {
	u.log.WithError(err).WithField("op", op).Error("product usecase failed")
	return InternalError()
}
