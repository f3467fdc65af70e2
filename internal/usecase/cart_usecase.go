package usecase

import (
	"context"
	"errors"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/sirupsen/logrus"
)

// CartUsecase は /cart の業務ロジックです。
// 明細を変えるたびに合計を計算し直す。
type CartUsecase struct {
	cartRepo     repo.CartRepository
	cartItemRepo repo.CartItemRepository
	productRepo  repo.ProductRepository
	log          *logrus.Logger
}

func NewCartUsecase(
	cartRepo repo.CartRepository,
	cartItemRepo repo.CartItemRepository,
	productRepo repo.ProductRepository,
	log *logrus.Logger,
) *CartUsecase {
	return &CartUsecase{
		cartRepo:     cartRepo,
		cartItemRepo: cartItemRepo,
		productRepo:  productRepo,
		log:          log,
	}
}

// price は unit_price_snapshot（追加時点の価格）
type CartItemResponse struct {
	ID        int64  `json:"id"`
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	ImageURL  string `json:"image_url"`
	Price     int64  `json:"price"`
	Quantity  int64  `json:"quantity"`
	Available bool   `json:"available"`
}

type CartResponse struct {
	Items      []CartItemResponse `json:"items"`
	TotalItems int64              `json:"total_items"`
	TotalPrice int64              `json:"total_price"`
}

type AddCartInput struct {
	ProductID int64
	Quantity  int64
}

type UpdateCartItemInput struct {
	Quantity int64
}

// カート取得（無ければ作って空を返す）
func (u *CartUsecase) GetCart(ctx context.Context, userID int64) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, UnauthorizedError()
	}
	cart, err := u.cartRepo.GetOrCreateByUserID(ctx, userID)
	if err != nil {
		return CartResponse{}, u.internal(err, "get cart")
	}
	return u.buildCartResponse(ctx, cart)
}

// 同一商品は数量加算
func (u *CartUsecase) AddToCart(ctx context.Context, userID int64, in AddCartInput) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, UnauthorizedError()
	}
	if in.ProductID <= 0 {
		return CartResponse{}, ValidationError("invalid product_id")
	}
	if in.Quantity < 1 {
		return CartResponse{}, ValidationError("invalid quantity")
	}

	p, err := u.activeProduct(ctx, in.ProductID)
	if err != nil {
		return CartResponse{}, err
	}

	cart, err := u.cartRepo.GetOrCreateByUserID(ctx, userID)
	if err != nil {
		return CartResponse{}, u.internal(err, "get cart")
	}

	items, err := u.cartItemRepo.ListByCartID(ctx, cart.ID)
	if err != nil {
		return CartResponse{}, u.internal(err, "list cart items")
	}
	var existingQty int64
	for _, it := range items {
		if it.ProductID == in.ProductID {
			existingQty = it.Quantity
			break
		}
	}
	if existingQty+in.Quantity > p.Stock {
		return CartResponse{}, ValidationError("stock exceeded")
	}

	if err := u.cartItemRepo.UpsertByCartAndProduct(ctx, cart.ID, in.ProductID, in.Quantity, p.Price); err != nil {
		return CartResponse{}, u.internal(err, "upsert cart item")
	}
	return u.recalculate(ctx, cart.ID)
}

// 数量変更（所有チェック＋在庫チェック）
func (u *CartUsecase) UpdateItem(ctx context.Context, userID int64, cartItemID int64, in UpdateCartItemInput) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, UnauthorizedError()
	}
	if cartItemID <= 0 {
		return CartResponse{}, ValidationError("invalid id")
	}
	if in.Quantity < 1 {
		return CartResponse{}, ValidationError("invalid quantity")
	}

	cart, item, err := u.ownedItem(ctx, userID, cartItemID)
	if err != nil {
		return CartResponse{}, err
	}
	p, err := u.activeProduct(ctx, item.ProductID)
	if err != nil {
		return CartResponse{}, err
	}
	if in.Quantity > p.Stock {
		return CartResponse{}, ValidationError("stock exceeded")
	}

	if err := u.cartItemRepo.UpdateQuantity(ctx, cartItemID, in.Quantity); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return CartResponse{}, NotFoundError("not found")
		}
		return CartResponse{}, u.internal(err, "update cart item")
	}
	return u.recalculate(ctx, cart.ID)
}

func (u *CartUsecase) RemoveItem(ctx context.Context, userID int64, cartItemID int64) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, UnauthorizedError()
	}
	if cartItemID <= 0 {
		return CartResponse{}, ValidationError("invalid id")
	}

	cart, _, err := u.ownedItem(ctx, userID, cartItemID)
	if err != nil {
		return CartResponse{}, err
	}
	if err := u.cartItemRepo.DeleteByID(ctx, cartItemID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return CartResponse{}, NotFoundError("not found")
		}
		return CartResponse{}, u.internal(err, "delete cart item")
	}
	return u.recalculate(ctx, cart.ID)
}

func (u *CartUsecase) ClearCart(ctx context.Context, userID int64) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, UnauthorizedError()
	}
	cart, err := u.cartRepo.GetOrCreateByUserID(ctx, userID)
	if err != nil {
		return CartResponse{}, u.internal(err, "get cart")
	}
	if err := u.cartRepo.Clear(ctx, cart.ID); err != nil {
		return CartResponse{}, u.internal(err, "clear cart")
	}
	return CartResponse{Items: []CartItemResponse{}}, nil
}

// 他人の明細は「存在しない扱い」
func (u *CartUsecase) ownedItem(ctx context.Context, userID, cartItemID int64) (model.Cart, model.CartItem, error) {
	cart, err := u.cartRepo.FindByUserID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Cart{}, model.CartItem{}, NotFoundError("not found")
	}
	if err != nil {
		return model.Cart{}, model.CartItem{}, u.internal(err, "find cart")
	}
	item, err := u.cartItemRepo.FindByID(ctx, cartItemID)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && item.CartID != cart.ID) {
		return model.Cart{}, model.CartItem{}, NotFoundError("not found")
	}
	if err != nil {
		return model.Cart{}, model.CartItem{}, u.internal(err, "find cart item")
	}
	return cart, item, nil
}

func (u *CartUsecase) activeProduct(ctx context.Context, productID int64) (model.Product, error) {
	p, err := u.productRepo.FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && !p.IsActive) {
		return model.Product{}, NotFoundError("Product not found")
	}
	if err != nil {
		return model.Product{}, u.internal(err, "find product")
	}
	return p, nil
}

func (u *CartUsecase) recalculate(ctx context.Context, cartID int64) (CartResponse, error) {
	cart, err := u.cartRepo.RecalculateTotals(ctx, cartID)
	if err != nil {
		return CartResponse{}, u.internal(err, "recalculate cart")
	}
	return u.buildCartResponse(ctx, cart)
}

// 明細に商品名・画像を付ける。非公開になった商品はavailable=false
func (u *CartUsecase) buildCartResponse(ctx context.Context, cart model.Cart) (CartResponse, error) {
	items, err := u.cartItemRepo.ListByCartID(ctx, cart.ID)
	if err != nil {
		return CartResponse{}, u.internal(err, "list cart items")
	}

	respItems := make([]CartItemResponse, 0, len(items))
	for _, it := range items {
		r := CartItemResponse{
			ID:        it.ID,
			ProductID: it.ProductID,
			Price:     it.UnitPriceSnapshot,
			Quantity:  it.Quantity,
		}
		if p, err := u.productRepo.FindByID(ctx, it.ProductID); err == nil {
			r.Name = p.Name
			r.ImageURL = p.ImageURL
			r.Available = p.IsActive && p.Stock >= it.Quantity
		}
		respItems = append(respItems, r)
	}

	return CartResponse{Items: respItems, TotalItems: cart.TotalItems, TotalPrice: cart.TotalPrice}, nil
}

func (u *CartUsecase) internal(err error, op string) error {
	u.log.WithError(err).WithField("op", op).Error("cart usecase failed")
	return InternalError()
}
