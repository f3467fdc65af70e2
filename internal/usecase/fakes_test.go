package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/mock"
)

// =====================
// in-memory store（TxReposとして振る舞う）
// =====================

// memStore はトランザクションごとに状態を丸ごと退避し、エラーなら巻き戻す
type memStore struct {
	mu sync.Mutex

	nextID      int64
	products    map[int64]model.Product
	carts       map[int64]model.Cart
	cartItems   map[int64]model.CartItem
	orders      map[int64]model.Order
	addresses   map[int64]model.Address
	audits      []model.AuditLog
	adjustments []model.InventoryAdjustment
}

func newMemStore() *memStore {
	return &memStore{
		nextID:    100,
		products:  map[int64]model.Product{},
		carts:     map[int64]model.Cart{},
		cartItems: map[int64]model.CartItem{},
		orders:    map[int64]model.Order{},
		addresses: map[int64]model.Address{},
	}
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *memStore) addProduct(p model.Product) model.Product {
	if p.ID == 0 {
		p.ID = s.id()
	}
	s.products[p.ID] = p
	return p
}

// カートに明細を入れる（価格は商品の現在値）
func (s *memStore) addToCart(userID int64, productID int64, qty int64) {
	var cart model.Cart
	for _, c := range s.carts {
		if c.UserID == userID {
			cart = c
		}
	}
	if cart.ID == 0 {
		cart = model.Cart{ID: s.id(), UserID: userID}
	}
	id := s.id()
	s.cartItems[id] = model.CartItem{
		ID:                id,
		CartID:            cart.ID,
		ProductID:         productID,
		Quantity:          qty,
		UnitPriceSnapshot: s.products[productID].Price,
	}
	s.carts[cart.ID] = cart
}

func (s *memStore) itemsOf(cartID int64) []model.CartItem {
	var out []model.CartItem
	for _, it := range s.cartItems {
		if it.CartID == cartID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func cloneOrder(o model.Order) model.Order {
	o.Items = append([]model.OrderItem(nil), o.Items...)
	o.StatusHistory = append([]model.OrderStatusHistory(nil), o.StatusHistory...)
	if o.PaymentDetails.TxnRef != nil {
		ref := *o.PaymentDetails.TxnRef
		o.PaymentDetails.TxnRef = &ref
	}
	return o
}

type memSnapshot struct {
	nextID      int64
	products    map[int64]model.Product
	carts       map[int64]model.Cart
	cartItems   map[int64]model.CartItem
	orders      map[int64]model.Order
	addresses   map[int64]model.Address
	audits      []model.AuditLog
	adjustments []model.InventoryAdjustment
}

func copyMap[K comparable, V any](m map[K]V, f func(V) V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		if f != nil {
			v = f(v)
		}
		out[k] = v
	}
	return out
}

func (s *memStore) snapshot() memSnapshot {
	return memSnapshot{
		nextID:      s.nextID,
		products:    copyMap(s.products, nil),
		carts:       copyMap(s.carts, nil),
		cartItems:   copyMap(s.cartItems, nil),
		orders:      copyMap(s.orders, cloneOrder),
		addresses:   copyMap(s.addresses, nil),
		audits:      append([]model.AuditLog(nil), s.audits...),
		adjustments: append([]model.InventoryAdjustment(nil), s.adjustments...),
	}
}

func (s *memStore) restore(snap memSnapshot) {
	s.nextID = snap.nextID
	s.products = snap.products
	s.carts = snap.carts
	s.cartItems = snap.cartItems
	s.orders = snap.orders
	s.addresses = snap.addresses
	s.audits = snap.audits
	s.adjustments = snap.adjustments
}

// TransactionManager
func (s *memStore) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snapshot()
	if err := fn(s); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *memStore) Orders() repo.OrderRepository         { return (*memOrders)(s) }
func (s *memStore) Carts() repo.CartRepository           { return (*memCarts)(s) }
func (s *memStore) CartItems() repo.CartItemRepository   { return (*memCarts)(s) }
func (s *memStore) Inventory() repo.InventoryRepository  { return (*memInventory)(s) }
func (s *memStore) Products() repo.ProductRepository     { return (*memProducts)(s) }
func (s *memStore) AuditLogs() repo.AuditLogRepository   { return (*memAudits)(s) }
func (s *memStore) Addresses() repo.AddressRepository    { return (*memAddresses)(s) }
func (s *memStore) product(id int64) model.Product       { return s.products[id] }
func (s *memStore) order(id int64) model.Order           { return cloneOrder(s.orders[id]) }
func (s *memStore) cartOf(userID int64) []model.CartItem { return s.itemsOf(s.cartID(userID)) }

func (s *memStore) cartID(userID int64) int64 {
	for _, c := range s.carts {
		if c.UserID == userID {
			return c.ID
		}
	}
	return 0
}

// ---- products ----

type memProducts memStore

func (p *memProducts) ListPublic(ctx context.Context, q repo.ProductListQuery) ([]model.Product, int64, error) {
	var out []model.Product
	for _, pr := range p.products {
		if pr.IsActive {
			out = append(out, pr)
		}
	}
	return out, int64(len(out)), nil
}

func (p *memProducts) FindByID(ctx context.Context, id int64) (model.Product, error) {
	pr, ok := p.products[id]
	if !ok {
		return model.Product{}, repo.ErrNotFound
	}
	return pr, nil
}

func (p *memProducts) Create(ctx context.Context, pr model.Product) (model.Product, error) {
	return (*memStore)(p).addProduct(pr), nil
}

func (p *memProducts) Update(ctx context.Context, pr model.Product) error {
	cur, ok := p.products[pr.ID]
	if !ok {
		return repo.ErrNotFound
	}
	cur.Name, cur.Description, cur.Price, cur.ImageURL, cur.IsActive = pr.Name, pr.Description, pr.Price, pr.ImageURL, pr.IsActive
	p.products[pr.ID] = cur
	return nil
}

func (p *memProducts) SoftDelete(ctx context.Context, id int64) error {
	if _, ok := p.products[id]; !ok {
		return repo.ErrNotFound
	}
	delete(p.products, id)
	return nil
}

// ---- inventory ----

type memInventory memStore

func (m *memInventory) Reserve(ctx context.Context, id int64, qty int64) (bool, error) {
	pr, ok := m.products[id]
	if !ok || pr.Stock < qty {
		return false, nil
	}
	pr.Stock -= qty
	pr.Sold += qty
	m.products[id] = pr
	return true, nil
}

func (m *memInventory) Release(ctx context.Context, id int64, qty int64) error {
	pr, ok := m.products[id]
	if !ok {
		return repo.ErrNotFound
	}
	pr.Stock += qty
	pr.Sold = max(pr.Sold-qty, 0)
	m.products[id] = pr
	return nil
}

func (m *memInventory) SetStock(ctx context.Context, id int64, stock int64) error {
	pr, ok := m.products[id]
	if !ok {
		return repo.ErrNotFound
	}
	pr.Stock = stock
	m.products[id] = pr
	return nil
}

func (m *memInventory) CreateAdjustment(ctx context.Context, a model.InventoryAdjustment) error {
	m.adjustments = append(m.adjustments, a)
	return nil
}

// ---- carts ----

type memCarts memStore

func (c *memCarts) GetOrCreateByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	s := (*memStore)(c)
	if id := s.cartID(userID); id != 0 {
		return s.carts[id], nil
	}
	cart := model.Cart{ID: s.id(), UserID: userID}
	s.carts[cart.ID] = cart
	return cart, nil
}

func (c *memCarts) FindByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	s := (*memStore)(c)
	if id := s.cartID(userID); id != 0 {
		return s.carts[id], nil
	}
	return model.Cart{}, repo.ErrNotFound
}

func (c *memCarts) Clear(ctx context.Context, cartID int64) error {
	for id, it := range c.cartItems {
		if it.CartID == cartID {
			delete(c.cartItems, id)
		}
	}
	cart := c.carts[cartID]
	cart.TotalItems, cart.TotalPrice = 0, 0
	c.carts[cartID] = cart
	return nil
}

func (c *memCarts) RecalculateTotals(ctx context.Context, cartID int64) (model.Cart, error) {
	cart := c.carts[cartID]
	cart.TotalItems, cart.TotalPrice = model.CartTotals((*memStore)(c).itemsOf(cartID))
	c.carts[cartID] = cart
	return cart, nil
}

func (c *memCarts) ListByCartID(ctx context.Context, cartID int64) ([]model.CartItem, error) {
	return (*memStore)(c).itemsOf(cartID), nil
}

func (c *memCarts) UpsertByCartAndProduct(ctx context.Context, cartID, productID, addQty, price int64) error {
	for id, it := range c.cartItems {
		if it.CartID == cartID && it.ProductID == productID {
			it.Quantity += addQty
			it.UnitPriceSnapshot = price
			c.cartItems[id] = it
			return nil
		}
	}
	id := (*memStore)(c).id()
	c.cartItems[id] = model.CartItem{ID: id, CartID: cartID, ProductID: productID, Quantity: addQty, UnitPriceSnapshot: price}
	return nil
}

func (c *memCarts) UpdateQuantity(ctx context.Context, id int64, qty int64) error {
	it, ok := c.cartItems[id]
	if !ok {
		return repo.ErrNotFound
	}
	it.Quantity = qty
	c.cartItems[id] = it
	return nil
}

func (c *memCarts) DeleteByID(ctx context.Context, id int64) error {
	if _, ok := c.cartItems[id]; !ok {
		return repo.ErrNotFound
	}
	delete(c.cartItems, id)
	return nil
}

func (c *memCarts) FindByID(ctx context.Context, id int64) (model.CartItem, error) {
	it, ok := c.cartItems[id]
	if !ok {
		return model.CartItem{}, repo.ErrNotFound
	}
	return it, nil
}

// ---- orders ----

type memOrders memStore

func (m *memOrders) Create(ctx context.Context, o *model.Order) error {
	for _, cur := range m.orders {
		if cur.OrderNumber == o.OrderNumber {
			return repo.ErrDuplicateOrderNumber
		}
	}
	s := (*memStore)(m)
	o.ID = s.id()
	for i := range o.Items {
		o.Items[i].ID = s.id()
		o.Items[i].OrderID = o.ID
	}
	for i := range o.StatusHistory {
		o.StatusHistory[i].ID = s.id()
		o.StatusHistory[i].OrderID = o.ID
	}
	m.orders[o.ID] = cloneOrder(*o)
	return nil
}

func (m *memOrders) FindByID(ctx context.Context, id int64) (model.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return model.Order{}, repo.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (m *memOrders) FindByTxnRef(ctx context.Context, ref string) (model.Order, error) {
	for _, o := range m.orders {
		if o.PaymentDetails.TxnRef != nil && *o.PaymentDetails.TxnRef == ref {
			return cloneOrder(o), nil
		}
	}
	return model.Order{}, repo.ErrNotFound
}

func (m *memOrders) ListByUserID(ctx context.Context, userID int64, q repo.OrderListQuery) ([]model.Order, int64, error) {
	var out []model.Order
	for _, o := range m.orders {
		if o.UserID == userID && (q.Status == "" || o.Status == q.Status) {
			out = append(out, cloneOrder(o))
		}
	}
	return out, int64(len(out)), nil
}

func (m *memOrders) ListAdmin(ctx context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	var out []model.Order
	for _, o := range m.orders {
		out = append(out, cloneOrder(o))
	}
	return out, int64(len(out)), nil
}

func (m *memOrders) UpdateStatusIfCurrent(ctx context.Context, o *model.Order, from model.OrderStatus, entry model.OrderStatusHistory) error {
	cur, ok := m.orders[o.ID]
	if !ok {
		return repo.ErrNotFound
	}
	if cur.Status != from {
		return repo.ErrConflict
	}
	entry.ID = (*memStore)(m).id()
	entry.OrderID = o.ID
	cur.Status = o.Status
	cur.CancelReason = o.CancelReason
	cur.CancelledAt = o.CancelledAt
	cur.DeliveredAt = o.DeliveredAt
	cur.PaymentStatus = o.PaymentStatus
	cur.PaymentDetails.PaidAt = o.PaymentDetails.PaidAt
	cur.UpdatedAt = o.UpdatedAt
	cur.StatusHistory = append(cur.StatusHistory, entry)
	m.orders[o.ID] = cur
	return nil
}

func (m *memOrders) AssignTxnRefIfEmpty(ctx context.Context, id int64, ref string) (bool, error) {
	o, ok := m.orders[id]
	if !ok {
		return false, repo.ErrNotFound
	}
	if o.HasTxnRef() {
		return false, nil
	}
	o.PaymentDetails.TxnRef = &ref
	m.orders[id] = o
	return true, nil
}

func (m *memOrders) MarkPaidIfPending(ctx context.Context, id int64, res repo.PaymentResult) (bool, error) {
	o, ok := m.orders[id]
	if !ok || o.PaymentStatus != model.PaymentStatusPending {
		return false, nil
	}
	paidAt := res.PaidAt
	o.PaymentStatus = model.PaymentStatusPaid
	o.PaymentDetails.TransactionID = res.TransactionID
	o.PaymentDetails.BankCode = res.BankCode
	o.PaymentDetails.PayDate = res.PayDate
	o.PaymentDetails.PaidAt = &paidAt
	m.orders[id] = o
	return true, nil
}

func (m *memOrders) UpdatePayment(ctx context.Context, id int64, status model.PaymentStatus, d model.PaymentDetails) error {
	o, ok := m.orders[id]
	if !ok {
		return repo.ErrNotFound
	}
	o.PaymentStatus = status
	o.PaymentDetails = d
	m.orders[id] = o
	return nil
}

// ---- audit logs ----

type memAudits memStore

func (a *memAudits) Create(ctx context.Context, l model.AuditLog) error {
	l.ID = (*memStore)(a).id()
	a.audits = append(a.audits, l)
	return nil
}

func (a *memAudits) List(ctx context.Context, f repo.AuditLogFilter) ([]model.AuditLog, error) {
	var out []model.AuditLog
	for _, l := range a.audits {
		if f.Action != nil && l.Action != *f.Action {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

// ---- addresses ----

type memAddresses memStore

func (a *memAddresses) Create(ctx context.Context, ad model.Address) (model.Address, error) {
	ad.ID = (*memStore)(a).id()
	a.addresses[ad.ID] = ad
	return ad, nil
}

func (a *memAddresses) ListByUserID(ctx context.Context, userID int64) ([]model.Address, error) {
	var out []model.Address
	for _, ad := range a.addresses {
		if ad.UserID == userID {
			out = append(out, ad)
		}
	}
	return out, nil
}

func (a *memAddresses) FindByID(ctx context.Context, id int64) (model.Address, error) {
	ad, ok := a.addresses[id]
	if !ok {
		return model.Address{}, repo.ErrNotFound
	}
	return ad, nil
}

func (a *memAddresses) FindDefault(ctx context.Context, userID int64) (model.Address, error) {
	for _, ad := range a.addresses {
		if ad.UserID == userID && ad.IsDefault {
			return ad, nil
		}
	}
	return model.Address{}, repo.ErrNotFound
}

func (a *memAddresses) Update(ctx context.Context, ad model.Address) error {
	cur, ok := a.addresses[ad.ID]
	if !ok {
		return repo.ErrNotFound
	}
	ad.IsDefault = cur.IsDefault
	a.addresses[ad.ID] = ad
	return nil
}

func (a *memAddresses) Delete(ctx context.Context, id int64) error {
	if _, ok := a.addresses[id]; !ok {
		return repo.ErrNotFound
	}
	delete(a.addresses, id)
	return nil
}

func (a *memAddresses) SetDefault(ctx context.Context, userID, id int64) error {
	for k, ad := range a.addresses {
		if ad.UserID == userID {
			ad.IsDefault = k == id
			a.addresses[k] = ad
		}
	}
	return nil
}

// =====================
// 一部だけ差し替えるOrderRepository
// =====================

type hookedOrders struct {
	repo.OrderRepository
	findByID func(ctx context.Context, id int64) (model.Order, error)
	markPaid func(ctx context.Context, id int64, res repo.PaymentResult) (bool, error)
}

func (h *hookedOrders) FindByID(ctx context.Context, id int64) (model.Order, error) {
	if h.findByID != nil {
		return h.findByID(ctx, id)
	}
	return h.OrderRepository.FindByID(ctx, id)
}

func (h *hookedOrders) MarkPaidIfPending(ctx context.Context, id int64, res repo.PaymentResult) (bool, error) {
	if h.markPaid != nil {
		return h.markPaid(ctx, id, res)
	}
	return h.OrderRepository.MarkPaidIfPending(ctx, id, res)
}

// Tx内でもhookedOrdersを返す
type hookedStore struct {
	*memStore
	orders *hookedOrders
}

func newHookedStore(s *memStore) *hookedStore {
	return &hookedStore{memStore: s, orders: &hookedOrders{OrderRepository: s.Orders()}}
}

func (h *hookedStore) Orders() repo.OrderRepository { return h.orders }

func (h *hookedStore) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	return h.memStore.WithinTx(ctx, func(repo.TxRepos) error { return fn(h) })
}

// 読み取り後に別リクエストが状態を進めた注文。FindByIDは古い内容を返す
func staleOrderStore(s *memStore, orderID int64, actual model.OrderStatus) *hookedStore {
	stale := s.order(orderID)
	cur := s.orders[orderID]
	cur.Status = actual
	s.orders[orderID] = cur

	h := newHookedStore(s)
	h.orders.findByID = func(context.Context, int64) (model.Order, error) {
		return cloneOrder(stale), nil
	}
	return h
}

// =====================
// mocks
// =====================

type PublisherMock struct{ mock.Mock }

func (m *PublisherMock) Publish(ctx context.Context, topic string, orderID int64, payload any) error {
	args := m.Called(ctx, topic, orderID, payload)
	return args.Error(0)
}

// =====================
// helpers
// =====================

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// 順番に返す。使い切ったら最後の値
type seqNumbers struct {
	vals []string
	i    int
}

func (s *seqNumbers) Next(time.Time) string {
	v := s.vals[min(s.i, len(s.vals)-1)]
	s.i++
	return v
}

func nullLogger() *logrus.Logger {
	l, _ := test.NewNullLogger()
	return l
}

var testNow = time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)

func testShipping() model.ShippingAddress {
	return model.ShippingAddress{
		FullName: "Nguyen Van A",
		Phone:    "0901234567",
		Street:   "1 Le Loi",
		City:     "Ho Chi Minh",
	}
}
