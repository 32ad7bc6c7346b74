package basket

import (
	"context"
	"database/sql"
	"sort"

	"github.com/safar/go-shop-backend/internal/models"
	"github.com/safar/go-shop-backend/internal/store"
)

// Line is one (product, quantity) pair in a basket, whichever shape
// the basket takes.
type Line struct {
	ProductID int64
	Quantity  int
}

// Source is the basket capability the checkout flow is polymorphic
// over. Both implementations enforce the same write-time rule: a line
// never exceeds the product's quantity on hand.
type Source interface {
	Lines(ctx context.Context) ([]Line, error)
	Add(ctx context.Context, productID int64, quantity int) error
	Remove(ctx context.Context, productID int64, amount int) error
	// Clamp applies the clamp-down policy to one line: remove it when
	// nothing is available, else cap it at the available quantity.
	Clamp(ctx context.Context, productID int64, available int) error
	Clear(ctx context.Context) error
}

// Registered is the durable basket of an authenticated shopper.
type Registered struct {
	DB     *sql.DB
	UserID int64
}

func NewRegistered(db *sql.DB, userID int64) *Registered {
	return &Registered{DB: db, UserID: userID}
}

func (r *Registered) Lines(ctx context.Context) ([]Line, error) {
	basket, err := store.GetOrCreateBasket(ctx, r.DB, r.UserID)
	if err != nil {
		return nil, err
	}

	stored, err := store.GetBasketLines(ctx, r.DB, basket.ID)
	if err != nil {
		return nil, err
	}

	lines := make([]Line, 0, len(stored))
	for _, line := range stored {
		lines = append(lines, Line{ProductID: line.ProductID, Quantity: line.Quantity})
	}
	return lines, nil
}

func (r *Registered) Add(ctx context.Context, productID int64, quantity int) error {
	return store.AddToBasket(ctx, r.DB, r.UserID, productID, quantity)
}

func (r *Registered) Remove(ctx context.Context, productID int64, amount int) error {
	return store.RemoveFromBasket(ctx, r.DB, r.UserID, productID, amount)
}

func (r *Registered) Clamp(ctx context.Context, productID int64, available int) error {
	basket, err := store.GetOrCreateBasket(ctx, r.DB, r.UserID)
	if err != nil {
		return err
	}
	return store.ClampBasketLine(ctx, r.DB, basket.ID, productID, available)
}

func (r *Registered) Clear(ctx context.Context) error {
	basket, err := store.GetOrCreateBasket(ctx, r.DB, r.UserID)
	if err != nil {
		return err
	}
	return store.ClearBasket(ctx, r.DB, basket.ID)
}

// AnonymousSource wraps a client-held basket value. Mutations change
// the value in place; the transport is responsible for sending the
// updated value back to the client.
type AnonymousSource struct {
	DB    *sql.DB
	State *Anonymous
}

func NewAnonymousSource(db *sql.DB, state *Anonymous) *AnonymousSource {
	return &AnonymousSource{DB: db, State: state}
}

func (a *AnonymousSource) Lines(ctx context.Context) ([]Line, error) {
	lines := make([]Line, 0, len(a.State.Items))
	for productID, quantity := range a.State.Items {
		lines = append(lines, Line{ProductID: productID, Quantity: quantity})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
	return lines, nil
}

func (a *AnonymousSource) Add(ctx context.Context, productID int64, quantity int) error {
	product, err := store.GetProduct(ctx, a.DB, productID)
	if err != nil {
		return err
	}
	a.State.AddClamped(productID, quantity, product.StockQuantity)
	return nil
}

func (a *AnonymousSource) Remove(ctx context.Context, productID int64, amount int) error {
	a.State.remove(productID, amount)
	return nil
}

func (a *AnonymousSource) Clamp(ctx context.Context, productID int64, available int) error {
	a.State.clamp(productID, available)
	return nil
}

func (a *AnonymousSource) Clear(ctx context.Context) error {
	a.State.Items = map[int64]int{}
	return nil
}

// MergeOnLogin folds an anonymous basket into the shopper's durable
// basket and clears the anonymous value. Quantities for products in
// both baskets are summed, clamped to stock.
func MergeOnLogin(ctx context.Context, db *sql.DB, userID int64, anon *Anonymous) error {
	if anon.Empty() {
		return nil
	}
	if err := store.MergeIntoBasket(ctx, db, userID, anon.Items); err != nil {
		return err
	}
	anon.Items = map[int64]int{}
	return nil
}

// ClampDown applies the single reconciliation rule to a basket after a
// failed basket-to-order transition: each short product is removed
// when out of stock, otherwise capped at what is on hand.
func ClampDown(ctx context.Context, src Source, short []*models.Product) error {
	for _, product := range short {
		if err := src.Clamp(ctx, product.ID, product.StockQuantity); err != nil {
			return err
		}
	}
	return nil
}
