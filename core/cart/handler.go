package cart

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/osanval/cafeto/api/web"
	"github.com/osanval/cafeto/api/weberr"
	"github.com/osanval/cafeto/core/claims"
	"github.com/osanval/cafeto/database"
	"github.com/osanval/cafeto/validate"
)

// HandleShow returns the caller's cart. Without a session the cart is
// simply empty, not an error, so the storefront can render pre-login.
func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return web.Respond(ctx, w, []View{}, http.StatusOK)
		}

		items, err := FetchItems(ctx, db, clm.UserID)
		if err != nil {
			return fmt.Errorf("fetching cart items: %w", err)
		}

		return web.Respond(ctx, w, items, http.StatusOK)
	}
}

// HandleCount returns the sum of quantities, zero when signed out.
func HandleCount(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return web.Respond(ctx, w, CountView{}, http.StatusOK)
		}

		count, err := Count(ctx, db, clm.UserID)
		if err != nil {
			return fmt.Errorf("counting cart items: %w", err)
		}

		return web.Respond(ctx, w, CountView{Count: count}, http.StatusOK)
	}
}

// HandleCreateItem adds a product to the caller's cart, merging into the
// existing line when the product is already there.
func HandleCreateItem(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var in ItemNew
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding cart item: %w", err))
		}

		if err := validate.Check(in); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}
		if err := validate.CheckID(in.ProductID); err != nil {
			return weberr.BadRequest(err)
		}

		if in.Quantity == 0 {
			in.Quantity = 1
		}

		now := time.Now().UTC()
		item := Item{
			ID:        validate.GenerateID(),
			UserID:    clm.UserID,
			ProductID: in.ProductID,
			Quantity:  in.Quantity,
			CreatedAt: now,
			UpdatedAt: now,
		}

		if err := Upsert(ctx, db, item); err != nil {
			// FK violation: the product does not exist.
			if database.IsKind(err, database.KindConflict) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("adding product[%s] to cart: %w", in.ProductID, err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

// HandleUpdateItem changes the quantity of one cart line; zero or less
// removes it.
func HandleUpdateItem(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		itemID := web.Param(r, "id")
		if err := validate.CheckID(itemID); err != nil {
			return weberr.BadRequest(err)
		}

		var up QuantityUp
		if err := web.Decode(w, r, &up); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding quantity update: %w", err))
		}

		if err := UpdateQuantity(ctx, db, clm.UserID, itemID, up.Quantity, time.Now().UTC()); err != nil {
			if database.IsKind(err, database.KindNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("updating cart item[%s]: %w", itemID, err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func HandleDeleteItem(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		itemID := web.Param(r, "id")
		if err := validate.CheckID(itemID); err != nil {
			return weberr.BadRequest(err)
		}

		if err := DeleteItem(ctx, db, clm.UserID, itemID); err != nil {
			if database.IsKind(err, database.KindNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("removing cart item[%s]: %w", itemID, err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func HandleDelete(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		if err := Delete(ctx, db, clm.UserID); err != nil {
			return fmt.Errorf("clearing cart: %w", err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}
