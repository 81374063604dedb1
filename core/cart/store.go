package cart

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/osanval/cafeto/database"
)

// Every mutation here filters on user_id as well as the row key. Row
// identifiers travel through URLs and forms, so they are not secrets;
// the double predicate keeps a stolen identifier useless.

// Upsert adds quantity to the user's line for a product, creating the
// line if absent. A single conditional write, so two concurrent adds
// cannot lose an update or produce duplicate rows.
func Upsert(ctx context.Context, db sqlx.ExtContext, item Item) error {
	const q = `
	INSERT INTO cart_items (cart_item_id, user_id, product_id, quantity, created_at, updated_at)
	VALUES (:cart_item_id, :user_id, :product_id, :quantity, :created_at, :updated_at)
	ON CONFLICT (user_id, product_id) DO UPDATE
	SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = EXCLUDED.updated_at`

	if _, err := sqlx.NamedExecContext(ctx, db, q, item); err != nil {
		return database.WrapError(err)
	}

	return nil
}

// FetchItems returns a snapshot of the user's cart joined with product
// display fields.
func FetchItems(ctx context.Context, db sqlx.ExtContext, userID string) ([]View, error) {
	const q = `
	SELECT ci.cart_item_id, ci.user_id, ci.product_id, ci.quantity, ci.created_at, ci.updated_at,
	       p.name, p.description, p.price, p.image_url
	FROM cart_items AS ci
	JOIN products AS p ON p.product_id = ci.product_id
	WHERE ci.user_id = $1
	ORDER BY ci.created_at`

	items := []View{}
	if err := sqlx.SelectContext(ctx, db, &items, q, userID); err != nil {
		return nil, database.WrapError(err)
	}

	return items, nil
}

// UpdateQuantity sets the quantity of one of the user's cart lines. A
// quantity at or below zero removes the line instead. A row owned by a
// different user matches nothing and reports not found.
func UpdateQuantity(ctx context.Context, db sqlx.ExtContext, userID string, itemID string, quantity int, now time.Time) error {
	if quantity <= 0 {
		return DeleteItem(ctx, db, userID, itemID)
	}

	const q = `UPDATE cart_items SET quantity = $3, updated_at = $4 WHERE cart_item_id = $1 AND user_id = $2`

	res, err := db.ExecContext(ctx, q, itemID, userID, quantity, now)
	if err != nil {
		return database.WrapError(err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &database.Error{Kind: database.KindNotFound, Message: "cart item not found"}
	}

	return nil
}

// DeleteItem removes one of the user's cart lines.
func DeleteItem(ctx context.Context, db sqlx.ExtContext, userID string, itemID string) error {
	const q = `DELETE FROM cart_items WHERE cart_item_id = $1 AND user_id = $2`

	res, err := db.ExecContext(ctx, q, itemID, userID)
	if err != nil {
		return database.WrapError(err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &database.Error{Kind: database.KindNotFound, Message: "cart item not found"}
	}

	return nil
}

// Delete empties the user's cart. Emptying an empty cart is fine.
func Delete(ctx context.Context, db sqlx.ExtContext, userID string) error {
	const q = `DELETE FROM cart_items WHERE user_id = $1`

	if _, err := db.ExecContext(ctx, q, userID); err != nil {
		return database.WrapError(err)
	}

	return nil
}

// Count returns the sum of quantities across the user's cart lines.
func Count(ctx context.Context, db sqlx.ExtContext, userID string) (int, error) {
	const q = `SELECT COALESCE(SUM(quantity), 0) FROM cart_items WHERE user_id = $1`

	var count int
	if err := sqlx.GetContext(ctx, db, &count, q, userID); err != nil {
		return 0, database.WrapError(err)
	}

	return count, nil
}
