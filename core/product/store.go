package product

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/osanval/cafeto/database"
)

func Create(ctx context.Context, db sqlx.ExtContext, prod Product) error {
	const q = `
	INSERT INTO products (product_id, name, description, price, image_url, created_at, updated_at, version)
	VALUES (:product_id, :name, :description, :price, :image_url, :created_at, :updated_at, :version)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, prod); err != nil {
		return database.WrapError(err)
	}

	return nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, productID string) (Product, error) {
	const q = `SELECT * FROM products WHERE product_id = $1`

	var prod Product
	if err := sqlx.GetContext(ctx, db, &prod, q, productID); err != nil {
		return Product{}, database.WrapError(err)
	}

	return prod, nil
}

func FetchAll(ctx context.Context, db sqlx.ExtContext) ([]Product, error) {
	const q = `SELECT * FROM products ORDER BY created_at DESC`

	prods := []Product{}
	if err := sqlx.SelectContext(ctx, db, &prods, q); err != nil {
		return nil, database.WrapError(err)
	}

	return prods, nil
}

func Update(ctx context.Context, db sqlx.ExtContext, prod Product) error {
	const q = `
	UPDATE products SET
		name        = :name,
		description = :description,
		price       = :price,
		image_url   = :image_url,
		updated_at  = :updated_at,
		version     = version + 1
	WHERE product_id = :product_id AND version = :version`

	res, err := sqlx.NamedExecContext(ctx, db, q, prod)
	if err != nil {
		return database.WrapError(err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &database.Error{Kind: database.KindNotFound, Message: "product not found"}
	}

	return nil
}

func UpdateImage(ctx context.Context, db sqlx.ExtContext, productID string, imageURL string, now time.Time) error {
	const q = `UPDATE products SET image_url = $2, updated_at = $3, version = version + 1 WHERE product_id = $1`

	res, err := db.ExecContext(ctx, q, productID, imageURL, now)
	if err != nil {
		return database.WrapError(err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &database.Error{Kind: database.KindNotFound, Message: "product not found"}
	}

	return nil
}

func Delete(ctx context.Context, db sqlx.ExtContext, productID string) error {
	const q = `DELETE FROM products WHERE product_id = $1`

	res, err := db.ExecContext(ctx, q, productID)
	if err != nil {
		return database.WrapError(err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &database.Error{Kind: database.KindNotFound, Message: "product not found"}
	}

	return nil
}
