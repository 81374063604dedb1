package user

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/osanval/cafeto/database"
)

func Create(ctx context.Context, db sqlx.ExtContext, usr User) error {
	const q = `
	INSERT INTO users (user_id, email, name, role, password_hash, created_at, updated_at)
	VALUES (:user_id, :email, :name, :role, :password_hash, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, usr); err != nil {
		return database.WrapError(err)
	}

	return nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, userID string) (User, error) {
	const q = `SELECT * FROM users WHERE user_id = $1`

	var usr User
	if err := sqlx.GetContext(ctx, db, &usr, q, userID); err != nil {
		return User{}, database.WrapError(err)
	}

	return usr, nil
}

func FetchByEmail(ctx context.Context, db sqlx.ExtContext, email string) (User, error) {
	const q = `SELECT * FROM users WHERE email = $1`

	var usr User
	if err := sqlx.GetContext(ctx, db, &usr, q, email); err != nil {
		return User{}, database.WrapError(err)
	}

	return usr, nil
}

func FetchAll(ctx context.Context, db sqlx.ExtContext) ([]User, error) {
	const q = `SELECT * FROM users ORDER BY created_at DESC`

	users := []User{}
	if err := sqlx.SelectContext(ctx, db, &users, q); err != nil {
		return nil, database.WrapError(err)
	}

	return users, nil
}

func UpdateRole(ctx context.Context, db sqlx.ExtContext, userID string, role string, now time.Time) error {
	const q = `UPDATE users SET role = $2, updated_at = $3 WHERE user_id = $1`

	res, err := db.ExecContext(ctx, q, userID, role, now)
	if err != nil {
		return database.WrapError(err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &database.Error{Kind: database.KindNotFound, Message: "user not found"}
	}

	return nil
}

// Delete removes the user; cart items and comments go with it via
// ON DELETE CASCADE.
func Delete(ctx context.Context, db sqlx.ExtContext, userID string) error {
	const q = `DELETE FROM users WHERE user_id = $1`

	res, err := db.ExecContext(ctx, q, userID)
	if err != nil {
		return database.WrapError(err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &database.Error{Kind: database.KindNotFound, Message: "user not found"}
	}

	return nil
}
