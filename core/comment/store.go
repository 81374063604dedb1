package comment

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/osanval/cafeto/database"
)

func Create(ctx context.Context, db sqlx.ExtContext, cmt Comment) error {
	const q = `
	INSERT INTO comments (comment_id, product_id, user_id, content, created_at)
	VALUES (:comment_id, :product_id, :user_id, :content, :created_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, cmt); err != nil {
		return database.WrapError(err)
	}

	return nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, commentID string) (Comment, error) {
	const q = `SELECT * FROM comments WHERE comment_id = $1`

	var cmt Comment
	if err := sqlx.GetContext(ctx, db, &cmt, q, commentID); err != nil {
		return Comment{}, database.WrapError(err)
	}

	return cmt, nil
}

func FetchByProduct(ctx context.Context, db sqlx.ExtContext, productID string) ([]View, error) {
	const q = `
	SELECT c.comment_id, c.product_id, c.user_id, c.content, c.created_at,
	       u.name AS author, u.email AS author_email
	FROM comments AS c
	JOIN users AS u ON u.user_id = c.user_id
	WHERE c.product_id = $1
	ORDER BY c.created_at DESC`

	cmts := []View{}
	if err := sqlx.SelectContext(ctx, db, &cmts, q, productID); err != nil {
		return nil, database.WrapError(err)
	}

	return cmts, nil
}

func Delete(ctx context.Context, db sqlx.ExtContext, commentID string) error {
	const q = `DELETE FROM comments WHERE comment_id = $1`

	res, err := db.ExecContext(ctx, q, commentID)
	if err != nil {
		return database.WrapError(err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &database.Error{Kind: database.KindNotFound, Message: "comment not found"}
	}

	return nil
}
