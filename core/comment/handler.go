package comment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/osanval/cafeto/api/web"
	"github.com/osanval/cafeto/api/weberr"
	"github.com/osanval/cafeto/core/claims"
	"github.com/osanval/cafeto/database"
	"github.com/osanval/cafeto/validate"
)

func HandleListByProduct(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		productID := web.Param(r, "product_id")
		if err := validate.CheckID(productID); err != nil {
			return weberr.BadRequest(err)
		}

		cmts, err := FetchByProduct(ctx, db, productID)
		if err != nil {
			return fmt.Errorf("fetching comments of product[%s]: %w", productID, err)
		}

		return web.Respond(ctx, w, cmts, http.StatusOK)
	}
}

func HandleCreate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		productID := web.Param(r, "product_id")
		if err := validate.CheckID(productID); err != nil {
			return weberr.BadRequest(err)
		}

		var cn CommentNew
		if err := web.Decode(w, r, &cn); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding comment: %w", err))
		}

		cn.Content = strings.TrimSpace(cn.Content)
		if err := validate.Check(cn); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		cmt := Comment{
			ID:        validate.GenerateID(),
			ProductID: productID,
			UserID:    clm.UserID,
			Content:   cn.Content,
			CreatedAt: time.Now().UTC(),
		}

		if err := Create(ctx, db, cmt); err != nil {
			// A missing product surfaces as an FK violation.
			if database.IsKind(err, database.KindConflict) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("creating comment on product[%s]: %w", productID, err)
		}

		return web.Respond(ctx, w, cmt, http.StatusCreated)
	}
}

// HandleDelete lets a user remove their own comment; admins may remove
// anyone's.
func HandleDelete(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		commentID := web.Param(r, "id")
		if err := validate.CheckID(commentID); err != nil {
			return weberr.BadRequest(err)
		}

		cmt, err := Fetch(ctx, db, commentID)
		if err != nil {
			if database.IsKind(err, database.KindNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching comment[%s]: %w", commentID, err)
		}

		if cmt.UserID != clm.UserID && clm.Role != claims.RoleAdmin {
			return weberr.Forbidden(errors.New("cannot delete another user's comment"))
		}

		if err := Delete(ctx, db, commentID); err != nil {
			if database.IsKind(err, database.KindNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("deleting comment[%s]: %w", commentID, err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}
