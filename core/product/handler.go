package product

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/osanval/cafeto/api/background"
	"github.com/osanval/cafeto/api/web"
	"github.com/osanval/cafeto/api/weberr"
	"github.com/osanval/cafeto/database"
	"github.com/osanval/cafeto/storage"
	"github.com/osanval/cafeto/validate"
)

// uploads are bounded well below this; multipart parsing just needs a cap.
const maxUploadBytes = 8 << 20

func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		prods, err := FetchAll(ctx, db)
		if err != nil {
			return fmt.Errorf("fetching products: %w", err)
		}

		return web.Respond(ctx, w, prods, http.StatusOK)
	}
}

func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		productID := web.Param(r, "id")
		if err := validate.CheckID(productID); err != nil {
			return weberr.BadRequest(err)
		}

		prod, err := Fetch(ctx, db, productID)
		if err != nil {
			if database.IsKind(err, database.KindNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching product[%s]: %w", productID, err)
		}

		return web.Respond(ctx, w, prod, http.StatusOK)
	}
}

func HandleCreate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var pn ProductNew
		if err := web.Decode(w, r, &pn); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding product: %w", err))
		}

		if err := validate.Check(pn); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		now := time.Now().UTC()
		prod := Product{
			ID:          validate.GenerateID(),
			Name:        pn.Name,
			Description: pn.Description,
			Price:       pn.Price,
			ImageURL:    pn.ImageURL,
			CreatedAt:   now,
			UpdatedAt:   now,
			Version:     1,
		}

		if err := Create(ctx, db, prod); err != nil {
			return fmt.Errorf("creating product: %w", err)
		}

		return web.Respond(ctx, w, prod, http.StatusCreated)
	}
}

func HandleUpdate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		productID := web.Param(r, "id")
		if err := validate.CheckID(productID); err != nil {
			return weberr.BadRequest(err)
		}

		var up ProductUp
		if err := web.Decode(w, r, &up); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding product update: %w", err))
		}

		if err := validate.Check(up); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		// Read-modify-write under one transaction, so two concurrent
		// partial updates cannot interleave.
		var prod Product
		txFn := func(tx sqlx.ExtContext) error {
			var err error
			prod, err = Fetch(ctx, tx, productID)
			if err != nil {
				return err
			}

			if up.Name != nil {
				prod.Name = *up.Name
			}
			if up.Description != nil {
				prod.Description = *up.Description
			}
			if up.Price != nil {
				prod.Price = *up.Price
			}
			if up.ImageURL != nil {
				prod.ImageURL = *up.ImageURL
			}
			prod.UpdatedAt = time.Now().UTC()

			if err := Update(ctx, tx, prod); err != nil {
				return err
			}
			prod.Version++
			return nil
		}

		if err := database.Transaction(db, txFn); err != nil {
			if database.IsKind(err, database.KindNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("updating product[%s]: %w", productID, err)
		}

		return web.Respond(ctx, w, prod, http.StatusOK)
	}
}

func HandleDelete(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		productID := web.Param(r, "id")
		if err := validate.CheckID(productID); err != nil {
			return weberr.BadRequest(err)
		}

		if err := Delete(ctx, db, productID); err != nil {
			if database.IsKind(err, database.KindNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("deleting product[%s]: %w", productID, err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

// HandleUploadImage stores a product picture and points the product at
// its public URL. The thumbnail renders off the request path.
func HandleUploadImage(db *sqlx.DB, store *storage.Store, bg *background.Background) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		productID := web.Param(r, "id")
		if err := validate.CheckID(productID); err != nil {
			return weberr.BadRequest(err)
		}

		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return weberr.BadRequest(fmt.Errorf("parsing multipart form: %w", err))
		}

		file, hdr, err := r.FormFile("image")
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("reading image field: %w", err))
		}
		defer file.Close()

		name, url, err := store.SaveImage(file, filepath.Ext(hdr.Filename))
		if err != nil {
			return weberr.NewError(err, "unsupported image file", http.StatusUnprocessableEntity)
		}

		if err := UpdateImage(ctx, db, productID, url, time.Now().UTC()); err != nil {
			if database.IsKind(err, database.KindNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("updating image of product[%s]: %w", productID, err)
		}

		bg.Run("thumbnail", func() error {
			return store.Thumbnail(name)
		})

		resp := struct {
			ImageURL string `json:"imageUrl"`
		}{url}
		return web.Respond(ctx, w, resp, http.StatusOK)
	}
}
