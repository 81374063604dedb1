package cart

import (
	"time"
)

// Item is one product line in one user's cart. There is at most one row
// per (user, product); quantity is never persisted at zero or below.
type Item struct {
	ID        string    `json:"id" db:"cart_item_id"`
	UserID    string    `json:"-" db:"user_id"`
	ProductID string    `json:"productId" db:"product_id"`
	Quantity  int       `json:"quantity" db:"quantity"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// View is an Item joined with the live display fields of its product, so
// price changes show up in any unconfirmed cart.
type View struct {
	Item
	ProductName string `json:"productName" db:"name"`
	Description string `json:"productDescription" db:"description"`
	Price       int    `json:"price" db:"price"`
	ImageURL    string `json:"imageUrl" db:"image_url"`
}

type ItemNew struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"omitempty,gte=1"`
}

type QuantityUp struct {
	Quantity int `json:"quantity"`
}

type CountView struct {
	Count int `json:"count"`
}
