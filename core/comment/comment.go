package comment

import "time"

type Comment struct {
	ID        string    `json:"id" db:"comment_id"`
	ProductID string    `json:"productId" db:"product_id"`
	UserID    string    `json:"userId" db:"user_id"`
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// View is a comment joined with its author's display fields.
type View struct {
	Comment
	Author      string `json:"author" db:"author"`
	AuthorEmail string `json:"authorEmail" db:"author_email"`
}

type CommentNew struct {
	Content string `json:"content" validate:"required,max=2000"`
}
