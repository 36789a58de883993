package models

import (
	"time"

	"github.com/google/uuid"
)

type WishlistItem struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"-"`
	Product   Product   `json:"product"`
	CreatedAt time.Time `json:"created_at"`
}
