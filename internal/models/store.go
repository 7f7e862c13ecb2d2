package models

import "time"

// Store is a partner store's branding and contact configuration.
type Store struct {
	ID             string    `json:"id"`
	StoreID        string    `json:"storeId"`
	Name           string    `json:"name"`
	PrimaryColor   string    `json:"primaryColor"`
	SecondaryColor string    `json:"secondaryColor,omitempty"`
	Email          string    `json:"email"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// StorePage is the full store listing.
type StorePage struct {
	Items []Store `json:"items"`
	Total int64   `json:"total"`
}
