package model

// WishlistEntry is a saved laptop, keyed by Model (the backend's business key).
type WishlistEntry struct {
	LaptopID string `json:"laptop_id,omitempty"`
	Model    string `json:"model"`
}

// Action is a wishlist mutation.
type Action string

const (
	ActionAdd    Action = "add"
	ActionRemove Action = "remove"
)

func (a Action) Valid() bool {
	return a == ActionAdd || a == ActionRemove
}

// ToggleRequest describes one wishlist mutation.
type ToggleRequest struct {
	Model    string
	LaptopID string
	Action   Action
	// QueryStr is the query text the laptop was recommended for; the
	// backend requires it on add.
	QueryStr string
}
