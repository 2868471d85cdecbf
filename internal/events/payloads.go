package events

import "github.com/smartselect/shortlist/internal/model"

type SessionChanged struct {
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"user_id,omitempty"`
	Username      string `json:"username,omitempty"`
}

type QueryTransition struct {
	From        model.Phase `json:"from"`
	To          model.Phase `json:"to"`
	ResultLabel string      `json:"result_label,omitempty"`
	Error       string      `json:"error,omitempty"`
}

type CatalogUpdated struct {
	Status     string `json:"status"`
	Count      int    `json:"count"`
	Generation uint64 `json:"generation"`
	Error      string `json:"error,omitempty"`
}

type WishlistChanged struct {
	Models []string `json:"models"`
}
