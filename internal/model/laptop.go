package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Laptop is a recommendation record as served by the recommendation backend.
// It is immutable once decoded; the catalog keeps backend rank order.
type Laptop struct {
	ID        string   `json:"id"`
	Model     string   `json:"model"`
	CPU       string   `json:"cpu"`
	RAM       string   `json:"ram"`
	Storage   string   `json:"storage"`
	GPU       string   `json:"gpu"`
	Display   string   `json:"display"`
	Battery   string   `json:"battery"`
	PriceINR  string   `json:"price_inr"`
	Rationale string   `json:"why"`
	Images    []string `json:"images,omitempty"`
}

// UnmarshalJSON accepts the backend's document id under either "_id" or
// "id", and a price given as a string or a number.
func (l *Laptop) UnmarshalJSON(data []byte) error {
	type alias Laptop
	var raw struct {
		alias
		MongoID  string          `json:"_id"`
		PriceRaw json.RawMessage `json:"price_inr"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*l = Laptop(raw.alias)
	if l.ID == "" {
		l.ID = raw.MongoID
	}
	l.PriceINR = decodeLooseString(raw.PriceRaw)
	return nil
}

func decodeLooseString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strings.Trim(string(raw), `"`)
}

// CatalogItem is a laptop decorated with the wishlist membership flag.
type CatalogItem struct {
	Laptop
	Wishlisted bool `json:"wishlisted"`
}

// Recommendation is the response of the query endpoint.
type Recommendation struct {
	Label string   `json:"query"`
	Items []Laptop `json:"items"`
	// Error is set by the backend when it could not produce a result.
	Error string `json:"error,omitempty"`
}
