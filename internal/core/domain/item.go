package domain

import "github.com/shopspring/decimal"

// Item is a catalog entry. Only the catalog service mutates it.
type Item struct {
	ID             string          `json:"id"`
	UPC            string          `json:"upc"`
	Name           string          `json:"name"`
	UnitPrice      decimal.Decimal `json:"unitPrice"`
	AvailableUnits int             `json:"availableUnits"`
}

// ItemQuantity is one entry of a create or replace-items request.
type ItemQuantity struct {
	UPC      string `json:"upc"`
	Quantity int    `json:"quantity"`
}

// ValidateItemQuantities rejects an empty list and any entry without a UPC
// or with a non-positive quantity.
func ValidateItemQuantities(items []ItemQuantity) error {
	if len(items) == 0 {
		return NewValidationFailure("order must have at least one item")
	}
	for _, it := range items {
		if it.UPC == "" {
			return NewValidationFailure("item upc is required")
		}
		if it.Quantity <= 0 {
			return NewValidationFailure("quantity for " + it.UPC + " must be greater than 0")
		}
	}
	return nil
}
