package models

import "time"

// OrphanEvent reports assets that reached the object store but are referenced by no product.
type OrphanEvent struct {
	Operation  string    `json:"operation"`
	ProductID  string    `json:"product_id,omitempty"`
	Assets     []Asset   `json:"assets"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}
