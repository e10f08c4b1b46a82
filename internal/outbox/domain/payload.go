package domain

import (
	"encoding/json"

	validation "github.com/jellydator/validation"
)

// Typed payloads decoded from an entry's opaque payload map. Address
// format rules are family-specific and enforced at the provider
// boundary; here only presence is validated.

// MintPayload requests minting an asset to a recipient.
type MintPayload struct {
	Network   string         `json:"network,omitempty"`
	Recipient string         `json:"recipient"`
	AssetID   string         `json:"asset_id"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Validate checks required mint payload fields.
func (p MintPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Recipient, validation.Required),
		validation.Field(&p.AssetID, validation.Required),
	)
}

// TransferPayload requests moving an asset between two addresses.
type TransferPayload struct {
	Network string `json:"network,omitempty"`
	From    string `json:"from"`
	To      string `json:"to"`
	AssetID string `json:"asset_id"`
}

// Validate checks required transfer payload fields.
func (p TransferPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.From, validation.Required),
		validation.Field(&p.To, validation.Required),
		validation.Field(&p.AssetID, validation.Required),
	)
}

// ListPayload requests holding an asset in escrow for a marketplace listing.
type ListPayload struct {
	Network string `json:"network,omitempty"`
	Owner   string `json:"owner"`
	AssetID string `json:"asset_id"`
	Price   string `json:"price,omitempty"`
}

// Validate checks required list payload fields.
func (p ListPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Owner, validation.Required),
		validation.Field(&p.AssetID, validation.Required),
	)
}

// PurchasePayload requests releasing a listed asset to its buyer.
type PurchasePayload struct {
	Network string `json:"network,omitempty"`
	Seller  string `json:"seller"`
	Buyer   string `json:"buyer"`
	AssetID string `json:"asset_id"`
}

// Validate checks required purchase payload fields.
func (p PurchasePayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Seller, validation.Required),
		validation.Field(&p.Buyer, validation.Required),
		validation.Field(&p.AssetID, validation.Required),
	)
}

// RewardPayload requests minting a reward asset to a player.
type RewardPayload struct {
	Network   string         `json:"network,omitempty"`
	Recipient string         `json:"recipient"`
	AssetID   string         `json:"asset_id"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Validate checks required reward payload fields.
func (p RewardPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Recipient, validation.Required),
		validation.Field(&p.AssetID, validation.Required),
	)
}

// DecodePayload converts an entry's opaque payload map into a typed
// payload struct via JSON round-trip.
func DecodePayload(payload map[string]any, target any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, target)
}
