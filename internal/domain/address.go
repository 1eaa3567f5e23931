package domain

import "context"

// Address-related domain errors.
var (
	ErrAddressNotFound = &Error{Code: ENOTFOUND, Message: "Address not found"}
)

// AddressService stores and recovers encrypted billing addresses.
type AddressService interface {
	// CreateAddress encrypts every PII field and persists the address,
	// returning the stored row's id for use in checkout.
	CreateAddress(ctx context.Context, input AddressInput) (*Address, error)

	// GetAddress loads and decrypts an address. Fields that fail to
	// decrypt come back empty.
	GetAddress(ctx context.Context, addressID string) (*Address, error)
}

// AddressInput is a billing address as submitted at checkout, in the clear.
// The repository stores it encrypted; this type never touches disk.
type AddressInput struct {
	Name       string
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
	Email      string
}

// Address is a billing address after decryption. Fields that failed to
// decrypt are empty rather than erroneous, so a corrupt ciphertext degrades
// the rendered invoice instead of failing the request.
type Address struct {
	ID         string
	Name       string
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
	Email      string
}
