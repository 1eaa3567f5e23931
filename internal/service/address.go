package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/arverne/softsell/internal/crypto"
	"github.com/arverne/softsell/internal/domain"
	"github.com/arverne/softsell/internal/repository"
	"github.com/jackc/pgx/v5"
)

// addressService encrypts billing addresses on the way into the database and
// decrypts them on the way out. Plaintext PII never touches a table.
type addressService struct {
	store  Store
	codec  crypto.Codec
	logger *slog.Logger
}

func NewAddressService(store Store, codec crypto.Codec, logger *slog.Logger) domain.AddressService {
	return &addressService{store: store, codec: codec, logger: logger}
}

func (s *addressService) CreateAddress(ctx context.Context, input domain.AddressInput) (*domain.Address, error) {
	const op = "address.create"

	if input.Name == "" || input.Line1 == "" || input.City == "" || input.Country == "" {
		return nil, domain.Invalid(op, "name, line1, city and country are required")
	}

	params, err := s.encrypt(input)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to encrypt address")
	}

	row, err := s.store.CreateAddress(ctx, params)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to save address")
	}

	out := s.decrypt(row)
	return &out, nil
}

func (s *addressService) GetAddress(ctx context.Context, addressID string) (*domain.Address, error) {
	const op = "address.get"

	id, err := parseUUID(addressID)
	if err != nil {
		return nil, domain.Invalid(op, "invalid address id")
	}

	row, err := s.store.GetAddress(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAddressNotFound
	}
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load address")
	}

	out := s.decrypt(row)
	return &out, nil
}

func (s *addressService) encrypt(input domain.AddressInput) (repository.CreateAddressParams, error) {
	var (
		params repository.CreateAddressParams
		err    error
	)

	fields := []struct {
		dst *string
		src string
	}{
		{&params.Name, input.Name},
		{&params.Line1, input.Line1},
		{&params.Line2, input.Line2},
		{&params.City, input.City},
		{&params.State, input.State},
		{&params.Country, input.Country},
		{&params.Email, input.Email},
	}
	for _, f := range fields {
		if *f.dst, err = s.codec.Encrypt(f.src); err != nil {
			return repository.CreateAddressParams{}, err
		}
	}

	if params.PostalCode, err = s.codec.EncryptPostalCode(input.PostalCode); err != nil {
		return repository.CreateAddressParams{}, err
	}
	return params, nil
}

// decrypt is total: corrupt blobs surface as empty fields, already logged by
// the codec, so a damaged row degrades display instead of failing requests.
func (s *addressService) decrypt(row repository.Address) domain.Address {
	return domain.Address{
		ID:         uuidString(row.ID),
		Name:       s.codec.Decrypt(row.Name),
		Line1:      s.codec.Decrypt(row.Line1),
		Line2:      s.codec.Decrypt(row.Line2),
		City:       s.codec.Decrypt(row.City),
		State:      s.codec.Decrypt(row.State),
		PostalCode: s.codec.DecryptPostalCode(row.PostalCode),
		Country:    s.codec.Decrypt(row.Country),
		Email:      s.codec.Decrypt(row.Email),
	}
}
