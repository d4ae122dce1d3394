// README: Validation and ownership rules for saved places.
package place

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"

	"triply/internal/types"
)

var (
	ErrNotFound     = errors.New("saved place not found")
	ErrInvalidPlace = errors.New("invalid saved place")
)

type store interface {
	Add(ctx context.Context, p *SavedPlace) error
	Get(ctx context.Context, id types.ID) (*SavedPlace, error)
	ListByOwner(ctx context.Context, ownerID types.ID) ([]*SavedPlace, error)
	Delete(ctx context.Context, id, ownerID types.ID) error
}

type Service struct {
	store store
}

func NewService(store store) *Service {
	return &Service{store: store}
}

type AddCommand struct {
	OwnerID  types.ID
	Name     string
	Address  string
	Location types.GeoPoint
	Category Category
}

func (s *Service) Add(ctx context.Context, cmd AddCommand) (*SavedPlace, error) {
	name := strings.TrimSpace(cmd.Name)
	addr := strings.TrimSpace(cmd.Address)
	if name == "" || addr == "" || !cmd.Location.Valid() {
		return nil, ErrInvalidPlace
	}
	cat := cmd.Category
	if cat == "" {
		cat = CategoryGeneric
	}
	if !KnownCategory(cat) {
		return nil, ErrInvalidPlace
	}

	p := &SavedPlace{
		ID:       newID(),
		OwnerID:  cmd.OwnerID,
		Name:     name,
		Address:  addr,
		Location: types.GeoPoint{Lat: cmd.Location.Lat, Lng: cmd.Location.Lng, Address: addr},
		Category: cat,
	}
	if err := s.store.Add(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) List(ctx context.Context, ownerID types.ID) ([]*SavedPlace, error) {
	return s.store.ListByOwner(ctx, ownerID)
}

func (s *Service) Remove(ctx context.Context, id, ownerID types.ID) error {
	return s.store.Delete(ctx, id, ownerID)
}

func newID() types.ID {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return types.ID("place_" + hex.EncodeToString(b))
}
