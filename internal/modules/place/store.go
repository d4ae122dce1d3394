// README: Postgres persistence for saved places.
package place

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"triply/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const placeColumns = `id, owner_id, name, address, lat, lng, category`

func (s *Store) Add(ctx context.Context, p *SavedPlace) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO saved_places (`+placeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.OwnerID, p.Name, p.Address, p.Location.Lat, p.Location.Lng, p.Category,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*SavedPlace, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+placeColumns+` FROM saved_places WHERE id = $1`, id)
	p, err := scanPlace(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

func (s *Store) ListByOwner(ctx context.Context, ownerID types.ID) ([]*SavedPlace, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+placeColumns+` FROM saved_places
		WHERE owner_id = $1
		ORDER BY name ASC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPlaces(rows)
}

func (s *Store) Delete(ctx context.Context, id, ownerID types.ID) error {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM saved_places WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlace(row rowScanner) (*SavedPlace, error) {
	var p SavedPlace
	err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Address, &p.Location.Lat, &p.Location.Lng, &p.Category)
	if err != nil {
		return nil, err
	}
	p.Location.Address = p.Address
	return &p, nil
}

func scanPlaces(rows pgx.Rows) ([]*SavedPlace, error) {
	var out []*SavedPlace
	for rows.Next() {
		p, err := scanPlace(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
