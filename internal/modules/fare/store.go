// README: Fare rule store backed by PostgreSQL; overrides the built-in table.
package fare

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// LoadTable reads fare rule overrides and merges them over the defaults.
// Rows for unknown vehicle classes are ignored.
func (s *Store) LoadTable(ctx context.Context) (Table, error) {
	table := DefaultTable()
	rows, err := s.db.Query(ctx, `
		SELECT vehicle_class, base_fare, per_km, per_min, min_fare
		FROM fare_rules`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var class string
		var r Rule
		if err := rows.Scan(&class, &r.BaseFare, &r.PerKm, &r.PerMin, &r.MinFare); err != nil {
			return nil, err
		}
		if !Known(Class(class)) {
			continue
		}
		table[Class(class)] = r
	}
	return table, rows.Err()
}
