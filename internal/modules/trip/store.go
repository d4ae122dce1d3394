// README: Trip store backed by PostgreSQL.
package trip

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"triply/internal/types"
)

// StatusUpdate is a compare-and-swap status write: it only lands when the
// trip still holds the expected status and version.
type StatusUpdate struct {
	TripID     types.ID
	From       Status
	To         Status
	Version    int
	Driver     *DriverInfo
	FinalPrice *float64
	Reason     *string
}

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const tripColumns = `
	id, rider_id, status, status_version,
	pickup_lat, pickup_lng, pickup_address,
	dropoff_lat, dropoff_lng, dropoff_address,
	vehicle_class, price, final_price,
	driver_info, cancellation_reason, created_at, completed_at`

func (s *Store) Create(ctx context.Context, t *Trip) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO trips (
			id, rider_id, status, status_version,
			pickup_lat, pickup_lng, pickup_address,
			dropoff_lat, dropoff_lng, dropoff_address,
			vehicle_class, price, created_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7,
			$8, $9, $10,
			$11, $12, $13
		)`,
		string(t.ID),
		string(t.RiderID),
		string(t.Status),
		t.StatusVersion,
		t.Pickup.Lat, t.Pickup.Lng, t.Pickup.Address,
		t.Dropoff.Lat, t.Dropoff.Lng, t.Dropoff.Address,
		string(t.VehicleClass),
		t.Price,
		t.CreatedAt,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Trip, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+tripColumns+`
		FROM trips
		WHERE id = $1`, string(id),
	)
	t, err := scanTrip(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

// ActiveByRider returns the rider's non-terminal trips ordered by creation
// time ascending, so the head is the earliest-created.
func (s *Store) ActiveByRider(ctx context.Context, riderID types.ID) ([]*Trip, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+tripColumns+`
		FROM trips
		WHERE rider_id = $1
		  AND status IN ('searching','accepted','arrived','started')
		ORDER BY created_at ASC`, string(riderID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTrips(rows)
}

func (s *Store) HasActiveByRider(ctx context.Context, riderID types.ID) (bool, error) {
	row := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM trips
			WHERE rider_id = $1
			  AND status IN ('searching','accepted','arrived','started')
		)`, string(riderID),
	)
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (s *Store) ListByRider(ctx context.Context, riderID types.ID) ([]*Trip, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+tripColumns+`
		FROM trips
		WHERE rider_id = $1
		ORDER BY created_at DESC`, string(riderID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTrips(rows)
}

func (s *Store) ListCompletedByRider(ctx context.Context, riderID types.ID, limit int) ([]*Trip, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+tripColumns+`
		FROM trips
		WHERE rider_id = $1 AND status = 'completed'
		ORDER BY created_at DESC
		LIMIT $2`, string(riderID), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTrips(rows)
}

func (s *Store) UpdateStatus(ctx context.Context, upd StatusUpdate) (bool, error) {
	var driverJSON []byte
	if upd.Driver != nil {
		b, err := json.Marshal(upd.Driver)
		if err != nil {
			return false, err
		}
		driverJSON = b
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE trips
		SET status = $1,
		    status_version = status_version + 1,
		    driver_info = COALESCE($2, driver_info),
		    final_price = COALESCE($3, final_price),
		    cancellation_reason = COALESCE($4, cancellation_reason),
		    completed_at = CASE WHEN $1 = 'completed' THEN NOW() ELSE completed_at END
		WHERE id = $5 AND status = $6 AND status_version = $7`,
		string(upd.To),
		driverJSON,
		upd.FinalPrice,
		upd.Reason,
		string(upd.TripID),
		string(upd.From),
		upd.Version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrip(row rowScanner) (*Trip, error) {
	var t Trip
	var finalPrice sql.NullFloat64
	var driverJSON []byte
	var cancelReason sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(
		&t.ID, &t.RiderID, &t.Status, &t.StatusVersion,
		&t.Pickup.Lat, &t.Pickup.Lng, &t.Pickup.Address,
		&t.Dropoff.Lat, &t.Dropoff.Lng, &t.Dropoff.Address,
		&t.VehicleClass, &t.Price, &finalPrice,
		&driverJSON, &cancelReason, &t.CreatedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	if finalPrice.Valid {
		v := finalPrice.Float64
		t.FinalPrice = &v
	}
	if len(driverJSON) > 0 {
		var d DriverInfo
		if err := json.Unmarshal(driverJSON, &d); err == nil {
			t.DriverInfo = &d
		}
	}
	if cancelReason.Valid {
		t.CancelReason = &cancelReason.String
	}
	t.CompletedAt = toTimePtr(completedAt)
	return &t, nil
}

func scanTrips(rows pgx.Rows) ([]*Trip, error) {
	var trips []*Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		trips = append(trips, t)
	}
	return trips, rows.Err()
}

func toTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
