// README: Pricing store backed by PostgreSQL.
package pricing

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

// Snapshot loads the current tariff table in one pass. Inactive rules are
// included so admin views can show them; ActiveRule filters at read time.
func (s *Store) Snapshot(ctx context.Context) (Snapshot, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, service_type, base_fare, per_km_rate, minimum_fare, surge_multiplier, active, updated_at
		FROM service_pricing`)
	if err != nil {
		return Snapshot{}, err
	}
	defer rows.Close()

	snap := Snapshot{Rules: make(map[ServiceType]Rule)}
	for rows.Next() {
		var r Rule
		if err := rows.Scan(&r.ID, &r.ServiceType, &r.BaseFare, &r.PerKmRate,
			&r.MinimumFare, &r.SurgeMultiplier, &r.Active, &r.UpdatedAt); err != nil {
			return Snapshot{}, err
		}
		snap.Rules[r.ServiceType] = r
	}
	return snap, rows.Err()
}

func (s *Store) CompetitorRates(ctx context.Context, serviceType ServiceType) ([]CompetitorRate, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, competitor_name, service_type, base_fare, per_km_rate, surge_multiplier
		FROM competitor_prices
		WHERE service_type = $1
		ORDER BY competitor_name`, string(serviceType))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CompetitorRate
	for rows.Next() {
		var r CompetitorRate
		if err := rows.Scan(&r.ID, &r.CompetitorName, &r.ServiceType,
			&r.BaseFare, &r.PerKmRate, &r.SurgeMultiplier); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpdateRule rewrites the tariff fields for one category. Rules are seeded
// by migration; the admin surface only mutates them.
func (s *Store) UpdateRule(ctx context.Context, r Rule) error {
	_, err := s.db.Exec(ctx, `
		UPDATE service_pricing
		SET base_fare = $1, per_km_rate = $2, minimum_fare = $3,
		    surge_multiplier = $4, active = $5, updated_at = NOW()
		WHERE service_type = $6`,
		r.BaseFare, r.PerKmRate, r.MinimumFare, r.SurgeMultiplier, r.Active, string(r.ServiceType))
	return err
}
