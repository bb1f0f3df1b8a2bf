// README: Pricing service computes fare estimates over a fresh tariff snapshot.
package pricing

import (
	"context"
	"errors"

	"lifton/internal/observability"
)

var ErrBadRequest = errors.New("bad request")

type Service struct {
	store *Store
}

func NewService(store *Store) *Service {
	return &Service{store: store}
}

// Quote is the full estimate surfaced to a rider before booking.
type Quote struct {
	ServiceType   ServiceType
	DistanceKm    float64
	EstimatedFare int64
	InsuranceFee  int64
	PlatformFee   int64
	Total         int64
}

// Estimate fetches a fresh snapshot and prices the trip on it. Insurance
// and platform fees are derived here so clients see the same figures the
// booking path will recompute.
func (s *Service) Estimate(ctx context.Context, distanceKm float64, serviceType ServiceType, rider RiderCategory, insuranceOptIn bool) (Quote, error) {
	if !ValidServiceType(serviceType) {
		return Quote{}, ErrBadRequest
	}
	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return Quote{}, err
	}
	fare, err := Estimate(distanceKm, serviceType, rider, snap)
	if err != nil {
		return Quote{}, err
	}
	insurance := InsuranceFee(distanceKm, insuranceOptIn)
	observability.EstimatesTotal.WithLabelValues(string(serviceType)).Inc()
	return Quote{
		ServiceType:   serviceType,
		DistanceKm:    distanceKm,
		EstimatedFare: fare,
		InsuranceFee:  insurance,
		PlatformFee:   PlatformFee(fare),
		Total:         fare + insurance,
	}, nil
}

// Comparison pairs our quote with per-competitor quotes for one category.
type Comparison struct {
	OurFare     int64
	Competitors []CompetitorQuoteRow
}

type CompetitorQuoteRow struct {
	CompetitorName string
	Fare           int64
}

func (s *Service) Compare(ctx context.Context, distanceKm float64, serviceType ServiceType, ourFare int64) (Comparison, error) {
	if distanceKm <= 0 {
		return Comparison{}, ErrInvalidDistance
	}
	rates, err := s.store.CompetitorRates(ctx, serviceType)
	if err != nil {
		return Comparison{}, err
	}
	cmp := Comparison{OurFare: ourFare}
	for _, r := range rates {
		cmp.Competitors = append(cmp.Competitors, CompetitorQuoteRow{
			CompetitorName: r.CompetitorName,
			Fare:           CompetitorQuote(r, distanceKm),
		})
	}
	return cmp, nil
}

func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	return s.store.Snapshot(ctx)
}

// UpdateRule is the admin tariff mutation. Surge below zero is rejected;
// zero means "unset" and prices as 1.0.
func (s *Service) UpdateRule(ctx context.Context, r Rule) error {
	if !ValidServiceType(r.ServiceType) || r.SurgeMultiplier < 0 || r.MinimumFare < 0 || r.BaseFare < 0 {
		return ErrBadRequest
	}
	return s.store.UpdateRule(ctx, r)
}
