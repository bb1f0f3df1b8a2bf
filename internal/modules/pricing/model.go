// README: Tariff definitions and fare calculation inputs.
package pricing

import "time"

// ServiceType enumerates the fixed set of marketplace service categories.
type ServiceType string

const (
	ServiceBikeTaxi       ServiceType = "bike_taxi"
	ServiceAutoRickshaw   ServiceType = "auto_rickshaw"
	ServiceCab            ServiceType = "cab"
	ServiceParcelDelivery ServiceType = "parcel_delivery"
	ServiceHeavyGoods     ServiceType = "heavy_goods"
	ServicePackersMovers  ServiceType = "packers_movers"
	ServiceIntercityGoods ServiceType = "intercity_goods"
)

func ValidServiceType(s ServiceType) bool {
	switch s {
	case ServiceBikeTaxi, ServiceAutoRickshaw, ServiceCab, ServiceParcelDelivery,
		ServiceHeavyGoods, ServicePackersMovers, ServiceIntercityGoods:
		return true
	}
	return false
}

// RiderCategory selects the premium multiplier for special services.
type RiderCategory string

const (
	RiderStandard RiderCategory = "standard"
	RiderKids     RiderCategory = "kids"
	RiderSenior   RiderCategory = "senior"
)

// Rule is the per-category tariff. Admin-mutated, read by every estimation.
type Rule struct {
	ID              string
	ServiceType     ServiceType
	BaseFare        int64
	PerKmRate       float64
	MinimumFare     int64
	SurgeMultiplier float64
	Active          bool
	UpdatedAt       time.Time
}

// CompetitorRate mirrors Rule for a named competitor. Display-only; no
// invariant beyond category validity.
type CompetitorRate struct {
	ID              string
	CompetitorName  string
	ServiceType     ServiceType
	BaseFare        int64
	PerKmRate       float64
	SurgeMultiplier float64
}

// Snapshot is an immutable view of the active tariff table, keyed by
// category. Callers refresh it on their own cadence; the estimator never
// caches or mutates it.
type Snapshot struct {
	Rules map[ServiceType]Rule
}

// ActiveRule returns the active rule for a category, if one exists.
func (s Snapshot) ActiveRule(t ServiceType) (Rule, bool) {
	r, ok := s.Rules[t]
	if !ok || !r.Active {
		return Rule{}, false
	}
	return r, true
}
