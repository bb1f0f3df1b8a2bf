// README: Pure fare, insurance, and platform fee calculations.
package pricing

import (
	"errors"
	"math"
)

var (
	ErrInvalidDistance     = errors.New("distance must be greater than zero")
	ErrNoPricingConfigured = errors.New("no active pricing configured for service type")
)

const (
	platformFeePct   = 0.05
	insurancePerKm   = 0.5
	insuranceFeeMin  = 1
	insuranceFeeMax  = 15
	kidsMultiplier   = 1.15
	seniorMultiplier = 1.10
)

// Estimate computes the fare for a distance against the active rule in the
// snapshot. The minimum-fare floor applies to the surge-adjusted metered
// fare; the rider-category premium applies after the floor, so the result
// never drops below the floor (multipliers are >= 1). Whole-rupee result.
func Estimate(distanceKm float64, serviceType ServiceType, rider RiderCategory, snap Snapshot) (int64, error) {
	if distanceKm <= 0 {
		return 0, ErrInvalidDistance
	}
	rule, ok := snap.ActiveRule(serviceType)
	if !ok {
		return 0, ErrNoPricingConfigured
	}

	surge := rule.SurgeMultiplier
	if surge <= 0 {
		surge = 1.0
	}
	metered := (float64(rule.BaseFare) + distanceKm*rule.PerKmRate) * surge
	fare := math.Max(float64(rule.MinimumFare), math.Round(metered))

	switch rider {
	case RiderKids:
		fare *= kidsMultiplier
	case RiderSenior:
		fare *= seniorMultiplier
	}
	return int64(math.Round(fare)), nil
}

// InsuranceFee is linear in distance, floored at 1 and capped at 15, and
// zero when the rider has not opted in. Always recomputed from the
// server-observed distance; client-submitted figures are not trusted.
func InsuranceFee(distanceKm float64, optIn bool) int64 {
	if !optIn {
		return 0
	}
	fee := math.Round(distanceKm * insurancePerKm)
	if fee < insuranceFeeMin {
		fee = insuranceFeeMin
	}
	if fee > insuranceFeeMax {
		fee = insuranceFeeMax
	}
	return int64(fee)
}

// PlatformFee is the flat marketplace commission, computed off the
// pre-insurance base fare.
func PlatformFee(baseFare int64) int64 {
	return int64(math.Round(float64(baseFare) * platformFeePct))
}

// CompetitorQuote prices a trip on a competitor's published tariff, for
// side-by-side display.
func CompetitorQuote(rate CompetitorRate, distanceKm float64) int64 {
	surge := rate.SurgeMultiplier
	if surge <= 0 {
		surge = 1.0
	}
	return int64(math.Round((float64(rate.BaseFare) + distanceKm*rate.PerKmRate) * surge))
}
