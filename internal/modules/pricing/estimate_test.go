// README: Pure fare and fee calculation tests.
package pricing

import "testing"

func snapWith(rule Rule) Snapshot {
	rule.Active = true
	return Snapshot{Rules: map[ServiceType]Rule{rule.ServiceType: rule}}
}

func TestEstimateMeteredFare(t *testing.T) {
	snap := snapWith(Rule{ServiceType: ServiceCab, BaseFare: 20, PerKmRate: 8, MinimumFare: 30, SurgeMultiplier: 1.0})

	got, err := Estimate(5, ServiceCab, RiderStandard, snap)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if got != 60 {
		t.Fatalf("expected fare 60, got %d", got)
	}
}

func TestEstimateMinimumFareFloor(t *testing.T) {
	snap := snapWith(Rule{ServiceType: ServiceBikeTaxi, BaseFare: 10, PerKmRate: 5, MinimumFare: 50, SurgeMultiplier: 1.0})

	// 10 + 1*5 = 15, well under the floor.
	got, err := Estimate(1, ServiceBikeTaxi, RiderStandard, snap)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if got != 50 {
		t.Fatalf("expected floor fare 50, got %d", got)
	}
}

func TestEstimatePremiumAfterFloor(t *testing.T) {
	snap := snapWith(Rule{ServiceType: ServiceCab, BaseFare: 20, PerKmRate: 8, MinimumFare: 30, SurgeMultiplier: 1.0})

	cases := []struct {
		rider RiderCategory
		want  int64
	}{
		{RiderStandard, 60},
		{RiderKids, 69},   // 60 * 1.15
		{RiderSenior, 66}, // 60 * 1.10
	}
	for _, tc := range cases {
		got, err := Estimate(5, ServiceCab, tc.rider, snap)
		if err != nil {
			t.Fatalf("estimate(%s): %v", tc.rider, err)
		}
		if got != tc.want {
			t.Errorf("estimate(%s) = %d, want %d", tc.rider, got, tc.want)
		}
	}

	// The premium multiplies the floored fare, so the result never drops
	// below the minimum even for short trips.
	short := snapWith(Rule{ServiceType: ServiceAutoRickshaw, BaseFare: 5, PerKmRate: 2, MinimumFare: 40, SurgeMultiplier: 1.0})
	got, err := Estimate(0.5, ServiceAutoRickshaw, RiderKids, short)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if got < 40 {
		t.Fatalf("premium fare %d fell below minimum 40", got)
	}
}

func TestEstimateSurge(t *testing.T) {
	snap := snapWith(Rule{ServiceType: ServiceCab, BaseFare: 20, PerKmRate: 8, MinimumFare: 30, SurgeMultiplier: 1.5})

	// (20 + 40) * 1.5 = 90
	got, err := Estimate(5, ServiceCab, RiderStandard, snap)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if got != 90 {
		t.Fatalf("expected surged fare 90, got %d", got)
	}

	// Zero surge prices as 1.0 rather than collapsing the fare.
	unset := snapWith(Rule{ServiceType: ServiceCab, BaseFare: 20, PerKmRate: 8, MinimumFare: 30})
	got, err = Estimate(5, ServiceCab, RiderStandard, unset)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if got != 60 {
		t.Fatalf("expected fare 60 with unset surge, got %d", got)
	}
}

func TestEstimateErrors(t *testing.T) {
	snap := snapWith(Rule{ServiceType: ServiceCab, BaseFare: 20, PerKmRate: 8, MinimumFare: 30, SurgeMultiplier: 1.0})

	if _, err := Estimate(0, ServiceCab, RiderStandard, snap); err != ErrInvalidDistance {
		t.Fatalf("zero distance: expected ErrInvalidDistance, got %v", err)
	}
	if _, err := Estimate(-3, ServiceCab, RiderStandard, snap); err != ErrInvalidDistance {
		t.Fatalf("negative distance: expected ErrInvalidDistance, got %v", err)
	}
	if _, err := Estimate(5, ServiceParcelDelivery, RiderStandard, snap); err != ErrNoPricingConfigured {
		t.Fatalf("missing rule: expected ErrNoPricingConfigured, got %v", err)
	}

	// An inactive rule must not price trips.
	inactive := Snapshot{Rules: map[ServiceType]Rule{
		ServiceCab: {ServiceType: ServiceCab, BaseFare: 20, PerKmRate: 8, MinimumFare: 30, Active: false},
	}}
	if _, err := Estimate(5, ServiceCab, RiderStandard, inactive); err != ErrNoPricingConfigured {
		t.Fatalf("inactive rule: expected ErrNoPricingConfigured, got %v", err)
	}
}

func TestInsuranceFee(t *testing.T) {
	cases := []struct {
		distanceKm float64
		optIn      bool
		want       int64
	}{
		{6, true, 3},    // round(3)
		{0.5, true, 1},  // floored at 1
		{1, true, 1},    // round(0.5) rounds away from zero, still 1
		{100, true, 15}, // capped at 15
		{29.9, true, 15},
		{20, true, 10},
		{6, false, 0},
		{1000, false, 0},
	}
	for _, tc := range cases {
		if got := InsuranceFee(tc.distanceKm, tc.optIn); got != tc.want {
			t.Errorf("InsuranceFee(%v, %v) = %d, want %d", tc.distanceKm, tc.optIn, got, tc.want)
		}
	}

	// Bounds hold for any opted-in distance.
	for _, d := range []float64{0.01, 0.9, 2, 7.3, 29, 31, 500} {
		fee := InsuranceFee(d, true)
		if fee < 1 || fee > 15 {
			t.Errorf("InsuranceFee(%v) = %d out of [1,15]", d, fee)
		}
	}
}

func TestPlatformFee(t *testing.T) {
	cases := []struct {
		base int64
		want int64
	}{
		{100, 5},
		{60, 3},
		{55, 3},  // round(2.75)
		{49, 2},  // round(2.45)
		{0, 0},
	}
	for _, tc := range cases {
		if got := PlatformFee(tc.base); got != tc.want {
			t.Errorf("PlatformFee(%d) = %d, want %d", tc.base, got, tc.want)
		}
	}
}

func TestCompetitorQuote(t *testing.T) {
	rate := CompetitorRate{CompetitorName: "Platform A", ServiceType: ServiceCab, BaseFare: 25, PerKmRate: 9, SurgeMultiplier: 1.2}
	// (25 + 5*9) * 1.2 = 84
	if got := CompetitorQuote(rate, 5); got != 84 {
		t.Fatalf("expected quote 84, got %d", got)
	}

	rate.SurgeMultiplier = 0
	if got := CompetitorQuote(rate, 5); got != 70 {
		t.Fatalf("expected quote 70 with unset surge, got %d", got)
	}
}
