// README: Booking state machine tests (no database).
package booking

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		// happy-path forward transitions
		{StatusPending, StatusAccepted, true},
		{StatusAccepted, StatusInProgress, true},
		{StatusInProgress, StatusCompleted, true},
		// cancels
		{StatusPending, StatusCancelled, true},
		{StatusAccepted, StatusCancelled, true},
		// cancel after departure is not allowed
		{StatusInProgress, StatusCancelled, false},
		// invalid: skipping states
		{StatusPending, StatusInProgress, false},
		{StatusPending, StatusCompleted, false},
		{StatusAccepted, StatusCompleted, false},
		// invalid: terminal states have no outgoing transitions
		{StatusCompleted, StatusPending, false},
		{StatusCancelled, StatusPending, false},
		{StatusCancelled, StatusAccepted, false},
		// invalid: no backward transitions
		{StatusAccepted, StatusPending, false},
		{StatusInProgress, StatusAccepted, false},
	}
	for _, tc := range cases {
		got := CanTransition(tc.from, tc.to)
		if got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestNegotiable(t *testing.T) {
	if !Negotiable(StatusPending) {
		t.Error("pending booking should be negotiable")
	}
	for _, s := range []Status{StatusAccepted, StatusInProgress, StatusCompleted, StatusCancelled} {
		if Negotiable(s) {
			t.Errorf("booking in %s should not be negotiable", s)
		}
	}
}

func TestRoadDistance(t *testing.T) {
	// Connaught Place to Hauz Khas, roughly 9 km great-circle.
	a := pointCP()
	b := pointHK()
	d := roadDistanceKm(a, b)
	if d < 9 || d > 14 {
		t.Fatalf("road distance out of plausible range: %v", d)
	}
	if roadDistanceKm(a, a) != 0 {
		t.Fatal("zero distance expected for identical points")
	}
}
