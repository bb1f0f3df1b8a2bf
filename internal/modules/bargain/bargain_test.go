// README: Bargain service tests (thread lifecycle + concurrent resolution). DB-backed.
package bargain

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"lifton/internal/modules/booking"
	"lifton/internal/modules/pricing"
	"lifton/internal/types"
)

func TestBargainFlowAgainstStore(t *testing.T) {
	svc, bookings := setupBargainTest(t)
	ctx := context.Background()

	bk := mustCreateBooking(t, bookings, "u_flow")

	offered, err := svc.Propose(ctx, ProposeCommand{BookingID: bk.ID, Actor: ActorUser, ActorID: bk.UserID, Amount: 40})
	if err != nil {
		t.Fatalf("offer: %v", err)
	}
	if offered.Status != StatusPending || offered.OriginalFare != bk.BaseFare {
		t.Fatalf("unexpected opening thread: %+v", offered)
	}

	countered, err := svc.Propose(ctx, ProposeCommand{BookingID: bk.ID, Actor: ActorDriver, ActorID: "d1", Amount: 55})
	if err != nil {
		t.Fatalf("counter: %v", err)
	}
	if countered.Status != StatusCountered || countered.DriverID == nil || *countered.DriverID != "d1" {
		t.Fatalf("unexpected countered thread: %+v", countered)
	}

	settled, err := svc.Accept(ctx, ResolveCommand{BookingID: bk.ID, Actor: ActorUser, ActorID: bk.UserID})
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if settled.FinalFare == nil || *settled.FinalFare != 55 {
		t.Fatalf("expected final fare 55, got %+v", settled)
	}

	// A settled thread refuses further moves.
	if _, err := svc.Propose(ctx, ProposeCommand{BookingID: bk.ID, Actor: ActorDriver, ActorID: "d1", Amount: 60}); !errors.Is(err, ErrAlreadyTerminal) {
		t.Fatalf("propose after accept: expected ErrAlreadyTerminal, got %v", err)
	}
}

func TestBargainRejectedThreadIsShadowed(t *testing.T) {
	svc, bookings := setupBargainTest(t)
	ctx := context.Background()

	bk := mustCreateBooking(t, bookings, "u_shadow")

	first, err := svc.Propose(ctx, ProposeCommand{BookingID: bk.ID, Actor: ActorUser, ActorID: bk.UserID, Amount: 40})
	if err != nil {
		t.Fatalf("offer: %v", err)
	}
	if _, err := svc.Reject(ctx, ResolveCommand{BookingID: bk.ID, Actor: ActorDriver, ActorID: "d1"}); err != nil {
		t.Fatalf("reject: %v", err)
	}

	// As long as the booking is open, a new thread can start and it gets a
	// fresh identity rather than reviving the rejected one.
	second, err := svc.Propose(ctx, ProposeCommand{BookingID: bk.ID, Actor: ActorUser, ActorID: bk.UserID, Amount: 45})
	if err != nil {
		t.Fatalf("second offer: %v", err)
	}
	if second.ID == first.ID {
		t.Fatal("expected a fresh thread after rejection")
	}
	if second.Status != StatusPending || *second.UserOffer != 45 {
		t.Fatalf("unexpected fresh thread: %+v", second)
	}
}

func TestBargainOnSettledBooking(t *testing.T) {
	svc, bookings := setupBargainTest(t)
	ctx := context.Background()

	bk := mustCreateBooking(t, bookings, "u_closed")
	if _, err := bookings.AcceptDirect(ctx, booking.AcceptDirectCommand{BookingID: bk.ID, DriverID: "d9"}); err != nil {
		t.Fatalf("accept direct: %v", err)
	}

	_, err := svc.Propose(ctx, ProposeCommand{BookingID: bk.ID, Actor: ActorUser, ActorID: bk.UserID, Amount: 40})
	if !errors.Is(err, booking.ErrNotEligible) {
		t.Fatalf("expected ErrNotEligible, got %v", err)
	}
}

func TestConcurrentBargainAccept(t *testing.T) {
	svc, bookings := setupBargainTest(t)
	ctx := context.Background()

	bk := mustCreateBooking(t, bookings, "u_bargain_race")
	if _, err := svc.Propose(ctx, ProposeCommand{BookingID: bk.ID, Actor: ActorUser, ActorID: bk.UserID, Amount: 40}); err != nil {
		t.Fatalf("offer: %v", err)
	}
	if _, err := svc.Propose(ctx, ProposeCommand{BookingID: bk.ID, Actor: ActorDriver, ActorID: "d1", Amount: 55}); err != nil {
		t.Fatalf("counter: %v", err)
	}

	// Rider accepts while the driver re-counters; the conditional update
	// lets exactly one move land on the countered row.
	var wg sync.WaitGroup
	results := make(chan error, 2)
	start := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		<-start
		_, err := svc.Accept(ctx, ResolveCommand{BookingID: bk.ID, Actor: ActorUser, ActorID: bk.UserID})
		results <- err
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-start
		_, err := svc.Propose(ctx, ProposeCommand{BookingID: bk.ID, Actor: ActorDriver, ActorID: "d1", Amount: 58})
		results <- err
	}()
	close(start)
	wg.Wait()
	close(results)

	for err := range results {
		if err != nil && !errors.Is(err, ErrConflict) && !errors.Is(err, ErrAlreadyTerminal) {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	got, err := svc.store.Latest(ctx, bk.ID)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if got.Status != StatusAccepted && got.Status != StatusCountered {
		t.Fatalf("unexpected final status: %s", got.Status)
	}
	if got.Status == StatusAccepted && (got.FinalFare == nil || (*got.FinalFare != 55 && *got.FinalFare != 58)) {
		t.Fatalf("accepted thread with implausible final fare: %+v", got)
	}
}

func mustCreateBooking(t *testing.T, svc *booking.Service, userID types.ID) *booking.Booking {
	t.Helper()
	b, err := svc.Create(context.Background(), booking.CreateCommand{
		UserID:      userID,
		ServiceType: pricing.ServiceBikeTaxi,
		Pickup:      types.Point{Lat: 28.6315, Lng: 77.2167},
		Drop:        types.Point{Lat: 28.5494, Lng: 77.2001},
	})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	return b
}

func setupBargainTest(t *testing.T) (*Service, *booking.Service) {
	t.Helper()

	dsn := os.Getenv("LIFTON_TEST_DSN")
	if dsn == "" {
		t.Skip("LIFTON_TEST_DSN not set; skipping DB-backed bargain tests")
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := applyMigration(ctx, db); err != nil {
		t.Fatalf("apply migration: %v", err)
	}
	if _, err := db.Exec(ctx, "TRUNCATE TABLE booking_status_events, driver_bids, booking_bargains, bookings"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}

	pricingSvc := pricing.NewService(pricing.NewStore(db))
	bookingSvc := booking.NewService(booking.NewStore(db), pricingSvc, nil, nil, nil)
	bargainSvc := NewService(NewStore(db), bookingSvc, nil, 5*time.Minute, nil)
	return bargainSvc, bookingSvc
}

func applyMigration(ctx context.Context, db *pgxpool.Pool) error {
	root, err := repoRoot()
	if err != nil {
		return err
	}
	path := filepath.Join(root, "migrations", "0001_init.sql")
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	cleaned := stripSQLComments(string(content))
	for _, stmt := range splitSQL(cleaned) {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < 6; i++ {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", os.ErrNotExist
}

func stripSQLComments(input string) string {
	var b strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(input))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		b.WriteString(scanner.Text())
		b.WriteString("\n")
	}
	return b.String()
}

func splitSQL(input string) []string {
	parts := strings.Split(input, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		stmt := strings.TrimSpace(p)
		if stmt == "" {
			continue
		}
		out = append(out, stmt)
	}
	return out
}
