// README: Bid engine tests (admission rules + acceptance race). DB-backed.
package bid

import (
	"bufio"
	"context"
	"errors"
	"fmt"
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

func TestSubmitAndList(t *testing.T) {
	svc, bookings := setupBidTest(t, 5*time.Minute)
	ctx := context.Background()

	bk := mustCreateBooking(t, bookings, "u_submit")

	b1, err := svc.Submit(ctx, SubmitCommand{BookingID: bk.ID, DriverID: "d1", Amount: bk.EstimatedFare})
	if err != nil {
		t.Fatalf("submit d1: %v", err)
	}
	b2, err := svc.Submit(ctx, SubmitCommand{BookingID: bk.ID, DriverID: "d2", Amount: bk.EstimatedFare - 5})
	if err != nil {
		t.Fatalf("submit d2: %v", err)
	}

	bids, err := svc.List(ctx, bk.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(bids) != 2 {
		t.Fatalf("expected 2 bids, got %d", len(bids))
	}
	// Sorted by amount: the cheaper bid leads and carries the lowest flag.
	if bids[0].ID != b2.ID || !bids[0].IsLowest {
		t.Fatalf("expected %s lowest first, got %+v", b2.ID, bids[0])
	}
	if bids[1].ID != b1.ID || bids[1].IsLowest {
		t.Fatalf("expected %s not lowest, got %+v", b1.ID, bids[1])
	}
}

func TestSubmitBelowMinimum(t *testing.T) {
	svc, bookings := setupBidTest(t, 5*time.Minute)
	ctx := context.Background()

	bk := mustCreateBooking(t, bookings, "u_min")
	min := MinimumBid(bk.EstimatedFare)

	_, err := svc.Submit(ctx, SubmitCommand{BookingID: bk.ID, DriverID: "d1", Amount: min - 1})
	if !errors.Is(err, ErrBelowMinimum) {
		t.Fatalf("expected ErrBelowMinimum, got %v", err)
	}
	if !strings.Contains(err.Error(), fmt.Sprintf("%d", min)) {
		t.Fatalf("expected computed minimum in message, got %q", err.Error())
	}

	// Exactly the minimum is admissible.
	if _, err := svc.Submit(ctx, SubmitCommand{BookingID: bk.ID, DriverID: "d1", Amount: min}); err != nil {
		t.Fatalf("submit at minimum: %v", err)
	}
}

func TestSubmitDuplicate(t *testing.T) {
	svc, bookings := setupBidTest(t, 5*time.Minute)
	ctx := context.Background()

	bk := mustCreateBooking(t, bookings, "u_dup")
	if _, err := svc.Submit(ctx, SubmitCommand{BookingID: bk.ID, DriverID: "d1", Amount: bk.EstimatedFare}); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	_, err := svc.Submit(ctx, SubmitCommand{BookingID: bk.ID, DriverID: "d1", Amount: bk.EstimatedFare - 2})
	if !errors.Is(err, ErrDuplicateBid) {
		t.Fatalf("expected ErrDuplicateBid, got %v", err)
	}
}

func TestSubmitOnSettledBooking(t *testing.T) {
	svc, bookings := setupBidTest(t, 5*time.Minute)
	ctx := context.Background()

	bk := mustCreateBooking(t, bookings, "u_settled")
	if _, err := bookings.AcceptDirect(ctx, booking.AcceptDirectCommand{BookingID: bk.ID, DriverID: "d9"}); err != nil {
		t.Fatalf("accept direct: %v", err)
	}

	_, err := svc.Submit(ctx, SubmitCommand{BookingID: bk.ID, DriverID: "d1", Amount: bk.EstimatedFare})
	if !errors.Is(err, booking.ErrNotEligible) {
		t.Fatalf("expected ErrNotEligible, got %v", err)
	}
}

func TestAcceptExpiredBid(t *testing.T) {
	svc, bookings := setupBidTest(t, 5*time.Minute)
	ctx := context.Background()

	bk := mustCreateBooking(t, bookings, "u_expired")

	// Insert a bid whose window has already closed; no sweeper has run.
	stale := &Bid{
		ID:        "bid_stale",
		BookingID: bk.ID,
		DriverID:  "d1",
		Amount:    bk.EstimatedFare,
		Status:    StatusPending,
		CreatedAt: time.Now().Add(-10 * time.Minute),
		ExpiresAt: time.Now().Add(-5 * time.Minute),
	}
	if err := svc.store.Create(ctx, stale); err != nil {
		t.Fatalf("insert stale bid: %v", err)
	}

	if _, err := svc.Accept(ctx, AcceptCommand{BookingID: bk.ID, BidID: stale.ID}); !errors.Is(err, ErrNotPending) {
		t.Fatalf("expected ErrNotPending for expired bid, got %v", err)
	}

	// The read side reports it expired too.
	bids, err := svc.List(ctx, bk.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(bids) != 1 || bids[0].Status != StatusExpired {
		t.Fatalf("expected expired bid in listing, got %+v", bids)
	}
}

func TestAcceptSettlesBookingAndRejectsSiblings(t *testing.T) {
	svc, bookings := setupBidTest(t, 5*time.Minute)
	ctx := context.Background()

	bk := mustCreateBooking(t, bookings, "u_accept")
	winner, err := svc.Submit(ctx, SubmitCommand{BookingID: bk.ID, DriverID: "d1", Amount: bk.EstimatedFare - 10})
	if err != nil {
		t.Fatalf("submit winner: %v", err)
	}
	if _, err := svc.Submit(ctx, SubmitCommand{BookingID: bk.ID, DriverID: "d2", Amount: bk.EstimatedFare}); err != nil {
		t.Fatalf("submit sibling: %v", err)
	}

	accepted, err := svc.Accept(ctx, AcceptCommand{BookingID: bk.ID, BidID: winner.ID})
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if accepted.Status != StatusAccepted {
		t.Fatalf("expected accepted, got %s", accepted.Status)
	}

	got, err := bookings.Get(ctx, bk.ID)
	if err != nil {
		t.Fatalf("get booking: %v", err)
	}
	if got.Status != booking.StatusAccepted {
		t.Fatalf("expected booking accepted, got %s", got.Status)
	}
	if got.DriverID == nil || *got.DriverID != "d1" {
		t.Fatalf("expected driver d1, got %v", got.DriverID)
	}
	if got.FinalFare == nil || *got.FinalFare != winner.Amount+got.InsuranceFee {
		t.Fatalf("expected final fare %d, got %v", winner.Amount+got.InsuranceFee, got.FinalFare)
	}

	bids, err := svc.List(ctx, bk.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, b := range bids {
		if b.ID == winner.ID {
			continue
		}
		if b.Status != StatusRejected {
			t.Fatalf("expected sibling rejected, got %s", b.Status)
		}
	}
}

func TestConcurrentBidAccept(t *testing.T) {
	svc, bookings := setupBidTest(t, 5*time.Minute)
	ctx := context.Background()

	bk := mustCreateBooking(t, bookings, "u_bid_race")

	const drivers = 8
	bidIDs := make([]types.ID, 0, drivers)
	for i := 0; i < drivers; i++ {
		b, err := svc.Submit(ctx, SubmitCommand{
			BookingID: bk.ID,
			DriverID:  types.ID(fmt.Sprintf("d%d", i)),
			Amount:    bk.EstimatedFare - int64(i),
		})
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		bidIDs = append(bidIDs, b.ID)
	}

	// Every bid is accepted simultaneously; the transactional settle lets
	// exactly one through.
	var wg sync.WaitGroup
	errs := make(chan error, drivers)
	start := make(chan struct{})
	for _, id := range bidIDs {
		wg.Add(1)
		go func(bidID types.ID) {
			defer wg.Done()
			<-start
			_, err := svc.Accept(ctx, AcceptCommand{BookingID: bk.ID, BidID: bidID})
			errs <- err
		}(id)
	}
	close(start)
	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
			continue
		}
		if !errors.Is(err, ErrNotPending) && !errors.Is(err, booking.ErrNotEligible) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly 1 success, got %d", success)
	}

	got, err := bookings.Get(ctx, bk.ID)
	if err != nil {
		t.Fatalf("get booking: %v", err)
	}
	if got.Status != booking.StatusAccepted || got.DriverID == nil {
		t.Fatalf("expected settled booking, got %s driver %v", got.Status, got.DriverID)
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

func setupBidTest(t *testing.T, window time.Duration) (*Service, *booking.Service) {
	t.Helper()

	dsn := os.Getenv("LIFTON_TEST_DSN")
	if dsn == "" {
		t.Skip("LIFTON_TEST_DSN not set; skipping DB-backed bid tests")
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
	bidSvc := NewService(NewStore(db), bookingSvc, nil, window, nil)
	return bidSvc, bookingSvc
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
