package distribution

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ogurasousui/gallon-quota/internal/core/employee"
	"github.com/ogurasousui/gallon-quota/internal/core/ledger"
	"github.com/ogurasousui/gallon-quota/internal/core/quota"
	"github.com/ogurasousui/gallon-quota/internal/core/validation"
)

type stubClock struct {
	now time.Time
}

func (s *stubClock) Now() time.Time {
	return s.now
}

// fakeEmployeeStore は照会とクォータ更新の両方を満たすインメモリ実装です。
type fakeEmployeeStore struct {
	mu        sync.Mutex
	employees map[string]*employee.Employee
	findErr   error
}

func newFakeEmployeeStore(emps ...*employee.Employee) *fakeEmployeeStore {
	s := &fakeEmployeeStore{employees: make(map[string]*employee.Employee)}
	for _, e := range emps {
		s.employees[e.ID] = e.Clone()
	}
	return s
}

func (s *fakeEmployeeStore) FindActiveByExternalID(_ context.Context, externalID string) (*employee.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	for _, e := range s.employees {
		if e.ExternalID == externalID && e.IsActive {
			return e.Clone(), nil
		}
	}
	return nil, employee.ErrEmployeeNotFound
}

func (s *fakeEmployeeStore) FindByID(_ context.Context, id string) (*employee.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.employees[id]
	if !ok {
		return nil, employee.ErrEmployeeNotFound
	}
	return e.Clone(), nil
}

func (s *fakeEmployeeStore) ResetQuota(_ context.Context, id string, windowStart, updatedAt time.Time) (*employee.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.employees[id]
	if !ok || !e.QuotaResetDate.Before(windowStart) {
		return nil, employee.ErrEmployeeNotFound
	}
	e.ResetQuota(updatedAt)
	return e.Clone(), nil
}

func (s *fakeEmployeeStore) DeductQuota(_ context.Context, id string, amount int, updatedAt time.Time) (*employee.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.employees[id]
	if !ok {
		return nil, employee.ErrInsufficientQuota
	}
	if err := e.Deduct(amount, updatedAt); err != nil {
		return nil, err
	}
	return e.Clone(), nil
}

type fakeRecorder struct {
	recorded []*ledger.Transaction
	err      error
}

func (r *fakeRecorder) Record(_ context.Context, e *employee.Employee, gallons int) (*ledger.Transaction, error) {
	if r.err != nil {
		return nil, r.err
	}
	tx := &ledger.Transaction{ID: "tx-1", EmployeeID: e.ID, GallonsTaken: gallons, RemainingQuota: e.CurrentQuota}
	r.recorded = append(r.recorded, tx)
	return tx, nil
}

type recordingObserver struct {
	lookups        []string
	distributions  []string
	gallons        int
	ledgerFailures int
}

func (o *recordingObserver) LookupCompleted(outcome string) {
	o.lookups = append(o.lookups, outcome)
}

func (o *recordingObserver) DistributionCompleted(outcome string, gallons int) {
	o.distributions = append(o.distributions, outcome)
	o.gallons += gallons
}

func (o *recordingObserver) LedgerWriteFailed() {
	o.ledgerFailures++
}

var march = time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)

func johnDoe() *employee.Employee {
	dept := "IT"
	pos := "Software Engineer"
	return &employee.Employee{
		ID:             "emp-1",
		ExternalID:     "EMP001",
		Name:           "John Doe",
		Department:     &dept,
		Position:       &pos,
		MonthlyQuota:   10,
		CurrentQuota:   8,
		QuotaResetDate: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		IsActive:       true,
	}
}

type fixture struct {
	store    *fakeEmployeeStore
	recorder *fakeRecorder
	observer *recordingObserver
	svc      *Service
}

func newFixture(now time.Time, emps ...*employee.Employee) *fixture {
	store := newFakeEmployeeStore(emps...)
	clock := &stubClock{now: now}
	recorder := &fakeRecorder{}
	observer := &recordingObserver{}
	engine := quota.NewEngine(store, clock, nil)
	return &fixture{
		store:    store,
		recorder: recorder,
		observer: observer,
		svc:      NewService(store, engine, recorder, WithObserver(observer)),
	}
}

func TestService_Lookup_Found(t *testing.T) {
	t.Parallel()

	f := newFixture(march, johnDoe())

	result, err := f.svc.Lookup(context.Background(), LookupInput{ExternalID: " EMP001 "})
	if err != nil {
		t.Fatalf("Lookup returned error: %v", err)
	}
	if result.Outcome != OutcomeFound || result.Employee.CurrentQuota != 8 || result.Message != "" {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(f.observer.lookups) != 1 || f.observer.lookups[0] != "found" {
		t.Fatalf("unexpected observed lookups %v", f.observer.lookups)
	}
}

func TestService_Lookup_InactiveIsNotFound(t *testing.T) {
	t.Parallel()

	inactive := johnDoe()
	inactive.IsActive = false
	f := newFixture(march, inactive)

	for _, id := range []string{"EMP001", "EMP404"} {
		result, err := f.svc.Lookup(context.Background(), LookupInput{ExternalID: id})
		if err != nil {
			t.Fatalf("Lookup returned error: %v", err)
		}
		if result.Outcome != OutcomeNotFound || result.Employee != nil || result.Message != "Employee not found or inactive." {
			t.Fatalf("%s: unexpected result %+v", id, result)
		}
	}
}

func TestService_Lookup_ResetsOnNewMonth(t *testing.T) {
	t.Parallel()

	stale := johnDoe()
	stale.CurrentQuota = 0
	stale.QuotaResetDate = time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	f := newFixture(march, stale)

	result, err := f.svc.Lookup(context.Background(), LookupInput{ExternalID: "EMP001"})
	if err != nil {
		t.Fatalf("Lookup returned error: %v", err)
	}
	if result.Employee.CurrentQuota != 10 {
		t.Fatalf("expected reset quota 10, got %d", result.Employee.CurrentQuota)
	}
	if !result.Employee.QuotaResetDate.Equal(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected reset date %v", result.Employee.QuotaResetDate)
	}

	stored, _ := f.store.FindByID(context.Background(), "emp-1")
	if stored.CurrentQuota != 10 {
		t.Fatalf("expected reset to be persisted, got %d", stored.CurrentQuota)
	}
}

func TestService_Lookup_RequiresExternalID(t *testing.T) {
	t.Parallel()

	f := newFixture(march, johnDoe())

	_, err := f.svc.Lookup(context.Background(), LookupInput{ExternalID: "  "})
	if !errors.Is(err, ErrInvalidExternalID) {
		t.Fatalf("expected ErrInvalidExternalID, got %v", err)
	}
	if got := validation.Fields(err)[FieldExternalID]; len(got) != 1 || got[0] != "Employee ID is required." {
		t.Fatalf("unexpected messages %v", got)
	}
}

func TestService_Lookup_PersistenceFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(march, johnDoe())
	f.store.findErr = errors.New("db down")

	if _, err := f.svc.Lookup(context.Background(), LookupInput{ExternalID: "EMP001"}); err == nil {
		t.Fatal("expected persistence error")
	}
	if len(f.observer.lookups) != 0 {
		t.Fatalf("failed lookups must not be observed as outcomes, got %v", f.observer.lookups)
	}
}

func TestService_Distribute_Success(t *testing.T) {
	t.Parallel()

	f := newFixture(march, johnDoe())

	result, err := f.svc.Distribute(context.Background(), DistributeInput{ExternalID: "EMP001", Gallons: 3})
	if err != nil {
		t.Fatalf("Distribute returned error: %v", err)
	}
	if result.Outcome != OutcomeDistributed {
		t.Fatalf("expected distributed outcome, got %v", result.Outcome)
	}
	if result.Message != "Successfully distributed 3 gallons. Remaining quota: 5" {
		t.Fatalf("unexpected message %q", result.Message)
	}
	if result.SuccessMessage() != result.Message || result.ErrorMessage() != "" {
		t.Fatalf("unexpected message split %q / %q", result.SuccessMessage(), result.ErrorMessage())
	}
	if !result.LedgerRecorded || result.Transaction == nil {
		t.Fatalf("expected ledger entry, got %+v", result)
	}
	if len(f.recorder.recorded) != 1 || f.recorder.recorded[0].RemainingQuota != 5 || f.recorder.recorded[0].GallonsTaken != 3 {
		t.Fatalf("unexpected recorded entries %+v", f.recorder.recorded)
	}
	if f.observer.gallons != 3 || f.observer.distributions[0] != "distributed" {
		t.Fatalf("unexpected observations %+v", f.observer)
	}
}

func TestService_Distribute_SingularMessage(t *testing.T) {
	t.Parallel()

	f := newFixture(march, johnDoe())

	result, err := f.svc.Distribute(context.Background(), DistributeInput{ExternalID: "EMP001", Gallons: 1})
	if err != nil {
		t.Fatalf("Distribute returned error: %v", err)
	}
	if result.Message != "Successfully distributed 1 gallon. Remaining quota: 7" {
		t.Fatalf("unexpected message %q", result.Message)
	}
}

func TestService_Distribute_InsufficientQuota(t *testing.T) {
	t.Parallel()

	low := johnDoe()
	low.CurrentQuota = 2
	f := newFixture(march, low)

	result, err := f.svc.Distribute(context.Background(), DistributeInput{ExternalID: "EMP001", Gallons: 5})
	if err != nil {
		t.Fatalf("insufficient quota must not be an error: %v", err)
	}
	if result.Outcome != OutcomeInsufficientQuota {
		t.Fatalf("expected insufficient outcome, got %v", result.Outcome)
	}
	if result.Message != "Insufficient quota. Only 2 gallons remaining." || result.ErrorMessage() != result.Message {
		t.Fatalf("unexpected message %q", result.Message)
	}
	if result.Employee == nil || result.Employee.CurrentQuota != 2 {
		t.Fatalf("expected employee snapshot with balance 2, got %+v", result.Employee)
	}
	if len(f.recorder.recorded) != 0 {
		t.Fatal("rejected distribution must not be recorded")
	}

	stored, _ := f.store.FindByID(context.Background(), "emp-1")
	if stored.CurrentQuota != 2 {
		t.Fatalf("rejected distribution must not mutate, got %d", stored.CurrentQuota)
	}
	if f.observer.gallons != 0 {
		t.Fatalf("expected no gallons observed, got %d", f.observer.gallons)
	}
}

func TestService_Distribute_ResetThenDeduct(t *testing.T) {
	t.Parallel()

	stale := johnDoe()
	stale.CurrentQuota = 1
	stale.QuotaResetDate = time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	f := newFixture(march, stale)

	result, err := f.svc.Distribute(context.Background(), DistributeInput{ExternalID: "EMP001", Gallons: 4})
	if err != nil {
		t.Fatalf("Distribute returned error: %v", err)
	}
	if result.Outcome != OutcomeDistributed || result.Employee.CurrentQuota != 6 {
		t.Fatalf("expected reset then deduction leaving 6, got %+v", result)
	}
}

func TestService_Distribute_NotFound(t *testing.T) {
	t.Parallel()

	f := newFixture(march, johnDoe())

	result, err := f.svc.Distribute(context.Background(), DistributeInput{ExternalID: "EMP999", Gallons: 1})
	if err != nil {
		t.Fatalf("Distribute returned error: %v", err)
	}
	if result.Outcome != OutcomeNotFound || result.Employee != nil || result.Message != MessageNotFound {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestService_Distribute_Validation(t *testing.T) {
	t.Parallel()

	f := newFixture(march, johnDoe())
	svc := NewService(f.store, quota.NewEngine(f.store, &stubClock{now: march}, nil), f.recorder, WithMaxGallons(5))

	cases := []struct {
		name    string
		in      DistributeInput
		field   string
		message string
	}{
		{"zero", DistributeInput{ExternalID: "EMP001", Gallons: 0}, FieldGallons, "Must take at least 1 gallon."},
		{"too many", DistributeInput{ExternalID: "EMP001", Gallons: 6}, FieldGallons, "Cannot take more than 5 gallons at once."},
		{"missing id", DistributeInput{Gallons: 1}, FieldExternalID, "Employee ID is required."},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := svc.Distribute(context.Background(), tc.in)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if got := validation.Fields(err)[tc.field]; len(got) != 1 || got[0] != tc.message {
				t.Fatalf("unexpected messages %v", got)
			}
		})
	}

	stored, _ := f.store.FindByID(context.Background(), "emp-1")
	if stored.CurrentQuota != 8 {
		t.Fatalf("invalid requests must not mutate, got %d", stored.CurrentQuota)
	}
}

func TestService_Distribute_LedgerFailureKeepsDeduction(t *testing.T) {
	t.Parallel()

	f := newFixture(march, johnDoe())
	f.recorder.err = errors.New("insert failed")

	result, err := f.svc.Distribute(context.Background(), DistributeInput{ExternalID: "EMP001", Gallons: 2})
	if err != nil {
		t.Fatalf("ledger failure must not surface as an error: %v", err)
	}
	if result.Outcome != OutcomeDistributed || result.LedgerRecorded || result.Transaction != nil {
		t.Fatalf("unexpected result %+v", result)
	}
	if f.observer.ledgerFailures != 1 {
		t.Fatalf("expected one ledger failure, got %d", f.observer.ledgerFailures)
	}

	stored, _ := f.store.FindByID(context.Background(), "emp-1")
	if stored.CurrentQuota != 6 {
		t.Fatalf("deduction must stand, got %d", stored.CurrentQuota)
	}
}

func TestOutcome_String(t *testing.T) {
	t.Parallel()

	want := map[Outcome]string{
		OutcomeFound:             "found",
		OutcomeNotFound:          "not_found",
		OutcomeDistributed:       "distributed",
		OutcomeInsufficientQuota: "insufficient_quota",
		Outcome(0):               "unknown",
	}
	for outcome, s := range want {
		if outcome.String() != s {
			t.Fatalf("Outcome(%d).String() = %q, want %q", int(outcome), outcome.String(), s)
		}
	}
}
