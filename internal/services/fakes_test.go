package services

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/vrental/booking-service/internal/clock"
	"github.com/vrental/booking-service/internal/models"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// memStore is an in-memory stand-in for the soft_locks and orders tables
type memStore struct {
	mu     sync.Mutex
	locks  map[string]models.SoftLock
	orders map[int64]models.Order
	nextID int64

	listLocksErr       error
	listOrdersErr      error
	lockTransitionErr  map[string]error
	orderTransitionErr map[int64]error

	// beforeLockCreate runs inside the caller's transaction, outside the
	// store mutex, before a soft lock row is inserted
	beforeLockCreate func(vehicleID int64)
}

func newMemStore() *memStore {
	return &memStore{
		locks:              make(map[string]models.SoftLock),
		orders:             make(map[int64]models.Order),
		lockTransitionErr:  make(map[string]error),
		orderTransitionErr: make(map[int64]error),
	}
}

func (m *memStore) lock(token string) models.SoftLock {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locks[token]
}

func (m *memStore) order(id int64) models.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[id]
}

func (m *memStore) allOrders() []models.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memStore) putLock(l models.SoftLock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locks[l.Token] = l
}

func (m *memStore) putOrder(o models.Order) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.ID == 0 {
		m.nextID++
		o.ID = m.nextID
	}
	m.orders[o.ID] = o
	return o.ID
}

func overlaps(aFrom, aTo, bFrom, bTo time.Time) bool {
	return aFrom.Before(bTo) && aTo.After(bFrom)
}

// fakeTx mirrors the Postgres locking model: a transaction holds per-vehicle
// locks until it ends, and on error its writes are undone from a journal.
// Transactions on different vehicles run concurrently.
type fakeTx struct {
	store *memStore

	mu       sync.Mutex
	vehicles map[int64]*sync.Mutex
	locked   []int64
}

type fakeTxKey struct{}

type fakeTxn struct {
	tx   *fakeTx
	held map[int64]*sync.Mutex
	undo []func()
}

func txnFrom(ctx context.Context) *fakeTxn {
	txn, _ := ctx.Value(fakeTxKey{}).(*fakeTxn)
	return txn
}

func (f *fakeTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	txn := &fakeTxn{tx: f, held: make(map[int64]*sync.Mutex)}
	defer func() {
		for _, m := range txn.held {
			m.Unlock()
		}
	}()

	if err := fn(context.WithValue(ctx, fakeTxKey{}, txn)); err != nil {
		f.store.mu.Lock()
		for i := len(txn.undo) - 1; i >= 0; i-- {
			txn.undo[i]()
		}
		f.store.mu.Unlock()
		return err
	}
	return nil
}

func (f *fakeTx) LockVehicle(ctx context.Context, vehicleID int64) error {
	txn := txnFrom(ctx)
	if txn == nil {
		return errors.New("vehicle lock requires a transaction")
	}
	if _, ok := txn.held[vehicleID]; ok {
		return nil
	}

	f.mu.Lock()
	if f.vehicles == nil {
		f.vehicles = make(map[int64]*sync.Mutex)
	}
	m, ok := f.vehicles[vehicleID]
	if !ok {
		m = &sync.Mutex{}
		f.vehicles[vehicleID] = m
	}
	f.locked = append(f.locked, vehicleID)
	f.mu.Unlock()

	m.Lock()
	txn.held[vehicleID] = m
	return nil
}

func (f *fakeTx) lockedVehicles() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.locked...)
}

// lockRow stands in for SELECT ... FOR UPDATE: inside a transaction the
// row's vehicle is locked until the transaction ends
func lockRow(ctx context.Context, vehicleID int64) {
	if txn := txnFrom(ctx); txn != nil {
		_ = txn.tx.LockVehicle(ctx, vehicleID)
	}
}

// journalLock and journalOrder record the row's prior state. Callers hold m.mu.
func (m *memStore) journalLock(ctx context.Context, token string) {
	txn := txnFrom(ctx)
	if txn == nil {
		return
	}
	prev, existed := m.locks[token]
	txn.undo = append(txn.undo, func() {
		if existed {
			m.locks[token] = prev
		} else {
			delete(m.locks, token)
		}
	})
}

func (m *memStore) journalOrder(ctx context.Context, id int64) {
	txn := txnFrom(ctx)
	if txn == nil {
		return
	}
	prev, existed := m.orders[id]
	txn.undo = append(txn.undo, func() {
		if existed {
			m.orders[id] = prev
		} else {
			delete(m.orders, id)
		}
	})
}

// softLockFake implements SoftLockStore over memStore
type softLockFake struct{ *memStore }

func (s softLockFake) Create(ctx context.Context, lock *models.SoftLock) error {
	if s.beforeLockCreate != nil {
		s.beforeLockCreate(lock.VehicleID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.locks {
		if l.Status == models.SoftLockActive && l.VehicleID == lock.VehicleID &&
			overlaps(l.FromDate, l.ToDate, lock.FromDate, lock.ToDate) {
			return models.ErrVehicleUnavailable
		}
	}
	s.journalLock(ctx, lock.Token)
	s.locks[lock.Token] = *lock
	return nil
}

func (s softLockFake) GetByToken(_ context.Context, token string) (*models.SoftLock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[token]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (s softLockFake) GetByTokenForUpdate(ctx context.Context, token string) (*models.SoftLock, error) {
	l, err := s.GetByToken(ctx, token)
	if l == nil || err != nil {
		return l, err
	}
	lockRow(ctx, l.VehicleID)
	return s.GetByToken(ctx, token)
}

func (s softLockFake) HasActiveOverlap(_ context.Context, vehicleID int64, from, to, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.locks {
		if l.VehicleID == vehicleID && l.Status == models.SoftLockActive &&
			!l.ExpiresAt.Before(now) && overlaps(l.FromDate, l.ToDate, from, to) {
			return true, nil
		}
	}
	return false, nil
}

func (s softLockFake) ExpireStaleForVehicle(ctx context.Context, vehicleID int64, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, l := range s.locks {
		if l.VehicleID == vehicleID && l.Status == models.SoftLockActive && l.ExpiresAt.Before(now) {
			s.journalLock(ctx, k)
			l.Status = models.SoftLockExpired
			l.UpdatedAt = now
			s.locks[k] = l
			n++
		}
	}
	return n, nil
}

func (s softLockFake) Transition(ctx context.Context, token string, from, to models.SoftLockStatus, reason *string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.lockTransitionErr[token]; err != nil {
		return false, err
	}
	l, ok := s.locks[token]
	if !ok || l.Status != from {
		return false, nil
	}
	s.journalLock(ctx, token)
	l.Status = to
	if reason != nil {
		l.CancelReason = reason
	}
	l.UpdatedAt = at
	s.locks[token] = l
	return true, nil
}

func (s softLockFake) ListExpiredActive(_ context.Context, now time.Time, limit int) ([]models.SoftLock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listLocksErr != nil {
		return nil, s.listLocksErr
	}
	var out []models.SoftLock
	for _, l := range s.locks {
		if l.Status == models.SoftLockActive && l.ExpiresAt.Before(now) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// orderFake implements OrderStore over memStore
type orderFake struct{ *memStore }

func isNonTerminal(s models.OrderStatus) bool { return !s.IsTerminal() }

func (s orderFake) Create(ctx context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.VehicleID == order.VehicleID && isNonTerminal(o.Status) &&
			overlaps(o.FromDate, o.ToDate, order.FromDate, order.ToDate) {
			return models.ErrVehicleUnavailable
		}
	}
	s.nextID++
	order.ID = s.nextID
	s.journalOrder(ctx, order.ID)
	s.orders[order.ID] = *order
	return nil
}

func (s orderFake) GetByID(_ context.Context, id int64) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (s orderFake) GetByIDForUpdate(ctx context.Context, id int64) (*models.Order, error) {
	o, err := s.GetByID(ctx, id)
	if o == nil || err != nil {
		return o, err
	}
	lockRow(ctx, o.VehicleID)
	return s.GetByID(ctx, id)
}

func (s orderFake) ListByUser(_ context.Context, userID uuid.UUID, status models.OrderStatus, limit, offset int) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Order
	for _, o := range s.orders {
		if o.UserID == userID && (status == "" || o.Status == status) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if offset >= len(out) {
		return []models.Order{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s orderFake) HasActiveOverlap(_ context.Context, vehicleID int64, from, to time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.VehicleID == vehicleID && isNonTerminal(o.Status) && overlaps(o.FromDate, o.ToDate, from, to) {
			return true, nil
		}
	}
	return false, nil
}

func (s orderFake) Transition(ctx context.Context, id int64, t models.OrderTransition) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.orderTransitionErr[id]; err != nil {
		return false, err
	}
	o, ok := s.orders[id]
	if !ok {
		return false, nil
	}
	allowed := false
	for _, from := range t.From {
		if o.Status == from {
			allowed = true
		}
	}
	if !allowed || (t.NotAfter != nil && o.ExpiresAt.Before(*t.NotAfter)) {
		return false, nil
	}
	s.journalOrder(ctx, id)
	o.Status = t.To
	o.UpdatedAt = t.At
	if t.CancelReason != nil {
		o.CancelReason = t.CancelReason
	}
	if t.PaymentTransactionID != nil {
		o.PaymentTransactionID = t.PaymentTransactionID
	}
	if t.To == models.OrderPaid {
		at := t.At
		o.PaidAt = &at
	}
	s.orders[id] = o
	return true, nil
}

func (s orderFake) ListExpiredPending(_ context.Context, now time.Time, limit int) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listOrdersErr != nil {
		return nil, s.listOrdersErr
	}
	var out []models.Order
	for _, o := range s.orders {
		if o.Status == models.OrderPending && o.ExpiresAt.Before(now) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// stubTrust returns a fixed score or error
type stubTrust struct {
	score int
	err   error
}

func (s *stubTrust) GetScore(context.Context, uuid.UUID) (int, error) {
	return s.score, s.err
}

// recordingNotifier captures notifications in order
type recordingNotifier struct {
	mu     sync.Mutex
	events []models.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n models.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, n)
}

func (r *recordingNotifier) all() []models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Notification(nil), r.events...)
}

func (r *recordingNotifier) ofKind(kind models.NotificationKind) []models.Notification {
	var out []models.Notification
	for _, n := range r.all() {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

var errStoreDown = errors.New("store unreachable")

// testEnv wires an orchestrator over the fakes
type testEnv struct {
	store        *memStore
	tx           *fakeTx
	clock        *clock.Manual
	trust        *stubTrust
	notifier     *recordingNotifier
	availability *AvailabilityService
	orchestrator *BookingOrchestratorService
	now          time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store := newMemStore()
	clk := clock.NewManual(now)
	logger := quietLogger()
	env := &testEnv{
		store:    store,
		tx:       &fakeTx{store: store},
		clock:    clk,
		trust:    &stubTrust{score: 80},
		notifier: &recordingNotifier{},
		now:      now,
	}
	env.availability = NewAvailabilityService(softLockFake{store}, orderFake{store}, clk, logger)
	env.orchestrator = NewBookingOrchestratorService(
		env.tx, softLockFake{store}, orderFake{store}, env.availability,
		env.trust, env.notifier, clk, DefaultOrchestratorConfig(), logger,
	)
	return env
}

func (e *testEnv) preview(t *testing.T, userID uuid.UUID, vehicleID int64, from, to time.Time) *models.PreviewResponse {
	t.Helper()
	resp, err := e.orchestrator.Preview(context.Background(), userID, &models.PreviewRequest{
		VehicleID:    vehicleID,
		FromDate:     from,
		ToDate:       to,
		HourlyRate:   5,
		VehicleValue: 1000,
	})
	if err != nil {
		t.Fatalf("preview failed: %v", err)
	}
	return resp
}

func confirmRequestFor(p *models.PreviewResponse, rate float64) *models.ConfirmRequest {
	return &models.ConfirmRequest{
		Token:      p.Token,
		VehicleID:  p.VehicleID,
		FromDate:   p.FromDate,
		ToDate:     p.ToDate,
		HourlyRate: rate,
		TotalCost:  p.TotalCost,
	}
}
