package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/playfield/marketplace-backend/internal/database"
	"github.com/playfield/marketplace-backend/internal/models"
	"github.com/playfield/marketplace-backend/pkg/gateway"
	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// ============================================================================
// RECONCILIATION STORE
// ============================================================================

// memState is the persisted state of memStore
type memState struct {
	charges       map[models.BookingReference]models.PendingCharge
	bookings      map[models.BookingReference]models.BookingSessionDetails
	sessions      []models.ConfirmedSession
	assignments   []models.TrainerAssignment
	notifications []models.Notification
}

func (s memState) clone() memState {
	c := memState{
		charges:       make(map[models.BookingReference]models.PendingCharge, len(s.charges)),
		bookings:      make(map[models.BookingReference]models.BookingSessionDetails, len(s.bookings)),
		sessions:      append([]models.ConfirmedSession(nil), s.sessions...),
		assignments:   append([]models.TrainerAssignment(nil), s.assignments...),
		notifications: append([]models.Notification(nil), s.notifications...),
	}
	for k, v := range s.charges {
		c.charges[k] = v
	}
	for k, v := range s.bookings {
		c.bookings[k] = v
	}
	return c
}

// memStore serializes units the way row locks on one booking do, and only
// publishes a unit's writes when fn returns nil
type memStore struct {
	mu                   sync.Mutex
	state                memState
	failNotificationSave bool
	failBookingDelete    bool
}

func newMemStore() *memStore {
	return &memStore{state: memState{
		charges:  map[models.BookingReference]models.PendingCharge{},
		bookings: map[models.BookingReference]models.BookingSessionDetails{},
	}}
}

func (m *memStore) seed(ref models.BookingReference, charge *models.PendingCharge, details models.BookingSessionDetails) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if charge != nil {
		m.state.charges[ref] = *charge
	}
	m.state.bookings[ref] = details
}

func (m *memStore) snapshot() memState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

func (m *memStore) Transact(ctx context.Context, fn func(unit database.ReconciliationUnit) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	staged := m.state.clone()
	if err := fn(&memUnit{store: m, state: &staged}); err != nil {
		return err
	}
	m.state = staged
	return nil
}

type memUnit struct {
	store *memStore
	state *memState
}

func (u *memUnit) MarkChargeSucceeded(ctx context.Context, ref models.BookingReference, txnID string) (bool, error) {
	c, ok := u.state.charges[ref]
	if !ok || c.Status != models.ChargeStatusPending {
		return false, nil
	}
	c.Status = models.ChargeStatusSuccess
	c.GatewayTransactionID = &txnID
	u.state.charges[ref] = c
	return true, nil
}

func (u *memUnit) DeletePendingCharge(ctx context.Context, ref models.BookingReference) (bool, error) {
	c, ok := u.state.charges[ref]
	if !ok || c.Status != models.ChargeStatusPending {
		return false, nil
	}
	delete(u.state.charges, ref)
	return true, nil
}

func (u *memUnit) GetSessionDetails(ctx context.Context, ref models.BookingReference) (*models.BookingSessionDetails, error) {
	d, ok := u.state.bookings[ref]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &d, nil
}

func (u *memUnit) CreateSession(ctx context.Context, session *models.ConfirmedSession) error {
	u.state.sessions = append(u.state.sessions, *session)
	return nil
}

func (u *memUnit) AssignTrainer(ctx context.Context, a *models.TrainerAssignment) error {
	u.state.assignments = append(u.state.assignments, *a)
	return nil
}

func (u *memUnit) CreateNotification(ctx context.Context, n *models.Notification) error {
	if u.store.failNotificationSave {
		return errors.New("notifications: connection reset")
	}
	u.state.notifications = append(u.state.notifications, *n)
	return nil
}

func (u *memUnit) DeleteBooking(ctx context.Context, ref models.BookingReference) error {
	if u.store.failBookingDelete {
		return errors.New("bookings: connection reset")
	}
	delete(u.state.bookings, ref)
	return nil
}

// ============================================================================
// CHARGES AND BOOKINGS
// ============================================================================

type fakeSnapshots struct {
	snapshots map[models.BookingReference]*models.BookingSnapshot
	err       error
}

func (f *fakeSnapshots) GetSnapshot(ctx context.Context, userID uuid.UUID, ref models.BookingReference) (*models.BookingSnapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.snapshots[ref]
	if !ok || s.UserID != userID {
		return nil, models.ErrNotFound
	}
	return s, nil
}

// fakeCharges keeps at most one pending charge per booking, like the partial
// unique index does
type fakeCharges struct {
	mu      sync.Mutex
	rows    []*models.PendingCharge
	creates int
	deletes int

	// vanishOnAttach removes the row before the intent is attached
	vanishOnAttach bool
	// onVanish runs after the row is removed, e.g. to delete the booking as a
	// committed cancel does
	onVanish func()
}

func (f *fakeCharges) find(ref models.BookingReference, pendingOnly bool) *models.PendingCharge {
	var found *models.PendingCharge
	for _, c := range f.rows {
		if c.BookingReference() != ref {
			continue
		}
		if pendingOnly && !c.IsPending() {
			continue
		}
		if c.Status == models.ChargeStatusSuccess {
			cp := *c
			return &cp
		}
		cp := *c
		found = &cp
	}
	return found
}

func (f *fakeCharges) GetPending(ctx context.Context, ref models.BookingReference) (*models.PendingCharge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.find(ref, true), nil
}

func (f *fakeCharges) GetLatest(ctx context.Context, ref models.BookingReference) (*models.PendingCharge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.find(ref, false), nil
}

func (f *fakeCharges) Create(ctx context.Context, charge *models.PendingCharge) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.find(charge.BookingReference(), true) != nil {
		return models.ErrDuplicatePendingCharge
	}
	cp := *charge
	cp.CreatedAt = time.Now()
	f.rows = append(f.rows, &cp)
	f.creates++
	return nil
}

func (f *fakeCharges) AttachGatewayIntent(ctx context.Context, chargeID uuid.UUID, intentID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.vanishOnAttach {
		f.vanishOnAttach = false
		f.removeLocked(chargeID)
		if f.onVanish != nil {
			f.onVanish()
		}
		return false, nil
	}
	for _, c := range f.rows {
		if c.ID == chargeID && c.IsPending() {
			id := intentID
			c.GatewayIntentID = &id
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeCharges) DeleteUnattached(ctx context.Context, chargeID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.rows {
		if c.ID == chargeID && c.IsPending() && c.GatewayIntentID == nil {
			f.removeLocked(chargeID)
			f.deletes++
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeCharges) removeLocked(chargeID uuid.UUID) {
	kept := f.rows[:0]
	for _, c := range f.rows {
		if c.ID != chargeID {
			kept = append(kept, c)
		}
	}
	f.rows = kept
}

func (f *fakeCharges) all() []models.PendingCharge {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.PendingCharge, 0, len(f.rows))
	for _, c := range f.rows {
		out = append(out, *c)
	}
	return out
}

// ============================================================================
// GATEWAY
// ============================================================================

type fakeGateway struct {
	mu            sync.Mutex
	requests      []gateway.ChargeRequest
	handleErr     error
	credentialErr error
	event         *gateway.Event
	verifyErr     error
}

func (g *fakeGateway) CreateChargeHandle(ctx context.Context, req gateway.ChargeRequest) (*gateway.ChargeHandle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.handleErr != nil {
		return nil, g.handleErr
	}
	n := len(g.requests)
	return &gateway.ChargeHandle{
		IntentID:     fmt.Sprintf("pi_test_%d", n),
		ClientSecret: fmt.Sprintf("pi_test_%d_secret", n),
	}, nil
}

func (g *fakeGateway) CreateClientCredential(ctx context.Context, customerID string) (string, error) {
	if g.credentialErr != nil {
		return "", g.credentialErr
	}
	return "ek_test_" + customerID, nil
}

func (g *fakeGateway) VerifyEvent(payload []byte, signatureHeader string) (*gateway.Event, error) {
	if g.verifyErr != nil {
		return nil, g.verifyErr
	}
	if g.event == nil {
		return nil, gateway.ErrInvalidSignature
	}
	e := *g.event
	e.Raw = payload
	return &e, nil
}

// ============================================================================
// CHANNELS, BROKER, AUDITS
// ============================================================================

type pushed struct {
	handle  string
	payload []byte
}

type fakeRegistry struct {
	mu        sync.Mutex
	handles   map[uuid.UUID]string
	lookupErr error
	pushErr   error
	panicOn   bool
	pushes    []pushed
}

func (r *fakeRegistry) Lookup(ctx context.Context, userID uuid.UUID) (string, bool, error) {
	if r.panicOn {
		panic("registry exploded")
	}
	if r.lookupErr != nil {
		return "", false, r.lookupErr
	}
	h, ok := r.handles[userID]
	return h, ok, nil
}

func (r *fakeRegistry) Push(ctx context.Context, handle string, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pushErr != nil {
		return r.pushErr
	}
	r.pushes = append(r.pushes, pushed{handle: handle, payload: payload})
	return nil
}

func (r *fakeRegistry) pushCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pushes)
}

type published struct {
	key   string
	event any
}

type fakePublisher struct {
	mu          sync.Mutex
	events      []published
	err         error
	hadDeadline bool
	// stall blocks until ctx is done, like a broker under flow control
	stall bool
}

func (p *fakePublisher) PublishJSON(ctx context.Context, key string, v any) error {
	_, ok := ctx.Deadline()
	p.mu.Lock()
	p.hadDeadline = ok
	stall := p.stall
	p.mu.Unlock()
	if stall {
		<-ctx.Done()
		return ctx.Err()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, published{key: key, event: v})
	return nil
}

func (p *fakePublisher) keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.key)
	}
	return out
}

type fakeAudits struct {
	mu      sync.Mutex
	entries []models.PaymentAudit
	err     error
}

func (a *fakeAudits) Log(ctx context.Context, audit *models.PaymentAudit) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.entries = append(a.entries, *audit)
	return nil
}

func (a *fakeAudits) types() []models.PaymentEventType {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]models.PaymentEventType, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.EventType)
	}
	return out
}

type fakeAdvancer struct {
	calls     int
	lastNow   time.Time
	started   int64
	completed int64
	err       error
}

func (f *fakeAdvancer) AdvanceStatuses(ctx context.Context, now time.Time) (int64, int64, error) {
	f.calls++
	f.lastNow = now
	return f.started, f.completed, f.err
}
