package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Abdulah-eng/newhitsapp-sub002/internal/domain"
	"github.com/google/uuid"
)

// --- Mock implementations ---

type mockProfileRepo struct {
	createFn      func(ctx context.Context, p domain.Profile) (*domain.Profile, error)
	getByIDFn     func(ctx context.Context, id uuid.UUID) (*domain.Profile, error)
	getRoleFn     func(ctx context.Context, id uuid.UUID) (domain.Role, error)
	setRoleFn     func(ctx context.Context, id uuid.UUID, role domain.Role) error
	updateFn      func(ctx context.Context, id uuid.UUID, fullName, phone, city string) error
	listFn        func(ctx context.Context, role domain.Role, limit, offset int) ([]domain.Profile, error)
	countByRoleFn func(ctx context.Context) (map[domain.Role]int, error)
}

func (m *mockProfileRepo) Create(ctx context.Context, p domain.Profile) (*domain.Profile, error) {
	if m.createFn != nil {
		return m.createFn(ctx, p)
	}
	return &p, nil
}

func (m *mockProfileRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Profile, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrProfileNotFound
}

func (m *mockProfileRepo) GetRole(ctx context.Context, id uuid.UUID) (domain.Role, error) {
	if m.getRoleFn != nil {
		return m.getRoleFn(ctx, id)
	}
	return domain.RoleUndefined, domain.ErrProfileNotFound
}

func (m *mockProfileRepo) SetRole(ctx context.Context, id uuid.UUID, role domain.Role) error {
	if m.setRoleFn != nil {
		return m.setRoleFn(ctx, id, role)
	}
	return nil
}

func (m *mockProfileRepo) Update(ctx context.Context, id uuid.UUID, fullName, phone, city string) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, fullName, phone, city)
	}
	return nil
}

func (m *mockProfileRepo) List(ctx context.Context, role domain.Role, limit, offset int) ([]domain.Profile, error) {
	if m.listFn != nil {
		return m.listFn(ctx, role, limit, offset)
	}
	return nil, nil
}

func (m *mockProfileRepo) CountByRole(ctx context.Context) (map[domain.Role]int, error) {
	if m.countByRoleFn != nil {
		return m.countByRoleFn(ctx)
	}
	return map[domain.Role]int{}, nil
}

type mockSpecialistRepo struct {
	upsertFn                  func(ctx context.Context, s domain.SpecialistProfile) (*domain.SpecialistProfile, error)
	getByIDFn                 func(ctx context.Context, id uuid.UUID) (*domain.SpecialistProfile, error)
	listBookableFn            func(ctx context.Context) ([]domain.SpecialistProfile, error)
	listPendingVerificationFn func(ctx context.Context) ([]domain.SpecialistProfile, error)
	setVerifiedFn             func(ctx context.Context, id uuid.UUID, verified bool) error
}

func (m *mockSpecialistRepo) Upsert(ctx context.Context, s domain.SpecialistProfile) (*domain.SpecialistProfile, error) {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, s)
	}
	return &s, nil
}

func (m *mockSpecialistRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.SpecialistProfile, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrSpecialistNotFound
}

func (m *mockSpecialistRepo) ListBookable(ctx context.Context) ([]domain.SpecialistProfile, error) {
	if m.listBookableFn != nil {
		return m.listBookableFn(ctx)
	}
	return nil, nil
}

func (m *mockSpecialistRepo) ListPendingVerification(ctx context.Context) ([]domain.SpecialistProfile, error) {
	if m.listPendingVerificationFn != nil {
		return m.listPendingVerificationFn(ctx)
	}
	return nil, nil
}

func (m *mockSpecialistRepo) SetVerified(ctx context.Context, id uuid.UUID, verified bool) error {
	if m.setVerifiedFn != nil {
		return m.setVerifiedFn(ctx, id, verified)
	}
	return nil
}

type mockAppointmentRepo struct {
	createFn            func(ctx context.Context, a domain.Appointment) (*domain.Appointment, error)
	getByIDFn           func(ctx context.Context, id uuid.UUID) (*domain.Appointment, error)
	listForSeniorFn     func(ctx context.Context, id uuid.UUID) ([]domain.Appointment, error)
	listForSpecialistFn func(ctx context.Context, id uuid.UUID) ([]domain.Appointment, error)
	listFn              func(ctx context.Context, status domain.AppointmentStatus, limit, offset int) ([]domain.Appointment, error)
	updateStatusFn      func(ctx context.Context, id uuid.UUID, from, to domain.AppointmentStatus) error
	markPaidFn          func(ctx context.Context, id uuid.UUID, paymentIntentID string) error
	sharesAppointmentFn func(ctx context.Context, a, b uuid.UUID) (bool, error)
	listDueRemindersFn  func(ctx context.Context, from, to time.Time) ([]domain.Appointment, error)
	markReminderSentFn  func(ctx context.Context, id uuid.UUID, at time.Time) error
	countByStatusFn     func(ctx context.Context) (map[domain.AppointmentStatus]int, error)
}

func (m *mockAppointmentRepo) Create(ctx context.Context, a domain.Appointment) (*domain.Appointment, error) {
	if m.createFn != nil {
		return m.createFn(ctx, a)
	}
	return &a, nil
}

func (m *mockAppointmentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Appointment, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrAppointmentNotFound
}

func (m *mockAppointmentRepo) ListForSenior(ctx context.Context, id uuid.UUID) ([]domain.Appointment, error) {
	if m.listForSeniorFn != nil {
		return m.listForSeniorFn(ctx, id)
	}
	return nil, nil
}

func (m *mockAppointmentRepo) ListForSpecialist(ctx context.Context, id uuid.UUID) ([]domain.Appointment, error) {
	if m.listForSpecialistFn != nil {
		return m.listForSpecialistFn(ctx, id)
	}
	return nil, nil
}

func (m *mockAppointmentRepo) List(ctx context.Context, status domain.AppointmentStatus, limit, offset int) ([]domain.Appointment, error) {
	if m.listFn != nil {
		return m.listFn(ctx, status, limit, offset)
	}
	return nil, nil
}

func (m *mockAppointmentRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.AppointmentStatus) error {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, id, from, to)
	}
	return nil
}

func (m *mockAppointmentRepo) MarkPaid(ctx context.Context, id uuid.UUID, paymentIntentID string) error {
	if m.markPaidFn != nil {
		return m.markPaidFn(ctx, id, paymentIntentID)
	}
	return nil
}

func (m *mockAppointmentRepo) SharesAppointment(ctx context.Context, a, b uuid.UUID) (bool, error) {
	if m.sharesAppointmentFn != nil {
		return m.sharesAppointmentFn(ctx, a, b)
	}
	return false, nil
}

func (m *mockAppointmentRepo) ListDueReminders(ctx context.Context, from, to time.Time) ([]domain.Appointment, error) {
	if m.listDueRemindersFn != nil {
		return m.listDueRemindersFn(ctx, from, to)
	}
	return nil, nil
}

func (m *mockAppointmentRepo) MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	if m.markReminderSentFn != nil {
		return m.markReminderSentFn(ctx, id, at)
	}
	return nil
}

func (m *mockAppointmentRepo) CountByStatus(ctx context.Context) (map[domain.AppointmentStatus]int, error) {
	if m.countByStatusFn != nil {
		return m.countByStatusFn(ctx)
	}
	return map[domain.AppointmentStatus]int{}, nil
}

type mockMessageRepo struct {
	createFn           func(ctx context.Context, msg domain.Message) (*domain.Message, error)
	listConversationFn func(ctx context.Context, a, b uuid.UUID, limit int) ([]domain.Message, error)
	markReadFn         func(ctx context.Context, recipientID, senderID uuid.UUID, at time.Time) (int64, error)
	countUnreadFn      func(ctx context.Context, recipientID uuid.UUID) (int, error)
}

func (m *mockMessageRepo) Create(ctx context.Context, msg domain.Message) (*domain.Message, error) {
	if m.createFn != nil {
		return m.createFn(ctx, msg)
	}
	return &msg, nil
}

func (m *mockMessageRepo) ListConversation(ctx context.Context, a, b uuid.UUID, limit int) ([]domain.Message, error) {
	if m.listConversationFn != nil {
		return m.listConversationFn(ctx, a, b, limit)
	}
	return nil, nil
}

func (m *mockMessageRepo) MarkRead(ctx context.Context, recipientID, senderID uuid.UUID, at time.Time) (int64, error) {
	if m.markReadFn != nil {
		return m.markReadFn(ctx, recipientID, senderID, at)
	}
	return 0, nil
}

func (m *mockMessageRepo) CountUnread(ctx context.Context, recipientID uuid.UUID) (int, error) {
	if m.countUnreadFn != nil {
		return m.countUnreadFn(ctx, recipientID)
	}
	return 0, nil
}

type mockMembershipRepo struct {
	getFn                 func(ctx context.Context, userID uuid.UUID) (*domain.Membership, error)
	getBySubscriptionIDFn func(ctx context.Context, id string) (*domain.Membership, error)
	upsertFn              func(ctx context.Context, m domain.Membership) error
	countActiveFn         func(ctx context.Context) (int, error)
}

func (m *mockMembershipRepo) Get(ctx context.Context, userID uuid.UUID) (*domain.Membership, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID)
	}
	return nil, domain.ErrMembershipNotFound
}

func (m *mockMembershipRepo) GetBySubscriptionID(ctx context.Context, id string) (*domain.Membership, error) {
	if m.getBySubscriptionIDFn != nil {
		return m.getBySubscriptionIDFn(ctx, id)
	}
	return nil, domain.ErrMembershipNotFound
}

func (m *mockMembershipRepo) Upsert(ctx context.Context, membership domain.Membership) error {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, membership)
	}
	return nil
}

func (m *mockMembershipRepo) CountActive(ctx context.Context) (int, error) {
	if m.countActiveFn != nil {
		return m.countActiveFn(ctx)
	}
	return 0, nil
}

type mockPaymentRepo struct {
	createFn                     func(ctx context.Context, p domain.Payment) error
	getByCheckoutSessionFn       func(ctx context.Context, sessionID string) (*domain.Payment, error)
	getSucceededForAppointmentFn func(ctx context.Context, appointmentID uuid.UUID) (*domain.Payment, error)
	updateStatusFn               func(ctx context.Context, id uuid.UUID, status domain.PaymentStatus, paymentIntentID string) error
	sumSucceededFn               func(ctx context.Context) (int64, error)
}

func (m *mockPaymentRepo) Create(ctx context.Context, p domain.Payment) error {
	if m.createFn != nil {
		return m.createFn(ctx, p)
	}
	return nil
}

func (m *mockPaymentRepo) GetByCheckoutSession(ctx context.Context, sessionID string) (*domain.Payment, error) {
	if m.getByCheckoutSessionFn != nil {
		return m.getByCheckoutSessionFn(ctx, sessionID)
	}
	return nil, domain.ErrPaymentNotFound
}

func (m *mockPaymentRepo) GetSucceededForAppointment(ctx context.Context, appointmentID uuid.UUID) (*domain.Payment, error) {
	if m.getSucceededForAppointmentFn != nil {
		return m.getSucceededForAppointmentFn(ctx, appointmentID)
	}
	return nil, domain.ErrPaymentNotFound
}

func (m *mockPaymentRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.PaymentStatus, paymentIntentID string) error {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, id, status, paymentIntentID)
	}
	return nil
}

func (m *mockPaymentRepo) SumSucceeded(ctx context.Context) (int64, error) {
	if m.sumSucceededFn != nil {
		return m.sumSucceededFn(ctx)
	}
	return 0, nil
}

type mockGateway struct {
	createCheckoutSessionFn func(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutSession, error)
	getSubscriptionFn       func(ctx context.Context, id string) (*domain.Subscription, error)
	cancelSubscriptionFn    func(ctx context.Context, id string) (*domain.Subscription, error)
	refundFn                func(ctx context.Context, paymentIntentID string) error
}

func (m *mockGateway) CreateCheckoutSession(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutSession, error) {
	if m.createCheckoutSessionFn != nil {
		return m.createCheckoutSessionFn(ctx, req)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockGateway) GetSubscription(ctx context.Context, id string) (*domain.Subscription, error) {
	if m.getSubscriptionFn != nil {
		return m.getSubscriptionFn(ctx, id)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockGateway) CancelSubscriptionAtPeriodEnd(ctx context.Context, id string) (*domain.Subscription, error) {
	if m.cancelSubscriptionFn != nil {
		return m.cancelSubscriptionFn(ctx, id)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockGateway) Refund(ctx context.Context, paymentIntentID string) error {
	if m.refundFn != nil {
		return m.refundFn(ctx, paymentIntentID)
	}
	return fmt.Errorf("not implemented")
}

type mockAuthProvider struct {
	signUpFn  func(ctx context.Context, email, password string) (*domain.Identity, error)
	signInFn  func(ctx context.Context, email, password string) (*domain.Identity, error)
	refreshFn func(ctx context.Context, refreshToken string) (*domain.Identity, error)
	getUserFn func(ctx context.Context, accessToken string) (*domain.Identity, error)
	signOutFn func(ctx context.Context, accessToken string) error
}

func (m *mockAuthProvider) SignUp(ctx context.Context, email, password string) (*domain.Identity, error) {
	if m.signUpFn != nil {
		return m.signUpFn(ctx, email, password)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockAuthProvider) SignIn(ctx context.Context, email, password string) (*domain.Identity, error) {
	if m.signInFn != nil {
		return m.signInFn(ctx, email, password)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockAuthProvider) Refresh(ctx context.Context, refreshToken string) (*domain.Identity, error) {
	if m.refreshFn != nil {
		return m.refreshFn(ctx, refreshToken)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockAuthProvider) GetUser(ctx context.Context, accessToken string) (*domain.Identity, error) {
	if m.getUserFn != nil {
		return m.getUserFn(ctx, accessToken)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockAuthProvider) SignOut(ctx context.Context, accessToken string) error {
	if m.signOutFn != nil {
		return m.signOutFn(ctx, accessToken)
	}
	return nil
}

type mockGenerator struct {
	generateJSONFn func(ctx context.Context, prompt string) (string, error)
}

func (m *mockGenerator) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	if m.generateJSONFn != nil {
		return m.generateJSONFn(ctx, prompt)
	}
	return "", fmt.Errorf("not implemented")
}

// recordingNotifier collects notifications; failFor makes delivery fail.
type recordingNotifier struct {
	mu      sync.Mutex
	sent    []domain.Notification
	failFor map[uuid.UUID]bool
}

func (n *recordingNotifier) Notify(_ context.Context, msg domain.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failFor[msg.UserID] {
		return fmt.Errorf("delivery failed")
	}
	n.sent = append(n.sent, msg)
	return nil
}

func (n *recordingNotifier) notifications() []domain.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.Notification(nil), n.sent...)
}

// memoryLedger is an in-memory ReminderLedger.
type memoryLedger struct {
	mu       sync.Mutex
	claimed  map[uuid.UUID]bool
	released []uuid.UUID
	claimErr error
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{claimed: make(map[uuid.UUID]bool)}
}

func (l *memoryLedger) Claim(_ context.Context, id uuid.UUID, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.claimErr != nil {
		return false, l.claimErr
	}
	if l.claimed[id] {
		return false, nil
	}
	l.claimed[id] = true
	return true, nil
}

func (l *memoryLedger) Release(_ context.Context, id uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.claimed, id)
	l.released = append(l.released, id)
	return nil
}

type mockRoleCache struct {
	mu      sync.Mutex
	roles   map[uuid.UUID]domain.Role
	getErr  error
	setCall int
}

func newMockRoleCache() *mockRoleCache {
	return &mockRoleCache{roles: make(map[uuid.UUID]domain.Role)}
}

func (c *mockRoleCache) Get(_ context.Context, id uuid.UUID) (domain.Role, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return domain.RoleUndefined, false, c.getErr
	}
	role, ok := c.roles[id]
	return role, ok, nil
}

func (c *mockRoleCache) Set(_ context.Context, id uuid.UUID, role domain.Role) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roles[id] = role
	c.setCall++
	return nil
}

func (c *mockRoleCache) Invalidate(_ context.Context, id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.roles, id)
	return nil
}

type publishedRole struct {
	userID uuid.UUID
	role   domain.Role
}

type mockRoleEvents struct {
	mu        sync.Mutex
	published []publishedRole
	publishFn func(ctx context.Context, id uuid.UUID, role domain.Role) error
	watchFn   func(id uuid.UUID) (<-chan domain.Role, func())
}

func (e *mockRoleEvents) PublishRoleResolved(ctx context.Context, id uuid.UUID, role domain.Role) error {
	e.mu.Lock()
	e.published = append(e.published, publishedRole{id, role})
	e.mu.Unlock()
	if e.publishFn != nil {
		return e.publishFn(ctx, id, role)
	}
	return nil
}

func (e *mockRoleEvents) Watch(id uuid.UUID) (<-chan domain.Role, func()) {
	if e.watchFn != nil {
		return e.watchFn(id)
	}
	return make(chan domain.Role), func() {}
}

func (e *mockRoleEvents) events() []publishedRole {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]publishedRole(nil), e.published...)
}

type mockPublisher struct {
	mu        sync.Mutex
	published []domain.Message
	err       error
}

func (p *mockPublisher) PublishMessage(_ context.Context, m domain.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, m)
	return p.err
}

type mockLeader struct {
	mu          sync.Mutex
	acquire     bool
	acquireErr  error
	renewErr    error
	acquired    int
	renewed     int
	releasedCnt int
}

func (l *mockLeader) TryAcquire(context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.acquired++
	return l.acquire, l.acquireErr
}

func (l *mockLeader) Renew(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.renewed++
	return l.renewErr
}

func (l *mockLeader) Release(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.releasedCnt++
	return nil
}

func (l *mockLeader) RenewInterval() time.Duration {
	return testLeaseRenewal
}

func (l *mockLeader) setRenewErr(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.renewErr = err
}

func (l *mockLeader) counts() (acquired, renewed, released int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.acquired, l.renewed, l.releasedCnt
}

// staticRoles is a RoleSource with fixed answers.
type staticRoles map[uuid.UUID]domain.Role

func (s staticRoles) LookupRole(_ context.Context, id uuid.UUID) (domain.Role, error) {
	return s[id], nil
}

func (s staticRoles) WatchRole(uuid.UUID) (<-chan domain.Role, func()) {
	return nil, func() {}
}
