package access

import (
	"log/slog"
	"sync"
	"time"

	"github.com/Abdulah-eng/newhitsapp-sub002/internal/domain"
	"github.com/jonboulle/clockwork"
)

// DefaultGracePeriod bounds how long an undefined role is waited for.
const DefaultGracePeriod = 3 * time.Second

// State is the resolver's position in the mount lifecycle. Redirecting is
// terminal.
type State int

const (
	AwaitingSession State = iota
	AwaitingRole
	Authorized
	Redirecting
)

func (s State) String() string {
	switch s {
	case AwaitingSession:
		return "awaiting_session"
	case AwaitingRole:
		return "awaiting_role"
	case Authorized:
		return "authorized"
	case Redirecting:
		return "redirecting"
	default:
		return "unknown"
	}
}

// Navigator performs the single navigation a Resolver may issue.
// Replace must not leave a back-history entry.
type Navigator interface {
	GoTo(path string)
	Replace(path string)
}

// Inputs is one observation of the mount's collaborators.
type Inputs struct {
	Session        *domain.Identity
	SessionLoading bool
	Role           domain.Role
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithGracePeriod overrides DefaultGracePeriod. Non-positive values are ignored.
func WithGracePeriod(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.grace = d
		}
	}
}

type navKind int

const (
	navNone navKind = iota
	navGoTo
	navReplace
)

// action is what an evaluation asks for once mu is released. Navigation
// always happens before Done is closed.
type action struct {
	kind   navKind
	path   string
	settle bool
}

// Resolver is the per-mount state machine. All evaluations, including the
// grace timer's re-check, are serialized on mu. The redirected flag belongs
// to this instance only.
type Resolver struct {
	required domain.Role
	nav      Navigator
	clock    clockwork.Clock
	grace    time.Duration

	mu           sync.Mutex
	state        State
	last         Inputs
	err          error
	target       string
	timer        clockwork.Timer
	graceStarted bool
	redirected   bool
	closed       bool
	settled      bool
	done         chan struct{}
}

// NewResolver creates the resolver for one mount of a page that requires
// the required role. Every navigation goes through nav.
func NewResolver(required domain.Role, nav Navigator, clock clockwork.Clock, opts ...Option) *Resolver {
	r := &Resolver{
		required: required,
		nav:      nav,
		clock:    clock,
		grace:    DefaultGracePeriod,
		state:    AwaitingSession,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Update evaluates a new observation and returns the resulting state.
// Once Redirecting, further updates are ignored.
func (r *Resolver) Update(in Inputs) State {
	r.mu.Lock()
	act := r.evaluate(in)
	state := r.state
	r.mu.Unlock()

	r.apply(act)
	return state
}

func (r *Resolver) evaluate(in Inputs) action {
	if r.closed || r.redirected {
		return action{}
	}
	r.last = in

	if in.SessionLoading {
		return action{}
	}

	if in.Session == nil {
		return r.redirect(navGoTo, LoginPath, ErrSessionUnavailable)
	}

	if !in.Role.Defined() {
		if r.state == Authorized {
			// A reload of an already authorized role is not a reason to leave.
			return action{}
		}
		r.state = AwaitingRole
		r.err = ErrRoleIndeterminate
		r.startGrace()
		return action{}
	}

	r.stopGrace()
	if in.Role == r.required {
		r.state = Authorized
		r.err = nil
		return action{settle: true}
	}
	return r.redirect(navReplace, Target(in.Session, in.Role), ErrRoleMismatch)
}

func (r *Resolver) startGrace() {
	if r.graceStarted {
		return
	}
	r.graceStarted = true
	r.timer = r.clock.AfterFunc(r.grace, r.graceExpired)
}

func (r *Resolver) stopGrace() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

func (r *Resolver) graceExpired() {
	r.mu.Lock()
	if r.closed || r.redirected || r.state != AwaitingRole || r.last.Role.Defined() {
		r.mu.Unlock()
		return
	}
	r.timer = nil
	var userID string
	if r.last.Session != nil {
		userID = r.last.Session.UserID.String()
	}
	act := r.redirect(navGoTo, LoginPath, ErrRoleLookupFailed)
	r.mu.Unlock()

	slog.Warn("Role lookup did not complete within grace period",
		"user_id", userID,
		"required_role", r.required.String(),
		"grace_period", r.grace.String())
	r.apply(act)
}

// redirect enters the terminal state. Caller holds mu.
func (r *Resolver) redirect(kind navKind, path string, cause error) action {
	r.stopGrace()
	r.state = Redirecting
	r.redirected = true
	r.target = path
	r.err = cause
	return action{kind: kind, path: path, settle: true}
}

// apply performs act without holding mu: the navigator runs first, then
// Done is closed, so a waiter on Done always observes the navigation.
func (r *Resolver) apply(act action) {
	switch act.kind {
	case navGoTo:
		r.nav.GoTo(act.path)
	case navReplace:
		r.nav.Replace(act.path)
	}
	if act.settle {
		r.mu.Lock()
		if !r.settled {
			r.settled = true
			close(r.done)
		}
		r.mu.Unlock()
	}
}

// State returns the current state.
func (r *Resolver) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Err returns the classification of the current state: nil when Authorized
// or still awaiting the session.
func (r *Resolver) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Target returns the redirect destination once Redirecting, "" otherwise.
func (r *Resolver) Target() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.target
}

// Done is closed the first time the resolver reaches Authorized or Redirecting.
// It is not closed by Close.
func (r *Resolver) Done() <-chan struct{} {
	return r.done
}

// Close unmounts the resolver: the grace timer is cancelled and no
// navigation is issued afterwards.
func (r *Resolver) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.stopGrace()
}
