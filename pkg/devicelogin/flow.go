// Package devicelogin drives the browser-based login handshake: request an
// authorization token from the hub, open the approval URL, poll for the
// user's confirmation, then exchange the approved token for device and
// session credentials and apply the role gate. The pending token is
// persisted so an interrupted process resumes polling instead of forcing a
// fresh authorization.
package devicelogin

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fleetware/cardbridge/pkg/httperr"
	"github.com/fleetware/cardbridge/pkg/hub"
	"github.com/fleetware/cardbridge/pkg/store"
	"github.com/fleetware/cardbridge/pkg/telemetry"
)

// State is the externally observable flow state.
type State string

const (
	StateIdle                 State = "idle"
	StateAwaitingConfirmation State = "awaiting-confirmation"
	StateVerifying            State = "verifying"
	StateFinalizing           State = "finalizing"
	StateReady                State = "ready"
	StateFailed               State = "failed"
	StateExpired              State = "expired"
)

const (
	// DefaultPollInterval is the fixed delay between confirmation checks.
	DefaultPollInterval = 5 * time.Second
	// DefaultPollCeiling bounds the total wait for the user's confirmation,
	// measured from poll start.
	DefaultPollCeiling = 5 * time.Minute

	// roleEmployee is rejected by the role gate: drivers authenticate
	// through their own cards, never through the bridge.
	roleEmployee = "employee"
)

type Flow struct {
	hub     *hub.Client
	store   store.Store
	log     *zap.SugaredLogger
	metrics *telemetry.Metrics

	device   hub.DeviceInfo
	openURL  func(url string) error
	interval time.Duration
	ceiling  time.Duration

	mu     sync.Mutex
	state  State
	active bool
	cancel context.CancelFunc
}

type FlowOption func(*Flow)

// WithDeviceInfo sets the device metadata sent during registration.
func WithDeviceInfo(info hub.DeviceInfo) FlowOption {
	return func(f *Flow) { f.device = info }
}

// WithBrowserOpener replaces the system browser launcher.
func WithBrowserOpener(open func(url string) error) FlowOption {
	return func(f *Flow) { f.openURL = open }
}

// WithPolling overrides the poll interval and ceiling.
func WithPolling(interval, ceiling time.Duration) FlowOption {
	return func(f *Flow) {
		f.interval = interval
		f.ceiling = ceiling
	}
}

// WithMetrics attaches poll-tick counters.
func WithMetrics(metrics *telemetry.Metrics) FlowOption {
	return func(f *Flow) { f.metrics = metrics }
}

func New(hubClient *hub.Client, st store.Store, log *zap.SugaredLogger, opts ...FlowOption) *Flow {
	f := &Flow{
		hub:      hubClient,
		store:    st,
		log:      log,
		openURL:  OpenBrowser,
		interval: DefaultPollInterval,
		ceiling:  DefaultPollCeiling,
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// State returns the current flow state.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Flow) setState(s State) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}

// Cancel stops an active poll loop. The pending token stays persisted so a
// later Run resumes it.
func (f *Flow) Cancel() {
	f.mu.Lock()
	cancel := f.cancel
	f.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Run executes the flow to completion: it resumes a persisted pending token
// when one exists, otherwise it requests a new authorization, then polls
// until confirmation, expiry, or failure, and finally exchanges the
// approved token for credentials. Only one Run may be active at a time.
func (f *Flow) Run(ctx context.Context) (*hub.User, error) {
	f.mu.Lock()
	if f.active {
		f.mu.Unlock()
		return nil, ErrInProgress
	}
	ctx, cancel := context.WithCancel(ctx)
	f.active = true
	f.cancel = cancel
	f.mu.Unlock()

	defer func() {
		cancel()
		f.mu.Lock()
		f.active = false
		f.cancel = nil
		f.mu.Unlock()
	}()

	user, err := f.run(ctx)
	if err != nil {
		switch err {
		case ErrExpired:
			f.setState(StateExpired)
		default:
			f.setState(StateFailed)
		}
		return nil, err
	}
	f.setState(StateReady)
	return user, nil
}

func (f *Flow) run(ctx context.Context) (*hub.User, error) {
	token, err := f.pendingToken(ctx)
	if err != nil {
		return nil, err
	}

	f.setState(StateAwaitingConfirmation)
	if err := f.poll(ctx, token); err != nil {
		return nil, err
	}

	f.setState(StateFinalizing)
	return f.finalize(ctx, token)
}

// pendingToken resumes a persisted authorization attempt or starts a new
// one. The fresh token is persisted before the approval URL opens, so a
// crash between the two resumes cleanly.
func (f *Flow) pendingToken(ctx context.Context) (string, error) {
	creds, err := f.store.Load()
	if err != nil {
		return "", err
	}
	if creds.PendingAuthToken != "" {
		f.log.Debugw("resuming pending device authorization")
		return creds.PendingAuthToken, nil
	}

	auth, err := f.hub.RequestDeviceAuthorization(ctx)
	if err != nil {
		return "", &StartError{Err: err}
	}
	if auth.Token == "" || auth.URL == "" {
		return "", &StartError{Err: fmt.Errorf("response missing token or url")}
	}
	if err := f.store.Save(store.Credentials{PendingAuthToken: auth.Token}); err != nil {
		return "", err
	}
	if err := f.openURL(auth.URL); err != nil {
		f.log.Warnw("could not open browser, approve manually", "url", auth.URL, "error", err)
	}
	return auth.Token, nil
}

// poll checks the pending token on a fixed interval until the hub confirms
// it. 404 means the user has not confirmed yet. Any status other than 404
// or a success body aborts the flow. The ceiling is measured from poll
// start; on expiry the pending token is discarded.
func (f *Flow) poll(ctx context.Context, token string) error {
	deadline := time.Now().Add(f.ceiling)
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if time.Now().After(deadline) {
			if err := f.store.ClearPending(); err != nil {
				f.log.Warnw("could not discard expired pending token", "error", err)
			}
			return ErrExpired
		}

		f.metrics.AuthPollTick()
		f.setState(StateVerifying)
		result, err := f.hub.CheckDeviceAuthorization(ctx, token)
		if err != nil {
			if httperr.IsNotFound(err) {
				// Not confirmed yet, keep polling.
				f.setState(StateAwaitingConfirmation)
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &VerificationError{Err: err}
		}
		if result.Success {
			return nil
		}
		f.setState(StateAwaitingConfirmation)
	}
}

// finalize exchanges the approved token for a device credential, the device
// credential for a session, fetches the user and applies the role gate.
// Each successful derivation is persisted immediately so a crash mid-chain
// keeps already-valid upstream tokens.
func (f *Flow) finalize(ctx context.Context, token string) (*hub.User, error) {
	deviceToken, err := f.hub.RegisterDevice(ctx, token, f.device)
	if err != nil {
		return nil, fmt.Errorf("registering device: %w", err)
	}
	if err := f.store.Save(store.Credentials{DeviceToken: deviceToken}); err != nil {
		return nil, err
	}

	sessionToken, err := f.hub.CreateSession(ctx, deviceToken)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	if err := f.store.Save(store.Credentials{SessionToken: sessionToken}); err != nil {
		return nil, err
	}

	user, err := f.hub.Me(ctx, sessionToken)
	if err != nil {
		return nil, fmt.Errorf("fetching user: %w", err)
	}
	if user.Role == roleEmployee {
		// Hard business rule: clear everything except the bridge client
		// identifier and fail without retry.
		if err := f.store.Clear(); err != nil {
			f.log.Warnw("could not clear credentials after role rejection", "error", err)
		}
		return nil, &RoleNotAllowedError{Role: user.Role}
	}

	if err := f.store.ClearPending(); err != nil {
		f.log.Warnw("could not discard consumed pending token", "error", err)
	}
	f.log.Infow("login complete", "user", user.Email, "role", user.Role, "organization", user.OrganizationName())
	return user, nil
}
