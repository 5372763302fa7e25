package controller

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"hireflow-engine/internal/config"
	"hireflow-engine/internal/domain"
	"hireflow-engine/internal/events"
	"hireflow-engine/internal/mailbox"
	"hireflow-engine/internal/metrics"
	"hireflow-engine/internal/pipeline"
)

// State of the automation controller.
type State int32

const (
	StateStopped State = iota
	StateRunning
	StateMonitoring
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateMonitoring:
		return "monitoring"
	default:
		return "stopped"
	}
}

// Settings is the hot-updatable runtime view of the automation config.
type Settings struct {
	CheckInterval     time.Duration
	BatchSize         int
	BatchDelay        time.Duration
	MaxEmailsPerCheck int
	MaxEmptyChecks    int
	MonitorInterval   time.Duration
	MessageTimeout    time.Duration
	Lookback          time.Duration
	Filters           mailbox.Filters
}

func SettingsFromConfig(cfg config.Config) Settings {
	return Settings{
		CheckInterval:     cfg.Automation.CheckInterval(),
		BatchSize:         cfg.Automation.BatchSize,
		BatchDelay:        cfg.Automation.BatchDelay(),
		MaxEmailsPerCheck: cfg.Automation.MaxEmailsPerCheck,
		MaxEmptyChecks:    cfg.Automation.MaxConsecutiveEmptyChecks,
		MonitorInterval:   cfg.Automation.MonitorInterval(),
		MessageTimeout:    cfg.Automation.MessageTimeout(),
		Lookback:          cfg.Automation.Lookback(),
		Filters: mailbox.Filters{
			SubjectAny:        cfg.Filters.SubjectAny,
			RequireAttachment: cfg.Filters.RequireAttachment,
		},
	}
}

// AccountStore is what the controller needs from the datastore.
// store.DB satisfies it.
type AccountStore interface {
	ListAutomationAccounts(ctx context.Context) ([]domain.MailAccount, error)
	UpdateAccountLastChecked(ctx context.Context, id string, t time.Time) error
	IncrementAccountStats(ctx context.Context, id string, processed, imported int) error
	SetAccountLastError(ctx context.Context, id string, msg string) error
	FindApplicationByEmail(ctx context.Context, email string) (*domain.NormalizedApplication, error)
}

// SessionDialer opens a mail session for an account.
type SessionDialer interface {
	Dial(ctx context.Context, acct domain.MailAccount, password string) (pipeline.MailSession, error)
}

// IMAPDialer adapts mailbox.Dialer to the SessionDialer interface.
type IMAPDialer struct {
	d mailbox.Dialer
}

func NewIMAPDialer() IMAPDialer { return IMAPDialer{} }

func (i IMAPDialer) Dial(ctx context.Context, acct domain.MailAccount, password string) (pipeline.MailSession, error) {
	s, err := i.d.Dial(ctx, acct, password)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// PasswordBox decrypts stored account passwords. secrets.Box satisfies it.
type PasswordBox interface {
	Decrypt(sealed string) (string, error)
}

// MessageProcessor ingests one message. pipeline.Processor satisfies it.
type MessageProcessor interface {
	Process(ctx context.Context, sess pipeline.MailSession, acct domain.MailAccount, msg domain.EmailMessage) (bool, error)
}

// Controller owns the polling cadence: account discovery, per-account
// fan-out, batch throttling and the self-stopping state machine. One
// controller instance per process; there is no cross-process coordination.
type Controller struct {
	Accounts AccountStore
	Dialer   SessionDialer
	Secrets  PasswordBox
	Proc     MessageProcessor
	Log      *zap.Logger
	Hub      *events.Hub

	now func() time.Time

	mu          sync.Mutex
	state       State
	settings    Settings
	emptyCycles int
	cancel      context.CancelFunc
	done        chan struct{}
	reload      chan struct{}
	reg         *registry
}

func New(accounts AccountStore, dialer SessionDialer, secrets PasswordBox, proc MessageProcessor, log *zap.Logger, hub *events.Hub, settings Settings) *Controller {
	return &Controller{
		Accounts: accounts,
		Dialer:   dialer,
		Secrets:  secrets,
		Proc:     proc,
		Log:      log,
		Hub:      hub,
		settings: settings,
		reg:      newRegistry(),
	}
}

func (c *Controller) clock() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now().UTC()
}

// Start begins polling. The initial state depends on account eligibility:
// at least one automation-enabled active account means Running, otherwise
// the controller goes straight to Monitoring and waits for one to appear.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return errors.New("controller already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.reload = make(chan struct{}, 1)
	c.emptyCycles = 0
	c.mu.Unlock()

	accounts, err := c.Accounts.ListAutomationAccounts(runCtx)
	if err != nil {
		c.Log.Warn("[controller] account discovery failed at start", zap.Error(err))
	}
	if len(accounts) > 0 {
		c.setState(StateRunning)
	} else {
		c.setState(StateMonitoring)
	}

	go c.run(runCtx)
	return nil
}

// Stop cancels the loop and waits for it to drain, then clears the
// processing registry.
func (c *Controller) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel = nil
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	c.reg.clear()
	c.setState(StateStopped)
}

// ForceStop clears timers and the registry without waiting for in-flight
// work. Abandoned messages are safe to abandon: the unique email index
// makes redelivery a duplicate skip, never a double write.
func (c *Controller) ForceStop() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	c.reg.clear()
	c.setState(StateStopped)
}

// Status is a point-in-time snapshot for the status endpoint.
type Status struct {
	State          string   `json:"state"`
	ActiveAccounts int      `json:"active_accounts"`
	EmptyCycles    int      `json:"empty_cycles"`
	Settings       Settings `json:"-"`
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		State:          c.state.String(),
		ActiveAccounts: c.reg.size(),
		EmptyCycles:    c.emptyCycles,
		Settings:       c.settings,
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// UpdateSettings swaps the runtime settings. An interval change restarts
// the running timer so the new cadence applies immediately.
func (c *Controller) UpdateSettings(s Settings) {
	c.mu.Lock()
	changed := s.CheckInterval != c.settings.CheckInterval ||
		s.MonitorInterval != c.settings.MonitorInterval
	c.settings = s
	reload := c.reload
	c.mu.Unlock()

	if changed && reload != nil {
		select {
		case reload <- struct{}{}:
		default:
		}
	}
}

func (c *Controller) currentSettings() Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

func (c *Controller) run(ctx context.Context) {
	defer close(c.done)

	if c.State() == StateRunning {
		c.runCycle(ctx)
	}

	timer := time.NewTimer(c.tickInterval())
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.reload:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(c.tickInterval())
		case <-timer.C:
			switch c.State() {
			case StateRunning:
				c.runCycle(ctx)
			case StateMonitoring:
				c.monitorTick(ctx)
			}
			timer.Reset(c.tickInterval())
		}
	}
}

func (c *Controller) tickInterval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateMonitoring {
		return c.settings.MonitorInterval
	}
	return c.settings.CheckInterval
}

// monitorTick is the lightweight watch: once an eligible account shows up,
// the controller restarts full polling and checks it right away.
func (c *Controller) monitorTick(ctx context.Context) {
	accounts, err := c.Accounts.ListAutomationAccounts(ctx)
	if err != nil {
		c.Log.Warn("[controller] monitor tick discovery failed", zap.Error(err))
		return
	}
	if len(accounts) == 0 {
		return
	}
	c.Log.Info("[controller] eligible accounts found, resuming", zap.Int("accounts", len(accounts)))
	c.resetEmptyCycles()
	c.setState(StateRunning)
	c.runCycle(ctx)
}

func (c *Controller) noteEmptyCycle() {
	c.mu.Lock()
	c.emptyCycles++
	n, max := c.emptyCycles, c.settings.MaxEmptyChecks
	c.mu.Unlock()
	if n >= max {
		c.Log.Info("[controller] no eligible accounts, entering monitoring", zap.Int("empty_cycles", n))
		c.setState(StateMonitoring)
	}
}

func (c *Controller) resetEmptyCycles() {
	c.mu.Lock()
	c.emptyCycles = 0
	c.mu.Unlock()
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	old := c.state
	c.state = s
	c.mu.Unlock()

	metrics.ControllerState.Set(float64(s))
	c.Log.Info("[controller] state changed",
		zap.String("from", old.String()),
		zap.String("to", s.String()),
	)
	if c.Hub != nil {
		c.Hub.PublishEvent("", events.TypeStateChanged, map[string]any{
			"from": old.String(),
			"to":   s.String(),
		})
	}
}
