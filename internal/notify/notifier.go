// Package notify tracks the lifecycle of a user-initiated deposit and clears
// each notification after a kind-specific delay.
package notify

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"stormdex/internal/metrics"
)

// Kind tags the notification state.
type Kind string

const (
	KindIdle    Kind = "idle"
	KindPending Kind = "pending"
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

const (
	DefaultSuccessTTL = 4 * time.Second
	DefaultPendingTTL = 15 * time.Second
	DefaultErrorTTL   = 10 * time.Second
)

// ErrInvalidAmount is returned for deposit amounts that are not positive decimals.
var ErrInvalidAmount = errors.New("invalid deposit amount")

// State is one notification value. Seq grows on every transition.
type State struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message,omitempty"`
	Cause   Cause  `json:"cause,omitempty"`
	Seq     uint64 `json:"seq"`
}

// Wallet submits a deposit and reports the transaction digest. The error text
// is the failure detail used for classification.
type Wallet interface {
	Deposit(ctx context.Context, amount decimal.Decimal) (string, error)
}

// Config sets how long each kind stays visible before reverting to idle.
type Config struct {
	SuccessTTL time.Duration
	PendingTTL time.Duration
	ErrorTTL   time.Duration
}

func (c Config) ttl(kind Kind) time.Duration {
	switch kind {
	case KindSuccess:
		return c.SuccessTTL
	case KindPending:
		return c.PendingTTL
	case KindError:
		return c.ErrorTTL
	default:
		return 0
	}
}

type Notifier struct {
	cfg     Config
	wallet  Wallet
	metrics *metrics.Metrics
	logger  *zap.Logger

	mu        sync.Mutex
	state     State
	timer     *time.Timer
	listeners []func(State)
	onSuccess []func(digest string)
}

// NewNotifier builds a Notifier. wallet may be nil, in which case every
// deposit settles as an error.
func NewNotifier(cfg Config, wallet Wallet, m *metrics.Metrics, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SuccessTTL <= 0 {
		cfg.SuccessTTL = DefaultSuccessTTL
	}
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = DefaultPendingTTL
	}
	if cfg.ErrorTTL <= 0 {
		cfg.ErrorTTL = DefaultErrorTTL
	}
	return &Notifier{
		cfg:     cfg,
		wallet:  wallet,
		metrics: m,
		logger:  logger,
		state:   State{Kind: KindIdle},
	}
}

func (n *Notifier) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Subscribe registers fn to receive every state transition.
func (n *Notifier) Subscribe(fn func(State)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.listeners = append(n.listeners, fn)
}

// OnSuccess registers fn to run after a deposit settles successfully.
func (n *Notifier) OnSuccess(fn func(digest string)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onSuccess = append(n.onSuccess, fn)
}

// Alert shows a transient error unrelated to a deposit.
func (n *Notifier) Alert(message string) {
	n.transition(KindError, message, "")
}

// Dismiss returns to idle immediately.
func (n *Notifier) Dismiss() {
	n.transition(KindIdle, "", "")
}

// SubmitDeposit moves to pending, hands the deposit to the wallet and settles
// on its outcome. A new submit supersedes whatever is currently shown.
func (n *Notifier) SubmitDeposit(ctx context.Context, amount string) (State, error) {
	value, err := decimal.NewFromString(amount)
	if err != nil || !value.IsPositive() {
		n.metrics.ObserveDeposit("invalid")
		st := n.transition(KindError, causeMessage(CauseWrongAmount, ""), CauseWrongAmount)
		return st, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}

	n.transition(KindPending, fmt.Sprintf("Depositing %s...", value.String()), "")

	if n.wallet == nil {
		err = errors.New("wallet not configured")
	}
	var digest string
	if err == nil {
		digest, err = n.wallet.Deposit(ctx, value)
	}
	if err != nil {
		cause, message := Classify(err.Error())
		n.metrics.ObserveDeposit("error")
		n.logger.Warn("deposit failed", zap.String("cause", string(cause)), zap.Error(err))
		return n.transition(KindError, message, cause), err
	}

	n.metrics.ObserveDeposit("ok")
	n.logger.Info("deposit confirmed", zap.String("digest", digest), zap.String("amount", value.String()))
	st := n.transition(KindSuccess, "Deposit confirmed: "+digest, "")

	n.mu.Lock()
	hooks := slices.Clone(n.onSuccess)
	n.mu.Unlock()
	for _, fn := range hooks {
		fn(digest)
	}
	return st, nil
}

func (n *Notifier) transition(kind Kind, message string, cause Cause) State {
	n.mu.Lock()
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	n.state = State{Kind: kind, Message: message, Cause: cause, Seq: n.state.Seq + 1}
	st := n.state
	if ttl := n.cfg.ttl(kind); ttl > 0 {
		seq := st.Seq
		n.timer = time.AfterFunc(ttl, func() { n.expire(seq) })
	}
	listeners := slices.Clone(n.listeners)
	n.mu.Unlock()

	for _, fn := range listeners {
		fn(st)
	}
	return st
}

// expire reverts to idle unless another transition happened since seq.
func (n *Notifier) expire(seq uint64) {
	n.mu.Lock()
	if n.state.Seq != seq {
		n.mu.Unlock()
		return
	}
	n.timer = nil
	n.state = State{Kind: KindIdle, Seq: seq + 1}
	st := n.state
	listeners := slices.Clone(n.listeners)
	n.mu.Unlock()

	for _, fn := range listeners {
		fn(st)
	}
}
