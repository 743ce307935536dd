// Package posting moves a transfer through its lifecycle and writes the
// matching ledger entries in the same unit of work.
package posting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/congo-pay/merchant_ledger/internal/account"
	"github.com/congo-pay/merchant_ledger/internal/ledger"
	"github.com/congo-pay/merchant_ledger/internal/logging"
	"github.com/congo-pay/merchant_ledger/internal/money"
	"github.com/congo-pay/merchant_ledger/internal/notification"
	"github.com/congo-pay/merchant_ledger/internal/transfer"
)

var (
	// ErrInvalidAccount indicates the transfer references an account that no longer exists.
	ErrInvalidAccount = errors.New("invalid account")

	// ErrCurrencyMismatch indicates an account's currency differs from the transfer's.
	ErrCurrencyMismatch = errors.New("currency mismatch")
)

// Action names a transition other than posting.
type Action string

const (
	ActionFail    Action = "fail"
	ActionCancel  Action = "cancel"
	ActionReverse Action = "reverse"
)

// Policy decides whether the caller in ctx may apply action to t.
type Policy interface {
	Authorize(ctx context.Context, action Action, t transfer.Transfer) error
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(ctx context.Context, action Action, t transfer.Transfer) error

// Authorize calls f.
func (f PolicyFunc) Authorize(ctx context.Context, action Action, t transfer.Transfer) error {
	return f(ctx, action, t)
}

// AllowAll permits every action.
var AllowAll Policy = PolicyFunc(func(context.Context, Action, transfer.Transfer) error { return nil })

// Engine applies transfer transitions atomically.
type Engine struct {
	store        Store
	policy       Policy
	notifier     notification.Notifier
	logger       *slog.Logger
	now          func() time.Time
	beforeCommit func(transfer.Transfer) error
}

// Option customises an Engine.
type Option func(*Engine)

// WithPolicy sets the policy consulted by Fail, Cancel and Reverse.
func WithPolicy(p Policy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithNotifier publishes an event after every committed transition.
func WithNotifier(n notification.Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithBeforeCommit runs hook after all writes of a unit of work and before it
// commits. A non-nil error aborts the unit of work.
func WithBeforeCommit(hook func(transfer.Transfer) error) Option {
	return func(e *Engine) { e.beforeCommit = hook }
}

// NewEngine builds a posting engine over store.
func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		policy: AllowAll,
		logger: logging.Discard(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Post moves a pending transfer to posted, debiting the source and crediting
// the destination. Concurrent posts of one transfer serialize on its lock;
// the loser observes posted and gets ErrInvalidState.
func (e *Engine) Post(ctx context.Context, id uuid.UUID) (transfer.Transfer, error) {
	var posted transfer.Transfer
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		t, err := tx.LockTransfer(ctx, id)
		if err != nil {
			return err
		}
		if t.Status != transfer.StatusPending {
			return fmt.Errorf("%w: transfer is %s", transfer.ErrInvalidState, t.Status)
		}
		if err := e.checkAccounts(ctx, tx, t); err != nil {
			return err
		}

		now := e.now()
		if err := tx.Append(ctx,
			ledger.NewEntry(t.FromAccountID, &t.ID, ledger.Debit, t.Amount, t.Currency, now),
			ledger.NewEntry(t.ToAccountID, &t.ID, ledger.Credit, t.Amount, t.Currency, now),
		); err != nil {
			return fmt.Errorf("append entries: %w", err)
		}

		posted, err = e.transition(ctx, tx, t, transfer.StatusPosted, now, "")
		return err
	})
	if err != nil {
		return transfer.Transfer{}, err
	}
	e.committed(ctx, posted)
	return posted, nil
}

// Fail marks a pending transfer failed with reason. No entries are written.
func (e *Engine) Fail(ctx context.Context, id uuid.UUID, reason string) (transfer.Transfer, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "failed"
	}
	return e.settle(ctx, id, ActionFail, transfer.StatusFailed, reason)
}

// Cancel marks a pending transfer cancelled. No entries are written.
func (e *Engine) Cancel(ctx context.Context, id uuid.UUID) (transfer.Transfer, error) {
	return e.settle(ctx, id, ActionCancel, transfer.StatusCancelled, "")
}

// Reverse undoes a posted transfer by appending the inverse pair of entries
// and marking it reversed. The original entries are never touched.
func (e *Engine) Reverse(ctx context.Context, id uuid.UUID) (transfer.Transfer, error) {
	var reversed transfer.Transfer
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		t, err := tx.LockTransfer(ctx, id)
		if err != nil {
			return err
		}
		if err := e.policy.Authorize(ctx, ActionReverse, t); err != nil {
			return err
		}
		if !transfer.CanTransition(t.Status, transfer.StatusReversed) {
			return fmt.Errorf("%w: transfer is %s", transfer.ErrInvalidState, t.Status)
		}

		now := e.now()
		if err := tx.Append(ctx,
			ledger.NewEntry(t.FromAccountID, &t.ID, ledger.Credit, t.Amount, t.Currency, now),
			ledger.NewEntry(t.ToAccountID, &t.ID, ledger.Debit, t.Amount, t.Currency, now),
		); err != nil {
			return fmt.Errorf("append reversal entries: %w", err)
		}

		reversed, err = e.transition(ctx, tx, t, transfer.StatusReversed, now, "")
		return err
	})
	if err != nil {
		return transfer.Transfer{}, err
	}
	e.committed(ctx, reversed)
	return reversed, nil
}

func (e *Engine) settle(ctx context.Context, id uuid.UUID, action Action, to transfer.Status, reason string) (transfer.Transfer, error) {
	var out transfer.Transfer
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		t, err := tx.LockTransfer(ctx, id)
		if err != nil {
			return err
		}
		if err := e.policy.Authorize(ctx, action, t); err != nil {
			return err
		}
		out, err = e.transition(ctx, tx, t, to, e.now(), reason)
		return err
	})
	if err != nil {
		return transfer.Transfer{}, err
	}
	e.committed(ctx, out)
	return out, nil
}

// transition writes the new status and runs the pre-commit hook.
func (e *Engine) transition(ctx context.Context, tx Tx, t transfer.Transfer, to transfer.Status, now time.Time, reason string) (transfer.Transfer, error) {
	next, err := t.Transition(to, now, reason)
	if err != nil {
		return transfer.Transfer{}, err
	}
	if err := tx.UpdateTransfer(ctx, next); err != nil {
		return transfer.Transfer{}, fmt.Errorf("update transfer: %w", err)
	}
	if e.beforeCommit != nil {
		if err := e.beforeCommit(next); err != nil {
			return transfer.Transfer{}, err
		}
	}
	return next, nil
}

func (e *Engine) checkAccounts(ctx context.Context, tx Tx, t transfer.Transfer) error {
	for _, id := range []uuid.UUID{t.FromAccountID, t.ToAccountID} {
		acc, err := tx.Account(ctx, id)
		if errors.Is(err, account.ErrNotFound) {
			return fmt.Errorf("%w: account %s does not exist", ErrInvalidAccount, id)
		}
		if err != nil {
			return err
		}
		if acc.Currency != t.Currency {
			return fmt.Errorf("%w: account %s holds %s, transfer is %s", ErrCurrencyMismatch, id, acc.Currency, t.Currency)
		}
	}
	return nil
}

func (e *Engine) committed(ctx context.Context, t transfer.Transfer) {
	e.logger.Info("transfer transitioned",
		slog.String("transfer_id", t.ID.String()),
		slog.String("status", string(t.Status)),
		slog.String("amount", money.Format(t.Amount)),
		slog.String("currency", t.Currency),
	)
	if e.notifier == nil {
		return
	}
	event := notification.Event{
		Kind:          "transfer." + string(t.Status),
		TransferID:    t.ID,
		FromAccountID: t.FromAccountID,
		ToAccountID:   t.ToAccountID,
		Amount:        money.Format(t.Amount),
		Currency:      t.Currency,
		Status:        string(t.Status),
		Reason:        t.FailureReason,
		OccurredAt:    e.now().UTC(),
	}
	if err := e.notifier.Publish(ctx, event); err != nil {
		e.logger.Warn("publish transfer event failed",
			slog.String("transfer_id", t.ID.String()),
			slog.String("kind", event.Kind),
			slog.Any("error", err),
		)
	}
}
