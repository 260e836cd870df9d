package rewards

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"linkrewards/internal/models"
	"linkrewards/internal/notify"
)

// Tiers are the cash-out options, cheapest first.
var Tiers = [...]models.RewardTier{
	{Amount: 5, Points: 5000},
	{Amount: 10, Points: 9500},
	{Amount: 20, Points: 18000},
	{Amount: 50, Points: 42500},
}

const (
	insufficientMessage = "Not enough points for this reward"
	failureMessage      = "Failed to process cashout"
)

var (
	ErrUnknownTier        = errors.New("unknown reward tier")
	ErrInsufficientPoints = errors.New("not enough points for this reward")
	ErrClosed             = errors.New("rewards closed")
)

// Debiter writes the new balance back to the users row.
type Debiter interface {
	SetPoints(ctx context.Context, userID string, points int64) error
	SetPointsIfUnchanged(ctx context.Context, userID string, expected, points int64) error
}

// Option is a tier as offered to a particular user.
type Option struct {
	models.RewardTier
	Eligible bool `json:"eligible"`
}

// Flow is an open rewards dialog for one user. The balance it checks against
// is the one the caller knew when opening it.
type Flow struct {
	user     models.User
	debiter  Debiter
	notifier *notify.Notifier
	logger   *slog.Logger
	// guard makes the debit conditional on the stored balance still being
	// the locally known one. Without it a concurrent award can be overwritten.
	guard bool

	mu     sync.Mutex
	closed bool
}

// Open starts a rewards dialog for user.
func Open(user models.User, debiter Debiter, notifier *notify.Notifier, logger *slog.Logger, guard bool) *Flow {
	if logger == nil {
		logger = slog.Default()
	}
	return &Flow{
		user:     user,
		debiter:  debiter,
		notifier: notifier,
		logger:   logger.With(slog.String("user_id", user.ID)),
		guard:    guard,
	}
}

// Balance is the locally known point balance.
func (f *Flow) Balance() int64 {
	return f.user.Points
}

// Options lists every tier and whether the balance covers it.
func (f *Flow) Options() []Option {
	out := make([]Option, 0, len(Tiers))
	for _, tier := range Tiers {
		out = append(out, Option{RewardTier: tier, Eligible: f.user.Points >= tier.Points})
	}
	return out
}

// Closed reports whether the dialog was dismissed or completed.
func (f *Flow) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Close dismisses the dialog.
func (f *Flow) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

// Redeem submits a cash-out request for the tier paying amount. Only the
// point debit happens here; the payout itself is handled outside this system.
func (f *Flow) Redeem(ctx context.Context, amount int64) error {
	if f.Closed() {
		return ErrClosed
	}
	tier, ok := TierFor(amount)
	if !ok {
		return fmt.Errorf("%w: $%d", ErrUnknownTier, amount)
	}
	if f.user.Points < tier.Points {
		f.notifier.Error(insufficientMessage)
		return ErrInsufficientPoints
	}

	remaining := f.user.Points - tier.Points
	var err error
	if f.guard {
		err = f.debiter.SetPointsIfUnchanged(ctx, f.user.ID, f.user.Points, remaining)
	} else {
		err = f.debiter.SetPoints(ctx, f.user.ID, remaining)
	}
	if err != nil {
		f.logger.Error("cashout debit", slog.Int64("amount", amount), slog.String("error", err.Error()))
		f.notifier.Error(failureMessage)
		return fmt.Errorf("debit points: %w", err)
	}

	f.logger.Info("cashout requested", slog.Int64("amount", amount), slog.Int64("remaining", remaining))
	f.notifier.Success(fmt.Sprintf("Cashout request for $%d submitted successfully!", amount))
	f.Close()
	return nil
}

// TierFor looks a tier up by its cash amount.
func TierFor(amount int64) (models.RewardTier, bool) {
	for _, tier := range Tiers {
		if tier.Amount == amount {
			return tier, true
		}
	}
	return models.RewardTier{}, false
}
