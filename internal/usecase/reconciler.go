package usecase

import (
	"context"
	"time"

	"github.com/vitos/futures_signal_bot/internal/domain"
	"go.uber.org/zap"
)

// PositionSign is the reconciliation target: the sign the live
// position's quantity must reach.
type PositionSign int

const (
	SignZero PositionSign = iota
	SignPositive
	SignNegative
)

func (s PositionSign) matches(amt float64) bool {
	switch s {
	case SignPositive:
		return amt > 0
	case SignNegative:
		return amt < 0
	}
	return amt == 0
}

// Reconciler waits for the exchange's position state to converge on an
// expected sign. Market orders are asynchronous relative to the submit
// call, so dependent orders must not be issued before convergence.
type Reconciler struct {
	gateway domain.Gateway
	logger  *zap.Logger
}

func NewReconciler(gateway domain.Gateway, logger *zap.Logger) *Reconciler {
	return &Reconciler{gateway: gateway, logger: logger}
}

// WaitForPosition polls the position at pollInterval until its signed
// quantity matches target, or timeout elapses. Returns false on
// timeout or context cancellation; the caller must treat that as a
// recoverable failure, never as success.
func (r *Reconciler) WaitForPosition(ctx context.Context, symbol string, target PositionSign, timeout, pollInterval time.Duration) bool {
	deadline := time.Now().Add(timeout)
	var last float64

	for {
		amt, err := r.gateway.FetchPositionAmount(ctx, symbol)
		if err != nil {
			r.logger.Warn("Position fetch failed during reconcile",
				zap.String("symbol", symbol),
				zap.Error(err))
		} else {
			last = amt
			if target.matches(amt) {
				return true
			}
		}

		if time.Now().Add(pollInterval).After(deadline) {
			r.logger.Warn("Position reconcile timed out",
				zap.String("symbol", symbol),
				zap.Int("target_sign", int(target)),
				zap.Float64("last_amount", last))
			return false
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(pollInterval):
		}
	}
}
