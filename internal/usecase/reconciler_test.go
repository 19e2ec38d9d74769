package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/vitos/futures_signal_bot/internal/usecase"
	"go.uber.org/zap"
)

func TestWaitForPositionConverges(t *testing.T) {
	gw := &MockGateway{AmtSequence: []float64{-0.2, -0.2, 0}}
	rec := usecase.NewReconciler(gw, zap.NewNop())

	ok := rec.WaitForPosition(context.Background(), "ETHUSDT", usecase.SignZero,
		100*time.Millisecond, 2*time.Millisecond)
	if !ok {
		t.Fatal("expected convergence to flat")
	}
	if gw.PositionReads != 3 {
		t.Errorf("expected 3 position reads, got %d", gw.PositionReads)
	}
}

func TestWaitForPositionSignTarget(t *testing.T) {
	gw := &MockGateway{AmtSequence: []float64{0, 0.49}}
	rec := usecase.NewReconciler(gw, zap.NewNop())

	ok := rec.WaitForPosition(context.Background(), "ETHUSDT", usecase.SignPositive,
		100*time.Millisecond, 2*time.Millisecond)
	if !ok {
		t.Fatal("expected convergence to positive")
	}
}

func TestWaitForPositionTimesOut(t *testing.T) {
	gw := &MockGateway{PositionAmt: -0.2}
	rec := usecase.NewReconciler(gw, zap.NewNop())

	start := time.Now()
	ok := rec.WaitForPosition(context.Background(), "ETHUSDT", usecase.SignZero,
		50*time.Millisecond, 10*time.Millisecond)
	elapsed := time.Since(start)

	if ok {
		t.Fatal("expected timeout, got success")
	}
	if elapsed > 150*time.Millisecond {
		t.Errorf("reconcile overran its deadline: %v", elapsed)
	}
	// timeout/interval bounds the poll count
	if gw.PositionReads < 3 || gw.PositionReads > 7 {
		t.Errorf("unexpected poll count %d", gw.PositionReads)
	}
}

func TestWaitForPositionContextCancelled(t *testing.T) {
	gw := &MockGateway{PositionAmt: -0.2}
	rec := usecase.NewReconciler(gw, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok := rec.WaitForPosition(ctx, "ETHUSDT", usecase.SignZero,
		time.Second, 10*time.Millisecond)
	if ok {
		t.Fatal("expected failure on cancelled context")
	}
}
