// Package reconcile periodically compares the ledger's booked token float
// with what the token actually holds for the ledger account.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"

	"github.com/Ashenafi-pixel/prize-draw-ledger/metrics"
)

// Source is the ledger side of the comparison.
type Source interface {
	FloatAndBalance(ctx context.Context) (float, balance uint64, err error)
}

// Result of one check. At most one of Surplus and Shortfall is non-zero.
// A shortfall means the account holds fewer tokens than the float promises.
type Result struct {
	Float     uint64 `json:"float"`
	Balance   uint64 `json:"balance"`
	Surplus   uint64 `json:"surplus"`
	Shortfall uint64 `json:"shortfall"`
}

func (r Result) Drift() float64 {
	if r.Shortfall > 0 {
		return -float64(r.Shortfall)
	}
	return float64(r.Surplus)
}

type Reconciler struct {
	src     Source
	metrics *metrics.Metrics
	log     logrus.FieldLogger
	timeout time.Duration
	sched   gocron.Scheduler
}

func New(src Source, m *metrics.Metrics, log logrus.FieldLogger) *Reconciler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Reconciler{src: src, metrics: m, log: log.WithField("component", "reconcile"), timeout: 10 * time.Second}
}

// Check runs one comparison.
func (r *Reconciler) Check(ctx context.Context) (Result, error) {
	float, balance, err := r.src.FloatAndBalance(ctx)
	if err != nil {
		r.metrics.Reconcile(0, err)
		return Result{}, fmt.Errorf("reconcile: %w", err)
	}
	res := Result{Float: float, Balance: balance}
	if balance >= float {
		res.Surplus = balance - float
	} else {
		res.Shortfall = float - balance
	}
	r.metrics.Reconcile(res.Drift(), nil)

	entry := r.log.WithFields(logrus.Fields{"float": float, "balance": balance})
	switch {
	case res.Shortfall > 0:
		entry.WithField("shortfall", res.Shortfall).Warn("token balance below booked float")
	case res.Surplus > 0:
		entry.WithField("surplus", res.Surplus).Info("token balance above booked float")
	default:
		entry.Debug("float reconciled")
	}
	return res, nil
}

// Start schedules Check every interval until Stop.
func (r *Reconciler) Start(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("reconcile: interval must be positive, got %s", interval)
	}
	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
			defer cancel()
			if _, err := r.Check(ctx); err != nil {
				r.log.WithError(err).Error("reconcile run failed")
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return err
	}
	sched.Start()
	r.sched = sched
	return nil
}

func (r *Reconciler) Stop() error {
	if r.sched == nil {
		return nil
	}
	return r.sched.Shutdown()
}
