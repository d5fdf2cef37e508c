package internal

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/avdeev/mealmart/internal/model"
)

const (
	// eligibilityWindow re-arms after every processed customer; a customer
	// is picked up again only once it has fully elapsed.
	eligibilityWindow = 30 * 24 * time.Hour
	horizonDays       = 30

	startupDelay = 10 * time.Second
)

// Scheduler periodically scans active customers and materializes PENDING
// auto-orders over a rolling 30-day horizon.
type Scheduler struct {
	repo     IRepository
	clock    Clock
	logger   *zap.SugaredLogger
	interval time.Duration
	adminID  int
}

func NewScheduler(repo IRepository, clock Clock, logger *zap.SugaredLogger, interval time.Duration, adminID int) *Scheduler {
	return &Scheduler{repo: repo, clock: clock, logger: logger, interval: interval, adminID: adminID}
}

// Run ticks on the configured interval, plus once shortly after start.
// A run always goes to completion; stop is only consulted between runs.
func (s *Scheduler) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	initial := time.After(startupDelay)

	for {
		select {
		case <-initial:
			s.RunOnce(context.Background())
		case <-ticker.C:
			s.RunOnce(context.Background())
		case <-stop:
			return
		}
	}
}

// RunOnce processes every active customer. One customer's failure is logged
// and never aborts the rest of the run.
func (s *Scheduler) RunOnce(ctx context.Context) {
	started := time.Now()
	now := s.clock.Now()

	customers, err := s.repo.ListActiveCustomers(ctx)
	if err != nil {
		s.logger.Errorf("scheduler: list customers: %s", err)
		return
	}

	for _, cu := range customers {
		if !s.eligible(cu, now) {
			continue
		}

		if err = s.generate(ctx, cu, now); err != nil {
			SchedulerCustomerErrorsTotal.Inc()
			s.logger.Errorf("scheduler: customer %d: %s", cu.ID, err)
		}

		if err = s.repo.TouchLastCheck(ctx, cu.ID, now); err != nil {
			s.logger.Errorf("scheduler: touch customer %d: %s", cu.ID, err)
		}
	}

	SchedulerRunsTotal.Inc()
	SchedulerRunDuration.Observe(time.Since(started).Seconds())
}

// eligible holds when 30 days have passed since creation OR since the last
// scheduler check. Either condition alone is sufficient.
func (s *Scheduler) eligible(cu model.Customer, now time.Time) bool {
	if now.Sub(cu.CreatedAt) >= eligibilityWindow {
		return true
	}
	if cu.LastCheckAt != nil && now.Sub(*cu.LastCheckAt) >= eligibilityWindow {
		return true
	}
	return false
}

func (s *Scheduler) generate(ctx context.Context, cu model.Customer, now time.Time) error {
	days := cu.DeliveryDays()
	failed := 0
	total := 0

	for i := 0; i < horizonDays; i++ {
		date := truncateToDay(now).AddDate(0, 0, i)
		if !days[weekdayIndex(date)] {
			continue
		}
		total++

		d := model.OrderDraft{
			CustomerID:    cu.ID,
			AdminID:       s.adminID,
			DeliveryDate:  &date,
			DeliveryTime:  randomDeliveryTime(),
			Quantity:      1,
			Calories:      cu.Calories,
			PaymentStatus: model.PaymentStatusUnpaid,
			PaymentMethod: model.PaymentMethodCash,
			Status:        model.OrderStatusPending,
		}

		if _, err := s.repo.CreateOrder(ctx, d); err != nil {
			failed++
			s.logger.Errorf("scheduler: order for customer %d on %s: %s", cu.ID, date.Format("2006-01-02"), err)
			continue
		}
		SchedulerOrdersCreatedTotal.Inc()
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d orders failed", failed, total)
	}
	return nil
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// weekdayIndex maps time.Weekday to the Monday-first flag layout.
func weekdayIndex(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 6
	}
	return wd - 1
}

// randomDeliveryTime picks a slot inside the 11:00-14:00 delivery band.
func randomDeliveryTime() string {
	h := 11 + rand.Intn(3)
	m := rand.Intn(60)
	return fmt.Sprintf("%02d:%02d", h, m)
}
