package test

import (
	"context"
	"errors"
	"time"

	"github.com/golang/mock/gomock"
	"go.uber.org/zap"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/avdeev/mealmart/internal"
	mock_internal "github.com/avdeev/mealmart/internal/mock"
	"github.com/avdeev/mealmart/internal/model"
)

const testAdminID = 1

var _ = Describe("Scheduler", func() {
	var (
		sch   *internal.Scheduler
		rep   *mock_internal.MockIRepository
		clock *internal.FakeClock
		ctrl  *gomock.Controller
	)

	// Monday
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	BeforeEach(func() {
		ctrl = gomock.NewController(GinkgoT())

		logger, err := zap.NewDevelopment()
		Expect(err).ShouldNot(HaveOccurred())

		rep = mock_internal.NewMockIRepository(ctrl)
		clock = internal.NewFakeClock(now)

		sch = internal.NewScheduler(rep, clock, logger.Sugar(), time.Hour, testAdminID)
	})
	AfterEach(func() {
		ctrl.Finish()
	})
	Context("Scheduler runs", func() {
		It("materializes 30 daily orders for a customer created 31 days ago", func() {
			ctx := context.Background()
			cu := model.Customer{
				ID:        3,
				Calories:  1800,
				Pattern:   model.PatternDaily,
				Active:    true,
				CreatedAt: now.AddDate(0, 0, -31),
			}

			rep.EXPECT().ListActiveCustomers(ctx).Return([]model.Customer{cu}, nil)

			number := int64(100)
			var dates []time.Time
			rep.EXPECT().CreateOrder(ctx, gomock.Any()).DoAndReturn(
				func(_ context.Context, d model.OrderDraft) (model.Order, error) {
					Expect(d.Status).Should(Equal(model.OrderStatusPending))
					Expect(d.PaymentStatus).Should(Equal(model.PaymentStatusUnpaid))
					Expect(d.PaymentMethod).Should(Equal(model.PaymentMethodCash))
					Expect(d.Prepaid).Should(BeFalse())
					Expect(d.CustomerID).Should(Equal(cu.ID))
					Expect(d.AdminID).Should(Equal(testAdminID))
					Expect(d.Calories).Should(Equal(cu.Calories))
					Expect(d.DeliveryDate).ShouldNot(BeNil())
					Expect(d.DeliveryTime >= "11:00" && d.DeliveryTime < "14:00").Should(BeTrue())

					dates = append(dates, *d.DeliveryDate)
					number++
					return model.Order{ID: int(number), Number: number, Status: d.Status}, nil
				}).Times(30)
			rep.EXPECT().TouchLastCheck(ctx, cu.ID, now).Return(nil)

			sch.RunOnce(ctx)

			Expect(number).Should(Equal(int64(130)))
			Expect(dates).Should(HaveLen(30))
			for i, d := range dates {
				Expect(d).Should(Equal(time.Date(2024, 1, 1+i, 0, 0, 0, 0, time.UTC)))
			}
		})
		It("materializes only qualifying weekdays for every_other_day_even", func() {
			ctx := context.Background()
			cu := model.Customer{
				ID:        4,
				Pattern:   model.PatternEveryOtherDayEven,
				Active:    true,
				CreatedAt: now.AddDate(0, 0, -31),
			}

			rep.EXPECT().ListActiveCustomers(ctx).Return([]model.Customer{cu}, nil)

			// Jan 1 2024 is a Monday; Tue/Thu/Sat in [Jan 1, Jan 30] is 13 dates
			rep.EXPECT().CreateOrder(ctx, gomock.Any()).DoAndReturn(
				func(_ context.Context, d model.OrderDraft) (model.Order, error) {
					wd := d.DeliveryDate.Weekday()
					Expect(wd == time.Tuesday || wd == time.Thursday || wd == time.Saturday).Should(BeTrue())
					return model.Order{ID: 1, Number: 1}, nil
				}).Times(13)
			rep.EXPECT().TouchLastCheck(ctx, cu.ID, now).Return(nil)

			sch.RunOnce(ctx)
		})
		It("skips a customer inside its eligibility window", func() {
			ctx := context.Background()
			checked := now.AddDate(0, 0, -5)
			cu := model.Customer{
				ID:          5,
				Pattern:     model.PatternDaily,
				Active:      true,
				CreatedAt:   now.AddDate(0, 0, -10),
				LastCheckAt: &checked,
			}

			rep.EXPECT().ListActiveCustomers(ctx).Return([]model.Customer{cu}, nil)

			sch.RunOnce(ctx)
		})
		It("treats a stale last check alone as sufficient", func() {
			ctx := context.Background()
			checked := now.AddDate(0, 0, -31)
			cu := model.Customer{
				ID:          6,
				Active:      true,
				CreatedAt:   now.AddDate(0, 0, -5),
				LastCheckAt: &checked,
			}

			rep.EXPECT().ListActiveCustomers(ctx).Return([]model.Customer{cu}, nil)
			// no delivery days selected: eligible, zero orders, window re-armed
			rep.EXPECT().TouchLastCheck(ctx, cu.ID, now).Return(nil)

			sch.RunOnce(ctx)
		})
		It("isolates one customer's failure from the rest of the run", func() {
			ctx := context.Background()
			broken := model.Customer{ID: 7, Pattern: model.PatternDaily, Active: true, CreatedAt: now.AddDate(0, 0, -31)}
			healthy := model.Customer{ID: 8, Pattern: model.PatternDaily, Active: true, CreatedAt: now.AddDate(0, 0, -31)}

			rep.EXPECT().ListActiveCustomers(ctx).Return([]model.Customer{broken, healthy}, nil)

			rep.EXPECT().CreateOrder(ctx, gomock.Any()).DoAndReturn(
				func(_ context.Context, d model.OrderDraft) (model.Order, error) {
					if d.CustomerID == broken.ID {
						return model.Order{}, errors.New("some error")
					}
					return model.Order{ID: 1, Number: 1}, nil
				}).Times(60)
			rep.EXPECT().TouchLastCheck(ctx, broken.ID, now).Return(nil)
			rep.EXPECT().TouchLastCheck(ctx, healthy.ID, now).Return(nil)

			sch.RunOnce(ctx)
		})
		It("aborts quietly when customers cannot be listed", func() {
			ctx := context.Background()

			rep.EXPECT().ListActiveCustomers(ctx).Return(nil, errors.New("some error"))

			sch.RunOnce(ctx)
		})
	})
})
