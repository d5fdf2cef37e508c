package test

import (
	"context"
	"errors"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/avdeev/mealmart/internal"
	mock_internal "github.com/avdeev/mealmart/internal/mock"
	"github.com/avdeev/mealmart/internal/model"
)

var _ = Describe("Service", func() {
	var (
		srv   internal.IService
		rep   *mock_internal.MockIRepository
		dsp   *mock_internal.MockIDispatcher
		clock *internal.FakeClock
		ctrl  *gomock.Controller
	)
	BeforeEach(func() {
		ctrl = gomock.NewController(GinkgoT())

		logger, err := zap.NewDevelopment()
		Expect(err).ShouldNot(HaveOccurred())

		rep = mock_internal.NewMockIRepository(ctrl)
		dsp = mock_internal.NewMockIDispatcher(ctrl)
		clock = internal.NewFakeClock(time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC))

		srv = internal.NewService(rep, dsp, clock, logger.Sugar())
	})
	AfterEach(func() {
		ctrl.Finish()
	})
	Context("Lifecycle", func() {
		courier := model.Actor{ID: 7, Role: model.RoleCourier}
		admin := model.Actor{ID: 1, Role: model.RoleAdmin}

		It("StartDelivery assigns the courier", func() {
			ctx := context.Background()
			order := model.Order{ID: 1, Number: 100, Status: model.OrderStatusPending, PaymentStatus: model.PaymentStatusUnpaid, PaymentMethod: model.PaymentMethodCash}

			rep.EXPECT().GetOrderByNumber(ctx, order.Number).Return(order, nil)
			rep.EXPECT().ApplyTransition(ctx, model.TransitionUpdate{
				Number:     order.Number,
				FromStatus: model.OrderStatusPending,
				ToStatus:   model.OrderStatusInDelivery,
				CourierID:  courier.ID,
			}).Return(nil)

			got, err := srv.StartDelivery(ctx, order.Number, courier)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(got.Status).Should(Equal(model.OrderStatusInDelivery))
			Expect(got.CourierID).Should(Equal(courier.ID))
		})
		It("StartDelivery on a delivered order fails with invalid state", func() {
			ctx := context.Background()
			order := model.Order{ID: 1, Number: 100, Status: model.OrderStatusDelivered, PaymentMethod: model.PaymentMethodCash}

			rep.EXPECT().GetOrderByNumber(ctx, order.Number).Return(order, nil)

			_, err := srv.StartDelivery(ctx, order.Number, courier)
			Expect(err).Should(HaveOccurred())
			Expect(errors.Is(err, internal.ErrInvalidState)).Should(BeTrue())
		})
		It("CompleteDelivery by a non-courier fails with forbidden", func() {
			ctx := context.Background()

			_, err := srv.CompleteDelivery(ctx, 100, admin)
			Expect(err).Should(HaveOccurred())
			Expect(errors.Is(err, internal.ErrForbidden)).Should(BeTrue())
		})
		It("CompleteDelivery with cash payment queues a purchase dispatch", func() {
			ctx := context.Background()
			now := clock.Now()
			order := model.Order{ID: 1, Number: 100, Status: model.OrderStatusInDelivery, PaymentStatus: model.PaymentStatusUnpaid, PaymentMethod: model.PaymentMethodCash}

			rep.EXPECT().GetOrderByNumber(ctx, order.Number).Return(order, nil)
			rep.EXPECT().ApplyTransition(ctx, model.TransitionUpdate{
				Number:      order.Number,
				FromStatus:  model.OrderStatusInDelivery,
				ToStatus:    model.OrderStatusDelivered,
				DeliveredAt: &now,
			}).Return(nil)
			dsp.EXPECT().SendToQueue(ctx, gomock.Any())

			got, err := srv.CompleteDelivery(ctx, order.Number, courier)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(got.Status).Should(Equal(model.OrderStatusDelivered))
			Expect(got.DeliveredAt).ShouldNot(BeNil())
		})
		It("CompleteDelivery with unpaid card payment does not queue a dispatch", func() {
			ctx := context.Background()
			order := model.Order{ID: 1, Number: 100, Status: model.OrderStatusInDelivery, PaymentStatus: model.PaymentStatusUnpaid, PaymentMethod: model.PaymentMethodCard}

			rep.EXPECT().GetOrderByNumber(ctx, order.Number).Return(order, nil)
			rep.EXPECT().ApplyTransition(ctx, gomock.Any()).Return(nil)

			_, err := srv.CompleteDelivery(ctx, order.Number, courier)
			Expect(err).ShouldNot(HaveOccurred())
		})
		It("PauseDelivery queues a dispatch when the order is already paid", func() {
			ctx := context.Background()
			order := model.Order{ID: 1, Number: 100, Status: model.OrderStatusInDelivery, PaymentStatus: model.PaymentStatusPaid, PaymentMethod: model.PaymentMethodCard}

			rep.EXPECT().GetOrderByNumber(ctx, order.Number).Return(order, nil)
			rep.EXPECT().ApplyTransition(ctx, gomock.Any()).Return(nil)
			dsp.EXPECT().SendToQueue(ctx, gomock.Any())

			got, err := srv.PauseDelivery(ctx, order.Number, courier)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(got.Status).Should(Equal(model.OrderStatusPaused))
		})
		It("Replayed completion fails with invalid state and does not dispatch again", func() {
			ctx := context.Background()
			order := model.Order{ID: 1, Number: 100, Status: model.OrderStatusDelivered, PaymentStatus: model.PaymentStatusUnpaid, PaymentMethod: model.PaymentMethodCash}

			rep.EXPECT().GetOrderByNumber(ctx, order.Number).Return(order, nil)

			_, err := srv.CompleteDelivery(ctx, order.Number, courier)
			Expect(err).Should(HaveOccurred())
			Expect(errors.Is(err, internal.ErrInvalidState)).Should(BeTrue())
		})
		It("Transition on a missing order fails with not found", func() {
			ctx := context.Background()

			rep.EXPECT().GetOrderByNumber(ctx, int64(404)).Return(model.Order{}, internal.ErrNotFound)

			_, err := srv.StartDelivery(ctx, 404, courier)
			Expect(err).Should(HaveOccurred())
			Expect(errors.Is(err, internal.ErrNotFound)).Should(BeTrue())
		})
	})
	Context("CreateOrder", func() {
		admin := model.Actor{ID: 1, Role: model.RoleAdmin}
		courier := model.Actor{ID: 7, Role: model.RoleCourier}

		It("creates a pending order with defaults", func() {
			ctx := context.Background()
			i := model.OrderInput{CustomerID: 3, Quantity: 2, Price: decimal.NewFromInt(20)}

			rep.EXPECT().CreateOrder(ctx, gomock.Any()).DoAndReturn(
				func(_ context.Context, d model.OrderDraft) (model.Order, error) {
					Expect(d.Status).Should(Equal(model.OrderStatusPending))
					Expect(d.PaymentStatus).Should(Equal(model.PaymentStatusUnpaid))
					Expect(d.PaymentMethod).Should(Equal(model.PaymentMethodCash))
					Expect(d.AdminID).Should(Equal(admin.ID))
					return model.Order{ID: 1, Number: 101, Status: d.Status, PaymentStatus: d.PaymentStatus}, nil
				})

			o, err := srv.CreateOrder(ctx, i, admin)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(o.Number).Should(Equal(int64(101)))
		})
		It("rejects creation by a non-admin", func() {
			ctx := context.Background()

			_, err := srv.CreateOrder(ctx, model.OrderInput{CustomerID: 3}, courier)
			Expect(err).Should(HaveOccurred())
			Expect(errors.Is(err, internal.ErrForbidden)).Should(BeTrue())
		})
		It("rejects a card number that fails luhn", func() {
			ctx := context.Background()
			i := model.OrderInput{CustomerID: 3, PaymentMethod: model.PaymentMethodCard, CardNumber: "1234"}

			_, err := srv.CreateOrder(ctx, i, admin)
			Expect(err).Should(HaveOccurred())
			Expect(err).Should(Equal(internal.ErrLuhnInvalid))
		})
		It("accepts a valid card number", func() {
			ctx := context.Background()
			i := model.OrderInput{CustomerID: 3, PaymentMethod: model.PaymentMethodCard, CardNumber: "79927398713"}

			rep.EXPECT().CreateOrder(ctx, gomock.Any()).Return(model.Order{ID: 1, Number: 101}, nil)

			_, err := srv.CreateOrder(ctx, i, admin)
			Expect(err).ShouldNot(HaveOccurred())
		})
		It("queues a dispatch for a prepaid order", func() {
			ctx := context.Background()
			i := model.OrderInput{CustomerID: 3, Prepaid: true}

			rep.EXPECT().CreateOrder(ctx, gomock.Any()).DoAndReturn(
				func(_ context.Context, d model.OrderDraft) (model.Order, error) {
					Expect(d.PaymentStatus).Should(Equal(model.PaymentStatusPaid))
					return model.Order{ID: 1, Number: 101, PaymentStatus: d.PaymentStatus}, nil
				})
			dsp.EXPECT().SendToQueue(ctx, gomock.Any())

			_, err := srv.CreateOrder(ctx, i, admin)
			Expect(err).ShouldNot(HaveOccurred())
		})
	})
	Context("Queries", func() {
		It("GetOrders without error", func() {
			ctx := context.Background()
			o := make([]model.OrderOutput, 1, 1)

			rep.EXPECT().GetOrdersByCustomer(ctx, 3).Return(o, nil)

			_, err := srv.GetOrders(ctx, 3)
			Expect(err).ShouldNot(HaveOccurred())
		})
		It("GetOrders with no records", func() {
			ctx := context.Background()
			o := make([]model.OrderOutput, 0, 0)

			rep.EXPECT().GetOrdersByCustomer(ctx, 3).Return(o, nil)

			_, err := srv.GetOrders(ctx, 3)
			Expect(err).Should(HaveOccurred())
			Expect(err).Should(Equal(internal.ErrNoRecords))
		})
	})
})
