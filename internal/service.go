package internal

import (
	"context"
	"fmt"
	"strconv"

	"github.com/theplant/luhn"
	"go.uber.org/zap"

	"github.com/avdeev/mealmart/internal/model"
)

type IService interface {
	CreateOrder(context.Context, model.OrderInput, model.Actor) (model.Order, error)
	GetOrder(context.Context, int64) (model.Order, error)
	GetOrders(context.Context, int) ([]model.OrderOutput, error)

	StartDelivery(context.Context, int64, model.Actor) (model.Order, error)
	PauseDelivery(context.Context, int64, model.Actor) (model.Order, error)
	ResumeDelivery(context.Context, int64, model.Actor) (model.Order, error)
	CompleteDelivery(context.Context, int64, model.Actor) (model.Order, error)

	CreateCustomer(context.Context, model.CustomerInput, model.Actor) (int, error)
	GetCustomer(context.Context, int) (model.Customer, error)
}

func NewService(repository IRepository, dispatcher IDispatcher, clock Clock, logger *zap.SugaredLogger) *Service {
	return &Service{Repository: repository, Dispatcher: dispatcher, clock: clock, logger: logger}
}

type Service struct {
	Repository IRepository
	Dispatcher IDispatcher
	clock      Clock
	logger     *zap.SugaredLogger
}

func (s Service) CreateOrder(ctx context.Context, i model.OrderInput, actor model.Actor) (model.Order, error) {
	if actor.Role != model.RoleAdmin {
		return model.Order{}, fmt.Errorf("%w: create order requires role %s, got %s", ErrForbidden, model.RoleAdmin, actor.Role)
	}

	if i.PaymentMethod == model.PaymentMethodCard && i.CardNumber != "" {
		n, err := strconv.Atoi(i.CardNumber)
		if err != nil || !luhn.Valid(n) {
			return model.Order{}, ErrLuhnInvalid
		}
	}

	d := model.OrderDraft{
		CustomerID:    i.CustomerID,
		AdminID:       actor.ID,
		DeliveryDate:  i.DeliveryDate,
		DeliveryTime:  i.DeliveryTime,
		Quantity:      i.Quantity,
		Calories:      i.Calories,
		Price:         i.Price,
		PaymentStatus: model.PaymentStatusUnpaid,
		PaymentMethod: i.PaymentMethod,
		Prepaid:       i.Prepaid,
		Status:        model.OrderStatusPending,
	}
	if d.Quantity == 0 {
		d.Quantity = 1
	}
	if d.PaymentMethod == "" {
		d.PaymentMethod = model.PaymentMethodCash
	}
	if i.Prepaid {
		d.PaymentStatus = model.PaymentStatusPaid
	}

	o, err := s.Repository.CreateOrder(ctx, d)
	if err != nil {
		return model.Order{}, err
	}

	// a prepaid order is already a conversion
	if o.PaymentStatus == model.PaymentStatusPaid {
		s.Dispatcher.SendToQueue(ctx, o)
	}
	return o, nil
}

func (s Service) GetOrder(ctx context.Context, number int64) (model.Order, error) {
	return s.Repository.GetOrderByNumber(ctx, number)
}

func (s Service) GetOrders(ctx context.Context, customerID int) ([]model.OrderOutput, error) {
	orders, err := s.Repository.GetOrdersByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	if len(orders) == 0 {
		return nil, ErrNoRecords
	}
	return orders, nil
}

func (s Service) StartDelivery(ctx context.Context, number int64, actor model.Actor) (model.Order, error) {
	return s.applyAction(ctx, number, ActionStartDelivery, actor)
}

func (s Service) PauseDelivery(ctx context.Context, number int64, actor model.Actor) (model.Order, error) {
	return s.applyAction(ctx, number, ActionPauseDelivery, actor)
}

func (s Service) ResumeDelivery(ctx context.Context, number int64, actor model.Actor) (model.Order, error) {
	return s.applyAction(ctx, number, ActionResumeDelivery, actor)
}

func (s Service) CompleteDelivery(ctx context.Context, number int64, actor model.Actor) (model.Order, error) {
	return s.applyAction(ctx, number, ActionCompleteDelivery, actor)
}

// applyAction runs one lifecycle transition: role gate, status check, one
// guarded UPDATE, then a fire-and-forget conversion dispatch when the order
// ends up DELIVERED with cash payment or is already paid.
func (s Service) applyAction(ctx context.Context, number int64, action string, actor model.Actor) (model.Order, error) {
	if err := CheckRole(action, actor); err != nil {
		return model.Order{}, err
	}

	o, err := s.Repository.GetOrderByNumber(ctx, number)
	if err != nil {
		return model.Order{}, err
	}

	next, err := NextStatus(action, o.Status)
	if err != nil {
		return model.Order{}, err
	}

	u := model.TransitionUpdate{
		Number:     number,
		FromStatus: o.Status,
		ToStatus:   next,
	}
	if action == ActionStartDelivery {
		u.CourierID = actor.ID
	}
	if next == model.OrderStatusDelivered {
		now := s.clock.Now()
		u.DeliveredAt = &now
	}

	if err = s.Repository.ApplyTransition(ctx, u); err != nil {
		return model.Order{}, err
	}

	s.logger.Infof("order %d: %s -> %s by %s %d", number, u.FromStatus, next, actor.Role, actor.ID)

	o.Status = next
	if u.CourierID != 0 {
		o.CourierID = u.CourierID
	}
	if u.DeliveredAt != nil {
		o.DeliveredAt = u.DeliveredAt
	}

	if (next == model.OrderStatusDelivered && o.PaymentMethod == model.PaymentMethodCash) ||
		o.PaymentStatus == model.PaymentStatusPaid {
		s.Dispatcher.SendToQueue(ctx, o)
	}

	return o, nil
}

func (s Service) CreateCustomer(ctx context.Context, i model.CustomerInput, actor model.Actor) (int, error) {
	if actor.Role != model.RoleAdmin {
		return 0, fmt.Errorf("%w: create customer requires role %s, got %s", ErrForbidden, model.RoleAdmin, actor.Role)
	}
	return s.Repository.CreateCustomer(ctx, i)
}

func (s Service) GetCustomer(ctx context.Context, id int) (model.Customer, error) {
	return s.Repository.GetCustomerByID(ctx, id)
}
