package internal

import (
	"fmt"

	"github.com/avdeev/mealmart/internal/model"
)

const (
	ActionStartDelivery    = "start_delivery"
	ActionPauseDelivery    = "pause_delivery"
	ActionResumeDelivery   = "resume_delivery"
	ActionCompleteDelivery = "complete_delivery"
	ActionFailDelivery     = "fail_delivery"
)

// transitions maps a lifecycle action to the statuses it may start from and
// the status it ends in. DELIVERED and FAILED are terminal.
var transitions = map[string]struct {
	from []string
	to   string
}{
	ActionStartDelivery:    {from: []string{model.OrderStatusPending}, to: model.OrderStatusInDelivery},
	ActionPauseDelivery:    {from: []string{model.OrderStatusInDelivery}, to: model.OrderStatusPaused},
	ActionResumeDelivery:   {from: []string{model.OrderStatusPaused}, to: model.OrderStatusInDelivery},
	ActionCompleteDelivery: {from: []string{model.OrderStatusInDelivery}, to: model.OrderStatusDelivered},
	ActionFailDelivery:     {from: []string{model.OrderStatusPending, model.OrderStatusInDelivery}, to: model.OrderStatusFailed},
}

// NextStatus validates action against the current status and returns the
// resulting one.
func NextStatus(action, current string) (string, error) {
	t, ok := transitions[action]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownAction, action)
	}
	for _, s := range t.from {
		if s == current {
			return t.to, nil
		}
	}
	return "", fmt.Errorf("%w: cannot %s order in status %s", ErrInvalidState, action, current)
}

// CheckRole gates every delivery action on the courier role.
func CheckRole(action string, actor model.Actor) error {
	if actor.Role != model.RoleCourier {
		return fmt.Errorf("%w: %s requires role %s, got %s", ErrForbidden, action, model.RoleCourier, actor.Role)
	}
	return nil
}
