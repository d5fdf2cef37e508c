package internal

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"

	"github.com/avdeev/mealmart/internal/model"
)

type Handlers struct {
	Service   IService
	logger    *zap.SugaredLogger
	jwtSecret string
}

func NewHandlers(service IService, logger *zap.SugaredLogger, jwtSecret string) *Handlers {
	return &Handlers{Service: service, logger: logger, jwtSecret: jwtSecret}
}

// RateLimit guards a mutating route. Every decision is reported through the
// X-RateLimit headers; a denial short-circuits with 429.
func RateLimit(l *RateLimiter, cfg LimitConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		d := l.Admit(clientKey(c), cfg)

		c.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		if !d.ResetAt.IsZero() {
			c.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
		}

		if !d.Allowed {
			RateLimitDeniedTotal.Inc()
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"status": "error", "message": ErrRateLimited.Error()})
		}
		return c.Next()
	}
}

func (h *Handlers) CreateOrder(c *fiber.Ctx) error {
	actor, err := h.getActorFromToken(c)
	if err != nil {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	var i model.OrderInput
	if err = c.BodyParser(&i); err != nil || i.CustomerID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": "error", "message": "Error on create order request", "data": err})
	}

	o, err := h.Service.CreateOrder(c.Context(), i, actor)
	if err != nil {
		h.logger.Errorf("Error on create order request: %s", err.Error())
		if errors.Is(err, ErrLuhnInvalid) {
			return c.SendStatus(fiber.StatusUnprocessableEntity)
		}
		if errors.Is(err, ErrForbidden) {
			return c.SendStatus(fiber.StatusForbidden)
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"status": "error", "message": "Error on create order request", "data": err})
	}

	return c.Status(fiber.StatusCreated).JSON(o)
}

func (h *Handlers) GetOrder(c *fiber.Ctx) error {
	number, err := strconv.ParseInt(c.Params("number"), 10, 64)
	if err != nil {
		return c.SendStatus(fiber.StatusUnprocessableEntity)
	}

	o, err := h.Service.GetOrder(c.Context(), number)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return c.SendStatus(fiber.StatusNotFound)
		}
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.Status(fiber.StatusOK).JSON(o)
}

func (h *Handlers) GetOrders(c *fiber.Ctx) error {
	customerID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.SendStatus(fiber.StatusUnprocessableEntity)
	}

	orders, err := h.Service.GetOrders(c.Context(), customerID)
	if err != nil {
		if errors.Is(err, ErrNoRecords) {
			return c.SendStatus(fiber.StatusNoContent)
		}
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.Status(fiber.StatusOK).JSON(orders)
}

func (h *Handlers) StartDelivery(c *fiber.Ctx) error {
	return h.transition(c, ActionStartDelivery)
}

func (h *Handlers) PauseDelivery(c *fiber.Ctx) error {
	return h.transition(c, ActionPauseDelivery)
}

func (h *Handlers) ResumeDelivery(c *fiber.Ctx) error {
	return h.transition(c, ActionResumeDelivery)
}

func (h *Handlers) CompleteDelivery(c *fiber.Ctx) error {
	return h.transition(c, ActionCompleteDelivery)
}

func (h *Handlers) transition(c *fiber.Ctx, action string) error {
	actor, err := h.getActorFromToken(c)
	if err != nil {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	number, err := strconv.ParseInt(c.Params("number"), 10, 64)
	if err != nil {
		return c.SendStatus(fiber.StatusUnprocessableEntity)
	}

	var o model.Order
	switch action {
	case ActionStartDelivery:
		o, err = h.Service.StartDelivery(c.Context(), number, actor)
	case ActionPauseDelivery:
		o, err = h.Service.PauseDelivery(c.Context(), number, actor)
	case ActionResumeDelivery:
		o, err = h.Service.ResumeDelivery(c.Context(), number, actor)
	case ActionCompleteDelivery:
		o, err = h.Service.CompleteDelivery(c.Context(), number, actor)
	}

	if err != nil {
		h.logger.Errorf("Error on %s request: %s", action, err.Error())
		if errors.Is(err, ErrForbidden) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"status": "error", "message": err.Error()})
		}
		if errors.Is(err, ErrInvalidState) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"status": "error", "message": err.Error()})
		}
		if errors.Is(err, ErrNotFound) {
			return c.SendStatus(fiber.StatusNotFound)
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"status": "error", "message": "Error on " + action + " request"})
	}

	return c.Status(fiber.StatusOK).JSON(o)
}

func (h *Handlers) CreateCustomer(c *fiber.Ctx) error {
	actor, err := h.getActorFromToken(c)
	if err != nil {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	var i model.CustomerInput
	if err = c.BodyParser(&i); err != nil || i.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": "error", "message": "Error on create customer request", "data": err})
	}

	id, err := h.Service.CreateCustomer(c.Context(), i, actor)
	if err != nil {
		h.logger.Errorf("Error on create customer request: %s", err.Error())
		if errors.Is(err, ErrForbidden) {
			return c.SendStatus(fiber.StatusForbidden)
		}
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"ID": id})
}

func (h *Handlers) GetCustomer(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.SendStatus(fiber.StatusUnprocessableEntity)
	}

	cu, err := h.Service.GetCustomer(c.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return c.SendStatus(fiber.StatusNotFound)
		}
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.Status(fiber.StatusOK).JSON(cu)
}

func (h *Handlers) getActorFromToken(c *fiber.Ctx) (model.Actor, error) {
	tokenString := c.Cookies("token")
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(h.jwtSecret), nil
	})
	if err != nil {
		return model.Actor{}, err
	}

	id, ok := claims["id"].(string)
	if !ok {
		return model.Actor{}, errors.New("token has no id claim")
	}
	role, ok := claims["role"].(string)
	if !ok {
		return model.Actor{}, errors.New("token has no role claim")
	}

	uid, err := strconv.Atoi(id)
	if err != nil {
		return model.Actor{}, err
	}
	return model.Actor{ID: uid, Role: role}, nil
}

// clientKey prefers the token subject so limits follow the caller across
// addresses; unauthenticated requests fall back to the remote IP.
func clientKey(c *fiber.Ctx) string {
	tokenString := c.Cookies("token")
	if tokenString != "" {
		claims := jwt.MapClaims{}
		if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err == nil {
			if id, ok := claims["id"].(string); ok {
				return "token:" + id
			}
		}
	}
	return "ip:" + c.IP()
}
