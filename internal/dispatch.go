package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/avdeev/mealmart/internal/model"
)

const (
	defaultMeasurementURL = "https://www.google-analytics.com/mp/collect"
	defaultConversionsURL = "https://graph.facebook.com/v12.0/%s/events"

	dispatchTimeout = 5 * time.Second

	endpointMeasurement = "measurement"
	endpointConversions = "conversions"
)

type IDispatcher interface {
	SendToQueue(context.Context, model.Order)
	Shutdown(context.Context) error
}

type AnalyticsConfig struct {
	MeasurementID  string
	APISecret      string
	MeasurementURL string

	PixelID        string
	AccessToken    string
	ConversionsURL string

	Currency string
	Locale   string
	Region   string
	Campaign string
}

// DispatchService sends purchase-conversion events to the configured
// analytics endpoints. Jobs go through a bounded queue drained by a small
// worker pool so a triggering transition never waits on the network.
type DispatchService struct {
	repo   IRepository
	logger *zap.SugaredLogger
	cfg    AnalyticsConfig
	client *http.Client
	queue  chan model.Order
	wg     sync.WaitGroup
	once   sync.Once
}

func NewDispatchService(repo IRepository, logger *zap.SugaredLogger, cfg AnalyticsConfig, workers, queueSize int) *DispatchService {
	if cfg.MeasurementURL == "" {
		cfg.MeasurementURL = defaultMeasurementURL
	}
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}

	s := &DispatchService{
		repo:   repo,
		logger: logger,
		cfg:    cfg,
		client: &http.Client{Timeout: dispatchTimeout},
		queue:  make(chan model.Order, queueSize),
	}

	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	return s
}

// SendToQueue hands the order to the worker pool without blocking the
// caller. A full queue drops the job; these are best-effort signals.
func (s *DispatchService) SendToQueue(_ context.Context, o model.Order) {
	select {
	case s.queue <- o:
	default:
		DispatchDroppedTotal.Inc()
		s.logger.Errorf("dispatch queue full, dropping %s for order %d: %s", model.EventOrderPaid, o.Number, ErrDispatchQueueFull)
	}
}

// Shutdown stops intake and waits for the workers to drain the queue.
func (s *DispatchService) Shutdown(ctx context.Context) error {
	s.once.Do(func() { close(s.queue) })

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *DispatchService) worker() {
	defer s.wg.Done()
	for o := range s.queue {
		s.dispatchPurchase(o)
	}
}

// dispatchPurchase is the at-most-once gate: skip if the ledger already
// holds the event, fire both endpoints, then mark. An unreachable ledger
// reads as "not yet dispatched"; a failed mark is logged and accepted.
func (s *DispatchService) dispatchPurchase(o model.Order) {
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	sent, err := s.repo.HasDispatched(ctx, o.ID, model.EventOrderPaid)
	if err != nil {
		s.logger.Errorf("dispatch ledger read for order %d: %s", o.Number, err)
	}
	if sent {
		DispatchSkippedTotal.Inc()
		return
	}

	var wg sync.WaitGroup
	if s.cfg.MeasurementID != "" && s.cfg.APISecret != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.sendMeasurement(ctx, o)
		}()
	}
	if s.cfg.PixelID != "" && s.cfg.AccessToken != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.sendConversion(ctx, o)
		}()
	}
	wg.Wait()

	if err = s.repo.MarkDispatched(ctx, o.ID, model.EventOrderPaid); err != nil {
		s.logger.Errorf("dispatch ledger mark for order %d: %s", o.Number, err)
	}
}

func (s *DispatchService) sendMeasurement(ctx context.Context, o model.Order) {
	payload := measurementPayload{
		ClientID: uuid.NewString(),
		Events: []measurementEvent{{
			Name: "purchase",
			Params: measurementParams{
				TransactionID: o.Number,
				Currency:      s.cfg.Currency,
				Value:         o.Price,
				Items: []measurementItem{{
					ItemName: "delivery_order",
					Quantity: o.Quantity,
					Price:    o.Price,
				}},
				Locale:   s.cfg.Locale,
				Region:   s.cfg.Region,
				Campaign: s.cfg.Campaign,
			},
		}},
	}

	url := s.cfg.MeasurementURL + "?measurement_id=" + s.cfg.MeasurementID + "&api_secret=" + s.cfg.APISecret
	s.post(ctx, endpointMeasurement, url, payload, o.Number)
}

func (s *DispatchService) sendConversion(ctx context.Context, o model.Order) {
	payload := conversionPayload{
		Data: []conversionEvent{{
			EventName: "Purchase",
			EventTime: time.Now().Unix(),
			EventID:   o.Number,
			Custom: conversionCustom{
				Currency: s.cfg.Currency,
				Value:    o.Price,
				Locale:   s.cfg.Locale,
				Region:   s.cfg.Region,
				Campaign: s.cfg.Campaign,
			},
		}},
	}

	url := s.conversionsURL() + "?access_token=" + s.cfg.AccessToken
	s.post(ctx, endpointConversions, url, payload, o.Number)
}

func (s *DispatchService) conversionsURL() string {
	if s.cfg.ConversionsURL != "" {
		return s.cfg.ConversionsURL
	}
	return fmt.Sprintf(defaultConversionsURL, s.cfg.PixelID)
}

// post fires a single endpoint call. Only a network-level failure counts as
// an error; any HTTP status the endpoint returns means "attempted".
func (s *DispatchService) post(ctx context.Context, endpoint, url string, payload interface{}, orderNumber int64) {
	body, err := json.Marshal(payload)
	if err != nil {
		s.logger.Errorf("%s payload for order %d: %s", endpoint, orderNumber, err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		s.logger.Errorf("%s request for order %d: %s", endpoint, orderNumber, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	DispatchAttemptsTotal.WithLabelValues(endpoint).Inc()
	res, err := s.client.Do(req)
	if err != nil {
		DispatchErrorsTotal.WithLabelValues(endpoint).Inc()
		s.logger.Errorf("%s for order %d: %s: %s", endpoint, orderNumber, ErrDispatchFailure, err)
		return
	}
	defer res.Body.Close()
	_, _ = io.Copy(ioutil.Discard, res.Body)
}

type measurementPayload struct {
	ClientID string             `json:"client_id"`
	Events   []measurementEvent `json:"events"`
}

type measurementEvent struct {
	Name   string            `json:"name"`
	Params measurementParams `json:"params"`
}

type measurementParams struct {
	TransactionID int64             `json:"transaction_id"`
	Currency      string            `json:"currency"`
	Value         decimal.Decimal   `json:"value"`
	Items         []measurementItem `json:"items,omitempty"`
	Locale        string            `json:"locale,omitempty"`
	Region        string            `json:"region,omitempty"`
	Campaign      string            `json:"campaign,omitempty"`
}

type measurementItem struct {
	ItemName string          `json:"item_name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

type conversionPayload struct {
	Data []conversionEvent `json:"data"`
}

type conversionEvent struct {
	EventName string           `json:"event_name"`
	EventTime int64            `json:"event_time"`
	EventID   int64            `json:"event_id"`
	Custom    conversionCustom `json:"custom_data"`
}

type conversionCustom struct {
	Currency string          `json:"currency"`
	Value    decimal.Decimal `json:"value"`
	Locale   string          `json:"locale,omitempty"`
	Region   string          `json:"region,omitempty"`
	Campaign string          `json:"campaign,omitempty"`
}
