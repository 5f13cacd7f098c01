package courier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ojalabs/oja-backend/pkg/config"
	pkgerrors "github.com/ojalabs/oja-backend/pkg/errors"
	"github.com/ojalabs/oja-backend/pkg/logger"
	"github.com/ojalabs/oja-backend/pkg/metrics"
)

var (
	errBaseURLRequired = errors.New("courier base url is required")
	errAPIKeyRequired  = errors.New("courier api key is required")
	errLoggerRequired  = errors.New("courier logger is required")
)

// Gateway is the logistics surface the delivery service depends on. The
// real implementation talks to GIGL; tests swap in stubs.
type Gateway interface {
	Quote(ctx context.Context, params QuoteParams) (*Quote, error)
	CreateShipment(ctx context.Context, params ShipmentCreateParams) (*Shipment, error)
	Track(ctx context.Context, shipmentID string) (*TrackingInfo, error)
	CancelShipment(ctx context.Context, shipmentID string) error
}

// Client talks to the courier gateway with centralized auth, timeouts,
// logging, and error mapping.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	apiKey        string
	webhookSecret string
	logger        *logger.Logger
	metrics       *metrics.SettlementMetrics
}

// NewClient validates the courier credentials and builds the gateway client.
func NewClient(ctx context.Context, cfg config.CourierConfig, logg *logger.Logger, m *metrics.SettlementMetrics) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parsing courier base url: %w", err)
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &Client{
		httpClient:    &http.Client{Timeout: timeout},
		baseURL:       baseURL,
		apiKey:        apiKey,
		webhookSecret: strings.TrimSpace(cfg.WebhookSecret),
		logger:        logg,
		metrics:       m,
	}
	logg.Info(ctx, "courier client initialized")
	return c, nil
}

// SigningSecret returns the shared secret used to verify webhook callbacks.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.webhookSecret
}

// Quote prices a prospective shipment without creating it.
func (c *Client) Quote(ctx context.Context, params QuoteParams) (*Quote, error) {
	var quote Quote
	err := c.do(ctx, "quote", http.MethodPost, "/api/v1/shipments/quote", params, &quote)
	if err != nil {
		return nil, err
	}
	return &quote, nil
}

// CreateShipment registers a shipment with the gateway and returns the
// tracking identifiers.
func (c *Client) CreateShipment(ctx context.Context, params ShipmentCreateParams) (*Shipment, error) {
	var shipment Shipment
	err := c.do(ctx, "create_shipment", http.MethodPost, "/api/v1/shipments", params, &shipment)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(shipment.ShipmentID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "courier returned shipment without an id")
	}
	return &shipment, nil
}

// Track fetches the current status and checkpoint history of a shipment.
func (c *Client) Track(ctx context.Context, shipmentID string) (*TrackingInfo, error) {
	shipmentID = strings.TrimSpace(shipmentID)
	if shipmentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipment id is required")
	}
	var info TrackingInfo
	path := fmt.Sprintf("/api/v1/shipments/%s/tracking", url.PathEscape(shipmentID))
	if err := c.do(ctx, "track", http.MethodGet, path, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// CancelShipment asks the gateway to abandon a shipment that has not been
// picked up yet.
func (c *Client) CancelShipment(ctx context.Context, shipmentID string) error {
	shipmentID = strings.TrimSpace(shipmentID)
	if shipmentID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "shipment id is required")
	}
	path := fmt.Sprintf("/api/v1/shipments/%s/cancel", url.PathEscape(shipmentID))
	return c.do(ctx, "cancel_shipment", http.MethodPost, path, nil, nil)
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	start := time.Now()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("encoding courier %s request", op))
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("building courier %s request", op))
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.log(ctx, "request", op, map[string]any{"path": path})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(op, start)
		c.log(ctx, "error", op, map[string]any{"error": err.Error()})
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("courier %s failed", op))
	}
	defer resp.Body.Close()
	c.observe(op, start)

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("reading courier %s response", op))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log(ctx, "error", op, map[string]any{
			"status": resp.StatusCode,
			"error":  gatewayMessage(payload),
		})
		code := domainCodeForStatus(resp.StatusCode)
		return pkgerrors.New(code, fmt.Sprintf("courier %s failed: %s", op, gatewayMessage(payload)))
	}

	if out != nil {
		if err := json.Unmarshal(payload, out); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("decoding courier %s response", op))
		}
	}

	c.log(ctx, "response", op, map[string]any{"status": resp.StatusCode})
	return nil
}

func (c *Client) observe(op string, start time.Time) {
	if c.metrics != nil {
		c.metrics.ObserveCourierCall(op, time.Since(start))
	}
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = v
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("courier %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("courier %s", phase))
	}
}

func gatewayMessage(payload []byte) string {
	var envelope struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(payload, &envelope); err == nil {
		if envelope.Message != "" {
			return envelope.Message
		}
		if envelope.Error != "" {
			return envelope.Error
		}
	}
	trimmed := strings.TrimSpace(string(payload))
	if trimmed == "" {
		return "no response body"
	}
	if len(trimmed) > 200 {
		trimmed = trimmed[:200]
	}
	return trimmed
}

func domainCodeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized:
		return pkgerrors.CodeUnauthorized
	case http.StatusForbidden:
		return pkgerrors.CodeForbidden
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	case http.StatusUnprocessableEntity:
		return pkgerrors.CodeStateConflict
	default:
		if status >= 400 && status < 500 {
			return pkgerrors.CodeValidation
		}
		return pkgerrors.CodeDependency
	}
}
