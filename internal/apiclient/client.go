package apiclient

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

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/muebleria/cotizador-backend/internal/catalog"
	"github.com/muebleria/cotizador-backend/internal/sales"
	"github.com/muebleria/cotizador-backend/pkg/enums"
	"github.com/muebleria/cotizador-backend/pkg/pricing"
)

// DefaultRejectReason is reported when a failed settlement carries no message.
const DefaultRejectReason = "insufficient stock"

// APIError is a non-2xx response decoded from the error envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
	Details json.RawMessage
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("api error (%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api error (%d %s): %s", e.Status, e.Code, e.Message)
}

// Client talks to the settlement API over HTTP.
type Client struct {
	baseURL *url.URL
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) (*Client, error) {
	return NewWithHTTPClient(baseURL, &http.Client{Timeout: timeout})
}

func NewWithHTTPClient(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("invalid settlement base url %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid settlement base url %q", baseURL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: u, http: httpClient}, nil
}

type CreateItemRequest struct {
	Name      string          `json:"name"`
	Kind      string          `json:"kind,omitempty"`
	Material  string          `json:"material,omitempty"`
	Size      enums.ItemSize  `json:"size,omitempty"`
	BasePrice decimal.Decimal `json:"base_price"`
	Stock     int             `json:"stock"`
}

// CreateModifierRequest carries percent points for PERCENTAGE (15 means +15%).
type CreateModifierRequest struct {
	Name  string             `json:"name"`
	Kind  enums.ModifierKind `json:"kind"`
	Value decimal.Decimal    `json:"value"`
}

type cartRequest struct {
	Lines []lineRequest `json:"lines"`
}

type lineRequest struct {
	ItemID      uuid.UUID   `json:"item_id"`
	Quantity    int         `json:"quantity"`
	ModifierIDs []uuid.UUID `json:"modifier_ids"`
}

func (c *Client) ListItems(ctx context.Context) ([]catalog.ItemDTO, error) {
	var out []catalog.ItemDTO
	err := c.do(ctx, http.MethodGet, "/api/items", nil, nil, &out)
	return out, err
}

func (c *Client) ListModifiers(ctx context.Context) ([]catalog.ModifierDTO, error) {
	var out []catalog.ModifierDTO
	err := c.do(ctx, http.MethodGet, "/api/modifiers", nil, nil, &out)
	return out, err
}

func (c *Client) CreateItem(ctx context.Context, req CreateItemRequest) (*catalog.ItemDTO, error) {
	var out catalog.ItemDTO
	if err := c.do(ctx, http.MethodPost, "/api/items", req, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateModifier(ctx context.Context, req CreateModifierRequest) (*catalog.ModifierDTO, error) {
	var out catalog.ModifierDTO
	if err := c.do(ctx, http.MethodPost, "/api/modifiers", req, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetItemStatus activates or deactivates an item.
func (c *Client) SetItemStatus(ctx context.Context, id uuid.UUID, status enums.ItemStatus) (*catalog.ItemDTO, error) {
	action := "activate"
	if status == enums.ItemStatusInactive {
		action = "deactivate"
	}
	var out catalog.ItemDTO
	path := fmt.Sprintf("/api/items/%s/%s", id, action)
	if err := c.do(ctx, http.MethodPost, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Quote(ctx context.Context, lines []pricing.Line) (*pricing.Quotation, error) {
	var out pricing.Quotation
	if err := c.do(ctx, http.MethodPost, "/api/quotes", toCartRequest(lines), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Settle submits the cart under idempotencyKey. A rejection always carries a
// message, defaulting to DefaultRejectReason.
func (c *Client) Settle(ctx context.Context, lines []pricing.Line, idempotencyKey string) (*sales.SettlementResult, error) {
	headers := http.Header{}
	if idempotencyKey != "" {
		headers.Set("Idempotency-Key", idempotencyKey)
	}
	var out sales.SettlementResult
	err := c.do(ctx, http.MethodPost, "/api/sales", toCartRequest(lines), headers, &out)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && strings.TrimSpace(apiErr.Message) == "" {
			apiErr.Message = DefaultRejectReason
		}
		return nil, err
	}
	return &out, nil
}

func toCartRequest(lines []pricing.Line) cartRequest {
	req := cartRequest{Lines: make([]lineRequest, 0, len(lines))}
	for _, line := range lines {
		mods := line.ModifierIDs
		if mods == nil {
			mods = []uuid.UUID{}
		}
		req.Lines = append(req.Lines, lineRequest{
			ItemID:      line.ItemID,
			Quantity:    line.Quantity,
			ModifierIDs: mods,
		})
	}
	return req
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body any, headers http.Header, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	u := c.baseURL.ResolveReference(&url.URL{Path: path})
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vv := range headers {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		if decodeErr == nil && env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
			apiErr.Details = env.Error.Details
		}
		return apiErr
	}
	if decodeErr != nil {
		return fmt.Errorf("decode response: %w", decodeErr)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}
