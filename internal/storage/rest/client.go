// Package rest implements the persistence gateway over the hosted
// backend's HTTP API.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"foundation_site/internal/domain"
	"foundation_site/internal/storage"
)

// Config holds the backend connection settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client implements the gateway against /api/<resource> endpoints.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		logger:  logger.With("gateway", "rest"),
	}
}

type errorBody struct {
	Error string `json:"error"`
}

type insertResponse struct {
	ID string `json:"id"`
}

type incrementRequest struct {
	Column string `json:"column"`
	By     int    `json:"by"`
}

type incrementResponse struct {
	Value int64 `json:"value"`
}

// Select decodes the JSON array returned for q into dest.
func (c *Client) Select(ctx context.Context, table string, q storage.Query, dest any) error {
	if !storage.ValidIdentifier(table) {
		return domain.Invalid("resource", "invalid table %q", table)
	}
	if err := q.Validate(); err != nil {
		return err
	}

	endpoint := c.resourceURL(table) + "?" + encodeQuery(q).Encode()
	return c.do(ctx, http.MethodGet, endpoint, nil, dest, "select "+table)
}

func (c *Client) Insert(ctx context.Context, table string, values storage.Values) (string, error) {
	if !storage.ValidIdentifier(table) {
		return "", domain.Invalid("resource", "invalid table %q", table)
	}
	if err := storage.ValidateValues(values); err != nil {
		return "", err
	}

	var resp insertResponse
	if err := c.do(ctx, http.MethodPost, c.resourceURL(table), values, &resp, "insert "+table); err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (c *Client) Update(ctx context.Context, table, id string, patch storage.Values) error {
	if !storage.ValidIdentifier(table) {
		return domain.Invalid("resource", "invalid table %q", table)
	}
	if err := storage.ValidateValues(patch); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPut, c.resourceURL(table)+"/"+url.PathEscape(id), patch, nil, "update "+table)
}

// Increment asks the backend to add by to a numeric column of one row; the
// backend applies it atomically.
func (c *Client) Increment(ctx context.Context, table, id, column string, by int) (int64, error) {
	if !storage.ValidIdentifier(table) {
		return 0, domain.Invalid("resource", "invalid table %q", table)
	}
	if !storage.ValidIdentifier(column) {
		return 0, domain.Invalid("column", "invalid column %q", column)
	}
	var resp incrementResponse
	endpoint := c.resourceURL(table) + "/" + url.PathEscape(id) + "/increment"
	if err := c.do(ctx, http.MethodPost, endpoint, incrementRequest{Column: column, By: by}, &resp, "increment "+table); err != nil {
		return 0, err
	}
	return resp.Value, nil
}

func (c *Client) Delete(ctx context.Context, table, id string) error {
	if !storage.ValidIdentifier(table) {
		return domain.Invalid("resource", "invalid table %q", table)
	}
	return c.do(ctx, http.MethodDelete, c.resourceURL(table)+"/"+url.PathEscape(id), nil, nil, "delete "+table)
}

func (c *Client) resourceURL(table string) string {
	return c.baseURL + "/api/" + table
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any, op string) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", op, err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "FoundationSite/1.0")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("%s: %w", op, err)
		}
		return fmt.Errorf("%s: %w: %w", op, domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.statusError(op, resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func (c *Client) statusError(op string, resp *http.Response) error {
	var eb errorBody
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&eb)
	msg := eb.Error
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	var kind error
	switch {
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		kind = domain.ErrValidation
	case resp.StatusCode == http.StatusUnauthorized:
		kind = domain.ErrUnauthenticated
	case resp.StatusCode == http.StatusForbidden:
		kind = domain.ErrForbidden
	case resp.StatusCode == http.StatusNotFound:
		kind = domain.ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		kind = domain.ErrConstraint
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		kind = domain.ErrTransport
	default:
		return fmt.Errorf("%s: unexpected status %d: %s", op, resp.StatusCode, msg)
	}

	c.logger.Debug("backend request failed", "op", op, "status", resp.StatusCode, "error", msg)
	return fmt.Errorf("%s: %w: %s", op, kind, msg)
}

// encodeQuery renders q in the backend's filter syntax:
// col=op.value, select=a,b, order=col.desc, limit, offset.
func encodeQuery(q storage.Query) url.Values {
	v := url.Values{}
	if len(q.Columns) > 0 {
		v.Set("select", strings.Join(q.Columns, ","))
	}
	for _, f := range q.Filters {
		v.Add(f.Column, string(f.Op)+"."+formatValue(f.Op, f.Value))
	}
	order := q.Ordering()
	direction := "asc"
	if order.Desc {
		direction = "desc"
	}
	v.Set("order", order.Column+"."+direction)
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	return v
}

func formatValue(op storage.Op, value any) string {
	switch op {
	case storage.OpIn:
		switch items := value.(type) {
		case []string:
			return "(" + strings.Join(items, ",") + ")"
		case []any:
			parts := make([]string, len(items))
			for i, it := range items {
				parts[i] = fmt.Sprint(it)
			}
			return "(" + strings.Join(parts, ",") + ")"
		}
	case storage.OpIs:
		if value == nil {
			return "null"
		}
	}
	return fmt.Sprint(value)
}
