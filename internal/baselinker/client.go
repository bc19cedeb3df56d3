// Package baselinker is a thin typed client for the BaseLinker connector
// API: form-encoded POSTs carrying a method name and a JSON parameters
// blob, authenticated with a static token header.
package baselinker

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const connectorPath = "/connector.php"

// APIError is an error the API reports inside a 200 response body.
type APIError struct {
	Method  string
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("baselinker %s: %s (%s)", e.Method, e.Message, e.Code)
}

// Client calls the connector endpoint. It performs no retries; retry
// policy belongs to the caller.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New returns a client for the connector API at baseURL.
func New(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// call runs one connector method and decodes the response into out.
func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	p, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("baselinker %s: marshal parameters: %w", method, err)
	}

	form := url.Values{
		"method":     {method},
		"parameters": {string(p)},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+connectorPath, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("baselinker %s: build request: %w", method, err)
	}
	req.Header.Set("X-BLToken", c.token)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("baselinker %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("baselinker %s: unexpected status %d", method, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("baselinker %s: read response: %w", method, err)
	}

	// The API reports failures in-band with HTTP 200.
	var envelope struct {
		Status       string `json:"status"`
		ErrorCode    string `json:"error_code"`
		ErrorMessage string `json:"error_message"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("baselinker %s: decode response: %w", method, err)
	}
	if envelope.Status == "ERROR" {
		return &APIError{Method: method, Code: envelope.ErrorCode, Message: envelope.ErrorMessage}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("baselinker %s: decode response: %w", method, err)
	}
	return nil
}

// ListOrders returns orders created since the given unix timestamp,
// unconfirmed ones included. Callers filter by source and status.
func (c *Client) ListOrders(ctx context.Context, since int64) ([]Order, error) {
	params := map[string]any{
		"date_from":              since,
		"get_unconfirmed_orders": true,
	}
	var out struct {
		Orders []Order `json:"orders"`
	}
	if err := c.call(ctx, "getOrders", params, &out); err != nil {
		return nil, err
	}
	return out.Orders, nil
}

// InvoiceID returns the first invoice attached to the order. ok is false
// when the order has no invoice yet; that is not an error.
func (c *Client) InvoiceID(ctx context.Context, orderID int64) (int64, bool, error) {
	params := map[string]any{
		"order_id":              orderID,
		"get_external_invoices": true,
	}
	var out struct {
		Invoices []struct {
			InvoiceID int64 `json:"invoice_id"`
		} `json:"invoices"`
	}
	if err := c.call(ctx, "getInvoices", params, &out); err != nil {
		return 0, false, err
	}
	if len(out.Invoices) == 0 {
		return 0, false, nil
	}
	return out.Invoices[0].InvoiceID, true, nil
}

// InvoiceFile fetches the invoice PDF. The API ships it base64-encoded.
func (c *Client) InvoiceFile(ctx context.Context, invoiceID int64) ([]byte, error) {
	params := map[string]any{
		"invoice_id": invoiceID,
	}
	var out struct {
		Invoice string `json:"invoice"`
	}
	if err := c.call(ctx, "getInvoiceFile", params, &out); err != nil {
		return nil, err
	}
	if out.Invoice == "" {
		return nil, fmt.Errorf("baselinker getInvoiceFile: empty invoice for id %d", invoiceID)
	}
	pdf, err := base64.StdEncoding.DecodeString(out.Invoice)
	if err != nil {
		return nil, fmt.Errorf("baselinker getInvoiceFile: decode invoice %d: %w", invoiceID, err)
	}
	return pdf, nil
}

// Packages returns the courier tracking numbers for the order. An order
// with no packages yields an empty slice.
func (c *Client) Packages(ctx context.Context, orderID int64) ([]string, error) {
	params := map[string]any{
		"order_id": orderID,
	}
	var out struct {
		Packages []struct {
			CourierPackageNr string `json:"courier_package_nr"`
		} `json:"packages"`
	}
	if err := c.call(ctx, "getOrderPackages", params, &out); err != nil {
		return nil, err
	}
	numbers := make([]string, 0, len(out.Packages))
	for _, p := range out.Packages {
		numbers = append(numbers, p.CourierPackageNr)
	}
	return numbers, nil
}
