// Package client is a typed Go client for the ledger service API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"kakeibo/internal/core"
)

type Client struct {
	baseURL string
	httpc   *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: 30 * time.Second},
	}
}

// NewWithHTTPClient is for tests that wire an httptest server transport.
func NewWithHTTPClient(baseURL string, httpc *http.Client) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpc: httpc}
}

// APIError is a non-2xx response decoded from the {"error": ...} body.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// ListQuery mirrors the filter parameters of the transactions endpoint.
type ListQuery struct {
	Account string
	// Accounts switches to multi-select mode when non-nil; an empty non-nil
	// slice selects nothing.
	Accounts []string
	Search   string
	Order    core.Direction
	Unit     core.Unit
	Period   string
}

func (q ListQuery) values() url.Values {
	v := url.Values{}
	if q.Accounts != nil {
		v.Set("accounts", strings.Join(q.Accounts, ","))
	} else if q.Account != "" {
		v.Set("account", q.Account)
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Order != "" {
		v.Set("order", string(q.Order))
	}
	if q.Unit != "" && q.Unit != core.UnitAll {
		v.Set("unit", string(q.Unit))
	}
	if q.Period != "" {
		v.Set("period", q.Period)
	}
	return v
}

// ListResult is the filtered view plus its final running balance.
type ListResult struct {
	Transactions []core.Transaction `json:"transactions"`
	Balance      int64              `json:"balance"`
}

func (c *Client) ListTransactions(ctx context.Context, q ListQuery) (ListResult, error) {
	var out ListResult
	target := "/api/transactions"
	if enc := q.values().Encode(); enc != "" {
		target += "?" + enc
	}
	err := c.doJSON(ctx, http.MethodGet, target, nil, &out)
	return out, err
}

type mutationResponse struct {
	Message     string           `json:"message"`
	Transaction core.Transaction `json:"transaction"`
}

func (c *Client) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	var resp mutationResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/transactions", tx, &resp); err != nil {
		return core.Transaction{}, err
	}
	return resp.Transaction, nil
}

func (c *Client) UpdateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	var resp mutationResponse
	target := "/api/transactions/" + strconv.FormatInt(tx.ID, 10)
	if err := c.doJSON(ctx, http.MethodPut, target, tx, &resp); err != nil {
		return core.Transaction{}, err
	}
	return resp.Transaction, nil
}

func (c *Client) DeleteTransaction(ctx context.Context, id int64) error {
	target := "/api/transactions/" + strconv.FormatInt(id, 10)
	return c.doJSON(ctx, http.MethodDelete, target, nil, nil)
}

func (c *Client) Accounts(ctx context.Context) ([]string, error) {
	var resp struct {
		Accounts []string `json:"accounts"`
	}
	err := c.doJSON(ctx, http.MethodGet, "/api/accounts", nil, &resp)
	return resp.Accounts, err
}

func (c *Client) Items(ctx context.Context, account string) ([]string, error) {
	target := "/api/items"
	if account != "" {
		target += "?account=" + url.QueryEscape(account)
	}
	var resp struct {
		Items []string `json:"items"`
	}
	err := c.doJSON(ctx, http.MethodGet, target, nil, &resp)
	return resp.Items, err
}

// BalanceHistory is the bucketed per-account series with shared dates.
type BalanceHistory struct {
	Accounts []string           `json:"accounts"`
	Dates    []string           `json:"dates"`
	Balances map[string][]int64 `json:"balances"`
}

func (c *Client) BalanceHistory(ctx context.Context, unit core.Unit) (BalanceHistory, error) {
	var out BalanceHistory
	target := "/api/balance_history"
	if unit != "" && unit != core.UnitAll {
		target += "?unit=" + url.QueryEscape(string(unit))
	}
	err := c.doJSON(ctx, http.MethodGet, target, nil, &out)
	return out, err
}

// Summary is the totals-and-breakdown view of a filtered period.
type Summary struct {
	Income        int64             `json:"income"`
	Expense       int64             `json:"expense"`
	Net           int64             `json:"net"`
	IncomeByItem  []core.ItemAmount `json:"income_by_item"`
	ExpenseByItem []core.ItemAmount `json:"expense_by_item"`
}

func (c *Client) Summary(ctx context.Context, q ListQuery) (Summary, error) {
	var out Summary
	target := "/api/summary"
	if enc := q.values().Encode(); enc != "" {
		target += "?" + enc
	}
	err := c.doJSON(ctx, http.MethodGet, target, nil, &out)
	return out, err
}

// ExportCSV streams the backup CSV to w.
func (c *Client) ExportCSV(ctx context.Context, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/backup_csv", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	_, err = io.Copy(w, resp.Body)
	return err
}

// ImportCSV uploads a ledger file; mode is append or replace. Returns the
// number of imported rows.
func (c *Client) ImportCSV(ctx context.Context, r io.Reader, mode string) (int, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "ledger.csv")
	if err != nil {
		return 0, err
	}
	if _, err := io.Copy(fw, r); err != nil {
		return 0, err
	}
	if mode != "" {
		if err := mw.WriteField("mode", mode); err != nil {
			return 0, err
		}
	}
	if err := mw.Close(); err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/import_csv", &buf)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpc.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, decodeError(resp)
	}

	var out struct {
		ImportedCount int `json:"imported_count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode import response: %w", err)
	}
	return out.ImportedCount, nil
}

// DownloadLog streams the newest server log file to w.
func (c *Client) DownloadLog(ctx context.Context, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/download_log", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	_, err = io.Copy(w, resp.Body)
	return err
}

// Log forwards a client-side record into the server log.
func (c *Client) Log(ctx context.Context, level, message, component string) error {
	body := map[string]string{"level": level, "message": message, "component": component}
	return c.doJSON(ctx, http.MethodPost, "/api/log", body, nil)
}

func (c *Client) Logout(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/api/logout", nil, nil)
}

func (c *Client) doJSON(ctx context.Context, method, target string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+target, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != "" {
		apiErr.Message = body.Error
	} else {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
