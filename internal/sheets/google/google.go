package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	gauth "golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"moneymanager/internal/core"
	"moneymanager/internal/resilience"
	"moneymanager/internal/secret"
	ports "moneymanager/internal/sheets"
)

// DefaultSheetName is the tab holding the transaction rows.
const DefaultSheetName = "Transactions"

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	secret        *secret.Verifier
	cb            *gobreaker.CircuitBreaker
	retry         resilience.Retry

	ensureMu sync.Mutex
	ensured  bool
}

// Ensure interface conformance
var (
	_ ports.TransactionStore  = (*Client)(nil)
	_ ports.TransactionSyncer = (*Client)(nil)
	_ ports.HealthChecker     = (*Client)(nil)
)

// New wraps an existing Sheets service.
func New(svc *gsheet.Service, spreadsheetID, sheetName string, v *secret.Verifier) *Client {
	if strings.TrimSpace(sheetName) == "" {
		sheetName = DefaultSheetName
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		secret:        v,
		cb:            resilience.NewCircuitBreaker("google-sheets"),
		retry:         resilience.Retry{MaxRetries: 2, InitialBackoff: 250 * time.Millisecond},
	}
}

// Credentials selects the service account key. JSON wins over File.
type Credentials struct {
	JSON string
	File string
}

// Dial builds a client for spreadsheetID authenticated with creds.
func Dial(ctx context.Context, spreadsheetID, sheetName string, creds Credentials, v *secret.Verifier) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	svc, err := newSheetsService(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return New(svc, spreadsheetID, sheetName, v), nil
}

// newSheetsService initializes a Sheets Service using Service Account
// credentials over a pooled HTTP client.
func newSheetsService(ctx context.Context, creds Credentials) (*gsheet.Service, error) {
	var credentialsJSON []byte
	switch {
	case strings.TrimSpace(creds.JSON) != "":
		credentialsJSON = []byte(creds.JSON)
	case strings.TrimSpace(creds.File) != "":
		b, err := os.ReadFile(strings.TrimSpace(creds.File))
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	slog.InfoContext(ctx, "Creating Google Sheets service",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)

	// WithHTTPClient bypasses option-level credentials, so the token source
	// is attached to the pooled transport here.
	found, err := gauth.CredentialsFromJSON(ctx, credentialsJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse service account credentials: %w", err)
	}
	httpClient := newHTTPClientWithPooling()
	httpClient.Transport = &oauth2.Transport{Source: found.TokenSource, Base: httpClient.Transport}

	svc, err := gsheet.NewService(ctx, goption.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

// newHTTPClientWithPooling creates an HTTP client for the Sheets API with
// connection pooling and bounded timeouts.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}

// FetchAll reads the whole sheet and returns the rows owned by userID.
func (c *Client) FetchAll(ctx context.Context, userID string) ([]core.Transaction, error) {
	values, err := c.readAll(ctx)
	if err != nil {
		return nil, err
	}
	tab := newTable(values)
	out := make([]core.Transaction, 0, len(tab.rows))
	for i := range tab.rows {
		if tab.cellString(i, core.FieldUserID) != userID {
			continue
		}
		tx, err := tab.transaction(i)
		if err != nil {
			slog.WarnContext(ctx, "Skipping malformed sheet row", "row", i+2, "error", err)
			continue
		}
		out = append(out, tx)
	}
	return out, nil
}

// Append writes one row below the existing data.
func (c *Client) Append(ctx context.Context, userID string, tx core.Transaction) error {
	if err := tx.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if err := c.ensureSheet(ctx); err != nil {
		return err
	}
	tab, err := c.header(ctx)
	if err != nil {
		return err
	}
	row := tab.encodeRow(userID, tx)
	vr := &gsheet.ValueRange{Values: [][]any{row}}
	rng := c.sheetName + "!A:" + columnLetter(len(row)-1)
	_, err = resilience.Execute(c.cb, func() (*gsheet.AppendValuesResponse, error) {
		return c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
			ValueInputOption("RAW").
			InsertDataOption("INSERT_ROWS").
			Context(ctx).Do()
	})
	if err != nil {
		return fmt.Errorf("append to %s: %w", c.sheetName, err)
	}
	return nil
}

// Update checks the shared secret, finds the row by id and user, and writes
// only the patched cells.
func (c *Client) Update(ctx context.Context, userID, id string, updates core.FieldUpdates, sharedSecret string) (core.Transaction, error) {
	if err := c.secret.Verify(sharedSecret); err != nil {
		return core.Transaction{}, ports.ErrInvalidSecret
	}
	values, err := c.readAll(ctx)
	if err != nil {
		return core.Transaction{}, err
	}
	tab := newTable(values)
	idx := tab.find(userID, id)
	if idx < 0 {
		return core.Transaction{}, ports.ErrNotFound
	}
	current, err := tab.transaction(idx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("decode row %d: %w", idx+2, err)
	}
	updated := updates.Apply(current)

	data := tab.patchRanges(c.sheetName, idx, updates, updated)
	if len(data) == 0 {
		return updated, nil
	}
	if err := c.batchWrite(ctx, data); err != nil {
		return core.Transaction{}, err
	}
	return updated, nil
}

// Upsert writes tx over the row with the same id, or appends it when absent.
// It is used by the sync worker and does not check the shared secret.
func (c *Client) Upsert(ctx context.Context, userID string, tx core.Transaction) error {
	values, err := c.readAll(ctx)
	if err != nil {
		return err
	}
	tab := newTable(values)
	idx := tab.find(userID, tx.ID)
	if idx < 0 {
		return c.Append(ctx, userID, tx)
	}
	row := tab.encodeRow(userID, tx)
	rng := fmt.Sprintf("%s!A%d:%s%d", c.sheetName, idx+2, columnLetter(len(row)-1), idx+2)
	return c.batchWrite(ctx, []*gsheet.ValueRange{{Range: rng, Values: [][]any{row}}})
}

// Ping checks the spreadsheet is reachable.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.titles(ctx)
	return err
}

func (c *Client) batchWrite(ctx context.Context, data []*gsheet.ValueRange) error {
	req := &gsheet.BatchUpdateValuesRequest{ValueInputOption: "RAW", Data: data}
	_, err := resilience.Execute(c.cb, func() (*gsheet.BatchUpdateValuesResponse, error) {
		return c.svc.Spreadsheets.Values.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do()
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", c.sheetName, err)
	}
	return nil
}

// header reads only the first row, which maps field names to columns.
func (c *Client) header(ctx context.Context) (table, error) {
	resp, err := resilience.Execute(c.cb, func() (*gsheet.ValueRange, error) {
		return c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.sheetName+"!1:1").Context(ctx).Do()
	})
	if err != nil {
		return table{}, fmt.Errorf("read header %s: %w", c.sheetName, err)
	}
	return newTable(resp.Values), nil
}

func (c *Client) readAll(ctx context.Context) ([][]any, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	if err := c.ensureSheet(ctx); err != nil {
		return nil, err
	}
	var resp *gsheet.ValueRange
	err := resilience.Do(ctx, c.retry, func() error {
		var err error
		resp, err = resilience.Execute(c.cb, func() (*gsheet.ValueRange, error) {
			return c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.sheetName).
				ValueRenderOption("UNFORMATTED_VALUE").
				DateTimeRenderOption("SERIAL_NUMBER").
				Context(ctx).Do()
		})
		if err != nil && !retryable(err) {
			return resilience.Permanent(err)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", c.sheetName, err)
	}
	return resp.Values, nil
}

// ensureSheet creates the transactions tab with its header row on first use.
func (c *Client) ensureSheet(ctx context.Context) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	if c.ensured {
		return nil
	}
	titles, err := c.titles(ctx)
	if err != nil {
		return err
	}
	for _, t := range titles {
		if t == c.sheetName {
			c.ensured = true
			return nil
		}
	}

	slog.InfoContext(ctx, "Creating transactions sheet", "sheet", c.sheetName)
	add := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: c.sheetName}},
	}}}
	_, err = resilience.Execute(c.cb, func() (*gsheet.BatchUpdateSpreadsheetResponse, error) {
		return c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, add).Context(ctx).Do()
	})
	if err != nil {
		return fmt.Errorf("create sheet %s: %w", c.sheetName, err)
	}

	header := make([]any, 0, len(core.Columns()))
	for _, col := range core.Columns() {
		header = append(header, col)
	}
	rng := fmt.Sprintf("%s!A1:%s1", c.sheetName, columnLetter(len(header)-1))
	_, err = resilience.Execute(c.cb, func() (*gsheet.UpdateValuesResponse, error) {
		return c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: [][]any{header}}).
			ValueInputOption("RAW").Context(ctx).Do()
	})
	if err != nil {
		return fmt.Errorf("write header %s: %w", c.sheetName, err)
	}
	c.ensured = true
	return nil
}

// retryable reports whether a read failed on quota or a server-side error.
func retryable(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
	}
	return !errors.Is(err, resilience.ErrUnavailable) && !errors.Is(err, context.Canceled)
}

func (c *Client) titles(ctx context.Context) ([]string, error) {
	ss, err := resilience.Execute(c.cb, func() (*gsheet.Spreadsheet, error) {
		return c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	})
	if err != nil {
		return nil, fmt.Errorf("read spreadsheet %s: %w", c.spreadsheetID, err)
	}
	out := make([]string, 0, len(ss.Sheets))
	for _, s := range ss.Sheets {
		if s.Properties != nil {
			out = append(out, s.Properties.Title)
		}
	}
	return out, nil
}
