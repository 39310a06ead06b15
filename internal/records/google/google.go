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

	"rewards/internal/core"
	"rewards/internal/records"

	"golang.org/x/oauth2"
	gauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Client stores the record table in one tab of a Google Sheet, using the
// same header and column order as the CSV file.
type Client struct {
	mu            sync.Mutex
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

// Ensure interface conformance
var _ records.Store = (*Client)(nil)

// Config holds what New needs. Options are passed to the Sheets service
// after the credentials option, so tests can point it at a fake endpoint.
type Config struct {
	SpreadsheetID string
	SheetName     string
	Options       []goption.ClientOption
}

// NewFromEnv creates a Sheets client using environment variables.
// Required: GOOGLE_SPREADSHEET_ID
// Auth: GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS.
// Optional: GOOGLE_SHEET_NAME (default "Entries").
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	credentialsJSON, err := credentialsFromEnv(ctx)
	if err != nil {
		return nil, err
	}
	return NewWithServiceAccount(ctx, spreadsheetID, os.Getenv("GOOGLE_SHEET_NAME"), credentialsJSON)
}

// NewWithServiceAccount creates a client authenticated with a service
// account key. Token requests and API calls share one pooled transport.
func NewWithServiceAccount(ctx context.Context, spreadsheetID, sheetName string, credentialsJSON []byte) (*Client, error) {
	creds, err := gauth.CredentialsFromJSON(ctx, credentialsJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse service account credentials: %w", err)
	}
	baseCtx := context.WithValue(context.Background(), oauth2.HTTPClient, newHTTPClientWithPooling())
	return New(ctx, Config{
		SpreadsheetID: spreadsheetID,
		SheetName:     sheetName,
		Options: []goption.ClientOption{
			goption.WithHTTPClient(oauth2.NewClient(baseCtx, creds.TokenSource)),
		},
	})
}

// New creates a client from explicit configuration.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	name := strings.TrimSpace(cfg.SheetName)
	if name == "" {
		name = "Entries"
	}
	svc, err := gsheet.NewService(ctx, cfg.Options...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created", "spreadsheet_id", cfg.SpreadsheetID, "sheet", name)
	return &Client{svc: svc, spreadsheetID: cfg.SpreadsheetID, sheetName: name}, nil
}

// credentialsFromEnv reads Service Account credentials from
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or
// GOOGLE_APPLICATION_CREDENTIALS.
func credentialsFromEnv(ctx context.Context) ([]byte, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case serviceAccountJSON != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		return []byte(serviceAccountJSON), nil
	case serviceAccountFile != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
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
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   5,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}

// SheetName returns the tab the table lives in.
func (c *Client) SheetName() string { return c.sheetName }

func (c *Client) rangeOf(cells string) string {
	return fmt.Sprintf("%s!%s", quoteSheet(c.sheetName), cells)
}

// Load implements records.Loader. An empty tab counts as Missing.
func (c *Client) Load(ctx context.Context) records.LoadResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.svc == nil {
		return records.UnreadableResult(errors.New("sheets service not initialized"))
	}
	rng := c.rangeOf("A:E")
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return records.UnreadableResult(fmt.Errorf("read %s: %w", rng, err))
	}
	if len(resp.Values) == 0 {
		return records.MissingResult()
	}
	t, err := records.DecodeTable(toRows(resp.Values))
	if err != nil {
		return records.UnreadableResult(fmt.Errorf("decode %s: %w", rng, err))
	}
	return records.LoadedResult(t)
}

// Save implements records.Saver. Rows are written from A1 first and the
// leftover rows of a longer previous table are cleared afterwards, so the
// tab is never empty mid-save.
func (c *Client) Save(ctx context.Context, t core.Table) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	rows := records.EncodeTable(t.WithRecomputedWeeks())
	values := make([][]any, len(rows))
	for i, row := range rows {
		cells := make([]any, len(row))
		for j, v := range row {
			cells[j] = v
		}
		values[i] = cells
	}

	dataRange := c.rangeOf(fmt.Sprintf("A1:E%d", len(rows)))
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, dataRange, &gsheet.ValueRange{Values: values}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write %s: %w", dataRange, err)
	}

	tailRange := c.rangeOf(fmt.Sprintf("A%d:E", len(rows)+1))
	_, err = c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, tailRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear %s: %w", tailRange, err)
	}

	slog.InfoContext(ctx, "Saved records to Google Sheets", "sheet", c.sheetName, "rows", len(t))
	return nil
}

// quoteSheet wraps sheet names containing spaces or punctuation in single
// quotes, as A1 notation requires.
func quoteSheet(name string) string {
	for _, r := range name {
		if !(r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return "'" + strings.ReplaceAll(name, "'", "''") + "'"
		}
	}
	return name
}

func toRows(in [][]interface{}) [][]string {
	out := make([][]string, len(in))
	for i, row := range in {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = strings.TrimSpace(fmt.Sprint(v))
		}
		out[i] = cells
	}
	return out
}
