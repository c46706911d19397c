// Package google stores the record store in a Google Sheets worksheet.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"payrollforms/internal/core"
	"payrollforms/internal/log"
	"payrollforms/internal/persist"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const (
	backendName = "sheets"

	// DefaultSheetName is the worksheet used when none is configured.
	DefaultSheetName = "Payroll Forms"

	// valueInputRaw stores cell text as typed, so "07/03/2025" stays a string.
	valueInputRaw = "RAW"
)

// Columns written on save. Everything else is dropped.
var writeHeader = []any{"id", "content", "date"}

// valuesAPI is the subset of spreadsheets.values used by the client.
type valuesAPI interface {
	Get(ctx context.Context, spreadsheetID, rng string) (*gsheet.ValueRange, error)
	Clear(ctx context.Context, spreadsheetID, rng string) error
	Update(ctx context.Context, spreadsheetID, rng string, vr *gsheet.ValueRange) error
}

type serviceValues struct {
	svc *gsheet.Service
}

func (s serviceValues) Get(ctx context.Context, spreadsheetID, rng string) (*gsheet.ValueRange, error) {
	return s.svc.Spreadsheets.Values.Get(spreadsheetID, rng).Context(ctx).Do()
}

func (s serviceValues) Clear(ctx context.Context, spreadsheetID, rng string) error {
	_, err := s.svc.Spreadsheets.Values.Clear(spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do()
	return err
}

func (s serviceValues) Update(ctx context.Context, spreadsheetID, rng string, vr *gsheet.ValueRange) error {
	_, err := s.svc.Spreadsheets.Values.Update(spreadsheetID, rng, vr).
		ValueInputOption(valueInputRaw).Context(ctx).Do()
	return err
}

// Options configures a Client.
type Options struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

// Client is a persist.Adapter over one worksheet. Saves are a clear followed
// by a rewrite and are not atomic: two overlapping saves can interleave.
type Client struct {
	values        valuesAPI
	spreadsheetID string
	logger        *log.Logger
	now           func() time.Time

	mu        sync.RWMutex
	sheetName string
}

var _ persist.Adapter = (*Client)(nil)

// NewFromEnv creates a Sheets client using environment variables.
// Required: GOOGLE_SPREADSHEET_ID
// Auth: GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS
// Optional: GOOGLE_SHEET_NAME (default "Payroll Forms")
func NewFromEnv(ctx context.Context, logger *log.Logger) (*Client, error) {
	return New(ctx, Options{
		SpreadsheetID:   os.Getenv("GOOGLE_SPREADSHEET_ID"),
		SheetName:       os.Getenv("GOOGLE_SHEET_NAME"),
		CredentialsJSON: os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"),
		CredentialsFile: firstNonEmpty(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"), os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")),
	}, logger)
}

func New(ctx context.Context, opts Options, logger *log.Logger) (*Client, error) {
	spreadsheetID := strings.TrimSpace(opts.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentSheets)

	svc, err := newSheetsService(ctx, opts, logger)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newClient(serviceValues{svc: svc}, spreadsheetID, opts.SheetName, logger), nil
}

func newClient(values valuesAPI, spreadsheetID, sheetName string, logger *log.Logger) *Client {
	sheetName = strings.TrimSpace(sheetName)
	if sheetName == "" {
		sheetName = DefaultSheetName
	}
	return &Client{
		values:        values,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		logger:        logger,
		now:           time.Now,
	}
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context, opts Options, logger *log.Logger) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(opts.CredentialsJSON)
	serviceAccountFile := strings.TrimSpace(opts.CredentialsFile)

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		logger.DebugContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		logger.DebugContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	logger.InfoContext(ctx, "Google Sheets service created", "credentials_size", len(credentialsJSON))
	return service, nil
}

func (c *Client) Name() string { return backendName }

// SheetName returns the designated worksheet.
func (c *Client) SheetName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sheetName
}

// SetSheetName switches the designated worksheet. Blank names are ignored.
func (c *Client) SetSheetName(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sheetName = name
}

// Load reads the used range of the designated sheet.
func (c *Client) Load(ctx context.Context) (*core.Store, error) {
	sheet := c.SheetName()
	resp, err := c.values.Get(ctx, c.spreadsheetID, quoteSheet(sheet))
	if err != nil {
		return nil, &core.PersistenceError{
			Backend: backendName,
			Op:      log.OpLoad,
			Err:     &core.HostIntegrationError{Op: "values.get " + sheet, Err: err},
		}
	}

	store, stats := parseRecords(resp.Values, c.now())
	if stats.blankIDs > 0 {
		c.logger.WarnContext(ctx, "Rows without id were merged under an empty id", log.FieldSheet, sheet, "rows", stats.blankIDs)
	}
	if stats.reconstructed > 0 {
		c.logger.WarnContext(ctx, "Reconstructed fields the sheet does not store",
			log.FieldSheet, sheet,
			log.FieldRecords, stats.reconstructed,
			"fields", "createdAt,lastModified,monthKey")
	}
	c.logger.DebugContext(ctx, "Forms loaded from sheet", log.FieldSheet, sheet, log.FieldRecords, store.Len())
	return store, nil
}

// Save clears the designated sheet and rewrites it as id, content, date rows
// in store order. createdAt, lastModified and monthKey are not written.
func (c *Client) Save(ctx context.Context, s *core.Store) error {
	sheet := c.SheetName()
	rng := quoteSheet(sheet)

	if err := c.values.Clear(ctx, c.spreadsheetID, rng); err != nil {
		return &core.PersistenceError{
			Backend: backendName,
			Op:      log.OpSave,
			Err:     &core.HostIntegrationError{Op: "values.clear " + sheet, Err: err},
		}
	}

	rows := make([][]any, 0, s.Len()+1)
	rows = append(rows, writeHeader)
	for r := range s.All() {
		rows = append(rows, []any{r.ID, r.Content, r.Date})
	}

	vr := &gsheet.ValueRange{Values: rows}
	if err := c.values.Update(ctx, c.spreadsheetID, rng+"!A1", vr); err != nil {
		return &core.PersistenceError{
			Backend: backendName,
			Op:      log.OpSave,
			Err:     &core.HostIntegrationError{Op: "values.update " + sheet, Err: err},
		}
	}
	c.logger.DebugContext(ctx, "Forms written to sheet", log.FieldSheet, sheet, log.FieldRecords, s.Len())
	return nil
}

// Ping reads the first cell of the designated sheet.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.values.Get(ctx, c.spreadsheetID, quoteSheet(c.SheetName())+"!A1")
	if err != nil {
		return &core.HostIntegrationError{Op: "values.get", Err: err}
	}
	return nil
}

// quoteSheet renders a sheet name for A1 notation.
func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
