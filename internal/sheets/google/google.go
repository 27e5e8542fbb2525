package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"carteira/internal/core"

	ports "carteira/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Config carries everything the client needs. Credentials are inline
// Service Account JSON or a file path; one of the two is required.
type Config struct {
	SpreadsheetID   string
	CredentialsJSON string
	CredentialsFile string
	// Datasets defaults to the standard wallet table when empty.
	Datasets []ports.DatasetSpec
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	specs         map[string]ports.DatasetSpec
	order         []ports.DatasetSpec
}

// Ensure interface conformance
var _ ports.RecordReader = (*Client)(nil)

// New creates a read-only Sheets client for the configured spreadsheet.
func New(ctx context.Context, cfg Config) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}

	specs := cfg.Datasets
	if len(specs) == 0 {
		specs = ports.DefaultDatasets()
	}
	for _, s := range specs {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("dataset config: %w", err)
		}
	}

	svc, err := newSheetsService(ctx, cfg.CredentialsJSON, cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		specs:         ports.SpecsByName(specs),
		order:         specs,
	}, nil
}

// newSheetsService initializes a read-only Sheets Service using Service
// Account credentials, preferring inline JSON over a file path.
func newSheetsService(ctx context.Context, inlineJSON, filePath string) (*gsheet.Service, error) {
	inlineJSON = strings.TrimSpace(inlineJSON)
	filePath = strings.TrimSpace(filePath)

	slog.InfoContext(ctx, "Checking Service Account credentials",
		"has_json", inlineJSON != "",
		"file_path", filePath)

	var credentialsJSON []byte
	var err error

	switch {
	case inlineJSON != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(inlineJSON)
	case filePath != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", filePath)
		credentialsJSON, err = os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created successfully")
	return service, nil
}

// Datasets returns the configured dataset table in declaration order.
func (c *Client) Datasets() []ports.DatasetSpec {
	return c.order
}

// Title fetches the spreadsheet title. Used as a connectivity probe.
func (c *Client) Title(ctx context.Context) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	doc, err := c.svc.Spreadsheets.Get(c.spreadsheetID).
		Fields("properties.title").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to get spreadsheet %s: %w", c.spreadsheetID, err)
	}
	if doc.Properties == nil {
		return "", nil
	}
	return doc.Properties.Title, nil
}

// ReadRecords fetches the dataset's worksheet in full and parses it into
// typed records.
func (c *Client) ReadRecords(ctx context.Context, dataset string) (*core.Dataset, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	spec, ok := c.specs[dataset]
	if !ok {
		return nil, fmt.Errorf("unknown dataset: %s", dataset)
	}

	// A quoted title addresses the whole worksheet, spaces included.
	rng := fmt.Sprintf("'%s'", spec.Worksheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	if len(resp.Values) == 0 {
		return nil, fmt.Errorf("worksheet %s is empty", spec.Worksheet)
	}

	ds, err := ports.ParseGrid(resp.Values, spec, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Fetched dataset from Google Sheets",
		"dataset", dataset,
		"worksheet", spec.Worksheet,
		"rows", ds.Len())
	return ds, nil
}
