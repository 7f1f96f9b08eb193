package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"github.com/ebisaa944/ExpenseTracker/internal/core"
)

// SheetsMirror appends lifecycle records to a Google Sheets worksheet.
// It satisfies Target so the worker can treat it like any other sink.
type SheetsMirror struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

var _ Target = (*SheetsMirror)(nil)

// NewSheetsMirror creates a mirror for the given spreadsheet using service
// account credentials. Credentials come from GOOGLE_SERVICE_ACCOUNT_JSON,
// GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS.
func NewSheetsMirror(ctx context.Context, spreadsheetID, sheetName string) (*SheetsMirror, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet ID")
	}
	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &SheetsMirror{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}, nil
}

func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
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
	return service, nil
}

func (m *SheetsMirror) RecordCreated(ctx context.Context, tx core.Transaction) error {
	row := []any{
		time.Now().UTC().Format(time.RFC3339),
		"created",
		tx.ID,
		tx.Title,
		tx.Amount.String(),
		string(tx.Type),
		tx.Category,
		tx.Date.String(),
	}
	return m.appendRow(ctx, row)
}

func (m *SheetsMirror) RecordDeleted(ctx context.Context, id int64, at time.Time) error {
	row := []any{at.UTC().Format(time.RFC3339), "deleted", id, "", "", "", "", ""}
	return m.appendRow(ctx, row)
}

func (m *SheetsMirror) appendRow(ctx context.Context, row []any) error {
	if m.svc == nil {
		return errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A:H", m.sheetName)
	vr := &gsheet.ValueRange{Values: [][]any{row}}
	_, err := m.svc.Spreadsheets.Values.Append(m.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to sheet %s: %w", m.sheetName, err)
	}
	return nil
}
