// Package sheets exports sales to a Google Sheets worksheet and reads product
// catalogs from one.
package sheets

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
	"posdash/internal/logger"
	"posdash/pkg/models"
)

// columnCount is the number of exported columns (A to M).
const columnCount = 13

var headers = []interface{}{
	"Invoice Number", "Date", "Customer", "Email", "Phone", "Items",
	"Subtotal", "Discount", "Tax", "Total", "Notes", "Document ID", "Exported",
}

// Service handles Google Sheets operations
type Service struct {
	sheetsService *sheets.Service
	spreadsheetID string
	log           zerolog.Logger
}

// SaleRow represents a row to be written to the sheet
type SaleRow struct {
	InvoiceNumber  string
	Date           string
	CustomerName   string
	CustomerEmail  string
	CustomerPhone  string
	Items          int
	Subtotal       float64
	DiscountAmount float64
	TaxAmount      float64
	Total          float64
	Notes          string
	DocumentID     string
	ExportedAt     string
}

// NewSheetsService creates a new Google Sheets service
func NewSheetsService(ctx context.Context, sheetURL string) (*Service, error) {
	const op = "NewSheetsService"

	log := logger.WithComponent("sheets")

	// Extract spreadsheet ID from URL
	spreadsheetID, err := extractSpreadsheetID(sheetURL)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to extract spreadsheet ID: %w", op, err)
	}

	log.Debug().Str("spreadsheet_id", spreadsheetID).Msg("Extracted spreadsheet ID")

	// Get Google credentials
	var creds []byte
	if credsFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credsFile != "" {
		creds, err = os.ReadFile(credsFile)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to read credentials file: %w", op, err)
		}
	} else if credsJSON := os.Getenv("GOOGLE_CREDENTIALS"); credsJSON != "" {
		creds = []byte(credsJSON)
	} else {
		return nil, fmt.Errorf("%s: neither GOOGLE_APPLICATION_CREDENTIALS nor GOOGLE_CREDENTIALS is set", op)
	}

	config, err := google.JWTConfigFromJSON(creds, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse credentials: %w", op, err)
	}

	client := config.Client(ctx)
	sheetsService, err := sheets.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create sheets service: %w", op, err)
	}

	return &Service{
		sheetsService: sheetsService,
		spreadsheetID: spreadsheetID,
		log:           log,
	}, nil
}

var spreadsheetIDPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9-_]+)`)

// extractSpreadsheetID extracts the spreadsheet ID from a Google Sheets URL
func extractSpreadsheetID(url string) (string, error) {
	matches := spreadsheetIDPattern.FindStringSubmatch(url)
	if len(matches) < 2 {
		return "", fmt.Errorf("invalid Google Sheets URL format")
	}
	return matches[1], nil
}

// WriteSales appends one row per sale to sheetName, creating the sheet and
// its header row when missing. Sales whose invoice number is already in the
// sheet are skipped. It returns the number of rows written.
func (s *Service) WriteSales(ctx context.Context, sales []models.Sale, sheetName string) (int, error) {
	const op = "WriteSales"

	s.log.Info().
		Str("sheet", sheetName).
		Int("sales", len(sales)).
		Msg("Exporting sales to Google Sheet")

	if err := s.ensureSheetWithHeaders(ctx, sheetName); err != nil {
		return 0, fmt.Errorf("%s: failed to ensure sheet exists: %w", op, err)
	}

	existing, err := s.ReadRange(ctx, sheetName+"!A2:A")
	if err != nil {
		return 0, fmt.Errorf("%s: failed to read exported invoice numbers: %w", op, err)
	}

	rows := convertSalesToRows(skipExported(sales, firstColumn(existing)), time.Now())
	if len(rows) == 0 {
		s.log.Info().Msg("Nothing new to export")
		return 0, nil
	}

	values := make([][]interface{}, 0, len(rows))
	for _, row := range rows {
		values = append(values, rowToValues(row))
	}

	_, err = s.sheetsService.Spreadsheets.Values.Append(
		s.spreadsheetID,
		sheetName+"!A:M",
		&sheets.ValueRange{Values: values},
	).ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("%s: failed to append values to sheet: %w", op, err)
	}

	s.log.Info().
		Int("rows_written", len(values)).
		Msg("Successfully exported sales to Google Sheet")

	return len(values), nil
}

// skipExported drops sales whose invoice number is already present.
func skipExported(sales []models.Sale, exported map[string]bool) []models.Sale {
	if len(exported) == 0 {
		return sales
	}
	out := make([]models.Sale, 0, len(sales))
	for _, sale := range sales {
		if exported[strings.TrimSpace(sale.InvoiceNumber)] {
			continue
		}
		out = append(out, sale)
	}
	return out
}

func firstColumn(values [][]interface{}) map[string]bool {
	out := make(map[string]bool, len(values))
	for _, row := range values {
		if len(row) == 0 {
			continue
		}
		if v := strings.TrimSpace(fmt.Sprint(row[0])); v != "" {
			out[v] = true
		}
	}
	return out
}

// convertSalesToRows converts sales to sheet rows
func convertSalesToRows(sales []models.Sale, now time.Time) []SaleRow {
	exportedAt := now.Format("2006-01-02 15:04:05")

	rows := make([]SaleRow, 0, len(sales))
	for _, sale := range sales {
		row := SaleRow{
			InvoiceNumber:  sale.InvoiceNumber,
			CustomerName:   sale.CustomerName,
			CustomerEmail:  sale.CustomerEmail,
			CustomerPhone:  sale.CustomerPhone,
			Subtotal:       sale.Subtotal,
			DiscountAmount: sale.DiscountAmount,
			TaxAmount:      sale.TaxAmount,
			Total:          sale.Total,
			Notes:          sale.Notes,
			DocumentID:     sale.DocumentID,
			ExportedAt:     exportedAt,
		}
		if !sale.Date.IsZero() {
			row.Date = sale.Date.Local().Format("2006-01-02 15:04")
		}
		for _, line := range sale.Products {
			row.Items += line.Quantity
		}
		rows = append(rows, row)
	}
	return rows
}

// rowToValues converts SaleRow to interface{} slice for Google Sheets
func rowToValues(row SaleRow) []interface{} {
	return []interface{}{
		row.InvoiceNumber,  // A
		row.Date,           // B
		row.CustomerName,   // C
		row.CustomerEmail,  // D
		row.CustomerPhone,  // E
		row.Items,          // F
		row.Subtotal,       // G
		row.DiscountAmount, // H
		row.TaxAmount,      // I
		row.Total,          // J
		row.Notes,          // K
		row.DocumentID,     // L
		row.ExportedAt,     // M
	}
}

// ensureSheetWithHeaders ensures the sheet exists and has proper headers
func (s *Service) ensureSheetWithHeaders(ctx context.Context, sheetName string) error {
	const op = "ensureSheetWithHeaders"

	spreadsheet, err := s.sheetsService.Spreadsheets.Get(s.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to get spreadsheet: %w", op, err)
	}

	var sheetExists bool
	var sheetID int64
	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties.Title == sheetName {
			sheetExists = true
			sheetID = sheet.Properties.SheetId
			break
		}
	}

	if !sheetExists {
		s.log.Info().Str("sheet", sheetName).Msg("Creating new sheet")

		batchUpdateReq := &sheets.BatchUpdateSpreadsheetRequest{
			Requests: []*sheets.Request{
				{AddSheet: &sheets.AddSheetRequest{
					Properties: &sheets.SheetProperties{Title: sheetName},
				}},
			},
		}

		resp, err := s.sheetsService.Spreadsheets.BatchUpdate(s.spreadsheetID, batchUpdateReq).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("%s: failed to create sheet: %w", op, err)
		}
		sheetID = resp.Replies[0].AddSheet.Properties.SheetId
	}

	headerRange := fmt.Sprintf("%s!A1:M1", sheetName)
	resp, err := s.sheetsService.Spreadsheets.Values.Get(s.spreadsheetID, headerRange).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to get headers: %w", op, err)
	}

	if len(resp.Values) == 0 || len(resp.Values[0]) == 0 {
		s.log.Info().Str("sheet", sheetName).Msg("Adding headers to sheet")

		_, err = s.sheetsService.Spreadsheets.Values.Update(
			s.spreadsheetID,
			headerRange,
			&sheets.ValueRange{Values: [][]interface{}{headers}},
		).ValueInputOption("RAW").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("%s: failed to add headers: %w", op, err)
		}

		if err := s.formatHeaders(ctx, sheetID); err != nil {
			s.log.Warn().Err(err).Msg("Failed to format headers, continuing anyway")
		}
	}

	return nil
}

// formatHeaders makes the header row bold and resizes the columns
func (s *Service) formatHeaders(ctx context.Context, sheetID int64) error {
	const op = "formatHeaders"

	requests := []*sheets.Request{
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          sheetID,
					StartRowIndex:    0,
					EndRowIndex:      1,
					StartColumnIndex: 0,
					EndColumnIndex:   columnCount,
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						TextFormat:      &sheets.TextFormat{Bold: true},
						BackgroundColor: &sheets.Color{Red: 0.9, Green: 0.9, Blue: 0.9},
					},
				},
				Fields: "userEnteredFormat(textFormat,backgroundColor)",
			},
		},
		{
			AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
				Dimensions: &sheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "COLUMNS",
					StartIndex: 0,
					EndIndex:   columnCount,
				},
			},
		},
	}

	batchUpdateReq := &sheets.BatchUpdateSpreadsheetRequest{Requests: requests}
	if _, err := s.sheetsService.Spreadsheets.BatchUpdate(s.spreadsheetID, batchUpdateReq).Context(ctx).Do(); err != nil {
		return fmt.Errorf("%s: failed to format headers: %w", op, err)
	}

	return nil
}

// ReadRange reads values from a specified range in the spreadsheet
func (s *Service) ReadRange(ctx context.Context, rangeSpec string) ([][]interface{}, error) {
	const op = "ReadRange"

	s.log.Debug().
		Str("range", rangeSpec).
		Msg("Reading range from spreadsheet")

	resp, err := s.sheetsService.Spreadsheets.Values.Get(s.spreadsheetID, rangeSpec).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read range %s: %w", op, rangeSpec, err)
	}

	s.log.Debug().
		Int("rows", len(resp.Values)).
		Str("range", rangeSpec).
		Msg("Successfully read range from spreadsheet")

	return resp.Values, nil
}
