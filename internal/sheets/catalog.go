package sheets

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// ProductRow is one product read from a catalog worksheet.
// Columns: A=Name, B=Price, C=Stock, D=Barcode, E=Category ID, F=Description.
type ProductRow struct {
	Row         int
	Name        string
	Price       float64
	Stock       int
	Barcode     string
	CategoryID  int
	Description string
}

// Values returns the product fields for a create or update call. The
// category is only linked when the row names one.
func (r ProductRow) Values() map[string]any {
	values := map[string]any{
		"name":        r.Name,
		"price":       r.Price,
		"stock":       r.Stock,
		"barcode":     r.Barcode,
		"description": r.Description,
	}
	if r.CategoryID > 0 {
		values["category"] = r.CategoryID
	}
	return values
}

// ReadProducts reads the catalog worksheet sheetName. The first row is a
// header; rows that cannot be parsed are logged and skipped.
func (s *Service) ReadProducts(ctx context.Context, sheetName string) ([]ProductRow, error) {
	const op = "ReadProducts"

	s.log.Info().Str("sheet", sheetName).Msg("Reading products")

	values, err := s.ReadRange(ctx, sheetName+"!A:F")
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read %s sheet: %w", op, sheetName, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s: %s sheet is empty", op, sheetName)
	}

	products := parseProductRows(values, s.log)

	s.log.Info().
		Int("total_rows", len(values)-1).
		Int("parsed_products", len(products)).
		Str("sheet", sheetName).
		Msg("Products read successfully")

	return products, nil
}

func parseProductRows(values [][]interface{}, log zerolog.Logger) []ProductRow {
	var products []ProductRow
	for i, row := range values[1:] {
		rowNum := i + 2 // header row and 1-based numbering

		if getString(row, 0) == "" {
			log.Debug().Int("row", rowNum).Msg("Skipping row without product name")
			continue
		}

		product, err := parseProductRow(row, rowNum)
		if err != nil {
			log.Warn().
				Err(err).
				Int("row", rowNum).
				Msg("Failed to parse product, skipping")
			continue
		}
		products = append(products, product)
	}
	return products
}

func parseProductRow(row []interface{}, rowNum int) (ProductRow, error) {
	const op = "parseProductRow"

	priceStr := getString(row, 1)
	price, err := parseAmount(priceStr)
	if err != nil {
		return ProductRow{}, fmt.Errorf("%s: invalid price '%s' in row %d: %w", op, priceStr, rowNum, err)
	}
	if price < 0 {
		return ProductRow{}, fmt.Errorf("%s: negative price '%s' in row %d", op, priceStr, rowNum)
	}

	stock, err := parseCount(getString(row, 2))
	if err != nil {
		return ProductRow{}, fmt.Errorf("%s: invalid stock in row %d: %w", op, rowNum, err)
	}

	categoryID, err := parseCount(getString(row, 4))
	if err != nil {
		return ProductRow{}, fmt.Errorf("%s: invalid category id in row %d: %w", op, rowNum, err)
	}

	return ProductRow{
		Row:         rowNum,
		Name:        getString(row, 0),
		Price:       price,
		Stock:       stock,
		Barcode:     getString(row, 3),
		CategoryID:  categoryID,
		Description: getString(row, 5),
	}, nil
}

// parseAmount reads a price as typed into a sheet: "1.50", "1,50",
// "1.234,56", "$ 2.00".
func parseAmount(amountStr string) (float64, error) {
	cleaned := strings.TrimSpace(amountStr)
	if cleaned == "" {
		return 0, fmt.Errorf("empty amount")
	}

	cleaned = strings.NewReplacer(" ", "", "$", "", "€", "", "EUR", "", "USD", "").Replace(cleaned)

	switch {
	case strings.Contains(cleaned, ",") && strings.Contains(cleaned, "."):
		// 1.234,56 or 1,234.56: the last separator is the decimal one
		if strings.LastIndex(cleaned, ",") > strings.LastIndex(cleaned, ".") {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.ReplaceAll(cleaned, ",", ".")
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case strings.Contains(cleaned, ","):
		parts := strings.Split(cleaned, ",")
		if len(parts) == 2 && len(parts[1]) <= 2 {
			cleaned = strings.ReplaceAll(cleaned, ",", ".")
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	}

	amount, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("unable to parse amount: %s (cleaned: %s)", amountStr, cleaned)
	}
	return amount, nil
}

// parseCount reads a non-negative whole number; empty means 0.
func parseCount(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(strings.TrimSuffix(s, ".0"))
	if err != nil {
		return 0, fmt.Errorf("not a whole number: %s", s)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative value: %s", s)
	}
	return n, nil
}

// getString safely extracts a string value from a row slice
func getString(row []interface{}, index int) string {
	if index >= len(row) || row[index] == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprintf("%v", row[index]))
}
