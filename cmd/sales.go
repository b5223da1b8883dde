package cmd

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"posdash/internal/api"
	"posdash/internal/invoice"
	"posdash/internal/logger"
	"posdash/internal/query"
	"posdash/internal/resource"
	"posdash/internal/sheets"
	"posdash/pkg/models"
)

// exportPageSize is the page size used to walk all sales for export.
const exportPageSize = 20

var salesCmd = &cobra.Command{
	Use:     "sales",
	Aliases: []string{"sale"},
	Short:   "List, inspect, delete and export sales",
}

var salesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sales",
	Example: `  posdash sales list --date 2026-10-18
  posdash sales list --customer-name lima -i`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runList(cmd, saleDef)
	},
}

var salesShowCmd = &cobra.Command{
	Use:   "show <documentId>",
	Short: "Show one sale with its line items",
	Args:  cobra.ExactArgs(1),
	RunE:  runSalesShow,
}

var salesDeleteCmd = &cobra.Command{
	Use:   "delete <documentId>",
	Short: "Delete a sale (asks for confirmation)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDelete(cmd, saleDef, args[0])
	},
}

var salesExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Append sales to a Google Sheet",
	Long: `Append every sale matching the filters to a Google Sheet worksheet.

The worksheet and its header row are created when missing. Sales whose invoice
number is already in the sheet are skipped, so running the export twice does
not duplicate rows.

Requires GOOGLE_APPLICATION_CREDENTIALS pointing to a service account key
with access to the spreadsheet.`,
	Example: `  posdash sales export --date 2026-10-18
  posdash sales export --sheet-url https://docs.google.com/spreadsheets/d/abc123/edit --worksheet October`,
	Args: cobra.NoArgs,
	RunE: runSalesExport,
}

func init() {
	rootCmd.AddCommand(salesCmd)
	salesCmd.AddCommand(salesListCmd, salesShowCmd, salesDeleteCmd, salesExportCmd)

	addListFlags(salesListCmd, saleDef.config.Fields)

	salesDeleteCmd.Flags().BoolP("yes", "y", false, "Delete without asking")

	addFilterFlags(salesExportCmd, saleDef.config.Fields)
	salesExportCmd.Flags().String("sheet-url", "", "Google Sheet URL (default GOOGLE_SHEET_URL)")
	salesExportCmd.Flags().String("worksheet", "", "Worksheet name (default GOOGLE_SHEET_WORKSHEET)")
}

// saleDetailParams populates line items, their products and product images.
func saleDetailParams() url.Values {
	params := url.Values{}
	params.Set("populate[products][populate][product][populate]", "image")
	return params
}

func runSalesShow(cmd *cobra.Command, args []string) error {
	log := logger.WithResource("show", saleDef.config.Name)

	a, err := openApp(log)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.requireSignIn(); err != nil {
		return err
	}

	ctx, cancel := commandContext(log)
	defer cancel()

	sale, err := api.NewResource[models.Sale](a.client, saleDef.path).Get(ctx, args[0], saleDetailParams())
	if err != nil {
		return handleAPIError(err, log)
	}

	printSale(os.Stdout, *sale)
	return nil
}

var saleLineColumns = []column[models.SaleLine]{
	{"PRODUCT", func(l models.SaleLine) string { return saleLineName(l) }},
	{"QTY", func(l models.SaleLine) string { return fmt.Sprint(l.Quantity) }},
	{"PRICE", func(l models.SaleLine) string { return money(l.Price) }},
	{"AMOUNT", func(l models.SaleLine) string {
		return invoice.Money(decimal.NewFromFloat(l.Price).Mul(decimal.NewFromInt(int64(l.Quantity))))
	}},
}

func saleLineName(l models.SaleLine) string {
	if l.Product == nil {
		return "(deleted product)"
	}
	return l.Product.Name
}

// printSale prints a stored sale as it was submitted: header, lines and the
// totals recorded with it.
func printSale(w io.Writer, s models.Sale) {
	fmt.Fprintf(w, "Invoice:   %s\n", s.InvoiceNumber)
	fmt.Fprintf(w, "Date:      %s\n", formatSaleDate(s))
	fmt.Fprintf(w, "Customer:  %s <%s>\n", s.CustomerName, s.CustomerEmail)
	if s.CustomerPhone != "" {
		fmt.Fprintf(w, "Phone:     %s\n", s.CustomerPhone)
	}
	if s.Notes != "" {
		fmt.Fprintf(w, "Notes:     %s\n", s.Notes)
	}
	fmt.Fprintln(w)

	renderTable(w, saleLineColumns, s.Products, 1)
	fmt.Fprintln(w)

	totals := invoice.Totals{
		Subtotal: decimal.NewFromFloat(s.Subtotal),
		Discount: decimal.NewFromFloat(s.DiscountAmount),
		Taxable:  decimal.NewFromFloat(s.Subtotal).Sub(decimal.NewFromFloat(s.DiscountAmount)),
		Tax:      decimal.NewFromFloat(s.TaxAmount),
		Total:    decimal.NewFromFloat(s.Total),
	}
	fmt.Fprintln(w, totals.String())
}

func runSalesExport(cmd *cobra.Command, args []string) error {
	log := logger.WithResource("export", saleDef.config.Name)

	a, err := openApp(log)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.requireSignIn(); err != nil {
		return err
	}

	sheetURL, _ := cmd.Flags().GetString("sheet-url")
	if sheetURL == "" {
		sheetURL = a.cfg.GoogleSheetURL
	}
	worksheet, _ := cmd.Flags().GetString("worksheet")
	if worksheet == "" {
		worksheet = a.cfg.GoogleSheetWorksheet
	}
	if sheetURL == "" {
		return fmt.Errorf("no sheet given: use --sheet-url or set GOOGLE_SHEET_URL")
	}

	ctx, cancel := commandContext(log)
	defer cancel()

	ctl := newController(a, saleDef, exportPageSize, a.notifier)
	sales, err := collectAll(ctx, ctl, readFilters(cmd, saleDef.config.Fields))
	if err != nil {
		return reported(err)
	}
	if len(sales) == 0 {
		fmt.Println("No sales match the filters; nothing to export")
		return nil
	}

	log.Info().
		Int("sales", len(sales)).
		Str("worksheet", worksheet).
		Msg("Exporting sales")

	svc, err := sheets.NewSheetsService(ctx, sheetURL)
	if err != nil {
		return fmt.Errorf("failed to initialize Google Sheets: %w", err)
	}

	written, err := svc.WriteSales(ctx, sales, worksheet)
	if err != nil {
		return fmt.Errorf("failed to export sales: %w", err)
	}

	a.notifier.Success(fmt.Sprintf("Exported %d of %d sales to %q (%d already present)",
		written, len(sales), worksheet, len(sales)-written))
	return nil
}

// collectAll walks every page of the filtered list and returns all records.
func collectAll[T models.Record](ctx context.Context, ctl *resource.Controller[T], filters query.FilterSet) ([]T, error) {
	if err := ctl.SetFilters(ctx, filters); err != nil {
		return nil, err
	}

	var all []T
	for {
		all = append(all, ctl.State().Items...)
		if !ctl.CanNext() {
			return all, nil
		}
		if err := ctl.Next(ctx); err != nil {
			return nil, err
		}
	}
}
