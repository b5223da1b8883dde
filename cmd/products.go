package cmd

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"posdash/internal/api"
	"posdash/internal/logger"
	"posdash/internal/notify"
	"posdash/internal/query"
	"posdash/internal/resource"
	"posdash/internal/sheets"
	"posdash/pkg/models"
)

var productsCmd = &cobra.Command{
	Use:     "products",
	Aliases: []string{"product"},
	Short:   "List, save and delete products",
}

var productsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List products with their category",
	Example: `  posdash products list --category drinks --page-size 20
  posdash products list --barcode 4006 -i`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runList(cmd, productDef)
	},
}

var productsSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Create a product, or update one with --document-id",
	Long: `Create a product, or update the product given by --document-id.

Only the flags given are sent on update. --image uploads the file first and
links the uploaded media to the product; --no-image removes the link.`,
	Example: `  posdash products save --name Cola --price 1.50 --stock 24 --barcode 4006 --category-id 3
  posdash products save --document-id q8x1 --price 1.75 --image cola.png`,
	Args: cobra.NoArgs,
	RunE: runProductSave,
}

var productsDeleteCmd = &cobra.Command{
	Use:   "delete <documentId>",
	Short: "Delete a product (asks for confirmation)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDelete(cmd, productDef, args[0])
	},
}

var productsImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Create or update products from a Google Sheet",
	Long: `Read products from a worksheet and save each one.

Columns: A=Name, B=Price, C=Stock, D=Barcode, E=Category ID, F=Description.
The first row is a header. A product whose barcode already exists is updated;
every other row creates a product. Rows that cannot be parsed are skipped.`,
	Example: `  posdash products import --worksheet Catalog --dry-run
  posdash products import --sheet-url https://docs.google.com/spreadsheets/d/abc123/edit`,
	Args: cobra.NoArgs,
	RunE: runProductsImport,
}

func init() {
	rootCmd.AddCommand(productsCmd)
	productsCmd.AddCommand(productsListCmd, productsSaveCmd, productsDeleteCmd, productsImportCmd)

	addListFlags(productsListCmd, productDef.config.Fields)

	productsSaveCmd.Flags().String("document-id", "", "Document ID of the product to update")
	productsSaveCmd.Flags().String("name", "", "Product name")
	productsSaveCmd.Flags().String("description", "", "Product description")
	productsSaveCmd.Flags().Float64("price", 0, "Unit price")
	productsSaveCmd.Flags().Int("stock", 0, "Units in stock")
	productsSaveCmd.Flags().String("barcode", "", "Barcode")
	productsSaveCmd.Flags().Int("category-id", 0, "ID of the product's category")
	productsSaveCmd.Flags().String("image", "", "Image file to upload and attach")
	productsSaveCmd.Flags().Bool("no-image", false, "Remove the product image")

	productsDeleteCmd.Flags().BoolP("yes", "y", false, "Delete without asking")

	productsImportCmd.Flags().String("sheet-url", "", "Google Sheet URL (default GOOGLE_SHEET_URL)")
	productsImportCmd.Flags().String("worksheet", "Products", "Worksheet holding the catalog")
	productsImportCmd.Flags().Bool("dry-run", false, "Show the parsed rows without saving")
}

func runProductSave(cmd *cobra.Command, args []string) error {
	log := logger.WithResource("save", productDef.config.Name)
	documentID, _ := cmd.Flags().GetString("document-id")
	imagePath, _ := cmd.Flags().GetString("image")
	noImage, _ := cmd.Flags().GetBool("no-image")

	values, err := changedValues(cmd, map[string]string{
		"name":        "name",
		"description": "description",
		"price":       "price",
		"stock":       "stock",
		"barcode":     "barcode",
		"category-id": "category",
	})
	if err != nil {
		return err
	}
	if err := validateProductValues(values, documentID == ""); err != nil {
		return err
	}
	if imagePath != "" && noImage {
		return fmt.Errorf("--image and --no-image are mutually exclusive")
	}

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

	switch {
	case noImage:
		values["image"] = nil
	case imagePath != "":
		f, err := os.Open(imagePath)
		if err != nil {
			return fmt.Errorf("failed to open image: %w", err)
		}
		defer f.Close()

		media, err := a.client.Upload(ctx, filepath.Base(imagePath), f)
		if err != nil {
			a.notifier.Error("Error uploading image")
			return handleAPIError(err, log)
		}
		a.notifier.Success("Image uploaded successfully")
		values["image"] = media.ID
	}

	saved, err := saveRecord(ctx, a, productDef, documentID, values, log)
	if err != nil {
		return err
	}
	printSaved(productDef.config.Label, saved.DocumentID, saved.ID)
	return nil
}

// validateProductValues applies the product form rules.
func validateProductValues(values map[string]any, creating bool) error {
	if creating {
		for _, key := range []string{"name", "price"} {
			if _, ok := values[key]; !ok {
				return fmt.Errorf("--%s is required when creating a product", key)
			}
		}
	}
	if name, ok := values["name"]; ok && name == "" {
		return fmt.Errorf("product name must not be empty")
	}
	if price, ok := values["price"].(float64); ok && price < 0 {
		return fmt.Errorf("price must not be negative")
	}
	if stock, ok := values["stock"].(int); ok && stock < 0 {
		return fmt.Errorf("stock must not be negative")
	}
	if category, ok := values["category"].(int); ok && category <= 0 {
		return fmt.Errorf("--category-id must be a positive id")
	}
	return nil
}

var productRowColumns = []column[sheets.ProductRow]{
	{"ROW", func(r sheets.ProductRow) string { return fmt.Sprint(r.Row) }},
	{"NAME", func(r sheets.ProductRow) string { return r.Name }},
	{"PRICE", func(r sheets.ProductRow) string { return money(r.Price) }},
	{"STOCK", func(r sheets.ProductRow) string { return fmt.Sprint(r.Stock) }},
	{"BARCODE", func(r sheets.ProductRow) string { return r.Barcode }},
	{"CATEGORY ID", func(r sheets.ProductRow) string {
		if r.CategoryID == 0 {
			return ""
		}
		return fmt.Sprint(r.CategoryID)
	}},
}

func runProductsImport(cmd *cobra.Command, args []string) error {
	log := logger.WithResource("import", productDef.config.Name)
	worksheet, _ := cmd.Flags().GetString("worksheet")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	a, err := openApp(log)
	if err != nil {
		return err
	}
	defer a.Close()

	sheetURL, _ := cmd.Flags().GetString("sheet-url")
	if sheetURL == "" {
		sheetURL = a.cfg.GoogleSheetURL
	}
	if sheetURL == "" {
		return fmt.Errorf("no sheet given: use --sheet-url or set GOOGLE_SHEET_URL")
	}

	ctx, cancel := commandContext(log)
	defer cancel()

	svc, err := sheets.NewSheetsService(ctx, sheetURL)
	if err != nil {
		return fmt.Errorf("failed to initialize Google Sheets: %w", err)
	}
	rows, err := svc.ReadProducts(ctx, worksheet)
	if err != nil {
		return fmt.Errorf("failed to read products: %w", err)
	}

	if dryRun || len(rows) == 0 {
		renderTable(os.Stdout, productRowColumns, rows, 1)
		fmt.Printf("\n%d products parsed from %q\n", len(rows), worksheet)
		return nil
	}

	if err := a.requireSignIn(); err != nil {
		return err
	}

	res := api.NewResource[models.Product](a.client, productDef.path)
	ctl := resource.New[models.Product](res, productDef.config, a.notifier)
	result := importProducts(ctx, res, ctl, a.notifier, rows)

	log.Info().
		Int("created", result.created).
		Int("updated", result.updated).
		Int("failed", result.failed).
		Msg("Product import finished")

	fmt.Printf("%d created, %d updated, %d failed\n", result.created, result.updated, result.failed)
	if result.failed > 0 {
		return reported(fmt.Errorf("%d of %d products failed to import", result.failed, len(rows)))
	}
	return nil
}

// productFinder looks products up for import matching.
type productFinder interface {
	List(ctx context.Context, params url.Values) (*models.Page[models.Product], error)
}

type importResult struct {
	created, updated, failed int
}

// importProducts saves every row, updating the product with the same barcode
// when one exists. Failures are counted and the import goes on.
func importProducts(ctx context.Context, finder productFinder, ctl *resource.Controller[models.Product], notifier notify.Notifier, rows []sheets.ProductRow) importResult {
	var result importResult
	for _, row := range rows {
		if ctx.Err() != nil {
			result.failed++
			continue
		}

		existing, err := findByBarcode(ctx, finder, row.Barcode)
		if err != nil {
			notifier.Error(fmt.Sprintf("Row %d: %s", row.Row, api.FormatError(err, "Failed to look up barcode")))
			result.failed++
			continue
		}

		if _, err := ctl.Upsert(ctx, existing, row.Values(), nil); err != nil {
			result.failed++
			continue
		}
		if existing != nil {
			result.updated++
		} else {
			result.created++
		}
	}
	return result
}

// barcodeLookup matches catalog rows to existing products.
var barcodeLookup = query.Options{
	Fields: []query.Field{{Key: "barcode", Kind: query.Equals}},
}

// findByBarcode returns the product with exactly this barcode, or nil.
func findByBarcode(ctx context.Context, finder productFinder, barcode string) (*models.Product, error) {
	if barcode == "" {
		return nil, nil
	}
	params := query.Build(query.FilterSet{"barcode": barcode}, query.PageRequest{Page: 1, PageSize: 1}, barcodeLookup)

	page, err := finder.List(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(page.Items) == 0 {
		return nil, nil
	}
	return &page.Items[0], nil
}
