package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"posdash/internal/logger"
)

var categoriesCmd = &cobra.Command{
	Use:     "categories",
	Aliases: []string{"category"},
	Short:   "List, save and delete product categories",
}

var categoriesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List categories",
	Example: `  # First page, 10 rows
  posdash categories list

  # Filter by name and browse interactively
  posdash categories list --name drinks -i`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runList(cmd, categoryDef)
	},
}

var categoriesSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Create a category, or update one with --document-id",
	Example: `  posdash categories save --name Drinks --description "Cold and hot drinks"
  posdash categories save --document-id xk2v9a --description "Beverages"`,
	Args: cobra.NoArgs,
	RunE: runCategorySave,
}

var categoriesDeleteCmd = &cobra.Command{
	Use:   "delete <documentId>",
	Short: "Delete a category (asks for confirmation)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDelete(cmd, categoryDef, args[0])
	},
}

func init() {
	rootCmd.AddCommand(categoriesCmd)
	categoriesCmd.AddCommand(categoriesListCmd, categoriesSaveCmd, categoriesDeleteCmd)

	addListFlags(categoriesListCmd, categoryDef.config.Fields)

	categoriesSaveCmd.Flags().String("document-id", "", "Document ID of the category to update")
	categoriesSaveCmd.Flags().String("name", "", "Category name")
	categoriesSaveCmd.Flags().String("description", "", "Category description")

	categoriesDeleteCmd.Flags().BoolP("yes", "y", false, "Delete without asking")
}

func runCategorySave(cmd *cobra.Command, args []string) error {
	log := logger.WithResource("save", categoryDef.config.Name)
	documentID, _ := cmd.Flags().GetString("document-id")

	values, err := changedValues(cmd, map[string]string{
		"name":        "name",
		"description": "description",
	})
	if err != nil {
		return err
	}
	if documentID == "" && values["name"] == nil {
		return fmt.Errorf("--name is required when creating a category")
	}
	if name, ok := values["name"]; ok && name == "" {
		return fmt.Errorf("category name must not be empty")
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

	saved, err := saveRecord(ctx, a, categoryDef, documentID, values, log)
	if err != nil {
		return err
	}
	printSaved(categoryDef.config.Label, saved.DocumentID, saved.ID)
	return nil
}
