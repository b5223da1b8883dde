package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"posdash/internal/api"
	"posdash/internal/logger"
	"posdash/pkg/models"
)

// saveRecord creates a record from values, or updates the record with
// documentID when one is given.
func saveRecord[T models.Record](ctx context.Context, a *app, def resourceDef[T], documentID string, values map[string]any, log zerolog.Logger) (*T, error) {
	res := api.NewResource[T](a.client, def.path)
	ctl := newController(a, def, 0, a.notifier)

	var existing *T
	if documentID != "" {
		record, err := res.Get(ctx, documentID, nil)
		if err != nil {
			return nil, handleAPIError(err, log)
		}
		existing = record
	} else if len(values) == 0 {
		return nil, fmt.Errorf("nothing to save")
	}

	saved, err := ctl.Upsert(ctx, existing, values, func(saved *T) {
		log.Info().
			Str("document_id", (*saved).RecordDocumentID()).
			Msg("Record saved")
	})
	if err != nil {
		return nil, reported(err)
	}
	return saved, nil
}

// runDelete deletes one record after confirmation (or --yes).
func runDelete[T models.Record](cmd *cobra.Command, def resourceDef[T], documentID string) error {
	log := logger.WithResource("delete", def.config.Name)
	yes, _ := cmd.Flags().GetBool("yes")

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

	record, err := api.NewResource[T](a.client, def.path).Get(ctx, documentID, nil)
	if err != nil {
		return handleAPIError(err, log)
	}

	if !yes {
		ok, err := askConfirm(ctx, fmt.Sprintf("Delete %s %s?", strings.ToLower(def.config.Label), def.describe(*record)))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Canceled")
			return nil
		}
	}

	ctl := newController(a, def, 0, a.notifier)
	ctl.RequestDelete(*record)
	if err := ctl.ConfirmDelete(ctx); err != nil {
		return reported(err)
	}
	return nil
}

// changedValues collects the flags that were set on the command line.
func changedValues(cmd *cobra.Command, fields map[string]string) (map[string]any, error) {
	values := map[string]any{}
	for flag, key := range fields {
		if !cmd.Flags().Changed(flag) {
			continue
		}
		f := cmd.Flags().Lookup(flag)
		switch f.Value.Type() {
		case "int":
			n, err := cmd.Flags().GetInt(flag)
			if err != nil {
				return nil, err
			}
			values[key] = n
		case "float64":
			v, err := cmd.Flags().GetFloat64(flag)
			if err != nil {
				return nil, err
			}
			values[key] = v
		default:
			v, _ := cmd.Flags().GetString(flag)
			values[key] = strings.TrimSpace(v)
		}
	}
	return values, nil
}

func printSaved(label, documentID string, id int) {
	fmt.Printf("%s saved (id %d, document %s)\n", label, id, documentID)
}
