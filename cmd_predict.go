package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kartoza/exoplanet-portal/internal/flow"
	"github.com/kartoza/exoplanet-portal/internal/logging"
	"github.com/kartoza/exoplanet-portal/internal/schema"
)

var predictFlags struct {
	variant string
	input   string
}

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Run one submission from a YAML or JSON file and print the result",
	Long: `Validates the input document against the chosen form, calls the
prediction API exactly as the portal does and prints the resulting view as
JSON. Exits non-zero when validation or the prediction fails.`,
	RunE: runPredict,
}

func init() {
	f := predictCmd.Flags()
	f.StringVar(&predictFlags.variant, "variant", string(schema.VariantUser), "Form variant: user or scientist")
	f.StringVarP(&predictFlags.input, "input", "i", "", "Input file (.yaml, .yml or .json)")

	_ = predictCmd.MarkFlagRequired("input")
}

func runPredict(cmd *cobra.Command, _ []string) error {
	s, err := schema.Lookup(schema.Variant(predictFlags.variant))
	if err != nil {
		return err
	}
	raw, err := schema.LoadInputFile(predictFlags.input)
	if err != nil {
		return fmt.Errorf("load input: %w", err)
	}

	client, err := newGateway()
	if err != nil {
		return fmt.Errorf("failed to create API client: %w", err)
	}

	ctrl := flow.New(s, client, flow.WithLogger(logging.New("flow")))
	view, err := ctrl.Submit(cmd.Context(), raw)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(view); encErr != nil {
		return fmt.Errorf("encode result: %w", encErr)
	}

	var verr *flow.ValidationError
	switch {
	case errors.As(err, &verr):
		return verr
	case err != nil:
		return err
	case view.State == flow.StateFailed:
		return errors.New(view.Error)
	}
	return nil
}
