package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/structsure/internal/schema"
)

func newInferCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "infer <examples.json|examples.jsonl>",
		Short: "Infer a flat field spec from example records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			samples, err := schema.LoadExamples(args[0])
			if err != nil {
				return usageErr(err)
			}
			spec := schema.InferSpec(samples)
			b, err := json.MarshalIndent(spec, "", "  ")
			if err != nil {
				return fmt.Errorf("infer: marshal: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return err
		},
	}
}
