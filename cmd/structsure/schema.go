package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/structsure/internal/render"
)

func newSchemaCmd() *cobra.Command {
	var specFile, schemaFile, format string
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the canonical JSON Schema for a spec or schema file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			doc, err := loadDocument(specFile, schemaFile)
			if err != nil {
				return usageErr(err)
			}
			switch format {
			case "json":
				b, err := doc.MarshalJSONSchema()
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
				return err
			case "markdown":
				_, err := fmt.Fprint(cmd.OutOrStdout(), render.SchemaMarkdown(doc))
				return err
			default:
				return usageErr(fmt.Errorf("unknown format %q (available: json, markdown)", format))
			}
		},
	}
	cmd.Flags().StringVar(&specFile, "spec", "", "flat field spec (JSON)")
	cmd.Flags().StringVar(&schemaFile, "schema", "", "JSON Schema document")
	cmd.Flags().StringVar(&format, "format", "json", "output format (json or markdown)")
	return cmd
}
