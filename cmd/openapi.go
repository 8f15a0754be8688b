package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/invoice-payments/internal/transport/swagger"
)

var openapiFile string

var openapiCmd = &cobra.Command{
	Use:   "openapi",
	Short: "Validate the OpenAPI document",
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := swagger.LoadSpec(context.Background(), openapiFile)
		if err != nil {
			return err
		}
		fmt.Printf("%s is valid: %s %s, %d paths\n", openapiFile, doc.Info.Title, doc.Info.Version, doc.Paths.Len())
		return nil
	},
}

func init() {
	openapiCmd.Flags().StringVarP(&openapiFile, "file", "f", "api/openapi.yml", "path to the OpenAPI document")
}
