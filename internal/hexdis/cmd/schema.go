package cmd

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"

	"hexdis/internal/asm"
	"hexdis/internal/config"
	"hexdis/internal/numfmt"
)

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "schema",
		Short:  "Generate JSON schema for configuration",
		Long:   "Generate JSON schema for the hexdis configuration file",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			bts, err := configSchema()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(bts))
			return nil
		},
	}
}

func configSchema() ([]byte, error) {
	reflector := &jsonschema.Reflector{
		// Arch and Format are integers in memory but text in the file.
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			switch t {
			case reflect.TypeFor[asm.Arch]():
				return &jsonschema.Schema{Type: "string", Enum: []any{"x86_16", "x86_32"}}
			case reflect.TypeFor[numfmt.Format]():
				return &jsonschema.Schema{Type: "string", Enum: []any{"hex", "dec", "bin"}}
			}
			return nil
		},
	}
	bts, err := json.MarshalIndent(reflector.Reflect(&config.Config{}), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return bts, nil
}
