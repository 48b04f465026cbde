package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/AltairaLabs/InterviewKit/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate an InterviewServer manifest",
	Long: `Checks a manifest against the InterviewServer JSON schema and, unless
--schema-only is given, loads it the way serve does: .env files are read,
${VAR} references expanded, defaults applied and cross-field rules checked.

Examples:
  interviewd validate interviewd.yaml
  interviewd validate interviewd.yaml --schema-only`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

var validateSchemaOnly bool

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().BoolVar(&validateSchemaOnly, "schema-only", false, "Only validate against the schema")
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := defaultConfigFile
	if len(args) == 1 {
		path = args[0]
	}
	if err := validateFile(path, validateSchemaOnly); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✅ %s is valid\n", filepath.Base(path))
	return nil
}

func validateFile(path string, schemaOnly bool) error {
	if !schemaOnly {
		_, err := config.Load(path)
		return err
	}
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	return config.ValidateServerConfig(config.ExpandEnv(data))
}
