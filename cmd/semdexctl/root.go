package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/semdex/internal/domain/schema"
	"github.com/kailas-cloud/semdex/internal/logger"
	"github.com/kailas-cloud/semdex/internal/version"
)

// Output formats.
const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

// globals are the flags shared by every subcommand.
type globals struct {
	SchemaDir string
	Version   string
	Output    string
	Verbose   bool
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "semdexctl",
		Short:         "Inspect semdex schema registries and descriptors",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			switch g.Output {
			case outputText, outputJSON, outputYAML:
			default:
				return fmt.Errorf("unknown output format %q (want text, json or yaml)", g.Output)
			}
			level := "warn"
			if g.Verbose {
				level = "debug"
			}
			log, err := logger.NewConsole(cmd.ErrOrStderr(), level)
			if err != nil {
				return err
			}
			cmd.SetContext(logger.ContextWithLogger(cmd.Context(), log))
			return nil
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&g.SchemaDir, "schema", envOr("SEMDEX_SCHEMA_DIR", "schema"), "Schema registry root")
	flags.StringVar(&g.Version, "schema-version", envOr("SEMDEX_SCHEMA_VERSION", "v1"), "Active schema version")
	flags.StringVarP(&g.Output, "output", "o", outputText, "Output format (text, json, yaml)")
	flags.BoolVarP(&g.Verbose, "verbose", "v", false, "Log registry loading and per-item progress to stderr")

	root.AddCommand(
		newLintCommand(g),
		newValidateCommand(g),
		newNormalizeCommand(g),
		newMigrateCommand(g),
		newConvertCommand(g),
	)
	return root
}

// loadVersion loads the registry and returns the requested version.
func (g *globals) loadVersion(cmd *cobra.Command, id string) (*schema.Registry, *schema.Version, error) {
	reg, err := schema.LoadDir(g.SchemaDir)
	if err != nil {
		return nil, nil, err
	}
	v, ok := reg.Version(id)
	if !ok {
		return nil, nil, fmt.Errorf("schema version %q not found (available: %v)", id, reg.Versions())
	}
	logger.FromContext(cmd.Context()).Debug("schema registry loaded",
		zap.String("dir", g.SchemaDir),
		zap.Strings("versions", reg.Versions()),
		zap.String("active", v.ID()),
		zap.Strings("fields", v.Fields()),
	)
	return reg, v, nil
}

// write renders v in the structured formats; text output is left to the caller.
func (g *globals) write(w io.Writer, v any) error {
	switch g.Output {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	}
}

// readDocument decodes a YAML or JSON file into dst.
func readDocument(path string, dst any) error {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
