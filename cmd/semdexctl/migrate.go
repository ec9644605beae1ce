package main

import (
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/semdex/internal/domain/descriptor"
	"github.com/kailas-cloud/semdex/internal/domain/migrate"
	"github.com/kailas-cloud/semdex/internal/domain/validate"
)

type migrateCmd struct {
	*globals
	Mapping string
	From    string
	To      string
}

type migrated struct {
	From       string            `json:"from" yaml:"from"`
	To         string            `json:"to" yaml:"to"`
	Descriptor map[string]string `json:"descriptor" yaml:"descriptor"`
	Validation validate.Result   `json:"validation" yaml:"validation"`
}

func newMigrateCommand(g *globals) *cobra.Command {
	m := &migrateCmd{globals: g}
	cmd := &cobra.Command{
		Use:   "migrate FILE --to VERSION",
		Short: "Rename descriptor fields for another schema version and validate the result",
		Example: `
semdexctl migrate descriptor.yaml --mapping renames.yaml --to v2`,
		Args: cobra.ExactArgs(1),
		RunE: m.Run,
	}
	cmd.Flags().StringVar(&m.Mapping, "mapping", "", "YAML or JSON file of old_field: new_field renames")
	cmd.Flags().StringVar(&m.From, "from", "", "Source schema version (default: --schema-version)")
	cmd.Flags().StringVar(&m.To, "to", "", "Target schema version")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func (m *migrateCmd) Run(cmd *cobra.Command, args []string) error {
	from := m.From
	if from == "" {
		from = m.Version
	}
	reg, target, err := m.loadVersion(cmd, m.To)
	if err != nil {
		return err
	}
	source, ok := reg.Version(from)
	if !ok {
		return fmt.Errorf("source schema version %q not found (available: %v)", from, reg.Versions())
	}

	var raw map[string]any
	if err := readDocument(args[0], &raw); err != nil {
		return err
	}
	d, err := descriptor.FromMap(raw, source)
	if err != nil {
		return err
	}

	mapping := migrate.Mapping{}
	if m.Mapping != "" {
		if err := readDocument(m.Mapping, &mapping); err != nil {
			return err
		}
	}

	res, err := migrate.Migrate(d, from, mapping, target)
	if err != nil {
		if errors.Is(err, migrate.ErrFieldCollision) {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		return err
	}

	out := migrated{From: res.From, To: res.To, Descriptor: res.Descriptor.Fields(), Validation: res.Validation}
	if m.Output == outputText {
		w := cmd.OutOrStdout()
		names := make([]string, 0, len(out.Descriptor))
		for name := range out.Descriptor {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			fmt.Fprintf(w, "%s: %s\n", name, out.Descriptor[name])
		}
		for _, e := range res.Validation.Errors {
			fmt.Fprintln(cmd.ErrOrStderr(), "error:", e.Message)
		}
		for _, warn := range res.Validation.Warnings {
			fmt.Fprintln(cmd.ErrOrStderr(), "warning:", warn.Message)
		}
	} else if err := m.write(cmd.OutOrStdout(), out); err != nil {
		return err
	}

	if !res.Validation.Valid() {
		return fmt.Errorf("migrated descriptor is invalid against schema %s: %d error(s)", res.To, len(res.Validation.Errors))
	}
	return nil
}
