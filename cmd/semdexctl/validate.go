package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/semdex/internal/domain/descriptor"
	"github.com/kailas-cloud/semdex/internal/domain/validate"
)

type validateCmd struct {
	*globals
	Partial bool
}

func newValidateCommand(g *globals) *cobra.Command {
	v := &validateCmd{globals: g}
	cmd := &cobra.Command{
		Use:   "validate FILE",
		Short: "Validate a descriptor file against the active schema version",
		Example: `
semdexctl validate descriptor.yaml
semdexctl validate --partial --schema-version v2 draft.json`,
		Args: cobra.ExactArgs(1),
		RunE: v.Run,
	}
	cmd.Flags().BoolVar(&v.Partial, "partial", false, "Skip required-field checks")
	return cmd
}

func (v *validateCmd) Run(cmd *cobra.Command, args []string) error {
	_, version, err := v.loadVersion(cmd, v.Version)
	if err != nil {
		return err
	}

	var raw map[string]any
	if err := readDocument(args[0], &raw); err != nil {
		return err
	}
	d, err := descriptor.FromMap(raw, version)
	if err != nil {
		return err
	}
	res := validate.New(version).ValidateDescriptor(d, v.Partial)

	out := cmd.OutOrStdout()
	if v.Output == outputText {
		for _, e := range res.Errors {
			fmt.Fprintln(out, "error:", e.Message)
		}
		for _, w := range res.Warnings {
			fmt.Fprintln(out, "warning:", w.Message)
		}
		if res.Valid() {
			fmt.Fprintf(out, "%s: valid against schema %s\n", args[0], version.ID())
		}
	} else if err := v.write(out, res); err != nil {
		return err
	}

	if !res.Valid() {
		return fmt.Errorf("%s: %d error(s)", args[0], len(res.Errors))
	}
	return nil
}
