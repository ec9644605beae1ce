package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/semdex/internal/domain/schema"
	"github.com/kailas-cloud/semdex/internal/logger"
)

type lint struct {
	*globals
	Strict bool
}

type lintField struct {
	Name       string   `json:"name" yaml:"name"`
	Required   bool     `json:"required" yaml:"required"`
	Values     int      `json:"values" yaml:"values"`
	Duplicates []string `json:"duplicates,omitempty" yaml:"duplicates,omitempty"`
}

type lintVersion struct {
	Version string      `json:"version" yaml:"version"`
	Fields  []lintField `json:"fields" yaml:"fields"`
}

func newLintCommand(g *globals) *cobra.Command {
	l := &lint{globals: g}
	cmd := &cobra.Command{
		Use:   "lint [ROOT]",
		Short: "Load a schema registry and report problems",
		Example: `
semdexctl lint schema
semdexctl lint --strict /etc/semdex/schema`,
		Args: cobra.MaximumNArgs(1),
		RunE: l.Run,
	}
	cmd.Flags().BoolVar(&l.Strict, "strict", false, "Fail on labels repeated in different branches of a tree")
	return cmd
}

func (l *lint) Run(cmd *cobra.Command, args []string) error {
	root := l.SchemaDir
	if len(args) == 1 {
		root = args[0]
	}
	reg, err := schema.LoadDir(root)
	if err != nil {
		return err
	}
	log := logger.FromContext(cmd.Context())
	log.Debug("schema registry loaded", zap.String("dir", root), zap.Strings("versions", reg.Versions()))

	report := make([]lintVersion, 0, len(reg.Versions()))
	var problems []string
	for _, id := range reg.Versions() {
		v, _ := reg.Version(id)
		lv := lintVersion{Version: id}
		for _, name := range v.Fields() {
			f, _ := v.Field(name)
			dups := f.DuplicateLabels()
			lv.Fields = append(lv.Fields, lintField{
				Name:       name,
				Required:   f.Required(),
				Values:     len(f.Values()),
				Duplicates: dups,
			})
			if len(dups) > 0 {
				log.Warn("labels repeated across branches",
					zap.String("version", id),
					zap.String("field", name),
					zap.Strings("labels", dups),
				)
				problems = append(problems, fmt.Sprintf("%s/%s: labels repeated across branches: %s",
					id, name, strings.Join(dups, ", ")))
			}
		}
		report = append(report, lv)
	}

	if l.Output == outputText {
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "VERSION\tFIELD\tREQUIRED\tVALUES\tDUPLICATES")
		for _, lv := range report {
			for _, f := range lv.Fields {
				fmt.Fprintf(tw, "%s\t%s\t%t\t%d\t%s\n", lv.Version, f.Name, f.Required, f.Values, strings.Join(f.Duplicates, ", "))
			}
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	} else if err := l.write(cmd.OutOrStdout(), report); err != nil {
		return err
	}

	if l.Strict && len(problems) > 0 {
		for _, p := range problems {
			fmt.Fprintln(cmd.ErrOrStderr(), p)
		}
		return fmt.Errorf("lint found %d problem(s)", len(problems))
	}
	return nil
}
