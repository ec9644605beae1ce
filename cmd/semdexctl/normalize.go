package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/semdex/internal/domain/normalize"
)

type normalizeCmd struct {
	*globals
}

type normalized struct {
	Input string   `json:"input" yaml:"input"`
	Value string   `json:"value" yaml:"value"`
	Path  []string `json:"path" yaml:"path"`
}

func newNormalizeCommand(g *globals) *cobra.Command {
	n := &normalizeCmd{globals: g}
	return &cobra.Command{
		Use:   "normalize VALUE...",
		Short: "Print the canonical form of descriptor values",
		Example: `
semdexctl normalize "Science -> Biology"
semdexctl normalize -o json "Arts/Music" "Science > Physics"`,
		Args: cobra.MinimumNArgs(1),
		RunE: n.Run,
	}
}

func (n *normalizeCmd) Run(cmd *cobra.Command, args []string) error {
	results := make([]normalized, 0, len(args))
	for _, in := range args {
		v, err := normalize.Value(in)
		if err != nil {
			return err
		}
		results = append(results, normalized{Input: in, Value: v, Path: normalize.Path(v)})
	}

	if n.Output != outputText {
		return n.write(cmd.OutOrStdout(), results)
	}
	for _, r := range results {
		fmt.Fprintln(cmd.OutOrStdout(), r.Value)
	}
	return nil
}
