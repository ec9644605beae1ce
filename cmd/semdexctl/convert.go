package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/semdex/internal/domain/descriptor"
	"github.com/kailas-cloud/semdex/internal/domain/validate"
	"github.com/kailas-cloud/semdex/internal/logger"
	"github.com/kailas-cloud/semdex/internal/repository/archive"
)

// formatDir selects the one-file-per-item directory layout.
const formatDir = "dir"

type convertCmd struct {
	*globals
	From  string
	To    string
	Check bool
}

type recordIssue struct {
	Position int      `json:"position" yaml:"position"`
	ID       string   `json:"id" yaml:"id"`
	Errors   []string `json:"errors" yaml:"errors"`
}

type converted struct {
	Input   string        `json:"input" yaml:"input"`
	Output  string        `json:"output" yaml:"output"`
	From    string        `json:"from" yaml:"from"`
	To      string        `json:"to" yaml:"to"`
	Records int           `json:"records" yaml:"records"`
	Invalid []recordIssue `json:"invalid,omitempty" yaml:"invalid,omitempty"`
}

func newConvertCommand(g *globals) *cobra.Command {
	c := &convertCmd{globals: g}
	cmd := &cobra.Command{
		Use:   "convert INPUT OUTPUT",
		Short: "Convert an item archive between json, jsonl, csv and directory layouts",
		Long: `Convert an item archive. Formats come from the file extensions unless
--from or --to is given. A directory input is read one <id>.json file per item;
--to dir writes that layout. --check validates every descriptor against the
active schema version and writes nothing if any record is invalid.`,
		Example: `
semdexctl convert items.jsonl items.csv
semdexctl convert --check --schema-version v2 export.json items/ --to dir`,
		Args: cobra.ExactArgs(2),
		RunE: c.Run,
	}
	cmd.Flags().StringVar(&c.From, "from", "", "Input format (json, jsonl, ndjson, csv)")
	cmd.Flags().StringVar(&c.To, "to", "", "Output format (json, jsonl, ndjson, csv, dir)")
	cmd.Flags().BoolVar(&c.Check, "check", false, "Validate descriptors against the schema before writing")
	return cmd
}

func (c *convertCmd) Run(cmd *cobra.Command, args []string) error {
	in, out := args[0], args[1]
	log := logger.FromContext(cmd.Context())

	recs, from, err := c.read(in)
	if err != nil {
		return err
	}
	log.Debug("archive read", zap.String("path", in), zap.String("format", from), zap.Int("records", len(recs)))

	var fields []string
	var invalid []recordIssue
	if c.Check {
		_, version, err := c.loadVersion(cmd, c.Version)
		if err != nil {
			return err
		}
		fields = version.Fields()
		invalid = checkRecords(recs, validate.New(version), version)
	}

	res := converted{Input: in, Output: out, From: from, Records: len(recs), Invalid: invalid}
	if len(invalid) == 0 {
		res.To, err = c.save(out, recs, fields)
		if err != nil {
			return err
		}
	}

	if err := c.report(cmd, res); err != nil {
		return err
	}
	if len(invalid) > 0 {
		return fmt.Errorf("%s: %d invalid record(s), nothing written", in, len(invalid))
	}
	return nil
}

func (c *convertCmd) read(path string) ([]archive.Record, string, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		recs, err := archive.LoadDir(path)
		return recs, formatDir, err
	}
	f, err := archive.FormatFor(path, c.From)
	if err != nil {
		return nil, "", err
	}
	recs, err := archive.LoadFile(path, f)
	return recs, string(f), err
}

func (c *convertCmd) save(path string, recs []archive.Record, fields []string) (string, error) {
	if c.To == formatDir {
		return formatDir, archive.SaveDir(path, recs)
	}
	f, err := archive.FormatFor(path, c.To)
	if err != nil {
		return "", err
	}
	return string(f), archive.SaveFile(path, f, recs, fields)
}

func checkRecords(recs []archive.Record, v *validate.Validator, fields descriptor.FieldSet) []recordIssue {
	var issues []recordIssue
	for i, r := range recs {
		d, err := descriptor.New(r.Descriptor, fields)
		if err != nil {
			issues = append(issues, recordIssue{Position: i, ID: r.ID, Errors: []string{err.Error()}})
			continue
		}
		res := v.ValidateDescriptor(d, false)
		if res.Valid() {
			continue
		}
		msgs := make([]string, len(res.Errors))
		for j, e := range res.Errors {
			msgs[j] = e.Message
		}
		issues = append(issues, recordIssue{Position: i, ID: r.ID, Errors: msgs})
	}
	return issues
}

func (c *convertCmd) report(cmd *cobra.Command, res converted) error {
	out := cmd.OutOrStdout()
	if c.Output != outputText {
		return c.write(out, res)
	}
	for _, is := range res.Invalid {
		for _, e := range is.Errors {
			fmt.Fprintf(out, "record %d (%s): %s\n", is.Position, is.ID, e)
		}
	}
	if len(res.Invalid) == 0 {
		fmt.Fprintf(out, "converted %d record(s) from %s to %s\n", res.Records, res.From, res.To)
	}
	return nil
}
