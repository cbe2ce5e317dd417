package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"coursepipe/internal/services"
)

type envelope struct {
	OK    bool            `json:"ok"`
	Data  any             `json:"data,omitempty"`
	Error *services.Error `json:"error,omitempty"`
}

func failureEnvelope(err error) envelope {
	coded, ok := services.AsError(err)
	if !ok {
		coded = services.NewError("ERROR", err.Error())
	}
	return envelope{OK: false, Error: coded}
}

// wantJSON reports whether output to w should be JSON: always with --json,
// otherwise whenever w is not an interactive terminal.
func (c *commandContext) wantJSON(w io.Writer) bool {
	if c.jsonFlag != nil && *c.jsonFlag {
		return true
	}
	file, ok := w.(*os.File)
	if !ok {
		return true
	}
	fd := file.Fd()
	return !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd)
}

// emit writes data as the success envelope in JSON mode, or runs human
// otherwise.
func (c *commandContext) emit(cmd *cobra.Command, data any, human func(io.Writer)) error {
	out := cmd.OutOrStdout()
	if c.wantJSON(out) || human == nil {
		return encodeJSON(out, envelope{OK: true, Data: data})
	}
	human(out)
	return nil
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render() + "\n"
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

// exactArgs is cobra.ExactArgs with a coded error so usage mistakes exit 2.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return services.Errorf(services.CodeInvalidArgument, "%s accepts %d arg(s), received %d", cmd.CommandPath(), n, len(args))
		}
		return nil
	}
}

func flagError(cmd *cobra.Command, err error) error {
	return services.WrapCode(services.CodeInvalidArgument, fmt.Sprintf("%s: invalid flags", cmd.CommandPath()), err)
}
