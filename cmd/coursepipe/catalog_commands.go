package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"coursepipe/internal/catalog"
	"coursepipe/internal/fileutil"
	"coursepipe/internal/services"
)

func newCatalogCommand(ctx *commandContext) *cobra.Command {
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Maintain the published course catalog",
	}
	catalogCmd.AddCommand(newCatalogUpdateCommand(ctx, "merge", "Merge an entry into the catalog, replacing any entry with the same id", false))
	catalogCmd.AddCommand(newCatalogUpdateCommand(ctx, "replace", "Reset the catalog to a single entry", true))
	catalogCmd.AddCommand(newCatalogShowCommand(ctx))
	return catalogCmd
}

func newCatalogUpdateCommand(ctx *commandContext, use, short string, replace bool) *cobra.Command {
	var entryPath string
	var catalogPath string
	var version int

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if strings.TrimSpace(entryPath) == "" {
				return services.NewError(services.CodeInvalidArgument, "--entry is required")
			}
			var entry catalog.Entry
			if err := fileutil.ReadJSON(entryPath, &entry); err != nil {
				return services.WrapCode(services.CodeInvalidArgument, "read catalog entry "+entryPath, err)
			}
			if catalogPath == "" {
				catalogPath = cfg.Catalog.Path
			}
			if version <= 0 {
				version = cfg.Catalog.Version
			}
			doc, err := catalog.Update(cmd.Context(), catalogPath, entry, version, replace)
			if err != nil {
				return err
			}
			return ctx.emit(cmd, doc, func(w io.Writer) {
				fmt.Fprintf(w, "Catalog %s: version %d, %d course(s)\n", catalogPath, doc.Version, len(doc.Courses))
			})
		},
	}
	cmd.Flags().StringVar(&entryPath, "entry", "", "JSON file holding the catalog entry")
	cmd.Flags().StringVar(&catalogPath, "catalog", "", "Catalog file (defaults to catalog.path)")
	cmd.Flags().IntVar(&version, "version", 0, "Catalog version to write (defaults to catalog.version)")
	return cmd
}

func newCatalogShowCommand(ctx *commandContext) *cobra.Command {
	var catalogPath string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if catalogPath == "" {
				catalogPath = cfg.Catalog.Path
			}
			doc, err := catalog.Load(catalogPath)
			if err != nil {
				return err
			}
			if doc == nil {
				doc = &catalog.Catalog{Version: cfg.Catalog.Version, Courses: []catalog.Entry{}}
			}
			return ctx.emit(cmd, doc, func(w io.Writer) {
				if len(doc.Courses) == 0 {
					fmt.Fprintln(w, "Catalog is empty")
					return
				}
				rows := make([][]string, 0, len(doc.Courses))
				for _, entry := range doc.Courses {
					rows = append(rows, []string{entry.ID, entry.Title, entry.Version, entry.Asset.Mode, fmt.Sprint(entry.Asset.SizeBytes)})
				}
				fmt.Fprint(w, renderTable([]string{"Course", "Title", "Version", "Mode", "Bytes"}, rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight}))
			})
		},
	}
	cmd.Flags().StringVar(&catalogPath, "catalog", "", "Catalog file (defaults to catalog.path)")
	return cmd
}
