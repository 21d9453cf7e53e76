package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/kiln/internal/errors"
	"github.com/vango-dev/kiln/pkg/loader"
)

func checkCmd() *cobra.Command {
	var (
		target string
		format string
		strict bool
	)

	cmd := &cobra.Command{
		Use:   "check FILE...",
		Short: "Validate component documents",
		Long: `Validate declarative component documents.

Each document is parsed and validated, then mounted into a scratch
document so template expressions, bindings and children are checked
too. Problems are printed as coded diagnostics.

Examples:
  kiln check components/*.yaml
  kiln check --format=json counter.toml
  kiln check --strict app.yaml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var all []*errors.Error
			for _, file := range args {
				all = append(all, checkFile(cmd.Context(), file, target)...)
			}

			failed := 0
			for _, d := range all {
				if !d.Warning() || strict {
					failed++
				}
				switch format {
				case "json":
					fmt.Fprintln(cmd.OutOrStdout(), d.FormatJSON())
				case "compact":
					fmt.Fprintln(cmd.OutOrStdout(), d.FormatCompact())
				default:
					fmt.Fprint(cmd.OutOrStdout(), d.Format())
				}
			}

			if failed > 0 {
				return errors.Newf(errors.CategoryCLI, "%s in %s", plural(failed, "problem"), plural(len(args), "document"))
			}
			if format == "" || format == "pretty" {
				success(cmd.OutOrStdout(), "%s checked", plural(len(args), "document"))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&target, "target", "t", "body", "Selector the documents are mounted into")
	cmd.Flags().StringVarP(&format, "format", "f", "pretty", "Output format: pretty, compact or json")
	cmd.Flags().BoolVar(&strict, "strict", false, "Treat warnings as errors")

	return cmd
}

// checkFile returns every diagnostic for one document.
func checkFile(ctx context.Context, file, target string) []*errors.Error {
	if ctx == nil {
		ctx = context.Background()
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return []*errors.Error{errors.New("K081").WithFile(file).Wrap(err)}
	}
	doc, err := loader.ParseFile(file, data)
	if err != nil {
		return []*errors.Error{errors.New("K081").WithFile(file).Wrap(err)}
	}
	if err := doc.Validate(); err != nil {
		var out []*errors.Error
		for _, e := range errors.Split(err) {
			out = append(out, errors.New("K080").WithFile(file).WithComponent(doc.Name).Wrap(e))
		}
		return out
	}

	var reports collector
	app, err := mountDocument(ctx, file, target, nil, &reports)
	defer app.Close()

	var out []*errors.Error
	for _, r := range reports.reports {
		out = append(out, errors.FromReport(r).WithFile(file))
	}
	if err != nil && len(out) == 0 {
		out = append(out, diagnose(file, err)...)
	}
	return out
}
