package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vango-dev/kiln/internal/errors"
	"github.com/vango-dev/kiln/pkg/dom"
)

func renderCmd() *cobra.Command {
	var (
		target string
		props  []string
		body   bool
	)

	cmd := &cobra.Command{
		Use:   "render FILE...",
		Short: "Render component documents to HTML",
		Long: `Mount each component document into a fresh HTML document and
print the result once mount hooks have run.

Children named by a document are loaded from the same directory.

Examples:
  kiln render components/app.yaml
  kiln render --body --prop title=Hello card.toml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parseProps(props)
			if err != nil {
				return err
			}
			for _, file := range args {
				var reports collector
				app, err := mountDocument(cmd.Context(), file, target, p, &reports)
				if err == nil {
					err = reports.firstFailure()
				}
				for _, r := range reports.reports {
					if r.Warning() {
						fmt.Fprint(cmd.ErrOrStderr(), errors.FromReport(r).WithFile(file).Format())
					}
				}
				if err != nil {
					app.Close()
					return errors.FromError(err, "K081").WithFile(file)
				}

				doc := app.Document()
				if body {
					fmt.Fprintln(cmd.OutOrStdout(), dom.InnerHTML(doc.Body()))
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), app.HTML())
				}
				app.Close()
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&target, "target", "t", "body", "Selector to mount into")
	cmd.Flags().StringArrayVarP(&props, "prop", "p", nil, "Prop passed to the component as key=value (repeatable)")
	cmd.Flags().BoolVarP(&body, "body", "b", false, "Print only the body's content")

	return cmd
}
