package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dgallion1/pdfchat/internal/pdfdoc"
	"github.com/spf13/cobra"
)

func newInspectCmd() *cobra.Command {
	var spans, asJSON bool
	cmd := &cobra.Command{
		Use:   "inspect <file.pdf>",
		Short: "Show a PDF's pages and text layer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			p := &pdfdoc.Parser{FallbackPdftotext: true}
			doc, err := p.Parse(f, filepath.Base(args[0]))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					pdfdoc.Info
					Pages []pdfdoc.Page `json:"pages"`
				}{doc.Info(), doc.Pages})
			}

			info := doc.Info()
			fmt.Fprintf(out, "%s: %d pages, %d bytes, sha256 %s\n", info.Filename, info.NumPages, info.Size, info.ContentHash)
			for _, pg := range doc.Pages {
				fmt.Fprintf(out, "\npage %d (%.0fx%.0f pt, %d spans)\n", pg.Number, pg.Width, pg.Height, len(pg.Spans))
				if spans {
					for _, s := range pg.Spans {
						fmt.Fprintf(out, "  [%7.2f %7.2f %6.2f %5.2f] %q\n", s.Rect.X, s.Rect.Y, s.Rect.W, s.Rect.H, s.Text)
					}
				} else if pg.Text != "" {
					fmt.Fprintln(out, pg.Text)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&spans, "spans", false, "list text spans with their page-space rectangles")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the document as JSON")
	return cmd
}
