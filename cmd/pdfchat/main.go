// Command pdfchat is a terminal client for a pdfchat server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pdfchat",
		Short: "Chat with a PDF from the terminal",
		Long: `pdfchat talks to a running pdfchat server.

Examples:
  pdfchat ask "What is a transformer?"
  pdfchat ask --pdf paper.pdf --page 2 --action summarize
  pdfchat inspect paper.pdf --spans`,
		SilenceUsage: true,
	}
	root.AddCommand(newAskCmd(), newInspectCmd())
	return root
}

func main() {
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
