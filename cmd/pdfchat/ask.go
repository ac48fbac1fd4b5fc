package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/dgallion1/pdfchat/internal/chat"
	"github.com/dgallion1/pdfchat/internal/pdfdoc"
	"github.com/dgallion1/pdfchat/internal/popup"
	"github.com/spf13/cobra"
)

type askOptions struct {
	server  string
	apiKey  string
	token   string
	action  string
	pdf     string
	page    int
	raw     bool
	style   string
	width   int
	timeout time.Duration
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newAskCmd() *cobra.Command {
	opts := &askOptions{}
	cmd := &cobra.Command{
		Use:   "ask [text]",
		Short: "Send a prompt and stream the reply",
		Long: `Send a prompt to the server's chat endpoint and print the reply.

With --action, the text is wrapped the way the page's popup does it
("Summarize: <text>"). With --pdf, the text defaults to a page's text.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := ""
			if len(args) == 1 {
				text = args[0]
			}
			return runAsk(cmd, opts, text)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.server, "server", envOr("PDFCHAT_SERVER", "http://localhost:8090"), "pdfchat server URL")
	f.StringVar(&opts.apiKey, "api-key", os.Getenv("OPENAI_API_KEY"), "model API key (the server's key is used when empty)")
	f.StringVar(&opts.token, "token", os.Getenv("PDFCHAT_ACCESS_TOKEN"), "server access token")
	f.StringVarP(&opts.action, "action", "a", "", "quick action: explain, summarize or rewrite")
	f.StringVar(&opts.pdf, "pdf", "", "PDF file to take the text from")
	f.IntVar(&opts.page, "page", 1, "page of --pdf to use")
	f.BoolVar(&opts.raw, "raw", false, "stream raw markdown instead of rendering it")
	f.StringVar(&opts.style, "style", "auto", "glamour style (auto, dark, light, notty)")
	f.IntVar(&opts.width, "width", 100, "word wrap width for rendered output")
	f.DurationVar(&opts.timeout, "timeout", 5*time.Minute, "request timeout")
	return cmd
}

func promptText(opts *askOptions, text string) (string, error) {
	if opts.pdf != "" && strings.TrimSpace(text) == "" {
		f, err := os.Open(opts.pdf)
		if err != nil {
			return "", err
		}
		defer f.Close()
		p := &pdfdoc.Parser{FallbackPdftotext: true}
		doc, err := p.Parse(f, opts.pdf)
		if err != nil {
			return "", err
		}
		page, err := doc.Page(opts.page)
		if err != nil {
			return "", err
		}
		text = page.Text
	}
	if strings.TrimSpace(text) == "" {
		return "", errors.New("nothing to send: pass text or --pdf")
	}
	if opts.action == "" {
		return text, nil
	}
	a, err := popup.ParseAction(opts.action)
	if err != nil {
		return "", err
	}
	return popup.Prompt(a, strings.TrimSpace(text)), nil
}

func runAsk(cmd *cobra.Command, opts *askOptions, text string) error {
	prompt, err := promptText(opts, text)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	client := &chat.Client{
		BaseURL:    opts.server,
		Token:      opts.token,
		HTTPClient: &http.Client{Timeout: opts.timeout},
	}

	panel := chat.NewPanel(client, opts.apiKey, chat.WithServerCredential())

	out := cmd.OutOrStdout()
	err = panel.Submit(ctx, prompt, func(u chat.Update) {
		if opts.raw && u.Delta != "" {
			fmt.Fprint(out, u.Delta)
		}
	})
	msgs := panel.Messages()
	reply := msgs[len(msgs)-1].Content
	if err != nil {
		var se *chat.StatusError
		if errors.As(err, &se) {
			return fmt.Errorf("%s (%d)", se.Body, se.StatusCode)
		}
		return err
	}

	if opts.raw {
		fmt.Fprintln(out)
		return nil
	}
	rendered, err := renderTerminal(reply, opts.style, opts.width)
	if err != nil {
		return err
	}
	fmt.Fprint(out, rendered)
	return nil
}

func renderTerminal(md, style string, width int) (string, error) {
	ropts := []glamour.TermRendererOption{glamour.WithWordWrap(width)}
	if style == "" || style == "auto" {
		ropts = append(ropts, glamour.WithAutoStyle())
	} else {
		ropts = append(ropts, glamour.WithStylePath(style))
	}
	r, err := glamour.NewTermRenderer(ropts...)
	if err != nil {
		return "", fmt.Errorf("create renderer: %w", err)
	}
	return r.Render(md)
}
