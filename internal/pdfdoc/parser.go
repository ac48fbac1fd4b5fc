package pdfdoc

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"sort"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
)

var ErrNotPDF = errors.New("not a pdf file")

// US Letter, used when a page has no readable media box.
const (
	defaultWidth  = 612.0
	defaultHeight = 792.0
)

// Parser loads PDFs with the Go library. When a document yields no text and
// FallbackPdftotext is set, page text comes from pdftotext instead.
type Parser struct {
	FallbackPdftotext bool
}

// Parse reads a whole PDF from r.
func (p *Parser) Parse(r io.Reader, filename string) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	if !bytes.HasPrefix(bytes.TrimLeft(data, "\x00\t\r\n "), []byte("%PDF-")) {
		return nil, ErrNotPDF
	}

	pages, err := extractPages(data)
	if err != nil {
		return nil, fmt.Errorf("extract pdf pages: %w", err)
	}

	doc := &Document{
		Filename:    filename,
		Size:        int64(len(data)),
		ContentHash: ContentHashHex(data),
		Pages:       pages,
	}

	if p.FallbackPdftotext && !doc.hasText() {
		text, err := extractPdftotext(data)
		if err == nil {
			for i, t := range splitPages(text) {
				if i < len(doc.Pages) {
					doc.Pages[i].Text = strings.TrimSpace(t)
				}
			}
		}
	}
	return doc, nil
}

func (d *Document) hasText() bool {
	for _, p := range d.Pages {
		if p.Text != "" {
			return true
		}
	}
	return false
}

func extractPages(data []byte) (pages []Page, err error) {
	// The library panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	n := reader.NumPage()
	if n == 0 {
		return nil, errors.New("document has no pages")
	}
	pages = make([]Page, 0, n)
	for i := 1; i <= n; i++ {
		pages = append(pages, readPage(reader.Page(i), i))
	}
	return pages, nil
}

func readPage(page pdflib.Page, number int) Page {
	out := Page{Number: number, Width: defaultWidth, Height: defaultHeight}
	if page.V.IsNull() {
		return out
	}
	x0, y0 := 0.0, 0.0
	if box := mediaBox(page.V); box != nil {
		x0, y0 = box[0], box[1]
		out.Width = box[2] - box[0]
		out.Height = box[3] - box[1]
	}

	glyphs := pageGlyphs(page)
	out.Spans = groupSpans(glyphs, x0, y0, out.Height)
	out.Text = joinLines(out.Spans)
	return out
}

// mediaBox returns [llx lly urx ury], following Parent for inherited boxes.
func mediaBox(v pdflib.Value) []float64 {
	for depth := 0; depth < 32 && !v.IsNull(); depth++ {
		box := v.Key("MediaBox")
		if box.Kind() == pdflib.Array && box.Len() == 4 {
			out := make([]float64, 4)
			for i := range out {
				out[i] = box.Index(i).Float64()
			}
			if out[2] > out[0] && out[3] > out[1] {
				return out
			}
			return nil
		}
		v = v.Key("Parent")
	}
	return nil
}

// pageGlyphs returns the page's positioned glyphs, or nil when its content
// stream cannot be interpreted.
func pageGlyphs(page pdflib.Page) (glyphs []pdflib.Text) {
	defer func() {
		if recover() != nil {
			glyphs = nil
		}
	}()
	return page.Content().Text
}

// groupSpans merges glyphs into spans. A glyph joins the current span when
// it shares the font, size and baseline and starts near where the span ends.
func groupSpans(glyphs []pdflib.Text, x0, y0, height float64) []Span {
	var spans []Span
	var cur *pdflib.Text
	var text strings.Builder
	right := 0.0

	flush := func() {
		if cur == nil {
			return
		}
		s := strings.TrimSpace(text.String())
		if s != "" {
			size := cur.FontSize
			spans = append(spans, Span{
				Text:     s,
				Font:     cur.Font,
				FontSize: size,
				Rect: Rect{
					X: cur.X - x0,
					Y: height - (cur.Y - y0) - size,
					W: right - cur.X,
					H: size,
				},
			})
		}
		cur = nil
		text.Reset()
	}

	for i := range glyphs {
		g := glyphs[i]
		if cur != nil && !continues(cur, right, g) {
			flush()
		}
		if cur == nil {
			if strings.TrimSpace(g.S) == "" {
				continue
			}
			cur = &glyphs[i]
			right = g.X
		}
		text.WriteString(g.S)
		right = math.Max(right, g.X+g.W)
	}
	flush()
	return spans
}

func continues(cur *pdflib.Text, right float64, g pdflib.Text) bool {
	if g.Font != cur.Font || math.Abs(g.FontSize-cur.FontSize) > 0.01 {
		return false
	}
	tol := math.Max(cur.FontSize, 1)
	if math.Abs(g.Y-cur.Y) > tol*0.3 {
		return false
	}
	return g.X >= right-tol && g.X <= right+tol
}

// joinLines orders spans top-to-bottom, left-to-right and joins them into
// plain text, one line per baseline.
func joinLines(spans []Span) string {
	if len(spans) == 0 {
		return ""
	}
	ordered := make([]Span, len(spans))
	copy(ordered, spans)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i].Rect, ordered[j].Rect
		if math.Abs(a.Y-b.Y) > math.Min(a.H, b.H)*0.3 {
			return a.Y < b.Y
		}
		return a.X < b.X
	})

	var buf strings.Builder
	prevY := ordered[0].Rect.Y
	for i, s := range ordered {
		if i > 0 {
			if math.Abs(s.Rect.Y-prevY) > s.Rect.H*0.3 {
				buf.WriteString("\n")
			} else {
				buf.WriteString(" ")
			}
		}
		buf.WriteString(s.Text)
		prevY = s.Rect.Y
	}
	return buf.String()
}

func extractPdftotext(data []byte) (string, error) {
	tmp, err := os.CreateTemp("", "pdfchat-*.pdf")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	out, err := exec.Command("pdftotext", "-layout", tmp.Name(), "-").Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w", err)
	}
	return string(out), nil
}

// pdftotext separates pages with a form feed.
func splitPages(text string) []string {
	return strings.Split(text, "\f")
}
