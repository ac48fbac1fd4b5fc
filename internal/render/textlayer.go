package render

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/dgallion1/pdfchat/internal/pdfdoc"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// TextLayerClass marks the container whose spans are click targets.
const TextLayerClass = "textLayer"

// TextLayer renders a page's spans as absolutely positioned elements scaled
// to width CSS pixels.
func TextLayer(page *pdfdoc.Page, width float64) (string, error) {
	if page.Width <= 0 || page.Height <= 0 {
		return "", fmt.Errorf("page %d has empty media box", page.Number)
	}
	if width <= 0 {
		return "", fmt.Errorf("display width must be positive, got %v", width)
	}
	scale := width / page.Width

	root := element(atom.Div,
		"class", TextLayerClass,
		"data-page", strconv.Itoa(page.Number),
		"style", fmt.Sprintf("width:%spx;height:%spx", px(width), px(page.Height*scale)),
	)
	for i, s := range page.Spans {
		span := element(atom.Span,
			"data-index", strconv.Itoa(i),
			"style", fmt.Sprintf("left:%spx;top:%spx;width:%spx;font-size:%spx",
				px(s.Rect.X*scale), px(s.Rect.Y*scale), px(s.Rect.W*scale), px(s.FontSize*scale)),
		)
		span.AppendChild(&html.Node{Type: html.TextNode, Data: s.Text})
		root.AppendChild(span)
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		return "", fmt.Errorf("render text layer: %w", err)
	}
	return buf.String(), nil
}

func element(a atom.Atom, attrs ...string) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.Attr = append(n.Attr, html.Attribute{Key: attrs[i], Val: attrs[i+1]})
	}
	return n
}

func px(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
