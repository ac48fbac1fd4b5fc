// Package pdfdoc loads PDF files into page-count and text-layer form.
package pdfdoc

import (
	"crypto/sha256"
	"fmt"
)

// Rect is a rectangle in page space: PDF points, origin at the top-left.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Span is a run of text drawn with one font on one baseline.
type Span struct {
	Text     string  `json:"text"`
	Font     string  `json:"font,omitempty"`
	FontSize float64 `json:"font_size"`
	Rect     Rect    `json:"rect"`
}

// Page is one page's media box and text layer.
type Page struct {
	Number int     `json:"number"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Text   string  `json:"text"`
	Spans  []Span  `json:"spans"`
}

// Document is a parsed PDF.
type Document struct {
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	ContentHash string `json:"content_hash"`
	Pages       []Page `json:"-"`
}

// Info is the JSON summary of a document.
type Info struct {
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	ContentHash string `json:"content_hash"`
	NumPages    int    `json:"num_pages"`
}

func (d *Document) NumPages() int {
	return len(d.Pages)
}

// Page returns the 1-based page n.
func (d *Document) Page(n int) (*Page, error) {
	if n < 1 || n > len(d.Pages) {
		return nil, fmt.Errorf("page %d out of range 1..%d", n, len(d.Pages))
	}
	return &d.Pages[n-1], nil
}

func (d *Document) Info() Info {
	return Info{
		Filename:    d.Filename,
		Size:        d.Size,
		ContentHash: d.ContentHash,
		NumPages:    d.NumPages(),
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
