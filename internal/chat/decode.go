package chat

import (
	"strings"
	"unicode/utf8"
)

// decoder turns a byte stream into text without splitting multi-byte
// sequences across chunk boundaries.
type decoder struct {
	pending []byte
}

// decode returns the complete runes of pending+p and keeps any incomplete
// trailing sequence for the next call.
func (d *decoder) decode(p []byte) string {
	buf := append(d.pending, p...)
	cut := len(buf)
	// An incomplete sequence is at most utf8.UTFMax-1 bytes long.
	for i := len(buf) - 1; i >= 0 && i >= len(buf)-utf8.UTFMax+1; i-- {
		if !utf8.RuneStart(buf[i]) {
			continue
		}
		if !utf8.FullRune(buf[i:]) {
			cut = i
		}
		break
	}
	d.pending = append(d.pending[:0:0], buf[cut:]...)
	return strings.ToValidUTF8(string(buf[:cut]), "�")
}

// flush returns whatever is left at end of stream.
func (d *decoder) flush() string {
	if len(d.pending) == 0 {
		return ""
	}
	s := strings.ToValidUTF8(string(d.pending), "�")
	d.pending = nil
	return s
}
