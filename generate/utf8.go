package generate

import "unicode/utf8"

// utf8Coalescer re-aligns streamed byte fragments to rune boundaries. Token
// streams can split a multi-byte character across two events; the trailing
// partial rune is held back until its continuation bytes arrive.
type utf8Coalescer struct {
	pending []byte
}

// push appends b and returns the longest prefix that ends on a complete rune.
func (c *utf8Coalescer) push(b []byte) string {
	c.pending = append(c.pending, b...)

	cut := len(c.pending)
	for cut > 0 && cut > len(c.pending)-utf8.UTFMax {
		r, _ := utf8.DecodeLastRune(c.pending[:cut])
		if r != utf8.RuneError {
			break
		}
		cut--
	}

	out := string(c.pending[:cut])
	c.pending = append(c.pending[:0], c.pending[cut:]...)
	return out
}

// flush returns whatever is held back, complete or not. Called at end of
// stream so a torn final rune is not silently dropped.
func (c *utf8Coalescer) flush() string {
	out := string(c.pending)
	c.pending = c.pending[:0]
	return out
}
