package stabs

// cursor is a read position inside one stab string. Every sub-parser takes a
// *cursor and leaves it just past what it consumed; on a structural failure
// the position is undefined and the whole record is abandoned.
type cursor struct {
	s   string
	pos int
}

func (c *cursor) eof() bool {
	return c.pos >= len(c.s)
}

// peek returns the current byte, or 0 at end of string.
func (c *cursor) peek() byte {
	if c.pos >= len(c.s) {
		return 0
	}
	return c.s[c.pos]
}

func (c *cursor) peekAt(n int) byte {
	if c.pos+n >= len(c.s) {
		return 0
	}
	return c.s[c.pos+n]
}

// next consumes and returns the current byte, or 0 at end of string.
func (c *cursor) next() byte {
	if c.pos >= len(c.s) {
		return 0
	}
	b := c.s[c.pos]
	c.pos++
	return b
}

func (c *cursor) skip(n int) {
	c.pos += n
	if c.pos > len(c.s) {
		c.pos = len(c.s)
	}
}

func (c *cursor) rest() string {
	if c.pos >= len(c.s) {
		return ""
	}
	return c.s[c.pos:]
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// parseNumber parses an optionally signed, optionally 0x/0-prefixed integer
// at the cursor, advancing past it. The result is the full-width unsigned
// word; a leading minus sign two's-complements the magnitude, so "-1" comes
// back as all ones. An empty or non-numeric input yields zero with the cursor
// unchanged. A magnitude that does not fit is reported through poverflow when
// given, otherwise as a diagnostic, and yields zero either way.
func (p *Parser) parseNumber(c *cursor, poverflow *bool) uint64 {
	if poverflow != nil {
		*poverflow = false
	}

	orig := c.pos

	neg := false
	switch c.peek() {
	case '+':
		c.skip(1)
	case '-':
		neg = true
		c.skip(1)
	}

	base := uint64(10)
	if c.peek() == '0' {
		if c.peekAt(1) == 'x' || c.peekAt(1) == 'X' {
			base = 16
			c.skip(2)
		} else {
			base = 8
			c.skip(1)
		}
	}

	over := ^uint64(0) / base
	lastdig := ^uint64(0) % base

	var v uint64
	overflow := false
	digits := 0
	for {
		b := c.peek()
		var d uint64
		switch {
		case b >= '0' && b <= '9':
			d = uint64(b - '0')
		case b >= 'a' && b <= 'z':
			d = uint64(b-'a') + 10
		case b >= 'A' && b <= 'Z':
			d = uint64(b-'A') + 10
		default:
			b = 0
		}
		if b == 0 || d >= base {
			break
		}
		c.skip(1)
		digits++
		if v > over || (v == over && d > lastdig) {
			overflow = true
			continue
		}
		v = v*base + d
	}

	if digits == 0 {
		// "0x" with no hex digits counts as the single digit 0.
		if base == 8 {
			return 0
		}
		if base == 16 {
			c.pos = orig
			if neg {
				c.skip(1)
			}
			c.skip(1)
			return 0
		}
		c.pos = orig
		return 0
	}

	if overflow {
		if poverflow != nil {
			*poverflow = true
		} else {
			p.diagf("numeric overflow: %s", c.s[orig:])
		}
		return 0
	}

	if neg {
		return -v
	}
	return v
}

// parseInt64 is parseNumber reinterpreted as a signed value, for range and
// array bounds.
func (p *Parser) parseInt64(c *cursor, poverflow *bool) int64 {
	return int64(p.parseNumber(c, poverflow))
}

// atoi reads an optionally signed decimal prefix of s, ignoring whatever
// follows it.
func atoi(s string) int {
	i := 0
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	neg := false
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		neg = s[i] == '-'
		i++
	}
	n := 0
	for ; i < len(s) && isDigit(s[i]); i++ {
		n = n*10 + int(s[i]-'0')
	}
	if neg {
		return -n
	}
	return n
}
