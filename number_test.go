package stabs

import "testing"

func TestParseNumber(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want uint64
		pos  int
	}{
		{name: "Decimal", in: "123;", want: 123, pos: 3},
		{name: "Negative", in: "-1;", want: ^uint64(0), pos: 2},
		{name: "Plus", in: "+7", want: 7, pos: 2},
		{name: "Hex", in: "0x10", want: 16, pos: 4},
		{name: "Octal", in: "010", want: 8, pos: 3},
		{name: "Zero", in: "0;", want: 0, pos: 1},
		{name: "Empty", in: "", want: 0, pos: 0},
		{name: "NonNumeric", in: "abc", want: 0, pos: 0},
		{name: "TrailingText", in: "42abc", want: 42, pos: 2},
		{name: "IntMin", in: "-2147483648;", want: ^uint64(2147483648) + 1, pos: 11},
		{name: "Max", in: "18446744073709551615;", want: ^uint64(0), pos: 20},
	}

	p := New(nil)
	for _, tc := range cases {
		c := &cursor{s: tc.in}
		got := p.parseNumber(c, nil)
		if got != tc.want || c.pos != tc.pos {
			t.Errorf("%s: parseNumber(%q) = %d at %d, want %d at %d",
				tc.name, tc.in, got, c.pos, tc.want, tc.pos)
		}
	}
}

func TestParseNumberOverflow(t *testing.T) {
	p := New(nil)
	var overflow bool
	c := &cursor{s: "01777777777777777777777;"} // 2^64-1 in octal fits
	if got := p.parseNumber(c, &overflow); got != ^uint64(0) || overflow {
		t.Fatalf("parseNumber(octal max) = %d overflow=%v, want %d overflow=false",
			got, overflow, ^uint64(0))
	}

	c = &cursor{s: "18446744073709551616;"} // 2^64 does not
	if got := p.parseNumber(c, &overflow); got != 0 || !overflow {
		t.Fatalf("parseNumber(2^64) = %d overflow=%v, want 0 overflow=true", got, overflow)
	}
	if c.peek() != ';' {
		t.Fatalf("overflowed number not fully consumed, next byte %q", c.peek())
	}
}

func TestAtoi(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"12", 12},
		{"-3", -3},
		{"  8x", 8},
		{"", 0},
		{",5", 0},
	}
	for _, tc := range cases {
		if got := atoi(tc.in); got != tc.want {
			t.Errorf("atoi(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
