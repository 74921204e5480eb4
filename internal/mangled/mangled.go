// Package mangled recovers method argument types from names mangled with
// the old GNU v2 C++ scheme. Versions of g++ that predate the Itanium ABI
// encode the argument types of a method directly in its physical name, and
// the stabs for such a method carry no separate argument information, so the
// only way to build an accurate method type is to pull the types back out of
// the name itself.
//
// Only the signature portion is decoded. The function name that precedes
// the final "__" separator is skipped, except that conversion operators name
// a type which must be parsed so that later backreferences line up.
package mangled

import (
	"fmt"
	"strings"

	"github.com/appsworld/go-stabs/debug"
)

// Demangler holds the state for decoding one mangled name. The zero value is
// not usable; Builder and FindTagged must be set.
type Demangler struct {
	// Builder receives the recovered types.
	Builder debug.Builder

	// FindTagged resolves a class or struct tag seen in the mangled name,
	// forward-declaring it when it has not been defined yet.
	FindTagged func(name string, kind debug.TypeKind) debug.Type

	// Diagf, when set, receives warnings about names that decode to
	// nothing useful without being outright malformed.
	Diagf func(format string, args ...any)

	// Remembered type spans, indexed by the backreference counts in
	// 'T' and 'N' codes. Each span is re-decoded on use.
	typestrings []string

	args    []debug.Type
	varargs bool
}

// cursor is a read position inside the mangled name or a remembered span.
type cursor struct {
	s   string
	pos int
}

func (c *cursor) eof() bool {
	return c.pos >= len(c.s)
}

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

func (d *Demangler) bad(c *cursor) error {
	return fmt.Errorf("bad mangled name %q", c.s)
}

func (d *Demangler) diagf(format string, args ...any) {
	if d.Diagf != nil {
		d.Diagf(format, args...)
	}
}

// ArgTypes decodes the argument types encoded in physname. prefixLen, when
// nonzero, gives the length of the function-name prefix; when zero the
// prefix is located by hunting for the "__" separator. The returned slice is
// nil when the name carried no argument information at all, which callers
// treat as an unknown parameter list.
func (d *Demangler) ArgTypes(physname string, prefixLen int) ([]debug.Type, bool, error) {
	d.typestrings = d.typestrings[:0]
	d.args = nil
	d.varargs = false

	c := &cursor{s: physname}
	if err := d.prefix(c, prefixLen); err != nil {
		return nil, false, err
	}
	if !c.eof() {
		if err := d.signature(c); err != nil {
			return nil, false, err
		}
	}
	if d.args == nil {
		d.diagf("no argument types in mangled string %q", physname)
	}
	return d.args, d.varargs, nil
}

// prefix advances the cursor past the function name to the start of the
// signature. GNU v2 separates the two with "__", but the function name may
// itself contain underscores, so when no prefix length is known the last
// plausible "__" wins.
func (d *Demangler) prefix(c *cursor, prefixLen int) error {
	var scan int
	if prefixLen > 0 {
		scan = c.pos + prefixLen
		if scan > len(c.s) {
			return d.bad(c)
		}
	} else {
		i := c.pos
		for {
			j := strings.IndexByte(c.s[i:], '_')
			if j < 0 {
				return d.bad(c)
			}
			i += j + 1
			if i < len(c.s) && c.s[i] == '_' {
				break
			}
		}
		scan = i - 1

		// Move ahead to the last contiguous pair of underscores.
		k := scan
		for k < len(c.s) && c.s[k] == '_' {
			k++
		}
		if k-scan > 2 {
			scan = k - 2
		}
	}

	at := func(i int) byte {
		if i >= len(c.s) {
			return 0
		}
		return c.s[i]
	}

	switch {
	case scan == c.pos && (isDigit(at(scan+2)) || at(scan+2) == 'Q' || at(scan+2) == 't'):
		// A GNU style constructor name: the signature starts right
		// after the leading "__".
		c.pos = scan + 2
		return nil

	case scan == c.pos && !isDigit(at(scan+2)) && at(scan+2) != 't':
		// The name starts with "__" but is not a constructor. Find
		// the "__" that separates the name from the signature.
		for scan < len(c.s) && c.s[scan] == '_' {
			scan++
		}
		j := strings.Index(c.s[scan:], "__")
		if j < 0 {
			return d.bad(c)
		}
		scan += j
		if scan+2 >= len(c.s) {
			return d.bad(c)
		}
		return d.functionName(c, scan)

	case at(scan+2) != 0:
		// The name does not start with "__" but contains one.
		return d.functionName(c, scan)

	default:
		return d.bad(c)
	}
}

// functionName consumes the function name ending at the "__" separator at
// offset scan. The name itself is discarded, but a conversion operator names
// a type which must be decoded so that any types it remembers keep
// backreference numbering consistent.
func (d *Demangler) functionName(c *cursor, scan int) error {
	name := c.s[c.pos:scan]
	c.pos = scan + 2

	if len(name) >= 5 && name[:4] == "type" && (name[4] == '$' || name[4] == '.') {
		tc := &cursor{s: name, pos: 5}
		if _, err := d.typ(tc, false); err != nil {
			return err
		}
	} else if strings.HasPrefix(name, "__op") {
		tc := &cursor{s: name, pos: 4}
		if _, err := d.typ(tc, false); err != nil {
			return err
		}
	}
	return nil
}

// signature walks the signature, picking up the argument list when it
// appears. Class names, qualified names, and templates that precede the
// argument types are remembered for backreferences.
func (d *Demangler) signature(c *cursor) error {
	expectFunc := false
	funcDone := false
	hold := -1

	for !c.eof() {
		switch b := c.peek(); {
		case b == 'Q':
			hold = c.pos
			if _, err := d.qualified(c, false); err != nil {
				return err
			}
			d.remember(c.s[hold:c.pos])
			expectFunc = true
			hold = -1

		case b == 'S' || b == 'C':
			// Static or const member function markers.
			if hold < 0 {
				hold = c.pos
			}
			c.skip(1)

		case isDigit(b):
			if hold < 0 {
				hold = c.pos
			}
			if _, err := d.class(c); err != nil {
				return err
			}
			d.remember(c.s[hold:c.pos])
			expectFunc = true
			hold = -1

		case b == 'F':
			hold = -1
			funcDone = true
			c.skip(1)
			if err := d.topArgs(c); err != nil {
				return err
			}

		case b == 't':
			if hold < 0 {
				hold = c.pos
			}
			if _, err := d.template(c, false); err != nil {
				return err
			}
			d.remember(c.s[hold:c.pos])
			expectFunc = true
			hold = -1

		case b == '_':
			// No return type can appear at the outermost level, so
			// another underscore here means a scheme this decoder
			// does not know.
			return d.bad(c)

		default:
			// The first argument type token.
			funcDone = true
			if err := d.topArgs(c); err != nil {
				return err
			}
		}

		if expectFunc {
			funcDone = true
			if err := d.topArgs(c); err != nil {
				return err
			}
		}
	}

	if !funcDone {
		// bar__3foo is foo::bar(void); an exhausted signature still
		// yields an empty argument list.
		if err := d.topArgs(c); err != nil {
			return err
		}
	}
	return nil
}

func (d *Demangler) topArgs(c *cursor) error {
	args, varargs, err := d.arglist(c, true)
	if err != nil {
		return err
	}
	d.args = args
	d.varargs = varargs
	return nil
}

// count reads a run of digits as a decimal count. No digits means zero.
func (d *Demangler) count(c *cursor) int {
	n := 0
	for isDigit(c.peek()) {
		n = n*10 + int(c.peek()-'0')
		c.skip(1)
	}
	return n
}

// getCount reads a count that may be multiple digits only when the digits
// are followed by an underscore, which is consumed. Otherwise a single digit
// is taken. Reports false when no digit is present.
func (d *Demangler) getCount(c *cursor, pn *int) bool {
	if !isDigit(c.peek()) {
		return false
	}
	*pn = int(c.peek() - '0')
	c.skip(1)

	if isDigit(c.peek()) {
		n := *pn
		p := c.pos
		for p < len(c.s) && isDigit(c.s[p]) {
			n = n*10 + int(c.s[p]-'0')
			p++
		}
		if p < len(c.s) && c.s[p] == '_' {
			c.pos = p + 1
			*pn = n
		}
	}
	return true
}

func (d *Demangler) remember(span string) {
	d.typestrings = append(d.typestrings, span)
}

// class reads a length-prefixed class name, returning the name.
func (d *Demangler) class(c *cursor) (string, error) {
	n := d.count(c)
	if len(c.rest()) < n {
		return "", d.bad(c)
	}
	start := c.pos
	c.skip(n)
	return c.s[start : start+n], nil
}

// qualified decodes a qualified name such as Q25Outer5Inner, the mangling of
// Outer::Inner. When want is set the innermost component is resolved to a
// type, looking first through the fields of the enclosing class, then the
// named types, then the tags.
func (d *Demangler) qualified(c *cursor, want bool) (debug.Type, error) {
	var qualifiers int

	switch b := c.peekAt(1); {
	case b == '_':
		// More than 9 components: the count is bracketed by
		// underscores.
		p := c.pos + 2
		if p >= len(c.s) || !isDigit(c.s[p]) || c.s[p] == '0' {
			return nil, d.bad(c)
		}
		for p < len(c.s) && isDigit(c.s[p]) {
			qualifiers = qualifiers*10 + int(c.s[p]-'0')
			p++
		}
		if p >= len(c.s) || c.s[p] != '_' {
			return nil, d.bad(c)
		}
		c.pos = p + 1

	case b >= '1' && b <= '9':
		qualifiers = int(b - '0')
		if c.peekAt(2) == '_' {
			c.skip(1)
		}
		c.skip(2)

	default:
		return nil, d.bad(c)
	}

	var context debug.Type

	for ; qualifiers > 0; qualifiers-- {
		if c.peek() == '_' {
			c.skip(1)
		}
		if c.peek() == 't' {
			name, err := d.template(c, want)
			if err != nil {
				return nil, err
			}
			if want {
				context = d.FindTagged(name, debug.KindClass)
				if context == nil {
					return nil, d.bad(c)
				}
			}
			continue
		}

		n := d.count(c)
		if len(c.rest()) < n {
			return nil, d.bad(c)
		}
		name := c.s[c.pos : c.pos+n]

		if want {
			var fields []debug.Field
			if context != nil {
				fields = d.Builder.GetFields(context)
			}
			context = nil

			// A class defined within a class shows up as a field
			// of the outer class whose type carries the inner
			// name. An enum defined within a class does not, and
			// cannot be recovered this way.
			for _, f := range fields {
				ft := d.Builder.GetFieldType(f)
				if ft == nil {
					return nil, d.bad(c)
				}
				if d.Builder.GetTypeName(ft) == name {
					context = ft
					break
				}
			}

			if context == nil {
				last := qualifiers == 1
				if last {
					context = d.Builder.FindNamedType(name)
				}
				if context == nil {
					kind := debug.KindClass
					if last {
						kind = debug.KindIllegal
					}
					context = d.FindTagged(name, kind)
					if context == nil {
						return nil, d.bad(c)
					}
				}
			}
		}

		c.skip(n)
	}

	return context, nil
}

// template decodes a template instantiation such as t3Map2ZcZi. When want is
// set the returned string is the source-level name of the instantiation,
// usable as a tag lookup key.
func (d *Demangler) template(c *cursor, want bool) (string, error) {
	c.skip(1)

	n := d.count(c)
	if n == 0 || len(c.rest()) < n {
		return "", d.bad(c)
	}
	base := c.s[c.pos : c.pos+n]
	c.skip(n)

	var nparams int
	if !d.getCount(c, &nparams) {
		return "", d.bad(c)
	}

	var params []string
	for i := 0; i < nparams; i++ {
		if c.peek() == 'Z' {
			c.skip(1)
			hold := c.pos
			if _, err := d.typ(c, false); err != nil {
				return "", err
			}
			if want {
				params = append(params, d.typeText(c.s[hold:c.pos]))
			}
			continue
		}

		text, err := d.templateValue(c, want)
		if err != nil {
			return "", err
		}
		if want {
			params = append(params, text)
		}
	}

	if !want {
		return "", nil
	}
	// g++ names the instantiated structure with no spaces except between
	// closing angle brackets.
	name := base + "<" + strings.Join(params, ",") + ">"
	return strings.ReplaceAll(name, ">>", "> >"), nil
}

// templateValue decodes one non-type template parameter: a type followed by
// an encoding of the value whose shape depends on the type.
func (d *Demangler) templateValue(c *cursor, want bool) (string, error) {
	typeStart := c.pos
	if _, err := d.typ(c, false); err != nil {
		return "", err
	}

	var pointerp, realp, integralp, charp, boolp bool
	for p := typeStart; p < len(c.s); p++ {
		switch c.s[p] {
		case 'P', 'p', 'R':
			pointerp = true
		case 'C', 'S', 'U', 'V', 'F', 'M', 'O':
			continue
		case 'Q':
			integralp = true
		case 'T', 'v':
			return "", d.bad(c)
		case 'x', 'l', 'i', 's', 'w':
			integralp = true
		case 'b':
			boolp = true
		case 'c':
			charp = true
		case 'r', 'd', 'f':
			realp = true
		default:
			// A user defined type; assume an integral value.
			integralp = true
		}
		break
	}

	valStart := c.pos
	switch {
	case integralp:
		if c.peek() == 'm' {
			c.skip(1)
		}
		for isDigit(c.peek()) {
			c.skip(1)
		}

	case charp:
		if c.peek() == 'm' {
			c.skip(1)
		}
		val := d.count(c)
		if val == 0 {
			return "", d.bad(c)
		}
		if want {
			neg := c.s[valStart] == 'm'
			v := val
			if neg {
				v = -v
			}
			return fmt.Sprintf("'%c'", rune(v)), nil
		}

	case boolp:
		val := d.count(c)
		switch val {
		case 0:
			return "false", nil
		case 1:
			return "true", nil
		default:
			return "", d.bad(c)
		}

	case realp:
		if c.peek() == 'm' {
			c.skip(1)
		}
		for isDigit(c.peek()) {
			c.skip(1)
		}
		if c.peek() == '.' {
			c.skip(1)
			for isDigit(c.peek()) {
				c.skip(1)
			}
		}
		if c.peek() == 'e' {
			c.skip(1)
			for isDigit(c.peek()) {
				c.skip(1)
			}
		}

	case pointerp:
		n := d.count(c)
		if n == 0 {
			return "", d.bad(c)
		}
		name := c.rest()
		if len(name) < n {
			return "", d.bad(c)
		}
		c.skip(n)
		if want {
			return "&" + name[:n], nil
		}
	}

	if !want {
		return "", nil
	}
	text := c.s[valStart:c.pos]
	text = strings.Replace(text, "m", "-", 1)
	return text, nil
}

// arglist decodes a sequence of argument types, ending at an underscore, the
// end of the input, or an 'e' varargs marker. 'N' and 'T' codes replay
// remembered type spans.
func (d *Demangler) arglist(c *cursor, want bool) ([]debug.Type, bool, error) {
	var args []debug.Type
	if want {
		args = []debug.Type{}
	}
	varargs := false

	for {
		b := c.peek()
		if b == '_' || b == 0 || b == 'e' {
			break
		}

		if b == 'N' || b == 'T' {
			c.skip(1)
			repeat := 1
			if b == 'N' {
				if !d.getCount(c, &repeat) {
					return nil, false, d.bad(c)
				}
			}
			var which int
			if !d.getCount(c, &which) || which >= len(d.typestrings) {
				return nil, false, d.bad(c)
			}
			for ; repeat > 0; repeat-- {
				tc := &cursor{s: d.typestrings[which]}
				var err error
				args, err = d.arg(tc, want, args)
				if err != nil {
					return nil, false, err
				}
			}
			continue
		}

		var err error
		args, err = d.arg(c, want, args)
		if err != nil {
			return nil, false, err
		}
	}

	if c.peek() == 'e' {
		varargs = true
		c.skip(1)
	}
	return args, varargs, nil
}

// arg decodes one argument type and remembers its span for backreferences.
func (d *Demangler) arg(c *cursor, want bool, args []debug.Type) ([]debug.Type, error) {
	start := c.pos
	t, err := d.typ(c, want)
	if err != nil {
		return nil, err
	}
	d.remember(c.s[start:c.pos])

	if want {
		if t == nil {
			return nil, d.bad(c)
		}
		args = append(args, t)
	}
	return args, nil
}

// typ decodes one type. When want is false the input is consumed but no
// types are built, which matters for the side effect of advancing past value
// encodings and keeping the remembered spans aligned.
func (d *Demangler) typ(c *cursor, want bool) (debug.Type, error) {
	switch b := c.peek(); b {
	case 'P', 'p':
		c.skip(1)
		t, err := d.typ(c, want)
		if err != nil {
			return nil, err
		}
		if !want {
			return nil, nil
		}
		return d.Builder.MakePointerType(t), nil

	case 'R':
		c.skip(1)
		t, err := d.typ(c, want)
		if err != nil {
			return nil, err
		}
		if !want {
			return nil, nil
		}
		return d.Builder.MakeReferenceType(t), nil

	case 'A':
		c.skip(1)
		var high int64
		for c.peek() != '_' {
			if !isDigit(c.peek()) {
				return nil, d.bad(c)
			}
			high = high*10 + int64(c.peek()-'0')
			c.skip(1)
		}
		c.skip(1)
		elt, err := d.typ(c, want)
		if err != nil {
			return nil, err
		}
		if !want {
			return nil, nil
		}
		index := d.Builder.FindNamedType("int")
		if index == nil {
			index = d.Builder.MakeIntType(4, false)
		}
		return d.Builder.MakeArrayType(elt, index, 0, high, false), nil

	case 'T':
		c.skip(1)
		var which int
		if !d.getCount(c, &which) || which >= len(d.typestrings) {
			return nil, d.bad(c)
		}
		tc := &cursor{s: d.typestrings[which]}
		return d.typ(tc, want)

	case 'F':
		c.skip(1)
		args, varargs, err := d.arglist(c, want)
		if err != nil {
			return nil, err
		}
		if c.peek() != '_' {
			return nil, d.bad(c)
		}
		c.skip(1)
		ret, err := d.typ(c, want)
		if err != nil {
			return nil, err
		}
		if !want {
			return nil, nil
		}
		return d.Builder.MakeFunctionType(ret, args, varargs), nil

	case 'M', 'O':
		return d.memberType(c, b == 'M', want)

	case 'G':
		c.skip(1)
		return d.typ(c, want)

	case 'C':
		c.skip(1)
		t, err := d.typ(c, want)
		if err != nil {
			return nil, err
		}
		if !want {
			return nil, nil
		}
		return d.Builder.MakeConstType(t), nil

	case 'Q':
		return d.qualified(c, want)

	default:
		return d.fundType(c, want)
	}
}

// memberType decodes a pointer to member ('M') or an offset type ('O'): the
// holding class, then for members an 'F' function signature, then an
// underscore and the member type.
func (d *Demangler) memberType(c *cursor, memberp, want bool) (debug.Type, error) {
	c.skip(1)

	var classType debug.Type
	switch {
	case isDigit(c.peek()):
		name, err := d.class(c)
		if err != nil {
			return nil, err
		}
		if want {
			classType = d.FindTagged(name, debug.KindClass)
			if classType == nil {
				return nil, d.bad(c)
			}
		}

	case c.peek() == 'Q':
		var err error
		classType, err = d.qualified(c, want)
		if err != nil {
			return nil, err
		}

	default:
		return nil, d.bad(c)
	}

	var args []debug.Type
	var varargs bool
	if memberp {
		if c.peek() == 'C' || c.peek() == 'V' {
			c.skip(1)
		}
		if c.peek() != 'F' {
			return nil, d.bad(c)
		}
		c.skip(1)
		var err error
		args, varargs, err = d.arglist(c, want)
		if err != nil {
			return nil, err
		}
	}

	if c.peek() != '_' {
		return nil, d.bad(c)
	}
	c.skip(1)

	target, err := d.typ(c, want)
	if err != nil {
		return nil, err
	}
	if !want {
		return nil, nil
	}
	if !memberp {
		return d.Builder.MakeOffsetType(classType, target), nil
	}
	// Constness and volatility of the member function are lost here; the
	// method type cannot carry them.
	return d.Builder.MakeMethodType(target, classType, args, varargs), nil
}

// fundType decodes a fundamental type, optionally prefixed with const,
// volatile, signed, and unsigned markers. Class names, templates, and 'G'
// prefixed names land here too.
func (d *Demangler) fundType(c *cursor, want bool) (debug.Type, error) {
	var constp, volatilep, unsignedp, signedp bool

loop:
	for {
		switch c.peek() {
		case 'C':
			constp = true
		case 'U':
			unsignedp = true
		case 'S':
			signedp = true
		case 'V':
			volatilep = true
		default:
			break loop
		}
		c.skip(1)
	}

	var t debug.Type
	switch b := c.peek(); {
	case b == 0 || b == '_':
		return nil, d.bad(c)

	case b == 'v':
		c.skip(1)
		if want {
			t = d.findOrMake("void", func() debug.Type { return d.Builder.MakeVoidType() })
		}

	case b == 'x':
		c.skip(1)
		if want {
			name := "long long int"
			if unsignedp {
				name = "long long unsigned int"
			}
			t = d.findOrMake(name, func() debug.Type { return d.Builder.MakeIntType(8, unsignedp) })
		}

	case b == 'l':
		c.skip(1)
		if want {
			name := "long int"
			if unsignedp {
				name = "long unsigned int"
			}
			t = d.findOrMake(name, func() debug.Type { return d.Builder.MakeIntType(4, unsignedp) })
		}

	case b == 'i':
		c.skip(1)
		if want {
			name := "int"
			if unsignedp {
				name = "unsigned int"
			}
			t = d.findOrMake(name, func() debug.Type { return d.Builder.MakeIntType(4, unsignedp) })
		}

	case b == 's':
		c.skip(1)
		if want {
			name := "short int"
			if unsignedp {
				name = "short unsigned int"
			}
			t = d.findOrMake(name, func() debug.Type { return d.Builder.MakeIntType(2, unsignedp) })
		}

	case b == 'b':
		c.skip(1)
		if want {
			t = d.findOrMake("bool", func() debug.Type { return d.Builder.MakeBoolType(4) })
		}

	case b == 'c':
		c.skip(1)
		if want {
			name := "char"
			if unsignedp {
				name = "unsigned char"
			} else if signedp {
				name = "signed char"
			}
			t = d.findOrMake(name, func() debug.Type { return d.Builder.MakeIntType(1, unsignedp) })
		}

	case b == 'w':
		c.skip(1)
		if want {
			t = d.findOrMake("__wchar_t", func() debug.Type { return d.Builder.MakeIntType(2, true) })
		}

	case b == 'r':
		c.skip(1)
		if want {
			t = d.findOrMake("long double", func() debug.Type { return d.Builder.MakeFloatType(8) })
		}

	case b == 'd':
		c.skip(1)
		if want {
			t = d.findOrMake("double", func() debug.Type { return d.Builder.MakeFloatType(8) })
		}

	case b == 'f':
		c.skip(1)
		if want {
			t = d.findOrMake("float", func() debug.Type { return d.Builder.MakeFloatType(4) })
		}

	case b == 'G' || isDigit(b):
		if b == 'G' {
			c.skip(1)
			if !isDigit(c.peek()) {
				return nil, d.bad(c)
			}
		}
		name, err := d.class(c)
		if err != nil {
			return nil, err
		}
		if want {
			t = d.Builder.FindNamedType(name)
			if t == nil {
				// An undefined type is assumed to be tagged.
				t = d.FindTagged(name, debug.KindIllegal)
				if t == nil {
					return nil, d.bad(c)
				}
			}
		}

	case b == 't':
		name, err := d.template(c, want)
		if err != nil {
			return nil, err
		}
		if want {
			t = d.FindTagged(name, debug.KindClass)
			if t == nil {
				return nil, d.bad(c)
			}
		}

	default:
		return nil, d.bad(c)
	}

	if want {
		if constp {
			t = d.Builder.MakeConstType(t)
		}
		if volatilep {
			t = d.Builder.MakeVolatileType(t)
		}
	}
	return t, nil
}

func (d *Demangler) findOrMake(name string, make func() debug.Type) debug.Type {
	if t := d.Builder.FindNamedType(name); t != nil {
		return t
	}
	return make()
}

// typeText renders the mangled span of a template type parameter as C++
// source text, matching the names g++ uses in instantiated structure tags.
func (d *Demangler) typeText(span string) string {
	c := &cursor{s: span}
	text, ok := d.renderType(c)
	if !ok || !c.eof() {
		return span
	}
	return text
}

func (d *Demangler) renderType(c *cursor) (string, bool) {
	var prefix, suffix string

	for {
		switch c.peek() {
		case 'C':
			prefix += "const "
		case 'V':
			prefix += "volatile "
		case 'U':
			prefix += "unsigned "
		case 'S':
			prefix += "signed "
		case 'P', 'p':
			suffix += "*"
		case 'R':
			suffix += "&"
		default:
			goto base
		}
		c.skip(1)
	}

base:
	var base string
	switch b := c.peek(); {
	case b == 'v':
		base = "void"
		c.skip(1)
	case b == 'x':
		base = "long long"
		c.skip(1)
	case b == 'l':
		base = "long"
		c.skip(1)
	case b == 'i':
		base = "int"
		c.skip(1)
	case b == 's':
		base = "short"
		c.skip(1)
	case b == 'b':
		base = "bool"
		c.skip(1)
	case b == 'c':
		base = "char"
		c.skip(1)
	case b == 'w':
		base = "wchar_t"
		c.skip(1)
	case b == 'r':
		base = "long double"
		c.skip(1)
	case b == 'd':
		base = "double"
		c.skip(1)
	case b == 'f':
		base = "float"
		c.skip(1)
	case isDigit(b):
		name, err := d.class(c)
		if err != nil {
			return "", false
		}
		base = name
	case b == 't':
		name, err := d.template(c, true)
		if err != nil {
			return "", false
		}
		base = name
	case b == 'Q':
		// Qualified names render as the components joined by "::".
		save := c.pos
		if _, err := d.qualified(c, false); err != nil {
			return "", false
		}
		base = renderQualifiedText(c.s[save:c.pos])
		if base == "" {
			return "", false
		}
	default:
		return "", false
	}

	return prefix + base + suffix, true
}

// renderQualifiedText turns a simple qualified span such as Q25Outer5Inner
// into Outer::Inner. Template components are left mangled; callers fall back
// to the raw span when that happens.
func renderQualifiedText(span string) string {
	c := &cursor{s: span, pos: 1}

	var n int
	if c.peek() == '_' {
		c.skip(1)
		for isDigit(c.peek()) {
			n = n*10 + int(c.peek()-'0')
			c.skip(1)
		}
		if c.peek() != '_' {
			return ""
		}
		c.skip(1)
	} else {
		if !isDigit(c.peek()) {
			return ""
		}
		n = int(c.peek() - '0')
		c.skip(1)
		if c.peek() == '_' {
			c.skip(1)
		}
	}

	var parts []string
	for ; n > 0; n-- {
		if c.peek() == '_' {
			c.skip(1)
		}
		ln := 0
		for isDigit(c.peek()) {
			ln = ln*10 + int(c.peek()-'0')
			c.skip(1)
		}
		if ln == 0 || len(c.rest()) < ln {
			return ""
		}
		parts = append(parts, c.rest()[:ln])
		c.skip(ln)
	}
	return strings.Join(parts, "::")
}
