package stabs

import (
	"fmt"
	"strings"

	"github.com/appsworld/go-stabs/debug"
)

// typeNumber identifies a type within one compilation unit. A bare number N
// means (0, N); a negative index with file 0 is an XCOFF builtin.
type typeNumber struct {
	file  int
	index int
}

func (p *Parser) badStab(orig string) error {
	return fmt.Errorf("bad stab: %s", orig)
}

// parseTypeNumber reads a type number: either a single number or a
// (FILENUM,TYPENUM) pair in parentheses.
func (p *Parser) parseTypeNumber(c *cursor) (typeNumber, error) {
	orig := c.rest()

	if c.peek() != '(' {
		return typeNumber{0, int(p.parseNumber(c, nil))}, nil
	}
	c.skip(1)
	var tn typeNumber
	tn.file = int(p.parseNumber(c, nil))
	if c.peek() != ',' {
		return tn, p.badStab(orig)
	}
	c.skip(1)
	tn.index = int(p.parseNumber(c, nil))
	if c.peek() != ')' {
		return tn, p.badStab(orig)
	}
	c.skip(1)
	return tn, nil
}

// parseType parses one type at the cursor: an optional "typenum=" definition
// prefix, optional @attribute list, then a descriptor. typeName is non-empty
// only for typedef and tag definitions, where the grammar needs the name for
// self-crossreference detection and the long long range hack. If the type is
// being defined under a number, slotp (when non-nil) receives the registry
// cell so the caller can overwrite it with a named or tagged wrapper.
func (p *Parser) parseType(typeName string, c *cursor, slotp **debug.Type) (debug.Type, error) {
	if slotp != nil {
		*slotp = nil
	}

	orig := c.rest()
	if c.eof() {
		return nil, p.badStab(orig)
	}

	size := -1
	stringp := false

	p.selfCrossref = false

	// The type number may be omitted, as in the inner type of a
	// two-dimensional array "ar1;1;10;ar1;1;10;4". Such a type is anonymous
	// and is not recorded in the registry.
	typenums := typeNumber{-1, -1}
	if isDigit(c.peek()) || c.peek() == '(' || c.peek() == '-' {
		tn, err := p.parseTypeNumber(c)
		if err != nil {
			return nil, err
		}

		if c.peek() != '=' {
			// Not a definition: a reference or a forward reference.
			return p.findType(tn)
		}

		// Record the slot only for definitions, so the registry maps a
		// number to the typedef that defines it rather than to a later
		// variable of that type.
		if slotp != nil && tn.file >= 0 && tn.index >= 0 {
			slot, err := p.findSlot(tn)
			if err != nil {
				return nil, err
			}
			*slotp = slot
		}
		typenums = tn
		c.skip(1)

		for c.peek() == '@' {
			if b := c.peekAt(1); isDigit(b) || b == '(' || b == '-' {
				// An offset type, not an attribute list.
				break
			}
			c.skip(1)
			attr := c.rest()
			end := strings.IndexByte(attr, ';')
			if end < 0 {
				return nil, p.badStab(orig)
			}
			c.skip(end + 1)

			switch attr[0] {
			case 's':
				// Size in bits; we keep bytes.
				size = atoi(attr[1:end]) / 8
				if size <= 0 {
					size = -1
				}
			case 'S':
				stringp = true
			default:
				// Ignore unrecognized attributes so future compilers can
				// invent new ones.
			}
		}
	}

	descriptor := c.next()

	var dtype debug.Type
	var err error

	switch descriptor {
	case 'x':
		dtype, err = p.parseCrossReference(typeName, c, orig)
		if err != nil {
			return nil, err
		}

	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9', '(':
		// This type is defined as another type.
		c.pos--
		hold := c.pos

		xtn, err := p.parseTypeNumber(c)
		if err != nil {
			return nil, err
		}

		if typenums == xtn {
			// A type defined as itself is void.
			dtype = p.b.MakeVoidType()
		} else {
			// Reparse from the number so chains like t(1,2)=(3,4)=... work.
			c.pos = hold
			dtype, err = p.parseType("", c, nil)
			if err != nil {
				return nil, err
			}
		}

		if typenums.file != -1 {
			if err := p.recordType(typenums, dtype); err != nil {
				return nil, err
			}
		}

	case '*':
		inner, err := p.parseType("", c, nil)
		if err != nil {
			return nil, err
		}
		dtype = p.b.MakePointerType(inner)

	case '&':
		inner, err := p.parseType("", c, nil)
		if err != nil {
			return nil, err
		}
		dtype = p.b.MakeReferenceType(inner)

	case 'f':
		ret, err := p.parseType("", c, nil)
		if err != nil {
			return nil, err
		}
		dtype = p.b.MakeFunctionType(ret, nil, false)

	case 'k':
		// Const qualifier (Sun).
		inner, err := p.parseType("", c, nil)
		if err != nil {
			return nil, err
		}
		dtype = p.b.MakeConstType(inner)

	case 'B':
		// Volatile qualifier (Sun).
		inner, err := p.parseType("", c, nil)
		if err != nil {
			return nil, err
		}
		dtype = p.b.MakeVolatileType(inner)

	case '@':
		// Offset type: a pointer relative to an object.
		domain, err := p.parseType("", c, nil)
		if err != nil {
			return nil, err
		}
		if c.peek() != ',' {
			return nil, p.badStab(orig)
		}
		c.skip(1)
		memtype, err := p.parseType("", c, nil)
		if err != nil {
			return nil, err
		}
		dtype = p.b.MakeOffsetType(domain, memtype)

	case '#':
		dtype, err = p.parseMethodType(c, orig)
		if err != nil {
			return nil, err
		}

	case 'r':
		dtype, err = p.parseRangeType(typeName, c, typenums)
		if err != nil {
			return nil, err
		}

	case 'b':
		dtype, err = p.parseSunBuiltinType(c)
		if err != nil {
			return nil, err
		}

	case 'R':
		dtype, err = p.parseSunFloatingType(c)
		if err != nil {
			return nil, err
		}

	case 'e':
		dtype, err = p.parseEnumType(c)
		if err != nil {
			return nil, err
		}

	case 's', 'u':
		dtype, err = p.parseStructType(typeName, c, descriptor == 's', typenums)
		if err != nil {
			return nil, err
		}

	case 'a':
		if c.peek() != 'r' {
			return nil, p.badStab(orig)
		}
		c.skip(1)
		dtype, err = p.parseArrayType(c, stringp)
		if err != nil {
			return nil, err
		}

	case 'S':
		inner, err := p.parseType("", c, nil)
		if err != nil {
			return nil, err
		}
		dtype = p.b.MakeSetType(inner, stringp)

	default:
		return nil, p.badStab(orig)
	}

	if dtype == nil {
		return nil, p.badStab(orig)
	}

	if typenums.file != -1 {
		if err := p.recordType(typenums, dtype); err != nil {
			return nil, err
		}
	}

	if size != -1 {
		p.b.RecordTypeSize(dtype, uint64(size))
	}

	return dtype, nil
}

// parseCrossReference handles the x descriptor: a reference to a tagged type
// that need not be defined yet.
func (p *Parser) parseCrossReference(typeName string, c *cursor, orig string) (debug.Type, error) {
	var code debug.TypeKind
	switch c.peek() {
	case 's':
		code = debug.KindStruct
	case 'u':
		code = debug.KindUnion
	case 'e':
		code = debug.KindEnum
	case 0:
		return nil, p.badStab(orig)
	default:
		// Keep going so compilers can invent new cross-reference kinds.
		p.diagf("unrecognized cross reference type: %s", orig)
		code = debug.KindStruct
	}
	c.skip(1)

	rest := c.rest()
	end := strings.IndexByte(rest, ':')
	if end < 0 {
		return nil, p.badStab(orig)
	}
	// A template name contains colons of its own; the tag ends at the first
	// colon outside angle brackets.
	if q1 := strings.IndexByte(rest, '<'); q1 >= 0 && end > q1 && end+1 < len(rest) && rest[end+1] == ':' {
		nest := 0
		q2 := q1
		for ; q2 < len(rest); q2++ {
			switch rest[q2] {
			case '<':
				nest++
			case '>':
				nest--
			case ':':
				if nest == 0 {
					goto found
				}
			}
		}
	found:
		end = q2
		if end >= len(rest) || rest[end] != ':' {
			return nil, p.badStab(orig)
		}
	}

	name := rest[:end]

	// Some versions of g++ emit "fleep:T20=xsfleep:", defining a structure
	// in terms of itself. Flag it so the caller avoids building a circular
	// structure.
	if typeName != "" && typeName == name {
		p.selfCrossref = true
	}

	dtype := p.findTaggedType(name, code)
	c.skip(end + 1)
	return dtype, nil
}

// parseMethodType handles the # descriptor: "##ret;" for a method with no
// bound argument list, or "#domain,ret{,arg}*;" for a full signature.
func (p *Parser) parseMethodType(c *cursor, orig string) (debug.Type, error) {
	if c.peek() == '#' {
		c.skip(1)
		ret, err := p.parseType("", c, nil)
		if err != nil {
			return nil, err
		}
		if c.peek() != ';' {
			return nil, p.badStab(orig)
		}
		c.skip(1)
		return p.b.MakeMethodType(ret, nil, nil, false), nil
	}

	domain, err := p.parseType("", c, nil)
	if err != nil {
		return nil, err
	}
	if c.peek() != ',' {
		return nil, p.badStab(orig)
	}
	c.skip(1)

	ret, err := p.parseType("", c, nil)
	if err != nil {
		return nil, err
	}

	args := []debug.Type{}
	for c.peek() != ';' {
		if c.peek() != ',' {
			return nil, p.badStab(orig)
		}
		c.skip(1)
		arg, err := p.parseType("", c, nil)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	c.skip(1)

	// A trailing non-void argument means varargs; a trailing void is
	// stripped.
	varargs := true
	if n := len(args); n > 0 && p.b.GetKind(args[n-1]) == debug.KindVoid {
		args = args[:n-1]
		varargs = false
	}

	return p.b.MakeMethodType(ret, domain, args, varargs), nil
}

// Octal bit patterns gcc emits as the bounds of 64-bit ranges.
const (
	llLow   = "01000000000000000000000;"
	llHigh  = "0777777777777777777777;"
	ullHigh = "01777777777777777777777;"
)

// parseRangeType handles the r descriptor. Most of the work is heuristics:
// the format reuses ranges to describe builtin types, so particular bound
// patterns mean char, unsigned int, float and so on. The patterns are
// compiler lore and are matched exactly, in order.
func (p *Parser) parseRangeType(typeName string, c *cursor, typenums typeNumber) (debug.Type, error) {
	orig := c.rest()
	if c.eof() {
		return nil, p.badStab(orig)
	}

	var indexType debug.Type

	// First the type we are a subrange of. In C it is usually 0, 1 or the
	// type being defined.
	hold := c.pos
	rangenums, err := p.parseTypeNumber(c)
	if err != nil {
		return nil, err
	}
	selfSubrange := rangenums == typenums

	if c.peek() == '=' {
		c.pos = hold
		indexType, err = p.parseType("", c, nil)
		if err != nil {
			return nil, err
		}
	}

	if c.peek() == ';' {
		c.skip(1)
	}

	var ov2, ov3 bool
	s2 := c.rest()
	n2 := p.parseInt64(c, &ov2)
	if c.peek() != ';' {
		return nil, p.badStab(orig)
	}
	c.skip(1)

	s3 := c.rest()
	n3 := p.parseInt64(c, &ov3)
	if c.peek() != ';' {
		return nil, p.badStab(orig)
	}
	c.skip(1)

	if ov2 || ov3 {
		// gcc emits range stabs with these octal bounds for long long types.
		if indexType == nil {
			if strings.HasPrefix(s2, llLow) && strings.HasPrefix(s3, llHigh) {
				return p.b.MakeIntType(8, false), nil
			}
			if !ov2 && n2 == 0 && strings.HasPrefix(s3, ullHigh) {
				return p.b.MakeIntType(8, true), nil
			}
		}
		p.diagf("numeric overflow: %s", orig)
	}

	if indexType == nil {
		// A subrange of itself with both bounds 0 is void.
		if selfSubrange && n2 == 0 && n3 == 0 {
			return p.b.MakeVoidType(), nil
		}

		// A subrange of itself with positive n2 and zero n3 is a complex
		// type of n2 bytes.
		if selfSubrange && n3 == 0 && n2 > 0 {
			return p.b.MakeComplexType(int(n2)), nil
		}

		// Zero n3 with positive n2 is a floating point type of n2 bytes.
		if n3 == 0 && n2 > 0 {
			return p.b.MakeFloatType(int(n2)), nil
		}

		if n2 == 0 && n3 == -1 {
			// gcc with plain -gstabs emits "long long int:t6=r1;0;-1;", so
			// the name decides between 8-byte and the default 4-byte
			// unsigned.
			switch typeName {
			case "long long int":
				return p.b.MakeIntType(8, false), nil
			case "long long unsigned int":
				return p.b.MakeIntType(8, true), nil
			}
			return p.b.MakeIntType(4, true), nil
		}

		// A self range of 0 to 127 is char.
		if selfSubrange && n2 == 0 && n3 == 127 {
			return p.b.MakeIntType(1, false), nil
		}

		if n2 == 0 {
			switch {
			case n3 < 0:
				return p.b.MakeIntType(int(-n3), true), nil
			case n3 == 0xff:
				return p.b.MakeIntType(1, true), nil
			case n3 == 0xffff:
				return p.b.MakeIntType(2, true), nil
			case n3 == 0xffffffff:
				return p.b.MakeIntType(4, true), nil
			case uint64(n3) == 0xffffffffffffffff:
				return p.b.MakeIntType(8, true), nil
			}
		} else if n3 == 0 && n2 < 0 && (selfSubrange || n2 == -8) {
			return p.b.MakeIntType(int(-n2), true), nil
		} else if n2 == -n3-1 || n2 == n3+1 {
			switch n3 {
			case 0x7f:
				return p.b.MakeIntType(1, false), nil
			case 0x7fff:
				return p.b.MakeIntType(2, false), nil
			case 0x7fffffff:
				return p.b.MakeIntType(4, false), nil
			case 0x7fffffffffffffff:
				return p.b.MakeIntType(8, false), nil
			}
		}
	}

	// A self subrange that matched none of the special cases is not a
	// construct we know how to interpret.
	if selfSubrange {
		return nil, p.badStab(orig)
	}

	if indexType == nil {
		indexType, err = p.findType(rangenums)
		if err != nil || indexType == nil {
			p.diagf("missing index type: %s", orig)
			indexType = p.b.MakeIntType(4, false)
		}
	}

	return p.b.MakeRangeType(indexType, n2, n3), nil
}

// parseSunBuiltinType handles the b descriptor, Sun ACC's builtin integer
// encoding: b<s|u>[c|b|v]WIDTH;OFFSET;NBITS;
func (p *Parser) parseSunBuiltinType(c *cursor) (debug.Type, error) {
	orig := c.rest()
	if c.eof() {
		return nil, p.badStab(orig)
	}

	var unsignedp bool
	switch c.peek() {
	case 's':
		unsignedp = false
	case 'u':
		unsignedp = true
	default:
		return nil, p.badStab(orig)
	}
	c.skip(1)

	// An optional format letter: character, boolean or varargs encoding.
	// The bit width below determines the type, so it carries no information
	// we need.
	if b := c.peek(); b == 'c' || b == 'b' || b == 'v' {
		c.skip(1)
	}

	// The byte count is redundant with the bit count, so it is skipped.
	p.parseNumber(c, nil)
	if c.peek() != ';' {
		return nil, p.badStab(orig)
	}
	c.skip(1)

	// The second number is always zero.
	p.parseNumber(c, nil)
	if c.peek() != ';' {
		return nil, p.badStab(orig)
	}
	c.skip(1)

	bits := p.parseNumber(c, nil)

	// Sun's compiler omits the trailing semicolon for void, so tolerate a
	// missing one at the end of the string.
	if c.peek() == ';' {
		c.skip(1)
	}

	if bits == 0 {
		return p.b.MakeVoidType(), nil
	}

	return p.b.MakeIntType(int(bits/8), unsignedp), nil
}

// Sun floating point format codes denoting complex types.
const (
	nfComplex   = 3
	nfComplex16 = 4
	nfComplex32 = 5
)

// parseSunFloatingType handles the R descriptor, Sun ACC's builtin float
// encoding: R<format>;<bytes>;
func (p *Parser) parseSunFloatingType(c *cursor) (debug.Type, error) {
	orig := c.rest()
	if c.eof() {
		return nil, p.badStab(orig)
	}

	details := p.parseNumber(c, nil)
	if c.peek() != ';' {
		return nil, p.badStab(orig)
	}
	c.skip(1)

	bytes := p.parseNumber(c, nil)
	if c.peek() != ';' {
		return nil, p.badStab(orig)
	}
	c.skip(1)

	if details == nfComplex || details == nfComplex16 || details == nfComplex32 {
		return p.b.MakeComplexType(int(bytes)), nil
	}

	return p.b.MakeFloatType(int(bytes)), nil
}

// parseEnumType handles the e descriptor: NAME:VALUE pairs separated by
// commas, ended by a semicolon or a comma with no name.
func (p *Parser) parseEnumType(c *cursor) (debug.Type, error) {
	orig := c.rest()
	if c.eof() {
		return nil, p.badStab(orig)
	}

	// The aix4 compiler emits an extra leading field, apparently a type.
	if c.peek() == '-' {
		for c.peek() != ':' && c.peek() != 0 {
			c.skip(1)
		}
		if c.peek() == 0 {
			return nil, p.badStab(orig)
		}
		c.skip(1)
	}

	var names []string
	var values []int64
	for c.peek() != 0 && c.peek() != ';' && c.peek() != ',' {
		rest := c.rest()
		end := strings.IndexByte(rest, ':')
		if end < 0 {
			return nil, p.badStab(orig)
		}
		name := rest[:end]
		c.skip(end + 1)

		val := p.parseInt64(c, nil)
		if c.peek() != ',' {
			return nil, p.badStab(orig)
		}
		c.skip(1)

		names = append(names, name)
		values = append(values, val)
	}

	if c.peek() == ';' {
		c.skip(1)
	}

	return p.b.MakeEnumType(names, values), nil
}

// parseArrayType handles the body of "ar": index type, lower and upper
// bounds, element type. A non-numeric bound is an adjustable (Fortran) bound,
// normalized to 0,-1.
func (p *Parser) parseArrayType(c *cursor, stringp bool) (debug.Type, error) {
	orig := c.rest()
	if c.eof() {
		return nil, p.badStab(orig)
	}

	// An index type of 0 means int.
	var indexType debug.Type
	first := c.peek()
	peeker := *c
	tn, err := p.parseTypeNumber(&peeker)
	if err != nil {
		return nil, err
	}
	if tn == (typeNumber{0, 0}) && first != '=' {
		indexType = p.b.FindNamedType("int")
		if indexType == nil {
			indexType = p.b.MakeIntType(4, false)
		}
		*c = peeker
	} else {
		indexType, err = p.parseType("", c, nil)
		if err != nil {
			return nil, err
		}
	}

	if c.peek() != ';' {
		return nil, p.badStab(orig)
	}
	c.skip(1)

	adjustable := false

	if b := c.peek(); !isDigit(b) && b != '-' && b != 0 {
		c.skip(1)
		adjustable = true
	}

	lower := p.parseInt64(c, nil)
	if c.peek() != ';' {
		return nil, p.badStab(orig)
	}
	c.skip(1)

	if b := c.peek(); !isDigit(b) && b != '-' && b != 0 {
		c.skip(1)
		adjustable = true
	}

	upper := p.parseInt64(c, nil)
	if c.peek() != ';' {
		return nil, p.badStab(orig)
	}
	c.skip(1)

	elementType, err := p.parseType("", c, nil)
	if err != nil {
		return nil, err
	}

	if adjustable {
		lower = 0
		upper = -1
	}

	return p.b.MakeArrayType(elementType, indexType, lower, upper, stringp), nil
}
