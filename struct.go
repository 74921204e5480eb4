package stabs

import (
	"fmt"
	"strings"

	"github.com/appsworld/go-stabs/debug"
)

// parseStructType handles the s and u descriptors: a byte size, then base
// classes, data fields, member functions and the vtable tail, each section
// optional. A plain C aggregate comes out as a struct type; anything carrying
// C++ information becomes an object type.
func (p *Parser) parseStructType(tagname string, c *cursor, structp bool, typenums typeNumber) (debug.Type, error) {
	size := p.parseNumber(c, nil)

	baseclasses, err := p.parseBaseclasses(c)
	if err != nil {
		return nil, err
	}
	fields, statics, err := p.parseStructFields(c)
	if err != nil {
		return nil, err
	}
	methods, err := p.parseMembers(tagname, c, typenums)
	if err != nil {
		return nil, err
	}
	vptrBase, ownVptr, err := p.parseTildeField(c, typenums)
	if err != nil {
		return nil, err
	}

	if !statics && baseclasses == nil && methods == nil && vptrBase == nil && !ownVptr {
		return p.b.MakeStructType(structp, size, fields), nil
	}

	return p.b.MakeObjectType(structp, size, fields, baseclasses, methods, vptrBase, ownVptr), nil
}

// parseBaseclasses reads the optional base class section, marked by '!'
// followed by a count, then per base: virtual flag, visibility, bit offset,
// type, semicolon. A typical two-base example is "!2,020,19;0264,21;".
func (p *Parser) parseBaseclasses(c *cursor) ([]debug.Baseclass, error) {
	orig := c.rest()
	if c.eof() {
		return nil, p.badStab(orig)
	}

	if c.peek() != '!' {
		return nil, nil
	}
	c.skip(1)

	count := int(p.parseNumber(c, nil))
	if c.peek() != ',' {
		return nil, p.badStab(orig)
	}
	c.skip(1)

	classes := make([]debug.Baseclass, 0, count)
	for i := 0; i < count; i++ {
		var virtual bool
		switch c.peek() {
		case '0':
			virtual = false
		case '1':
			virtual = true
		case 0:
			return nil, p.badStab(orig)
		default:
			p.diagf("unknown virtual character for baseclass: %s", orig)
			virtual = false
		}
		c.skip(1)

		var vis debug.Visibility
		switch c.peek() {
		case '0':
			vis = debug.VisPrivate
		case '1':
			vis = debug.VisProtected
		case '2':
			vis = debug.VisPublic
		case 0:
			return nil, p.badStab(orig)
		default:
			p.diagf("unknown visibility character for baseclass: %s", orig)
			vis = debug.VisPublic
		}
		c.skip(1)

		// The bit offset of this base within the object. Zero in the
		// absence of multiple inheritance.
		bitpos := p.parseNumber(c, nil)
		if c.peek() != ',' {
			return nil, p.badStab(orig)
		}
		c.skip(1)

		t, err := p.parseType("", c, nil)
		if err != nil {
			return nil, err
		}

		classes = append(classes, p.b.MakeBaseclass(t, bitpos, virtual, vis))

		if c.peek() != ';' {
			return nil, p.badStab(orig)
		}
		c.skip(1)
	}

	return classes, nil
}

// parseStructFields reads data fields of the form
// NAME:[/VISIBILITY]TYPE,BITPOS,BITSIZE; until the terminating semicolon.
// Scanning stops without consuming at the first entry whose name is followed
// by a double colon, which starts the member function section.
func (p *Parser) parseStructFields(c *cursor) (fields []debug.Field, statics bool, err error) {
	orig := c.rest()
	if c.eof() {
		return nil, false, p.badStab(orig)
	}

	for c.peek() != ';' {
		// A CPLUS_MARKER starts a special GNU abbreviation, unless followed
		// by an underscore, in which case it is an anonymous type name.
		// Both '$' and '.' serve as the marker; neither can otherwise
		// appear in a field name.
		if b := c.peek(); (b == '$' || b == '.') && c.peekAt(1) != '_' {
			c.skip(1)
			f, err := p.parseCppAbbrev(c)
			if err != nil {
				return nil, false, err
			}
			fields = append(fields, f)
			continue
		}

		rest := c.rest()
		colon := strings.IndexByte(rest, ':')
		if colon < 0 {
			return nil, false, p.badStab(orig)
		}

		if colon+1 < len(rest) && rest[colon+1] == ':' {
			break
		}

		f, static, err := p.parseOneStructField(c, rest[:colon])
		if err != nil {
			return nil, false, err
		}
		if static {
			statics = true
		}
		fields = append(fields, f)
	}

	return fields, statics, nil
}

// parseCppAbbrev reads a GNU special field: $vf synthesizes the virtual
// function table pointer, $vb a virtual base class pointer.
func (p *Parser) parseCppAbbrev(c *cursor) (debug.Field, error) {
	orig := c.rest()
	if c.eof() {
		return nil, p.badStab(orig)
	}

	if c.peek() != 'v' {
		return nil, p.badStab(c.rest())
	}
	c.skip(1)

	abbrev := c.peek()
	if abbrev == 0 {
		return nil, p.badStab(orig)
	}
	c.skip(1)

	// The cursor now points at something like "22:23=*22...": the type
	// number before the colon is the context whose name builds the field
	// name.
	context, err := p.parseType("", c, nil)
	if err != nil {
		return nil, err
	}

	var name string
	switch abbrev {
	case 'f':
		// Virtual function table pointer.
		name = "_vptr$"
	case 'b':
		// Virtual base class pointer, named after its context.
		typeName := p.b.GetTypeName(context)
		if typeName == "" {
			p.diagf("unnamed $vb type: %s", orig)
			typeName = "FOO"
		}
		name = "_vb$" + typeName
	default:
		p.diagf("unrecognized C++ abbreviation: %s", orig)
		name = "INVALID_CPLUSPLUS_ABBREV"
	}

	if c.peek() != ':' {
		return nil, p.badStab(orig)
	}
	c.skip(1)

	t, err := p.parseType("", c, nil)
	if err != nil {
		return nil, err
	}
	if c.peek() != ',' {
		return nil, p.badStab(orig)
	}
	c.skip(1)

	bitpos := p.parseNumber(c, nil)
	if c.peek() != ';' {
		return nil, p.badStab(orig)
	}
	c.skip(1)

	return p.b.MakeField(name, t, bitpos, 0, debug.VisPrivate), nil
}

// parseOneStructField reads the remainder of one field after its name has
// been located. A trailing :PHYSNAME instead of ,BITPOS,BITSIZE denotes a
// static data member.
func (p *Parser) parseOneStructField(c *cursor, name string) (debug.Field, bool, error) {
	orig := c.rest()
	if c.eof() {
		return nil, false, p.badStab(orig)
	}

	c.skip(len(name) + 1)

	vis := debug.VisPublic
	if c.peek() == '/' {
		c.skip(1)
		switch c.peek() {
		case '0':
			vis = debug.VisPrivate
		case '1':
			vis = debug.VisProtected
		case '2':
			vis = debug.VisPublic
		case 0:
			return nil, false, p.badStab(orig)
		default:
			p.diagf("unknown visibility character for field: %s", orig)
			vis = debug.VisPublic
		}
		c.skip(1)
	}

	t, err := p.parseType("", c, nil)
	if err != nil {
		return nil, false, err
	}

	if c.peek() == ':' {
		// A static class member: the rest is the physical name.
		c.skip(1)
		rest := c.rest()
		end := strings.IndexByte(rest, ';')
		if end < 0 {
			return nil, false, p.badStab(orig)
		}
		physname := rest[:end]
		c.skip(end + 1)
		return p.b.MakeStaticMember(name, t, physname, vis), true, nil
	}

	if c.peek() != ',' {
		return nil, false, p.badStab(orig)
	}
	c.skip(1)

	bitpos := p.parseNumber(c, nil)
	if c.peek() != ',' {
		return nil, false, p.badStab(orig)
	}
	c.skip(1)

	bitsize := p.parseNumber(c, nil)
	if c.peek() != ';' {
		return nil, false, p.badStab(orig)
	}
	c.skip(1)

	if bitpos == 0 && bitsize == 0 {
		// Either a field optimized out by the compiler or a legitimate
		// zero-size array; the format does not distinguish them, so the
		// field is marked to be ignored.
		vis = debug.VisIgnore
	}

	return p.b.MakeField(name, t, bitpos, bitsize, vis), false, nil
}

// parseMembers reads the member function section: NAME:: followed by one or
// more variants, each TYPE:MANGLED-ARGS;VISIBILITY;QUALIFIERS and a marker
// for virtual, static or plain. Overloaded operators use the "op$::NAME."
// form so the real name can contain colons.
func (p *Parser) parseMembers(tagname string, c *cursor, typenums typeNumber) ([]debug.Method, error) {
	orig := c.rest()
	if c.eof() {
		return nil, p.badStab(orig)
	}

	var methods []debug.Method

	for c.peek() != ';' {
		rest := c.rest()
		colon := strings.IndexByte(rest, ':')
		if colon < 0 || colon+1 >= len(rest) || rest[colon+1] != ':' {
			break
		}

		var name string
		if !strings.HasPrefix(rest, "op$") {
			name = rest[:colon]
			c.skip(colon + 2)
		} else {
			// "op$::NAME." holds operator names like "+=" that would
			// otherwise collide with the colon delimiters.
			c.skip(colon + 2)
			opRest := c.rest()
			dot := strings.IndexByte(opRest, '.')
			if dot < 0 {
				return nil, p.badStab(orig)
			}
			name = opRest[:dot]
			c.skip(dot + 1)
		}

		var variants []debug.MethodVariant
		var lookAheadType debug.Type

		for {
			var t debug.Type
			var err error

			if lookAheadType != nil {
				// g++ version 1 kludge: the type was consumed while
				// looking for the virtual context.
				t = lookAheadType
				lookAheadType = nil
			} else {
				t, err = p.parseType("", c, nil)
				if err != nil {
					return nil, err
				}
				if c.peek() != ':' {
					return nil, p.badStab(orig)
				}
			}

			c.skip(1)
			argRest := c.rest()
			semi := strings.IndexByte(argRest, ';')
			if semi < 0 {
				return nil, p.badStab(orig)
			}

			stub := false
			if p.b.GetKind(t) == debug.KindMethod {
				if args, _ := p.b.GetParameterTypes(t); args == nil {
					stub = true
				}
			}

			argtypes := argRest[:semi]
			c.skip(semi + 1)

			var vis debug.Visibility
			switch c.peek() {
			case '0':
				vis = debug.VisPrivate
			case '1':
				vis = debug.VisProtected
			case 0:
				return nil, p.badStab(orig)
			default:
				vis = debug.VisPublic
			}
			c.skip(1)

			constp := false
			volatilep := false
			switch c.peek() {
			case 'A':
				// Normal function.
				c.skip(1)
			case 'B':
				constp = true
				c.skip(1)
			case 'C':
				volatilep = true
				c.skip(1)
			case 'D':
				constp = true
				volatilep = true
				c.skip(1)
			case '*', '?', '.':
				// Compiled with g++ version 1; no information.
			default:
				p.diagf("const/volatile indicator missing: %s", orig)
			}

			staticp := false
			var voffset uint64
			var context debug.Type
			switch c.peek() {
			case '*':
				// Virtual member function, followed by the vtable index.
				// The high bit distinguishes pointers to methods from
				// virtual function indices.
				c.skip(1)
				voffset = p.parseNumber(c, nil)
				if c.peek() != ';' {
					return nil, p.badStab(orig)
				}
				c.skip(1)
				voffset &= 0x7fffffff

				if c.peek() == ';' || c.peek() == 0 {
					// Must be g++ version 1.
					context = nil
				} else {
					// The virtual function may come from the vtable of a
					// base class.
					lookAheadType, err = p.parseType("", c, nil)
					if err != nil {
						return nil, err
					}
					if c.peek() == ':' {
						// g++ version 1 overloaded methods.
						context = nil
					} else {
						context = lookAheadType
						lookAheadType = nil
						if c.peek() != ';' {
							return nil, p.badStab(orig)
						}
						c.skip(1)
					}
				}

			case '?':
				// Static member function.
				c.skip(1)
				staticp = true
				if !strings.HasPrefix(argtypes, name) {
					stub = true
				}

			case '.':
				c.skip(1)

			default:
				p.diagf("member function type missing: %s", orig)
			}

			// For a non-stub, the argtypes string is the physical name of
			// the function. For a stub it is the mangled argument types,
			// and both the full type and the physical name must be
			// recovered from them.
			physname := argtypes
			if stub {
				classType, err := p.findType(typenums)
				if err != nil {
					return nil, err
				}
				returnType := p.b.GetReturnType(t)
				if returnType == nil {
					return nil, p.badStab(orig)
				}
				t, physname, err = p.parseArgtypes(classType, name, tagname,
					returnType, argtypes, constp, volatilep)
				if err != nil {
					return nil, err
				}
			}

			if staticp {
				variants = append(variants,
					p.b.MakeStaticMethodVariant(physname, t, vis, constp, volatilep))
			} else {
				variants = append(variants,
					p.b.MakeMethodVariant(physname, t, vis, constp, volatilep, voffset, context))
			}

			if c.peek() == ';' || c.peek() == 0 {
				break
			}
		}

		if c.peek() != 0 {
			c.skip(1)
		}

		methods = append(methods, p.b.MakeMethod(name, variants))
	}

	return methods, nil
}

// parseArgtypes recovers the method type and physical name of a stubbed
// member function from its mangled argument string. Unless the name is
// already fully mangled (a v3 name, a full constructor or a destructor), the
// physical name is rebuilt as NAME__[C][V][LEN]TAGNAME ARGTYPES and the
// argument types come from demangling it.
func (p *Parser) parseArgtypes(classType debug.Type, fieldname, tagname string,
	returnType debug.Type, argtypes string, constp, volatilep bool) (debug.Type, string, error) {

	// Constructors are sometimes handled specially.
	isFullPhysnameConstructor := (len(argtypes) > 2 && argtypes[0] == '_' && argtypes[1] == '_' &&
		(isDigit(argtypes[2]) || argtypes[2] == 'Q' || argtypes[2] == 't')) ||
		strings.HasPrefix(argtypes, "__ct")

	isConstructor := isFullPhysnameConstructor ||
		(tagname != "" && fieldname == tagname)
	isDestructor := (len(argtypes) > 2 && argtypes[0] == '_' &&
		(argtypes[1] == '$' || argtypes[1] == '.') && argtypes[2] == '_') ||
		strings.HasPrefix(argtypes, "__dt")
	isV3 := strings.HasPrefix(argtypes, "_Z")

	physname := argtypes
	physnameLen := 0

	if !(isDestructor || isFullPhysnameConstructor || isV3) {
		constPrefix := ""
		if constp {
			constPrefix = "C"
		}
		volatilePrefix := ""
		if volatilep {
			volatilePrefix = "V"
		}

		var buf string
		switch {
		case tagname == "":
			buf = "__" + constPrefix + volatilePrefix
		case strings.ContainsRune(tagname, '<'):
			// Template methods are fully mangled.
			buf = "__" + constPrefix + volatilePrefix
			tagname = ""
		default:
			buf = fmt.Sprintf("__%s%s%d", constPrefix, volatilePrefix, len(tagname))
		}

		if strings.HasPrefix(fieldname, "op$") || strings.HasPrefix(fieldname, "op.") {
			// Opname selection is not supported by the demangler.
			return nil, "", fmt.Errorf("unsupported operator name selection: %s", fieldname)
		}

		var sb strings.Builder
		if !isConstructor {
			sb.WriteString(fieldname)
		}
		physnameLen = sb.Len()
		sb.WriteString(buf)
		sb.WriteString(tagname)
		sb.WriteString(argtypes)
		physname = sb.String()
	}

	if argtypes == "" || isDestructor {
		return p.b.MakeMethodType(returnType, classType, []debug.Type{}, false), physname, nil
	}

	args, varargs, err := p.demangleArgtypes(physname, physnameLen)
	if err != nil {
		return nil, "", err
	}

	return p.b.MakeMethodType(returnType, classType, args, varargs), physname, nil
}

// parseTildeField reads the optional vtable tail "~%TYPE;". The type number
// names the base class holding the vtable pointer; naming the class itself
// means it owns its own vtable.
func (p *Parser) parseTildeField(c *cursor, typenums typeNumber) (debug.Type, bool, error) {
	orig := c.rest()
	if c.eof() {
		return nil, false, p.badStab(orig)
	}

	if c.peek() == ';' {
		c.skip(1)
	}

	if c.peek() != '~' {
		return nil, false, nil
	}
	c.skip(1)

	if b := c.peek(); b == '=' || b == '+' || b == '-' {
		// Obsolete flags that used to mark constructors and destructors.
		c.skip(1)
	}

	if c.peek() != '%' {
		return nil, false, nil
	}
	c.skip(1)

	hold := c.pos

	vtn, err := p.parseTypeNumber(c)
	if err != nil {
		return nil, false, err
	}

	if vtn == typenums {
		return nil, true, nil
	}

	c.pos = hold
	vtype, err := p.parseType("", c, nil)
	if err != nil {
		return nil, false, err
	}

	rest := c.rest()
	end := strings.IndexByte(rest, ';')
	if end < 0 {
		return nil, false, p.badStab(orig)
	}
	c.skip(end + 1)

	return vtype, false, nil
}
