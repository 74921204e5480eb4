package stabs

import (
	"strconv"
	"strings"

	"github.com/appsworld/go-stabs/debug"
	"github.com/appsworld/go-stabs/types"
)

// parseString handles the stab kinds whose payload is a "NAME:CODE..."
// string: N_GSYM, N_LSYM, N_PSYM, N_FUN with a name, and the rest. A string
// defining a function also closes any function still open and resets the
// address origin for section stabs.
func (p *Parser) parseString(kind types.Kind, value uint64, str string) error {
	if colon := strings.IndexByte(str, ':'); colon >= 0 &&
		colon+1 < len(str) && (str[colon+1] == 'f' || str[colon+1] == 'F') {
		if p.withinFunction {
			endval := value
			if p.functionEnd != ^uint64(0) && p.functionEnd < endval {
				endval = p.functionEnd
			}
			if err := p.emitPendingVars(); err != nil {
				return err
			}
			if err := p.b.EndFunction(endval); err != nil {
				return err
			}
			p.functionEnd = ^uint64(0)
		}
		// For stabs in sections, line numbers and block addresses are
		// offsets from the start of the function.
		if p.sections {
			p.functionStartOffset = value
		}
		p.withinFunction = true
	}

	return p.parseStabString(kind, value, str)
}

// parseStabString decodes one stab string. The name precedes the first colon
// that is not part of a "::" pair; the letter after the colon says what kind
// of symbol this is.
func (p *Parser) parseStabString(kind types.Kind, value uint64, str string) error {
	sep := strings.IndexByte(str, ':')
	if sep < 0 {
		return nil
	}
	for sep+1 < len(str) && str[sep+1] == ':' {
		next := strings.IndexByte(str[sep+2:], ':')
		if next < 0 {
			return p.badStab(str)
		}
		sep += 2 + next
	}

	// Some C++ names are encoded with a leading '$'.
	var name string
	named := false
	if len(str) > 1 && str[0] == '$' {
		switch str[1] {
		case 't':
			name = "this"
			named = true
		case 'v':
			// An unnamed virtual table pointer.
		case 'e':
			name = "eh_throw"
			named = true
		case '_':
			// An anonymous type that was never fixed up.
		case 'X':
			// SunPRO static variable encoding.
		default:
			p.diagf("unknown C++ encoded name: %s", str)
		}
	}
	if !named {
		if sep > 0 && !(str[0] == ' ' && sep == 1) {
			name = str[:sep]
		}
	}

	c := &cursor{s: str, pos: sep + 1}
	var code byte
	switch b := c.peek(); {
	case isDigit(b) || b == '(' || b == '-':
		// No code letter means a local variable.
		code = 'l'
	case b == 0:
		return p.badStab(str)
	default:
		code = c.next()
	}

	switch code {
	case 'c':
		// A constant: c=iVALUE, c=rVALUE, or c=eTYPE,VALUE.
		if c.peek() != '=' {
			return p.badStab(str)
		}
		c.skip(1)
		switch c.next() {
		case 'r':
			return p.b.RecordFloatConst(name, parseFloatPrefix(c.rest()))
		case 'i':
			return p.b.RecordIntConst(name, int64(atoi(c.rest())))
		case 'e':
			// The enum type tells us what the integral value means.
			dtype, err := p.parseType("", c, nil)
			if err != nil {
				return err
			}
			if c.peek() != ',' {
				return p.badStab(str)
			}
			c.skip(1)
			return p.b.RecordTypedConst(name, dtype, uint64(int64(atoi(c.rest()))))
		default:
			return p.badStab(str)
		}

	case 'C':
		// The name of a caught exception.
		dtype, err := p.parseType("", c, nil)
		if err != nil {
			return err
		}
		return p.b.RecordLabel(name, dtype, value)

	case 'f', 'F':
		// A function definition; 'F' means globally visible.
		dtype, err := p.parseType("", c, nil)
		if err != nil {
			return err
		}
		if err := p.b.StartFunction(name, dtype, code == 'F', value); err != nil {
			return err
		}
		// Sun acc appends the declared argument types. Their values do
		// not matter here, but the list can define types that later
		// records refer to, so it must be scanned.
		for c.peek() == ';' {
			c.skip(1)
			if _, err := p.parseType("", c, nil); err != nil {
				return err
			}
		}
		return nil

	case 'G':
		// A global symbol. The stab carries no address; find it in the
		// regular symbol table by name.
		dtype, err := p.parseType("", c, nil)
		if err != nil {
			return err
		}
		if name != "" {
			for _, sym := range p.syms {
				n := sym.Name
				if p.leadingChar != 0 && len(n) > 0 && n[0] == p.leadingChar {
					n = n[1:]
				}
				if n == name {
					value = sym.Value
					break
				}
			}
		}
		return p.recordVariable(name, dtype, debug.VarGlobal, value)

	case 'l', 's':
		dtype, err := p.parseType("", c, nil)
		if err != nil {
			return err
		}
		return p.recordVariable(name, dtype, debug.VarLocal, value)

	case 'p':
		// A function parameter on the stack. pF is Fortran shorthand
		// for a parameter that is a pointer to a function returning
		// the named type.
		var dtype debug.Type
		var err error
		if c.peek() != 'F' {
			dtype, err = p.parseType("", c, nil)
			if err != nil {
				return err
			}
		} else {
			c.skip(1)
			dtype, err = p.parseType("", c, nil)
			if err != nil {
				return err
			}
			dtype = p.b.MakePointerType(p.b.MakeFunctionType(dtype, nil, false))
		}
		return p.b.RecordParameter(name, dtype, debug.ParamStack, value)

	case 'P':
		if kind == types.N_FUN {
			// The prototype of a function referenced by this file.
			// Only scanned for the types it may define.
			for c.peek() == ';' {
				c.skip(1)
				if _, err := p.parseType("", c, nil); err != nil {
					return err
				}
			}
			return nil
		}
		fallthrough
	case 'R':
		// A parameter passed in a register.
		dtype, err := p.parseType("", c, nil)
		if err != nil {
			return err
		}
		return p.b.RecordParameter(name, dtype, debug.ParamRegister, value)

	case 'r':
		// A register variable, global or local.
		dtype, err := p.parseType("", c, nil)
		if err != nil {
			return err
		}
		return p.recordVariable(name, dtype, debug.VarRegister, value)

	case 'S':
		// A file-scope static.
		dtype, err := p.parseType("", c, nil)
		if err != nil {
			return err
		}
		return p.recordVariable(name, dtype, debug.VarStatic, value)

	case 't':
		// A typedef.
		var slot *debug.Type
		dtype, err := p.parseType(name, c, &slot)
		if err != nil {
			return err
		}
		if name == "" {
			// A nameless type; the definition was recorded by the
			// type parser and there is nothing to name.
			return nil
		}
		dtype = p.b.NameType(dtype, name)
		if slot != nil {
			*slot = dtype
		}
		return nil

	case 'T':
		// A struct, union, or enum tag. GNU C++ appends 't' when the
		// tag is typedef'd to itself.
		synonym := false
		if c.peek() == 't' {
			synonym = true
			c.skip(1)
		}

		var slot *debug.Type
		dtype, err := p.parseType(name, c, &slot)
		if err != nil {
			return err
		}
		if name == "" {
			return nil
		}

		// The type parser flags a tag whose definition is a cross
		// reference to itself; some versions of g++ emit those.
		selfCrossref := p.selfCrossref

		dtype = p.b.TagType(dtype, name)
		if slot != nil {
			*slot = dtype
		}

		// Resolve any forward references to this tag, except when the
		// definition refers to itself, which would make the debugging
		// information circular.
		if !selfCrossref {
			for i, st := range p.tags {
				if st.name == name {
					st.slot = dtype
					p.tags = append(p.tags[:i], p.tags[i+1:]...)
					break
				}
			}
		}

		if synonym {
			dtype = p.b.NameType(dtype, name)
			if slot != nil {
				*slot = dtype
			}
		}
		return nil

	case 'V':
		// A static of local scope.
		dtype, err := p.parseType("", c, nil)
		if err != nil {
			return err
		}
		return p.recordVariable(name, dtype, debug.VarLocalStatic, value)

	case 'v':
		// A parameter passed by reference.
		dtype, err := p.parseType("", c, nil)
		if err != nil {
			return err
		}
		return p.b.RecordParameter(name, dtype, debug.ParamReference, value)

	case 'a':
		// A reference parameter in a register.
		dtype, err := p.parseType("", c, nil)
		if err != nil {
			return err
		}
		return p.b.RecordParameter(name, dtype, debug.ParamReferenceRegister, value)

	case 'X':
		// Sun FORTRAN function result value.
		dtype, err := p.parseType("", c, nil)
		if err != nil {
			return err
		}
		return p.recordVariable(name, dtype, debug.VarLocal, value)

	case 'Y':
		// SunPRO C++ namespace mapping, Yn0name;. Unused, so skipped.
		if c.next() != 0 && c.next() == 'n' && c.next() == '0' {
			for !c.eof() && c.peek() != ';' {
				c.skip(1)
			}
			if !c.eof() {
				return nil
			}
		}
		return p.badStab(str)

	default:
		return p.badStab(str)
	}
}

// parseFloatPrefix converts the leading floating point literal of s, ignoring
// anything after it. A missing or malformed literal yields zero.
func parseFloatPrefix(s string) float64 {
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	for end < len(s) && (isDigit(s[end]) || s[end] == '.') {
		end++
	}
	if end < len(s) && (s[end] == 'e' || s[end] == 'E') {
		mark := end
		end++
		if end < len(s) && (s[end] == '+' || s[end] == '-') {
			end++
		}
		if end < len(s) && isDigit(s[end]) {
			for end < len(s) && isDigit(s[end]) {
				end++
			}
		} else {
			end = mark
		}
	}
	v, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return 0
	}
	return v
}
