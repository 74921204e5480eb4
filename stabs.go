// Package stabs parses stabs debugging symbols into a structured type and
// scope graph. Records are fed to a Parser one at a time in symbol-table
// order; the Parser decodes the stab strings and drives a debug.Builder with
// the types, variables, functions, and scopes it finds.
package stabs

import (
	"fmt"
	"log"
	"path/filepath"

	"github.com/appsworld/go-stabs/debug"
	"github.com/appsworld/go-stabs/types"
)

// Config controls optional Parser behavior.
type Config struct {
	// Sections is set when the stabs come from .stab/.stabstr sections
	// rather than the symbol table. Section stabs express block and line
	// addresses relative to the enclosing function; symbol table stabs
	// express them relative to the compilation unit.
	Sections bool

	// Symbols is the regular (non-stab) symbol table. N_GSYM stabs carry
	// no address, so the value of a global is looked up here by name.
	Symbols []types.Sym

	// LeadingChar is the character the target prepends to symbol names,
	// usually '_' or nothing. It is stripped before name comparison.
	LeadingChar byte

	// Diagf receives warnings about stabs that decode to something
	// suspicious without being structurally malformed. The default logs
	// through the standard library logger.
	Diagf func(format string, args ...any)
}

// Parser decodes a stream of stab records.
type Parser struct {
	b     debug.Builder
	diagf func(format string, args ...any)

	sections    bool
	syms        []types.Sym
	leadingChar byte

	// N_SO strings accumulate until a non-N_SO record arrives; gcc emits
	// the directory and the file name as separate records.
	soString string
	soAccum  bool
	soValue  uint64

	mainFilename string

	fileStartOffset     uint64
	functionStartOffset uint64

	gccCompiled    int
	nOptFound      bool
	withinFunction bool
	functionEnd    uint64
	blockDepth     int

	pending []pendingVar

	fileTypes  []typeTable
	binclStack []*binclFile
	binclList  []*binclFile

	tags       []*stabTag
	xcoffTypes [xcoffTypeCount]debug.Type

	// selfCrossref is set by the type parser when a tag definition turns
	// out to be a cross reference to itself.
	selfCrossref bool
}

// New returns a Parser that reports what it finds to b.
func New(b debug.Builder, config ...Config) *Parser {
	p := &Parser{
		b:           b,
		diagf:       log.Printf,
		functionEnd: ^uint64(0),
		fileTypes:   []typeTable{nil},
	}
	if len(config) > 0 {
		c := config[0]
		p.sections = c.Sections
		p.syms = c.Symbols
		p.leadingChar = c.LeadingChar
		if c.Diagf != nil {
			p.diagf = c.Diagf
		}
	}
	return p
}

// Parse handles one stab record. Records must arrive in symbol-table order.
// An error means the record was structurally malformed or a scope event was
// rejected by the builder; diagnostics about merely dubious records go to
// Diagf instead.
func (p *Parser) Parse(rec types.Record) error {
	str := rec.Text
	value := rec.Value

	// Flush the accumulated N_SO strings and start the new compilation
	// unit as soon as anything else shows up.
	if p.soAccum && (rec.Kind != types.N_SO || str == "" || value != p.soValue) {
		if err := p.b.SetFilename(p.soString); err != nil {
			return err
		}
		p.mainFilename = p.soString
		p.soString = ""
		p.soAccum = false

		p.gccCompiled = 0
		p.nOptFound = false

		// For stabs in the symbol table, N_LBRAC and N_RBRAC values
		// are relative to the N_SO value.
		if !p.sections {
			p.fileStartOffset = p.soValue
		}

		// Type numbers restart with each compilation unit. Types
		// already handed out stay alive through their indirect slots.
		p.fileTypes = p.fileTypes[:1]
		p.fileTypes[0] = nil
		p.binclStack = p.binclStack[:0]
		p.binclList = p.binclList[:0]
	}

	switch rec.Kind {
	case types.N_FN, types.N_FN_SEQ:
		// Only the object file name, which we do not use.

	case types.N_LBRAC:
		// SunPRO cc and acc emit an extra outermost context.
		if p.nOptFound && rec.Desc == 1 {
			break
		}
		if !p.withinFunction {
			return fmt.Errorf("N_LBRAC not within function")
		}
		if err := p.b.StartBlock(value + p.fileStartOffset + p.functionStartOffset); err != nil {
			return err
		}
		if err := p.emitPendingVars(); err != nil {
			return err
		}
		p.blockDepth++

	case types.N_RBRAC:
		if p.nOptFound && rec.Desc == 1 {
			break
		}
		// Pending variables should not exist here, but flush them
		// before the block closes if they do.
		if err := p.emitPendingVars(); err != nil {
			return err
		}
		if err := p.b.EndBlock(value + p.fileStartOffset + p.functionStartOffset); err != nil {
			return err
		}
		p.blockDepth--
		if p.blockDepth < 0 {
			return fmt.Errorf("too many N_RBRACs")
		}

	case types.N_SO:
		// An N_SO always ends any open function.
		if p.withinFunction {
			endval := value
			if str != "" && p.functionEnd != ^uint64(0) && p.functionEnd < endval {
				endval = p.functionEnd
			}
			if err := p.emitPendingVars(); err != nil {
				return err
			}
			if err := p.b.EndFunction(endval); err != nil {
				return err
			}
			p.withinFunction = false
			p.functionEnd = ^uint64(0)
		}

		// gcc emits an empty N_SO at the end of a compilation unit.
		if str == "" {
			break
		}

		// Accumulate: the directory record comes first and the file
		// record second. An absolute path discards what came before.
		if !p.soAccum || filepath.IsAbs(str) {
			p.soString = str
		} else {
			p.soString += str
		}
		p.soAccum = true
		p.soValue = value

	case types.N_SOL:
		if err := p.b.StartSource(str); err != nil {
			return err
		}

	case types.N_BINCL:
		p.pushBincl(str, value)
		if err := p.b.StartSource(str); err != nil {
			return err
		}

	case types.N_EINCL:
		if err := p.b.StartSource(p.popBincl()); err != nil {
			return err
		}

	case types.N_EXCL:
		// A duplicate of an N_BINCL header eliminated by the linker.
		p.findExcl(str, value)

	case types.N_SLINE:
		addr := value
		if p.withinFunction {
			addr += p.functionStartOffset
		}
		if err := p.b.RecordLine(rec.Desc, addr); err != nil {
			return err
		}

	case types.N_BCOMM:
		if err := p.b.StartCommonBlock(str); err != nil {
			return err
		}

	case types.N_ECOMM:
		if err := p.b.EndCommonBlock(str); err != nil {
			return err
		}

	case types.N_OPT:
		switch str {
		case "gcc2_compiled.":
			p.gccCompiled = 2
		case "gcc_compiled.":
			p.gccCompiled = 1
		default:
			p.nOptFound = true
		}

	case types.N_OBJ, types.N_ENDM, types.N_MAIN, types.N_WARNING:
		// Nothing useful for us.

	case types.N_FUN:
		if str == "" {
			// An empty N_FUN marks the end of a function.
			if p.withinFunction {
				endval := value
				if p.sections {
					endval += p.functionStartOffset
				}
				if err := p.emitPendingVars(); err != nil {
					return err
				}
				if err := p.b.EndFunction(endval); err != nil {
					return err
				}
				p.withinFunction = false
				p.functionEnd = ^uint64(0)
			}
			break
		}

		// A const static in the text section also shows up as N_FUN.
		// Track the lowest such value as a candidate function end, for
		// compilers that never emit the empty N_FUN.
		if p.withinFunction && (p.functionEnd == ^uint64(0) || value < p.functionEnd) {
			p.functionEnd = value
		}

		return p.parseString(rec.Kind, value, str)

	default:
		return p.parseString(rec.Kind, value, str)
	}

	return nil
}

// Close finishes the stream. When emit is set, any function still open is
// closed out and tags that were referenced but never defined are materialized
// as undefined tagged types, struct-kinded when nothing better is known.
func (p *Parser) Close(emit bool) error {
	if emit && p.withinFunction {
		if err := p.emitPendingVars(); err != nil {
			return err
		}
		if err := p.b.EndFunction(p.functionEnd); err != nil {
			return err
		}
		p.withinFunction = false
	}

	if emit {
		for _, st := range p.tags {
			kind := st.kind
			if kind == debug.KindIllegal {
				kind = debug.KindStruct
			}
			st.slot = p.b.MakeUndefinedTaggedType(st.name, kind)
		}
	}
	return nil
}
