package stabs

import (
	"fmt"

	"github.com/appsworld/go-stabs/debug"
)

// Type numbers are sparse, so slots are allocated in blocks of 16 indices,
// keyed by the block's base index.
const typeSlotBlock = 16

// typeTable holds the type slots of one file (the main file or one include).
// The map is shared by aliasing: an N_EXCL file reuses the map of the N_BINCL
// it duplicates, so definitions seen in either resolve in both.
type typeTable map[uint32]*[typeSlotBlock]debug.Type

// binclFile is one N_BINCL region. The stack tracks currently open includes;
// the list keeps every region ever pushed so a later N_EXCL can find it.
type binclFile struct {
	name      string
	hash      uint64
	file      int
	fileTypes typeTable
}

// stabTag is an undefined struct/union/enum tag. All references alias the
// indirect type pointing at slot; defining the tag fills slot exactly once.
type stabTag struct {
	name string
	kind debug.TypeKind
	slot debug.Type
	typ  debug.Type
}

// pendingVar is a block-scoped variable seen before its N_LBRAC.
type pendingVar struct {
	name  string
	typ   debug.Type
	kind  debug.VarKind
	value uint64
}

// findSlot returns the writable cell for a type number, allocating its block
// lazily. A file index beyond the known include files is a structural error.
func (p *Parser) findSlot(tn typeNumber) (*debug.Type, error) {
	if tn.file < 0 || tn.file >= len(p.fileTypes) {
		return nil, fmt.Errorf("type file number %d out of range", tn.file)
	}
	tab := p.fileTypes[tn.file]
	if tab == nil {
		tab = make(typeTable)
		p.fileTypes[tn.file] = tab
	}
	base := uint32(tn.index) / typeSlotBlock * typeSlotBlock
	block := tab[base]
	if block == nil {
		block = new([typeSlotBlock]debug.Type)
		tab[base] = block
	}
	return &block[uint32(tn.index)-base], nil
}

// findType resolves a type number to a handle, returning an indirect
// placeholder aliasing the slot if the number has not been defined yet.
func (p *Parser) findType(tn typeNumber) (debug.Type, error) {
	if tn.file == 0 && tn.index < 0 {
		return p.xcoffBuiltinType(tn.index)
	}
	slot, err := p.findSlot(tn)
	if err != nil {
		return nil, err
	}
	if *slot == nil {
		return p.b.MakeIndirectType(slot, ""), nil
	}
	return *slot, nil
}

// recordType binds a type number to a handle. A redefinition of the same
// number silently wins, matching how compilers re-emit types.
func (p *Parser) recordType(tn typeNumber, t debug.Type) error {
	slot, err := p.findSlot(tn)
	if err != nil {
		return err
	}
	*slot = t
	return nil
}

const xcoffTypeCount = 34

// xcoffBuiltinType returns one of the 34 predefined XCOFF types denoted by
// negative type numbers. The sizes are fixed by the debugging format, not by
// the target.
func (p *Parser) xcoffBuiltinType(typenum int) (debug.Type, error) {
	idx := -typenum - 1
	if idx < 0 || idx >= xcoffTypeCount {
		return nil, fmt.Errorf("unrecognized XCOFF type %d", typenum)
	}
	if p.xcoffTypes[idx] != nil {
		return p.xcoffTypes[idx], nil
	}

	var name string
	var t debug.Type
	switch idx {
	case 0:
		name = "int"
		t = p.b.MakeIntType(4, false)
	case 1:
		name = "char"
		t = p.b.MakeIntType(1, false)
	case 2:
		name = "short"
		t = p.b.MakeIntType(2, false)
	case 3:
		name = "long"
		t = p.b.MakeIntType(4, false)
	case 4:
		name = "unsigned char"
		t = p.b.MakeIntType(1, true)
	case 5:
		name = "signed char"
		t = p.b.MakeIntType(1, false)
	case 6:
		name = "unsigned short"
		t = p.b.MakeIntType(2, true)
	case 7:
		name = "unsigned int"
		t = p.b.MakeIntType(4, true)
	case 8:
		name = "unsigned"
		t = p.b.MakeIntType(4, true)
	case 9:
		name = "unsigned long"
		t = p.b.MakeIntType(4, true)
	case 10:
		name = "void"
		t = p.b.MakeVoidType()
	case 11:
		// IEEE single precision.
		name = "float"
		t = p.b.MakeFloatType(4)
	case 12:
		// IEEE double precision.
		name = "double"
		t = p.b.MakeFloatType(8)
	case 13:
		// An IEEE double on the RS/6000.
		name = "long double"
		t = p.b.MakeFloatType(8)
	case 14:
		name = "integer"
		t = p.b.MakeIntType(4, false)
	case 15:
		name = "boolean"
		t = p.b.MakeBoolType(4)
	case 16:
		name = "short real"
		t = p.b.MakeFloatType(4)
	case 17:
		name = "real"
		t = p.b.MakeFloatType(8)
	case 18:
		// No representation for a Pascal string pointer.
		return nil, fmt.Errorf("unsupported XCOFF type stringptr (%d)", typenum)
	case 19:
		name = "character"
		t = p.b.MakeIntType(1, true)
	case 20:
		name = "logical*1"
		t = p.b.MakeBoolType(1)
	case 21:
		name = "logical*2"
		t = p.b.MakeBoolType(2)
	case 22:
		name = "logical*4"
		t = p.b.MakeBoolType(4)
	case 23:
		name = "logical"
		t = p.b.MakeBoolType(4)
	case 24:
		// Two IEEE single precision values.
		name = "complex"
		t = p.b.MakeComplexType(8)
	case 25:
		// Two IEEE double precision values.
		name = "double complex"
		t = p.b.MakeComplexType(16)
	case 26:
		name = "integer*1"
		t = p.b.MakeIntType(1, false)
	case 27:
		name = "integer*2"
		t = p.b.MakeIntType(2, false)
	case 28:
		name = "integer*4"
		t = p.b.MakeIntType(4, false)
	case 29:
		name = "wchar"
		t = p.b.MakeIntType(2, false)
	case 30:
		name = "long long"
		t = p.b.MakeIntType(8, false)
	case 31:
		name = "unsigned long long"
		t = p.b.MakeIntType(8, true)
	case 32:
		name = "logical*8"
		t = p.b.MakeBoolType(8)
	case 33:
		name = "integer*8"
		t = p.b.MakeIntType(8, false)
	}

	t = p.b.NameType(t, name)
	p.xcoffTypes[idx] = t
	return t, nil
}

// findTaggedType finds or forward-declares a tagged type. All tags live in
// one namespace regardless of kind, which is right for C.
func (p *Parser) findTaggedType(name string, kind debug.TypeKind) debug.Type {
	if t := p.b.FindTaggedType(name, debug.KindIllegal); t != nil {
		return t
	}

	for _, st := range p.tags {
		if st.name == name {
			if st.kind == debug.KindIllegal {
				st.kind = kind
			}
			return st.typ
		}
	}

	st := &stabTag{name: name, kind: kind}
	st.typ = p.b.MakeIndirectType(&st.slot, name)
	p.tags = append(p.tags, st)
	return st.typ
}

// pushBincl opens an N_BINCL region, giving it the next file index.
func (p *Parser) pushBincl(name string, hash uint64) {
	n := &binclFile{name: name, hash: hash, file: len(p.fileTypes)}
	p.binclList = append(p.binclList, n)
	p.binclStack = append(p.binclStack, n)
	p.fileTypes = append(p.fileTypes, nil)
}

// popBincl closes the innermost open N_BINCL, snapshotting its type table for
// later N_EXCL reuse, and returns the file name that becomes current again.
func (p *Parser) popBincl() string {
	if len(p.binclStack) == 0 {
		return p.mainFilename
	}
	o := p.binclStack[len(p.binclStack)-1]
	p.binclStack = p.binclStack[:len(p.binclStack)-1]

	if o.file < len(p.fileTypes) {
		o.fileTypes = p.fileTypes[o.file]
	}

	if len(p.binclStack) == 0 {
		return p.mainFilename
	}
	return p.binclStack[len(p.binclStack)-1].name
}

// findExcl handles an N_EXCL: the linker removed a duplicate include region,
// so the new file index reuses the type table saved when the original region
// was popped. An unknown name/hash gets an empty table and a diagnostic.
func (p *Parser) findExcl(name string, hash uint64) {
	for _, l := range p.binclList {
		if l.hash == hash && l.name == name {
			p.fileTypes = append(p.fileTypes, l.fileTypes)
			return
		}
	}
	p.diagf("undefined N_EXCL: %s", name)
	p.fileTypes = append(p.fileTypes, nil)
}

// recordVariable emits a variable, or queues it if it is block-scoped and the
// compiler (gcc) emits declarations ahead of the N_LBRAC that scopes them.
// SunPRO emits them after the N_LBRAC, so they go straight through.
func (p *Parser) recordVariable(name string, t debug.Type, kind debug.VarKind, value uint64) error {
	if kind == debug.VarGlobal || kind == debug.VarStatic ||
		!p.withinFunction ||
		(p.gccCompiled == 0 && p.nOptFound) {
		return p.b.RecordVariable(name, t, kind, value)
	}
	p.pending = append(p.pending, pendingVar{name: name, typ: t, kind: kind, value: value})
	return nil
}

// emitPendingVars flushes queued variables, in the order they were seen, once
// the N_LBRAC that owns them arrives.
func (p *Parser) emitPendingVars() error {
	for _, v := range p.pending {
		if err := p.b.RecordVariable(v.name, v.typ, v.kind, v.value); err != nil {
			return err
		}
	}
	p.pending = p.pending[:0]
	return nil
}
