package types

import (
	"encoding/binary"
	"fmt"
)

// Kind is the stab record kind, the n_type byte of an nlist entry.
type Kind uint8

const (
	N_GSYM    Kind = 0x20 // global symbol
	N_FNAME   Kind = 0x22 // F77 function name
	N_FUN     Kind = 0x24 // function or text variable
	N_STSYM   Kind = 0x26 // data variable, internal linkage
	N_LCSYM   Kind = 0x28 // bss variable, internal linkage
	N_MAIN    Kind = 0x2a // name of main routine
	N_ROSYM   Kind = 0x2c // read-only data variable
	N_PC      Kind = 0x30 // global Pascal symbol
	N_NSYMS   Kind = 0x32 // symbol count (Ultrix)
	N_NOMAP   Kind = 0x34 // no DST map
	N_OBJ     Kind = 0x38 // object file (Solaris)
	N_OPT     Kind = 0x3c // debugger options (Solaris)
	N_RSYM    Kind = 0x40 // register variable
	N_M2C     Kind = 0x42 // Modula-2 compilation unit
	N_SLINE   Kind = 0x44 // source line number
	N_DSLINE  Kind = 0x46 // source line, data section
	N_BSLINE  Kind = 0x48 // source line, bss section
	N_DEFD    Kind = 0x4a // GNU Modula-2 definition module dependency
	N_FLINE   Kind = 0x4c // function start/body/end line (Solaris)
	N_EHDECL  Kind = 0x50 // GNU C++ exception variable
	N_CATCH   Kind = 0x54 // GNU C++ catch clause
	N_SSYM    Kind = 0x60 // structure or union element
	N_ENDM    Kind = 0x62 // last stab for module (Solaris)
	N_SO      Kind = 0x64 // main source file
	N_LSYM    Kind = 0x80 // stack variable or type
	N_BINCL   Kind = 0x82 // beginning of an include file
	N_SOL     Kind = 0x84 // included source file
	N_PSYM    Kind = 0xa0 // parameter
	N_EINCL   Kind = 0xa2 // end of an include file
	N_ENTRY   Kind = 0xa4 // alternate entry point
	N_LBRAC   Kind = 0xc0 // beginning of a lexical block
	N_EXCL    Kind = 0xc2 // excluded (deduplicated) include file
	N_SCOPE   Kind = 0xc4 // Modula-2 scope information
	N_RBRAC   Kind = 0xe0 // end of a lexical block
	N_BCOMM   Kind = 0xe2 // begin named common block
	N_ECOMM   Kind = 0xe4 // end named common block
	N_ECOML   Kind = 0xe8 // member of a common block
	N_WITH    Kind = 0xea // Pascal with statement
	N_NBTEXT  Kind = 0xf0 // Gould non-base registers
	N_NBDATA  Kind = 0xf2
	N_NBBSS   Kind = 0xf4
	N_NBSTS   Kind = 0xf6
	N_NBLCS   Kind = 0xf8

	// Non-stab entries that still appear in stab streams.
	N_FN_SEQ  Kind = 0x0c // function start (Sequent)
	N_WARNING Kind = 0x1e // warning message
	N_FN      Kind = 0x1f // file name of a .o file
)

var kindNames = map[Kind]string{
	N_GSYM:    "GSYM",
	N_FNAME:   "FNAME",
	N_FUN:     "FUN",
	N_STSYM:   "STSYM",
	N_LCSYM:   "LCSYM",
	N_MAIN:    "MAIN",
	N_ROSYM:   "ROSYM",
	N_PC:      "PC",
	N_NSYMS:   "NSYMS",
	N_NOMAP:   "NOMAP",
	N_OBJ:     "OBJ",
	N_OPT:     "OPT",
	N_RSYM:    "RSYM",
	N_M2C:     "M2C",
	N_SLINE:   "SLINE",
	N_DSLINE:  "DSLINE",
	N_BSLINE:  "BSLINE",
	N_DEFD:    "DEFD",
	N_FLINE:   "FLINE",
	N_EHDECL:  "EHDECL",
	N_CATCH:   "CATCH",
	N_SSYM:    "SSYM",
	N_ENDM:    "ENDM",
	N_SO:      "SO",
	N_LSYM:    "LSYM",
	N_BINCL:   "BINCL",
	N_SOL:     "SOL",
	N_PSYM:    "PSYM",
	N_EINCL:   "EINCL",
	N_ENTRY:   "ENTRY",
	N_LBRAC:   "LBRAC",
	N_EXCL:    "EXCL",
	N_SCOPE:   "SCOPE",
	N_RBRAC:   "RBRAC",
	N_BCOMM:   "BCOMM",
	N_ECOMM:   "ECOMM",
	N_ECOML:   "ECOML",
	N_WITH:    "WITH",
	N_NBTEXT:  "NBTEXT",
	N_NBDATA:  "NBDATA",
	N_NBBSS:   "NBBSS",
	N_NBSTS:   "NBSTS",
	N_NBLCS:   "NBLCS",
	N_FN_SEQ:  "FN_SEQ",
	N_WARNING: "WARNING",
	N_FN:      "FN",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%#x)", uint8(k))
}

// Record is one stab entry after string-table resolution. Text holds the
// "name:code..." string and may be empty.
type Record struct {
	Kind  Kind
	Desc  int
	Value uint64
	Text  string
}

func (r Record) String() string {
	return fmt.Sprintf("%-8s desc=%d value=%#x %q", r.Kind, r.Desc, r.Value, r.Text)
}

// Sym is a non-stab symbol table entry, consumed only to resolve the value of
// a global variable by name.
type Sym struct {
	Name  string
	Value uint64
}

// DecodeSection parses raw .stab section contents against its .stabstr string
// table. Each entry is 12 bytes: a 4-byte string offset, the kind byte, one
// spare byte, a 2-byte descriptor and a 4-byte value. A kind-0 entry carries
// the offset of the next compilation unit's string table in its value field;
// string offsets are relative to the current unit's base.
func DecodeSection(stab, stabstr []byte, order binary.ByteOrder) ([]Record, error) {
	if len(stab)%12 != 0 {
		return nil, fmt.Errorf("stab section size %d is not a multiple of 12", len(stab))
	}
	var recs []Record
	var strBase, nextStrBase uint32
	for off := 0; off < len(stab); off += 12 {
		strOff := order.Uint32(stab[off:])
		kind := Kind(stab[off+4])
		desc := int(int16(order.Uint16(stab[off+6:])))
		value := uint64(order.Uint32(stab[off+8:]))
		if kind == 0 {
			// Unit header: value holds the size of this unit's string table.
			strBase = nextStrBase
			nextStrBase += uint32(value)
			if nextStrBase > uint32(len(stabstr)) {
				return nil, fmt.Errorf("stab string table offset %#x out of range", nextStrBase)
			}
			recs = append(recs, Record{Kind: kind, Desc: desc, Value: value})
			continue
		}
		text, err := getString(stabstr, strBase+strOff)
		if err != nil {
			return nil, err
		}
		recs = append(recs, Record{Kind: kind, Desc: desc, Value: value, Text: text})
	}
	return recs, nil
}

func getString(strtab []byte, off uint32) (string, error) {
	if off >= uint32(len(strtab)) {
		return "", fmt.Errorf("stab string offset %#x beyond string table (%d bytes)", off, len(strtab))
	}
	for end := off; end < uint32(len(strtab)); end++ {
		if strtab[end] == 0 {
			return string(strtab[off:end]), nil
		}
	}
	return "", fmt.Errorf("unterminated stab string at offset %#x", off)
}
