package stabs

import (
	"strings"
	"testing"

	"github.com/appsworld/go-stabs/debug"
	"github.com/appsworld/go-stabs/types"
)

// feed pushes one stab record through a parser, failing the test on error.
func feed(t *testing.T, p *Parser, kind types.Kind, desc int, value uint64, text string) {
	t.Helper()
	if err := p.Parse(types.Record{Kind: kind, Desc: desc, Value: value, Text: text}); err != nil {
		t.Fatalf("Parse(%s %q) failed: %v", kind, text, err)
	}
}

// newUnit returns a parser already inside a compilation unit named test.c.
func newUnit(t *testing.T, cfg ...Config) (*Parser, *debug.Graph) {
	t.Helper()
	g := debug.NewGraph()
	p := New(g, cfg...)
	feed(t, p, types.N_SO, 0, 0, "test.c")
	return p, g
}

func TestRangeHeuristics(t *testing.T) {
	cases := []struct {
		name string
		stab string
		want string
	}{
		{name: "SelfChar", stab: "a:(0,1)=r(0,1);0;127;", want: "int8"},
		{name: "UnsignedChar", stab: "b:(0,2)=r(0,2);0;255;", want: "uint8"},
		{name: "SignedChar", stab: "c:(0,3)=r(0,3);-128;127;", want: "int8"},
		{name: "Int", stab: "d:(0,4)=r(0,4);-2147483648;2147483647;", want: "int32"},
		{name: "Short", stab: "e:(0,5)=r(0,5);-32768;32767;", want: "int16"},
		{name: "UnsignedInt", stab: "f:(0,6)=r(0,6);0;-1;", want: "uint32"},
		{name: "UnsignedIntOctal", stab: "g:(0,7)=r(0,7);0;037777777777;", want: "uint32"},
		// 2^64-1 reads back as -1, which without a typedef name saying
		// otherwise means plain unsigned int.
		{name: "UnsignedMinusOneOctal", stab: "h:(0,8)=r(0,8);0;01777777777777777777777;", want: "uint32"},
		{name: "LongLongOctal", stab: "i:(0,9)=r(0,9);01000000000000000000000;0777777777777777777777;", want: "int64"},
		{name: "Float", stab: "j:(0,10)=r(0,10);4;0;", want: "float32"},
		{name: "Double", stab: "k:(0,11)=r(0,11);8;0;", want: "float64"},
		{name: "Void", stab: "l:(0,12)=r(0,12);0;0;", want: "void"},
	}

	for _, tc := range cases {
		p, g := newUnit(t)
		feed(t, p, types.N_LSYM, 0, 0, tc.stab)

		globals := g.Files[0].Globals
		if len(globals) != 1 {
			t.Fatalf("%s: got %d variables, want 1", tc.name, len(globals))
		}
		if got := g.TypeString(globals[0].Type); got != tc.want {
			t.Errorf("%s: %q decoded to %s, want %s", tc.name, tc.stab, got, tc.want)
		}
	}
}

func TestRangeLongLongByName(t *testing.T) {
	// gcc with plain -gstabs emits 0;-1; bounds for long long; only the
	// typedef name says it is 8 bytes wide.
	p, g := newUnit(t)
	feed(t, p, types.N_LSYM, 0, 0, "long long int:t(0,1)=r(0,1);0;-1;")
	feed(t, p, types.N_LSYM, 0, 0, "x:(0,1)")

	got := g.TypeString(g.Files[0].Globals[0].Type)
	if got != "long long int" {
		t.Fatalf("variable type = %s, want the long long typedef name", got)
	}
	tds := g.Files[0].Typedefs
	if len(tds) != 1 || g.GetKind(tds[0].Type) != debug.KindInt {
		t.Fatalf("typedef not recorded as an int type")
	}
}

func TestRangeOverActualType(t *testing.T) {
	p, g := newUnit(t)
	feed(t, p, types.N_LSYM, 0, 0, "idx:t(0,1)=r(0,1);-2147483648;2147483647;")
	feed(t, p, types.N_LSYM, 0, 0, "x:(0,2)=r(0,1);0;100;")

	got := g.TypeString(g.Files[0].Globals[0].Type)
	if got != "range 0..100 of idx" {
		t.Fatalf("subrange decoded to %q", got)
	}
}

func TestXcoffBuiltins(t *testing.T) {
	p, g := newUnit(t)
	feed(t, p, types.N_LSYM, 0, 0, "x:-1")
	feed(t, p, types.N_LSYM, 0, 0, "y:-14")
	feed(t, p, types.N_LSYM, 0, 0, "z:-32")

	want := []string{"int", "long double", "unsigned long long"}
	globals := g.Files[0].Globals
	if len(globals) != len(want) {
		t.Fatalf("got %d variables, want %d", len(globals), len(want))
	}
	for i, w := range want {
		if got := g.TypeString(globals[i].Type); got != w {
			t.Errorf("builtin %s: type %s, want %s", globals[i].Name, got, w)
		}
	}

	err := p.Parse(types.Record{Kind: types.N_LSYM, Text: "w:-40"})
	if err == nil {
		t.Fatal("unknown XCOFF builtin -40 did not fail")
	}
}

func TestPointerAndFunction(t *testing.T) {
	p, g := newUnit(t)
	feed(t, p, types.N_LSYM, 0, 0, "int:t(0,1)=r(0,1);-2147483648;2147483647;")
	feed(t, p, types.N_LSYM, 0, 0, "p:(0,2)=*(0,1)")
	feed(t, p, types.N_LSYM, 0, 0, "f:(0,3)=f(0,1)")

	globals := g.Files[0].Globals
	if got := g.TypeString(globals[0].Type); got != "int*" {
		t.Errorf("pointer decoded to %q, want int*", got)
	}
	if kind := g.GetKind(globals[1].Type); kind != debug.KindFunction {
		t.Errorf("function decoded to kind %s", kind)
	}
	if ret := g.GetReturnType(globals[1].Type); g.TypeString(ret) != "int" {
		t.Errorf("function return type %q, want int", g.TypeString(ret))
	}
	if args, _ := g.GetParameterTypes(globals[1].Type); args != nil {
		t.Errorf("plain f descriptor should leave the argument list unknown")
	}
}

func TestEnum(t *testing.T) {
	p, g := newUnit(t)
	feed(t, p, types.N_LSYM, 0, 0, "color:T(0,1)=ered:0,green:1,blue:5,;")

	tags := g.Files[0].Tags
	if len(tags) != 1 || tags[0].Name != "color" {
		t.Fatalf("enum tag not recorded: %+v", tags)
	}
	if kind := g.GetKind(tags[0].Type); kind != debug.KindEnum {
		t.Fatalf("tag kind = %s, want enum", kind)
	}
}

func TestStructWithFields(t *testing.T) {
	p, g := newUnit(t)
	feed(t, p, types.N_LSYM, 0, 0, "int:t(0,1)=r(0,1);-2147483648;2147483647;")
	feed(t, p, types.N_LSYM, 0, 0, "pair:T(0,2)=s8x:(0,1),0,32;y:(0,1),32,32;;")

	tags := g.Files[0].Tags
	if len(tags) != 1 {
		t.Fatalf("got %d tags, want 1", len(tags))
	}
	if kind := g.GetKind(tags[0].Type); kind != debug.KindStruct {
		t.Fatalf("tag kind = %s, want struct", kind)
	}
	fields := g.GetFields(tags[0].Type)
	if len(fields) != 2 {
		t.Fatalf("got %d fields, want 2", len(fields))
	}
	for i, f := range fields {
		if got := g.TypeString(g.GetFieldType(f)); got != "int" {
			t.Errorf("field %d type %q, want int", i, got)
		}
	}
}

func TestForwardTagReference(t *testing.T) {
	p, g := newUnit(t)
	feed(t, p, types.N_LSYM, 0, 0, "p:t(0,1)=*(0,2)=xsnode:")
	feed(t, p, types.N_LSYM, 0, 0, "node:T(0,3)=s4v:(0,4)=r(0,4);-2147483648;2147483647;,0,32;;")

	td := g.Files[0].Typedefs[0]
	if got := g.TypeString(td.Type); got != "p" {
		t.Fatalf("typedef name %q, want p", got)
	}
	// The indirect slot behind the cross reference must now resolve to
	// the defined struct.
	if len(p.tags) != 0 {
		t.Fatalf("tag worklist not drained: %d entries left", len(p.tags))
	}
	fields := g.GetFields(g.FindTaggedType("node", debug.KindStruct))
	if len(fields) != 1 {
		t.Fatalf("struct node has %d fields, want 1", len(fields))
	}
}

func TestUndefinedTagMaterialized(t *testing.T) {
	p, g := newUnit(t)
	feed(t, p, types.N_LSYM, 0, 0, "p:t(0,1)=*(0,2)=xsorphan:")
	if err := p.Close(true); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	tagged := g.FindTaggedType("orphan", debug.KindIllegal)
	if tagged == nil {
		t.Fatal("undefined tag was not materialized")
	}
	if kind := g.GetKind(tagged); kind != debug.KindStruct {
		t.Fatalf("undefined tag kind = %s, want struct", kind)
	}
}

func TestArrayType(t *testing.T) {
	p, g := newUnit(t)
	feed(t, p, types.N_LSYM, 0, 0, "int:t(0,1)=r(0,1);-2147483648;2147483647;")
	feed(t, p, types.N_LSYM, 0, 0, "a:(0,2)=ar(0,3)=r(0,3);0;-1;;0;9;(0,1)")

	got := g.TypeString(g.Files[0].Globals[0].Type)
	if got != "int[0..9]" {
		t.Fatalf("array decoded to %q, want int[0..9]", got)
	}
}

func TestSunBuiltins(t *testing.T) {
	p, g := newUnit(t)
	feed(t, p, types.N_LSYM, 0, 0, "x:(0,1)=bs4;0;32;")
	feed(t, p, types.N_LSYM, 0, 0, "y:(0,2)=bu2;0;16;")
	feed(t, p, types.N_LSYM, 0, 0, "z:(0,3)=R3;16;")

	globals := g.Files[0].Globals
	wants := []string{"int32", "uint16", "complex128"}
	for i, w := range wants {
		if got := g.TypeString(globals[i].Type); got != w {
			t.Errorf("%s: decoded to %q, want %q", globals[i].Name, got, w)
		}
	}
}

func TestBadStabs(t *testing.T) {
	cases := []string{
		"x:(0,1",                // unterminated type number
		"x:(0,1)=r(0,1);0;127",  // missing final semicolon
		"x:(0,1)=r(0,1);0;126;", // self subrange matching no heuristic
		"x:",                    // colon with nothing after it
	}
	for _, stab := range cases {
		p, _ := newUnit(t)
		if err := p.Parse(types.Record{Kind: types.N_LSYM, Text: stab}); err == nil {
			t.Errorf("malformed stab %q did not fail", stab)
		} else if !strings.Contains(err.Error(), "bad stab") {
			t.Errorf("malformed stab %q failed with %v, want a bad stab error", stab, err)
		}
	}
}
