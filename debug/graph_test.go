package debug

import (
	"bytes"
	"strings"
	"testing"
)

func TestScopeErrors(t *testing.T) {
	g := NewGraph()

	if err := g.StartBlock(0x10); err == nil {
		t.Error("StartBlock outside a function did not fail")
	}
	if err := g.EndBlock(0x10); err == nil {
		t.Error("EndBlock with no open block did not fail")
	}
	if err := g.StartFunction("f", nil, true, 0); err == nil {
		t.Error("StartFunction outside a compilation unit did not fail")
	}
	if err := g.RecordVariable("x", nil, VarLocal, 0); err == nil {
		t.Error("RecordVariable outside a compilation unit did not fail")
	}

	if err := g.SetFilename("a.c"); err != nil {
		t.Fatalf("SetFilename: %v", err)
	}
	if err := g.StartFunction("f", nil, true, 0x100); err != nil {
		t.Fatalf("StartFunction: %v", err)
	}
	if err := g.StartFunction("g", nil, true, 0x200); err == nil {
		t.Error("nested StartFunction did not fail")
	}
	if err := g.StartBlock(0x110); err != nil {
		t.Fatalf("StartBlock: %v", err)
	}
	if err := g.EndFunction(0x200); err == nil {
		t.Error("EndFunction with an open block did not fail")
	}
	if err := g.EndBlock(0x120); err != nil {
		t.Fatalf("EndBlock: %v", err)
	}
	if err := g.EndFunction(0x200); err != nil {
		t.Fatalf("EndFunction: %v", err)
	}
}

func TestNestedBlocks(t *testing.T) {
	g := NewGraph()
	g.SetFilename("a.c")
	g.StartFunction("f", nil, true, 0x100)
	g.StartBlock(0x110)
	g.StartBlock(0x120)
	g.RecordVariable("inner", g.MakeIntType(4, false), VarLocal, 8)
	g.EndBlock(0x130)
	g.RecordVariable("outer", g.MakeIntType(4, false), VarLocal, 4)
	g.EndBlock(0x140)
	g.EndFunction(0x200)

	fn := g.Files[0].Functions[0]
	if len(fn.Blocks) != 1 {
		t.Fatalf("got %d top blocks, want 1", len(fn.Blocks))
	}
	top := fn.Blocks[0]
	if len(top.Blocks) != 1 || len(top.Blocks[0].Vars) != 1 || top.Blocks[0].Vars[0].Name != "inner" {
		t.Fatalf("nested block wrong: %+v", top.Blocks)
	}
	if len(top.Vars) != 1 || top.Vars[0].Name != "outer" {
		t.Fatalf("outer block vars wrong: %+v", top.Vars)
	}
}

func TestIndirectResolution(t *testing.T) {
	g := NewGraph()

	var slot Type
	ind := g.MakeIndirectType(&slot, "node")
	ptr := g.MakePointerType(ind)

	if got := g.TypeString(ptr); got != "node*" {
		t.Fatalf("unresolved indirect = %q, want node*", got)
	}
	if got := g.GetKind(ind); got != KindIndirect {
		t.Fatalf("unresolved kind = %v, want indirect", got)
	}

	slot = g.TagType(g.MakeStructType(true, 8, nil), "node")

	if got := g.TypeString(ptr); got != "struct node*" {
		t.Fatalf("resolved indirect = %q, want struct node*", got)
	}
	if got := g.GetKind(ind); got != KindStruct {
		t.Fatalf("resolved kind = %v, want struct", got)
	}
}

func TestFindTaggedTypeKindFilter(t *testing.T) {
	g := NewGraph()
	g.TagType(g.MakeStructType(true, 4, nil), "s")

	if g.FindTaggedType("s", KindStruct) == nil {
		t.Error("struct tag not found as struct")
	}
	if g.FindTaggedType("s", KindIllegal) == nil {
		t.Error("struct tag not found with the wildcard kind")
	}
	if g.FindTaggedType("s", KindUnion) != nil {
		t.Error("struct tag found as union")
	}
	if g.FindTaggedType("missing", KindStruct) != nil {
		t.Error("undefined tag found")
	}
}

func TestStructIntrospection(t *testing.T) {
	g := NewGraph()
	ft := g.MakeIntType(4, false)
	st := g.MakeStructType(true, 8, []Field{
		g.MakeField("a", ft, 0, 32, VisPublic),
		g.MakeField("b", ft, 32, 32, VisPublic),
	})
	named := g.NameType(st, "pair")

	fields := g.GetFields(named)
	if len(fields) != 2 {
		t.Fatalf("got %d fields, want 2", len(fields))
	}
	if g.GetFieldType(fields[0]) != ft {
		t.Error("field type does not round-trip")
	}
	if got := g.GetTypeName(named); got != "pair" {
		t.Errorf("type name = %q, want pair", got)
	}
}

func TestFunctionIntrospection(t *testing.T) {
	g := NewGraph()
	ret := g.MakeIntType(4, false)
	arg := g.MakeFloatType(8)
	fn := g.MakeFunctionType(ret, []Type{arg}, true)

	if g.GetReturnType(fn) != ret {
		t.Error("return type does not round-trip")
	}
	args, varargs := g.GetParameterTypes(fn)
	if len(args) != 1 || args[0] != arg || !varargs {
		t.Errorf("parameters = %v varargs=%v", args, varargs)
	}
}

func TestDump(t *testing.T) {
	g := NewGraph()
	g.SetFilename("main.c")
	g.NameType(g.MakeIntType(4, false), "int")
	g.RecordIntConst("answer", 42)
	g.RecordVariable("x", g.FindNamedType("int"), VarGlobal, 0x2000)
	g.StartFunction("main", g.MakeFunctionType(g.FindNamedType("int"), nil, false), true, 0x100)
	g.RecordLine(3, 0x104)
	g.EndFunction(0x180)

	var buf bytes.Buffer
	g.Dump(&buf)
	out := buf.String()
	for _, want := range []string{"file main.c", "typedef int", "const answer = 42", "global int x", "global func", "line 3"} {
		if !strings.Contains(out, want) {
			t.Errorf("dump is missing %q:\n%s", want, out)
		}
	}
}
