package stabs

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/appsworld/go-stabs/debug"
	"github.com/appsworld/go-stabs/types"
)

// newCppUnit returns a parser inside a compilation unit with int already
// defined as type (0,1).
func newCppUnit(t *testing.T) (*Parser, *debug.Graph) {
	t.Helper()
	p, g := newUnit(t)
	feed(t, p, types.N_LSYM, 0, 0, "int:t(0,1)=r(0,1);-2147483648;2147483647;")
	return p, g
}

// classTag looks up a class tag and fails the test if it is missing or has
// the wrong kind.
func classTag(t *testing.T, g *debug.Graph, name string) debug.Type {
	t.Helper()
	tag := g.FindTaggedType(name, debug.KindClass)
	if tag == nil {
		t.Fatalf("class %s not recorded", name)
	}
	if kind := g.GetKind(tag); kind != debug.KindClass {
		t.Fatalf("tag %s kind = %s, want class", name, kind)
	}
	return tag
}

// onlyVariant returns the single variant of the single member function of a
// class, checking the method name along the way.
func onlyVariant(t *testing.T, g *debug.Graph, class debug.Type, name string) debug.MethodVariant {
	t.Helper()
	methods := g.GetMethods(class)
	if len(methods) != 1 {
		t.Fatalf("got %d methods, want 1", len(methods))
	}
	if got := g.GetMethodName(methods[0]); got != name {
		t.Fatalf("method name %q, want %q", got, name)
	}
	variants := g.GetMethodVariants(methods[0])
	if len(variants) != 1 {
		t.Fatalf("method %s has %d variants, want 1", name, len(variants))
	}
	return variants[0]
}

// paramStrings renders the parameter types of a method variant.
func paramStrings(g *debug.Graph, v debug.MethodVariant) ([]string, bool) {
	args, varargs := g.GetParameterTypes(g.GetVariantType(v))
	strs := make([]string, 0, len(args))
	for _, a := range args {
		strs = append(strs, g.TypeString(a))
	}
	return strs, varargs
}

func TestClassWithStubMethod(t *testing.T) {
	// g++ emits member functions as stubs: the method type carries only
	// the return type, and the argument types must be recovered by
	// rebuilding and demangling the physical name.
	p, g := newCppUnit(t)
	feed(t, p, types.N_LSYM, 0, 0, "A:T(0,2)=s4x:(0,1),0,32;m::(0,3)=##(0,1);:ii;2A.;;")

	class := classTag(t, g, "A")

	fields := g.GetFields(class)
	if len(fields) != 1 {
		t.Fatalf("got %d fields, want 1", len(fields))
	}
	if got := g.GetFieldName(fields[0]); got != "x" {
		t.Errorf("field name %q, want x", got)
	}
	if got := g.TypeString(g.GetFieldType(fields[0])); got != "int" {
		t.Errorf("field type %q, want int", got)
	}

	v := onlyVariant(t, g, class, "m")
	if got := g.GetVariantPhysname(v); got != "m__1Aii" {
		t.Errorf("physical name %q, want m__1Aii", got)
	}
	if got := g.TypeString(g.GetReturnType(g.GetVariantType(v))); got != "int" {
		t.Errorf("return type %q, want int", got)
	}
	params, varargs := paramStrings(g, v)
	if diff := cmp.Diff([]string{"int", "int"}, params); diff != "" {
		t.Errorf("recovered parameters mismatch (-want +got):\n%s", diff)
	}
	if varargs {
		t.Error("recovered method marked varargs")
	}
}

func TestClassOverloadedMethod(t *testing.T) {
	p, g := newCppUnit(t)
	feed(t, p, types.N_LSYM, 0, 0, "O:T(0,2)=s4o::(0,3)=##(0,1);:i;2A.(0,4)=##(0,1);:ii;2A.;;")

	class := classTag(t, g, "O")
	methods := g.GetMethods(class)
	if len(methods) != 1 {
		t.Fatalf("got %d methods, want 1", len(methods))
	}
	variants := g.GetMethodVariants(methods[0])
	if len(variants) != 2 {
		t.Fatalf("got %d variants, want 2", len(variants))
	}

	want := []struct {
		physname string
		params   []string
	}{
		{"o__1Oi", []string{"int"}},
		{"o__1Oii", []string{"int", "int"}},
	}
	for i, w := range want {
		if got := g.GetVariantPhysname(variants[i]); got != w.physname {
			t.Errorf("variant %d physical name %q, want %q", i, got, w.physname)
		}
		params, _ := paramStrings(g, variants[i])
		if diff := cmp.Diff(w.params, params); diff != "" {
			t.Errorf("variant %d parameters mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestClassConstMethodStub(t *testing.T) {
	// A const member function gets a C marker woven into its rebuilt
	// physical name.
	p, g := newCppUnit(t)
	feed(t, p, types.N_LSYM, 0, 0, "K:T(0,2)=s4k::(0,3)=##(0,1);:i;2B.;;")

	v := onlyVariant(t, g, classTag(t, g, "K"), "k")
	if got := g.GetVariantPhysname(v); got != "k__C1Ki" {
		t.Errorf("physical name %q, want k__C1Ki", got)
	}
	params, _ := paramStrings(g, v)
	if diff := cmp.Diff([]string{"int"}, params); diff != "" {
		t.Errorf("parameters mismatch (-want +got):\n%s", diff)
	}
}

func TestClassConstructorStub(t *testing.T) {
	// A constructor shares its name with the class; its rebuilt physical
	// name has no method name prefix.
	p, g := newCppUnit(t)
	feed(t, p, types.N_LSYM, 0, 0, "B:T(0,2)=s4B::(0,3)=##(0,1);:i;2A.;;")

	v := onlyVariant(t, g, classTag(t, g, "B"), "B")
	if got := g.GetVariantPhysname(v); got != "__1Bi" {
		t.Errorf("physical name %q, want __1Bi", got)
	}
	params, _ := paramStrings(g, v)
	if diff := cmp.Diff([]string{"int"}, params); diff != "" {
		t.Errorf("parameters mismatch (-want +got):\n%s", diff)
	}
}

func TestClassDestructorStub(t *testing.T) {
	// A destructor arrives already mangled; it keeps its physical name
	// and gets an empty argument list without demangling.
	p, g := newCppUnit(t)
	feed(t, p, types.N_LSYM, 0, 0, "C:T(0,2)=s4~C::(0,3)=##(0,1);:_$_1C;2A.;;")

	v := onlyVariant(t, g, classTag(t, g, "C"), "~C")
	if got := g.GetVariantPhysname(v); got != "_$_1C" {
		t.Errorf("physical name %q, want _$_1C", got)
	}
	params, varargs := paramStrings(g, v)
	if len(params) != 0 || varargs {
		t.Errorf("destructor params = %v varargs %v, want none", params, varargs)
	}
}

func TestClassStaticMemberFunction(t *testing.T) {
	// Static member functions carry a full physical name instead of bare
	// argument types; a V3 mangled one goes through the V3 demangler.
	p, g := newCppUnit(t)
	feed(t, p, types.N_LSYM, 0, 0, "F:T(0,2)=s4g::(0,3)=##(0,1);:_Z1gi;2A?;;")

	v := onlyVariant(t, g, classTag(t, g, "F"), "g")
	if got := g.GetVariantPhysname(v); got != "_Z1gi" {
		t.Errorf("physical name %q, want _Z1gi", got)
	}
	params, _ := paramStrings(g, v)
	if diff := cmp.Diff([]string{"int32"}, params); diff != "" {
		t.Errorf("parameters mismatch (-want +got):\n%s", diff)
	}
}

func TestClassFullMethodDescriptor(t *testing.T) {
	// The full #domain,ret,args; form needs no stub recovery. A trailing
	// void argument means a fixed argument list; its absence means
	// varargs.
	p, g := newCppUnit(t)
	feed(t, p, types.N_LSYM, 0, 0, "void:t(0,2)=(0,2)")
	feed(t, p, types.N_LSYM, 0, 0,
		"M:T(0,3)=s4h::(0,4)=#(0,3),(0,1),(0,1),(0,2);:h__1Mi;2A.;e::(0,5)=#(0,3),(0,1),(0,1);:e__1Mi;2A.;;")

	class := classTag(t, g, "M")
	methods := g.GetMethods(class)
	if len(methods) != 2 {
		t.Fatalf("got %d methods, want 2", len(methods))
	}

	want := []struct {
		name     string
		physname string
		varargs  bool
	}{
		{"h", "h__1Mi", false},
		{"e", "e__1Mi", true},
	}
	for i, w := range want {
		if got := g.GetMethodName(methods[i]); got != w.name {
			t.Fatalf("method %d name %q, want %q", i, got, w.name)
		}
		variants := g.GetMethodVariants(methods[i])
		if len(variants) != 1 {
			t.Fatalf("method %s has %d variants, want 1", w.name, len(variants))
		}
		if got := g.GetVariantPhysname(variants[0]); got != w.physname {
			t.Errorf("method %s physical name %q, want %q", w.name, got, w.physname)
		}
		params, varargs := paramStrings(g, variants[0])
		if diff := cmp.Diff([]string{"int"}, params); diff != "" {
			t.Errorf("method %s parameters mismatch (-want +got):\n%s", w.name, diff)
		}
		if varargs != w.varargs {
			t.Errorf("method %s varargs = %v, want %v", w.name, varargs, w.varargs)
		}
	}
}

func TestClassBaseAndInheritedVtable(t *testing.T) {
	// A derived class: one public base, the $vf vtable pointer
	// abbreviation, a virtual member and a "~%" tail naming the base
	// whose vtable it reuses.
	p, g := newCppUnit(t)
	feed(t, p, types.N_LSYM, 0, 0, "A:T(0,2)=s4x:(0,1),0,32;;")
	feed(t, p, types.N_LSYM, 0, 0,
		"D:T(0,4)=s8!1,020,(0,2);$vf(0,2):(0,5)=*(0,1),0;f::(0,6)=##(0,1);:i;2A*1;(0,2);;~%(0,2);")

	class := classTag(t, g, "D")

	bases := g.GetBaseclasses(class)
	if len(bases) != 1 {
		t.Fatalf("got %d base classes, want 1", len(bases))
	}
	if got := g.GetTypeName(g.GetBaseclassType(bases[0])); got != "A" {
		t.Errorf("base class %q, want A", got)
	}

	fields := g.GetFields(class)
	if len(fields) != 1 {
		t.Fatalf("got %d fields, want 1", len(fields))
	}
	if got := g.GetFieldName(fields[0]); got != "_vptr$" {
		t.Errorf("vtable pointer field named %q, want _vptr$", got)
	}

	v := onlyVariant(t, g, class, "f")
	if got := g.GetVariantPhysname(v); got != "f__1Di" {
		t.Errorf("physical name %q, want f__1Di", got)
	}
	params, _ := paramStrings(g, v)
	if diff := cmp.Diff([]string{"int"}, params); diff != "" {
		t.Errorf("parameters mismatch (-want +got):\n%s", diff)
	}

	base, own := g.GetVptr(class)
	if own {
		t.Error("derived class claims its own vtable pointer")
	}
	if got := g.GetTypeName(base); got != "A" {
		t.Errorf("vtable pointer base %q, want A", got)
	}
}

func TestClassOwnVptr(t *testing.T) {
	// The "~%" tail naming the class itself means it holds its own
	// vtable pointer.
	p, g := newCppUnit(t)
	feed(t, p, types.N_LSYM, 0, 0,
		"V:T(0,2)=s8$vf(0,2):(0,3)=*(0,1),0;v::(0,4)=##(0,1);:i;2A*1;(0,2);;~%(0,2);")

	class := classTag(t, g, "V")
	base, own := g.GetVptr(class)
	if !own || base != nil {
		t.Fatalf("GetVptr = (%v, %v), want own vptr", base, own)
	}
}

func TestClassStaticDataMember(t *testing.T) {
	// A static data member carries its physical name instead of a bit
	// offset, and its presence makes the aggregate a class.
	p, g := newCppUnit(t)
	feed(t, p, types.N_LSYM, 0, 0, "S:T(0,2)=s4c:/0(0,1):_S_c;;")

	class := classTag(t, g, "S")
	fields := g.GetFields(class)
	if len(fields) != 1 {
		t.Fatalf("got %d fields, want 1", len(fields))
	}
	if got := g.GetFieldName(fields[0]); got != "c" {
		t.Errorf("field name %q, want c", got)
	}
	if got := g.TypeString(g.GetFieldType(fields[0])); got != "int" {
		t.Errorf("field type %q, want int", got)
	}
}

func TestVirtualBasePointerAbbrev(t *testing.T) {
	// $vb synthesizes a virtual base class pointer named after the base.
	p, g := newCppUnit(t)
	feed(t, p, types.N_LSYM, 0, 0, "A:T(0,2)=s4x:(0,1),0,32;;")
	feed(t, p, types.N_LSYM, 0, 0, "W:T(0,3)=s8$vb(0,2):(0,4)=*(0,1),0;y:(0,1),32,32;;")

	tag := g.FindTaggedType("W", debug.KindIllegal)
	if tag == nil {
		t.Fatal("tag W not recorded")
	}
	var names []string
	for _, f := range g.GetFields(tag) {
		names = append(names, g.GetFieldName(f))
	}
	if diff := cmp.Diff([]string{"_vb$A", "y"}, names); diff != "" {
		t.Fatalf("field names mismatch (-want +got):\n%s", diff)
	}
}

func TestFieldVisibilityMarkers(t *testing.T) {
	// /0 and /1 set private and protected visibility; a field with zero
	// offset and zero size was optimized away but is still listed.
	p, g := newCppUnit(t)
	feed(t, p, types.N_LSYM, 0, 0, "P:T(0,2)=s12a:/0(0,1),0,32;b:/1(0,1),32,32;c:(0,1),0,0;;")

	tag := g.FindTaggedType("P", debug.KindStruct)
	if tag == nil {
		t.Fatal("tag P not recorded")
	}
	var names []string
	for _, f := range g.GetFields(tag) {
		names = append(names, g.GetFieldName(f))
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, names); diff != "" {
		t.Fatalf("field names mismatch (-want +got):\n%s", diff)
	}
}
