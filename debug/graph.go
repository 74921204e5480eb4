package debug

import (
	"fmt"
	"io"
	"strings"
)

// node is the concrete type behind every Graph handle.
type node struct {
	kind     TypeKind
	size     uint64
	unsigned bool
	name     string
	target   Type  // pointee, referent, qualified base, named/tagged real type
	slot     *Type // indirect placeholder cell
	index    Type
	lower    int64
	upper    int64
	element  Type
	stringp  bool
	names    []string
	values   []int64
	ret      Type
	domain   Type
	args     []Type
	varargs  bool
	structp  bool
	fields   []Field
	bases    []Baseclass
	methods  []Method
	vptrBase Type
	ownVptr  bool
}

type fieldDef struct {
	name     string
	typ      Type
	bitpos   uint64
	bitsize  uint64
	vis      Visibility
	static   bool
	physname string
}

type baseclassDef struct {
	typ     Type
	bitpos  uint64
	virtual bool
	vis     Visibility
}

type methodDef struct {
	name     string
	variants []MethodVariant
}

type variantDef struct {
	physname  string
	typ       Type
	vis       Visibility
	constp    bool
	volatilep bool
	voffset   uint64
	context   Type
	static    bool
}

// VariableDef is one recorded variable.
type VariableDef struct {
	Name  string
	Type  Type
	Kind  VarKind
	Value uint64
}

// ParameterDef is one recorded function parameter.
type ParameterDef struct {
	Name  string
	Type  Type
	Kind  ParamKind
	Value uint64
}

// LineDef is one recorded source line.
type LineDef struct {
	Line int
	Addr uint64
}

// BlockDef is a lexical block with its variables and nested blocks.
type BlockDef struct {
	Start  uint64
	End    uint64
	Vars   []VariableDef
	Blocks []*BlockDef
}

// FunctionDef is a recorded function and everything scoped inside it.
type FunctionDef struct {
	Name   string
	Type   Type
	Global bool
	Addr   uint64
	End    uint64
	Params []ParameterDef
	Vars   []VariableDef
	Blocks []*BlockDef
	Lines  []LineDef
}

// TypedefDef is a recorded name-to-type binding.
type TypedefDef struct {
	Name string
	Type Type
}

// ConstantDef is a recorded named constant. Exactly one of Int, Float or
// Typed semantics applies, per Kind.
type ConstantDef struct {
	Name  string
	Kind  string // "int", "float" or "typed"
	Int   int64
	Float float64
	Type  Type
	Value uint64
}

// SourceFile is one compilation unit's recorded contents.
type SourceFile struct {
	Name      string
	Included  []string
	Typedefs  []TypedefDef
	Tags      []TypedefDef
	Globals   []VariableDef
	Functions []*FunctionDef
	Constants []ConstantDef
	Commons   []string
}

// Graph is an in-memory Builder. It records everything the parser emits and
// owns the nodes behind every handle it returns.
type Graph struct {
	Files []*SourceFile

	named  map[string]Type
	tagged map[string]Type

	cur    *SourceFile
	fn     *FunctionDef
	blocks []*BlockDef
}

// NewGraph returns an empty Graph ready to be fed by a parser.
func NewGraph() *Graph {
	return &Graph{
		named:  make(map[string]Type),
		tagged: make(map[string]Type),
	}
}

// realType follows indirect and name/tag wrappers down to the defining node.
// The walk is bounded so a malformed cyclic chain cannot hang introspection.
func realType(t Type) *node {
	for i := 0; i < 64; i++ {
		n, ok := t.(*node)
		if !ok || n == nil {
			return nil
		}
		switch n.kind {
		case KindIndirect:
			if n.slot == nil || *n.slot == nil || *n.slot == Type(n) {
				return n
			}
			t = *n.slot
		case KindNamed, KindTagged:
			if n.target == nil {
				return n
			}
			t = n.target
		default:
			return n
		}
	}
	return nil
}

func (g *Graph) MakeVoidType() Type { return &node{kind: KindVoid} }

func (g *Graph) MakeIntType(size int, unsigned bool) Type {
	return &node{kind: KindInt, size: uint64(size), unsigned: unsigned}
}

func (g *Graph) MakeFloatType(size int) Type {
	return &node{kind: KindFloat, size: uint64(size)}
}

func (g *Graph) MakeBoolType(size int) Type {
	return &node{kind: KindBool, size: uint64(size)}
}

func (g *Graph) MakeComplexType(size int) Type {
	return &node{kind: KindComplex, size: uint64(size)}
}

func (g *Graph) MakeEnumType(names []string, values []int64) Type {
	return &node{kind: KindEnum, names: names, values: values}
}

func (g *Graph) MakePointerType(t Type) Type {
	return &node{kind: KindPointer, target: t}
}

func (g *Graph) MakeReferenceType(t Type) Type {
	return &node{kind: KindReference, target: t}
}

func (g *Graph) MakeConstType(t Type) Type {
	return &node{kind: KindConst, target: t}
}

func (g *Graph) MakeVolatileType(t Type) Type {
	return &node{kind: KindVolatile, target: t}
}

func (g *Graph) MakeSetType(t Type, bitstring bool) Type {
	return &node{kind: KindSet, target: t, stringp: bitstring}
}

func (g *Graph) MakeRangeType(index Type, lower, upper int64) Type {
	return &node{kind: KindRange, index: index, lower: lower, upper: upper}
}

func (g *Graph) MakeArrayType(element, index Type, lower, upper int64, stringp bool) Type {
	return &node{kind: KindArray, element: element, index: index, lower: lower, upper: upper, stringp: stringp}
}

func (g *Graph) MakeFunctionType(ret Type, args []Type, varargs bool) Type {
	return &node{kind: KindFunction, ret: ret, args: args, varargs: varargs}
}

func (g *Graph) MakeMethodType(ret Type, domain Type, args []Type, varargs bool) Type {
	return &node{kind: KindMethod, ret: ret, domain: domain, args: args, varargs: varargs}
}

func (g *Graph) MakeOffsetType(base, target Type) Type {
	return &node{kind: KindOffset, domain: base, target: target}
}

func (g *Graph) MakeStructType(structp bool, size uint64, fields []Field) Type {
	kind := KindStruct
	if !structp {
		kind = KindUnion
	}
	return &node{kind: kind, structp: structp, size: size, fields: fields}
}

func (g *Graph) MakeObjectType(structp bool, size uint64, fields []Field, bases []Baseclass,
	methods []Method, vptrBase Type, ownVptr bool) Type {
	kind := KindClass
	if !structp {
		kind = KindUnionClass
	}
	return &node{
		kind: kind, structp: structp, size: size, fields: fields,
		bases: bases, methods: methods, vptrBase: vptrBase, ownVptr: ownVptr,
	}
}

func (g *Graph) MakeField(name string, t Type, bitpos, bitsize uint64, vis Visibility) Field {
	return &fieldDef{name: name, typ: t, bitpos: bitpos, bitsize: bitsize, vis: vis}
}

func (g *Graph) MakeStaticMember(name string, t Type, physname string, vis Visibility) Field {
	return &fieldDef{name: name, typ: t, physname: physname, vis: vis, static: true}
}

func (g *Graph) MakeBaseclass(t Type, bitpos uint64, virtual bool, vis Visibility) Baseclass {
	return &baseclassDef{typ: t, bitpos: bitpos, virtual: virtual, vis: vis}
}

func (g *Graph) MakeMethod(name string, variants []MethodVariant) Method {
	return &methodDef{name: name, variants: variants}
}

func (g *Graph) MakeMethodVariant(physname string, t Type, vis Visibility, constp, volatilep bool,
	voffset uint64, context Type) MethodVariant {
	return &variantDef{
		physname: physname, typ: t, vis: vis, constp: constp, volatilep: volatilep,
		voffset: voffset, context: context,
	}
}

func (g *Graph) MakeStaticMethodVariant(physname string, t Type, vis Visibility,
	constp, volatilep bool) MethodVariant {
	return &variantDef{
		physname: physname, typ: t, vis: vis, constp: constp, volatilep: volatilep,
		static: true,
	}
}

func (g *Graph) NameType(t Type, name string) Type {
	n := &node{kind: KindNamed, name: name, target: t}
	g.named[name] = n
	if g.cur != nil {
		g.cur.Typedefs = append(g.cur.Typedefs, TypedefDef{Name: name, Type: n})
	}
	return n
}

func (g *Graph) TagType(t Type, name string) Type {
	n := &node{kind: KindTagged, name: name, target: t}
	g.tagged[name] = n
	if g.cur != nil {
		g.cur.Tags = append(g.cur.Tags, TypedefDef{Name: name, Type: n})
	}
	return n
}

func (g *Graph) MakeIndirectType(slot *Type, name string) Type {
	return &node{kind: KindIndirect, slot: slot, name: name}
}

func (g *Graph) MakeUndefinedTaggedType(name string, kind TypeKind) Type {
	n := &node{kind: KindTagged, name: name, target: &node{kind: kind}}
	g.tagged[name] = n
	return n
}

func (g *Graph) FindNamedType(name string) Type {
	if t, ok := g.named[name]; ok {
		return t
	}
	return nil
}

func (g *Graph) FindTaggedType(name string, kind TypeKind) Type {
	t, ok := g.tagged[name]
	if !ok {
		return nil
	}
	if kind != KindIllegal {
		if rt := realType(t); rt != nil && rt.kind != KindIllegal && rt.kind != kind {
			return nil
		}
	}
	return t
}

func (g *Graph) RecordTypeSize(t Type, size uint64) {
	if rt := realType(t); rt != nil {
		rt.size = size
	}
}

func (g *Graph) GetKind(t Type) TypeKind {
	rt := realType(t)
	if rt == nil {
		return KindIllegal
	}
	return rt.kind
}

func (g *Graph) GetTypeName(t Type) string {
	for i := 0; i < 64; i++ {
		n, ok := t.(*node)
		if !ok || n == nil {
			return ""
		}
		switch n.kind {
		case KindIndirect:
			if n.slot == nil || *n.slot == nil || *n.slot == Type(n) {
				return n.name
			}
			t = *n.slot
		case KindNamed, KindTagged:
			return n.name
		default:
			return ""
		}
	}
	return ""
}

func (g *Graph) GetFields(t Type) []Field {
	rt := realType(t)
	if rt == nil {
		return nil
	}
	switch rt.kind {
	case KindStruct, KindUnion, KindClass, KindUnionClass:
		return rt.fields
	}
	return nil
}

func (g *Graph) GetFieldType(f Field) Type {
	fd, ok := f.(*fieldDef)
	if !ok || fd == nil {
		return nil
	}
	return fd.typ
}

func (g *Graph) GetReturnType(t Type) Type {
	rt := realType(t)
	if rt == nil {
		return nil
	}
	switch rt.kind {
	case KindFunction, KindMethod:
		return rt.ret
	}
	return nil
}

func (g *Graph) GetParameterTypes(t Type) ([]Type, bool) {
	rt := realType(t)
	if rt == nil {
		return nil, false
	}
	switch rt.kind {
	case KindFunction, KindMethod:
		return rt.args, rt.varargs
	}
	return nil, false
}

// GetFieldName returns the name of a struct, union, or class field.
func (g *Graph) GetFieldName(f Field) string {
	fd, ok := f.(*fieldDef)
	if !ok || fd == nil {
		return ""
	}
	return fd.name
}

// GetMethods returns the member functions of a class type.
func (g *Graph) GetMethods(t Type) []Method {
	rt := realType(t)
	if rt == nil {
		return nil
	}
	switch rt.kind {
	case KindClass, KindUnionClass:
		return rt.methods
	}
	return nil
}

func (g *Graph) GetMethodName(m Method) string {
	md, ok := m.(*methodDef)
	if !ok || md == nil {
		return ""
	}
	return md.name
}

func (g *Graph) GetMethodVariants(m Method) []MethodVariant {
	md, ok := m.(*methodDef)
	if !ok || md == nil {
		return nil
	}
	return md.variants
}

func (g *Graph) GetVariantPhysname(v MethodVariant) string {
	vd, ok := v.(*variantDef)
	if !ok || vd == nil {
		return ""
	}
	return vd.physname
}

func (g *Graph) GetVariantType(v MethodVariant) Type {
	vd, ok := v.(*variantDef)
	if !ok || vd == nil {
		return nil
	}
	return vd.typ
}

// GetBaseclasses returns the direct base classes of a class type.
func (g *Graph) GetBaseclasses(t Type) []Baseclass {
	rt := realType(t)
	if rt == nil {
		return nil
	}
	switch rt.kind {
	case KindClass, KindUnionClass:
		return rt.bases
	}
	return nil
}

func (g *Graph) GetBaseclassType(b Baseclass) Type {
	bd, ok := b.(*baseclassDef)
	if !ok || bd == nil {
		return nil
	}
	return bd.typ
}

// GetVptr reports where the virtual function table pointer of a class
// lives. own is true when the class holds its own vptr; otherwise base
// names the base class it inherits one from, or is nil when the class
// has no vptr at all.
func (g *Graph) GetVptr(t Type) (base Type, own bool) {
	rt := realType(t)
	if rt == nil {
		return nil, false
	}
	switch rt.kind {
	case KindClass, KindUnionClass:
		return rt.vptrBase, rt.ownVptr
	}
	return nil, false
}

func (g *Graph) SetFilename(name string) error {
	f := &SourceFile{Name: name}
	g.Files = append(g.Files, f)
	g.cur = f
	return nil
}

func (g *Graph) StartSource(name string) error {
	if g.cur == nil {
		return fmt.Errorf("source file %q started outside a compilation unit", name)
	}
	g.cur.Included = append(g.cur.Included, name)
	return nil
}

func (g *Graph) StartBlock(addr uint64) error {
	if g.fn == nil {
		return fmt.Errorf("block started at %#x outside a function", addr)
	}
	b := &BlockDef{Start: addr}
	if len(g.blocks) > 0 {
		top := g.blocks[len(g.blocks)-1]
		top.Blocks = append(top.Blocks, b)
	} else {
		g.fn.Blocks = append(g.fn.Blocks, b)
	}
	g.blocks = append(g.blocks, b)
	return nil
}

func (g *Graph) EndBlock(addr uint64) error {
	if len(g.blocks) == 0 {
		return fmt.Errorf("block ended at %#x with no open block", addr)
	}
	g.blocks[len(g.blocks)-1].End = addr
	g.blocks = g.blocks[:len(g.blocks)-1]
	return nil
}

func (g *Graph) StartFunction(name string, t Type, global bool, addr uint64) error {
	if g.cur == nil {
		return fmt.Errorf("function %q started outside a compilation unit", name)
	}
	if g.fn != nil {
		return fmt.Errorf("function %q started inside function %q", name, g.fn.Name)
	}
	fn := &FunctionDef{Name: name, Type: t, Global: global, Addr: addr}
	g.cur.Functions = append(g.cur.Functions, fn)
	g.fn = fn
	return nil
}

func (g *Graph) EndFunction(addr uint64) error {
	if g.fn == nil {
		return fmt.Errorf("function ended at %#x with no open function", addr)
	}
	if len(g.blocks) != 0 {
		return fmt.Errorf("function %q ended with %d open blocks", g.fn.Name, len(g.blocks))
	}
	g.fn.End = addr
	g.fn = nil
	return nil
}

func (g *Graph) RecordLine(line int, addr uint64) error {
	if g.fn == nil {
		return fmt.Errorf("line %d recorded outside a function", line)
	}
	g.fn.Lines = append(g.fn.Lines, LineDef{Line: line, Addr: addr})
	return nil
}

func (g *Graph) StartCommonBlock(name string) error {
	if g.cur == nil {
		return fmt.Errorf("common block %q started outside a compilation unit", name)
	}
	g.cur.Commons = append(g.cur.Commons, name)
	return nil
}

func (g *Graph) EndCommonBlock(name string) error {
	return nil
}

func (g *Graph) RecordVariable(name string, t Type, kind VarKind, value uint64) error {
	v := VariableDef{Name: name, Type: t, Kind: kind, Value: value}
	switch {
	case len(g.blocks) > 0:
		b := g.blocks[len(g.blocks)-1]
		b.Vars = append(b.Vars, v)
	case g.fn != nil:
		g.fn.Vars = append(g.fn.Vars, v)
	case g.cur != nil:
		g.cur.Globals = append(g.cur.Globals, v)
	default:
		return fmt.Errorf("variable %q recorded outside a compilation unit", name)
	}
	return nil
}

func (g *Graph) RecordParameter(name string, t Type, kind ParamKind, value uint64) error {
	if g.fn == nil {
		return fmt.Errorf("parameter %q recorded outside a function", name)
	}
	g.fn.Params = append(g.fn.Params, ParameterDef{Name: name, Type: t, Kind: kind, Value: value})
	return nil
}

func (g *Graph) RecordIntConst(name string, value int64) error {
	if g.cur == nil {
		return fmt.Errorf("constant %q recorded outside a compilation unit", name)
	}
	g.cur.Constants = append(g.cur.Constants, ConstantDef{Name: name, Kind: "int", Int: value})
	return nil
}

func (g *Graph) RecordFloatConst(name string, value float64) error {
	if g.cur == nil {
		return fmt.Errorf("constant %q recorded outside a compilation unit", name)
	}
	g.cur.Constants = append(g.cur.Constants, ConstantDef{Name: name, Kind: "float", Float: value})
	return nil
}

func (g *Graph) RecordTypedConst(name string, t Type, value uint64) error {
	if g.cur == nil {
		return fmt.Errorf("constant %q recorded outside a compilation unit", name)
	}
	g.cur.Constants = append(g.cur.Constants, ConstantDef{Name: name, Kind: "typed", Type: t, Value: value})
	return nil
}

func (g *Graph) RecordLabel(name string, t Type, addr uint64) error {
	return nil
}

// TypeString renders a handle as a C-flavoured one-liner for dumps and tests.
func (g *Graph) TypeString(t Type) string {
	return g.typeString(t, 0)
}

func (g *Graph) typeString(t Type, depth int) string {
	if depth > 8 {
		return "..."
	}
	n, ok := t.(*node)
	if !ok || n == nil {
		return "<nil>"
	}
	switch n.kind {
	case KindIndirect:
		if n.slot != nil && *n.slot != nil && *n.slot != Type(n) {
			return g.typeString(*n.slot, depth+1)
		}
		if n.name != "" {
			return n.name
		}
		return "<unresolved>"
	case KindNamed:
		return n.name
	case KindTagged:
		rt := realType(n)
		prefix := "struct"
		if rt != nil {
			switch rt.kind {
			case KindUnion, KindUnionClass:
				prefix = "union"
			case KindEnum:
				prefix = "enum"
			case KindClass:
				prefix = "class"
			}
		}
		return prefix + " " + n.name
	case KindVoid:
		return "void"
	case KindInt:
		if n.unsigned {
			return fmt.Sprintf("uint%d", n.size*8)
		}
		return fmt.Sprintf("int%d", n.size*8)
	case KindFloat:
		return fmt.Sprintf("float%d", n.size*8)
	case KindBool:
		return fmt.Sprintf("bool%d", n.size*8)
	case KindComplex:
		return fmt.Sprintf("complex%d", n.size*8)
	case KindPointer:
		return g.typeString(n.target, depth+1) + "*"
	case KindReference:
		return g.typeString(n.target, depth+1) + "&"
	case KindConst:
		return "const " + g.typeString(n.target, depth+1)
	case KindVolatile:
		return "volatile " + g.typeString(n.target, depth+1)
	case KindSet:
		return "set of " + g.typeString(n.target, depth+1)
	case KindRange:
		return fmt.Sprintf("range %d..%d of %s", n.lower, n.upper, g.typeString(n.index, depth+1))
	case KindArray:
		return fmt.Sprintf("%s[%d..%d]", g.typeString(n.element, depth+1), n.lower, n.upper)
	case KindEnum:
		return fmt.Sprintf("enum{%d}", len(n.names))
	case KindStruct:
		return fmt.Sprintf("struct{%d}", len(n.fields))
	case KindUnion:
		return fmt.Sprintf("union{%d}", len(n.fields))
	case KindClass, KindUnionClass:
		return fmt.Sprintf("class{%d fields, %d methods}", len(n.fields), len(n.methods))
	case KindOffset:
		return fmt.Sprintf("%s %s::*", g.typeString(n.target, depth+1), g.typeString(n.domain, depth+1))
	case KindFunction, KindMethod:
		var b strings.Builder
		b.WriteString(g.typeString(n.ret, depth+1))
		b.WriteString(" (")
		if n.kind == KindMethod && n.domain != nil {
			b.WriteString(g.typeString(n.domain, depth+1))
			b.WriteString("::")
		}
		b.WriteString("*)(")
		for i, a := range n.args {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(g.typeString(a, depth+1))
		}
		if n.varargs {
			if len(n.args) > 0 {
				b.WriteString(", ")
			}
			b.WriteString("...")
		}
		b.WriteString(")")
		return b.String()
	}
	return n.kind.String()
}

// Dump writes a human-readable listing of everything the graph recorded.
func (g *Graph) Dump(w io.Writer) {
	for _, f := range g.Files {
		fmt.Fprintf(w, "file %s\n", f.Name)
		for _, inc := range f.Included {
			fmt.Fprintf(w, "  source %s\n", inc)
		}
		for _, td := range f.Typedefs {
			n, _ := td.Type.(*node)
			if n != nil {
				fmt.Fprintf(w, "  typedef %s = %s\n", td.Name, g.typeString(n.target, 0))
			}
		}
		for _, tag := range f.Tags {
			fmt.Fprintf(w, "  tag %s\n", g.typeString(tag.Type, 0))
			for _, fld := range g.GetFields(tag.Type) {
				fmt.Fprintf(w, "    field %s %s\n",
					g.TypeString(g.GetFieldType(fld)), g.GetFieldName(fld))
			}
			for _, m := range g.GetMethods(tag.Type) {
				name := g.GetMethodName(m)
				for _, v := range g.GetMethodVariants(m) {
					fmt.Fprintf(w, "    method %s %s = %s\n",
						g.TypeString(g.GetVariantType(v)), name, g.GetVariantPhysname(v))
				}
			}
		}
		for _, c := range f.Constants {
			switch c.Kind {
			case "int":
				fmt.Fprintf(w, "  const %s = %d\n", c.Name, c.Int)
			case "float":
				fmt.Fprintf(w, "  const %s = %g\n", c.Name, c.Float)
			default:
				fmt.Fprintf(w, "  const %s %s = %#x\n", c.Name, g.TypeString(c.Type), c.Value)
			}
		}
		for _, v := range f.Globals {
			fmt.Fprintf(w, "  %s %s %s = %#x\n", v.Kind, g.TypeString(v.Type), v.Name, v.Value)
		}
		for _, fn := range f.Functions {
			linkage := "static"
			if fn.Global {
				linkage = "global"
			}
			fmt.Fprintf(w, "  %s func %s %s [%#x, %#x)\n",
				linkage, g.TypeString(fn.Type), fn.Name, fn.Addr, fn.End)
			for _, p := range fn.Params {
				fmt.Fprintf(w, "    param %s %s (%s) = %#x\n",
					g.TypeString(p.Type), p.Name, p.Kind, p.Value)
			}
			for _, v := range fn.Vars {
				fmt.Fprintf(w, "    %s %s %s = %#x\n", v.Kind, g.TypeString(v.Type), v.Name, v.Value)
			}
			for _, b := range fn.Blocks {
				g.dumpBlock(w, b, "    ")
			}
			for _, l := range fn.Lines {
				fmt.Fprintf(w, "    line %d @ %#x\n", l.Line, l.Addr)
			}
		}
	}
}

func (g *Graph) dumpBlock(w io.Writer, b *BlockDef, indent string) {
	fmt.Fprintf(w, "%sblock [%#x, %#x)\n", indent, b.Start, b.End)
	for _, v := range b.Vars {
		fmt.Fprintf(w, "%s  %s %s %s = %#x\n", indent, v.Kind, g.TypeString(v.Type), v.Name, v.Value)
	}
	for _, nested := range b.Blocks {
		g.dumpBlock(w, nested, indent+"  ")
	}
}
