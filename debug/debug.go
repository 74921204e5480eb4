// Package debug defines the sink that receives the type and scope graph
// produced by the stabs parser, plus an in-memory implementation of it.
//
// The parser never looks inside a Type; it only stores, compares and forwards
// handles. A handle may be an indirect placeholder created before the type it
// names has been defined: the placeholder aliases a writable slot, and filling
// that slot once makes every holder of the placeholder observe the real type.
package debug

// Type is an opaque type handle. A nil Type means "no type".
type Type any

// Field is an opaque struct/union field or static data member.
type Field any

// Baseclass is an opaque C++ base class entry.
type Baseclass any

// Method is an opaque named group of member function variants.
type Method any

// MethodVariant is one overload of a member function.
type MethodVariant any

// TypeKind classifies a type handle for introspection and tag lookup.
type TypeKind int

const (
	KindIllegal TypeKind = iota
	KindIndirect
	KindVoid
	KindInt
	KindFloat
	KindComplex
	KindBool
	KindStruct
	KindUnion
	KindClass
	KindUnionClass
	KindEnum
	KindPointer
	KindReference
	KindFunction
	KindMethod
	KindRange
	KindArray
	KindSet
	KindOffset
	KindConst
	KindVolatile
	KindNamed
	KindTagged
)

var typeKindNames = [...]string{
	KindIllegal:    "illegal",
	KindIndirect:   "indirect",
	KindVoid:       "void",
	KindInt:        "int",
	KindFloat:      "float",
	KindComplex:    "complex",
	KindBool:       "bool",
	KindStruct:     "struct",
	KindUnion:      "union",
	KindClass:      "class",
	KindUnionClass: "union class",
	KindEnum:       "enum",
	KindPointer:    "pointer",
	KindReference:  "reference",
	KindFunction:   "function",
	KindMethod:     "method",
	KindRange:      "range",
	KindArray:      "array",
	KindSet:        "set",
	KindOffset:     "offset",
	KindConst:      "const",
	KindVolatile:   "volatile",
	KindNamed:      "named",
	KindTagged:     "tagged",
}

func (k TypeKind) String() string {
	if k >= 0 && int(k) < len(typeKindNames) {
		return typeKindNames[k]
	}
	return "unknown"
}

// Visibility of a field, base class or member function.
type Visibility int

const (
	VisPublic Visibility = iota
	VisPrivate
	VisProtected
	VisIgnore
)

// VarKind classifies a recorded variable.
type VarKind int

const (
	VarIllegal VarKind = iota
	VarGlobal
	VarStatic
	VarLocalStatic
	VarLocal
	VarRegister
)

var varKindNames = [...]string{
	VarIllegal:     "illegal",
	VarGlobal:      "global",
	VarStatic:      "static",
	VarLocalStatic: "local static",
	VarLocal:       "local",
	VarRegister:    "register",
}

func (k VarKind) String() string {
	if k >= 0 && int(k) < len(varKindNames) {
		return varKindNames[k]
	}
	return "unknown"
}

// ParamKind classifies a recorded function parameter.
type ParamKind int

const (
	ParamIllegal ParamKind = iota
	ParamStack
	ParamRegister
	ParamReference
	ParamReferenceRegister
)

var paramKindNames = [...]string{
	ParamIllegal:           "illegal",
	ParamStack:             "stack",
	ParamRegister:          "register",
	ParamReference:         "reference",
	ParamReferenceRegister: "register reference",
}

func (k ParamKind) String() string {
	if k >= 0 && int(k) < len(paramKindNames) {
		return paramKindNames[k]
	}
	return "unknown"
}

// Builder receives the structured output of a parse. Type, field and method
// constructors are infallible; scope and flow events may fail, and a failure
// aborts the parse that triggered it.
//
// MakeFunctionType and MakeMethodType distinguish a nil argument slice (the
// parameter list is unknown, as in a member function stub) from an empty one
// (the function takes no arguments).
type Builder interface {
	// Type constructors.
	MakeVoidType() Type
	MakeIntType(size int, unsigned bool) Type
	MakeFloatType(size int) Type
	MakeBoolType(size int) Type
	MakeComplexType(size int) Type
	MakeEnumType(names []string, values []int64) Type
	MakePointerType(t Type) Type
	MakeReferenceType(t Type) Type
	MakeConstType(t Type) Type
	MakeVolatileType(t Type) Type
	MakeSetType(t Type, bitstring bool) Type
	MakeRangeType(index Type, lower, upper int64) Type
	MakeArrayType(element, index Type, lower, upper int64, stringp bool) Type
	MakeFunctionType(ret Type, args []Type, varargs bool) Type
	MakeMethodType(ret Type, domain Type, args []Type, varargs bool) Type
	MakeOffsetType(base, target Type) Type
	MakeStructType(structp bool, size uint64, fields []Field) Type
	MakeObjectType(structp bool, size uint64, fields []Field, bases []Baseclass,
		methods []Method, vptrBase Type, ownVptr bool) Type

	// Aggregate member constructors.
	MakeField(name string, t Type, bitpos, bitsize uint64, vis Visibility) Field
	MakeStaticMember(name string, t Type, physname string, vis Visibility) Field
	MakeBaseclass(t Type, bitpos uint64, virtual bool, vis Visibility) Baseclass
	MakeMethod(name string, variants []MethodVariant) Method
	MakeMethodVariant(physname string, t Type, vis Visibility, constp, volatilep bool,
		voffset uint64, context Type) MethodVariant
	MakeStaticMethodVariant(physname string, t Type, vis Visibility,
		constp, volatilep bool) MethodVariant

	// Naming, tagging and forward references.
	NameType(t Type, name string) Type
	TagType(t Type, name string) Type
	MakeIndirectType(slot *Type, name string) Type
	MakeUndefinedTaggedType(name string, kind TypeKind) Type
	FindNamedType(name string) Type
	FindTaggedType(name string, kind TypeKind) Type
	RecordTypeSize(t Type, size uint64)

	// Introspection.
	GetKind(t Type) TypeKind
	GetTypeName(t Type) string
	GetFields(t Type) []Field
	GetFieldType(f Field) Type
	GetReturnType(t Type) Type
	GetParameterTypes(t Type) (args []Type, varargs bool)

	// Scope and flow events.
	SetFilename(name string) error
	StartSource(name string) error
	StartBlock(addr uint64) error
	EndBlock(addr uint64) error
	StartFunction(name string, t Type, global bool, addr uint64) error
	EndFunction(addr uint64) error
	RecordLine(line int, addr uint64) error
	StartCommonBlock(name string) error
	EndCommonBlock(name string) error
	RecordVariable(name string, t Type, kind VarKind, value uint64) error
	RecordParameter(name string, t Type, kind ParamKind, value uint64) error
	RecordIntConst(name string, value int64) error
	RecordFloatConst(name string, value float64) error
	RecordTypedConst(name string, t Type, value uint64) error
	RecordLabel(name string, t Type, addr uint64) error
}
