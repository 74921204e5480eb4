package stabs

import (
	"fmt"
	"strings"

	itdemangle "github.com/ianlancetaylor/demangle"

	"github.com/appsworld/go-stabs/debug"
	"github.com/appsworld/go-stabs/internal/mangled"
)

// demangleArgtypes recovers the argument types of a method from its physical
// name. physnameLen, when nonzero, is the length of the function-name prefix
// rebuilt by the struct parser; a zero length makes the demangler hunt for
// the "__" separator itself. A nil slice means the name carried no argument
// information and the method gets an unknown parameter list.
func (p *Parser) demangleArgtypes(physname string, physnameLen int) ([]debug.Type, bool, error) {
	if strings.HasPrefix(physname, "_Z") {
		return p.demangleV3Argtypes(physname)
	}

	d := &mangled.Demangler{
		Builder:    p.b,
		FindTagged: p.findTaggedType,
		Diagf:      p.diagf,
	}
	return d.ArgTypes(physname, physnameLen)
}

// demangleV3Argtypes handles names mangled with the g++ V3 ABI. Such names
// appear in stabs only for static methods, where g++ emits the physical name
// with no separate argument encoding.
func (p *Parser) demangleV3Argtypes(physname string) ([]debug.Type, bool, error) {
	ast, err := itdemangle.ToAST(physname)
	if err != nil {
		return nil, false, fmt.Errorf("bad mangled name %q: %v", physname, err)
	}

	typed, ok := ast.(*itdemangle.Typed)
	if !ok {
		return nil, false, fmt.Errorf("demangled name %q is not a function", physname)
	}
	fnAST := typed.Type
	if mwq, ok := fnAST.(*itdemangle.MethodWithQualifiers); ok {
		fnAST = mwq.Method
	}
	fn, ok := fnAST.(*itdemangle.FunctionType)
	if !ok {
		return nil, false, fmt.Errorf("demangled name %q is not a function", physname)
	}

	return p.v3Arglist(fn.Args)
}

// v3Arglist converts the argument ASTs of a demangled function type. A sole
// "void" argument means an empty parameter list.
func (p *Parser) v3Arglist(asts []itdemangle.AST) ([]debug.Type, bool, error) {
	args := []debug.Type{}
	varargs := false

	if len(asts) == 1 {
		if bt, ok := asts[0].(*itdemangle.BuiltinType); ok && bt.Name == "void" {
			return args, false, nil
		}
	}

	for _, a := range asts {
		t, va, err := p.v3Arg(a, nil)
		if err != nil {
			return nil, false, err
		}
		if va {
			varargs = true
			continue
		}
		args = append(args, t)
	}
	return args, varargs, nil
}

// v3Arg converts one demangled argument type. context, when non-nil, is the
// enclosing class of a qualified name component, searched for a field whose
// type carries the component's name.
func (p *Parser) v3Arg(a itdemangle.AST, context debug.Type) (debug.Type, bool, error) {
	switch a := a.(type) {
	case *itdemangle.Name:
		if context != nil {
			for _, f := range p.b.GetFields(context) {
				ft := p.b.GetFieldType(f)
				if ft == nil {
					return nil, false, fmt.Errorf("bad field in demangled class %q", a.Name)
				}
				if p.b.GetTypeName(ft) == a.Name {
					return ft, false, nil
				}
			}
		}
		return p.findTaggedType(a.Name, debug.KindIllegal), false, nil

	case *itdemangle.Qualified:
		context, _, err := p.v3Arg(a.Scope, context)
		if err != nil {
			return nil, false, err
		}
		return p.v3Arg(a.Name, context)

	case *itdemangle.Template:
		// The printed form of the template is the structure tag g++
		// used for the instantiation, modulo spaces.
		name := squeezeTemplateName(itdemangle.ASTToString(a))
		return p.findTaggedType(name, debug.KindClass), false, nil

	case *itdemangle.TypeWithQualifiers:
		t, _, err := p.v3Arg(a.Base, nil)
		if err != nil {
			return nil, false, err
		}
		if quals, ok := a.Qualifiers.(*itdemangle.Qualifiers); ok {
			for _, q := range quals.Qualifiers {
				qual, ok := q.(*itdemangle.Qualifier)
				if !ok {
					continue
				}
				switch qual.Name {
				case "const":
					t = p.b.MakeConstType(t)
				case "volatile":
					t = p.b.MakeVolatileType(t)
				}
				// restrict cannot be represented.
			}
		}
		return t, false, nil

	case *itdemangle.PointerType:
		t, _, err := p.v3Arg(a.Base, nil)
		if err != nil {
			return nil, false, err
		}
		return p.b.MakePointerType(t), false, nil

	case *itdemangle.ReferenceType:
		t, _, err := p.v3Arg(a.Base, nil)
		if err != nil {
			return nil, false, err
		}
		return p.b.MakeReferenceType(t), false, nil

	case *itdemangle.FunctionType:
		var ret debug.Type
		if a.Return == nil {
			ret = p.b.MakeVoidType()
		} else {
			var err error
			ret, _, err = p.v3Arg(a.Return, nil)
			if err != nil {
				return nil, false, err
			}
		}
		args, varargs, err := p.v3Arglist(a.Args)
		if err != nil {
			return nil, false, err
		}
		return p.b.MakeFunctionType(ret, args, varargs), false, nil

	case *itdemangle.BuiltinType:
		return p.v3Builtin(a.Name)

	default:
		return nil, false, fmt.Errorf("unrecognized demangle component %T", a)
	}
}

// v3Builtin maps a demangled builtin type name to a type. The mangling names
// the type but not its width, so the widths are fixed here.
func (p *Parser) v3Builtin(name string) (debug.Type, bool, error) {
	switch name {
	case "void":
		return p.b.MakeVoidType(), false, nil
	case "bool":
		return p.b.MakeBoolType(1), false, nil
	case "char":
		return p.b.MakeIntType(1, false), false, nil
	case "signed char":
		return p.b.MakeIntType(1, false), false, nil
	case "unsigned char":
		return p.b.MakeIntType(1, true), false, nil
	case "short":
		return p.b.MakeIntType(2, false), false, nil
	case "unsigned short":
		return p.b.MakeIntType(2, true), false, nil
	case "int":
		return p.b.MakeIntType(4, false), false, nil
	case "unsigned int":
		return p.b.MakeIntType(4, true), false, nil
	case "long":
		return p.b.MakeIntType(4, false), false, nil
	case "unsigned long":
		return p.b.MakeIntType(4, true), false, nil
	case "long long":
		return p.b.MakeIntType(8, false), false, nil
	case "unsigned long long":
		return p.b.MakeIntType(8, true), false, nil
	case "__int128":
		return p.b.MakeIntType(16, false), false, nil
	case "unsigned __int128":
		return p.b.MakeIntType(16, true), false, nil
	case "wchar_t":
		return p.b.MakeIntType(4, true), false, nil
	case "float":
		return p.b.MakeFloatType(4), false, nil
	case "double":
		return p.b.MakeFloatType(8), false, nil
	case "long double":
		return p.b.MakeFloatType(8), false, nil
	case "__float128":
		return p.b.MakeFloatType(16), false, nil
	case "...":
		return nil, true, nil
	default:
		return nil, false, fmt.Errorf("unrecognized demangled builtin type %q", name)
	}
}

// squeezeTemplateName removes the spaces a pretty-printer inserts in a
// template name, keeping only the space that separates adjacent closing
// angle brackets. That matches the tag names g++ gives instantiations.
func squeezeTemplateName(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == ' ' && !(i+1 < len(s) && s[i+1] == '>' && i > 0 && s[i-1] == '>') {
			continue
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}
