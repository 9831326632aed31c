// Package types represents the compiler's small type model: integers,
// pointers, arrays, and function signatures, plus the two operations
// every other stage needs — size_of and dest_type.
package types

import "fmt"

// Kind tags the variant of a Type.
type Kind int

const (
	I8 Kind = iota
	I32
	Ptr
	Arr
	Func
)

// Type is a tagged variant: I8 and I32 are sized scalars, Ptr/Arr carry
// an element type, Func carries a signature and is only ever used as the
// declared type of a Function AST node (its "size" is a sentinel 1).
type Type struct {
	Kind Kind
	Elem *Type // Ptr(T), Arr(T, N): the element type T
	Len  int   // Arr(T, N): N

	Args []*Type // Func: argument types
	Ret  *Type   // Func: return type
}

var (
	I8Type  = &Type{Kind: I8}
	I32Type = &Type{Kind: I32}
)

func PtrTo(elem *Type) *Type { return &Type{Kind: Ptr, Elem: elem} }
func ArrOf(elem *Type, n int) *Type { return &Type{Kind: Arr, Elem: elem, Len: n} }
func FuncOf(args []*Type, ret *Type) *Type { return &Type{Kind: Func, Args: args, Ret: ret} }

// SizeOf returns a type's size in bytes. Invariant: SizeOf(Arr(T,N)) ==
// N * SizeOf(T); SizeOf(Ptr(T)) == 8 for every T.
func SizeOf(t *Type) int {
	switch t.Kind {
	case I8:
		return 1
	case I32:
		return 4
	case Ptr:
		return 8
	case Arr:
		return t.Len * SizeOf(t.Elem)
	case Func:
		return 1 // sentinel: Func is never stored, only declared
	default:
		panic(fmt.Sprintf("unexpected type kind %v", t.Kind))
	}
}

// DestType returns the pointee/element type of a Ptr or Arr, or nil for
// any other kind.
func DestType(t *Type) *Type {
	switch t.Kind {
	case Ptr, Arr:
		return t.Elem
	default:
		return nil
	}
}

// Align returns the natural alignment used for local-variable frame
// layout: size_of(dest_type(t)) for arrays (so that a[i] lands on an
// element boundary), else size_of(t).
func Align(t *Type) int {
	if t.Kind == Arr {
		return SizeOf(DestType(t))
	}
	return SizeOf(t)
}

func (t *Type) String() string {
	switch t.Kind {
	case I8:
		return "char"
	case I32:
		return "int"
	case Ptr:
		return t.Elem.String() + "*"
	case Arr:
		return fmt.Sprintf("%s[%d]", t.Elem.String(), t.Len)
	case Func:
		return "func"
	default:
		return "?"
	}
}

// IsPointerLike reports whether pointer-arithmetic scaling rules apply
// (i.e. DestType(t) is defined).
func IsPointerLike(t *Type) bool {
	return t.Kind == Ptr || t.Kind == Arr
}
