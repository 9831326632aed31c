package parser

import "github.com/dytlzl/dynamite-compiler/internal/types"

// bindingKind tags the variant of a scope entry.
type bindingKind int

const (
	bindTypeDef bindingKind = iota
	bindLocal
	bindStatic
)

// binding is the scope stack's value type: TypeDef(T) | Local(T, offset) | Static(T).
type binding struct {
	kind         bindingKind
	cty          *types.Type
	frameOffset  int // bindLocal only
	variadic     bool
	fixedArgsLen int // for reserved external functions
}

// scopeStack is a sequence of maps (name -> binding), innermost last.
// Lookup walks innermost-first; redeclaration in the innermost scope is
// an error the caller must check before declaring.
type scopeStack struct {
	scopes []map[string]*binding
}

func newScopeStack() *scopeStack {
	s := &scopeStack{}
	s.push() // outermost (package/global) scope
	return s
}

func (s *scopeStack) push() {
	s.scopes = append(s.scopes, make(map[string]*binding))
}

func (s *scopeStack) pop() {
	s.scopes = s.scopes[:len(s.scopes)-1]
}

func (s *scopeStack) innermost() map[string]*binding {
	return s.scopes[len(s.scopes)-1]
}

// declaredInInnermost reports whether name is already bound in the
// current (innermost) scope — used to detect invalid redeclaration.
func (s *scopeStack) declaredInInnermost(name string) bool {
	_, ok := s.innermost()[name]
	return ok
}

func (s *scopeStack) declare(name string, b *binding) {
	s.innermost()[name] = b
}

// lookup walks innermost-first and returns the first binding found.
func (s *scopeStack) lookup(name string) (*binding, bool) {
	for i := len(s.scopes) - 1; i >= 0; i-- {
		if b, ok := s.scopes[i][name]; ok {
			return b, true
		}
	}
	return nil, false
}

// seedReservedFunctions seeds the outermost scope with the fixed table of
// reserved external functions (spec §3 "Identifier binding").
func seedReservedFunctions(s *scopeStack) {
	i8 := types.I8Type
	i32 := types.I32Type
	ptrI8 := types.PtrTo(i8)

	outer := s.scopes[0]
	outer["printf"] = &binding{
		kind: bindStatic, cty: types.FuncOf([]*types.Type{ptrI8}, i32),
		variadic: true, fixedArgsLen: 1,
	}
	outer["puts"] = &binding{
		kind: bindStatic, cty: types.FuncOf([]*types.Type{ptrI8}, i32),
	}
	outer["putchar"] = &binding{
		kind: bindStatic, cty: types.FuncOf([]*types.Type{i8}, i32),
	}
	outer["exit"] = &binding{
		kind: bindStatic, cty: types.FuncOf([]*types.Type{i8}, i32),
	}
}
