package ast

import "github.com/dytlzl/dynamite-compiler/internal/types"

// ResolveType implements spec §4.4's "Type resolution": a node's type is
// its declared Cty for terminals; for Addr, Ptr(resolve_type(dest)); for
// Deref, dest_type(lhs); for binary ops, propagate from whichever child
// has a dest_type (preferring pointer-typed operands), else from either
// child.
func ResolveType(n *Node) *types.Type {
	switch n.Kind {
	case LocalVar, GlobalVar, Num, CallFunc, DefVar:
		return n.Cty
	case Addr:
		return types.PtrTo(ResolveType(n.Dest))
	case Deref:
		return types.DestType(ResolveType(n.Lhs))
	case Assign:
		return ResolveType(n.Lhs)
	default:
		if n.Lhs != nil && types.IsPointerLike(ResolveType(n.Lhs)) {
			return ResolveType(n.Lhs)
		}
		if n.Rhs != nil && types.IsPointerLike(ResolveType(n.Rhs)) {
			return ResolveType(n.Rhs)
		}
		if n.Lhs != nil {
			return ResolveType(n.Lhs)
		}
		if n.Rhs != nil {
			return ResolveType(n.Rhs)
		}
		return n.Cty
	}
}
