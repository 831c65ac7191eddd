package types

// Subst is a substitution mapping type variable IDs to types, built up
// during unification.
type Subst map[int]Type

// Apply recursively replaces every type variable in t bound by s.
func (s Subst) Apply(t Type) Type {
	if len(s) == 0 {
		return t
	}

	switch v := t.(type) {
	case Var:
		if replacement, ok := s[v.ID]; ok {
			// Chase chains (a -> b -> c) so repeated unification
			// steps converge on the final binding.
			return s.Apply(replacement)
		}
		return v

	case Con:
		if len(v.Args) == 0 {
			return v
		}
		args := make([]Type, len(v.Args))
		for i, a := range v.Args {
			args[i] = s.Apply(a)
		}
		return Con{Name: v.Name, DisplayPrefix: v.DisplayPrefix, Args: args}

	case Func:
		params := make([]Type, len(v.Params))
		for i, p := range v.Params {
			params[i] = s.Apply(p)
		}
		return Func{Params: params, Ret: s.Apply(v.Ret)}

	default:
		return t
	}
}

// ApplyScheme substitutes only the scheme's free (non-quantified)
// variables, never touching the scheme's own bound variables.
func (s Subst) ApplyScheme(sc Scheme) Scheme {
	bound := make(map[int]struct{}, len(sc.Vars))
	for _, v := range sc.Vars {
		bound[v] = struct{}{}
	}

	filtered := make(Subst, len(s))
	for id, t := range s {
		if _, isBound := bound[id]; !isBound {
			filtered[id] = t
		}
	}

	return Scheme{Vars: sc.Vars, Ty: filtered.Apply(sc.Ty)}
}

// Compose returns a substitution equivalent to applying s2 then s1.
func Compose(s1, s2 Subst) Subst {
	out := make(Subst, len(s1)+len(s2))
	for id, t := range s2 {
		out[id] = s1.Apply(t)
	}
	for id, t := range s1 {
		if _, ok := out[id]; !ok {
			out[id] = t
		}
	}
	return out
}

// occurs reports whether v occurs free in t, the classic occurs-check that
// prevents building an infinite type during unification.
func occurs(v Var, t Type) bool {
	switch x := t.(type) {
	case Var:
		return x.ID == v.ID
	case Con:
		for _, a := range x.Args {
			if occurs(v, a) {
				return true
			}
		}
		return false
	case Func:
		for _, p := range x.Params {
			if occurs(v, p) {
				return true
			}
		}
		return occurs(v, x.Ret)
	default:
		return false
	}
}
