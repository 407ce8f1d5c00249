package plugraph

// A Visitor defines a Visit method invoked for each Plug encountered by Walk. If
// the result visitor w is not nil, Walk visits each upstream plug of p with the
// visitor w, followed by a call of w.Visit(nil).
type Visitor interface {
	Visit(p Plug) (w Visitor)
}

// Upstream returns the plugs the value of p is read from: its input connection
// if it has one, or otherwise the Dependencies of a computed output. Input plugs
// without a connection have no upstream.
func Upstream(p Plug) []Plug {
	if in := p.Input(); in != nil {
		return []Plug{in}
	}
	if p.Direction() == Out {
		return Dependencies(p)
	}
	return nil
}

// Walk traverses the plugs p depends on in depth-first order: It starts by
// calling v.Visit(p). If the visitor w returned by v.Visit(p) is not nil, Walk
// is invoked recursively with visitor w for each of the Upstream plugs of p,
// followed by a call of w.Visit(nil).
//
// A plug reachable along several paths is visited once per path. This is
// exactly the traversal DefaultHash performs for p, so it enumerates the plugs
// an evaluation of p may touch.
func Walk(v Visitor, p Plug) {
	// Start by calling v.Visit(p).
	if v = v.Visit(p); v == nil {
		return
	}
	// Then traverse the plugs upstream of p, depth-first.
	for _, up := range Upstream(p) {
		Walk(v, up)
	}
	// Finally, call v.Visit(nil).
	v.Visit(nil)
}

type inspector func(p Plug) bool

func (f inspector) Visit(p Plug) Visitor {
	if f(p) {
		return f
	}
	return nil
}

// Inspect traverses the plugs p depends on in depth-first order: It starts by
// calling f(p). If f returns true, Inspect invokes f recursively for each
// upstream plug of p, followed by a call of f(nil).
func Inspect(p Plug, f func(p Plug) bool) {
	Walk(inspector(f), p)
}
