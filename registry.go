package plugraph

import (
	"fmt"
	"reflect"
	"slices"
	"sync"
)

// NodeFactory constructs a node of a registered type with the given name.
type NodeFactory func(name string) Node

// globalNodeRegistry is global for the entire package (hence, the entire
// process). Every registered Go type maps to exactly one type name, which is
// what edit scripts and exports use to refer to node types.
var globalNodeRegistry nodeRegistry

type nodeRegistry struct {
	mNameToEntry sync.Map // map[string]registration
	mTypeToName  sync.Map // map[reflect.Type]string
}

type registration struct {
	rt      reflect.Type
	factory NodeFactory
}

// RegisterNodeType makes the node type N constructible by name through NewNode.
// It is usually called from an init function of the package declaring N.
//
// RegisterNodeType panics when registering two types under one name, or one type
// under two names.
func RegisterNodeType[N Node](typeName string, factory func(name string) N) {
	globalNodeRegistry.register(typeName, reflect.TypeFor[N](), func(name string) Node { return factory(name) })
}

func (r *nodeRegistry) register(typeName string, rt reflect.Type, factory NodeFactory) {
	e, dup := r.mNameToEntry.LoadOrStore(typeName, registration{rt: rt, factory: factory})
	if dup && e.(registration).rt != rt {
		panic(fmt.Sprintf("plugraph: registering duplicate types for %q: %s != %s", typeName, e.(registration).rt, rt))
	}
	if l, dup := r.mTypeToName.LoadOrStore(rt, typeName); dup && l != typeName {
		r.mNameToEntry.Delete(typeName) // Important to rollback.
		panic(fmt.Sprintf("plugraph: registering duplicate names for %s: %q != %q", rt, l, typeName))
	}
}

func (r *nodeRegistry) NameOf(rt reflect.Type) (string, bool) {
	v, ok := r.mTypeToName.Load(rt)
	if !ok {
		return "", false
	}
	return v.(string), true
}

// NewNode constructs a node of the registered type typeName.
func NewNode(typeName, name string) (Node, error) {
	v, ok := globalNodeRegistry.mNameToEntry.Load(typeName)
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownNodeType, typeName)
	}
	return v.(registration).factory(name), nil
}

// KnownNodeTypes returns the sorted names of all registered node types.
func KnownNodeTypes() []string {
	var names []string
	globalNodeRegistry.mNameToEntry.Range(func(name, _ any) bool {
		names = append(names, name.(string))
		return true
	})
	slices.Sort(names)
	return names
}
