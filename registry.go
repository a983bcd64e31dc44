package tsl

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/tsl/closure"
	"github.com/gogpu/tsl/codegen"
)

// ErrConflictingClosure is returned when a closure name is re-registered
// with a different field layout.
var ErrConflictingClosure = errors.New("tsl: closure registered with a different layout")

const (
	closureAddFunc = "tsl_closure_add"
	closureMulFunc = "tsl_closure_mul"
)

func constructorName(name string) string {
	return "tsl_make_closure_" + name
}

type registeredClosure struct {
	Name string
	ID   closure.ID
	Vars []closure.Var
}

// closureRegistry is the shared table of registered closure types. Every
// registration appends a constructor function to the registry module;
// shaders call into a clone of that module at link time. Guarded by a
// mutex, shared across all contexts of a shading system.
type closureRegistry struct {
	mu     sync.Mutex
	byName map[string]*registeredClosure
	byID   map[closure.ID]*registeredClosure
	next   closure.ID
	module *codegen.Module
}

func newClosureRegistry() *closureRegistry {
	r := &closureRegistry{
		byName: make(map[string]*registeredClosure),
		byID:   make(map[closure.ID]*registeredClosure),
		next:   closure.FirstUserID,
		module: codegen.NewModule("tsl_closures"),
	}

	add := r.module.NewFunction(closureAddFunc, []codegen.Param{
		{Name: "c0", Ty: codegen.ClosureType{}},
		{Name: "c1", Ty: codegen.ClosureType{}},
	}, codegen.ClosureType{})
	b := codegen.NewBuilder(add)
	b.Ret(b.ClosureAdd(b.Arg(0), b.Arg(1)))

	mul := r.module.NewFunction(closureMulFunc, []codegen.Param{
		{Name: "w", Ty: codegen.FloatType{}},
		{Name: "c", Ty: codegen.ClosureType{}},
	}, codegen.ClosureType{})
	b = codegen.NewBuilder(mul)
	b.Ret(b.ClosureMul(b.Arg(0), b.Arg(1)))

	return r
}

// register assigns an identity to a closure name and emits its
// constructor. Registering the same name with the same layout again
// returns the existing identity.
func (r *closureRegistry) register(name string, vars []closure.Var) (closure.ID, error) {
	if name == "" {
		return closure.InvalidID, fmt.Errorf("tsl: empty closure name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byName[name]; ok {
		if !varsEqual(existing.Vars, vars) {
			return closure.InvalidID, fmt.Errorf("%w: %s", ErrConflictingClosure, name)
		}
		return existing.ID, nil
	}

	entry := &registeredClosure{
		Name: name,
		ID:   r.next,
		Vars: append([]closure.Var(nil), vars...),
	}
	r.next++
	r.byName[name] = entry
	r.byID[entry.ID] = entry

	params := make([]codegen.Param, len(vars))
	for i, v := range vars {
		params[i] = codegen.Param{Name: v.Name, Ty: varBackendType(v.Type)}
	}
	fn := r.module.NewFunction(constructorName(name), params, codegen.ClosureType{})
	b := codegen.NewBuilder(fn)
	args := make([]codegen.Value, len(vars))
	for i := range vars {
		args[i] = b.Arg(i)
	}
	b.Ret(b.MakeClosure(entry.ID, entry.Vars, args))

	Logger().Info("closure registered", "name", name, "id", int32(entry.ID), "fields", len(vars))
	return entry.ID, nil
}

func (r *closureRegistry) lookup(name string) (*registeredClosure, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byName[name]
	return c, ok
}

// payloadSize returns the encoded payload size of a registered closure,
// letting callers decode leaf nodes of a closure tree.
func (r *closureRegistry) payloadSize(id closure.ID) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return 0, false
	}
	_, size := closure.FieldOffsets(c.Vars)
	return size, true
}

// cloneModule returns a copy of the registry module for linking.
func (r *closureRegistry) cloneModule() *codegen.Module {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.module.Clone()
}

func varsEqual(a, b []closure.Var) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// varBackendType maps a closure field type to the code generator's type.
func varBackendType(t closure.VarType) codegen.Type {
	switch t {
	case closure.VarInt:
		return codegen.IntType{}
	case closure.VarFloat:
		return codegen.FloatType{}
	case closure.VarDouble:
		return codegen.DoubleType{}
	case closure.VarBool:
		return codegen.BoolType{}
	case closure.VarFloat3:
		return codegen.Float3Type{}
	case closure.VarFloat4:
		return codegen.Float4Type{}
	case closure.VarMatrix:
		return codegen.MatrixType{}
	default:
		return codegen.VoidType{}
	}
}
