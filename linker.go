package tsl

import (
	"github.com/gogpu/tsl/codegen"
)

// link clones the given modules, optimizes and verifies each, links them
// together with the closure registry module and pins the entry point.
// Cloning keeps the templates reusable: every resolve links fresh copies.
func link(registry *closureRegistry, entry string, modules ...*codegen.Module) (NativeFunction, Status) {
	engine := codegen.NewExecutionEngine()
	for _, m := range modules {
		clone := m.Clone()
		codegen.Optimize(clone)
		if err := codegen.Verify(clone); err != nil {
			Logger().Warn("module rejected at link time", "module", m.Name, "err", err)
			return nil, FunctionVerificationFailed
		}
		engine.AddModule(clone)
	}
	engine.AddModule(registry.cloneModule())

	fn, err := engine.FunctionAddress(entry)
	if err != nil {
		return nil, FunctionVerificationFailed
	}
	return fn, Succeed
}
