// Package codegen is the code-generation backend the shading compiler
// drives.
//
// It provides a small typed IR: a Module owns functions, external function
// declarations and module-scope globals; a Function owns basic blocks over
// an instruction arena addressed by Value handles, built through a Builder.
// Modules are deep-clonable, so a compiled module can serve as an immutable
// template while clones of it are linked and executed.
//
// On top of the IR the package offers a fixed optimization sequence
// (instruction combining, reassociation, common-subexpression elimination
// and control-flow simplification), a function verifier, and an execution
// engine. The engine links any number of modules with per-module symbol
// scoping and lowers an entry function to a native Go callable.
package codegen
