// Package syntax implements the lexer and parser for the TSL surface
// language.
//
// The language is a small C-like shading language. A translation unit
// holds struct declarations, module-scope global parameters, free
// functions and at most one root shader function:
//
//	struct onb {
//	    float3 t;
//	    float3 n;
//	};
//
//	float brightness(float r, float g, float b) {
//	    return 0.299 * r + 0.587 * g + 0.114 * b;
//	}
//
//	shader main(in float roughness, out closure result) {
//	    result = roughness * make_closure<lambert>(0.5, float3(0.0, 1.0, 0.0));
//	}
//
// Shader parameters carry in/out qualifiers; their order defines the
// compiled unit's native call signature. make_closure<name>(...) builds a
// leaf node of a registered closure type and global_value<name> reads a
// field of the implicit global-state argument.
//
// The package only produces an AST. Code generation is driven by the
// compiler, which walks the parsed module and deposits its fragments
// through the compiler's narrow push API.
package syntax
