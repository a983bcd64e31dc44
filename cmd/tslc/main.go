// Command tslc is the TSL shader compiler CLI.
//
// Usage:
//
//	tslc compile [options] <input>
//	tslc run [options] <input>
//
// Examples:
//
//	tslc compile shader.tsl                      # Compile and report arguments
//	tslc compile -emit-ir shader.tsl             # Print the lowered module
//	tslc compile -closure lambert=albedo:float3 shader.tsl
//	tslc run shader.tsl                          # Resolve and execute once
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gogpu/tsl"
	"github.com/gogpu/tsl/closure"
)

const tslVersion = "0.1.0-dev"

var (
	closureFlags []string
	emitIR       bool
	verbose      bool
)

func main() {
	root := &cobra.Command{
		Use:           "tslc",
		Short:         "TSL shader compiler",
		Version:       tslVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				tsl.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
					Level: slog.LevelDebug,
				})))
			}
		},
	}
	root.PersistentFlags().StringArrayVar(&closureFlags, "closure", nil,
		"register a closure, e.g. lambert=albedo:float3,roughness:float (repeatable)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	compileCmd := &cobra.Command{
		Use:   "compile <input>",
		Short: "Compile a shader unit and report its interface",
		Args:  cobra.ExactArgs(1),
		RunE:  runCompile,
	}
	compileCmd.Flags().BoolVar(&emitIR, "emit-ir", false, "print the lowered module")

	runCmd := &cobra.Command{
		Use:   "run <input>",
		Short: "Compile, resolve and execute a shader unit once",
		Args:  cobra.ExactArgs(1),
		RunE:  runExecute,
	}

	root.AddCommand(compileCmd, runCmd)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func setup(path string) (*tsl.ShadingContext, *tsl.ShaderUnitTemplate, error) {
	sys := tsl.NewShadingSystem()
	for _, spec := range closureFlags {
		name, vars, err := parseClosureSpec(spec)
		if err != nil {
			return nil, nil, err
		}
		if _, err := sys.RegisterClosure(name, vars); err != nil {
			return nil, nil, err
		}
	}

	source, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	name := strings.TrimSuffix(baseName(path), ".tsl")
	ctx := sys.NewContext()
	tmpl, err := ctx.CompileShaderUnitTemplate(name, string(source))
	if err != nil {
		return nil, nil, err
	}
	return ctx, tmpl, nil
}

func runCompile(cmd *cobra.Command, args []string) error {
	_, tmpl, err := setup(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("compiled %s\n", tmpl.Name())
	for _, a := range tmpl.Arguments() {
		dir := "in"
		if a.Output {
			dir = "out"
		}
		fmt.Printf("  %-3s %-16s %s\n", dir, a.Name, a.Type)
	}
	if emitIR {
		fmt.Print(tmpl.Listing())
	}
	return nil
}

func runExecute(cmd *cobra.Command, args []string) error {
	ctx, tmpl, err := setup(args[0])
	if err != nil {
		return err
	}
	inst := tmpl.MakeShaderInstance()
	if st := ctx.ResolveShaderInstance(inst); st != tsl.Succeed {
		return fmt.Errorf("resolve failed: %s", st)
	}

	// Inputs default to zero values; outputs are printed after the call.
	callArgs := make([]any, 0, len(tmpl.Arguments()))
	type output struct {
		name string
		ptr  any
	}
	var outputs []output
	for _, a := range tmpl.Arguments() {
		if !a.Output {
			callArgs = append(callArgs, nil)
			continue
		}
		ptr := outPointer(a.Type)
		outputs = append(outputs, output{name: a.Name, ptr: ptr})
		callArgs = append(callArgs, ptr)
	}
	if tmpl.UsesGlobalState() {
		callArgs = append(callArgs, tsl.NewShaderGlobals())
	}
	inst.Function()(callArgs...)

	for _, o := range outputs {
		fmt.Printf("%s = %v\n", o.name, deref(o.ptr))
	}
	return nil
}

func outPointer(t tsl.ArgType) any {
	switch t {
	case tsl.ArgInt:
		return new(int32)
	case tsl.ArgFloat:
		return new(float32)
	case tsl.ArgDouble:
		return new(float64)
	case tsl.ArgBool:
		return new(bool)
	case tsl.ArgFloat3:
		return new([3]float32)
	case tsl.ArgFloat4:
		return new([4]float32)
	case tsl.ArgMatrix:
		return new([16]float32)
	case tsl.ArgClosure:
		return new(closure.TreeNode)
	default:
		return new(any)
	}
}

func deref(p any) any {
	switch p := p.(type) {
	case *int32:
		return *p
	case *float32:
		return *p
	case *float64:
		return *p
	case *bool:
		return *p
	case *[3]float32:
		return *p
	case *[4]float32:
		return *p
	case *[16]float32:
		return *p
	case *closure.TreeNode:
		if *p == nil {
			return "<nil closure>"
		}
		return fmt.Sprintf("closure tree (%d bytes encoded)", len(closure.EncodeTree(*p)))
	default:
		return p
	}
}

// parseClosureSpec parses "name=field:type,field:type".
func parseClosureSpec(spec string) (string, []closure.Var, error) {
	name, fields, ok := strings.Cut(spec, "=")
	if !ok || name == "" {
		return "", nil, fmt.Errorf("bad closure spec %q, want name=field:type,...", spec)
	}
	var vars []closure.Var
	if fields != "" {
		for _, f := range strings.Split(fields, ",") {
			fname, ftype, ok := strings.Cut(f, ":")
			if !ok {
				return "", nil, fmt.Errorf("bad closure field %q, want field:type", f)
			}
			vt, err := parseVarType(ftype)
			if err != nil {
				return "", nil, err
			}
			vars = append(vars, closure.Var{Name: fname, Type: vt})
		}
	}
	return name, vars, nil
}

func parseVarType(s string) (closure.VarType, error) {
	switch s {
	case "int":
		return closure.VarInt, nil
	case "float":
		return closure.VarFloat, nil
	case "double":
		return closure.VarDouble, nil
	case "bool":
		return closure.VarBool, nil
	case "float3":
		return closure.VarFloat3, nil
	case "float4":
		return closure.VarFloat4, nil
	case "matrix":
		return closure.VarMatrix, nil
	default:
		return 0, fmt.Errorf("unknown closure field type %q", s)
	}
}

func baseName(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}
