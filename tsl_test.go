package tsl

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/tsl/closure"
)

var lambertVars = []closure.Var{
	{Name: "albedo", Type: closure.VarFloat3},
}

const addOneSrc = `
shader add_one(float in_f, out float out_f) {
	out_f = in_f + 1.0;
}
`

const mixSrc = `
shader mix2(float a, float b, out float result) {
	result = a + b;
}
`

func TestRegisterClosure(t *testing.T) {
	sys := NewShadingSystem()

	id, err := sys.RegisterClosure("lambert", lambertVars)
	require.NoError(t, err)
	assert.Equal(t, closure.FirstUserID, id)

	// Same layout again returns the same identity.
	again, err := sys.RegisterClosure("lambert", lambertVars)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	// A different layout under the same name is rejected.
	_, err = sys.RegisterClosure("lambert", []closure.Var{
		{Name: "albedo", Type: closure.VarFloat4},
	})
	assert.ErrorIs(t, err, ErrConflictingClosure)

	other, err := sys.RegisterClosure("oren_nayar", []closure.Var{
		{Name: "albedo", Type: closure.VarFloat3},
		{Name: "roughness", Type: closure.VarFloat},
	})
	require.NoError(t, err)
	assert.Equal(t, id+1, other)

	fields, ok := sys.ClosureFields(other)
	require.True(t, ok)
	assert.Len(t, fields, 2)
}

func TestRegisterClosureConcurrent(t *testing.T) {
	sys := NewShadingSystem()
	var wg sync.WaitGroup
	ids := make([]closure.ID, 16)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := sys.RegisterClosure("shared", lambertVars)
			if err != nil {
				t.Error(err)
				return
			}
			ids[i] = id
		}(i)
	}
	wg.Wait()
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestCompileShaderUnitTemplate(t *testing.T) {
	sys := NewShadingSystem()
	ctx := sys.NewContext()

	tmpl, err := ctx.CompileShaderUnitTemplate("add_one", addOneSrc)
	require.NoError(t, err)
	assert.Equal(t, "add_one", tmpl.Name())

	args := tmpl.Arguments()
	require.Len(t, args, 2)
	assert.Equal(t, ShaderArgument{Name: "in_f", Type: ArgFloat}, args[0])
	assert.Equal(t, ShaderArgument{Name: "out_f", Type: ArgFloat, Output: true}, args[1])
	assert.False(t, tmpl.UsesGlobalState())
	assert.Contains(t, tmpl.Listing(), "func add_one_shader_")
}

func TestCompileErrors(t *testing.T) {
	sys := NewShadingSystem()
	ctx := sys.NewContext()

	t.Run("syntax error", func(t *testing.T) {
		_, err := ctx.CompileShaderUnitTemplate("bad", `shader f( {`)
		assert.ErrorIs(t, err, ErrParse)
	})

	t.Run("unregistered closure", func(t *testing.T) {
		_, err := ctx.CompileShaderUnitTemplate("bad", `
shader f(float3 c, out closure result) {
	result = make_closure<unknown_bsdf>(c);
}
`)
		assert.ErrorIs(t, err, ErrUnregisteredClosure)
	})

	t.Run("no shader entry", func(t *testing.T) {
		_, err := ctx.CompileShaderUnitTemplate("bad", `
float helper(float x) {
	return x;
}
`)
		assert.ErrorIs(t, err, ErrNoShaderEntry)
	})

	t.Run("two shader entries", func(t *testing.T) {
		_, err := ctx.CompileShaderUnitTemplate("bad", addOneSrc+`
shader another(float x, out float y) {
	y = x;
}
`)
		assert.ErrorIs(t, err, ErrNoShaderEntry)
	})

	t.Run("type mismatch", func(t *testing.T) {
		_, err := ctx.CompileShaderUnitTemplate("bad", `
shader f(float x, out float y) {
	y = x + true;
}
`)
		assert.ErrorIs(t, err, ErrCodegen)
	})

	t.Run("context stays usable after failure", func(t *testing.T) {
		_, err := ctx.CompileShaderUnitTemplate("good", addOneSrc)
		assert.NoError(t, err)
	})
}

func resolveUnit(t *testing.T, ctx *ShadingContext, name, src string) NativeFunction {
	t.Helper()
	tmpl, err := ctx.CompileShaderUnitTemplate(name, src)
	require.NoError(t, err)
	inst := tmpl.MakeShaderInstance()
	require.Equal(t, Succeed, ctx.ResolveShaderInstance(inst))
	require.NotNil(t, inst.Function())
	return inst.Function()
}

func TestResolveAndExecuteUnit(t *testing.T) {
	sys := NewShadingSystem()
	ctx := sys.NewContext()

	fn := resolveUnit(t, ctx, "add_one", addOneSrc)
	var out float32
	fn(float32(41), &out)
	assert.Equal(t, float32(42), out)
}

func TestExecuteControlFlow(t *testing.T) {
	sys := NewShadingSystem()
	ctx := sys.NewContext()

	fn := resolveUnit(t, ctx, "clamp01", `
shader clamp01(float x, out float y) {
	if (x < 0.0) {
		y = 0.0;
	} else {
		if (x > 1.0) {
			y = 1.0;
		} else {
			y = x;
		}
	}
}
`)
	for _, tt := range []struct {
		in, want float32
	}{
		{-0.5, 0},
		{0.25, 0.25},
		{3, 1},
	} {
		var out float32
		fn(tt.in, &out)
		assert.Equal(t, tt.want, out, "clamp01(%v)", tt.in)
	}
}

func TestExecuteFreeFunctionCall(t *testing.T) {
	sys := NewShadingSystem()
	ctx := sys.NewContext()

	fn := resolveUnit(t, ctx, "halve", `
float half_of(float v) {
	return v / 2.0;
}

shader halve(float x, out float r) {
	r = half_of(x) + half_of(x);
}
`)
	var out float32
	fn(float32(10), &out)
	assert.Equal(t, float32(10), out)
}

func TestExecuteStructsAndVectors(t *testing.T) {
	sys := NewShadingSystem()
	ctx := sys.NewContext()

	fn := resolveUnit(t, ctx, "eval", `
struct SurfaceInfo {
	float3 base;
	float  gain;
};

shader eval(float x, out float result, out float3 scaled) {
	SurfaceInfo info;
	info.base = float3(x, x + 1.0, x + 2.0);
	info.gain = 2.0;
	result = info.base.y * info.gain;
	scaled = info.base * info.gain;
}
`)
	var result float32
	var scaled [3]float32
	fn(float32(1), &result, &scaled)
	assert.Equal(t, float32(4), result)
	assert.Equal(t, [3]float32{2, 4, 6}, scaled)
}

func TestExecuteClosureShader(t *testing.T) {
	sys := NewShadingSystem()
	lambertID, err := sys.RegisterClosure("lambert", lambertVars)
	require.NoError(t, err)
	ctx := sys.NewContext()

	fn := resolveUnit(t, ctx, "surface", `
shader surface(float3 color, float weight, out closure result) {
	result = weight * make_closure<lambert>(color) + make_closure<lambert>(color * 0.5);
}
`)
	var result closure.TreeNode
	fn([3]float32{1, 0.5, 0}, float32(0.8), &result)

	root, ok := result.(*closure.AddNode)
	require.True(t, ok, "root is %T, want *AddNode", result)

	mul, ok := root.Closure0.(*closure.MulNode)
	require.True(t, ok, "left child is %T, want *MulNode", root.Closure0)
	assert.InDelta(t, 0.8, float64(mul.Weight), 1e-6)

	leaf, ok := mul.Closure.(*closure.LeafNode)
	require.True(t, ok)
	assert.Equal(t, lambertID, leaf.ID)
	vals, err := closure.DecodePayload(lambertVars, leaf.Payload)
	require.NoError(t, err)
	assert.Equal(t, [3]float32{1, 0.5, 0}, vals[0])

	right, ok := root.Closure1.(*closure.LeafNode)
	require.True(t, ok)
	vals, err = closure.DecodePayload(lambertVars, right.Payload)
	require.NoError(t, err)
	assert.Equal(t, [3]float32{0.5, 0.25, 0}, vals[0])

	// The tree survives an encode and registry-assisted decode.
	decoded, err := sys.DecodeClosureTree(closure.EncodeTree(result))
	require.NoError(t, err)
	assert.Equal(t, closure.AddID, decoded.Identity())
}

func TestResolveUsesTemplateRegistry(t *testing.T) {
	sys := NewShadingSystem()
	lambertID, err := sys.RegisterClosure("lambert", lambertVars)
	require.NoError(t, err)
	ctx := sys.NewContext()

	tmpl, err := ctx.CompileShaderUnitTemplate("emit", `
shader emit(float3 color, out closure result) {
    result = make_closure<lambert>(color);
}
`)
	require.NoError(t, err)

	// A context of an unrelated system must still link against the
	// registry the template was compiled with.
	other := NewShadingSystem().NewContext()
	inst := tmpl.MakeShaderInstance()
	require.Equal(t, Succeed, other.ResolveShaderInstance(inst))

	var result closure.TreeNode
	inst.Function()([3]float32{0, 1, 0}, &result)
	leaf, ok := result.(*closure.LeafNode)
	require.True(t, ok, "result is %T, want *LeafNode", result)
	assert.Equal(t, lambertID, leaf.ID)
}

func TestExecuteGlobalValue(t *testing.T) {
	sys := NewShadingSystem()
	ctx := sys.NewContext()

	tmpl, err := ctx.CompileShaderUnitTemplate("gv", `
shader gv(out float3 result) {
	result = global_value<base_color>;
}
`)
	require.NoError(t, err)
	assert.True(t, tmpl.UsesGlobalState())

	inst := tmpl.MakeShaderInstance()
	require.Equal(t, Succeed, ctx.ResolveShaderInstance(inst))

	globals := NewShaderGlobals()
	globals.Set("base_color", [3]float32{0.1, 0.2, 0.3})
	var result [3]float32
	inst.Function()(&result, globals)
	assert.Equal(t, [3]float32{0.1, 0.2, 0.3}, result)
}

func TestInstanceIndependence(t *testing.T) {
	sys := NewShadingSystem()
	ctx := sys.NewContext()

	tmpl, err := ctx.CompileShaderUnitTemplate("add_one", addOneSrc)
	require.NoError(t, err)

	a := tmpl.MakeShaderInstance()
	b := tmpl.MakeShaderInstance()
	require.Equal(t, Succeed, ctx.ResolveShaderInstance(a))
	require.Equal(t, Succeed, ctx.ResolveShaderInstance(b))

	var out float32
	a.Function()(float32(1), &out)
	assert.Equal(t, float32(2), out)
	b.Function()(float32(10), &out)
	assert.Equal(t, float32(11), out)

	// Resolving again is a no-op.
	assert.Equal(t, Succeed, ctx.ResolveShaderInstance(a))
}

func TestShaderGroup(t *testing.T) {
	sys := NewShadingSystem()
	ctx := sys.NewContext()
	tmpl, err := ctx.CompileShaderUnitTemplate("add_one", addOneSrc)
	require.NoError(t, err)

	grp := ctx.BeginShaderGroupTemplate("chain")
	require.Equal(t, Succeed, grp.AddShaderUnit("A", tmpl))
	require.Equal(t, Succeed, grp.AddShaderUnit("B", tmpl))
	require.Equal(t, Succeed, grp.SetRootShaderUnit("B"))
	require.Equal(t, Succeed, grp.ConnectShaderUnits("A", "out_f", "B", "in_f"))
	require.Equal(t, Succeed, grp.ExposeShaderArgument("A", "in_f"))
	require.Equal(t, Succeed, grp.ExposeShaderArgument("B", "out_f"))
	require.Equal(t, Succeed, ctx.EndShaderGroupTemplate(grp))

	args := grp.Arguments()
	require.Len(t, args, 2)
	assert.Equal(t, "A_in_f", args[0].Name)
	assert.True(t, args[1].Output)

	inst := grp.MakeShaderInstance()
	require.Equal(t, Succeed, ctx.ResolveShaderInstance(inst))

	var out float32
	inst.Function()(float32(5), &out)
	assert.Equal(t, float32(7), out)
}

func TestShaderGroupCrossContextSameName(t *testing.T) {
	sys := NewShadingSystem()
	ctx1 := sys.NewContext()
	ctx2 := sys.NewContext()

	plusOne, err := ctx1.CompileShaderUnitTemplate("same", `
shader same(float x, out float y) {
    y = x + 1.0;
}
`)
	require.NoError(t, err)
	plusHundred, err := ctx2.CompileShaderUnitTemplate("same", `
shader same(float x, out float y) {
    y = x + 100.0;
}
`)
	require.NoError(t, err)
	require.NotEqual(t, plusOne.entry, plusHundred.entry)

	grp := ctx1.BeginShaderGroupTemplate("mixed")
	require.Equal(t, Succeed, grp.AddShaderUnit("A", plusOne))
	require.Equal(t, Succeed, grp.AddShaderUnit("B", plusHundred))
	require.Equal(t, Succeed, grp.SetRootShaderUnit("B"))
	require.Equal(t, Succeed, grp.ConnectShaderUnits("A", "y", "B", "x"))
	require.Equal(t, Succeed, grp.ExposeShaderArgument("A", "x"))
	require.Equal(t, Succeed, grp.ExposeShaderArgument("B", "y"))
	require.Equal(t, Succeed, ctx1.EndShaderGroupTemplate(grp))

	inst := grp.MakeShaderInstance()
	require.Equal(t, Succeed, ctx1.ResolveShaderInstance(inst))

	var out float32
	inst.Function()(float32(0), &out)
	assert.Equal(t, float32(101), out)
}

func TestShaderGroupUnwiredUnitExecutes(t *testing.T) {
	sys := NewShadingSystem()
	ctx := sys.NewContext()
	tmpl, err := ctx.CompileShaderUnitTemplate("add_one", addOneSrc)
	require.NoError(t, err)

	// B feeds nothing and nothing feeds it; every added unit still runs
	// exactly once, so its input needs a value and its exposed output is
	// written.
	grp := ctx.BeginShaderGroupTemplate("loose")
	require.Equal(t, Succeed, grp.AddShaderUnit("A", tmpl))
	require.Equal(t, Succeed, grp.AddShaderUnit("B", tmpl))
	require.Equal(t, Succeed, grp.SetRootShaderUnit("A"))
	require.Equal(t, Succeed, grp.ExposeShaderArgument("A", "in_f"))
	require.Equal(t, Succeed, grp.ExposeShaderArgument("A", "out_f"))
	require.Equal(t, Succeed, grp.ExposeShaderArgument("B", "out_f"))
	require.Equal(t, Succeed, grp.InitShaderUnitInput("B", "in_f", FloatVal(100)))
	require.Equal(t, Succeed, ctx.EndShaderGroupTemplate(grp))

	inst := grp.MakeShaderInstance()
	require.Equal(t, Succeed, ctx.ResolveShaderInstance(inst))

	var aOut, bOut float32
	inst.Function()(float32(1), &aOut, &bOut)
	assert.Equal(t, float32(2), aOut)
	assert.Equal(t, float32(101), bOut)
}

func TestShaderGroupDiamond(t *testing.T) {
	sys := NewShadingSystem()
	ctx := sys.NewContext()
	addTmpl, err := ctx.CompileShaderUnitTemplate("add_one", addOneSrc)
	require.NoError(t, err)
	mixTmpl, err := ctx.CompileShaderUnitTemplate("mix2", mixSrc)
	require.NoError(t, err)

	grp := ctx.BeginShaderGroupTemplate("diamond")
	for _, name := range []string{"A", "B", "C"} {
		require.Equal(t, Succeed, grp.AddShaderUnit(name, addTmpl))
	}
	require.Equal(t, Succeed, grp.AddShaderUnit("D", mixTmpl))
	require.Equal(t, Succeed, grp.SetRootShaderUnit("D"))
	require.Equal(t, Succeed, grp.ConnectShaderUnits("A", "out_f", "B", "in_f"))
	require.Equal(t, Succeed, grp.ConnectShaderUnits("A", "out_f", "C", "in_f"))
	require.Equal(t, Succeed, grp.ConnectShaderUnits("B", "out_f", "D", "a"))
	require.Equal(t, Succeed, grp.ConnectShaderUnits("C", "out_f", "D", "b"))
	require.Equal(t, Succeed, grp.ExposeShaderArgument("A", "in_f"))
	require.Equal(t, Succeed, grp.ExposeShaderArgument("D", "result"))
	require.Equal(t, Succeed, ctx.EndShaderGroupTemplate(grp))

	inst := grp.MakeShaderInstance()
	require.Equal(t, Succeed, ctx.ResolveShaderInstance(inst))

	// ((x+1)+1) + ((x+1)+1)
	var out float32
	inst.Function()(float32(3), &out)
	assert.Equal(t, float32(10), out)
}

func TestShaderGroupInitValue(t *testing.T) {
	sys := NewShadingSystem()
	ctx := sys.NewContext()
	tmpl, err := ctx.CompileShaderUnitTemplate("mix2", mixSrc)
	require.NoError(t, err)

	grp := ctx.BeginShaderGroupTemplate("with_init")
	require.Equal(t, Succeed, grp.AddShaderUnit("M", tmpl))
	require.Equal(t, Succeed, grp.SetRootShaderUnit("M"))
	require.Equal(t, Succeed, grp.ExposeShaderArgument("M", "a"))
	require.Equal(t, Succeed, grp.InitShaderUnitInput("M", "b", FloatVal(100)))
	require.Equal(t, Succeed, grp.ExposeShaderArgument("M", "result"))
	require.Equal(t, Succeed, ctx.EndShaderGroupTemplate(grp))

	inst := grp.MakeShaderInstance()
	require.Equal(t, Succeed, ctx.ResolveShaderInstance(inst))

	var out float32
	inst.Function()(float32(1), &out)
	assert.Equal(t, float32(101), out)
}

func TestShaderGroupStatuses(t *testing.T) {
	sys := NewShadingSystem()
	ctx := sys.NewContext()
	tmpl, err := ctx.CompileShaderUnitTemplate("add_one", addOneSrc)
	require.NoError(t, err)

	t.Run("without root", func(t *testing.T) {
		grp := ctx.BeginShaderGroupTemplate("g")
		grp.AddShaderUnit("A", tmpl)
		assert.Equal(t, ShaderGroupWithoutRoot, ctx.EndShaderGroupTemplate(grp))
	})

	t.Run("undefined unit", func(t *testing.T) {
		grp := ctx.BeginShaderGroupTemplate("g")
		grp.AddShaderUnit("A", tmpl)
		assert.Equal(t, UndefinedShaderUnit, grp.SetRootShaderUnit("missing"))
		assert.Equal(t, UndefinedShaderUnit, grp.ConnectShaderUnits("A", "out_f", "missing", "in_f"))
		assert.Equal(t, UndefinedShaderUnit, grp.InitShaderUnitInput("missing", "in_f", FloatVal(1)))
		assert.Equal(t, UndefinedShaderUnit, grp.ExposeShaderArgument("missing", "in_f"))
	})

	t.Run("invalid argument usage", func(t *testing.T) {
		grp := ctx.BeginShaderGroupTemplate("g")
		grp.AddShaderUnit("A", tmpl)
		grp.AddShaderUnit("B", tmpl)
		// Input used as a source, output as a destination, wrong init type.
		assert.Equal(t, InvalidArgType, grp.ConnectShaderUnits("A", "in_f", "B", "in_f"))
		assert.Equal(t, InvalidArgType, grp.ConnectShaderUnits("A", "out_f", "B", "out_f"))
		assert.Equal(t, InvalidArgType, grp.InitShaderUnitInput("A", "in_f", IntVal(1)))
		assert.Equal(t, InvalidArgType, grp.InitShaderUnitInput("A", "out_f", FloatVal(1)))
	})

	t.Run("cycle", func(t *testing.T) {
		grp := ctx.BeginShaderGroupTemplate("g")
		grp.AddShaderUnit("A", tmpl)
		grp.AddShaderUnit("B", tmpl)
		grp.SetRootShaderUnit("B")
		require.Equal(t, Succeed, grp.ConnectShaderUnits("A", "out_f", "B", "in_f"))
		require.Equal(t, Succeed, grp.ConnectShaderUnits("B", "out_f", "A", "in_f"))
		grp.ExposeShaderArgument("B", "out_f")
		require.Equal(t, Succeed, ctx.EndShaderGroupTemplate(grp))

		inst := grp.MakeShaderInstance()
		assert.Equal(t, ShaderGroupWithCycles, ctx.ResolveShaderInstance(inst))
		assert.Nil(t, inst.Function())
	})

	t.Run("uninitialized input", func(t *testing.T) {
		grp := ctx.BeginShaderGroupTemplate("g")
		grp.AddShaderUnit("A", tmpl)
		grp.SetRootShaderUnit("A")
		grp.ExposeShaderArgument("A", "out_f")
		require.Equal(t, Succeed, ctx.EndShaderGroupTemplate(grp))

		inst := grp.MakeShaderInstance()
		assert.Equal(t, ArgumentWithoutInitialization, ctx.ResolveShaderInstance(inst))
	})

	t.Run("uninitialized input diagnostic", func(t *testing.T) {
		var buf bytes.Buffer
		SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))
		defer SetLogger(nil)

		grp := ctx.BeginShaderGroupTemplate("diag")
		grp.AddShaderUnit("A", tmpl)
		grp.SetRootShaderUnit("A")
		grp.ExposeShaderArgument("A", "out_f")
		require.Equal(t, Succeed, ctx.EndShaderGroupTemplate(grp))

		inst := grp.MakeShaderInstance()
		require.Equal(t, ArgumentWithoutInitialization, ctx.ResolveShaderInstance(inst))

		logged := buf.String()
		assert.Contains(t, logged, "argument without initialization")
		assert.Contains(t, logged, "group=diag")
		assert.Contains(t, logged, "unit=A")
		assert.Contains(t, logged, "arg=in_f")
	})

	t.Run("edits after seal", func(t *testing.T) {
		grp := ctx.BeginShaderGroupTemplate("g")
		grp.AddShaderUnit("A", tmpl)
		grp.SetRootShaderUnit("A")
		grp.ExposeShaderArgument("A", "in_f")
		grp.ExposeShaderArgument("A", "out_f")
		require.Equal(t, Succeed, ctx.EndShaderGroupTemplate(grp))

		assert.Equal(t, InvalidShaderGroupTemplate, grp.AddShaderUnit("B", tmpl))
		assert.Equal(t, InvalidShaderGroupTemplate, grp.SetRootShaderUnit("A"))
		assert.Equal(t, InvalidShaderGroupTemplate, ctx.EndShaderGroupTemplate(grp))
	})

	t.Run("resolve unsealed group", func(t *testing.T) {
		grp := ctx.BeginShaderGroupTemplate("g")
		grp.AddShaderUnit("A", tmpl)
		grp.SetRootShaderUnit("A")
		inst := grp.MakeShaderInstance()
		assert.Equal(t, InvalidShaderGroupTemplate, ctx.ResolveShaderInstance(inst))
	})

	t.Run("nil inputs", func(t *testing.T) {
		assert.Equal(t, InvalidInput, ctx.ResolveShaderInstance(nil))
		assert.Equal(t, InvalidInput, ctx.EndShaderGroupTemplate(nil))
		grp := ctx.BeginShaderGroupTemplate("g")
		assert.Equal(t, InvalidInput, grp.AddShaderUnit("A", nil))
		grp.AddShaderUnit("A", tmpl)
		assert.Equal(t, InvalidInput, grp.AddShaderUnit("A", tmpl))
	})
}

func TestMultiThreadedCompilation(t *testing.T) {
	sys := NewShadingSystem()
	_, err := sys.RegisterClosure("lambert", lambertVars)
	require.NoError(t, err)

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctx := sys.NewContext()
			for j := 0; j < 8; j++ {
				name := fmt.Sprintf("unit_%d_%d", i, j)
				tmpl, err := ctx.CompileShaderUnitTemplate(name, addOneSrc)
				if err != nil {
					errs <- err
					return
				}
				inst := tmpl.MakeShaderInstance()
				if st := ctx.ResolveShaderInstance(inst); st != Succeed {
					errs <- fmt.Errorf("%s: resolve returned %s", name, st)
					return
				}
				var out float32
				inst.Function()(float32(j), &out)
				if out != float32(j)+1 {
					errs <- fmt.Errorf("%s: got %v, want %v", name, out, float32(j)+1)
					return
				}
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "Succeed", Succeed.String())
	assert.Equal(t, "ShaderGroupWithCycles", ShaderGroupWithCycles.String())
	assert.Equal(t, "Unknown", Status(99).String())
}

func TestErrorsUnwrap(t *testing.T) {
	sys := NewShadingSystem()
	ctx := sys.NewContext()
	_, err := ctx.CompileShaderUnitTemplate("bad", "shader (")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrParse))
}
