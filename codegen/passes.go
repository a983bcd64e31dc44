package codegen

// Optimize runs the pass pipeline over every function in the module:
// instruction combining, reassociation, common subexpression
// elimination, dead code elimination and control flow simplification.
func Optimize(m *Module) {
	for _, fn := range m.Functions {
		instCombine(fn)
		reassociate(fn)
		cse(fn)
		dce(fn)
		simplifyCFG(fn)
	}
}

// rewriteOperands applies a value replacement map to every operand in
// the function.
func rewriteOperands(fn *Function, repl map[Value]Value) {
	if len(repl) == 0 {
		return
	}
	res := func(v Value) Value {
		for {
			r, ok := repl[v]
			if !ok {
				return v
			}
			v = r
		}
	}
	for i := range fn.Instrs {
		switch k := fn.Instrs[i].Kind.(type) {
		case Load:
			k.Ptr = res(k.Ptr)
			fn.Instrs[i].Kind = k
		case Store:
			k.Ptr, k.Val = res(k.Ptr), res(k.Val)
			fn.Instrs[i].Kind = k
		case FieldPtr:
			k.Ptr = res(k.Ptr)
			fn.Instrs[i].Kind = k
		case Extract:
			k.Agg = res(k.Agg)
			fn.Instrs[i].Kind = k
		case Compose:
			for j := range k.Elems {
				k.Elems[j] = res(k.Elems[j])
			}
			fn.Instrs[i].Kind = k
		case Binary:
			k.L, k.R = res(k.L), res(k.R)
			fn.Instrs[i].Kind = k
		case Unary:
			k.V = res(k.V)
			fn.Instrs[i].Kind = k
		case Call:
			for j := range k.Args {
				k.Args[j] = res(k.Args[j])
			}
			fn.Instrs[i].Kind = k
		case MakeClosure:
			for j := range k.Args {
				k.Args[j] = res(k.Args[j])
			}
			fn.Instrs[i].Kind = k
		case ClosureAdd:
			k.L, k.R = res(k.L), res(k.R)
			fn.Instrs[i].Kind = k
		case ClosureMul:
			k.W, k.C = res(k.W), res(k.C)
			fn.Instrs[i].Kind = k
		case GlobalValue:
			fn.Instrs[i].Kind = k
		case Ret:
			if k.HasVal {
				k.Val = res(k.Val)
				fn.Instrs[i].Kind = k
			}
		case CondBr:
			k.Cond = res(k.Cond)
			fn.Instrs[i].Kind = k
		}
	}
}

// constOf returns the constant behind a value, if it is one.
func constOf(fn *Function, v Value) (any, bool) {
	switch k := fn.Instrs[v].Kind.(type) {
	case ConstInt:
		return k.V, true
	case ConstFloat:
		return k.V, true
	case ConstDouble:
		return k.V, true
	case ConstBool:
		return k.V, true
	default:
		return nil, false
	}
}

func constKind(v any) (InstrKind, bool) {
	switch n := v.(type) {
	case int32:
		return ConstInt{V: n}, true
	case float32:
		return ConstFloat{V: n}, true
	case float64:
		return ConstDouble{V: n}, true
	case bool:
		return ConstBool{V: n}, true
	default:
		return nil, false
	}
}

func isZero(v any) bool {
	switch n := v.(type) {
	case int32:
		return n == 0
	case float32:
		return n == 0
	case float64:
		return n == 0
	default:
		return false
	}
}

func isOne(v any) bool {
	switch n := v.(type) {
	case int32:
		return n == 1
	case float32:
		return n == 1
	case float64:
		return n == 1
	default:
		return false
	}
}

// instCombine folds constant expressions and applies algebraic
// identities. Folded instructions are rewritten into constants in
// place; identity results are redirected through a replacement map.
func instCombine(fn *Function) {
	repl := make(map[Value]Value)
	for i := range fn.Instrs {
		v := Value(i)
		switch k := fn.Instrs[i].Kind.(type) {
		case Binary:
			lc, lok := constOf(fn, k.L)
			rc, rok := constOf(fn, k.R)
			if lok && rok {
				if folded := evalBinary(k.Op, lc, rc); folded != nil {
					if ck, ok := constKind(folded); ok {
						fn.Instrs[i].Kind = ck
						continue
					}
				}
			}
			switch k.Op {
			case OpAdd:
				if lok && isZero(lc) {
					repl[v] = k.R
				} else if rok && isZero(rc) {
					repl[v] = k.L
				}
			case OpSub:
				if rok && isZero(rc) {
					repl[v] = k.L
				}
			case OpMul:
				if lok && isOne(lc) {
					repl[v] = k.R
				} else if rok && isOne(rc) {
					repl[v] = k.L
				} else if lok && isZero(lc) {
					repl[v] = k.L
				} else if rok && isZero(rc) {
					repl[v] = k.R
				}
			case OpDiv:
				if rok && isOne(rc) {
					repl[v] = k.L
				}
			}
		case Unary:
			if c, ok := constOf(fn, k.V); ok {
				if folded := evalUnary(k.Op, c); folded != nil {
					if ck, ok := constKind(folded); ok {
						fn.Instrs[i].Kind = ck
					}
				}
			}
		}
	}
	rewriteOperands(fn, repl)
}

// reassociate canonicalizes commutative operations so the constant
// operand, if any, sits on the right. This exposes identities and makes
// equal expressions syntactically equal for CSE.
func reassociate(fn *Function) {
	for i := range fn.Instrs {
		k, ok := fn.Instrs[i].Kind.(Binary)
		if !ok || !k.Op.Commutative() {
			continue
		}
		_, lok := constOf(fn, k.L)
		_, rok := constOf(fn, k.R)
		if lok && !rok {
			k.L, k.R = k.R, k.L
			fn.Instrs[i].Kind = k
		}
	}
}

// cse removes duplicate pure expressions within each block. Only
// comparable instruction kinds participate; anything touching memory or
// control flow is left alone.
func cse(fn *Function) {
	repl := make(map[Value]Value)
	res := func(v Value) Value {
		for {
			r, ok := repl[v]
			if !ok {
				return v
			}
			v = r
		}
	}
	for bi := range fn.Blocks {
		seen := make(map[InstrKind]Value)
		for _, v := range fn.Blocks[bi].Vals {
			k := fn.Instrs[v].Kind
			// Canonicalize operands first so chained duplicates hash
			// to the same key.
			switch kk := k.(type) {
			case Binary:
				kk.L, kk.R = res(kk.L), res(kk.R)
				k = kk
			case Unary:
				kk.V = res(kk.V)
				k = kk
			case Extract:
				kk.Agg = res(kk.Agg)
				k = kk
			case ConstInt, ConstFloat, ConstDouble, ConstBool:
			default:
				continue
			}
			if prev, ok := seen[k]; ok {
				repl[v] = prev
			} else {
				seen[k] = v
			}
		}
	}
	rewriteOperands(fn, repl)
}

// dce drops pure instructions whose values are never used.
func dce(fn *Function) {
	used := make([]bool, len(fn.Instrs))
	for i := range fn.Instrs {
		switch k := fn.Instrs[i].Kind.(type) {
		case Load:
			used[k.Ptr] = true
		case Store:
			used[k.Ptr], used[k.Val] = true, true
		case FieldPtr:
			used[k.Ptr] = true
		case Extract:
			used[k.Agg] = true
		case Compose:
			for _, e := range k.Elems {
				used[e] = true
			}
		case Binary:
			used[k.L], used[k.R] = true, true
		case Unary:
			used[k.V] = true
		case Call:
			for _, a := range k.Args {
				used[a] = true
			}
		case MakeClosure:
			for _, a := range k.Args {
				used[a] = true
			}
		case ClosureAdd:
			used[k.L], used[k.R] = true, true
		case ClosureMul:
			used[k.W], used[k.C] = true, true
		case Ret:
			if k.HasVal {
				used[k.Val] = true
			}
		case CondBr:
			used[k.Cond] = true
		}
	}
	for bi := range fn.Blocks {
		vals := fn.Blocks[bi].Vals[:0]
		for _, v := range fn.Blocks[bi].Vals {
			if used[v] || HasSideEffects(fn.Instrs[v].Kind) {
				vals = append(vals, v)
			}
		}
		fn.Blocks[bi].Vals = vals
	}
}

// simplifyCFG threads trivial jumps and removes unreachable blocks.
func simplifyCFG(fn *Function) {
	if len(fn.Blocks) == 0 {
		return
	}
	// Thread branches through blocks that only jump elsewhere.
	forward := func(target int) int {
		for hops := 0; hops < len(fn.Blocks); hops++ {
			b := fn.Blocks[target]
			if len(b.Vals) != 1 {
				return target
			}
			br, ok := fn.Instrs[b.Vals[0]].Kind.(Br)
			if !ok || br.Target == target {
				return target
			}
			target = br.Target
		}
		return target
	}
	for i := range fn.Instrs {
		switch k := fn.Instrs[i].Kind.(type) {
		case Br:
			k.Target = forward(k.Target)
			fn.Instrs[i].Kind = k
		case CondBr:
			k.Then = forward(k.Then)
			k.Else = forward(k.Else)
			fn.Instrs[i].Kind = k
		}
	}
	// Drop blocks unreachable from entry.
	reach := make([]bool, len(fn.Blocks))
	var visit func(int)
	visit = func(bi int) {
		if reach[bi] {
			return
		}
		reach[bi] = true
		for _, v := range fn.Blocks[bi].Vals {
			switch k := fn.Instrs[v].Kind.(type) {
			case Br:
				visit(k.Target)
			case CondBr:
				visit(k.Then)
				visit(k.Else)
			}
		}
	}
	visit(0)
	remap := make([]int, len(fn.Blocks))
	kept := fn.Blocks[:0]
	for bi := range fn.Blocks {
		if reach[bi] {
			remap[bi] = len(kept)
			kept = append(kept, fn.Blocks[bi])
		}
	}
	fn.Blocks = kept
	for i := range fn.Instrs {
		switch k := fn.Instrs[i].Kind.(type) {
		case Br:
			k.Target = remap[k.Target]
			fn.Instrs[i].Kind = k
		case CondBr:
			k.Then, k.Else = remap[k.Then], remap[k.Else]
			fn.Instrs[i].Kind = k
		}
	}
}
