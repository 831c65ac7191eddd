// Package codegen implements the LLVM backend (§4.G): declaring the
// runtime's extern-C intrinsics with exact signatures, and lowering each
// MIR construct to LLVM IR using github.com/llir/llvm's pure-Go IR
// builder. The receive-with-timeout null-check contract is the one piece
// of this package the spec calls out by name as load-bearing.
package codegen

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	lltypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/snowdamiz/meshcore/internal/mir"
	"github.com/snowdamiz/meshcore/internal/types"
)

// Codegen lowers one merged, monomorphized MirModule to an *ir.Module.
// Create with New, then call Emit exactly once.
type Codegen struct {
	Module *ir.Module

	externs map[string]*ir.Func
	funcs   map[string]*ir.Func

	blockCounter int
	strCounter   int
}

// New declares every runtime intrinsic immediately, so function bodies
// emitted later can reference any of them regardless of call order.
func New() *Codegen {
	g := &Codegen{
		Module:  ir.NewModule(),
		externs: make(map[string]*ir.Func),
		funcs:   make(map[string]*ir.Func),
	}
	g.declareIntrinsics()
	return g
}

// CompileModule is the one-shot entry point: declare intrinsics, lower
// every function in m, and return the finished LLVM module.
func CompileModule(m *mir.MirModule) (*ir.Module, error) {
	g := New()
	if err := g.Emit(m); err != nil {
		return nil, err
	}
	return g.Module, nil
}

// Emit declares every function's signature up front (so forward and
// mutually recursive calls resolve), then lowers each body.
func (g *Codegen) Emit(m *mir.MirModule) error {
	for i := range m.Functions {
		fn := &m.Functions[i]
		llParams := make([]*ir.Param, len(fn.Params))
		for j, p := range fn.Params {
			llParams[j] = ir.NewParam(p.Name, llvmType(p.Ty))
		}
		g.funcs[fn.Name] = g.Module.NewFunc(fn.Name, llvmRetType(fn.Ret), llParams...)
	}

	for i := range m.Functions {
		fn := &m.Functions[i]
		if err := g.emitFunc(fn); err != nil {
			return fmt.Errorf("codegen %s: %w", fn.Name, err)
		}
	}
	return nil
}

func (g *Codegen) emitFunc(fn *mir.MirFunction) error {
	f := g.funcs[fn.Name]

	vars := make(map[string]value.Value, len(fn.Params))
	for i, p := range fn.Params {
		vars[p.Name] = f.Params[i]
	}

	fc := &fctx{g: g, f: f, vars: vars}
	fc.block = f.NewBlock(fc.label("entry"))
	result, err := fc.emit(fn.Body)
	if err != nil {
		return err
	}

	if isUnit(fn.Ret) {
		fc.block.NewRet(nil)
	} else {
		fc.block.NewRet(result)
	}
	return nil
}

func isUnit(t types.Type) bool {
	con, ok := t.(types.Con)
	return ok && con.Name == "Unit"
}

// fctx is the mutable state threaded through one function body's
// emission: the function being built, the current insertion block (which
// moves as If/ActorReceive split control flow), and the local variable
// environment.
type fctx struct {
	g     *Codegen
	f     *ir.Func
	block *ir.Block
	vars  map[string]value.Value
}

func (fc *fctx) label(prefix string) string {
	fc.g.blockCounter++
	return fmt.Sprintf("%s.%d", prefix, fc.g.blockCounter)
}

func (fc *fctx) emit(e mir.MirExpr) (value.Value, error) {
	switch n := e.(type) {
	case mir.IntLit:
		return constant.NewInt(lltypes.I64, n.Value), nil
	case mir.FloatLit:
		return constant.NewFloat(lltypes.Double, n.Value), nil
	case mir.BoolLit:
		return constant.NewBool(n.Value), nil
	case mir.StringLit:
		return fc.emitStringLit(n.Value), nil
	case mir.Local:
		v, ok := fc.vars[n.Name]
		if !ok {
			return nil, fmt.Errorf("codegen: unbound local %q", n.Name)
		}
		return v, nil
	case mir.Let:
		v, err := fc.emit(n.Value)
		if err != nil {
			return nil, err
		}
		fc.vars[n.Name] = v
		return fc.emit(n.Body)
	case mir.Call:
		return fc.emitCall(n)
	case mir.If:
		return fc.emitIf(n)
	case mir.TupleExpr:
		return fc.emitAggregate(n.Elems)
	case mir.ListExpr:
		return fc.emitAggregate(n.Elems)
	case mir.ConstructExpr:
		return fc.emitAggregate(n.Args)
	case mir.Send:
		return fc.emitSend(n)
	case mir.Spawn:
		return fc.emitSpawn(n)
	case mir.ActorReceive:
		return fc.emitReceive(n)
	case mir.Block:
		return fc.emitBlock(n)
	default:
		return nil, fmt.Errorf("codegen: unhandled MIR node %T", e)
	}
}

func (fc *fctx) emitBlock(n mir.Block) (value.Value, error) {
	var last value.Value = constant.NewNull(handlePtr)
	for _, e := range n.Exprs {
		v, err := fc.emit(e)
		if err != nil {
			return nil, err
		}
		last = v
	}
	return last, nil
}

// emitStringLit materializes s as a private global char array and returns
// a pointer to its first element.
func (fc *fctx) emitStringLit(s string) value.Value {
	fc.g.strCounter++
	name := fmt.Sprintf("str.%d", fc.g.strCounter)

	data := constant.NewCharArrayFromString(s + "\x00")
	global := fc.g.Module.NewGlobalDef(name, data)
	global.Immutable = true

	zero := constant.NewInt(lltypes.I32, 0)
	return constant.NewGetElementPtr(global.ContentType, global, zero, zero)
}

func (fc *fctx) emitCall(n mir.Call) (value.Value, error) {
	args := make([]value.Value, len(n.Args))
	for i, a := range n.Args {
		v, err := fc.emit(a)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	var callee *ir.Func
	if n.Intrinsic {
		f, ok := fc.g.externs[n.Callee]
		if !ok {
			return nil, fmt.Errorf("codegen: unknown intrinsic %q", n.Callee)
		}
		callee = f
	} else {
		f, ok := fc.g.funcs[n.Callee]
		if !ok {
			return nil, fmt.Errorf("codegen: unknown function %q", n.Callee)
		}
		callee = f
	}

	call := fc.block.NewCall(callee, args...)
	if callee.Sig.RetType == lltypes.Void {
		return constant.NewNull(handlePtr), nil
	}
	return call, nil
}

func (fc *fctx) emitIf(n mir.If) (value.Value, error) {
	cond, err := fc.emit(n.Cond)
	if err != nil {
		return nil, err
	}

	thenBlock := fc.f.NewBlock(fc.label("if.then"))
	elseBlock := fc.f.NewBlock(fc.label("if.else"))
	mergeBlock := fc.f.NewBlock(fc.label("if.merge"))

	fc.block.NewCondBr(cond, thenBlock, elseBlock)

	fc.block = thenBlock
	thenVal, err := fc.emit(n.Then)
	if err != nil {
		return nil, err
	}
	thenExit := fc.block
	thenExit.NewBr(mergeBlock)

	fc.block = elseBlock
	elseVal, err := fc.emit(n.Else)
	if err != nil {
		return nil, err
	}
	elseExit := fc.block
	elseExit.NewBr(mergeBlock)

	fc.block = mergeBlock
	phi := mergeBlock.NewPhi(
		ir.NewIncoming(thenVal, thenExit),
		ir.NewIncoming(elseVal, elseExit),
	)
	return phi, nil
}

// emitAggregate lowers a tuple/list/construct literal to a GC-allocated
// cell: one word per element behind a leading tag word, matching
// internal/heap's single-handle-per-value layout (§3.1, §4.A). Scalars
// (Int/Float/Bool) are widened to a uniform 64-bit word for storage;
// structural field layout is otherwise the heap package's concern, not
// this backend's.
func (fc *fctx) emitAggregate(elems []mir.MirExpr) (value.Value, error) {
	size := int64(len(elems)+1) * 8
	allocCall := fc.block.NewCall(fc.g.externs[symGCAlloc], constant.NewInt(lltypes.I64, size))
	base := fc.block.NewBitCast(allocCall, lltypes.NewPointer(lltypes.I64))

	for i, el := range elems {
		v, err := fc.emit(el)
		if err != nil {
			return nil, err
		}
		idx := constant.NewInt(lltypes.I64, int64(i+1))
		slot := fc.block.NewGetElementPtr(lltypes.I64, base, idx)
		fc.block.NewStore(fc.toWord(v), slot)
	}
	return allocCall, nil
}

// toWord reinterprets v as a 64-bit word so it can be stored in a
// uniform aggregate slot alongside values of other scalar types.
func (fc *fctx) toWord(v value.Value) value.Value {
	switch v.Type() {
	case lltypes.I64:
		return v
	case lltypes.Double:
		return fc.block.NewBitCast(v, lltypes.I64)
	case lltypes.I1:
		return fc.block.NewZExt(v, lltypes.I64)
	default:
		if _, ok := v.Type().(*lltypes.PointerType); ok {
			return fc.block.NewPtrToInt(v, lltypes.I64)
		}
		return v
	}
}

func (fc *fctx) emitSend(n mir.Send) (value.Value, error) {
	target, err := fc.emit(n.Target)
	if err != nil {
		return nil, err
	}
	msg, err := fc.emit(n.Msg)
	if err != nil {
		return nil, err
	}
	fc.block.NewCall(fc.g.externs[symActorSend], target, msg)
	return constant.NewNull(handlePtr), nil
}

func (fc *fctx) emitSpawn(n mir.Spawn) (value.Value, error) {
	body, err := fc.emit(n.Body)
	if err != nil {
		return nil, err
	}
	return fc.block.NewCall(fc.g.externs[symActorSpawn], body), nil
}

// emitReceive is the canonical contract §4.G calls out by name: a
// timeout-bearing receive must null-check the runtime's returned message
// pointer and give both the timeout and message branches a shared merge
// point producing the same result type. Omitting the null check (jumping
// straight to arm processing) is the exact bug this function exists to
// prevent.
func (fc *fctx) emitReceive(n mir.ActorReceive) (value.Value, error) {
	resultTy := llvmType(n.Type())

	if n.TimeoutMs == nil {
		// No `after` clause: block indefinitely using the
		// blockForeverTimeoutMs sentinel, distinct from `after 0`'s
		// timeout_ms == 0 (the only non-blocking case). The runtime
		// still must be null-checked: a spurious return with no match
		// (e.g. a woken-but-unmatched retry) loops back into another
		// call rather than binding a null handle to an arm.
		resultAlloca := fc.f.Blocks[0].NewAlloca(resultTy)

		loopBB := fc.f.NewBlock(fc.label("receive.loop"))
		msgBB := fc.f.NewBlock(fc.label("receive.msg"))
		mergeBB := fc.f.NewBlock(fc.label("receive.merge"))

		fc.block.NewBr(loopBB)

		fc.block = loopBB
		msg := fc.block.NewCall(fc.g.externs[symActorReceive],
			constant.NewInt(lltypes.I64, blockForeverTimeoutMs))
		isNull := fc.block.NewICmp(enum.IPredEQ, msg, constant.NewNull(handlePtr))
		fc.block.NewCondBr(isNull, loopBB, msgBB)

		fc.block = msgBB
		msgResult, err := fc.emitArmBody(n.Arms, msg)
		if err != nil {
			return nil, err
		}
		fc.block.NewStore(msgResult, resultAlloca)
		fc.block.NewBr(mergeBB)

		fc.block = mergeBB
		return mergeBB.NewLoad(resultTy, resultAlloca), nil
	}

	timeoutVal, err := fc.emit(n.TimeoutMs)
	if err != nil {
		return nil, err
	}

	// 1. Call the runtime receive intrinsic passing timeout_ms.
	msg := fc.block.NewCall(fc.g.externs[symActorReceive], fc.toI64(timeoutVal))

	resultAlloca := fc.f.Blocks[0].NewAlloca(resultTy)

	timeoutBB := fc.f.NewBlock(fc.label("receive.timeout"))
	msgBB := fc.f.NewBlock(fc.label("receive.msg"))
	mergeBB := fc.f.NewBlock(fc.label("receive.merge"))

	// 2. Null check on the returned message pointer.
	isNull := fc.block.NewICmp(enum.IPredEQ, msg, constant.NewNull(handlePtr))
	fc.block.NewCondBr(isNull, timeoutBB, msgBB)

	fc.block = timeoutBB
	timeoutResult, err := fc.emit(n.TimeoutBody)
	if err != nil {
		return nil, err
	}
	fc.block.NewStore(timeoutResult, resultAlloca)
	fc.block.NewBr(mergeBB)

	fc.block = msgBB
	msgResult, err := fc.emitArmBody(n.Arms, msg)
	if err != nil {
		return nil, err
	}
	fc.block.NewStore(msgResult, resultAlloca)
	fc.block.NewBr(mergeBB)

	// 3. Both branches produce the common result type.
	fc.block = mergeBB
	return mergeBB.NewLoad(resultTy, resultAlloca), nil
}

// emitArmBody binds the first arm's capture pattern to msg and lowers its
// body. Patterns are whole-message capture bindings only, matching the
// simplification internal/typeck and internal/mir already apply to
// receive arms; structural multi-arm dispatch is the mailbox's job
// (internal/actorsys's popMatch), not this static backend's.
func (fc *fctx) emitArmBody(arms []mir.MatchArm, msg value.Value) (value.Value, error) {
	if len(arms) == 0 {
		return nil, fmt.Errorf("codegen: receive has no arms")
	}
	arm := arms[0]
	if local, ok := arm.Pattern.(mir.Local); ok {
		fc.vars[local.Name] = msg
	}
	return fc.emit(arm.Body)
}

func (fc *fctx) toI64(v value.Value) value.Value {
	if v.Type() == lltypes.I64 {
		return v
	}
	return fc.block.NewSExt(v, lltypes.I64)
}
