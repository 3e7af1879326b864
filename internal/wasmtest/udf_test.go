package wasmtest

import (
	"context"
	"strings"
	"testing"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-udf/abi"
)

func instantiate(t *testing.T, bin []byte) (context.Context, api.Module) {
	t.Helper()
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	t.Cleanup(func() { rt.Close(ctx) })

	mod, err := rt.Instantiate(ctx, bin)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	return ctx, mod
}

func TestUDFModule_Exports(t *testing.T) {
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	compiled, err := rt.CompileModule(ctx, UDFModule())
	if err != nil {
		t.Fatalf("CompileModule: %v", err)
	}

	var got []string
	for name := range compiled.ExportedFunctions() {
		if fn, ok := abi.FunctionName(name); ok {
			got = append(got, fn)
		}
	}
	// Names plus BadSig.
	if len(got) != len(Names)+1 {
		t.Errorf("exported %d functions %v, want %d", len(got), got, len(Names)+1)
	}
	sig := compiled.ExportedFunctions()[abi.ExportName(BadSig)]
	if sig == nil || len(sig.ParamTypes()) != 1 || sig.ResultTypes()[0] != api.ValueTypeI32 {
		t.Errorf("%s should have an (i32) -> i32 signature", BadSig)
	}
	if _, ok := compiled.ExportedMemories()["memory"]; !ok {
		t.Error("memory is not exported")
	}
}

func TestUDFModule_Identity(t *testing.T) {
	ctx, mod := instantiate(t, UDFModule())

	in := []byte("hello")
	ptr, err := mod.ExportedFunction(abi.AllocExport).Call(ctx, uint64(len(in)))
	if err != nil {
		t.Fatalf("alloc: %v", err)
	}
	if !mod.Memory().Write(uint32(ptr[0]), in) {
		t.Fatal("write input")
	}

	res, err := mod.ExportedFunction(abi.ExportName(Identity)).Call(ctx, ptr[0], uint64(len(in)))
	if err != nil {
		t.Fatalf("identity: %v", err)
	}
	outPtr, outLen := abi.UnpackPtrLen(res[0])
	out, ok := mod.Memory().Read(outPtr, outLen)
	if !ok {
		t.Fatal("read output")
	}

	status, payload, err := abi.DecodeResponse(out)
	if err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}
	if status != abi.StatusOK || string(payload) != "hello" {
		t.Errorf("got %s %q, want ok %q", status, payload, "hello")
	}
}

func TestUDFModule_FixedFrames(t *testing.T) {
	ctx, mod := instantiate(t, UDFModule())

	tests := []struct {
		name   string
		status abi.Status
		msg    string
	}{
		{Fail, abi.StatusReported, FailMessage},
		{Divide, abi.StatusComputation, DivideMessage},
		{Garbage, abi.StatusOK, "not arrow"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := mod.ExportedFunction(abi.ExportName(tt.name)).Call(ctx, 0, 0)
			if err != nil {
				t.Fatalf("call: %v", err)
			}
			out, ok := mod.Memory().Read(abi.UnpackPtrLen(res[0]))
			if !ok {
				t.Fatal("read output")
			}
			status, payload, err := abi.DecodeResponse(out)
			if err != nil {
				t.Fatalf("DecodeResponse: %v", err)
			}
			if status != tt.status || string(payload) != tt.msg {
				t.Errorf("got %s %q, want %s %q", status, payload, tt.status, tt.msg)
			}
		})
	}
}

func TestUDFModule_Traps(t *testing.T) {
	for _, name := range []string{Boom, DivTrap} {
		t.Run(name, func(t *testing.T) {
			ctx, mod := instantiate(t, UDFModule())
			_, err := mod.ExportedFunction(abi.ExportName(name)).Call(ctx, 0, 0)
			if err == nil {
				t.Fatal("expected trap")
			}
			if !strings.Contains(err.Error(), "wasm error") {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestBuild_OmitsExports(t *testing.T) {
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	compiled, err := rt.CompileModule(ctx, Build(Options{Alloc: "malloc"}))
	if err != nil {
		t.Fatalf("CompileModule: %v", err)
	}
	fns := compiled.ExportedFunctions()
	if _, ok := fns["malloc"]; !ok {
		t.Error("malloc is not exported")
	}
	if _, ok := fns[abi.FreeExport]; ok {
		t.Error("free should be omitted")
	}
}

func TestBuild_FreeCounts(t *testing.T) {
	ctx, mod := instantiate(t, UDFModule())

	free := mod.ExportedFunction(abi.FreeExport)
	for range 3 {
		if _, err := free.Call(ctx, 0, 0); err != nil {
			t.Fatalf("free: %v", err)
		}
	}
	if n, _ := mod.Memory().ReadUint32Le(FreeCountOffset); n != 3 {
		t.Errorf("free count = %d, want 3", n)
	}
}

func TestBuild_TrapFree(t *testing.T) {
	ctx, mod := instantiate(t, Build(Options{Alloc: abi.AllocExport, Free: abi.FreeExport, TrapFree: true}))

	_, err := mod.ExportedFunction(abi.FreeExport).Call(ctx, 0, 0)
	if err == nil || !strings.Contains(err.Error(), "unreachable") {
		t.Errorf("free: got %v, want unreachable trap", err)
	}
}
