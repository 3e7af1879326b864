// Package sandbox loads and runs WebAssembly guests that follow the
// __wasm_udf_ ABI.
//
// A Loader owns one wazero runtime. It compiles each module once, caches the
// compiled form by resolved path and hands out sandboxes:
//
//	loader, err := sandbox.NewLoader(ctx, sandbox.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer loader.Close(ctx)
//
//	sb, err := loader.Open(ctx, "functions.wasm")
//	if err != nil {
//		return err
//	}
//	defer sb.Close(ctx)
//
//	frame, err := sb.Call(ctx, "__wasm_udf_pow", payload)
//
// Calls on one sandbox are serialized. An Instance that traps is rebuilt
// from the compiled module before the next call, so a failed call never
// leaves corrupted linear memory behind.
//
// Native sandboxes run guest.Func handlers in-process. They share the wire
// format with wasm guests and are meant for trusted functions and tests.
package sandbox
