// Package udf turns CREATE FUNCTION ... LANGUAGE WASM definitions into
// scalar functions backed by sandboxed guests.
//
// The definition body has the form module!method. The module reference is
// handed to a ModuleLoader (usually a *sandbox.Loader) and the method names
// the guest export __wasm_udf_<method>:
//
//	loader, _ := sandbox.NewLoader(ctx, sandbox.DefaultConfig())
//	reg := function.NewRegistry()
//	reg.RegisterFactory("WASM", udf.NewFactory(loader, udf.WithSharedModules()))
//
// Every Function validates its arguments against the declared signature
// before the guest is called and checks the result against the declared
// return type. Guest failures surface as *errors.ExecError.
package udf
