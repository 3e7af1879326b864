// Package function is the contract between a columnar query engine and the
// scalar functions it calls.
//
// A Registry maps declared function names to Scalar implementations. Each
// language (for example WASM) plugs in a Factory that turns a Definition
// into a Scalar:
//
//	reg := function.NewRegistry()
//	reg.RegisterFactory("WASM", udf.NewFactory(loader))
//
//	err := reg.CreateFunction(ctx, function.Definition{
//		Name:       "pow",
//		Args:       []function.Arg{{Type: arrow.PrimitiveTypes.Float64}, {Type: arrow.PrimitiveTypes.Float64}},
//		ReturnType: arrow.PrimitiveTypes.Float64,
//		Language:   "WASM",
//		Body:       "functions.wasm!pow",
//	})
//
//	out, err := reg.Invoke(ctx, "pow", []arrow.Array{base, exponent})
//
// Arguments are validated against the declared signature before a function
// runs, and results are checked against the declared return type.
package function
