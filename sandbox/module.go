package sandbox

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-udf/abi"
	"github.com/wippyai/wasm-udf/errors"
)

// Signature of every function exported under the UDF convention:
// (ptr i32, len i32) -> i64.
var (
	callParams  = []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}
	callResults = []api.ValueType{api.ValueTypeI64}
)

// Module is a compiled guest. It is owned by its Loader and stays valid
// until the Loader is closed.
type Module struct {
	loader   *Loader
	compiled wazero.CompiledModule
	name     string
}

// Name returns the resolved path or name the module was loaded under.
func (m *Module) Name() string {
	return m.name
}

// Exports returns the names of all exported functions in sorted order.
func (m *Module) Exports() []string {
	defs := m.compiled.ExportedFunctions()
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Functions returns the function names declared through the __wasm_udf_
// export convention. Exports with another signature are skipped.
func (m *Module) Functions() []string {
	defs := m.compiled.ExportedFunctions()
	var names []string
	for _, export := range m.Exports() {
		name, ok := abi.FunctionName(export)
		if ok && checkSignature(errors.PhaseLoad, m.name, export, defs[export]) == nil {
			names = append(names, name)
		}
	}
	return names
}

// HasExport reports whether the module exports a function named symbol.
func (m *Module) HasExport(symbol string) bool {
	_, ok := m.compiled.ExportedFunctions()[symbol]
	return ok
}

// CheckExport returns an error unless symbol is exported with the call
// signature (i32, i32) -> i64.
func (m *Module) CheckExport(symbol string) error {
	def, ok := m.compiled.ExportedFunctions()[symbol]
	if !ok {
		return errors.MissingExport(m.name, symbol)
	}
	return checkSignature(errors.PhaseLoad, m.name, symbol, def)
}

func checkSignature(phase errors.Phase, module, symbol string, def api.FunctionDefinition) error {
	if slices.Equal(def.ParamTypes(), callParams) && slices.Equal(def.ResultTypes(), callResults) {
		return nil
	}
	return errors.New(phase, errors.KindTypeMismatch).
		Detail("wasm function %q in module %q has signature %s, want (i32, i32) -> i64",
			symbol, module, formatSignature(def)).
		Value(symbol).
		Build()
}

func formatSignature(def api.FunctionDefinition) string {
	names := func(types []api.ValueType) string {
		parts := make([]string, len(types))
		for i, t := range types {
			parts[i] = api.ValueTypeName(t)
		}
		return strings.Join(parts, ", ")
	}
	return fmt.Sprintf("(%s) -> (%s)", names(def.ParamTypes()), names(def.ResultTypes()))
}

// Instantiate creates a fresh instance with its own linear memory.
func (m *Module) Instantiate(ctx context.Context) (*Instance, error) {
	inst := newInstance(m)
	if err := inst.instantiate(ctx); err != nil {
		return nil, err
	}
	return inst, nil
}
