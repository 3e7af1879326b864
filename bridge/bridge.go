package bridge

import (
	"context"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-udf/abi"
	"github.com/wippyai/wasm-udf/codec"
	"github.com/wippyai/wasm-udf/errors"
	"github.com/wippyai/wasm-udf/sandbox"
)

// Option configures a Bridge.
type Option func(*Bridge)

// WithMetrics records every invocation in m.
func WithMetrics(m *Metrics) Option {
	return func(b *Bridge) {
		b.metrics = m
	}
}

// Bridge invokes guest functions through a sandbox. It holds no per-call
// state and is safe for concurrent use.
type Bridge struct {
	metrics *Metrics
}

// New creates a Bridge.
func New(opts ...Option) *Bridge {
	b := &Bridge{}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Invoke calls symbol once with args and returns the single-column result
// batch. The caller owns the returned record and must Release it.
func (b *Bridge) Invoke(ctx context.Context, sb sandbox.Sandbox, symbol string, args arrow.Record) (arrow.Record, error) {
	start := time.Now()
	rec, outcome, err := b.invoke(ctx, sb, symbol, args)
	b.metrics.observe(symbol, outcome, time.Since(start))

	if err != nil {
		Logger().Debug("guest invocation failed",
			zap.String("symbol", symbol),
			zap.String("outcome", string(outcome)),
			zap.Error(err))
	}
	return rec, err
}

func (b *Bridge) invoke(ctx context.Context, sb sandbox.Sandbox, symbol string, args arrow.Record) (arrow.Record, Outcome, error) {
	function := symbol
	if name, ok := abi.FunctionName(symbol); ok {
		function = name
	}

	payload, err := codec.Encode(args)
	if err != nil {
		return nil, OutcomeCodec, err
	}

	frame, err := sb.Call(ctx, symbol, payload)
	if err != nil {
		var trap *sandbox.TrapError
		if errors.As(err, &trap) {
			return nil, OutcomePanic, errors.GuestPanic(function, trap.Reason, trap)
		}
		return nil, OutcomeError, err
	}

	status, body, err := abi.DecodeResponse(frame)
	if err != nil {
		return nil, OutcomeCodec, errors.Codec(errors.PhaseDecode, "malformed response frame", err)
	}

	switch status {
	case abi.StatusReported:
		return nil, OutcomeReported, errors.GuestReported(function, string(body))
	case abi.StatusComputation:
		return nil, OutcomeComputation, errors.GuestComputation(function, string(body))
	case abi.StatusCodec:
		return nil, OutcomeCodec, errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Function(function).
			Detail("guest could not decode arguments: %s", body).
			Build()
	}

	rec, err := codec.Decode(body)
	if err != nil {
		return nil, OutcomeCodec, err
	}
	if _, err := codec.ResultColumn(rec); err != nil {
		rec.Release()
		return nil, OutcomeCodec, err
	}
	if rec.NumRows() != args.NumRows() {
		rows := rec.NumRows()
		rec.Release()
		return nil, OutcomeCodec, errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Function(function).
			Detail("result has %d rows, want %d", rows, args.NumRows()).
			Value(rows).
			Build()
	}
	return rec, OutcomeOK, nil
}

// Column invokes symbol and returns the result column alone. The caller owns
// the returned array and must Release it.
func (b *Bridge) Column(ctx context.Context, sb sandbox.Sandbox, symbol string, args arrow.Record) (arrow.Array, error) {
	rec, err := b.Invoke(ctx, sb, symbol, args)
	if err != nil {
		return nil, err
	}
	defer rec.Release()

	col := rec.Column(0)
	col.Retain()
	return col, nil
}

