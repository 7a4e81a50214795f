package onnx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	ort "github.com/shota3506/onnxruntime-purego/onnxruntime"
)

// ErrFloat16Unsupported reports a graph that declares float16 tensors.
// The binding's generic tensor constructor has no FLOAT16 mapping (a
// []uint16 slice becomes a UINT16 tensor) and its accessor rejects
// FLOAT16 values, so half precision cannot cross the Go/ORT boundary.
var ErrFloat16Unsupported = errors.New("float16 tensors unsupported by onnxruntime binding")

// RunnerConfig holds ORT library settings for creating runners.
type RunnerConfig struct {
	LibraryPath string
	APIVersion  uint32
	// Seed is recorded for reproducibility tracing. The purego binding
	// exposes no global seed hook, so the seed is logged rather than
	// pushed into ORT.
	Seed int64
}

// Runner wraps an ORT session for a single ONNX graph.
type Runner struct {
	name    string
	runtime *ort.Runtime
	env     *ort.Env
	session *ort.Session
	meta    Session
}

// NewRunner creates a runner for a single ONNX graph session. Session
// construction is expensive (graph optimization, accelerator binding):
// build once per process and reuse across requests.
func NewRunner(meta Session, cfg RunnerConfig) (*Runner, error) {
	if cfg.APIVersion == 0 {
		cfg.APIVersion = 23
	}

	if err := checkBindingSupport(meta); err != nil {
		return nil, err
	}

	runtime, err := ort.NewRuntime(cfg.LibraryPath, cfg.APIVersion)
	if err != nil {
		return nil, fmt.Errorf("ort runtime for %q: %w", meta.Name, err)
	}

	env, err := runtime.NewEnv("voiceprep-"+meta.Name, ort.LoggingLevelWarning)
	if err != nil {
		_ = runtime.Close()
		return nil, fmt.Errorf("ort env for %q: %w", meta.Name, err)
	}

	session, err := runtime.NewSession(env, meta.Path, nil)
	if err != nil {
		env.Close()
		_ = runtime.Close()

		return nil, fmt.Errorf("ort session for %q (%s): %w", meta.Name, meta.Path, err)
	}

	slog.Info("created ORT session", "graph", meta.Name, "seed", cfg.Seed)

	return &Runner{
		name:    meta.Name,
		runtime: runtime,
		env:     env,
		session: session,
		meta:    meta,
	}, nil
}

// Run executes the ONNX graph with the given named input tensors.
func (r *Runner) Run(ctx context.Context, inputs map[string]*Tensor) (map[string]*Tensor, error) {
	ortInputs := make(map[string]*ort.Value, len(inputs))
	for name, t := range inputs {
		v, err := tensorToORT(r.runtime, t)
		if err != nil {
			closeORTValues(ortInputs)
			return nil, fmt.Errorf("input %q: %w", name, err)
		}

		ortInputs[name] = v
	}

	defer closeORTValues(ortInputs)

	ortOutputs, err := r.session.Run(ctx, ortInputs)
	if err != nil {
		return nil, fmt.Errorf("run %q: %w", r.name, err)
	}
	defer closeORTValues(ortOutputs)

	results := make(map[string]*Tensor, len(ortOutputs))
	for name, v := range ortOutputs {
		t, err := ortToTensor(v)
		if err != nil {
			return nil, fmt.Errorf("output %q: %w", name, err)
		}

		results[name] = t
	}

	return results, nil
}

// Close releases all ORT resources. Safe to call multiple times.
func (r *Runner) Close() {
	if r.session != nil {
		r.session.Close()
		r.session = nil
	}

	if r.env != nil {
		r.env.Close()
		r.env = nil
	}

	if r.runtime != nil {
		_ = r.runtime.Close()
		r.runtime = nil
	}
}

// Name returns the graph name from the manifest.
func (r *Runner) Name() string {
	return r.name
}

// checkBindingSupport rejects graphs whose declared tensor dtypes
// cannot be represented through the binding, so a bad graph fails at
// session construction rather than on the first request.
func checkBindingSupport(meta Session) error {
	check := func(kind string, nodes []NodeInfo) error {
		for _, n := range nodes {
			dt, err := CanonicalDType(n.DType)
			if err != nil {
				continue
			}
			if _, err := ortElementType(dt); err != nil {
				return fmt.Errorf("graph %q %s %q: %w", meta.Name, kind, n.Name, err)
			}
		}
		return nil
	}

	if err := check("input", meta.Inputs); err != nil {
		return err
	}
	return check("output", meta.Outputs)
}

// ortElementType returns the ORT element type the binding's generic
// constructor assigns to a tensor of the given dtype.
func ortElementType(dt TensorDType) (ort.ONNXTensorElementDataType, error) {
	switch dt {
	case DTypeFloat32:
		return ort.ONNXTensorElementDataTypeFloat, nil
	case DTypeInt32:
		return ort.ONNXTensorElementDataTypeInt32, nil
	case DTypeInt64:
		return ort.ONNXTensorElementDataTypeInt64, nil
	case DTypeFloat16:
		return ort.ONNXTensorElementDataTypeUndefined, fmt.Errorf("dtype %s: %w", dt, ErrFloat16Unsupported)
	default:
		return ort.ONNXTensorElementDataTypeUndefined, fmt.Errorf("unsupported tensor dtype %s", dt)
	}
}

func tensorToORT(runtime *ort.Runtime, t *Tensor) (*ort.Value, error) {
	if _, err := ortElementType(t.DType()); err != nil {
		return nil, err
	}

	switch data := t.Data().(type) {
	case []float32:
		return ort.NewTensorValue(runtime, data, t.Shape())
	case []int32:
		return ort.NewTensorValue(runtime, data, t.Shape())
	case []int64:
		return ort.NewTensorValue(runtime, data, t.Shape())
	default:
		return nil, fmt.Errorf("unsupported tensor dtype %T", data)
	}
}

func ortToTensor(v *ort.Value) (*Tensor, error) {
	elemType, err := v.GetTensorElementType()
	if err != nil {
		return nil, fmt.Errorf("get element type: %w", err)
	}

	switch elemType {
	case ort.ONNXTensorElementDataTypeFloat:
		data, shape, err := ort.GetTensorData[float32](v)
		if err != nil {
			return nil, err
		}

		return NewTensor(data, shape)
	case ort.ONNXTensorElementDataTypeFloat16:
		// GetTensorData[uint16] would demand a UINT16 element type and
		// fail with an opaque mismatch, so reject FLOAT16 outright.
		return nil, ErrFloat16Unsupported
	case ort.ONNXTensorElementDataTypeInt32:
		data, shape, err := ort.GetTensorData[int32](v)
		if err != nil {
			return nil, err
		}

		return NewTensor(data, shape)
	case ort.ONNXTensorElementDataTypeInt64:
		data, shape, err := ort.GetTensorData[int64](v)
		if err != nil {
			return nil, err
		}

		return NewTensor(data, shape)
	default:
		return nil, fmt.Errorf("unsupported ORT element type %d", elemType)
	}
}

func closeORTValues(vals map[string]*ort.Value) {
	for _, v := range vals {
		if v != nil {
			v.Close()
		}
	}
}
