// Package safetensors serializes numeric arrays into the safetensors
// container: an 8-byte little-endian header length, a JSON header
// describing dtype/shape/offsets per tensor, then the raw data. The
// format is self-describing, so consumers recover each array's shape
// and numeric type without out-of-band knowledge.
package safetensors

import (
	"fmt"
	"math"
)

const (
	dtypeF32 = "F32"
	dtypeF16 = "F16"
	dtypeI64 = "I64"
)

// Tensor holds one named array. Exactly one of the typed payloads is
// set, selected by DType. F16 data is carried as raw IEEE 754 half bits.
type Tensor struct {
	Name  string
	DType string
	Shape []int64

	F32 []float32
	F16 []uint16
	I64 []int64
}

// NewF32 builds a float32 tensor.
func NewF32(name string, shape []int64, data []float32) Tensor {
	return Tensor{Name: name, DType: dtypeF32, Shape: append([]int64(nil), shape...), F32: data}
}

// NewF16 builds a half-precision tensor from raw half bits.
func NewF16(name string, shape []int64, halfBits []uint16) Tensor {
	return Tensor{Name: name, DType: dtypeF16, Shape: append([]int64(nil), shape...), F16: halfBits}
}

// NewI64 builds an int64 tensor.
func NewI64(name string, shape []int64, data []int64) Tensor {
	return Tensor{Name: name, DType: dtypeI64, Shape: append([]int64(nil), shape...), I64: data}
}

// ElemCount returns the number of elements implied by the shape.
// An empty shape is a scalar (one element).
func (t Tensor) ElemCount() (int64, error) {
	return shapeElementCount(t.Shape)
}

// Float32s returns the tensor data widened to float32. I64 tensors are
// rejected; use Int64s for those.
func (t Tensor) Float32s() ([]float32, error) {
	switch t.DType {
	case dtypeF32:
		return t.F32, nil
	case dtypeF16:
		out := make([]float32, len(t.F16))
		for i, bits := range t.F16 {
			out[i] = Float16ToFloat32(bits)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("safetensors: tensor %q has dtype %s, not a float type", t.Name, t.DType)
	}
}

// Int64s returns the data of an I64 tensor.
func (t Tensor) Int64s() ([]int64, error) {
	if t.DType != dtypeI64 {
		return nil, fmt.Errorf("safetensors: tensor %q has dtype %s, want I64", t.Name, t.DType)
	}
	return t.I64, nil
}

func (t Tensor) payloadLen() int {
	switch t.DType {
	case dtypeF32:
		return len(t.F32)
	case dtypeF16:
		return len(t.F16)
	case dtypeI64:
		return len(t.I64)
	default:
		return 0
	}
}

func dtypeBytes(dtype string) (int, error) {
	switch dtype {
	case dtypeF32:
		return 4, nil
	case dtypeF16:
		return 2, nil
	case dtypeI64:
		return 8, nil
	default:
		return 0, fmt.Errorf("unsupported dtype %q", dtype)
	}
}

func shapeElementCount(shape []int64) (int64, error) {
	total := int64(1)
	for _, d := range shape {
		if d < 0 {
			return 0, fmt.Errorf("negative dimension %d", d)
		}
		if d == 0 {
			return 0, nil
		}
		if total > math.MaxInt64/d {
			return 0, fmt.Errorf("shape %v overflows element count", shape)
		}
		total *= d
	}
	return total, nil
}
