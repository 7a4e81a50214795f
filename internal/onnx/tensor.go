// Package onnx wraps the ONNX Runtime session used by the preprocess
// graph and provides the tensor plumbing between Go slices and ORT
// values.
package onnx

import (
	"fmt"
	"math"
	"strings"
)

type TensorDType string

const (
	DTypeFloat32 TensorDType = "float32"
	DTypeFloat16 TensorDType = "float16"
	DTypeInt32   TensorDType = "int32"
	DTypeInt64   TensorDType = "int64"
)

// Tensor is a dense array with an explicit dtype and shape. Float16
// data is carried as raw IEEE 754 half bits.
type Tensor struct {
	dtype TensorDType
	shape []int64
	data  any
}

// NewTensor builds a tensor from a typed slice. The shape must account
// for every element; an empty shape is a scalar.
func NewTensor[T ~int32 | ~int64 | ~float32](data []T, shape []int64) (*Tensor, error) {
	dtype, err := dtypeFromSlice(data)
	if err != nil {
		return nil, err
	}
	if err := validateShapeAgainstData(shape, len(data)); err != nil {
		return nil, err
	}

	t := &Tensor{
		dtype: dtype,
		shape: append([]int64(nil), shape...),
	}
	switch dtype {
	case DTypeFloat32:
		converted := make([]float32, len(data))
		for i, v := range data {
			converted[i] = float32(v)
		}
		t.data = converted
	case DTypeInt32:
		converted := make([]int32, len(data))
		for i, v := range data {
			converted[i] = int32(v)
		}
		t.data = converted
	case DTypeInt64:
		converted := make([]int64, len(data))
		for i, v := range data {
			converted[i] = int64(v)
		}
		t.data = converted
	default:
		return nil, fmt.Errorf("unsupported tensor dtype %q", dtype)
	}
	return t, nil
}

// NewFloat16Tensor builds a half-precision tensor from raw half bits.
func NewFloat16Tensor(halfBits []uint16, shape []int64) (*Tensor, error) {
	if err := validateShapeAgainstData(shape, len(halfBits)); err != nil {
		return nil, err
	}
	return &Tensor{
		dtype: DTypeFloat16,
		shape: append([]int64(nil), shape...),
		data:  append([]uint16(nil), halfBits...),
	}, nil
}

func (t *Tensor) DType() TensorDType {
	return t.dtype
}

func (t *Tensor) Shape() []int64 {
	return append([]int64(nil), t.shape...)
}

// Data returns a copy of the backing slice: []float32, []uint16 (half
// bits), []int32, or []int64 depending on the dtype.
func (t *Tensor) Data() any {
	switch v := t.data.(type) {
	case []float32:
		return append([]float32(nil), v...)
	case []uint16:
		return append([]uint16(nil), v...)
	case []int32:
		return append([]int32(nil), v...)
	case []int64:
		return append([]int64(nil), v...)
	default:
		return nil
	}
}

// ExtractFloat32 returns the float32 payload of a float32 tensor.
func ExtractFloat32(t *Tensor) ([]float32, error) {
	if t == nil {
		return nil, fmt.Errorf("tensor is nil")
	}
	if t.dtype != DTypeFloat32 {
		return nil, fmt.Errorf("expected float32 tensor, got %s", t.dtype)
	}
	data, ok := t.data.([]float32)
	if !ok {
		return nil, fmt.Errorf("float32 tensor has unexpected backing type %T", t.data)
	}
	return append([]float32(nil), data...), nil
}

// ExtractHalfBits returns the raw half bits of a float16 tensor.
func ExtractHalfBits(t *Tensor) ([]uint16, error) {
	if t == nil {
		return nil, fmt.Errorf("tensor is nil")
	}
	if t.dtype != DTypeFloat16 {
		return nil, fmt.Errorf("expected float16 tensor, got %s", t.dtype)
	}
	data, ok := t.data.([]uint16)
	if !ok {
		return nil, fmt.Errorf("float16 tensor has unexpected backing type %T", t.data)
	}
	return append([]uint16(nil), data...), nil
}

// ExtractInt64 returns the int64 payload of an int64 tensor.
func ExtractInt64(t *Tensor) ([]int64, error) {
	if t == nil {
		return nil, fmt.Errorf("tensor is nil")
	}
	if t.dtype != DTypeInt64 {
		return nil, fmt.Errorf("expected int64 tensor, got %s", t.dtype)
	}
	data, ok := t.data.([]int64)
	if !ok {
		return nil, fmt.Errorf("int64 tensor has unexpected backing type %T", t.data)
	}
	return append([]int64(nil), data...), nil
}

func dtypeFromSlice[T ~int32 | ~int64 | ~float32](data []T) (TensorDType, error) {
	var zero T
	switch any(zero).(type) {
	case int32:
		return DTypeInt32, nil
	case int64:
		return DTypeInt64, nil
	case float32:
		return DTypeFloat32, nil
	default:
		return "", fmt.Errorf("unsupported tensor data type %T", zero)
	}
}

// CanonicalDType normalizes manifest dtype strings such as
// "tensor(float16)" or "Float" to a TensorDType.
func CanonicalDType(raw string) (TensorDType, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.TrimPrefix(normalized, "tensor(")
	normalized = strings.TrimSuffix(normalized, ")")
	switch normalized {
	case "float", "float32":
		return DTypeFloat32, nil
	case "float16", "half":
		return DTypeFloat16, nil
	case "int32", "int":
		return DTypeInt32, nil
	case "int64", "long":
		return DTypeInt64, nil
	default:
		return "", fmt.Errorf("unsupported tensor dtype %q", raw)
	}
}

func validateShapeAgainstData(shape []int64, dataLen int) error {
	count, err := elementCount(shape)
	if err != nil {
		return err
	}
	if count != dataLen {
		return fmt.Errorf("shape %v expects %d elements, got %d", shape, count, dataLen)
	}
	return nil
}

func elementCount(shape []int64) (int, error) {
	if len(shape) == 0 {
		return 1, nil
	}
	count := int64(1)
	for i, dim := range shape {
		if dim < 1 {
			return 0, fmt.Errorf("shape[%d]=%d is not positive", i, dim)
		}
		if count > math.MaxInt64/dim {
			return 0, fmt.Errorf("shape %v overflows element count", shape)
		}
		count *= dim
	}
	if count > int64(math.MaxInt) {
		return 0, fmt.Errorf("shape %v exceeds platform int capacity", shape)
	}
	return int(count), nil
}
