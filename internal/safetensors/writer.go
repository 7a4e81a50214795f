package safetensors

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
)

type headerEntry struct {
	DType   string  `json:"dtype"`
	Shape   []int64 `json:"shape"`
	Offsets [2]int  `json:"data_offsets"`
}

// EncodeTensors serializes tensors into safetensors format. Tensors are
// laid out in lexicographic name order, so numeric names "0".."9" give
// a fixed positional layout.
func EncodeTensors(tensors []Tensor) ([]byte, error) {
	if len(tensors) == 0 {
		return nil, errors.New("safetensors: no tensors to encode")
	}

	sorted := make([]Tensor, len(tensors))
	copy(sorted, tensors)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})

	header := make(map[string]headerEntry, len(sorted))
	var raw []byte

	for _, tensor := range sorted {
		name := strings.TrimSpace(tensor.Name)
		if name == "" {
			return nil, errors.New("safetensors: tensor name must not be empty")
		}
		if _, exists := header[name]; exists {
			return nil, fmt.Errorf("safetensors: duplicate tensor name %q", name)
		}

		elemCount, err := tensor.ElemCount()
		if err != nil {
			return nil, fmt.Errorf("safetensors: tensor %q: %w", name, err)
		}
		if int64(tensor.payloadLen()) != elemCount {
			return nil, fmt.Errorf(
				"safetensors: tensor %q shape %v expects %d elements, got %d",
				name, tensor.Shape, elemCount, tensor.payloadLen(),
			)
		}

		start := len(raw)
		raw, err = appendTensorData(raw, tensor)
		if err != nil {
			return nil, fmt.Errorf("safetensors: tensor %q: %w", name, err)
		}

		header[name] = headerEntry{
			DType:   tensor.DType,
			Shape:   append([]int64(nil), tensor.Shape...),
			Offsets: [2]int{start, len(raw)},
		}
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("safetensors: encode header: %w", err)
	}

	out := make([]byte, 0, 8+len(headerJSON)+len(raw))
	lenPrefix := make([]byte, 8)
	binary.LittleEndian.PutUint64(lenPrefix, uint64(len(headerJSON)))
	out = append(out, lenPrefix...)
	out = append(out, headerJSON...)
	out = append(out, raw...)

	return out, nil
}

// WriteFile writes tensors into a .safetensors file.
func WriteFile(path string, tensors []Tensor) error {
	data, err := EncodeTensors(tensors)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("safetensors: write %s: %w", path, err)
	}

	return nil
}

func appendTensorData(raw []byte, t Tensor) ([]byte, error) {
	switch t.DType {
	case dtypeF32:
		start := len(raw)
		raw = append(raw, make([]byte, len(t.F32)*4)...)
		for i, v := range t.F32 {
			binary.LittleEndian.PutUint32(raw[start+i*4:], math.Float32bits(v))
		}
		return raw, nil
	case dtypeF16:
		start := len(raw)
		raw = append(raw, make([]byte, len(t.F16)*2)...)
		for i, bits := range t.F16 {
			binary.LittleEndian.PutUint16(raw[start+i*2:], bits)
		}
		return raw, nil
	case dtypeI64:
		start := len(raw)
		raw = append(raw, make([]byte, len(t.I64)*8)...)
		for i, v := range t.I64 {
			binary.LittleEndian.PutUint64(raw[start+i*8:], uint64(v))
		}
		return raw, nil
	default:
		return nil, fmt.Errorf("unsupported dtype %q", t.DType)
	}
}
