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

// Store gives random access to the tensors of a safetensors payload.
type Store struct {
	raw     []byte
	entries map[string]storeEntry
	names   []string
}

type storeEntry struct {
	DType string
	Shape []int64
	Start int
	End   int
}

// OpenStore reads a safetensors file from disk.
func OpenStore(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("safetensors: read %s: %w", path, err)
	}

	return OpenStoreFromBytes(data)
}

// OpenStoreFromBytes decodes a safetensors payload held in memory.
func OpenStoreFromBytes(data []byte) (*Store, error) {
	headerEnd, header, err := decodeHeader(data)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(header))
	for name := range header {
		keys = append(keys, name)
	}
	sort.Strings(keys)

	entries := make(map[string]storeEntry, len(keys))
	names := make([]string, 0, len(keys))

	for _, name := range keys {
		if name == "__metadata__" {
			continue
		}

		var entry headerEntry
		if err := json.Unmarshal(header[name], &entry); err != nil {
			return nil, fmt.Errorf("safetensors: decode header entry %q: %w", name, err)
		}

		dtype := strings.ToUpper(entry.DType)
		elemBytes, err := dtypeBytes(dtype)
		if err != nil {
			return nil, fmt.Errorf("safetensors: tensor %q: %w", name, err)
		}

		if entry.Offsets[0] < 0 || entry.Offsets[1] < entry.Offsets[0] {
			return nil, fmt.Errorf("safetensors: tensor %q has invalid data offsets %v", name, entry.Offsets)
		}

		start := headerEnd + entry.Offsets[0]
		end := headerEnd + entry.Offsets[1]
		if end > len(data) {
			return nil, fmt.Errorf(
				"safetensors: tensor %q data [%d:%d] exceeds payload size %d",
				name, start, end, len(data),
			)
		}

		elemCount, err := shapeElementCount(entry.Shape)
		if err != nil {
			return nil, fmt.Errorf("safetensors: tensor %q: %w", name, err)
		}
		if end-start < int(elemCount)*elemBytes {
			return nil, fmt.Errorf(
				"safetensors: tensor %q needs %d bytes but data has %d",
				name, int(elemCount)*elemBytes, end-start,
			)
		}

		entries[name] = storeEntry{
			DType: dtype,
			Shape: append([]int64(nil), entry.Shape...),
			Start: start,
			End:   end,
		}
		names = append(names, name)
	}

	if len(entries) == 0 {
		return nil, errors.New("safetensors: no tensors found")
	}

	return &Store{raw: data, entries: entries, names: names}, nil
}

// Names returns tensor names in lexicographic order, which for
// positional keys "0".."9" is the fixed tuple order.
func (s *Store) Names() []string {
	return append([]string(nil), s.names...)
}

// Has reports whether the store holds a tensor with the given name.
func (s *Store) Has(name string) bool {
	_, ok := s.entries[name]
	return ok
}

// Tensor decodes the named tensor.
func (s *Store) Tensor(name string) (Tensor, error) {
	entry, ok := s.entries[name]
	if !ok {
		return Tensor{}, fmt.Errorf("safetensors: tensor %q not found (available: %s)", name, strings.Join(s.names, ", "))
	}

	raw := s.raw[entry.Start:entry.End]
	elemCount, err := shapeElementCount(entry.Shape)
	if err != nil {
		return Tensor{}, fmt.Errorf("safetensors: tensor %q: %w", name, err)
	}
	n := int(elemCount)

	t := Tensor{Name: name, DType: entry.DType, Shape: append([]int64(nil), entry.Shape...)}
	switch entry.DType {
	case dtypeF32:
		t.F32 = make([]float32, n)
		for i := range t.F32 {
			t.F32[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}
	case dtypeF16:
		t.F16 = make([]uint16, n)
		for i := range t.F16 {
			t.F16[i] = binary.LittleEndian.Uint16(raw[i*2:])
		}
	case dtypeI64:
		t.I64 = make([]int64, n)
		for i := range t.I64 {
			t.I64[i] = int64(binary.LittleEndian.Uint64(raw[i*8:]))
		}
	default:
		return Tensor{}, fmt.Errorf("safetensors: tensor %q has unsupported dtype %q", name, entry.DType)
	}

	return t, nil
}

// Close releases the backing payload.
func (s *Store) Close() {
	s.raw = nil
	s.entries = nil
	s.names = nil
}

func decodeHeader(data []byte) (int, map[string]json.RawMessage, error) {
	if len(data) < 8 {
		return 0, nil, fmt.Errorf("safetensors: payload too short (%d bytes)", len(data))
	}

	headerLen := binary.LittleEndian.Uint64(data[:8])
	headerEnd := 8 + int(headerLen)
	if headerLen > uint64(len(data)) || headerEnd > len(data) {
		return 0, nil, fmt.Errorf("safetensors: header length %d exceeds payload size %d", headerLen, len(data))
	}

	var header map[string]json.RawMessage
	if err := json.Unmarshal(data[8:headerEnd], &header); err != nil {
		return 0, nil, fmt.Errorf("safetensors: parse header: %w", err)
	}

	return headerEnd, header, nil
}
