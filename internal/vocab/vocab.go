// Package vocab loads the model's fixed vocabulary table and encodes
// token sequences into padded index tensors.
package vocab

import (
	"bufio"
	"errors"
	"fmt"
	"os"
)

// PadID is the right-padding sentinel used past each sequence's own
// length. UnknownID is the fallback for tokens absent from the table;
// encoding is total and never fails on unseen input.
const (
	PadID     int32 = -1
	UnknownID int32 = 0
)

// ErrEmptyPath is returned when Load is called with an empty path.
var ErrEmptyPath = errors.New("vocabulary path must not be empty")

// Table maps token strings to their integer IDs. It is loaded once at
// startup and read-only afterwards, so concurrent readers need no
// synchronization.
type Table struct {
	ids  map[string]int32
	size int
}

// Load reads a vocabulary file where the line number (starting at zero)
// is the token ID. A line containing a single space is the space token;
// blank lines are kept as entries so later IDs stay aligned. Duplicate
// lines resolve to the last occurrence, matching dict construction in
// the reference table.
func Load(path string) (*Table, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vocabulary %q: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	ids := make(map[string]int32)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := int32(0)
	for scanner.Scan() {
		ids[scanner.Text()] = line
		line++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read vocabulary %q: %w", path, err)
	}
	if line == 0 {
		return nil, fmt.Errorf("vocabulary %q is empty", path)
	}

	return &Table{ids: ids, size: int(line)}, nil
}

// Size returns the number of vocabulary entries.
func (t *Table) Size() int {
	return t.size
}

// ID returns the table entry for tok, or UnknownID when absent.
func (t *Table) ID(tok string) int32 {
	if id, ok := t.ids[tok]; ok {
		return id
	}
	return UnknownID
}

// IndexTensor is a batch×maxLen int32 matrix in row-major order,
// right-padded with PadID up to the longest sequence in the batch.
type IndexTensor struct {
	Data []int32
	Rows int
	Cols int
}

// Row returns row i as a slice view into the tensor data.
func (x IndexTensor) Row(i int) []int32 {
	return x.Data[i*x.Cols : (i+1)*x.Cols]
}

// Encode maps token sequences to an IndexTensor. Unknown tokens map to
// UnknownID, never to an error. The end-to-end flow always passes a
// single sequence; multi-row batches are supported for completeness.
func (t *Table) Encode(seqs [][]string) (IndexTensor, error) {
	if len(seqs) == 0 {
		return IndexTensor{}, errors.New("encode: no token sequences")
	}

	maxLen := 0
	for _, seq := range seqs {
		if len(seq) > maxLen {
			maxLen = len(seq)
		}
	}
	if maxLen == 0 {
		return IndexTensor{}, errors.New("encode: all token sequences are empty")
	}

	data := make([]int32, len(seqs)*maxLen)
	for r, seq := range seqs {
		row := data[r*maxLen : (r+1)*maxLen]
		for c, tok := range seq {
			row[c] = t.ID(tok)
		}
		for c := len(seq); c < maxLen; c++ {
			row[c] = PadID
		}
	}

	return IndexTensor{Data: data, Rows: len(seqs), Cols: maxLen}, nil
}
