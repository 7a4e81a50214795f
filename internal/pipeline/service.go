// Package pipeline orchestrates the F5 preprocessing flow: reference
// audio and transcript in, serialized conditioning bundle out.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/example/voiceprep/internal/audio"
	"github.com/example/voiceprep/internal/onnx"
	"github.com/example/voiceprep/internal/safetensors"
	"github.com/example/voiceprep/internal/schedule"
	"github.com/example/voiceprep/internal/text"
	"github.com/example/voiceprep/internal/vocab"
)

var (
	ErrDecode    = errors.New("decode reference audio")
	ErrInference = errors.New("preprocess inference")
)

// InferenceEngine runs a named ONNX graph. *onnx.Engine satisfies it;
// tests substitute fakes.
type InferenceEngine interface {
	Run(ctx context.Context, graph string, inputs map[string]*onnx.Tensor) (map[string]*onnx.Tensor, error)
}

// Deps holds the collaborators a Service needs. All fields are
// required except Schedule, which defaults to the standard 32-step,
// 256-wide grid.
type Deps struct {
	Vocab     *vocab.Table
	Segmenter *text.Segmenter
	Engine    InferenceEngine
	// Graph is the preprocess graph metadata from the manifest. Input
	// and output names bind by position, and the first input's dtype
	// decides whether audio is downcast to float16.
	Graph    onnx.Session
	Schedule *schedule.Schedule
}

// Service is the preprocessing front door. It is safe for concurrent
// use; graph runs are serialized on an internal mutex.
type Service struct {
	vocab     *vocab.Table
	segmenter *text.Segmenter
	engine    InferenceEngine
	graph     onnx.Session
	sched     *schedule.Schedule

	mu sync.Mutex
}

func NewService(deps Deps) (*Service, error) {
	if deps.Vocab == nil {
		return nil, errors.New("pipeline: vocab table is required")
	}
	if deps.Segmenter == nil {
		return nil, errors.New("pipeline: segmenter is required")
	}
	if deps.Engine == nil {
		return nil, errors.New("pipeline: inference engine is required")
	}
	if len(deps.Graph.Inputs) < 3 {
		return nil, fmt.Errorf("pipeline: graph %q declares %d inputs, need 3", deps.Graph.Name, len(deps.Graph.Inputs))
	}
	if len(deps.Graph.Outputs) < 7 {
		return nil, fmt.Errorf("pipeline: graph %q declares %d outputs, need 7", deps.Graph.Name, len(deps.Graph.Outputs))
	}

	sched := deps.Schedule
	if sched == nil {
		var err error

		sched, err = schedule.New(schedule.DefaultSteps, schedule.DefaultDim)
		if err != nil {
			return nil, fmt.Errorf("pipeline: %w", err)
		}
	}

	return &Service{
		vocab:     deps.Vocab,
		segmenter: deps.Segmenter,
		engine:    deps.Engine,
		graph:     deps.Graph,
		sched:     sched,
	}, nil
}

// Preprocess runs the full conditioning flow for one reference clip:
// decode and resample the WAV, tokenize and index the transcript,
// invoke the preprocess graph, and serialize the conditioning bundle.
func (s *Service) Preprocess(ctx context.Context, wavBytes []byte, refText, lang string) ([]byte, error) {
	samples, err := audio.DecodeSamples(wavBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	maxDuration := FrameCount(len(samples))
	textLen := TextLength(refText, lang)

	tokens := s.segmenter.Tokenize(refText)

	ids, err := s.vocab.Encode([][]string{tokens})
	if err != nil {
		return nil, fmt.Errorf("encode transcript: %w", err)
	}

	slog.Info(
		"preprocess request",
		"lang", lang,
		"samples", len(samples),
		"max_duration", maxDuration,
		"text_len", textLen,
		"tokens", len(tokens),
	)

	inputs, err := s.buildInputs(samples, ids, maxDuration)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	outputs, err := s.engine.Run(ctx, s.graph.Name, inputs)
	s.mu.Unlock()

	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInference, err)
	}

	return s.assembleBundle(outputs)
}

// buildInputs packs the three graph inputs by declared position:
// audio [1,1,S], text IDs [1,T], max duration (rank 0).
func (s *Service) buildInputs(samples []float32, ids vocab.IndexTensor, maxDuration int64) (map[string]*onnx.Tensor, error) {
	in := s.graph.Inputs

	audioDType, err := onnx.CanonicalDType(in[0].DType)
	if err != nil {
		return nil, fmt.Errorf("audio input dtype: %w", err)
	}

	var audioTensor *onnx.Tensor

	audioShape := []int64{1, 1, int64(len(samples))}
	if audioDType == onnx.DTypeFloat16 {
		halves := make([]uint16, len(samples))
		for i, v := range samples {
			halves[i] = safetensors.Float32ToFloat16(v)
		}

		audioTensor, err = onnx.NewFloat16Tensor(halves, audioShape)
	} else {
		audioTensor, err = onnx.NewTensor(samples, audioShape)
	}

	if err != nil {
		return nil, fmt.Errorf("audio tensor: %w", err)
	}

	textTensor, err := onnx.NewTensor(ids.Data, []int64{int64(ids.Rows), int64(ids.Cols)})
	if err != nil {
		return nil, fmt.Errorf("text tensor: %w", err)
	}

	durTensor, err := onnx.NewTensor([]int64{maxDuration}, []int64{})
	if err != nil {
		return nil, fmt.Errorf("duration tensor: %w", err)
	}

	return map[string]*onnx.Tensor{
		in[0].Name: audioTensor,
		in[1].Name: textTensor,
		in[2].Name: durTensor,
	}, nil
}

// Output positions of the preprocess graph.
const (
	outNoise = iota
	outRopeCos
	outRopeSin
	outCatMelText
	outCatMelTextDrop
	_ // unused mel slot
	outRefSignalLen
)

// assembleBundle serializes the conditioning bundle. Bundle slots are
// positional: noise, cat_mel_text, cat_mel_text_drop, time embedding,
// rope cos, rope sin, delta t, reference signal length.
func (s *Service) assembleBundle(outputs map[string]*onnx.Tensor) ([]byte, error) {
	pick := func(pos int) (*onnx.Tensor, error) {
		name := s.graph.Outputs[pos].Name

		t, ok := outputs[name]
		if !ok || t == nil {
			return nil, fmt.Errorf("%w: graph returned no output %q", ErrInference, name)
		}

		return t, nil
	}

	slots := []struct {
		key string
		pos int
	}{
		{"0", outNoise},
		{"1", outCatMelText},
		{"2", outCatMelTextDrop},
		{"4", outRopeCos},
		{"5", outRopeSin},
		{"7", outRefSignalLen},
	}

	tensors := make([]safetensors.Tensor, 0, 8)
	for _, slot := range slots {
		t, err := pick(slot.pos)
		if err != nil {
			return nil, err
		}

		st, err := toSafetensor(slot.key, t)
		if err != nil {
			return nil, fmt.Errorf("bundle slot %s: %w", slot.key, err)
		}

		tensors = append(tensors, st)
	}

	tensors = append(tensors,
		safetensors.NewF32("3", s.sched.EmbeddingShape(), s.sched.Embedding),
		safetensors.NewF32("6", []int64{int64(s.sched.Steps)}, s.sched.DeltaT),
	)

	return safetensors.EncodeTensors(tensors)
}

// toSafetensor converts an inference output into a named bundle
// tensor, preserving its dtype.
func toSafetensor(name string, t *onnx.Tensor) (safetensors.Tensor, error) {
	switch t.DType() {
	case onnx.DTypeFloat32:
		data, err := onnx.ExtractFloat32(t)
		if err != nil {
			return safetensors.Tensor{}, err
		}

		return safetensors.NewF32(name, t.Shape(), data), nil
	case onnx.DTypeFloat16:
		bits, err := onnx.ExtractHalfBits(t)
		if err != nil {
			return safetensors.Tensor{}, err
		}

		return safetensors.NewF16(name, t.Shape(), bits), nil
	case onnx.DTypeInt64:
		data, err := onnx.ExtractInt64(t)
		if err != nil {
			return safetensors.Tensor{}, err
		}

		return safetensors.NewI64(name, t.Shape(), data), nil
	default:
		return safetensors.Tensor{}, fmt.Errorf("unsupported output dtype %s", t.DType())
	}
}
