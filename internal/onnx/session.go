package onnx

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// PreprocessGraph is the manifest name of the F5 preprocessing graph.
const PreprocessGraph = "preprocess"

// NodeInfo describes one graph input or output as declared by the
// manifest. Input order matters: the preprocess graph is invoked by
// position (audio, text IDs, max duration).
type NodeInfo struct {
	Name  string `json:"name"`
	DType string `json:"dtype"`
	Shape []any  `json:"shape"`
}

// Session holds the metadata of a single ONNX graph.
type Session struct {
	Name string
	Path string

	Inputs  []NodeInfo
	Outputs []NodeInfo
}

// InputNames returns the declared input names in order.
func (s Session) InputNames() []string {
	return nodeNameList(s.Inputs)
}

// OutputNames returns the declared output names in order.
func (s Session) OutputNames() []string {
	return nodeNameList(s.Outputs)
}

// SessionManager resolves graph metadata from a JSON manifest that
// sits next to the .onnx files. Construct once at startup and inject
// where needed; the manager is read-only after construction.
type SessionManager struct {
	sessions map[string]Session
	order    []string
}

type onnxManifest struct {
	Graphs []onnxGraph `json:"graphs"`
}

type onnxGraph struct {
	Name     string     `json:"name"`
	Filename string     `json:"filename"`
	Inputs   []NodeInfo `json:"inputs"`
	Outputs  []NodeInfo `json:"outputs"`
}

func NewSessionManager(manifestPath string) (*SessionManager, error) {
	if manifestPath == "" {
		return nil, errors.New("manifest path is required")
	}

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("read ONNX manifest: %w", err)
	}

	var manifest onnxManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("decode ONNX manifest: %w", err)
	}

	if len(manifest.Graphs) == 0 {
		return nil, errors.New("ONNX manifest has no graphs")
	}

	baseDir := filepath.Dir(manifestPath)
	sm := &SessionManager{
		sessions: make(map[string]Session, len(manifest.Graphs)),
		order:    make([]string, 0, len(manifest.Graphs)),
	}

	for _, g := range manifest.Graphs {
		if g.Name == "" {
			return nil, errors.New("manifest graph has empty name")
		}

		if g.Filename == "" {
			return nil, fmt.Errorf("manifest graph %q has empty filename", g.Name)
		}

		if _, exists := sm.sessions[g.Name]; exists {
			return nil, fmt.Errorf("duplicate session name %q in manifest", g.Name)
		}

		for _, n := range append(append([]NodeInfo(nil), g.Inputs...), g.Outputs...) {
			if _, err := CanonicalDType(n.DType); err != nil {
				return nil, fmt.Errorf("manifest graph %q node %q: %w", g.Name, n.Name, err)
			}
		}

		sessionPath := g.Filename
		if !filepath.IsAbs(sessionPath) {
			sessionPath = filepath.Join(baseDir, g.Filename)
		}

		sessionPath = filepath.Clean(sessionPath)
		if _, err := os.Stat(sessionPath); err != nil {
			return nil, fmt.Errorf("session file for %q: %w", g.Name, err)
		}

		session := Session{
			Name:    g.Name,
			Path:    sessionPath,
			Inputs:  append([]NodeInfo(nil), g.Inputs...),
			Outputs: append([]NodeInfo(nil), g.Outputs...),
		}
		sm.sessions[g.Name] = session
		sm.order = append(sm.order, g.Name)

		slog.Info(
			"loaded ONNX session",
			"name", g.Name,
			"path", sessionPath,
			"inputs", strings.Join(session.InputNames(), ","),
			"outputs", strings.Join(session.OutputNames(), ","),
		)
	}

	return sm, nil
}

func (m *SessionManager) Session(name string) (Session, bool) {
	s, ok := m.sessions[name]
	return s, ok
}

func (m *SessionManager) Sessions() []Session {
	out := make([]Session, 0, len(m.order))
	for _, name := range m.order {
		s := m.sessions[name]
		s.Inputs = append([]NodeInfo(nil), s.Inputs...)
		s.Outputs = append([]NodeInfo(nil), s.Outputs...)
		out = append(out, s)
	}
	return out
}

func nodeNameList(nodes []NodeInfo) []string {
	names := make([]string, 0, len(nodes))
	for _, n := range nodes {
		names = append(names, n.Name)
	}
	return names
}
