package model

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.yaml.in/yaml/v3"

	"github.com/ekisa-team/predictd/internal/xfs"
)

//go:embed artifact.schema.json
var artifactSchemaSource string

var artifactSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	return jsonschema.CompileString("artifact.schema.json", artifactSchemaSource)
})

// Artifact is the on-disk description of a model.
type Artifact struct {
	Bridge       *BridgeSpec `json:"bridge,omitempty"       yaml:"bridge,omitempty"`
	Version      string      `json:"version,omitempty"      yaml:"version,omitempty"`
	Format       string      `json:"format"                 yaml:"format"`
	Task         Task        `json:"task,omitempty"         yaml:"task,omitempty"`
	Classes      []float64   `json:"classes,omitempty"      yaml:"classes,omitempty"`
	Nodes        []Node      `json:"nodes,omitempty"        yaml:"nodes,omitempty"`
	Trees        []TreeSpec  `json:"trees,omitempty"        yaml:"trees,omitempty"`
	Coefficients [][]float64 `json:"coefficients,omitempty" yaml:"coefficients,omitempty"`
	Intercepts   []float64   `json:"intercepts,omitempty"   yaml:"intercepts,omitempty"`
	NFeatures    int         `json:"n_features,omitempty"   yaml:"n_features,omitempty"`

	// Dir is the directory the artifact was read from. Relative paths inside
	// the artifact resolve against it.
	Dir string `json:"-" yaml:"-"`
}

// TreeSpec is a single tree of a forest.
type TreeSpec struct {
	Nodes []Node `json:"nodes" yaml:"nodes"`
}

// Node is a decision tree node stored in a flat, pre-ordered array. Children
// always have a larger index than their parent.
type Node struct {
	Feature   int     `json:"feature"         yaml:"feature"`
	Threshold float64 `json:"threshold"       yaml:"threshold"`
	Left      int     `json:"left"            yaml:"left"`
	Right     int     `json:"right"           yaml:"right"`
	Leaf      bool    `json:"leaf,omitempty"  yaml:"leaf,omitempty"`
	Value     float64 `json:"value,omitempty" yaml:"value,omitempty"`
}

// BridgeSpec configures an external predictor process.
type BridgeSpec struct {
	Artifact            string   `json:"artifact,omitempty"              yaml:"artifact,omitempty"`
	Command             []string `json:"command"                         yaml:"command"`
	TimeoutSeconds      int      `json:"timeout_seconds,omitempty"       yaml:"timeout_seconds,omitempty"`
	ReadyTimeoutSeconds int      `json:"ready_timeout_seconds,omitempty" yaml:"ready_timeout_seconds,omitempty"`
}

// ReadArtifact reads, validates and decodes the artifact at path. JSON is
// selected by a .json extension, everything else is parsed as YAML.
func ReadArtifact(path string) (*Artifact, error) {
	resolved, err := xfs.Resolve(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve model path %q: %w", path, err)
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to read model artifact: %w", err)
	}

	artifact, err := DecodeArtifact(data, xfs.Ext(resolved))
	if err != nil {
		return nil, err
	}
	artifact.Dir = filepath.Dir(resolved)

	return artifact, nil
}

// DecodeArtifact validates and decodes an artifact document.
func DecodeArtifact(data []byte, ext string) (*Artifact, error) {
	var raw any
	if err := unmarshal(data, ext, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArtifact, err)
	}

	schema, err := artifactSchema()
	if err != nil {
		return nil, fmt.Errorf("failed to compile artifact schema: %w", err)
	}

	if err := schema.Validate(raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArtifact, err)
	}

	var artifact Artifact
	if err := unmarshal(data, ext, &artifact); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArtifact, err)
	}

	return &artifact, nil
}

func unmarshal(data []byte, ext string, v any) error {
	if ext == ".json" {
		return json.Unmarshal(data, v)
	}

	return yaml.Unmarshal(data, v)
}
