package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ekisa-team/predictd/internal/backend"
)

const (
	defaultBridgeTimeout      = 30 * time.Second
	defaultBridgeReadyTimeout = 60 * time.Second
)

type bridgeRequest struct {
	Inputs Matrix `json:"inputs"`
	ID     uint64 `json:"id"`
}

type bridgeResponse struct {
	Error       string    `json:"error,omitempty"`
	Predictions []float64 `json:"predictions"`
	ID          uint64    `json:"id"`
}

type bridgeStatus struct {
	Error string `json:"error,omitempty"`
	Ready bool   `json:"ready"`
}

// Bridge delegates inference to a long-lived external process that loads the
// model once and then answers one JSON line per request line:
//
//	ready:    {"ready": true} or {"error": "..."}
//	request:  {"id": 1, "inputs": [[...]]}
//	response: {"id": 1, "predictions": [...]} or {"id": 1, "error": "..."}
//
// The resolved bridge artifact path is passed as the last command argument.
type Bridge struct {
	server    *backend.Server
	task      Task
	nFeatures int
	nextID    atomic.Uint64
}

// NewBridge starts the bridge process for a and waits until it has loaded the
// model. A missing bridge artifact fails before anything is started.
func NewBridge(ctx context.Context, a *Artifact, runner backend.CommandRunner) (*Bridge, error) {
	if a.Bridge == nil {
		return nil, fmt.Errorf("%w: bridge section is required", ErrInvalidArtifact)
	}

	command, err := bridgeCommand(a)
	if err != nil {
		return nil, err
	}

	callTimeout := defaultBridgeTimeout
	if a.Bridge.TimeoutSeconds > 0 {
		callTimeout = time.Duration(a.Bridge.TimeoutSeconds) * time.Second
	}
	readyTimeout := defaultBridgeReadyTimeout
	if a.Bridge.ReadyTimeoutSeconds > 0 {
		readyTimeout = time.Duration(a.Bridge.ReadyTimeoutSeconds) * time.Second
	}

	server, err := backend.StartServer(ctx, backend.ServerConfig{
		Name:         FormatBridge,
		Command:      command,
		Ready:        bridgeReady,
		ReadyTimeout: readyTimeout,
		CallTimeout:  callTimeout,
	}, runner)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBridge, err)
	}

	return &Bridge{
		server:    server,
		task:      a.Task,
		nFeatures: a.NFeatures,
	}, nil
}

// Predict implements Predictor.
func (b *Bridge) Predict(ctx context.Context, x Matrix) ([]float64, error) {
	if err := CheckFeatures(x, b.nFeatures); err != nil {
		return nil, err
	}

	id := b.nextID.Add(1)
	payload, err := json.Marshal(bridgeRequest{ID: id, Inputs: x})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to encode request: %w", ErrBridge, err)
	}

	line, err := b.server.Call(ctx, payload, func(line []byte) bool {
		var head struct {
			ID uint64 `json:"id"`
		}
		return json.Unmarshal(line, &head) == nil && head.ID == id
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBridge, err)
	}

	var resp bridgeResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %w", ErrBridge, err)
	}
	if msg := strings.TrimSpace(resp.Error); msg != "" {
		return nil, fmt.Errorf("%w: %s", ErrBridge, msg)
	}
	if len(resp.Predictions) != len(x) {
		return nil, fmt.Errorf("%w: got %d predictions for %d rows", ErrBridge, len(resp.Predictions), len(x))
	}

	return resp.Predictions, nil
}

// Info implements Predictor.
func (b *Bridge) Info() Info {
	return Info{
		Format:   FormatBridge,
		Task:     b.task,
		Features: b.nFeatures,
	}
}

// Close stops the bridge process.
func (b *Bridge) Close() error {
	return b.server.Close()
}

// bridgeCommand resolves relative path arguments of the command against the
// artifact directory and appends the bridge artifact path. An argument is a
// path when it contains a separator and does not start with "-".
func bridgeCommand(a *Artifact) ([]string, error) {
	command := make([]string, 0, len(a.Bridge.Command)+1)
	for _, arg := range a.Bridge.Command {
		command = append(command, resolveArg(a.Dir, arg))
	}

	artifactPath := strings.TrimSpace(a.Bridge.Artifact)
	if artifactPath == "" {
		return command, nil
	}
	if !filepath.IsAbs(artifactPath) && a.Dir != "" {
		artifactPath = filepath.Join(a.Dir, artifactPath)
	}

	info, err := os.Stat(artifactPath)
	if err != nil {
		return nil, fmt.Errorf("%w: bridge artifact: %w", ErrInvalidArtifact, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: bridge artifact %s is a directory", ErrInvalidArtifact, artifactPath)
	}

	return append(command, artifactPath), nil
}

func resolveArg(dir, arg string) string {
	if dir == "" || filepath.IsAbs(arg) || strings.HasPrefix(arg, "-") {
		return arg
	}
	if !strings.ContainsAny(arg, "/"+string(filepath.Separator)) {
		return arg
	}

	return filepath.Join(dir, arg)
}

// bridgeReady skips lines that are not a status object, such as library
// banners printed while the model loads.
func bridgeReady(line []byte) (bool, error) {
	var st bridgeStatus
	if err := json.Unmarshal(line, &st); err != nil {
		return false, nil
	}
	if msg := strings.TrimSpace(st.Error); msg != "" {
		return false, errors.New(msg)
	}

	return st.Ready, nil
}
