package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	berrors "github.com/atinyakov/vaultkeeper/internal/errors"
)

// SecretContent is the full key/value mapping read from one leaf.
type SecretContent map[string]any

// Snapshot maps every leaf path captured under Root to its content.
// It only ever exists in memory; the encoded form is what gets encrypted.
type Snapshot struct {
	Server     string                   `json:"server"`
	Root       string                   `json:"root"`
	CapturedAt time.Time                `json:"captured_at"`
	Secrets    map[string]SecretContent `json:"secrets"`
}

// NewSnapshot returns an empty snapshot for server and root.
func NewSnapshot(server, root string, at time.Time) *Snapshot {
	return &Snapshot{
		Server:     server,
		Root:       root,
		CapturedAt: at.UTC(),
		Secrets:    make(map[string]SecretContent),
	}
}

// Paths returns the captured leaf paths in lexical order.
func (s *Snapshot) Paths() []string {
	paths := make([]string, 0, len(s.Secrets))
	for p := range s.Secrets {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Encode returns the canonical JSON form. encoding/json sorts map keys, so
// equal snapshots encode to equal bytes.
func (s *Snapshot) Encode() ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return b, nil
}

// DecodeSnapshot parses the output of Encode. Numbers decode as json.Number
// so integer values survive unchanged. Anything after the single JSON
// document is rejected.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	dec.DisallowUnknownFields()

	var s Snapshot
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("%w: snapshot payload: %v", berrors.ErrDecode, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after snapshot payload", berrors.ErrDecode)
	}
	if s.Secrets == nil {
		s.Secrets = make(map[string]SecretContent)
	}
	return &s, nil
}
