// Package store provides SessionStore backends: in-process memory, Redis
// and SQLite. All of them persist sessions as JSON documents.
package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ahrav/go-thurstone/internal/ports"
)

var errEmptyID = errors.New("session ID is empty")

func encodeSession(s *ports.Session) ([]byte, error) {
	if s == nil {
		return nil, errors.New("session is nil")
	}
	if s.ID == "" {
		return nil, errEmptyID
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}
	return data, nil
}

func decodeSession(data []byte) (*ports.Session, error) {
	var s ports.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %w", ports.ErrSessionCorrupted, err)
	}
	return &s, nil
}

func notFound(backend, id string) error {
	return ports.NewStoreError(backend, "load", id, ports.ErrSessionNotFound)
}
