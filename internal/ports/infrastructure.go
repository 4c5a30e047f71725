// Package ports defines the interfaces between the ranking core and the
// infrastructure that judges pairs, persists sessions and reports metrics.
package ports

import (
	"context"
	"time"

	"github.com/ahrav/go-thurstone/internal/domain"
	"github.com/ahrav/go-thurstone/internal/ranking"
)

// LLMClient defines the interface for interacting with Large Language
// Model providers. Implementations handle provider-specific details like
// authentication, request formatting and response parsing.
type LLMClient interface {
	// Complete sends a completion request and returns the generated text.
	//
	// Common options include:
	//   - "temperature": float64
	//   - "max_tokens": int
	//   - "model": string
	//   - "system": string
	Complete(ctx context.Context, prompt string, options map[string]any) (string, error)

	// EstimateTokens returns an approximate token count for text.
	EstimateTokens(text string) (int, error)

	// GetModel returns the model identifier being used by this client.
	GetModel() string
}

// MetricsCollector defines the interface for collecting operational
// metrics. Labels provide additional context for each observation.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram.
	RecordHistogram(metric string, value float64, labels map[string]string)
}

// Session is the persisted form of a ranking session: the items being
// ranked, the scorer selection and the scheduler state.
type Session struct {
	// ID uniquely identifies the session.
	ID string `json:"id" yaml:"id"`

	// Items are the ranked items. Items[k] is row k of the win matrix.
	Items []domain.Item `json:"items" yaml:"items"`

	// Scorer selects the scoring model used for the final result.
	Scorer ranking.ScorerConfig `json:"scorer" yaml:"scorer"`

	// State is the scheduler snapshot.
	State ranking.Snapshot `json:"state" yaml:"state"`

	// CreatedAt records when the session was started.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`

	// UpdatedAt records the last recorded judgment.
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// SessionStore persists ranking sessions between judgments. It allows a
// human judge to stop and resume, and lets several processes serve the
// same session. Implementations must be safe for concurrent use.
type SessionStore interface {
	// Save inserts or replaces the session stored under s.ID.
	Save(ctx context.Context, s *Session) error

	// Load returns the session stored under id. It returns an error
	// wrapping ErrSessionNotFound when no such session exists.
	Load(ctx context.Context, id string) (*Session, error)

	// Delete removes the session. Deleting a missing session is not an
	// error.
	Delete(ctx context.Context, id string) error

	// List returns the IDs of all stored sessions in ascending order.
	List(ctx context.Context) ([]string, error)

	// Close releases the store's resources.
	Close() error
}

// ConfigLoader defines the interface for loading configuration from a
// file, environment or other source into a struct pointer.
type ConfigLoader interface {
	// Load reads configuration from the underlying source into config.
	Load(ctx context.Context, config any) error
}
