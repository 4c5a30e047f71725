package application

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-thurstone/internal/ports"
)

// ConfigLoader parses and validates run configurations, caching validated
// results by the hash of their normalised YAML.
//
// Cached configs are shared. Callers must not mutate a returned
// RunConfig.
type ConfigLoader struct {
	validator *validator.Validate
	cache     map[string]*RunConfig
	cacheMu   sync.RWMutex
	// sf collapses concurrent loads of the same configuration.
	sf singleflight.Group
}

// NewConfigLoader creates a loader with the custom validators registered.
func NewConfigLoader() (*ConfigLoader, error) {
	v := validator.New()
	if err := registerCustomValidators(v); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}
	return &ConfigLoader{
		validator: v,
		cache:     make(map[string]*RunConfig),
	}, nil
}

// LoadFromFile loads a run configuration from a YAML file.
func (cl *ConfigLoader) LoadFromFile(ctx context.Context, path string) (*RunConfig, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ports.NewConfigError(path, fmt.Errorf("%w: %w", ports.ErrConfigNotFound, err))
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return cl.load(ctx, data)
}

// LoadFromReader loads a run configuration from r.
func (cl *ConfigLoader) LoadFromReader(ctx context.Context, r io.Reader) (*RunConfig, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}
	return cl.load(ctx, data)
}

func (cl *ConfigLoader) load(ctx context.Context, data []byte) (*RunConfig, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var config RunConfig
	if err := decodeStrict(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	hash, err := configHash(&config)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate hash: %w", err)
	}

	v, err, _ := cl.sf.Do(hash, func() (any, error) {
		if cached, ok := cl.cached(hash); ok {
			return cached, nil
		}
		if err := cl.Validate(&config); err != nil {
			return nil, fmt.Errorf("validation failed: %w", err)
		}
		cl.cacheMu.Lock()
		cl.cache[hash] = &config
		cl.cacheMu.Unlock()
		return &config, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*RunConfig), nil
}

// Validate runs struct and semantic validation on config.
func (cl *ConfigLoader) Validate(config *RunConfig) error {
	if err := cl.validator.Struct(config); err != nil {
		return fmt.Errorf("struct validation failed: %w", err)
	}
	if err := validateSemantics(config); err != nil {
		return fmt.Errorf("semantic validation failed: %w", err)
	}
	return nil
}

func (cl *ConfigLoader) cached(hash string) (*RunConfig, bool) {
	cl.cacheMu.RLock()
	defer cl.cacheMu.RUnlock()
	c, ok := cl.cache[hash]
	return c, ok
}

// ClearCache drops every cached configuration.
func (cl *ConfigLoader) ClearCache() {
	cl.cacheMu.Lock()
	defer cl.cacheMu.Unlock()
	cl.cache = make(map[string]*RunConfig)
}

// decodeStrict fails on unknown fields so typos are not silently ignored.
func decodeStrict(data []byte, out any) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(out); err != nil {
		if err == io.EOF {
			return fmt.Errorf("YAML decode failed: empty document")
		}
		return fmt.Errorf("YAML decode failed: %w", err)
	}
	return nil
}

// configHash hashes the re-encoded config so formatting differences do not
// defeat the cache.
func configHash(config *RunConfig) (string, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(config); err != nil {
		return "", fmt.Errorf("failed to encode config for hashing: %w", err)
	}
	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:]), nil
}

// FileConfigSource is a ports.ConfigLoader that decodes a YAML file into
// an arbitrary struct and validates it with struct tags.
type FileConfigSource struct {
	Path      string
	validator *validator.Validate
}

var _ ports.ConfigLoader = (*FileConfigSource)(nil)

// NewFileConfigSource creates a source reading path.
func NewFileConfigSource(path string) (*FileConfigSource, error) {
	v := validator.New()
	if err := registerCustomValidators(v); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}
	return &FileConfigSource{Path: path, validator: v}, nil
}

// Load implements ports.ConfigLoader. config must be a pointer to a struct.
func (s *FileConfigSource) Load(ctx context.Context, config any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := os.ReadFile(filepath.Clean(s.Path))
	if err != nil {
		if os.IsNotExist(err) {
			return ports.NewConfigError(s.Path, ports.ErrConfigNotFound)
		}
		return ports.NewConfigError(s.Path, err)
	}
	if err := decodeStrict(data, config); err != nil {
		return ports.NewConfigError(s.Path, err)
	}
	if err := s.validator.Struct(config); err != nil {
		return ports.NewConfigError(s.Path, fmt.Errorf("struct validation failed: %w", err))
	}
	return nil
}
