package llm

import "sync"

// BaseProvider holds the model name shared by every provider.
type BaseProvider struct {
	mu    sync.RWMutex
	model string
}

// GetModel returns the configured model. It is safe for concurrent use.
func (b *BaseProvider) GetModel() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.model
}

// SetModel replaces the configured model. It is safe for concurrent use.
func (b *BaseProvider) SetModel(model string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.model = model
}

// RequestOptions is the provider-neutral view of a request option map.
type RequestOptions struct {
	MaxTokens int
	Model     string
	// Temperature and TopP are nil when the provider default applies.
	Temperature *float64
	TopP        *float64
	System      string
	// Extra keeps options that only some providers understand.
	Extra map[string]any
}

// ParseRequestOptions reads the standard keys out of opts. Missing or
// invalid values fall back to defaults; unknown keys land in Extra.
func ParseRequestOptions(opts map[string]any, defaultModel string) RequestOptions {
	options := RequestOptions{
		MaxTokens: optInt(opts, "max_tokens", DefaultMaxTokens, IsPositiveInt),
		Model:     optString(opts, "model", defaultModel, IsNonEmptyString),
		System:    optString(opts, "system", "", nil),
		Extra:     make(map[string]any),
	}
	if v, ok := optFloat(opts, "temperature", IsValidTemperature); ok {
		options.Temperature = &v
	}
	if v, ok := optFloat(opts, "top_p", IsValidTopP); ok {
		options.TopP = &v
	}
	for k, v := range opts {
		switch k {
		case "max_tokens", "model", "system", "temperature", "top_p":
		default:
			options.Extra[k] = v
		}
	}
	return options
}

func optInt(opts map[string]any, key string, def int, valid func(int) bool) int {
	v, ok := SafeInt(opts[key])
	if !ok || (valid != nil && !valid(v)) {
		return def
	}
	return v
}

func optString(opts map[string]any, key, def string, valid func(string) bool) string {
	v, ok := opts[key].(string)
	if !ok || (valid != nil && !valid(v)) {
		return def
	}
	return v
}

func optFloat(opts map[string]any, key string, valid func(float64) bool) (float64, bool) {
	var v float64
	switch x := opts[key].(type) {
	case float64:
		v = x
	case float32:
		v = float64(x)
	case int:
		v = float64(x)
	default:
		return 0, false
	}
	if valid != nil && !valid(v) {
		return 0, false
	}
	return v, true
}
