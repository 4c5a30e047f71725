package application

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var modelPattern = regexp.MustCompile(`^[a-z0-9]+/[A-Za-z0-9\-_\.]+(@[A-Za-z0-9\-_\.]+)?$`)

// registerCustomValidators registers the semver and modelformat rules used
// in RunConfig struct tags.
func registerCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("semver", validateSemver); err != nil {
		return fmt.Errorf("failed to register semver validator: %w", err)
	}
	if err := v.RegisterValidation("modelformat", validateModelFormat); err != nil {
		return fmt.Errorf("failed to register modelformat validator: %w", err)
	}
	return nil
}

// validateSemver accepts X.Y.Z where X, Y and Z are non-negative integers.
func validateSemver(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	var major, minor, patch int
	n, err := fmt.Sscanf(value, "%d.%d.%d", &major, &minor, &patch)
	if err != nil || n != 3 || major < 0 || minor < 0 || patch < 0 {
		return false
	}
	return fmt.Sprintf("%d.%d.%d", major, minor, patch) == value
}

// validateModelFormat validates that a model string matches
// provider/model or provider/model@version.
func validateModelFormat(fl validator.FieldLevel) bool {
	model := fl.Field().String()
	if model == "" {
		return true
	}
	return modelPattern.MatchString(model)
}

// SplitModel splits "provider/model" into its parts. The model part is
// empty when s has no slash.
func SplitModel(s string) (provider, model string) {
	provider, model, _ = strings.Cut(s, "/")
	return provider, model
}

// validateSemantics checks the rules struct tags cannot express: unique
// item IDs, enough active items, and judge and store settings that depend
// on each other.
func validateSemantics(config *RunConfig) error {
	ids := make(map[string]struct{}, len(config.Items))
	active := 0
	for _, it := range config.Items {
		if _, dup := ids[it.ID]; dup {
			return fmt.Errorf("duplicate item ID %q", it.ID)
		}
		ids[it.ID] = struct{}{}
		if it.Status == "" || it.Status == "active" {
			active++
		}
	}
	if active < 2 {
		return fmt.Errorf("at least 2 active items are required, got %d", active)
	}

	switch config.JudgeType() {
	case JudgeLLM:
		if config.Judge.Model == "" {
			return fmt.Errorf("judge type %q requires a model", JudgeLLM)
		}
	case JudgeOracle:
		if len(config.Judge.Oracle) == 0 {
			return fmt.Errorf("judge type %q requires an oracle ordering", JudgeOracle)
		}
		for _, id := range config.Judge.Oracle {
			if _, ok := ids[id]; !ok {
				return fmt.Errorf("oracle references unknown item %q", id)
			}
		}
	}

	if r := config.Judge.Retry; r.MaxWait > 0 && r.InitialWait > r.MaxWait {
		return fmt.Errorf("retry initial_wait %s exceeds max_wait %s", r.InitialWait, r.MaxWait)
	}

	switch config.StoreBackend() {
	case BackendRedis, BackendSQLite:
		if config.Store.DSN == "" {
			return fmt.Errorf("store backend %q requires a dsn", config.Store.Backend)
		}
	}
	return nil
}
