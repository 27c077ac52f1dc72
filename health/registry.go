package health

import (
	"context"
	"fmt"

	"github.com/jonwraymond/memocache/cache"
)

// RegistryCheckerConfig configures a RegistryChecker.
type RegistryCheckerConfig struct {
	// Name is reported by Name(). Default: "memo-registry".
	Name string

	// MaxStores is the number of live tagged stores above which the check
	// reports Degraded. Zero disables the threshold.
	MaxStores int
}

// RegistryChecker reports on the growth of a tag registry.
type RegistryChecker struct {
	reg    *cache.TagRegistry
	config RegistryCheckerConfig
}

// NewRegistryChecker creates a checker for reg.
func NewRegistryChecker(reg *cache.TagRegistry, config RegistryCheckerConfig) *RegistryChecker {
	if config.Name == "" {
		config.Name = "memo-registry"
	}
	return &RegistryChecker{reg: reg, config: config}
}

func (c *RegistryChecker) Name() string { return c.config.Name }

// Check prunes collected stores from the registry, then compares the live
// store count against MaxStores.
func (c *RegistryChecker) Check(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return Unhealthy("context cancelled", err)
	}
	if c.reg == nil {
		return Unhealthy("no registry configured", ErrNilRegistry)
	}

	pruned := c.reg.Prune()
	stores := c.reg.Stores()
	tags := c.reg.Tags()

	details := map[string]any{
		"stores": stores,
		"tags":   len(tags),
		"pruned": pruned,
	}
	if c.config.MaxStores > 0 {
		details["max_stores"] = c.config.MaxStores
	}

	if c.config.MaxStores > 0 && stores > c.config.MaxStores {
		return Degraded(fmt.Sprintf("%d live tagged stores exceeds %d", stores, c.config.MaxStores)).
			WithDetails(details)
	}
	return Healthy(fmt.Sprintf("%d live tagged stores across %d tags", stores, len(tags))).
		WithDetails(details)
}
