package manifest

import (
	"fmt"
	"runtime"

	"github.com/Masterminds/semver/v3"

	"github.com/wippyai/effectgen/compiler"
	"github.com/wippyai/effectgen/decl"
	"github.com/wippyai/effectgen/effect"
	"github.com/wippyai/effectgen/syntax"
)

// Config is the engine configuration section of a manifest.
type Config struct {
	// Externs maps type names declared outside the manifest to the
	// concrete type they alias (e.g. "Handle: u32").
	Externs map[string]string `yaml:"externs,omitempty"`

	// Compat is the semver constraint selecting which legacy layouts the
	// all-absent variants must stay compatible with. Empty checks all.
	Compat string `yaml:"compat,omitempty"`

	// Effects lists the recognized effect kinds. Defaults to async with
	// the await marker.
	Effects []EffectDef `yaml:"effects,omitempty"`

	// Workers bounds the number of components lowered in parallel.
	// Defaults to GOMAXPROCS.
	Workers int `yaml:"workers,omitempty"`

	// Strict turns advisory diagnostics into failures.
	Strict bool `yaml:"strict,omitempty"`
}

// EffectDef declares one recognized effect kind.
type EffectDef struct {
	Name string `yaml:"name"`
	// Marker is the postfix call-site marker that implies the effect
	// (".await" implies async).
	Marker string `yaml:"marker,omitempty"`
}

func (c *Config) validate(path string) error {
	if len(c.Effects) > effect.MaxKinds {
		return fmt.Errorf("%s: config: %d effects declared (max %d)", path, len(c.Effects), effect.MaxKinds)
	}
	seen := make(map[string]bool, len(c.Effects))
	for i, e := range c.Effects {
		if e.Name == "" {
			return fmt.Errorf("%s: config.effects[%d]: name is required", path, i)
		}
		if seen[e.Name] {
			return fmt.Errorf("%s: config.effects[%d]: duplicate effect %q", path, i, e.Name)
		}
		seen[e.Name] = true
	}
	if c.Workers < 0 {
		return fmt.Errorf("%s: config.workers must not be negative", path)
	}
	if c.Compat != "" {
		if _, err := semver.NewConstraint(c.Compat); err != nil {
			return fmt.Errorf("%s: config.compat %q: %w", path, c.Compat, err)
		}
	}
	for name, alias := range c.Externs {
		if _, err := syntax.ParseType(alias); err != nil {
			return fmt.Errorf("%s: config.externs.%s: %w", path, name, err)
		}
	}
	return nil
}

func (c *Config) setDefaults() {
	if len(c.Effects) == 0 {
		c.Effects = []EffectDef{{Name: string(effect.Async), Marker: "await"}}
	}
	if c.Workers == 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
}

// Registry builds the effect registry.
func (c *Config) Registry() (*effect.Registry, error) {
	defs := make([]effect.Def, len(c.Effects))
	for i, e := range c.Effects {
		defs[i] = effect.Def{Name: effect.Kind(e.Name), Marker: e.Marker}
	}
	return effect.NewRegistry(defs...)
}

// Constraint returns the compatibility range, nil when unset.
func (c *Config) Constraint() (*semver.Constraints, error) {
	if c.Compat == "" {
		return nil, nil
	}
	return semver.NewConstraint(c.Compat)
}

// Compiler converts the configuration into a compiler configuration.
func (c *Config) Compiler() (compiler.Config, error) {
	reg, err := c.Registry()
	if err != nil {
		return compiler.Config{}, err
	}
	compat, err := c.Constraint()
	if err != nil {
		return compiler.Config{}, err
	}
	externs := make(map[string]decl.TypeExpr, len(c.Externs))
	for name, alias := range c.Externs {
		t, err := syntax.ParseType(alias)
		if err != nil {
			return compiler.Config{}, fmt.Errorf("extern %s: %w", name, err)
		}
		externs[name] = t
	}
	return compiler.Config{
		Registry: reg,
		Externs:  externs,
		Compat:   compat,
		Workers:  c.Workers,
		Strict:   c.Strict,
	}, nil
}
