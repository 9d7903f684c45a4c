// Package config loads the configuration of the trace manager binary.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"

	"github.com/l7mp/arrange/pkg/trace"
	"github.com/l7mp/arrange/pkg/util"
)

const (
	DefaultMaintenanceInterval = time.Second
	DefaultStepInterval        = 100 * time.Millisecond
	DefaultCompactionLag       = 10
	DefaultRowsPerStep         = 16
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the configuration of a trace manager process.
type Config struct {
	// MaintenanceInterval is the period of the maintenance tick.
	MaintenanceInterval metav1.Duration `json:"maintenanceInterval,omitempty"`
	// StepInterval is the period at which sources produce a new batch.
	StepInterval metav1.Duration `json:"stepInterval,omitempty"`
	// CompactionLag is the number of steps the compaction frontier trails the upper.
	CompactionLag *uint64 `json:"compactionLag,omitempty"`
	// Collections are the arranged collections.
	Collections []Collection `json:"collections"`
}

// Collection describes how a collection is arranged.
type Collection struct {
	Name string `json:"name"`
	// BySelf arranges the collection by the whole record.
	BySelf bool `json:"bySelf,omitempty"`
	// Keys lists the key projections to arrange by, e.g., [[0], [1, 0]].
	Keys [][]int `json:"keys,omitempty"`
	// Columns is the number of columns of the records.
	Columns int `json:"columns"`
	// RowsPerStep is the number of records inserted per step.
	RowsPerStep int `json:"rowsPerStep,omitempty"`
}

// Projections returns the key projections of the collection.
func (c Collection) Projections() []trace.KeyProjection {
	return util.Map(func(k []int) trace.KeyProjection { return trace.KeyProjection(k) }, c.Keys)
}

// Load reads the configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
	}
	return Parse(data)
}

// Parse parses a YAML configuration, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	c := &Config{}
	if err := yaml.UnmarshalStrict(data, c); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	c.Default()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Default fills in unset fields.
func (c *Config) Default() {
	if c.MaintenanceInterval.Duration == 0 {
		c.MaintenanceInterval.Duration = DefaultMaintenanceInterval
	}
	if c.StepInterval.Duration == 0 {
		c.StepInterval.Duration = DefaultStepInterval
	}
	if c.CompactionLag == nil {
		lag := uint64(DefaultCompactionLag)
		c.CompactionLag = &lag
	}
	for i := range c.Collections {
		if c.Collections[i].RowsPerStep == 0 {
			c.Collections[i].RowsPerStep = DefaultRowsPerStep
		}
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.MaintenanceInterval.Duration < 0 {
		return fmt.Errorf("%w: negative maintenance interval", ErrInvalidConfig)
	}
	if c.StepInterval.Duration < 0 {
		return fmt.Errorf("%w: negative step interval", ErrInvalidConfig)
	}

	names := map[string]bool{}
	for i, coll := range c.Collections {
		if coll.Name == "" {
			return fmt.Errorf("%w: collection %d has no name", ErrInvalidConfig, i)
		}
		if names[coll.Name] {
			return fmt.Errorf("%w: duplicate collection %q", ErrInvalidConfig, coll.Name)
		}
		names[coll.Name] = true

		if coll.Columns < 1 {
			return fmt.Errorf("%w: collection %q: at least one column is required", ErrInvalidConfig, coll.Name)
		}
		if coll.RowsPerStep < 0 {
			return fmt.Errorf("%w: collection %q: negative rowsPerStep", ErrInvalidConfig, coll.Name)
		}
		if !coll.BySelf && len(coll.Keys) == 0 {
			return fmt.Errorf("%w: collection %q is not arranged", ErrInvalidConfig, coll.Name)
		}

		projections := map[string]bool{}
		for _, keys := range coll.Projections() {
			for _, col := range keys {
				if col < 0 || col >= coll.Columns {
					return fmt.Errorf("%w: collection %q: projection %s: column %d out of range",
						ErrInvalidConfig, coll.Name, keys, col)
				}
			}
			if projections[keys.String()] {
				return fmt.Errorf("%w: collection %q: duplicate projection %s", ErrInvalidConfig,
					coll.Name, keys)
			}
			projections[keys.String()] = true
		}
	}
	return nil
}
