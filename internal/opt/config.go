package opt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Fallback decides what happens when every candidate move is tabu and none aspires.
type Fallback string

const (
	// FallbackLeastDamaging applies the cheapest tabu move to leave the plateau.
	FallbackLeastDamaging Fallback = "least-damaging"
	// FallbackStop treats the iteration as having no candidates.
	FallbackStop Fallback = "stop"
)

// Construction selects the initial-solution strategy.
type Construction string

const (
	ConstructSimple Construction = "simple"
	ConstructTabu   Construction = "tabu"
)

// Insertion selects how the simple constructor picks among in-use routes.
type Insertion string

const (
	InsertCheapest Insertion = "cheapest"
	InsertFirst    Insertion = "first"
)

// Config carries every solver option. The zero value is not usable, start from DefaultConfig.
type Config struct {
	MaxIterations          int           `yaml:"maxIterations" json:"maxIterations"`
	MaxRunTime             time.Duration `yaml:"maxRunTime" json:"-"`
	BaseTenure             int           `yaml:"baseTenure" json:"baseTenure"`
	TenureJitter           int           `yaml:"tenureJitter" json:"tenureJitter"`
	NeighborhoodSampleSize int           `yaml:"neighborhoodSampleSize" json:"neighborhoodSampleSize"`
	TargetRoutes           int           `yaml:"targetRoutes" json:"targetRoutes"`
	MaxTabuEntries         int           `yaml:"maxTabuEntries" json:"maxTabuEntries"`
	RandomSeed             int64         `yaml:"randomSeed" json:"randomSeed"`
	UnassignedPenalty      float64       `yaml:"unassignedPenalty" json:"unassignedPenalty"`
	Fallback               Fallback      `yaml:"fallback" json:"fallback"`
	Construction           Construction  `yaml:"construction" json:"construction"`
	InitialInsertion       Insertion     `yaml:"initialInsertion" json:"initialInsertion"`
	ConstructIterations    int           `yaml:"constructIterations" json:"constructIterations"`
	EvictionDepth          int           `yaml:"evictionDepth" json:"evictionDepth"`
	StopOnAllServed        bool          `yaml:"stopOnAllServed" json:"stopOnAllServed"`
	// ExecutionDate locks initial-stop orders whose pickup opens before it.
	ExecutionDate float64 `yaml:"executionDate" json:"executionDate"`
	Workers       int     `yaml:"workers" json:"workers"`
}

// DefaultConfig returns the options used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		MaxIterations:          1000,
		MaxRunTime:             30 * time.Second,
		BaseTenure:             7,
		TenureJitter:           3,
		NeighborhoodSampleSize: 20,
		TargetRoutes:           4,
		MaxTabuEntries:         1024,
		RandomSeed:             1,
		UnassignedPenalty:      10000,
		Fallback:               FallbackLeastDamaging,
		Construction:           ConstructTabu,
		InitialInsertion:       InsertCheapest,
		ConstructIterations:    100,
		EvictionDepth:          2,
		Workers:                4,
	}
}

// Validate rejects option combinations the solver cannot run with.
// MaxIterations 0 is a valid zero budget; MaxRunTime 0 disables the clock.
func (c Config) Validate() error {
	switch {
	case c.MaxIterations < 0:
		return fmt.Errorf("maxIterations %d: %w", c.MaxIterations, ErrConfig)
	case c.MaxRunTime < 0:
		return fmt.Errorf("maxRunTime %s: %w", c.MaxRunTime, ErrConfig)
	case c.BaseTenure < 1:
		return fmt.Errorf("baseTenure %d: %w", c.BaseTenure, ErrConfig)
	case c.TenureJitter < 0:
		return fmt.Errorf("tenureJitter %d: %w", c.TenureJitter, ErrConfig)
	case c.NeighborhoodSampleSize < 1:
		return fmt.Errorf("neighborhoodSampleSize %d: %w", c.NeighborhoodSampleSize, ErrConfig)
	case c.TargetRoutes < 1:
		return fmt.Errorf("targetRoutes %d: %w", c.TargetRoutes, ErrConfig)
	case c.MaxTabuEntries < 1:
		return fmt.Errorf("maxTabuEntries %d: %w", c.MaxTabuEntries, ErrConfig)
	case c.UnassignedPenalty < 0:
		return fmt.Errorf("unassignedPenalty %v: %w", c.UnassignedPenalty, ErrConfig)
	case c.ConstructIterations < 0:
		return fmt.Errorf("constructIterations %d: %w", c.ConstructIterations, ErrConfig)
	case c.EvictionDepth < 0:
		return fmt.Errorf("evictionDepth %d: %w", c.EvictionDepth, ErrConfig)
	case c.Workers < 1:
		return fmt.Errorf("workers %d: %w", c.Workers, ErrConfig)
	}
	switch c.Fallback {
	case FallbackLeastDamaging, FallbackStop:
	default:
		return fmt.Errorf("fallback %q: %w", c.Fallback, ErrConfig)
	}
	switch c.Construction {
	case ConstructSimple, ConstructTabu:
	default:
		return fmt.Errorf("construction %q: %w", c.Construction, ErrConfig)
	}
	switch c.InitialInsertion {
	case InsertCheapest, InsertFirst:
	default:
		return fmt.Errorf("initialInsertion %q: %w", c.InitialInsertion, ErrConfig)
	}
	return nil
}

// Override layers options keyed by their JSON names onto c. maxRunTime takes a
// duration string such as "1.5s". Unknown keys are rejected. The result is not
// validated.
func (c *Config) Override(overrides map[string]any) error {
	if len(overrides) == 0 {
		return nil
	}
	rest := make(map[string]any, len(overrides))
	for k, v := range overrides {
		rest[k] = v
	}
	if v, ok := rest["maxRunTime"]; ok {
		str, ok := v.(string)
		if !ok {
			return fmt.Errorf("maxRunTime must be a duration string: %w", ErrConfig)
		}
		d, err := time.ParseDuration(str)
		if err != nil {
			return fmt.Errorf("maxRunTime: %v: %w", err, ErrConfig)
		}
		c.MaxRunTime = d
		delete(rest, "maxRunTime")
	}
	b, err := json.Marshal(rest)
	if err != nil {
		return fmt.Errorf("%v: %w", err, ErrConfig)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("%v: %w", err, ErrConfig)
	}
	return nil
}
