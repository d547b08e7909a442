// Package electrode describes electrode geometry used to turn a measured
// resistance into a volume resistivity.
package electrode

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
)

// ErrInvalidGeometry is wrapped by every validation failure.
var ErrInvalidGeometry = errors.New("invalid electrode geometry")

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%q %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrInvalidGeometry.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidGeometry
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Type is the electrode material.
type Type string

const (
	TypeVileda      Type = "vileda"
	TypeNano        Type = "nano"
	TypeWhiteSponge Type = "white sponge"
	TypeGel         Type = "gel"
)

// SaltType is the electrolyte the electrode is soaked in.
type SaltType string

const (
	SaltSaline         SaltType = "saline"
	SaltCustom         SaltType = "custom"
	SaltTapSolution    SaltType = "tap solution"
	SaltDistilledWater SaltType = "distilled water solution"
	SaltNA             SaltType = "n/a"
)

var (
	electrodeTypes = []Type{TypeVileda, TypeNano, TypeWhiteSponge, TypeGel}
	saltTypes      = []SaltType{SaltSaline, SaltCustom, SaltTapSolution, SaltDistilledWater, SaltNA}
)

// ParseType normalises s (case-insensitive, trimmed) into a known Type.
func ParseType(s string) (Type, error) {
	norm := Type(strings.ToLower(strings.TrimSpace(s)))
	for _, t := range electrodeTypes {
		if t == norm {
			return t, nil
		}
	}
	return "", invalid("electrode_type", "should be one of %v, not %q", electrodeTypes, s)
}

// ParseSaltType normalises s (case-insensitive, trimmed) into a known SaltType.
func ParseSaltType(s string) (SaltType, error) {
	norm := SaltType(strings.ToLower(strings.TrimSpace(s)))
	for _, t := range saltTypes {
		if t == norm {
			return t, nil
		}
	}
	return "", invalid("salt_type", "should be one of %v, not %q", saltTypes, s)
}

// Geometry holds the measured description of an electrode. Lengths are in cm,
// salinity in percent (NaN when unknown).
type Geometry struct {
	Type            string
	SaltType        string
	Salinity        float64
	NormalHeight    float64 // height before squeezing
	SqueezeHeight   float64 // amount of squeeze
	Width           float64
	HeightDelta     float64 // tolerance of the height placed in the piston
	NormalHeightVar float64 // variance between electrodes from cutting
}

// Electrode is a validated, immutable electrode description.
type Electrode interface {
	// Geometry returns the normalised geometry the electrode was built from
	Geometry() Geometry

	// Width returns the electrode width
	Width() float64

	// Height returns the effective electrode height
	Height() float64

	// HeightError returns the uncertainty of Height
	HeightError() float64
}

// Base validates a Geometry and provides the shared accessors.
// Concrete variants embed it and supply Height and HeightError.
type Base struct {
	geometry Geometry
}

// NewBase validates g and returns it with the type and salt type normalised.
func NewBase(g Geometry) (Base, error) {
	t, err := ParseType(g.Type)
	if err != nil {
		return Base{}, err
	}
	salt, err := ParseSaltType(g.SaltType)
	if err != nil {
		return Base{}, err
	}
	if !math.IsNaN(g.Salinity) && (g.Salinity < 0 || g.Salinity > 100) {
		return Base{}, invalid("salinity", "should be between 0 and 100 or NaN, not %v", g.Salinity)
	}
	if !(g.SqueezeHeight >= 0) || math.IsInf(g.SqueezeHeight, 0) {
		return Base{}, invalid("squeeze_height", "should be a non-negative number, not %v", g.SqueezeHeight)
	}

	positive := []struct {
		name  string
		value float64
	}{
		{"normal_height", g.NormalHeight},
		{"width", g.Width},
		{"height_delta", g.HeightDelta},
		{"normal_height_var", g.NormalHeightVar},
	}
	for _, p := range positive {
		if !(p.value > 0) || math.IsInf(p.value, 0) {
			return Base{}, invalid(p.name, "should be a positive number, not %v", p.value)
		}
	}

	g.Type = string(t)
	g.SaltType = string(salt)
	return Base{geometry: g}, nil
}

// Geometry implements Electrode.
func (b Base) Geometry() Geometry { return b.geometry }

// Width implements Electrode.
func (b Base) Width() float64 { return b.geometry.Width }

// Constructor builds a concrete electrode from a geometry.
type Constructor func(Geometry) (Electrode, error)

var (
	registryMu sync.RWMutex
	registry   = map[Type]Constructor{}
)

// Register makes a concrete electrode variant available to New.
func Register(t Type, ctor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[t] = ctor
}

// New builds the electrode variant registered for g.Type.
func New(g Geometry) (Electrode, error) {
	t, err := ParseType(g.Type)
	if err != nil {
		return nil, err
	}

	registryMu.RLock()
	ctor, ok := registry[t]
	registryMu.RUnlock()
	if !ok {
		return nil, invalid("electrode_type", "%q has no geometry model (available: %v)", t, Registered())
	}
	return ctor(g)
}

// Registered lists electrode types that have a geometry model.
func Registered() []Type {
	registryMu.RLock()
	defer registryMu.RUnlock()
	types := make([]Type, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Less orders electrodes by type, salt type, salinity and height.
func Less(a, b Electrode) bool {
	ga, gb := a.Geometry(), b.Geometry()
	if ga.Type != gb.Type {
		return ga.Type < gb.Type
	}
	if ga.SaltType != gb.SaltType {
		return ga.SaltType < gb.SaltType
	}
	if ga.Salinity != gb.Salinity {
		return ga.Salinity < gb.Salinity
	}
	return a.Height() < b.Height()
}
