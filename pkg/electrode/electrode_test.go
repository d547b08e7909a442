package electrode

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validGeometry() Geometry {
	return Geometry{
		Type:            "vileda",
		SaltType:        "saline",
		Salinity:        0.9,
		NormalHeight:    1.5,
		SqueezeHeight:   0.5,
		Width:           0.5,
		HeightDelta:     0.1,
		NormalHeightVar: 0.1,
	}
}

func TestNewVileda(t *testing.T) {
	v, err := NewVileda(validGeometry())
	require.NoError(t, err)

	assert.InDelta(t, 1.0, v.Height(), 1e-12)
	assert.Equal(t, 0.5, v.Width())

	nh := math.Sqrt(0.1*0.1/3 + 0.1)
	assert.InDelta(t, math.Sqrt(nh*nh+nh*nh), v.HeightError(), 1e-12)
}

func TestNewNormalisesEnumerations(t *testing.T) {
	g := validGeometry()
	g.Type = "  VILEDA "
	g.SaltType = "Tap Solution"

	e, err := New(g)
	require.NoError(t, err)
	assert.Equal(t, "vileda", e.Geometry().Type)
	assert.Equal(t, "tap solution", e.Geometry().SaltType)
}

func TestValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Geometry)
		field  string
	}{
		{"unknown salt", func(g *Geometry) { g.SaltType = "sea water" }, "salt_type"},
		{"salinity above range", func(g *Geometry) { g.Salinity = 101 }, "salinity"},
		{"negative salinity", func(g *Geometry) { g.Salinity = -1 }, "salinity"},
		{"negative squeeze", func(g *Geometry) { g.SqueezeHeight = -0.1 }, "squeeze_height"},
		{"zero normal height", func(g *Geometry) { g.NormalHeight = 0 }, "normal_height"},
		{"zero width", func(g *Geometry) { g.Width = 0 }, "width"},
		{"negative delta", func(g *Geometry) { g.HeightDelta = -1 }, "height_delta"},
		{"NaN variance", func(g *Geometry) { g.NormalHeightVar = math.NaN() }, "normal_height_var"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := validGeometry()
			tc.mutate(&g)
			_, err := NewVileda(g)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidGeometry)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestNaNSalinityAndZeroSqueezeAllowed(t *testing.T) {
	g := validGeometry()
	g.Salinity = math.NaN()
	g.SqueezeHeight = 0

	v, err := NewVileda(g)
	require.NoError(t, err)
	assert.Equal(t, 1.5, v.Height())
}

func TestNewUnknownAndUnmodelledTypes(t *testing.T) {
	g := validGeometry()
	g.Type = "cardboard"
	_, err := New(g)
	assert.ErrorIs(t, err, ErrInvalidGeometry)

	g.Type = "gel"
	_, err = New(g)
	assert.ErrorIs(t, err, ErrInvalidGeometry)
}

type flatElectrode struct {
	Base
}

func (f flatElectrode) Height() float64      { return f.Geometry().NormalHeight }
func (f flatElectrode) HeightError() float64 { return f.Geometry().HeightDelta }

func TestRegisterExtendsNew(t *testing.T) {
	Register(TypeGel, func(g Geometry) (Electrode, error) {
		base, err := NewBase(g)
		if err != nil {
			return nil, err
		}
		return flatElectrode{Base: base}, nil
	})
	t.Cleanup(func() {
		registryMu.Lock()
		delete(registry, TypeGel)
		registryMu.Unlock()
	})

	g := validGeometry()
	g.Type = "gel"
	e, err := New(g)
	require.NoError(t, err)
	assert.Equal(t, 1.5, e.Height())
	assert.Contains(t, Registered(), TypeGel)
}

func TestLess(t *testing.T) {
	a, err := NewVileda(validGeometry())
	require.NoError(t, err)

	g := validGeometry()
	g.SqueezeHeight = 0.2
	b, err := NewVileda(g)
	require.NoError(t, err)

	assert.True(t, Less(a, b))
	assert.False(t, Less(b, a))
}
