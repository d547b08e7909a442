package electrode

import (
	"fmt"
	"math"
)

func init() {
	Register(TypeVileda, func(g Geometry) (Electrode, error) {
		return NewVileda(g)
	})
}

// Vileda is a squeezed sponge electrode. Its effective height is the normal
// height minus the squeeze.
type Vileda struct {
	Base
	height      float64
	heightError float64
}

// NewVileda validates g and derives height and height error once.
// g.Type may be empty; it is always set to vileda.
func NewVileda(g Geometry) (*Vileda, error) {
	g.Type = string(TypeVileda)
	base, err := NewBase(g)
	if err != nil {
		return nil, err
	}

	// The tolerance is uniformly distributed, hence the division by 3.
	normalHeightError := math.Sqrt(g.HeightDelta*g.HeightDelta/3 + g.NormalHeightVar)

	return &Vileda{
		Base:   base,
		height: g.NormalHeight - g.SqueezeHeight,
		// The squeeze term enters as a second copy of the normal-height term.
		heightError: math.Sqrt(2 * normalHeightError * normalHeightError),
	}, nil
}

// Height implements Electrode.
func (v *Vileda) Height() float64 { return v.height }

// HeightError implements Electrode.
func (v *Vileda) HeightError() float64 { return v.heightError }

func (v *Vileda) String() string {
	g := v.Geometry()
	return fmt.Sprintf("ViledaElectrode(salt_type=%s, salinity=%v, normal_height=%v, squeeze_height=%v, width=%v, height_delta=%v, normal_height_var=%v)",
		g.SaltType, g.Salinity, g.NormalHeight, g.SqueezeHeight, g.Width, g.HeightDelta, g.NormalHeightVar)
}
