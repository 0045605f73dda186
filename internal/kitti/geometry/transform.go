package geometry

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Transform is a 4×4 homogeneous transform stored row-major.
type Transform [16]float64

// IdentityTransform leaves points unchanged.
var IdentityTransform = Transform{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 1, 0,
	0, 0, 0, 1,
}

// TransformFrom3x4 extends a 3×4 rigid transform with the [0 0 0 1] row.
func TransformFrom3x4(m mat.Matrix) (Transform, error) {
	r, c := m.Dims()
	if r != 3 || c != 4 {
		return Transform{}, fmt.Errorf("expected 3x4 matrix, got %dx%d", r, c)
	}
	var t Transform
	for i := 0; i < 3; i++ {
		for j := 0; j < 4; j++ {
			t[i*4+j] = m.At(i, j)
		}
	}
	t[15] = 1
	return t, nil
}

// Dense returns the transform as a gonum matrix.
func (t Transform) Dense() *mat.Dense {
	data := make([]float64, 16)
	copy(data, t[:])
	return mat.NewDense(4, 4, data)
}

// Inverse returns the full 4×4 inverse. Singular matrices are an error.
func (t Transform) Inverse() (Transform, error) {
	var inv mat.Dense
	if err := inv.Inverse(t.Dense()); err != nil {
		return Transform{}, fmt.Errorf("invert transform: %w", err)
	}
	var out Transform
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			out[i*4+j] = inv.At(i, j)
		}
	}
	return out, nil
}

// Apply transforms the point (x, y, z, 1) and drops the homogeneous term.
func (t Transform) Apply(p r3.Vec) r3.Vec {
	return r3.Vec{
		X: t[0]*p.X + t[1]*p.Y + t[2]*p.Z + t[3],
		Y: t[4]*p.X + t[5]*p.Y + t[6]*p.Z + t[7],
		Z: t[8]*p.X + t[9]*p.Y + t[10]*p.Z + t[11],
	}
}
