package numeric

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrSingular is returned when a matrix cannot be inverted or a vector has no
// direction.
var ErrSingular = errors.New("singular operand")

const singularTol = 1e-14

// Vec3 is a 3-component vector.
type Vec3 [3]float64

// Cross returns a x b.
func Cross(a, b Vec3) Vec3 {
	return Vec3{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

// Dot returns the inner product of equally sized vectors.
func Dot(a, b []float64) float64 {
	return floats.Dot(a, b)
}

// Norm returns the Euclidean norm of v.
func Norm(v []float64) float64 {
	return floats.Norm(v, 2)
}

// Normalize returns v scaled to unit length. A (nearly) null vector yields a
// zero vector and ErrSingular.
func Normalize(v []float64) ([]float64, error) {
	out := make([]float64, len(v))
	n := Norm(v)
	if n < singularTol {
		return out, ErrSingular
	}
	floats.ScaleTo(out, 1/n, v)
	return out, nil
}

// Matrix builds a rows x cols matrix from row-major data.
func Matrix(rows, cols int, data []float64) *mat.Dense {
	return mat.NewDense(rows, cols, append([]float64(nil), data...))
}

// MatProd returns a*b.
func MatProd(a, b mat.Matrix) *mat.Dense {
	var out mat.Dense
	out.Mul(a, b)
	return &out
}

// MulVec returns m*v.
func MulVec(m mat.Matrix, v []float64) []float64 {
	var out mat.VecDense
	out.MulVec(m, mat.NewVecDense(len(v), append([]float64(nil), v...)))
	return out.RawVector().Data
}

// Det returns the determinant of a square matrix.
func Det(m mat.Matrix) float64 {
	return mat.Det(m)
}

// Inverse returns the inverse of m. When |det| is below 1e-14 it returns a
// zero matrix and ErrSingular.
func Inverse(m mat.Matrix) (*mat.Dense, error) {
	r, c := m.Dims()
	if math.Abs(mat.Det(m)) < singularTol {
		return mat.NewDense(r, c, nil), ErrSingular
	}
	var inv mat.Dense
	if err := inv.Inverse(m); err != nil {
		return mat.NewDense(r, c, nil), errors.Wrap(ErrSingular, err.Error())
	}
	return &inv, nil
}

// Transpose returns a copy of m transposed.
func Transpose(m mat.Matrix) *mat.Dense {
	return mat.DenseCopyOf(m.T())
}
