package blockmap

import (
	"math"

	"github.com/annel0/zonegen/internal/vec"
	"github.com/go-gl/mathgl/mgl64"
)

// Triangle треугольник поверхности в координатах мира (X, высота, Z)
type Triangle [3]mgl64.Vec3

// Normal нормаль треугольника (не нормирована)
func (t Triangle) Normal() mgl64.Vec3 {
	return t[1].Sub(t[0]).Cross(t[2].Sub(t[0]))
}

// splitMainDiagonal выбирает диагональ квадрата с меньшим перепадом высот:
// true для диагонали 00-11, false для 10-01.
func splitMainDiagonal(h00, h10, h01, h11 float64) bool {
	return math.Abs(h00-h11) <= math.Abs(h10-h01)
}

// quadHeights высоты четырёх углов колонки для слоя
func (m *BlockMap) quadHeights(p vec.Vec2, l Layer) (h00, h10, h01, h11 float64) {
	h00 = m.GetHeights(p).Get(l)
	h10 = m.GetHeights(vec.Vec2{X: p.X + 1, Y: p.Y}).Get(l)
	h01 = m.GetHeights(vec.Vec2{X: p.X, Y: p.Y + 1}).Get(l)
	h11 = m.GetHeights(vec.Vec2{X: p.X + 1, Y: p.Y + 1}).Get(l)
	return
}

// SurfaceTriangles два треугольника поверхности слоя над колонкой p.
// Разбиение совпадает с тем, по которому считается GetHeight.
func (m *BlockMap) SurfaceTriangles(p vec.Vec2, l Layer) ([2]Triangle, bool) {
	if !m.bounds.Contains(p) {
		return [2]Triangle{}, false
	}
	h00, h10, h01, h11 := m.quadHeights(p, l)
	x0, z0 := float64(p.X), float64(p.Y)
	v00 := mgl64.Vec3{x0, h00, z0}
	v10 := mgl64.Vec3{x0 + 1, h10, z0}
	v01 := mgl64.Vec3{x0, h01, z0 + 1}
	v11 := mgl64.Vec3{x0 + 1, h11, z0 + 1}

	if splitMainDiagonal(h00, h10, h01, h11) {
		return [2]Triangle{{v00, v10, v11}, {v00, v11, v01}}, true
	}
	return [2]Triangle{{v00, v10, v01}, {v11, v01, v10}}, true
}

// GetHeight высота поверхности (слой Main) в точке плоскости XZ
func (m *BlockMap) GetHeight(x, z float64) float64 {
	return m.GetLayerHeight(x, z, LayerMain)
}

// GetLayerHeight высота слоя в точке: выбирается треугольник квадрата
// и высота интерполируется барицентрически. Вне карты 0.
func (m *BlockMap) GetLayerHeight(x, z float64, l Layer) float64 {
	if math.IsNaN(x) || math.IsNaN(z) {
		return 0
	}
	cx, cz := int(math.Floor(x)), int(math.Floor(z))
	// правая и дальняя кромки карты принадлежат последней колонке
	if cx == m.bounds.Max.X && x == float64(cx) {
		cx--
	}
	if cz == m.bounds.Max.Y && z == float64(cz) {
		cz--
	}
	p := vec.Vec2{X: cx, Y: cz}
	if !m.bounds.Contains(p) {
		return 0
	}
	fx, fz := x-float64(cx), z-float64(cz)
	h00, h10, h01, h11 := m.quadHeights(p, l)

	if splitMainDiagonal(h00, h10, h01, h11) {
		if fx >= fz {
			return h00 + fx*(h10-h00) + fz*(h11-h10)
		}
		return h00 + fz*(h01-h00) + fx*(h11-h01)
	}
	if fx+fz <= 1 {
		return h00 + fx*(h10-h00) + fz*(h01-h00)
	}
	return h11 + (1-fx)*(h01-h11) + (1-fz)*(h10-h11)
}
