package raycast

import (
	"math"

	"github.com/annel0/zonegen/internal/blockmap"
	"github.com/annel0/zonegen/internal/vec"
	"github.com/go-gl/mathgl/mgl64"
)

// triangleEpsilon порог вырожденности в тесте Мёллера-Трумбора
const triangleEpsilon = 1e-12

// Ray луч в координатах карты (X, высота, Z)
type Ray struct {
	Origin    mgl64.Vec3
	Direction mgl64.Vec3
}

// At точка луча на параметре t
func (r Ray) At(t float64) mgl64.Vec3 {
	return r.Origin.Add(r.Direction.Mul(t))
}

// Hit результат попадания луча
type Hit struct {
	Point    mgl64.Vec3
	Distance float64
	Block    vec.Vec2
	Map      *blockmap.BlockMap // карта, чья поверхность задета
	Layer    blockmap.Layer     // LayerBase означает нижнюю сторону парящей карты
}

// IntersectTriangle двусторонний тест Мёллера-Трумбора. Возвращает параметр
// t >= 0 точки пересечения.
func IntersectTriangle(ray Ray, tri blockmap.Triangle) (float64, bool) {
	e1 := tri[1].Sub(tri[0])
	e2 := tri[2].Sub(tri[0])
	pvec := ray.Direction.Cross(e2)
	det := e1.Dot(pvec)
	if math.Abs(det) < triangleEpsilon {
		return 0, false
	}
	inv := 1 / det

	tvec := ray.Origin.Sub(tri[0])
	u := tvec.Dot(pvec) * inv
	if u < 0 || u > 1 {
		return 0, false
	}
	qvec := tvec.Cross(e1)
	v := ray.Direction.Dot(qvec) * inv
	if v < 0 || u+v > 1 {
		return 0, false
	}
	t := e2.Dot(qvec) * inv
	if t < 0 {
		return 0, false
	}
	return t, true
}

// Cast ищет первое попадание луча в поверхность карты m на расстоянии до
// maxDist. Колонки обходятся в порядке DDA; в колонке, перекрытой дочерней
// картой сверху или насквозь, сначала проверяется дочерняя карта (для
// парящей и её нижняя сторона), затем своя поверхность. Побеждает
// ближайшее попадание в первой колонке, где оно есть.
func Cast(m *blockmap.BlockMap, ray Ray, maxDist float64) (Hit, bool) {
	if m == nil || !(maxDist >= 0) {
		return Hit{}, false
	}
	if ray.Direction.Len() == 0 || !finite3(ray.Origin) || !finite3(ray.Direction) {
		return Hit{}, false
	}
	ray.Direction = ray.Direction.Normalize()

	bounds := m.Bounds()
	t0, t1, ok := clipXZ(ray, bounds, maxDist)
	if !ok {
		return Hit{}, false
	}

	from := ray.At(t0)
	to := ray.At(t1)
	var (
		hit   Hit
		found bool
	)
	Walk(
		vec.Vec2Float{X: from.X(), Y: from.Z()},
		vec.Vec2Float{X: to.X(), Y: to.Z()},
		1,
		func(p vec.Vec2) bool {
			if !bounds.Contains(p) {
				return true
			}
			hit, found = castColumn(m, ray, p, maxDist)
			return !found
		},
	)
	return hit, found
}

// clipXZ пересекает проекцию луча [0, maxDist] с прямоугольником карты
// (метод плит). Для вертикального луча отрезок вырождается в точку начала.
func clipXZ(ray Ray, bounds vec.Rect, maxDist float64) (t0, t1 float64, ok bool) {
	t0, t1 = 0, maxDist
	slabs := [2]struct{ o, d, lo, hi float64 }{
		{ray.Origin.X(), ray.Direction.X(), float64(bounds.Min.X), float64(bounds.Max.X)},
		{ray.Origin.Z(), ray.Direction.Z(), float64(bounds.Min.Y), float64(bounds.Max.Y)},
	}
	for _, s := range slabs {
		if s.d == 0 {
			if s.o < s.lo || s.o > s.hi {
				return 0, 0, false
			}
			continue
		}
		a := (s.lo - s.o) / s.d
		b := (s.hi - s.o) / s.d
		if a > b {
			a, b = b, a
		}
		t0 = math.Max(t0, a)
		t1 = math.Min(t1, b)
		if t0 > t1 {
			return 0, 0, false
		}
	}
	if math.IsInf(t1, 1) {
		// луч вертикален: в плоскости XZ он не сдвигается
		t1 = t0
	}
	return t0, t1, true
}

func finite3(v mgl64.Vec3) bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

func castColumn(m *blockmap.BlockMap, ray Ray, p vec.Vec2, maxDist float64) (Hit, bool) {
	best := Hit{Distance: math.Inf(1)}
	try := func(src *blockmap.BlockMap, l blockmap.Layer) {
		tris, ok := src.SurfaceTriangles(p, l)
		if !ok {
			return
		}
		for _, tri := range tris {
			if t, ok := IntersectTriangle(ray, tri); ok && t <= maxDist && t < best.Distance {
				best = Hit{Point: ray.At(t), Distance: t, Block: p, Map: src, Layer: l}
			}
		}
	}

	state := m.GetOcclusionState(p)
	if state.Kind == blockmap.OverlapAbove || state.Kind == blockmap.OverlapOverlapping {
		if child := m.Child(state.MapID); child != nil {
			try(&child.BlockMap, blockmap.LayerMain)
			if state.Kind == blockmap.OverlapAbove {
				try(&child.BlockMap, blockmap.LayerBase)
			}
		}
	}
	try(m, blockmap.LayerMain)

	if math.IsInf(best.Distance, 1) {
		return Hit{}, false
	}
	return best, true
}
