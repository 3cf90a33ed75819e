package geometry

import (
	"math"
	"sort"

	"github.com/annel0/zonegen/internal/vec"
)

// borderTag помечает сторону многоугольника, лежащую на ограничивающем прямоугольнике
const borderTag = -1

// polyPoint вершина многоугольника; Tag относится к стороне,
// начинающейся в этой вершине (индекс соседнего сайта или borderTag)
type polyPoint struct {
	P   vec.Vec2Float
	Tag int
}

// Generate строит разбиение Вороного для точек, обрезанное прямоугольником bounds.
// Точки вне границ и дубликаты (в пределах Epsilon) отбрасываются,
// поэтому ячеек может оказаться меньше, чем точек. Сетка, нарушающая
// инварианты смежности, не возвращается: ошибка ErrInconsistentMesh.
func Generate(points []vec.Vec2Float, bounds vec.RectFloat) (*Mesh, error) {
	if len(points) == 0 {
		return nil, ErrNoPoints
	}
	if !bounds.Valid() {
		return nil, ErrInvalidBounds
	}

	sites := filterSites(points, bounds)
	if len(sites) == 0 {
		return nil, ErrNoCellsGenerated
	}

	inputs := make([]cellInput, 0, len(sites))
	for i := range sites {
		poly := clipCell(sites, i, bounds)
		if len(poly) < 3 {
			continue
		}
		in := cellInput{Center: sites[i], Outline: make([]vec.Vec2Float, len(poly))}
		for k, pp := range poly {
			in.Outline[k] = pp.P
			if pp.Tag == borderTag {
				continue
			}
			next := poly[(k+1)%len(poly)]
			in.Segments = append(in.Segments, [2]vec.Vec2Float{pp.P, next.P})
		}
		inputs = append(inputs, in)
	}

	mesh, err := buildMesh(bounds, inputs)
	if err != nil {
		return nil, err
	}
	// Четыре и более сайта на одной окружности дают вершину с 4+ рёбрами
	if err := mesh.Validate(); err != nil {
		return nil, err
	}
	return mesh, nil
}

// filterSites отбрасывает точки вне границ и почти совпадающие точки
func filterSites(points []vec.Vec2Float, bounds vec.RectFloat) []vec.Vec2Float {
	idx := newPointIndex(Epsilon)
	out := make([]vec.Vec2Float, 0, len(points))
	for _, p := range points {
		if !bounds.Contains(p) {
			continue
		}
		if _, found := idx.find(p); found {
			continue
		}
		idx.add(p, int32(len(out)))
		out = append(out, p)
	}
	return out
}

// clipCell возвращает выпуклый многоугольник ячейки сайта i:
// прямоугольник границ, последовательно обрезанный серединными
// перпендикулярами к остальным сайтам.
func clipCell(sites []vec.Vec2Float, i int, bounds vec.RectFloat) []polyPoint {
	site := sites[i]

	// По часовой стрелке при оси Y, направленной вверх
	poly := []polyPoint{
		{P: vec.Vec2Float{X: bounds.Min.X, Y: bounds.Max.Y}, Tag: borderTag},
		{P: vec.Vec2Float{X: bounds.Max.X, Y: bounds.Max.Y}, Tag: borderTag},
		{P: vec.Vec2Float{X: bounds.Max.X, Y: bounds.Min.Y}, Tag: borderTag},
		{P: vec.Vec2Float{X: bounds.Min.X, Y: bounds.Min.Y}, Tag: borderTag},
	}

	order := make([]int, 0, len(sites)-1)
	for j := range sites {
		if j != i {
			order = append(order, j)
		}
	}
	sort.Slice(order, func(a, b int) bool {
		return site.DistanceSqTo(sites[order[a]]) < site.DistanceSqTo(sites[order[b]])
	})

	radius := polyRadiusSq(poly, site)
	for _, j := range order {
		// Серединный перпендикуляр дальше самой удалённой вершины не режет ячейку
		if site.DistanceSqTo(sites[j])/4 > radius {
			break
		}
		other := sites[j]
		n := other.Sub(site)
		mid := site.Add(other).Mul(0.5)
		poly = clipHalfPlane(poly, n, n.Dot(mid), j)
		if len(poly) < 3 {
			return nil
		}
		radius = polyRadiusSq(poly, site)
	}
	return poly
}

// clipHalfPlane оставляет часть выпуклого многоугольника, где n·p <= c.
// Сторона, появившаяся на линии отсечения, получает метку tag.
func clipHalfPlane(poly []polyPoint, n vec.Vec2Float, c float64, tag int) []polyPoint {
	const inside = 1e-9
	out := make([]polyPoint, 0, len(poly)+1)
	for k := range poly {
		cur := poly[k]
		next := poly[(k+1)%len(poly)]
		dc := n.Dot(cur.P) - c
		dn := n.Dot(next.P) - c
		curIn := dc <= inside
		nextIn := dn <= inside

		if curIn {
			out = append(out, cur)
		}
		if curIn != nextIn {
			t := dc / (dc - dn)
			ip := cur.P.Add(next.P.Sub(cur.P).Mul(t))
			if curIn {
				out = append(out, polyPoint{P: ip, Tag: tag})
			} else {
				out = append(out, polyPoint{P: ip, Tag: cur.Tag})
			}
		}
	}
	return dropCoincident(out)
}

// dropCoincident удаляет вершины, совпадающие со следующей: сторона нулевой
// длины исчезает, метка следующей стороны сохраняется.
func dropCoincident(poly []polyPoint) []polyPoint {
	if len(poly) < 2 {
		return poly
	}
	out := make([]polyPoint, 0, len(poly))
	for k := range poly {
		next := poly[(k+1)%len(poly)]
		if poly[k].P.ApproxEqual(next.P, Epsilon/10) {
			continue
		}
		out = append(out, poly[k])
	}
	return out
}

func polyRadiusSq(poly []polyPoint, center vec.Vec2Float) float64 {
	r := 0.0
	for _, p := range poly {
		r = math.Max(r, center.DistanceSqTo(p.P))
	}
	return r
}

// ClockwiseAngle угол точки p вокруг center, отсчитанный по часовой стрелке
// от направления +Y, в диапазоне [0, 2π)
func ClockwiseAngle(center, p vec.Vec2Float) float64 {
	d := p.Sub(center)
	a := math.Atan2(d.X, d.Y)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a
}

// ClockwiseLess сравнивает точки по обходу по часовой стрелке вокруг center.
// При равных углах ближняя к центру точка идёт первой.
func ClockwiseLess(center, a, b vec.Vec2Float) bool {
	aa := ClockwiseAngle(center, a)
	ab := ClockwiseAngle(center, b)
	if aa != ab {
		return aa < ab
	}
	return center.DistanceSqTo(a) < center.DistanceSqTo(b)
}
