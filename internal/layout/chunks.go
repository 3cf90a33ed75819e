package layout

import (
	"math"

	"github.com/annel0/zonegen/internal/vec"
)

// ChunkOf возвращает координаты чанка, содержащего точку
func (l *Layout) ChunkOf(p vec.Vec2Float) vec.Vec2 {
	return vec.Vec2{
		X: int(math.Floor(p.X / l.ChunkSize)),
		Y: int(math.Floor(p.Y / l.ChunkSize)),
	}
}

// ChunkBounds границы чанка в мировых координатах
func (l *Layout) ChunkBounds(c vec.Vec2) vec.RectFloat {
	return vec.RectFloat{
		Min: vec.Vec2Float{X: float64(c.X) * l.ChunkSize, Y: float64(c.Y) * l.ChunkSize},
		Max: vec.Vec2Float{X: float64(c.X+1) * l.ChunkSize, Y: float64(c.Y+1) * l.ChunkSize},
	}
}

// chunkSamples четыре угла и центр чанка
func (l *Layout) chunkSamples(c vec.Vec2) [5]vec.Vec2Float {
	b := l.ChunkBounds(c)
	return [5]vec.Vec2Float{
		b.Min,
		{X: b.Max.X, Y: b.Min.Y},
		b.Max,
		{X: b.Min.X, Y: b.Max.Y},
		b.Center(),
	}
}

// ownsChunk правило принадлежности: чанк содержит центр зоны, либо зона
// ближайшая хотя бы для одного угла или центра чанка, либо одна из вершин
// контура зоны лежит внутри чанка.
func (l *Layout) ownsChunk(z *Zone, c vec.Vec2) bool {
	if l.ChunkOf(z.Center) == c {
		return true
	}
	for _, s := range l.chunkSamples(c) {
		if l.NearestZone(s) == z {
			return true
		}
	}
	b := l.ChunkBounds(c)
	for _, p := range z.Polygon {
		if p.X >= b.Min.X && p.X < b.Max.X && p.Y >= b.Min.Y && p.Y < b.Max.Y {
			return true
		}
	}
	return false
}

var chunkDirections = [4]vec.Vec2{{X: 1, Y: 0}, {X: -1, Y: 0}, {X: 0, Y: 1}, {X: 0, Y: -1}}

// GetChunks возвращает чанки зоны: заливка в ширину в четырёх направлениях от
// чанка с центром зоны, ограниченная границами земли и множеством посещённых.
// Результат упорядочен по обходу.
func (l *Layout) GetChunks(z *Zone) []vec.Vec2 {
	start := l.clampChunk(l.ChunkOf(z.Center))

	visited := map[vec.Vec2]struct{}{start: {}}
	queue := []vec.Vec2{start}
	var out []vec.Vec2

	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		// Обходим все чанки, которые задевает выпуклый контур зоны: такое
		// множество связно, поэтому заливка не теряет чанков зоны.
		if !polygonTouchesRect(z.Polygon, l.ChunkBounds(c)) {
			continue
		}
		if l.ownsChunk(z, c) {
			out = append(out, c)
		}

		for _, d := range chunkDirections {
			next := c.Add(d)
			if !l.LandChunks.Contains(next) {
				continue
			}
			if _, seen := visited[next]; seen {
				continue
			}
			visited[next] = struct{}{}
			queue = append(queue, next)
		}
	}
	return out
}

// ChunkOwner однозначный владелец чанка: зона, ближайшая к центру чанка
// (первая при равенстве). Вне границ земли возвращает nil.
func (l *Layout) ChunkOwner(c vec.Vec2) *Zone {
	if !l.LandChunks.Contains(c) {
		return nil
	}
	return l.NearestZone(l.ChunkBounds(c).Center())
}

// ChunkOwners разбиение всех чанков земли между зонами
func (l *Layout) ChunkOwners() map[vec.Vec2]*Zone {
	out := make(map[vec.Vec2]*Zone, l.LandChunks.SizeX()*l.LandChunks.SizeY())
	for y := l.LandChunks.Min.Y; y < l.LandChunks.Max.Y; y++ {
		for x := l.LandChunks.Min.X; x < l.LandChunks.Max.X; x++ {
			c := vec.Vec2{X: x, Y: y}
			out[c] = l.ChunkOwner(c)
		}
	}
	return out
}

func (l *Layout) clampChunk(c vec.Vec2) vec.Vec2 {
	c.X = min(max(c.X, l.LandChunks.Min.X), l.LandChunks.Max.X-1)
	c.Y = min(max(c.Y, l.LandChunks.Min.Y), l.LandChunks.Max.Y-1)
	return c
}

// polygonTouchesRect проверка пересечения выпуклого многоугольника и
// замкнутого прямоугольника по теореме о разделяющей оси
func polygonTouchesRect(poly []vec.Vec2Float, r vec.RectFloat) bool {
	if len(poly) == 0 {
		return false
	}
	const eps = 1e-9

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range poly {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	if maxX < r.Min.X-eps || minX > r.Max.X+eps || maxY < r.Min.Y-eps || minY > r.Max.Y+eps {
		return false
	}

	corners := [4]vec.Vec2Float{
		r.Min,
		{X: r.Max.X, Y: r.Min.Y},
		r.Max,
		{X: r.Min.X, Y: r.Max.Y},
	}
	for k := range poly {
		a := poly[k]
		b := poly[(k+1)%len(poly)]
		axis := vec.Vec2Float{X: -(b.Y - a.Y), Y: b.X - a.X}
		if axis.X == 0 && axis.Y == 0 {
			continue
		}
		pMin, pMax := math.Inf(1), math.Inf(-1)
		for _, p := range poly {
			d := axis.Dot(p)
			pMin, pMax = math.Min(pMin, d), math.Max(pMax, d)
		}
		rMin, rMax := math.Inf(1), math.Inf(-1)
		for _, c := range corners {
			d := axis.Dot(c)
			rMin, rMax = math.Min(rMin, d), math.Max(rMax, d)
		}
		tol := eps * (1 + axis.Length())
		if pMax < rMin-tol || rMax < pMin-tol {
			return false
		}
	}
	return true
}
