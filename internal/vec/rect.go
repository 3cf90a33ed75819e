package vec

// Rect целочисленный прямоугольник на сетке: Min включительно, Max исключительно.
type Rect struct {
	Min Vec2
	Max Vec2
}

// NewRect создаёт прямоугольник по началу и размеру
func NewRect(min Vec2, sizeX, sizeY int) Rect {
	return Rect{Min: min, Max: Vec2{X: min.X + sizeX, Y: min.Y + sizeY}}
}

// SizeX ширина по X
func (r Rect) SizeX() int { return r.Max.X - r.Min.X }

// SizeY ширина по Y (мировая Z)
func (r Rect) SizeY() int { return r.Max.Y - r.Min.Y }

// Empty возвращает true для прямоугольника без ячеек
func (r Rect) Empty() bool {
	return r.Max.X <= r.Min.X || r.Max.Y <= r.Min.Y
}

// Valid проверяет, что Min не больше Max
func (r Rect) Valid() bool {
	return r.Min.X <= r.Max.X && r.Min.Y <= r.Max.Y
}

// Contains проверяет попадание ячейки в прямоугольник
func (r Rect) Contains(p Vec2) bool {
	return p.X >= r.Min.X && p.X < r.Max.X && p.Y >= r.Min.Y && p.Y < r.Max.Y
}

// ContainsRect проверяет, что other целиком лежит внутри r
func (r Rect) ContainsRect(other Rect) bool {
	return other.Min.X >= r.Min.X && other.Min.Y >= r.Min.Y &&
		other.Max.X <= r.Max.X && other.Max.Y <= r.Max.Y
}

// Intersect возвращает пересечение прямоугольников (может быть пустым)
func (r Rect) Intersect(other Rect) Rect {
	out := Rect{
		Min: Vec2{X: max(r.Min.X, other.Min.X), Y: max(r.Min.Y, other.Min.Y)},
		Max: Vec2{X: min(r.Max.X, other.Max.X), Y: min(r.Max.Y, other.Max.Y)},
	}
	if out.Empty() {
		return Rect{Min: out.Min, Max: out.Min}
	}
	return out
}

// Union возвращает минимальный прямоугольник, содержащий оба
func (r Rect) Union(other Rect) Rect {
	if r.Empty() {
		return other
	}
	if other.Empty() {
		return r
	}
	return Rect{
		Min: Vec2{X: min(r.Min.X, other.Min.X), Y: min(r.Min.Y, other.Min.Y)},
		Max: Vec2{X: max(r.Max.X, other.Max.X), Y: max(r.Max.Y, other.Max.Y)},
	}
}

// RectFloat прямоугольник на плоскости с вещественными границами
type RectFloat struct {
	Min Vec2Float
	Max Vec2Float
}

// Valid проверяет, что Min не больше Max
func (r RectFloat) Valid() bool {
	return r.Min.X <= r.Max.X && r.Min.Y <= r.Max.Y
}

// Contains проверяет попадание точки (границы включительно)
func (r RectFloat) Contains(p Vec2Float) bool {
	return p.X >= r.Min.X && p.X <= r.Max.X && p.Y >= r.Min.Y && p.Y <= r.Max.Y
}

// Width ширина по X
func (r RectFloat) Width() float64 { return r.Max.X - r.Min.X }

// Height высота по Y
func (r RectFloat) Height() float64 { return r.Max.Y - r.Min.Y }

// Center центр прямоугольника
func (r RectFloat) Center() Vec2Float {
	return Vec2Float{X: (r.Min.X + r.Max.X) / 2, Y: (r.Min.Y + r.Max.Y) / 2}
}
