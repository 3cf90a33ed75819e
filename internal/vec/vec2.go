package vec

import "math"

// Vec2 представляет 2D координаты сетки (блоки, вершины, чанки).
// Y соответствует мировой оси Z.
type Vec2 struct {
	X, Y int
}

// Add складывает два вектора
func (v Vec2) Add(other Vec2) Vec2 {
	return Vec2{X: v.X + other.X, Y: v.Y + other.Y}
}

// Sub вычитает вектор
func (v Vec2) Sub(other Vec2) Vec2 {
	return Vec2{X: v.X - other.X, Y: v.Y - other.Y}
}

// Mul умножает вектор на скаляр
func (v Vec2) Mul(k int) Vec2 {
	return Vec2{X: v.X * k, Y: v.Y * k}
}

// ToChunkCoords преобразует координаты блока в координаты чанка.
// Деление с округлением вниз, поэтому отрицательные координаты
// попадают в правильный чанк (-1 -> чанк -1).
func (v Vec2) ToChunkCoords(blocksPerChunk int) Vec2 {
	return Vec2{X: FloorDiv(v.X, blocksPerChunk), Y: FloorDiv(v.Y, blocksPerChunk)}
}

// LocalInChunk возвращает локальные координаты внутри чанка
func (v Vec2) LocalInChunk(blocksPerChunk int) Vec2 {
	return Vec2{X: FloorMod(v.X, blocksPerChunk), Y: FloorMod(v.Y, blocksPerChunk)}
}

// DistanceTo вычисляет расстояние до другой точки
func (v Vec2) DistanceTo(other Vec2) float64 {
	dx := float64(v.X - other.X)
	dy := float64(v.Y - other.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

// FloorDiv целочисленное деление с округлением к минус бесконечности
func FloorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// FloorMod остаток, согласованный с FloorDiv (всегда в [0, b))
func FloorMod(a, b int) int {
	m := a % b
	if m != 0 && ((m < 0) != (b < 0)) {
		m += b
	}
	return m
}
