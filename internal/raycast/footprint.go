// Package raycast пересекает луч с поверхностью карты блоков: проекция луча
// обходится по колонкам (DDA), в каждой колонке проверяются треугольники
// поверхности карты и её дочерних карт.
package raycast

import (
	"math"

	"github.com/annel0/zonegen/internal/vec"
)

// Footprint колонки сетки с шагом cellSize, которые пересекает отрезок
// from-to на плоскости XZ, в порядке обхода от from. Отрезок внутри одной
// колонки (в том числе нулевой длины) даёт ровно одну колонку.
func Footprint(from, to vec.Vec2Float, cellSize float64) []vec.Vec2 {
	var out []vec.Vec2
	Walk(from, to, cellSize, func(c vec.Vec2) bool {
		out = append(out, c)
		return true
	})
	return out
}

// Walk обходит те же колонки, что и Footprint, без выделения памяти.
// Обход останавливается, когда visit возвращает false. Концы отрезка
// должны быть конечными.
func Walk(from, to vec.Vec2Float, cellSize float64, visit func(vec.Vec2) bool) {
	cur := cellOf(from, cellSize)
	end := cellOf(to, cellSize)
	if !visit(cur) || cur == end {
		return
	}

	d := to.Sub(from)
	stepX, tMaxX, tDeltaX := axisStep(from.X, d.X, cur.X, cellSize)
	stepY, tMaxY, tDeltaY := axisStep(from.Y, d.Y, cur.Y, cellSize)

	for left := abs(end.X-cur.X) + abs(end.Y-cur.Y); left > 0; left-- {
		if tMaxX < tMaxY {
			cur.X += stepX
			tMaxX += tDeltaX
		} else {
			cur.Y += stepY
			tMaxY += tDeltaY
		}
		if !visit(cur) || cur == end {
			return
		}
	}
}

func cellOf(p vec.Vec2Float, cellSize float64) vec.Vec2 {
	return vec.Vec2{X: int(math.Floor(p.X / cellSize)), Y: int(math.Floor(p.Y / cellSize))}
}

// axisStep параметры DDA по одной оси: направление шага, параметр t первой
// границы колонки и приращение t на одну колонку (t в долях отрезка)
func axisStep(origin, delta float64, cell int, cellSize float64) (step int, tMax, tDelta float64) {
	switch {
	case delta > 0:
		next := float64(cell+1) * cellSize
		return 1, (next - origin) / delta, cellSize / delta
	case delta < 0:
		next := float64(cell) * cellSize
		return -1, (next - origin) / delta, -cellSize / delta
	default:
		return 0, math.Inf(1), math.Inf(1)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
