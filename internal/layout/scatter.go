package layout

import (
	"math"
	"math/rand"

	"github.com/annel0/zonegen/internal/vec"
)

// Placement правило расстановки центров зон
type Placement uint8

const (
	// PlacementUniform равномерная выборка с отбраковкой по минимальному расстоянию
	PlacementUniform Placement = iota
	// PlacementJittered одна точка на ячейку регулярной сетки со случайным сдвигом
	PlacementJittered
)

// String возвращает имя правила (используется в конфигурации)
func (p Placement) String() string {
	switch p {
	case PlacementUniform:
		return "uniform"
	case PlacementJittered:
		return "jittered"
	default:
		return "unknown"
	}
}

// ParsePlacement разбирает имя правила расстановки
func ParsePlacement(s string) (Placement, bool) {
	switch s {
	case "", "uniform":
		return PlacementUniform, true
	case "jittered":
		return PlacementJittered, true
	default:
		return PlacementUniform, false
	}
}

// ScatterPoints расставляет до count точек внутри bounds так, чтобы любые две
// были не ближе minSeparation. Каждая точка получает не более maxRetries
// попыток; при исчерпании попыток результат усекается, поэтому точек может
// оказаться меньше запрошенного.
func ScatterPoints(bounds vec.RectFloat, count int, minSeparation float64, maxRetries int, placement Placement, rng *rand.Rand) []vec.Vec2Float {
	if count <= 0 || !bounds.Valid() {
		return nil
	}
	if maxRetries < 1 {
		maxRetries = 1
	}

	switch placement {
	case PlacementJittered:
		return scatterJittered(bounds, count, minSeparation, maxRetries, rng)
	default:
		return scatterUniform(bounds, count, minSeparation, maxRetries, rng)
	}
}

func scatterUniform(bounds vec.RectFloat, count int, minSep float64, maxRetries int, rng *rand.Rand) []vec.Vec2Float {
	points := make([]vec.Vec2Float, 0, count)
	for len(points) < count {
		placed := false
		for attempt := 0; attempt < maxRetries; attempt++ {
			p := randomIn(bounds, rng)
			if farEnough(points, p, minSep) {
				points = append(points, p)
				placed = true
				break
			}
		}
		if !placed {
			break // места больше нет, усекаем результат
		}
	}
	return points
}

func scatterJittered(bounds vec.RectFloat, count int, minSep float64, maxRetries int, rng *rand.Rand) []vec.Vec2Float {
	aspect := 1.0
	if bounds.Height() > 0 {
		aspect = bounds.Width() / bounds.Height()
	}
	cols := int(math.Ceil(math.Sqrt(float64(count) * aspect)))
	if cols < 1 {
		cols = 1
	}
	rows := int(math.Ceil(float64(count) / float64(cols)))

	cw := bounds.Width() / float64(cols)
	ch := bounds.Height() / float64(rows)

	cells := rng.Perm(cols * rows)
	points := make([]vec.Vec2Float, 0, count)
	for _, idx := range cells {
		if len(points) >= count {
			break
		}
		cx := idx % cols
		cy := idx / cols
		cell := vec.RectFloat{
			Min: vec.Vec2Float{X: bounds.Min.X + float64(cx)*cw, Y: bounds.Min.Y + float64(cy)*ch},
			Max: vec.Vec2Float{X: bounds.Min.X + float64(cx+1)*cw, Y: bounds.Min.Y + float64(cy+1)*ch},
		}
		for attempt := 0; attempt < maxRetries; attempt++ {
			p := randomIn(cell, rng)
			if farEnough(points, p, minSep) {
				points = append(points, p)
				break
			}
		}
	}
	return points
}

func randomIn(r vec.RectFloat, rng *rand.Rand) vec.Vec2Float {
	return vec.Vec2Float{
		X: r.Min.X + rng.Float64()*r.Width(),
		Y: r.Min.Y + rng.Float64()*r.Height(),
	}
}

func farEnough(points []vec.Vec2Float, p vec.Vec2Float, minSep float64) bool {
	limit := minSep * minSep
	for _, q := range points {
		if q.DistanceSqTo(p) < limit {
			return false
		}
	}
	return true
}
