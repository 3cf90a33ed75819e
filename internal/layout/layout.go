// Package layout раскладывает зоны (биомы) по ячейкам геометрического
// разбиения и отвечает на вопросы о принадлежности чанков зонам.
package layout

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/annel0/zonegen/internal/geometry"
	"github.com/annel0/zonegen/internal/vec"
)

var (
	ErrInvalidLand      = errors.New("layout: пустые или некорректные границы земли")
	ErrInvalidChunkSize = errors.New("layout: размер чанка должен быть положительным")
	ErrTypesMismatch    = errors.New("layout: число типов не совпадает с числом ячеек")
)

// Zone область раскладки одного типа, построенная на одной ячейке
type Zone struct {
	ID     int
	Cell   geometry.CellID
	Type   ZoneType
	Center vec.Vec2Float
	// Polygon полный контур ячейки (по часовой стрелке)
	Polygon []vec.Vec2Float

	layout        *Layout
	neighborsOnce sync.Once
	neighbors     []*Zone
}

// Neighbors возвращает соседние зоны; вычисляется один раз по смежности ячеек
func (z *Zone) Neighbors() []*Zone {
	z.neighborsOnce.Do(func() {
		cell := z.layout.Mesh.Cell(z.Cell)
		z.neighbors = make([]*Zone, 0, len(cell.Neighbors))
		for _, nb := range cell.Neighbors {
			z.neighbors = append(z.neighbors, z.layout.Zones[nb])
		}
	})
	return z.neighbors
}

// Layout результат раскладки: сетка, зоны и границы земли в чанках
type Layout struct {
	Mesh       *geometry.Mesh
	Zones      []*Zone
	LandChunks vec.Rect
	ChunkSize  float64
}

// Params параметры генерации раскладки
type Params struct {
	LandChunks    vec.Rect
	ChunkSize     float64
	ZoneCount     int
	MinSeparation float64
	MaxRetries    int
	Placement     Placement
	Strategy      Strategy
	Types         []ZoneType
}

// LandBounds границы земли в мировых координатах
func LandBounds(land vec.Rect, chunkSize float64) vec.RectFloat {
	return vec.RectFloat{
		Min: vec.Vec2Float{X: float64(land.Min.X) * chunkSize, Y: float64(land.Min.Y) * chunkSize},
		Max: vec.Vec2Float{X: float64(land.Max.X) * chunkSize, Y: float64(land.Max.Y) * chunkSize},
	}
}

// Generate расставляет центры зон, строит разбиение и назначает типы.
// Зон может получиться меньше ZoneCount (усечение при расстановке).
func Generate(p Params, rng *rand.Rand) (*Layout, error) {
	if p.LandChunks.Empty() {
		return nil, ErrInvalidLand
	}
	if p.ChunkSize <= 0 {
		return nil, ErrInvalidChunkSize
	}

	bounds := LandBounds(p.LandChunks, p.ChunkSize)
	points := ScatterPoints(bounds, p.ZoneCount, p.MinSeparation, p.MaxRetries, p.Placement, rng)

	mesh, err := geometry.Generate(points, bounds)
	if err != nil {
		return nil, fmt.Errorf("ошибка построения разбиения: %w", err)
	}

	types, err := AssignTypes(mesh, p.Types, p.Strategy, rng)
	if err != nil {
		return nil, err
	}

	return New(mesh, types, p.LandChunks, p.ChunkSize)
}

// New собирает раскладку из готовой сетки и назначенных типов
func New(mesh *geometry.Mesh, types []ZoneType, land vec.Rect, chunkSize float64) (*Layout, error) {
	if land.Empty() {
		return nil, ErrInvalidLand
	}
	if chunkSize <= 0 {
		return nil, ErrInvalidChunkSize
	}
	if len(types) != len(mesh.Cells) {
		return nil, fmt.Errorf("%w: %d типов, %d ячеек", ErrTypesMismatch, len(types), len(mesh.Cells))
	}

	l := &Layout{
		Mesh:       mesh,
		Zones:      make([]*Zone, len(mesh.Cells)),
		LandChunks: land,
		ChunkSize:  chunkSize,
	}
	for i := range mesh.Cells {
		c := &mesh.Cells[i]
		l.Zones[i] = &Zone{
			ID:      i,
			Cell:    c.ID,
			Type:    types[i],
			Center:  c.Center,
			Polygon: c.Outline,
			layout:  l,
		}
	}
	return l, nil
}

// NearestZone возвращает зону с ближайшим центром.
// При равенстве расстояний выигрывает первая встреченная.
func (l *Layout) NearestZone(p vec.Vec2Float) *Zone {
	var best *Zone
	bestDist := math.Inf(1)
	for _, z := range l.Zones {
		if d := z.Center.DistanceSqTo(p); d < bestDist {
			best = z
			bestDist = d
		}
	}
	return best
}

// ZoneAt синоним NearestZone: зона, ячейке которой принадлежит точка
func (l *Layout) ZoneAt(p vec.Vec2Float) *Zone {
	return l.NearestZone(p)
}

// ZoneTypes возвращает центры и типы зон параллельными слайсами
func (l *Layout) ZoneTypes() ([]vec.Vec2Float, []ZoneType) {
	centers := make([]vec.Vec2Float, len(l.Zones))
	types := make([]ZoneType, len(l.Zones))
	for i, z := range l.Zones {
		centers[i] = z.Center
		types[i] = z.Type
	}
	return centers, types
}
