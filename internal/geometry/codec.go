package geometry

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/annel0/zonegen/internal/vec"
)

// Формат сериализации сетки для утилит и тестов:
// границы + упорядоченный список ячеек.

type meshJSON struct {
	Bounds [4]float64 `json:"bounds"` // minX, minY, maxX, maxY
	Cells  []cellJSON `json:"cells"`
}

type cellJSON struct {
	ID       int32           `json:"id"`
	Center   [2]float64      `json:"center"`
	Closed   bool            `json:"closed"`
	Vertices [][2]float64    `json:"vertices"`
	Edges    [][2][2]float64 `json:"edges"`
	Outline  [][2]float64    `json:"outline,omitempty"`
}

func toPair(p vec.Vec2Float) [2]float64 { return [2]float64{p.X, p.Y} }

func fromPair(p [2]float64) vec.Vec2Float { return vec.Vec2Float{X: p[0], Y: p[1]} }

// Encode записывает сетку в JSON
func Encode(w io.Writer, m *Mesh) error {
	out := meshJSON{
		Bounds: [4]float64{m.Bounds.Min.X, m.Bounds.Min.Y, m.Bounds.Max.X, m.Bounds.Max.Y},
		Cells:  make([]cellJSON, len(m.Cells)),
	}
	for i := range m.Cells {
		c := &m.Cells[i]
		cj := cellJSON{
			ID:       int32(c.ID),
			Center:   toPair(c.Center),
			Closed:   c.Closed,
			Vertices: make([][2]float64, len(c.Vertices)),
			Edges:    make([][2][2]float64, len(c.Edges)),
			Outline:  make([][2]float64, len(c.Outline)),
		}
		for k, v := range c.Vertices {
			cj.Vertices[k] = toPair(m.Vertices[v].Pos)
		}
		for k, he := range c.Edges {
			cj.Edges[k] = [2][2]float64{toPair(m.Vertices[he.From].Pos), toPair(m.Vertices[he.To].Pos)}
		}
		for k, p := range c.Outline {
			cj.Outline[k] = toPair(p)
		}
		out.Cells[i] = cj
	}

	if err := json.NewEncoder(w).Encode(out); err != nil {
		return fmt.Errorf("ошибка сериализации сетки: %w", err)
	}
	return nil
}

// Decode читает сетку из JSON и заново строит смежность.
// Флаг closed и порядок вершин пересчитываются из рёбер.
func Decode(r io.Reader) (*Mesh, error) {
	var in meshJSON
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return nil, fmt.Errorf("ошибка десериализации сетки: %w", err)
	}

	bounds := vec.RectFloat{
		Min: vec.Vec2Float{X: in.Bounds[0], Y: in.Bounds[1]},
		Max: vec.Vec2Float{X: in.Bounds[2], Y: in.Bounds[3]},
	}
	if !bounds.Valid() {
		return nil, ErrInvalidBounds
	}

	inputs := make([]cellInput, len(in.Cells))
	for i, cj := range in.Cells {
		ci := cellInput{Center: fromPair(cj.Center)}
		for _, e := range cj.Edges {
			ci.Segments = append(ci.Segments, [2]vec.Vec2Float{fromPair(e[0]), fromPair(e[1])})
		}
		for _, p := range cj.Outline {
			ci.Outline = append(ci.Outline, fromPair(p))
		}
		inputs[i] = ci
	}
	return buildMesh(bounds, inputs)
}
