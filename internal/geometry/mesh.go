// Package geometry строит плоское разбиение (диаграмму Вороного) по набору
// точек, ограниченное прямоугольником. Вершины, рёбра и ячейки хранятся
// в плоских слайсах и ссылаются друг на друга целочисленными идентификаторами.
package geometry

import (
	"errors"
	"fmt"

	"github.com/annel0/zonegen/internal/vec"
)

// Epsilon допуск совпадения вершин и рёбер
const Epsilon = 0.001

var (
	ErrNoPoints         = errors.New("geometry: пустой набор точек")
	ErrInvalidBounds    = errors.New("geometry: некорректные границы (min > max)")
	ErrDegenerateCell   = errors.New("geometry: замкнутая ячейка содержит меньше трёх рёбер")
	ErrInconsistentMesh = errors.New("geometry: нарушена согласованность сетки")
	ErrNoCellsGenerated = errors.New("geometry: после фильтрации не осталось ни одной ячейки")
)

// VertexID идентификатор вершины в Mesh.Vertices
type VertexID int32

// EdgeID идентификатор ребра в Mesh.Edges
type EdgeID int32

// CellID идентификатор ячейки в Mesh.Cells
type CellID int32

// NoCell отсутствующая ячейка (вторая сторона граничного ребра)
const NoCell CellID = -1

// Vertex точка, общая для 1-3 ячеек
type Vertex struct {
	ID    VertexID
	Pos   vec.Vec2Float
	Edges []EdgeID
	Cells []CellID
}

// Edge неориентированный отрезок между двумя вершинами
type Edge struct {
	ID    EdgeID
	A, B  VertexID
	Cells [2]CellID
}

// IsBoundary возвращает true, если ребро ограничивает только одну ячейку
func (e *Edge) IsBoundary() bool {
	return e.Cells[1] == NoCell
}

// Other возвращает ячейку по другую сторону ребра
func (e *Edge) Other(c CellID) CellID {
	switch c {
	case e.Cells[0]:
		return e.Cells[1]
	case e.Cells[1]:
		return e.Cells[0]
	default:
		return NoCell
	}
}

// HalfEdge ребро ячейки, ориентированное по часовой стрелке вокруг её центра
type HalfEdge struct {
	Edge EdgeID
	From VertexID
	To   VertexID
}

// Cell ячейка разбиения
type Cell struct {
	ID       CellID
	Center   vec.Vec2Float
	Closed   bool
	Vertices []VertexID
	Edges    []HalfEdge
	// Neighbors соседние ячейки в порядке обхода рёбер
	Neighbors []CellID
	// Outline полный выпуклый контур ячейки, включая углы
	// ограничивающего прямоугольника (по часовой стрелке)
	Outline []vec.Vec2Float
}

// Mesh результат разбиения
type Mesh struct {
	Bounds   vec.RectFloat
	Vertices []Vertex
	Edges    []Edge
	Cells    []Cell
}

// Cell возвращает ячейку по идентификатору
func (m *Mesh) Cell(id CellID) *Cell {
	if id < 0 || int(id) >= len(m.Cells) {
		return nil
	}
	return &m.Cells[id]
}

// VertexPos возвращает позицию вершины
func (m *Mesh) VertexPos(id VertexID) vec.Vec2Float {
	return m.Vertices[id].Pos
}

// CellPolygon возвращает координаты вершин ячейки в порядке обхода
func (m *Mesh) CellPolygon(id CellID) []vec.Vec2Float {
	c := m.Cell(id)
	if c == nil {
		return nil
	}
	out := make([]vec.Vec2Float, len(c.Vertices))
	for i, v := range c.Vertices {
		out[i] = m.Vertices[v].Pos
	}
	return out
}

// CellAt возвращает ячейку, центр которой ближе всего к точке.
// При равенстве выигрывает первая по порядку.
func (m *Mesh) CellAt(p vec.Vec2Float) CellID {
	best := NoCell
	bestDist := 0.0
	for i := range m.Cells {
		d := m.Cells[i].Center.DistanceSqTo(p)
		if best == NoCell || d < bestDist {
			best = CellID(i)
			bestDist = d
		}
	}
	return best
}

// Validate проверяет инварианты смежности сетки
func (m *Mesh) Validate() error {
	for i := range m.Edges {
		e := &m.Edges[i]
		if e.A == e.B {
			return fmt.Errorf("%w: ребро %d нулевой длины", ErrInconsistentMesh, e.ID)
		}
		if e.Cells[0] == NoCell {
			return fmt.Errorf("%w: ребро %d не принадлежит ни одной ячейке", ErrInconsistentMesh, e.ID)
		}
	}

	for i := range m.Vertices {
		v := &m.Vertices[i]
		if len(v.Edges) < 1 || len(v.Edges) > 3 {
			return fmt.Errorf("%w: вершина %d имеет %d рёбер", ErrInconsistentMesh, v.ID, len(v.Edges))
		}
		if len(v.Cells) < 1 || len(v.Cells) > 3 {
			return fmt.Errorf("%w: вершина %d принадлежит %d ячейкам", ErrInconsistentMesh, v.ID, len(v.Cells))
		}
	}

	for i := range m.Cells {
		c := &m.Cells[i]
		seen := make(map[VertexID]struct{}, len(c.Vertices))
		for _, v := range c.Vertices {
			if _, dup := seen[v]; dup {
				return fmt.Errorf("%w: ячейка %d содержит вершину %d дважды", ErrInconsistentMesh, c.ID, v)
			}
			seen[v] = struct{}{}
		}
		if closedWalk(c.Edges) != c.Closed {
			return fmt.Errorf("%w: ячейка %d: флаг closed=%v не совпадает с обходом рёбер", ErrInconsistentMesh, c.ID, c.Closed)
		}
		if c.Closed && len(c.Edges) < 3 {
			return fmt.Errorf("%w: ячейка %d", ErrDegenerateCell, c.ID)
		}
	}
	return nil
}

// closedWalk проверяет, что рёбра в порядке ячейки образуют замкнутый обход
func closedWalk(edges []HalfEdge) bool {
	if len(edges) == 0 {
		return false
	}
	for i := range edges {
		next := edges[(i+1)%len(edges)]
		if edges[i].To != next.From {
			return false
		}
	}
	return true
}
