package geometry

import (
	"fmt"
	"math"
	"sort"

	"github.com/annel0/zonegen/internal/vec"
)

// cellInput сырые данные ячейки до построения сетки: центр, полный контур
// и внутренние стороны (отрезки серединных перпендикуляров)
type cellInput struct {
	Center   vec.Vec2Float
	Outline  []vec.Vec2Float
	Segments [][2]vec.Vec2Float
}

// pointIndex хеш-сетка для слияния близких точек
type pointIndex struct {
	cell    float64
	buckets map[[2]int64][]pointRef
}

type pointRef struct {
	P  vec.Vec2Float
	ID int32
}

func newPointIndex(eps float64) *pointIndex {
	return &pointIndex{cell: eps, buckets: make(map[[2]int64][]pointRef)}
}

func (pi *pointIndex) key(p vec.Vec2Float) [2]int64 {
	return [2]int64{int64(math.Floor(p.X / pi.cell)), int64(math.Floor(p.Y / pi.cell))}
}

// find ищет уже добавленную точку в пределах допуска (соседние корзины тоже)
func (pi *pointIndex) find(p vec.Vec2Float) (int32, bool) {
	k := pi.key(p)
	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			for _, ref := range pi.buckets[[2]int64{k[0] + dx, k[1] + dy}] {
				if ref.P.ApproxEqual(p, pi.cell) {
					return ref.ID, true
				}
			}
		}
	}
	return 0, false
}

func (pi *pointIndex) add(p vec.Vec2Float, id int32) {
	k := pi.key(p)
	pi.buckets[k] = append(pi.buckets[k], pointRef{P: p, ID: id})
}

// meshBuilder строит сетку в два прохода: сначала выделяет все узлы,
// затем заполняет смежность
type meshBuilder struct {
	mesh     *Mesh
	vertices *pointIndex
	edges    map[[2]VertexID]EdgeID
}

func buildMesh(bounds vec.RectFloat, inputs []cellInput) (*Mesh, error) {
	if len(inputs) == 0 {
		return nil, ErrNoCellsGenerated
	}

	b := &meshBuilder{
		mesh:     &Mesh{Bounds: bounds, Cells: make([]Cell, 0, len(inputs))},
		vertices: newPointIndex(Epsilon),
		edges:    make(map[[2]VertexID]EdgeID),
	}

	// Проход 1: ячейки, вершины, рёбра
	for _, in := range inputs {
		id := CellID(len(b.mesh.Cells))
		cell := Cell{
			ID:      id,
			Center:  in.Center,
			Outline: append([]vec.Vec2Float(nil), in.Outline...),
		}
		seen := make(map[EdgeID]struct{}, len(in.Segments))
		for _, seg := range in.Segments {
			from := b.vertex(seg[0])
			to := b.vertex(seg[1])
			if from == to {
				continue // нулевая длина после слияния
			}
			eid := b.edge(from, to)
			if _, dup := seen[eid]; dup {
				continue
			}
			seen[eid] = struct{}{}
			if err := b.attachCell(eid, id); err != nil {
				return nil, err
			}
			cell.Edges = append(cell.Edges, HalfEdge{Edge: eid, From: from, To: to})
		}
		b.mesh.Cells = append(b.mesh.Cells, cell)
	}

	// Проход 2: ориентация, порядок, замкнутость, соседи
	for i := range b.mesh.Cells {
		if err := b.finishCell(&b.mesh.Cells[i]); err != nil {
			return nil, err
		}
	}
	return b.mesh, nil
}

func (b *meshBuilder) vertex(p vec.Vec2Float) VertexID {
	if id, ok := b.vertices.find(p); ok {
		return VertexID(id)
	}
	id := VertexID(len(b.mesh.Vertices))
	b.mesh.Vertices = append(b.mesh.Vertices, Vertex{ID: id, Pos: p})
	b.vertices.add(p, int32(id))
	return id
}

func (b *meshBuilder) edge(from, to VertexID) EdgeID {
	key := [2]VertexID{min(from, to), max(from, to)}
	if id, ok := b.edges[key]; ok {
		return id
	}
	id := EdgeID(len(b.mesh.Edges))
	b.mesh.Edges = append(b.mesh.Edges, Edge{ID: id, A: key[0], B: key[1], Cells: [2]CellID{NoCell, NoCell}})
	b.edges[key] = id
	b.mesh.Vertices[key[0]].Edges = append(b.mesh.Vertices[key[0]].Edges, id)
	b.mesh.Vertices[key[1]].Edges = append(b.mesh.Vertices[key[1]].Edges, id)
	return id
}

func (b *meshBuilder) attachCell(eid EdgeID, cell CellID) error {
	e := &b.mesh.Edges[eid]
	switch {
	case e.Cells[0] == NoCell:
		e.Cells[0] = cell
	case e.Cells[1] == NoCell:
		e.Cells[1] = cell
	default:
		return fmt.Errorf("%w: ребро %d принадлежит более чем двум ячейкам", ErrInconsistentMesh, eid)
	}
	return nil
}

func (b *meshBuilder) finishCell(c *Cell) error {
	m := b.mesh

	// Ориентируем каждое ребро по часовой стрелке вокруг центра
	for k := range c.Edges {
		he := &c.Edges[k]
		from := m.Vertices[he.From].Pos.Sub(c.Center)
		to := m.Vertices[he.To].Pos.Sub(c.Center)
		if from.Cross(to) > 0 {
			he.From, he.To = he.To, he.From
		}
	}

	mids := make(map[EdgeID]vec.Vec2Float, len(c.Edges))
	for _, he := range c.Edges {
		mids[he.Edge] = m.Vertices[he.From].Pos.Add(m.Vertices[he.To].Pos).Mul(0.5)
	}
	sort.SliceStable(c.Edges, func(a, bIdx int) bool {
		return ClockwiseLess(c.Center, mids[c.Edges[a].Edge], mids[c.Edges[bIdx].Edge])
	})

	// Открытая ячейка обрезана прямоугольником: где-то обход рвётся.
	// Начинаем её список с ребра сразу после разрыва.
	c.Closed = closedWalk(c.Edges)
	if !c.Closed {
		rotateToGap(c.Edges)
	}
	if c.Closed && len(c.Edges) < 3 {
		return fmt.Errorf("%w: ячейка %d, рёбер: %d", ErrDegenerateCell, c.ID, len(c.Edges))
	}

	if c.Closed {
		c.Vertices = make([]VertexID, len(c.Edges))
		for k, he := range c.Edges {
			c.Vertices[k] = he.From
		}
	} else {
		seen := make(map[VertexID]struct{}, len(c.Edges)+1)
		for _, he := range c.Edges {
			for _, v := range [2]VertexID{he.From, he.To} {
				if _, dup := seen[v]; dup {
					continue
				}
				seen[v] = struct{}{}
				c.Vertices = append(c.Vertices, v)
			}
		}
	}

	for _, v := range c.Vertices {
		m.Vertices[v].Cells = appendUniqueCell(m.Vertices[v].Cells, c.ID)
	}
	for _, he := range c.Edges {
		other := m.Edges[he.Edge].Other(c.ID)
		if other != NoCell {
			c.Neighbors = appendUniqueCell(c.Neighbors, other)
		}
	}
	return nil
}

// rotateToGap сдвигает список так, чтобы он начинался после разрыва обхода
func rotateToGap(edges []HalfEdge) {
	n := len(edges)
	for k := 0; k < n; k++ {
		prev := edges[(k+n-1)%n]
		if prev.To != edges[k].From {
			rotated := append(append([]HalfEdge(nil), edges[k:]...), edges[:k]...)
			copy(edges, rotated)
			return
		}
	}
}

func appendUniqueCell(list []CellID, id CellID) []CellID {
	for _, c := range list {
		if c == id {
			return list
		}
	}
	return append(list, id)
}
