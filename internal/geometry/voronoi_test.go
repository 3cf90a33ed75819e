package geometry

import (
	"bytes"
	"math"
	"math/rand"
	"testing"

	"github.com/annel0/zonegen/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square(half float64) vec.RectFloat {
	return vec.RectFloat{Min: vec.Vec2Float{X: -half, Y: -half}, Max: vec.Vec2Float{X: half, Y: half}}
}

func randomPoints(seed int64, n int, bounds vec.RectFloat) []vec.Vec2Float {
	rng := rand.New(rand.NewSource(seed))
	pts := make([]vec.Vec2Float, n)
	for i := range pts {
		pts[i] = vec.Vec2Float{
			X: bounds.Min.X + rng.Float64()*bounds.Width(),
			Y: bounds.Min.Y + rng.Float64()*bounds.Height(),
		}
	}
	return pts
}

func TestGenerateTwoSites(t *testing.T) {
	mesh, err := Generate([]vec.Vec2Float{{X: -5, Y: 0}, {X: 5, Y: 0}}, square(10))
	require.NoError(t, err)
	require.Len(t, mesh.Cells, 2, "должно получиться две ячейки")
	require.Len(t, mesh.Edges, 1, "общее ребро должно быть одно")

	e := mesh.Edges[0]
	assert.False(t, e.IsBoundary(), "общее ребро ограничивает обе ячейки")
	a := mesh.VertexPos(e.A)
	b := mesh.VertexPos(e.B)
	assert.InDelta(t, 0, a.X, 1e-9)
	assert.InDelta(t, 0, b.X, 1e-9)
	assert.InDelta(t, 20, a.DistanceTo(b), 1e-9, "ребро должно пересекать весь прямоугольник")

	for i := range mesh.Cells {
		c := mesh.Cells[i]
		assert.False(t, c.Closed, "обе ячейки касаются границы")
		assert.Equal(t, []CellID{CellID(1 - i)}, c.Neighbors)
		assert.Len(t, c.Outline, 4)
	}
	assert.NoError(t, mesh.Validate())
}

func TestGenerateClosedCenterCell(t *testing.T) {
	points := []vec.Vec2Float{
		{X: 0, Y: 0},
		{X: 10, Y: 0}, {X: 5, Y: 9}, {X: -5, Y: 8},
		{X: -11, Y: 1}, {X: -4, Y: -9}, {X: 6, Y: -8},
	}
	mesh, err := Generate(points, square(50))
	require.NoError(t, err)
	require.NoError(t, mesh.Validate())

	center := mesh.Cells[0]
	assert.True(t, center.Closed, "центральная ячейка должна быть замкнутой")
	assert.Len(t, center.Edges, 6)
	assert.Len(t, center.Vertices, 6)
	assert.Len(t, center.Neighbors, 6)

	// Ориентированная площадь отрицательна при обходе по часовой стрелке
	poly := mesh.CellPolygon(center.ID)
	area := 0.0
	for k := range poly {
		area += poly[k].Cross(poly[(k+1)%len(poly)])
	}
	assert.Less(t, area, 0.0, "вершины должны идти по часовой стрелке")

	for _, c := range mesh.Cells[1:] {
		assert.False(t, c.Closed, "внешние ячейки обрезаны границей")
	}
}

func TestGenerateRandomInvariants(t *testing.T) {
	bounds := square(100)
	for _, seed := range []int64{1, 7, 42} {
		mesh, err := Generate(randomPoints(seed, 60, bounds), bounds)
		require.NoError(t, err)
		assert.Len(t, mesh.Cells, 60)
		require.NoError(t, mesh.Validate(), "seed %d", seed)

		closed := 0
		for _, c := range mesh.Cells {
			assert.Equal(t, closedWalk(c.Edges), c.Closed, "closed должен совпадать с замкнутостью обхода")
			if c.Closed {
				closed++
			}
			for _, n := range c.Neighbors {
				assert.Contains(t, mesh.Cells[n].Neighbors, c.ID, "соседство должно быть симметричным")
			}
		}
		assert.Greater(t, closed, 0, "среди 60 ячеек должны быть внутренние")

		for _, e := range mesh.Edges {
			if !e.IsBoundary() {
				assert.NotEqual(t, e.Cells[0], e.Cells[1])
			}
		}
	}
}

func TestGenerateDropsDuplicatesAndOutside(t *testing.T) {
	points := []vec.Vec2Float{
		{X: 1, Y: 1}, {X: 1.0001, Y: 1}, // почти дубликат
		{X: -3, Y: 4},
		{X: 500, Y: 500}, // вне границ
	}
	mesh, err := Generate(points, square(10))
	require.NoError(t, err)
	assert.Len(t, mesh.Cells, 2)
}

func TestGenerateErrors(t *testing.T) {
	_, err := Generate(nil, square(10))
	assert.ErrorIs(t, err, ErrNoPoints)

	bad := vec.RectFloat{Min: vec.Vec2Float{X: 5, Y: 5}, Max: vec.Vec2Float{X: -5, Y: 5}}
	_, err = Generate([]vec.Vec2Float{{X: 0, Y: 0}}, bad)
	assert.ErrorIs(t, err, ErrInvalidBounds)

	_, err = Generate([]vec.Vec2Float{{X: 100, Y: 100}}, square(1))
	assert.ErrorIs(t, err, ErrNoCellsGenerated)
}

func TestGenerateRejectsCocircularSites(t *testing.T) {
	// Четыре сайта на одной окружности сходятся в вершине (0,0) четырьмя рёбрами
	points := []vec.Vec2Float{{X: -5, Y: -5}, {X: 5, Y: -5}, {X: 5, Y: 5}, {X: -5, Y: 5}}
	mesh, err := Generate(points, square(10))
	assert.ErrorIs(t, err, ErrInconsistentMesh, "вырожденная вершина должна давать ошибку")
	assert.Nil(t, mesh, "несогласованная сетка не должна возвращаться")

	// Небольшой сдвиг снимает вырождение
	points[0] = vec.Vec2Float{X: -5.5, Y: -4.7}
	mesh, err = Generate(points, square(10))
	require.NoError(t, err)
	assert.Len(t, mesh.Cells, 4)
}

func TestSingleSiteHasNoEdges(t *testing.T) {
	mesh, err := Generate([]vec.Vec2Float{{X: 0, Y: 0}}, square(4))
	require.NoError(t, err)
	require.Len(t, mesh.Cells, 1)
	assert.False(t, mesh.Cells[0].Closed)
	assert.Empty(t, mesh.Cells[0].Edges)
	assert.Len(t, mesh.Cells[0].Outline, 4, "контур совпадает с прямоугольником")
}

func TestClockwiseComparator(t *testing.T) {
	c := vec.Vec2Float{}
	up := vec.Vec2Float{X: 0, Y: 1}
	right := vec.Vec2Float{X: 1, Y: 0}
	down := vec.Vec2Float{X: 0, Y: -1}
	left := vec.Vec2Float{X: -1, Y: 0}

	assert.True(t, ClockwiseLess(c, up, right))
	assert.True(t, ClockwiseLess(c, right, down))
	assert.True(t, ClockwiseLess(c, down, left))
	assert.False(t, ClockwiseLess(c, left, up))
	assert.InDelta(t, 3*math.Pi/2, ClockwiseAngle(c, left), 1e-12)
}

func TestCellAtPrefersFirstOnTie(t *testing.T) {
	mesh, err := Generate([]vec.Vec2Float{{X: -5, Y: 0}, {X: 5, Y: 0}}, square(10))
	require.NoError(t, err)
	assert.Equal(t, CellID(0), mesh.CellAt(vec.Vec2Float{X: 0, Y: 3}), "при равенстве выигрывает первая ячейка")
	assert.Equal(t, CellID(1), mesh.CellAt(vec.Vec2Float{X: 4, Y: 3}))
}

func TestCodecRoundTrip(t *testing.T) {
	bounds := square(50)
	mesh, err := Generate(randomPoints(3, 25, bounds), bounds)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, mesh))

	decoded, err := Decode(&buf)
	require.NoError(t, err)
	require.Len(t, decoded.Cells, len(mesh.Cells))
	assert.Equal(t, len(mesh.Edges), len(decoded.Edges))
	assert.Equal(t, len(mesh.Vertices), len(decoded.Vertices))
	for i := range mesh.Cells {
		assert.Equal(t, mesh.Cells[i].Closed, decoded.Cells[i].Closed, "ячейка %d", i)
		assert.Equal(t, len(mesh.Cells[i].Vertices), len(decoded.Cells[i].Vertices), "ячейка %d", i)
		assert.ElementsMatch(t, mesh.Cells[i].Neighbors, decoded.Cells[i].Neighbors, "ячейка %d", i)
	}
}

func BenchmarkGenerate(b *testing.B) {
	bounds := square(500)
	pts := randomPoints(11, 300, bounds)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Generate(pts, bounds); err != nil {
			b.Fatal(err)
		}
	}
}
