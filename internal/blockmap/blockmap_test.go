package blockmap

import (
	"math"
	"math/rand"
	"testing"

	"github.com/annel0/zonegen/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rect(x0, z0, x1, z1 int) vec.Rect {
	return vec.Rect{Min: vec.Vec2{X: x0, Y: z0}, Max: vec.Vec2{X: x1, Y: z1}}
}

// flatMap карта с плоской поверхностью на высоте main
func flatMap(t *testing.T, r vec.Rect, main float64) *BlockMap {
	t.Helper()
	m, err := New(r)
	require.NoError(t, err)
	fillHeights(t, m, func(x, z int) Heights { return Heights{Base: 0, Underground: main / 2, Main: main} })
	return m
}

func fillHeights(t *testing.T, m *BlockMap, fn func(x, z int) Heights) {
	t.Helper()
	vb := m.VertexBounds()
	var pos []vec.Vec2
	var hs []Heights
	for z := vb.Min.Y; z < vb.Max.Y; z++ {
		for x := vb.Min.X; x < vb.Max.X; x++ {
			pos = append(pos, vec.Vec2{X: x, Y: z})
			hs = append(hs, fn(x, z))
		}
	}
	require.NoError(t, m.SetHeights(pos, hs))
}

func TestNewBlocksAutoRepair(t *testing.T) {
	tests := []struct {
		name                string
		under, ground       BlockID
		in                  Heights
		wantUnder, wantGrnd BlockID
		want                Heights
	}{
		{"корректный вход", DirtBlockID, GrassBlockID, Heights{0, 2, 5}, DirtBlockID, GrassBlockID, Heights{0, 2, 5}},
		{"Main совпадает с Underground", DirtBlockID, GrassBlockID, Heights{0, 2, 2}, DirtBlockID, AirBlockID, Heights{0, 2, 2}},
		{"Underground совпадает с Base", DirtBlockID, GrassBlockID, Heights{1, 1, 4}, AirBlockID, GrassBlockID, Heights{1, 1, 4}},
		{"пустой Ground опускается", DirtBlockID, AirBlockID, Heights{0, 2, 7}, DirtBlockID, AirBlockID, Heights{0, 2, 2}},
		{"пустой Underground опускается", AirBlockID, GrassBlockID, Heights{0, 3, 6}, AirBlockID, GrassBlockID, Heights{0, 0, 6}},
		{"пустой Underground под Main", AirBlockID, GrassBlockID, Heights{0, 3, 3}, AirBlockID, AirBlockID, Heights{0, 0, 0}},
		{"неупорядоченные высоты", DirtBlockID, GrassBlockID, Heights{5, 1, 3}, AirBlockID, AirBlockID, Heights{5, 5, 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBlocks(StoneBlockID, tt.under, tt.ground, tt.in)
			assert.Equal(t, tt.wantUnder, b.Underground)
			assert.Equal(t, tt.wantGrnd, b.Ground)
			assert.Equal(t, tt.want, b.Height)
			assert.True(t, b.Height.Valid(), "высоты после исправления упорядочены")
			if b.Ground == AirBlockID {
				assert.Equal(t, b.Height.Underground, b.Height.Main, "Ground пуст => Main == Underground")
			}
			if b.Underground == AirBlockID {
				assert.Equal(t, b.Height.Base, b.Height.Underground, "Underground пуст => Underground == Base")
			}
		})
	}
}

func TestNewBlocksMainRoundTrip(t *testing.T) {
	for _, h := range []float64{3, 4.5, 10} {
		b := NewBlocks(StoneBlockID, DirtBlockID, GrassBlockID, Heights{0, 3, h})
		if h == 3 {
			assert.Equal(t, AirBlockID, b.Ground, "совпадение с Underground делает Ground пустым")
			continue
		}
		assert.Equal(t, h, b.Height.Main)
	}
}

func TestBlocksTop(t *testing.T) {
	id, l, ok := NewBlocks(StoneBlockID, DirtBlockID, GrassBlockID, Heights{0, 1, 2}).Top()
	assert.True(t, ok)
	assert.Equal(t, GrassBlockID, id)
	assert.Equal(t, LayerMain, l)

	id, l, ok = NewBlocks(StoneBlockID, AirBlockID, AirBlockID, Heights{0, 0, 0}).Top()
	assert.True(t, ok)
	assert.Equal(t, StoneBlockID, id)
	assert.Equal(t, LayerBase, l)

	_, _, ok = Blocks{}.Top()
	assert.False(t, ok)
}

func TestOverlapStatePacking(t *testing.T) {
	assert.Equal(t, uint8(0), OverlapState{Kind: OverlapNone, MapID: 17}.pack(), "None не хранит идентификатор")
	for _, kind := range []OverlapKind{OverlapHidden, OverlapOverlapping, OverlapAbove} {
		for _, id := range []uint8{0, 1, 31, MaxChildMaps - 1} {
			s := OverlapState{Kind: kind, MapID: id}
			assert.Equal(t, s, unpackOverlap(s.pack()), "%s/%d", kind, id)

			b := Blocks{Ground: GrassBlockID}.WithOverlap(s)
			assert.Equal(t, s, b.Overlap())
			assert.Equal(t, GrassBlockID, b.Ground)
		}
	}
}

func TestNewInvalidBounds(t *testing.T) {
	_, err := New(rect(0, 0, 0, 4))
	assert.ErrorIs(t, err, ErrInvalidBounds)
	_, err = New(rect(5, 0, 1, 4))
	assert.ErrorIs(t, err, ErrInvalidBounds)
	_, err = NewObjectMap(rect(0, 0, 2, -1))
	assert.ErrorIs(t, err, ErrInvalidBounds)
}

func TestSetHeightsValidation(t *testing.T) {
	m, err := New(rect(0, 0, 4, 4))
	require.NoError(t, err)
	assert.False(t, m.Generated())

	assert.ErrorIs(t, m.SetHeights(nil, nil), ErrEmptyInput)
	assert.ErrorIs(t, m.SetHeights([]vec.Vec2{{}}, nil), ErrLengthMismatch)
	assert.ErrorIs(t, m.SetHeights([]vec.Vec2{{X: 6}}, []Heights{{}}), ErrOutOfBounds)

	// Ошибка во второй позиции: первая не должна записаться
	err = m.SetHeights([]vec.Vec2{{X: 1, Y: 1}, {X: 2, Y: 2}}, []Heights{{Main: 3}, {Base: 2, Underground: 1, Main: 3}})
	assert.ErrorIs(t, err, ErrInvalidHeights)
	assert.Equal(t, Heights{}, m.GetHeights(vec.Vec2{X: 1, Y: 1}), "запись всё или ничего")
	assert.False(t, m.Generated())

	require.NoError(t, m.SetHeights([]vec.Vec2{{X: 4, Y: 4}}, []Heights{{Main: 2}}))
	assert.Equal(t, 2.0, m.GetHeights(vec.Vec2{X: 4, Y: 4}).Main, "вершина на дальнем углу доступна")
	assert.True(t, m.Generated())
}

func TestSetBlocksAndQueries(t *testing.T) {
	m := flatMap(t, rect(-2, -2, 2, 2), 4)

	var changed []vec.Rect
	m.OnChanged(func(r vec.Rect) { changed = append(changed, r) })

	b := NewBlocks(StoneBlockID, DirtBlockID, GrassBlockID, Heights{0, 2, 4})
	require.NoError(t, m.SetBlocks([]vec.Vec2{{X: -1, Y: 1}, {X: 1, Y: 1}}, []Blocks{b, b}, false))
	require.Len(t, changed, 1)
	assert.Equal(t, rect(-1, 1, 2, 2), changed[0])

	assert.Equal(t, b, m.GetBlock(vec.Vec2{X: 1, Y: 1}))
	assert.Equal(t, GrassBlockID, m.GetBlockRef(vec.Vec2{X: -1, Y: 1}).Ground)

	// Вне границ: общий пустой экземпляр, без паники
	assert.Equal(t, Blocks{}, m.GetBlock(vec.Vec2{X: 2, Y: 0}))
	assert.Same(t, m.GetBlockRef(vec.Vec2{X: 99}), m.GetBlockRef(vec.Vec2{X: -99}))
	assert.Equal(t, Heights{}, m.GetHeights(vec.Vec2{X: 3, Y: 0}))
	assert.Equal(t, OverlapState{}, m.GetOcclusionState(vec.Vec2{X: 50}))

	n := m.GetNeighborBlocks(vec.Vec2{X: 0, Y: 1})
	assert.Equal(t, b, n[6], "запад")
	assert.Equal(t, b, n[2], "восток")
	assert.Equal(t, Blocks{}, n[0], "север за границей")

	err := m.SetBlocks([]vec.Vec2{{X: 0, Y: 0}}, []Blocks{{Height: Heights{Base: 1}}}, false)
	assert.ErrorIs(t, err, ErrInvalidHeights)
	assert.ErrorIs(t, m.SetBlocks([]vec.Vec2{{X: 0, Y: 5}}, []Blocks{b}, false), ErrOutOfBounds)
	assert.ErrorIs(t, m.SetBlocks(nil, nil, false), ErrEmptyInput)
	assert.Len(t, changed, 1, "неудачные вызовы не уведомляют")
}

func TestRegenerateHeightsAverages(t *testing.T) {
	m, err := New(rect(0, 0, 2, 1))
	require.NoError(t, err)

	low := NewBlocks(StoneBlockID, DirtBlockID, GrassBlockID, Heights{0, 1, 2})
	high := NewBlocks(StoneBlockID, DirtBlockID, GrassBlockID, Heights{0, 3, 6})
	require.NoError(t, m.SetBlocks([]vec.Vec2{{X: 0}, {X: 1}}, []Blocks{low, high}, true))
	assert.True(t, m.Generated())

	assert.Equal(t, Heights{0, 1, 2}, m.GetHeights(vec.Vec2{X: 0, Y: 0}))
	assert.Equal(t, Heights{0, 2, 4}, m.GetHeights(vec.Vec2{X: 1, Y: 1}), "средняя вершина усредняет обе колонки")
	assert.Equal(t, Heights{0, 3, 6}, m.GetHeights(vec.Vec2{X: 2, Y: 0}))
}

func TestGetHeightFlatAndEdges(t *testing.T) {
	m := flatMap(t, rect(0, 0, 8, 8), 5)
	assert.InDelta(t, 5.0, m.GetHeight(3.3, 4.7), 1e-12)
	assert.InDelta(t, 5.0, m.GetHeight(8, 8), 1e-12, "дальняя кромка принадлежит карте")
	assert.InDelta(t, 2.5, m.GetLayerHeight(1, 1, LayerUnderground), 1e-12)
	assert.Zero(t, m.GetHeight(-0.1, 2), "вне карты 0")
	assert.Zero(t, m.GetHeight(8.01, 2))
	assert.Zero(t, m.GetHeight(math.NaN(), 2))
}

func TestGetHeightDiagonalChoice(t *testing.T) {
	m, err := New(rect(0, 0, 1, 1))
	require.NoError(t, err)
	set := func(h00, h10, h01, h11 float64) {
		require.NoError(t, m.SetHeights(
			[]vec.Vec2{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}},
			[]Heights{{Main: h00}, {Main: h10}, {Main: h01}, {Main: h11}},
		))
	}

	// перепад по 00-11 меньше: диагональ 00-11
	set(0, 2, 0, 0)
	assert.InDelta(t, 1.0, m.GetHeight(0.75, 0.25), 1e-12)
	assert.InDelta(t, 0.0, m.GetHeight(0.25, 0.75), 1e-12)

	// перепад по 10-01 меньше: диагональ 10-01
	set(2, 0, 0, 0)
	assert.InDelta(t, 0.5, m.GetHeight(0.25, 0.5), 1e-12)
	assert.InDelta(t, 0.0, m.GetHeight(0.75, 0.75), 1e-12)
}

func TestGetHeightMatchesSurfaceTriangles(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	m, err := New(rect(0, 0, 6, 6))
	require.NoError(t, err)
	fillHeights(t, m, func(x, z int) Heights { return Heights{Main: rng.Float64() * 10} })

	for i := 0; i < 300; i++ {
		x, z := rng.Float64()*6, rng.Float64()*6
		h := m.GetHeight(x, z)
		tris, ok := m.SurfaceTriangles(vec.Vec2{X: int(x), Y: int(z)}, LayerMain)
		require.True(t, ok)

		onSurface := false
		for _, tri := range tris {
			if !insideXZ(tri, x, z) {
				continue
			}
			n := tri.Normal()
			d := n.X()*(x-tri[0].X()) + n.Y()*(h-tri[0].Y()) + n.Z()*(z-tri[0].Z())
			if math.Abs(d) < 1e-9 {
				onSurface = true
			}
		}
		assert.True(t, onSurface, "высота (%.3f, %.3f) должна лежать на треугольнике поверхности", x, z)
	}

	_, ok := m.SurfaceTriangles(vec.Vec2{X: 6, Y: 0}, LayerMain)
	assert.False(t, ok)
}

func insideXZ(t Triangle, x, z float64) bool {
	sign := func(a, b [2]float64) float64 {
		return (b[0]-a[0])*(z-a[1]) - (b[1]-a[1])*(x-a[0])
	}
	p := [3][2]float64{{t[0].X(), t[0].Z()}, {t[1].X(), t[1].Z()}, {t[2].X(), t[2].Z()}}
	d1, d2, d3 := sign(p[0], p[1]), sign(p[1], p[2]), sign(p[2], p[0])
	const eps = 1e-12
	neg := d1 < -eps || d2 < -eps || d3 < -eps
	pos := d1 > eps || d2 > eps || d3 > eps
	return !(neg && pos)
}

func TestCopyRegionClamps(t *testing.T) {
	m := flatMap(t, rect(0, 0, 4, 4), 3)
	b := NewBlocks(StoneBlockID, AirBlockID, SandBlockID, Heights{0, 0, 3})
	require.NoError(t, m.SetBlocks([]vec.Vec2{{X: 3, Y: 3}}, []Blocks{b}, false))

	r := m.CopyRegion(rect(2, 2, 10, 10))
	assert.Equal(t, rect(2, 2, 4, 4), r.Bounds, "запрос обрезается по границам карты")
	assert.Len(t, r.Blocks, 4)
	assert.Len(t, r.Heights, 9)
	assert.Equal(t, b, r.BlockAt(vec.Vec2{X: 3, Y: 3}))
	assert.Equal(t, 3.0, r.HeightsAt(vec.Vec2{X: 4, Y: 4}).Main)

	empty := m.CopyRegion(rect(10, 10, 12, 12))
	assert.True(t, empty.Bounds.Empty())
	assert.Empty(t, empty.Blocks)
}

func BenchmarkGetHeight(b *testing.B) {
	m, _ := New(rect(0, 0, 64, 64))
	vb := m.VertexBounds()
	for z := vb.Min.Y; z < vb.Max.Y; z++ {
		for x := vb.Min.X; x < vb.Max.X; x++ {
			k, _ := m.vertexIndex(vec.Vec2{X: x, Y: z})
			m.heights[k] = Heights{Main: float64((x*7 + z*13) % 11)}
		}
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = m.GetHeight(float64(i%6400)/100, float64(i%4100)/70)
	}
}
