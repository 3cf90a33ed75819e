package raycast

import (
	"math"
	"testing"

	"github.com/annel0/zonegen/internal/blockmap"
	"github.com/annel0/zonegen/internal/vec"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flatMap(t testing.TB, r vec.Rect, h float64) *blockmap.BlockMap {
	m, err := blockmap.New(r)
	require.NoError(t, err)
	vb := m.VertexBounds()
	var pos []vec.Vec2
	var hs []blockmap.Heights
	for z := vb.Min.Y; z < vb.Max.Y; z++ {
		for x := vb.Min.X; x < vb.Max.X; x++ {
			pos = append(pos, vec.Vec2{X: x, Y: z})
			hs = append(hs, blockmap.Heights{Main: h})
		}
	}
	require.NoError(t, m.SetHeights(pos, hs))
	return m
}

func objectMap(t *testing.T, r vec.Rect, b blockmap.Blocks) *blockmap.ObjectMap {
	om, err := blockmap.NewObjectMap(r)
	require.NoError(t, err)
	var pos []vec.Vec2
	var bs []blockmap.Blocks
	for z := r.Min.Y; z < r.Max.Y; z++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			pos = append(pos, vec.Vec2{X: x, Y: z})
			bs = append(bs, b)
		}
	}
	require.NoError(t, om.SetBlocks(pos, bs, false))
	om.RegenerateHeights()
	return om
}

func area(x0, z0, x1, z1 int) vec.Rect {
	return vec.Rect{Min: vec.Vec2{X: x0, Y: z0}, Max: vec.Vec2{X: x1, Y: z1}}
}

func TestCastFlatPlane(t *testing.T) {
	m := flatMap(t, area(-4, -4, 4, 4), 5)

	hit, ok := Cast(m, Ray{Origin: mgl64.Vec3{0, 10, 0}, Direction: mgl64.Vec3{0, -1, 0}}, 100)
	require.True(t, ok, "луч вниз должен попасть в плоскость")
	assert.InDelta(t, 5.0, hit.Distance, 1e-9)
	assert.Equal(t, vec.Vec2{X: 0, Y: 0}, hit.Block)
	assert.Same(t, m, hit.Map)
	assert.Equal(t, blockmap.LayerMain, hit.Layer)
	assert.InDelta(t, 5.0, hit.Point.Y(), 1e-9)
}

func TestCastSlantedRay(t *testing.T) {
	m := flatMap(t, area(-4, -4, 4, 4), 5)

	hit, ok := Cast(m, Ray{Origin: mgl64.Vec3{-3.5, 10, 0.5}, Direction: mgl64.Vec3{1, -1, 0}}, 20)
	require.True(t, ok)
	assert.InDelta(t, 5*math.Sqrt2, hit.Distance, 1e-9)
	assert.Equal(t, vec.Vec2{X: 1, Y: 0}, hit.Block)
	assert.InDelta(t, 1.5, hit.Point.X(), 1e-9)
}

func TestCastMisses(t *testing.T) {
	m := flatMap(t, area(-4, -4, 4, 4), 5)

	_, ok := Cast(m, Ray{Origin: mgl64.Vec3{0.5, 10, 0.5}, Direction: mgl64.Vec3{0, 1, 0}}, 100)
	assert.False(t, ok, "луч вверх не попадает")

	_, ok = Cast(m, Ray{Origin: mgl64.Vec3{0.5, 10, 0.5}, Direction: mgl64.Vec3{0, -1, 0}}, 4)
	assert.False(t, ok, "поверхность дальше максимальной дистанции")

	_, ok = Cast(m, Ray{Origin: mgl64.Vec3{20, 10, 20}, Direction: mgl64.Vec3{0, -1, 0}}, 100)
	assert.False(t, ok, "вне карты попаданий нет")

	_, ok = Cast(m, Ray{Origin: mgl64.Vec3{0.5, 10, 0.5}}, 100)
	assert.False(t, ok, "нулевое направление")

	_, ok = Cast(nil, Ray{Direction: mgl64.Vec3{0, -1, 0}}, 100)
	assert.False(t, ok)
}

func TestCastFirstColumnWins(t *testing.T) {
	m, err := blockmap.New(area(0, 0, 8, 1))
	require.NoError(t, err)
	// стена на x >= 4
	var pos []vec.Vec2
	var hs []blockmap.Heights
	for z := 0; z <= 1; z++ {
		for x := 0; x <= 8; x++ {
			h := 0.0
			if x >= 4 {
				h = 10
			}
			pos = append(pos, vec.Vec2{X: x, Y: z})
			hs = append(hs, blockmap.Heights{Main: h})
		}
	}
	require.NoError(t, m.SetHeights(pos, hs))

	hit, ok := Cast(m, Ray{Origin: mgl64.Vec3{0.5, 5, 0.5}, Direction: mgl64.Vec3{1, 0, 0}}, 20)
	require.True(t, ok)
	assert.Equal(t, vec.Vec2{X: 3, Y: 0}, hit.Block, "склон к стене лежит в колонке 3")
	assert.InDelta(t, 3.0, hit.Distance, 1e-9)
}

func TestCastChildMapPriority(t *testing.T) {
	parent := flatMap(t, area(0, 0, 8, 8), 4)

	floating := blockmap.NewBlocks(blockmap.StoneBlockID, blockmap.AirBlockID, blockmap.StoneBlockID, blockmap.Heights{Base: 6, Underground: 6, Main: 8})
	island := objectMap(t, area(2, 0, 4, 2), floating)
	require.NoError(t, island.Attach(parent))

	buried := blockmap.NewBlocks(blockmap.StoneBlockID, blockmap.DirtBlockID, blockmap.StoneBlockID, blockmap.Heights{Base: 0, Underground: 1, Main: 3})
	cellar := objectMap(t, area(5, 5, 7, 7), buried)
	require.NoError(t, cellar.Attach(parent))

	down := mgl64.Vec3{0, -1, 0}

	hit, ok := Cast(parent, Ray{Origin: mgl64.Vec3{2.5, 20, 0.5}, Direction: down}, 100)
	require.True(t, ok)
	assert.Same(t, &island.BlockMap, hit.Map, "сверху виден парящий остров")
	assert.InDelta(t, 12.0, hit.Distance, 1e-9)

	hit, ok = Cast(parent, Ray{Origin: mgl64.Vec3{2.5, 5, 0.5}, Direction: mgl64.Vec3{0, 1, 0}}, 100)
	require.True(t, ok, "снизу луч задевает нижнюю сторону острова")
	assert.Same(t, &island.BlockMap, hit.Map)
	assert.Equal(t, blockmap.LayerBase, hit.Layer)
	assert.InDelta(t, 1.0, hit.Distance, 1e-9)

	hit, ok = Cast(parent, Ray{Origin: mgl64.Vec3{5.5, 20, 5.5}, Direction: down}, 100)
	require.True(t, ok)
	assert.Same(t, parent, hit.Map, "скрытая карта не перехватывает луч")
	assert.InDelta(t, 16.0, hit.Distance, 1e-9)
}

func TestIntersectTriangle(t *testing.T) {
	tri := blockmap.Triangle{{0, 0, 0}, {1, 0, 0}, {0, 0, 1}}

	tt, ok := IntersectTriangle(Ray{Origin: mgl64.Vec3{0.2, 3, 0.2}, Direction: mgl64.Vec3{0, -1, 0}}, tri)
	assert.True(t, ok)
	assert.InDelta(t, 3.0, tt, 1e-12)

	_, ok = IntersectTriangle(Ray{Origin: mgl64.Vec3{0.2, -3, 0.2}, Direction: mgl64.Vec3{0, -1, 0}}, tri)
	assert.False(t, ok, "треугольник позади луча")

	_, ok = IntersectTriangle(Ray{Origin: mgl64.Vec3{0.2, 1, 0.2}, Direction: mgl64.Vec3{1, 0, 0}}, tri)
	assert.False(t, ok, "параллельный луч")

	_, ok = IntersectTriangle(Ray{Origin: mgl64.Vec3{0.8, 1, 0.8}, Direction: mgl64.Vec3{0, -1, 0}}, tri)
	assert.False(t, ok, "мимо треугольника")

	_, ok = IntersectTriangle(Ray{Origin: mgl64.Vec3{0.2, -3, 0.2}, Direction: mgl64.Vec3{0, 1, 0}}, tri)
	assert.True(t, ok, "тест двусторонний")
}

func TestFootprint(t *testing.T) {
	single := Footprint(vec.Vec2Float{X: 2.5, Y: 3.5}, vec.Vec2Float{X: 2.5, Y: 3.5}, 1)
	assert.Equal(t, []vec.Vec2{{X: 2, Y: 3}}, single, "нулевой отрезок даёт одну колонку")

	inCell := Footprint(vec.Vec2Float{X: 2.1, Y: 3.1}, vec.Vec2Float{X: 2.9, Y: 3.7}, 1)
	assert.Len(t, inCell, 1)

	line := Footprint(vec.Vec2Float{X: 0.5, Y: 0.5}, vec.Vec2Float{X: 4.5, Y: 0.5}, 1)
	assert.Equal(t, []vec.Vec2{{X: 0}, {X: 1}, {X: 2}, {X: 3}, {X: 4}}, line)

	cases := [][2]vec.Vec2Float{
		{{X: 0.3, Y: 0.1}, {X: 5.7, Y: 3.2}},
		{{X: -2.5, Y: 4.4}, {X: 3.1, Y: -6.9}},
		{{X: 10.2, Y: -3.3}, {X: -7.8, Y: -1.1}},
		{{X: 16, Y: 16}, {X: 0, Y: 0}},
	}
	for _, c := range cases {
		cells := Footprint(c[0], c[1], 4)
		require.NotEmpty(t, cells)
		assert.Equal(t, cellOf(c[0], 4), cells[0], "обход начинается с колонки начала")
		assert.Equal(t, cellOf(c[1], 4), cells[len(cells)-1], "обход заканчивается колонкой конца")
		for i := 1; i < len(cells); i++ {
			d := cells[i].Sub(cells[i-1])
			assert.Equal(t, 1, abs(d.X)+abs(d.Y), "соседние колонки должны быть смежными по стороне")
		}
	}
}

func TestCastLongDistanceOnSmallMap(t *testing.T) {
	m := flatMap(t, area(0, 0, 4, 4), 5)

	// Пологий луч уходит за край карты раньше, чем опустится до поверхности
	shallow := Ray{Origin: mgl64.Vec3{0.5, 10, 0.5}, Direction: mgl64.Vec3{1, -0.1, 0}}
	for _, dist := range []float64{1e9, math.Inf(1)} {
		_, ok := Cast(m, shallow, dist)
		assert.False(t, ok, "луч за пределами карты не должен попадать (dist=%g)", dist)
	}

	steep := Ray{Origin: mgl64.Vec3{0.5, 7, 0.5}, Direction: mgl64.Vec3{1, -1, 0}}
	for _, dist := range []float64{1e9, math.Inf(1)} {
		hit, ok := Cast(m, steep, dist)
		require.True(t, ok, "dist=%g", dist)
		assert.Equal(t, vec.Vec2{X: 2, Y: 0}, hit.Block)
		assert.InDelta(t, 2*math.Sqrt2, hit.Distance, 1e-9)
	}

	down := Ray{Origin: mgl64.Vec3{1.5, 10, 1.5}, Direction: mgl64.Vec3{0, -1, 0}}
	hit, ok := Cast(m, down, math.Inf(1))
	require.True(t, ok, "вертикальный луч с бесконечной дальностью")
	assert.InDelta(t, 5.0, hit.Distance, 1e-9)
	assert.Equal(t, vec.Vec2{X: 1, Y: 1}, hit.Block)
}

func TestCastOutsideMapMisses(t *testing.T) {
	m := flatMap(t, area(0, 0, 4, 4), 5)

	_, ok := Cast(m, Ray{Origin: mgl64.Vec3{-1e6, 10, 0.5}, Direction: mgl64.Vec3{-1, -1, 0}}, math.Inf(1))
	assert.False(t, ok, "луч, уходящий от карты, не попадает")

	_, ok = Cast(m, Ray{Origin: mgl64.Vec3{9.5, 10, 1.5}, Direction: mgl64.Vec3{0, -1, 0}}, math.Inf(1))
	assert.False(t, ok, "вертикальный луч вне карты не попадает")

	// луч из далека опускается до высоты 5 над x=2.5
	hit, ok := Cast(m, Ray{Origin: mgl64.Vec3{-1e6, 10, 2.5}, Direction: mgl64.Vec3{1e6 + 2.5, -5, 0}}, 1e12)
	require.True(t, ok, "дальний луч, входящий в карту, должен попадать")
	assert.Equal(t, vec.Vec2{X: 2, Y: 2}, hit.Block)

	_, ok = Cast(m, Ray{Origin: mgl64.Vec3{math.NaN(), 10, 0}, Direction: mgl64.Vec3{0, -1, 0}}, 10)
	assert.False(t, ok, "NaN в начале луча")
}

func TestWalkStopsEarly(t *testing.T) {
	visited := 0
	Walk(vec.Vec2Float{X: 0.5, Y: 0.5}, vec.Vec2Float{X: 100.5, Y: 0.5}, 1, func(vec.Vec2) bool {
		visited++
		return visited < 3
	})
	assert.Equal(t, 3, visited, "обход должен остановиться по требованию")
}

func BenchmarkCast(b *testing.B) {
	m := flatMap(b, area(0, 0, 256, 256), 5)
	ray := Ray{Origin: mgl64.Vec3{0.5, 40, 0.5}, Direction: mgl64.Vec3{1, -0.1, 0.7}}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Cast(m, ray, 400)
	}
}
