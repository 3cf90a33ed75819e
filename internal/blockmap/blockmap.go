// Package blockmap хранит многослойную карту высот по колонкам блоков:
// базовую карту местности и прикрепляемые к ней карты объектов.
package blockmap

import (
	"errors"
	"fmt"

	"github.com/annel0/zonegen/internal/vec"
)

var (
	ErrInvalidBounds      = errors.New("blockmap: пустые или некорректные границы")
	ErrEmptyInput         = errors.New("blockmap: пустой набор позиций")
	ErrLengthMismatch     = errors.New("blockmap: число позиций и значений не совпадает")
	ErrOutOfBounds        = errors.New("blockmap: позиция вне границ карты")
	ErrInvalidHeights     = errors.New("blockmap: нарушен порядок высот Base <= Underground <= Main")
	ErrNotGenerated       = errors.New("blockmap: сетка высот не сгенерирована")
	ErrRegenerateDetached = errors.New("blockmap: регенерация высот в SetBlocks для неприкреплённой карты объектов")
	ErrTooManyChildren    = errors.New("blockmap: исчерпаны идентификаторы дочерних карт")
	ErrAlreadyAttached    = errors.New("blockmap: карта объектов уже прикреплена")
	ErrNotAttached        = errors.New("blockmap: карта объектов не прикреплена")
)

// emptyBlocks общий пустой экземпляр для чтения вне границ
var emptyBlocks Blocks

// BlockMap многослойная карта высот прямоугольной области.
// Сетка высот (sizeX+1)×(sizeZ+1) задана в вершинах, колонки sizeX×sizeZ.
// Координата Y у vec.Vec2 соответствует оси Z мира.
// Не безопасна для конкурентной записи.
type BlockMap struct {
	bounds  vec.Rect
	heights []Heights
	blocks  []Blocks

	generated bool
	children  []*ObjectMap // в порядке прикрепления
	onChanged func(vec.Rect)
}

// New создаёт пустую карту в границах bounds (Max не включается)
func New(bounds vec.Rect) (*BlockMap, error) {
	m := &BlockMap{}
	if err := m.init(bounds); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *BlockMap) init(bounds vec.Rect) error {
	if !bounds.Valid() || bounds.Empty() {
		return fmt.Errorf("%w: %v", ErrInvalidBounds, bounds)
	}
	sx, sz := bounds.SizeX(), bounds.SizeY()
	m.bounds = bounds
	m.heights = make([]Heights, (sx+1)*(sz+1))
	m.blocks = make([]Blocks, sx*sz)
	return nil
}

// Bounds границы колонок карты
func (m *BlockMap) Bounds() vec.Rect { return m.bounds }

// VertexBounds границы вершин сетки высот (Max не включается)
func (m *BlockMap) VertexBounds() vec.Rect {
	return vec.Rect{Min: m.bounds.Min, Max: m.bounds.Max.Add(vec.Vec2{X: 1, Y: 1})}
}

// Generated true после SetHeights или RegenerateHeights
func (m *BlockMap) Generated() bool { return m.generated }

// OnChanged задаёт обработчик изменений. Вызывается синхронно из
// мутирующих методов с прямоугольником затронутых колонок.
func (m *BlockMap) OnChanged(fn func(vec.Rect)) { m.onChanged = fn }

func (m *BlockMap) notify(r vec.Rect) {
	if m.onChanged != nil && !r.Empty() {
		m.onChanged(r)
	}
}

func (m *BlockMap) blockIndex(p vec.Vec2) (int, bool) {
	if !m.bounds.Contains(p) {
		return 0, false
	}
	return (p.Y-m.bounds.Min.Y)*m.bounds.SizeX() + (p.X - m.bounds.Min.X), true
}

func (m *BlockMap) vertexIndex(p vec.Vec2) (int, bool) {
	if p.X < m.bounds.Min.X || p.X > m.bounds.Max.X || p.Y < m.bounds.Min.Y || p.Y > m.bounds.Max.Y {
		return 0, false
	}
	return (p.Y-m.bounds.Min.Y)*(m.bounds.SizeX()+1) + (p.X - m.bounds.Min.X), true
}

// SetHeights записывает высоты вершин парами (позиция, высоты).
// Сначала проверяется весь вход, затем выполняется запись.
func (m *BlockMap) SetHeights(positions []vec.Vec2, heights []Heights) error {
	if len(positions) == 0 {
		return ErrEmptyInput
	}
	if len(positions) != len(heights) {
		return fmt.Errorf("%w: %d позиций, %d высот", ErrLengthMismatch, len(positions), len(heights))
	}
	idx := make([]int, len(positions))
	for i, p := range positions {
		k, ok := m.vertexIndex(p)
		if !ok {
			return fmt.Errorf("%w: вершина %v", ErrOutOfBounds, p)
		}
		if !heights[i].Valid() {
			return fmt.Errorf("%w: вершина %v: %+v", ErrInvalidHeights, p, heights[i])
		}
		idx[i] = k
	}

	for i, k := range idx {
		m.heights[k] = heights[i]
	}
	m.generated = true

	changed := m.vertexSpan(positions)
	m.restampChildren(changed)
	m.notify(changed)
	return nil
}

// vertexSpan колонки, которых касаются вершины
func (m *BlockMap) vertexSpan(positions []vec.Vec2) vec.Rect {
	r := spanOf(positions)
	r.Min = r.Min.Sub(vec.Vec2{X: 1, Y: 1})
	return r.Intersect(m.bounds)
}

func spanOf(positions []vec.Vec2) vec.Rect {
	r := vec.Rect{Min: positions[0], Max: positions[0].Add(vec.Vec2{X: 1, Y: 1})}
	for _, p := range positions[1:] {
		r = r.Union(vec.Rect{Min: p, Max: p.Add(vec.Vec2{X: 1, Y: 1})})
	}
	return r
}

// SetBlocks записывает колонки парами (позиция, колонка). Состояние
// перекрытия хранимых колонок сохраняется: им управляют дочерние карты.
// При regenerate сетка высот пересчитывается по колонкам.
func (m *BlockMap) SetBlocks(positions []vec.Vec2, blocks []Blocks, regenerate bool) error {
	idx, err := m.validateBlocks(positions, blocks)
	if err != nil {
		return err
	}
	m.writeBlocks(idx, blocks)

	changed := spanOf(positions)
	if regenerate {
		m.regenerate()
		changed = m.bounds
	}
	m.notify(changed)
	return nil
}

func (m *BlockMap) validateBlocks(positions []vec.Vec2, blocks []Blocks) ([]int, error) {
	if len(positions) == 0 {
		return nil, ErrEmptyInput
	}
	if len(positions) != len(blocks) {
		return nil, fmt.Errorf("%w: %d позиций, %d колонок", ErrLengthMismatch, len(positions), len(blocks))
	}
	idx := make([]int, len(positions))
	for i, p := range positions {
		k, ok := m.blockIndex(p)
		if !ok {
			return nil, fmt.Errorf("%w: колонка %v", ErrOutOfBounds, p)
		}
		if !blocks[i].Height.Valid() {
			return nil, fmt.Errorf("%w: колонка %v: %+v", ErrInvalidHeights, p, blocks[i].Height)
		}
		idx[i] = k
	}
	return idx, nil
}

func (m *BlockMap) writeBlocks(idx []int, blocks []Blocks) {
	for i, k := range idx {
		b := blocks[i]
		b.overlap = m.blocks[k].overlap
		m.blocks[k] = b
	}
}

// RegenerateHeights пересчитывает сетку высот: высоты вершины равны
// среднему высот непустых соседних колонок (до четырёх).
func (m *BlockMap) RegenerateHeights() {
	m.regenerate()
	m.notify(m.bounds)
}

func (m *BlockMap) regenerate() {
	for z := m.bounds.Min.Y; z <= m.bounds.Max.Y; z++ {
		for x := m.bounds.Min.X; x <= m.bounds.Max.X; x++ {
			var sum Heights
			n := 0
			for dz := -1; dz <= 0; dz++ {
				for dx := -1; dx <= 0; dx++ {
					k, ok := m.blockIndex(vec.Vec2{X: x + dx, Y: z + dz})
					if !ok || m.blocks[k].IsEmpty() {
						continue
					}
					h := m.blocks[k].Height
					sum.Base += h.Base
					sum.Underground += h.Underground
					sum.Main += h.Main
					n++
				}
			}
			k, _ := m.vertexIndex(vec.Vec2{X: x, Y: z})
			if n == 0 {
				m.heights[k] = Heights{}
				continue
			}
			f := float64(n)
			m.heights[k] = Heights{Base: sum.Base / f, Underground: sum.Underground / f, Main: sum.Main / f}
		}
	}
	m.generated = true
}

// GetBlock колонка в позиции; вне границ пустая колонка
func (m *BlockMap) GetBlock(p vec.Vec2) Blocks {
	k, ok := m.blockIndex(p)
	if !ok {
		return emptyBlocks
	}
	return m.blocks[k]
}

// GetBlockRef указатель на колонку без копирования. Вне границ возвращает
// общий пустой экземпляр. Изменять значение по указателю нельзя.
func (m *BlockMap) GetBlockRef(p vec.Vec2) *Blocks {
	k, ok := m.blockIndex(p)
	if !ok {
		return &emptyBlocks
	}
	return &m.blocks[k]
}

// GetHeights высоты вершины сетки; вне границ нулевые
func (m *BlockMap) GetHeights(p vec.Vec2) Heights {
	k, ok := m.vertexIndex(p)
	if !ok {
		return Heights{}
	}
	return m.heights[k]
}

// NeighborOffsets порядок соседей в GetNeighborBlocks: по часовой стрелке от севера
var NeighborOffsets = [8]vec.Vec2{
	{X: 0, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 0}, {X: 1, Y: -1},
	{X: 0, Y: -1}, {X: -1, Y: -1}, {X: -1, Y: 0}, {X: -1, Y: 1},
}

// GetNeighborBlocks восемь соседних колонок в порядке NeighborOffsets
func (m *BlockMap) GetNeighborBlocks(p vec.Vec2) [8]Blocks {
	var out [8]Blocks
	for i, d := range NeighborOffsets {
		out[i] = m.GetBlock(p.Add(d))
	}
	return out
}

// GetOcclusionState состояние перекрытия колонки дочерней картой
func (m *BlockMap) GetOcclusionState(p vec.Vec2) OverlapState {
	k, ok := m.blockIndex(p)
	if !ok {
		return OverlapState{}
	}
	return unpackOverlap(m.blocks[k].overlap)
}

// Children прикреплённые карты объектов в порядке прикрепления
func (m *BlockMap) Children() []*ObjectMap {
	return append([]*ObjectMap(nil), m.children...)
}

// Child дочерняя карта по идентификатору
func (m *BlockMap) Child(id uint8) *ObjectMap {
	for _, c := range m.children {
		if c.id == id {
			return c
		}
	}
	return nil
}

// Region копия прямоугольного участка карты
type Region struct {
	Bounds  vec.Rect
	Heights []Heights // (SizeX+1)×(SizeY+1), построчно
	Blocks  []Blocks  // SizeX×SizeY, построчно
}

// HeightsAt высоты вершины участка в координатах карты
func (r Region) HeightsAt(p vec.Vec2) Heights {
	return r.Heights[(p.Y-r.Bounds.Min.Y)*(r.Bounds.SizeX()+1)+(p.X-r.Bounds.Min.X)]
}

// BlockAt колонка участка в координатах карты
func (r Region) BlockAt(p vec.Vec2) Blocks {
	return r.Blocks[(p.Y-r.Bounds.Min.Y)*r.Bounds.SizeX()+(p.X-r.Bounds.Min.X)]
}

// CopyRegion копирует пересечение rect с границами карты.
// Пустое пересечение даёт пустой участок, а не ошибку.
func (m *BlockMap) CopyRegion(rect vec.Rect) Region {
	r := rect.Intersect(m.bounds)
	if r.Empty() {
		return Region{Bounds: r}
	}
	sx, sz := r.SizeX(), r.SizeY()
	out := Region{
		Bounds:  r,
		Heights: make([]Heights, 0, (sx+1)*(sz+1)),
		Blocks:  make([]Blocks, 0, sx*sz),
	}
	for z := r.Min.Y; z <= r.Max.Y; z++ {
		for x := r.Min.X; x <= r.Max.X; x++ {
			k, _ := m.vertexIndex(vec.Vec2{X: x, Y: z})
			out.Heights = append(out.Heights, m.heights[k])
		}
	}
	for z := r.Min.Y; z < r.Max.Y; z++ {
		row, _ := m.blockIndex(vec.Vec2{X: r.Min.X, Y: z})
		out.Blocks = append(out.Blocks, m.blocks[row:row+sx]...)
	}
	return out
}
