package blockmap

import (
	"fmt"
	"math"

	"github.com/annel0/zonegen/internal/vec"
)

// seamEpsilon допуск совпадения поверхностей карты объектов и родителя
const seamEpsilon = 1e-3

// ObjectMap карта объектов: отдельная накладываемая область (постройка,
// парящий остров), которая прикрепляется к родительской карте в общих
// координатах и покрывает её подпрямоугольник.
type ObjectMap struct {
	BlockMap

	parent *BlockMap
	id     uint8
	seam   []bool // по вершинам сетки высот
}

// NewObjectMap создаёт неприкреплённую карту объектов
func NewObjectMap(bounds vec.Rect) (*ObjectMap, error) {
	om := &ObjectMap{}
	if err := om.init(bounds); err != nil {
		return nil, err
	}
	return om, nil
}

// Parent родительская карта или nil
func (om *ObjectMap) Parent() *BlockMap { return om.parent }

// ID идентификатор в родителе; ok=false для неприкреплённой карты
func (om *ObjectMap) ID() (uint8, bool) {
	return om.id, om.parent != nil
}

// SetBlocks как BlockMap.SetBlocks, но регенерация высот разрешена только
// прикреплённой карте: до прикрепления сетка строится отдельным вызовом
// RegenerateHeights.
func (om *ObjectMap) SetBlocks(positions []vec.Vec2, blocks []Blocks, regenerate bool) error {
	if regenerate && om.parent == nil {
		return ErrRegenerateDetached
	}
	if err := om.BlockMap.SetBlocks(positions, blocks, regenerate); err != nil {
		return err
	}
	if om.parent != nil {
		om.refresh(spanOf(positions))
	}
	return nil
}

// SetHeights как BlockMap.SetHeights; у прикреплённой карты обновляет
// перекрытия родителя и швы.
func (om *ObjectMap) SetHeights(positions []vec.Vec2, heights []Heights) error {
	if err := om.BlockMap.SetHeights(positions, heights); err != nil {
		return err
	}
	if om.parent != nil {
		om.refresh(om.vertexSpan(positions))
	}
	return nil
}

// RegenerateHeights пересчитывает сетку высот по колонкам
func (om *ObjectMap) RegenerateHeights() {
	om.BlockMap.RegenerateHeights()
	if om.parent != nil {
		om.refresh(om.bounds)
	}
}

func (om *ObjectMap) refresh(r vec.Rect) {
	om.parent.restampChildren(r)
	om.parent.notify(r.Intersect(om.parent.bounds))
}

// Attach прикрепляет карту к parent. Сетка высот обеих карт должна быть
// сгенерирована, границы карты объектов должны лежать внутри родителя.
// Колонкам родителя проставляется состояние перекрытия; при наложении
// нескольких карт побеждает прикреплённая последней.
func (om *ObjectMap) Attach(parent *BlockMap) error {
	if parent == nil {
		return fmt.Errorf("%w: родитель nil", ErrNotAttached)
	}
	if om.parent != nil {
		return ErrAlreadyAttached
	}
	if parent == &om.BlockMap {
		return fmt.Errorf("%w: карта не может быть родителем самой себе", ErrAlreadyAttached)
	}
	if !om.generated {
		return fmt.Errorf("%w: карта объектов", ErrNotGenerated)
	}
	if !parent.generated {
		return fmt.Errorf("%w: родительская карта", ErrNotGenerated)
	}
	if !parent.bounds.ContainsRect(om.bounds) {
		return fmt.Errorf("%w: %v не внутри %v", ErrOutOfBounds, om.bounds, parent.bounds)
	}

	id, ok := parent.freeChildID()
	if !ok {
		return ErrTooManyChildren
	}

	om.parent = parent
	om.id = id
	parent.children = append(parent.children, om)

	parent.stamp(om, om.bounds)
	om.updateSeams()
	parent.notify(om.bounds)
	return nil
}

// Detach открепляет карту. Перекрытия родителя под ней пересчитываются
// по оставшимся дочерним картам.
func (om *ObjectMap) Detach() error {
	parent := om.parent
	if parent == nil {
		return ErrNotAttached
	}
	for i, c := range parent.children {
		if c == om {
			parent.children = append(parent.children[:i], parent.children[i+1:]...)
			break
		}
	}
	om.parent = nil
	om.id = 0
	om.seam = nil

	parent.restampChildren(om.bounds)
	parent.notify(om.bounds)
	return nil
}

// IsSeamVertex true, если поверхность карты в вершине совпадает с
// поверхностью родителя (сетки сшиваются без зазора)
func (om *ObjectMap) IsSeamVertex(p vec.Vec2) bool {
	if om.seam == nil {
		return false
	}
	k, ok := om.vertexIndex(p)
	return ok && om.seam[k]
}

func (om *ObjectMap) updateSeams() {
	if len(om.seam) != len(om.heights) {
		om.seam = make([]bool, len(om.heights))
	}
	for z := om.bounds.Min.Y; z <= om.bounds.Max.Y; z++ {
		for x := om.bounds.Min.X; x <= om.bounds.Max.X; x++ {
			v := vec.Vec2{X: x, Y: z}
			k, _ := om.vertexIndex(v)
			om.seam[k] = om.touchesBlocks(v) &&
				math.Abs(om.heights[k].Main-om.parent.GetHeights(v).Main) <= seamEpsilon
		}
	}
}

// touchesBlocks есть ли у вершины непустая соседняя колонка
func (om *ObjectMap) touchesBlocks(v vec.Vec2) bool {
	for dz := -1; dz <= 0; dz++ {
		for dx := -1; dx <= 0; dx++ {
			if k, ok := om.blockIndex(vec.Vec2{X: v.X + dx, Y: v.Y + dz}); ok && !om.blocks[k].IsEmpty() {
				return true
			}
		}
	}
	return false
}

func (m *BlockMap) freeChildID() (uint8, bool) {
	var used [MaxChildMaps]bool
	for _, c := range m.children {
		used[c.id] = true
	}
	for id := range used {
		if !used[id] {
			return uint8(id), true
		}
	}
	return 0, false
}

// stamp проставляет перекрытия колонкам родителя в пределах r
func (m *BlockMap) stamp(c *ObjectMap, r vec.Rect) {
	r = r.Intersect(c.bounds).Intersect(m.bounds)
	for z := r.Min.Y; z < r.Max.Y; z++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			p := vec.Vec2{X: x, Y: z}
			cb := c.GetBlockRef(p)
			if cb.IsEmpty() {
				continue
			}
			h00, h10, h01, h11 := m.quadHeights(p, LayerMain)
			lo := math.Min(math.Min(h00, h10), math.Min(h01, h11))
			hi := math.Max(math.Max(h00, h10), math.Max(h01, h11))

			kind := OverlapOverlapping
			switch {
			case cb.Height.Base >= hi:
				kind = OverlapAbove
			case cb.Height.Main <= lo:
				kind = OverlapHidden
			}
			k, _ := m.blockIndex(p)
			m.blocks[k].overlap = OverlapState{Kind: kind, MapID: c.id}.pack()
		}
	}
}

// restampChildren сбрасывает перекрытия в r и проставляет их заново
// по дочерним картам в порядке прикрепления
func (m *BlockMap) restampChildren(r vec.Rect) {
	if len(m.children) == 0 {
		return
	}
	r = r.Intersect(m.bounds)
	for z := r.Min.Y; z < r.Max.Y; z++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			k, _ := m.blockIndex(vec.Vec2{X: x, Y: z})
			m.blocks[k].overlap = 0
		}
	}
	for _, c := range m.children {
		if c.bounds.Intersect(r).Empty() {
			continue
		}
		m.stamp(c, r)
		c.updateSeams()
	}
}
