package blockmap

import "fmt"

// BlockID идентификатор типа блока
type BlockID uint16

// Константы ID блоков
const (
	AirBlockID     BlockID = iota // 0, пустой слой
	StoneBlockID                  // 1
	GrassBlockID                  // 2
	WaterBlockID                  // 3
	SandBlockID                   // 4
	DirtBlockID                   // 5
	SnowBlockID                   // 6
	BedrockBlockID                // 7
)

// Layer слой колонки снизу вверх
type Layer uint8

const (
	LayerBase        Layer = iota // коренная порода
	LayerUnderground              // подземный слой
	LayerMain                     // поверхность (слот Ground)

	MaxLayers // всегда последний: количество слоёв
)

func (l Layer) String() string {
	switch l {
	case LayerBase:
		return "base"
	case LayerUnderground:
		return "underground"
	case LayerMain:
		return "main"
	default:
		return fmt.Sprintf("layer(%d)", uint8(l))
	}
}

// Heights три высоты одной вершины сетки. Инвариант: Base <= Underground <= Main.
type Heights struct {
	Base        float64
	Underground float64
	Main        float64
}

// Get высота слоя
func (h Heights) Get(l Layer) float64 {
	switch l {
	case LayerBase:
		return h.Base
	case LayerUnderground:
		return h.Underground
	default:
		return h.Main
	}
}

// Valid проверяет порядок слоёв
func (h Heights) Valid() bool {
	return h.Base <= h.Underground && h.Underground <= h.Main
}

// OverlapKind как дочерняя карта перекрывает блок родителя
type OverlapKind uint8

const (
	OverlapNone        OverlapKind = iota
	OverlapHidden                  // дочерняя карта целиком под поверхностью
	OverlapOverlapping             // пересекает поверхность
	OverlapAbove                   // висит над поверхностью
)

func (k OverlapKind) String() string {
	switch k {
	case OverlapNone:
		return "none"
	case OverlapHidden:
		return "hidden"
	case OverlapOverlapping:
		return "overlapping"
	case OverlapAbove:
		return "above"
	default:
		return fmt.Sprintf("overlap(%d)", uint8(k))
	}
}

// MaxChildMaps число идентификаторов дочерних карт (0..62), 63 зарезервирован
const MaxChildMaps = 63

// OverlapState состояние перекрытия блока: вид и идентификатор дочерней карты.
// MapID имеет смысл только при Kind != OverlapNone.
type OverlapState struct {
	Kind  OverlapKind
	MapID uint8
}

// упаковка: 2 старших бита вид, 6 младших идентификатор карты
const (
	overlapKindShift = 6
	overlapIDMask    = 0x3f
)

func (s OverlapState) pack() uint8 {
	if s.Kind == OverlapNone {
		return 0
	}
	return uint8(s.Kind)<<overlapKindShift | s.MapID&overlapIDMask
}

func unpackOverlap(b uint8) OverlapState {
	kind := OverlapKind(b >> overlapKindShift)
	if kind == OverlapNone {
		return OverlapState{}
	}
	return OverlapState{Kind: kind, MapID: b & overlapIDMask}
}

// Blocks колонка: три типа блоков по слоям, высоты слоёв колонки
// и упакованное состояние перекрытия.
type Blocks struct {
	Base        BlockID
	Underground BlockID
	Ground      BlockID
	Height      Heights

	overlap uint8
}

// NewBlocks создаёт колонку с автоисправлением входа: высоты упорядочиваются,
// слой с высотой, равной нижнему, становится пустым, а высота пустого слоя
// опускается до нижнего. Поэтому Ground пуст => Main == Underground и
// Underground пуст => Underground == Base.
func NewBlocks(base, underground, ground BlockID, h Heights) Blocks {
	if h.Underground < h.Base {
		h.Underground = h.Base
	}
	if h.Main < h.Underground {
		h.Main = h.Underground
	}

	if underground != AirBlockID && h.Underground == h.Base {
		underground = AirBlockID
	}
	if underground == AirBlockID {
		// поверхность, лежавшая на пустом слое, опускается вместе с ним
		if h.Main == h.Underground {
			h.Main = h.Base
		}
		h.Underground = h.Base
	}

	if ground != AirBlockID && h.Main == h.Underground {
		ground = AirBlockID
	}
	if ground == AirBlockID {
		h.Main = h.Underground
	}

	return Blocks{Base: base, Underground: underground, Ground: ground, Height: h}
}

// At тип блока слоя
func (b Blocks) At(l Layer) BlockID {
	switch l {
	case LayerBase:
		return b.Base
	case LayerUnderground:
		return b.Underground
	default:
		return b.Ground
	}
}

// IsEmpty true, если все слои пусты
func (b Blocks) IsEmpty() bool {
	return b.Base == AirBlockID && b.Underground == AirBlockID && b.Ground == AirBlockID
}

// Top верхний непустой слой; ok=false для пустой колонки
func (b Blocks) Top() (BlockID, Layer, bool) {
	for l := LayerMain; ; l-- {
		if id := b.At(l); id != AirBlockID {
			return id, l, true
		}
		if l == LayerBase {
			return AirBlockID, LayerBase, false
		}
	}
}

// Overlap распакованное состояние перекрытия
func (b Blocks) Overlap() OverlapState {
	return unpackOverlap(b.overlap)
}

// WithOverlap копия колонки с другим состоянием перекрытия
func (b Blocks) WithOverlap(s OverlapState) Blocks {
	b.overlap = s.pack()
	return b
}
