package terrain

import (
	"fmt"

	"github.com/annel0/zonegen/internal/blockmap"
	"github.com/annel0/zonegen/internal/influence"
	"github.com/annel0/zonegen/internal/layout"
	"github.com/annel0/zonegen/internal/vec"
	"github.com/go-gl/mathgl/mgl64"
)

// ChunkSnapshot поверхность одного чанка для рендера и навигации:
// сетки высот и колонок, упакованное влияние и цвет в каждой вершине.
// Сетки вершин (N+1)×(N+1), колонок N×N, построчно по Z.
type ChunkSnapshot struct {
	Coord          vec.Vec2             `json:"coord"`
	BlocksPerChunk int                  `json:"blocks_per_chunk"`
	Owner          int                  `json:"owner"` // id зоны-владельца
	Heights        []blockmap.Heights   `json:"heights"`
	Blocks         []SnapshotBlock      `json:"blocks"`
	Influence      [][]influence.Weight `json:"influence"`
	Colors         []mgl64.Vec3         `json:"colors"`
}

// SnapshotBlock колонка снимка в сериализуемом виде
type SnapshotBlock struct {
	Base        blockmap.BlockID     `json:"base"`
	Underground blockmap.BlockID     `json:"underground"`
	Ground      blockmap.BlockID     `json:"ground"`
	Overlap     blockmap.OverlapKind `json:"overlap,omitempty"`
	OverlapMap  uint8                `json:"overlap_map,omitempty"`
}

// ChunkSnapshot снимает чанк c с базовой карты. Влияние в вершинах
// упаковывается порогом и top-K из конфигурации.
func (g *Generator) ChunkSnapshot(c vec.Vec2) (*ChunkSnapshot, error) {
	if g.base == nil {
		return nil, ErrNotGenerated
	}
	if !g.layout.LandChunks.Contains(c) {
		return nil, fmt.Errorf("%w: %v", ErrChunkOutOfLand, c)
	}

	bpc := g.cfg.Chunk.BlocksPerChunk
	region := g.base.CopyRegion(g.ChunkBlocks(c))
	snap := &ChunkSnapshot{
		Coord:          c,
		BlocksPerChunk: bpc,
		Owner:          g.layout.ChunkOwner(c).ID,
		Heights:        region.Heights,
		Blocks:         make([]SnapshotBlock, len(region.Blocks)),
		Influence:      make([][]influence.Weight, len(region.Heights)),
		Colors:         make([]mgl64.Vec3, len(region.Heights)),
	}
	for i, b := range region.Blocks {
		st := b.Overlap()
		snap.Blocks[i] = SnapshotBlock{
			Base:        b.Base,
			Underground: b.Underground,
			Ground:      b.Ground,
			Overlap:     st.Kind,
			OverlapMap:  st.MapID,
		}
	}

	field := g.field.Clone()
	var scratch influence.Ratio
	inf := g.cfg.Influence
	colorOf := func(t layout.ZoneType) mgl64.Vec3 { return g.catalog[t].Color }
	r := region.Bounds
	k := 0
	for z := r.Min.Y; z <= r.Max.Y; z++ {
		for x := r.Min.X; x <= r.Max.X; x++ {
			field.AtInto(g.worldPos(x, z), &scratch)
			packed := scratch.Pack(inf.PackThreshold).PackTop(inf.PackTopK)
			snap.Influence[k] = packed.Weights()
			snap.Colors[k] = influence.BlendColor(packed, colorOf)
			k++
		}
	}
	return snap, nil
}

// Block колонка снимка в локальных координатах чанка
func (s *ChunkSnapshot) Block(local vec.Vec2) SnapshotBlock {
	return s.Blocks[local.Y*s.BlocksPerChunk+local.X]
}

// VertexHeights высоты вершины снимка в локальных координатах
func (s *ChunkSnapshot) VertexHeights(local vec.Vec2) blockmap.Heights {
	return s.Heights[local.Y*(s.BlocksPerChunk+1)+local.X]
}
