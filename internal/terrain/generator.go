// Package terrain связывает раскладку зон, поле влияния и шум в проход
// генерации базовой карты блоков и отдаёт снимки чанков потребителям.
package terrain

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/annel0/zonegen/internal/blockmap"
	"github.com/annel0/zonegen/internal/config"
	"github.com/annel0/zonegen/internal/influence"
	"github.com/annel0/zonegen/internal/layout"
	"github.com/annel0/zonegen/internal/logging"
	"github.com/annel0/zonegen/internal/util"
	"github.com/annel0/zonegen/internal/vec"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const tracerName = "github.com/annel0/zonegen/internal/terrain"

var (
	ErrNotGenerated    = errors.New("terrain: базовая карта ещё не сгенерирована")
	ErrChunkOutOfLand  = errors.New("terrain: чанк вне границ земли")
	ErrUnknownZoneType = errors.New("terrain: тип зоны вне каталога")
)

// ZoneParams параметры типа зоны, которые смешиваются по влиянию
type ZoneParams struct {
	Name             string
	DefaultBlock     blockmap.BlockID
	UndergroundBlock blockmap.BlockID
	HeightBias       float64
	Octaves          []util.Octave
	Color            mgl64.Vec3
}

// Option настройка генератора
type Option func(*Generator)

// WithRegisterer регистрирует метрики генератора в reg
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(g *Generator) { g.metrics = NewMetrics(reg) }
}

// WithTracer задаёт трассировщик (по умолчанию глобальный провайдер otel)
func WithTracer(t trace.Tracer) Option {
	return func(g *Generator) { g.tracer = t }
}

// WithLogger задаёт логгер компонента
func WithLogger(l *logging.Logger) Option {
	return func(g *Generator) { g.log = l }
}

// WithOnChanged подписывает fn на изменения базовой карты при фиксации
func WithOnChanged(fn func(vec.Rect)) Option {
	return func(g *Generator) { g.onChanged = fn }
}

// Generator генератор местности по конфигурации. Раскладка и поле влияния
// строятся в NewGenerator, базовая карта в Generate.
type Generator struct {
	cfg      *config.Config
	seed     int64
	catalog  []ZoneParams // по индексу layout.ZoneType
	layout   *layout.Layout
	field    *influence.Field
	noise    *util.Noise
	layoutID uuid.UUID

	metrics   *Metrics
	tracer    trace.Tracer
	log       *logging.Logger
	onChanged func(vec.Rect)

	base *blockmap.BlockMap
}

// NewGenerator проверяет конфигурацию, раскладывает зоны и строит поле влияния
func NewGenerator(cfg *config.Config, opts ...Option) (*Generator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: конфигурация nil", config.ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	g := &Generator{
		cfg:      cfg,
		seed:     cfg.GetSeed(),
		layoutID: uuid.New(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.metrics == nil {
		g.metrics = NewMetrics(nil)
	}
	if g.tracer == nil {
		g.tracer = otel.Tracer(tracerName)
	}
	if g.log == nil {
		g.log = logging.GetGeneratorLogger()
	}

	// Индекс каталога совпадает с id типа зоны, это проверяет config.Validate
	types := make([]layout.ZoneType, len(cfg.ZoneTypes))
	g.catalog = make([]ZoneParams, len(cfg.ZoneTypes))
	for i, zt := range cfg.ZoneTypes {
		types[i] = layout.ZoneType(i)
		g.catalog[i] = ZoneParams{
			Name:             zt.Name,
			DefaultBlock:     blockmap.BlockID(zt.DefaultBlock),
			UndergroundBlock: blockmap.BlockID(zt.UndergroundBlock),
			HeightBias:       zt.HeightBias,
			Octaves:          append([]util.Octave(nil), zt.Octaves...),
			Color:            mgl64.Vec3{zt.Color[0], zt.Color[1], zt.Color[2]},
		}
	}

	placement, _ := layout.ParsePlacement(cfg.Zones.Placement)
	kind, _ := layout.ParseAssignKind(cfg.Zones.Assignment.Strategy)
	rng := rand.New(rand.NewSource(g.seed))

	l, err := layout.Generate(layout.Params{
		LandChunks:    cfg.Land.Rect(),
		ChunkSize:     cfg.Chunk.EffectiveChunkSize(),
		ZoneCount:     cfg.Zones.Count,
		MinSeparation: cfg.Zones.MinSeparation,
		MaxRetries:    cfg.Zones.MaxRetries,
		Placement:     placement,
		Strategy: layout.Strategy{
			Kind:     kind,
			MinGroup: cfg.Zones.Assignment.MinGroup,
			MaxGroup: cfg.Zones.Assignment.MaxGroup,
		},
		Types: types,
	}, rng)
	if err != nil {
		return nil, fmt.Errorf("ошибка раскладки зон: %w", err)
	}
	if len(l.Zones) < cfg.Zones.Count {
		g.log.Warn("Расставлено %d зон из %d: не хватило места при min_separation=%g",
			len(l.Zones), cfg.Zones.Count, cfg.Zones.MinSeparation)
	}

	field, err := influence.FromLayout(l, len(g.catalog), cfg.Influence.Power, cfg.Influence.Epsilon)
	if err != nil {
		return nil, fmt.Errorf("ошибка построения поля влияния: %w", err)
	}

	g.layout = l
	g.field = field
	g.noise = util.NewNoise(g.seed)
	g.metrics.zones.Set(float64(len(l.Zones)))
	g.log.Info("Раскладка %s: %d зон, земля %v чанков, сид %d", g.layoutID, len(l.Zones), l.LandChunks, g.seed)
	return g, nil
}

// Layout раскладка зон
func (g *Generator) Layout() *layout.Layout { return g.layout }

// LayoutID идентификатор раскладки (ключ хранилища)
func (g *Generator) LayoutID() uuid.UUID { return g.layoutID }

// Field поле влияния. Не для конкурентного использования, см. Field.Clone.
func (g *Generator) Field() *influence.Field { return g.field }

// Catalog параметры типов зон по индексу layout.ZoneType
func (g *Generator) Catalog() []ZoneParams { return g.catalog }

// Base базовая карта или nil до успешного Generate
func (g *Generator) Base() *blockmap.BlockMap { return g.base }

// Seed сид генерации
func (g *Generator) Seed() int64 { return g.seed }

// ZoneParamsFor параметры типа зоны
func (g *Generator) ZoneParamsFor(t layout.ZoneType) (ZoneParams, error) {
	if int(t) >= len(g.catalog) {
		return ZoneParams{}, fmt.Errorf("%w: %d", ErrUnknownZoneType, t)
	}
	return g.catalog[t], nil
}

// LandBlocks границы земли в координатах блоков
func (g *Generator) LandBlocks() vec.Rect {
	land := g.layout.LandChunks
	bpc := g.cfg.Chunk.BlocksPerChunk
	return vec.Rect{Min: land.Min.Mul(bpc), Max: land.Max.Mul(bpc)}
}

// ChunkBlocks границы чанка в координатах блоков
func (g *Generator) ChunkBlocks(c vec.Vec2) vec.Rect {
	bpc := g.cfg.Chunk.BlocksPerChunk
	return vec.NewRect(c.Mul(bpc), bpc, bpc)
}

// ZoneChunks множества чанков каждой зоны по id зоны
func (g *Generator) ZoneChunks() [][]vec.Vec2 {
	out := make([][]vec.Vec2, len(g.layout.Zones))
	for i, z := range g.layout.Zones {
		out[i] = g.layout.GetChunks(z)
	}
	return out
}

// Generate строит базовую карту всей земли. Чанки считаются параллельно в
// собственные буферы, затем фиксируются последовательно одной горутиной.
// При ошибке или отмене карта не публикуется.
func (g *Generator) Generate(ctx context.Context) (*blockmap.BlockMap, error) {
	ctx, span := g.tracer.Start(ctx, "terrain.Generate")
	defer span.End()

	start := time.Now()
	land := g.layout.LandChunks
	chunks := make([]vec.Vec2, 0, land.SizeX()*land.SizeY())
	for z := land.Min.Y; z < land.Max.Y; z++ {
		for x := land.Min.X; x < land.Max.X; x++ {
			chunks = append(chunks, vec.Vec2{X: x, Y: z})
		}
	}
	workers := g.cfg.Generation.GetWorkers()
	span.SetAttributes(
		attribute.Int("zonegen.chunks", len(chunks)),
		attribute.Int("zonegen.workers", workers),
		attribute.String("zonegen.influence_mode", g.cfg.Influence.Mode),
	)
	g.log.Info("Генерация базовой карты: %d чанков, %d воркеров", len(chunks), workers)

	base, err := g.generate(ctx, chunks, workers)
	g.metrics.observePass(start, len(chunks), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.log.Error("Генерация прервана: %v", err)
		return nil, err
	}

	g.base = base
	g.log.Info("Базовая карта готова за %v", time.Since(start))
	return base, nil
}

func (g *Generator) generate(ctx context.Context, chunks []vec.Vec2, workers int) (*blockmap.BlockMap, error) {
	staged := make([]*chunkData, len(chunks))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i, c := range chunks {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			data, err := g.buildChunk(egCtx, c)
			if err != nil {
				return fmt.Errorf("чанк %v: %w", c, err)
			}
			staged[i] = data
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	_, span := g.tracer.Start(ctx, "terrain.commit")
	defer span.End()

	base, err := blockmap.New(g.LandBlocks())
	if err != nil {
		return nil, err
	}
	for _, data := range staged {
		if err := base.SetHeights(data.vertexPos, data.heights); err != nil {
			return nil, fmt.Errorf("фиксация высот чанка %v: %w", data.coord, err)
		}
		if err := base.SetBlocks(data.blockPos, data.blocks, false); err != nil {
			return nil, fmt.Errorf("фиксация колонок чанка %v: %w", data.coord, err)
		}
	}
	// подписчик видит только полностью собранную карту
	if g.onChanged != nil {
		base.OnChanged(g.onChanged)
		g.onChanged(base.Bounds())
	}
	return base, nil
}

// chunkData буфер одного чанка. Чанк владеет вершинами [min, max) и,
// на дальних краях земли, замыкающей строкой и столбцом.
type chunkData struct {
	coord     vec.Vec2
	vertexPos []vec.Vec2
	heights   []blockmap.Heights
	blockPos  []vec.Vec2
	blocks    []blockmap.Blocks
}

func (g *Generator) buildChunk(ctx context.Context, c vec.Vec2) (*chunkData, error) {
	_, span := g.tracer.Start(ctx, "terrain.chunk", trace.WithAttributes(
		attribute.Int("chunk.x", c.X), attribute.Int("chunk.z", c.Y)))
	defer span.End()

	bpc := g.cfg.Chunk.BlocksPerChunk
	rect := g.ChunkBlocks(c)
	land := g.LandBlocks()
	s := newSampler(g, rect)

	// локальная сетка вершин (bpc+1)², нужна целиком для высот колонок
	grid := make([]blockmap.Heights, (bpc+1)*(bpc+1))
	for j := 0; j <= bpc; j++ {
		for i := 0; i <= bpc; i++ {
			grid[j*(bpc+1)+i] = s.vertexHeights(rect.Min.X+i, rect.Min.Y+j)
		}
	}

	data := &chunkData{coord: c}
	for j := 0; j <= bpc; j++ {
		z := rect.Min.Y + j
		if j == bpc && z != land.Max.Y {
			continue
		}
		for i := 0; i <= bpc; i++ {
			x := rect.Min.X + i
			if i == bpc && x != land.Max.X {
				continue
			}
			data.vertexPos = append(data.vertexPos, vec.Vec2{X: x, Y: z})
			data.heights = append(data.heights, grid[j*(bpc+1)+i])
		}
	}

	bedrock := blockmap.BedrockBlockID
	for j := 0; j < bpc; j++ {
		for i := 0; i < bpc; i++ {
			p := vec.Vec2{X: rect.Min.X + i, Y: rect.Min.Y + j}
			zp := g.catalog[s.dominantAt(p)]
			h := averageHeights(
				grid[j*(bpc+1)+i], grid[j*(bpc+1)+i+1],
				grid[(j+1)*(bpc+1)+i], grid[(j+1)*(bpc+1)+i+1],
			)
			data.blockPos = append(data.blockPos, p)
			data.blocks = append(data.blocks, blockmap.NewBlocks(bedrock, zp.UndergroundBlock, zp.DefaultBlock, h))
		}
	}
	return data, nil
}

func averageHeights(hs ...blockmap.Heights) blockmap.Heights {
	var out blockmap.Heights
	for _, h := range hs {
		out.Base += h.Base
		out.Underground += h.Underground
		out.Main += h.Main
	}
	n := float64(len(hs))
	out.Base /= n
	out.Underground /= n
	out.Main /= n
	return out
}

// sampler считает влияние и высоты внутри одного чанка. У каждого
// воркера свой sampler с собственной копией поля.
type sampler struct {
	g       *Generator
	field   *influence.Field
	rect    vec.Rect
	corners [4]influence.Ratio // для билинейного режима: 00, 10, 01, 11
	scratch influence.Ratio
	octaves []util.Octave
}

func newSampler(g *Generator, rect vec.Rect) *sampler {
	s := &sampler{g: g, field: g.field.Clone(), rect: rect}
	if g.cfg.Influence.Mode == config.InfluenceBilinear {
		s.corners[0] = s.field.At(g.worldPos(rect.Min.X, rect.Min.Y))
		s.corners[1] = s.field.At(g.worldPos(rect.Max.X, rect.Min.Y))
		s.corners[2] = s.field.At(g.worldPos(rect.Min.X, rect.Max.Y))
		s.corners[3] = s.field.At(g.worldPos(rect.Max.X, rect.Max.Y))
	}
	return s
}

// worldPos мировые координаты вершины или точки в блоках
func (g *Generator) worldPos(x, z int) vec.Vec2Float {
	bs := g.cfg.Chunk.BlockSize
	return vec.Vec2Float{X: float64(x) * bs, Y: float64(z) * bs}
}

// ratioAt влияние в точке блоковых координат (x, z могут быть дробными)
func (s *sampler) ratioAt(x, z float64) influence.Ratio {
	if s.g.cfg.Influence.Mode == config.InfluenceBilinear {
		tx := (x - float64(s.rect.Min.X)) / float64(s.rect.SizeX())
		tz := (z - float64(s.rect.Min.Y)) / float64(s.rect.SizeY())
		influence.BilerpInto(&s.scratch, s.corners[0], s.corners[1], s.corners[2], s.corners[3], tx, tz)
		return s.scratch
	}
	bs := s.g.cfg.Chunk.BlockSize
	s.field.AtInto(vec.Vec2Float{X: x * bs, Y: z * bs}, &s.scratch)
	return s.scratch
}

func (s *sampler) vertexHeights(x, z int) blockmap.Heights {
	r := s.ratioAt(float64(x), float64(z))
	wp := s.g.worldPos(x, z)
	return s.g.heightsFor(r, wp, &s.octaves)
}

func (s *sampler) dominantAt(p vec.Vec2) layout.ZoneType {
	r := s.ratioAt(float64(p.X)+0.5, float64(p.Y)+0.5)
	t, ok := r.Dominant()
	if !ok {
		return 0
	}
	return t
}

// heightsFor высоты по смешанным параметрам зон: смещение высоты плюс
// октавы шума со смешанными масштабами и амплитудами.
func (g *Generator) heightsFor(r influence.Ratio, wp vec.Vec2Float, buf *[]util.Octave) blockmap.Heights {
	bias := influence.Blend(r, func(t layout.ZoneType) float64 { return g.catalog[t].HeightBias })

	octaves := (*buf)[:0]
	for _, w := range r.Weights() {
		for i, o := range g.catalog[w.Type].Octaves {
			for len(octaves) <= i {
				octaves = append(octaves, util.Octave{})
			}
			octaves[i].Scale += o.Scale * w.Value
			octaves[i].Amplitude += o.Amplitude * w.Value
		}
	}
	*buf = octaves

	gen := g.cfg.Generation
	main := bias + g.noise.Octaves(wp.X, wp.Y, octaves)
	base := gen.BedrockHeight
	main = math.Max(main, base)
	under := math.Max(base, main-gen.UndergroundDepth)
	return blockmap.Heights{Base: base, Underground: under, Main: main}
}
