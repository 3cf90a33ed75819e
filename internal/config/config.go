package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"runtime"
	"strconv"

	"github.com/annel0/zonegen/internal/layout"
	"github.com/annel0/zonegen/internal/util"
	"github.com/annel0/zonegen/internal/vec"
	"gopkg.in/yaml.v3"
)

var (
	// ErrChunkSizeMismatch размер чанка не равен blocks_per_chunk × block_size
	ErrChunkSizeMismatch = errors.New("config: chunk_size не равен blocks_per_chunk * block_size")
	// ErrInvalidConfig прочие нарушения конфигурации
	ErrInvalidConfig = errors.New("config: некорректная конфигурация")
)

// Config корневая структура конфигурации генератора.
// Передаётся во все точки входа явно, глобального состояния нет.
type Config struct {
	Seed       int64            `yaml:"seed"`
	Land       LandConfig       `yaml:"land"`
	Chunk      ChunkConfig      `yaml:"chunk"`
	Zones      ZonesConfig      `yaml:"zones"`
	Influence  InfluenceConfig  `yaml:"influence"`
	ZoneTypes  []ZoneTypeConfig `yaml:"zone_types"`
	Generation GenerationConfig `yaml:"generation"`
	Storage    StorageConfig    `yaml:"storage"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// GridSize размер или координата в чанках
type GridSize struct {
	X int `yaml:"x"`
	Z int `yaml:"z"`
}

type LandConfig struct {
	SizeChunks  GridSize `yaml:"size_chunks"`
	OriginChunk GridSize `yaml:"origin_chunk"`
}

// Rect границы земли в координатах чанков
func (l LandConfig) Rect() vec.Rect {
	return vec.NewRect(vec.Vec2{X: l.OriginChunk.X, Y: l.OriginChunk.Z}, l.SizeChunks.X, l.SizeChunks.Z)
}

type ChunkConfig struct {
	BlocksPerChunk int     `yaml:"blocks_per_chunk"`
	BlockSize      float64 `yaml:"block_size"`
	// ChunkSize размер чанка в мировых единицах; 0 означает BlocksPerChunk × BlockSize
	ChunkSize float64 `yaml:"chunk_size"`
}

// EffectiveChunkSize размер чанка с учётом значения по умолчанию
func (c ChunkConfig) EffectiveChunkSize() float64 {
	if c.ChunkSize > 0 {
		return c.ChunkSize
	}
	return float64(c.BlocksPerChunk) * c.BlockSize
}

type ZonesConfig struct {
	Count         int              `yaml:"count"`
	MinSeparation float64          `yaml:"min_separation"`
	MaxRetries    int              `yaml:"max_retries"`
	Placement     string           `yaml:"placement"`
	Assignment    AssignmentConfig `yaml:"assignment"`
}

type AssignmentConfig struct {
	Strategy string `yaml:"strategy"`
	MinGroup int    `yaml:"min_group"`
	MaxGroup int    `yaml:"max_group"`
}

// InfluenceConfig параметры поля влияния
type InfluenceConfig struct {
	Power         float64 `yaml:"power"`
	Epsilon       float64 `yaml:"epsilon"`
	PackThreshold float64 `yaml:"pack_threshold"`
	PackTopK      int     `yaml:"pack_top_k"`
	// Mode: "exact" считает IDW в каждой вершине, "bilinear" только по углам чанка
	Mode string `yaml:"mode"`
}

const (
	InfluenceExact    = "exact"
	InfluenceBilinear = "bilinear"
)

// ZoneTypeConfig запись каталога типов зон
type ZoneTypeConfig struct {
	ID               int           `yaml:"id"`
	Name             string        `yaml:"name"`
	DefaultBlock     uint16        `yaml:"default_block"`
	UndergroundBlock uint16        `yaml:"underground_block"`
	HeightBias       float64       `yaml:"height_bias"`
	Octaves          []util.Octave `yaml:"octaves"`
	Color            [3]float64    `yaml:"color"`
}

type GenerationConfig struct {
	Workers          int     `yaml:"workers"`
	UndergroundDepth float64 `yaml:"underground_depth"`
	BedrockHeight    float64 `yaml:"bedrock_height"`
}

// GetWorkers число воркеров с приоритетом: config -> env -> число CPU
func (g GenerationConfig) GetWorkers() int {
	return getIntWithEnvFallback(g.Workers, "ZONEGEN_WORKERS", runtime.NumCPU())
}

type StorageConfig struct {
	Path             string `yaml:"path"`
	CompressionLevel int    `yaml:"compression_level"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// GetSeed сид с приоритетом: config -> env ZONEGEN_SEED -> 1
func (c *Config) GetSeed() int64 {
	if c.Seed != 0 {
		return c.Seed
	}
	if envVal := os.Getenv("ZONEGEN_SEED"); envVal != "" {
		if seed, err := strconv.ParseInt(envVal, 10, 64); err == nil {
			return seed
		}
	}
	return 1
}

// getIntWithEnvFallback возвращает значение с приоритетом: config -> env -> default
func getIntWithEnvFallback(configValue int, envVar string, defaultValue int) int {
	if configValue > 0 {
		return configValue
	}
	if envVal := os.Getenv(envVar); envVal != "" {
		if v, err := strconv.Atoi(envVal); err == nil && v > 0 {
			return v
		}
	}
	return defaultValue
}

// Default конфигурация по умолчанию
func Default() *Config {
	return &Config{
		Land: LandConfig{
			SizeChunks:  GridSize{X: 16, Z: 16},
			OriginChunk: GridSize{X: -8, Z: -8},
		},
		Chunk: ChunkConfig{BlocksPerChunk: 16, BlockSize: 1},
		Zones: ZonesConfig{
			Count:         24,
			MinSeparation: 24,
			MaxRetries:    30,
			Placement:     layout.PlacementUniform.String(),
			Assignment: AssignmentConfig{
				Strategy: layout.AssignClustered.String(),
				MinGroup: 2,
				MaxGroup: 4,
			},
		},
		Influence: InfluenceConfig{
			Power:         2,
			Epsilon:       1e-3,
			PackThreshold: 0.05,
			PackTopK:      4,
			Mode:          InfluenceExact,
		},
		ZoneTypes: []ZoneTypeConfig{
			{ID: 0, Name: "plains", DefaultBlock: 2, UndergroundBlock: 5, HeightBias: 8,
				Octaves: []util.Octave{{Scale: 64, Amplitude: 4}, {Scale: 16, Amplitude: 1}}, Color: [3]float64{0.35, 0.65, 0.25}},
			{ID: 1, Name: "desert", DefaultBlock: 4, UndergroundBlock: 4, HeightBias: 6,
				Octaves: []util.Octave{{Scale: 48, Amplitude: 3}, {Scale: 8, Amplitude: 0.5}}, Color: [3]float64{0.85, 0.78, 0.5}},
			{ID: 2, Name: "mountains", DefaultBlock: 1, UndergroundBlock: 1, HeightBias: 24,
				Octaves: []util.Octave{{Scale: 96, Amplitude: 16}, {Scale: 24, Amplitude: 4}}, Color: [3]float64{0.5, 0.5, 0.52}},
			{ID: 3, Name: "tundra", DefaultBlock: 6, UndergroundBlock: 5, HeightBias: 10,
				Octaves: []util.Octave{{Scale: 64, Amplitude: 5}, {Scale: 12, Amplitude: 1}}, Color: [3]float64{0.9, 0.92, 0.95}},
		},
		Generation: GenerationConfig{UndergroundDepth: 4, BedrockHeight: 0},
		Storage:    StorageConfig{Path: "data/zonegen", CompressionLevel: 3},
	}
}

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", берётся ENV ZONEGEN_CONFIG; если и он пуст,
// возвращается Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("ZONEGEN_CONFIG")
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения конфигурации %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("ошибка разбора конфигурации %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет согласованность конфигурации. Несовпадение размера
// чанка считается фатальной ошибкой.
func (c *Config) Validate() error {
	if c.Chunk.BlocksPerChunk <= 0 || !(c.Chunk.BlockSize > 0) {
		return fmt.Errorf("%w: blocks_per_chunk и block_size должны быть положительными", ErrInvalidConfig)
	}
	if c.Chunk.ChunkSize != 0 {
		want := float64(c.Chunk.BlocksPerChunk) * c.Chunk.BlockSize
		if math.Abs(c.Chunk.ChunkSize-want) > 1e-9 {
			return fmt.Errorf("%w: %g != %d * %g", ErrChunkSizeMismatch, c.Chunk.ChunkSize, c.Chunk.BlocksPerChunk, c.Chunk.BlockSize)
		}
	}
	if c.Land.SizeChunks.X <= 0 || c.Land.SizeChunks.Z <= 0 {
		return fmt.Errorf("%w: размер земли должен быть положительным", ErrInvalidConfig)
	}
	if c.Zones.Count < 1 {
		return fmt.Errorf("%w: zones.count должен быть не меньше 1", ErrInvalidConfig)
	}
	if c.Zones.MinSeparation < 0 || c.Zones.MaxRetries < 0 {
		return fmt.Errorf("%w: min_separation и max_retries не могут быть отрицательными", ErrInvalidConfig)
	}
	if _, ok := layout.ParsePlacement(c.Zones.Placement); !ok {
		return fmt.Errorf("%w: неизвестная расстановка %q", ErrInvalidConfig, c.Zones.Placement)
	}
	if _, ok := layout.ParseAssignKind(c.Zones.Assignment.Strategy); !ok {
		return fmt.Errorf("%w: неизвестная стратегия %q", ErrInvalidConfig, c.Zones.Assignment.Strategy)
	}
	a := c.Zones.Assignment
	if a.MinGroup < 1 || a.MaxGroup < a.MinGroup {
		return fmt.Errorf("%w: группы должны удовлетворять 1 <= min_group <= max_group", ErrInvalidConfig)
	}

	inf := c.Influence
	if !(inf.Power > 0) || !(inf.Epsilon > 0) {
		return fmt.Errorf("%w: power и epsilon должны быть положительными", ErrInvalidConfig)
	}
	if inf.PackThreshold < 0 || inf.PackThreshold >= 1 {
		return fmt.Errorf("%w: pack_threshold вне [0, 1)", ErrInvalidConfig)
	}
	if inf.PackTopK < 0 {
		return fmt.Errorf("%w: pack_top_k не может быть отрицательным", ErrInvalidConfig)
	}
	if inf.Mode != InfluenceExact && inf.Mode != InfluenceBilinear {
		return fmt.Errorf("%w: неизвестный режим влияния %q", ErrInvalidConfig, inf.Mode)
	}

	if len(c.ZoneTypes) == 0 {
		return fmt.Errorf("%w: каталог типов зон пуст", ErrInvalidConfig)
	}
	if len(c.ZoneTypes) > 256 {
		return fmt.Errorf("%w: не более 256 типов зон", ErrInvalidConfig)
	}
	// id типа зоны совпадает с его позицией в каталоге: генератор адресует каталог по индексу
	for i, zt := range c.ZoneTypes {
		if zt.ID != i {
			return fmt.Errorf("%w: тип зоны %q имеет id %d, ожидался %d (id идут по порядку с 0)",
				ErrInvalidConfig, zt.Name, zt.ID, i)
		}
	}

	if c.Generation.Workers < 0 || c.Generation.UndergroundDepth < 0 {
		return fmt.Errorf("%w: workers и underground_depth не могут быть отрицательными", ErrInvalidConfig)
	}
	return nil
}
