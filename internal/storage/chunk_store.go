package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/annel0/zonegen/internal/geometry"
	"github.com/annel0/zonegen/internal/logging"
	"github.com/annel0/zonegen/internal/terrain"
	"github.com/annel0/zonegen/internal/vec"
	"github.com/dgraph-io/badger/v3"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
)

var (
	// ErrNotFound запись отсутствует в хранилище
	ErrNotFound = errors.New("storage: запись не найдена")
	// ErrNotReady хранилище закрыто
	ErrNotReady = errors.New("storage: хранилище не готово")
)

const (
	chunkPrefix = "chunk:"
	meshPrefix  = "mesh:"
)

// ChunkStore хранит снимки чанков и сетки раскладок в BadgerDB.
// Значения сериализуются в JSON и сжимаются zstd.
type ChunkStore struct {
	db      *badger.DB
	dbPath  string
	mutex   sync.RWMutex
	isReady bool

	enc *zstd.Encoder
	dec *zstd.Decoder
	log *logging.Logger
}

// NewChunkStore открывает хранилище в каталоге dataPath/zonegen.
// level - уровень сжатия zstd (1..22), 0 означает уровень по умолчанию.
func NewChunkStore(dataPath string, level int) (*ChunkStore, error) {
	encLevel := zstd.SpeedDefault
	if level > 0 {
		encLevel = zstd.EncoderLevelFromZstd(level)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(encLevel))
	if err != nil {
		return nil, fmt.Errorf("не удалось создать zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("не удалось создать zstd decoder: %w", err)
	}

	dbPath := filepath.Join(dataPath, "zonegen")
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		enc.Close()
		dec.Close()
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	cs := &ChunkStore{
		db:      db,
		dbPath:  dbPath,
		isReady: true,
		enc:     enc,
		dec:     dec,
		log:     logging.GetStorageLogger(),
	}
	cs.log.Debug("Хранилище чанков открыто: %s", dbPath)
	return cs, nil
}

// Path возвращает каталог базы
func (cs *ChunkStore) Path() string { return cs.dbPath }

// Close закрывает хранилище данных
func (cs *ChunkStore) Close() error {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	if !cs.isReady {
		return nil
	}

	cs.isReady = false
	cs.dec.Close()
	if err := cs.enc.Close(); err != nil {
		cs.log.Warn("Ошибка закрытия zstd encoder: %v", err)
	}
	return cs.db.Close()
}

func chunkKey(layoutID uuid.UUID, c vec.Vec2) string {
	return fmt.Sprintf("%s%s:%d:%d", chunkPrefix, layoutID, c.X, c.Y)
}

func meshKey(layoutID uuid.UUID) string {
	return meshPrefix + layoutID.String()
}

// SaveChunk сохраняет снимок чанка раскладки layoutID
func (cs *ChunkStore) SaveChunk(layoutID uuid.UUID, snap *terrain.ChunkSnapshot) error {
	if snap == nil {
		return fmt.Errorf("storage: пустой снимок чанка")
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("ошибка сериализации чанка: %w", err)
	}
	if err := cs.put(chunkKey(layoutID, snap.Coord), data); err != nil {
		return fmt.Errorf("ошибка сохранения чанка %v: %w", snap.Coord, err)
	}
	return nil
}

// LoadChunk загружает снимок чанка. Если чанк не сохранялся, возвращает ErrNotFound.
func (cs *ChunkStore) LoadChunk(layoutID uuid.UUID, c vec.Vec2) (*terrain.ChunkSnapshot, error) {
	data, err := cs.get(chunkKey(layoutID, c))
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения чанка %v: %w", c, err)
	}

	var snap terrain.ChunkSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("ошибка десериализации чанка: %w", err)
	}
	return &snap, nil
}

// SaveMesh сохраняет сетку зон раскладки
func (cs *ChunkStore) SaveMesh(layoutID uuid.UUID, m *geometry.Mesh) error {
	if m == nil {
		return fmt.Errorf("storage: пустая сетка")
	}
	var buf bytes.Buffer
	if err := geometry.Encode(&buf, m); err != nil {
		return err
	}
	if err := cs.put(meshKey(layoutID), buf.Bytes()); err != nil {
		return fmt.Errorf("ошибка сохранения сетки: %w", err)
	}
	return nil
}

// LoadMesh загружает сетку раскладки и восстанавливает смежность
func (cs *ChunkStore) LoadMesh(layoutID uuid.UUID) (*geometry.Mesh, error) {
	data, err := cs.get(meshKey(layoutID))
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения сетки: %w", err)
	}
	return geometry.Decode(bytes.NewReader(data))
}

// ListLayouts возвращает идентификаторы раскладок с сохранённой сеткой
func (cs *ChunkStore) ListLayouts() ([]uuid.UUID, error) {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()

	if !cs.isReady {
		return nil, ErrNotReady
	}

	var ids []uuid.UUID
	err := cs.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(meshPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			id, err := uuid.Parse(strings.TrimPrefix(key, meshPrefix))
			if err != nil {
				cs.log.Warn("Некорректный ключ сетки '%s': %v", key, err)
				continue
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка перебора раскладок: %w", err)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

// ListChunks возвращает координаты сохранённых чанков раскладки
func (cs *ChunkStore) ListChunks(layoutID uuid.UUID) ([]vec.Vec2, error) {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()

	if !cs.isReady {
		return nil, ErrNotReady
	}

	prefix := fmt.Sprintf("%s%s:", chunkPrefix, layoutID)
	var coords []vec.Vec2
	err := cs.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := strings.TrimPrefix(string(it.Item().Key()), prefix)
			var x, z int
			if _, err := fmt.Sscanf(key, "%d:%d", &x, &z); err != nil {
				cs.log.Warn("Ошибка парсинга ключа чанка '%s': %v", key, err)
				continue
			}
			coords = append(coords, vec.Vec2{X: x, Y: z})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка перебора чанков: %w", err)
	}

	sort.Slice(coords, func(i, j int) bool {
		if coords[i].Y != coords[j].Y {
			return coords[i].Y < coords[j].Y
		}
		return coords[i].X < coords[j].X
	})
	return coords, nil
}

// DeleteLayout удаляет сетку и все чанки раскладки
func (cs *ChunkStore) DeleteLayout(layoutID uuid.UUID) error {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()

	if !cs.isReady {
		return ErrNotReady
	}

	prefixes := [][]byte{
		[]byte(meshKey(layoutID)),
		[]byte(fmt.Sprintf("%s%s:", chunkPrefix, layoutID)),
	}
	if err := cs.db.DropPrefix(prefixes...); err != nil {
		return fmt.Errorf("ошибка удаления раскладки %s: %w", layoutID, err)
	}
	return nil
}

func (cs *ChunkStore) put(key string, data []byte) error {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()

	if !cs.isReady {
		return ErrNotReady
	}

	compressed := cs.enc.EncodeAll(data, nil)
	return cs.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), compressed)
	})
}

func (cs *ChunkStore) get(key string) ([]byte, error) {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()

	if !cs.isReady {
		return nil, ErrNotReady
	}

	var compressed []byte
	err := cs.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			compressed = append([]byte{}, val...)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	data, err := cs.dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка распаковки значения: %w", err)
	}
	return data, nil
}
