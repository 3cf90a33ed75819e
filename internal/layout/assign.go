package layout

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/annel0/zonegen/internal/geometry"
)

// ZoneType тип зоны (биом); индекс в каталоге типов
type ZoneType uint8

// AssignKind вариант стратегии назначения типов
type AssignKind uint8

const (
	// AssignRandom независимый случайный тип для каждой ячейки
	AssignRandom AssignKind = iota
	// AssignClustered связные группы ячеек одного типа
	AssignClustered
)

// String возвращает имя стратегии
func (k AssignKind) String() string {
	switch k {
	case AssignRandom:
		return "random"
	case AssignClustered:
		return "clustered"
	default:
		return "unknown"
	}
}

// ParseAssignKind разбирает имя стратегии
func ParseAssignKind(s string) (AssignKind, bool) {
	switch s {
	case "", "random":
		return AssignRandom, true
	case "clustered":
		return AssignClustered, true
	default:
		return AssignRandom, false
	}
}

// Strategy параметры назначения типов. Для AssignClustered размер группы
// выбирается случайно из [MinGroup, MaxGroup].
type Strategy struct {
	Kind     AssignKind
	MinGroup int
	MaxGroup int
}

// DefaultClustered кластерная стратегия с группами по 2-4 ячейки
func DefaultClustered() Strategy {
	return Strategy{Kind: AssignClustered, MinGroup: 2, MaxGroup: 4}
}

var ErrNoZoneTypes = errors.New("layout: пустой список типов зон")

// AssignTypes назначает тип каждой ячейке сетки согласно стратегии.
// Результат индексируется идентификатором ячейки.
func AssignTypes(mesh *geometry.Mesh, types []ZoneType, s Strategy, rng *rand.Rand) ([]ZoneType, error) {
	if len(types) == 0 {
		return nil, ErrNoZoneTypes
	}
	if mesh == nil || len(mesh.Cells) == 0 {
		return nil, fmt.Errorf("layout: %w", geometry.ErrNoCellsGenerated)
	}

	switch s.Kind {
	case AssignRandom:
		out := make([]ZoneType, len(mesh.Cells))
		for i := range out {
			out[i] = types[rng.Intn(len(types))]
		}
		return out, nil
	case AssignClustered:
		return assignClustered(mesh, types, s, rng)
	default:
		return nil, fmt.Errorf("layout: неизвестная стратегия %d", s.Kind)
	}
}

func assignClustered(mesh *geometry.Mesh, types []ZoneType, s Strategy, rng *rand.Rand) ([]ZoneType, error) {
	minG, maxG := s.MinGroup, s.MaxGroup
	if minG < 1 {
		minG = 1
	}
	if maxG < minG {
		maxG = minG
	}

	n := len(mesh.Cells)
	out := make([]ZoneType, n)
	assigned := make([]bool, n)

	for _, start := range rng.Perm(n) {
		if assigned[start] {
			continue
		}
		size := minG + rng.Intn(maxG-minG+1)
		t := types[rng.Intn(len(types))]

		// Случайный обход в глубину по неназначенным соседям
		stack := []geometry.CellID{geometry.CellID(start)}
		grown := 0
		for len(stack) > 0 && grown < size {
			id := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if assigned[id] {
				continue
			}
			assigned[id] = true
			out[id] = t
			grown++

			neighbors := append([]geometry.CellID(nil), mesh.Cells[id].Neighbors...)
			rng.Shuffle(len(neighbors), func(i, j int) { neighbors[i], neighbors[j] = neighbors[j], neighbors[i] })
			for _, nb := range neighbors {
				if !assigned[nb] {
					stack = append(stack, nb)
				}
			}
		}
	}
	return out, nil
}
