// Package influence считает нормированное влияние типов зон в точке мира
// (обратно-дистанционное взвешивание) и смешивает по нему параметры зон.
package influence

import (
	"math"

	"github.com/annel0/zonegen/internal/layout"
)

// Weight вес одного типа зоны
type Weight struct {
	Type  layout.ZoneType
	Value float64
}

// maxTypes верхняя граница числа типов (ZoneType однобайтовый)
const maxTypes = 256

// Ratio разреженный вектор влияния: только положительные веса,
// отсортированные по убыванию. Сумма весов равна 1 либо вектор пуст.
type Ratio struct {
	weights []Weight
}

// NewRatio строит влияние из накопленных сырых весов, индексированных типом.
// Неположительные веса отбрасываются, остальные нормируются.
func NewRatio(raw []float64) Ratio {
	var r Ratio
	r.fill(raw)
	return r
}

// fill переиспользует буфер r без выделений, если ёмкости хватает
func (r *Ratio) fill(raw []float64) {
	r.weights = r.weights[:0]
	total := 0.0
	for _, v := range raw {
		if v > 0 {
			total += v
		}
	}
	if total <= 0 || math.IsInf(total, 0) || math.IsNaN(total) {
		return
	}
	for t, v := range raw {
		if v > 0 {
			r.weights = append(r.weights, Weight{Type: layout.ZoneType(t), Value: v / total})
		}
	}
	sortWeights(r.weights)
}

// sortWeights сортировка вставками по убыванию веса (при равенстве по типу).
// Типов немного, а sort.Slice выделяет память.
func sortWeights(ws []Weight) {
	for i := 1; i < len(ws); i++ {
		w := ws[i]
		j := i - 1
		for j >= 0 && less(w, ws[j]) {
			ws[j+1] = ws[j]
			j--
		}
		ws[j+1] = w
	}
}

func less(a, b Weight) bool {
	if a.Value != b.Value {
		return a.Value > b.Value
	}
	return a.Type < b.Type
}

// Len число ненулевых весов
func (r Ratio) Len() int { return len(r.weights) }

// IsZero true, если ни один тип не влияет
func (r Ratio) IsZero() bool { return len(r.weights) == 0 }

// Weights веса по убыванию. Слайс принадлежит Ratio, изменять нельзя.
func (r Ratio) Weights() []Weight { return r.weights }

// Get вес типа t (0, если тип отсутствует)
func (r Ratio) Get(t layout.ZoneType) float64 {
	for _, w := range r.weights {
		if w.Type == t {
			return w.Value
		}
	}
	return 0
}

// Dominant тип с наибольшим весом; ok=false для пустого вектора
func (r Ratio) Dominant() (layout.ZoneType, bool) {
	if len(r.weights) == 0 {
		return 0, false
	}
	return r.weights[0].Type, true
}

// Sum сумма весов
func (r Ratio) Sum() float64 {
	s := 0.0
	for _, w := range r.weights {
		s += w.Value
	}
	return s
}

// Clone независимая копия
func (r Ratio) Clone() Ratio {
	return Ratio{weights: append([]Weight(nil), r.weights...)}
}

// Pack оставляет веса не меньше threshold и перенормирует.
// Если порог отсекает всё, остаётся доминирующий тип.
// Повторная упаковка с тем же порогом возвращает равный вектор.
func (r Ratio) Pack(threshold float64) Ratio {
	kept := 0
	for _, w := range r.weights {
		if w.Value >= threshold {
			kept++
		}
	}
	if kept == len(r.weights) {
		return r.Clone()
	}
	if kept == 0 {
		kept = 1
	}
	// веса отсортированы по убыванию, поэтому прошедшие порог идут префиксом
	return renormalized(r.weights[:kept])
}

// PackTop оставляет не более k наибольших весов и перенормирует.
// k <= 0 означает без ограничения.
func (r Ratio) PackTop(k int) Ratio {
	if k <= 0 || k >= len(r.weights) {
		return r.Clone()
	}
	return renormalized(r.weights[:k])
}

func renormalized(ws []Weight) Ratio {
	total := 0.0
	for _, w := range ws {
		total += w.Value
	}
	out := make([]Weight, len(ws))
	for i, w := range ws {
		out[i] = Weight{Type: w.Type, Value: w.Value / total}
	}
	return Ratio{weights: out}
}

// Equal сравнивает векторы с допуском tol по каждому типу
func (r Ratio) Equal(other Ratio, tol float64) bool {
	if len(r.weights) != len(other.weights) {
		return false
	}
	for _, w := range r.weights {
		found := false
		for _, o := range other.weights {
			if o.Type == w.Type {
				found = math.Abs(o.Value-w.Value) <= tol
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Dense плотный вариант: вес для каждого типа из диапазона [0, n)
type Dense struct {
	values []float64
}

// NewDense нормирует сырые веса; неположительные становятся нулями
func NewDense(raw []float64) Dense {
	d := Dense{values: make([]float64, len(raw))}
	total := 0.0
	for _, v := range raw {
		if v > 0 {
			total += v
		}
	}
	if total <= 0 {
		return d
	}
	for i, v := range raw {
		if v > 0 {
			d.values[i] = v / total
		}
	}
	return d
}

// Len размер диапазона типов
func (d Dense) Len() int { return len(d.values) }

// Get вес типа; вне диапазона 0
func (d Dense) Get(t layout.ZoneType) float64 {
	if int(t) >= len(d.values) {
		return 0
	}
	return d.values[t]
}

// Sparse переводит плотный вектор в разреженный
func (d Dense) Sparse() Ratio {
	return NewRatio(d.values)
}

// Dense переводит разреженный вектор в плотный с диапазоном n
func (r Ratio) Dense(n int) Dense {
	d := Dense{values: make([]float64, n)}
	for _, w := range r.weights {
		if int(w.Type) < n {
			d.values[w.Type] = w.Value
		}
	}
	return d
}
