package influence

import (
	"errors"
	"fmt"
	"math"

	"github.com/annel0/zonegen/internal/layout"
	"github.com/annel0/zonegen/internal/vec"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	// DefaultPower показатель степени IDW по умолчанию
	DefaultPower = 2.0
	// DefaultEpsilon сдвиг квадрата расстояния, убирает деление на ноль в центре зоны
	DefaultEpsilon = 1e-3
)

var (
	ErrLengthMismatch = errors.New("influence: число центров и типов не совпадает")
	ErrInvalidPower   = errors.New("influence: показатель степени должен быть положительным")
	ErrInvalidEpsilon = errors.New("influence: эпсилон должен быть положительным")
	ErrTypeOutOfRange = errors.New("influence: тип зоны вне диапазона")
)

// Field поле влияния зон. Содержит рабочий буфер, поэтому экземпляр
// нельзя использовать из нескольких горутин: каждому воркеру свой Clone.
type Field struct {
	centers  []vec.Vec2Float
	types    []layout.ZoneType
	numTypes int
	power    float64
	eps      float64

	acc []float64
}

// NewField создаёт поле по центрам зон и их типам. numTypes задаёт
// диапазон типов [0, numTypes).
func NewField(centers []vec.Vec2Float, types []layout.ZoneType, numTypes int, power, eps float64) (*Field, error) {
	if len(centers) != len(types) {
		return nil, fmt.Errorf("%w: %d центров, %d типов", ErrLengthMismatch, len(centers), len(types))
	}
	if !(power > 0) {
		return nil, ErrInvalidPower
	}
	if !(eps > 0) {
		return nil, ErrInvalidEpsilon
	}
	if numTypes <= 0 || numTypes > maxTypes {
		return nil, fmt.Errorf("%w: диапазон %d", ErrTypeOutOfRange, numTypes)
	}
	for _, t := range types {
		if int(t) >= numTypes {
			return nil, fmt.Errorf("%w: %d >= %d", ErrTypeOutOfRange, t, numTypes)
		}
	}

	return &Field{
		centers:  append([]vec.Vec2Float(nil), centers...),
		types:    append([]layout.ZoneType(nil), types...),
		numTypes: numTypes,
		power:    power,
		eps:      eps,
		acc:      make([]float64, numTypes),
	}, nil
}

// FromLayout строит поле по зонам раскладки
func FromLayout(l *layout.Layout, numTypes int, power, eps float64) (*Field, error) {
	centers, types := l.ZoneTypes()
	return NewField(centers, types, numTypes, power, eps)
}

// Clone копия с собственным рабочим буфером; центры общие (только чтение)
func (f *Field) Clone() *Field {
	c := *f
	c.acc = make([]float64, f.numTypes)
	return &c
}

// NumTypes диапазон типов поля
func (f *Field) NumTypes() int { return f.numTypes }

// At возвращает влияние в точке
func (f *Field) At(p vec.Vec2Float) Ratio {
	var r Ratio
	f.AtInto(p, &r)
	return r
}

// AtInto записывает влияние в r, переиспользуя его буфер.
// После прогрева не выделяет память.
func (f *Field) AtInto(p vec.Vec2Float, r *Ratio) {
	for i := range f.acc {
		f.acc[i] = 0
	}
	for i, c := range f.centers {
		f.acc[f.types[i]] += f.weight(c.DistanceSqTo(p))
	}
	r.fill(f.acc)
}

func (f *Field) weight(d2 float64) float64 {
	x := d2 + f.eps
	if f.power == 2 {
		return 1 / (x * x)
	}
	return math.Pow(x, -f.power)
}

// Bilerp билинейно интерполирует четыре угловых влияния прямоугольной
// ячейки; tx, tz в [0,1] отсчитываются от угла r00.
func Bilerp(r00, r10, r01, r11 Ratio, tx, tz float64) Ratio {
	var r Ratio
	BilerpInto(&r, r00, r10, r01, r11, tx, tz)
	return r
}

// BilerpInto как Bilerp, но пишет результат в dst, переиспользуя его буфер.
// После прогрева не выделяет память.
func BilerpInto(dst *Ratio, r00, r10, r01, r11 Ratio, tx, tz float64) {
	var acc [maxTypes]float64
	corners := [4]*Ratio{&r00, &r10, &r01, &r11}
	ks := [4]float64{(1 - tx) * (1 - tz), tx * (1 - tz), (1 - tx) * tz, tx * tz}

	hi := 0
	for i, r := range corners {
		k := ks[i]
		if k == 0 {
			continue
		}
		for _, w := range r.weights {
			acc[w.Type] += w.Value * k
			if int(w.Type) >= hi {
				hi = int(w.Type) + 1
			}
		}
	}
	dst.fill(acc[:hi])
}

// Blend смешивает числовой параметр зон: Σ param(type) × вес
func Blend(r Ratio, param func(layout.ZoneType) float64) float64 {
	v := 0.0
	for _, w := range r.weights {
		v += param(w.Type) * w.Value
	}
	return v
}

// BlendColor смешивает цвета зон покомпонентно
func BlendColor(r Ratio, color func(layout.ZoneType) mgl64.Vec3) mgl64.Vec3 {
	var out mgl64.Vec3
	for _, w := range r.weights {
		out = out.Add(color(w.Type).Mul(w.Value))
	}
	return out
}
