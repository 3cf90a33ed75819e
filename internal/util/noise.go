package util

import (
	"github.com/aquilax/go-perlin"
)

const (
	noiseAlpha   = 2.0 // Сглаживание шума
	noiseBeta    = 2.0 // Частота шума
	noiseOctaves = 3   // Октавы внутри одного вызова perlin
)

// Octave параметры одной октавы: масштаб (длина волны в мировых единицах)
// и амплитуда
type Octave struct {
	Scale     float64 `yaml:"scale"`
	Amplitude float64 `yaml:"amplitude"`
}

// Noise генератор шума Перлина. После создания только читается,
// поэтому безопасен для одновременного использования из воркеров.
type Noise struct {
	p *perlin.Perlin
}

// NewNoise создаёт генератор шума с указанным сидом
func NewNoise(seed int64) *Noise {
	return &Noise{p: perlin.NewPerlin(noiseAlpha, noiseBeta, noiseOctaves, seed)}
}

// Noise2D значение шума в точке, примерно от -1 до 1
func (n *Noise) Noise2D(x, y float64) float64 {
	return n.p.Noise2D(x, y)
}

// Octaves сумма октав: Σ амплитуда × шум(x/масштаб, y/масштаб).
// Октавы с неположительным масштабом пропускаются.
func (n *Noise) Octaves(x, y float64, octaves []Octave) float64 {
	sum := 0.0
	for i, o := range octaves {
		if o.Scale <= 0 || o.Amplitude == 0 {
			continue
		}
		// сдвиг на октаву, чтобы октавы одного масштаба не совпадали
		off := float64(i) * 17.31
		sum += o.Amplitude * n.p.Noise2D(x/o.Scale+off, y/o.Scale+off)
	}
	return sum
}
