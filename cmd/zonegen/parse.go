package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/annel0/zonegen/internal/raycast"
	"github.com/go-gl/mathgl/mgl64"
)

// parseRay разбирает луч вида "ox,oy,oz:dx,dy,dz"
func parseRay(s string) (raycast.Ray, error) {
	origin, dir, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return raycast.Ray{}, fmt.Errorf("луч %q: ожидается формат ox,oy,oz:dx,dy,dz", s)
	}
	o, err := parseVec3(origin)
	if err != nil {
		return raycast.Ray{}, fmt.Errorf("начало луча: %w", err)
	}
	d, err := parseVec3(dir)
	if err != nil {
		return raycast.Ray{}, fmt.Errorf("направление луча: %w", err)
	}
	if d.Len() == 0 {
		return raycast.Ray{}, fmt.Errorf("направление луча нулевое")
	}
	return raycast.Ray{Origin: o, Direction: d}, nil
}

func parseVec3(s string) (mgl64.Vec3, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return mgl64.Vec3{}, fmt.Errorf("%q: нужно три компоненты", s)
	}
	var v mgl64.Vec3
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return mgl64.Vec3{}, fmt.Errorf("%q: %w", p, err)
		}
		v[i] = f
	}
	return v, nil
}
