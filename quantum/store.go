package quantum

import (
	"maps"
	"math"
	"math/cmplx"
)

// Store is the sparse amplitude map of the root register. Keys are root
// basis states; bit i of a key is root qubit i. Entries whose magnitude falls
// below the prune epsilon are removed, so an absent key means amplitude 0.
type Store struct {
	amps  map[uint64]complex128
	prune float64
	width int
}

// NewStore returns a zero-width store holding the single state |⟩ = 1.
func NewStore(prune float64) *Store {
	return &Store{
		amps:  map[uint64]complex128{0: 1},
		prune: prune,
	}
}

// Width is the number of root qubits.
func (s *Store) Width() int { return s.width }

// Len is the number of stored (non-negligible) amplitudes.
func (s *Store) Len() int { return len(s.amps) }

// Amplitude returns the amplitude of a root basis state.
func (s *Store) Amplitude(state uint64) complex128 { return s.amps[state] }

// Snapshot returns a copy of the amplitude map.
func (s *Store) Snapshot() map[uint64]complex128 { return maps.Clone(s.amps) }

// Norm returns Σ|amp|².
func (s *Store) Norm() float64 {
	n := 0.0
	for _, a := range s.amps {
		n += abs2(a)
	}
	return n
}

func (s *Store) negligible(a complex128) bool {
	return cmplx.Abs(a) < s.prune
}

func (s *Store) put(m map[uint64]complex128, k uint64, a complex128) {
	if s.negligible(a) {
		delete(m, k)
		return
	}
	m[k] = a
}

// Apply1 multiplies every pair of states that differ only in target by m.
func (s *Store) Apply1(target int, m Matrix) {
	s.ApplyControlled(0, target, m)
}

// ApplyControlled is Apply1 restricted to states where every bit of
// controlMask is set.
func (s *Store) ApplyControlled(controlMask uint64, target int, m Matrix) {
	bit := uint64(1) << uint(target)

	if m.IsDiagonal() {
		for k, a := range s.amps {
			if k&controlMask != controlMask {
				continue
			}
			if k&bit == 0 {
				s.put(s.amps, k, m[0][0]*a)
			} else {
				s.put(s.amps, k, m[1][1]*a)
			}
		}
		return
	}

	out := make(map[uint64]complex128, len(s.amps))
	for k, a := range s.amps {
		if k&controlMask != controlMask {
			out[k] = a
			continue
		}
		lo, hi := k&^bit, k|bit
		if k == hi {
			if _, ok := s.amps[lo]; ok {
				// handled from the lo side
				continue
			}
		}
		a0, a1 := s.amps[lo], s.amps[hi]
		s.put(out, lo, m[0][0]*a0+m[0][1]*a1)
		s.put(out, hi, m[1][0]*a0+m[1][1]*a1)
	}
	s.amps = out
}

// Probabilities traces out every bit outside [offset, offset+width) and
// returns the distribution of the remaining sub-state.
func (s *Store) Probabilities(offset, width int) map[uint64]float64 {
	mask := widthMask(width)
	probs := make(map[uint64]float64)
	for k, a := range s.amps {
		probs[(k>>uint(offset))&mask] += abs2(a)
	}
	return probs
}

// factor splits the store as ψ(view) ⊗ φ(rest) when that is possible within
// tol. psi is keyed by the sub-state, phi by the root state with the view
// bits cleared.
func (s *Store) factor(offset, width int, tol float64) (psi, phi map[uint64]complex128, ok bool) {
	mask := widthMask(width) << uint(offset)

	groups := make(map[uint64]map[uint64]complex128)
	weights := make(map[uint64]float64)
	for k, a := range s.amps {
		rest := k &^ mask
		g, exists := groups[rest]
		if !exists {
			g = make(map[uint64]complex128)
			groups[rest] = g
		}
		g[(k&mask)>>uint(offset)] = a
		weights[rest] += abs2(a)
	}

	var ref uint64
	best := -1.0
	for rest, w := range weights {
		if w > best || (w == best && rest < ref) {
			ref, best = rest, w
		}
	}
	if best <= 0 {
		return nil, nil, false
	}

	norm := complex(math.Sqrt(best), 0)
	psi = make(map[uint64]complex128, len(groups[ref]))
	for v, a := range groups[ref] {
		psi[v] = a / norm
	}

	phi = make(map[uint64]complex128, len(groups))
	for rest, g := range groups {
		var c complex128
		for v, a := range g {
			c += cmplx.Conj(psi[v]) * a
		}
		for v, a := range g {
			if cmplx.Abs(a-c*psi[v]) > tol {
				return nil, nil, false
			}
		}
		for v, p := range psi {
			if _, present := g[v]; !present && cmplx.Abs(c*p) > tol {
				return nil, nil, false
			}
		}
		phi[rest] = c
	}
	return psi, phi, true
}

// Factor returns the amplitudes of the view when it is a product factor of
// the store.
func (s *Store) Factor(offset, width int, tol float64) (map[uint64]complex128, bool) {
	psi, _, ok := s.factor(offset, width, tol)
	return psi, ok
}

// Collapse keeps only states whose view bits equal value and renormalizes.
// It returns the probability the kept states had before the collapse.
func (s *Store) Collapse(offset, width int, value uint64) float64 {
	mask := widthMask(width)
	p := 0.0
	for k, a := range s.amps {
		if (k>>uint(offset))&mask == value {
			p += abs2(a)
		}
	}
	if p == 0 {
		return 0
	}
	scale := complex(1/math.Sqrt(p), 0)
	for k, a := range s.amps {
		if (k>>uint(offset))&mask != value {
			delete(s.amps, k)
			continue
		}
		s.amps[k] = a * scale
	}
	return p
}

// Extend tensors a width-qubit distribution onto the top of the store and
// returns the offset it landed at. dist must already be normalized.
func (s *Store) Extend(dist map[uint64]complex128, width int) int {
	offset := s.width
	out := make(map[uint64]complex128, len(s.amps)*len(dist))
	for k, a := range s.amps {
		for v, b := range dist {
			s.put(out, k|v<<uint(offset), a*b)
		}
	}
	s.amps = out
	s.width += width
	return offset
}

// Remove drops the bit range [offset, offset+width) from every key when the
// range is a product factor. Bits above the range shift down by width.
func (s *Store) Remove(offset, width int, tol float64) bool {
	_, phi, ok := s.factor(offset, width, tol)
	if !ok {
		return false
	}
	low := widthMask(offset)
	out := make(map[uint64]complex128, len(phi))
	for rest, c := range phi {
		k := rest&low | (rest>>uint(offset+width))<<uint(offset)
		s.put(out, k, c)
	}
	s.amps = out
	s.width -= width
	return true
}

func widthMask(width int) uint64 {
	if width >= 64 {
		return math.MaxUint64
	}
	return uint64(1)<<uint(width) - 1
}

func abs2(a complex128) float64 {
	return real(a)*real(a) + imag(a)*imag(a)
}
