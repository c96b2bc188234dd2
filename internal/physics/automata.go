package physics

import (
	"planetgen/internal/world"
)

// Flag selects which automata rules a task applies.
type Flag uint32

const (
	FlagNone   Flag = 0
	FlagLiquid Flag = 1 << 0
	FlagPowder Flag = 1 << 1
)

func (f Flag) Has(o Flag) bool { return f&o != 0 }

func (f Flag) String() string {
	switch f {
	case FlagNone:
		return "none"
	case FlagLiquid:
		return "liquid"
	case FlagPowder:
		return "powder"
	case FlagLiquid | FlagPowder:
		return "liquid|powder"
	}
	return "unknown"
}

type rule uint8

const (
	ruleLiquid rule = iota
	rulePowder
)

// rulesFor returns the rules selected by flags in application order.
func rulesFor(flags Flag) []rule {
	var rules []rule
	if flags.Has(FlagLiquid) {
		rules = append(rules, ruleLiquid)
	}
	if flags.Has(FlagPowder) {
		rules = append(rules, rulePowder)
	}
	return rules
}

var horizontal = [4][3]int{{-1, 0, 0}, {1, 0, 0}, {0, 0, -1}, {0, 0, 1}}

// simulator runs one tick over the centre chunk of a locked neighbourhood.
// moved marks centre voxels that already received material this tick.
type simulator struct {
	n       *world.Neighborhood
	moved   []uint64
	flow    int
	changed bool
}

func (s *simulator) apply(r rule) {
	switch r {
	case ruleLiquid:
		s.stepLiquid()
	case rulePowder:
		s.stepPowder()
	}
}

func (s *simulator) isMoved(x, y, z int) bool {
	if !world.InBounds(x, y, z) {
		return false
	}
	i := world.Index(x, y, z)
	return s.moved[i>>6]&(1<<(i&63)) != 0
}

func (s *simulator) markMoved(x, y, z int) {
	if !world.InBounds(x, y, z) {
		return
	}
	i := world.Index(x, y, z)
	s.moved[i>>6] |= 1 << (i & 63)
}

func (s *simulator) set(x, y, z int, b world.BlockType) {
	if s.n.SetBlock(x, y, z, b) != nil {
		s.changed = true
	}
}

// update applies fn to the voxel at (x, y, z) in a single locked step and
// reports whether fn accepted it.
func (s *simulator) update(x, y, z int, fn func(world.BlockType) (world.BlockType, bool)) bool {
	accepted := false
	if s.n.Update(x, y, z, func(b world.BlockType) (world.BlockType, bool) {
		nb, ok := fn(b)
		accepted = ok
		return nb, ok
	}) != nil {
		s.changed = true
	}
	return accepted
}

func canReceive(b world.BlockType) bool { return b.IsAir() || b.IsLiquid() }

// stepLiquid moves water down first, then sideways toward lower neighbours,
// moving at most s.flow units out of any one voxel.
func (s *simulator) stepLiquid() {
	c := s.n.Center
	for y := 0; y < world.ChunkWidth; y++ {
		for z := 0; z < world.ChunkWidth; z++ {
			for x := 0; x < world.ChunkWidth; x++ {
				level := c.GetBlock(x, y, z).LiquidLevel()
				if level == 0 || s.isMoved(x, y, z) {
					continue
				}
				budget := s.flow

				var amount int
				if s.update(x, y-1, z, func(below world.BlockType) (world.BlockType, bool) {
					if !canReceive(below) {
						return below, false
					}
					bl := below.LiquidLevel()
					amount = min(level, world.MaxLiquidLevel-bl, budget)
					return world.Water(bl + amount), amount > 0
				}) {
					s.markMoved(x, y-1, z)
					level -= amount
					budget -= amount
				}

				for _, h := range horizontal {
					if level <= 1 || budget <= 0 {
						break
					}
					nx, nz := x+h[0], z+h[2]
					if s.update(nx, y, nz, func(nb world.BlockType) (world.BlockType, bool) {
						if !canReceive(nb) || nb.LiquidLevel() >= level-1 {
							return nb, false
						}
						return world.Water(nb.LiquidLevel() + 1), true
					}) {
						s.markMoved(nx, y, nz)
						level--
						budget--
					}
				}

				if budget != s.flow {
					s.set(x, y, z, world.Water(level))
				}
			}
		}
	}
}

// stepPowder drops unsupported powder one voxel, displacing air or water.
func (s *simulator) stepPowder() {
	c := s.n.Center
	for y := 0; y < world.ChunkWidth; y++ {
		for z := 0; z < world.ChunkWidth; z++ {
			for x := 0; x < world.ChunkWidth; x++ {
				b := c.GetBlock(x, y, z)
				if !b.IsPowder() || s.isMoved(x, y, z) {
					continue
				}
				var displaced world.BlockType
				if !s.update(x, y-1, z, func(below world.BlockType) (world.BlockType, bool) {
					displaced = below
					return b, canReceive(below)
				}) {
					continue
				}
				s.set(x, y, z, displaced)
				s.markMoved(x, y-1, z)
			}
		}
	}
}
