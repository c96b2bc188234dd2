package world

// BlockType is the voxel ID stored in a chunk's primary container.
type BlockType uint16

const (
	BlockTypeAir BlockType = iota
	BlockTypeStone
	BlockTypeDirt
	BlockTypeGrass
	BlockTypeSand
	BlockTypeGravel
)

// Liquid blocks carry their fill level in the low bits of the ID:
// BlockTypeWater+1 is the shallowest, BlockTypeWater+MaxLiquidLevel is full.
const (
	BlockTypeWater BlockType = 0x100
	MaxLiquidLevel           = 8
)

// Water returns the water block with the given level, or air for level 0.
func Water(level int) BlockType {
	if level <= 0 {
		return BlockTypeAir
	}
	if level > MaxLiquidLevel {
		level = MaxLiquidLevel
	}
	return BlockTypeWater + BlockType(level)
}

// IsLiquid reports whether b is a water block.
func (b BlockType) IsLiquid() bool {
	return b > BlockTypeWater && b <= BlockTypeWater+MaxLiquidLevel
}

// LiquidLevel returns the fill level of a water block, 0 otherwise.
func (b BlockType) LiquidLevel() int {
	if !b.IsLiquid() {
		return 0
	}
	return int(b - BlockTypeWater)
}

// IsPowder reports whether b falls when unsupported.
func (b BlockType) IsPowder() bool {
	return b == BlockTypeSand || b == BlockTypeGravel
}

// IsAir reports whether b is empty space.
func (b BlockType) IsAir() bool { return b == BlockTypeAir }
