// Package heightcache keeps generated column heightmaps so that a column
// unloaded and loaded again does not go back to the GPU. Entries are snappy
// compressed and live in a fixed size freecache arena.
package heightcache

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/coocood/freecache"
	"github.com/golang/snappy"

	"planetgen/internal/world"
)

// freecache refuses entries larger than 1/1024 of its size; this keeps an
// incompressible heightmap storable.
const minCacheBytes = 16 << 20

const (
	keyBytes    = 9
	recordBytes = 10 // int32 height, uint16 block, four uint8
	layerBytes  = world.ChunkLayer * recordBytes
)

// Stats is a snapshot of cache counters.
type Stats struct {
	Entries   int64
	Hits      int64
	Misses    int64
	Evictions int64
}

// Cache maps column positions to heightmaps. It is safe for concurrent use.
type Cache struct {
	c *freecache.Cache
}

// New returns a cache holding about size bytes of compressed data.
func New(size int) *Cache {
	if size < minCacheBytes {
		size = minCacheBytes
	}
	return &Cache{c: freecache.NewCache(size)}
}

func key(pos world.ChunkPosition2D) []byte {
	var k [keyBytes]byte
	k[0] = byte(pos.Face)
	binary.LittleEndian.PutUint32(k[1:], uint32(pos.X))
	binary.LittleEndian.PutUint32(k[5:], uint32(pos.Z))
	return k[:]
}

// Put stores a copy of data for pos.
func (c *Cache) Put(pos world.ChunkPosition2D, data *[world.ChunkLayer]world.PlanetHeightData) error {
	raw := make([]byte, layerBytes)
	for i := range data {
		encodeRecord(raw[i*recordBytes:], data[i])
	}
	if err := c.c.Set(key(pos), snappy.Encode(nil, raw), 0); err != nil {
		return fmt.Errorf("caching heightmap %v: %w", pos, err)
	}
	return nil
}

// Get copies the heightmap of pos into dst. It reports false on a miss.
func (c *Cache) Get(pos world.ChunkPosition2D, dst *[world.ChunkLayer]world.PlanetHeightData) (bool, error) {
	v, err := c.c.Get(key(pos))
	if errors.Is(err, freecache.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	raw, err := snappy.Decode(nil, v)
	if err != nil {
		return false, fmt.Errorf("decoding heightmap %v: %w", pos, err)
	}
	if len(raw) != layerBytes {
		return false, fmt.Errorf("heightmap %v has %d bytes, want %d", pos, len(raw), layerBytes)
	}
	for i := range dst {
		dst[i] = decodeRecord(raw[i*recordBytes:])
	}
	return true, nil
}

// Delete drops pos from the cache.
func (c *Cache) Delete(pos world.ChunkPosition2D) bool {
	return c.c.Del(key(pos))
}

// Stats returns the current counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Entries:   c.c.EntryCount(),
		Hits:      c.c.HitCount(),
		Misses:    c.c.MissCount(),
		Evictions: c.c.EvacuateCount(),
	}
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.c.Clear()
}

func encodeRecord(b []byte, d world.PlanetHeightData) {
	binary.LittleEndian.PutUint32(b[0:], uint32(d.Height))
	binary.LittleEndian.PutUint16(b[4:], uint16(d.SurfaceBlock))
	b[6] = d.Temperature
	b[7] = d.Humidity
	b[8] = d.Depth
	b[9] = d.Flags
}

func decodeRecord(b []byte) world.PlanetHeightData {
	return world.PlanetHeightData{
		Height:       int32(binary.LittleEndian.Uint32(b[0:])),
		SurfaceBlock: world.BlockType(binary.LittleEndian.Uint16(b[4:])),
		Temperature:  b[6],
		Humidity:     b[7],
		Depth:        b[8],
		Flags:        b[9],
	}
}
