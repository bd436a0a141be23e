package testutil

import (
	"math/rand"
)

// ChunkGenerator splits payloads into chunks of random sizes.
type ChunkGenerator struct {
	rand *rand.Rand
}

// NewChunkGenerator creates a generator with a seeded random source.
func NewChunkGenerator(seed int64) *ChunkGenerator {
	return &ChunkGenerator{
		rand: rand.New(rand.NewSource(seed)),
	}
}

// Data returns size random bytes.
func (g *ChunkGenerator) Data(size int) []byte {
	data := make([]byte, size)
	g.rand.Read(data)
	return data
}

// Split cuts data into consecutive chunks of 1 to maxChunk bytes.
func (g *ChunkGenerator) Split(data []byte, maxChunk int) [][]byte {
	if maxChunk <= 0 {
		maxChunk = 1
	}
	var chunks [][]byte
	for len(data) > 0 {
		n := g.rand.Intn(maxChunk) + 1
		if n > len(data) {
			n = len(data)
		}
		chunks = append(chunks, data[:n])
		data = data[n:]
	}
	return chunks
}

// Intn exposes the generator's random source for test parameters.
func (g *ChunkGenerator) Intn(n int) int {
	return g.rand.Intn(n)
}
