package convert

import (
	"math"
	"slices"
)

// Forsyth's linear-speed vertex cache optimization.
const (
	cacheSize         = 32
	cacheDecayPower   = 1.5
	lastTriangleScore = 0.75
	valenceBoostScale = 2.0
	valenceBoostPower = 0.5
)

func vertexScore(cachePos, remaining int) float32 {
	if remaining == 0 {
		return -1
	}
	var score float64
	if cachePos >= 0 {
		if cachePos < 3 {
			score = lastTriangleScore
		} else {
			s := 1 - float64(cachePos-3)/float64(cacheSize-3)
			score = math.Pow(s, cacheDecayPower)
		}
	}
	score += valenceBoostScale * math.Pow(float64(remaining), -valenceBoostPower)
	return float32(score)
}

// OptimizeVertexCache reorders triangles for a 32-entry LRU post-transform cache. The result
// holds the same triangles with the same vertex order inside each triangle. Trailing indices
// that do not form a triangle are kept at the end.
func OptimizeVertexCache(indices []uint32, vertexCount int) []uint32 {
	triCount := len(indices) / 3
	if triCount < 2 {
		return slices.Clone(indices)
	}

	// Vertex to triangle adjacency, compressed.
	remaining := make([]int, vertexCount)
	for _, v := range indices[:triCount*3] {
		remaining[v]++
	}
	offsets := make([]int, vertexCount+1)
	for v := 0; v < vertexCount; v++ {
		offsets[v+1] = offsets[v] + remaining[v]
	}
	adjacency := make([]int, triCount*3)
	fill := slices.Clone(offsets[:vertexCount])
	for t := 0; t < triCount; t++ {
		for k := 0; k < 3; k++ {
			v := indices[3*t+k]
			adjacency[fill[v]] = t
			fill[v]++
		}
	}

	cachePos := make([]int, vertexCount)
	score := make([]float32, vertexCount)
	for v := range cachePos {
		cachePos[v] = -1
		score[v] = vertexScore(-1, remaining[v])
	}
	triScore := make([]float32, triCount)
	emitted := make([]bool, triCount)
	for t := range triScore {
		triScore[t] = score[indices[3*t]] + score[indices[3*t+1]] + score[indices[3*t+2]]
	}

	// Seed with the lowest-scoring triangle: its vertices have the highest valence.
	best := -1
	var bestScore float32
	for t, s := range triScore {
		if best < 0 || s < bestScore {
			best, bestScore = t, s
		}
	}

	out := make([]uint32, 0, len(indices))
	cache := make([]uint32, 0, cacheSize+3)
	next := 0
	for n := 0; n < triCount; n++ {
		if best < 0 {
			// Cache miss: scan everything left, then fall back to the first unprocessed.
			for t := range triScore {
				if !emitted[t] && (best < 0 || triScore[t] > bestScore) {
					best, bestScore = t, triScore[t]
				}
			}
			if best < 0 {
				for emitted[next] {
					next++
				}
				best = next
			}
		}

		t := best
		emitted[t] = true
		tri := indices[3*t : 3*t+3]
		out = append(out, tri...)
		for _, v := range tri {
			remaining[v]--
		}

		// Move the triangle's vertices to the front of the LRU.
		updated := make([]uint32, 0, cacheSize+3)
		for _, v := range tri {
			if !slices.Contains(updated, v) {
				updated = append(updated, v)
			}
		}
		for _, v := range cache {
			if !slices.Contains(updated, v) {
				updated = append(updated, v)
			}
		}
		for i, v := range updated {
			if i < cacheSize {
				cachePos[v] = i
			} else {
				cachePos[v] = -1
			}
			score[v] = vertexScore(cachePos[v], remaining[v])
		}
		touched := updated
		if len(updated) > cacheSize {
			updated = updated[:cacheSize]
		}
		cache = append(cache[:0], updated...)

		best = -1
		for i, v := range touched {
			for _, at := range adjacency[offsets[v]:offsets[v+1]] {
				if emitted[at] {
					continue
				}
				s := score[indices[3*at]] + score[indices[3*at+1]] + score[indices[3*at+2]]
				triScore[at] = s
				if i < cacheSize && (best < 0 || s > bestScore) {
					best, bestScore = at, s
				}
			}
		}
	}

	return append(out, indices[triCount*3:]...)
}

// CacheMissRatio simulates a FIFO cache of the given size and returns misses per triangle.
func CacheMissRatio(indices []uint32, size int) float32 {
	triCount := len(indices) / 3
	if triCount == 0 {
		return 0
	}
	fifo := make([]uint32, 0, size)
	misses := 0
	for _, v := range indices[:triCount*3] {
		if slices.Contains(fifo, v) {
			continue
		}
		misses++
		if len(fifo) == size {
			fifo = fifo[1:]
		}
		fifo = append(fifo, v)
	}
	return float32(misses) / float32(triCount)
}
