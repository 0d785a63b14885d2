package service

import (
	"strings"
)

// Chunking safety caps: input is truncated above maxChunkInput before
// slicing, and the number of produced segments never exceeds maxSegments.
const (
	maxChunkInput = 1_000_000
	maxSegments   = 1000

	// evenSliceLimit bounds the target counts served by direct even-width
	// slicing, where the count guarantee takes priority over boundary
	// placement.
	evenSliceLimit = 10

	// boundaryFloor is the fraction of the segment budget below which a
	// backward boundary candidate is rejected in favor of the naive cut.
	boundaryFloor = 0.7
)

// ChunkOptions controls how Chunk slices text.
type ChunkOptions struct {
	ChunkSize    int // segment budget in characters; 0 means the default
	ChunkOverlap int // characters shared between adjacent segments
	TargetCount  int // >1 requests a fixed number of segments
}

// Chunk splits text into an ordered sequence of segments. It is a pure
// function of its inputs.
//
// With TargetCount > 1 the segment length is derived so the text divides
// into exactly that many pieces (given the overlap); small target counts
// are served by even-width slicing. Otherwise text within the budget is
// returned whole, and longer text is cut at the nearest paragraph,
// sentence, or space boundary found backward from the naive end.
func Chunk(text string, opts ChunkOptions) []string {
	runes := []rune(text)
	if len(runes) > maxChunkInput {
		runes = runes[:maxChunkInput]
	}
	if len(runes) == 0 {
		return nil
	}

	overlap := opts.ChunkOverlap
	if overlap < 0 {
		overlap = 0
	}

	if opts.TargetCount > 1 {
		size := derivedSize(len(runes), opts.TargetCount, overlap)
		if opts.TargetCount <= evenSliceLimit {
			return evenSlices(runes, opts.TargetCount, size, overlap)
		}
		return boundarySlices(runes, size, overlap)
	}

	size := opts.ChunkSize
	if size <= 0 {
		size = 8000
	}
	if len(runes) <= size {
		return []string{string(runes)}
	}
	return boundarySlices(runes, size, overlap)
}

// derivedSize computes the per-segment length that divides n characters
// into targetCount segments sharing overlap characters each.
func derivedSize(n, targetCount, overlap int) int {
	usable := n - (targetCount-1)*overlap
	if usable < targetCount {
		usable = targetCount
	}
	size := (usable + targetCount - 1) / targetCount
	if size < 1 {
		size = 1
	}
	return size
}

// evenSlices produces exactly n segments by advancing size−overlap
// characters per step, stretching the final segment to the end of the
// text. The count guarantee is structural: the loop runs n times.
func evenSlices(runes []rune, n, size, overlap int) []string {
	if n > maxSegments {
		n = maxSegments
	}
	step := size - overlap
	if step < 1 {
		step = 1
	}

	out := make([]string, 0, n)
	start := 0
	for i := 0; i < n; i++ {
		end := start + size
		if i == n-1 || end > len(runes) {
			end = len(runes)
		}
		if start >= end {
			// Text too short for the remaining segments; repeat the tail
			// character so the caller still receives n segments.
			start = len(runes) - 1
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
		start += step
	}
	return out
}

// boundarySlices walks the text forward, cutting each segment at the
// best boundary within the final 30% of its budget.
func boundarySlices(runes []rune, size, overlap int) []string {
	var out []string
	start := 0
	for start < len(runes) && len(out) < maxSegments {
		end := start + size
		if end >= len(runes) {
			out = append(out, string(runes[start:]))
			break
		}

		if cut := findBoundary(runes, start, end, size); cut > start {
			end = cut
		}
		out = append(out, string(runes[start:end]))

		next := end - overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return out
}

// findBoundary searches backward from the naive end for the nearest
// paragraph break, sentence end, or space, rejecting candidates that
// fall before 70% of the budget. Returns the cut position (exclusive),
// or 0 when no acceptable boundary exists.
func findBoundary(runes []rune, start, end, size int) int {
	floor := start + int(float64(size)*boundaryFloor)
	if floor < start {
		floor = start
	}
	window := string(runes[start:end])

	// Paragraph break: blank line.
	if idx := strings.LastIndex(window, "\n\n"); idx >= 0 {
		cut := start + len([]rune(window[:idx])) + 2
		if cut >= floor {
			return cut
		}
	}

	// Sentence terminator followed by a space.
	best := -1
	for _, term := range []string{". ", "! ", "? ", "。", "！", "？"} {
		if idx := strings.LastIndex(window, term); idx >= 0 {
			cut := start + len([]rune(window[:idx])) + len([]rune(term))
			if cut > best {
				best = cut
			}
		}
	}
	if best >= floor {
		return best
	}

	// Plain space.
	if idx := strings.LastIndexByte(window, ' '); idx >= 0 {
		cut := start + len([]rune(window[:idx])) + 1
		if cut >= floor {
			return cut
		}
	}

	return 0
}
