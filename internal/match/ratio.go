package match

// Ratio returns a similarity measure for two strings in [0,1]: twice the
// total length of all matching blocks divided by the combined length.
// Matching blocks are found by repeatedly taking the longest common
// substring and recursing on the pieces to its left and right, so the
// measure rewards long contiguous runs over scattered character overlap.
func Ratio(a, b string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	matched := matchingTotal(ra, rb, 0, len(ra), 0, len(rb))
	return 2 * float64(matched) / float64(len(ra)+len(rb))
}

// matchingTotal sums matching-block lengths within a[alo:ahi] and b[blo:bhi].
func matchingTotal(a, b []rune, alo, ahi, blo, bhi int) int {
	i, j, k := longestMatch(a, b, alo, ahi, blo, bhi)
	if k == 0 {
		return 0
	}
	total := k
	total += matchingTotal(a, b, alo, i, blo, j)
	total += matchingTotal(a, b, i+k, ahi, j+k, bhi)
	return total
}

// longestMatch finds the longest block a[i:i+k] == b[j:j+k] inside the
// given windows. Ties go to the earliest block in a, then in b.
func longestMatch(a, b []rune, alo, ahi, blo, bhi int) (besti, bestj, bestk int) {
	// Positions of each rune in the b window.
	b2j := make(map[rune][]int)
	for j := blo; j < bhi; j++ {
		b2j[b[j]] = append(b2j[b[j]], j)
	}

	besti, bestj = alo, blo
	// j2len[j] is the length of the longest match ending at a[i], b[j].
	j2len := make(map[int]int)
	for i := alo; i < ahi; i++ {
		next := make(map[int]int)
		for _, j := range b2j[a[i]] {
			k := j2len[j-1] + 1
			next[j] = k
			if k > bestk {
				besti, bestj, bestk = i-k+1, j-k+1, k
			}
		}
		j2len = next
	}
	return besti, bestj, bestk
}
