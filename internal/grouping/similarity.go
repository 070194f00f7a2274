package grouping

// Ratio computes the character-sequence overlap between two strings as a
// value in [0, 1], using Ratcliff/Obershelp matching: twice the total length
// of the common matching blocks divided by the combined length.
func Ratio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1.0
	}
	matched := matchingBlocks(ra, rb)
	return 2.0 * float64(matched) / float64(total)
}

// matchingBlocks returns the total length of common blocks: the longest
// common substring, plus recursively the blocks to its left and right.
func matchingBlocks(a, b []rune) int {
	ai, bi, size := longestCommonSubstring(a, b)
	if size == 0 {
		return 0
	}
	left := matchingBlocks(a[:ai], b[:bi])
	right := matchingBlocks(a[ai+size:], b[bi+size:])
	return left + size + right
}

// longestCommonSubstring finds the longest run of identical runes, returning
// its start offsets in a and b and its length.
func longestCommonSubstring(a, b []rune) (ai, bi, size int) {
	if len(a) == 0 || len(b) == 0 {
		return 0, 0, 0
	}

	// prev[j] holds the run length ending at a[i-1], b[j-1].
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
				if curr[j] > size {
					size = curr[j]
					ai = i - size
					bi = j - size
				}
			} else {
				curr[j] = 0
			}
		}
		prev, curr = curr, prev
	}
	return ai, bi, size
}
