package diagnostics

// ClosestName returns the candidate with the smallest Levenshtein distance
// to name, used for ImportNameNotFound/ImportModuleNotFound suggestions
// (§4.E "optional suggestions (Levenshtein closest-name)"). Returns "" if
// candidates is empty or every candidate is farther than maxDistance.
func ClosestName(name string, candidates []string, maxDistance int) string {
	best := ""
	bestDist := maxDistance + 1

	for _, c := range candidates {
		d := levenshtein(name, c)
		if d < bestDist {
			bestDist = d
			best = c
		}
	}

	if bestDist > maxDistance {
		return ""
	}

	return best
}

// levenshtein computes the edit distance between a and b using the
// standard single-row dynamic programming table.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)

	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i

		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}

			curr[j] = minOf3(
				curr[j-1]+1,
				prev[j]+1,
				prev[j-1]+cost,
			)
		}

		prev, curr = curr, prev
	}

	return prev[len(rb)]
}

func minOf3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
