package dedupe

import "math"

// TitleSimilarity returns a normalized similarity in [0,1] between two
// listing titles. Titles are normalized first so punctuation and casing
// differences don't depress the score.
func TitleSimilarity(a, b string) float64 {
	return levenshteinSimilarity(normalizeText(a), normalizeText(b))
}

func levenshteinSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	dist := levenshteinDistance(a, b)
	denom := max(len([]rune(a)), len([]rune(b)))
	return math.Max(0, 1-float64(dist)/float64(denom))
}

func levenshteinDistance(a, b string) int {
	ar := []rune(a)
	br := []rune(b)
	if len(ar) < len(br) {
		ar, br = br, ar
	}
	if len(br) == 0 {
		return len(ar)
	}

	prev := make([]int, len(br)+1)
	for j := range prev {
		prev[j] = j
	}
	curr := make([]int, len(br)+1)

	for i, ca := range ar {
		curr[0] = i + 1
		for j, cb := range br {
			ins := curr[j] + 1
			del := prev[j+1] + 1
			sub := prev[j]
			if ca != cb {
				sub++
			}
			curr[j+1] = min(ins, del, sub)
		}
		prev, curr = curr, prev
	}

	return prev[len(br)]
}
