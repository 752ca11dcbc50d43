package textindex

import "math"

// BM25 holds Okapi BM25 parameters.
type BM25 struct {
	// K1 controls term frequency saturation.
	K1 float64

	// B controls document length normalisation.
	B float64
}

// DefaultBM25 returns the usual parameters.
func DefaultBM25() BM25 {
	return BM25{K1: 1.2, B: 0.75}
}

// Stats are corpus statistics over the documents being ranked.
type Stats struct {
	// N is the number of documents.
	N int

	// AvgDocLen is the mean document length in tokens.
	AvgDocLen float64

	// DocFreq counts documents containing each query term.
	DocFreq map[string]int
}

// IDF returns a non-negative inverse document frequency.
func (b BM25) IDF(n, df int) float64 {
	return math.Log(1 + (float64(n)-float64(df)+0.5)/(float64(df)+0.5))
}

// TermScore is the contribution of one term with frequency tf.
func (b BM25) TermScore(idf float64, tf, docLen int, avgDocLen float64) float64 {
	if tf <= 0 {
		return 0
	}
	norm := 1.0
	if avgDocLen > 0 {
		norm = 1 - b.B + b.B*float64(docLen)/avgDocLen
	}
	f := float64(tf)
	return idf * f * (b.K1 + 1) / (f + b.K1*norm)
}

// Score ranks one document against unique query terms.
func (b BM25) Score(queryTerms []string, tf map[string]int, docLen int, stats Stats) float64 {
	var score float64
	for _, term := range queryTerms {
		df := stats.DocFreq[term]
		if df == 0 {
			continue
		}
		score += b.TermScore(b.IDF(stats.N, df), tf[term], docLen, stats.AvgDocLen)
	}
	return score
}
