package memory

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"is": true, "are": true, "was": true, "were": true, "be": true, "been": true,
	"to": true, "of": true, "in": true, "on": true, "for": true, "with": true,
	"at": true, "by": true, "from": true, "as": true, "that": true, "this": true,
	"it": true, "its": true, "you": true, "your": true, "i": true, "we": true,
	"they": true, "he": true, "she": true, "them": true, "his": true, "her": true,
}

var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

func tokenize(text string) []string {
	lower := strings.ToLower(text)
	var out []string
	for _, tok := range tokenPattern.FindAllString(lower, -1) {
		if len(tok) < 3 || stopwords[tok] {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// Retriever computes TF-IDF over a session's stored entries and surfaces
// the most relevant ones for a query as a single synthetic system message.
type Retriever struct {
	store *Store
}

// NewRetriever wires a retriever against a memory store.
func NewRetriever(store *Store) *Retriever {
	return &Retriever{store: store}
}

// vectorize builds an L2-normalized TF-IDF vector for a document against a
// shared document-frequency table.
func vectorize(tokens []string, df map[string]int, docCount int) map[string]float64 {
	tf := make(map[string]int, len(tokens))
	for _, t := range tokens {
		tf[t]++
	}

	vec := make(map[string]float64, len(tf))
	var sumSquares float64
	for term, count := range tf {
		idf := 1.0
		if n, ok := df[term]; ok && n > 0 {
			idf = math.Log(float64(docCount)/float64(n)) + 1
		}
		weight := float64(count) * idf
		vec[term] = weight
		sumSquares += weight * weight
	}

	if sumSquares == 0 {
		return vec
	}
	norm := math.Sqrt(sumSquares)
	for term := range vec {
		vec[term] /= norm
	}
	return vec
}

func dotProduct(a, b map[string]float64) float64 {
	small, large := a, b
	if len(a) > len(b) {
		small, large = b, a
	}
	var sum float64
	for term, v := range small {
		sum += v * large[term]
	}
	return sum
}

// Retrieve scores every stored entry in a session against the query and
// returns a single system message summarizing the top matches in
// chronological order, or an empty string if the session has no history.
func (r *Retriever) Retrieve(sessionID, query string, topK int) (string, error) {
	entries, err := r.store.all(sessionID)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", nil
	}

	docTokens := make([][]string, len(entries))
	df := make(map[string]int)
	for i, e := range entries {
		docTokens[i] = tokenize(e.Content)
		seen := make(map[string]bool)
		for _, t := range docTokens[i] {
			if !seen[t] {
				df[t]++
				seen[t] = true
			}
		}
	}

	queryVec := vectorize(tokenize(query), df, len(entries))

	type scoredIdx struct {
		idx   int
		score float64
	}
	scored := make([]scoredIdx, len(entries))
	for i := range entries {
		docVec := vectorize(docTokens[i], df, len(entries))
		scored[i] = scoredIdx{idx: i, score: dotProduct(queryVec, docVec)}
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].idx < scored[j].idx })

	var b strings.Builder
	b.WriteString("Relevant conversation history:\n")
	for _, s := range scored {
		e := entries[s.idx]
		b.WriteString("- [")
		b.WriteString(string(e.Role))
		b.WriteString("] ")
		b.WriteString(e.Content)
		b.WriteString("\n")
	}
	return b.String(), nil
}
