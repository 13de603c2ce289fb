package domain

// Passage is a unit of retrievable text plus metadata, addressed by a stable ID.
type Passage struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Document is the JSON object a Linker stores under a passage ID.
type Document map[string]any

// ToDocument converts a passage into its stored document form.
func (p Passage) ToDocument() Document {
	doc := Document{
		"id":      p.ID,
		"content": p.Content,
	}
	if len(p.Metadata) > 0 {
		doc["metadata"] = p.Metadata
	}
	return doc
}

// PassageFromDocument rebuilds a passage from a stored document.
// The id argument wins over any "id" field inside the document.
func PassageFromDocument(id string, doc Document) Passage {
	p := Passage{ID: id}
	if content, ok := doc["content"].(string); ok {
		p.Content = content
	}
	if md, ok := doc["metadata"].(map[string]any); ok {
		p.Metadata = md
	}
	return p
}

// RetrievalResult pairs identifiers positionally with their scores.
// Ordered by descending score; len(IDs) == len(Scores) always holds.
type RetrievalResult struct {
	IDs    []string
	Scores []float64
}

// Len returns the number of results.
func (r RetrievalResult) Len() int {
	return len(r.IDs)
}

// Truncate keeps at most k results.
func (r RetrievalResult) Truncate(k int) RetrievalResult {
	if k < 0 || len(r.IDs) <= k {
		return r
	}
	return RetrievalResult{IDs: r.IDs[:k], Scores: r.Scores[:k]}
}

type ScoredPassage struct {
	Passage Passage
	Score   float64
}

// DiagnosticKind classifies a non-fatal miss reported by a Linker.
type DiagnosticKind string

const (
	// DiagnosticMissingID means the key does not exist in the store.
	DiagnosticMissingID DiagnosticKind = "missing_id"
	// DiagnosticMissingData means the key exists but holds no document.
	DiagnosticMissingData DiagnosticKind = "missing_data"
)

// Diagnostic reports one unresolved position of a batch lookup.
type Diagnostic struct {
	ID    string         `json:"id"`
	Index int            `json:"index"`
	Kind  DiagnosticKind `json:"kind"`
}

// LinkResult is the outcome of a batch Linker lookup. Documents is positional
// with the requested IDs; a nil entry marks a miss described in Diagnostics.
type LinkResult struct {
	Documents   []Document
	Diagnostics []Diagnostic
}

// Missing reports whether any requested ID could not be resolved.
func (r LinkResult) Missing() bool {
	return len(r.Diagnostics) > 0
}

// FetchResult is the positional resolution of IDs into passages.
// A nil entry marks an ID with no stored content.
type FetchResult struct {
	Passages    []*Passage
	Diagnostics []Diagnostic
}

// Found returns the resolved passages in order, skipping misses.
func (r FetchResult) Found() []Passage {
	out := make([]Passage, 0, len(r.Passages))
	for _, p := range r.Passages {
		if p != nil {
			out = append(out, *p)
		}
	}
	return out
}

// Posting records one passage containing a term. Length and Seq are copied
// from the passage so scoring needs one read per term.
type Posting struct {
	PassageID string `json:"id"`
	TF        int    `json:"tf"`
	Length    int    `json:"len"`
	Seq       uint64 `json:"seq"`
}

// PassageTerms is the lexical form of one passage, ready to index.
type PassageTerms struct {
	ID        string
	TermFreqs map[string]int
	Length    int
}

type Stats struct {
	TotalPassages int
	TotalTokens   int
	AvgPassageLen float64
}
