package retrieval

import (
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"

	"github.com/georag/georag/internal/text"
)

// lexicalShortlistThreshold is the candidate count above which the lexical
// phase shortlists with an in-memory bleve index before exact-verifying,
// rather than scanning every chunk's content directly (DESIGN.md: bleve
// shortlist, exact verdict from text.MatchesKeywordFilter).
const lexicalShortlistThreshold = 256

// applyLexicalFilter drops candidates that fail filter (spec §4.8 stage 2).
// The verdict is always text.MatchesKeywordFilter's substring match; bleve
// only narrows the set scanned once the candidate count makes that worth
// doing. The bleve field uses the keyword analyzer (no tokenization) with a
// leading/trailing wildcard query, so it can never produce a false negative
// against a case-insensitive substring match — it is a safe shortlist, not
// an approximation that could drop a true match.
func applyLexicalFilter(candidates []chunkCandidate, filter *TextFilter) []chunkCandidate {
	if filter == nil || (len(filter.MustContain) == 0 && len(filter.Exclude) == 0) {
		return candidates
	}

	pool := candidates
	if len(candidates) > lexicalShortlistThreshold && len(filter.MustContain) > 0 {
		if shortlisted, ok := bleveShortlist(candidates, filter.MustContain); ok {
			pool = shortlisted
		}
	}

	out := make([]chunkCandidate, 0, len(pool))
	for _, c := range pool {
		if text.MatchesKeywordFilter(c.Content, filter.MustContain, filter.Exclude) {
			out = append(out, c)
		}
	}
	return out
}

// bleveShortlist builds a transient in-memory index over candidates' content
// and returns those matching every mustContain term as a wildcard substring
// query. Returns ok=false if the index can't be built, so the caller falls
// back to scanning every candidate exactly.
func bleveShortlist(candidates []chunkCandidate, mustContain []string) ([]chunkCandidate, bool) {
	mapping := bleve.NewIndexMapping()
	contentField := bleve.NewTextFieldMapping()
	contentField.Analyzer = keyword.Name
	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("content", contentField)
	mapping.AddDocumentMapping("_default", docMapping)

	idx, err := bleve.NewMemOnly(mapping)
	if err != nil {
		return nil, false
	}
	defer idx.Close()

	byID := make(map[string]chunkCandidate, len(candidates))
	for _, c := range candidates {
		byID[c.ChunkID] = c
		content := strings.Join(strings.Fields(strings.ToLower(c.Content)), " ")
		if err := idx.Index(c.ChunkID, map[string]string{"content": content}); err != nil {
			return nil, false
		}
	}

	query := bleve.NewConjunctionQuery()
	for _, term := range mustContain {
		wq := bleve.NewWildcardQuery("*" + strings.ToLower(strings.TrimSpace(term)) + "*")
		wq.SetField("content")
		query.AddQuery(wq)
	}
	req := bleve.NewSearchRequest(query)
	req.Size = len(candidates)

	result, err := idx.Search(req)
	if err != nil {
		return nil, false
	}

	out := make([]chunkCandidate, 0, len(result.Hits))
	for _, hit := range result.Hits {
		if c, ok := byID[hit.ID]; ok {
			out = append(out, c)
		}
	}
	return out, true
}
