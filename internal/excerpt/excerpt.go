// Package excerpt picks the parts of a paper's text that best explain a
// highlighted passage.
package excerpt

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// DefaultBudget is the context size handed to the explanation prompt.
const DefaultBudget = 6000

// Chunk is one deduplicated paragraph of the document.
type Chunk struct {
	ID    string
	Text  string
	Start int
	End   int
}

// Document is a paper's text split into paragraphs.
type Document struct {
	Chunks []Chunk
}

var (
	paragraphSplit   = regexp.MustCompile(`\n{2,}`)
	whitespaceSanity = regexp.MustCompile(`\s+`)
)

// Build splits content into paragraphs, dropping boilerplate and repeats.
// PDF text without blank lines is split into sentence groups instead.
func Build(content string) Document {
	content = sanitizeDocument(content)
	paragraphs := paragraphSplit.Split(content, -1)
	if len(paragraphs) == 1 {
		paragraphs = groupSentences(paragraphs[0], 4)
	}
	seen := map[string]bool{}
	var chunks []Chunk
	cursor := 0
	for _, paragraph := range paragraphs {
		trimmed := strings.TrimSpace(paragraph)
		if trimmed == "" || isBoilerplate(trimmed) {
			continue
		}
		canonical := canonicalParagraph(trimmed)
		hash := hashChunk(canonical)
		if seen[hash] {
			continue
		}
		seen[hash] = true
		length := runeLen(canonical)
		chunks = append(chunks, Chunk{
			ID:    hash,
			Text:  canonical,
			Start: cursor,
			End:   cursor + length,
		})
		cursor += length
	}
	return Document{Chunks: chunks}
}

// Empty reports whether the document has no usable text.
func (d Document) Empty() bool {
	return len(d.Chunks) == 0
}

// Around returns the chunks sharing the most keywords with passage, in
// document order, clipped to budget runes. With no overlap it falls back to
// the opening of the document.
func (d Document) Around(passage string, budget int) string {
	if d.Empty() || budget <= 0 {
		return ""
	}
	keywords := Keywords(passage)
	needle := strings.ToLower(canonicalParagraph(passage))

	type scored struct {
		chunk Chunk
		score int
		index int
	}
	var hits []scored
	for idx, chunk := range d.Chunks {
		lower := strings.ToLower(chunk.Text)
		score := 0
		for keyword := range keywords {
			if strings.Contains(lower, keyword) {
				score++
			}
		}
		if needle != "" && strings.Contains(lower, needle) {
			score += len(keywords) + 1
		}
		if score > 0 {
			hits = append(hits, scored{chunk: chunk, score: score, index: idx})
		}
	}
	if len(hits) == 0 {
		return clipChunks(d.Chunks, budget)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score == hits[j].score {
			return hits[i].index < hits[j].index
		}
		return hits[i].score > hits[j].score
	})
	var picked []scored
	used := 0
	for _, hit := range hits {
		if used >= budget {
			break
		}
		picked = append(picked, hit)
		used += runeLen(hit.chunk.Text) + 2
	}
	sort.Slice(picked, func(i, j int) bool { return picked[i].index < picked[j].index })
	chunks := make([]Chunk, 0, len(picked))
	for _, p := range picked {
		chunks = append(chunks, p.chunk)
	}
	return clipChunks(chunks, budget)
}

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "was": {}, "were": {}, "this": {}, "that": {},
	"with": {}, "from": {}, "which": {}, "these": {}, "those": {}, "their": {}, "there": {},
	"have": {}, "has": {}, "been": {}, "can": {}, "our": {}, "not": {}, "but": {}, "into": {},
	"than": {}, "then": {}, "also": {}, "such": {}, "each": {}, "its": {}, "they": {}, "them": {},
	"use": {}, "using": {}, "used": {}, "paper": {}, "show": {}, "shows": {}, "while": {},
}

// Keywords lowercases text and keeps the tokens of three or more characters
// that are not stopwords.
func Keywords(text string) map[string]struct{} {
	text = strings.ToLower(whitespaceSanity.ReplaceAllString(text, " "))
	tokens := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '-'
	})
	keywords := map[string]struct{}{}
	for _, token := range tokens {
		token = strings.Trim(token, "-")
		if runeLen(token) < 3 {
			continue
		}
		if _, skip := stopwords[token]; skip {
			continue
		}
		keywords[token] = struct{}{}
	}
	return keywords
}

func sanitizeDocument(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	return strings.ReplaceAll(content, "\r", "\n")
}

func canonicalParagraph(text string) string {
	return whitespaceSanity.ReplaceAllString(strings.TrimSpace(text), " ")
}

func groupSentences(text string, size int) []string {
	var groups []string
	var current strings.Builder
	count := 0
	for _, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			count++
			if count == size {
				groups = append(groups, current.String())
				current.Reset()
				count = 0
			}
		}
	}
	if tail := strings.TrimSpace(current.String()); tail != "" {
		groups = append(groups, tail)
	}
	return groups
}

func isBoilerplate(paragraph string) bool {
	lower := strings.ToLower(strings.TrimSpace(paragraph))
	if lower == "" {
		return true
	}
	switch {
	case lower == "abstract", lower == "introduction", lower == "keywords":
		return true
	case strings.HasPrefix(lower, "references"):
		return true
	case strings.HasPrefix(lower, "acknowledg"):
		return true
	case strings.HasPrefix(lower, "copyright"):
		return true
	case strings.Contains(lower, "doi"):
		return true
	case strings.Contains(lower, "arxiv:"):
		return true
	case strings.Contains(lower, "license"):
		return true
	}
	if len(lower) <= 12 && !strings.Contains(lower, " ") {
		return true
	}
	alpha := 0
	for _, r := range lower {
		if unicode.IsLetter(r) {
			alpha++
		}
	}
	return alpha*5 < len(lower)
}

func hashChunk(text string) string {
	sum := sha1.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}

func clipChunks(chunks []Chunk, budget int) string {
	if budget <= 0 {
		return ""
	}
	var builder strings.Builder
	remaining := budget
	for idx, chunk := range chunks {
		if remaining <= 0 {
			break
		}
		if idx > 0 && builder.Len() > 0 {
			if remaining <= 2 {
				break
			}
			builder.WriteString("\n\n")
			remaining -= 2
		}
		runes := []rune(chunk.Text)
		if len(runes) > remaining {
			builder.WriteString(string(runes[:remaining]))
			break
		}
		builder.WriteString(chunk.Text)
		remaining -= len(runes)
	}
	return builder.String()
}

func runeLen(text string) int {
	return len([]rune(text))
}
