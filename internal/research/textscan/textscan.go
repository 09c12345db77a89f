// Package textscan extracts risk-related snippets from filing text.
//
// Two extraction modes cover the two document shapes we see: sentence-scan
// for cleaned prose (risk keywords anywhere in the document), and
// contiguous-block for section-structured filings where the risk discussion
// sits under a heading.
package textscan

import (
	"html"
	"regexp"
	"strings"

	"github.com/aristath/onepager/internal/domain"
)

const (
	// MaxSnippets caps the aggregated sentence-scan result.
	MaxSnippets = 8

	// MaxSnippetLen truncates individual snippets. Filing sentences run
	// long; past this point they stop being quotable.
	MaxSnippetLen = 300

	// MinSentenceLen filters out fragments the sentence splitter produces
	// around headings and tables.
	MinSentenceLen = 30

	// MaxBlockLines caps the contiguous-block result.
	MaxBlockLines = 20

	// minBlockLineLen drops filler lines (page numbers, stray labels) once
	// inside a risk block.
	minBlockLineLen = 10
)

// riskKeywords mark a sentence as risk-related. Matching is substring,
// case-insensitive.
var riskKeywords = []string{
	"risk", "risks", "uncertainty", "uncertainties", "challenge", "challenges",
	"threat", "threats", "vulnerability", "vulnerabilities", "exposure",
	"volatility", "volatile", "fluctuation", "fluctuations",
}

// blockTriggers start (or re-enter) a contiguous risk block.
var blockTriggers = []string{"risk", "uncertainty", "challenge", "threat"}

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	tagRe        = regexp.MustCompile(`<[^>]*>`)
	punctRe      = regexp.MustCompile(`[^\w\s.,;:!?\-()]`)
	sentenceRe   = regexp.MustCompile(`[.!?]+`)
)

// Clean normalizes raw document text for keyword scanning: whitespace runs
// collapse to single spaces, HTML entities decode, tag-like substrings and
// characters outside the punctuation whitelist go away. Order matters: tags
// may only become visible after entity decoding.
func Clean(text string) string {
	text = whitespaceRe.ReplaceAllString(text, " ")
	text = html.UnescapeString(text)
	text = tagRe.ReplaceAllString(text, "")
	text = punctRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

func containsAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// sentenceSnippets scans one cleaned document for risk-related sentences.
func sentenceSnippets(cleaned string) []string {
	var out []string
	for _, sentence := range sentenceRe.Split(cleaned, -1) {
		sentence = strings.TrimSpace(sentence)
		if len(sentence) < MinSentenceLen {
			continue
		}
		if !containsAny(strings.ToLower(sentence), riskKeywords) {
			continue
		}
		snippet := Clean(sentence)
		if len(snippet) <= MinSentenceLen {
			continue
		}
		if len(snippet) > MaxSnippetLen {
			snippet = snippet[:MaxSnippetLen]
		}
		out = append(out, snippet)
	}
	return out
}

// ExtractSnippets runs the sentence-scan over every document and aggregates:
// exact duplicates collapse to the first occurrence, order of first sight is
// preserved across documents, and the result is capped at MaxSnippets.
func ExtractSnippets(docs []domain.Document) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, doc := range docs {
		for _, snippet := range sentenceSnippets(Clean(doc.Text)) {
			if len(snippet) <= 20 {
				continue
			}
			if _, dup := seen[snippet]; dup {
				continue
			}
			seen[snippet] = struct{}{}
			out = append(out, snippet)
		}
	}
	if len(out) > MaxSnippets {
		out = out[:MaxSnippets]
	}
	return out
}

// ExtractRiskBlock scans raw text line by line for a contiguous risk
// discussion. A line containing a trigger keyword opens the block and is
// always kept; once inside, non-blank lines longer than minBlockLineLen
// accumulate until MaxBlockLines is reached. Blank and filler lines are
// skipped without closing the block.
func ExtractRiskBlock(text string) string {
	var kept []string
	inBlock := false
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if containsAny(strings.ToLower(line), blockTriggers) {
			inBlock = true
			kept = append(kept, trimmed)
			continue
		}
		if inBlock && trimmed != "" {
			if len(trimmed) > minBlockLineLen {
				kept = append(kept, trimmed)
			}
			if len(kept) > MaxBlockLines {
				break
			}
		}
	}
	if len(kept) > MaxBlockLines {
		kept = kept[:MaxBlockLines]
	}
	return strings.Join(kept, "\n")
}
