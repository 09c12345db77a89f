package textscan

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/onepager/internal/domain"
)

func TestClean_StripsMarkupAndCollapsesWhitespace(t *testing.T) {
	got := Clean("Hello&nbsp;&amp;   <b>world</b>!")
	assert.Equal(t, "Hello world!", got)
}

func TestClean_DecodesEntitiesBeforeStrippingTags(t *testing.T) {
	// Tags hidden behind entities only become visible after decoding.
	got := Clean("&lt;script&gt;alert&lt;/script&gt; risk text")
	assert.Equal(t, "alert risk text", got)
}

func TestClean_KeepsWhitelistedPunctuation(t *testing.T) {
	got := Clean("Margins (gross) fell; see item 1A - Risk Factors, page 12.")
	assert.Equal(t, "Margins (gross) fell; see item 1A - Risk Factors, page 12.", got)
}

func TestExtractSnippets_KeywordFreeTextYieldsNothing(t *testing.T) {
	docs := []domain.Document{{
		Text: "The company sells consumer electronics and related services worldwide. Revenue grew across all geographic segments last year.",
	}}

	assert.Empty(t, ExtractSnippets(docs))
}

func TestExtractSnippets_DuplicatesCollapse(t *testing.T) {
	text := strings.Repeat("The company faces material risks from foreign currency exposure. ", 10)
	docs := []domain.Document{{Text: text}}

	got := ExtractSnippets(docs)

	require.Len(t, got, 1)
	assert.Equal(t, "The company faces material risks from foreign currency exposure", got[0])
}

func TestExtractSnippets_CappedAtMaxSnippets(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 12; i++ {
		fmt.Fprintf(&sb, "Competitive risk number %d affects our international operations materially. ", i)
	}
	docs := []domain.Document{{Text: sb.String()}}

	got := ExtractSnippets(docs)

	assert.Len(t, got, MaxSnippets)
}

func TestExtractSnippets_LongSentencesTruncated(t *testing.T) {
	text := strings.Repeat("a", 200) + " risk " + strings.Repeat("b", 200) + "."
	docs := []domain.Document{{Text: text}}

	got := ExtractSnippets(docs)

	require.Len(t, got, 1)
	assert.Len(t, got[0], MaxSnippetLen)
}

func TestExtractSnippets_ShortSentencesSkipped(t *testing.T) {
	docs := []domain.Document{{Text: "Risk is real. Also threats."}}

	assert.Empty(t, ExtractSnippets(docs))
}

func TestExtractSnippets_OrderPreservedAcrossDocuments(t *testing.T) {
	docs := []domain.Document{
		{Text: "Supply chain uncertainty continues to pressure our gross margins."},
		{Text: "Regulatory challenges in Europe may delay several product launches."},
	}

	got := ExtractSnippets(docs)

	require.Len(t, got, 2)
	assert.Equal(t, "Supply chain uncertainty continues to pressure our gross margins", got[0])
	assert.Equal(t, "Regulatory challenges in Europe may delay several product launches", got[1])
}

func TestExtractSnippets_MatchingIsCaseInsensitive(t *testing.T) {
	docs := []domain.Document{{
		Text: "VOLATILITY in commodity prices affected our input costs this quarter.",
	}}

	got := ExtractSnippets(docs)

	require.Len(t, got, 1)
}

func TestExtractRiskBlock_CollectsContiguousSection(t *testing.T) {
	text := strings.Join([]string{
		"Introduction paragraph",
		"Item 1A. Risk Factors",
		"Competition could materially harm our results",
		"ok",
		"",
		"Supply chain disruptions remain a concern for the business",
	}, "\n")

	got := ExtractRiskBlock(text)

	expected := strings.Join([]string{
		"Item 1A. Risk Factors",
		"Competition could materially harm our results",
		"Supply chain disruptions remain a concern for the business",
	}, "\n")
	assert.Equal(t, expected, got)
}

func TestExtractRiskBlock_NothingBeforeTrigger(t *testing.T) {
	text := "This line is long enough to be kept if we were inside a block\nAnother neutral line of sufficient length here"

	assert.Empty(t, ExtractRiskBlock(text))
}

func TestExtractRiskBlock_CappedAtMaxLines(t *testing.T) {
	lines := []string{"Principal risks and uncertainties are described below"}
	for i := 0; i < 30; i++ {
		lines = append(lines, fmt.Sprintf("Continuation line number %02d with sufficient length", i))
	}

	got := ExtractRiskBlock(strings.Join(lines, "\n"))

	assert.Len(t, strings.Split(got, "\n"), MaxBlockLines)
}

func TestExtractRiskBlock_TriggerReentersBlock(t *testing.T) {
	text := strings.Join([]string{
		"no", // too short to keep, not a trigger
		"Market risk disclosures follow",
		"x",
		"Interest rate uncertainty affects our floating rate debt",
	}, "\n")

	got := ExtractRiskBlock(text)

	assert.Equal(t, "Market risk disclosures follow\nInterest rate uncertainty affects our floating rate debt", got)
}
