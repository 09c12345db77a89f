package annotators

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/onepager/internal/domain"
)

type fakeMarket struct {
	profile    domain.Profile
	profileErr error
	raw        domain.RawFinancials
	rawErr     error
	bars       []domain.PriceBar
	barsErr    error
}

func (f *fakeMarket) Profile(ctx context.Context, ticker string) (domain.Profile, error) {
	return f.profile, f.profileErr
}

func (f *fakeMarket) Quote(ctx context.Context, ticker string) (domain.Quote, error) {
	return domain.Quote{}, errors.New("not implemented")
}

func (f *fakeMarket) History(ctx context.Context, ticker string, days int) ([]domain.PriceBar, error) {
	return f.bars, f.barsErr
}

func (f *fakeMarket) RawFinancials(ctx context.Context, ticker string) (domain.RawFinancials, error) {
	return f.raw, f.rawErr
}

func (f *fakeMarket) Search(ctx context.Context, query string) ([]domain.SymbolMatch, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeMarket) PriceSourceLink(ticker string) string {
	return "https://finance.yahoo.com/quote/" + ticker
}

type fakeGen struct {
	reply   string
	err     error
	prompts []string
}

func (f *fakeGen) Complete(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("%s #%d", f.reply, len(f.prompts)), nil
}

func contextMarket() *fakeMarket {
	return &fakeMarket{
		profile: domain.Profile{
			Ticker:   "ACME",
			LongName: "Acme Corp",
			Sector:   "Technology",
			Industry: "Software",
			Summary:  "Acme sells developer tools.",
		},
		raw: domain.NewRawFinancials("ACME",
			map[string]float64{
				domain.KeyMarketCap:    50e9,
				domain.KeyFreeCashFlow: 1e9,
				domain.KeyGrossMargin:  0.62,
			},
			nil, nil, nil, nil),
	}
}

func bars(closes ...float64) []domain.PriceBar {
	out := make([]domain.PriceBar, len(closes))
	day := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		out[i] = domain.PriceBar{Date: day.AddDate(0, 0, i), Close: c}
	}
	return out
}

func TestChecklistWithoutGenerator(t *testing.T) {
	c := NewTechChecklist(contextMarket(), nil, zerolog.Nop())

	got := c.Annotate(context.Background(), "ACME")

	want := "### Tech Analyst Checklist\n" +
		"- Moat: network effects / switching costs / data advantage?\n" +
		"- Unit economics: gross margin path vs R&D/S&M intensity\n" +
		"- Durability: dependence on platform shifts (cloud, AI infra)?\n" +
		"- Customer concentration & churn (if available)\n" +
		"- SBC dilution trend\n\n" +
		configureHint
	assert.Equal(t, want, got)
}

func TestChecklistGenerative(t *testing.T) {
	gen := &fakeGen{reply: "analysis"}
	c := NewTechChecklist(contextMarket(), gen, zerolog.Nop())

	got := c.Annotate(context.Background(), "ACME")

	require.Len(t, gen.prompts, 5)
	assert.Contains(t, gen.prompts[0], "technology sector")
	assert.Contains(t, gen.prompts[0], "Company: Acme Corp")
	assert.Contains(t, gen.prompts[0], "FCF Yield: 2.00%")
	assert.Contains(t, gen.prompts[0], "ANALYZE: Moat: network effects / switching costs / data advantage?")

	assert.True(t, strings.HasPrefix(got, "### Tech Analyst Checklist\n\n"))
	assert.Contains(t, got, "**Moat: network effects / switching costs / data advantage?**\nanalysis #1")
	assert.Contains(t, got, "**SBC dilution trend**\nanalysis #5")
}

func TestChecklistGenerativeFailure(t *testing.T) {
	gen := &fakeGen{err: errors.New("quota exhausted")}
	c := NewFinancialsChecklist(contextMarket(), gen, zerolog.Nop())

	got := c.Annotate(context.Background(), "ACME")

	assert.True(t, strings.HasPrefix(got, "### Financials Checklist\n"))
	assert.Contains(t, got, "- Leverage posture: debt load vs equity cushion and rate sensitivity")
	assert.Contains(t, got, "⚠️ LLM analysis failed: quota exhausted")
	assert.NotContains(t, got, "**Leverage posture")
}

func TestQuantNotEnoughHistory(t *testing.T) {
	for _, market := range []*fakeMarket{
		{barsErr: errors.New("down")},
		{bars: bars(100)},
		{},
	} {
		q := NewQuant(market, nil, zerolog.Nop())
		got := q.Annotate(context.Background(), "ACME")
		assert.Equal(t, "### Quant Note\n- Not enough price history.", got)
	}
}

func TestQuantMetricsBlock(t *testing.T) {
	market := &fakeMarket{bars: bars(100, 110, 99)}
	q := NewQuant(market, nil, zerolog.Nop())

	got := q.Annotate(context.Background(), "ACME")

	assert.Contains(t, got, "### Quant Note")
	assert.Contains(t, got, "- Annualized Vol: 158.75%")
	assert.Contains(t, got, "- Max Drawdown (1y lookback): -10.00%")
	assert.Contains(t, got, "- Total Return (1y): -1.00%")
	assert.Contains(t, got, "- Price Range (1y): 99.00 - 110.00")
	assert.Contains(t, got, configureHint)
	assert.NotContains(t, got, "RSI(14)")
}

func TestQuantGenerative(t *testing.T) {
	gen := &fakeGen{reply: "volatility is moderate"}
	q := NewQuant(&fakeMarket{bars: bars(100, 110, 99)}, gen, zerolog.Nop())

	got := q.Annotate(context.Background(), "ACME")

	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "ACME")
	assert.Contains(t, got, "**LLM Risk Assessment:**\nvolatility is moderate #1")
}

func TestQuantGenerativeFailure(t *testing.T) {
	gen := &fakeGen{err: errors.New("timeout")}
	q := NewQuant(&fakeMarket{bars: bars(100, 110, 99)}, gen, zerolog.Nop())

	got := q.Annotate(context.Background(), "ACME")

	assert.Contains(t, got, "- Annualized Vol: 158.75%")
	assert.Contains(t, got, "⚠️ LLM analysis failed: timeout")
}

func TestAnnotatorNames(t *testing.T) {
	market := contextMarket()
	assert.Equal(t, "tech", NewTechChecklist(market, nil, zerolog.Nop()).Name())
	assert.Equal(t, "fins", NewFinancialsChecklist(market, nil, zerolog.Nop()).Name())
	assert.Equal(t, "quant", NewQuant(market, nil, zerolog.Nop()).Name())
}
