package polish

import (
	"context"
	"errors"
	"strings"
	"testing"

	"jimaku/internal/subtitle"
)

type fakeGenerator struct {
	responses []string
	errs      []error
	prompts   []string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string, _ int, _ float64) (string, error) {
	f.prompts = append(f.prompts, prompt)
	call := len(f.prompts) - 1
	var err error
	if call < len(f.errs) {
		err = f.errs[call]
	}
	if err != nil {
		return "", err
	}
	if call < len(f.responses) {
		return f.responses[call], nil
	}
	return "", errors.New("no scripted response")
}

func segs(texts ...string) []subtitle.Segment {
	out := make([]subtitle.Segment, len(texts))
	for i, text := range texts {
		out[i] = subtitle.Segment{
			Start: float64(i),
			End:   float64(i) + 1,
			Text:  text,
			Words: []subtitle.Word{{Text: text, Start: float64(i), End: float64(i) + 1}},
		}
	}
	return out
}

func TestPolishBatch(t *testing.T) {
	gen := &fakeGenerator{responses: []string{
		`{"polished": ["こんにちは。", "元気ですか？"]}`,
	}}
	p := New(Config{Enable: true, BatchSize: 10}, gen, nil)

	got := p.Polish(context.Background(), segs("こんにちは", "元気ですか"))
	if len(got) != 2 {
		t.Fatalf("got %d segments, want 2", len(got))
	}
	if got[0].Text != "こんにちは。" || got[1].Text != "元気ですか？" {
		t.Errorf("texts = %q, %q", got[0].Text, got[1].Text)
	}
	if got[0].Start != 0 || got[0].End != 1 || len(got[0].Words) != 1 {
		t.Errorf("timing or words not preserved: %+v", got[0])
	}
	if len(gen.prompts) != 1 {
		t.Errorf("calls = %d, want 1 batch request", len(gen.prompts))
	}
	if !strings.Contains(gen.prompts[0], "1. こんにちは") || !strings.Contains(gen.prompts[0], "2. 元気ですか") {
		t.Errorf("prompt missing numbered texts:\n%s", gen.prompts[0])
	}
}

func TestPolishSplitsIntoBatches(t *testing.T) {
	gen := &fakeGenerator{responses: []string{
		`{"polished": ["一。", "二。"]}`,
		`{"polished": ["三。"]}`,
	}}
	p := New(Config{Enable: true, BatchSize: 2}, gen, nil)

	got := p.Polish(context.Background(), segs("一", "二", "三"))
	if len(gen.prompts) != 2 {
		t.Fatalf("calls = %d, want 2 batches", len(gen.prompts))
	}
	if got[2].Text != "三。" {
		t.Errorf("last segment = %q", got[2].Text)
	}
}

func TestPolishBatchFailureRetriesIndividually(t *testing.T) {
	gen := &fakeGenerator{
		errs: []error{errors.New("boom"), nil, errors.New("boom again")},
		responses: []string{
			"",
			`{"polished": ["一。"]}`,
			"",
		},
	}
	p := New(Config{Enable: true, BatchSize: 10}, gen, nil)

	got := p.Polish(context.Background(), segs("一", "二"))
	if len(gen.prompts) != 3 {
		t.Fatalf("calls = %d, want batch plus two retries", len(gen.prompts))
	}
	if got[0].Text != "一。" {
		t.Errorf("recovered segment = %q, want polished text", got[0].Text)
	}
	if got[1].Text != "二" {
		t.Errorf("failed segment = %q, want original kept", got[1].Text)
	}
}

func TestPolishShortResponseKeepsTail(t *testing.T) {
	gen := &fakeGenerator{responses: []string{
		`{"polished": ["一。"]}`,
	}}
	p := New(Config{Enable: true, BatchSize: 10}, gen, nil)

	got := p.Polish(context.Background(), segs("一", "二"))
	if got[0].Text != "一。" || got[1].Text != "二" {
		t.Errorf("texts = %q, %q; want polished head and original tail", got[0].Text, got[1].Text)
	}
}

func TestPolishEmptyEntryKeepsOriginal(t *testing.T) {
	gen := &fakeGenerator{responses: []string{
		`{"polished": ["", "二。"]}`,
	}}
	p := New(Config{Enable: true, BatchSize: 10}, gen, nil)

	got := p.Polish(context.Background(), segs("一", "二"))
	if got[0].Text != "一" {
		t.Errorf("empty polish result replaced text: %q", got[0].Text)
	}
	if got[1].Text != "二。" {
		t.Errorf("second text = %q", got[1].Text)
	}
}

func TestPolishDisabledOrWithoutGenerator(t *testing.T) {
	in := segs("一")

	p := New(Config{Enable: false, BatchSize: 10}, &fakeGenerator{}, nil)
	if got := p.Polish(context.Background(), in); got[0].Text != "一" {
		t.Errorf("disabled polisher changed text: %q", got[0].Text)
	}

	p = New(Config{Enable: true, BatchSize: 10}, nil, nil)
	if got := p.Polish(context.Background(), in); got[0].Text != "一" {
		t.Errorf("generator-less polisher changed text: %q", got[0].Text)
	}
}

func TestPolishOneByOneMode(t *testing.T) {
	gen := &fakeGenerator{responses: []string{
		`{"polished": ["一。"]}`,
		`{"polished": ["二。"]}`,
	}}
	p := New(Config{Enable: true, BatchSize: 1}, gen, nil)

	got := p.Polish(context.Background(), segs("一", "二"))
	if len(gen.prompts) != 2 {
		t.Fatalf("calls = %d, want one per segment", len(gen.prompts))
	}
	if got[0].Text != "一。" || got[1].Text != "二。" {
		t.Errorf("texts = %q, %q", got[0].Text, got[1].Text)
	}
}
