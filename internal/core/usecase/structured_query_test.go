package usecase

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/benefit-finder/internal/core/catalog"
	"github.com/kirillkom/benefit-finder/internal/core/domain"
	"github.com/kirillkom/benefit-finder/internal/core/ports"
)

type generateReply struct {
	text string
	err  error
}

type generatorFake struct {
	mu      sync.Mutex
	replies []generateReply
	calls   []ports.GenerateOptions
	prompts []string
}

func (f *generatorFake) Generate(_ context.Context, prompt string, opts ports.GenerateOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, opts)
	f.prompts = append(f.prompts, prompt)
	if len(f.replies) == 0 {
		return "", errors.New("no reply configured")
	}
	idx := len(f.calls) - 1
	if idx >= len(f.replies) {
		idx = len(f.replies) - 1
	}
	return f.replies[idx].text, f.replies[idx].err
}

type benefitStoreFake struct {
	dryRunErrs []error
	dryRuns    []domain.StructuredQuery
	executeIDs []string
	executeErr error
	executed   []domain.StructuredQuery
}

func (f *benefitStoreFake) DryRun(_ context.Context, q domain.StructuredQuery) error {
	f.dryRuns = append(f.dryRuns, q)
	if len(f.dryRunErrs) >= len(f.dryRuns) {
		return f.dryRunErrs[len(f.dryRuns)-1]
	}
	return nil
}

func (f *benefitStoreFake) Execute(_ context.Context, q domain.StructuredQuery) ([]string, error) {
	f.executed = append(f.executed, q)
	return f.executeIDs, f.executeErr
}

func newStructuredQueryUseCaseForTest(gen ports.Generator, store ports.BenefitStore) *StructuredQueryUseCase {
	uc := NewStructuredQueryUseCase(gen, store, catalog.Default(), StructuredQueryConfig{}, nil)
	uc.now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }
	return uc
}

func TestSynthesizeReturnsValidatedQueryOnFirstAttempt(t *testing.T) {
	gen := &generatorFake{replies: []generateReply{{
		text: "<SQL>SELECT service_id FROM benefits WHERE district = '마포구' AND gender = 'male'",
	}}}
	store := &benefitStoreFake{}
	uc := newStructuredQueryUseCaseForTest(gen, store)

	q := uc.Synthesize(context.Background(), "마포구 남자 혜택", domain.Profile{})

	if q.Stage != domain.StageValidated || q.Fallback || q.Attempts != 1 {
		t.Fatalf("unexpected query state: %+v", q)
	}
	if q.Text != "SELECT * FROM benefits WHERE district = '마포구' AND gender = '남자'" {
		t.Fatalf("unexpected text: %s", q.Text)
	}
	if q.Statement != "SELECT * FROM benefits WHERE district = $1 AND gender = $2" {
		t.Fatalf("unexpected statement: %s", q.Statement)
	}
	if !reflect.DeepEqual(q.Args, []any{"마포구", "남자"}) {
		t.Fatalf("unexpected args: %#v", q.Args)
	}

	if len(store.dryRuns) != 1 || store.dryRuns[0].Text != "SELECT service_id FROM benefits WHERE district = '마포구' AND gender = '남자'" {
		t.Fatalf("unexpected dry runs: %+v", store.dryRuns)
	}
	opts := gen.calls[0]
	if opts.MaxTokens != 2048 || !reflect.DeepEqual(opts.Stop, []string{"</SQL>"}) {
		t.Fatalf("unexpected generate options: %+v", opts)
	}
}

func TestSynthesizeCountsEveryFailureAsAttempt(t *testing.T) {
	gen := &generatorFake{replies: []generateReply{
		{err: errors.New("timeout")},
		{text: "   "},
		{text: "죄송합니다. 답변할 수 없습니다."},
		{text: "<SQL>SELECT * FROM benefits WHERE district = '뉴욕구'</SQL>"},
		{text: "<SQL>SELECT * FROM benefits WHERE min_age <= 30 AND max_age >= 30</SQL>"},
	}}
	store := &benefitStoreFake{}
	uc := newStructuredQueryUseCaseForTest(gen, store)

	q := uc.Synthesize(context.Background(), "30세 혜택", domain.Profile{})

	if q.Fallback || q.Attempts != 5 {
		t.Fatalf("expected success on the fifth attempt, got %+v", q)
	}
	if q.Text != "SELECT * FROM benefits WHERE min_age <= 30 AND max_age >= 30" {
		t.Fatalf("unexpected text: %s", q.Text)
	}
	for i, opts := range gen.calls[1:] {
		if opts.MaxTokens != 3072 {
			t.Fatalf("retry %d used %d tokens", i+2, opts.MaxTokens)
		}
	}
	if len(store.dryRuns) != 1 {
		t.Fatalf("only validated candidates reach the dry run, got %d", len(store.dryRuns))
	}
}

func TestSynthesizeRetriesAfterDryRunFailure(t *testing.T) {
	gen := &generatorFake{replies: []generateReply{
		{text: "<SQL>SELECT service_id FROM benefits WHERE gender = '여자'</SQL>"},
	}}
	store := &benefitStoreFake{dryRunErrs: []error{errors.New("syntax error at or near")}}
	uc := newStructuredQueryUseCaseForTest(gen, store)

	q := uc.Synthesize(context.Background(), "여성 혜택", domain.Profile{})
	if q.Attempts != 2 || q.Fallback {
		t.Fatalf("expected success on second attempt, got %+v", q)
	}
}

func TestSynthesizeFallsBackAfterBudget(t *testing.T) {
	gen := &generatorFake{replies: []generateReply{{err: errors.New("model unavailable")}}}
	uc := newStructuredQueryUseCaseForTest(gen, &benefitStoreFake{})

	q := uc.Synthesize(context.Background(), "48-year-old male living in 마포구", domain.Profile{})

	if len(gen.calls) != 5 {
		t.Fatalf("expected 5 generation attempts, got %d", len(gen.calls))
	}
	if !q.Fallback || q.Stage != domain.StageValidated || q.Attempts != 5 {
		t.Fatalf("unexpected fallback state: %+v", q)
	}
	want := "SELECT * FROM benefits WHERE district LIKE '%마포구%' AND min_age <= 48 AND max_age >= 48 AND gender = '남자'"
	if q.Text != want {
		t.Fatalf("unexpected fallback:\n got %s\nwant %s", q.Text, want)
	}
	if !strings.Contains(q.Reason, "model unavailable") {
		t.Fatalf("expected last failure as reason, got %q", q.Reason)
	}
}

func TestSynthesizeStopsOnCancelledContext(t *testing.T) {
	gen := &generatorFake{replies: []generateReply{{err: context.Canceled}}}
	uc := newStructuredQueryUseCaseForTest(gen, &benefitStoreFake{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	q := uc.Synthesize(ctx, "혜택", domain.Profile{})
	if len(gen.calls) != 0 || !q.Fallback || q.Text != "SELECT * FROM benefits" {
		t.Fatalf("unexpected result after cancellation: calls=%d query=%+v", len(gen.calls), q)
	}
}

func TestFallbackUsesProfileForMissingAttributes(t *testing.T) {
	uc := newStructuredQueryUseCaseForTest(&generatorFake{}, &benefitStoreFake{})
	hints := resolveProfileHints(domain.Profile{BirthDate: "1990-05-01", Gender: "F", District: "마포구"}, uc.catalog, uc.now())

	got := uc.fallback("청년 지원 혜택 알려줘", hints).Text
	want := "SELECT * FROM benefits WHERE district LIKE '%마포구%' AND min_age <= 34 AND max_age >= 34 AND gender = '여자'"
	if got != want {
		t.Fatalf("unexpected fallback:\n got %s\nwant %s", got, want)
	}

	// question attributes win over the profile
	got = uc.fallback("25살 남성", hints).Text
	want = "SELECT * FROM benefits WHERE district LIKE '%마포구%' AND min_age <= 25 AND max_age >= 25 AND gender = '남자'"
	if got != want {
		t.Fatalf("unexpected fallback:\n got %s\nwant %s", got, want)
	}
}

func TestFallbackDropsProfileValuesOutsideCatalog(t *testing.T) {
	uc := newStructuredQueryUseCaseForTest(&generatorFake{}, &benefitStoreFake{})
	hints := resolveProfileHints(domain.Profile{Area: "서울특별시", District: "뉴욕구", Gender: "unknown"}, uc.catalog, uc.now())

	if got := uc.fallback("지원 혜택", hints).Text; got != "SELECT * FROM benefits WHERE area = '서울특별시'" {
		t.Fatalf("unexpected fallback: %s", got)
	}
}

func TestFallbackWithoutConditionsSelectsAll(t *testing.T) {
	uc := newStructuredQueryUseCaseForTest(&generatorFake{}, &benefitStoreFake{})
	q := uc.fallback("어떤 혜택이 있나요?", profileHints{})
	if q.Text != "SELECT * FROM benefits" || q.Statement != "SELECT * FROM benefits" || len(q.Args) != 0 {
		t.Fatalf("unexpected fallback: %+v", q)
	}
}

func TestFallbackUsesAreaNamedInQuestion(t *testing.T) {
	uc := newStructuredQueryUseCaseForTest(&generatorFake{}, &benefitStoreFake{})
	got := uc.fallback("부산 사는 여자 청년", profileHints{}).Text
	if got != "SELECT * FROM benefits WHERE area = '부산광역시' AND gender = '여자'" {
		t.Fatalf("unexpected fallback: %s", got)
	}
}

func TestAgeFromText(t *testing.T) {
	cases := map[string]struct {
		age int
		ok  bool
	}{
		"48세 남자":                {48, true},
		"나이는 30살이에요":            {30, true},
		"a 27-year-old student": {27, true},
		"age: 64":               {64, true},
		"2024년 청년 혜택":           {0, false},
		"130세":                  {0, false},
		"자녀 3명":                 {0, false},
	}
	for input, want := range cases {
		age, ok := ageFromText(input)
		if age != want.age || ok != want.ok {
			t.Fatalf("ageFromText(%q) = %d, %v; want %d, %v", input, age, ok, want.age, want.ok)
		}
	}
}

func TestGenderFromText(t *testing.T) {
	cases := map[string]string{
		"female student":  "여자",
		"남성 근로자":          "남자",
		"a man in Seoul":  "남자",
		"남자와 여자 모두":       "",
		"어르신 돌봄 서비스":      "",
		"women and men":   "",
		"Female founders": "여자",
	}
	for input, want := range cases {
		if got := genderFromText(input); got != want {
			t.Fatalf("genderFromText(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestStructuredQueryPromptCarriesHints(t *testing.T) {
	cat := catalog.Default()
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	hints := resolveProfileHints(domain.Profile{BirthDate: "1990-05-01", Gender: "남성", District: "마포구"}, cat, now)

	prompt := buildStructuredQueryPrompt("받을 수 있는 혜택", hints, cat)
	for _, want := range []string{"- age: 34", "- gender: 남자", "- area: 서울특별시", "- district: 마포구", "마포구", "Question: 받을 수 있는 혜택"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q", want)
		}
	}
}
