package sqlfilter

import (
	"testing"

	"github.com/kirillkom/benefit-finder/internal/core/domain"
)

func TestExtractStrategies(t *testing.T) {
	cases := []struct {
		name     string
		raw      string
		want     string
		strategy string
	}{
		{
			name:     "closed tag",
			raw:      "분석 결과입니다.\n<SQL>SELECT * FROM benefits WHERE gender = '남자'</SQL>",
			want:     "SELECT * FROM benefits WHERE gender = '남자'",
			strategy: "tag",
		},
		{
			name:     "unterminated tag",
			raw:      "<SQL>\nSELECT service_id FROM benefits WHERE district = '마포구';\n",
			want:     "SELECT service_id FROM benefits WHERE district = '마포구'",
			strategy: "open_tag",
		},
		{
			name:     "unterminated tag followed by prose",
			raw:      "<SQL>\nSELECT * FROM benefits WHERE district LIKE '%마포구%';\nThis query selects programs in Mapo.",
			want:     "SELECT * FROM benefits WHERE district LIKE '%마포구%'",
			strategy: "open_tag",
		},
		{
			name:     "unterminated tag with korean explanation after blank line",
			raw:      "<SQL>\nSELECT * FROM benefits WHERE area = '서울특별시' AND gender = '여자'\n\n이 쿼리는 서울에 사는 여성을 위한 혜택을 찾습니다.",
			want:     "SELECT * FROM benefits WHERE area = '서울특별시' AND gender = '여자'",
			strategy: "open_tag",
		},
		{
			name:     "markers",
			raw:      "SQL_BEGIN SELECT service_id FROM benefits SQL_END",
			want:     "SELECT service_id FROM benefits",
			strategy: "markers",
		},
		{
			name:     "template skipped then fence",
			raw:      "<SQL>SELECT * FROM benefits WHERE 조건1 AND 조건2</SQL>\n```sql\nSELECT service_id FROM benefits WHERE gender = '여자';\n```",
			want:     "SELECT service_id FROM benefits WHERE gender = '여자'",
			strategy: "fence",
		},
		{
			name:     "json with trailing comma",
			raw:      `{"sql": "SELECT service_id FROM benefits WHERE area = '서울특별시'",}`,
			want:     "SELECT service_id FROM benefits WHERE area = '서울특별시'",
			strategy: "json",
		},
		{
			name:     "bare select",
			raw:      "The query is SELECT service_id FROM benefits WHERE district = '마포구'; hope it helps",
			want:     "SELECT service_id FROM benefits WHERE district = '마포구'",
			strategy: "bare",
		},
		{
			name:     "comments stripped",
			raw:      "<SQL>SELECT service_id -- id column\nFROM benefits # table\nWHERE gender = '남자'</SQL>",
			want:     "SELECT service_id FROM benefits WHERE gender = '남자'",
			strategy: "tag",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, strategy, err := Extract(tc.raw, DefaultStrategies())
			if err != nil {
				t.Fatalf("Extract() error = %v", err)
			}
			if got != tc.want {
				t.Fatalf("unexpected statement:\n got %q\nwant %q", got, tc.want)
			}
			if strategy != tc.strategy {
				t.Fatalf("expected strategy %s, got %s", tc.strategy, strategy)
			}
		})
	}
}

func TestExtractFailsWithoutStatement(t *testing.T) {
	inputs := []string{
		"죄송합니다. 질문을 이해하지 못했습니다.",
		"<SQL>DELETE FROM benefits</SQL>",
		"<SQL>SELECT * FROM benefits WHERE condition1</SQL>",
	}
	for _, raw := range inputs {
		_, _, err := Extract(raw, DefaultStrategies())
		if err == nil {
			t.Fatalf("expected extraction error for %q", raw)
		}
		if !domain.IsKind(err, domain.ErrExtraction) {
			t.Fatalf("expected ErrExtraction, got %v", err)
		}
	}
}

func TestCommentStartIgnoresQuotedHash(t *testing.T) {
	if got := cleanCandidate("SELECT * FROM benefits WHERE district = '#1' -- note"); got != "SELECT * FROM benefits WHERE district = '#1'" {
		t.Fatalf("unexpected cleaned candidate: %q", got)
	}
}

func TestCleanCandidateKeepsQuotedSemicolon(t *testing.T) {
	got := cleanCandidate("SELECT * FROM benefits WHERE district = 'a;b'; 설명입니다")
	if got != "SELECT * FROM benefits WHERE district = 'a;b'" {
		t.Fatalf("unexpected cleaned candidate: %q", got)
	}
}

func TestExtractedOpenTagStatementParses(t *testing.T) {
	raw := "<SQL>\nSELECT * FROM benefits WHERE district LIKE '%마포구%';\n\n이 쿼리는 마포구 혜택을 조회합니다."
	stmt, _, err := Extract(raw, DefaultStrategies())
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if _, err := Parse(stmt); err != nil {
		t.Fatalf("Parse(%q) error = %v", stmt, err)
	}
}
