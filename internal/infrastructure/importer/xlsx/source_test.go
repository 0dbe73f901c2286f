package xlsx

import (
	"bytes"
	"context"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/benefit-finder/internal/core/domain"
)

func workbook(t *testing.T, rows ...[]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("CoordinatesToCellName() error = %v", err)
		}
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("SetSheetRow() error = %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer() error = %v", err)
	}
	return buf
}

func TestDecodeMapsKoreanHeaders(t *testing.T) {
	buf := workbook(t,
		[]any{"서비스ID", "서비스명", "지원내용", "시도", "시군구", "최소나이", "최대나이", "성별"},
		[]any{"WLF001", "청년 월세 지원", "월 20만원", "서울특별시", "마포구", "19", "34세", "전체"},
		[]any{"", "", "", "", "", "", "", ""},
		[]any{"WLF002", "출산 축하금", "100만원", "부산광역시", "", "", "", "여자"},
	)

	got, err := NewSource("").Decode(context.Background(), buf)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 benefits, got %d", len(got))
	}
	first := got[0]
	if first.ServiceID != "WLF001" || first.District != "마포구" || first.MinAge != 19 || first.MaxAge != 34 {
		t.Fatalf("unexpected first row: %+v", first)
	}
	if got[1].MinAge != defaultMinAge || got[1].MaxAge != defaultMaxAge || got[1].Gender != "여자" {
		t.Fatalf("expected default age bounds, got %+v", got[1])
	}
}

func TestDecodeMapsRelationHeaders(t *testing.T) {
	buf := workbook(t,
		[]any{"service_id", "title", "min_age", "max_age"},
		[]any{"A", "a", "20.0", "39"},
	)
	got, err := NewSource("Sheet1").Decode(context.Background(), buf)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(got) != 1 || got[0].MinAge != 20 || got[0].MaxAge != 39 {
		t.Fatalf("unexpected rows: %+v", got)
	}
}

func TestDecodeRejectsMissingIDColumn(t *testing.T) {
	buf := workbook(t, []any{"서비스명"}, []any{"이름만"})
	if _, err := NewSource("").Decode(context.Background(), buf); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestDecodeRejectsInvertedAgeRange(t *testing.T) {
	buf := workbook(t, []any{"service_id", "min_age", "max_age"}, []any{"A", "40", "20"})
	if _, err := NewSource("").Decode(context.Background(), buf); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := NewSource("").Decode(context.Background(), bytes.NewBufferString("not a workbook")); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
