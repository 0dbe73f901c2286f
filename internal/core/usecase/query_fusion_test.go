package usecase

import (
	"reflect"
	"testing"
)

func TestFuseWeightedRRFPrefersSharedIDs(t *testing.T) {
	lexical := []string{"svc-1", "svc-2"}
	semantic := []string{"svc-2", "svc-3"}

	fused := fuseWeightedRRF([]weightedRanking{
		{ids: lexical, weight: 0.5},
		{ids: semantic, weight: 0.5},
	}, 60, lexical)
	if len(fused) != 3 {
		t.Fatalf("expected 3 fused ids, got %d", len(fused))
	}
	if fused[0] != "svc-2" {
		t.Fatalf("expected svc-2 first after fusion, got %s", fused[0])
	}
}

func TestFuseWeightedRRFBreaksTiesByLexicalRank(t *testing.T) {
	lexical := []string{"svc-a", "svc-b"}
	semantic := []string{"svc-b", "svc-a"}

	fused := fuseWeightedRRF([]weightedRanking{
		{ids: lexical, weight: 0.5},
		{ids: semantic, weight: 0.5},
	}, 60, lexical)
	if !reflect.DeepEqual(fused, []string{"svc-a", "svc-b"}) {
		t.Fatalf("expected lexical order on tie, got %v", fused)
	}
}

func TestFuseWeightedRRFHonoursWeights(t *testing.T) {
	fused := fuseWeightedRRF([]weightedRanking{
		{ids: []string{"svc-a"}, weight: 0.2},
		{ids: []string{"svc-b"}, weight: 0.8},
	}, 60, []string{"svc-a"})
	if fused[0] != "svc-b" {
		t.Fatalf("expected heavier ranking to win, got %v", fused)
	}
}

func TestTrimIDs(t *testing.T) {
	if got := trimIDs([]string{"a", "b", "c"}, 2); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("unexpected trim: %v", got)
	}
	if got := trimIDs([]string{"a"}, 5); len(got) != 1 {
		t.Fatalf("unexpected trim: %v", got)
	}
}
