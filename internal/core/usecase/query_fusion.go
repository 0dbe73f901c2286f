package usecase

import "sort"

const defaultRRFConstant = 60

type weightedRanking struct {
	ids    []string
	weight float64
}

type fusedID struct {
	id    string
	score float64
	tie   int
	first int
}

// fuseWeightedRRF merges rankings with weighted reciprocal rank fusion.
// Equal scores are ordered by the position in tieOrder, then by first
// appearance across the rankings.
func fuseWeightedRRF(rankings []weightedRanking, rrfK int, tieOrder []string) []string {
	if rrfK <= 0 {
		rrfK = defaultRRFConstant
	}

	tiePos := make(map[string]int, len(tieOrder))
	for i, id := range tieOrder {
		if _, ok := tiePos[id]; !ok {
			tiePos[id] = i
		}
	}

	acc := make(map[string]*fusedID)
	seen := 0
	for _, ranking := range rankings {
		for rank, id := range ranking.ids {
			c, ok := acc[id]
			if !ok {
				tie, inTie := tiePos[id]
				if !inTie {
					tie = len(tieOrder)
				}
				c = &fusedID{id: id, tie: tie, first: seen}
				acc[id] = c
				seen++
			}
			c.score += ranking.weight / float64(rrfK+rank+1)
		}
	}

	out := make([]*fusedID, 0, len(acc))
	for _, c := range acc {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		if out[i].tie != out[j].tie {
			return out[i].tie < out[j].tie
		}
		return out[i].first < out[j].first
	})

	ids := make([]string, 0, len(out))
	for _, c := range out {
		ids = append(ids, c.id)
	}
	return ids
}

func trimIDs(ids []string, limit int) []string {
	if limit < 0 {
		limit = 0
	}
	if len(ids) <= limit {
		return ids
	}
	return ids[:limit]
}
