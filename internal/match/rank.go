package match

import (
	"sort"

	"github.com/OCAP2/arena/pkg/core"
)

// Rank orders players by score, kills, kill/death ratio and remaining health,
// all descending. Player id breaks any remaining tie so the order does not
// depend on input order. The top player wins unless the list is empty or the
// top two tie on all four criteria, which is a draw.
func Rank(players []core.PlayerState) core.MatchResult {
	sorted := make([]core.PlayerState, len(players))
	copy(sorted, players)
	sort.SliceStable(sorted, func(i, j int) bool {
		if c := compare(sorted[i], sorted[j]); c != 0 {
			return c > 0
		}
		return sorted[i].ID < sorted[j].ID
	})

	res := core.MatchResult{Rankings: make([]core.RankEntry, 0, len(sorted))}
	for i, p := range sorted {
		res.Rankings = append(res.Rankings, core.RankEntry{
			PlayerID: p.ID,
			Name:     p.Name,
			Rank:     i + 1,
			Score:    p.Score,
			Kills:    p.Kills,
			Deaths:   p.Deaths,
			KDRatio:  p.KDRatio(),
			Health:   p.Health,
		})
	}

	switch {
	case len(sorted) == 0:
	case len(sorted) > 1 && compare(sorted[0], sorted[1]) == 0:
		res.Draw = true
	default:
		res.WinnerID = sorted[0].ID
	}
	return res
}

// compare returns >0 when a ranks above b, <0 when below and 0 on a full tie.
func compare(a, b core.PlayerState) int {
	switch {
	case a.Score != b.Score:
		return sign(float64(a.Score - b.Score))
	case a.Kills != b.Kills:
		return sign(float64(a.Kills - b.Kills))
	case a.KDRatio() != b.KDRatio():
		return sign(a.KDRatio() - b.KDRatio())
	case a.Health != b.Health:
		return sign(float64(a.Health - b.Health))
	}
	return 0
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
