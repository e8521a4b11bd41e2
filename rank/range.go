// rank/range.go
package rank

// Range is a matchmaking bucket: players whose rank falls between MinRank
// and MaxRank (inclusive) queue together.
type Range struct {
	ID      int
	MinRank string
	MaxRank string
}

var Ranges = []Range{
	{ID: 1, MinRank: "Bronze I", MaxRank: "Silver III"},
	{ID: 2, MinRank: "Silver I", MaxRank: "Gold III"},
	{ID: 3, MinRank: "Gold I", MaxRank: "Platinum III"},
	{ID: 4, MinRank: "Platinum I", MaxRank: "Diamond III"},
	{ID: 5, MinRank: "Diamond III", MaxRank: "Master III"},
	{ID: 6, MinRank: "Master I", MaxRank: "Grandmaster III"},
}

func tierIndex(name string) int {
	for i, tier := range Tiers {
		if tier.Name == name {
			return i
		}
	}
	return -1
}

// InRange reports whether the rank falls inside the bucket.
func InRange(rankName string, r Range) bool {
	idx := tierIndex(rankName)
	min := tierIndex(r.MinRank)
	max := tierIndex(r.MaxRank)
	return idx >= 0 && idx >= min && idx <= max
}

// RangeForRank returns the first matchmaking bucket covering the rank.
func RangeForRank(rankName string) (Range, bool) {
	for _, r := range Ranges {
		if InRange(rankName, r) {
			return r, true
		}
	}
	return Range{}, false
}

// DifficultyForRange maps a bucket to the word difficulty its matches use.
func DifficultyForRange(id int) string {
	switch {
	case id >= 5:
		return "hard"
	case id >= 3:
		return "medium"
	default:
		return "easy"
	}
}
