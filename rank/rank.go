// rank/rank.go
package rank

import (
	"math"
	"strings"
)

// Tier is a named rank with the minimum MMR needed to hold it.
type Tier struct {
	Name   string
	MinMMR int
}

// Tiers is ordered by ascending MMR threshold.
var Tiers = []Tier{
	{Name: "Bronze I", MinMMR: 100},
	{Name: "Bronze II", MinMMR: 200},
	{Name: "Bronze III", MinMMR: 300},
	{Name: "Silver I", MinMMR: 400},
	{Name: "Silver II", MinMMR: 500},
	{Name: "Silver III", MinMMR: 600},
	{Name: "Gold I", MinMMR: 700},
	{Name: "Gold II", MinMMR: 800},
	{Name: "Gold III", MinMMR: 900},
	{Name: "Platinum I", MinMMR: 1000},
	{Name: "Platinum II", MinMMR: 1100},
	{Name: "Platinum III", MinMMR: 1200},
	{Name: "Diamond I", MinMMR: 1300},
	{Name: "Diamond II", MinMMR: 1400},
	{Name: "Diamond III", MinMMR: 1500},
	{Name: "Master I", MinMMR: 1600},
	{Name: "Master II", MinMMR: 1700},
	{Name: "Master III", MinMMR: 1800},
	{Name: "Grandmaster I", MinMMR: 1900},
	{Name: "Grandmaster II", MinMMR: 2000},
	{Name: "Grandmaster III", MinMMR: 2100},
}

// TierForMMR maps an MMR value to its rank name. Values below the first
// threshold still map to the first tier.
func TierForMMR(mmr int) string {
	name := Tiers[0].Name
	for _, tier := range Tiers {
		if mmr >= tier.MinMMR {
			name = tier.Name
		} else {
			break
		}
	}
	return name
}

const (
	baseMMRGain = 5
	baseMMRLoss = 10
	pointAward  = 10
)

// multipliers by rank base name; higher ranks earn less per point.
var multipliers = map[string]float64{
	"Bronze":      2.0,
	"Silver":      1.8,
	"Gold":        1.6,
	"Platinum":    1.4,
	"Diamond":     1.3,
	"Master":      1.2,
	"Grandmaster": 1.1,
}

// MMRChange maps a final match score and the player's current rank to an
// MMR delta. A zero score is a flat loss.
func MMRChange(score int, rankName string) int {
	if score <= 0 {
		return -baseMMRLoss
	}

	base := strings.SplitN(rankName, " ", 2)[0]
	multiplier, ok := multipliers[base]
	if !ok {
		multiplier = 1.0
	}

	given := float64(score) * multiplier / pointAward
	return int(math.Floor(baseMMRGain + given))
}
