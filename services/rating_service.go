// services/rating_service.go
package services

import (
	"errors"
	"time"

	"github.com/duckuru/spellin-bee/logger"
	"github.com/duckuru/spellin-bee/models"
	"github.com/duckuru/spellin-bee/persistence"
	"github.com/duckuru/spellin-bee/rank"
)

// defaultMMR is the rating assigned to a player with no record yet.
const defaultMMR = 100

// RatingService applies the post-match bookkeeping a finished room
// triggers: MMR adjustment per player, rank recomputation and the
// match/player history rows. All writes are upserts, so replaying a
// finalize is harmless.
type RatingService struct {
	repo persistence.RoomRepository
}

func NewRatingService(repo persistence.RoomRepository) *RatingService {
	return &RatingService{repo: repo}
}

// RecordMatch rates every member of the finished room, active or not,
// and persists the history records. Per-player failures are logged and
// skipped so one broken row never loses the whole match.
func (s *RatingService) RecordMatch(room *models.Room, scores map[string]int) error {
	matchPlayers := make([]models.MatchPlayer, 0, len(room.Players))

	for _, player := range room.Players {
		score := scores[player.UserID]

		data, err := s.repo.GetUserData(player.UserID)
		if errors.Is(err, persistence.ErrNotFound) {
			data = &models.UserData{
				UserID:   player.UserID,
				Username: player.Username,
				MMR:      defaultMMR,
				Rank:     rank.TierForMMR(defaultMMR),
			}
		} else if err != nil {
			logger.Log.Errorf("rating: load user %s: %v", player.UserID, err)
			continue
		}

		change := rank.MMRChange(score, data.Rank)
		data.MMR += change
		if data.MMR < 0 {
			data.MMR = 0
		}
		data.Rank = rank.TierForMMR(data.MMR)
		data.Username = player.Username

		if err := s.repo.UpsertUserRating(data); err != nil {
			logger.Log.Errorf("rating: save user %s: %v", player.UserID, err)
			continue
		}

		matchPlayers = append(matchPlayers, models.MatchPlayer{
			UserID:    player.UserID,
			Username:  player.Username,
			Rank:      data.Rank,
			Score:     score,
			MMRChange: change,
			IsActive:  player.IsActive,
		})

		if err := s.repo.SavePlayerHistory(&models.PlayerHistory{
			UserID:    player.UserID,
			RoomID:    room.RoomID,
			Username:  player.Username,
			Points:    score,
			MMRChange: change,
			Rank:      data.Rank,
			CreatedAt: time.Now(),
		}); err != nil {
			logger.Log.Errorf("rating: save player history %s/%s: %v", room.RoomID, player.UserID, err)
		}
	}

	return s.repo.SaveMatchHistory(&models.MatchHistory{
		RoomID:    room.RoomID,
		Players:   matchPlayers,
		CreatedAt: time.Now(),
	})
}
