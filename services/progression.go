package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"pvp-battle-server/models"
)

var ErrPlayerNotFound = eris.New("player not found")

// PvP settlement rules.
const (
	WinnerRating = 25
	LoserRating  = -20
	WinnerExp    = 100
	LoserExp     = 50
)

// Level curve: reaching level+1 from level costs floor(BaseExp * ExpMultiplier^level).
const (
	BaseExp             = 100
	ExpMultiplier       = 1.5
	MaxLevel            = 100
	LevelAttributeBonus = 0.20 // each attribute grows by 20% of itself, at least 1
	RecentBattleLimit   = 20
)

// RewardsFor returns what one side of a battle earns.
func RewardsFor(won bool) models.Rewards {
	if won {
		return models.Rewards{Exp: WinnerExp, Rating: WinnerRating}
	}
	return models.Rewards{Exp: LoserExp, Rating: LoserRating}
}

// ExpForNextLevel is the experience needed to go from level to level+1.
func ExpForNextLevel(level int) int64 {
	if level < 1 {
		level = 1
	}
	return int64(math.Floor(BaseExp * math.Pow(ExpMultiplier, float64(level))))
}

// ApplyExperience adds exp to p and resolves any level-ups, spending the
// required experience for each one. It returns the number of levels gained.
func ApplyExperience(p *models.PlayerProfile, exp int64) int {
	if p.Level < 1 {
		p.Level = 1
	}
	p.Experience += exp

	gained := 0
	for p.Level < MaxLevel {
		required := ExpForNextLevel(p.Level)
		if p.Experience < required {
			break
		}
		p.Experience -= required
		p.Level++
		p.Strength += attributeGain(p.Strength)
		p.Agility += attributeGain(p.Agility)
		p.Intelligence += attributeGain(p.Intelligence)
		p.Endurance += attributeGain(p.Endurance)
		gained++
	}
	if gained > 0 {
		p.Power = models.ComputePower(p.Level, models.Attributes{
			Strength:     p.Strength,
			Agility:      p.Agility,
			Intelligence: p.Intelligence,
			Endurance:    p.Endurance,
		})
	}
	return gained
}

func attributeGain(v int) int {
	gain := int(math.Ceil(float64(v) * LevelAttributeBonus))
	if gain < 1 {
		gain = 1
	}
	return gain
}

// ProgressionService is the GORM-backed player store: it supplies battle
// snapshots, validates socket logins and persists settlements.
type ProgressionService struct {
	DB *gorm.DB
}

func NewProgressionService(db *gorm.DB) *ProgressionService {
	return &ProgressionService{DB: db}
}

// GetPlayerSnapshot reads the player's current stats.
func (s *ProgressionService) GetPlayerSnapshot(ctx context.Context, playerID string) (models.PlayerSnapshot, error) {
	p, err := s.profile(s.DB.WithContext(ctx), playerID)
	if err != nil {
		return models.PlayerSnapshot{}, err
	}
	return p.Snapshot(), nil
}

// ValidateToken compares token with the player's stored session token.
func (s *ProgressionService) ValidateToken(ctx context.Context, playerID, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	p, err := s.profile(s.DB.WithContext(ctx), playerID)
	if errors.Is(err, ErrPlayerNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return p.SessionToken != "" && subtle.ConstantTimeCompare([]byte(p.SessionToken), []byte(token)) == 1, nil
}

// RecordBattleResult applies a settlement in one transaction: win/loss
// counters, rating, experience with level-ups and one BattleRecord per
// side. A settlement already recorded is skipped, so retries are safe.
func (s *ProgressionService) RecordBattleResult(ctx context.Context, st models.Settlement, reportURL string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.BattleRecord{}).Where("battle_id = ?", st.BattleID).Count(&existing).Error; err != nil {
			return eris.Wrap(err, "check battle record")
		}
		if existing > 0 {
			logrus.WithField("battle_id", st.BattleID).Debug("settlement already recorded")
			return nil
		}

		winner, err := s.profile(tx, st.WinnerID)
		if err != nil {
			return err
		}
		loser, err := s.profile(tx, st.LoserID)
		if err != nil {
			return err
		}

		endedAt := st.EndedAt
		win, lose := RewardsFor(true), RewardsFor(false)

		winner.PvPWins++
		winner.PvPRating += win.Rating
		winner.LastBattleAt = &endedAt
		winnerLevels := ApplyExperience(winner, win.Exp)

		loser.PvPLosses++
		loser.PvPRating += lose.Rating
		if loser.PvPRating < 0 {
			loser.PvPRating = 0
		}
		loser.LastBattleAt = &endedAt
		loserLevels := ApplyExperience(loser, lose.Exp)

		for _, p := range []*models.PlayerProfile{winner, loser} {
			if err := tx.Save(p).Error; err != nil {
				return eris.Wrapf(err, "save player %s", p.ID)
			}
		}

		duration := int(st.Duration() / time.Second)
		records := []models.BattleRecord{
			{
				ID:          uuid.NewString(),
				BattleID:    st.BattleID,
				PlayerID:    winner.ID,
				OpponentID:  loser.ID,
				Mode:        string(st.Mode),
				Result:      models.ResultVictory,
				Reason:      string(st.Reason),
				ExpEarned:   win.Exp,
				RatingDelta: win.Rating,
				DurationSec: duration,
				ReportURL:   reportURL,
			},
			{
				ID:          uuid.NewString(),
				BattleID:    st.BattleID,
				PlayerID:    loser.ID,
				OpponentID:  winner.ID,
				Mode:        string(st.Mode),
				Result:      models.ResultDefeat,
				Reason:      string(st.Reason),
				ExpEarned:   lose.Exp,
				RatingDelta: lose.Rating,
				DurationSec: duration,
				ReportURL:   reportURL,
			},
		}
		if err := tx.Create(&records).Error; err != nil {
			return eris.Wrap(err, "create battle records")
		}

		logrus.WithFields(logrus.Fields{
			"battle_id":     st.BattleID,
			"winner_id":     winner.ID,
			"winner_rating": winner.PvPRating,
			"winner_levels": winnerLevels,
			"loser_id":      loser.ID,
			"loser_rating":  loser.PvPRating,
			"loser_levels":  loserLevels,
		}).Info("battle result recorded")
		return nil
	})
}

// PlayerRecord is a player's PvP standing plus their latest battles.
type PlayerRecord struct {
	PlayerID string                `json:"player_id"`
	Username string                `json:"username"`
	Level    int                   `json:"level"`
	Power    int64                 `json:"power"`
	Wins     int64                 `json:"wins"`
	Losses   int64                 `json:"losses"`
	Rating   int64                 `json:"rating"`
	Recent   []models.BattleRecord `json:"recent"`
}

// GetPlayerRecord returns the standing and up to limit recent battles.
func (s *ProgressionService) GetPlayerRecord(ctx context.Context, playerID string, limit int) (*PlayerRecord, error) {
	if limit < 1 || limit > 100 {
		limit = RecentBattleLimit
	}
	db := s.DB.WithContext(ctx)
	p, err := s.profile(db, playerID)
	if err != nil {
		return nil, err
	}

	var recent []models.BattleRecord
	if err := db.Where("player_id = ?", playerID).
		Order("created_at DESC").
		Limit(limit).
		Find(&recent).Error; err != nil {
		return nil, eris.Wrap(err, "list battle records")
	}

	snap := p.Snapshot()
	return &PlayerRecord{
		PlayerID: p.ID,
		Username: p.Username,
		Level:    p.Level,
		Power:    snap.Power,
		Wins:     p.PvPWins,
		Losses:   p.PvPLosses,
		Rating:   p.PvPRating,
		Recent:   recent,
	}, nil
}

func (s *ProgressionService) profile(db *gorm.DB, playerID string) (*models.PlayerProfile, error) {
	var p models.PlayerProfile
	err := db.Where("id = ?", playerID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, eris.Wrapf(ErrPlayerNotFound, "player %s", playerID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "load player %s", playerID)
	}
	return &p, nil
}
