package models

// BattleRecord records one participant's side of a finished PvP battle.
// (battle_id, player_id) is unique so a retried settlement never double counts.
type BattleRecord struct {
	ID         string `gorm:"primaryKey" json:"id"`
	BattleID   string `gorm:"uniqueIndex:idx_battle_player;not null" json:"battle_id"`
	PlayerID   string `gorm:"uniqueIndex:idx_battle_player;index;not null" json:"player_id"`
	OpponentID string `gorm:"index;not null" json:"opponent_id"`

	Mode   string `json:"mode" gorm:"type:varchar(16)"`
	Result string `json:"result" gorm:"type:varchar(16)"` // victory / defeat
	Reason string `json:"reason" gorm:"type:varchar(16)"` // lethal / surrender / disconnect / forced

	// Rewards (pre-calculated to avoid recomputation)
	ExpEarned   int64 `json:"exp_earned" gorm:"default:0"`
	RatingDelta int64 `json:"rating_delta" gorm:"default:0"`

	DurationSec int    `json:"duration_sec" gorm:"default:0"`
	ReportURL   string `json:"report_url,omitempty"`

	Timestamps
}
