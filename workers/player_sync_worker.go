// workers/player_sync_worker.go
package workers

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pvp-battle-server/models"
)

// RemotePlayer is one row of the game server's player change feed.
type RemotePlayer struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	SessionToken string    `json:"session_token"`
	Level        int       `json:"level"`
	Experience   int64     `json:"experience"`
	Strength     int       `json:"strength"`
	Agility      int       `json:"agility"`
	Intelligence int       `json:"intelligence"`
	Endurance    int       `json:"endurance"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type playerChangesResponse struct {
	Players []RemotePlayer `json:"players"`
}

// PlayerSyncWorker mirrors players registered on the main game server into
// player_profiles. New players arrive with their stats; existing rows only
// take the username and session token, since level, attributes and PvP
// standing are advanced locally by settlements.
type PlayerSyncWorker struct {
	db           *gorm.DB
	interval     time.Duration
	endpoint     string
	serviceToken string
	httpClient   *http.Client
	lastSync     time.Time
	logger       *logrus.Entry
}

func NewPlayerSyncWorker(db *gorm.DB, endpoint, serviceToken string, interval time.Duration, client *http.Client) *PlayerSyncWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &PlayerSyncWorker{
		db:           db,
		interval:     interval,
		endpoint:     endpoint,
		serviceToken: serviceToken,
		httpClient:   client,
		logger:       logrus.WithField("component", "player_sync"),
	}
}

func (w *PlayerSyncWorker) Start(ctx context.Context) {
	w.logger.Info("🔁 starting player sync (game server → player_profiles)")
	go w.run(ctx)
}

func (w *PlayerSyncWorker) run(ctx context.Context) {
	// Initial backfill
	if _, err := w.SyncOnce(ctx); err != nil {
		w.logger.WithError(err).Warn("initial sync failed")
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := w.SyncOnce(ctx); err != nil {
				w.logger.WithError(err).Error("sync batch failed")
			}
		case <-ctx.Done():
			w.logger.Info("⏹️ player sync stopped")
			return
		}
	}
}

// SyncOnce pulls changes since the newest updated_at seen so far and
// upserts them. It returns the number of rows written.
func (w *PlayerSyncWorker) SyncOnce(ctx context.Context) (int, error) {
	players, err := w.fetch(ctx, w.lastSync)
	if err != nil {
		return 0, err
	}
	if len(players) == 0 {
		return 0, nil
	}

	upserted := 0
	for _, rp := range players {
		if rp.ID == "" || rp.Username == "" {
			continue
		}
		p := models.PlayerProfile{
			ID:           rp.ID,
			Username:     rp.Username,
			SessionToken: rp.SessionToken,
			Level:        max(rp.Level, 1),
			Experience:   rp.Experience,
			Strength:     defaultStat(rp.Strength),
			Agility:      defaultStat(rp.Agility),
			Intelligence: defaultStat(rp.Intelligence),
			Endurance:    defaultStat(rp.Endurance),
			PvPRating:    1000,
		}
		p.Power = p.Snapshot().Power

		if err := w.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"username", "session_token", "updated_at"}),
		}).Create(&p).Error; err != nil {
			w.logger.WithError(err).WithField("player_id", rp.ID).Warn("failed to upsert player")
			continue
		}
		upserted++
		if rp.UpdatedAt.After(w.lastSync) {
			w.lastSync = rp.UpdatedAt
		}
	}

	w.logger.WithFields(logrus.Fields{"received": len(players), "upserted": upserted}).Info("📥 players synced")
	return upserted, nil
}

func (w *PlayerSyncWorker) fetch(ctx context.Context, since time.Time) ([]RemotePlayer, error) {
	u, err := url.Parse(w.endpoint)
	if err != nil {
		return nil, eris.Wrapf(err, "invalid player sync URL %q", w.endpoint)
	}
	q := u.Query()
	q.Set("since", since.UTC().Format(time.RFC3339))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "build player sync request")
	}
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "call player sync endpoint")
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, eris.Errorf("player sync returned %d: %s", resp.StatusCode, string(body))
	}

	var out playerChangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, eris.Wrap(err, "decode player sync response")
	}
	return out.Players, nil
}

func defaultStat(v int) int {
	if v <= 0 {
		return 10
	}
	return v
}
