package workers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"pvp-battle-server/models"
)

type playerFeed struct {
	mu      sync.Mutex
	players []RemotePlayer
	since   []string
}

func (f *playerFeed) set(players ...RemotePlayer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.players = players
}

func (f *playerFeed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-Service-Token") != "svc" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.since = append(f.since, r.URL.Query().Get("since"))
	_ = json.NewEncoder(w).Encode(map[string]any{"players": f.players})
}

func newSyncDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "sync.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.PlayerProfile{}))
	return db
}

func TestPlayerSyncInsertsAndUpdates(t *testing.T) {
	db := newSyncDB(t)
	feed := &playerFeed{}
	srv := httptest.NewServer(feed)
	defer srv.Close()

	t1 := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	feed.set(
		RemotePlayer{ID: "A", Username: "alice", SessionToken: "tok-1", Level: 3, Strength: 14, Endurance: 12, UpdatedAt: t1},
		RemotePlayer{ID: "B", Username: "bob", UpdatedAt: t1.Add(-time.Hour)},
		RemotePlayer{ID: "", Username: "nobody", UpdatedAt: t1},
	)

	w := NewPlayerSyncWorker(db, srv.URL+"/internal/players", "svc", time.Minute, srv.Client())
	n, err := w.SyncOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var a models.PlayerProfile
	require.NoError(t, db.First(&a, "id = ?", "A").Error)
	assert.Equal(t, 3, a.Level)
	assert.Equal(t, 14, a.Strength)
	assert.Equal(t, 10, a.Agility, "missing stats default to 10")
	assert.Equal(t, int64(1000), a.PvPRating)
	assert.Equal(t, a.Snapshot().Power, a.Power)

	var b models.PlayerProfile
	require.NoError(t, db.First(&b, "id = ?", "B").Error)
	assert.Equal(t, 1, b.Level)

	// Local progression must survive a later sync of the same player.
	require.NoError(t, db.Model(&models.PlayerProfile{}).Where("id = ?", "A").
		Updates(models.PlayerProfile{Level: 7, PvPWins: 4}).Error)

	feed.set(RemotePlayer{ID: "A", Username: "alice2", SessionToken: "tok-2", Level: 1, UpdatedAt: t1.Add(time.Minute)})
	n, err = w.SyncOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, db.First(&a, "id = ?", "A").Error)
	assert.Equal(t, "alice2", a.Username)
	assert.Equal(t, "tok-2", a.SessionToken)
	assert.Equal(t, 7, a.Level)
	assert.Equal(t, int64(4), a.PvPWins)

	feed.mu.Lock()
	defer feed.mu.Unlock()
	require.Len(t, feed.since, 2)
	assert.Equal(t, time.Time{}.Format(time.RFC3339), feed.since[0])
	assert.Equal(t, t1.Format(time.RFC3339), feed.since[1])
}

func TestPlayerSyncRejectedByServer(t *testing.T) {
	db := newSyncDB(t)
	srv := httptest.NewServer(&playerFeed{})
	defer srv.Close()

	w := NewPlayerSyncWorker(db, srv.URL, "wrong", time.Minute, nil)
	_, err := w.SyncOnce(context.Background())
	assert.Error(t, err)

	var count int64
	require.NoError(t, db.Model(&models.PlayerProfile{}).Count(&count).Error)
	assert.Zero(t, count)
}
