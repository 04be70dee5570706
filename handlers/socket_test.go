package handlers

import (
	"context"
	"io"
	"net"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	gws "github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"pvp-battle-server/models"
	"pvp-battle-server/services"
	"pvp-battle-server/utils"
	"pvp-battle-server/workers"
)

const testServiceToken = "svc-token"

type testServer struct {
	app         *fiber.App
	addr        string
	coordinator *services.Coordinator
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "pvp.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.PlayerProfile{}, &models.BattleRecord{}))
	for _, id := range []string{"A", "B"} {
		require.NoError(t, db.Create(&models.PlayerProfile{
			ID: id, Username: "player-" + id, SessionToken: "token-" + id,
			Level: 1, Strength: 10, Agility: 10, Intelligence: 10, Endurance: 10, PvPRating: 1000,
		}).Error)
	}

	ctx, cancel := context.WithCancel(context.Background())
	progression := services.NewProgressionService(db)
	reg := prometheus.NewRegistry()
	metrics := services.NewMetrics(reg)
	worker := workers.NewSettlementWorker(progression, nil, 8, 3, metrics)
	worker.Start(ctx)

	coordinator := services.NewCoordinator(
		services.NewSessionRegistry(),
		services.NewMatchQueue(services.DefaultMaxPowerDifference, time.Minute),
		progression, progression, worker,
		services.CoordinatorOptions{Metrics: metrics},
	)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	SetupBattleRoutes(app, coordinator, reg, testServiceToken)
	SetupProgressionRoutes(app, progression, testServiceToken)
	SetupSocketRoutes(ctx, app, coordinator)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()

	t.Cleanup(func() {
		_ = app.ShutdownWithTimeout(time.Second)
		coordinator.Shutdown()
		cancel()
		worker.Wait()
	})
	return &testServer{app: app, addr: ln.Addr().String(), coordinator: coordinator}
}

func (s *testServer) dial(t *testing.T) *gws.Conn {
	t.Helper()
	ws, _, err := gws.DefaultDialer.Dial("ws://"+s.addr+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func (s *testServer) get(t *testing.T, path string, withToken bool) (int, []byte) {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	if withToken {
		req.Header.Set("Authorization", "Bearer "+testServiceToken)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

func send(t *testing.T, ws *gws.Conn, event string, payload any) {
	t.Helper()
	frame, err := utils.Encode(event, payload)
	require.NoError(t, err)
	require.NoError(t, ws.WriteMessage(gws.TextMessage, frame))
}

// expect reads frames until event arrives, skipping anything else.
func expect(t *testing.T, ws *gws.Conn, event string) models.Envelope {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		_, msg, err := ws.ReadMessage()
		require.NoError(t, err, "waiting for %s", event)
		env, err := utils.DecodeEnvelope(msg)
		require.NoError(t, err)
		if env.Event == event {
			return env
		}
	}
}

func login(t *testing.T, ws *gws.Conn, playerID string) {
	t.Helper()
	send(t, ws, models.EventLogin, models.LoginRequest{PlayerID: playerID, SessionToken: "token-" + playerID})
	expect(t, ws, models.EventLoginOK)
}

func TestSocketBattleToSettlement(t *testing.T) {
	srv := newTestServer(t)
	wsA, wsB := srv.dial(t), srv.dial(t)

	send(t, wsA, models.EventLogin, models.LoginRequest{PlayerID: "A", SessionToken: "wrong"})
	expect(t, wsA, models.EventLoginFailed)

	login(t, wsA, "A")
	login(t, wsB, "B")

	send(t, wsA, models.EventMatchRequest, models.MatchRequest{})
	expect(t, wsA, models.EventMatchWaiting)
	send(t, wsB, models.EventMatchRequest, models.MatchRequest{})

	start, err := utils.DecodePayload[models.BattleStart](expect(t, wsA, models.EventBattleStart))
	require.NoError(t, err)
	expect(t, wsB, models.EventBattleStart)

	send(t, wsA, models.EventBattleAttack, models.AttackRequest{BattleID: start.BattleID, TargetID: "B", Damage: 40})
	dmg, err := utils.DecodePayload[models.DamageNotice](expect(t, wsB, models.EventBattleDamage))
	require.NoError(t, err)
	assert.Equal(t, 40, dmg.Damage)
	health, err := utils.DecodePayload[models.HealthUpdate](expect(t, wsA, models.EventBattleHealthUpdate))
	require.NoError(t, err)
	assert.Equal(t, 60, health.CurrentHealth)

	send(t, wsA, models.EventBattleAttack, models.AttackRequest{BattleID: start.BattleID, TargetID: "B", Damage: 60})
	end, err := utils.DecodePayload[models.BattleEnd](expect(t, wsB, models.EventBattleEnd))
	require.NoError(t, err)
	assert.Equal(t, "A", end.WinnerID)
	assert.Equal(t, models.ResultDefeat, end.Result)
	expect(t, wsA, models.EventBattleEnd)

	assert.Eventually(t, func() bool {
		code, body := srv.get(t, "/players/A/record", true)
		if code != fiber.StatusOK {
			return false
		}
		var rec services.PlayerRecord
		return json.Unmarshal(body, &rec) == nil && rec.Wins == 1 && len(rec.Recent) == 1
	}, 3*time.Second, 20*time.Millisecond)
}

func TestSocketCloseForfeitsBattle(t *testing.T) {
	srv := newTestServer(t)
	wsA, wsB := srv.dial(t), srv.dial(t)
	login(t, wsA, "A")
	login(t, wsB, "B")

	send(t, wsA, models.EventBattleInvite, models.InviteRequest{TargetID: "B"})
	invite, err := utils.DecodePayload[models.InviteReceived](expect(t, wsB, models.EventBattleInviteReceived))
	require.NoError(t, err)
	send(t, wsB, models.EventBattleAccept, models.AcceptRequest{InviteID: invite.InviteID})
	expect(t, wsA, models.EventBattleStart)

	require.NoError(t, wsA.Close())

	end, err := utils.DecodePayload[models.BattleEnd](expect(t, wsB, models.EventBattleEnd))
	require.NoError(t, err)
	assert.Equal(t, "B", end.WinnerID)
	assert.Equal(t, models.EndDisconnect, end.Reason)
	assert.Empty(t, srv.coordinator.ActiveBattles())
}

func TestAdminRoutes(t *testing.T) {
	srv := newTestServer(t)

	code, body := srv.get(t, "/healthz", false)
	assert.Equal(t, fiber.StatusOK, code)
	assert.JSONEq(t, `{"status":"ok","queue":0}`, string(body))

	code, _ = srv.get(t, "/battles", false)
	assert.Equal(t, fiber.StatusUnauthorized, code)

	code, body = srv.get(t, "/battles", true)
	assert.Equal(t, fiber.StatusOK, code)
	assert.JSONEq(t, `{"battles":[],"count":0}`, string(body))

	code, _ = srv.get(t, "/battles/missing", true)
	assert.Equal(t, fiber.StatusNotFound, code)

	code, _ = srv.get(t, "/players/ghost/record", true)
	assert.Equal(t, fiber.StatusNotFound, code)

	code, body = srv.get(t, "/metrics", false)
	assert.Equal(t, fiber.StatusOK, code)
	assert.Contains(t, string(body), "pvp_queue_size")

	code, _ = srv.get(t, "/queue", true)
	assert.Equal(t, fiber.StatusOK, code)
}

func TestSendBufferOverflowClosesConnection(t *testing.T) {
	conn := newWSConn(nil)
	for i := 0; i < sendBufferSize; i++ {
		require.NoError(t, conn.Send([]byte("frame")))
	}

	assert.ErrorIs(t, conn.Send([]byte("overflow")), ErrSendBufferFull)
	assert.ErrorIs(t, conn.Send([]byte("after")), ErrConnClosed, "a lagging client is dropped, not skipped")
	select {
	case <-conn.closed:
	default:
		t.Fatal("connection still open after overflow")
	}
}
