package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"pvp-battle-server/models"
	"pvp-battle-server/utils"
)

var (
	ErrAlreadyInBattle = eris.New("player already in battle")
	ErrOpponentOffline = eris.New("player went offline before the battle started")
)

// PlayerDirectory supplies the stat snapshot a battle is created with.
type PlayerDirectory interface {
	GetPlayerSnapshot(ctx context.Context, playerID string) (models.PlayerSnapshot, error)
}

// TokenValidator checks a socket login.
type TokenValidator interface {
	ValidateToken(ctx context.Context, playerID, token string) (bool, error)
}

// SettlementSink receives each finished battle exactly once. Enqueue must
// not block; it reports false when the settlement was not accepted.
type SettlementSink interface {
	Enqueue(models.Settlement) bool
}

// CoordinatorOptions carries the tunables from config.
type CoordinatorOptions struct {
	DefaultMode   models.CombatMode
	TurnTimeout   time.Duration
	InviteTimeout time.Duration
	Validator     AttackValidator
	Metrics       *Metrics
	Now           func() time.Time
}

// Invite is a pending direct challenge.
type Invite struct {
	ID        string
	FromID    string
	ToID      string
	Mode      models.CombatMode
	CreatedAt time.Time
}

// Coordinator is the single entry point for inbound combat events and the
// only component that creates or discards battles.
type Coordinator struct {
	registry    *SessionRegistry
	queue       *MatchQueue
	players     PlayerDirectory
	tokens      TokenValidator
	settlements SettlementSink
	validator   AttackValidator
	metrics     *Metrics
	logger      *logrus.Entry

	defaultMode   models.CombatMode
	turnTimeout   time.Duration
	inviteTimeout time.Duration
	now           func() time.Time

	mu       sync.Mutex
	battles  map[string]*Battle
	inBattle map[string]string // player id -> battle id
	invites  map[string]Invite
}

func NewCoordinator(registry *SessionRegistry, queue *MatchQueue, players PlayerDirectory, tokens TokenValidator, settlements SettlementSink, opts CoordinatorOptions) *Coordinator {
	if opts.DefaultMode == "" {
		opts.DefaultMode = models.ModeRealtime
	}
	if opts.TurnTimeout <= 0 {
		opts.TurnTimeout = DefaultTurnTimeout
	}
	if opts.InviteTimeout <= 0 {
		opts.InviteTimeout = 60 * time.Second
	}
	if opts.Validator == nil {
		opts.Validator = TrustingValidator{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Coordinator{
		registry:      registry,
		queue:         queue,
		players:       players,
		tokens:        tokens,
		settlements:   settlements,
		validator:     opts.Validator,
		metrics:       opts.Metrics,
		logger:        logrus.WithField("component", "coordinator"),
		defaultMode:   opts.DefaultMode,
		turnTimeout:   opts.TurnTimeout,
		inviteTimeout: opts.InviteTimeout,
		now:           opts.Now,
		battles:       make(map[string]*Battle),
		inBattle:      make(map[string]string),
		invites:       make(map[string]Invite),
	}
}

// HandleFrame decodes one inbound frame and dispatches it. Malformed frames
// are logged and dropped.
func (c *Coordinator) HandleFrame(ctx context.Context, conn Conn, frame []byte) {
	env, err := utils.DecodeEnvelope(frame)
	if err != nil {
		c.drop("", "malformed", logrus.Fields{"conn_id": conn.ID(), "error": err})
		return
	}
	c.Handle(ctx, conn, env)
}

// Handle routes one decoded envelope. Every event except login requires a
// bound connection, and the bound player id is the only identity used.
func (c *Coordinator) Handle(ctx context.Context, conn Conn, env models.Envelope) {
	if env.Event == models.EventLogin {
		req, err := utils.DecodePayload[models.LoginRequest](env)
		if err != nil {
			c.drop(env.Event, "malformed", logrus.Fields{"error": err})
			c.sendTo(conn, models.EventLoginFailed, nil)
			return
		}
		c.Login(ctx, conn, req)
		return
	}

	playerID, ok := c.registry.PlayerOf(conn)
	if !ok {
		c.drop(env.Event, "unauthenticated", logrus.Fields{"conn_id": conn.ID()})
		return
	}

	var err error
	switch env.Event {
	case models.EventMatchRequest:
		var req models.MatchRequest
		if req, err = utils.DecodePayload[models.MatchRequest](env); err == nil {
			c.RequestMatch(ctx, playerID, conn, req)
		}
	case models.EventMatchCancel:
		c.CancelMatch(playerID)
	case models.EventBattlePosition:
		var req models.PositionUpdate
		if req, err = utils.DecodePayload[models.PositionUpdate](env); err == nil {
			c.RelayPosition(playerID, req, env.Data)
		}
	case models.EventBattleAttack:
		var req models.AttackRequest
		if req, err = utils.DecodePayload[models.AttackRequest](env); err == nil {
			c.Attack(playerID, req)
		}
	case models.EventBattleSurrender:
		var req models.SurrenderRequest
		if req, err = utils.DecodePayload[models.SurrenderRequest](env); err == nil {
			c.Surrender(playerID, req)
		}
	case models.EventBattleDefeated:
		var req models.DefeatedReport
		if req, err = utils.DecodePayload[models.DefeatedReport](env); err == nil {
			c.ReportDefeat(playerID, req)
		}
	case models.EventBattleInvite:
		var req models.InviteRequest
		if req, err = utils.DecodePayload[models.InviteRequest](env); err == nil {
			c.Invite(playerID, req)
		}
	case models.EventBattleAccept:
		var req models.AcceptRequest
		if req, err = utils.DecodePayload[models.AcceptRequest](env); err == nil {
			c.Accept(ctx, playerID, req)
		}
	default:
		c.drop(env.Event, "unknown_event", logrus.Fields{"player_id": playerID})
		return
	}
	if err != nil {
		c.drop(env.Event, "malformed", logrus.Fields{"player_id": playerID, "error": err})
	}
}

// Login validates the token once and binds the connection. A replaced
// connection is closed; its own disconnect then unbinds nothing.
func (c *Coordinator) Login(ctx context.Context, conn Conn, req models.LoginRequest) {
	log := c.logger.WithFields(logrus.Fields{"player_id": req.PlayerID, "conn_id": conn.ID()})
	if req.PlayerID == "" {
		log.Warn("login without player id")
		c.sendTo(conn, models.EventLoginFailed, nil)
		return
	}

	ok, err := c.tokens.ValidateToken(ctx, req.PlayerID, req.SessionToken)
	if err != nil {
		log.WithError(err).Error("token validation failed")
	}
	if err != nil || !ok {
		c.sendTo(conn, models.EventLoginFailed, nil)
		return
	}

	// A connection switching identity gives up the old one first.
	if prev, bound := c.registry.PlayerOf(conn); bound && prev != req.PlayerID {
		c.leave(prev)
	}

	if replaced := c.registry.Bind(req.PlayerID, conn); replaced != nil {
		log.WithField("replaced_conn_id", replaced.ID()).Info("player reconnected, closing previous connection")
		// The old connection's queue entry would deliver to a dead socket.
		c.queue.Cancel(req.PlayerID)
		_ = replaced.Close()
	}
	c.metrics.online(c.registry.Online())
	c.metrics.queueSize(c.queue.Len())

	log.Info("player logged in")
	c.sendTo(conn, models.EventLoginOK, models.LoginOK{PlayerID: req.PlayerID})
}

// RequestMatch queues the player or starts a battle with the first
// compatible waiting opponent.
func (c *Coordinator) RequestMatch(ctx context.Context, playerID string, conn Conn, req models.MatchRequest) {
	log := c.logger.WithField("player_id", playerID)
	if c.battleOf(playerID) != nil {
		c.sendTo(conn, models.EventMatchError, models.MatchError{Code: models.CodeAlreadyInBattle})
		return
	}

	snap, err := c.players.GetPlayerSnapshot(ctx, playerID)
	if err != nil {
		log.WithError(err).Error("unable to load player for matchmaking")
		c.sendTo(conn, models.EventMatchError, models.MatchError{Code: models.CodeMatchAborted})
		return
	}

	entry := QueueEntry{
		PlayerID: playerID,
		Power:    snap.Power,
		Mode:     models.ParseCombatMode(req.Mode, c.defaultMode),
		JoinedAt: c.now(),
		Conn:     conn,
	}
	// Each failed pairing removes the blocking opponent from the queue, so
	// this ends in a battle, a wait, or the requester being blocked.
	for {
		opponent, err := c.queue.Enqueue(entry)
		if errors.Is(err, ErrAlreadyQueued) {
			c.sendTo(conn, models.EventMatchError, models.MatchError{Code: models.CodeAlreadyQueued})
			return
		}
		c.metrics.queueSize(c.queue.Len())

		if opponent == nil {
			log.WithFields(logrus.Fields{"mode": entry.Mode, "power": snap.Power}).Debug("player waiting for opponent")
			c.sendTo(conn, models.EventMatchWaiting, nil)
			return
		}

		log.WithField("opponent_id", opponent.PlayerID).Info("match found")
		_, blocked, err := c.startBattle(ctx, opponent.PlayerID, playerID, entry.Mode)
		if err == nil {
			return
		}
		log.WithError(err).WithField("blocked", blocked).Warn("match aborted")

		if !blocked[opponent.PlayerID] {
			c.requeue(*opponent)
		}
		if blocked[playerID] {
			return
		}
	}
}

// requeue puts a waiting entry back at its original place after a pairing
// it took no part in breaking fell through.
func (c *Coordinator) requeue(entry QueueEntry) {
	conn, online := c.registry.Resolve(entry.PlayerID)
	if !online || conn.ID() != entry.Conn.ID() || c.battleOf(entry.PlayerID) != nil {
		return
	}
	if c.queue.Requeue(entry) {
		c.metrics.queueSize(c.queue.Len())
	}
}

// CancelMatch leaves the queue. Idempotent.
func (c *Coordinator) CancelMatch(playerID string) {
	if c.queue.Cancel(playerID) {
		c.logger.WithField("player_id", playerID).Debug("match request cancelled")
	}
	c.metrics.queueSize(c.queue.Len())
}

// RelayPosition records the sender's position and forwards the payload to
// the opponent with senderId set to the bound player id.
func (c *Coordinator) RelayPosition(playerID string, req models.PositionUpdate, raw []byte) {
	bt := c.battleFor(req.BattleID, playerID)
	if bt == nil {
		c.metrics.dropped(models.EventBattlePosition, "no_battle")
		return
	}
	if !bt.RecordPosition(playerID, req.Position()) {
		c.metrics.dropped(models.EventBattlePosition, "ended")
		return
	}
	opponent, _ := bt.Opponent(playerID)

	payload, err := utils.OverwriteField(raw, "senderId", playerID)
	if err != nil {
		c.drop(models.EventBattlePosition, "malformed", logrus.Fields{"player_id": playerID, "error": err})
		return
	}
	frame, err := utils.EncodeRaw(models.EventBattlePosition, payload)
	if err != nil {
		c.logger.WithError(err).Error("unable to encode position relay")
		return
	}
	if conn, ok := c.registry.Resolve(opponent); ok {
		_ = conn.Send(frame)
	}
}

// Attack applies a hit from playerID. The client's attackerId is ignored.
func (c *Coordinator) Attack(playerID string, req models.AttackRequest) {
	log := c.logger.WithFields(logrus.Fields{"player_id": playerID, "battle_id": req.BattleID})
	bt := c.battleFor(req.BattleID, playerID)
	if bt == nil {
		c.drop(models.EventBattleAttack, "no_battle", logrus.Fields{"player_id": playerID, "battle_id": req.BattleID})
		return
	}
	target, _ := bt.Opponent(playerID)
	if req.TargetID != "" && req.TargetID != target {
		c.drop(models.EventBattleAttack, "bad_target", logrus.Fields{"player_id": playerID, "target_id": req.TargetID})
		return
	}
	if req.AttackerID != "" && req.AttackerID != playerID {
		log.WithField("claimed_attacker_id", req.AttackerID).Warn("attacker id does not match connection, using bound id")
	}

	attacker, _ := bt.Roster(playerID)
	amount, err := c.validator.Validate(attacker, req.Damage)
	if err != nil {
		c.drop(models.EventBattleAttack, "rejected", logrus.Fields{"player_id": playerID, "error": err})
		return
	}

	out := bt.ApplyDamage(playerID, target, amount)
	if !out.Applied {
		c.metrics.dropped(models.EventBattleAttack, "not_applied")
		return
	}

	c.send(target, models.EventBattleDamage, models.DamageNotice{
		BattleID:           bt.ID,
		TargetID:           target,
		Damage:             out.Damage,
		KnockbackDirection: req.KnockbackDirection,
	})
	c.send(playerID, models.EventBattleHealthUpdate, models.HealthUpdate{
		BattleID:           bt.ID,
		TargetID:           target,
		CurrentHealth:      out.TargetHealth,
		MaxHealth:          out.MaxHealth,
		KnockbackDirection: req.KnockbackDirection,
	})
	if out.NextTurn != "" {
		turn := models.TurnNotice{BattleID: bt.ID, CurrentTurn: out.NextTurn}
		c.send(playerID, models.EventBattleTurn, turn)
		c.send(target, models.EventBattleTurn, turn)
	}

	if out.Settlement != nil {
		c.finish(out.Settlement)
	}
}

// Surrender forfeits the player's battle.
func (c *Coordinator) Surrender(playerID string, req models.SurrenderRequest) {
	bt := c.battleFor(req.BattleID, playerID)
	if bt == nil {
		c.metrics.dropped(models.EventBattleSurrender, "no_battle")
		return
	}
	if s := bt.Surrender(playerID); s != nil {
		c.finish(s)
	}
}

// ReportDefeat logs a client's self-reported death. Health is tracked on the
// server, so the report never ends a battle.
func (c *Coordinator) ReportDefeat(playerID string, req models.DefeatedReport) {
	c.logger.WithFields(logrus.Fields{
		"player_id": playerID,
		"battle_id": req.BattleID,
		"winner_id": req.WinnerID,
		"loser_id":  req.LoserID,
	}).Info("client reported defeat")
}

// Invite sends a direct challenge to an online player.
func (c *Coordinator) Invite(playerID string, req models.InviteRequest) {
	if req.TargetID == "" || req.TargetID == playerID {
		c.metrics.dropped(models.EventBattleInvite, "bad_target")
		return
	}
	if c.battleOf(playerID) != nil || c.battleOf(req.TargetID) != nil {
		c.send(playerID, models.EventMatchError, models.MatchError{Code: models.CodeAlreadyInBattle})
		return
	}
	if _, ok := c.registry.Resolve(req.TargetID); !ok {
		c.send(playerID, models.EventMatchError, models.MatchError{Code: models.CodeOpponentOffline})
		return
	}

	inv := Invite{
		ID:        uuid.NewString(),
		FromID:    playerID,
		ToID:      req.TargetID,
		Mode:      models.ParseCombatMode(req.Mode, c.defaultMode),
		CreatedAt: c.now(),
	}
	c.mu.Lock()
	c.invites[inv.ID] = inv
	c.mu.Unlock()

	c.logger.WithFields(logrus.Fields{"player_id": playerID, "target_id": inv.ToID, "invite_id": inv.ID}).Debug("invite sent")
	c.send(inv.ToID, models.EventBattleInviteReceived, models.InviteReceived{InviteID: inv.ID, FromID: playerID, Mode: inv.Mode})
	c.send(playerID, models.EventBattleInviteSent, models.InviteSent{InviteID: inv.ID})
}

// Accept starts the battle for a pending invite addressed to playerID.
func (c *Coordinator) Accept(ctx context.Context, playerID string, req models.AcceptRequest) {
	c.mu.Lock()
	inv, ok := c.invites[req.InviteID]
	if ok && inv.ToID == playerID {
		delete(c.invites, req.InviteID)
	}
	c.mu.Unlock()

	if !ok || inv.ToID != playerID {
		c.metrics.dropped(models.EventBattleAccept, "no_invite")
		return
	}
	if c.now().Sub(inv.CreatedAt) > c.inviteTimeout {
		c.metrics.dropped(models.EventBattleAccept, "expired")
		return
	}
	if _, online := c.registry.Resolve(inv.FromID); !online {
		c.send(playerID, models.EventMatchError, models.MatchError{Code: models.CodeOpponentOffline})
		return
	}

	c.queue.Cancel(inv.FromID)
	c.queue.Cancel(playerID)
	c.metrics.queueSize(c.queue.Len())
	if _, blocked, err := c.startBattle(ctx, inv.FromID, playerID, inv.Mode); err != nil {
		c.logger.WithError(err).WithField("invite_id", inv.ID).Warn("challenge aborted")
		for _, id := range []string{inv.FromID, playerID} {
			if !blocked[id] {
				c.send(id, models.EventMatchError, models.MatchError{Code: models.CodeMatchAborted})
			}
		}
	}
}

// Disconnect unbinds conn and forfeits the player's battle. A connection
// that was already replaced by a newer login changes nothing.
func (c *Coordinator) Disconnect(conn Conn) {
	playerID, ok := c.registry.Unbind(conn)
	if !ok {
		return
	}
	c.metrics.online(c.registry.Online())
	c.logger.WithFields(logrus.Fields{"player_id": playerID, "conn_id": conn.ID()}).Info("player disconnected")
	c.leave(playerID)
}

// leave drops every trace of playerID: queue entry, invites and live battle.
func (c *Coordinator) leave(playerID string) {
	c.queue.Cancel(playerID)
	c.metrics.queueSize(c.queue.Len())

	c.mu.Lock()
	for id, inv := range c.invites {
		if inv.FromID == playerID || inv.ToID == playerID {
			delete(c.invites, id)
		}
	}
	c.mu.Unlock()

	if bt := c.battleOf(playerID); bt != nil {
		if s := bt.Disconnect(playerID); s != nil {
			c.finish(s)
		}
	}
}

// SweepQueue expires stale queue entries and sends each owner exactly one
// match.timeout. It returns the number of expired entries.
func (c *Coordinator) SweepQueue() int {
	stale := c.queue.Sweep(c.now())
	for _, entry := range stale {
		c.logger.WithField("player_id", entry.PlayerID).Info("matchmaking timed out")
		c.sendTo(entry.Conn, models.EventMatchTimeout, nil)
	}
	c.metrics.queueSize(c.queue.Len())
	return len(stale)
}

// ExpireInvites drops invites older than the invite timeout.
func (c *Coordinator) ExpireInvites() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for id, inv := range c.invites {
		if now.Sub(inv.CreatedAt) > c.inviteTimeout {
			delete(c.invites, id)
			n++
		}
	}
	return n
}

// ActiveBattles snapshots every live battle.
func (c *Coordinator) ActiveBattles() []models.BattleSnapshot {
	c.mu.Lock()
	live := make([]*Battle, 0, len(c.battles))
	for _, bt := range c.battles {
		live = append(live, bt)
	}
	c.mu.Unlock()

	out := make([]models.BattleSnapshot, 0, len(live))
	for _, bt := range live {
		out = append(out, bt.Snapshot())
	}
	return out
}

// BattleSnapshot returns the live battle with id.
func (c *Coordinator) BattleSnapshot(id string) (models.BattleSnapshot, bool) {
	c.mu.Lock()
	bt, ok := c.battles[id]
	c.mu.Unlock()
	if !ok {
		return models.BattleSnapshot{}, false
	}
	return bt.Snapshot(), true
}

// QueueLen is the number of waiting players.
func (c *Coordinator) QueueLen() int {
	return c.queue.Len()
}

// Shutdown stops every live battle without settling it.
func (c *Coordinator) Shutdown() {
	c.mu.Lock()
	live := c.battles
	c.battles = make(map[string]*Battle)
	c.inBattle = make(map[string]string)
	c.mu.Unlock()

	for _, bt := range live {
		bt.Stop()
	}
	c.logger.WithField("battles", len(live)).Info("coordinator stopped")
}

// startBattle snapshots both players and registers the battle. Snapshots
// are read outside the lock; the reservation re-checks, under the same lock
// that disconnects resolve battles through, that both players are still
// online and neither entered another battle meanwhile. On failure it returns
// the players that blocked the pairing and tells only them why; the caller
// decides what happens to the other one.
func (c *Coordinator) startBattle(ctx context.Context, aID, bID string, mode models.CombatMode) (*Battle, map[string]bool, error) {
	ids := [2]string{aID, bID}
	var snaps [2]models.PlayerSnapshot
	for i, id := range ids {
		snap, err := c.players.GetPlayerSnapshot(ctx, id)
		if err != nil {
			c.send(id, models.EventMatchError, models.MatchError{Code: models.CodeMatchAborted})
			return nil, map[string]bool{id: true}, eris.Wrapf(err, "snapshot %s", id)
		}
		snaps[i] = snap
	}

	id := uuid.NewString()
	bt := NewBattle(id, snaps[0], snaps[1], BattleOptions{
		Mode:        mode,
		TurnTimeout: c.turnTimeout,
		OnTurn: func(n models.TurnNotice) {
			for _, pid := range ids {
				c.send(pid, models.EventBattleTurn, n)
			}
		},
	})

	c.mu.Lock()
	offline, busy := map[string]bool{}, map[string]bool{}
	for _, pid := range ids {
		if _, ok := c.registry.Resolve(pid); !ok {
			offline[pid] = true
		} else if _, ok := c.inBattle[pid]; ok {
			busy[pid] = true
		}
	}
	if len(offline) > 0 || len(busy) > 0 {
		c.mu.Unlock()
		bt.Stop()
		for pid := range busy {
			c.send(pid, models.EventMatchError, models.MatchError{Code: models.CodeAlreadyInBattle})
		}
		if len(offline) > 0 {
			for pid := range busy {
				offline[pid] = true
			}
			return nil, offline, ErrOpponentOffline
		}
		return nil, busy, ErrAlreadyInBattle
	}
	c.battles[id] = bt
	c.inBattle[aID] = id
	c.inBattle[bID] = id
	c.mu.Unlock()

	c.metrics.battleStarted(string(mode))
	c.logger.WithFields(logrus.Fields{
		"battle_id": id,
		"mode":      mode,
		"player_a":  aID,
		"player_b":  bID,
	}).Info("battle started")

	snap := bt.Snapshot()
	start := models.BattleStart{
		BattleID:     id,
		Mode:         mode,
		Participants: snap.Participants,
		CurrentTurn:  snap.CurrentTurn,
	}
	for _, pid := range ids {
		c.send(pid, models.EventBattleStart, start)
	}
	return bt, nil, nil
}

// finish discards the battle, tells both sides how it ended and hands the
// settlement to the sink. It runs once per battle because only one caller
// ever receives the settlement.
func (c *Coordinator) finish(s *models.Settlement) {
	c.mu.Lock()
	delete(c.battles, s.BattleID)
	for _, pid := range []string{s.WinnerID, s.LoserID} {
		if c.inBattle[pid] == s.BattleID {
			delete(c.inBattle, pid)
		}
	}
	c.mu.Unlock()

	c.metrics.battleEnded(string(s.Mode), string(s.Reason))
	c.logger.WithFields(logrus.Fields{
		"battle_id": s.BattleID,
		"winner_id": s.WinnerID,
		"loser_id":  s.LoserID,
		"reason":    s.Reason,
	}).Info("battle ended")

	end := models.BattleEnd{
		WinnerID:       s.WinnerID,
		LoserID:        s.LoserID,
		Reason:         s.Reason,
		BattleSnapshot: s.Snapshot,
	}
	end.Result, end.Rewards = models.ResultVictory, RewardsFor(true)
	c.send(s.WinnerID, models.EventBattleEnd, end)
	end.Result, end.Rewards = models.ResultDefeat, RewardsFor(false)
	c.send(s.LoserID, models.EventBattleEnd, end)

	if c.settlements == nil {
		return
	}
	if !c.settlements.Enqueue(*s) {
		c.metrics.SettlementResult("dropped")
		c.logger.WithField("battle_id", s.BattleID).Error("settlement queue full, result not persisted")
	}
}

func (c *Coordinator) battleOf(playerID string) *Battle {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id, ok := c.inBattle[playerID]; ok {
		return c.battles[id]
	}
	return nil
}

// battleFor resolves the battle an event refers to. An empty battleId means
// the player's current battle; a battle the player is not in is a miss.
func (c *Coordinator) battleFor(battleID, playerID string) *Battle {
	c.mu.Lock()
	defer c.mu.Unlock()
	if battleID == "" {
		battleID = c.inBattle[playerID]
	}
	bt, ok := c.battles[battleID]
	if !ok || !bt.Has(playerID) {
		return nil
	}
	return bt
}

func (c *Coordinator) send(playerID, event string, payload any) {
	conn, ok := c.registry.Resolve(playerID)
	if !ok {
		return
	}
	c.sendTo(conn, event, payload)
}

func (c *Coordinator) sendTo(conn Conn, event string, payload any) {
	if conn == nil {
		return
	}
	frame, err := utils.Encode(event, payload)
	if err != nil {
		c.logger.WithError(err).WithField("event", event).Error("unable to encode event")
		return
	}
	if err := conn.Send(frame); err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{"conn_id": conn.ID(), "event": event}).Debug("send dropped")
	}
}

func (c *Coordinator) drop(event, reason string, fields logrus.Fields) {
	c.metrics.dropped(event, reason)
	c.logger.WithFields(fields).WithFields(logrus.Fields{"event": event, "reason": reason}).Debug("event dropped")
}
