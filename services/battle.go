package services

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"pvp-battle-server/models"
)

const (
	DefaultTurnTimeout = 30 * time.Second
	HealthPerEndurance = 10
)

// MaxHealth derives a participant's health pool from the endurance snapshot.
// Endurance below 1 counts as 1 so nobody starts a battle already dead.
func MaxHealth(endurance int) int {
	if endurance < 1 {
		endurance = 1
	}
	return endurance * HealthPerEndurance
}

// RollTurnDamage is the server-side roll used by turn battles when the
// attacker does not declare an amount: max(1, str*2 - end) scaled by a
// multiplier drawn from [0.9, 1.0], floored, never below 1.
func RollTurnDamage(attacker, defender models.Attributes, rng *rand.Rand) int {
	base := attacker.Strength*2 - defender.Endurance
	if base < 1 {
		base = 1
	}
	mult := 0.9 + rng.Float64()*0.1
	dmg := int(math.Floor(float64(base) * mult))
	if dmg < 1 {
		dmg = 1
	}
	return dmg
}

// AttackOutcome is what ApplyDamage reports back. Settlement is non-nil only
// for the single call that ended the battle.
type AttackOutcome struct {
	Applied      bool
	Damage       int
	TargetHealth int
	MaxHealth    int
	Lethal       bool
	NextTurn     string
	Settlement   *models.Settlement
}

// BattleOptions tunes a battle at creation.
type BattleOptions struct {
	Mode        models.CombatMode
	TurnTimeout time.Duration
	FirstTurn   string                  // turn mode; defaults to the first participant
	OnTurn      func(models.TurnNotice) // turn timeouts only; called from the battle goroutine, must not call back into the battle
	Rand        *rand.Rand
	Now         func() time.Time
}

type participant struct {
	snapshot  models.PlayerSnapshot
	health    int
	maxHealth int
	position  models.Position
}

// Battle is the authoritative state of one 1v1 encounter. All state is owned
// by a single goroutine; callers talk to it through typed commands, so every
// mutation for one battle is serialized while different battles run in
// parallel. Once ended, every command is a silent no-op.
type Battle struct {
	ID   string
	Mode models.CombatMode

	ids    [2]string // immutable after creation
	roster [2]models.PlayerSnapshot
	inbox  chan any
	done   chan struct{}
	quit   chan struct{}
	stop   sync.Once

	// owned by run()
	players     [2]*participant
	status      models.BattleStatus
	outcome     *models.Outcome
	currentTurn string
	turnTimeout time.Duration
	turnTimer   *time.Timer
	actions     []models.ActionEntry
	startedAt   time.Time
	endedAt     *time.Time
	onTurn      func(models.TurnNotice)
	rng         *rand.Rand
	now         func() time.Time

	// written once before done is closed
	final models.BattleSnapshot
}

type damageCmd struct {
	attackerID string
	targetID   string
	amount     int
	reply      chan AttackOutcome
}

type positionCmd struct {
	playerID string
	position models.Position
	reply    chan bool
}

type forfeitCmd struct {
	playerID string
	reason   models.EndReason
	reply    chan *models.Settlement
}

type endCmd struct {
	winnerID string
	loserID  string
	reason   models.EndReason
	reply    chan *models.Settlement
}

type snapshotCmd struct {
	reply chan models.BattleSnapshot
}

// NewBattle creates the battle and starts its goroutine.
func NewBattle(id string, a, b models.PlayerSnapshot, opts BattleOptions) *Battle {
	if opts.Mode == "" {
		opts.Mode = models.ModeRealtime
	}
	if opts.TurnTimeout <= 0 {
		opts.TurnTimeout = DefaultTurnTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(opts.Now().UnixNano()))
	}

	bt := &Battle{
		ID:          id,
		Mode:        opts.Mode,
		ids:         [2]string{a.ID, b.ID},
		roster:      [2]models.PlayerSnapshot{a, b},
		inbox:       make(chan any),
		done:        make(chan struct{}),
		quit:        make(chan struct{}),
		status:      models.BattleActive,
		turnTimeout: opts.TurnTimeout,
		startedAt:   opts.Now(),
		onTurn:      opts.OnTurn,
		rng:         opts.Rand,
		now:         opts.Now,
	}
	for i, snap := range []models.PlayerSnapshot{a, b} {
		hp := MaxHealth(snap.Attributes.Endurance)
		bt.players[i] = &participant{snapshot: snap, health: hp, maxHealth: hp}
	}
	if bt.Mode == models.ModeTurn {
		bt.currentTurn = a.ID
		if opts.FirstTurn == b.ID {
			bt.currentTurn = b.ID
		}
		bt.turnTimer = time.NewTimer(bt.turnTimeout)
	}

	go bt.run()
	return bt
}

// Participants returns both player ids in creation order.
func (b *Battle) Participants() [2]string {
	return b.ids
}

// Has reports whether playerID fights in this battle.
func (b *Battle) Has(playerID string) bool {
	return b.ids[0] == playerID || b.ids[1] == playerID
}

// Opponent returns the other participant.
func (b *Battle) Opponent(playerID string) (string, bool) {
	switch playerID {
	case b.ids[0]:
		return b.ids[1], true
	case b.ids[1]:
		return b.ids[0], true
	}
	return "", false
}

// Roster returns the snapshot playerID entered the battle with.
func (b *Battle) Roster(playerID string) (models.PlayerSnapshot, bool) {
	for _, snap := range b.roster {
		if snap.ID == playerID {
			return snap, true
		}
	}
	return models.PlayerSnapshot{}, false
}

// Done is closed once the battle has ended or been stopped.
func (b *Battle) Done() <-chan struct{} {
	return b.done
}

// ApplyDamage clamps the target's health at zero. A lethal hit ends the
// battle in the same step, so of two simultaneous killing blows only the
// first one committed counts.
func (b *Battle) ApplyDamage(attackerID, targetID string, amount int) AttackOutcome {
	reply := make(chan AttackOutcome, 1)
	out, _ := call(b, damageCmd{attackerID: attackerID, targetID: targetID, amount: amount, reply: reply}, reply)
	return out
}

// RecordPosition stores advisory position state for playerID.
func (b *Battle) RecordPosition(playerID string, pos models.Position) bool {
	reply := make(chan bool, 1)
	ok, _ := call(b, positionCmd{playerID: playerID, position: pos, reply: reply}, reply)
	return ok
}

// Surrender ends the battle with the other participant as winner.
func (b *Battle) Surrender(playerID string) *models.Settlement {
	return b.forfeit(playerID, models.EndSurrender)
}

// Disconnect is a forfeit: a dropped connection loses, there is no resume.
func (b *Battle) Disconnect(playerID string) *models.Settlement {
	return b.forfeit(playerID, models.EndDisconnect)
}

func (b *Battle) forfeit(playerID string, reason models.EndReason) *models.Settlement {
	reply := make(chan *models.Settlement, 1)
	s, _ := call(b, forfeitCmd{playerID: playerID, reason: reason, reply: reply}, reply)
	return s
}

// End is idempotent: only the first call on an active battle returns a settlement.
func (b *Battle) End(winnerID, loserID string) *models.Settlement {
	reply := make(chan *models.Settlement, 1)
	s, _ := call(b, endCmd{winnerID: winnerID, loserID: loserID, reason: models.EndForced, reply: reply}, reply)
	return s
}

// Snapshot returns the live state, or the final state once the battle is over.
func (b *Battle) Snapshot() models.BattleSnapshot {
	reply := make(chan models.BattleSnapshot, 1)
	if s, ok := call(b, snapshotCmd{reply: reply}, reply); ok {
		return s
	}
	<-b.done
	return b.final
}

// Stop terminates the goroutine without settling. Used on shutdown.
func (b *Battle) Stop() {
	b.stop.Do(func() { close(b.quit) })
}

// call hands cmd to the battle goroutine and waits for its reply. The
// battle replies before closing done, so a reply is never lost to the race
// between the two channels.
func call[R any](b *Battle, cmd any, reply chan R) (R, bool) {
	var zero R
	select {
	case b.inbox <- cmd:
	case <-b.done:
		return zero, false
	}
	select {
	case r := <-reply:
		return r, true
	case <-b.done:
		select {
		case r := <-reply:
			return r, true
		default:
			return zero, false
		}
	}
}

func (b *Battle) run() {
	defer close(b.done)

	var timerC <-chan time.Time
	for {
		timerC = nil
		if b.turnTimer != nil {
			timerC = b.turnTimer.C
		}

		select {
		case cmd := <-b.inbox:
			b.handleCommand(cmd)
		case <-timerC:
			b.turnTimedOut()
		case <-b.quit:
			if b.turnTimer != nil {
				b.turnTimer.Stop()
			}
			b.final = b.snapshot()
			return
		}

		if b.status == models.BattleEnded {
			b.final = b.snapshot()
			return
		}
	}
}

func (b *Battle) handleCommand(cmd any) {
	switch c := cmd.(type) {
	case damageCmd:
		c.reply <- b.applyDamage(c)
	case positionCmd:
		p := b.participant(c.playerID)
		if b.status != models.BattleActive || p == nil {
			c.reply <- false
			return
		}
		p.position = c.position
		c.reply <- true
	case forfeitCmd:
		winner, ok := b.Opponent(c.playerID)
		if !ok || b.status != models.BattleActive {
			c.reply <- nil
			return
		}
		kind := models.ActionSurrender
		if c.reason == models.EndDisconnect {
			kind = models.ActionDisconnect
		}
		b.log(models.ActionEntry{Kind: kind, ActorID: c.playerID})
		c.reply <- b.end(winner, c.playerID, c.reason)
	case endCmd:
		if !b.Has(c.winnerID) || !b.Has(c.loserID) || c.winnerID == c.loserID {
			c.reply <- nil
			return
		}
		c.reply <- b.end(c.winnerID, c.loserID, c.reason)
	case snapshotCmd:
		c.reply <- b.snapshot()
	}
}

func (b *Battle) applyDamage(c damageCmd) AttackOutcome {
	if b.status != models.BattleActive {
		return AttackOutcome{}
	}
	attacker := b.participant(c.attackerID)
	target := b.participant(c.targetID)
	if attacker == nil || target == nil || attacker == target {
		return AttackOutcome{}
	}
	if b.Mode == models.ModeTurn && b.currentTurn != c.attackerID {
		return AttackOutcome{}
	}

	amount := c.amount
	if b.Mode == models.ModeTurn && amount == 0 {
		amount = RollTurnDamage(attacker.snapshot.Attributes, target.snapshot.Attributes, b.rng)
	}
	if amount < 0 {
		amount = 0
	}

	target.health -= amount
	if target.health < 0 {
		target.health = 0
	}
	b.log(models.ActionEntry{
		Kind:        models.ActionDamage,
		ActorID:     c.attackerID,
		TargetID:    c.targetID,
		Amount:      amount,
		HealthAfter: target.health,
	})

	out := AttackOutcome{
		Applied:      true,
		Damage:       amount,
		TargetHealth: target.health,
		MaxHealth:    target.maxHealth,
		Lethal:       target.health == 0,
	}
	if out.Lethal {
		out.Settlement = b.end(c.attackerID, c.targetID, models.EndLethal)
		return out
	}
	if b.Mode == models.ModeTurn {
		b.passTurn(c.targetID)
		out.NextTurn = b.currentTurn
	}
	return out
}

func (b *Battle) turnTimedOut() {
	if b.status != models.BattleActive || b.Mode != models.ModeTurn {
		return
	}
	next, _ := b.Opponent(b.currentTurn)
	b.log(models.ActionEntry{Kind: models.ActionTurnTimeout, ActorID: b.currentTurn})
	b.passTurn(next)
	if b.onTurn != nil {
		b.onTurn(models.TurnNotice{BattleID: b.ID, CurrentTurn: next})
	}
}

// passTurn hands the turn over and restarts the soft timer. Attack-driven
// passes are reported through AttackOutcome.NextTurn.
func (b *Battle) passTurn(next string) {
	b.currentTurn = next
	b.turnTimer.Reset(b.turnTimeout)
}

func (b *Battle) end(winnerID, loserID string, reason models.EndReason) *models.Settlement {
	if b.status != models.BattleActive {
		return nil
	}
	now := b.now()
	b.status = models.BattleEnded
	b.outcome = &models.Outcome{WinnerID: winnerID, LoserID: loserID, Reason: reason}
	b.endedAt = &now
	if b.turnTimer != nil {
		b.turnTimer.Stop()
	}
	b.log(models.ActionEntry{Kind: models.ActionEnd, ActorID: winnerID, TargetID: loserID})

	return &models.Settlement{
		BattleID: b.ID,
		Mode:     b.Mode,
		WinnerID: winnerID,
		LoserID:  loserID,
		Reason:   reason,
		Snapshot: b.snapshot(),
		EndedAt:  now,
	}
}

func (b *Battle) log(entry models.ActionEntry) {
	entry.At = b.now()
	b.actions = append(b.actions, entry)
}

func (b *Battle) participant(playerID string) *participant {
	for _, p := range b.players {
		if p.snapshot.ID == playerID {
			return p
		}
	}
	return nil
}

func (b *Battle) snapshot() models.BattleSnapshot {
	snap := models.BattleSnapshot{
		BattleID:     b.ID,
		Mode:         b.Mode,
		Status:       b.status,
		Participants: make([]models.ParticipantView, 0, len(b.players)),
		CurrentTurn:  b.currentTurn,
		Actions:      append([]models.ActionEntry(nil), b.actions...),
		StartedAt:    b.startedAt,
	}
	for _, p := range b.players {
		snap.Participants = append(snap.Participants, models.ParticipantView{
			PlayerSnapshot: p.snapshot,
			CurrentHealth:  p.health,
			MaxHealth:      p.maxHealth,
			Position:       p.position,
		})
	}
	if b.outcome != nil {
		o := *b.outcome
		snap.Outcome = &o
	}
	if b.endedAt != nil {
		t := *b.endedAt
		snap.EndedAt = &t
	}
	return snap
}
