package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/cardgpt/internal/client/client"
	"github.com/dmitrijs2005/cardgpt/internal/client/models"
	"github.com/dmitrijs2005/cardgpt/internal/logging"
)

// DefaultRevealInterval paces the staged reveal.
const DefaultRevealInterval = 300 * time.Millisecond

const defaultCurrentFilename = "cards.pdf"

// Generator failures are validation errors whose kind is one of these, so
// they match both the kind and client.ErrValidation with errors.Is.
var (
	// ErrCycleConflict rejects a generation of one kind while a cycle of the
	// other kind is still running.
	ErrCycleConflict = fmt.Errorf("cycle conflict: %w", client.ErrValidation)

	// ErrNoResult is returned by artifact operations before anything was generated.
	ErrNoResult = fmt.Errorf("no result: %w", client.ErrValidation)
)

const (
	msgCycleConflict = "another kind of generation is in progress"
	msgNoResult      = "nothing has been generated yet"
)

// GenState is the phase of the current generation cycle.
type GenState int

const (
	StateIdle GenState = iota
	StateGenerating
	StateRevealing
	StateFailed
)

func (s GenState) String() string {
	switch s {
	case StateGenerating:
		return "generating"
	case StateRevealing:
		return "revealing"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// CycleKind tells plain generation from generation persisted by the server.
type CycleKind int

const (
	KindGenerate CycleKind = iota
	KindGenerateAndPersist
)

// Snapshot is a consistent copy of the generator state.
type Snapshot struct {
	Cycle    uint64
	Kind     CycleKind
	State    GenState
	Result   *models.GenerationResult
	Revealed []models.WordPair
	// Message is the human-readable failure text in StateFailed.
	Message string
	Err     error
}

// Settled reports whether the cycle has nothing left to do.
func (s Snapshot) Settled() bool {
	return s.State == StateIdle || s.State == StateFailed
}

// IdentitySource is the part of SessionStore the generator depends on.
type IdentitySource interface {
	Identity() models.Identity
}

// GeneratorOption customizes a Generator.
type GeneratorOption func(*Generator)

// WithClock replaces the real clock.
func WithClock(c Clock) GeneratorOption {
	return func(g *Generator) { g.clock = c }
}

// WithRevealInterval sets the delay between revealed pairs.
func WithRevealInterval(d time.Duration) GeneratorOption {
	return func(g *Generator) {
		if d > 0 {
			g.interval = d
		}
	}
}

// Generator runs generation cycles and their staged reveal. A new cycle
// supersedes the previous one: its request is cancelled and its pending
// reveal step is stopped and, if already firing, discarded by cycle id.
type Generator struct {
	client   client.Client
	session  IdentitySource
	log      logging.Logger
	clock    Clock
	interval time.Duration

	mu        sync.Mutex
	cycle     uint64
	kind      CycleKind
	state     GenState
	result    *models.GenerationResult
	revealed  []models.WordPair
	message   string
	err       error
	cancel    context.CancelFunc
	timer     Timer
	settled   chan struct{}
	observers []func(Snapshot)
	seq       uint64

	// notifyMu serializes observer calls; delivered is the seq of the last
	// snapshot handed to them.
	notifyMu  sync.Mutex
	delivered uint64
}

// change is a state change waiting to be delivered to observers.
type change struct {
	seq       uint64
	snap      Snapshot
	observers []func(Snapshot)
}

func NewGenerator(c client.Client, session IdentitySource, log logging.Logger, opts ...GeneratorOption) *Generator {
	settled := make(chan struct{})
	close(settled)

	g := &Generator{
		client:   c,
		session:  session,
		log:      log.With("component", "generator"),
		clock:    RealClock(),
		interval: DefaultRevealInterval,
		settled:  settled,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// OnChange registers fn to be called after state changes. Calls are
// serialized and in order: a snapshot older than one already delivered is
// dropped, so observers never see the reveal shrink within a cycle. fn runs
// outside the generator lock, must not block for long and must not start or
// stop a cycle.
func (g *Generator) OnChange(fn func(Snapshot)) {
	g.mu.Lock()
	g.observers = append(g.observers, fn)
	g.mu.Unlock()
}

// Generate starts a plain generation cycle and returns its id.
func (g *Generator) Generate(ctx context.Context, category string, pairCount int) (uint64, error) {
	return g.start(ctx, KindGenerate, category, pairCount)
}

// GenerateAndPersist starts a cycle whose result the server saves together
// with generating it. It requires an authenticated session.
func (g *Generator) GenerateAndPersist(ctx context.Context, category string, pairCount int) (uint64, error) {
	if !g.session.Identity().Authenticated {
		return 0, &client.APIError{Kind: client.ErrUnauthorized, Message: "log in to save cards"}
	}
	return g.start(ctx, KindGenerateAndPersist, category, pairCount)
}

func (g *Generator) start(ctx context.Context, kind CycleKind, category string, pairCount int) (uint64, error) {
	pairCount = models.ClampPairCount(pairCount)
	category = strings.TrimSpace(category)

	g.mu.Lock()
	if g.activeLocked() && g.kind != kind {
		g.mu.Unlock()
		return 0, &client.APIError{Kind: ErrCycleConflict, Message: msgCycleConflict}
	}

	g.stopLocked()

	g.cycle++
	id := g.cycle
	reqCtx, cancel := context.WithCancel(ctx)
	g.cancel = cancel
	g.kind = kind
	g.state = StateGenerating
	g.result = nil
	g.revealed = nil
	g.message = ""
	g.err = nil
	g.settled = make(chan struct{})
	ch := g.changedLocked()
	g.mu.Unlock()

	g.log.Debug(ctx, "generation started", "cycle", id, "category", category, "pairs", pairCount)
	g.notify(ch)

	go g.run(reqCtx, id, kind, category, pairCount)
	return id, nil
}

func (g *Generator) run(ctx context.Context, id uint64, kind CycleKind, category string, pairCount int) {
	result, err := g.fetch(ctx, kind, category, pairCount)

	g.mu.Lock()
	if id != g.cycle {
		g.mu.Unlock()
		g.log.Debug(ctx, "discarding superseded response", "cycle", id)
		return
	}

	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}

	if err != nil {
		g.state = StateFailed
		g.err = err
		g.message = client.Message(err, client.ErrNetwork.Error())
		if client.IsCanceled(err) {
			g.message = "generation canceled"
		}
		g.closeSettledLocked()
		ch := g.changedLocked()
		g.mu.Unlock()

		g.log.Warn(ctx, "generation failed", "cycle", id, "error", err)
		g.notify(ch)
		return
	}

	g.result = result
	g.state = StateRevealing
	g.revealNextLocked(id)
	ch := g.changedLocked()
	g.mu.Unlock()

	g.log.Info(ctx, "generation succeeded", "cycle", id, "pairs", len(result.Pairs))
	g.notify(ch)
}

func (g *Generator) fetch(ctx context.Context, kind CycleKind, category string, pairCount int) (*models.GenerationResult, error) {
	if kind == KindGenerateAndPersist {
		res, err := g.client.GenerateAndSave(ctx, category, pairCount)
		if err != nil {
			return nil, err
		}
		filename := res.PDFFilename
		if filename == "" {
			filename = savedFilename(res.CardID)
		}
		return &models.GenerationResult{
			Category: category,
			Pairs:    res.Pairs,
			CardID:   res.CardID,
			Artifact: g.client.ArtifactRef(client.CardArtifactPath(res.CardID), filename),
		}, nil
	}

	pairs, err := g.client.Generate(ctx, category, pairCount)
	if err != nil {
		return nil, err
	}
	return &models.GenerationResult{
		Category: category,
		Pairs:    pairs,
		Artifact: g.client.ArtifactRef(client.CurrentArtifactPath, defaultCurrentFilename),
	}, nil
}

// revealStep is the timer callback of cycle id.
func (g *Generator) revealStep(id uint64) {
	g.mu.Lock()
	if id != g.cycle || g.state != StateRevealing {
		g.mu.Unlock()
		return
	}
	g.revealNextLocked(id)
	ch := g.changedLocked()
	g.mu.Unlock()

	g.notify(ch)
}

// revealNextLocked appends the next pair and schedules the step after it.
// Each step schedules its successor, so pairs appear strictly in order.
func (g *Generator) revealNextLocked(id uint64) {
	g.timer = nil
	if n := len(g.revealed); n < len(g.result.Pairs) {
		g.revealed = append(g.revealed, g.result.Pairs[n])
	}
	if len(g.revealed) == len(g.result.Pairs) {
		g.state = StateIdle
		g.closeSettledLocked()
		return
	}
	g.timer = g.clock.AfterFunc(g.interval, func() { g.revealStep(id) })
}

// Acknowledge returns a failed generator to idle.
func (g *Generator) Acknowledge() {
	g.mu.Lock()
	if g.state != StateFailed {
		g.mu.Unlock()
		return
	}
	g.state = StateIdle
	g.message = ""
	g.err = nil
	ch := g.changedLocked()
	g.mu.Unlock()

	g.notify(ch)
}

// ResolveArtifact returns the locator of the current result's rendering.
func (g *Generator) ResolveArtifact() (models.ArtifactRef, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.result == nil {
		return models.ArtifactRef{}, &client.APIError{Kind: ErrNoResult, Message: msgNoResult}
	}
	return g.result.Artifact, nil
}

// Download fetches the rendering of the current result.
func (g *Generator) Download(ctx context.Context) (*models.Artifact, error) {
	ref, err := g.ResolveArtifact()
	if err != nil {
		return nil, err
	}
	return g.client.Download(ctx, ref)
}

// Result returns the current result, or nil.
func (g *Generator) Result() *models.GenerationResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	return copyResult(g.result)
}

func (g *Generator) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshotLocked()
}

// Wait blocks until the current cycle settles, following any cycle that
// supersedes it meanwhile.
func (g *Generator) Wait(ctx context.Context) (Snapshot, error) {
	for {
		g.mu.Lock()
		ch := g.settled
		g.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return g.Snapshot(), ctx.Err()
		}

		g.mu.Lock()
		if ch == g.settled {
			snap := g.snapshotLocked()
			g.mu.Unlock()
			return snap, nil
		}
		g.mu.Unlock()
	}
}

// Stop cancels the running cycle, if any, leaving the generator idle.
func (g *Generator) Stop() {
	g.mu.Lock()
	if !g.activeLocked() {
		g.mu.Unlock()
		return
	}
	g.stopLocked()
	g.cycle++
	g.state = StateIdle
	g.result = nil
	g.revealed = nil
	ch := g.changedLocked()
	g.mu.Unlock()

	g.notify(ch)
}

func (g *Generator) activeLocked() bool {
	return g.state == StateGenerating || g.state == StateRevealing
}

// stopLocked cancels the in-flight request and the pending reveal step.
func (g *Generator) stopLocked() {
	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	g.closeSettledLocked()
}

func (g *Generator) closeSettledLocked() {
	select {
	case <-g.settled:
	default:
		close(g.settled)
	}
}

func (g *Generator) snapshotLocked() Snapshot {
	var revealed []models.WordPair
	if len(g.revealed) > 0 {
		revealed = make([]models.WordPair, len(g.revealed))
		copy(revealed, g.revealed)
	}
	return Snapshot{
		Cycle:    g.cycle,
		Kind:     g.kind,
		State:    g.state,
		Result:   copyResult(g.result),
		Revealed: revealed,
		Message:  g.message,
		Err:      g.err,
	}
}

func copyResult(r *models.GenerationResult) *models.GenerationResult {
	if r == nil {
		return nil
	}
	out := *r
	out.Pairs = append([]models.WordPair(nil), r.Pairs...)
	return &out
}

// changedLocked stamps a state change with the next sequence number.
func (g *Generator) changedLocked() change {
	g.seq++
	return change{seq: g.seq, snap: g.snapshotLocked(), observers: g.observers}
}

// notify hands ch to the observers unless a later change got there first.
func (g *Generator) notify(ch change) {
	g.notifyMu.Lock()
	defer g.notifyMu.Unlock()
	if ch.seq <= g.delivered {
		return
	}
	g.delivered = ch.seq
	for _, fn := range ch.observers {
		fn(ch.snap)
	}
}
