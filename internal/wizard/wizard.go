// Package wizard holds the three-step visualization flow for one visitor
// session: kitchen photo selection, slab selection and result accumulation.
// Completed results are cached per slab id and survive back-navigation and
// retries; a failed slab never disturbs its siblings.
package wizard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/slabworks/visualizer/internal/domain"
)

type Step string

const (
	StepSelectKitchen   Step = "select_kitchen"
	StepSelectMaterials Step = "select_materials"
	StepResults         Step = "results"
)

// MaxSelectedSlabs caps how many slabs may be queued for one generation run.
const MaxSelectedSlabs = 3

var (
	ErrNoKitchenImage     = errors.New("no kitchen image selected")
	ErrNoSelection        = errors.New("no slabs selected")
	ErrSelectionLimit     = errors.New("selection limit reached")
	ErrAlreadyGenerated   = errors.New("slab already has a generated result")
	ErrUnknownSlab        = errors.New("unknown slab")
	ErrGenerationInFlight = errors.New("generation already in flight for slab")
)

// Result is the outcome of one generation attempt for one slab. Exactly one
// of ImageData / Error is set once Loading is false.
type Result struct {
	SlabID    string `json:"slabId"`
	SlabName  string `json:"slabName"`
	ImageData string `json:"imageData,omitempty"`
	Loading   bool   `json:"isLoading"`
	Error     string `json:"error,omitempty"`
}

// RunFunc resolves one slab against one kitchen image. It never fails
// outward: any error is folded into the returned Result.
type RunFunc func(ctx context.Context, kitchenImage string, slab domain.SlabOption) Result

// Session is the per-visitor wizard state machine. All methods are safe for
// concurrent use; generation completions are applied asynchronously.
type Session struct {
	mu  sync.Mutex
	run RunFunc

	step     Step
	kitchen  string
	selected []domain.SlabOption
	slabs    map[string]domain.SlabOption

	current   map[string]Result
	persisted map[string]Result
	order     []string

	inflight map[string]bool
	closed   bool
	lastSeen time.Time

	wg sync.WaitGroup
}

func NewSession(run RunFunc) *Session {
	return &Session{
		run:       run,
		step:      StepSelectKitchen,
		slabs:     map[string]domain.SlabOption{},
		current:   map[string]Result{},
		persisted: map[string]Result{},
		inflight:  map[string]bool{},
		lastSeen:  time.Now(),
	}
}

// SelectKitchen sets the base photo and advances to slab selection. Picking
// a different photo invalidates every previously generated composite;
// re-picking the same one keeps them.
func (s *Session) SelectKitchen(image string) error {
	if image == "" {
		return ErrNoKitchenImage
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	s.current = map[string]Result{}
	if image != s.kitchen {
		s.persisted = map[string]Result{}
		s.order = nil
	}
	s.kitchen = image
	s.step = StepSelectMaterials
	return nil
}

// ToggleSlab adds or removes a slab from the pending selection. Slabs that
// already have a persisted result are not selectable again.
func (s *Session) ToggleSlab(slab domain.SlabOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	for i, sel := range s.selected {
		if sel.ID == slab.ID {
			s.selected = append(s.selected[:i], s.selected[i+1:]...)
			return nil
		}
	}
	if _, done := s.persisted[slab.ID]; done {
		return ErrAlreadyGenerated
	}
	if len(s.selected) >= MaxSelectedSlabs {
		return ErrSelectionLimit
	}
	s.selected = append(s.selected, slab)
	s.slabs[slab.ID] = slab
	return nil
}

// Generate seeds a loading placeholder per newly selected slab, advances to
// the results step and resolves every pending slab concurrently. When
// nothing new is selected it falls through to the existing results.
func (s *Session) Generate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	if s.kitchen == "" {
		return ErrNoKitchenImage
	}

	var pending []domain.SlabOption
	for _, slab := range s.selected {
		if _, done := s.persisted[slab.ID]; done {
			continue
		}
		if s.inflight[slab.ID] {
			continue
		}
		pending = append(pending, slab)
	}
	if len(pending) == 0 {
		if len(s.persisted) == 0 {
			return ErrNoSelection
		}
		s.step = StepResults
		return nil
	}

	for _, slab := range pending {
		s.seedLocked(slab)
		s.launchLocked(ctx, slab)
	}
	s.step = StepResults
	return nil
}

// Retry re-runs exactly one slab, replacing only that slab's entry in the
// current and persisted collections.
func (s *Session) Retry(ctx context.Context, slabID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	if s.kitchen == "" {
		return ErrNoKitchenImage
	}
	slab, ok := s.slabs[slabID]
	if !ok {
		return ErrUnknownSlab
	}
	if s.inflight[slabID] {
		return ErrGenerationInFlight
	}
	s.seedLocked(slab)
	s.launchLocked(ctx, slab)
	return nil
}

// Back steps to the previous screen without discarding results.
func (s *Session) Back() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	switch s.step {
	case StepResults:
		s.step = StepSelectMaterials
	case StepSelectMaterials:
		s.step = StepSelectKitchen
	}
}

// Reset returns to slab selection, dropping the pending selection but
// keeping the kitchen image and every completed result.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	s.step = StepSelectMaterials
	s.selected = nil
	s.current = map[string]Result{}
}

// Close marks the session abandoned. Completions arriving afterwards are
// discarded instead of mutating state.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// Wait blocks until every launched generation has resolved. Used by tests
// and graceful shutdown; the HTTP flow polls State instead.
func (s *Session) Wait() { s.wg.Wait() }

func (s *Session) seedLocked(slab domain.SlabOption) {
	r := Result{SlabID: slab.ID, SlabName: slab.Name, Loading: true}
	if _, seen := s.current[slab.ID]; !seen {
		if _, done := s.persisted[slab.ID]; !done {
			s.order = append(s.order, slab.ID)
		}
	}
	s.current[slab.ID] = r
	s.inflight[slab.ID] = true
}

func (s *Session) launchLocked(ctx context.Context, slab domain.SlabOption) {
	kitchen := s.kitchen
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		res := s.run(ctx, kitchen, slab)
		s.apply(slab.ID, kitchen, res)
	}()
}

// apply merges one completion. Last write wins per slab id; a completion for
// a kitchen image that is no longer current is stale and dropped.
func (s *Session) apply(slabID, kitchen string, res Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, slabID)
	if s.closed || kitchen != s.kitchen {
		return
	}
	res.Loading = false
	res.SlabID = slabID
	if _, seen := s.persisted[slabID]; !seen {
		if _, cur := s.current[slabID]; !cur {
			s.order = append(s.order, slabID)
		}
	}
	s.current[slabID] = res
	s.persisted[slabID] = res
}

// State is a point-in-time snapshot for rendering.
type State struct {
	Step            Step                `json:"step"`
	KitchenSelected bool                `json:"kitchenSelected"`
	Selected        []domain.SlabOption `json:"selected"`
	Results         []Result            `json:"results"`
	Generating      bool                `json:"generating"`
}

// State returns the current step, pending selection and the result list in
// first-seen order, in-flight placeholders included.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := State{
		Step:            s.step,
		KitchenSelected: s.kitchen != "",
		Selected:        append([]domain.SlabOption(nil), s.selected...),
		Generating:      len(s.inflight) > 0,
	}
	for _, id := range s.order {
		if r, ok := s.current[id]; ok {
			st.Results = append(st.Results, r)
			continue
		}
		if r, ok := s.persisted[id]; ok {
			st.Results = append(st.Results, r)
		}
	}
	return st
}

// Results returns the persisted collection keyed by slab id.
func (s *Session) Results() map[string]Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Result, len(s.persisted))
	for k, v := range s.persisted {
		out[k] = v
	}
	return out
}

// LastSeen reports the last time the session was touched by a client call.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) touch() { s.lastSeen = time.Now() }
