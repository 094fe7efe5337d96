package pathing

import (
	"encoding/json"
	"errors"
)

// hops shorter than this are treated as already covered so that budgets split
// across many calls end where a single call would.
const budgetEpsilon = 1e-9

// Traveler is the movement state a host entity carries in order to follow
// routes. The zero value is an idle traveler at the origin.
type Traveler struct {
	at       Cell
	route    Route
	progress float64
}

// NewTraveler places a new idle traveler at c.
func NewTraveler(c Cell) Traveler {
	return Traveler{at: c}
}

// Cell returns the last cell the traveler fully reached.
func (t *Traveler) Cell() Cell { return t.at }

// Place teleports the traveler and drops any route.
func (t *Traveler) Place(c Cell) {
	t.at = c
	t.clear()
}

// Stationary reports whether the traveler has no pending route.
func (t *Traveler) Stationary() bool { return t.route.Empty() }

// Progress returns how much of the next hop's cost has already been spent.
func (t *Traveler) Progress() float64 { return t.progress }

// Destination returns where the current route ends.
func (t *Traveler) Destination() (Cell, bool) { return t.route.Destination() }

// Route returns a copy of the remaining route.
func (t *Traveler) Route() Route { return t.route.Clone() }

// Position interpolates the continuous position between the current cell and
// the next one.
func (t *Traveler) Position() [3]float64 {
	pos := [3]float64{float64(t.at.X), float64(t.at.Y), float64(t.at.Z)}
	next, ok := t.route.Next()
	if !ok || t.progress <= 0 {
		return pos
	}
	_, cost := t.route.Hop(0)
	if cost <= 0 {
		return pos
	}
	frac := t.progress / cost
	delta := [3]int{next.X - t.at.X, next.Y - t.at.Y, next.Z - t.at.Z}
	for i, d := range delta {
		// a jump of more than one cell is a periodic wrap
		if d > 1 {
			d = -1
		} else if d < -1 {
			d = 1
		}
		pos[i] += float64(d) * frac
	}
	return pos
}

func (t *Traveler) clear() {
	t.route = Route{}
	t.progress = 0
}

type travelerJSON struct {
	At       Cell      `json:"at"`
	Route    []Cell    `json:"route,omitempty"`
	Hops     []float64 `json:"hops,omitempty"`
	Progress float64   `json:"progress,omitempty"`
}

func (t Traveler) MarshalJSON() ([]byte, error) {
	return json.Marshal(travelerJSON{
		At:       t.at,
		Route:    t.route.cells,
		Hops:     t.route.hops,
		Progress: t.progress,
	})
}

func (t *Traveler) UnmarshalJSON(data []byte) error {
	var raw travelerJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	route, err := RouteFrom(raw.Route, raw.Hops)
	if err != nil {
		return err
	}
	t.at = raw.At
	t.route = route
	t.progress = raw.Progress
	if route.Empty() {
		t.progress = 0
	}
	return nil
}

// Progress describes one Advance call.
type Progress struct {
	Remaining float64
	Hops      int
	Arrived   bool
	Blocked   bool
}

// Navigator moves travelers along routes computed by a Pathfinder. A traveler
// must only be driven from one goroutine at a time; different travelers are
// independent as long as the walkability map is not written concurrently.
type Navigator struct {
	finder        *Pathfinder
	occupancy     Occupancy
	replanOnBlock bool
}

// NavigatorOption configures a Navigator.
type NavigatorOption func(*Navigator)

// WithOccupancy makes cells held by other entities block hops.
func WithOccupancy(o Occupancy) NavigatorOption {
	return func(n *Navigator) { n.occupancy = o }
}

// WithReplanOnBlock lets a blocked traveler search once more for its
// destination before giving up.
func WithReplanOnBlock(enabled bool) NavigatorOption {
	return func(n *Navigator) { n.replanOnBlock = enabled }
}

// NewNavigator creates a navigator around finder.
func NewNavigator(finder *Pathfinder, opts ...NavigatorOption) *Navigator {
	if finder == nil {
		panic("pathing: NewNavigator needs a pathfinder")
	}
	n := &Navigator{finder: finder}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// SetTarget replaces the traveler's route with one to dest. Cells outside the
// grid are rejected without touching the traveler. An unreachable dest leaves
// the traveler idle and returns false with a nil error. Progress inside a hop
// is dropped.
func (n *Navigator) SetTarget(t *Traveler, dest Cell) (bool, error) {
	route, err := n.finder.FindPath(t.at, dest)
	if errors.Is(err, ErrNoPath) {
		t.clear()
		return false, nil
	}
	if err != nil {
		return false, err
	}
	t.route = route
	t.progress = 0
	return true, nil
}

// IsStationary reports whether t is idle.
func (n *Navigator) IsStationary(t *Traveler) bool { return t.Stationary() }

// Advance spends budget along the route and returns what was not used.
func (n *Navigator) Advance(t *Traveler, budget float64) float64 {
	return n.AdvanceReport(t, budget).Remaining
}

// AdvanceReport spends budget along the route. A hop the budget cannot fully
// cover keeps the spent part as progress. Each hop is checked against the
// current walkability and occupancy before it is taken.
func (n *Navigator) AdvanceReport(t *Traveler, budget float64) Progress {
	p := Progress{Remaining: budget}
	if !(budget > 0) {
		// negative and NaN budgets move nothing
		p.Remaining = 0
	}
	if t.route.Empty() {
		return p
	}
	replanned := false
	for !t.route.Empty() {
		next, cost := t.route.Hop(0)
		need := cost - t.progress
		if need > budgetEpsilon && p.Remaining <= 0 {
			return p
		}
		if !n.enterable(next) {
			if !replanned && n.replan(t) {
				replanned = true
				continue
			}
			t.clear()
			p.Blocked = true
			return p
		}
		if p.Remaining+budgetEpsilon < need {
			t.progress += p.Remaining
			p.Remaining = 0
			return p
		}
		p.Remaining -= need
		if p.Remaining < 0 {
			p.Remaining = 0
		}
		t.at = next
		t.progress = 0
		t.route.Pop()
		p.Hops++
	}
	p.Arrived = true
	return p
}

// Step moves t by whole hops and returns the hops it could not take. Finishing
// a partially covered hop counts as one hop.
func (n *Navigator) Step(t *Traveler, hops int) int {
	replanned := false
	for hops > 0 && !t.route.Empty() {
		next, _ := t.route.Next()
		if !n.enterable(next) {
			if !replanned && n.replan(t) {
				replanned = true
				continue
			}
			t.clear()
			return hops
		}
		t.at = next
		t.progress = 0
		t.route.Pop()
		hops--
	}
	return hops
}

func (n *Navigator) enterable(c Cell) bool {
	if !n.finder.walkable.Walkable(c) {
		return false
	}
	return n.occupancy == nil || !n.occupancy.Occupied(c)
}

func (n *Navigator) replan(t *Traveler) bool {
	if !n.replanOnBlock {
		return false
	}
	dest, ok := t.route.Destination()
	if !ok {
		return false
	}
	route, err := n.finder.FindPath(t.at, dest)
	if err != nil || route.Empty() {
		return false
	}
	if next, _ := route.Next(); !n.enterable(next) {
		return false
	}
	t.route = route
	t.progress = 0
	return true
}
