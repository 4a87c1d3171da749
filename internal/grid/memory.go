package grid

import (
	"context"
	"sync"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps grids in process memory. It is safe for concurrent use;
// each operation is atomic on its own, and callers needing read-modify-write
// atomicity take a sheet lock around it.
type MemoryStore struct {
	createMu sync.Mutex // serialises GetOrCreate so layout runs once

	mu     sync.RWMutex
	sheets map[string]*memoryGrid
	order  []string
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sheets: make(map[string]*memoryGrid)}
}

func (s *MemoryStore) GetOrCreate(ctx context.Context, name string, layout Layout) (Grid, error) {
	if g := s.lookup(name); g != nil {
		return g, nil
	}

	s.createMu.Lock()
	defer s.createMu.Unlock()

	if g := s.lookup(name); g != nil {
		return g, nil
	}

	g := &memoryGrid{name: name, cells: make(map[Coord]Cell)}
	if layout != nil {
		if err := layout(ctx, g); err != nil {
			return nil, Wrap("layout", name, err)
		}
	}

	s.mu.Lock()
	s.sheets[name] = g
	s.order = append(s.order, name)
	s.mu.Unlock()

	return g, nil
}

func (s *MemoryStore) List(ctx context.Context, match func(string) bool) ([]Grid, error) {
	if err := ctx.Err(); err != nil {
		return nil, Wrap("list", "", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Grid
	for _, name := range s.order {
		if match == nil || match(name) {
			out = append(out, s.sheets[name])
		}
	}
	return out, nil
}

// Names returns every sheet name in creation order.
func (s *MemoryStore) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

func (s *MemoryStore) lookup(name string) *memoryGrid {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sheets[name]
}

type memoryGrid struct {
	name string

	mu    sync.RWMutex
	cells map[Coord]Cell
}

func (g *memoryGrid) Name() string { return g.name }

func (g *memoryGrid) Get(ctx context.Context, c Coord) (Cell, error) {
	if !c.Valid() {
		return Empty, Wrap("get", g.name, ErrOutOfRange)
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cells[c], nil
}

func (g *memoryGrid) Set(ctx context.Context, c Coord, v Cell) error {
	if !c.Valid() {
		return Wrap("set", g.name, ErrOutOfRange)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if v.IsEmpty() {
		delete(g.cells, c)
		return nil
	}
	g.cells[c] = v
	return nil
}

func (g *memoryGrid) AppendRow(ctx context.Context, values []Cell) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	row := 1
	for c := range g.cells {
		if c.Row >= row {
			row = c.Row + 1
		}
	}
	for i, v := range values {
		if !v.IsEmpty() {
			g.cells[Coord{Row: row, Col: i + 1}] = v
		}
	}
	return nil
}

func (g *memoryGrid) Clear(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cells = make(map[Coord]Cell)
	return nil
}
