package procmgr

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/renameio/v2"
)

// generationFile is the on-disk shape of pm_registry.json: the last
// generation number handed out per worker, persisted so a Process Manager
// restart never reuses a generation a prior instance already issued.
type generationFile struct {
	Generations map[string]uint64 `json:"generations"`
}

// GenerationStore persists per-worker generation counters across Process
// Manager restarts.
type GenerationStore struct {
	path string
	mu   sync.Mutex
	data generationFile
}

// OpenGenerationStore loads (or initializes) the generation file at
// <stateDir>/pm_registry.json.
func OpenGenerationStore(stateDir string) (*GenerationStore, error) {
	path := filepath.Join(stateDir, "pm_registry.json")
	gs := &GenerationStore{path: path, data: generationFile{Generations: make(map[string]uint64)}}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return gs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("procmgr: read generation file: %w", err)
	}
	if err := json.Unmarshal(raw, &gs.data); err != nil {
		return nil, fmt.Errorf("procmgr: parse generation file: %w", err)
	}
	if gs.data.Generations == nil {
		gs.data.Generations = make(map[string]uint64)
	}
	return gs, nil
}

// Next returns the next generation number for worker and persists it
// before returning, so a crash between assignment and use can never hand
// the same generation out twice.
func (g *GenerationStore) Next(worker string) (uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	next := g.data.Generations[worker] + 1
	g.data.Generations[worker] = next
	if err := g.save(); err != nil {
		return 0, err
	}
	return next, nil
}

// Current returns the last generation handed out for worker without
// incrementing it (0 if the worker has never been started).
func (g *GenerationStore) Current(worker string) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.data.Generations[worker]
}

func (g *GenerationStore) save() error {
	raw, err := json.MarshalIndent(g.data, "", "  ")
	if err != nil {
		return fmt.Errorf("procmgr: marshal generation file: %w", err)
	}
	pf, err := renameio.NewPendingFile(g.path)
	if err != nil {
		return fmt.Errorf("procmgr: create pending generation file: %w", err)
	}
	defer pf.Cleanup()
	if _, err := pf.Write(raw); err != nil {
		return fmt.Errorf("procmgr: write generation file: %w", err)
	}
	return pf.CloseAtomicallyReplace()
}
