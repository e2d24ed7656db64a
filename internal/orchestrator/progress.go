package orchestrator

import (
	"sync"
	"time"

	"github.com/thirdweb-dev/txconflict/internal/metrics"
)

type ChainProgress struct {
	Chain           string    `json:"chain"`
	Total           int       `json:"total_blocks"`
	Completed       int       `json:"completed_blocks"`
	Failed          int       `json:"failed_blocks"`
	DependencyRatio float64   `json:"dependency_ratio"`
	StartedAt       time.Time `json:"started_at"`
	Done            bool      `json:"done"`
}

func (p ChainProgress) Remaining() int {
	return p.Total - p.Completed
}

// ProgressTracker is read by the status server while the orchestrator writes it.
type ProgressTracker struct {
	mu     sync.RWMutex
	chains map[string]*ChainProgress
	order  []string
}

func NewProgressTracker() *ProgressTracker {
	return &ProgressTracker{chains: make(map[string]*ChainProgress)}
}

func (p *ProgressTracker) Start(chain string, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.chains[chain]; !ok {
		p.order = append(p.order, chain)
	}
	p.chains[chain] = &ChainProgress{Chain: chain, Total: total, StartedAt: time.Now()}
	metrics.BlocksRemaining.WithLabelValues(chain).Set(float64(total))
}

func (p *ProgressTracker) Record(chain string, failed bool, dependencyRatio float64) ChainProgress {
	p.mu.Lock()
	defer p.mu.Unlock()
	progress, ok := p.chains[chain]
	if !ok {
		progress = &ChainProgress{Chain: chain, StartedAt: time.Now()}
		p.chains[chain] = progress
		p.order = append(p.order, chain)
	}
	progress.Completed++
	if failed {
		progress.Failed++
	}
	progress.DependencyRatio = dependencyRatio
	metrics.BlocksRemaining.WithLabelValues(chain).Set(float64(progress.Remaining()))
	metrics.DependencyRatio.WithLabelValues(chain).Set(dependencyRatio)
	return *progress
}

func (p *ProgressTracker) Finish(chain string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if progress, ok := p.chains[chain]; ok {
		progress.Done = true
	}
}

func (p *ProgressTracker) Get(chain string) (ChainProgress, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	progress, ok := p.chains[chain]
	if !ok {
		return ChainProgress{}, false
	}
	return *progress, true
}

// All returns every chain in the order it was started.
func (p *ProgressTracker) All() []ChainProgress {
	p.mu.RLock()
	defer p.mu.RUnlock()
	all := make([]ChainProgress, 0, len(p.order))
	for _, chain := range p.order {
		all = append(all, *p.chains[chain])
	}
	return all
}
