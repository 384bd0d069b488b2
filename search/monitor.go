package search

import (
	"time"

	"github.com/poiesic/newsrag/core"
)

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query string)
	AfterEmbedding(dimension int)
	Failed(stage Stage, err error, elapsed time.Duration)
	Finish(results []core.SearchResult, elapsed time.Duration)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = noopMonitor{}

func (noopMonitor) Start(_ string)                                {}
func (noopMonitor) AfterEmbedding(_ int)                          {}
func (noopMonitor) Failed(_ Stage, _ error, _ time.Duration)      {}
func (noopMonitor) Finish(_ []core.SearchResult, _ time.Duration) {}

// multiMonitor fans out to each monitor in order.
type multiMonitor []SearchMonitor

func (m multiMonitor) Start(query string) {
	for _, mon := range m {
		mon.Start(query)
	}
}

func (m multiMonitor) AfterEmbedding(dimension int) {
	for _, mon := range m {
		mon.AfterEmbedding(dimension)
	}
}

func (m multiMonitor) Failed(stage Stage, err error, elapsed time.Duration) {
	for _, mon := range m {
		mon.Failed(stage, err, elapsed)
	}
}

func (m multiMonitor) Finish(results []core.SearchResult, elapsed time.Duration) {
	for _, mon := range m {
		mon.Finish(results, elapsed)
	}
}
