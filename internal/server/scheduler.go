package server

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gorhill/cronexpr"

	"github.com/pooriaast/sleuth/ingest"
	"github.com/pooriaast/sleuth/tools/docindex"
)

// Scheduler re-indexes the documentation directory on a cron schedule so a
// long-running server picks up doc changes without a restart.
type Scheduler struct {
	Cron    string
	Index   *docindex.Index
	DocsDir string
	Stop    chan struct{}
	Logger  *log.Logger
}

// Start validates the expression and launches the schedule loop.
func (s *Scheduler) Start() error {
	expr, err := cronexpr.Parse(s.Cron)
	if err != nil {
		return fmt.Errorf("invalid reindex cron %q: %w", s.Cron, err)
	}
	go s.loop(expr)
	s.Logger.Printf("reindex scheduled: %s (next %s)", s.Cron, expr.Next(time.Now()).Format(time.RFC3339))
	return nil
}

func (s *Scheduler) loop(expr *cronexpr.Expression) {
	for {
		next := expr.Next(time.Now())
		if next.IsZero() {
			return
		}
		select {
		case <-s.Stop:
			return
		case <-time.After(time.Until(next)):
			s.tick()
		}
	}
}

func (s *Scheduler) tick() {
	docs, err := ingest.LoadDir(s.DocsDir)
	if err != nil {
		s.Logger.Printf("reindex load failed: %v", err)
		return
	}
	stats, err := ingest.BuildIndex(context.Background(), s.Index, docs, s.Logger)
	if err != nil {
		s.Logger.Printf("reindex failed: %v", err)
		return
	}
	s.Logger.Printf("reindex done: %d documents, %d chunks", stats.Documents, stats.Children)
}
