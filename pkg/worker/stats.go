package worker

import (
	"context"

	"github.com/l7mp/arrange/pkg/arrangement"
	"github.com/l7mp/arrange/pkg/trace"
)

// ArrangementStats describes one arrangement of a collection.
type ArrangementStats struct {
	// Keys is nil for the by-self arrangement.
	Keys    trace.KeyProjection
	Batches int
	Updates int
	Upper   string
	Since   string
}

// CollectionStats describes the arrangements of a collection.
type CollectionStats struct {
	Name         string
	Arrangements []ArrangementStats
}

func newArrangementStats(keys trace.KeyProjection, h *trace.Agent[arrangement.Timestamp]) ArrangementStats {
	return ArrangementStats{
		Keys:    keys,
		Batches: h.BatchCount(),
		Updates: h.Len(),
		Upper:   h.Upper().String(),
		Since:   h.Since().String(),
	}
}

// Stats returns the state of every registered arrangement.
func (w *Worker) Stats(ctx context.Context) ([]CollectionStats, error) {
	var ret []CollectionStats
	err := w.Do(ctx, func(m *arrangement.Manager) {
		for _, name := range m.Names() {
			cs := CollectionStats{Name: name}
			if h, ok := m.GetBySelf(name); ok {
				cs.Arrangements = append(cs.Arrangements, newArrangementStats(nil, h))
			}
			if seq, ok := m.AllKeyed(name); ok {
				for keys, h := range seq {
					cs.Arrangements = append(cs.Arrangements, newArrangementStats(keys, h))
				}
			}
			ret = append(ret, cs)
		}
	})
	return ret, err
}
