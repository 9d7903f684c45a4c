package worker

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/go-logr/logr"

	"github.com/l7mp/arrange/pkg/arrangement"
	"github.com/l7mp/arrange/pkg/frontier"
	"github.com/l7mp/arrange/pkg/trace"
)

// ErrAlreadyBound is returned when the arrangements of a source are bound more than once.
var ErrAlreadyBound = errors.New("source is already bound")

// SourceConfig describes a synthetic collection.
type SourceConfig struct {
	Name string
	// BySelf arranges the collection by the whole record.
	BySelf bool
	// Keys are the key projections to arrange the collection by.
	Keys []trace.KeyProjection
	// Columns is the number of columns of a record. Column 0 is a unique id.
	Columns int
	// RowsPerStep is the number of records inserted at each step. Half as many live records
	// are retracted.
	RowsPerStep int
	// CompactionLag is the number of steps the compaction frontier trails the upper.
	CompactionLag arrangement.Timestamp
	// Seed seeds the record generator.
	Seed int64
}

type output struct {
	keys   trace.KeyProjection
	writer *trace.Writer[arrangement.Timestamp]
}

// Source feeds a synthetic collection into arrangements registered with a worker. Source is not
// safe for concurrent use.
type Source struct {
	config  SourceConfig
	worker  *Worker
	outputs []*output
	bound   bool
	live    []trace.Row
	nextID  int64
	time    arrangement.Timestamp
	rand    *rand.Rand
	log     logr.Logger
}

// NewSource creates a source for the given collection.
func NewSource(w *Worker, config SourceConfig, log logr.Logger) (*Source, error) {
	if config.Columns < 1 {
		return nil, fmt.Errorf("collection %q: at least one column is required", config.Name)
	}
	for _, keys := range config.Keys {
		for _, c := range keys {
			if c < 0 || c >= config.Columns {
				return nil, fmt.Errorf("collection %q: projection %s: %w", config.Name, keys,
					trace.ErrColumnOutOfRange)
			}
		}
	}
	if log.GetSink() == nil {
		log = logr.Discard()
	}

	return &Source{
		config: config,
		worker: w,
		rand:   rand.New(rand.NewSource(config.Seed)), //nolint:gosec
		log:    log.WithName("source").WithValues("collection", config.Name),
	}, nil
}

// Bind creates the arrangements of the collection and registers them with the worker. The
// delete callback of each arrangement closes its writer. A source can be bound only once.
func (s *Source) Bind(ctx context.Context) error {
	if s.bound {
		return ErrAlreadyBound
	}

	type binding struct {
		keys   trace.KeyProjection
		agent  *trace.Agent[arrangement.Timestamp]
		closer arrangement.DeleteCallback
	}

	bindings, outputs := []binding{}, []*output{}
	newOutput := func(shape trace.Shape, keys trace.KeyProjection) binding {
		writer, agent := trace.NewArrangement[arrangement.Timestamp](shape, s.log)
		out := &output{keys: keys, writer: writer}
		outputs = append(outputs, out)
		closer := arrangement.Once(arrangement.ReleaseFunc(func() {
			if err := writer.Close(); err != nil && !errors.Is(err, trace.ErrClosed) {
				s.log.Error(err, "failed to close arrangement", "keys", keys.String())
			}
		}))
		return binding{keys: keys, agent: agent, closer: closer}
	}

	if s.config.BySelf {
		bindings = append(bindings, newOutput(trace.KeysOnly, nil))
	}
	for _, keys := range s.config.Keys {
		bindings = append(bindings, newOutput(trace.KeysVals, keys))
	}

	err := s.worker.Do(ctx, func(m *arrangement.Manager) {
		for _, b := range bindings {
			if b.keys == nil {
				m.SetBySelf(s.config.Name, b.agent, b.closer)
			} else {
				m.SetByKeys(s.config.Name, b.keys, b.agent, b.closer)
			}
		}
	})
	if err != nil {
		return err
	}

	s.outputs, s.bound = outputs, true
	return nil
}

// Step inserts and retracts records at the current time, seals all arrangements and relaxes the
// compaction frontier of the collection.
func (s *Source) Step(ctx context.Context) error {
	t := s.time
	var changes []trace.Update[arrangement.Timestamp]

	for range s.config.RowsPerStep {
		row := s.newRow()
		s.live = append(s.live, row)
		changes = append(changes, trace.Update[arrangement.Timestamp]{Key: row, Time: t, Diff: 1})
	}
	for range s.config.RowsPerStep / 2 {
		i := s.rand.Intn(len(s.live))
		row := s.live[i]
		s.live[i] = s.live[len(s.live)-1]
		s.live = s.live[:len(s.live)-1]
		changes = append(changes, trace.Update[arrangement.Timestamp]{Key: row, Time: t, Diff: -1})
	}

	upper := frontier.From(t + 1)
	for _, out := range s.outputs {
		if err := out.push(changes); err != nil {
			return err
		}
		if err := out.writer.Seal(upper); err != nil {
			if errors.Is(err, trace.ErrClosed) {
				continue
			}
			return err
		}
	}
	s.time = t + 1

	if s.time > s.config.CompactionLag {
		since := []arrangement.Timestamp{s.time - s.config.CompactionLag}
		if err := s.worker.AllowCompaction(ctx, s.config.Name, since); err != nil {
			return err
		}
	}

	s.log.V(2).Info("step", "time", t, "changes", len(changes), "live", len(s.live))
	return nil
}

// Live returns the number of records currently in the collection.
func (s *Source) Live() int { return len(s.live) }

// Time returns the time of the next step.
func (s *Source) Time() arrangement.Timestamp { return s.time }

func (s *Source) newRow() trace.Row {
	row := make(trace.Row, s.config.Columns)
	row[0] = s.nextID
	s.nextID++
	for c := 1; c < s.config.Columns; c++ {
		row[c] = int64(s.rand.Intn(10))
	}
	return row
}

func (o *output) push(changes []trace.Update[arrangement.Timestamp]) error {
	for _, u := range changes {
		if o.keys != nil {
			key, err := u.Key.Project(o.keys)
			if err != nil {
				return err
			}
			u = trace.Update[arrangement.Timestamp]{Key: key, Val: u.Key, Time: u.Time, Diff: u.Diff}
		}
		if err := o.writer.Push(u); err != nil && !errors.Is(err, trace.ErrClosed) {
			return err
		}
	}
	return nil
}
