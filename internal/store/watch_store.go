package store

import (
	"encoding/json"
	"io"
	"log"
	"sort"
	"sync"

	"github.com/senigami/factorywatch/internal/domain"
	"github.com/senigami/factorywatch/internal/telemetry"
)

// WatchStore holds the last-known state of every remote job, keyed by chapter
// file. Incremental patches arrive keyed by server job id, so a secondary
// id->key index is maintained alongside the primary map instead of being
// rebuilt per patch.
//
// The store is the sole owner of the job map: other components read through
// the accessors (which copy) or mutate through ReplaceAll/ApplyPatch. Between
// the patch path and the snapshot path the more recently applied update wins;
// the state is advisory display data, not transactional.
type WatchStore struct {
	logger *log.Logger

	mu      sync.Mutex
	jobs    map[string]domain.Job // keyed by chapter file
	idToKey map[string]string
	tests   map[string]domain.TestActivity

	resync            func()
	terminalListeners []func(domain.Job)
}

func New(logger *log.Logger) *WatchStore {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &WatchStore{
		logger:  logger,
		jobs:    make(map[string]domain.Job),
		idToKey: make(map[string]string),
		tests:   make(map[string]domain.TestActivity),
	}
}

// SetResyncFunc registers the callback invoked when a patch references a job
// id the store does not know. The callback runs outside the store lock.
func (s *WatchStore) SetResyncFunc(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resync = fn
}

// OnJobTerminal registers a listener fired exactly once per job transition
// into a terminal status (done or error). Listeners run outside the store
// lock.
func (s *WatchStore) OnJobTerminal(fn func(domain.Job)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.terminalListeners = append(s.terminalListeners, fn)
}

// ReplaceAll swaps the entire mapping for a full snapshot, keyed by chapter
// file. When two records share a key, the later element in the slice wins.
// Jobs absent from the snapshot are removed; this is the only removal path.
func (s *WatchStore) ReplaceAll(jobs []domain.Job) {
	s.mu.Lock()

	next := make(map[string]domain.Job, len(jobs))
	index := make(map[string]string, len(jobs))
	for _, j := range jobs {
		if j.ChapterFile == "" {
			continue
		}
		if prev, ok := next[j.ChapterFile]; ok {
			delete(index, prev.ID)
		}
		next[j.ChapterFile] = j
		if j.ID != "" {
			index[j.ID] = j.ChapterFile
		}
	}

	var finished []domain.Job
	for key, j := range next {
		prev, existed := s.jobs[key]
		if existed && !prev.Terminal() && j.Terminal() {
			finished = append(finished, j)
		}
	}

	s.jobs = next
	s.idToKey = index
	listeners := s.terminalListeners
	s.mu.Unlock()

	telemetry.TrackedJobs.Set(float64(len(next)))
	s.fireTerminal(listeners, finished)
}

// ApplyPatch shallow-merges a partial update into the job with the given
// server id: fields present in the payload overwrite, absent fields are
// preserved, and an explicit null clears an optional field. A patch for an
// unknown id is not an error; the patch is discarded and the resync callback
// is invoked, since the forthcoming snapshot will carry the new job.
func (s *WatchStore) ApplyPatch(jobID string, updates json.RawMessage) {
	s.mu.Lock()

	key, ok := s.idToKey[jobID]
	if !ok {
		resync := s.resync
		s.mu.Unlock()
		telemetry.PatchesUnknownTotal.Inc()
		s.logger.Printf("patch for unknown job id=%s, requesting resync", jobID)
		if resync != nil {
			resync()
		}
		return
	}

	prev := s.jobs[key]
	merged := prev
	if err := json.Unmarshal(updates, &merged); err != nil {
		s.mu.Unlock()
		telemetry.DecodeDropsTotal.Inc()
		s.logger.Printf("dropping undecodable patch for job id=%s: %v", jobID, err)
		return
	}

	// A patch may re-key the job (rare, e.g. server-side rename); keep the
	// id index consistent with the primary map.
	if merged.ChapterFile != key {
		delete(s.jobs, key)
		key = merged.ChapterFile
	}
	if merged.ID != prev.ID {
		delete(s.idToKey, prev.ID)
	}
	s.jobs[key] = merged
	if merged.ID != "" {
		s.idToKey[merged.ID] = key
	}

	var finished []domain.Job
	if !prev.Terminal() && merged.Terminal() {
		finished = append(finished, merged)
	}
	listeners := s.terminalListeners
	count := len(s.jobs)
	s.mu.Unlock()

	telemetry.PatchesAppliedTotal.Inc()
	telemetry.TrackedJobs.Set(float64(count))
	s.fireTerminal(listeners, finished)
}

func (s *WatchStore) fireTerminal(listeners []func(domain.Job), jobs []domain.Job) {
	for _, j := range jobs {
		if j.Status == domain.JobStatusDone {
			telemetry.CompletionsTotal.Inc()
		}
		for _, fn := range listeners {
			fn(j)
		}
	}
}

// Jobs returns a copy of every tracked job, ordered by creation time.
func (s *WatchStore) Jobs() []domain.Job {
	s.mu.Lock()
	out := make([]domain.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, k int) bool {
		if out[i].CreatedAt != out[k].CreatedAt {
			return out[i].CreatedAt < out[k].CreatedAt
		}
		return out[i].ChapterFile < out[k].ChapterFile
	})
	return out
}

// Get looks up a job by chapter file.
func (s *WatchStore) Get(key string) (domain.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[key]
	return j, ok
}

// Len reports how many jobs are currently tracked.
func (s *WatchStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// SetTestProgress records side-channel progress for a non-job activity.
func (s *WatchStore) SetTestProgress(name string, progress float64, startedAt *float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tests[name] = domain.TestActivity{Name: name, Progress: progress, StartedAt: startedAt}
}

// TestActivities returns a copy of the side-channel activity map.
func (s *WatchStore) TestActivities() []domain.TestActivity {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.TestActivity, 0, len(s.tests))
	for _, a := range s.tests {
		out = append(out, a)
	}
	return out
}
