package engine

import (
	"sync"

	"github.com/drgolem/musicengine/pkg/types"
)

// snapshotStore guards the playback snapshot the audio thread publishes on
// every state-relevant change. Readers (the CLI status line, a future IPC
// bridge) take a short lock and get a copy; they never see a half-updated
// struct and never block the audio thread for long.
type snapshotStore struct {
	mu   sync.Mutex
	snap types.Snapshot
}

func newSnapshotStore() *snapshotStore {
	return &snapshotStore{snap: types.Snapshot{Volume: 1.0}}
}

func (s *snapshotStore) set(isPlaying bool, positionSecs, durationSecs float64, volume float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = types.Snapshot{
		IsPlaying:    isPlaying,
		PositionSecs: positionSecs,
		DurationSecs: durationSecs,
		Volume:       volume,
	}
}

func (s *snapshotStore) get() types.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}
