package recycler

import (
	"context"

	"slotrecycler/bus"
)

// SnapshotReader yields the reclaimable slot records for one poll.
type SnapshotReader struct {
	backend    bus.Backend
	skipSystem bool
}

func NewSnapshotReader(backend bus.Backend, skipSystem bool) *SnapshotReader {
	return &SnapshotReader{backend: backend, skipSystem: skipSystem}
}

// Read returns the current records, without system slots when configured.
// total is the number of records the backend reported before filtering.
func (s *SnapshotReader) Read(ctx context.Context) (recs []bus.ResourceRecord, total int, err error) {
	all, err := s.backend.ListResources(ctx)
	if err != nil {
		return nil, 0, err
	}
	recs = make([]bus.ResourceRecord, 0, len(all))
	for _, r := range all {
		if s.skipSystem && r.System {
			continue
		}
		recs = append(recs, r)
	}
	return recs, len(all), nil
}
