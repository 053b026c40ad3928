package journal

import (
	"github.com/julianstephens/jrnl/internal/jrnl/reclaim"
)

// Reclaim deletes the oldest files that hold nothing load still needs and
// returns their ids.
func (j *Journal) Reclaim() ([]uint64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	switch j.state {
	case stateNew, stateStarted:
		return nil, wrapErr("reclaim", ErrNotLoaded, 0, nil)
	case stateStopped:
		return nil, wrapErr("reclaim", ErrJournalClosed, 0, nil)
	}

	usage := j.usageLocked()
	n := j.reclaimer.Reclaimable(usage)
	// The active file always stays.
	if n > len(j.files)-1 {
		n = len(j.files) - 1
	}
	if n <= 0 {
		return nil, nil
	}

	removed := make([]uint64, 0, n)
	for _, f := range j.files[:n] {
		if !f.sealed || f.pins > 0 {
			break
		}
		if err := j.factory.Remove(f.name); err != nil {
			j.dropLocked(len(removed))
			j.lg.Error("failed to remove journal file", err, "file", f.id)
			return removed, wrapErr("reclaim", ErrReclaimFailed, f.id, err)
		}
		removed = append(removed, f.id)
	}
	j.dropLocked(len(removed))

	j.lg.Info("reclaimed journal files", "count", len(removed), "remaining", len(j.files))
	return removed, nil
}

func (j *Journal) usageLocked() []reclaim.FileUsage {
	usage := make([]reclaim.FileUsage, 0, len(j.files))
	for _, f := range j.files {
		usage = append(usage, reclaim.FileUsage{
			ID:         f.id,
			Pins:       f.pins,
			Sealed:     f.sealed,
			RequiredBy: f.requiredBy,
		})
	}
	return usage
}

// Usage reports the reclaim view of every tracked file.
func (j *Journal) Usage() []reclaim.FileUsage {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.usageLocked()
}

func (j *Journal) dropLocked(n int) {
	for _, f := range j.files[:n] {
		delete(j.byID, f.id)
	}
	j.files = j.files[n:]
}
