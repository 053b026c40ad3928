// Package reclaim decides which sealed journal files no longer hold
// anything load would need.
package reclaim

// FileUsage describes one journal file, oldest first.
type FileUsage struct {
	ID uint64
	// Pins counts live records and open transactions with entries in the
	// file.
	Pins int
	// Sealed is false for the active file.
	Sealed bool
	// RequiredBy is the id of the newest file holding a commit entry for
	// operations in this file, or 0. Deleting this file while that commit
	// survives would make load report the transaction as failed.
	RequiredBy uint64
}

// Reclaimer returns how many of the leading files may be deleted.
type Reclaimer interface {
	Reclaimable(files []FileUsage) int
}

// PrefixReclaimer only deletes a leading run of files, so a delete entry is
// never removed while the add it cancels survives.
type PrefixReclaimer struct {
	// MinFiles is the number of files always kept.
	MinFiles int
}

func (p PrefixReclaimer) Reclaimable(files []FileUsage) int {
	limit := len(files) - p.MinFiles
	if limit <= 0 {
		return 0
	}

	n := 0
	var required uint64
	for i := 0; i < limit; i++ {
		f := files[i]
		if !f.Sealed || f.Pins > 0 {
			break
		}
		if f.RequiredBy > required {
			required = f.RequiredBy
		}
		// The prefix can end here only if every commit depending on it
		// is also inside it.
		if required <= f.ID {
			n = i + 1
		}
	}
	return n
}

var _ Reclaimer = PrefixReclaimer{}
