// Package journal is the append side of the journal: it owns the sequence of
// journal files, serialises rotation and bookkeeping, and runs the one load
// that rebuilds caller state before appends are accepted.
package journal

import (
	"sync"

	"github.com/julianstephens/go-utils/helpers"
	"github.com/julianstephens/jrnl/internal/jrnl"
	"github.com/julianstephens/jrnl/internal/jrnl/reclaim"
	"github.com/julianstephens/jrnl/internal/jrnl/record"
	"github.com/julianstephens/jrnl/internal/jrnl/recovery"
	"github.com/julianstephens/jrnl/internal/jrnl/sequential"
	"github.com/julianstephens/jrnl/internal/logger"
	"go.uber.org/atomic"
)

type lifecycle int

const (
	stateNew lifecycle = iota
	stateStarted
	stateLoaded
	stateStopped
)

// journalFile is the bookkeeping for one file on disk.
type journalFile struct {
	id         uint64
	name       string
	pins       int
	sealed     bool
	requiredBy uint64
}

// openTx is a transaction with entries on disk and no commit or rollback.
type openTx struct {
	ops      []recovery.PendingOp
	files    []uint64
	prepared bool
}

// touch records that the transaction has an entry in fileID and reports
// whether the file is new to it.
func (tx *openTx) touch(fileID uint64) bool {
	for _, f := range tx.files {
		if f == fileID {
			return false
		}
	}
	tx.files = append(tx.files, fileID)
	return true
}

// Journal appends entries to a directory of journal files. All methods are
// safe for concurrent use.
type Journal struct {
	mu sync.Mutex

	opts      jrnl.Options
	factory   sequential.Factory
	reclaimer reclaim.Reclaimer
	lg        logger.Logger

	state lifecycle
	// files is ascending by id; once loaded the last one is active.
	files  []*journalFile
	byID   map[uint64]*journalFile
	active sequential.File

	// records maps each live record to the files holding its add and
	// updates.
	records map[uint64][]uint64
	txs     map[uint64]*openTx

	appends   atomic.Uint64
	syncs     atomic.Uint64
	bytes     atomic.Uint64
	rotations atomic.Uint64
	failed    atomic.Uint64
	// sealedBatches sums the batches written to files that were rotated out.
	sealedBatches atomic.Uint64
}

// New creates a journal over factory's directory. opts.Dir defaults to the
// factory directory.
func New(opts jrnl.Options, factory sequential.Factory, lg logger.Logger) (*Journal, error) {
	lg = logger.OrNoOp(lg)
	if factory == nil {
		return nil, wrapErr("new", ErrInvalidDir, 0, nil)
	}
	if opts.Dir == "" {
		opts.Dir = factory.Dir()
	}
	opts = opts.WithDefaults()
	if err := opts.Validate(); err != nil {
		return nil, wrapErr("new", ErrInvalidDir, 0, err)
	}

	return &Journal{
		opts:      opts,
		factory:   factory,
		reclaimer: reclaim.PrefixReclaimer{MinFiles: opts.MinFiles},
		lg:        lg,
		byID:      make(map[uint64]*journalFile),
		records:   make(map[uint64][]uint64),
		txs:       make(map[uint64]*openTx),
	}, nil
}

// SetReclaimer replaces the policy Reclaim consults.
func (j *Journal) SetReclaimer(r reclaim.Reclaimer) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.reclaimer = r
}

func (j *Journal) Options() jrnl.Options {
	return j.opts
}

// Start makes sure the journal directory exists.
func (j *Journal) Start() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	switch j.state {
	case stateStopped:
		return wrapErr("start", ErrJournalClosed, 0, nil)
	case stateStarted, stateLoaded:
		return nil
	}

	if err := helpers.Ensure(j.opts.Dir, true); err != nil {
		j.lg.Error("failed to ensure journal directory", err, "dir", j.opts.Dir)
		return wrapErr("start", ErrInvalidDir, 0, err)
	}
	j.state = stateStarted
	j.lg.Info("journal started", "dir", j.opts.Dir, "backend", string(j.factory.Backend()), "file_size", j.opts.FileSize)
	return nil
}

// Load replays every journal file into cb and then opens a fresh active
// file, so entries written after load never share a file with a damaged
// tail. cb must not call back into the journal.
func (j *Journal) Load(cb recovery.LoaderCallback) (*recovery.Result, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	switch j.state {
	case stateNew:
		return nil, wrapErr("load", ErrNotStarted, 0, nil)
	case stateLoaded:
		return nil, wrapErr("load", ErrAlreadyLoaded, 0, nil)
	case stateStopped:
		return nil, wrapErr("load", ErrJournalClosed, 0, nil)
	}

	src, err := recovery.NewDirSource(j.factory, j.opts.Prefix, j.opts.Extension)
	if err != nil {
		return nil, wrapErr("load", ErrLoadFailed, 0, err)
	}

	for _, id := range src.FileIDs() {
		jf := &journalFile{id: id, name: src.FileName(id), sealed: true}
		j.files = append(j.files, jf)
		j.byID[id] = jf
	}

	res, err := recovery.Replay(src, cb, loadTracker{j}, j.lg)
	if err != nil {
		j.resetLocked()
		return res, wrapErr("load", ErrLoadFailed, 0, err)
	}

	if err := j.openFileLocked(res.LastFileID() + 1); err != nil {
		j.resetLocked()
		return res, err
	}

	j.state = stateLoaded
	j.lg.Info("journal loaded",
		"files", len(j.files),
		"active", res.LastFileID()+1,
		"live_records", len(j.records),
		"prepared", len(j.txs),
		"damaged", res.Damaged(),
	)
	return res, nil
}

func (j *Journal) resetLocked() {
	j.files = nil
	j.byID = make(map[uint64]*journalFile)
	j.records = make(map[uint64][]uint64)
	j.txs = make(map[uint64]*openTx)
}

// Stop waits for pending writes and closes the active file. Appends after
// Stop fail with ErrJournalClosed.
func (j *Journal) Stop() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.state == stateStopped {
		return nil
	}
	j.state = stateStopped

	if j.active == nil {
		return nil
	}
	id := j.activeFileLocked().id
	if err := j.active.Close(); err != nil {
		j.lg.Error("failed to close active journal file", err, "file", id)
		return wrapErr("stop", ErrCloseFailed, id, err)
	}
	j.lg.Info("journal stopped", "files", len(j.files), "appends", j.appends.Load())
	return nil
}

// DebugWait blocks until every write issued so far has completed and
// returns the first write error, if any.
func (j *Journal) DebugWait() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.active == nil {
		return nil
	}
	if err := j.active.WaitPending(); err != nil {
		return wrapErr("wait", ErrAppendFailed, j.activeFileLocked().id, err)
	}
	return nil
}

func (j *Journal) activeFileLocked() *journalFile {
	return j.files[len(j.files)-1]
}

// openFileLocked creates journal file id, writes its header and makes it
// the active file.
func (j *Journal) openFileLocked(id uint64) error {
	name := j.opts.FileName(id)
	f := j.factory.NewFile(name)
	if err := f.Open(); err != nil {
		j.lg.Error("failed to open journal file", err, "file", id, "name", name)
		return wrapErr("open", ErrFileOpen, id, err)
	}
	if err := f.Write(record.EncodeFileHeader(id), false, nil); err != nil {
		_ = f.Close()
		return wrapErr("open", ErrFileOpen, id, err)
	}

	jf := &journalFile{id: id, name: name}
	j.files = append(j.files, jf)
	j.byID[id] = jf
	j.active = f
	j.lg.Debug("opened journal file", "file", id, "name", name)
	return nil
}

// rotateLocked seals the active file, draining its pending writes, and
// opens the next one.
func (j *Journal) rotateLocked() error {
	cur := j.activeFileLocked()
	if err := j.active.Close(); err != nil {
		j.lg.Error("failed to seal journal file", err, "file", cur.id)
		return wrapErr("rotate", ErrRotateFailed, cur.id, err)
	}
	cur.sealed = true
	if bc, ok := j.active.(sequential.BatchCounter); ok {
		completed, _ := bc.BatchStats()
		j.sealedBatches.Add(completed)
	}

	if err := j.openFileLocked(cur.id + 1); err != nil {
		return wrapErr("rotate", ErrRotateFailed, cur.id+1, err)
	}
	j.rotations.Inc()
	j.lg.Debug("rotated journal file", "sealed", cur.id, "active", cur.id+1)
	return nil
}

// FileIDs returns the ids of the files the journal tracks, ascending.
func (j *Journal) FileIDs() []uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()

	ids := make([]uint64, 0, len(j.files))
	for _, f := range j.files {
		ids = append(ids, f.id)
	}
	return ids
}

// Stats is a point-in-time view of the journal.
type Stats struct {
	Files                int    `json:"files"`
	ActiveFileID         uint64 `json:"active_file_id"`
	LiveRecords          int    `json:"live_records"`
	OpenTransactions     int    `json:"open_transactions"`
	PreparedTransactions int    `json:"prepared_transactions"`
	Appends              uint64 `json:"appends"`
	SyncAppends          uint64 `json:"sync_appends"`
	BytesAppended        uint64 `json:"bytes_appended"`
	Rotations            uint64 `json:"rotations"`
	FailedWrites         uint64 `json:"failed_writes"`
	// FlushedBatches and InFlightBatches stay zero for backends that write
	// through without batching.
	FlushedBatches  uint64 `json:"flushed_batches"`
	InFlightBatches int64  `json:"in_flight_batches"`
}

func (j *Journal) Stats() Stats {
	j.mu.Lock()
	defer j.mu.Unlock()

	s := Stats{
		Files:         len(j.files),
		LiveRecords:   len(j.records),
		Appends:       j.appends.Load(),
		SyncAppends:   j.syncs.Load(),
		BytesAppended: j.bytes.Load(),
		Rotations:     j.rotations.Load(),
		FailedWrites:  j.failed.Load(),
	}
	s.FlushedBatches = j.sealedBatches.Load()
	if j.active != nil {
		s.ActiveFileID = j.activeFileLocked().id
		if bc, ok := j.active.(sequential.BatchCounter); ok {
			completed, inflight := bc.BatchStats()
			s.FlushedBatches += completed
			s.InFlightBatches = inflight
		}
	}
	for _, tx := range j.txs {
		s.OpenTransactions++
		if tx.prepared {
			s.PreparedTransactions++
		}
	}
	return s
}
