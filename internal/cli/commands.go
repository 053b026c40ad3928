package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"code.cloudfoundry.org/bytefmt"
	"github.com/julianstephens/go-utils/generic"
	"github.com/julianstephens/go-utils/helpers"
	"github.com/julianstephens/go-utils/jsonutil"
	"golang.org/x/sync/errgroup"

	"github.com/julianstephens/jrnl/internal/jrnl/config"
	"github.com/julianstephens/jrnl/internal/jrnl/journal"
	"github.com/julianstephens/jrnl/internal/jrnl/manifest"
	"github.com/julianstephens/jrnl/internal/jrnl/memtable"
	"github.com/julianstephens/jrnl/internal/jrnl/reclaim"
	"github.com/julianstephens/jrnl/internal/jrnl/record"
	"github.com/julianstephens/jrnl/internal/jrnl/recovery"
	"github.com/julianstephens/jrnl/internal/jrnl/sequential"
	"github.com/julianstephens/jrnl/internal/jrnl/txn"
	"github.com/julianstephens/jrnl/internal/logger"
)

// InitCmd creates a journal directory, its manifest and its first file.
type InitCmd struct {
	JournalFlags `embed:""`

	Force bool `help:"Overwrite an existing manifest"`
}

func (c *InitCmd) Run(lg logger.Logger, out io.Writer) error {
	if err := helpers.Ensure(c.Dir, true); err != nil {
		return fmt.Errorf("create %s: %w", c.Dir, err)
	}

	// --force rewrites the manifest from fresh settings rather than the old
	// manifest
	cfg, _, err := c.resolveWith(!c.Force)
	if err != nil {
		return err
	}
	if err := writeManifest(c.Dir, cfg, c.Force); err != nil {
		return err
	}

	j, cfg, err := c.open(lg)
	if err != nil {
		return err
	}
	defer stop(j, lg)

	res, err := j.Load(recovery.NopLoader{})
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "initialized %s backend=%s file_size=%s existing_files=%d\n",
		c.Dir, cfg.Factory.Backend, config.FormatSize(uint64(cfg.Journal.FileSize)), len(res.Files)) //nolint:gosec
	return nil
}

func writeManifest(dir string, cfg config.Config, force bool) error {
	m := manifest.FromConfig(cfg)
	err := manifest.Create(dir, m)
	if force && errors.Is(err, manifest.ErrManifestAlreadyExists) {
		return m.Save(dir)
	}
	return err
}

// LoadCmd replays a journal and reports what it holds.
type LoadCmd struct {
	JournalFlags `embed:""`

	Resolve string `help:"Resolve in-doubt prepared transactions" enum:"none,commit,rollback" default:"none"`
	Strict  bool   `help:"Fail when in-doubt transactions remain"`
	JSON    bool   `help:"Print the load result as JSON"`
}

type loadSummary struct {
	Result      *recovery.Result `json:"result"`
	LiveRecords int              `json:"live_records"`
	InDoubt     []uint64         `json:"in_doubt"`
	Resolved    []uint64         `json:"resolved,omitempty"`
	Failed      []uint64         `json:"failed,omitempty"`
	Stats       journal.Stats    `json:"stats"`
}

func (c *LoadCmd) Run(lg logger.Logger, out io.Writer) error {
	j, _, err := c.open(lg)
	if err != nil {
		return err
	}
	defer stop(j, lg)

	tbl := memtable.New()
	res, err := j.Load(tbl)
	if err != nil {
		return err
	}

	sum := loadSummary{Result: res, Failed: tbl.Failed()}
	prepared := tbl.Prepared()
	if c.Resolve != "none" && len(prepared) > 0 {
		commit := c.Resolve == "commit"
		w := txn.NewWriter(txn.AllocatorAfterLoad(res), j, txn.WriterOpts{SyncCommit: true}, lg)
		for _, tx := range prepared {
			if err := w.Resolve(tx.TxID, commit); err != nil {
				return err
			}
			if _, err := tbl.ResolvePrepared(tx.TxID, commit); err != nil {
				return err
			}
			sum.Resolved = append(sum.Resolved, tx.TxID)
		}
		prepared = tbl.Prepared()
	}
	for _, tx := range prepared {
		sum.InDoubt = append(sum.InDoubt, tx.TxID)
	}
	sum.LiveRecords = tbl.Len()
	sum.Stats = j.Stats()

	if c.JSON {
		data, err := jsonutil.Marshal(sum)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(out, string(data))
	} else {
		printLoad(out, sum)
	}

	if c.Strict && len(sum.InDoubt) > 0 {
		return fmt.Errorf("%w: %d unresolved", recovery.ErrInDoubtTransaction, len(sum.InDoubt))
	}
	return nil
}

func printLoad(out io.Writer, sum loadSummary) {
	res := sum.Result
	for _, f := range res.Files {
		_, _ = fmt.Fprintf(out, "file %d  entries=%d valid=%s tail=%s\n",
			f.FileID, f.Entries, bytefmt.ByteSize(uint64(f.ValidBytes)), f.Tail) //nolint:gosec
	}
	_, _ = fmt.Fprintf(out, "live records: %d\n", sum.LiveRecords)
	_, _ = fmt.Fprintf(out, "added=%d updated=%d deleted=%d committed=%d rolled_back=%d failed=%d discarded=%d\n",
		res.Added, res.Updated, res.Deleted, res.Committed, res.RolledBack, res.Failed, res.Discarded)
	_, _ = fmt.Fprintf(out, "in-doubt transactions: %d\n", len(sum.InDoubt))
	if len(sum.Resolved) > 0 {
		_, _ = fmt.Fprintf(out, "resolved transactions: %d\n", len(sum.Resolved))
	}
	_, _ = fmt.Fprintf(out, "damaged: %s\n", generic.If(res.Damaged(), "yes", "no"))
}

// InspectCmd decodes journal files without loading them.
type InspectCmd struct {
	JournalFlags `embed:""`

	File    uint64 `help:"Only inspect this file id"`
	Entries bool   `help:"Print every entry"`
}

func (c *InspectCmd) Run(lg logger.Logger, out io.Writer) error {
	cfg, _, err := c.resolve()
	if err != nil {
		return err
	}
	if !helpers.Exists(c.Dir) {
		return fmt.Errorf("%s: %w", c.Dir, os.ErrNotExist)
	}
	factory, err := c.factory(cfg, lg)
	if err != nil {
		return err
	}
	src, err := recovery.NewDirSource(factory, cfg.Journal.Prefix, cfg.Journal.Extension)
	if err != nil {
		return err
	}

	for _, id := range src.FileIDs() {
		if c.File != 0 && id != c.File {
			continue
		}
		if err := inspectFile(src, id, c.Entries, out); err != nil {
			return err
		}
	}
	return nil
}

func inspectFile(src *recovery.DirSource, id uint64, entries bool, out io.Writer) error {
	rc, err := src.OpenFile(id)
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	_, _ = fmt.Fprintf(out, "%s\n", src.FileName(id))
	hdr, err := record.ReadFileHeader(rc)
	if err != nil {
		_, _ = fmt.Fprintf(out, "  header: %v\n", err)
		return nil
	}
	if hdr.FileID != id {
		_, _ = fmt.Fprintf(out, "  header: file id %d does not match name\n", hdr.FileID)
		return nil
	}

	counts := make(map[record.EntryType]int)
	r := record.NewReader(rc)
	for {
		e, fe, err := r.Next()
		if err != nil {
			if !record.IsCleanEOF(err) {
				_, _ = fmt.Fprintf(out, "  tail at %d: %v\n", r.Offset(), err)
			}
			break
		}
		counts[e.Type]++
		if entries {
			_, _ = fmt.Fprintf(out, "  @%-8d %-12s tx=%d id=%d user_type=%d data=%s\n",
				fe.Offset, e.Type, e.TxID, e.ID, e.UserType, bytefmt.ByteSize(uint64(len(e.Data))))
		}
	}
	for t := record.EntryTypeAdd; t <= record.EntryTypeRollback; t++ {
		if counts[t] > 0 {
			_, _ = fmt.Fprintf(out, "  %-12s %d\n", t, counts[t])
		}
	}
	return nil
}

// StressCmd appends transactions from concurrent workers.
type StressCmd struct {
	JournalFlags `embed:""`

	Workers    int    `help:"Concurrent writers"           default:"8"`
	Txs        int    `help:"Transactions per writer"      default:"100"`
	Ops        int    `help:"Adds per transaction"         default:"3"`
	Payload    string `help:"Record payload size"          default:"128B"`
	SyncCommit bool   `help:"Wait for every commit to reach disk" default:"true" negatable:""`
}

func (c *StressCmd) Run(lg logger.Logger, out io.Writer) error {
	size, err := config.ParseSize(c.Payload)
	if err != nil {
		return fmt.Errorf("payload: %w", err)
	}
	if c.Workers < 1 || c.Txs < 1 || c.Ops < 1 {
		return fmt.Errorf("workers, txs and ops must be positive")
	}

	j, _, err := c.open(lg)
	if err != nil {
		return err
	}
	defer stop(j, lg)

	res, err := j.Load(recovery.NopLoader{})
	if err != nil {
		return err
	}

	ids := txn.AllocatorAfterLoad(res)
	w := txn.NewWriter(ids, j, txn.WriterOpts{SyncCommit: c.SyncCommit}, lg)
	payload := make([]byte, size)

	start := time.Now()
	var g errgroup.Group
	for i := 0; i < c.Workers; i++ {
		g.Go(func() error {
			for n := 0; n < c.Txs; n++ {
				b := txn.NewBatch()
				for k := 0; k < c.Ops; k++ {
					b.Add(ids.Next(), 0, payload)
				}
				if _, err := w.Commit(b); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := j.DebugWait(); err != nil {
		return err
	}
	elapsed := time.Since(start)

	st := j.Stats()
	txs := c.Workers * c.Txs
	_, _ = fmt.Fprintf(out, "transactions=%d records=%d elapsed=%s\n", txs, txs*c.Ops, elapsed.Round(time.Millisecond))
	_, _ = fmt.Fprintf(out, "appends=%d bytes=%s files=%d rotations=%d failed=%d\n",
		st.Appends, bytefmt.ByteSize(st.BytesAppended), st.Files, st.Rotations, st.FailedWrites)
	_, _ = fmt.Fprintf(out, "batches=%d in_flight=%d\n", st.FlushedBatches, st.InFlightBatches)
	if secs := elapsed.Seconds(); secs > 0 {
		_, _ = fmt.Fprintf(out, "throughput=%.0f tx/s %s/s\n",
			float64(txs)/secs, bytefmt.ByteSize(uint64(float64(st.BytesAppended)/secs)))
	}
	return nil
}

// ReclaimCmd loads a journal and deletes the files it no longer needs.
type ReclaimCmd struct {
	JournalFlags `embed:""`

	MinFiles int  `help:"Files to always keep (0 uses the configured value)"`
	DryRun   bool `help:"Only report file usage"`
}

func (c *ReclaimCmd) Run(lg logger.Logger, out io.Writer) error {
	j, cfg, err := c.open(lg)
	if err != nil {
		return err
	}
	defer stop(j, lg)

	if _, err := j.Load(recovery.NopLoader{}); err != nil {
		return err
	}
	policy := reclaim.PrefixReclaimer{MinFiles: generic.If(c.MinFiles > 0, c.MinFiles, cfg.Journal.MinFiles)}
	j.SetReclaimer(policy)

	usage := j.Usage()
	if c.DryRun {
		for _, u := range usage {
			_, _ = fmt.Fprintf(out, "file %d  pins=%d sealed=%t required_by=%d\n", u.ID, u.Pins, u.Sealed, u.RequiredBy)
		}
		_, _ = fmt.Fprintf(out, "reclaimable: %d\n", policy.Reclaimable(usage))
		return nil
	}

	removed, err := j.Reclaim()
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "removed %d file(s) %v, %d remaining\n", len(removed), removed, len(j.FileIDs()))
	return nil
}

// BackendsCmd reports which I/O backends this platform supports.
type BackendsCmd struct{}

func (c *BackendsCmd) Run(_ logger.Logger, out io.Writer) error {
	def := sequential.DefaultConfig()
	_, _ = fmt.Fprintf(out, "%-6s available\n", sequential.BackendSync)
	_, _ = fmt.Fprintf(out, "%-6s %s\n", sequential.BackendAsync,
		generic.If(sequential.AsyncSupported(), "available", "unsupported (falls back to sync)"))
	_, _ = fmt.Fprintf(out, "default: backend=%s buffer=%s flush_timeout=%s max_io=%d\n",
		def.Backend, bytefmt.ByteSize(uint64(def.BufferSize)), def.FlushTimeout, def.MaxIO) //nolint:gosec
	return nil
}
