package recovery

import (
	"io"

	"github.com/julianstephens/go-utils/generic"
	"github.com/julianstephens/go-utils/validator"
	"github.com/julianstephens/jrnl/internal/jrnl/errorutil"
	"github.com/julianstephens/jrnl/internal/jrnl/record"
	"github.com/julianstephens/jrnl/internal/logger"
)

type TailStatus int

const (
	// TailStatusValid means the file ended cleanly after its last entry.
	TailStatusValid TailStatus = iota
	// TailStatusTruncated means the last entry was cut short, the usual
	// signature of a crash during a write.
	TailStatusTruncated
	// TailStatusCorrupt means an entry failed validation; the rest of the
	// file was ignored.
	TailStatusCorrupt
)

func (ts TailStatus) String() string {
	switch ts {
	case TailStatusValid:
		return "valid"
	case TailStatusTruncated:
		return "truncated"
	case TailStatusCorrupt:
		return "corrupt"
	default:
		return "unknown"
	}
}

// FileReport describes what load found in one journal file.
type FileReport struct {
	FileID  uint64     `json:"file_id"`
	Name    string     `json:"name"`
	Entries int        `json:"entries"`
	Tail    TailStatus `json:"tail"`
	// ValidBytes is the length of the valid prefix, header included.
	ValidBytes int64 `json:"valid_bytes"`
	// SafeTruncateOffset is where the file could be cut to drop an invalid
	// tail; equal to ValidBytes.
	SafeTruncateOffset int64 `json:"safe_truncate_offset"`
	// TailErr is the parse error that ended the file, if any.
	TailErr error `json:"-"`
}

// Result summarises a load.
type Result struct {
	Files       []FileReport `json:"files"`
	MaxRecordID uint64       `json:"max_record_id"`
	MaxTxID     uint64       `json:"max_tx_id"`

	Added      int `json:"added"`
	Updated    int `json:"updated"`
	Deleted    int `json:"deleted"`
	Committed  int `json:"committed"`
	RolledBack int `json:"rolled_back"`
	Prepared   int `json:"prepared"`
	Failed     int `json:"failed"`
	Discarded  int `json:"discarded"`
}

// LastFileID is the highest file id loaded, or 0 for an empty journal.
func (r *Result) LastFileID() uint64 {
	if r == nil || len(r.Files) == 0 {
		return 0
	}
	return r.Files[len(r.Files)-1].FileID
}

// Damaged reports whether any file ended in a truncated or corrupt tail.
func (r *Result) Damaged() bool {
	for _, f := range r.Files {
		if f.Tail != TailStatusValid {
			return true
		}
	}
	return false
}

// Replay reads every file of src in order and reports the reconstructed
// state to cb. A truncated or corrupt entry ends its file without error;
// file enumeration or read failures and callback errors halt the replay.
// tr may be nil.
func Replay(src FileSource, cb LoaderCallback, tr Tracker, lg logger.Logger) (*Result, error) {
	lg = logger.OrNoOp(lg)
	if cb == nil {
		cb = NopLoader{}
	}

	result := &Result{}
	state := newReplayState(cb, tr, lg, result)

	ids := src.FileIDs()
	if err := validateFileIDs(ids); err != nil {
		lg.Error("journal file validation failed", err)
		return result, &ReplaySourceError{
			Coordinates: &errorutil.Coordinates{},
			Kind:        ReplaySourceFileOrder,
			Cause:       err,
			Err:         ErrFileOrder,
		}
	}

	lg.Info("starting journal load", "files", len(ids))

	for _, id := range ids {
		report, err := replayFile(src, id, state, lg)
		result.Files = append(result.Files, report)
		if err != nil {
			return result, err
		}
	}

	if err := state.finish(); err != nil {
		return result, err
	}

	lg.Info("journal load complete",
		"files", len(ids),
		"added", result.Added,
		"updated", result.Updated,
		"deleted", result.Deleted,
		"committed", result.Committed,
		"prepared", result.Prepared,
		"failed", result.Failed,
		"max_record_id", result.MaxRecordID,
		"max_tx_id", result.MaxTxID,
	)
	return result, nil
}

func replayFile(src FileSource, id uint64, state *replayState, lg logger.Logger) (FileReport, error) {
	report := FileReport{FileID: id, Name: src.FileName(id)}
	lg.Debug("loading journal file", "file", id, "name", report.Name)

	rc, err := src.OpenFile(id)
	if err != nil {
		lg.Error("failed to open journal file", err, "file", id)
		return report, &ReplaySourceError{
			Coordinates: &errorutil.Coordinates{FileID: &id},
			Kind:        ReplaySourceFileOpen,
			Cause:       err,
			Err:         ErrFileOpen,
		}
	}
	defer func() {
		if cerr := rc.Close(); cerr != nil {
			lg.Error("failed to close journal file", cerr, "file", id)
		}
	}()

	hdr, err := record.ReadFileHeader(rc)
	if err == nil && hdr.FileID != id {
		err = &record.ParseError{Kind: record.KindBadHeader, Want: int(id), Have: int(hdr.FileID), Err: record.ErrBadHeader} //nolint:gosec
	}
	if err != nil {
		return endOfFile(report, err, 0, state, lg)
	}
	report.ValidBytes = record.HeaderSize

	r := record.NewReader(rc)
	for {
		e, fe, err := r.Next()
		if err != nil {
			if err == io.EOF {
				report.SafeTruncateOffset = report.ValidBytes
				lg.Debug("journal file read complete", "file", id, "entries", report.Entries)
				return report, nil
			}
			return endOfFile(report, err, report.ValidBytes, state, lg)
		}

		if err := state.apply(e, id, fe.Offset); err != nil {
			return report, err
		}
		report.Entries++
		report.ValidBytes = fe.Offset + fe.Size
	}
}

// endOfFile classifies the error that stopped a file. Truncation and
// corruption end the file quietly; read failures halt the load.
func endOfFile(report FileReport, err error, safe int64, state *replayState, lg logger.Logger) (FileReport, error) {
	pe, ok := record.AsParseError(err)
	if ok && pe.Kind == record.KindIO {
		lg.Error("failed to read journal file", err, "file", report.FileID)
		id := report.FileID
		return report, &ReplaySourceError{
			Coordinates: errorutil.At(id, safe),
			Kind:        ReplaySourceFileRead,
			Cause:       err,
			Err:         ErrFileRead,
		}
	}

	report.Tail = generic.If(record.IsTruncation(err), TailStatusTruncated, TailStatusCorrupt)
	report.TailErr = err
	report.SafeTruncateOffset = safe
	lg.Warn("journal file ends in invalid data; ignoring remainder",
		"file", report.FileID,
		"tail", report.Tail.String(),
		"entries", report.Entries,
		"safe_offset", safe,
		"reason", err.Error(),
	)
	return report, nil
}

// validateFileIDs checks that ids are non-zero and consecutive; a gap means
// a journal file went missing.
func validateFileIDs(ids []uint64) error {
	v := validator.Numbers[uint64]()

	for i, id := range ids {
		if err := v.ValidateNonZero(id); err != nil {
			return err
		}
		if i > 0 {
			if err := v.ValidateConsecutive(ids[i-1], id); err != nil {
				return err
			}
		}
	}
	return nil
}
