package state

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

const (
	outlierCheckpointFile = "last_checked_outlier.log"
	missingCheckpointFile = "last_checked_missing.log"
	spoolFile             = "drw_entries.csv"
	lastRunFile           = "last_routine.log"
	lastDigestFile        = "last_email_blast.log"
)

var spoolHeader = []string{"project_id", "event_id", "record_id", "form_name", "field_name", "value", "instance"}

// FileStore keeps coordinator state as flat files in one directory, a token
// file per checkpoint and a headered CSV for the spool.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) checkpointPath(kind Kind) string {
	if kind == KindMissing {
		return filepath.Join(s.dir, missingCheckpointFile)
	}
	return filepath.Join(s.dir, outlierCheckpointFile)
}

func (s *FileStore) Checkpoint(kind Kind) (Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.checkpointPath(kind))
	if errors.Is(err, fs.ErrNotExist) {
		return Checkpoint{}, nil
	}
	if err != nil {
		return Checkpoint{}, fmt.Errorf("read checkpoint: %w", err)
	}
	return ParseCheckpoint(string(data)), nil
}

func (s *FileStore) SetCheckpoint(kind Kind, cp Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.WriteFile(s.checkpointPath(kind), []byte(cp.Token()+"\n"), 0o644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return nil
}

func (s *FileStore) spoolPath() string { return filepath.Join(s.dir, spoolFile) }

func (s *FileStore) AppendSpool(entries []SpoolEntry) error {
	if len(entries) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := os.Stat(s.spoolPath())
	needHeader := errors.Is(err, fs.ErrNotExist) || (err == nil && info.Size() == 0)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat spool: %w", err)
	}

	f, err := os.OpenFile(s.spoolPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open spool: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if needHeader {
		if err := w.Write(spoolHeader); err != nil {
			return fmt.Errorf("write spool header: %w", err)
		}
	}
	for _, e := range entries {
		row := []string{
			strconv.FormatInt(e.ProjectID, 10),
			strconv.FormatInt(e.EventID, 10),
			strconv.FormatInt(e.RecordID, 10),
			e.FormName,
			e.FieldName,
			e.Value,
			strconv.Itoa(e.Instance),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write spool row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush spool: %w", err)
	}
	return f.Close()
}

func (s *FileStore) ReadSpool() ([]SpoolEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.spoolPath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open spool: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(spoolHeader)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read spool: %w", err)
	}

	var entries []SpoolEntry
	for i, row := range rows {
		if i == 0 && row[0] == spoolHeader[0] {
			continue
		}
		pid, err1 := strconv.ParseInt(row[0], 10, 64)
		eid, err2 := strconv.ParseInt(row[1], 10, 64)
		rid, err3 := strconv.ParseInt(row[2], 10, 64)
		inst, err4 := strconv.Atoi(row[6])
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			// Skip corrupt rows rather than abandoning the drain.
			continue
		}
		entries = append(entries, SpoolEntry{
			ProjectID: pid,
			EventID:   eid,
			RecordID:  rid,
			FormName:  row[3],
			FieldName: row[4],
			Value:     row[5],
			Instance:  inst,
		})
	}
	return entries, nil
}

func (s *FileStore) ResetSpool() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Create(s.spoolPath())
	if err != nil {
		return fmt.Errorf("truncate spool: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(spoolHeader); err != nil {
		f.Close()
		return fmt.Errorf("write spool header: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("flush spool: %w", err)
	}
	return f.Close()
}

func (s *FileStore) readTime(name string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("read %s: %w", name, err)
	}
	t, err := time.Parse(time.RFC3339, string(trimNewline(data)))
	if err != nil {
		// A garbled timestamp reads as "never recorded".
		return time.Time{}, false, nil
	}
	return t, true, nil
}

func (s *FileStore) writeTime(name string, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.WriteFile(filepath.Join(s.dir, name), []byte(t.Format(time.RFC3339)+"\n"), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func (s *FileStore) LastRun() (time.Time, bool, error) { return s.readTime(lastRunFile) }
func (s *FileStore) SetLastRun(t time.Time) error      { return s.writeTime(lastRunFile, t) }

func (s *FileStore) LastDigest() (time.Time, bool, error) { return s.readTime(lastDigestFile) }
func (s *FileStore) SetLastDigest(t time.Time) error      { return s.writeTime(lastDigestFile, t) }

func trimNewline(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}
