// Package store persists run records as a single JSON document keyed by job
// name. Load tolerates a missing or empty file, Save replaces the document
// atomically, and Merge adds records for newly scheduled jobs without
// touching existing ones. Records of jobs that left the schedule are kept.
package store

import (
	"bytes"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/aatumaykin/cronrunner/internal/interval"
	"github.com/aatumaykin/cronrunner/internal/logger"
	"github.com/aatumaykin/cronrunner/internal/schedule"
)

const (
	// DefaultFile is the store file name used when none is configured.
	DefaultFile = "cron_scheduler.json"
)

// ErrCorrupt marks a store document that cannot be parsed.
var ErrCorrupt = errors.New("run store is corrupt")

// Record is the persisted state of one job.
//
// Fields the record does not know, and known fields stored in a shape other
// than the expected one (a command kept as an array, say), are carried in
// raw form and written back unchanged until Refresh or Finish replaces them.
type Record struct {
	Name        string
	Interval    string
	Command     string // empty when the stored command is not a string
	ExtraParams map[string]any
	LastRun     Timestamp
	LastResult  string

	raw map[string]json.RawMessage
}

// NewRecord returns a never-run record for def.
func NewRecord(def schedule.JobDefinition) *Record {
	r := &Record{}
	r.Refresh(def)
	return r
}

// Refresh copies the definition fields of def into the record, leaving the
// run history alone.
func (r *Record) Refresh(def schedule.JobDefinition) {
	def = def.Clone()
	r.drop("name", "interval", "command", "extraParams")
	r.Name = def.Name
	r.Interval = def.Interval
	r.Command = def.Command
	r.ExtraParams = def.ExtraParams
	if r.ExtraParams == nil {
		r.ExtraParams = map[string]any{}
	}
}

// Finish records the outcome of a dispatch that completed at finishedAt.
func (r *Record) Finish(finishedAt time.Time, result string) {
	r.drop("lastRun", "lastResult")
	r.LastRun = At(finishedAt)
	r.LastResult = result
}

// NextDue returns when the record's job is next due according to its stored interval.
func (r *Record) NextDue(calc *interval.Calculator) (time.Time, error) {
	return calc.NextDue(r.LastRun.Time, r.Interval)
}

// Raw returns the stored form of a field the record did not decode.
func (r *Record) Raw(key string) (json.RawMessage, bool) {
	v, ok := r.raw[key]
	return v, ok
}

func (r *Record) drop(keys ...string) {
	for _, k := range keys {
		delete(r.raw, k)
	}
}

var recordKeys = []string{"name", "interval", "command", "extraParams", "lastRun", "lastResult"}

// MarshalJSON writes the known fields in a fixed order followed by the
// carried raw fields sorted by key.
func (r Record) MarshalJSON() ([]byte, error) {
	values := map[string]any{
		"name":        r.Name,
		"interval":    r.Interval,
		"command":     r.Command,
		"extraParams": r.ExtraParams,
		"lastRun":     r.LastRun,
		"lastResult":  r.LastResult,
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	write := func(key string, value []byte) {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(key)
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(value)
	}

	for _, key := range recordKeys {
		if raw, ok := r.raw[key]; ok {
			write(key, raw)
			continue
		}
		data, err := json.Marshal(values[key])
		if err != nil {
			return nil, errors.Wrapf(err, "encode %s", key)
		}
		write(key, data)
	}

	extra := make([]string, 0, len(r.raw))
	for key := range r.raw {
		if _, known := values[key]; !known {
			extra = append(extra, key)
		}
	}
	sort.Strings(extra)
	for _, key := range extra {
		write(key, r.raw[key])
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a stored record. Only an unreadable lastRun is an
// error, since due-ness depends on it.
func (r *Record) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if fields == nil {
		return errors.New("record is null")
	}

	*r = Record{}
	for key, value := range fields {
		var target any
		switch key {
		case "name":
			target = &r.Name
		case "interval":
			target = &r.Interval
		case "command":
			target = &r.Command
		case "lastResult":
			target = &r.LastResult
		case "extraParams":
			target = &r.ExtraParams
		case "lastRun":
			if err := json.Unmarshal(value, &r.LastRun); err != nil {
				return errors.Wrap(err, "lastRun")
			}
			continue
		}
		if target != nil && !isNull(value) && decodeField(value, target) == nil {
			continue
		}
		if r.raw == nil {
			r.raw = make(map[string]json.RawMessage)
		}
		r.raw[key] = value
	}
	return nil
}

func decodeField(value json.RawMessage, target any) error {
	dec := json.NewDecoder(bytes.NewReader(value))
	dec.UseNumber()
	return dec.Decode(target)
}

func isNull(value json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(value), []byte("null"))
}

// Records maps job name to record.
type Records map[string]*Record

// Names returns the record names sorted.
func (rs Records) Names() []string {
	names := make([]string, 0, len(rs))
	for name := range rs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Merge inserts a fresh record for every scheduled job missing from rs and
// returns the names it added, in schedule order. Existing records are not
// modified.
func Merge(sched schedule.Schedule, rs Records) []string {
	var added []string
	for _, def := range sched.Jobs() {
		if _, ok := rs[def.Name]; ok {
			continue
		}
		rs[def.Name] = NewRecord(def)
		added = append(added, def.Name)
	}
	return added
}

// Store reads and writes the run-record document.
type Store struct {
	path   string
	logger *logger.Logger
}

// New returns a store for the document dir/file.
func New(dir, file string, log *logger.Logger) *Store {
	if file == "" {
		file = DefaultFile
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Store{
		path:   filepath.Join(dir, file),
		logger: log,
	}
}

// Path returns the document path.
func (s *Store) Path() string { return s.path }

// Load reads the document. A missing or blank document yields an empty set.
// A document that does not parse is reported as ErrCorrupt.
func (s *Store) Load() (Records, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Debug("run store not found, starting empty", logger.Field{Key: "file", Value: s.path})
		return Records{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read run store %s", s.path)
	}

	records, err := decode(data)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "parse run store %s", s.path), ErrCorrupt)
	}

	s.logger.Debug("run store loaded",
		logger.Field{Key: "file", Value: s.path},
		logger.Field{Key: "count", Value: len(records)})
	return records, nil
}

func decode(data []byte) (Records, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Records{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]*Record
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data after document")
	}

	records := make(Records, len(raw))
	for name, rec := range raw {
		if rec == nil {
			return nil, errors.Newf("record %q is null", name)
		}
		if rec.Name == "" {
			rec.Name = name
		}
		if _, stored := rec.raw["extraParams"]; !stored && rec.ExtraParams == nil {
			rec.ExtraParams = map[string]any{}
		}
		records[name] = rec
	}
	return records, nil
}

// Save atomically replaces the document with records: the JSON is written
// to a temporary file in the same directory, synced, then renamed over the
// document.
func (s *Store) Save(records Records) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "create store directory %s", dir)
	}

	data, err := json.MarshalIndent(records, "", "    ")
	if err != nil {
		return errors.Wrap(err, "encode run store")
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return errors.Wrapf(err, "create temporary store file in %s", dir)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return errors.Wrapf(err, "write %s", tmpPath)
	}
	if err := tmp.Chmod(0644); err != nil {
		cleanup()
		return errors.Wrapf(err, "chmod %s", tmpPath)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return errors.Wrapf(err, "sync %s", tmpPath)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return errors.Wrapf(err, "close %s", tmpPath)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return errors.Wrapf(err, "rename %s to %s", tmpPath, s.path)
	}

	s.logger.Debug("run store saved",
		logger.Field{Key: "file", Value: s.path},
		logger.Field{Key: "count", Value: len(records)})
	return nil
}
