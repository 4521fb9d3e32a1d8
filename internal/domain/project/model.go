package project

import (
	"fmt"
	"path"
	"slices"
	"strings"
)

// Category is a configured bucket partitioning a project's files by role,
// e.g. unprocessed or sample_annotation. It is also the name of the bucket's
// folder under the data root.
type Category string

// FileRecord identifies one tracked file. Equality for drift detection is
// (Category, Path, Filename, Digest); RemoteID is carried alongside and never
// part of it.
type FileRecord struct {
	Category Category `json:"-"`
	Filename string   `json:"filename"`
	Path     []string `json:"path"`
	Digest   string   `json:"sha1"`
	RemoteID *int64   `json:"remote_id"`
}

// FileKey is the comparable identity of a FileRecord.
type FileKey struct {
	Category Category
	Path     string
	Filename string
	Digest   string
}

// Location is a FileKey without the digest: where a file lives, regardless
// of its content.
type Location struct {
	Category Category
	Path     string
	Filename string
}

// Key returns the record's identity.
func (f FileRecord) Key() FileKey {
	return FileKey{Category: f.Category, Path: path.Join(f.Path...), Filename: f.Filename, Digest: f.Digest}
}

// Loc returns where the record lives.
func (f FileRecord) Loc() Location {
	return Location{Category: f.Category, Path: path.Join(f.Path...), Filename: f.Filename}
}

// RelPath is the slash-separated path of the file below the data root.
func (f FileRecord) RelPath() string {
	parts := make([]string, 0, len(f.Path)+2)
	parts = append(parts, string(f.Category))
	parts = append(parts, f.Path...)
	parts = append(parts, f.Filename)
	return path.Join(parts...)
}

// Linked reports whether the file has been uploaded.
func (f FileRecord) Linked() bool {
	return f.RemoteID != nil
}

func (f FileRecord) String() string {
	return f.RelPath()
}

// ValidateLocation rejects path segments and filenames that could leave the
// category folder: empty names, "." and "..", and anything holding a
// separator.
func ValidateLocation(segments []string, filename string) error {
	if !validComponent(filename) {
		return fmt.Errorf("%w: invalid filename %q", ErrInvalidInput, filename)
	}
	for _, seg := range segments {
		if !validComponent(seg) {
			return fmt.Errorf("%w: invalid path segment %q", ErrInvalidInput, seg)
		}
	}
	return nil
}

func validComponent(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, `/\`)
}

// compareRecords orders records by (category, path segments, filename), the
// canonical fold order for the composite hash. Digest breaks remaining ties
// so the order is total.
func compareRecords(a, b FileRecord) int {
	if c := strings.Compare(string(a.Category), string(b.Category)); c != 0 {
		return c
	}
	if c := slices.Compare(a.Path, b.Path); c != 0 {
		return c
	}
	if c := strings.Compare(a.Filename, b.Filename); c != 0 {
		return c
	}
	return strings.Compare(a.Digest, b.Digest)
}

// SortRecords puts records into canonical order in place.
func SortRecords(records []FileRecord) {
	slices.SortFunc(records, compareRecords)
}

// Snapshot is the authoritative description of a project folder: its
// identity, metadata and the file tree observed by the last refresh.
type Snapshot struct {
	ProjectID     int64                     `json:"project_id"`
	GlobalID      string                    `json:"project_global_id"`
	RemoteID      *int64                    `json:"remote_id"`
	Name          string                    `json:"project_name"`
	Description   string                    `json:"description"`
	LocalPath     string                    `json:"project_path"`
	DataPath      string                    `json:"project_data_path"`
	Metadata      Metadata                  `json:"project_metadata"`
	Files         map[Category][]FileRecord `json:"project_files"`
	CompositeHash string                    `json:"project_hash"`
}

// AllFiles returns every tracked record in canonical order.
func (s *Snapshot) AllFiles() []FileRecord {
	var all []FileRecord
	for _, records := range s.Files {
		all = append(all, records...)
	}
	SortRecords(all)
	return all
}

// FileCount returns the number of tracked records.
func (s *Snapshot) FileCount() int {
	n := 0
	for _, records := range s.Files {
		n += len(records)
	}
	return n
}

// Find returns the record with the given identity.
func (s *Snapshot) Find(key FileKey) (FileRecord, bool) {
	for _, rec := range s.Files[key.Category] {
		if rec.Key() == key {
			return rec, true
		}
	}
	return FileRecord{}, false
}

// SetFileRemoteID links (or, with nil, unlinks) the record with the given
// identity. It reports whether the record exists.
func (s *Snapshot) SetFileRemoteID(key FileKey, remoteID *int64) bool {
	records := s.Files[key.Category]
	for i := range records {
		if records[i].Key() == key {
			if remoteID == nil {
				records[i].RemoteID = nil
			} else {
				id := *remoteID
				records[i].RemoteID = &id
			}
			return true
		}
	}
	return false
}

// normalize restores fields that are implied by the JSON layout.
func (s *Snapshot) normalize() {
	if s.Files == nil {
		s.Files = map[Category][]FileRecord{}
	}
	if s.Metadata == nil {
		s.Metadata = Metadata{}
	}
	for cat, records := range s.Files {
		for i := range records {
			records[i].Category = cat
			if records[i].Path == nil {
				records[i].Path = []string{}
			}
		}
		SortRecords(records)
	}
}

// Int64 returns a pointer to v, for RemoteID fields.
func Int64(v int64) *int64 {
	return &v
}
