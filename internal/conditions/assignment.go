package conditions

import (
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Condition is the group a sample column belongs to.
type Condition struct {
	Sample    string `json:"name"`
	Condition string `json:"group"`
}

// Assignment maps samples to conditions, keeping the order samples were added.
type Assignment struct {
	entries []Condition
}

// GuessCondition strips the last dot-separated suffix from a sample name, so
// replicates such as "ctrl.1" and "ctrl.2" share the condition "ctrl".
func GuessCondition(sample string) string {
	if i := strings.LastIndex(sample, "."); i >= 0 {
		return sample[:i]
	}
	return sample
}

// Guess builds an assignment with a guessed condition for every sample.
// Repeated samples keep their first position.
func Guess(samples []string) *Assignment {
	a := &Assignment{}
	a.Add(samples...)
	return a
}

// Add appends samples that are not yet assigned, with guessed conditions.
func (a *Assignment) Add(samples ...string) {
	for _, sample := range samples {
		if a.index(sample) >= 0 {
			continue
		}
		a.entries = append(a.entries, Condition{Sample: sample, Condition: GuessCondition(sample)})
	}
}

// Remove drops samples from the assignment.
func (a *Assignment) Remove(samples ...string) {
	for _, sample := range samples {
		if i := a.index(sample); i >= 0 {
			a.entries = append(a.entries[:i], a.entries[i+1:]...)
		}
	}
}

// Set overrides the condition of an assigned sample.
func (a *Assignment) Set(sample, condition string) error {
	i := a.index(sample)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownSample, sample)
	}
	a.entries[i].Condition = strings.TrimSpace(condition)
	return nil
}

// Condition returns the condition assigned to sample.
func (a *Assignment) Condition(sample string) (string, bool) {
	if i := a.index(sample); i >= 0 {
		return a.entries[i].Condition, true
	}
	return "", false
}

// Entries returns the assignment in order.
func (a *Assignment) Entries() []Condition {
	return append([]Condition(nil), a.entries...)
}

// Len returns the number of assigned samples.
func (a *Assignment) Len() int {
	return len(a.entries)
}

func (a *Assignment) index(sample string) int {
	for i, e := range a.entries {
		if e.Sample == sample {
			return i
		}
	}
	return -1
}

// WriteAnnotation writes the assignment as a two-column TSV with a
// "sample\tcondition" header. The file is replaced atomically.
func WriteAnnotation(fs afero.Fs, path string, a *Assignment) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create annotation folder: %w", err)
	}
	tmp, err := afero.TempFile(fs, filepath.Dir(path), ".annotation-*")
	if err != nil {
		return fmt.Errorf("create annotation file: %w", err)
	}
	tmpName := tmp.Name()

	w := csv.NewWriter(tmp)
	w.Comma = '\t'
	records := [][]string{{"sample", "condition"}}
	for _, e := range a.entries {
		records = append(records, []string{e.Sample, e.Condition})
	}
	if err := w.WriteAll(records); err != nil {
		_ = tmp.Close()
		_ = fs.Remove(tmpName)
		return fmt.Errorf("write annotation: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = fs.Remove(tmpName)
		return fmt.Errorf("close annotation: %w", err)
	}
	if err := fs.Rename(tmpName, path); err != nil {
		_ = fs.Remove(tmpName)
		return fmt.Errorf("replace annotation: %w", err)
	}
	return nil
}

// ReadAnnotation loads an annotation written by WriteAnnotation.
func ReadAnnotation(fs afero.Fs, path string) (*Assignment, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open annotation: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = '\t'
	r.FieldsPerRecord = 2
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read annotation %s: %w", path, err)
	}
	a := &Assignment{}
	for i, row := range rows {
		if i == 0 && strings.EqualFold(row[0], "sample") {
			continue
		}
		a.entries = append(a.entries, Condition{Sample: row[0], Condition: row[1]})
	}
	return a, nil
}
