// Package table holds the fixed-schema in-memory result of a run: one Record
// per extracted MIDI payload.
package table

import "sort"

// Record is one extracted payload. Construct it with NewRecord so FileSize
// always matches len(Content).
type Record struct {
	Group    string
	FileName string
	Content  []byte
	FileSize int64
}

// NewRecord builds a Record whose FileSize is the exact length of content.
func NewRecord(group, fileName string, content []byte) Record {
	return Record{
		Group:    group,
		FileName: fileName,
		Content:  content,
		FileSize: int64(len(content)),
	}
}

// Table is an unordered collection of Records. Only the goroutine that built
// it may call Append; once handed off it must be treated as read-only.
type Table struct {
	records []Record
}

// New returns an empty table with room for sizeHint records.
func New(sizeHint int) *Table {
	if sizeHint < 0 {
		sizeHint = 0
	}
	return &Table{records: make([]Record, 0, sizeHint)}
}

// Append adds records to the table.
func (t *Table) Append(recs ...Record) {
	t.records = append(t.records, recs...)
}

// Len returns the number of records.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.records)
}

// Records exposes the underlying slice. Callers must not modify it.
func (t *Table) Records() []Record {
	if t == nil {
		return nil
	}
	return t.records
}

// Partitions splits the table by group. Groups are returned sorted so callers
// iterate deterministically.
func (t *Table) Partitions() (groups []string, byGroup map[string][]Record) {
	byGroup = make(map[string][]Record)
	for _, r := range t.Records() {
		byGroup[r.Group] = append(byGroup[r.Group], r)
	}
	groups = make([]string, 0, len(byGroup))
	for g := range byGroup {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	return groups, byGroup
}
