// Package dict holds the read-only name tables for spacecraft, virtual
// channel and application identifiers.
package dict

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind selects an identifier table.
type Kind int

const (
	Spacecraft Kind = iota
	VirtualChannel
	Application
)

var kindInfo = map[Kind]struct {
	name string
	bits int
}{
	Spacecraft:     {"spacecraft id", 8},
	VirtualChannel: {"virtual channel id", 6},
	Application:    {"application id", 11},
}

func (k Kind) String() string {
	if info, ok := kindInfo[k]; ok {
		return info.name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Bits is the header field width of the identifier.
func (k Kind) Bits() int {
	return kindInfo[k].bits
}

type Entry struct {
	Name  string
	Value int
}

type Store struct {
	byName  map[Kind]map[string]int
	byValue map[Kind]map[int]string
}

// File is the on-disk dictionary layout, YAML or JSON.
type File struct {
	Spacecraft      []FileEntry `json:"spacecraft" yaml:"spacecraft"`
	VirtualChannels []FileEntry `json:"virtualChannels" yaml:"virtualChannels"`
	Applications    []FileEntry `json:"applications" yaml:"applications"`
}

type FileEntry struct {
	Name string `json:"name" yaml:"name"`
	ID   int    `json:"id" yaml:"id"`
}

func newStore() *Store {
	s := &Store{
		byName:  make(map[Kind]map[string]int),
		byValue: make(map[Kind]map[int]string),
	}
	for k := range kindInfo {
		s.byName[k] = make(map[string]int)
		s.byValue[k] = make(map[int]string)
	}
	return s
}

// FromFile validates ranges and rejects duplicate names or ids within a table.
func FromFile(file File) (*Store, error) {
	s := newStore()
	tables := []struct {
		kind    Kind
		label   string
		entries []FileEntry
	}{
		{Spacecraft, "spacecraft", file.Spacecraft},
		{VirtualChannel, "virtualChannels", file.VirtualChannels},
		{Application, "applications", file.Applications},
	}
	for _, table := range tables {
		for i, entry := range table.entries {
			name := normalize(entry.Name)
			if name == "" {
				return nil, fmt.Errorf("%s[%d]: empty name", table.label, i)
			}
			if _, err := strconv.Atoi(name); err == nil {
				return nil, fmt.Errorf("%s[%d]: name %q is numeric", table.label, i, entry.Name)
			}
			if entry.ID < 0 || entry.ID >= 1<<table.kind.Bits() {
				return nil, fmt.Errorf("%s[%d]: id out of range", table.label, i)
			}
			if _, exists := s.byName[table.kind][name]; exists {
				return nil, fmt.Errorf("%s[%d]: duplicate name %q", table.label, i, name)
			}
			if _, exists := s.byValue[table.kind][entry.ID]; exists {
				return nil, fmt.Errorf("%s[%d]: duplicate id %d", table.label, i, entry.ID)
			}
			s.byName[table.kind][name] = entry.ID
			s.byValue[table.kind][entry.ID] = name
		}
	}
	return s, nil
}

// Merge returns a store holding s overlaid with other. Entries of other win
// on conflicting names or ids.
func (s *Store) Merge(other *Store) *Store {
	out := newStore()
	for _, src := range []*Store{s, other} {
		if src == nil {
			continue
		}
		for k, names := range src.byName {
			for name, value := range names {
				if old, ok := out.byName[k][name]; ok {
					delete(out.byValue[k], old)
				}
				if oldName, ok := out.byValue[k][value]; ok {
					delete(out.byName[k], oldName)
				}
				out.byName[k][name] = value
				out.byValue[k][value] = name
			}
		}
	}
	return out
}

func (s *Store) Lookup(kind Kind, name string) (int, bool) {
	if s == nil {
		return 0, false
	}
	v, ok := s.byName[kind][normalize(name)]
	return v, ok
}

func (s *Store) Name(kind Kind, value int) (string, bool) {
	if s == nil {
		return "", false
	}
	name, ok := s.byValue[kind][value]
	return name, ok
}

// Resolve accepts a table name or a decimal/0x-prefixed integer and checks it
// fits the identifier's field width.
func (s *Store) Resolve(kind Kind, text string) (int, error) {
	text = strings.TrimSpace(text)
	if v, ok := s.Lookup(kind, text); ok {
		return v, nil
	}
	v, err := strconv.ParseInt(text, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("unknown %s %q (known: %s)", kind, text, strings.Join(s.Names(kind), ", "))
	}
	if v < 0 || v >= 1<<kind.Bits() {
		return 0, fmt.Errorf("%s %d out of range 0-%d", kind, v, 1<<kind.Bits()-1)
	}
	return int(v), nil
}

// Names lists the names of a table in sorted order.
func (s *Store) Names(kind Kind) []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.byName[kind]))
	for name := range s.byName[kind] {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (s *Store) Entries(kind Kind) []Entry {
	names := s.Names(kind)
	out := make([]Entry, len(names))
	for i, name := range names {
		out[i] = Entry{Name: name, Value: s.byName[kind][name]}
	}
	return out
}

func (s *Store) IsEmpty() bool {
	if s == nil {
		return true
	}
	for _, names := range s.byName {
		if len(names) > 0 {
			return false
		}
	}
	return true
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
