package emotion

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

//go:embed data/presets.json
var defaultPresetsJSON []byte

type Preset struct {
	Name   string
	Vector Vector

	// keys is the field order the preset was decoded with.
	keys []string
}

// Presets is an ordered preset list. It serializes as a JSON object mapping
// name to field map, keeping list order as key order. Each preset's fields
// are written in the order they were read, followed by any it lacked.
type Presets []Preset

var vectorKeys = sync.OnceValue(func() []string {
	data, err := json.Marshal(DefaultVector())
	if err != nil {
		panic(err)
	}
	keys, err := objectKeys(data)
	if err != nil {
		panic(err)
	}
	return keys
})

func (p Presets) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, preset := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(preset.Name)
		if err != nil {
			return nil, err
		}
		fields, err := marshalFields(preset.Vector, preset.keys)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(fields)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func marshalFields(v Vector, keys []string) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil || len(keys) == 0 {
		return data, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	written := make(map[string]bool, len(fields))
	write := func(key string) {
		value, ok := fields[key]
		if !ok || written[key] {
			return
		}
		if len(written) > 0 {
			buf.WriteByte(',')
		}
		name, _ := json.Marshal(key)
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(value)
		written[key] = true
	}
	for _, key := range keys {
		write(key)
	}
	for _, key := range vectorKeys() {
		write(key)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// objectKeys lists the top-level keys of a JSON object in document order.
func objectKeys(data []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}

	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		keys = append(keys, tok.(string))
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

// UnmarshalJSON decodes each preset onto DefaultVector, so fields missing
// from the file keep their default values. A repeated name keeps its first
// position and its last value.
func (p *Presets) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("presets: expected object, got %v", tok)
	}

	var out Presets
	index := make(map[string]int)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name := tok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("preset %q: %w", name, err)
		}
		keys, err := objectKeys(raw)
		if err != nil {
			return fmt.Errorf("preset %q: %w", name, err)
		}
		v := DefaultVector()
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("preset %q: %w", name, err)
		}
		if !v.Modifier.Valid() {
			return fmt.Errorf("preset %q: invalid modifier %d", name, int(v.Modifier))
		}

		if i, ok := index[name]; ok {
			out[i].Vector = v
			out[i].keys = keys
			continue
		}
		index[name] = len(out)
		out = append(out, Preset{Name: name, Vector: v, keys: keys})
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	*p = out
	return nil
}

func (p Presets) Names() []string {
	names := make([]string, len(p))
	for i, preset := range p {
		names[i] = preset.Name
	}
	return names
}

func (p Presets) Equal(other Presets) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i].Name != other[i].Name || p[i].Vector != other[i].Vector {
			return false
		}
	}
	return true
}

// DefaultPresets returns the built-in emotion table.
func DefaultPresets() Presets {
	var presets Presets
	if err := json.Unmarshal(defaultPresetsJSON, &presets); err != nil {
		panic(fmt.Sprintf("embedded presets: %v", err))
	}
	return presets
}

// EncodePresets renders presets as the indented JSON a preset file holds.
func EncodePresets(presets Presets) ([]byte, error) {
	data, err := json.MarshalIndent(presets, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode presets: %w", err)
	}
	return append(data, '\n'), nil
}

// ParsePresets decodes a preset file's contents. An empty table is an error.
func ParsePresets(data []byte) (Presets, error) {
	var presets Presets
	if err := json.Unmarshal(data, &presets); err != nil {
		return nil, fmt.Errorf("parse presets: %w", err)
	}
	if len(presets) == 0 {
		return nil, ErrCannotRemoveLast
	}
	return presets, nil
}

func LoadPresetFile(path string) (Presets, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read presets: %w", err)
	}

	presets, err := ParsePresets(data)
	if err != nil {
		return nil, fmt.Errorf("presets %s: %w", path, err)
	}
	return presets, nil
}

// SavePresetFile writes presets as indented JSON, replacing path atomically.
func SavePresetFile(path string, presets Presets) error {
	data, err := EncodePresets(presets)
	if err != nil {
		return err
	}
	return WritePresetFile(path, data)
}

// WritePresetFile replaces path with data through a temp file and rename, so
// readers never see a partial table.
func WritePresetFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create preset dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".presets-*.json")
	if err != nil {
		return fmt.Errorf("create temp preset file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write presets: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write presets: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace presets: %w", err)
	}
	return nil
}

// PresetStore is the ordered, concurrency-safe preset mapping. It always
// holds at least one preset.
type PresetStore struct {
	mu        sync.RWMutex
	order     []string
	vectors   map[string]Vector
	keys      map[string][]string
	protected map[string]bool

	onChange []func(Presets)
}

func NewPresetStore(presets Presets) (*PresetStore, error) {
	if len(presets) == 0 {
		return nil, ErrCannotRemoveLast
	}

	s := &PresetStore{protected: make(map[string]bool)}
	s.reset(presets)
	return s, nil
}

func (s *PresetStore) reset(presets Presets) {
	s.order = make([]string, 0, len(presets))
	s.vectors = make(map[string]Vector, len(presets))
	s.keys = make(map[string][]string, len(presets))
	for _, p := range presets {
		if _, ok := s.vectors[p.Name]; !ok {
			s.order = append(s.order, p.Name)
		}
		s.vectors[p.Name] = p.Vector
		s.keys[p.Name] = p.keys
	}
}

// OnChange registers fn to receive a snapshot after every mutation. It is
// called outside the store lock.
func (s *PresetStore) OnChange(fn func(Presets)) {
	s.mu.Lock()
	s.onChange = append(s.onChange, fn)
	s.mu.Unlock()
}

// Protect marks name as never removable.
func (s *PresetStore) Protect(name string) {
	s.mu.Lock()
	s.protected[name] = true
	s.mu.Unlock()
}

func (s *PresetStore) Get(name string) (Vector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.vectors[name]
	if !ok {
		return Vector{}, fmt.Errorf("%w: %q", ErrPresetNotFound, name)
	}
	return v, nil
}

func (s *PresetStore) Has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.vectors[name]
	return ok
}

func (s *PresetStore) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

func (s *PresetStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Upsert inserts name at the end of the list, or replaces its vector in place.
func (s *PresetStore) Upsert(name string, v Vector) error {
	if name == "" {
		return ErrEmptyName
	}

	s.mu.Lock()
	if _, ok := s.vectors[name]; !ok {
		s.order = append(s.order, name)
	}
	s.vectors[name] = v
	snapshot, listeners := s.snapshotLocked()
	s.mu.Unlock()

	notify(listeners, snapshot)
	return nil
}

// CanRemove reports why name could not be removed, or nil.
func (s *PresetStore) CanRemove(name string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.canRemoveLocked(name)
}

func (s *PresetStore) canRemoveLocked(name string) error {
	if _, ok := s.vectors[name]; !ok {
		return fmt.Errorf("%w: %q", ErrPresetNotFound, name)
	}
	if s.protected[name] {
		return fmt.Errorf("%w: %q", ErrProtectedPreset, name)
	}
	if len(s.order) == 1 {
		return ErrCannotRemoveLast
	}
	return nil
}

// Remove deletes name. The store is unchanged on error.
func (s *PresetStore) Remove(name string) error {
	s.mu.Lock()
	if err := s.canRemoveLocked(name); err != nil {
		s.mu.Unlock()
		return err
	}

	delete(s.vectors, name)
	delete(s.keys, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	snapshot, listeners := s.snapshotLocked()
	s.mu.Unlock()

	notify(listeners, snapshot)
	return nil
}

// FirstOther returns the first preset in list order that is not name.
func (s *PresetStore) FirstOther(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, n := range s.order {
		if n != name {
			return n, true
		}
	}
	return "", false
}

// Replace swaps in a whole new table. Protected names missing from presets
// are carried over so they stay present. It reports whether anything changed.
func (s *PresetStore) Replace(presets Presets) (bool, error) {
	if len(presets) == 0 {
		return false, ErrCannotRemoveLast
	}

	s.mu.Lock()
	next := append(Presets(nil), presets...)
	for _, name := range s.order {
		if !s.protected[name] {
			continue
		}
		found := false
		for _, p := range next {
			if p.Name == name {
				found = true
				break
			}
		}
		if !found {
			next = append(next, Preset{Name: name, Vector: s.vectors[name], keys: s.keys[name]})
		}
	}

	current, _ := s.snapshotLocked()
	s.reset(next)
	snapshot, listeners := s.snapshotLocked()
	s.mu.Unlock()

	if current.Equal(snapshot) {
		return false, nil
	}
	notify(listeners, snapshot)
	return true, nil
}

func (s *PresetStore) Export() Presets {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot, _ := s.snapshotLocked()
	return snapshot
}

func (s *PresetStore) snapshotLocked() (Presets, []func(Presets)) {
	out := make(Presets, len(s.order))
	for i, name := range s.order {
		out[i] = Preset{Name: name, Vector: s.vectors[name], keys: s.keys[name]}
	}
	return out, slices.Clone(s.onChange)
}

func notify(listeners []func(Presets), snapshot Presets) {
	for _, fn := range listeners {
		fn(snapshot)
	}
}
