package session

import (
	"fmt"
	"os"

	"github.com/chazu/myl/pkg/bytecode"
	"github.com/fxamacker/cbor/v2"
)

// SnapshotVersion is bumped whenever the encoded layout changes.
const SnapshotVersion = 1

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("session: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

type snapshot struct {
	Version int                  `cbor:"1,keyasint"`
	Globals map[string]snapValue `cbor:"2,keyasint"`
}

type snapValue struct {
	Kind  bytecode.Kind `cbor:"1,keyasint"`
	Bool  bool          `cbor:"2,keyasint,omitempty"`
	Num   float64       `cbor:"3,keyasint,omitempty"`
	Str   string        `cbor:"4,keyasint,omitempty"`
	Elems []snapValue   `cbor:"5,keyasint,omitempty"`
}

// errNotStorable marks values a snapshot leaves out.
type errNotStorable struct{ kind bytecode.Kind }

func (e errNotStorable) Error() string {
	return fmt.Sprintf("%s values cannot be saved", e.kind)
}

// Snapshot encodes every global holding data. Functions and natives, and
// arrays containing them, are left out. Arrays are saved by value, so
// aliasing between globals is not preserved; a cyclic array is an error.
func (s *Session) Snapshot() ([]byte, error) {
	snap := snapshot{Version: SnapshotVersion, Globals: make(map[string]snapValue)}
	for _, name := range s.globals.Names() {
		v, _ := s.globals.Get(name)
		sv, err := encodeValue(v, make(map[*bytecode.Array]bool))
		if err != nil {
			if _, ok := err.(errNotStorable); ok {
				continue
			}
			return nil, fmt.Errorf("snapshot: global '%s': %w", name, err)
		}
		snap.Globals[name] = sv
	}
	data, err := cborEncMode.Marshal(&snap)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	log.Debugf("snapshot of %d globals (%d bytes)", len(snap.Globals), len(data))
	return data, nil
}

// Restore defines every global in data, replacing existing globals with
// the same name and leaving the rest alone.
func (s *Session) Restore(data []byte) error {
	var snap snapshot
	if err := cbor.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	if snap.Version != SnapshotVersion {
		return fmt.Errorf("restore: unsupported snapshot version %d", snap.Version)
	}

	values := make(map[string]bytecode.Value, len(snap.Globals))
	for name, sv := range snap.Globals {
		v, err := decodeValue(sv)
		if err != nil {
			return fmt.Errorf("restore: global '%s': %w", name, err)
		}
		values[name] = v
	}
	for name, v := range values {
		s.globals.Define(name, v)
	}
	log.Debugf("restored %d globals", len(values))
	return nil
}

// SaveFile writes a snapshot to path.
func (s *Session) SaveFile(path string) error {
	data, err := s.Snapshot()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// LoadFile restores a snapshot written by SaveFile.
func (s *Session) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return s.Restore(data)
}

func encodeValue(v bytecode.Value, seen map[*bytecode.Array]bool) (snapValue, error) {
	sv := snapValue{Kind: v.Kind()}
	switch v.Kind() {
	case bytecode.KindNil:
	case bytecode.KindBool:
		sv.Bool = v.AsBool()
	case bytecode.KindNumber:
		sv.Num = v.AsNumber()
	case bytecode.KindString:
		sv.Str = v.AsString()
	case bytecode.KindArray:
		arr := v.AsArray()
		if seen[arr] {
			return snapValue{}, fmt.Errorf("cyclic array")
		}
		seen[arr] = true
		defer delete(seen, arr)

		sv.Elems = make([]snapValue, len(arr.Elems))
		for i, elem := range arr.Elems {
			ev, err := encodeValue(elem, seen)
			if err != nil {
				return snapValue{}, err
			}
			sv.Elems[i] = ev
		}
	default:
		return snapValue{}, errNotStorable{v.Kind()}
	}
	return sv, nil
}

func decodeValue(sv snapValue) (bytecode.Value, error) {
	switch sv.Kind {
	case bytecode.KindNil:
		return bytecode.Nil, nil
	case bytecode.KindBool:
		return bytecode.BoolValue(sv.Bool), nil
	case bytecode.KindNumber:
		return bytecode.NumberValue(sv.Num), nil
	case bytecode.KindString:
		return bytecode.StringValue(sv.Str), nil
	case bytecode.KindArray:
		elems := make([]bytecode.Value, len(sv.Elems))
		for i, e := range sv.Elems {
			v, err := decodeValue(e)
			if err != nil {
				return bytecode.Nil, err
			}
			elems[i] = v
		}
		return bytecode.ArrayValue(bytecode.NewArray(elems)), nil
	default:
		return bytecode.Nil, fmt.Errorf("unexpected value kind %d", sv.Kind)
	}
}
