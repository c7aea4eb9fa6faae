package trace

import (
	"fmt"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// cborEncMode uses canonical mode for deterministic encoding.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("trace: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// DumpVersion is the current trace dump format version.
const DumpVersion = 1

// Dump is the on-disk representation of a recorded trace.
type Dump struct {
	Version   int       `cbor:"1,keyasint"`
	CreatedAt time.Time `cbor:"2,keyasint"`
	Events    []Event   `cbor:"3,keyasint"`
}

// MarshalDump serializes a Dump to CBOR bytes.
func MarshalDump(d *Dump) ([]byte, error) {
	return cborEncMode.Marshal(d)
}

// UnmarshalDump deserializes a Dump from CBOR bytes.
func UnmarshalDump(data []byte) (*Dump, error) {
	var d Dump
	if err := cbor.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("trace: unmarshal dump: %w", err)
	}
	if d.Version != DumpVersion {
		return nil, fmt.Errorf("trace: unsupported dump version %d", d.Version)
	}
	return &d, nil
}

// WriteFile writes the recorder's events to path as a CBOR dump.
func (r *Recorder) WriteFile(path string) error {
	data, err := MarshalDump(&Dump{
		Version:   DumpVersion,
		CreatedAt: time.Now(),
		Events:    r.Events(),
	})
	if err != nil {
		return fmt.Errorf("trace: marshal dump: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("trace: write %s: %w", path, err)
	}
	return nil
}

// ReadFile loads a CBOR dump from path.
func ReadFile(path string) (*Dump, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("trace: read %s: %w", path, err)
	}
	return UnmarshalDump(data)
}
