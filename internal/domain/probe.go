package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedProbe is returned when a probe payload does not have the
// expected shape
var ErrMalformedProbe = errors.New("malformed interfaces info")

// ProbeInterface is one interface record as reported by a hardware probe
type ProbeInterface struct {
	Name         string `json:"name"`
	MAC          string `json:"mac"`
	CurrentSpeed *int   `json:"current_speed,omitempty"`
	MaxSpeed     *int   `json:"max_speed,omitempty"`

	// Malformed is set when the reported entry was not an object
	Malformed bool `json:"-"`
}

// Usable reports whether the entry carries the fields discovery requires
func (p ProbeInterface) Usable() bool {
	return !p.Malformed && p.Name != "" && p.MAC != ""
}

// ProbeInterfaces is the interface list reported by a hardware probe.
// A nil value means the probe did not report interfaces at all.
type ProbeInterfaces []ProbeInterface

// probeEntry decodes name and mac loosely so that non-string values are
// dropped instead of failing the whole payload
type probeEntry struct {
	Name         json.RawMessage `json:"name"`
	MAC          json.RawMessage `json:"mac"`
	CurrentSpeed json.RawMessage `json:"current_speed"`
	MaxSpeed     json.RawMessage `json:"max_speed"`
}

// UnmarshalJSON rejects anything that is not a JSON array. Individual
// entries are decoded leniently.
func (p *ProbeInterfaces) UnmarshalJSON(data []byte) error {
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("%w: interfaces should be a list", ErrMalformedProbe)
	}
	if entries == nil {
		// JSON null
		*p = nil
		return nil
	}

	out := make(ProbeInterfaces, 0, len(entries))
	for _, raw := range entries {
		var entry probeEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			out = append(out, ProbeInterface{Malformed: true})
			continue
		}
		out = append(out, ProbeInterface{
			Name:         rawString(entry.Name),
			MAC:          rawString(entry.MAC),
			CurrentSpeed: rawInt(entry.CurrentSpeed),
			MaxSpeed:     rawInt(entry.MaxSpeed),
		})
	}
	*p = out
	return nil
}

// Strict returns an error when any entry was not an object
func (p ProbeInterfaces) Strict() error {
	for i, entry := range p {
		if entry.Malformed {
			return fmt.Errorf("%w: interface %d must be an object", ErrMalformedProbe, i)
		}
	}
	return nil
}

func rawString(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

func rawInt(raw json.RawMessage) *int {
	var n int
	if len(raw) == 0 || string(raw) == "null" || json.Unmarshal(raw, &n) != nil {
		return nil
	}
	return &n
}
