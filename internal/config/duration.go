package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Duration wraps time.Duration so config files can use values like "10s"
// or "2h" instead of nanosecond integers.
type Duration struct {
	time.Duration
}

// UnmarshalJSON accepts either a duration string ("10s", "5m") or a bare
// number, which is interpreted as seconds.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value * float64(time.Second))
		return nil
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration format '%s': %w", value, err)
		}
		d.Duration = parsed
		return nil
	default:
		return fmt.Errorf("invalid duration value: %v", value)
	}
}

// MarshalJSON renders the duration in time.Duration's string notation.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Duration.String())
}

func (d Duration) String() string {
	return d.Duration.String()
}
