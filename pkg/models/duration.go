package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Duration decodes from either a Go duration string ("30s", "1m30s") or a
// plain number of seconds, matching what definition documents carry.
type Duration struct {
	value time.Duration
}

// NewDuration wraps a time.Duration.
func NewDuration(d time.Duration) Duration {
	return Duration{value: d}
}

// Duration returns the wrapped time.Duration.
func (d Duration) Duration() time.Duration {
	return d.value
}

func (d Duration) String() string {
	return d.value.String()
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.value.String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	return d.decode(raw)
}

func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var raw any
	if err := unmarshal(&raw); err != nil {
		return err
	}

	return d.decode(raw)
}

func (d *Duration) decode(raw any) error {
	switch v := raw.(type) {
	case nil:
		d.value = 0

		return nil
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}

		d.value = parsed

		return nil
	case float64:
		d.value = time.Duration(v * float64(time.Second))

		return nil
	case int:
		d.value = time.Duration(v) * time.Second

		return nil
	case int64:
		d.value = time.Duration(v) * time.Second

		return nil
	default:
		return fmt.Errorf("invalid duration value %v (%T)", raw, raw)
	}
}
