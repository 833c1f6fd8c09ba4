package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDuration_UnmarshalJSONString(t *testing.T) {
	var holder struct {
		Timeout Duration `json:"timeout"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"timeout": "1m30s"}`), &holder))
	assert.Equal(t, 90*time.Second, holder.Timeout.Duration())
}

func TestDuration_UnmarshalJSONNumberIsSeconds(t *testing.T) {
	var holder struct {
		Timeout Duration `json:"timeout"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"timeout": 30}`), &holder))
	assert.Equal(t, 30*time.Second, holder.Timeout.Duration())

	require.NoError(t, json.Unmarshal([]byte(`{"timeout": 0.5}`), &holder))
	assert.Equal(t, 500*time.Millisecond, holder.Timeout.Duration())
}

func TestDuration_UnmarshalYAML(t *testing.T) {
	var holder struct {
		Timeout Duration `yaml:"timeout"`
	}

	require.NoError(t, yaml.Unmarshal([]byte("timeout: 45s"), &holder))
	assert.Equal(t, 45*time.Second, holder.Timeout.Duration())

	require.NoError(t, yaml.Unmarshal([]byte("timeout: 10"), &holder))
	assert.Equal(t, 10*time.Second, holder.Timeout.Duration())
}

func TestDuration_InvalidString(t *testing.T) {
	var holder struct {
		Timeout Duration `json:"timeout"`
	}

	err := json.Unmarshal([]byte(`{"timeout": "soon"}`), &holder)
	require.Error(t, err)
}

func TestDuration_JSONRoundTrip(t *testing.T) {
	original := NewDuration(2 * time.Minute)

	raw, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded Duration

	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, original.Duration(), decoded.Duration())
}
