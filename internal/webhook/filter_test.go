package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFilter_CompileErrors(t *testing.T) {
	_, err := NewFilter([]Rule{{ID: "blank", Expression: "  "}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rule ID 'blank' has an empty expression")

	_, err = NewFilter([]Rule{{ID: "broken", Expression: "event_type == "}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to compile rule ID 'broken'")
}

func TestFilter_Allow(t *testing.T) {
	f, err := NewFilter([]Rule{
		{ID: "captures", Expression: "event_type == 'order_captured'"},
		{ID: "withData", Expression: "has_data"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, f.Len())

	tests := []struct {
		name string
		vars map[string]interface{}
		want bool
	}{
		{"all rules pass", map[string]interface{}{"event_type": "order_captured", "has_data": true}, true},
		{"first rule rejects", map[string]interface{}{"event_type": "order_refunded", "has_data": true}, false},
		{"second rule rejects", map[string]interface{}{"event_type": "order_captured", "has_data": false}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := f.Allow(tt.vars)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestFilter_AllowErrors(t *testing.T) {
	f, err := NewFilter([]Rule{{ID: "notBool", Expression: "event_id"}})
	require.NoError(t, err)
	_, err = f.Allow(map[string]interface{}{"event_id": "e1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not evaluate to a boolean")

	f, err = NewFilter([]Rule{{ID: "missingVar", Expression: "unknown_field == 'x'"}})
	require.NoError(t, err)
	_, err = f.Allow(map[string]interface{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to evaluate rule ID 'missingVar'")
}

func TestFilter_NilAndEmptyAcceptEverything(t *testing.T) {
	var nilFilter *Filter
	ok, err := nilFilter.Allow(nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, nilFilter.Len())

	f, err := NewFilter(nil)
	require.NoError(t, err)
	ok, err = f.Allow(map[string]interface{}{})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestParseRules(t *testing.T) {
	rules := ParseRules(" event_type == 'order_captured' ; ; has_data ")
	require.Len(t, rules, 2)
	assert.Equal(t, Rule{ID: "rule1", Expression: "event_type == 'order_captured'"}, rules[0])
	assert.Equal(t, Rule{ID: "rule2", Expression: "has_data"}, rules[1])
	assert.Empty(t, ParseRules(""))
}
