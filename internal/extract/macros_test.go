package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScanMacros(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		defined []string
		called  []string
	}{
		{
			name:    "definitions only",
			text:    "{% macro cents(col) %}{{ col }} * 100{% endmacro %}\n{%- macro noop() -%}{%- endmacro -%}",
			defined: []string{"cents", "noop"},
			called:  []string{},
		},
		{
			name:    "calls from a model",
			text:    "select {{ cents('amount') }}, {{ dbt_utils.star(ref('orders')) }} from {{ ref('orders') }}",
			defined: []string{},
			called:  []string{"cents", "star"},
		},
		{
			name:    "recursion is not a call",
			text:    "{% macro walk(n) %}{{ walk(n - 1) }}{{ other(n) }}{% endmacro %}",
			defined: []string{"walk"},
			called:  []string{"other"},
		},
		{
			name:    "call after endmacro counts",
			text:    "{% macro a() %}1{% endmacro %}{% macro b() %}{{ a() }}{% endmacro %}",
			defined: []string{"a", "b"},
			called:  []string{"a"},
		},
		{
			name:    "sql functions are ignored",
			text:    "select coalesce(a, 0), {{ var('x') }} from t -- {{ hidden() }}",
			defined: []string{},
			called:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScanMacros(tt.text)
			assert.Equal(t, tt.defined, got.Defined)
			assert.Equal(t, tt.called, got.Called)
		})
	}
}
