package coverage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/modelgraph/internal/project"
)

func schemas(t *testing.T) []project.ModelSchema {
	t.Helper()
	set, err := project.ParseSchema("models/schema.yml", []byte(`
models:
  - name: orders
    tests:
      - dbt_utils.recency:
          datepart: day
    columns:
      - name: order_id
        tests: [unique, not_null]
      - name: status
        tests:
          - accepted_values:
              values: [open, closed]
              config:
                severity: warn
  - name: customers
    columns:
      - name: customer_id
`))
	require.NoError(t, err)
	return set.Models
}

func TestCollect(t *testing.T) {
	tests := Collect(schemas(t), map[string]string{
		"tests/no_refunds.sql":   "{{ config(severity='warn') }} select * from {{ ref('payments') }} join {{ ref('orders') }} using (id)",
		"tests/assert_false.sql": "select 1 where false",
	})

	require.Len(t, tests, 6)
	assert.Equal(t, Test{
		Name:     "dbt_utils.recency",
		Kind:     KindCustom,
		Model:    "orders",
		Config:   map[string]any{"datepart": "day"},
		Severity: "error",
	}, tests[0])
	assert.Equal(t, "unique", tests[1].Name)
	assert.Equal(t, KindSchema, tests[1].Kind)
	assert.Equal(t, "order_id", tests[1].Column)
	assert.Equal(t, "accepted_values", tests[3].Name)
	assert.Equal(t, "warn", tests[3].Severity)

	assert.Equal(t, Test{Name: "assert_false", Kind: KindData, Path: "tests/assert_false.sql", Severity: "error"}, tests[4])
	assert.Equal(t, "payments", tests[5].Model)
	assert.Equal(t, "warn", tests[5].Severity)

	assert.Len(t, ByModel(tests, "orders"), 4)
	assert.Empty(t, ByModel(tests, "customers"))
}

func TestCompute(t *testing.T) {
	tests := Collect(schemas(t), map[string]string{
		"tests/no_refunds.sql": "select * from {{ ref('payments') }}",
	})

	r := Compute(tests, []string{"orders", "customers", "payments", "stg_orders"})

	assert.Equal(t, 4, r.TotalModels)
	assert.Equal(t, 2, r.TestedModels)
	assert.Equal(t, []string{"customers", "stg_orders"}, r.Untested)
	assert.InDelta(t, 50.0, r.Percent, 1e-9)
	assert.Equal(t, 5, r.TotalTests)
	assert.Equal(t, 3, r.SchemaTests)
	assert.Equal(t, 1, r.CustomTests)
	assert.Equal(t, 1, r.DataTests)
	assert.Equal(t, map[string]int{"orders": 4, "payments": 1}, r.PerModel)
	assert.Equal(t, map[string]bool{"orders": true, "payments": true}, Tested(tests))
}

func TestCompute_NoModels(t *testing.T) {
	r := Compute(nil, nil)
	assert.Zero(t, r.Percent)
	assert.Empty(t, r.Untested)
	assert.NotNil(t, r.Untested)
}
