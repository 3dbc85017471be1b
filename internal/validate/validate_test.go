package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/modelgraph/internal/analyzer"
	"github.com/leapstack-labs/modelgraph/internal/extract"
	"github.com/leapstack-labs/modelgraph/internal/project"
)

func records() []*extract.ModelRecord {
	return []*extract.ModelRecord{
		extract.Extract("models/staging/stg_orders.sql", "{{ config(materialized='view') }} select 1"),
		extract.Extract("models/staging/orders_raw.sql", "select 1"),
		extract.Extract("models/intermediate/int_orders.sql", "select 1"),
		extract.Extract("models/marts/orders.sql", "{{ config(materialized='tabel', colour='red') }} select 1"),
		extract.Extract("models/marts/dim_Customers.sql", "select 1"),
		extract.Extract("models/other/anything.sql", "select 1"),
	}
}

func TestRun_Naming(t *testing.T) {
	got := Run([]Kind{KindNaming}, Input{Records: records()})

	assert.Equal(t, []Finding{
		{Rule: "snake-case", Severity: SeverityWarning, Model: "dim_Customers", Message: "model names should use snake_case"},
		{Rule: "marts-prefix", Severity: SeverityWarning, Model: "orders", Message: "models under marts/ should be prefixed fct_ or dim_"},
		{Rule: "staging-prefix", Severity: SeverityWarning, Model: "orders_raw", Message: "models under staging/ should be prefixed stg_"},
	}, got)
}

func TestRun_Config(t *testing.T) {
	got := Run([]Kind{KindConfig}, Input{Records: records()})

	require.Len(t, got, 2)
	assert.Equal(t, "invalid-materialization", got[0].Rule)
	assert.Equal(t, SeverityError, got[0].Severity)
	assert.Equal(t, "orders", got[0].Model)
	assert.Equal(t, `unrecognized config key "colour"`, got[1].Message)
}

func TestRun_Refs(t *testing.T) {
	warnings := []analyzer.StructuralWarning{
		{Kind: analyzer.Dangling, Node: "stg_order", Related: []string{"fct_a", "fct_b"}},
		{Kind: analyzer.SelfLoop, Node: "loop"},
		{Kind: analyzer.DuplicateID, Node: "dup", Related: []string{"a/dup.sql", "b/dup.sql"}},
	}

	got := Run([]Kind{KindRefs}, Input{Records: records(), Warnings: warnings})

	require.Len(t, got, 4)
	assert.Equal(t, Finding{Rule: "duplicate-model", Severity: SeverityWarning, Model: "dup", Message: "defined by a/dup.sql, b/dup.sql"}, got[0])
	assert.Equal(t, "fct_a", got[1].Model)
	assert.Equal(t, "ref('stg_order') does not match any model (did you mean stg_orders?)", got[1].Message)
	assert.Equal(t, "fct_b", got[2].Model)
	assert.Equal(t, "self-reference", got[3].Rule)
}

func TestRun_Docs(t *testing.T) {
	schemas := []project.ModelSchema{
		{
			Name:        "dim_customers",
			Description: "One row per customer",
			Columns: []project.ColumnSchema{
				{Name: "customer_id", Description: "Key", Tests: []project.TestSpec{{Name: "unique"}, {Name: "not_null"}}},
				{Name: "email"},
			},
		},
		{
			Name: "fct_orders",
			Columns: []project.ColumnSchema{
				{Name: "status", Description: "Order status", Tests: []project.TestSpec{{Name: "not_null"}}},
			},
		},
		{Name: "stg_orders", Description: "Raw orders"},
	}

	got := Run([]Kind{KindDocs}, Input{Records: records(), Schemas: schemas})

	assert.Equal(t, []Finding{
		{Rule: "column-description", Severity: SeverityInfo, Model: "dim_customers", Message: `column "email" has no description`},
		{Rule: "model-description", Severity: SeverityWarning, Model: "fct_orders", Message: "model has no description"},
		{Rule: "primary-key-column", Severity: SeverityInfo, Model: "fct_orders", Message: "no column is named id or *_id"},
		{Rule: "primary-key-test", Severity: SeverityWarning, Model: "fct_orders", Message: "no column is tested unique and not_null"},
		{Rule: "primary-key-test", Severity: SeverityWarning, Model: "stg_orders", Message: "no column is tested unique and not_null"},
	}, got)

	assert.Empty(t, Run([]Kind{KindDocs}, Input{Records: records()}))
}

func TestRun_AllKinds(t *testing.T) {
	got := Run(AllKinds, Input{Records: records()})
	s := Summarize(got)

	assert.Equal(t, 5, s.Total)
	assert.Equal(t, 1, s.Errors)
	assert.Equal(t, 4, s.Warnings)

	assert.Empty(t, Run(nil, Input{Records: records()}))
	assert.Len(t, Run([]Kind{KindConfig, KindConfig}, Input{Records: records()}), 2)
}

func TestParseKinds(t *testing.T) {
	kinds, err := ParseKinds(nil)
	require.NoError(t, err)
	assert.Equal(t, AllKinds, kinds)

	kinds, err = ParseKinds([]string{"docs"})
	require.NoError(t, err)
	assert.Equal(t, []Kind{KindDocs}, kinds)

	kinds, err = ParseKinds([]string{"Refs", "naming"})
	require.NoError(t, err)
	assert.Equal(t, []Kind{KindRefs, KindNaming}, kinds)

	_, err = ParseKinds([]string{"style"})
	assert.ErrorContains(t, err, `unknown validation rule group "style"`)
}

func TestSeverity(t *testing.T) {
	b, err := SeverityInfo.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "info", string(b))
	assert.Equal(t, "warning [snake-case] X: m", Finding{Rule: "snake-case", Severity: SeverityWarning, Model: "X", Message: "m"}.String())
}
