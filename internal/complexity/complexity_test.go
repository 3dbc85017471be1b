package complexity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/modelgraph/internal/extract"
)

func TestScore(t *testing.T) {
	rec := extract.Extract("fct.sql", `with a as (
    select count(*) from {{ ref('x') }}
    join {{ ref('y') }} using (id)
)
select * from a`)

	s := Score(rec, DefaultWeights())

	assert.Equal(t, "fct", s.ID)
	assert.Equal(t, 5, s.Counts[FeatureLines])
	assert.Equal(t, 1, s.Counts[FeatureCTEs])
	assert.Equal(t, 1, s.Counts[FeatureJoins])
	assert.Equal(t, 2, s.Counts[FeatureRefs])
	assert.Equal(t, 2, s.Counts[FeatureTemplateBlocks])
	assert.Equal(t, 1, s.Counts[FeatureAggregates])
	assert.Equal(t, 2, s.Counts[FeatureMaxDepth])
	// 0.5 lines + 1.5 cte + 2 join + 2 refs + 1.6 template + 0.5 agg + 2 depth
	assert.InDelta(t, 10.1, s.Value, 1e-9)
	assert.InDelta(t, 2.0, s.Breakdown[FeatureJoins], 1e-9)
}

func TestScore_CustomWeights(t *testing.T) {
	rec := extract.Extract("m.sql", "select 1\nfrom a join b on true join c on true")

	s := Score(rec, Weights{FeatureJoins: 10})
	assert.InDelta(t, 20.0, s.Value, 1e-9)
	assert.Len(t, s.Breakdown, 1)
}

func TestWeights(t *testing.T) {
	require.NoError(t, DefaultWeights().Validate())
	assert.Error(t, Weights{"bogus": 1}.Validate())
	assert.Error(t, Weights{FeatureJoins: -1}.Validate())

	merged := Weights{FeatureJoins: 5}.Merge()
	assert.Equal(t, 5.0, merged[FeatureJoins])
	assert.Equal(t, 1.5, merged[FeatureCTEs])
}

func TestRankAndSummarize(t *testing.T) {
	records := []*extract.ModelRecord{
		extract.Extract("b.sql", "select 1"),
		extract.Extract("a.sql", "select 1"),
		extract.Extract("c.sql", "select * from x join y on true join z on true"),
	}

	ranked := Rank(records, DefaultWeights())
	require.Len(t, ranked, 3)
	assert.Equal(t, []string{"c", "a", "b"}, []string{ranked[0].ID, ranked[1].ID, ranked[2].ID})

	s := Summarize(ranked, 1.0, 1)
	assert.Equal(t, 3, s.Count)
	assert.InDelta(t, 4.1, s.Max, 1e-9)
	assert.InDelta(t, 0.1, s.Min, 1e-9)
	assert.InDelta(t, 4.3/3, s.Average, 1e-9)
	assert.Equal(t, []string{"c"}, s.AboveThreshold)
	require.Len(t, s.MostComplex, 1)
	assert.Equal(t, "c", s.MostComplex[0].ID)

	empty := Summarize(nil, DefaultAboveThreshold, 5)
	assert.Zero(t, empty.Count)
	assert.Empty(t, empty.AboveThreshold)
}

func TestNormalize(t *testing.T) {
	a := Normalize("-- comment\nSELECT  id,\n  'Alice' AS n FROM {{ ref('users') }} WHERE x > 10")
	b := Normalize("select id, 'Bob' as n\nfrom {{ ref('customers') }} /* c */ where x > 99")

	assert.Equal(t, "select id , ? as n from {{}} where x > 0", a)
	assert.Equal(t, a, b)
	assert.Equal(t, "", Normalize("-- only a comment"))
}

func TestNormalize_NFC(t *testing.T) {
	composed := Normalize("select caf\u00e9")
	decomposed := Normalize("select cafe\u0301")
	assert.Equal(t, composed, decomposed)
}

func TestSimilarity(t *testing.T) {
	a := "select a , b from {{}}"
	b := "select a , c from {{}}"

	assert.InDelta(t, 5.0/7.0, Similarity(a, b, MethodTokenSet, 0), 1e-9)
	assert.InDelta(t, 1-1.0/22.0, Similarity(a, b, MethodEdit, 0), 1e-9)
	assert.Equal(t, 1.0, Similarity("abcdef", "abcxyz", MethodEdit, 3))
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod("")
	require.NoError(t, err)
	assert.Equal(t, MethodTokenSet, m)

	m, err = ParseMethod("edit")
	require.NoError(t, err)
	assert.Equal(t, MethodEdit, m)

	_, err = ParseMethod("cosine")
	assert.Error(t, err)
}

func TestFindDuplicates(t *testing.T) {
	records := []*extract.ModelRecord{
		extract.Extract("stg_a.sql", "select id, name, email from {{ source('raw', 'a') }} where active = 1"),
		extract.Extract("stg_b.sql", "select id, name, email from {{ source('raw', 'b') }} where active = 0"),
		extract.Extract("stg_c.sql", "-- copy\nSELECT id, name, email FROM {{ source('raw', 'c') }} WHERE active = 2"),
		extract.Extract("fct.sql", "select count(*) as n, sum(x) from {{ ref('stg_a') }} group by 1"),
		extract.Extract("empty.sql", "-- nothing here"),
	}

	groups := FindDuplicates(records, DefaultDuplicateOptions())

	require.Len(t, groups, 1)
	g := groups[0]
	assert.Equal(t, []string{"stg_a", "stg_b", "stg_c"}, g.Members)
	assert.Equal(t, 1.0, g.MinSimilarity)
	assert.Equal(t, 1.0, g.MaxSimilarity)
	assert.Len(t, g.Pattern, 16)
	assert.Equal(t, MethodTokenSet, g.Method)
}

func TestFindDuplicates_Transitive(t *testing.T) {
	records := []*extract.ModelRecord{
		extract.Extract("a.sql", "select a1, a2, a3, a4 from t"),
		extract.Extract("b.sql", "select a1, a2, a3, b4 from t"),
		extract.Extract("c.sql", "select a1, a2, c3, b4 from t"),
	}

	groups := FindDuplicates(records, DuplicateOptions{Threshold: 0.7})

	require.Len(t, groups, 1)
	assert.Equal(t, []string{"a", "b", "c"}, groups[0].Members)
	assert.InDelta(t, 0.6, groups[0].MinSimilarity, 1e-9)
	assert.InDelta(t, 7.0/9.0, groups[0].MaxSimilarity, 1e-9)
}

func TestFindDuplicates_Edit(t *testing.T) {
	records := []*extract.ModelRecord{
		extract.Extract("a.sql", "select customer_id from orders"),
		extract.Extract("b.sql", "select customer_id from order_items"),
		extract.Extract("c.sql", "select 1"),
	}

	groups := FindDuplicates(records, DuplicateOptions{Threshold: 0.8, Method: MethodEdit})
	require.Len(t, groups, 1)
	assert.Equal(t, []string{"a", "b"}, groups[0].Members)
}

func TestDuplicateCTENamesAndConfigs(t *testing.T) {
	records := []*extract.ModelRecord{
		extract.Extract("a.sql", "{{ config(materialized='table', tags='x') }} with base as (select 1) select * from base"),
		extract.Extract("b.sql", "{{ config(tags='x', materialized='table') }} with base as (select 2), other as (select 3) select 1"),
		extract.Extract("c.sql", "{{ config(materialized='view') }} with other as (select 1) select 1"),
	}

	assert.Equal(t, []NameGroup{
		{Name: "base", Models: []string{"a", "b"}},
		{Name: "other", Models: []string{"b", "c"}},
	}, DuplicateCTENames(records))

	assert.Equal(t, []NameGroup{
		{Name: "materialized=table, tags=x", Models: []string{"a", "b"}},
	}, DuplicateConfigs(records))
}
