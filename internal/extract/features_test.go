package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScanFeatures(t *testing.T) {
	text := `with orders as (
    select customer_id, count(*) as n
    from {{ ref('stg_orders') }} o
    join {{ ref('stg_customers') }} c on o.id = c.id
    left join x on true
    group by 1
)
{% if is_incremental() %}
select * from orders where n > (select max(n) from orders)
{% endif %}`

	f := ScanFeatures(text)
	assert.Equal(t, Features{
		Lines:          10,
		Joins:          2,
		CTEs:           1,
		Subqueries:     1,
		MaxDepth:       2,
		Conditionals:   1,
		Aggregates:     2,
		TemplateBlocks: 4,
	}, f)
}

func TestScanFeatures_IgnoresCommentsAndLiterals(t *testing.T) {
	f := ScanFeatures("-- join\nselect 'join (select 1)' from t /* join */\n{# {% if x %} #}")

	assert.Equal(t, 0, f.Joins)
	assert.Equal(t, 0, f.Subqueries)
	assert.Equal(t, 0, f.Conditionals)
	assert.Equal(t, 0, f.TemplateBlocks)
	assert.Equal(t, 3, f.Lines)
}

func TestScanFeatures_CaseDepth(t *testing.T) {
	f := ScanFeatures("select case when a then case when b then 1 end end as c from t")
	assert.Equal(t, 2, f.MaxDepth)

	f = ScanFeatures("select coalesce(case when a then (1) end, 0) from t")
	assert.Equal(t, 3, f.MaxDepth)
}

func TestScanFeatures_Conditionals(t *testing.T) {
	text := "{% if a %}x{% elif b %}y{% else %}z{% endif %}{%- for c in cs -%}{{ c }}{% endfor %}"
	f := ScanFeatures(text)

	assert.Equal(t, 3, f.Conditionals)
	assert.Equal(t, 7, f.TemplateBlocks)
}

func TestFeatures_Map(t *testing.T) {
	m := Features{Joins: 3, MaxDepth: 2}.Map()
	assert.Equal(t, 3, m["joins"])
	assert.Equal(t, 2, m["max_depth"])
	assert.Len(t, m, 8)
}

func TestSkeleton(t *testing.T) {
	text := "-- header\nSELECT id, 'x' AS s, 42 FROM {{ ref('a') }} /* c */ WHERE n > 3.5 {% if y %}AND z{% endif %}"

	assert.Equal(t, []string{
		"SELECT", "id", ",", "?", "AS", "s", ",", "0", "FROM", "{{}}",
		"WHERE", "n", ">", "0", "{{}}", "AND", "z", "{{}}",
	}, Skeleton(text))
}
