package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// SampleSchema declares the sources, models, and exposures of SampleProject.
const SampleSchema = `version: 2

sources:
  - name: raw
    tables:
      - name: events
      - name: dates
      - name: clicks

models:
  - name: stg_events
    description: Cleaned events
    tags: [staging, events]
    columns:
      - name: id
        description: Event key
        tests: [unique, not_null]
      - name: event_date
        tests:
          - relationships:
              to: ref('stg_dates')
              field: d
  - name: stg_dates
    config:
      tags: staging
    columns:
      - name: d
  - name: fct_event_dates
  - name: stg_orphan
  - name: legacy_orders

exposures:
  - name: events_dashboard
    type: dashboard
    depends_on:
      - ref('fct_event_dates')
`

// SampleModels are the query files of SampleProject keyed by path relative
// to the project directory.
var SampleModels = map[string]string{
	"models/staging/stg_events.sql": `{{ config(materialized='view') }}
select id, event_date from {{ source('raw', 'events') }}`,
	"models/staging/stg_dates.sql": `select d from {{ source('raw', 'dates') }}`,
	"models/staging/stg_orphan.sql": `select 1 as one`,
	"models/marts/fct_event_dates.sql": `{{ config(materialized='table') }}
with events as (
    select * from {{ ref('stg_events') }}
), dates as (
    select * from {{ ref('stg_dates') }}
)
select e.id, d.d
from events e
join dates d on e.event_date = d.d`,
}

// SampleSupport are the data test and macro files of SampleProject. The
// data test covers fct_event_dates and calls cents; to_dollars is unused.
var SampleSupport = map[string]string{
	"tests/assert_positive_ids.sql": `select * from {{ ref('fct_event_dates') }} where {{ cents('id') }} < 0`,
	"macros/money.sql": `{% macro cents(col) %}{{ col }} * 100{% endmacro %}
{% macro to_dollars(col) %}{{ cents(col) }} / 10000{% endmacro %}`,
}

// SampleProject writes a small project into a temporary directory and
// returns its path. Edges: stg_events -> raw.events, stg_dates -> raw.dates,
// fct_event_dates -> stg_events and stg_dates.
func SampleProject(t testing.TB) string {
	t.Helper()
	dir := t.TempDir()
	WriteFiles(t, dir, SampleModels)
	WriteFiles(t, dir, SampleSupport)
	writeFile(t, dir, "models/schema.yml", SampleSchema)
	return dir
}

func writeFile(t testing.TB, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", rel, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", rel, err)
	}
}
