package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auditor-project/auditor/pkg/query"
)

func TestCompile_EmptyQueryHasNoWhereAndDefaultSort(t *testing.T) {
	t.Parallel()

	plan, err := Compile(query.Query{})
	require.NoError(t, err)
	assert.Empty(t, plan.Where)
	assert.Equal(t, "stop_time ASC", plan.OrderBy)
	assert.Nil(t, plan.Limit)
}

func TestCompile_TimePredicateAddsRuntimeNotNullBase(t *testing.T) {
	t.Parallel()

	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	plan, err := Compile(query.Query{
		StartTime: &query.TimeOperator{GTE: &start},
	})
	require.NoError(t, err)
	assert.Contains(t, plan.Where, "runtime IS NOT NULL")
	assert.Contains(t, plan.Where, "start_time >=")
	require.Len(t, plan.Args, 1)
}

func TestCompile_FragmentOrder(t *testing.T) {
	t.Parallel()

	id := "rec-1"
	start := time.Now()
	runtime := int64(10)

	plan, err := Compile(query.Query{
		RecordID:  &id,
		StartTime: &query.TimeOperator{GTE: &start},
		Runtime:   &query.IntOperator{GT: &runtime},
	})
	require.NoError(t, err)

	idxRecord := indexOf(plan.Where, "record_id")
	idxStart := indexOf(plan.Where, "start_time")
	idxRuntime := indexOf(plan.Where, "runtime >")
	require.True(t, idxRecord < idxStart)
	require.True(t, idxStart < idxRuntime)
}

func TestCompile_ComponentPredicateEmitsExists(t *testing.T) {
	t.Parallel()

	eight := int64(8)
	plan, err := Compile(query.Query{
		Component: map[string]query.IntOperator{"cpu": {Equals: &eight}},
	})
	require.NoError(t, err)
	assert.Contains(t, plan.Where, "EXISTS (SELECT 1 FROM jsonb_array_elements(components)")
}

func TestCompile_MetaDoesNotContainUsesCoalesce(t *testing.T) {
	t.Parallel()

	plan, err := Compile(query.Query{
		Meta: map[string]query.MetaPredicate{"site_id": {DoesNotContain: []string{"site_3"}}},
	})
	require.NoError(t, err)
	assert.Contains(t, plan.Where, "COALESCE(")
}

func TestCompile_SortByOverridesDefault(t *testing.T) {
	t.Parallel()

	plan, err := Compile(query.Query{
		SortBy: &query.SortSpec{Column: query.SortByRecordID, Direction: query.SortDesc},
	})
	require.NoError(t, err)
	assert.Equal(t, "record_id DESC", plan.OrderBy)
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
