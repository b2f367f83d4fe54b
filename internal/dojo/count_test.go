package dojo

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dojo-planner/dojo/internal/platform/httpx"
)

func countQuery(t *testing.T, doctype, filters string) CountQuery {
	t.Helper()
	q := CountQuery{Doctype: doctype}
	if filters != "" {
		require.NoError(t, json.Unmarshal([]byte(filters), &q.Filters))
	}
	return q
}

func TestCountCompileBeltPromotionsSinceMonthStart(t *testing.T) {
	stmt, err := countQuery(t, "Belt Promotion", `{"promotion_date": [">=", "2025-03-01"]}`).Compile()
	require.NoError(t, err)

	sql, args := stmt.SQL()
	assert.Equal(t, "SELECT COUNT(*) FROM belt_promotions WHERE submitted AND promotion_date::text >= $1", sql)
	assert.Equal(t, []any{"2025-03-01"}, args)
}

func TestCountCompileEqualityAndOrdering(t *testing.T) {
	stmt, err := countQuery(t, "Dojo Member", `{"status": "Active", "current_belt": ["!=", "White"]}`).Compile()
	require.NoError(t, err)

	sql, args := stmt.SQL()
	assert.Equal(t, "SELECT COUNT(*) FROM dojo_members WHERE current_belt::text <> $1 AND status::text = $2", sql)
	assert.Equal(t, []any{"White", "Active"}, args)
}

func TestCountCompileWithoutFilters(t *testing.T) {
	stmt, err := countQuery(t, "Dojo Class", "").Compile()
	require.NoError(t, err)
	sql, args := stmt.SQL()
	assert.Equal(t, "SELECT COUNT(*) FROM dojo_classes", sql)
	assert.Empty(t, args)
}

func TestCountCompileRejectsUnsafeInput(t *testing.T) {
	cases := []struct {
		name    string
		doctype string
		filters string
		want    error
	}{
		{name: "unknown doctype", doctype: "User", want: ErrUnknownDoctype},
		{name: "unknown field", doctype: "Dojo Member", filters: `{"password": "x"}`, want: ErrInvalidFilter},
		{name: "unknown operator", doctype: "Dojo Member", filters: `{"status": ["like", "%"]}`, want: ErrInvalidFilter},
		{name: "bad pair", doctype: "Dojo Member", filters: `{"status": ["="]}`, want: ErrInvalidFilter},
		{name: "object value", doctype: "Dojo Member", filters: `{"status": {"a": 1}}`, want: ErrInvalidFilter},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := countQuery(t, tc.doctype, tc.filters).Compile()
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want))
			assert.True(t, errors.Is(err, httpx.ErrValidation))
		})
	}
}
