package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextCronTime(t *testing.T) {
	after := time.Date(2025, 6, 1, 10, 30, 45, 0, time.UTC)

	cases := []struct {
		name string
		expr string
		want time.Time
	}{
		{
			name: "every minute",
			expr: "* * * * *",
			want: time.Date(2025, 6, 1, 10, 31, 0, 0, time.UTC),
		},
		{
			name: "daily at five past midnight",
			expr: "5 0 * * *",
			want: time.Date(2025, 6, 2, 0, 5, 0, 0, time.UTC),
		},
		{
			name: "later same day",
			expr: "0 23 * * *",
			want: time.Date(2025, 6, 1, 23, 0, 0, 0, time.UTC),
		},
		{
			name: "first of month",
			expr: "0 3 1 * *",
			want: time.Date(2025, 7, 1, 3, 0, 0, 0, time.UTC),
		},
		{
			name: "value list",
			expr: "0,30 * * * *",
			want: time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := nextCronTime(tc.expr, after)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNextCronTimeRejectsBadExpressions(t *testing.T) {
	_, err := nextCronTime("5 0 * *", time.Now())
	assert.Error(t, err)

	_, err = nextCronTime("x 0 * * *", time.Now())
	assert.Error(t, err)
}
