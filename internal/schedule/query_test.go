package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuery(t *testing.T) {
	q, err := ParseQuery("week", "2025-11-27")
	require.NoError(t, err)
	assert.Equal(t, Week, q.Kind)
	assert.Equal(t, "2025-11-27", q.Date)

	r, err := q.Range()
	require.NoError(t, err)
	assert.Equal(t, midnight(2025, 11, 24), r.Start)
}

func TestParseQueryCaseInsensitive(t *testing.T) {
	for _, raw := range []string{"MONTH", "month", "Month"} {
		q, err := ParseQuery(raw, "2025-11")
		require.NoError(t, err)
		assert.Equal(t, Month, q.Kind)
	}
}

func TestParseQueryDistinguishesErrors(t *testing.T) {
	_, err := ParseQuery("YEAR", "2025-11-27")
	assert.ErrorIs(t, err, ErrUnknownKind)
	assert.NotErrorIs(t, err, ErrInvalidDate)

	_, err = ParseQuery("MONTH", "2025-11-27")
	assert.ErrorIs(t, err, ErrInvalidDate)
	assert.NotErrorIs(t, err, ErrUnknownKind)

	_, err = ParseQuery("DAY", "2025-11")
	assert.ErrorIs(t, err, ErrInvalidDate)

	_, err = ParseQuery("", "")
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "DAY", Day.String())
	assert.Equal(t, "WEEK", Week.String())
	assert.Equal(t, "MONTH", Month.String())
	assert.Equal(t, MonthLayout, Month.Layout())
	assert.Equal(t, DayLayout, Week.Layout())
}
