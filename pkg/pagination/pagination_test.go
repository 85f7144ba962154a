package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	in := Cursor{At: time.Date(2026, 3, 1, 10, 30, 0, 123, time.UTC), ID: uuid.New()}
	out, err := ParseCursor(EncodeCursor(in))
	require.NoError(t, err)
	require.True(t, in.At.Equal(out.At))
	require.Equal(t, in.ID, out.ID)
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	c, err := ParseCursor("")
	require.NoError(t, err)
	require.Nil(t, c)

	_, err = ParseCursor("!!!")
	require.Error(t, err)
}

func TestNormalizeLimit(t *testing.T) {
	require.Equal(t, DefaultLimit, NormalizeLimit(0))
	require.Equal(t, MaxLimit, NormalizeLimit(MaxLimit+50))
	require.Equal(t, 7, NormalizeLimit(7))
	require.Equal(t, 8, LimitWithBuffer(7))
}

func TestTrimSetsNextCursorOnlyWhenMoreRows(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := []Cursor{
		{At: base.Add(3 * time.Minute), ID: uuid.New()},
		{At: base.Add(2 * time.Minute), ID: uuid.New()},
		{At: base.Add(time.Minute), ID: uuid.New()},
	}
	identity := func(c Cursor) Cursor { return c }

	page := Trim(rows, 2, identity)
	require.Len(t, page.Items, 2)
	next, err := ParseCursor(page.NextCursor)
	require.NoError(t, err)
	require.Equal(t, rows[1].ID, next.ID)

	last := Trim(rows[2:], 2, identity)
	require.Len(t, last.Items, 1)
	require.Empty(t, last.NextCursor)
}
