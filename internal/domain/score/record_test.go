package score

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wordle-club/wordle-bot/internal/domain/shared"
)

func TestNormalizeDate(t *testing.T) {
	zone := time.FixedZone("UTC-7", -7*60*60)

	d, err := NormalizeDate(time.Date(2024, 5, 15, 0, 0, 0, 0, zone))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC), d)
	assert.True(t, IsCalendarDate(d))

	_, err = NormalizeDate(time.Date(2024, 5, 15, 9, 30, 0, 0, time.UTC))
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = NormalizeDate(time.Time{})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestNewRecordValidates(t *testing.T) {
	day := time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC)

	r, err := NewRecord(1, "nick", day, 4)
	require.NoError(t, err)
	assert.Equal(t, Record{UserID: 1, Nickname: "nick", Date: day, Score: 4}, r)

	_, err = NewRecord(1, "nick", day, MinScore)
	assert.NoError(t, err)

	cases := map[string]struct {
		nickname string
		score    int
		want     error
	}{
		"empty nickname": {"", 3, shared.ErrEmptyNickname},
		"invalid utf8":   {string([]byte{0xff, 0xfe}), 3, shared.ErrInvalidInput},
		"score too high": {"nick", 7, shared.ErrValueOutOfRange},
		"negative score": {"nick", -1, shared.ErrValueOutOfRange},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewRecord(1, tc.nickname, day, tc.score)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
			assert.True(t, shared.IsValidation(err))
		})
	}
}

func TestValidScore(t *testing.T) {
	for _, p := range []int{MinScore, 0, 1, 6} {
		assert.True(t, ValidScore(p), "%d", p)
	}
	for _, p := range []int{-70, -68, -1, 7, 100} {
		assert.False(t, ValidScore(p), "%d", p)
	}
}

func TestValidateAcceptsAnyScore(t *testing.T) {
	day := time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC)
	for _, p := range []int{-1000, -1, 7, 1 << 40} {
		r := Record{UserID: 1, Nickname: "n", Date: day, Score: p}
		assert.NoError(t, r.Validate(), "%d", p)
	}
}

func TestValidateRejectsUnnormalizedDate(t *testing.T) {
	zone := time.FixedZone("UTC+3", 3*60*60)
	r := Record{UserID: 1, Nickname: "n", Date: time.Date(2024, 5, 15, 0, 0, 0, 0, zone), Score: 1}
	assert.ErrorIs(t, r.Validate(), shared.ErrInvalidInput)

	r.Date = time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)
	assert.ErrorIs(t, r.Validate(), shared.ErrInvalidInput)
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "nic", Label("nickname"))
	assert.Equal(t, "ab", Label("ab"))
	assert.Equal(t, "Zoë", Label("Zoëy"))
	assert.Equal(t, "日本語", Label(strings.Repeat("日本語", 2)))
	assert.Equal(t, "nic", Record{Nickname: "nick"}.Label())
}

func TestUpsertOutcomeString(t *testing.T) {
	assert.Equal(t, "inserted", Inserted.String())
	assert.Equal(t, "updated", Updated.String())
	assert.Equal(t, "unknown", UpsertOutcome(0).String())
}
