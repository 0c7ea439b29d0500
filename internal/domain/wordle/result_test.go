package wordle

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func post(day int, score string) string {
	return fmt.Sprintf("Wordle %d %s/6", day, score)
}

func TestExtractScores(t *testing.T) {
	for guesses := 1; guesses <= 6; guesses++ {
		r, ok := Extract(post(1, fmt.Sprint(guesses)))
		require.True(t, ok)
		assert.Equal(t, guesses, r.RawScore)
		assert.Equal(t, 7-guesses, r.ModifiedScore())
	}
}

func TestExtractFailure(t *testing.T) {
	r, ok := Extract(post(1, "X"))
	require.True(t, ok)
	assert.Equal(t, FailedGuesses, r.RawScore)
	assert.Equal(t, 0, r.ModifiedScore())
}

func TestExtractExplicitZero(t *testing.T) {
	r, ok := Extract(post(1, "0"))
	require.True(t, ok)
	assert.Equal(t, 0, r.RawScore)
	assert.Equal(t, ZeroGuessPenalty, r.ModifiedScore())
}

func TestExtractOutOfRangeDigitIsFailure(t *testing.T) {
	r, ok := Extract(post(300, "9"))
	require.True(t, ok)
	assert.Equal(t, FailedGuesses, r.RawScore)
	assert.Equal(t, 0, r.ModifiedScore())
}

func TestExtractNotFound(t *testing.T) {
	for _, text := range []string{
		"",
		"not a wordle message",
		"wordle 300 3/6",
		"Wordle 300 3/5",
		"Wordle abc 3/6",
		"Wordle 99999999999999999999999 3/6",
	} {
		_, ok := Extract(text)
		assert.False(t, ok, "text %q", text)
	}
}

func TestExtractFindsFirstMatchInsideText(t *testing.T) {
	text := "nice one!\nWordle 1,000 4/6\nWordle 1000 2/6\n\n⬛🟨⬛⬛⬛\nWordle 1001 5/6"
	r, ok := Extract(text)
	require.True(t, ok)
	assert.Equal(t, Result{PuzzleDay: 1000, RawScore: 2}, r)
}

func TestPuzzleDate(t *testing.T) {
	epoch := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, epoch, PuzzleDate(196))
	assert.Equal(t, epoch.AddDate(0, 0, -195), PuzzleDate(1))
	assert.Equal(t, epoch.AddDate(0, 0, 804), PuzzleDate(1000))
	assert.Equal(t, time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC), Result{PuzzleDay: 999}.Date())
}

func TestReaction(t *testing.T) {
	for score := 0; score <= 6; score++ {
		s, ok := Reaction(score)
		assert.True(t, ok)
		assert.Equal(t, fmt.Sprintf("%d️⃣", score), s)
	}

	_, ok := Reaction(ZeroGuessPenalty)
	assert.False(t, ok)
	_, ok = Reaction(7)
	assert.False(t, ok)
}
