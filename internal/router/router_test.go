package router

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threeCandidates() []Candidate {
	return []Candidate{
		{ID: "model-a", Name: "Alpha", Priority: 1},
		{ID: "model-b", Name: "Beta", Priority: 2},
		{ID: "model-c", Name: "Gamma", Priority: 3},
	}
}

func TestExecuteWithFallback(t *testing.T) {
	ctx := context.Background()

	t.Run("first candidate succeeds", func(t *testing.T) {
		var tried []string
		work := func(_ context.Context, id string) (string, error) {
			tried = append(tried, id)
			return "answer", nil
		}

		result, err := ExecuteWithFallback(ctx, threeCandidates(), work, nil)
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, "answer", result.Data)
		assert.Equal(t, "model-a", result.Model.ID)
		assert.Empty(t, result.Failures)
		assert.Equal(t, []string{"model-a"}, tried)
	})

	t.Run("failures advance to the next candidate", func(t *testing.T) {
		work := func(_ context.Context, id string) (string, error) {
			switch id {
			case "model-a":
				return "", errors.New("rate limited (429)")
			case "model-b":
				return "", errors.New("internal error (500)")
			default:
				return "from gamma", nil
			}
		}

		result, err := ExecuteWithFallback(ctx, threeCandidates(), work, nil)
		require.NoError(t, err)
		assert.Equal(t, "model-c", result.Model.ID)
		assert.Equal(t, "from gamma", result.Data)

		require.Len(t, result.Failures, 2)
		assert.Equal(t, "Alpha", result.Failures[0].Candidate)
		assert.Contains(t, result.Failures[0].Reason, "429")
		assert.Equal(t, "Beta", result.Failures[1].Candidate)
		assert.Contains(t, result.Failures[1].Reason, "500")
	})

	t.Run("candidates are tried in priority order regardless of list order", func(t *testing.T) {
		shuffled := []Candidate{
			{ID: "model-c", Name: "Gamma", Priority: 3},
			{ID: "model-a", Name: "Alpha", Priority: 1},
			{ID: "model-b", Name: "Beta", Priority: 2},
		}
		var tried []string
		work := func(_ context.Context, id string) (string, error) {
			tried = append(tried, id)
			return "", errors.New("nope")
		}

		_, err := ExecuteWithFallback(ctx, shuffled, work, nil)
		require.Error(t, err)
		assert.Equal(t, []string{"model-a", "model-b", "model-c"}, tried)
	})

	t.Run("exhaustion returns the full trace", func(t *testing.T) {
		work := func(_ context.Context, id string) (string, error) {
			return "", errors.New(id + " failed")
		}

		result, err := ExecuteWithFallback(ctx, threeCandidates(), work, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrAllCandidatesFailed)

		var exhausted *ExhaustedError
		require.ErrorAs(t, err, &exhausted)
		assert.Len(t, exhausted.Failures, 3)
		assert.Contains(t, exhausted.Error(), "Gamma")

		assert.False(t, result.Success)
		assert.Len(t, result.Failures, 3)
	})

	t.Run("cancelled context stops the chain", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		calls := 0
		work := func(_ context.Context, _ string) (string, error) {
			calls++
			return "never", nil
		}

		_, err := ExecuteWithFallback(cancelled, threeCandidates(), work, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrAllCandidatesFailed)
		assert.Zero(t, calls)
	})

	t.Run("no candidates", func(t *testing.T) {
		_, err := ExecuteWithFallback(ctx, nil, func(context.Context, string) (string, error) {
			return "", nil
		}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no candidates")
	})

	t.Run("original candidate slice is not reordered", func(t *testing.T) {
		candidates := []Candidate{
			{ID: "model-c", Priority: 3},
			{ID: "model-a", Priority: 1},
		}
		_, _ = ExecuteWithFallback(ctx, candidates, func(context.Context, string) (string, error) {
			return "ok", nil
		}, nil)

		assert.Equal(t, "model-c", candidates[0].ID)
	})
}
