package schemas

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrowseRequestNormalize(t *testing.T) {
	req := BrowseRequest{Goal: "  Go to example.com and summarize the page  "}
	req.Normalize()

	assert.Equal(t, "Go to example.com and summarize the page", req.Goal)
	assert.Equal(t, 15, req.MaxIterations)
	assert.Equal(t, 300, req.TimeoutSeconds)

	// Explicit values survive normalization.
	req = BrowseRequest{Goal: "whatever goal text", MaxIterations: 3, TimeoutSeconds: 60}
	req.Normalize()
	assert.Equal(t, 3, req.MaxIterations)
	assert.Equal(t, 60, req.TimeoutSeconds)
}

func TestBrowseRequestValidate(t *testing.T) {
	valid := func() BrowseRequest {
		req := BrowseRequest{Goal: "Go to example.com and summarize the page"}
		req.Normalize()
		return req
	}

	validReq := valid()
	require.NoError(t, validReq.Validate())

	t.Run("goal bounds", func(t *testing.T) {
		req := valid()
		req.Goal = "short"
		assert.ErrorContains(t, req.Validate(), "goal must be between")

		req = valid()
		req.Goal = strings.Repeat("g", GoalMaxLength+1)
		assert.ErrorContains(t, req.Validate(), "goal must be between")
	})

	t.Run("iteration bounds", func(t *testing.T) {
		req := valid()
		req.MaxIterations = 0
		assert.ErrorContains(t, req.Validate(), "max_iterations")

		req = valid()
		req.MaxIterations = MaxIterationsCap + 1
		assert.ErrorContains(t, req.Validate(), "max_iterations")
	})

	t.Run("timeout bounds", func(t *testing.T) {
		req := valid()
		req.TimeoutSeconds = MinTimeoutSeconds - 1
		assert.ErrorContains(t, req.Validate(), "timeout")

		req = valid()
		req.TimeoutSeconds = MaxTimeoutSeconds + 1
		assert.ErrorContains(t, req.Validate(), "timeout")
	})
}

func TestBrowseRequestTimeout(t *testing.T) {
	req := BrowseRequest{TimeoutSeconds: 90}
	assert.Equal(t, 90*time.Second, req.Timeout())
}
