package browser

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ujjawalkaushik1110/comet-agentic-browser/internal/config"
)

func TestSplitBrowserArg(t *testing.T) {
	tests := []struct {
		arg      string
		wantKey  string
		wantVal  string
		hasValue bool
	}{
		{"--no-zygote", "no-zygote", "", false},
		{"no-zygote", "no-zygote", "", false},
		{"--proxy-server=http://127.0.0.1:8080", "proxy-server", "http://127.0.0.1:8080", true},
		{"lang=en-US", "lang", "en-US", true},
		{"  --mute-audio  ", "mute-audio", "", false},
		{"", "", "", false},
		{"--", "", "", false},
	}
	for _, tc := range tests {
		key, val, hasValue := splitBrowserArg(tc.arg)
		assert.Equal(t, tc.wantKey, key, "arg %q", tc.arg)
		assert.Equal(t, tc.wantVal, val, "arg %q", tc.arg)
		assert.Equal(t, tc.hasValue, hasValue, "arg %q", tc.arg)
	}
}

func TestEnsurePNGSuffix(t *testing.T) {
	assert.Equal(t, "shot.png", ensurePNGSuffix("shot.png"))
	assert.Equal(t, "shot.PNG", ensurePNGSuffix("shot.PNG"))
	assert.Equal(t, "shot.png", ensurePNGSuffix("shot"))
	assert.Equal(t, "page.jpg.png", ensurePNGSuffix("page.jpg"))
	assert.Equal(t, "screenshot.png", ensurePNGSuffix(""))
}

func TestSelectorScriptQuotesSelector(t *testing.T) {
	// A selector containing quotes must arrive as a JSON string literal, not
	// raw interpolation.
	quoted := `"a[href=\"x\"]"`
	script := strings.ReplaceAll(selectorTextScriptf, "%s", quoted)
	assert.Contains(t, script, `querySelectorAll("a[href=\"x\"]")`)
}

func TestOpContextAppliesTimeout(t *testing.T) {
	s := &Session{
		ctx:    context.Background(),
		cancel: func() {},
		cfg:    config.BrowserConfig{},
	}

	ctx, cancel := s.opContext(context.Background(), 10*time.Millisecond)
	defer cancel()
	deadline, ok := ctx.Deadline()
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(10*time.Millisecond), deadline, 50*time.Millisecond)

	// Zero timeout leaves the context unbounded.
	unbounded, cancelUnbounded := s.opContext(context.Background(), 0)
	defer cancelUnbounded()
	_, ok = unbounded.Deadline()
	assert.False(t, ok)
}

func TestExecAllocatorOptionsIncludeCustomArgs(t *testing.T) {
	cfg := config.BrowserConfig{
		Headless:       true,
		NoSandbox:      true,
		ViewportWidth:  1280,
		ViewportHeight: 720,
		UserAgent:      "comet-test",
		Args:           []string{"--mute-audio", "lang=en-US"},
	}

	opts := execAllocatorOptions(cfg)
	base := execAllocatorOptions(config.BrowserConfig{ViewportWidth: 1280, ViewportHeight: 720})
	assert.Greater(t, len(opts), len(base),
		"headless, sandbox, user agent and custom args must each add options")
}
