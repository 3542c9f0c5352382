package page

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplator(t *testing.T) {
	var tmpl Templator
	html, err := tmpl.Template(context.Background(), Params{
		Image:          "abc.png",
		Model:          "Qwen/Qwen-Image",
		Prompt:         `a <red> cube & "friends"`,
		NegativePrompt: " ",
		Width:          512,
		Height:         512,
		Steps:          10,
		CFGScale:       4,
		Seed:           42,
		Created:        time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	page := string(html)
	assert.Contains(t, page, `src="abc.png"`)
	assert.Contains(t, page, "a &lt;red&gt; cube &amp; &#34;friends&#34;")
	assert.NotContains(t, page, "<red>")
	assert.NotContains(t, page, "Negative prompt")
	assert.Contains(t, page, "<dd>42</dd>")
	assert.Contains(t, page, "2026-10-18 09:30:00 UTC")

	html, err = tmpl.Template(context.Background(), Params{Prompt: "x", NegativePrompt: "blurry"})
	require.NoError(t, err)
	assert.Contains(t, string(html), "<dd>blurry</dd>")
}
