package loam_test

import (
	"context"
	"testing"

	"github.com/aretw0/conductor/internal/testutils"
	adapter "github.com/aretw0/conductor/pkg/adapters/loam"
	"github.com/aretw0/conductor/pkg/adapters/scripted"
	"github.com/aretw0/loam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLibrary(t *testing.T, files map[string]string) *adapter.Library {
	t.Helper()
	dir, repo := testutils.SetupTestRepo(t)
	testutils.WriteFiles(t, dir, files)
	return adapter.New(loam.NewTypedRepository[adapter.PromptMetadata](repo))
}

func TestLibrary_Configs(t *testing.T) {
	lib := newLibrary(t, map[string]string{
		"summarize.md": `---
name: summarize
description: Summarize a text
temperature: 0.2
variables:
  - name: text
    description: Text to summarize
    required: true
---
Summarize in one sentence: {{$text}}
`,
		"translate.md": `---
description: Translate text
---
Translate {{$text}} to {{$language}}.`,
		"old.md": `---
name: old
disabled: true
---
Ignored {{$x}}`,
	})

	configs, err := lib.Configs(context.Background())
	require.NoError(t, err)
	require.Len(t, configs, 2)

	assert.Equal(t, "summarize", configs[0].Name)
	assert.Equal(t, "Summarize in one sentence: {{$text}}", configs[0].Template)
	assert.InDelta(t, 0.2, configs[0].Temperature, 1e-9)
	require.Len(t, configs[0].Variables, 1)
	assert.True(t, configs[0].Variables[0].Required)

	assert.Equal(t, "translate", configs[1].Name, "name falls back to the file name")
}

func TestLibrary_DetectsCollisions(t *testing.T) {
	lib := newLibrary(t, map[string]string{
		"a.md": "---\nname: same\n---\nA {{$x}}",
		"b.md": "---\nname: same\n---\nB {{$x}}",
	})

	_, err := lib.Configs(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collision detected")
}

func TestLibrary_Capabilities(t *testing.T) {
	lib := newLibrary(t, map[string]string{
		"greet.md": "---\ndescription: Greet someone\n---\nSay hello to {{$who}}",
	})
	reasoner := scripted.New("Hello, Ada!")

	caps, err := lib.Capabilities(context.Background(), reasoner)
	require.NoError(t, err)
	require.Len(t, caps, 1)
	assert.Equal(t, "greet", caps[0].Info.Name)
	require.Len(t, caps[0].Info.Parameters, 1)
	assert.Equal(t, "who", caps[0].Info.Parameters[0].Name)

	out, err := caps[0].Handler(context.Background(), map[string]any{"who": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "Hello, Ada!", out)
	require.Len(t, reasoner.Requests(), 1)
	assert.Equal(t, "Say hello to Ada", reasoner.Requests()[0].Prompt)
}

func TestLibrary_RejectsUnusedVariables(t *testing.T) {
	lib := newLibrary(t, map[string]string{
		"bad.md": "---\nvariables:\n  - name: ghost\n---\nNo placeholders here",
	})

	_, err := lib.Capabilities(context.Background(), scripted.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}
