package main

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuitang/gridcheck/internal/config"
)

func TestParseLevel(t *testing.T) {
	level, err := parseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)

	_, err = parseLevel("loud")
	assert.Error(t, err)
}

func TestPortalCredentials(t *testing.T) {
	env := config.ResolveEnvironment("dev")

	creds, err := portalCredentials(env, "translation")
	require.NoError(t, err)
	assert.Equal(t, env.Translation, creds)

	creds, err = portalCredentials(env, "english")
	require.NoError(t, err)
	assert.Equal(t, env.English, creds)

	_, err = portalCredentials(env, "french")
	assert.Error(t, err)

	_, err = portalCredentials(config.Environment{Name: "qa"}, "english")
	assert.Error(t, err)
}

func TestWorkflowFromFlags_DefaultsToTestDataDocument(t *testing.T) {
	settings = &config.Settings{Env: config.ResolveEnvironment("dev")}
	t.Cleanup(func() {
		settings = nil
		apiPortal = "translation"
	})

	apiPortal = "translation"
	wf, err := workflowFromFlags()
	require.NoError(t, err)
	assert.Equal(t, "QA_Automation_Doc_de", wf.DocumentName)

	apiPortal = "english"
	wf, err = workflowFromFlags()
	require.NoError(t, err)
	assert.Equal(t, "QA_Automation_Doc_en", wf.DocumentName)
	assert.Equal(t, settings.Env.English.Email, wf.Email)
}

func TestRootCommandWiresSubcommands(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"run", "api", "audit", "load", "fixture"} {
		assert.Contains(t, names, want)
	}
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", firstNonEmpty("", "b", "c"))
	assert.Equal(t, "", firstNonEmpty("", ""))
}
