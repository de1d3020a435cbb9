package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func runArgs(args ...string) error {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	return cmd.Execute()
}

func TestMissingDSN(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	err := runArgs("up")
	assert.ErrorContains(t, err, "dsn required")
}

func TestUnknownAction(t *testing.T) {
	assert.Error(t, runArgs("sideways", "--dsn", "postgres://example"))
}

func TestActionRejectsArgs(t *testing.T) {
	assert.Error(t, runArgs("up", "extra", "--dsn", "postgres://example"))
}

func TestSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range newRootCmd().Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"up", "down", "redo", "status", "version"} {
		assert.True(t, names[want], want)
	}
}
