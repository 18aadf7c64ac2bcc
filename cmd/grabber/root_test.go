package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, stdin string, args ...string) string {
	t.Helper()

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return out.String()
}

func TestVersionCommand(t *testing.T) {
	assert.Equal(t, version+"\n", execute(t, "", "version"))
}

func TestExtractCommand(t *testing.T) {
	out := execute(t, "", "extract", "grab", "https://t.me/CryptoBot?start=c1A2b3C4d5")
	assert.Equal(t, "cryptobot:c1A2b3C4d5\n", out)

	out = execute(t, "nothing to see", "extract")
	assert.Empty(t, out)
}
