package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brensch/midiset/internal/config"
	"github.com/brensch/midiset/internal/orchestrator"
	"github.com/brensch/midiset/internal/testutil"
)

// execute runs rootCmd with args. The commands share package state, so tests
// in this file do not run in parallel.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

// resetFlags undoes flag values left over from a previous execution.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func TestRoot_ExtractInspectVerifyHistory(t *testing.T) {
	in := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(in, "setA"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(in, "setB"), 0o755))
	testutil.WriteZip(t, filepath.Join(in, "setA", "a.zip"), testutil.File("x.mid", 500), testutil.File("readme.txt", 10))
	testutil.WriteTarGz(t, filepath.Join(in, "setB", "b.tar.gz"), testutil.File("dir/y.MIDI", 2048))

	out := filepath.Join(t.TempDir(), "dataset")
	ledger := filepath.Join(t.TempDir(), "runs.duckdb")
	logFile := filepath.Join(t.TempDir(), "midiset.log")

	stdout, err := execute(t, in, "-o", out, "-j", "2", "--progress", "none",
		"--db-path", ledger, "--log-output", logFile, "--log-level", "debug")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Found 2 MIDI files in 2 groups")
	assert.Contains(t, stdout, "Saved 2 MIDI files")
	assert.DirExists(t, filepath.Join(out, "group=a"))
	assert.DirExists(t, filepath.Join(out, "group=b"))
	assert.NoDirExists(t, filepath.Join(out, "group=setA"))

	logged, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(logged), "Pipeline finished.")

	stdout, err = execute(t, "inspect", out)
	require.NoError(t, err)
	assert.Regexp(t, `(?m)^\s*a\s`, stdout)
	assert.Regexp(t, `(?m)^\s*b\s`, stdout)
	assert.NotContains(t, stdout, "setA")

	_, err = execute(t, "verify", out)
	require.NoError(t, err)

	stdout, err = execute(t, "history", "--db-path", ledger)
	require.NoError(t, err)
	assert.Contains(t, stdout, "succeeded")
	assert.Contains(t, stdout, "Displayed 1 runs.")
}

func TestRoot_RequiresOutput(t *testing.T) {
	in := t.TempDir()
	t.Setenv("MIDISET_OUTPUT", "")

	_, err := execute(t, in)
	assert.ErrorIs(t, err, errOutputRequired)
}

func TestRoot_UnknownLogLevelRejected(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "dataset")

	_, err := execute(t, in, "-o", out, "--progress", "none", "--log-level", "verbose")
	assert.ErrorIs(t, err, config.ErrInvalidLogLevel)
	assert.NoDirExists(t, out)
}

func TestRoot_NoArchivesFails(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "dataset")

	_, err := execute(t, in, "-o", out, "--progress", "none")
	assert.ErrorIs(t, err, orchestrator.ErrNoArchives)
	assert.NoDirExists(t, out)
}
