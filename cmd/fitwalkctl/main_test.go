package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(args ...string) (string, error) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runCLI(args...)
	require.NoError(t, err, "fitwalkctl %s\n%s", strings.Join(args, " "), out)
	return out
}

var runIDPattern = regexp.MustCompile(`run_id=(\S+)`)

func parseRunID(t *testing.T, out string) string {
	t.Helper()
	m := runIDPattern.FindStringSubmatch(out)
	require.Len(t, m, 2, out)
	return m[1]
}

func TestIngestSweepPeaksRuns(t *testing.T) {
	base := t.TempDir()
	screened := filepath.Join(base, "screened.csv")
	fitted := filepath.Join(base, "fitted.csv")
	require.NoError(t, os.WriteFile(screened, []byte("Variants,Fitness\nAA,1\nAR,2\nRA,3\nRR,0.5\n"), 0o644))
	require.NoError(t, os.WriteFile(fitted, []byte("Variants,Imputed fitness\nRR,4\n"), 0o644))
	common := []string{
		"--store", "sqlite",
		"--db-path", filepath.Join(base, "fitwalk.db"),
		"--runs-dir", filepath.Join(base, "runs"),
		"--alphabet", "AR",
	}

	out := execute(t, append([]string{"ingest", "--screened", screened, "--fitted", fitted}, common...)...)
	assert.Contains(t, out, "stored=4")

	out = execute(t, append([]string{"walk", "AA"}, common...)...)
	assert.Contains(t, out, "final=RR fitness=4 reached_max=true")

	out = execute(t, append([]string{"sweep", "--workers", "2"}, common...)...)
	assert.Contains(t, out, "RR")
	assert.Contains(t, out, "100.00%")
	sweepID := parseRunID(t, out)

	out = execute(t, append([]string{"peaks", "--latest"}, common...)...)
	assert.Contains(t, out, "RR")

	out = execute(t, append([]string{"runs"}, common...)...)
	assert.Contains(t, out, "sweep")
	assert.Contains(t, out, "complete=true")

	out = execute(t, append([]string{"runs", "show", sweepID}, common...)...)
	assert.Contains(t, out, "run_id="+sweepID+" kind=sweep store=sqlite alphabet=AR length=2")
	assert.Contains(t, out, "100.00%")
	assert.Contains(t, out, "RR")
}

func TestRecombineAndCurveCommands(t *testing.T) {
	base := t.TempDir()
	table := filepath.Join(base, "screened.csv")
	require.NoError(t, os.WriteFile(table, []byte("Variants,Fitness\nAA,1\nAR,2\nRA,3\nRR,4\n"), 0o644))
	common := []string{
		"--store", "badger",
		"--db-path", filepath.Join(base, "badger"),
		"--runs-dir", filepath.Join(base, "runs"),
		"--alphabet", "AR",
		"--chart=false",
	}
	execute(t, "ingest", "--screened", table, "--store", "badger", "--db-path", filepath.Join(base, "badger"), "--alphabet", "AR")

	out := execute(t, append([]string{"recombine", "--sample-size", "4", "--top-k", "2", "--times", "2"}, common...)...)
	assert.Contains(t, out, "runs=2")
	assert.Contains(t, out, "max=4.0000")
	recombineID := parseRunID(t, out)

	out = execute(t, append([]string{"curve", "--sizes", "1,4", "--times", "2"}, common...)...)
	assert.Contains(t, out, "sample size")

	shared := common[:len(common)-1]
	out = execute(t, append([]string{"runs", "show", recombineID}, shared...)...)
	assert.Contains(t, out, "kind=recombine store=badger")
	assert.Contains(t, out, "peak fitness")
	assert.Contains(t, out, "runs=2")
}

func TestRunsShowUnknownRunFails(t *testing.T) {
	out, err := runCLI("runs", "show", "missing", "--store", "memory", "--runs-dir", t.TempDir())
	require.Error(t, err, out)
	assert.Contains(t, err.Error(), "run not found")

	_, err = runCLI("runs", "show", "../escape", "--store", "memory", "--runs-dir", t.TempDir())
	assert.Error(t, err)
}

func TestUnknownStoreFails(t *testing.T) {
	_, err := runCLI("runs", "--store", "etcd", "--runs-dir", t.TempDir())
	assert.Error(t, err)
}

type failingCloser struct{ err error }

func (c failingCloser) Close() error { return c.err }

func TestCloseIntoJoinsCloseError(t *testing.T) {
	closeErr := errors.New("close store")

	var err error
	closeInto(failingCloser{err: closeErr}, &err)
	assert.ErrorIs(t, err, closeErr)

	runErr := errors.New("walk")
	err = runErr
	closeInto(failingCloser{err: closeErr}, &err)
	assert.ErrorIs(t, err, runErr)
	assert.ErrorIs(t, err, closeErr)

	err = nil
	closeInto(failingCloser{}, &err)
	assert.NoError(t, err)
}
