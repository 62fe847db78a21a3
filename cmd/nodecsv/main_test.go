package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("2020 1 2 1 0\n 2 -10.5 990\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("2020 1 1 1 18\n 1 12.25 1002\n"), 0o644))
	out := filepath.Join(dir, "nodes.csv")

	require.NoError(t, run(filepath.Join(dir, "*.txt"), out, []string{"LON", "LAT", "MSLP"}))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "ISOTIME,LON,LAT,MSLP\n"+
		"2020-01-01 18:00:00,1,12.25,1002\n"+
		"2020-01-02 00:00:00,2,-10.5,990\n", string(data))
	assert.NoFileExists(t, out+".partial")
}

func TestRun_NoFiles(t *testing.T) {
	err := run(filepath.Join(t.TempDir(), "*.txt"), "out.csv", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no files match")
}

func TestSplitColumns(t *testing.T) {
	assert.Nil(t, splitColumns(" "))
	assert.Equal(t, []string{"i", "j", "LON"}, splitColumns("i, j,LON"))
}
