package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/AngelCh415/adforecast/internal/analysis"
)

const sampleCSV = `Day,Impressions,Clicks,Conversions,Cost,Total conversion value,Avg. position
2024-01-01,1000,35,2,45.00,200,1.9
2024-01-02,1200,40,3,52.10,310.5,1.8
2024-01-03,900,,1,30,90,2.1
`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeCSV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "daily.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o644))
	return path
}

func TestRedistributeJSON(t *testing.T) {
	out, err := run(t, "redistribute", "--clicks", "10,10,10,10,10,10,10", "--slope", "0.2", "-o", "json")
	require.NoError(t, err)

	var got []float64
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, []float64{2, 2, 2, 2, 2, 2, 2}, got)
}

func TestRedistributeYAMLWithMissingDay(t *testing.T) {
	out, err := run(t, "redistribute", "--clicks", "3,,1", "--intercept", "8", "-o", "yaml")
	require.NoError(t, err)

	var got []float64
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	assert.InDeltaSlice(t, []float64{6, 0, 2}, got, 1e-9)
}

func TestRedistributeTable(t *testing.T) {
	out, err := run(t, "redistribute", "--clicks", "1,na", "--intercept", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "CONVERSIONS")
	assert.Contains(t, out, "2.0000")
}

func TestRedistributeErrors(t *testing.T) {
	_, err := run(t, "redistribute", "--clicks", "1,2", "--kind", "arima")
	assert.Error(t, err)

	_, err = run(t, "redistribute", "--clicks", "1,x")
	assert.Error(t, err)

	_, err = run(t, "redistribute", "--clicks", "0,0", "--zero-bucket", "reject")
	assert.Error(t, err)

	_, err = run(t, "redistribute", "--clicks", "1,,2", "--missing", "reject")
	assert.Error(t, err)
}

func TestDescribe(t *testing.T) {
	csv := writeCSV(t)

	out, err := run(t, "describe", "--csv", csv, "-o", "json")
	require.NoError(t, err)
	var sum []analysis.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &sum))
	for _, s := range sum {
		if s.Field == "clicks" {
			assert.Equal(t, 2, s.Count)
			assert.InDelta(t, 37.5, s.Mean, 1e-9)
		}
	}

	out, err = run(t, "describe", "--csv", csv)
	require.NoError(t, err)
	assert.Contains(t, out, "FIELD")
	assert.Contains(t, out, "impressions")
}

func TestCorrelateTable(t *testing.T) {
	out, err := run(t, "correlate", "--csv", writeCSV(t), "--fields", "impressions,cost")
	require.NoError(t, err)
	assert.Contains(t, out, "1.000")
}

func TestNeedsCSV(t *testing.T) {
	_, err := run(t, "describe", "--csv", "")
	assert.Error(t, err)

	_, err = run(t, "forecast", "--csv", filepath.Join(t.TempDir(), "absent.csv"))
	assert.Error(t, err)
}

func TestForecastNeedsHistory(t *testing.T) {
	_, err := run(t, "forecast", "--csv", writeCSV(t), "--horizon", "7")
	assert.Error(t, err)

	_, err = run(t, "compare", "--csv", writeCSV(t))
	assert.Error(t, err)
}

func TestUnknownOutput(t *testing.T) {
	_, err := run(t, "redistribute", "--clicks", "1", "-o", "xml")
	assert.Error(t, err)
}

func TestMalformedConfigFails(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "adforecast.yaml"), []byte("port: [oops"), 0o644))
	t.Chdir(dir)

	_, err := run(t, "redistribute", "--clicks", "1", "--slope", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")
}
