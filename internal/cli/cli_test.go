package cli

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const archiveCSV = "TP_FUNDO;CNPJ_FUNDO;DT_COMPTC;VL_TOTAL;VL_QUOTA;VL_PATRIM_LIQ;CAPTC_DIA;RESG_DIA;NR_COTST\n" +
	"FI;11.111.111/0001-11;2024-01-02;1;10,00;1;0;0;1\n" +
	"FI;11.111.111/0001-11;2024-01-03;1;10,10;1;0;0;1\n" +
	"FI;11.111.111/0001-11;2024-01-04;1;10,20;1;0;0;1\n" +
	"FI;22.222.222/0001-22;2024-01-03;1;5,00;1;0;0;1\n" +
	"FI;22.222.222/0001-22;2024-01-04;1;5,50;1;0;0;1\n"

// run executes the command tree and returns its standard output.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeConfig(t *testing.T, sourceURL string) string {
	t.Helper()
	dir := t.TempDir()
	cfg := fmt.Sprintf(`
source:
  base_url: %s
partitions:
  dir: %s
warehouse:
  driver: duckdb
  path: %s
logging:
  level: error
`, sourceURL, filepath.Join(dir, "partitions"), filepath.Join(dir, "warehouse.duckdb"))
	path := filepath.Join(dir, "funddata.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path
}

func archiveServer(t *testing.T) *httptest.Server {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("inf_diario_fi_202401.csv")
	require.NoError(t, err)
	_, err = w.Write([]byte(archiveCSV))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/inf_diario_fi_202401.zip") {
			w.Write(buf.Bytes())
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestIngestThenReturns(t *testing.T) {
	srv := archiveServer(t)
	cfgPath := writeConfig(t, srv.URL)
	textfile := filepath.Join(t.TempDir(), "funddata.prom")

	out, err := run(t, "ingest", "--config", cfgPath, "--month", "202401", "--month", "202402", "--metrics-textfile", textfile)
	require.NoError(t, err)
	assert.Contains(t, out, "202401  published  5 rows")
	assert.Contains(t, out, "202402  unavailable")
	assert.Contains(t, out, "published 1, loaded 1, unavailable 1, failed 0")

	prom, err := os.ReadFile(textfile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `funddata_ingest_months_total{outcome="published"} 1`)

	out, err = run(t, "returns", "--config", cfgPath,
		"--entity", "11.111.111/0001-11", "--entity", "22.222.222/0001-22",
		"--start", "2024-01-01", "--end", "2024-01-31")
	require.NoError(t, err)
	assert.Contains(t, out, "true start 2024-01-03, 2 dates through 2024-01-04")
	assert.Contains(t, out, "10.0000%")
	// No benchmark rates were downloaded; January is flat.
	assert.Contains(t, out, "benchmark_gap: no benchmark rate for 202401; treated as flat")

	out, err = run(t, "load", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "loaded 0 months (0 rows), failed 0")

	out, err = run(t, "load", "--config", cfgPath, "--rebuild")
	require.NoError(t, err)
	assert.Contains(t, out, "loaded 1 months (5 rows), failed 0")
}

func TestReturnsUnknownEntity(t *testing.T) {
	cfgPath := writeConfig(t, "http://127.0.0.1:1")

	out, err := run(t, "returns", "--config", cfgPath, "-e", "GHOST", "--start", "2024-01-01", "--end", "2024-01-31")
	require.NoError(t, err)
	assert.Contains(t, out, "unknown_entity: no data for GHOST")
	assert.Contains(t, out, "empty_window:")
}

func TestReturnsRejectsBadDate(t *testing.T) {
	cfgPath := writeConfig(t, "http://127.0.0.1:1")

	_, err := run(t, "returns", "--config", cfgPath, "-e", "A", "--start", "2024/01/01", "--end", "2024-01-31")
	assert.ErrorContains(t, err, "bad --start")
}

func TestIngestRejectsBadMonth(t *testing.T) {
	cfgPath := writeConfig(t, "http://127.0.0.1:1")

	_, err := run(t, "ingest", "--config", cfgPath, "--month", "2024-01")
	assert.ErrorContains(t, err, `bad --month "2024-01"`)
}

func TestConfigValidate(t *testing.T) {
	cfgPath := writeConfig(t, "https://example.test/data")

	out, err := run(t, "config", "validate", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "configuration valid: "+cfgPath)
	assert.Contains(t, out, "source:     https://example.test/data")
	assert.Contains(t, out, "benchmarks: [CDI IPCA TR] (default CDI, gaps carry_forward)")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("warehouse:\n  driver: sqlite\n"), 0o644))
	_, err = run(t, "config", "validate", "--config", bad)
	assert.ErrorContains(t, err, "warehouse.driver")
}

func TestVersionSkipsConfig(t *testing.T) {
	out, err := run(t, "version", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "funddata "))
}
