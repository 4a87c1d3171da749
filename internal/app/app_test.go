package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/JonMunkholm/machinelog/internal/config"
	"github.com/JonMunkholm/machinelog/internal/core"
	"github.com/JonMunkholm/machinelog/internal/grid/sqlstore"
	"github.com/JonMunkholm/machinelog/internal/grid/xlsxstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T, env map[string]string) *config.Config {
	t.Helper()
	cfg, err := config.LoadFrom(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	require.NoError(t, err)
	return cfg
}

func submit(t *testing.T, a *App) {
	t.Helper()
	_, err := a.Service.Apply(context.Background(), &core.Submission{
		Date:      "2026-02-11",
		Factory:   "THHM",
		Ownership: "Owned",
		Machines:  []core.MachineEntry{{Type: "Over Lock", Statuses: map[string]core.Count{"Absent": core.CountOf(2)}}},
	})
	require.NoError(t, err)
}

func TestNew_Backends(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name   string
		env    map[string]string
		verify func(t *testing.T, a *App)
	}{
		{"memory", map[string]string{"STORE_BACKEND": "memory"}, nil},
		{"xlsx", map[string]string{
			"STORE_BACKEND":       "xlsx",
			"STORE_WORKBOOK_PATH": filepath.Join(dir, "records.xlsx"),
		}, func(t *testing.T, a *App) {
			assert.IsType(t, &xlsxstore.Store{}, a.Store)
			// Auto flush writes the workbook on every submission.
			_, err := os.Stat(filepath.Join(dir, "records.xlsx"))
			assert.NoError(t, err)
		}},
		{"sqlite", map[string]string{
			"STORE_BACKEND":     "sqlite",
			"STORE_SQLITE_PATH": filepath.Join(dir, "records.db"),
		}, func(t *testing.T, a *App) {
			assert.IsType(t, &sqlstore.Store{}, a.Store)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := New(context.Background(), load(t, tt.env))
			require.NoError(t, err)
			defer a.Close()

			submit(t, a)
			sum, err := a.Service.ComputeSummary(context.Background())
			require.NoError(t, err)
			assert.Equal(t, float64(2), sum.GrandTotal)

			if tt.verify != nil {
				tt.verify(t, a)
			}
		})
	}
}

func TestNew_RedisLocker(t *testing.T) {
	mr := miniredis.RunT(t)

	a, err := New(context.Background(), load(t, map[string]string{
		"STORE_BACKEND": "memory",
		"LOCK_BACKEND":  "redis",
		"REDIS_ADDRESS": mr.Addr(),
	}))
	require.NoError(t, err)
	defer a.Close()

	submit(t, a)
	// Released after the merge.
	assert.Empty(t, mr.Keys())
}

func TestNew_RedisUnreachable(t *testing.T) {
	_, err := New(context.Background(), load(t, map[string]string{
		"STORE_BACKEND": "memory",
		"LOCK_BACKEND":  "redis",
		"REDIS_ADDRESS": "127.0.0.1:1",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping redis")
}

func TestNew_SchemaFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte("factories: [NORTH, SOUTH]\n"), 0o644))

	a, err := New(context.Background(), load(t, map[string]string{
		"STORE_BACKEND": "memory",
		"SCHEMA_FILE":   path,
		"FACTORIES":     "IGNORED",
	}))
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, []string{"NORTH", "SOUTH"}, a.Schema.Factories())
	assert.Len(t, a.Schema.MachineTypes(), 9)
}

func TestPeriodicFlush(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.xlsx")
	a, err := New(context.Background(), load(t, map[string]string{
		"STORE_BACKEND":        "xlsx",
		"STORE_WORKBOOK_PATH":  path,
		"STORE_FLUSH_INTERVAL": "10ms",
	}))
	require.NoError(t, err)
	defer a.Close()

	submit(t, a)
	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, a.Close())
	// Second Close is a no-op.
	require.NoError(t, a.Close())
}
