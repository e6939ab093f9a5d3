package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradepath/roi-ingest/internal/etlerr"
)

func TestParseCredentials(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"single", "abc", []string{"abc"}},
		{"comma", "a,b,c", []string{"a", "b", "c"}},
		{"mixed separators", " a; b ,c\n d\t", []string{"a", "b", "c", "d"}},
		{"duplicates keep first position", "b,a,b,c,a", []string{"b", "a", "c"}},
		{"empty", "", []string{}},
		{"only separators", " ,;; ", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseCredentials(tt.raw))
		})
	}
}

func TestParseList(t *testing.T) {
	assert.Nil(t, ParseList("  "))
	assert.Equal(t, []string{"46", "47", "48"}, ParseList("46, 47,,48 "))
}

func TestLoadDefaultsAndOverrides(t *testing.T) {
	t.Setenv("BLS_API_KEY", "k1, k2;k1")
	t.Setenv("DATA_GOV_API_KEY", " catalog ")
	t.Setenv("TARGET_CIP_FAMILIES", "46,51")
	t.Setenv("WAGE_COOLDOWN_MS", "250")
	t.Setenv("CATALOG_PAGE_SIZE", "not-a-number")
	t.Setenv("CATALOG_MAX_PAGES", "")
	t.Setenv("WAGE_BATCH_SIZE", "")

	cfg := Load()

	assert.Equal(t, []string{"k1", "k2"}, cfg.WageAPIKeys)
	assert.Equal(t, "catalog", cfg.CatalogAPIKey)
	assert.Equal(t, []string{"46", "51"}, cfg.TargetFamilies)
	assert.Equal(t, 250*time.Millisecond, cfg.WageCooldown)
	assert.Equal(t, 100, cfg.CatalogPageSize)
	assert.Equal(t, 500, cfg.CatalogMaxPages)
	assert.Equal(t, 40, cfg.WageBatchSize)

	require.NoError(t, cfg.RequireCatalogKey())
	require.NoError(t, cfg.RequireWageKeys())
}

func TestRequireKeys(t *testing.T) {
	cfg := &Config{}
	assert.True(t, etlerr.IsKind(cfg.RequireCatalogKey(), etlerr.KindConfig))
	assert.True(t, etlerr.IsKind(cfg.RequireWageKeys(), etlerr.KindConfig))
}

func TestLookupRegion(t *testing.T) {
	r, err := LookupRegion(" tx ")
	require.NoError(t, err)
	assert.Equal(t, Region{Abbr: "TX", FIPS: "48"}, r)

	r, err = LookupRegion("DC")
	require.NoError(t, err)
	assert.Equal(t, "11", r.FIPS)

	_, err = LookupRegion("")
	assert.True(t, etlerr.IsKind(err, etlerr.KindConfig))

	_, err = LookupRegion("ZZ")
	assert.True(t, etlerr.IsKind(err, etlerr.KindConfig))
}

func TestAllRegions(t *testing.T) {
	regions := AllRegions()
	require.Len(t, regions, 51)
	assert.Equal(t, "AK", regions[0].Abbr)
	assert.Equal(t, "WY", regions[len(regions)-1].Abbr)
}

func TestLockKeys(t *testing.T) {
	assert.Equal(t, "etl:lock:harvest", LockKey.StageLockKey("harvest"))
	assert.Equal(t, "etl:lock:wages:TX", LockKey.WageStageLockKey("tx"))
}

type sampleFile struct {
	Name  string   `json:"name"`
	Size  int      `json:"size"`
	Items []string `json:"items"`
}

func TestReadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.json5")

	t.Run("missing", func(t *testing.T) {
		_, err := ReadConfig[sampleFile](path)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	require.NoError(t, os.WriteFile(path, []byte(`{
		// comments and trailing commas are allowed
		name: "base",
		size: 1,
		items: ["a"],
	}`), 0o644))

	t.Run("base only", func(t *testing.T) {
		got, err := ReadConfig[sampleFile](path)
		require.NoError(t, err)
		assert.Equal(t, sampleFile{Name: "base", Size: 1, Items: []string{"a"}}, got)
	})

	require.NoError(t, os.WriteFile(LocalOverridePath(path), []byte(`{size: 5, items: ["b"]}`), 0o644))

	t.Run("local override merges", func(t *testing.T) {
		got, err := ReadConfig[sampleFile](path)
		require.NoError(t, err)
		assert.Equal(t, "base", got.Name)
		assert.Equal(t, 5, got.Size)
		assert.Equal(t, []string{"a", "b"}, got.Items)
	})

	t.Run("invalid", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json5")
		require.NoError(t, os.WriteFile(bad, []byte(`{name: `), 0o644))
		_, err := ReadConfig[sampleFile](bad)
		require.Error(t, err)
		assert.NotErrorIs(t, err, os.ErrNotExist)
	})
}

func TestLocalOverridePath(t *testing.T) {
	assert.Equal(t, "conf/curated.local.json5", LocalOverridePath("conf/curated.json5"))
	assert.Equal(t, "curated.local", LocalOverridePath("curated"))
}
