package testutil

import (
	"path/filepath"
	"runtime"

	"github.com/edgeflare/pgmock/pkg/store"
)

// LoadFixtures reads a fixture file relative to this package, e.g.
// LoadFixtures("testdata/marketplace.yaml").
func LoadFixtures(filename string) (store.Fixtures, error) {
	_, currentFile, _, _ := runtime.Caller(0)
	dir := filepath.Dir(currentFile)
	return store.LoadFixtures(filepath.Join(dir, filename))
}
