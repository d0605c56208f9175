// Package shared holds helpers used across packages that belong to no single layer.
//
// The testutil subpackage provides a buffered slog handler so tests can assert on
// structured log output:
//
//	logger, logs := testutil.NewTestLogger(t)
//	svc := services.NewCatalogService(store.NewMemoryStore(), logger)
//	...
//	testutil.AssertLogContains(t, logs, slog.LevelInfo, "catalog published")
package shared
