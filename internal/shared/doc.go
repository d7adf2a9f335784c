// Package shared holds code used by several internal packages that does
// not belong to any one layer. Today that is only the testutil subpackage:
// a capturing slog handler and water-quality fixtures for tests.
package shared
