//go:build pact
// +build pact

package pacttest

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

const (
	// ProviderName is the order API as seen by the storefront.
	ProviderName = "bookshop-order-api"
	ConsumerName = "bookshop-storefront"

	// CatalogProviderName is the book catalog the order API depends on.
	CatalogProviderName = "book-catalog"

	StateOrdersBaseline = "orders baseline"
	StateOrderExists    = "alice has an accepted order"
	StateBookAvailable  = "book 1234567893 is in the catalog"
	StateBookMissing    = "book 1234567894 is not in the catalog"
)

const (
	Subject        = "alice"
	IdentityHeader = "X-Auth-Subject"

	AvailableISBN = "1234567893"
	MissingISBN   = "1234567894"

	BookTitle  = "Title"
	BookAuthor = "Author"
	BookPrice  = 9.90
)

// PactDir returns the workspace-level directory for generated pact files.
func PactDir(t testing.TB) string {
	t.Helper()
	dir := filepath.Join(projectRoot(t), "pacts")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("create pact dir: %v", err)
	}
	return dir
}

// PactFile returns the pact between the storefront and the order API.
func PactFile(t testing.TB) string {
	t.Helper()
	return filepath.Join(PactDir(t), ConsumerName+"-"+ProviderName+".json")
}

// LogDir returns the log output directory for pact-go.
func LogDir(t testing.TB) string {
	t.Helper()
	dir := filepath.Join(projectRoot(t), "bin", "pact-logs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("create pact log dir: %v", err)
	}
	return dir
}

// ExampleBookPayload is the catalog representation of AvailableISBN.
func ExampleBookPayload() map[string]any {
	return map[string]any{
		"isbn":   AvailableISBN,
		"title":  BookTitle,
		"author": BookAuthor,
		"price":  BookPrice,
	}
}

// ExampleOrderRequest submits one copy of AvailableISBN.
func ExampleOrderRequest() map[string]any {
	return map[string]any{
		"isbn":     AvailableISBN,
		"quantity": 1,
	}
}

// projectRoot walks up from this file to the workspace root.
func projectRoot(t testing.TB) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("cannot determine caller for pact paths")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(file), "..", ".."))
}
