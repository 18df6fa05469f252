//go:build integration

// Integration test against a running API.
// Requires a server: mapview --port 8087 (or a real deployment)
//
// Run: MAPVIEW_BASE_URL=http://localhost:8087 go test -tags=integration ./internal/remote/
package remote_test

import (
	"context"
	"os"
	"testing"

	"github.com/joeblew999/plat-mapview/internal/remote"
)

func baseURL() string {
	if u := os.Getenv("MAPVIEW_BASE_URL"); u != "" {
		return u
	}
	return "http://localhost:8087"
}

func TestListLayersLive(t *testing.T) {
	layers, err := remote.New(baseURL()).ListLayers(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	for _, l := range layers {
		if l.ID == "" || l.Name == "" {
			t.Fatalf("layer missing id or name: %+v", l)
		}
	}
}

func TestSearchLive(t *testing.T) {
	if _, err := remote.New(baseURL()).SearchFeatures(context.Background(), "utm"); err != nil {
		t.Fatal(err)
	}
}

func TestDeleteWithoutTokenIsRejected(t *testing.T) {
	err := remote.New(baseURL()).DeleteLayer(context.Background(), "does-not-exist", "")
	if err == nil {
		t.Fatal("expected an error deleting without a token")
	}
}
