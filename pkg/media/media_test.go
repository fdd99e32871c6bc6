package media

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
)

func newMediaServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/disks.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`["newdos.dsk","ldos.dsk"]`))
	})
	mux.HandleFunc("/cassettes.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestClient_Disks(t *testing.T) {
	server := newMediaServer(t)
	client := NewClient(server.URL+"/", nil)

	disks, err := client.Disks(context.Background())
	if err != nil {
		t.Fatalf("Disks() error = %v", err)
	}
	want := []string{"ldos.dsk", "newdos.dsk"}
	if !reflect.DeepEqual(disks, want) {
		t.Errorf("Disks() = %v, want %v", disks, want)
	}
}

func TestClient_EmptyCassettes(t *testing.T) {
	server := newMediaServer(t)
	client := NewClient(server.URL, server.Client())

	cassettes, err := client.Cassettes(context.Background())
	if err != nil {
		t.Fatalf("Cassettes() error = %v", err)
	}
	if len(cassettes) != 0 {
		t.Errorf("Cassettes() = %v, want empty", cassettes)
	}
}

func TestClient_Errors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/disks.json", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	})
	mux.HandleFunc("/cassettes.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"not":"a list"}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient(server.URL, nil)

	if _, err := client.Disks(context.Background()); err == nil || !strings.Contains(err.Error(), "500") {
		t.Errorf("Disks() error = %v, want a 500 status error", err)
	}
	if _, err := client.Cassettes(context.Background()); err == nil {
		t.Error("Cassettes() should fail on a non-list body")
	}
}

func TestKind_Path(t *testing.T) {
	if Disks.Path() != "/disks.json" || Cassettes.Path() != "/cassettes.json" {
		t.Errorf("paths = %q %q", Disks.Path(), Cassettes.Path())
	}
}
