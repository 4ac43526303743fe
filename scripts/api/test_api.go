// Minimal end-to-end integration test for a running proposals API.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	"github.com/google/uuid"
)

var (
	baseURL = getenv("API_URL", "http://localhost:8080")
	space   = getenv("SPACE", "ens.eth")
)

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

type page struct {
	Context    string            `json:"@context"`
	Name       string            `json:"name"`
	Source     string            `json:"source"`
	Proposals  []json.RawMessage `json:"proposals"`
	NextCursor *int64            `json:"next_cursor"`
	FetchedAt  int64             `json:"fetched_at"`
}

func main() {
	path := "/proposals/" + space + "?cursor=1609459200&limit=5"

	first, firstBody, _ := get(path, http.StatusOK)
	var p page
	if err := json.Unmarshal(firstBody, &p); err != nil {
		log.Fatalf("decode: %v", err)
	}
	if p.Name != space || p.Source != "offchain" {
		log.Fatalf("unexpected page header: name=%q source=%q", p.Name, p.Source)
	}
	fmt.Printf("first page: %d proposals, X-Cache=%s\n", len(p.Proposals), first.Get("X-Cache"))

	second, secondBody, _ := get(path, http.StatusOK)
	if second.Get("X-Cache") != "HIT" {
		log.Fatalf("repeat request: want X-Cache HIT got %q", second.Get("X-Cache"))
	}
	if string(secondBody) != string(firstBody) {
		log.Fatal("repeat request: body differs from first response")
	}

	refreshed, _, _ := get(path+"&refresh=true", http.StatusOK)
	if refreshed.Get("X-Cache") != "REFRESH" {
		log.Fatalf("refresh: want X-Cache REFRESH got %q", refreshed.Get("X-Cache"))
	}

	_, _, _ = get("/proposals/"+space+"?cursor=abc", http.StatusBadRequest)
	_, _, _ = get("/proposals/"+space+"?refresh=maybe", http.StatusBadRequest)

	fmt.Println("✓ all endpoints passed")
}

func get(path string, want int) (http.Header, []byte, int) {
	req, _ := http.NewRequest(http.MethodGet, baseURL+path, nil)
	req.Header.Set("X-Request-ID", "smoke-"+uuid.NewString())
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("GET %s: %v", path, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		log.Fatalf("GET %s read: %v", path, err)
	}
	if res.StatusCode != want {
		log.Fatalf("GET %s: want %d got %d: %s", path, want, res.StatusCode, body)
	}
	return res.Header, body, res.StatusCode
}
