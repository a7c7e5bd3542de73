package main

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// Serves a local JSON mirror for the "mirror" source:
//
//	GET /titles/{slug}          -> data/mirror/{slug}.json
//	GET /titles/{slug}/chapters -> data/mirror/{slug}.chapters.json
//
// Handy for demos and for testing reconciliation without hammering a real
// source: edit the chapter file between runs to simulate adds and removals.
func main() {
	dataDir := "data/mirror"
	if v := os.Getenv("MANGAWATCH_MIRROR_DATA"); v != "" {
		dataDir = v
	}

	http.HandleFunc("/titles/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/titles/"), "/")
		if rest == "" {
			http.Error(w, "missing slug", http.StatusBadRequest)
			return
		}

		var file string
		if slug, ok := strings.CutSuffix(rest, "/chapters"); ok {
			file = slug + ".chapters.json"
		} else {
			file = rest + ".json"
		}
		if strings.Contains(file, "..") || strings.Contains(file, "/") {
			http.Error(w, "bad slug", http.StatusBadRequest)
			return
		}

		b, err := os.ReadFile(filepath.Join(dataDir, file))
		if err != nil {
			http.Error(w, "unknown title: "+rest, http.StatusNotFound)
			return
		}
		// validate JSON so a bad file doesn't silently break clients
		var tmp any
		if err := json.Unmarshal(b, &tmp); err != nil {
			http.Error(w, "invalid mirror file: "+err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(b)
	})

	addr := ":9000"
	if v := os.Getenv("MANGAWATCH_MIRROR_ADDR"); v != "" {
		addr = v
	}
	log.Printf("mirror-server listening on %s (data dir %s)", addr, dataDir)
	log.Fatal(http.ListenAndServe(addr, nil))
}
