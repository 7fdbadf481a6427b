package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/CK6170/Locrunrilla-go/internal/server"
)

func main() {
	var (
		addr = flag.String("addr", "127.0.0.1:8080", "http listen address")
		web  = flag.String("web", "./web", "path to web root (index.html)")
	)
	flag.Parse()

	// The static handler serves ./web; honor -web by chdir to its parent.
	if st, err := os.Stat(*web); err == nil && st.IsDir() {
		if err := os.Chdir(filepath.Dir(filepath.Clean(*web))); err != nil {
			log.Printf("chdir to web root failed: %v", err)
		}
	}

	s := server.New()
	log.Printf("API:  http://%s/api/health", *addr)
	log.Printf("UI:   http://%s/", *addr)
	if err := http.ListenAndServe(*addr, s.Handler()); err != nil {
		log.Fatal(err)
	}
}
