package server

import (
	_ "embed"
	"net/http"

	"github.com/gorilla/mux"
)

//go:embed web/index.html
var indexHTML []byte

func registerUI(r *mux.Router) {
	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		w.Write(indexHTML)
	}).Methods(http.MethodGet, http.MethodHead)
}
