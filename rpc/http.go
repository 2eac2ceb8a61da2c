package rpc

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"

	"github.com/fsxd/fsxd/vfs"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

// acceptedContentTypes are the request Content-Type values /rpc accepts,
// alongside a missing header entirely.
var acceptedContentTypes = map[string]bool{
	"application/json": true,
	"text/json":        true,
}

// Mount wires /rpc and the streaming endpoints onto router, dispatching
// through r. log receives a warning when a response body cannot be
// written.
func Mount(router chi.Router, r *Router, g *vfs.InodeGraph, log *logrus.Entry) {
	router.Post("/rpc", func(w http.ResponseWriter, req *http.Request) {
		if ct := req.Header.Get("Content-Type"); ct != "" {
			mt, _, err := mime.ParseMediaType(ct)
			if err != nil || !acceptedContentTypes[mt] {
				writeJSONError(w, 400, newError(CodeInvalidRequest, "unsupported content type"))
				return
			}
		}
		body, err := io.ReadAll(req.Body)
		if err != nil {
			writeJSONError(w, 400, newError(CodeParseError, "could not read body"))
			return
		}
		resp, status := r.HandleRaw(req.Context(), body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if resp != nil {
			if err := json.NewEncoder(w).Encode(resp); err != nil {
				log.WithError(err).Warn("rpc: failed to encode response")
			}
		}
	})

	router.Get("/rpc", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})

	router.Post("/stream/read", func(w http.ResponseWriter, req *http.Request) {
		var p struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(req.Body).Decode(&p); err != nil {
			writeJSONError(w, 400, newError(CodeParseError, "invalid JSON: "+err.Error()))
			return
		}
		data, err := g.ReadFile(p.Path)
		if err != nil {
			rerr, status := errorToRPC(err)
			writeJSONError(w, status, rerr)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.WriteHeader(200)
		if _, err := w.Write(data); err != nil {
			log.WithError(err).Warn("rpc: stream/read write failed")
		}
	})

	router.Post("/stream/write", func(w http.ResponseWriter, req *http.Request) {
		var p struct {
			Path string `json:"path"`
			Data string `json:"data"`
			Mode uint32 `json:"mode"`
		}
		if err := json.NewDecoder(req.Body).Decode(&p); err != nil {
			writeJSONError(w, 400, newError(CodeParseError, "invalid JSON: "+err.Error()))
			return
		}
		if err := g.WriteFile(p.Path, []byte(p.Data), p.Mode); err != nil {
			rerr, status := errorToRPC(err)
			writeJSONError(w, status, rerr)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(200)
		_, _ = w.Write([]byte("{}"))
	})
}

func writeJSONError(w http.ResponseWriter, status int, rerr *RPCError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(rerr)
}
