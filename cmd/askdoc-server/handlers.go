package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/askdoc/askdoc"
	"github.com/askdoc/askdoc/store"
)

type handler struct {
	engine *askdoc.Engine
}

func newHandler(e *askdoc.Engine) *handler {
	return &handler{engine: e}
}

// POST /api/documents/upload
// Accepts one or more files in a multipart form under "files". Each
// file is processed independently: one failing does not abort the
// rest.
func (h *handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Minute)
	defer cancel()

	if err := r.ParseMultipartForm(100 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "expected multipart form upload")
		return
	}
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		// Single-file clients use the "file" field.
		files = r.MultipartForm.File["file"]
	}
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "no files in upload")
		return
	}

	type fileResult struct {
		Filename string `json:"filename"`
		Status   string `json:"status"`
		DocID    int64  `json:"doc_id,omitempty"`
		Chunks   int    `json:"chunks,omitempty"`
		Error    string `json:"error,omitempty"`
	}
	results := make([]fileResult, 0, len(files))

	for _, fh := range files {
		name := filepath.Base(fh.Filename)
		f, err := fh.Open()
		if err != nil {
			results = append(results, fileResult{Filename: name, Status: "failed", Error: "unreadable upload"})
			continue
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			results = append(results, fileResult{Filename: name, Status: "failed", Error: "unreadable upload"})
			continue
		}

		res, err := h.engine.Ingest(ctx, name, data)
		if err != nil {
			slog.Error("upload: ingest failed", "file", name, "error", err)
			fr := fileResult{Filename: name, Status: "failed", Error: err.Error()}
			if res != nil {
				fr.DocID = res.DocID
			}
			results = append(results, fr)
			continue
		}
		results = append(results, fileResult{
			Filename: name,
			Status:   res.Status,
			DocID:    res.DocID,
			Chunks:   res.Chunks,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// POST /api/query/ask
func (h *handler) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question string `json:"question"`
		Domain   string `json:"domain,omitempty"`
		Role     string `json:"role,omitempty"`
		TopK     int    `json:"top_k,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	var opts []askdoc.AskOption
	if req.Domain != "" {
		opts = append(opts, askdoc.WithDomain(req.Domain))
	}
	if req.Role != "" {
		opts = append(opts, askdoc.WithRole(req.Role))
	}
	if req.TopK > 0 {
		opts = append(opts, askdoc.WithTopK(req.TopK))
	}

	ans, err := h.engine.Ask(r.Context(), req.Question, opts...)
	if err != nil {
		slog.Error("ask failed", "error", err)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, ans)
}

// GET /api/documents
func (h *handler) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.engine.ListDocuments(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "listing documents failed")
		return
	}
	if docs == nil {
		docs = []store.Document{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

// GET /api/graph/stats
func (h *handler) handleGraphStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.GraphStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "graph stats failed")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// GET /api/graph/export
func (h *handler) handleGraphExport(w http.ResponseWriter, r *http.Request) {
	path, err := h.engine.ExportGraph(r.Context(), "")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "graph export failed")
		return
	}
	http.ServeFile(w, r, path)
}

// GET /health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
