package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/MeKo-Tech/scanwarp/internal/job"
	"github.com/MeKo-Tech/scanwarp/internal/worker"
)

const formatRaw = "raw"

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:  "healthy",
		Version: s.version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}
	if s.runner != nil {
		stats := s.runner.Stats()
		response.Workers = &stats
	}
	s.writeJSON(w, http.StatusOK, response)
}

// jobHandler runs one JSON job request.
func (s *Server) jobHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadMB<<20)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeErrorResponse(w, "Request too large", http.StatusRequestEntityTooLarge)
			return
		}
		s.writeErrorResponse(w, "Failed to read request", http.StatusBadRequest)
		return
	}

	j, err := job.DecodeRequest(body)
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.run(w, r, j)
}

// uploadHandler builds a job from a multipart upload. The "image" part
// becomes the job's inline data; id, name, operation and points are form
// fields, with points as a JSON array.
func (s *Server) uploadHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := s.maxUploadMB << 20
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "too large") {
			s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
		} else {
			s.writeErrorResponse(w, "Failed to parse form data", http.StatusBadRequest)
		}
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		s.writeErrorResponse(w, "No image file provided", http.StatusBadRequest)
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeErrorResponse(w, "Failed to read image data", http.StatusInternalServerError)
		return
	}
	uploadSizeBytes.Observe(float64(len(data)))

	raw := r.FormValue("operation")
	op, _ := job.ParseOperation(raw)
	j := job.Job{
		ID:           formID(r.FormValue("id"), header.Filename),
		SourceRef:    header.Filename,
		Name:         r.FormValue("name"),
		Operation:    op,
		RawOperation: raw,
		Data:         data,
	}
	if j.Name == "" {
		j.Name = strings.TrimSuffix(header.Filename, filepath.Ext(header.Filename))
	}
	if pts := r.FormValue("points"); pts != "" {
		if err := json.Unmarshal([]byte(pts), &j.Points); err != nil {
			s.writeErrorResponse(w, "points must be a JSON array of {x,y}", http.StatusBadRequest)
			return
		}
	}
	s.run(w, r, j)
}

// formID keeps numeric and quoted ids as JSON tokens and treats anything
// else as a plain string. An empty value falls back to the filename.
func formID(value, filename string) job.ID {
	if value == "" {
		return job.StringID(filename)
	}
	var id job.ID
	if err := json.Unmarshal([]byte(value), &id); err == nil && !id.IsZero() {
		return id
	}
	return job.StringID(value)
}

// run executes j and writes its Result. ?format=raw streams image results
// as bytes.
func (s *Server) run(w http.ResponseWriter, r *http.Request, j job.Job) {
	if s.runner == nil {
		s.writeErrorResponse(w, "No workers available", http.StatusServiceUnavailable)
		return
	}

	ctx := r.Context()
	if s.timeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.timeoutSec)*time.Second)
		defer cancel()
	}

	res, err := s.runner.Do(ctx, j)
	if err != nil {
		status := http.StatusServiceUnavailable
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		} else if !errors.Is(err, worker.ErrClosed) {
			status = http.StatusInternalServerError
		}
		s.writeErrorResponse(w, err.Error(), status)
		return
	}

	if img, ok := res.(job.DoneImage); ok && r.URL.Query().Get("format") == formatRaw {
		w.Header().Set("Content-Type", img.MIME)
		w.Header().Set("X-Job-Id", img.ID.String())
		if img.Name != "" {
			w.Header().Set("Content-Disposition", `inline; filename="`+img.Name+`.png"`)
		}
		if _, err := w.Write(img.Blob); err != nil {
			slog.Error("Failed to write image response", "job_id", img.ID.String(), "error", err)
		}
		return
	}

	s.writeJSON(w, http.StatusOK, job.NewResponse(res))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	s.writeJSON(w, statusCode, ErrorResponse{Error: message})
}
