package capture

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/zona9/horosafe"
	"github.com/hazyhaar/zona9/report"
)

// Renderer is the export-mode capture path.
type Renderer interface {
	Render(ctx context.Context, req report.ExportRequest) (*Artifact, error)
}

// LiveCapturer is the interactive-page capture path.
type LiveCapturer interface {
	CaptureCurrentView(ctx context.Context, liveURL string) (*Artifact, error)
}

// Handler serves the capture endpoints.
type Handler struct {
	Renderer Renderer
	Live     LiveCapturer
	// BaseURL is used when a request carries no host parameter.
	BaseURL string
}

// Mount registers GET /api/export and GET /api/export/live on r.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/api/export", h.Export)
	r.Get("/api/export/live", h.ExportLive)
}

// Export renders the export-mode page and streams the artifact.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	req, err := report.ParseExportRequest(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Host == "" {
		req.Host = h.BaseURL
	}
	art, err := h.Renderer.Render(r.Context(), req)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeArtifact(w, art)
}

// ExportLive captures the interactive page for the same parameters.
func (h *Handler) ExportLive(w http.ResponseWriter, r *http.Request) {
	req, err := report.ParseExportRequest(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	base := req.Host
	if base == "" {
		base = h.BaseURL
	}
	live, err := LiveURL(req, base)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	art, err := h.Live.CaptureCurrentView(r.Context(), live)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeArtifact(w, art)
}

// fail maps a capture error to a status and a short message. The cause
// stays in the server log.
func (h *Handler) fail(w http.ResponseWriter, err error) {
	var re *report.RenderError
	if errors.As(err, &re) {
		if re.Stage == report.StageValidate {
			writeError(w, http.StatusBadRequest, errors.New("export host rejected"))
			return
		}
		writeError(w, http.StatusBadGateway, fmt.Errorf("render failed at %s stage", re.Stage))
		return
	}
	writeError(w, http.StatusBadGateway, report.ErrRenderFailed)
}

func writeArtifact(w http.ResponseWriter, art *Artifact) {
	w.Header().Set("Content-Type", art.MIME)
	name := art.Filename
	if horosafe.ValidateIdentifier(name) != nil {
		name = "Zona9_Report"
	}
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(art.Data)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(art.Data)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
