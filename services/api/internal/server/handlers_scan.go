package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"pillid/pkg/domain"
	"pillid/pkg/scan"
	"pillid/services/api/internal/app"
)

type barcodeRequest struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

type scansResponse struct {
	Scans []domain.ScanHistoryEntry `json:"scans"`
}

func (s *Server) handleBarcodeScan(w http.ResponseWriter, r *http.Request, user domain.User) {
	if !s.allowRate(w, r, s.scanLimiter, "too many scans") {
		return
	}
	var req barcodeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	out, err := s.app.Scan(r.Context(), user, scan.Request{
		Type:        domain.ScanBarcode,
		BarcodeType: strings.TrimSpace(req.Type),
		Data:        req.Data,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// imageScan handles a multipart upload with the photo in the "image" field.
func (s *Server) imageScan(kind domain.ScanType) authHandler {
	return func(w http.ResponseWriter, r *http.Request, user domain.User) {
		if !s.allowRate(w, r, s.scanLimiter, "too many scans") {
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, s.maxImageBytes+(1<<16))
		file, _, err := r.FormFile("image")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, "image too large")
				return
			}
			writeError(w, http.StatusBadRequest, "multipart field \"image\" is required")
			return
		}
		defer file.Close()
		img, err := io.ReadAll(io.LimitReader(file, s.maxImageBytes+1))
		if err != nil {
			writeError(w, http.StatusBadRequest, "could not read image")
			return
		}
		if int64(len(img)) > s.maxImageBytes {
			writeError(w, http.StatusRequestEntityTooLarge, "image too large")
			return
		}
		out, err := s.app.Scan(r.Context(), user, scan.Request{Type: kind, Image: img})
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (s *Server) handleListScans(w http.ResponseWriter, r *http.Request, user domain.User) {
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	scans, err := s.app.ListScans(user, limit)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, scansResponse{Scans: scans})
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request, _ domain.User) {
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q := r.URL.Query()
	results, err := s.app.LookupMedications(r.Context(), app.LookupQuery{
		NDC:          q.Get("ndc"),
		Name:         q.Get("name"),
		Ingredient:   q.Get("ingredient"),
		Query:        q.Get("q"),
		Manufacturer: q.Get("manufacturer"),
		Application:  q.Get("application"),
		Limit:        limit,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}
