package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/MimeLyc/contextual-caption-translator/internal/config"
	"github.com/MimeLyc/contextual-caption-translator/internal/service"
	"github.com/MimeLyc/contextual-caption-translator/internal/subtitle"
	"github.com/MimeLyc/contextual-caption-translator/internal/termmap"
	"github.com/MimeLyc/contextual-caption-translator/internal/translator"
)

type segmentRequest struct {
	Payload *subtitle.Payload `json:"payload"`
	Lang    string            `json:"lang"`
}

func (s *Server) handleSegment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req segmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	res, err := s.captions.Segment(req.Payload, req.Lang)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type translateResponse struct {
	Outcome           translator.Outcome `json:"outcome"`
	Translations      []string           `json:"translations,omitempty"`
	RetryDelaySeconds int                `json:"retry_delay_seconds,omitempty"`
	Message           string             `json:"message,omitempty"`
	Model             string             `json:"model,omitempty"`
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req translator.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	res, err := s.captions.TranslateTexts(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, translateResponse{
		Outcome:           res.Outcome,
		Translations:      res.Translations,
		RetryDelaySeconds: res.RetryDelaySeconds(),
		Message:           res.Message,
		Model:             res.Model,
	})
}

func (s *Server) handleVideos(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		videos, err := s.captions.List(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, videos)
	case http.MethodDelete:
		n, err := s.captions.ClearAllCache(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"deleted": n,
		})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleVideo serves /api/videos/{id}, /api/videos/{id}/retry and
// /api/videos/{id}/cancel
func (s *Server) handleVideo(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/videos/"), "/")
	videoID, action, _ := strings.Cut(path, "/")
	if decoded, err := url.PathUnescape(videoID); err == nil {
		videoID = decoded
	}
	if videoID == "" {
		writeError(w, http.StatusBadRequest, "missing video id")
		return
	}

	switch action {
	case "":
		s.handleVideoRoot(w, r, videoID)
	case "retry":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		job, created, err := s.captions.RetryVideo(r.Context(), videoID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{
			"created": created,
			"job":     job,
		})
	case "cancel":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"cancelled": s.captions.CancelVideo(videoID),
		})
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) handleVideoRoot(w http.ResponseWriter, r *http.Request, videoID string) {
	switch r.Method {
	case http.MethodGet:
		status, err := s.captions.Status(r.Context(), videoID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, status)
	case http.MethodPost:
		var req service.StartRequest
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid json body")
				return
			}
		}
		req.VideoID = videoID
		job, created, err := s.captions.StartVideo(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		code := http.StatusAccepted
		if !created {
			code = http.StatusOK
		}
		writeJSON(w, code, map[string]any{
			"created": created,
			"job":     job,
		})
	case http.MethodDelete:
		deleted, err := s.captions.ClearCache(r.Context(), videoID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"deleted": deleted,
		})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if s.logs == nil {
		writeError(w, http.StatusNotImplemented, "event log is not configured")
		return
	}
	switch r.Method {
	case http.MethodGet:
		entries, err := s.logs.Entries(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, entries)
	case http.MethodDelete:
		if err := s.logs.Clear(r.Context()); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"ok": true,
		})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type diagnoseRequest struct {
	Credentials []translator.Credential `json:"credentials"`
}

func (s *Server) handleDiagnose(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.diagnoser == nil {
		writeError(w, http.StatusNotImplemented, "diagnosis is not configured")
		return
	}

	var req diagnoseRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
	}
	creds := req.Credentials
	if len(creds) == 0 && s.settings != nil {
		settings, err := s.settings.GetRuntimeSettings()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		creds = settings.Credentials
	}

	results, err := s.diagnoser.Diagnose(r.Context(), creds)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	if s.settings == nil {
		writeError(w, http.StatusNotImplemented, "settings store is not configured")
		return
	}

	switch r.Method {
	case http.MethodGet:
		settings, err := s.settings.GetRuntimeSettings()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, settings.Redacted())
	case http.MethodPut:
		var req config.RuntimeSettings
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		saved, err := s.settings.UpdateRuntimeSettings(req)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if s.apply != nil {
			if err := s.apply(saved); err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
		}
		writeJSON(w, http.StatusOK, saved.Redacted())
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type customPromptRequest struct {
	Lang   string `json:"lang"`
	Prompt string `json:"prompt"`
}

func (s *Server) handleCustomPrompts(w http.ResponseWriter, r *http.Request) {
	if s.settings == nil {
		writeError(w, http.StatusNotImplemented, "settings store is not configured")
		return
	}

	switch r.Method {
	case http.MethodGet:
		settings, err := s.settings.GetRuntimeSettings()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if lang := r.URL.Query().Get("lang"); lang != "" {
			writeJSON(w, http.StatusOK, customPromptRequest{
				Lang:   lang,
				Prompt: settings.CustomPrompt(lang),
			})
			return
		}
		prompts := settings.CustomPrompts
		if prompts == nil {
			prompts = map[string]string{}
		}
		writeJSON(w, http.StatusOK, prompts)
	case http.MethodPost:
		var req customPromptRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		if strings.TrimSpace(req.Lang) == "" {
			writeError(w, http.StatusBadRequest, "lang is required")
			return
		}
		saved, err := s.settings.SetCustomPrompt(req.Lang, req.Prompt)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, customPromptRequest{
			Lang:   req.Lang,
			Prompt: saved.CustomPrompt(req.Lang),
		})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.queue == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, s.queue.List())
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

var errorAdvice = service.NewDefaultErrorHandler()

// writeServiceError maps the service error taxonomy onto HTTP status codes
func writeServiceError(w http.ResponseWriter, err error) {
	var svcErr *service.ServiceError
	if !errors.As(err, &svcErr) {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	status := http.StatusInternalServerError
	switch svcErr.Type {
	case service.ErrValidation, service.ErrParse:
		status = http.StatusBadRequest
	case service.ErrNotFound:
		status = http.StatusNotFound
	case service.ErrCancelled:
		status = http.StatusConflict
	case service.ErrTranslation, service.ErrPermanent:
		status = http.StatusBadGateway
	}
	writeJSON(w, status, map[string]any{
		"error":  svcErr.Message,
		"type":   svcErr.Type.String(),
		"advice": errorAdvice.GetAdvice(svcErr),
	})
}

type glossaryRequest struct {
	Source string          `json:"source"`
	Target string          `json:"target"`
	Terms  termmap.TermMap `json:"terms"`
}

// handleGlossary reads or replaces the glossary of a language pair
func (s *Server) handleGlossary(w http.ResponseWriter, r *http.Request) {
	if s.glossary == nil {
		writeError(w, http.StatusNotImplemented, "glossary is not configured")
		return
	}

	switch r.Method {
	case http.MethodGet:
		source, target := r.URL.Query().Get("source"), r.URL.Query().Get("target")
		if source == "" || target == "" {
			writeError(w, http.StatusBadRequest, "source and target are required")
			return
		}
		terms, err := s.glossary.Lookup(source, target)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, glossaryRequest{Source: source, Target: target, Terms: terms})
	case http.MethodPut:
		var req glossaryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		if req.Source == "" || req.Target == "" {
			writeError(w, http.StatusBadRequest, "source and target are required")
			return
		}
		if err := s.glossary.Put(req.Source, req.Target, req.Terms); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if req.Terms == nil {
			req.Terms = termmap.TermMap{}
		}
		writeJSON(w, http.StatusOK, req)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}
