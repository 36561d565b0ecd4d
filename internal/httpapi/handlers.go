package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/MimeLyc/caption-studio/internal/config"
	"github.com/MimeLyc/caption-studio/internal/selection"
	"github.com/MimeLyc/caption-studio/internal/service"
	"github.com/MimeLyc/caption-studio/internal/speech"
	"github.com/MimeLyc/caption-studio/pkg/log"
	"golang.org/x/text/language"
)

type selectionResponse struct {
	File      *service.FileInfo `json:"file"`
	LargeFile bool              `json:"large_file"`
	Warning   string            `json:"warning,omitempty"`
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	file, header, err := r.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			writeError(w, http.StatusBadRequest, "image field is required")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	defer file.Close()

	candidate, err := selection.FromReader(header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.session.Select(candidate)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, selectionResponse{
		File:      s.session.Snapshot().File,
		LargeFile: res.LargeFile,
		Warning:   res.Warning,
	})
}

func (s *Server) handleClearSelection(w http.ResponseWriter, r *http.Request) {
	s.session.Clear()
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	thumb, err := s.session.Preview(r.Context())
	if err != nil {
		if _, ok := service.KindOf(err); ok {
			writeServiceError(w, err)
			return
		}
		writeError(w, http.StatusUnprocessableEntity, "preview unavailable: "+err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(thumb)
}

func (s *Server) handleCaption(w http.ResponseWriter, r *http.Request) {
	// the result lands in the session even if the caller goes away
	state, err := s.captioner.Generate(context.WithoutCancel(r.Context()), s.session)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"caption": state,
		"display": s.session.Display(),
	})
}

type translateRequest struct {
	Target *string `json:"target"`
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var req translateRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}
	target, _ := s.defaults()
	if req.Target != nil {
		target = strings.TrimSpace(*req.Target)
	}

	display, err := s.translator.TranslateCurrent(context.WithoutCancel(r.Context()), s.session, target)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, display)
}

type speakRequest struct {
	Rate     *float64 `json:"rate"`
	Text     string   `json:"text"`
	Language string   `json:"language"`
}

func (s *Server) handleSpeak(w http.ResponseWriter, r *http.Request) {
	if s.narrator == nil {
		writeError(w, http.StatusNotImplemented, "speech is not configured")
		return
	}
	var req speakRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}
	_, rate := s.defaults()
	if req.Rate != nil {
		rate = *req.Rate
	}
	rate = speech.ClampRate(rate)

	ctx := context.WithoutCancel(r.Context())
	var err error
	if req.Text != "" {
		err = s.narrator.SpeakText(ctx, s.session, req.Text, req.Language, rate)
	} else {
		err = s.narrator.Speak(ctx, s.session, rate)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"speaking": true,
		"rate":     rate,
	})
}

func (s *Server) handleStopSpeech(w http.ResponseWriter, r *http.Request) {
	if s.narrator == nil {
		writeError(w, http.StatusNotImplemented, "speech is not configured")
		return
	}
	s.narrator.Stop()
	writeJSON(w, http.StatusOK, map[string]any{
		"speaking": false,
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) handleVoices(w http.ResponseWriter, r *http.Request) {
	voices := []speech.Voice{}
	if s.voices != nil {
		voices = append(voices, s.voices.Voices()...)
	}
	writeJSON(w, http.StatusOK, voices)
}

type voiceStatusSource interface {
	Status() speech.CatalogStatus
}

func (s *Server) handleVoiceStatus(w http.ResponseWriter, r *http.Request) {
	src, ok := s.voices.(voiceStatusSource)
	if !ok {
		writeError(w, http.StatusNotImplemented, "voice catalog is not configured")
		return
	}
	writeJSON(w, http.StatusOK, src.Status())
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	if s.settings == nil {
		writeError(w, http.StatusNotImplemented, "settings store is not configured")
		return
	}
	settings, err := s.settings.GetRuntimeSettings()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	if s.settings == nil {
		writeError(w, http.StatusNotImplemented, "settings store is not configured")
		return
	}
	var req config.RuntimeSettings
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	saved, err := s.settings.UpdateRuntimeSettings(req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if s.apply != nil {
		if err := s.apply(saved); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	s.setDefaults(languageCode(saved.TargetLanguage), saved.SpeechRate)
	writeJSON(w, http.StatusOK, saved)
}

// languageCode reduces a validated BCP 47 tag to the short code the
// translation backend expects.
func languageCode(tag string) string {
	t, err := language.Parse(tag)
	if err != nil {
		return tag
	}
	base, _ := t.Base()
	return base.String()
}

// decodeOptionalJSON decodes a JSON body into dst. An empty body leaves dst
// untouched. It writes a 400 and returns false on malformed input.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil {
		return true
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeError(w, http.StatusBadRequest, "invalid json body")
	return false
}

// statusFor maps a session error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, service.ErrNotAnImage):
		return http.StatusUnsupportedMediaType
	}
	kind, ok := service.KindOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch kind {
	case service.KindValidation, service.KindPrecondition:
		return http.StatusBadRequest
	case service.KindTransport, service.KindBackend, service.KindFormat, service.KindEmptyResult:
		return http.StatusBadGateway
	case service.KindCapabilityUnsupported:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error         string `json:"error"`
	Kind          string `json:"kind,omitempty"`
	Advice        string `json:"advice,omitempty"`
	BackendStatus int    `json:"backend_status,omitempty"`
}

// writeServiceError replies with the user-facing text only. The full
// error, cause included, was already logged where it happened.
func writeServiceError(w http.ResponseWriter, err error) {
	log.Debug("Request failed: %v", err)
	resp := errorResponse{
		Error:         service.PublicMessage(err),
		BackendStatus: service.StatusCode(err),
	}
	if kind, ok := service.KindOf(err); ok {
		resp.Kind = kind.String()
		resp.Advice = kind.Advice()
	}
	writeJSON(w, statusFor(err), resp)
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
