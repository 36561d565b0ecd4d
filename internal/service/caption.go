package service

import (
	"context"
	"strings"

	"github.com/MimeLyc/caption-studio/internal/backend"
	"github.com/MimeLyc/caption-studio/pkg/log"
)

// CaptionBackend generates a caption for an uploaded image.
type CaptionBackend interface {
	Caption(ctx context.Context, img backend.Image) (string, error)
}

// Captioner drives caption generation for a session.
type Captioner struct {
	backend CaptionBackend
}

func NewCaptioner(b CaptionBackend) *Captioner {
	return &Captioner{backend: b}
}

// Generate uploads the staged file and installs the returned caption.
// Only one generation per session runs at a time; a second call while one
// is in flight fails with ErrBusy instead of queuing.
func (c *Captioner) Generate(ctx context.Context, s *Session) (CaptionState, error) {
	staged := s.Staged()
	if staged == nil {
		msg := "Please select an image before generating a caption."
		s.presenter.ShowError(msg)
		return CaptionState{}, NewErrorWithCause(KindPrecondition, "no file selected", ErrNoFileSelected).WithPublic(msg)
	}
	if !s.captionBusy.CompareAndSwap(false, true) {
		return CaptionState{}, NewErrorWithCause(KindPrecondition, "caption generation already in progress", ErrBusy)
	}

	s.presenter.ShowOverlay(OverlayCaption, true, "Generating caption…")
	s.presenter.SetControl(ControlGenerate, false)
	defer func() {
		s.captionBusy.Store(false)
		// the file may have been cleared while the request was in flight
		s.presenter.SetControl(ControlGenerate, s.Staged() != nil)
		s.presenter.ShowOverlay(OverlayCaption, false, "")
	}()

	raw, err := c.backend.Caption(ctx, backend.Image{
		Name:     staged.Name,
		MIMEType: staged.MIMEType,
		Payload:  staged.Payload,
	})
	if err != nil {
		log.Error("Caption generation for %s failed: %v", staged.Name, err)
		msg := "Failed to generate caption. " + captionFailureDetail(err)
		s.presenter.ShowError(msg)
		return CaptionState{}, classifyBackendError("caption", err).WithContext("file", staged.Name).WithPublic(msg)
	}

	// an empty caption is still a caption
	state := s.setCaption(strings.TrimSpace(raw))
	s.presenter.ShowCaption(state.Text)
	log.Info("Caption for %s: %q", staged.Name, state.Text)
	return state, nil
}
