package service

import "github.com/MimeLyc/caption-studio/pkg/log"

// Placeholder is shown in the caption area when there is nothing to show.
const Placeholder = "No caption yet. Upload an image and click Generate Caption."

type Overlay string

const (
	OverlayCaption Overlay = "caption"
	OverlayGlobal  Overlay = "global"
)

type Control string

const (
	ControlGenerate  Control = "generate"
	ControlTranslate Control = "translate"
)

// Presenter is the presentation surface a session drives. Implementations
// must not block; they are called while an operation is in progress.
type Presenter interface {
	ShowOverlay(overlay Overlay, show bool, message string)
	ShowCaption(text string)
	ShowError(message string)
	ShowFileLabel(label string)
	SetControl(control Control, enabled bool)
	// Notify raises a notice the user must acknowledge.
	Notify(message string)
}

// LogPresenter renders everything through the logger. Used by the CLI.
type LogPresenter struct{}

func (LogPresenter) ShowOverlay(overlay Overlay, show bool, message string) {
	if show {
		log.Info("%s", message)
	}
}

func (LogPresenter) ShowCaption(text string) {
	if text == "" {
		text = Placeholder
	}
	log.Info("Caption: %s", text)
}

func (LogPresenter) ShowError(message string) {
	log.Error("%s", message)
}

func (LogPresenter) ShowFileLabel(label string) {
	log.Info("Selected: %s", label)
}

func (LogPresenter) SetControl(Control, bool) {}

func (LogPresenter) Notify(message string) {
	log.Warn("%s", message)
}

// NopPresenter discards all output.
type NopPresenter struct{}

func (NopPresenter) ShowOverlay(Overlay, bool, string) {}
func (NopPresenter) ShowCaption(string)                {}
func (NopPresenter) ShowError(string)                  {}
func (NopPresenter) ShowFileLabel(string)              {}
func (NopPresenter) SetControl(Control, bool)          {}
func (NopPresenter) Notify(string)                     {}
