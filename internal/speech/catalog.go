package speech

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/MimeLyc/caption-studio/pkg/icron"
	"github.com/MimeLyc/caption-studio/pkg/log"
	"github.com/robfig/cron/v3"
)

// VoiceCatalog keeps the engine's voice list and refreshes it on a
// schedule, since engines may load voices well after startup.
type VoiceCatalog struct {
	engine Engine

	mu        sync.RWMutex
	voices    []Voice
	refreshed time.Time

	// schedMu serializes Start, Stop and Reschedule.
	schedMu sync.Mutex
	cron    *cron.Cron
	spec    string
}

// CatalogStatus summarizes the catalog for display.
type CatalogStatus struct {
	Voices      int                `json:"voices"`
	RefreshedAt time.Time          `json:"refreshed_at"`
	Schedule    *icron.TriggerInfo `json:"schedule,omitempty"`
}

func NewVoiceCatalog(engine Engine) *VoiceCatalog {
	return &VoiceCatalog{engine: engine}
}

// Voices returns a copy of the last loaded list; it may be empty.
func (c *VoiceCatalog) Voices() []Voice {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.voices)
}

func (c *VoiceCatalog) RefreshedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refreshed
}

// Status reports the voice count and when the next refresh is due.
func (c *VoiceCatalog) Status() CatalogStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st := CatalogStatus{
		Voices:      len(c.voices),
		RefreshedAt: c.refreshed,
	}
	if c.cron != nil {
		if info, err := icron.GetTriggerInfo(c.spec, time.Now()); err == nil {
			st.Schedule = info
		}
	}
	return st
}

// Refresh reloads voices from the engine. On failure the previous list is kept.
func (c *VoiceCatalog) Refresh(ctx context.Context) error {
	if c.engine == nil || !c.engine.Available() {
		return ErrUnsupported
	}
	voices, err := c.engine.Voices(ctx)
	if err != nil {
		return fmt.Errorf("failed to list voices: %w", err)
	}

	c.mu.Lock()
	c.voices = voices
	c.refreshed = time.Now()
	c.mu.Unlock()
	return nil
}

// Start loads voices once and then on every tick of spec
// (standard cron syntax or descriptors such as "@every 1m").
func (c *VoiceCatalog) Start(ctx context.Context, spec string) error {
	if err := c.Refresh(ctx); err != nil {
		log.Warn("Initial voice load failed: %v", err)
	}

	c.schedMu.Lock()
	defer c.schedMu.Unlock()
	c.mu.RLock()
	running := c.cron != nil
	c.mu.RUnlock()
	if running {
		return nil
	}
	sched, err := c.newSchedule(ctx, spec)
	if err != nil {
		return err
	}
	c.install(sched, spec)
	return nil
}

// Reschedule replaces the refresh schedule with spec. It is a no-op when
// spec is already in effect; an invalid spec leaves the old one running.
func (c *VoiceCatalog) Reschedule(ctx context.Context, spec string) error {
	c.schedMu.Lock()
	defer c.schedMu.Unlock()

	c.mu.RLock()
	old, current := c.cron, c.spec
	c.mu.RUnlock()
	if old != nil && current == spec {
		return nil
	}
	sched, err := c.newSchedule(ctx, spec)
	if err != nil {
		return err
	}
	if old != nil {
		<-old.Stop().Done()
	}
	c.install(sched, spec)
	log.Info("Voice refresh schedule set to %s", spec)
	return nil
}

func (c *VoiceCatalog) Stop() {
	c.schedMu.Lock()
	defer c.schedMu.Unlock()

	c.mu.Lock()
	sched := c.cron
	c.cron = nil
	c.mu.Unlock()
	if sched != nil {
		<-sched.Stop().Done()
	}
}

// Schedule returns the spec of the running refresh schedule, or "" when
// none is running.
func (c *VoiceCatalog) Schedule() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.cron == nil {
		return ""
	}
	return c.spec
}

func (c *VoiceCatalog) newSchedule(ctx context.Context, spec string) (*cron.Cron, error) {
	sched := cron.New()
	if _, err := sched.AddFunc(spec, func() {
		if err := c.Refresh(ctx); err != nil {
			log.Debug("Voice refresh skipped: %v", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("invalid voice refresh schedule %q: %w", spec, err)
	}
	return sched, nil
}

// install starts sched and makes it current. Callers hold schedMu.
func (c *VoiceCatalog) install(sched *cron.Cron, spec string) {
	sched.Start()
	c.mu.Lock()
	c.cron = sched
	c.spec = spec
	c.mu.Unlock()
}
