package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"vibespace/internal/domain"
	"vibespace/internal/ports"
)

// CaptionsListener is told when the persisted captions preference changes.
type CaptionsListener interface {
	CaptionsPreferenceChanged(enabled bool)
}

// PreferencesService applies user-triggered preference changes and fans them
// out to the appearance view and the captions listener. Storage failures
// degrade to in-memory values and are reported as notices.
type PreferencesService struct {
	store    ports.SettingsStore
	view     ports.AppearanceView
	captions CaptionsListener
	events   ports.EventSink
	logger   zerolog.Logger
}

func NewPreferencesService(
	store ports.SettingsStore,
	view ports.AppearanceView,
	captions CaptionsListener,
	events ports.EventSink,
	logger zerolog.Logger,
) *PreferencesService {
	return &PreferencesService{store: store, view: view, captions: captions, events: events, logger: logger}
}

// Settings returns the merged preference record.
func (p *PreferencesService) Settings(ctx context.Context) domain.Settings {
	settings, err := p.store.Load(ctx)
	if err != nil {
		p.storageFailed(err, "preferences read failed, using session values")
	}
	return settings
}

// Apply pushes the current appearance and captions preference to the UI.
func (p *PreferencesService) Apply(ctx context.Context) domain.Settings {
	settings := p.Settings(ctx)
	p.publish(settings.GeneralSettings)
	return settings
}

// Update merges patch into the general namespace and publishes the result.
func (p *PreferencesService) Update(ctx context.Context, patch domain.GeneralPatch) domain.GeneralSettings {
	general, err := p.store.UpdateGeneral(ctx, patch)
	if err != nil {
		p.storageFailed(err, "preferences write failed, change kept for this session only")
	}
	p.publish(general)
	return general
}

// ToggleCaptions flips the captions preference.
func (p *PreferencesService) ToggleCaptions(ctx context.Context) domain.GeneralSettings {
	enabled := !p.Settings(ctx).CaptionsEnabled
	return p.Update(ctx, domain.GeneralPatch{CaptionsEnabled: &enabled})
}

func (p *PreferencesService) publish(general domain.GeneralSettings) {
	if p.view != nil {
		p.view.AppearanceChanged(general.Appearance())
	}
	if p.captions != nil {
		p.captions.CaptionsPreferenceChanged(general.CaptionsEnabled)
	}
}

func (p *PreferencesService) storageFailed(err error, message string) {
	p.logger.Warn().Err(err).Msg(message)
	if p.events != nil {
		p.events.Notice(domain.ErrorCodeStorage, message)
	}
}
