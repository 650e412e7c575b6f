// Package prefs persists user preferences as one JSON record per namespace.
package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"vibespace/internal/domain"
)

// Namespace keys. They match the keys the page has always used so existing
// records keep loading.
const (
	GeneralNamespace = "vibe_settings_v1"
	FocusNamespace   = "vibe_focus_settings_v1"
)

// ErrStorageUnavailable wraps every backend read or write failure.
var ErrStorageUnavailable = errors.New("preference storage unavailable")

// Backend is a durable key-value store of raw JSON records.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
}

// Store reads and writes complete preference records. Reads merge the stored
// record over defaults; writes persist the full merged record. The last record
// seen or written per namespace is kept so a failing backend still serves this
// session's changes.
type Store struct {
	backend Backend
	logger  zerolog.Logger

	mu          sync.Mutex
	lastGeneral *domain.GeneralSettings
	lastFocus   *domain.FocusSettings

	// unsaved marks namespaces whose last write failed; reads serve the
	// in-memory record for them until a write succeeds.
	unsaved map[string]bool
}

func NewStore(backend Backend, logger zerolog.Logger) *Store {
	return &Store{backend: backend, logger: logger, unsaved: map[string]bool{}}
}

// Load returns the complete settings. On storage failure the failing namespace
// falls back to the last record of this session, or to defaults, and an
// ErrStorageUnavailable error is returned alongside.
func (s *Store) Load(ctx context.Context) (domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	general, generalErr := s.general(ctx)
	focus, focusErr := s.focus(ctx)
	return domain.Settings{GeneralSettings: general, FocusSettings: focus}, errors.Join(generalErr, focusErr)
}

// UpdateGeneral applies patch to the stored general record and persists it.
func (s *Store) UpdateGeneral(ctx context.Context, patch domain.GeneralPatch) (domain.GeneralSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.general(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Str("namespace", GeneralNamespace).Msg("updating the in-memory record")
	}
	next := patch.Apply(current).Normalize()
	s.lastGeneral = &next
	if err := s.put(ctx, GeneralNamespace, next); err != nil {
		return next, err
	}
	return next, nil
}

// SaveFocus merges focus over the stored focus record and persists it.
func (s *Store) SaveFocus(ctx context.Context, focus domain.FocusSettings) (domain.FocusSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.focus(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Str("namespace", FocusNamespace).Msg("updating the in-memory record")
	}
	if focus.FocusMinutes >= 1 {
		current.FocusMinutes = focus.FocusMinutes
	}
	if focus.BreakMinutes >= 1 {
		current.BreakMinutes = focus.BreakMinutes
	}
	s.lastFocus = &current
	if err := s.put(ctx, FocusNamespace, current); err != nil {
		return current, err
	}
	return current, nil
}

func (s *Store) general(ctx context.Context) (domain.GeneralSettings, error) {
	raw, err := s.get(ctx, GeneralNamespace)
	if (err != nil || s.unsaved[GeneralNamespace]) && s.lastGeneral != nil {
		return *s.lastGeneral, err
	}
	merged := mergeRecord(domain.DefaultGeneralSettings(), raw, s.logger).Normalize()
	if err == nil {
		s.lastGeneral = &merged
	}
	return merged, err
}

func (s *Store) focus(ctx context.Context) (domain.FocusSettings, error) {
	raw, err := s.get(ctx, FocusNamespace)
	if (err != nil || s.unsaved[FocusNamespace]) && s.lastFocus != nil {
		return *s.lastFocus, err
	}
	merged := mergeRecord(domain.DefaultFocusSettings(), raw, s.logger).Normalize()
	if err == nil {
		s.lastFocus = &merged
	}
	return merged, err
}

func (s *Store) get(ctx context.Context, key string) ([]byte, error) {
	raw, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		s.logger.Warn().Err(err).Str("namespace", key).Msg("preference read failed")
		return nil, fmt.Errorf("%w: read %s: %v", ErrStorageUnavailable, key, err)
	}
	if !ok {
		return nil, nil
	}
	return raw, nil
}

func (s *Store) put(ctx context.Context, key string, record any) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.backend.Put(ctx, key, payload); err != nil {
		s.unsaved[key] = true
		s.logger.Warn().Err(err).Str("namespace", key).Msg("preference write failed")
		return fmt.Errorf("%w: write %s: %v", ErrStorageUnavailable, key, err)
	}
	delete(s.unsaved, key)
	return nil
}

// mergeRecord overlays each stored key onto defaults independently, so a key
// holding a value of the wrong type keeps its default and keys outside the
// default set are dropped.
func mergeRecord[T any](defaults T, raw []byte, logger zerolog.Logger) T {
	if len(raw) == 0 {
		return defaults
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		logger.Warn().Err(err).Msg("stored preference record is not a JSON object")
		return defaults
	}

	out := defaults
	for key, value := range fields {
		single, err := json.Marshal(map[string]json.RawMessage{key: value})
		if err != nil {
			continue
		}
		candidate := out
		if err := json.Unmarshal(single, &candidate); err != nil {
			logger.Debug().Str("key", key).Err(err).Msg("ignoring malformed preference value")
			continue
		}
		out = candidate
	}
	return out
}
