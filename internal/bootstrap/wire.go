package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"vibespace/internal/audio"
	"vibespace/internal/config"
	"vibespace/internal/cue"
	"vibespace/internal/domain"
	applog "vibespace/internal/log"
	"vibespace/internal/ports"
	"vibespace/internal/prefs"
	"vibespace/internal/providers/deepgram"
	"vibespace/internal/rules"
	"vibespace/internal/speech"
	"vibespace/internal/usecase"
)

const databaseFile = "vibespace.db"

// UI is everything the presentation layer renders for the backend.
type UI interface {
	ports.EventSink
	ports.CaptionSurface
	ports.TimerView
	ports.AppearanceView
	ports.PhaseCue
}

// Services is the assembled runtime graph.
type Services struct {
	Config      config.Config
	Logger      zerolog.Logger
	Dictation   *usecase.DictationController
	Capture     *usecase.CaptureController
	Preferences *usecase.PreferencesService
	Timer       *usecase.TimerScheduler

	closers []io.Closer
	notices []startupNotice
}

type startupNotice struct {
	code    domain.ErrorCode
	message string
}

// ReplayNotices re-sends the notices raised while building, for a page that
// subscribed after startup.
func (s Services) ReplayNotices(sink ports.EventSink) {
	for _, n := range s.notices {
		sink.Notice(n.code, n.message)
	}
}

// Close stops the timer and releases the log file and database.
func (s Services) Close() error {
	if s.Timer != nil {
		s.Timer.Close()
	}
	if s.Dictation != nil {
		_, _ = s.Dictation.Stop()
	}
	if s.Capture != nil && s.Capture.Active() {
		_ = s.Capture.Stop()
	}

	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Build loads configuration and wires all backend dependencies.
func Build(ctx context.Context, ui UI, targets ports.InsertionTargets) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}
	return BuildWith(ctx, cfg, ui, targets)
}

// BuildWith wires the backend from an already resolved configuration.
func BuildWith(ctx context.Context, cfg config.Config, ui UI, targets ports.InsertionTargets) (Services, error) {
	logger, logCloser, err := applog.New(applog.Config{
		Dir:     cfg.Log.Dir,
		Level:   cfg.Log.Level,
		Console: cfg.Log.Console,
	})
	if err != nil {
		// Console-only loggers cannot fail to open.
		logger, logCloser, _ = applog.New(applog.Config{Level: cfg.Log.Level, Console: true})
		logger.Warn().Err(err).Str("dir", cfg.Log.Dir).Msg("log file unavailable, logging to stderr")
	}
	services := Services{Config: cfg, Logger: logger, closers: []io.Closer{logCloser}}

	rulesEngine, err := rules.NewEngine(cfg.Rules.Path, cfg.Rules.IterationLimit)
	if err != nil {
		logger.Warn().Err(err).Str("path", cfg.Rules.Path).Msg("phrase rules unavailable, using built-in punctuation only")
		rulesEngine, _ = rules.Compile(rules.File{}, cfg.Rules.IterationLimit)
		services.notify(ui, domain.ErrorCodeRules, "Phrase rules could not be loaded")
	}

	backend, backendCloser := openBackend(cfg.Storage, applog.Component(logger, "prefs"))
	if backendCloser != nil {
		services.closers = append(services.closers, backendCloser)
	}
	store := prefs.NewStore(backend, applog.Component(logger, "prefs"))

	settings, err := store.Load(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("starting with default preferences")
	}

	recognizer := speech.NewRecognizer(
		audio.NewRecorder(cfg.Audio.RecorderCommand),
		deepgram.NewProvider(deepgram.Config{
			APIKey:      cfg.Deepgram.APIKey,
			APIBaseURL:  cfg.Deepgram.APIBaseURL,
			Model:       cfg.Deepgram.Model,
			Language:    cfg.Speech.Locale,
			SmartFormat: cfg.Deepgram.SmartFormat,
		}),
		speech.Config{
			Audio: ports.AudioConfig{
				SampleRate:  cfg.Audio.SampleRate,
				Channels:    cfg.Audio.Channels,
				InputFormat: cfg.Audio.InputFormat,
				InputDevice: cfg.Audio.InputDevice,
			},
			Encoding:  "linear16",
			ChunkSize: cfg.Audio.ChunkSize,
		},
		applog.Component(logger, "speech"),
	)
	sessionCfg := ports.SessionConfig{
		Locale:         cfg.Speech.Locale,
		InterimResults: cfg.Speech.InterimResults,
	}

	lease := usecase.NewMicrophoneLease()
	services.Dictation = usecase.NewDictationController(
		recognizer,
		rulesEngine,
		targets,
		ui,
		ui,
		lease,
		sessionCfg,
		settings.CaptionsEnabled,
		applog.Component(logger, "dictation"),
	)
	services.Capture = usecase.NewCaptureController(recognizer, ui, lease, sessionCfg, applog.Component(logger, "capture"))
	services.Preferences = usecase.NewPreferencesService(store, ui, services.Dictation, ui, applog.Component(logger, "preferences"))

	tone := cue.NewTone(cue.Config{
		Enabled:     cfg.Cue.Enabled,
		FrequencyHz: cfg.Cue.FrequencyHz,
	}, applog.Component(logger, "cue"))
	services.Timer = usecase.NewTimerScheduler(
		ctx,
		store,
		usecase.SystemClock{},
		ui,
		cue.Fanout{ui, tone},
		cfg.Timer.TickInterval,
		applog.Component(logger, "timer"),
	)

	logger.Info().
		Str("storage", cfg.Storage.Backend).
		Str("locale", cfg.Speech.Locale).
		Bool("speech_available", recognizer.Available()).
		Msg("backend ready")
	return services, nil
}

func (s *Services) notify(sink ports.EventSink, code domain.ErrorCode, message string) {
	s.notices = append(s.notices, startupNotice{code: code, message: message})
	sink.Notice(code, message)
}

// openBackend picks the configured preference backend. A database that
// cannot be opened degrades to memory so the page keeps working.
func openBackend(cfg config.StorageConfig, logger zerolog.Logger) (prefs.Backend, io.Closer) {
	switch cfg.Backend {
	case config.StorageMemory:
		return prefs.NewMemoryBackend(), nil
	case config.StorageSQLite:
		db, err := openSQLite(cfg.Dir)
		if err != nil {
			logger.Warn().Err(err).Msg("sqlite preferences unavailable, keeping them in memory")
			return prefs.NewMemoryBackend(), nil
		}
		return db, db
	default:
		return prefs.NewFileBackend(cfg.Dir), nil
	}
}

func openSQLite(dir string) (*prefs.SQLiteBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return prefs.OpenSQLite(filepath.Join(dir, databaseFile))
}
