package main

import (
	"context"
	"flag"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"github.com/lookcw/Google-Meet-Autocall/assets"
	"github.com/lookcw/Google-Meet-Autocall/pkg/audio"
	"github.com/lookcw/Google-Meet-Autocall/pkg/auth"
	"github.com/lookcw/Google-Meet-Autocall/pkg/calendar"
	"github.com/lookcw/Google-Meet-Autocall/pkg/config"
	"github.com/lookcw/Google-Meet-Autocall/pkg/models"
	"github.com/lookcw/Google-Meet-Autocall/pkg/notify"
	"github.com/lookcw/Google-Meet-Autocall/pkg/platform"
	"github.com/lookcw/Google-Meet-Autocall/pkg/reconcile"
	"github.com/lookcw/Google-Meet-Autocall/pkg/scheduler"
	"github.com/lookcw/Google-Meet-Autocall/pkg/server"
	"github.com/lookcw/Google-Meet-Autocall/pkg/store"
	"github.com/rs/zerolog"
)

const appID = "com.github.lookcw.meeting-alarms"

type MeetingAlarms struct {
	app        fyne.App
	config     *models.Config
	configPath string
	headless   bool
	logger     zerolog.Logger
	trayCtx    context.Context

	settings   *store.SettingsStore
	alarmStore alarmStore
	scheduler  *scheduler.Scheduler
	reconciler *reconcile.Reconciler
	hub        *server.Hub
	ringer     *audio.Ringer
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	login := flag.Bool("login", false, "sign in to Google, store the token and exit")
	headless := flag.Bool("headless", false, "run without the system tray")
	debug := flag.Bool("debug", false, "log at debug level")
	flag.Parse()

	logger := newLogger(*debug)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", *configPath).Msg("failed to load config")
	}

	ma := &MeetingAlarms{
		app:        app.NewWithID(appID),
		config:     cfg,
		configPath: *configPath,
		headless:   *headless,
		logger:     logger,
	}

	if *login {
		if err := ma.login(); err != nil {
			logger.Fatal().Err(err).Msg("sign-in failed")
		}
		return
	}

	if err := ma.initialize(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start")
	}
	ma.run()
}

func newLogger(debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().
		Timestamp().
		Logger()
}

type alarmStore interface {
	scheduler.Store
	Close() error
}

// openAlarmStore opens the SQLite database at path, or an in-memory store
// when path is ":memory:"
func openAlarmStore(path string) (alarmStore, error) {
	if path == models.MemoryDatabasePath {
		return store.NewMemoryAlarmStore(), nil
	}
	return store.OpenSQLiteAlarmStore(path)
}

func (ma *MeetingAlarms) tokenStore() *auth.TokenStore {
	return auth.NewTokenStore(ma.config.OAuth.TokenFile)
}

func (ma *MeetingAlarms) login() error {
	oauth := auth.OAuthConfig(ma.config.OAuth.ClientID, ma.config.OAuth.ClientSecret, "")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	_, err := auth.Login(ctx, oauth, ma.tokenStore(), ma.config.ListenAddr, ma.openURL)
	if err != nil {
		return err
	}
	ma.logger.Info().Str("token_file", ma.config.OAuth.TokenFile).Msg("signed in")
	return nil
}

func (ma *MeetingAlarms) openURL(link string) error {
	u, err := url.Parse(link)
	if err != nil {
		return err
	}
	ma.logger.Info().Str("url", link).Msg("opening browser")
	return ma.app.OpenURL(u)
}

func (ma *MeetingAlarms) initialize() error {
	cfg := ma.config

	// Sync autostart state with config on startup
	if configPath, err := filepath.Abs(ma.configPath); err == nil {
		if err := setupAutostart(cfg.AutoStart, []string{"-config", configPath}, ma.logger); err != nil {
			ma.logger.Warn().Err(err).Msg("failed to setup autostart")
		}
	}

	if cfg.NeedsLogin() {
		ma.logger.Warn().Msg("no Google account configured, set email and oauth in the config and run with -login")
	}

	alarmStore, err := openAlarmStore(cfg.DatabasePath)
	if err != nil {
		return err
	}
	if cfg.DatabasePath == models.MemoryDatabasePath {
		ma.logger.Info().Msg("alarms kept in memory, nothing survives a restart")
	}
	ma.alarmStore = alarmStore
	// an alarm missed by more than one rescan is dropped, not rung late
	ma.scheduler = scheduler.New(alarmStore, ma.logger, scheduler.WithMissedAfter(cfg.RescanInterval()))
	ma.settings = store.NewSettingsStore(ma.app.Preferences(), cfg.Alarms.DefaultMinutesBefore)
	ma.hub = server.NewHub(ma.logger)

	sources := calendar.MultiSource{calendar.NewClient(cfg.CalendarBaseURL, cfg.Lookahead())}
	for _, source := range cfg.ICalSources {
		if !source.Validate() {
			ma.logger.Warn().Str("source", source.Name).Msg("skipping iCal source without name or url")
			continue
		}
		sources = append(sources, calendar.NewICalFeed(source, cfg.Lookahead(), ma.logger))
	}

	tokens := auth.NewProvider(
		auth.OAuthConfig(cfg.OAuth.ClientID, cfg.OAuth.ClientSecret, ""),
		ma.tokenStore(),
		cfg.Email,
	)

	ringtoneSrc := cfg.Ringtone.File
	if ringtoneSrc == "" {
		ringtoneSrc = "ringtone.wav"
	}
	var ringer notify.Ringer
	if ringtone, err := audio.Load(cfg.Ringtone.File, assets.Ringtone); err != nil {
		ma.logger.Warn().Err(err).Msg("ringtone unavailable, alarms will be silent")
	} else {
		ma.ringer = audio.NewRinger(ringtone, cfg.Ringtone.Volume, cfg.RingtoneLength(), ma.logger)
		ringer = ma.ringer
	}

	dispatcher := notify.NewDispatcher(ma.app, ma.app, ringer, ma.hub, notify.RingOptions{
		Volume: cfg.Ringtone.Volume,
		Src:    ringtoneSrc,
		Length: cfg.RingtoneLength(),
	}, ma.logger)

	ma.reconciler = reconcile.New(reconcile.Config{
		MeetingPrefix: cfg.Alarms.MeetingPrefix,
		RescanName:    cfg.Alarms.RescanName,
	}, ma.settings, tokens, sources, ma.scheduler, dispatcher, ma.logger)

	return nil
}

func (ma *MeetingAlarms) run() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	defer ma.alarmStore.Close()
	ma.trayCtx = ctx

	go func() {
		if err := ma.scheduler.Run(ctx, ma.onFire); err != nil {
			ma.logger.Error().Err(err).Msg("scheduler stopped")
		}
	}()

	if err := ma.scheduler.CreatePeriodic(ctx, ma.config.Alarms.RescanName, ma.config.RescanInterval()); err != nil {
		ma.logger.Error().Err(err).Msg("failed to register rescan timer")
	}

	srv := server.New(ma.reconciler, ma.scheduler, ma.settings, ma.hub, ma.logger)
	go func() {
		if err := srv.ListenAndServe(ctx, ma.config.ListenAddr); err != nil {
			ma.logger.Error().Err(err).Msg("control server stopped")
		}
	}()

	go ma.syncNow(ctx)

	if ma.headless {
		<-ctx.Done()
		return
	}

	ma.updateSystemTrayMenu()
	ma.registerSilenceHotkey(ctx)
	ma.app.Lifecycle().SetOnStarted(func() {
		platform.SetActivationPolicy()
	})
	go func() {
		<-ctx.Done()
		fyne.Do(ma.app.Quit)
	}()
	ma.app.Run()
}

func (ma *MeetingAlarms) onFire(ctx context.Context, name string) {
	ma.reconciler.HandleFire(ctx, name)
	ma.refreshSystemTray()
}

func (ma *MeetingAlarms) syncNow(ctx context.Context) {
	if _, err := ma.reconciler.Reconcile(ctx); err != nil {
		ma.logger.Warn().Err(err).Msg("sync failed")
	}
	ma.refreshSystemTray()
}

func (ma *MeetingAlarms) sendMessage(ctx context.Context, msg models.ControlMessage) {
	if err := ma.reconciler.HandleMessage(ctx, msg); err != nil {
		ma.logger.Warn().Err(err).Str("type", msg.Type).Msg("applying settings failed")
	}
	ma.refreshSystemTray()
}
