// Package app wires the transport layer and services from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/jrsteele09/go-moment-client/auth"
	"github.com/jrsteele09/go-moment-client/device"
	"github.com/jrsteele09/go-moment-client/eventbus"
	"github.com/jrsteele09/go-moment-client/httpclient"
	"github.com/jrsteele09/go-moment-client/internal/config"
	moerrors "github.com/jrsteele09/go-moment-client/internal/errors"
	"github.com/jrsteele09/go-moment-client/kyc"
	"github.com/jrsteele09/go-moment-client/location"
	"github.com/jrsteele09/go-moment-client/notifications"
	"github.com/jrsteele09/go-moment-client/realtime"
	"github.com/jrsteele09/go-moment-client/token"
	"github.com/jrsteele09/go-moment-client/token/filestore"
	"github.com/jrsteele09/go-moment-client/token/redisstore"
	"github.com/jrsteele09/go-moment-client/token/refresh"
	tokenfakerepo "github.com/jrsteele09/go-moment-client/token/repofake"
	"github.com/jrsteele09/go-moment-client/users"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	credentialsFile = "credentials.json"
	eventBusRedis   = "redis"
)

// App holds one client instance: a single store, device identity and
// refresh flight shared by every service.
type App struct {
	Identity      device.Identity
	Store         token.Store
	API           *httpclient.Client
	Auth          *auth.Service
	Users         *users.Service
	KYC           *kyc.Service
	Location      *location.Service
	Notifications *notifications.Service
	Realtime      *realtime.Client

	bridge    *eventbus.Bridge
	publisher message.Publisher
	redis     *redis.Client
	logger    zerolog.Logger
}

type options struct {
	logger   zerolog.Logger
	store    token.Store
	identity *device.Identity
	redis    *redis.Client
}

type Option func(*options)

func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithStore overrides the store selected by CREDENTIALS_STORE.
func WithStore(s token.Store) Option {
	return func(o *options) {
		o.store = s
	}
}

// WithIdentity skips host property collection.
func WithIdentity(id device.Identity) Option {
	return func(o *options) {
		o.identity = &id
	}
}

// WithRedisClient replaces the client otherwise built from REDIS_URL. App
// does not close a client passed in.
func WithRedisClient(c *redis.Client) Option {
	return func(o *options) {
		o.redis = c
	}
}

func New(cfg config.Config, opts ...Option) (*App, error) {
	o := options{logger: log.Logger}
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{logger: o.logger.With().Str("component", "app").Logger(), redis: o.redis}
	ownsRedis := false
	fail := func(err error) (*App, error) {
		if ownsRedis {
			_ = a.redis.Close()
		}
		return nil, err
	}

	if o.identity != nil {
		a.Identity = *o.identity
	} else {
		props, err := device.HostProperties(cfg.GetAppID(), cfg.GetDataFolder())
		if err != nil {
			return nil, fmt.Errorf("[App New] failed to read device properties: %w", err)
		}
		a.Identity = device.Derive(props)
	}

	needsRedis := cfg.GetCredentialsStore() == config.StoreRedis || cfg.GetEventBus() == eventBusRedis
	if a.redis == nil && needsRedis {
		redisOpts, err := redis.ParseURL(cfg.GetRedisURL())
		if err != nil {
			return nil, fmt.Errorf("[App New] %w: redis url: %v", moerrors.ErrInvalidConfig, err)
		}
		a.redis = redis.NewClient(redisOpts)
		ownsRedis = true
	}

	a.Store = o.store
	if a.Store == nil {
		store, err := a.newStore(cfg)
		if err != nil {
			return fail(err)
		}
		a.Store = store
	}

	refresher := refresh.NewRefresher(cfg.GetAPIURL(), a.Store, a.Identity,
		refresh.WithTimeout(cfg.GetHTTPTimeout()),
		refresh.WithLogger(o.logger),
	)

	api, err := httpclient.New(cfg.GetAPIURL(), a.Store, a.Identity, refresher,
		httpclient.WithTimeout(cfg.GetHTTPTimeout()),
		httpclient.WithLogger(o.logger),
	)
	if err != nil {
		return fail(fmt.Errorf("[App New] failed to create API client: %w", err))
	}
	a.API = api

	if err := a.newServices(refresher, o.logger); err != nil {
		return fail(err)
	}

	a.Realtime, err = realtime.New(cfg.GetAPIURL(), a.Store, a.Identity,
		realtime.WithHeartbeatInterval(cfg.GetHeartbeatInterval()),
		realtime.WithConnectTimeout(cfg.GetConnectTimeout()),
		realtime.WithWriteTimeout(cfg.GetWriteTimeout()),
		realtime.WithLogger(o.logger),
	)
	if err != nil {
		return fail(fmt.Errorf("[App New] failed to create realtime client: %w", err))
	}

	if cfg.GetEventBus() == eventBusRedis {
		a.publisher, err = eventbus.NewRedisPublisher(a.redis, o.logger)
		if err != nil {
			a.Realtime.Cleanup()
			return fail(fmt.Errorf("[App New] failed to create event bus: %w", err))
		}
		a.bridge = eventbus.NewBridge(a.publisher, eventbus.WithLogger(o.logger), eventbus.WithDeviceHash(a.Identity.Hash))
	}

	if !ownsRedis {
		a.redis = nil
	}
	a.logger.Debug().
		Str("api_url", cfg.GetAPIURL()).
		Str("store", string(cfg.GetCredentialsStore())).
		Bool("event_bus", a.bridge != nil).
		Msg("client ready")
	return a, nil
}

func (a *App) newStore(cfg config.Config) (token.Store, error) {
	switch cfg.GetCredentialsStore() {
	case config.StoreMemory:
		return tokenfakerepo.NewFakeTokenStore(), nil
	case config.StoreRedis:
		return redisstore.New(a.redis, a.Identity.Hash, redisstore.WithExpiry()), nil
	default:
		store, err := filestore.New(filepath.Join(cfg.GetDataFolder(), credentialsFile), a.Identity.Hash)
		if err != nil {
			return nil, fmt.Errorf("[App New] failed to open credential file: %w", err)
		}
		return store, nil
	}
}

func (a *App) newServices(refresher httpclient.Refresher, l zerolog.Logger) error {
	var err error
	if a.Auth, err = auth.NewService(a.API, a.Store, refresher, auth.WithLogger(l)); err != nil {
		return err
	}
	if a.Users, err = users.NewService(a.API); err != nil {
		return err
	}
	if a.KYC, err = kyc.NewService(a.API); err != nil {
		return err
	}
	if a.Location, err = location.NewService(a.API); err != nil {
		return err
	}
	a.Notifications, err = notifications.NewService(a.API)
	return err
}

// EventBusEnabled reports whether realtime events are republished.
func (a *App) EventBusEnabled() bool {
	return a.bridge != nil
}

// RunEventBus forwards realtime events to the event bus until ctx is done or
// the realtime client is cleaned up. It returns immediately when no event bus
// is configured.
func (a *App) RunEventBus(ctx context.Context) error {
	if a.bridge == nil {
		return nil
	}
	err := a.bridge.Run(ctx, a.Realtime)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close ends any realtime session and releases the event bus and redis
// connections. The App must not be used afterwards.
func (a *App) Close() error {
	a.Realtime.Cleanup()

	var errs []error
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close publisher: %w", err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	return errors.Join(errs...)
}
