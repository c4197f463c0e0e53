// Package bootstrap provides application implementation
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sngo/actorkit/config"
	"github.com/sngo/actorkit/system"
)

// DefaultApplication implements the Application interface
type DefaultApplication struct {
	// config holds the application configuration
	config interface{}

	// container provides dependency injection
	container Container

	// lifecycleManager manages service lifecycles
	lifecycleManager LifecycleManager

	// configLoader manages configuration loading
	configLoader *config.Loader

	// actorSystem is this process's root of the actor tree plus its
	// shared registries (type marshaller, reference marshaller, bus).
	actorSystem *system.System

	// listenAddr, if non-empty, is where the actor system accepts
	// inbound remote-host actor traffic.
	listenAddr string

	// mutex protects concurrent access
	mutex sync.RWMutex

	// running indicates if the application is running
	running bool

	// shutdownChan for graceful shutdown
	shutdownChan chan os.Signal
}

// NewApplication creates a new SNGO application
func NewApplication() Application {
	container := NewContainer()
	lifecycleManager := NewLifecycleManager(container)

	app := &DefaultApplication{
		container:        container,
		lifecycleManager: lifecycleManager,
		shutdownChan:     make(chan os.Signal, 1),
		configLoader:     config.NewLoader(),
	}

	app.registerCoreServices()

	return app
}

// Configure configures the application with the provided configuration
func (app *DefaultApplication) Configure(cfg interface{}) error {
	app.mutex.Lock()
	defer app.mutex.Unlock()

	if app.running {
		return fmt.Errorf("cannot configure application while running")
	}

	app.config = cfg
	return app.configureCoreServices(cfg)
}

// Run runs the application until shutdown
func (app *DefaultApplication) Run(ctx context.Context) error {
	app.mutex.Lock()
	if app.running {
		app.mutex.Unlock()
		return fmt.Errorf("application is already running")
	}
	app.running = true
	app.mutex.Unlock()

	signal.Notify(app.shutdownChan, os.Interrupt, syscall.SIGTERM)

	if err := app.lifecycleManager.Start(ctx); err != nil {
		app.mutex.Lock()
		app.running = false
		app.mutex.Unlock()
		return fmt.Errorf("failed to start services: %w", err)
	}

	select {
	case <-app.shutdownChan:
		fmt.Println("Received shutdown signal, starting graceful shutdown...")
	case <-ctx.Done():
		fmt.Println("Context cancelled, starting graceful shutdown...")
	}

	return app.Shutdown(context.Background())
}

// Shutdown shuts down the application gracefully
func (app *DefaultApplication) Shutdown(ctx context.Context) error {
	app.mutex.Lock()
	if !app.running {
		app.mutex.Unlock()
		return nil // Already shut down
	}
	app.running = false
	app.mutex.Unlock()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := app.lifecycleManager.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop services: %w", err)
	}

	return nil
}

// Container returns the dependency injection container
func (app *DefaultApplication) Container() Container {
	return app.container
}

// LifecycleManager returns the lifecycle manager
func (app *DefaultApplication) LifecycleManager() LifecycleManager {
	return app.lifecycleManager
}

// ActorSystem returns the application's actor system, once Configure or
// Run has started it; nil before that.
func (app *DefaultApplication) ActorSystem() *system.System {
	app.mutex.RLock()
	defer app.mutex.RUnlock()
	return app.actorSystem
}

// registerCoreServices registers core SNGO services
func (app *DefaultApplication) registerCoreServices() {
	app.lifecycleManager.Register("actor-system", &ActorSystemService{app: app})
	app.lifecycleManager.Register("remote-listener", &RemoteListenerService{app: app}, "actor-system")
}

// configureCoreServices configures core services with the provided configuration
func (app *DefaultApplication) configureCoreServices(cfg interface{}) error {
	opts := app.systemOptionsFromConfig(cfg)

	actorSystem, err := system.New(opts)
	if err != nil {
		return fmt.Errorf("failed to create actor system: %w", err)
	}
	app.actorSystem = actorSystem
	app.container.RegisterInstance("actor-system", actorSystem)

	return nil
}

// systemOptionsFromConfig builds the system.Options to construct the
// actor system with: app's own configLoader first discovers an
// actors.json-shaped file along its search paths (spec §4.7), which cfg
// may then override explicitly, alongside the usual busyLagLimit/
// workerPath/listen settings.
func (app *DefaultApplication) systemOptionsFromConfig(cfg interface{}) system.Options {
	opts := system.Options{}

	if path, _, err := app.configLoader.FindFile([]string{"actors.json", "actors.yaml", "actors.yml"}); err == nil {
		opts.ActorsConfigPath = path
		if overlay, _, err := app.configLoader.FindFile([]string{"actors.local.json", "actors.local.yaml", "actors.local.yml"}); err == nil {
			opts.ActorsConfigOverlayPath = overlay
		}
	}

	configMap, ok := cfg.(map[string]interface{})
	if !ok {
		return opts
	}

	if busyLagLimit, exists := configMap["busyLagLimit"]; exists {
		if n, ok := busyLagLimit.(int); ok {
			opts.BusyLagLimit = int64(n)
		}
	}
	if workerPath, exists := configMap["workerPath"]; exists {
		if s, ok := workerPath.(string); ok {
			opts.WorkerPath = s
		}
	}

	if listenCfg, exists := configMap["listen"]; exists {
		if listenMap, ok := listenCfg.(map[string]interface{}); ok {
			if host, ok := listenMap["host"].(string); ok {
				opts.Host = host
			}
			if port, ok := listenMap["port"].(int); ok {
				opts.Port = port
				app.listenAddr = fmt.Sprintf("%s:%d", opts.Host, port)
			}
		}
	}

	if actorsConfig, exists := configMap["actorsConfig"]; exists {
		if s, ok := actorsConfig.(string); ok && s != "" {
			opts.ActorsConfigPath = s
		}
	}
	if overlay, exists := configMap["actorsConfigOverlay"]; exists {
		if s, ok := overlay.(string); ok && s != "" {
			opts.ActorsConfigOverlayPath = s
		}
	}

	return opts
}

// ActorSystemService wraps the actor system as a managed service
type ActorSystemService struct {
	app *DefaultApplication
}

func (s *ActorSystemService) Name() string {
	return "actor-system"
}

func (s *ActorSystemService) Start(ctx context.Context) error {
	s.app.mutex.Lock()
	defer s.app.mutex.Unlock()
	if s.app.actorSystem == nil {
		actorSystem, err := system.New(s.app.systemOptionsFromConfig(s.app.config))
		if err != nil {
			return fmt.Errorf("failed to create actor system: %w", err)
		}
		s.app.actorSystem = actorSystem
		s.app.container.RegisterInstance("actor-system", actorSystem)
	}
	return nil
}

func (s *ActorSystemService) Stop(ctx context.Context) error {
	if s.app.ActorSystem() != nil {
		return s.app.ActorSystem().Shutdown(ctx)
	}
	return nil
}

func (s *ActorSystemService) Health(ctx context.Context) (HealthStatus, error) {
	if s.app.ActorSystem() == nil {
		return HealthStatus{
			State:   HealthUnhealthy,
			Message: "Actor system not initialized",
		}, nil
	}

	return HealthStatus{
		State:   HealthHealthy,
		Message: "Actor system running",
	}, nil
}

// RemoteListenerService starts the actor system's inbound remote-host
// listener when an address was configured; a no-op service otherwise.
type RemoteListenerService struct {
	app *DefaultApplication
}

func (s *RemoteListenerService) Name() string {
	return "remote-listener"
}

func (s *RemoteListenerService) Start(ctx context.Context) error {
	if s.app.listenAddr == "" {
		return nil
	}
	sys := s.app.ActorSystem()
	if sys == nil {
		return fmt.Errorf("remote-listener: actor system not initialized")
	}
	return sys.Listen(s.app.listenAddr)
}

func (s *RemoteListenerService) Stop(ctx context.Context) error {
	// the actor system's own Shutdown closes the listener; nothing to
	// do here independently.
	return nil
}

func (s *RemoteListenerService) Health(ctx context.Context) (HealthStatus, error) {
	if s.app.listenAddr == "" {
		return HealthStatus{State: HealthUnknown, Message: "Remote listener not configured"}, nil
	}
	return HealthStatus{State: HealthHealthy, Message: fmt.Sprintf("Listening on %s", s.app.listenAddr)}, nil
}

// ApplicationBuilder helps build and configure applications
type ApplicationBuilder struct {
	app    *DefaultApplication
	config map[string]interface{}
}

// NewApplicationBuilder creates a new application builder
func NewApplicationBuilder() *ApplicationBuilder {
	return &ApplicationBuilder{
		app:    NewApplication().(*DefaultApplication),
		config: make(map[string]interface{}),
	}
}

// WithConfig sets the configuration
func (b *ApplicationBuilder) WithConfig(cfg interface{}) *ApplicationBuilder {
	if configMap, ok := cfg.(map[string]interface{}); ok {
		for k, v := range configMap {
			b.config[k] = v
		}
	}
	return b
}

// WithConfigFile loads configuration from a file
func (b *ApplicationBuilder) WithConfigFile(filename string) *ApplicationBuilder {
	// For now, just return self - config file loading can be implemented later
	// when we have a clearer configuration structure
	return b
}

// WithService registers a service
func (b *ApplicationBuilder) WithService(name string, service Service, deps ...string) *ApplicationBuilder {
	b.app.lifecycleManager.Register(name, service, deps...)
	return b
}

// WithServiceFactory registers a service factory
func (b *ApplicationBuilder) WithServiceFactory(name string, factory ServiceFactory) *ApplicationBuilder {
	b.app.container.Register(name, factory)
	return b
}

// WithBusyLagLimit configures the actor system's admission control gate
func (b *ApplicationBuilder) WithBusyLagLimit(limit int64) *ApplicationBuilder {
	b.config["busyLagLimit"] = int(limit)
	return b
}

// WithListen configures the actor system's inbound remote-host listener
func (b *ApplicationBuilder) WithListen(host string, port int) *ApplicationBuilder {
	b.config["listen"] = map[string]interface{}{
		"host": host,
		"port": port,
	}
	return b
}

// WithActorsConfig overrides the actors.json-shaped primary (and optional
// secondary overlay) file the actor system loads at startup and watches
// for hot reconfiguration, in place of whatever app.configLoader would
// otherwise discover on its own search path.
func (b *ApplicationBuilder) WithActorsConfig(primary, secondary string) *ApplicationBuilder {
	b.config["actorsConfig"] = primary
	b.config["actorsConfigOverlay"] = secondary
	return b
}

// Build builds the configured application
func (b *ApplicationBuilder) Build() (Application, error) {
	if len(b.config) > 0 {
		if err := b.app.Configure(b.config); err != nil {
			return nil, fmt.Errorf("failed to configure application: %w", err)
		}
	}
	return b.app, nil
}
