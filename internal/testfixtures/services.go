package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/internship-platform/internal/application"
	"github.com/example/internship-platform/internal/scheduler"
)

// ServiceFactory assists tests with constructing services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Logger      *slog.Logger
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// WithLogger sets the logger handed to constructed services.
func WithLogger(logger *slog.Logger) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Logger = logger
	}
}

// NewScheduler builds a scheduler over an in-memory store on the factory clock.
func (f *ServiceFactory) NewScheduler(cfg scheduler.Config) (*scheduler.Scheduler, *scheduler.MemoryStore) {
	store := scheduler.NewMemoryStore(f.Clock.NowFunc())
	return scheduler.New(store, cfg, f.IDGenerator.NextFunc(), f.Clock.NowFunc(), f.Logger), store
}

// Services bundles the application services wired against the same ports.
type Services struct {
	Ports      *Ports
	Access     *application.AccessControlResolver
	Events     *application.EventRequestLifecycle
	Absences   *application.AbsenceLifecycle
	Queries    *application.RequestQueryService
	Principals *application.PrincipalLoader
	Notifier   *application.SeasonLifecycleNotifier
	Users      *application.UserService
	Seasons    *application.SeasonService
	Sessions   *application.SessionService
	Submission *application.RequestSubmission
	Scheduler  *scheduler.Scheduler
	JobStore   *scheduler.MemoryStore
}

// NewServices wires every application service against ports and an
// in-memory scheduler.
func (f *ServiceFactory) NewServices(ports *Ports, cfg scheduler.Config) *Services {
	if ports == nil {
		ports = NewPorts()
	}
	jobs, store := f.NewScheduler(cfg)
	access := application.NewAccessControlResolver(ports)
	principals := application.NewPrincipalLoader(ports, ports, f.Logger)
	notifier := application.NewSeasonLifecycleNotifier(jobs, ports, f.Clock.NowFunc(), f.Logger, application.WithSeasonLister(ports))
	ids := f.IDGenerator.NextFunc()
	return &Services{
		Ports:      ports,
		Access:     access,
		Events:     application.NewEventRequestLifecycle(ports, ports, access, jobs, f.Logger),
		Absences:   application.NewAbsenceLifecycle(ports, ports, access, jobs, f.Clock.NowFunc(), f.Logger),
		Queries:    application.NewRequestQueryService(ports, access, f.Logger),
		Principals: principals,
		Notifier:   notifier,
		Users:      application.NewUserService(ports, access, ids, f.Logger, application.WithUserObserver(notifier)),
		Seasons:    application.NewSeasonService(ports, ports, access, notifier, ids, f.Logger),
		Sessions:   application.NewSessionService(ports, ports, principals, ids, f.Clock.NowFunc(), f.Logger),
		Submission: application.NewRequestSubmission(ports, ports, ports, access, jobs, ids, f.Clock.NowFunc(), f.Logger),
		Scheduler:  jobs,
		JobStore:   store,
	}
}
