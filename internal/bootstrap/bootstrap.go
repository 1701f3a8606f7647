package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	hclog "github.com/hashicorp/go-hclog"
	"google.golang.org/grpc"

	goalinadapter "habitsync/internal/modules/goal/adapter/in"
	goaloutadapter "habitsync/internal/modules/goal/adapter/out"
	goalservice "habitsync/internal/modules/goal/service"
	goalusecase "habitsync/internal/modules/goal/usecase"
	sessioninadapter "habitsync/internal/modules/session/adapter/in"
	sessionoutadapter "habitsync/internal/modules/session/adapter/out"
	sessionservice "habitsync/internal/modules/session/service"
	sessionusecase "habitsync/internal/modules/session/usecase"
	"habitsync/internal/platform/clock"
	"habitsync/internal/platform/config"
	"habitsync/internal/platform/eventbus"
	"habitsync/internal/platform/id"
	"habitsync/internal/platform/identity"
	"habitsync/internal/platform/logging"
	"habitsync/internal/platform/telemetry"
	uiapp "habitsync/internal/ui/app"
)

type App struct {
	Identity   identity.Identity
	Remote     bool
	Log        hclog.Logger
	SessionCLI sessioninadapter.CLIHandler
	SessionTUI sessioninadapter.TUIHandler
	GoalCLI    goalinadapter.CLIHandler
	GoalTUI    goalinadapter.TUIHandler

	drains  []func(context.Context) error
	closers []func(context.Context) error
}

type options struct {
	log      hclog.Logger
	clock    clock.Clock
	ids      id.Generator
	dialOpts []grpc.DialOption
}

type Option func(*options)

func WithLogger(log hclog.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

func WithClock(clk clock.Clock) Option {
	return func(o *options) {
		o.clock = clk
	}
}

// WithDialOptions adds gRPC dial options for the ledger connection.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(o *options) {
		o.dialOpts = append(o.dialOpts, opts...)
	}
}

func New(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	o := options{clock: clock.SystemClock{}, ids: id.UUID{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logging.New(cfg.LogLevel, os.Stderr)
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	shutdownTracing, err := telemetry.Setup(ctx, "habitsync", cfg.OTelEndpoint)
	if err != nil {
		return nil, fmt.Errorf("setup tracing: %w", err)
	}
	stores, err := ResolveStores(ctx, cfg, loc, o.clock, o.ids, o.dialOpts...)
	if err != nil {
		_ = shutdownTracing(ctx)
		return nil, err
	}
	o.log.Debug("stores resolved", "identity", stores.Identity.String(), "remote", stores.Remote)

	bus := eventbus.New(eventbus.DefaultCacheSize)
	tracer := telemetry.Tracer()

	outcomeEvents := sessionoutadapter.NewBusOutcomeEvents(bus)
	coordinator := sessionservice.NewCoordinator(stores.Sessions, outcomeEvents, o.log, tracer, cfg.CommitTimeout)
	sessionUC := sessionusecase.NewInteractor(
		coordinator,
		stores.Sessions,
		outcomeEvents,
		sessionoutadapter.NewMarkdownNoteWriter(loc),
		o.clock,
		o.ids,
		stores.Identity,
		loc,
	)
	if err := sessionUC.Prime(ctx); err != nil {
		o.log.Warn("estimates start without streak state", "error", err)
	}

	goalEvents := goaloutadapter.NewBusGoalEvents(bus)
	goalSvc := goalservice.NewSyncService(stores.Goals, goalEvents, o.clock, o.log, tracer, cfg.GoalCommitTimeout)
	goalUC := goalusecase.NewInteractor(goalSvc, goalEvents)
	if _, err := goalUC.Reconcile(ctx); err != nil {
		o.log.Warn("goals start from defaults", "error", err)
	}

	return &App{
		Identity:   stores.Identity,
		Remote:     stores.Remote,
		Log:        o.log,
		SessionCLI: sessioninadapter.NewCLIHandler(sessionUC),
		SessionTUI: sessioninadapter.NewTUIHandler(sessionUC),
		GoalCLI:    goalinadapter.NewCLIHandler(goalUC),
		GoalTUI:    goalinadapter.NewTUIHandler(goalUC),
		drains:     []func(context.Context) error{sessionUC.Drain, goalUC.Drain},
		closers: []func(context.Context) error{
			func(context.Context) error { return stores.Close() },
			shutdownTracing,
		},
	}, nil
}

// Close waits for in-flight saves and goal commits, then releases the
// store connection and flushes traces.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for _, drain := range a.drains {
		if err := drain(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	for _, closeFn := range a.closers {
		if err := closeFn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func RunTUI(app *App, targetSec, aimed int) error {
	model := uiapp.NewModel(app.Identity.String(), app.SessionTUI, app.GoalTUI, targetSec, aimed)
	program := tea.NewProgram(model, tea.WithAltScreen())
	model.Attach(program)
	_, err := program.Run()
	return err
}
