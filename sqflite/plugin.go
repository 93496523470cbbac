// Package sqflite is the sqflite method channel implemented on database/sql. Every
// database lives on the worker chosen by its path, so operations on one database run in
// arrival order and never concurrently, while different databases proceed in parallel.
package sqflite

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"guru-bridge/message"
	"guru-bridge/plugin"
	"guru-bridge/result"
	"guru-bridge/worker"

	// Drivers selectable through Options.Driver.
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

const (
	DriverModernc = "sqlite"  // pure Go, always available
	DriverMattn   = "sqlite3" // requires cgo
)

type Options struct {
	RootPath    string        // Base for relative database paths
	Driver      string        // database/sql driver name
	Workers     int           // Database workers
	QueueDepth  int           // Pending tasks per worker
	BusyTimeout time.Duration // sqlite busy_timeout applied on open
	LogLevel    int           // Initial plugin log level
}

func (o *Options) setDefaults() {
	if o.Driver == "" {
		o.Driver = DriverModernc
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.QueueDepth <= 0 {
		o.QueueDepth = 64
	}
	if o.BusyTimeout <= 0 {
		o.BusyTimeout = 5 * time.Second
	}
}

type Plugin struct {
	opts     Options
	logger   *zap.Logger
	mux      *plugin.Mux
	pool     *worker.Pool
	logLevel atomic.Int32

	mu             sync.Mutex
	databases      map[int64]*Database
	lastDatabaseID int64
	closed         bool
}

// New creates the plugin and starts its workers.
func New(opts Options, logger *zap.Logger) (*Plugin, error) {
	opts.setDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.RootPath == "" {
		return nil, fmt.Errorf("sqflite: root path is required")
	}

	p := &Plugin{
		opts:      opts,
		logger:    logger.Named("sqflite"),
		mux:       plugin.NewMux(),
		databases: make(map[int64]*Database),
	}
	p.logLevel.Store(int32(opts.LogLevel))
	if err := p.mux.Register(p); err != nil {
		return nil, err
	}
	p.pool = worker.NewPool(opts.Workers, opts.QueueDepth, p.logger)
	return p, nil
}

// HandleMethod routes call to the matching handler method.
func (p *Plugin) HandleMethod(ctx context.Context, call *message.MethodCall, res result.Result) {
	p.mux.HandleMethod(ctx, call, res)
}

// Methods lists the method names the plugin answers.
func (p *Plugin) Methods() []string { return p.mux.Methods() }

// ApplyLogLevel changes the plugin log level (LogLevelNone, LogLevelSQL, LogLevelVerbose).
func (p *Plugin) ApplyLogLevel(level int) {
	p.logLevel.Store(int32(level))
}

func (p *Plugin) LogLevel() int { return int(p.logLevel.Load()) }

// Close drains the workers and closes every open database.
func (p *Plugin) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.pool.Close()

	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for id, d := range p.databases {
		if err := d.close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.databases, id)
	}
	return firstErr
}

// submit runs task on the worker owning key. The call fails if the plugin is closed.
func (p *Plugin) submit(key string, call *message.MethodCall, res result.Result, task func()) {
	if err := p.pool.Submit(key, p.guard(call, res, task)); err != nil {
		res.Error(message.NewError(ErrorSQLite, "sqflite plugin is closed", nil))
	}
}

// guard turns a panic in fn into an internal error on res.
func (p *Plugin) guard(call *message.MethodCall, res result.Result, fn func()) func() {
	return func() {
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("sqflite task panicked",
					zap.String("method", call.Method()),
					zap.Any("panic", r),
					zap.ByteString("stack", debug.Stack()))
				res.Error(message.NewError(message.CodeInternal, fmt.Sprintf("%s panicked: %v", call.Method(), r), nil))
			}
		}()
		fn()
	}
}

// withDatabase runs fn on the worker of the database named by the call's id, after any
// transaction the call is not part of.
func (p *Plugin) withDatabase(ctx context.Context, call *message.MethodCall, res result.Result,
	fn func(ctx context.Context, d *Database, op *operation) (any, *message.MethodError)) {
	d, merr := p.lookup(call)
	if merr != nil {
		res.Error(merr)
		return
	}

	op := newOperation(call.Method(), call.Arguments())
	p.submit(d.path, call, res, func() {
		if d.closed {
			res.Error(databaseClosed(d.id))
			return
		}
		d.run(op, p.guard(call, res, func() {
			v, merr := fn(ctx, d, op)
			if merr != nil {
				res.Error(merr)
				return
			}
			res.Success(v)
		}), func() {
			res.Error(databaseClosed(d.id))
		})
	})
}

func (p *Plugin) lookup(call *message.MethodCall) (*Database, *message.MethodError) {
	id, ok := call.Int(ParamID)
	if !ok {
		return nil, message.NewError(ErrorBadParam, "id cannot be null", nil)
	}
	p.mu.Lock()
	d := p.databases[id]
	p.mu.Unlock()
	if d == nil {
		return nil, databaseClosed(id)
	}
	return d, nil
}

func (p *Plugin) register(d *Database) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastDatabaseID++
	d.id = p.lastDatabaseID
	p.databases[d.id] = d
}

func (p *Plugin) unregister(d *Database) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.databases, d.id)
}

// openAt returns the open databases on path.
func (p *Plugin) openAt(path string) []*Database {
	p.mu.Lock()
	defer p.mu.Unlock()
	var found []*Database
	for _, d := range p.databases {
		if d.path == path {
			found = append(found, d)
		}
	}
	return found
}

func databaseClosed(id int64) *message.MethodError {
	return message.NewError(ErrorSQLite, fmt.Sprintf("database_closed %d", id), nil)
}
