package sqflite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"go.uber.org/zap"

	"guru-bridge/message"
	"guru-bridge/result"
)

func (p *Plugin) GetPlatformVersion(_ context.Context, _ *message.MethodCall, res result.Result) {
	res.Success(fmt.Sprintf("%s %s", runtime.GOOS, runtime.Version()))
}

func (p *Plugin) GetDatabasesPath(_ context.Context, _ *message.MethodCall, res result.Result) {
	res.Success(p.opts.RootPath)
}

// Debug reports the plugin log level and the open databases.
func (p *Plugin) Debug(_ context.Context, _ *message.MethodCall, res result.Result) {
	p.mu.Lock()
	databases := make(map[string]any, len(p.databases))
	for id, d := range p.databases {
		databases[strconv.FormatInt(id, 10)] = map[string]any{
			ParamPath:           d.path,
			ParamSingleInstance: d.singleInstance,
			ParamReadOnly:       d.readOnly,
		}
	}
	p.mu.Unlock()

	res.Success(map[string]any{
		ParamLogLevel:  int64(p.LogLevel()),
		ParamDatabases: databases,
	})
}

// DebugMode is the legacy switch to verbose logging.
func (p *Plugin) DebugMode(_ context.Context, _ *message.MethodCall, res result.Result) {
	p.ApplyLogLevel(LogLevelVerbose)
	res.Success(nil)
}

func (p *Plugin) Options(_ context.Context, call *message.MethodCall, res result.Result) {
	if level, ok := call.Int(ParamLogLevel); ok {
		p.ApplyLogLevel(int(level))
	}
	res.Success(nil)
}

func (p *Plugin) SetLogLevel(_ context.Context, call *message.MethodCall, res result.Result) {
	level, ok := call.Int(ParamLogLevel)
	if !ok {
		res.Error(message.NewError(ErrorBadParam, "logLevel cannot be null", nil))
		return
	}
	p.ApplyLogLevel(int(level))
	res.Success(nil)
}

// OpenDatabase returns {"id": n}. A single instance database already open on the same path
// is reused and reported with "recovered".
func (p *Plugin) OpenDatabase(_ context.Context, call *message.MethodCall, res result.Result) {
	rawPath, ok := call.String(ParamPath)
	if !ok || rawPath == "" {
		res.Error(message.NewError(ErrorBadParam, "path cannot be null", nil))
		return
	}
	path := resolvePath(p.opts.RootPath, rawPath)
	readOnly, _ := call.Bool(ParamReadOnly)
	singleInstance, hasSingle := call.Bool(ParamSingleInstance)
	if !hasSingle {
		singleInstance = true
	}
	if path == InMemoryPath {
		singleInstance = false
	}

	p.submit(path, call, res, func() {
		if singleInstance {
			for _, d := range p.openAt(path) {
				if d.singleInstance && !d.closed {
					d.verbose("database recovered")
					out := map[string]any{ParamID: d.id, ParamRecovered: true}
					if d.inTransaction {
						out[ParamRecoveredInTransaction] = true
					}
					res.Success(out)
					return
				}
			}
		}

		if readOnly && !fileExists(path) {
			res.Error(message.NewError(ErrorSQLite, fmt.Sprintf("%s %s", ErrorOpenFailed, path), nil))
			return
		}

		db, err := connect(p.opts.Driver, path, readOnly, p.opts.BusyTimeout)
		if err != nil {
			p.logger.Info("open failed", zap.String("path", path), zap.Error(err))
			res.Error(message.NewError(ErrorSQLite, fmt.Sprintf("%s %s", ErrorOpenFailed, path), err.Error()))
			return
		}

		d := &Database{
			path:           path,
			readOnly:       readOnly,
			singleInstance: singleInstance,
			db:             db,
			logLevel:       &p.logLevel,
		}
		p.register(d)
		d.logger = p.logger.With(zap.Int64("database", d.id), zap.String("path", path))
		d.verbose("database opened", zap.Bool("readOnly", readOnly), zap.Bool("singleInstance", singleInstance))
		res.Success(map[string]any{ParamID: d.id})
	})
}

// CloseDatabase closes the database. Unknown ids succeed. A database inside a transaction
// is only closed with force.
func (p *Plugin) CloseDatabase(_ context.Context, call *message.MethodCall, res result.Result) {
	id, ok := call.Int(ParamID)
	if !ok {
		res.Error(message.NewError(ErrorBadParam, "id cannot be null", nil))
		return
	}
	p.mu.Lock()
	d := p.databases[id]
	p.mu.Unlock()
	if d == nil {
		res.Success(nil)
		return
	}
	force, _ := call.Bool(ParamForce)

	p.submit(d.path, call, res, func() {
		if d.closed {
			res.Success(nil)
			return
		}
		if d.inTransaction && !force {
			res.Error(message.NewError(ErrorSQLite, "database in transaction", map[string]any{ParamID: id}))
			return
		}
		p.unregister(d)
		if err := d.close(); err != nil {
			res.Error(message.NewError(ErrorSQLite, err.Error(), nil))
			return
		}
		d.verbose("database closed")
		res.Success(nil)
	})
}

// DeleteDatabase closes every database open on path and removes its files.
func (p *Plugin) DeleteDatabase(_ context.Context, call *message.MethodCall, res result.Result) {
	rawPath, ok := call.String(ParamPath)
	if !ok || rawPath == "" {
		res.Error(message.NewError(ErrorBadParam, "path cannot be null", nil))
		return
	}
	path := resolvePath(p.opts.RootPath, rawPath)

	p.submit(path, call, res, func() {
		p.closeAt(path)
		if err := removeDatabaseFiles(path); err != nil {
			res.Error(message.NewError(ErrorSQLite, err.Error(), nil))
			return
		}
		res.Success(nil)
	})
}

func (p *Plugin) DatabaseExists(_ context.Context, call *message.MethodCall, res result.Result) {
	rawPath, ok := call.String(ParamPath)
	if !ok || rawPath == "" {
		res.Error(message.NewError(ErrorBadParam, "path cannot be null", nil))
		return
	}
	path := resolvePath(p.opts.RootPath, rawPath)
	p.submit(path, call, res, func() {
		res.Success(fileExists(path))
	})
}

func (p *Plugin) Execute(ctx context.Context, call *message.MethodCall, res result.Result) {
	p.withDatabase(ctx, call, res, func(ctx context.Context, d *Database, op *operation) (any, *message.MethodError) {
		if merr := requireSQL(op); merr != nil {
			return nil, merr
		}
		return d.execute(ctx, op)
	})
}

func (p *Plugin) Insert(ctx context.Context, call *message.MethodCall, res result.Result) {
	p.withDatabase(ctx, call, res, func(ctx context.Context, d *Database, op *operation) (any, *message.MethodError) {
		if merr := requireSQL(op); merr != nil {
			return nil, merr
		}
		return d.insert(ctx, op)
	})
}

func (p *Plugin) Update(ctx context.Context, call *message.MethodCall, res result.Result) {
	p.withDatabase(ctx, call, res, func(ctx context.Context, d *Database, op *operation) (any, *message.MethodError) {
		if merr := requireSQL(op); merr != nil {
			return nil, merr
		}
		return d.update(ctx, op)
	})
}

func (p *Plugin) Query(ctx context.Context, call *message.MethodCall, res result.Result) {
	p.withDatabase(ctx, call, res, func(ctx context.Context, d *Database, op *operation) (any, *message.MethodError) {
		if merr := requireSQL(op); merr != nil {
			return nil, merr
		}
		return d.query(ctx, op)
	})
}

func (p *Plugin) QueryCursorNext(ctx context.Context, call *message.MethodCall, res result.Result) {
	cursorID, ok := call.Int(ParamCursorID)
	if !ok {
		res.Error(message.NewError(ErrorBadParam, "cursorId cannot be null", nil))
		return
	}
	cancel, _ := call.Bool(ParamCursorCancel)
	p.withDatabase(ctx, call, res, func(_ context.Context, d *Database, _ *operation) (any, *message.MethodError) {
		return d.cursorNext(cursorID, cancel)
	})
}

func (p *Plugin) Batch(ctx context.Context, call *message.MethodCall, res result.Result) {
	p.withDatabase(ctx, call, res, func(ctx context.Context, d *Database, op *operation) (any, *message.MethodError) {
		return d.batch(ctx, op)
	})
}

// ReadDatabaseBytes returns the content of the database file at path.
func (p *Plugin) ReadDatabaseBytes(_ context.Context, call *message.MethodCall, res result.Result) {
	rawPath, ok := call.String(ParamPath)
	if !ok || rawPath == "" || rawPath == InMemoryPath {
		res.Error(message.NewError(ErrorBadParam, "path cannot be null", nil))
		return
	}
	path := resolvePath(p.opts.RootPath, rawPath)

	p.submit(path, call, res, func() {
		data, err := os.ReadFile(path)
		if err != nil {
			res.Error(message.NewError(ErrorSQLite, err.Error(), nil))
			return
		}
		res.Success(message.NewTypedData(data))
	})
}

// WriteDatabaseBytes replaces the file at path with the given bytes, closing any database
// open on it first.
func (p *Plugin) WriteDatabaseBytes(_ context.Context, call *message.MethodCall, res result.Result) {
	rawPath, ok := call.String(ParamPath)
	if !ok || rawPath == "" || rawPath == InMemoryPath {
		res.Error(message.NewError(ErrorBadParam, "path cannot be null", nil))
		return
	}
	var data []byte
	switch v, _ := call.Argument(ParamBytes); b := v.(type) {
	case message.TypedData:
		data = b.Bytes()
	case []byte:
		data = b
	default:
		res.Error(message.NewError(ErrorBadParam, "bytes cannot be null", nil))
		return
	}
	path := resolvePath(p.opts.RootPath, rawPath)

	p.submit(path, call, res, func() {
		p.closeAt(path)
		if err := removeDatabaseFiles(path); err != nil {
			res.Error(message.NewError(ErrorSQLite, err.Error(), nil))
			return
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			res.Error(message.NewError(ErrorSQLite, err.Error(), nil))
			return
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			res.Error(message.NewError(ErrorSQLite, err.Error(), nil))
			return
		}
		res.Success(nil)
	})
}

// closeAt closes the databases open on path. Must run on path's worker.
func (p *Plugin) closeAt(path string) {
	for _, d := range p.openAt(path) {
		p.unregister(d)
		if err := d.close(); err != nil {
			d.logger.Warn("close failed", zap.Error(err))
		}
	}
}

func requireSQL(op *operation) *message.MethodError {
	if op.sql() == "" {
		return message.NewError(ErrorBadParam, "sql cannot be null", nil)
	}
	return nil
}
