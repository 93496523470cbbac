package sqflite

// Method names of the sqflite method channel.
const (
	MethodGetPlatformVersion = "getPlatformVersion"
	MethodGetDatabasesPath   = "getDatabasesPath"
	MethodDebug              = "debug"
	MethodDebugMode          = "debugMode" // deprecated, same as setLogLevel(verbose)
	MethodOptions            = "options"
	MethodSetLogLevel        = "setLogLevel"
	MethodOpenDatabase       = "openDatabase"
	MethodCloseDatabase      = "closeDatabase"
	MethodDeleteDatabase     = "deleteDatabase"
	MethodDatabaseExists     = "databaseExists"
	MethodExecute            = "execute"
	MethodInsert             = "insert"
	MethodUpdate             = "update"
	MethodQuery              = "query"
	MethodQueryCursorNext    = "queryCursorNext"
	MethodBatch              = "batch"
	MethodReadDatabaseBytes  = "readDatabaseBytes"
	MethodWriteDatabaseBytes = "writeDatabaseBytes"
)

// Argument and result keys.
const (
	ParamID                     = "id"
	ParamPath                   = "path"
	ParamReadOnly               = "readOnly"
	ParamSingleInstance         = "singleInstance"
	ParamForce                  = "force"
	ParamSQL                    = "sql"
	ParamSQLArguments           = "arguments"
	ParamInTransaction          = "inTransaction"
	ParamInTransactionChange    = "inTransactionChange" // spelling used by the Unity host
	ParamTransactionID          = "transactionId"
	ParamNoResult               = "noResult"
	ParamContinueOnError        = "continueOnError"
	ParamOperations             = "operations"
	ParamMethod                 = "method"
	ParamResult                 = "result"
	ParamError                  = "error"
	ParamErrorCode              = "code"
	ParamErrorMessage           = "message"
	ParamErrorData              = "data"
	ParamCursorID               = "cursorId"
	ParamCursorPageSize         = "cursorPageSize"
	ParamCursorCancel           = "cancel"
	ParamColumns                = "columns"
	ParamRows                   = "rows"
	ParamRecovered              = "recovered"
	ParamRecoveredInTransaction = "recoveredInTransaction"
	ParamBytes                  = "bytes"
	ParamLogLevel               = "logLevel"
	ParamDatabases              = "databases"
)

// Error codes.
const (
	ErrorSQLite     = "sqlite_error"
	ErrorBadParam   = "bad_param"
	ErrorOpenFailed = "open_failed"
)

// TransactionIDForce runs an operation even while another transaction holds the database.
// Hosts send it either as -1 or as the string "force".
const (
	TransactionIDForce       = -1
	TransactionIDForceString = "force"
)

// Plugin log levels, set through setLogLevel / options.
const (
	LogLevelNone    = 0
	LogLevelSQL     = 1
	LogLevelVerbose = 2
)

const (
	InMemoryPath          = ":memory:"
	DefaultCursorPageSize = 100
)
