//go:build cgo

package main

/*
#include "bridge.h"
*/
import "C"

import (
	"time"

	"go.uber.org/zap"

	"guru-bridge/host"
)

//export invoke
func invoke(callID C.int, methodName *C.char, jsonArguments *C.char, onResult C.MethodResultCallback) {
	invokeMethod(int32(callID), methodName, jsonArguments, onResult)
}

// InvokeMethod is the symbol name used by the iOS host.
//
//export InvokeMethod
func InvokeMethod(callID C.int, methodName *C.char, jsonArguments *C.char, onResult C.MethodResultCallback) {
	invokeMethod(int32(callID), methodName, jsonArguments, onResult)
}

//export SetGuruSqliteLogLevel
func SetGuruSqliteLogLevel(level C.int) {
	rt, err := current()
	if err != nil {
		return
	}
	rt.SetHostLogLevel(int(level))
}

// ShutdownBridge drains pending calls for up to timeoutMillis and releases every database.
// It returns 0 on a clean shutdown.
//
//export ShutdownBridge
func ShutdownBridge(timeoutMillis C.int) C.int {
	if err := shutdown(time.Duration(timeoutMillis) * time.Millisecond); err != nil {
		return 1
	}
	return 0
}

func invokeMethod(callID int32, methodName, jsonArguments *C.char, onResult C.MethodResultCallback) {
	rt, err := current()
	if err != nil {
		if onResult != nil {
			resultCallback(onResult)(host.UnavailableEnvelope(callID, err))
		}
		return
	}
	if methodName == nil || jsonArguments == nil || onResult == nil {
		rt.Logger.Error("invoke rejected, null argument",
			zap.Int32("callId", callID),
			zap.Bool("methodName", methodName != nil),
			zap.Bool("jsonArguments", jsonArguments != nil),
			zap.Bool("onResult", onResult != nil))
		return
	}

	method := C.GoString(methodName)
	args := C.GoString(jsonArguments)
	if err := rt.Bridge.Invoke(callID, method, args, resultCallback(onResult)); err != nil {
		rt.Logger.Error("invoke failed", zap.Int32("callId", callID), zap.String("method", method), zap.Error(err))
	}
}
