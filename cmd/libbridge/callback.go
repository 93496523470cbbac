//go:build cgo

package main

/*
#include <stdlib.h>
#include "bridge.h"

static void call_method_result(MethodResultCallback cb, const char* result) {
	cb(result);
}
*/
import "C"

import "unsafe"

// resultCallback adapts a C callback pointer to the bridge's func(string).
func resultCallback(cb C.MethodResultCallback) func(string) {
	return func(envelope string) {
		cs := C.CString(envelope)
		defer C.free(unsafe.Pointer(cs))
		C.call_method_result(cb, cs)
	}
}
