//go:build cgo

// Command libbridge builds the C library loaded by the Unity host:
//
//	go build -buildmode=c-shared -o libguru_bridge.so ./cmd/libbridge
//	go build -buildmode=c-archive -o libguru_bridge.a ./cmd/libbridge
//
// Configuration is read once, on the first call, from GURU_BRIDGE_CONFIG.
package main

import (
	"fmt"
	"os"
	"sync"
	"time"

	"guru-bridge/config"
	"guru-bridge/host"
)

var (
	runtimeOnce sync.Once
	runtime     *host.Runtime
	runtimeErr  error
	closeOnce   sync.Once
)

func current() (*host.Runtime, error) {
	runtimeOnce.Do(func() {
		cfg, err := config.Load()
		if err != nil {
			runtimeErr = err
		} else {
			runtime, runtimeErr = host.Start(cfg)
		}
		if runtimeErr != nil {
			fmt.Fprintf(os.Stderr, "guru-bridge: start failed: %v\n", runtimeErr)
		}
	})
	return runtime, runtimeErr
}

func shutdown(timeout time.Duration) error {
	rt, err := current()
	if err != nil {
		return err
	}
	closeOnce.Do(func() {
		err = rt.Close(timeout)
	})
	return err
}

func main() {}
