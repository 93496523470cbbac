package bridge

import (
	"sync/atomic"
	"testing"
	"time"
)

const benchArgs = `{"id":1,"sql":"SELECT 1","arguments":[1,2.5,"x",{"__bytes__":"AAEC"}]}`

// Scenario 1: one caller, each call awaited before the next
func BenchmarkSerialInvoke(b *testing.B) {
	br := New(newTestPlugin())
	b.Cleanup(func() { br.Shutdown(3 * time.Second) })

	done := make(chan string, 1)
	onResult := func(s string) { done <- s }
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if err := br.Invoke(int32(i+1), "echo", benchArgs, onResult); err != nil {
			b.Fatal(err)
		}
		<-done
	}
}

// Scenario 2: many callers in flight at once
func BenchmarkConcurrentInvoke(b *testing.B) {
	br := New(newTestPlugin())
	b.Cleanup(func() { br.Shutdown(3 * time.Second) })

	var seq atomic.Int32
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		done := make(chan string, 1)
		onResult := func(s string) { done <- s }
		for pb.Next() {
			if err := br.Invoke(seq.Add(1), "echo", benchArgs, onResult); err != nil {
				b.Error(err)
				return
			}
			<-done
		}
	})
}
