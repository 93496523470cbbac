package plugin

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"unicode"
	"unicode/utf8"

	"guru-bridge/message"
	"guru-bridge/result"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	callType    = reflect.TypeOf((*message.MethodCall)(nil))
	resultType  = reflect.TypeOf((*result.Result)(nil)).Elem()
)

// Mux routes calls by method name. Unknown methods resolve as not implemented.
type Mux struct {
	mu      sync.RWMutex
	methods map[string]HandlerFunc
}

func NewMux() *Mux {
	return &Mux{methods: make(map[string]HandlerFunc)}
}

// HandleFunc registers f under name, replacing any previous entry.
func (m *Mux) HandleFunc(name string, f HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.methods[name] = f
}

// Register scans rcvr for exported methods shaped like
//
//	func (r *T) OpenDatabase(ctx context.Context, call *message.MethodCall, res result.Result)
//
// and registers each under its lowerCamel name ("openDatabase"). HandleMethod itself is
// skipped so a receiver may also implement Handler.
func (m *Mux) Register(rcvr any) error {
	typ := reflect.TypeOf(rcvr)
	if typ == nil || typ.Kind() != reflect.Ptr {
		return fmt.Errorf("plugin: rcvr must be a pointer, got %v", typ)
	}
	val := reflect.ValueOf(rcvr)

	found := 0
	for i := 0; i < typ.NumMethod(); i++ {
		method := typ.Method(i)
		if method.Name == "HandleMethod" || !isHandlerMethod(method.Type) {
			continue
		}
		fn := val.Method(i).Interface().(func(context.Context, *message.MethodCall, result.Result))
		m.HandleFunc(lowerCamel(method.Name), fn)
		found++
	}
	if found == 0 {
		return fmt.Errorf("plugin: %s has no handler methods", typ)
	}
	return nil
}

// Methods lists the registered method names in sorted order.
func (m *Mux) Methods() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.methods))
	for name := range m.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *Mux) HandleMethod(ctx context.Context, call *message.MethodCall, res result.Result) {
	m.mu.RLock()
	f, ok := m.methods[call.Method()]
	m.mu.RUnlock()
	if !ok {
		res.NotImplemented()
		return
	}
	f(ctx, call, res)
}

// isHandlerMethod checks (receiver, context.Context, *message.MethodCall, result.Result) with no results.
func isHandlerMethod(t reflect.Type) bool {
	return t.NumIn() == 4 && t.NumOut() == 0 &&
		t.In(1) == contextType && t.In(2) == callType && t.In(3) == resultType
}

func lowerCamel(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	return string(unicode.ToLower(r)) + name[size:]
}
