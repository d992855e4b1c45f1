package mt5

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/xKoRx/mt5/domain"
)

// fakeTransport implementa bridge.Transport con respuestas enlatadas
// por método, para probar los servicios sin terminal.
type fakeTransport struct {
	mu        sync.Mutex
	connected bool
	handlers  map[string]func(params interface{}) (interface{}, error)
	calls     []string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		connected: true,
		handlers:  make(map[string]func(params interface{}) (interface{}, error)),
	}
}

// on registra la respuesta de un método.
func (f *fakeTransport) on(method string, handler func(params interface{}) (interface{}, error)) {
	f.mu.Lock()
	f.handlers[method] = handler
	f.mu.Unlock()
}

// respond registra una respuesta fija para un método.
func (f *fakeTransport) respond(method string, payload interface{}) {
	f.on(method, func(interface{}) (interface{}, error) {
		return payload, nil
	})
}

func (f *fakeTransport) Call(_ context.Context, method string, params, out interface{}) error {
	f.mu.Lock()
	f.calls = append(f.calls, method)
	handler, ok := f.handlers[method]
	f.mu.Unlock()

	if !ok {
		return domain.NewError(domain.ErrUnknown, "unexpected method "+method)
	}
	payload, err := handler(params)
	if err != nil {
		return err
	}
	if out == nil || payload == nil {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (f *fakeTransport) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// callCount cuenta las invocaciones de un método.
func (f *fakeTransport) callCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == method {
			n++
		}
	}
	return n
}
