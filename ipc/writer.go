package ipc

import (
	"fmt"
	"sync"
	"time"

	"github.com/xKoRx/mt5/utils"
)

// JSONWriter escribe mensajes JSON line-delimited a un Pipe.
//
// Serializa writes para thread-safety y asegura que cada mensaje termine con \n.
type JSONWriter struct {
	pipe    Pipe
	mu      sync.Mutex // Serializar writes
	timeout time.Duration
}

// NewJSONWriter crea un nuevo JSONWriter para un pipe.
//
// Example:
//
//	writer := ipc.NewJSONWriter(pipe)
//	err := writer.WriteJSON(request)
func NewJSONWriter(pipe Pipe) *JSONWriter {
	return &JSONWriter{
		pipe:    pipe,
		timeout: 5 * time.Second,
	}
}

// NewJSONWriterWithTimeout crea un JSONWriter con timeout custom.
func NewJSONWriterWithTimeout(pipe Pipe, timeout time.Duration) *JSONWriter {
	writer := NewJSONWriter(pipe)
	writer.timeout = timeout
	return writer
}

// WriteLine escribe una línea de bytes al pipe.
//
// Agrega \n automáticamente si no está presente.
// Es thread-safe (serializa writes con mutex).
func (w *JSONWriter) WriteLine(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	data = utils.EnsureNewlineBytes(data)

	if w.timeout > 0 {
		if err := w.pipe.SetWriteDeadline(time.Now().Add(w.timeout)); err != nil {
			return err
		}
	}

	n, err := w.pipe.Write(data)
	if err != nil {
		return fmt.Errorf("write failed: %w", err)
	}

	if n != len(data) {
		return fmt.Errorf("incomplete write: wrote %d of %d bytes", n, len(data))
	}

	return nil
}

// WriteMessage serializa y escribe un map como mensaje JSON line-delimited.
func (w *JSONWriter) WriteMessage(msg map[string]interface{}) error {
	jsonBytes, err := utils.MapToJSON(msg)
	if err != nil {
		return fmt.Errorf("failed to serialize message: %w", err)
	}

	return w.WriteLine(jsonBytes)
}

// WriteJSON escribe cualquier valor serializable a JSON.
//
// Camino normal para los structs tipados del protocolo del bridge.
func (w *JSONWriter) WriteJSON(v interface{}) error {
	jsonBytes, err := utils.MarshalJSON(v)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	return w.WriteLine(jsonBytes)
}

// SetTimeout establece el timeout para operaciones de escritura.
func (w *JSONWriter) SetTimeout(timeout time.Duration) {
	w.timeout = timeout
}
