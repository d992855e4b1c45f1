package ipc

import (
	"bufio"
	"bytes"
	"io"
	"time"

	"github.com/xKoRx/mt5/utils"
)

// JSONReader lee mensajes JSON line-delimited desde un Pipe.
//
// Usa buffering para lecturas eficientes y parsea JSON automáticamente.
type JSONReader struct {
	pipe    Pipe
	scanner *bufio.Scanner
	timeout time.Duration
}

// NewJSONReader crea un nuevo JSONReader para un pipe.
//
// Example:
//
//	reader := ipc.NewJSONReader(pipe)
//	msg, err := reader.ReadMessage()
//	// msg["type"] => "response"
func NewJSONReader(pipe Pipe) *JSONReader {
	scanner := bufio.NewScanner(pipe)
	// Buffer grande: una respuesta de copy_rates con miles de velas
	// viaja en una sola línea (default 64KB, máximo 4MB)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	return &JSONReader{
		pipe:    pipe,
		scanner: scanner,
		timeout: 5 * time.Second,
	}
}

// NewJSONReaderWithTimeout crea un JSONReader con timeout custom.
func NewJSONReaderWithTimeout(pipe Pipe, timeout time.Duration) *JSONReader {
	reader := NewJSONReader(pipe)
	reader.timeout = timeout
	return reader
}

// ParseJSONLine parsea una línea JSON a map (helper para logs/debug).
func ParseJSONLine(line []byte) (map[string]interface{}, error) {
	b := bytes.TrimSpace(line)
	if len(b) == 0 {
		return nil, NewErrInvalidMessage("empty line", b)
	}
	if err := utils.ValidateJSON(b); err != nil {
		return nil, NewErrInvalidMessage("invalid JSON", b)
	}
	return utils.JSONToMap(b)
}

// ReadLine lee una línea completa del pipe (hasta \n).
//
// Retorna la línea sin el \n final.
func (r *JSONReader) ReadLine() ([]byte, error) {
	if r.timeout > 0 {
		if err := r.pipe.SetReadDeadline(time.Now().Add(r.timeout)); err != nil {
			return nil, err
		}
	}

	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}

	line := r.scanner.Bytes()

	// Copiar para evitar reutilización del buffer interno
	result := make([]byte, len(line))
	copy(result, line)

	return result, nil
}

// ReadMessage lee y parsea un mensaje JSON line-delimited.
//
// Formato esperado:
//
//	{"type":"response","command_id":"...","payload":{...}}\n
func (r *JSONReader) ReadMessage() (map[string]interface{}, error) {
	line, err := r.ReadLine()
	if err != nil {
		return nil, err
	}

	return ParseJSONLine(line)
}

// ReadRaw lee una línea y la deserializa sobre un struct tipado.
//
// Evita el paso intermedio por map cuando el shape del mensaje es conocido.
func (r *JSONReader) ReadRaw(v interface{}) error {
	line, err := r.ReadLine()
	if err != nil {
		return err
	}
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return NewErrInvalidMessage("empty line", line)
	}
	if err := utils.UnmarshalJSON(line, v); err != nil {
		return NewErrInvalidMessage(err.Error(), line)
	}
	return nil
}

// SetTimeout establece el timeout para operaciones de lectura.
func (r *JSONReader) SetTimeout(timeout time.Duration) {
	r.timeout = timeout
}

// PeekType lee el campo "type" de un mensaje.
//
// NOTA: consume el mensaje. Útil para routing rápido.
func (r *JSONReader) PeekType() (string, map[string]interface{}, error) {
	msg, err := r.ReadMessage()
	if err != nil {
		return "", nil, err
	}

	msgType := utils.ExtractString(msg, "type")
	return msgType, msg, nil
}
