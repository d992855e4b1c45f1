// Package ipc provee la capa de transporte entre la librería y el bridge EA.
//
// La librería crea un Named Pipe de Windows (server) y el bridge EA que
// corre dentro del terminal MT5 se conecta como cliente vía DLL. El
// protocolo es JSON line-delimited (cada mensaje termina con \n), el
// único formato que MQL5 puede parsear sin dependencias.
//
// # Uso básico (server)
//
//	pipe, err := ipc.NewWindowsPipeServer("mt5_bridge_12345")
//	if err != nil {
//	    return err
//	}
//	defer pipe.Close()
//
//	if err := pipe.WaitForConnection(ctx); err != nil {
//	    return err
//	}
//
//	reader := ipc.NewJSONReader(pipe)
//	for {
//	    msg, err := reader.ReadMessage()
//	    if err != nil {
//	        break
//	    }
//	    // Procesar mensaje...
//	}
//
// La reconexión es responsabilidad del caller (ver bridge.Session).
package ipc

import (
	"context"
	"io"
	"time"
)

// Pipe define la interfaz para un Named Pipe bidireccional.
type Pipe interface {
	// Read lee datos del pipe.
	Read(p []byte) (n int, err error)

	// Write escribe datos al pipe.
	Write(p []byte) (n int, err error)

	// Close cierra el pipe y libera recursos.
	Close() error

	// SetReadDeadline establece el deadline para operaciones de lectura.
	SetReadDeadline(t time.Time) error

	// SetWriteDeadline establece el deadline para operaciones de escritura.
	SetWriteDeadline(t time.Time) error
}

// PipeServer define la interfaz para un servidor de Named Pipes.
//
// El servidor crea el pipe y espera la conexión del bridge EA.
type PipeServer interface {
	Pipe

	// WaitForConnection espera a que un cliente se conecte.
	//
	// Bloquea hasta que un cliente se conecta o el contexto se cancela.
	WaitForConnection(ctx context.Context) error

	// DisconnectClient cierra solo la conexión actual sin cerrar el listener.
	//
	// Permite seguir aceptando conexiones después de que el EA se
	// desconecte (recompilación, cambio de chart, reinicio del terminal).
	DisconnectClient() error

	// Name retorna el nombre del pipe.
	Name() string
}

// PipeConfig configuración para crear Named Pipes.
type PipeConfig struct {
	// Name nombre del pipe (sin el prefijo \\.\pipe\)
	Name string

	// BufferSize tamaño del buffer del pipe (bytes)
	BufferSize int

	// Timeout timeout por defecto para operaciones (0 = sin timeout)
	Timeout time.Duration

	// MaxConnections número máximo de conexiones simultáneas (solo server)
	MaxConnections int
}

// DefaultPipeConfig retorna una configuración por defecto.
//
// El buffer de 64KB acomoda respuestas de históricos grandes (copy_rates
// puede devolver miles de velas por línea).
func DefaultPipeConfig(name string) *PipeConfig {
	return &PipeConfig{
		Name:           name,
		BufferSize:     64 * 1024,
		Timeout:        5 * time.Second,
		MaxConnections: 1, // Un bridge EA por terminal
	}
}

// ErrPipeClosed indica que el pipe fue cerrado.
var ErrPipeClosed = io.ErrClosedPipe

// ErrTimeout indica que una operación excedió el timeout.
var ErrTimeout = context.DeadlineExceeded

// ErrInvalidMessage indica que el mensaje recibido no es JSON válido.
type ErrInvalidMessage struct {
	Reason string
	Data   []byte
}

func (e *ErrInvalidMessage) Error() string {
	return "invalid message: " + e.Reason
}

// NewErrInvalidMessage crea un error de mensaje inválido.
func NewErrInvalidMessage(reason string, data []byte) error {
	return &ErrInvalidMessage{
		Reason: reason,
		Data:   data,
	}
}
