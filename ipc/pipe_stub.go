//go:build !windows
// +build !windows

package ipc

import (
	"fmt"
)

// Named Pipes solo están soportados en Windows, que es donde corre el
// terminal MT5. Estos stubs permiten compilar la librería en otras
// plataformas para desarrollo y tests (los tests usan pipes en memoria).

// NewWindowsPipeServer retorna error en plataformas no-Windows.
func NewWindowsPipeServer(name string) (PipeServer, error) {
	return nil, fmt.Errorf("named pipes are only supported on Windows")
}

// NewWindowsPipeServerWithConfig retorna error en plataformas no-Windows.
func NewWindowsPipeServerWithConfig(config *PipeConfig) (PipeServer, error) {
	return nil, fmt.Errorf("named pipes are only supported on Windows")
}

// NewWindowsPipeClient retorna error en plataformas no-Windows.
func NewWindowsPipeClient(name string) (Pipe, error) {
	return nil, fmt.Errorf("named pipes are only supported on Windows")
}

// NewWindowsPipeClientWithConfig retorna error en plataformas no-Windows.
func NewWindowsPipeClientWithConfig(config *PipeConfig) (Pipe, error) {
	return nil, fmt.Errorf("named pipes are only supported on Windows")
}
