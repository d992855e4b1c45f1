// Package utils provee utilidades comunes para la librería mt5.
package utils

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"time"
)

// GenerateUUIDv7 genera un UUID v7 (ordenable por tiempo).
//
// Los primeros 48 bits llevan el timestamp Unix en milisegundos, el resto
// es random. Esto permite correlacionar comandos hacia el terminal en orden
// cronológico sin coordinación adicional.
//
// Example:
//
//	id := utils.GenerateUUIDv7()
//	// => "01920d5e-9a3f-7abc-8def-123456789abc"
func GenerateUUIDv7() string {
	ts := time.Now().UnixMilli()

	randomBytes := make([]byte, 10)
	if _, err := rand.Read(randomBytes); err != nil {
		// Fallback a reloj de alta resolución si crypto/rand falla
		binary.BigEndian.PutUint64(randomBytes, uint64(time.Now().UnixNano()))
	}

	uuid := make([]byte, 16)

	// Timestamp (48 bits) en los primeros 6 bytes
	binary.BigEndian.PutUint64(uuid[0:8], uint64(ts<<16))
	copy(uuid[6:], randomBytes)

	// Version 7 en el nibble alto del byte 6
	uuid[6] = (uuid[6] & 0x0F) | 0x70

	// Variant RFC 4122 en los 2 bits altos del byte 8
	uuid[8] = (uuid[8] & 0x3F) | 0x80

	return fmt.Sprintf("%08x-%04x-%04x-%04x-%012x",
		binary.BigEndian.Uint32(uuid[0:4]),
		binary.BigEndian.Uint16(uuid[4:6]),
		binary.BigEndian.Uint16(uuid[6:8]),
		binary.BigEndian.Uint16(uuid[8:10]),
		uuid[10:16],
	)
}

// MustGenerateUUIDv7 es igual que GenerateUUIDv7.
//
// Se mantiene por simetría con otros Must*; GenerateUUIDv7 ya maneja el
// fallo de crypto/rand con fallback interno.
func MustGenerateUUIDv7() string {
	return GenerateUUIDv7()
}
