package utils

import (
	"sync/atomic"
	"time"
)

// NowUnixMilli retorna el timestamp actual en milisegundos desde Unix epoch.
//
// Mismo formato que los timestamps que reporta el bridge EA (TimeGMT en ms).
func NowUnixMilli() int64 {
	return time.Now().UnixMilli()
}

// NowUnixMicro retorna el timestamp actual en microsegundos desde Unix epoch.
//
// Útil para mediciones de latencia de alta precisión (ping al terminal).
func NowUnixMicro() int64 {
	return time.Now().UnixMicro()
}

// UnixMilliToTime convierte un timestamp Unix en milisegundos a time.Time.
func UnixMilliToTime(ms int64) time.Time {
	return time.UnixMilli(ms)
}

// TimeToUnixMilli convierte un time.Time a timestamp Unix en milisegundos.
func TimeToUnixMilli(t time.Time) int64 {
	return t.UnixMilli()
}

// ElapsedMs calcula los milisegundos transcurridos desde un timestamp dado.
func ElapsedMs(startMs int64) int64 {
	return NowUnixMilli() - startMs
}

// ElapsedMsSince calcula los milisegundos transcurridos desde un time.Time dado.
func ElapsedMsSince(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}

// ServerClock mantiene el offset entre el reloj local y el reloj del
// servidor del broker, estimado a partir de los timestamps que reporta
// el terminal en cada tick.
//
// Los brokers MT5 reportan tiempos en su propia zona; el offset permite
// convertir rangos locales a tiempo de servidor al pedir históricos.
type ServerClock struct {
	offsetMs atomic.Int64
}

// Sync actualiza el offset a partir de un timestamp de servidor observado.
func (sc *ServerClock) Sync(serverMs int64) {
	if serverMs <= 0 {
		return
	}
	sc.offsetMs.Store(serverMs - NowUnixMilli())
}

// OffsetMs retorna el offset actual (servidor - local) en milisegundos.
func (sc *ServerClock) OffsetMs() int64 {
	return sc.offsetMs.Load()
}

// NowServerMs retorna la hora estimada del servidor en milisegundos.
func (sc *ServerClock) NowServerMs() int64 {
	return NowUnixMilli() + sc.offsetMs.Load()
}

// ToServerMs convierte un timestamp local a tiempo de servidor.
func (sc *ServerClock) ToServerMs(localMs int64) int64 {
	return localMs + sc.offsetMs.Load()
}

// ToLocalMs convierte un timestamp de servidor a tiempo local.
func (sc *ServerClock) ToLocalMs(serverMs int64) int64 {
	return serverMs - sc.offsetMs.Load()
}
