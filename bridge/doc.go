// Package bridge implementa la sesión de comunicación con el bridge EA
// que corre dentro del terminal MT5.
//
// La librería actúa como servidor de un Named Pipe; el EA se conecta
// como cliente y ejecuta los comandos contra la API del terminal. El
// protocolo es JSON line-delimited con correlación por command_id
// (UUIDv7): cada request espera su response, y el EA puede además
// empujar ticks, velas y eventos sin solicitud previa.
//
// Session es el único punto de entrada: serializa escrituras, enruta
// respuestas a las llamadas pendientes y reconecta con backoff
// exponencial cuando el EA se cae (recompilación, cambio de chart,
// reinicio del terminal).
package bridge
