// Package domain provee modelos de dominio y lógica de negocio para el
// cliente MT5.
//
// Contiene los tipos que viajan entre la librería y el bridge EA
// (cuenta, símbolo, terminal, ticks, velas, órdenes, posiciones, deals),
// la taxonomía de errores con mapeo de retcodes del trade server, y la
// matemática de volumen y riesgo que se aplica antes de enviar órdenes.
//
// Los valores numéricos de enums y retcodes siguen a MQL5 tal cual, de
// modo que el bridge EA los pasa al terminal sin traducción.
package domain
