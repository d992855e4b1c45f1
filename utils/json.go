package utils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ValidateJSON verifica si los datos son JSON válido.
//
// Example:
//
//	data := []byte(`{"type":"request","method":"symbol_info"}`)
//	err := utils.ValidateJSON(data)
func ValidateJSON(data []byte) error {
	var js interface{}
	return json.Unmarshal(data, &js)
}

// PrettyPrint formatea JSON con indentación para debugging.
func PrettyPrint(data []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return string(data) // Retornar original si falla
	}
	return buf.String()
}

// MarshalJSON serializa cualquier valor a JSON.
func MarshalJSON(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// UnmarshalJSON deserializa JSON a un valor.
func UnmarshalJSON(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// JSONToMap convierte JSON a map[string]interface{}.
//
// Útil para parsing de mensajes JSON dinámicos del bridge EA.
//
// Example:
//
//	data := []byte(`{"type":"tick","symbol":"XAUUSD"}`)
//	m, err := utils.JSONToMap(data)
//	// m["type"] => "tick"
func JSONToMap(data []byte) (map[string]interface{}, error) {
	var result map[string]interface{}
	err := json.Unmarshal(data, &result)
	return result, err
}

// MapToJSON convierte un map a JSON.
func MapToJSON(m map[string]interface{}) ([]byte, error) {
	return json.Marshal(m)
}

// EnsureNewlineBytes asegura que los bytes JSON terminen con \n (line-delimited).
func EnsureNewlineBytes(data []byte) []byte {
	if len(data) == 0 || data[len(data)-1] != '\n' {
		return append(data, '\n')
	}
	return data
}

// ExtractField extrae un campo de un JSON parseado a map.
//
// Soporta campos anidados con notación de punto.
//
// Example:
//
//	tickSymbol := utils.ExtractField(msg, "payload.symbol")
func ExtractField(m map[string]interface{}, path string) interface{} {
	parts := strings.Split(path, ".")
	var current interface{} = m

	for _, part := range parts {
		switch v := current.(type) {
		case map[string]interface{}:
			var ok bool
			current, ok = v[part]
			if !ok {
				return nil
			}
		default:
			return nil
		}
	}

	return current
}

// ExtractString es como ExtractField pero retorna string.
//
// Si el campo no existe o no es string, retorna "".
func ExtractString(m map[string]interface{}, path string) string {
	v := ExtractField(m, path)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// ExtractInt64 es como ExtractField pero retorna int64.
//
// Si el campo no existe o no es numérico, retorna 0.
func ExtractInt64(m map[string]interface{}, path string) int64 {
	v := ExtractField(m, path)
	switch val := v.(type) {
	case int64:
		return val
	case int:
		return int64(val)
	case float64:
		return int64(val)
	}
	return 0
}

// ExtractFloat64 es como ExtractField pero retorna float64.
func ExtractFloat64(m map[string]interface{}, path string) float64 {
	v := ExtractField(m, path)
	switch val := v.(type) {
	case float64:
		return val
	case int64:
		return float64(val)
	case int:
		return float64(val)
	}
	return 0
}

// ExtractBool es como ExtractField pero retorna bool.
func ExtractBool(m map[string]interface{}, path string) bool {
	v := ExtractField(m, path)
	if b, ok := v.(bool); ok {
		return b
	}
	return false
}

// ToJSONString convierte cualquier valor a JSON string.
//
// En caso de error, retorna string vacío.
func ToJSONString(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

// MustMarshalJSON serializa a JSON o entra en pánico.
//
// Útil para casos donde el error es catastrófico.
func MustMarshalJSON(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("MustMarshalJSON: %v", err))
	}
	return data
}
