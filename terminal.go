package mt5

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/xKoRx/mt5/bridge"
	"github.com/xKoRx/mt5/domain"
	"github.com/xKoRx/mt5/telemetry"
	"github.com/xKoRx/mt5/utils"
)

// MinSupportedBuild es el build mínimo del terminal con el que el
// protocolo del bridge está probado.
const MinSupportedBuild = 3800

// TerminalService consulta el estado y propiedades del terminal MT5.
type TerminalService struct {
	tx        bridge.Transport
	telemetry *telemetry.Client
}

// NewTerminalService crea el servicio de terminal.
func NewTerminalService(tx bridge.Transport, tel *telemetry.Client) *TerminalService {
	if tel == nil {
		tel = telemetry.NewNop()
	}
	return &TerminalService{tx: tx, telemetry: tel}
}

// Get retorna el snapshot completo del terminal.
func (s *TerminalService) Get(ctx context.Context) (*domain.TerminalInfo, error) {
	var info domain.TerminalInfo
	if err := s.tx.Call(ctx, bridge.MethodTerminalInfo, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// GetAttribute retorna un atributo puntual del terminal por nombre.
func (s *TerminalService) GetAttribute(ctx context.Context, name string) (interface{}, error) {
	info, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(name) {
	case "connected":
		return info.Connected, nil
	case "trade_allowed":
		return info.TradeAllowed, nil
	case "dlls_allowed":
		return info.DLLsAllowed, nil
	case "build":
		return info.Build, nil
	case "name":
		return info.Name, nil
	case "company":
		return info.Company, nil
	case "language":
		return info.Language, nil
	case "path":
		return info.Path, nil
	case "data_path":
		return info.DataPath, nil
	case "maxbars":
		return info.MaxBars, nil
	case "ping_last":
		return info.PingLastMicros, nil
	default:
		return nil, domain.NewError(domain.ErrInvalidRequest,
			fmt.Sprintf("unknown terminal attribute %q", name))
	}
}

// TerminalCheck resultado de las comprobaciones del terminal.
type TerminalCheck struct {
	Connected    bool `json:"connected"`
	TradeAllowed bool `json:"trade_allowed"`
	DLLsAllowed  bool `json:"dlls_allowed"`
	Community    bool `json:"community"`
}

// Check ejecuta las comprobaciones básicas del terminal.
func (s *TerminalService) Check(ctx context.Context) (*TerminalCheck, error) {
	info, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	return &TerminalCheck{
		Connected:    info.Connected,
		TradeAllowed: info.TradeAllowed,
		DLLsAllowed:  info.DLLsAllowed,
		Community:    info.CommunityConnection,
	}, nil
}

// Properties agrupa propiedades del terminal por categoría.
func (s *TerminalService) Properties(ctx context.Context) (map[string]map[string]interface{}, error) {
	info, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}

	return map[string]map[string]interface{}{
		"resources": {
			"path":            info.Path,
			"data_path":       info.DataPath,
			"commondata_path": info.CommonDataPath,
		},
		"display": {
			"name":     info.Name,
			"company":  info.Company,
			"language": info.Language,
			"build":    info.Build,
		},
		"limits": {
			"maxbars":  info.MaxBars,
			"codepage": info.CodePage,
		},
		"network": {
			"connected":      info.Connected,
			"ping_last_us":   info.PingLastMicros,
			"retransmission": info.Retransmission,
		},
	}, nil
}

// Summary retorna un resumen compacto del terminal.
func (s *TerminalService) Summary(ctx context.Context) (map[string]interface{}, error) {
	info, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"name":          info.Name,
		"company":       info.Company,
		"build":         info.Build,
		"connected":     info.Connected,
		"trade_allowed": info.TradeAllowed,
		"dlls_allowed":  info.DLLsAllowed,
		"ping_last_us":  info.PingLastMicros,
	}, nil
}

// PrintInfo escribe una tabla legible con el estado del terminal.
func (s *TerminalService) PrintInfo(ctx context.Context, w io.Writer) error {
	info, err := s.Get(ctx)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Property", "Value"})
	table.SetBorder(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	rows := [][]string{
		{"Name", info.Name},
		{"Company", info.Company},
		{"Build", fmt.Sprintf("%d", info.Build)},
		{"Language", info.Language},
		{"Connected", fmt.Sprintf("%v", info.Connected)},
		{"Trade allowed", fmt.Sprintf("%v", info.TradeAllowed)},
		{"DLLs allowed", fmt.Sprintf("%v", info.DLLsAllowed)},
		{"Ping (us)", fmt.Sprintf("%d", info.PingLastMicros)},
		{"Max bars", fmt.Sprintf("%d", info.MaxBars)},
		{"Path", info.Path},
		{"Data path", info.DataPath},
	}
	table.AppendBulk(rows)
	table.Render()
	return nil
}

// Export exporta el snapshot del terminal como JSON indentado.
func (s *TerminalService) Export(ctx context.Context) ([]byte, error) {
	info, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	data, err := utils.MarshalJSON(info)
	if err != nil {
		return nil, err
	}
	return []byte(utils.PrettyPrint(data)), nil
}

// CompatibilityIssue describe una incompatibilidad detectada.
type CompatibilityIssue struct {
	Severity string `json:"severity"` // "error" o "warning"
	Message  string `json:"message"`
}

// CheckCompatibility verifica que el terminal puede operar con la librería.
func (s *TerminalService) CheckCompatibility(ctx context.Context) ([]CompatibilityIssue, error) {
	info, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}

	var issues []CompatibilityIssue
	if info.Build < MinSupportedBuild {
		issues = append(issues, CompatibilityIssue{
			Severity: "error",
			Message:  fmt.Sprintf("terminal build %d below minimum supported %d", info.Build, MinSupportedBuild),
		})
	}
	if !info.Connected {
		issues = append(issues, CompatibilityIssue{
			Severity: "warning",
			Message:  "terminal is not connected to the trade server",
		})
	}
	if !info.TradeAllowed {
		issues = append(issues, CompatibilityIssue{
			Severity: "warning",
			Message:  "algorithmic trading is disabled in the terminal",
		})
	}
	if !info.DLLsAllowed {
		issues = append(issues, CompatibilityIssue{
			Severity: "error",
			Message:  "DLL imports are disabled; the bridge EA cannot reach the pipe",
		})
	}
	if info.TradeAPIDisabled {
		issues = append(issues, CompatibilityIssue{
			Severity: "error",
			Message:  "trade API is disabled for this account",
		})
	}
	return issues, nil
}
