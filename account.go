package mt5

import (
	"context"
	"fmt"
	"strings"

	"github.com/xKoRx/mt5/bridge"
	"github.com/xKoRx/mt5/domain"
	"github.com/xKoRx/mt5/telemetry"
	"github.com/xKoRx/mt5/utils"
)

// AccountService consulta el estado de la cuenta activa en el terminal.
type AccountService struct {
	tx        bridge.Transport
	telemetry *telemetry.Client
}

// NewAccountService crea el servicio de cuenta.
func NewAccountService(tx bridge.Transport, tel *telemetry.Client) *AccountService {
	if tel == nil {
		tel = telemetry.NewNop()
	}
	return &AccountService{tx: tx, telemetry: tel}
}

// Get retorna el snapshot completo de la cuenta.
func (s *AccountService) Get(ctx context.Context) (*domain.AccountInfo, error) {
	var info domain.AccountInfo
	if err := s.tx.Call(ctx, bridge.MethodAccountInfo, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// GetAttribute retorna un atributo puntual de la cuenta por nombre
// (balance, equity, margin, margin_free, margin_level, leverage,
// currency, server, name, login, profit, credit).
func (s *AccountService) GetAttribute(ctx context.Context, name string) (interface{}, error) {
	info, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(name) {
	case "login":
		return info.Login, nil
	case "balance":
		return info.Balance, nil
	case "equity":
		return info.Equity, nil
	case "margin":
		return info.Margin, nil
	case "margin_free":
		return info.MarginFree, nil
	case "margin_level":
		return info.MarginLevel, nil
	case "leverage":
		return info.Leverage, nil
	case "currency":
		return info.Currency, nil
	case "server":
		return info.Server, nil
	case "name":
		return info.Name, nil
	case "company":
		return info.Company, nil
	case "profit":
		return info.Profit, nil
	case "credit":
		return info.Credit, nil
	default:
		return nil, domain.NewError(domain.ErrInvalidRequest,
			fmt.Sprintf("unknown account attribute %q", name))
	}
}

// AccountCheck resultado de las comprobaciones de la cuenta.
type AccountCheck struct {
	TradeAllowed  bool `json:"trade_allowed"`
	ExpertAllowed bool `json:"expert_allowed"`
	MarginOK      bool `json:"margin_ok"`
	IsDemo        bool `json:"is_demo"`
	IsReal        bool `json:"is_real"`
	Connected     bool `json:"connected"`
}

// Check ejecuta todas las comprobaciones de la cuenta de una vez.
//
// MarginOK exige margin level por encima del margin call del broker
// (o sin posiciones, margin cero).
func (s *AccountService) Check(ctx context.Context) (*AccountCheck, error) {
	info, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}

	marginOK := info.Margin == 0 || info.MarginLevel > info.MarginSOCall

	return &AccountCheck{
		TradeAllowed:  info.TradeAllowed,
		ExpertAllowed: info.TradeExpert,
		MarginOK:      marginOK,
		IsDemo:        info.IsDemo(),
		IsReal:        info.IsReal(),
		Connected:     s.tx.Connected(),
	}, nil
}

// AccountHealth métricas calculadas de salud de la cuenta.
type AccountHealth struct {
	MarginLevel      float64 `json:"margin_level"`       // porcentaje
	DrawdownPercent  float64 `json:"drawdown_percent"`   // balance vs equity
	DrawdownAbsolute float64 `json:"drawdown_absolute"`  // en divisa de la cuenta
	FreeMarginRatio  float64 `json:"free_margin_ratio"`  // margin_free / equity
	ProfitPercent    float64 `json:"profit_percent"`     // flotante vs balance
	UsedMarginRatio  float64 `json:"used_margin_ratio"`  // margin / equity
}

// Calculate deriva las métricas de salud del snapshot actual.
//
// Con cuenta plana (sin posiciones) los drawdowns son cero.
func (s *AccountService) Calculate(ctx context.Context) (*AccountHealth, error) {
	info, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}

	h := &AccountHealth{MarginLevel: info.MarginLevel}

	if info.Balance > 0 && info.Equity < info.Balance {
		h.DrawdownAbsolute = info.Balance - info.Equity
		h.DrawdownPercent = h.DrawdownAbsolute / info.Balance * 100
	}
	if info.Equity > 0 {
		h.FreeMarginRatio = info.MarginFree / info.Equity
		h.UsedMarginRatio = info.Margin / info.Equity
	}
	if info.Balance > 0 {
		h.ProfitPercent = info.Profit / info.Balance * 100
	}

	return h, nil
}

// MarginRequired calcula el margen para abrir volume lotes de symbol.
//
// Delegado al terminal (order_calc_margin): el cálculo depende del
// margin mode de la cuenta y del tipo de instrumento.
func (s *AccountService) MarginRequired(ctx context.Context, symbol string, orderType domain.OrderType, volume, price float64) (float64, error) {
	params := map[string]interface{}{
		"symbol": symbol,
		"type":   orderType,
		"volume": volume,
		"price":  price,
	}
	var out struct {
		Margin float64 `json:"margin"`
	}
	if err := s.tx.Call(ctx, bridge.MethodOrderCalcMargin, params, &out); err != nil {
		return 0, err
	}
	return out.Margin, nil
}

// ValidateCredentials valida formato de credenciales sin tocar el terminal.
func (s *AccountService) ValidateCredentials(login int64, password, server string) error {
	return domain.ValidateCredentials(login, password, server)
}

// Summary retorna un resumen compacto de la cuenta como mapa.
func (s *AccountService) Summary(ctx context.Context) (map[string]interface{}, error) {
	info, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}

	mode := "demo"
	if info.IsReal() {
		mode = "real"
	} else if info.TradeMode == 1 {
		mode = "contest"
	}

	return map[string]interface{}{
		"login":        info.Login,
		"name":         info.Name,
		"server":       info.Server,
		"company":      info.Company,
		"currency":     info.Currency,
		"mode":         mode,
		"leverage":     fmt.Sprintf("1:%d", info.Leverage),
		"balance":      info.Balance,
		"equity":       info.Equity,
		"margin":       info.Margin,
		"margin_free":  info.MarginFree,
		"margin_level": info.MarginLevel,
		"profit":       info.Profit,
	}, nil
}

// ExportJSON exporta el snapshot de la cuenta como JSON indentado.
func (s *AccountService) ExportJSON(ctx context.Context) ([]byte, error) {
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

// ExportCSV exporta el snapshot como CSV de una fila (header + valores).
func (s *AccountService) ExportCSV(ctx context.Context) ([]byte, error) {
	info, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString("login,name,server,currency,leverage,balance,credit,equity,margin,margin_free,margin_level,profit\n")
	b.WriteString(fmt.Sprintf("%d,%s,%s,%s,%d,%.2f,%.2f,%.2f,%.2f,%.2f,%.2f,%.2f\n",
		info.Login, csvEscape(info.Name), csvEscape(info.Server), info.Currency,
		info.Leverage, info.Balance, info.Credit, info.Equity, info.Margin,
		info.MarginFree, info.MarginLevel, info.Profit,
	))
	return []byte(b.String()), nil
}

// csvEscape protege comas y comillas en campos de texto.
func csvEscape(s string) string {
	if strings.ContainsAny(s, ",\"\n") {
		return "\"" + strings.ReplaceAll(s, "\"", "\"\"") + "\""
	}
	return s
}
