package mt5

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/xKoRx/mt5/domain"
	"github.com/xKoRx/mt5/etcd"
	"github.com/xKoRx/mt5/telemetry"
	"github.com/xKoRx/mt5/telemetry/semconv"
	"github.com/xKoRx/mt5/utils"
)

// RiskLimits acota la exposición que el RiskService permite abrir.
type RiskLimits struct {
	// MaxPositionSize es el lote máximo por posición.
	MaxPositionSize float64 `json:"max_position_size"`
	// MaxRiskPerTrade es el porcentaje máximo del balance en riesgo por trade.
	MaxRiskPerTrade float64 `json:"max_risk_per_trade"`
	// MaxTotalRisk es el porcentaje máximo del balance en riesgo agregado.
	MaxTotalRisk float64 `json:"max_total_risk"`
	// MaxPositions es la cantidad máxima de posiciones abiertas.
	MaxPositions int `json:"max_positions"`
	// MinRiskReward es el ratio mínimo reward/risk exigido cuando la
	// orden lleva SL y TP. 0 deshabilita el chequeo.
	MinRiskReward float64 `json:"min_risk_reward"`
	// MaxDrawdown es el drawdown máximo tolerado (balance vs equity, en
	// porcentaje). 0 deshabilita el chequeo.
	MaxDrawdown float64 `json:"max_drawdown"`
	// MinMarginLevel es el margin level mínimo exigido con posiciones
	// abiertas, en porcentaje. 0 deshabilita el chequeo.
	MinMarginLevel float64 `json:"min_margin_level"`
}

// DefaultRiskLimits retorna límites conservadores.
func DefaultRiskLimits() RiskLimits {
	return RiskLimits{
		MaxPositionSize: 10,
		MaxRiskPerTrade: 2,
		MaxTotalRisk:    10,
		MaxPositions:    20,
		MinRiskReward:   0,
		MaxDrawdown:     25,
		MinMarginLevel:  150,
	}
}

// RiskService calcula tamaños de posición por riesgo y valida órdenes
// contra los límites configurados.
type RiskService struct {
	account   *AccountService
	symbols   *SymbolService
	telemetry *telemetry.Client

	mu     sync.RWMutex
	limits RiskLimits
}

// NewRiskService crea el servicio de riesgo con los límites por defecto.
func NewRiskService(account *AccountService, symbols *SymbolService, tel *telemetry.Client) *RiskService {
	if tel == nil {
		tel = telemetry.NewNop()
	}
	return &RiskService{
		account:   account,
		symbols:   symbols,
		telemetry: tel,
		limits:    DefaultRiskLimits(),
	}
}

// Limits retorna los límites vigentes.
func (s *RiskService) Limits() RiskLimits {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.limits
}

// SetLimits reemplaza los límites vigentes.
func (s *RiskService) SetLimits(limits RiskLimits) {
	s.mu.Lock()
	s.limits = limits
	s.mu.Unlock()
}

// LoadLimits refresca los límites desde etcd (claves risk/*). Las
// claves ausentes conservan el valor vigente.
func (s *RiskService) LoadLimits(ctx context.Context) error {
	cli := etcd.Default()
	if cli == nil {
		return domain.NewError(domain.ErrNotConnected, "etcd client not initialized")
	}

	current := s.Limits()
	limits := RiskLimits{}
	var err error

	if limits.MaxPositionSize, err = cli.GetVarFloatWithDefault(ctx, "risk/max_position_size", current.MaxPositionSize); err != nil {
		return err
	}
	if limits.MaxRiskPerTrade, err = cli.GetVarFloatWithDefault(ctx, "risk/max_risk_per_trade", current.MaxRiskPerTrade); err != nil {
		return err
	}
	if limits.MaxTotalRisk, err = cli.GetVarFloatWithDefault(ctx, "risk/max_total_risk", current.MaxTotalRisk); err != nil {
		return err
	}
	if limits.MaxPositions, err = cli.GetVarIntWithDefault(ctx, "risk/max_positions", current.MaxPositions); err != nil {
		return err
	}
	if limits.MinRiskReward, err = cli.GetVarFloatWithDefault(ctx, "risk/min_risk_reward", current.MinRiskReward); err != nil {
		return err
	}
	if limits.MaxDrawdown, err = cli.GetVarFloatWithDefault(ctx, "risk/max_drawdown", current.MaxDrawdown); err != nil {
		return err
	}
	if limits.MinMarginLevel, err = cli.GetVarFloatWithDefault(ctx, "risk/min_margin_level", current.MinMarginLevel); err != nil {
		return err
	}

	s.SetLimits(limits)
	s.telemetry.Info(ctx, "Risk limits loaded",
		semconv.Mt5.Component.String(semconv.ComponentValues.Risk),
	)
	return nil
}

// ---------- Sizing ----------

// SizeRequest describe el trade a dimensionar.
type SizeRequest struct {
	Symbol     string
	EntryPrice float64
	StopLoss   float64
	// RiskPercent arriesga este porcentaje del balance. Excluyente con
	// RiskAmount; si ambos vienen, gana RiskAmount.
	RiskPercent float64
	// RiskAmount arriesga este monto en la divisa de la cuenta.
	RiskAmount float64
	// CostPerLot agrega un costo fijo por lote (comisión round-trip).
	CostPerLot float64
}

// SizeResult resultado del cálculo de tamaño.
type SizeResult struct {
	LotSize    float64 `json:"lot_size"`
	RawLotSize float64 `json:"raw_lot_size"` // antes del clamp a la spec
	RiskAmount float64 `json:"risk_amount"`  // riesgo real del lote final
	Clamped    bool    `json:"clamped"`
}

// CalculateSize calcula el lote que arriesga el monto pedido entre la
// entrada y el stop loss, clampeado a la spec del símbolo y al límite
// MaxPositionSize.
func (s *RiskService) CalculateSize(ctx context.Context, req SizeRequest) (*SizeResult, error) {
	if req.StopLoss <= 0 || req.EntryPrice <= 0 {
		return nil, domain.NewError(domain.ErrInvalidStops,
			"entry price and stop loss are required for position sizing")
	}

	info, err := s.symbols.Info(ctx, req.Symbol)
	if err != nil {
		return nil, err
	}
	if info.Point <= 0 || info.TradeTickValue <= 0 {
		return nil, domain.NewError(domain.ErrSpecMissing,
			fmt.Sprintf("symbol %s has no point/tick value", req.Symbol))
	}

	riskAmount := req.RiskAmount
	if riskAmount <= 0 {
		if req.RiskPercent <= 0 {
			return nil, domain.NewError(domain.ErrInvalidRequest,
				"either risk_amount or risk_percent must be positive")
		}
		acc, err := s.account.Get(ctx)
		if err != nil {
			return nil, err
		}
		riskAmount = acc.Balance * req.RiskPercent / 100
	}

	distance := req.EntryPrice - req.StopLoss
	if distance < 0 {
		distance = -distance
	}
	distancePoints := distance / info.Point

	rawLot, err := domain.CalculateLotByRiskWithCosts(distancePoints, info.TradeTickValue, riskAmount, req.CostPerLot)
	if err != nil {
		return nil, err
	}

	spec := info.VolumeSpec()
	limits := s.Limits()
	if limits.MaxPositionSize > 0 && limits.MaxPositionSize < spec.MaxVolume {
		spec.MaxVolume = limits.MaxPositionSize
	}

	// ClampLotSize reporta el ajuste como *ValidationError; sólo un
	// TradingError (spec inválida) es fatal.
	lot, clampErr := domain.ClampLotSize(spec, rawLot)
	if clampErr != nil {
		var vErr *domain.ValidationError
		if !errors.As(clampErr, &vErr) {
			return nil, clampErr
		}
	}

	realRisk, err := domain.RiskAmountForLot(lot, distancePoints, info.TradeTickValue, req.CostPerLot)
	if err != nil {
		return nil, err
	}

	result := &SizeResult{
		LotSize:    lot,
		RawLotSize: rawLot,
		RiskAmount: realRisk,
		Clamped:    clampErr != nil,
	}

	s.telemetry.Debug(ctx, "Position sized",
		semconv.Mt5.Symbol.String(req.Symbol),
		semconv.Mt5.LotSize.Float64(lot),
		semconv.Mt5.RiskAmount.Float64(realRisk),
	)
	return result, nil
}

// CalculateRisk retorna el monto en riesgo de un trade hipotético entre
// entrada y stop loss, para el lote dado.
func (s *RiskService) CalculateRisk(ctx context.Context, symbol string, lot, entryPrice, stopLoss float64) (float64, error) {
	if stopLoss <= 0 || entryPrice <= 0 {
		return 0, domain.NewError(domain.ErrInvalidStops,
			"entry price and stop loss are required")
	}
	info, err := s.symbols.Info(ctx, symbol)
	if err != nil {
		return 0, err
	}
	if info.Point <= 0 || info.TradeTickValue <= 0 {
		return 0, domain.NewError(domain.ErrSpecMissing,
			fmt.Sprintf("symbol %s has no point/tick value", symbol))
	}

	distance := entryPrice - stopLoss
	if distance < 0 {
		distance = -distance
	}
	return domain.RiskAmountForLot(lot, distance/info.Point, info.TradeTickValue, 0)
}

// ---------- Validación ----------

// RiskCheck resultado de la validación de una orden contra los límites.
type RiskCheck struct {
	Allowed    bool     `json:"allowed"`
	Violations []string `json:"violations,omitempty"`
	RiskAmount float64  `json:"risk_amount"`
	RiskPct    float64  `json:"risk_percent"`
}

// Validate comprueba una orden propuesta contra los límites vigentes.
//
// positions es la cantidad de posiciones ya abiertas; el caller la
// obtiene de TradeService para no acoplar ambos servicios.
func (s *RiskService) Validate(ctx context.Context, req *domain.TradeRequest, openPositions int) (*RiskCheck, error) {
	limits := s.Limits()
	check := &RiskCheck{Allowed: true}

	if limits.MaxPositionSize > 0 && req.Volume > limits.MaxPositionSize {
		check.violate(fmt.Sprintf("volume %.2f exceeds max position size %.2f",
			req.Volume, limits.MaxPositionSize))
	}
	if limits.MaxPositions > 0 && openPositions >= limits.MaxPositions {
		check.violate(fmt.Sprintf("open positions %d at limit %d",
			openPositions, limits.MaxPositions))
	}

	if req.StopLoss > 0 && req.Price > 0 {
		risk, err := s.CalculateRisk(ctx, req.Symbol, req.Volume, req.Price, req.StopLoss)
		if err != nil {
			return nil, err
		}
		check.RiskAmount = risk

		acc, err := s.account.Get(ctx)
		if err != nil {
			return nil, err
		}
		if acc.Balance > 0 {
			check.RiskPct = risk / acc.Balance * 100
			if limits.MaxRiskPerTrade > 0 && check.RiskPct > limits.MaxRiskPerTrade {
				check.violate(fmt.Sprintf("trade risk %.2f%% exceeds limit %.2f%%",
					check.RiskPct, limits.MaxRiskPerTrade))
			}
		}
	}

	if limits.MinRiskReward > 0 && req.StopLoss > 0 && req.TakeProfit > 0 && req.Price > 0 {
		risk := req.Price - req.StopLoss
		reward := req.TakeProfit - req.Price
		if req.Type.IsSell() {
			risk, reward = -risk, -reward
		}
		if risk > 0 {
			rr := reward / risk
			if rr < limits.MinRiskReward {
				check.violate(fmt.Sprintf("risk/reward %.2f below minimum %.2f",
					rr, limits.MinRiskReward))
			}
		}
	}

	if !check.Allowed {
		s.telemetry.Warn(ctx, "Order rejected by risk limits",
			semconv.Mt5.Symbol.String(req.Symbol),
			semconv.Mt5.LotSize.Float64(req.Volume),
			semconv.Mt5.RiskRejectReason.StringSlice(check.Violations),
		)
	}
	return check, nil
}

func (c *RiskCheck) violate(reason string) {
	c.Allowed = false
	c.Violations = append(c.Violations, reason)
}

// ---------- Exposición agregada ----------

// PortfolioRisk describe la exposición agregada de la cuenta.
type PortfolioRisk struct {
	OpenPositions  int     `json:"open_positions"`
	TotalVolume    float64 `json:"total_volume"`
	TotalRisk      float64 `json:"total_risk"`       // suma de riesgos a SL
	TotalRiskPct   float64 `json:"total_risk_pct"`   // sobre balance
	UnprotectedPos int     `json:"unprotected"`      // posiciones sin SL
	FloatingPL     float64 `json:"floating_pl"`
	WithinLimits   bool    `json:"within_limits"`
}

// Portfolio computa la exposición agregada de las posiciones dadas.
func (s *RiskService) Portfolio(ctx context.Context, positions []domain.Position) (*PortfolioRisk, error) {
	pr := &PortfolioRisk{WithinLimits: true}

	var totalRisk float64
	for _, pos := range positions {
		pr.OpenPositions++
		pr.TotalVolume += pos.Volume
		pr.FloatingPL += pos.Profit

		if pos.StopLoss <= 0 {
			pr.UnprotectedPos++
			continue
		}
		risk, err := s.CalculateRisk(ctx, pos.Symbol, pos.Volume, pos.PriceOpen, pos.StopLoss)
		if err != nil {
			return nil, err
		}
		// SL en ganancia no arriesga capital.
		if (pos.Type.IsBuy() && pos.StopLoss >= pos.PriceOpen) ||
			(pos.Type.IsSell() && pos.StopLoss <= pos.PriceOpen) {
			continue
		}
		totalRisk += risk
	}
	pr.TotalRisk = totalRisk

	acc, err := s.account.Get(ctx)
	if err != nil {
		return nil, err
	}
	if acc.Balance > 0 {
		pr.TotalRiskPct = totalRisk / acc.Balance * 100
	}

	limits := s.Limits()
	if limits.MaxTotalRisk > 0 && pr.TotalRiskPct > limits.MaxTotalRisk {
		pr.WithinLimits = false
	}
	if limits.MaxPositions > 0 && pr.OpenPositions > limits.MaxPositions {
		pr.WithinLimits = false
	}
	return pr, nil
}

// HealthCheck resultado del chequeo global de exposición, margen y drawdown.
type HealthCheck struct {
	ExposureOK  bool     `json:"exposure_ok"`
	MarginOK    bool     `json:"margin_ok"`
	DrawdownOK  bool     `json:"drawdown_ok"`
	MarginLevel float64  `json:"margin_level"`
	DrawdownPct float64  `json:"drawdown_pct"`
	TotalRisk   float64  `json:"total_risk_pct"`
	Issues      []string `json:"issues,omitempty"`
}

// OK indica si todos los chequeos pasaron.
func (h *HealthCheck) OK() bool {
	return h.ExposureOK && h.MarginOK && h.DrawdownOK
}

// Check evalúa exposición, margen y drawdown contra los límites vigentes.
func (s *RiskService) Check(ctx context.Context, positions []domain.Position) (*HealthCheck, error) {
	portfolio, err := s.Portfolio(ctx, positions)
	if err != nil {
		return nil, err
	}
	health, err := s.account.Calculate(ctx)
	if err != nil {
		return nil, err
	}

	limits := s.Limits()
	check := &HealthCheck{
		ExposureOK:  true,
		MarginOK:    true,
		DrawdownOK:  true,
		MarginLevel: health.MarginLevel,
		DrawdownPct: health.DrawdownPercent,
		TotalRisk:   portfolio.TotalRiskPct,
	}

	if !portfolio.WithinLimits {
		check.ExposureOK = false
		check.Issues = append(check.Issues, fmt.Sprintf("portfolio risk %.2f%% exceeds limits",
			portfolio.TotalRiskPct))
	}
	// Sin posiciones el margin level reportado es cero y no aplica.
	if limits.MinMarginLevel > 0 && portfolio.OpenPositions > 0 &&
		health.MarginLevel > 0 && health.MarginLevel < limits.MinMarginLevel {
		check.MarginOK = false
		check.Issues = append(check.Issues, fmt.Sprintf("margin level %.2f%% below minimum %.2f%%",
			health.MarginLevel, limits.MinMarginLevel))
	}
	if limits.MaxDrawdown > 0 && health.DrawdownPercent > limits.MaxDrawdown {
		check.DrawdownOK = false
		check.Issues = append(check.Issues, fmt.Sprintf("drawdown %.2f%% exceeds maximum %.2f%%",
			health.DrawdownPercent, limits.MaxDrawdown))
	}

	if !check.OK() {
		s.telemetry.Warn(ctx, "Account health check failed",
			semconv.Mt5.Component.String(semconv.ComponentValues.Risk),
			semconv.Mt5.RiskRejectReason.StringSlice(check.Issues),
		)
	}
	return check, nil
}

// Summary retorna los límites y la exposición actual.
func (s *RiskService) Summary(ctx context.Context, positions []domain.Position) (map[string]interface{}, error) {
	portfolio, err := s.Portfolio(ctx, positions)
	if err != nil {
		return nil, err
	}
	limits := s.Limits()
	return map[string]interface{}{
		"limits":         limits,
		"open_positions": portfolio.OpenPositions,
		"total_risk":     portfolio.TotalRisk,
		"total_risk_pct": portfolio.TotalRiskPct,
		"unprotected":    portfolio.UnprotectedPos,
		"within_limits":  portfolio.WithinLimits,
	}, nil
}

// ExportLimits exporta los límites vigentes como JSON indentado.
func (s *RiskService) ExportLimits() ([]byte, error) {
	data, err := utils.MarshalJSON(s.Limits())
	if err != nil {
		return nil, err
	}
	return []byte(utils.PrettyPrint(data)), nil
}
