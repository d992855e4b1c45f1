package mt5

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/xKoRx/mt5/bridge"
	"github.com/xKoRx/mt5/domain"
	"github.com/xKoRx/mt5/journal"
	"github.com/xKoRx/mt5/telemetry"
	"github.com/xKoRx/mt5/telemetry/metricbundle"
	"github.com/xKoRx/mt5/telemetry/semconv"
	"github.com/xKoRx/mt5/utils"
)

// TradeConfig parametriza el comportamiento de TradeService.
type TradeConfig struct {
	// MaxRetries es la cantidad de reintentos ante retcodes transitorios
	// (requote, price off, timeout). 0 deshabilita reintentos.
	MaxRetries int
	// RetryBackoff es la espera base entre reintentos; crece linealmente
	// con el número de intento.
	RetryBackoff time.Duration
	// DefaultDeviation es el slippage máximo en points para órdenes a
	// mercado cuando el caller no lo especifica.
	DefaultDeviation int64
	// DefaultMagic identifica las órdenes de esta librería.
	DefaultMagic int64
}

// TradeService envía, modifica y cierra órdenes y posiciones.
//
// Toda operación pasa por el Validator antes de tocar el trade server;
// los retcodes transitorios se reintentan con backoff y precio fresco.
type TradeService struct {
	tx        bridge.Transport
	telemetry *telemetry.Client
	metrics   *metricbundle.Mt5Metrics
	validator *Validator
	symbols   *SymbolService
	config    TradeConfig
	journal   *journal.Journal
}

// NewTradeService crea el servicio de trading.
func NewTradeService(tx bridge.Transport, tel *telemetry.Client, validator *Validator, symbols *SymbolService, cfg TradeConfig, jrnl *journal.Journal) *TradeService {
	if tel == nil {
		tel = telemetry.NewNop()
	}
	if validator == nil {
		validator = NewValidator()
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 200 * time.Millisecond
	}
	if cfg.DefaultDeviation <= 0 {
		cfg.DefaultDeviation = 10
	}
	return &TradeService{
		tx:        tx,
		telemetry: tel,
		metrics:   metricbundle.GetGlobalMt5Metrics(),
		validator: validator,
		symbols:   symbols,
		config:    cfg,
		journal:   jrnl,
	}
}

// ---------- Construcción de requests ----------

// OrderOption ajusta un TradeRequest antes de enviarlo.
type OrderOption func(*domain.TradeRequest)

// WithStopLoss fija el stop loss en precio absoluto.
func WithStopLoss(sl float64) OrderOption {
	return func(r *domain.TradeRequest) { r.StopLoss = sl }
}

// WithTakeProfit fija el take profit en precio absoluto.
func WithTakeProfit(tp float64) OrderOption {
	return func(r *domain.TradeRequest) { r.TakeProfit = tp }
}

// WithComment fija el comment de la orden.
func WithComment(comment string) OrderOption {
	return func(r *domain.TradeRequest) { r.Comment = comment }
}

// WithMagic reemplaza el magic number por defecto.
func WithMagic(magic int64) OrderOption {
	return func(r *domain.TradeRequest) { r.Magic = magic }
}

// WithDeviation reemplaza el slippage máximo por defecto (points).
func WithDeviation(deviation int64) OrderOption {
	return func(r *domain.TradeRequest) { r.Deviation = deviation }
}

// WithFilling fija la política de llenado.
func WithFilling(filling domain.OrderFilling) OrderOption {
	return func(r *domain.TradeRequest) { r.TypeFilling = filling }
}

// WithExpiration fija la expiración de una orden pendiente.
func WithExpiration(typeTime domain.OrderTime, expiration time.Time) OrderOption {
	return func(r *domain.TradeRequest) {
		r.TypeTime = typeTime
		r.ExpirationMs = expiration.UnixMilli()
	}
}

// WithStopLimit fija el precio límite de una orden stop-limit.
func WithStopLimit(price float64) OrderOption {
	return func(r *domain.TradeRequest) { r.StopLimit = price }
}

// BuildRequest arma un TradeRequest con los defaults del servicio.
func (s *TradeService) BuildRequest(action domain.TradeAction, symbol string, orderType domain.OrderType, volume, price float64, opts ...OrderOption) *domain.TradeRequest {
	req := &domain.TradeRequest{
		Action:      action,
		Symbol:      symbol,
		Volume:      volume,
		Price:       price,
		Type:        orderType,
		Magic:       s.config.DefaultMagic,
		Deviation:   s.config.DefaultDeviation,
		TypeFilling: domain.OrderFillingFOK,
		TypeTime:    domain.OrderTimeGTC,
	}
	for _, opt := range opts {
		opt(req)
	}
	return req
}

// ---------- Órdenes a mercado ----------

// Buy abre una posición de compra a mercado.
func (s *TradeService) Buy(ctx context.Context, symbol string, volume float64, opts ...OrderOption) (*domain.TradeResult, error) {
	return s.marketOrder(ctx, symbol, domain.OrderTypeBuy, volume, opts...)
}

// Sell abre una posición de venta a mercado.
func (s *TradeService) Sell(ctx context.Context, symbol string, volume float64, opts ...OrderOption) (*domain.TradeResult, error) {
	return s.marketOrder(ctx, symbol, domain.OrderTypeSell, volume, opts...)
}

func (s *TradeService) marketOrder(ctx context.Context, symbol string, orderType domain.OrderType, volume float64, opts ...OrderOption) (*domain.TradeResult, error) {
	price, err := s.entryPrice(ctx, symbol, orderType)
	if err != nil {
		return nil, err
	}
	req := s.BuildRequest(domain.TradeActionDeal, symbol, orderType, volume, price, opts...)
	return s.Execute(ctx, req)
}

// entryPrice retorna el lado correcto del quote para el tipo de orden.
func (s *TradeService) entryPrice(ctx context.Context, symbol string, orderType domain.OrderType) (float64, error) {
	tick, err := s.symbols.Price(ctx, symbol)
	if err != nil {
		return 0, err
	}
	if orderType.IsBuy() {
		return tick.Ask, nil
	}
	return tick.Bid, nil
}

// ---------- Órdenes pendientes ----------

// BuyLimit coloca una orden buy limit al precio dado.
func (s *TradeService) BuyLimit(ctx context.Context, symbol string, volume, price float64, opts ...OrderOption) (*domain.TradeResult, error) {
	return s.pendingOrder(ctx, symbol, domain.OrderTypeBuyLimit, volume, price, opts...)
}

// SellLimit coloca una orden sell limit al precio dado.
func (s *TradeService) SellLimit(ctx context.Context, symbol string, volume, price float64, opts ...OrderOption) (*domain.TradeResult, error) {
	return s.pendingOrder(ctx, symbol, domain.OrderTypeSellLimit, volume, price, opts...)
}

// BuyStop coloca una orden buy stop al precio dado.
func (s *TradeService) BuyStop(ctx context.Context, symbol string, volume, price float64, opts ...OrderOption) (*domain.TradeResult, error) {
	return s.pendingOrder(ctx, symbol, domain.OrderTypeBuyStop, volume, price, opts...)
}

// SellStop coloca una orden sell stop al precio dado.
func (s *TradeService) SellStop(ctx context.Context, symbol string, volume, price float64, opts ...OrderOption) (*domain.TradeResult, error) {
	return s.pendingOrder(ctx, symbol, domain.OrderTypeSellStop, volume, price, opts...)
}

// BuyStopLimit coloca una orden buy stop-limit; el precio límite va en
// WithStopLimit.
func (s *TradeService) BuyStopLimit(ctx context.Context, symbol string, volume, price float64, opts ...OrderOption) (*domain.TradeResult, error) {
	return s.pendingOrder(ctx, symbol, domain.OrderTypeBuyStopLimit, volume, price, opts...)
}

// SellStopLimit coloca una orden sell stop-limit; el precio límite va
// en WithStopLimit.
func (s *TradeService) SellStopLimit(ctx context.Context, symbol string, volume, price float64, opts ...OrderOption) (*domain.TradeResult, error) {
	return s.pendingOrder(ctx, symbol, domain.OrderTypeSellStopLimit, volume, price, opts...)
}

func (s *TradeService) pendingOrder(ctx context.Context, symbol string, orderType domain.OrderType, volume, price float64, opts ...OrderOption) (*domain.TradeResult, error) {
	req := s.BuildRequest(domain.TradeActionPending, symbol, orderType, volume, price, opts...)
	return s.Execute(ctx, req)
}

// ---------- Ejecución ----------

// Execute valida y envía un TradeRequest, reintentando retcodes
// transitorios con backoff lineal y precio fresco.
func (s *TradeService) Execute(ctx context.Context, req *domain.TradeRequest) (*domain.TradeResult, error) {
	if err := s.validate(ctx, req); err != nil {
		return nil, err
	}

	maxAttempts := s.config.MaxRetries + 1
	var result *domain.TradeResult
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, lastErr = s.send(ctx, req, attempt)
		if lastErr == nil {
			return result, nil
		}
		if result == nil || !domain.IsRetryableRetcode(result.Retcode) || attempt == maxAttempts {
			return result, lastErr
		}

		s.metrics.RecordRetry(ctx, bridge.MethodOrderSend, attempt,
			semconv.Mt5.Symbol.String(req.Symbol),
			semconv.Mt5.Retcode.Int(result.Retcode),
		)
		s.telemetry.Warn(ctx, "Retrying order send",
			semconv.Mt5.Symbol.String(req.Symbol),
			semconv.Mt5.Retcode.Int(result.Retcode),
			semconv.Mt5.Attempt.Int(attempt),
		)

		select {
		case <-time.After(time.Duration(attempt) * s.config.RetryBackoff):
		case <-ctx.Done():
			return result, ctx.Err()
		}

		// Un requote invalida el precio capturado; refrescarlo antes
		// del próximo intento.
		if req.Action == domain.TradeActionDeal {
			if price, err := s.entryPrice(ctx, req.Symbol, req.Type); err == nil {
				req.Price = price
			}
		}
	}
	return result, lastErr
}

func (s *TradeService) validate(ctx context.Context, req *domain.TradeRequest) error {
	if err := s.validator.Validate(RuleRequest, req); err != nil {
		return err
	}
	if s.symbols == nil || req.Symbol == "" {
		return nil
	}

	switch req.Action {
	case domain.TradeActionDeal, domain.TradeActionPending:
		if err := s.symbols.ValidateVolume(ctx, req.Symbol, req.Volume); err != nil {
			return err
		}
		if req.StopLoss > 0 || req.TakeProfit > 0 {
			if err := s.symbols.ValidateStops(ctx, req.Symbol, req.Type, req.Price, req.StopLoss, req.TakeProfit); err != nil {
				return err
			}
		}
	}
	return nil
}

// send ejecuta un order_send y registra resultado en métricas y journal.
func (s *TradeService) send(ctx context.Context, req *domain.TradeRequest, attempt int) (*domain.TradeResult, error) {
	commandID := utils.GenerateUUIDv7()

	var result domain.TradeResult
	if err := s.tx.Call(ctx, bridge.MethodOrderSend, req, &result); err != nil {
		s.metrics.RecordOrderSend(ctx, req.Symbol, semconv.StatusValues.Rejected, 0)
		s.record(ctx, commandID, req, nil, attempt, err)
		return nil, err
	}

	if !result.Success() {
		tradeErr := domain.ErrorFromTradeResult(&result)
		s.metrics.RecordOrderSend(ctx, req.Symbol, semconv.StatusValues.Rejected, result.Retcode)
		s.telemetry.Warn(ctx, "Order rejected",
			semconv.Mt5.CommandID.String(commandID),
			semconv.Mt5.Symbol.String(req.Symbol),
			semconv.Mt5.Retcode.Int(result.Retcode),
			semconv.Mt5.Reason.String(domain.RetcodeDescription(result.Retcode)),
		)
		s.record(ctx, commandID, req, &result, attempt, tradeErr)
		return &result, tradeErr
	}

	s.metrics.RecordOrderSend(ctx, req.Symbol, semconv.StatusValues.Success, result.Retcode)
	s.telemetry.Info(ctx, "Order executed",
		semconv.Mt5.CommandID.String(commandID),
		semconv.Mt5.Symbol.String(req.Symbol),
		semconv.Mt5.OrderSide.String(req.Type.String()),
		semconv.Mt5.LotSize.Float64(result.Volume),
		semconv.Mt5.Price.Float64(result.Price),
		semconv.Mt5.Ticket.Int64(result.Order),
	)
	s.record(ctx, commandID, req, &result, attempt, nil)
	return &result, nil
}

// record persiste la operación en el journal (best-effort).
func (s *TradeService) record(ctx context.Context, commandID string, req *domain.TradeRequest, result *domain.TradeResult, attempt int, opErr error) {
	if s.journal == nil {
		return
	}
	entry := &journal.Entry{
		CommandID:  commandID,
		Action:     req.Action.String(),
		Symbol:     req.Symbol,
		OrderType:  req.Type.String(),
		Volume:     req.Volume,
		Price:      req.Price,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
		Magic:      req.Magic,
		Deviation:  req.Deviation,
		Attempt:    attempt,
	}
	if result != nil {
		entry.Retcode = result.Retcode
		entry.Deal = result.Deal
		entry.Order = result.Order
		entry.FilledPrice = result.Price
		entry.FilledVolume = result.Volume
		entry.Success = result.Success()
	}
	if opErr != nil {
		entry.ErrorMessage = opErr.Error()
	}
	// El error ya queda logueado dentro de Record.
	_ = s.journal.Record(ctx, entry)
}

// ValidateRequest valida el request localmente (reglas del registro y
// spec del símbolo) sin tocar el terminal.
func (s *TradeService) ValidateRequest(ctx context.Context, req *domain.TradeRequest) error {
	return s.validate(ctx, req)
}

// Check ejecuta order_check: el estado hipotético de la cuenta si la
// orden se ejecutara, sin enviarla.
func (s *TradeService) Check(ctx context.Context, req *domain.TradeRequest) (*domain.OrderCheckResult, error) {
	if err := s.validator.Validate(RuleRequest, req); err != nil {
		return nil, err
	}
	var result domain.OrderCheckResult
	if err := s.tx.Call(ctx, bridge.MethodOrderCheck, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CalcProfit calcula el profit esperado de un trade hipotético.
func (s *TradeService) CalcProfit(ctx context.Context, orderType domain.OrderType, symbol string, volume, priceOpen, priceClose float64) (float64, error) {
	params := map[string]interface{}{
		"type":        int(orderType),
		"symbol":      symbol,
		"volume":      volume,
		"price_open":  priceOpen,
		"price_close": priceClose,
	}
	var out struct {
		Profit float64 `json:"profit"`
	}
	if err := s.tx.Call(ctx, bridge.MethodOrderCalcProfit, params, &out); err != nil {
		return 0, err
	}
	return out.Profit, nil
}

// ---------- Consultas ----------

// OrderFilter filtra consultas de órdenes y posiciones. Campos en cero
// no filtran.
type OrderFilter struct {
	Symbol string
	Group  string
	Ticket int64
	Magic  int64
}

func (f *OrderFilter) params() map[string]interface{} {
	params := map[string]interface{}{}
	if f == nil {
		return params
	}
	if f.Symbol != "" {
		params["symbol"] = f.Symbol
	}
	if f.Group != "" {
		params["group"] = f.Group
	}
	if f.Ticket != 0 {
		params["ticket"] = f.Ticket
	}
	return params
}

// Orders retorna las órdenes pendientes activas que pasan el filtro.
func (s *TradeService) Orders(ctx context.Context, filter *OrderFilter) ([]domain.Order, error) {
	var out struct {
		Orders []domain.Order `json:"orders"`
	}
	if err := s.tx.Call(ctx, bridge.MethodOrdersGet, filter.params(), &out); err != nil {
		return nil, err
	}
	orders := out.Orders
	if filter != nil && filter.Magic != 0 {
		filtered := orders[:0]
		for _, o := range orders {
			if o.Magic == filter.Magic {
				filtered = append(filtered, o)
			}
		}
		orders = filtered
	}
	return orders, nil
}

// Order retorna una orden pendiente por ticket, o ErrNotFound.
func (s *TradeService) Order(ctx context.Context, ticket int64) (*domain.Order, error) {
	if err := domain.ValidateTicket(ticket); err != nil {
		return nil, err
	}
	orders, err := s.Orders(ctx, &OrderFilter{Ticket: ticket})
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, domain.NewError(domain.ErrNotFound,
			fmt.Sprintf("order %d not found", ticket))
	}
	return &orders[0], nil
}

// Positions retorna las posiciones abiertas que pasan el filtro.
func (s *TradeService) Positions(ctx context.Context, filter *OrderFilter) ([]domain.Position, error) {
	var out struct {
		Positions []domain.Position `json:"positions"`
	}
	if err := s.tx.Call(ctx, bridge.MethodPositionsGet, filter.params(), &out); err != nil {
		return nil, err
	}
	positions := out.Positions
	if filter != nil && filter.Magic != 0 {
		filtered := positions[:0]
		for _, p := range positions {
			if p.Magic == filter.Magic {
				filtered = append(filtered, p)
			}
		}
		positions = filtered
	}
	return positions, nil
}

// Position retorna una posición abierta por ticket, o ErrNotFound.
func (s *TradeService) Position(ctx context.Context, ticket int64) (*domain.Position, error) {
	if err := domain.ValidateTicket(ticket); err != nil {
		return nil, err
	}
	positions, err := s.Positions(ctx, &OrderFilter{Ticket: ticket})
	if err != nil {
		return nil, err
	}
	if len(positions) == 0 {
		return nil, domain.NewError(domain.ErrNotFound,
			fmt.Sprintf("position %d not found", ticket))
	}
	return &positions[0], nil
}

// ---------- Modificación y cierre ----------

// ModifyOrder cambia precio, SL y/o TP de una orden pendiente. Valores
// en cero conservan el campo actual.
func (s *TradeService) ModifyOrder(ctx context.Context, ticket int64, price, sl, tp float64, opts ...OrderOption) (*domain.TradeResult, error) {
	order, err := s.Order(ctx, ticket)
	if err != nil {
		return nil, err
	}

	if price == 0 {
		price = order.PriceOpen
	}
	if sl == 0 {
		sl = order.StopLoss
	}
	if tp == 0 {
		tp = order.TakeProfit
	}

	req := s.BuildRequest(domain.TradeActionModify, order.Symbol, order.Type, order.VolumeCurrent, price, opts...)
	req.Order = ticket
	req.StopLoss = sl
	req.TakeProfit = tp
	if order.TimeExpirationMs > 0 {
		req.TypeTime = domain.OrderTimeSpecified
		req.ExpirationMs = order.TimeExpirationMs
	}
	return s.Execute(ctx, req)
}

// CancelOrder elimina una orden pendiente.
func (s *TradeService) CancelOrder(ctx context.Context, ticket int64) (*domain.TradeResult, error) {
	if err := domain.ValidateTicket(ticket); err != nil {
		return nil, err
	}
	req := &domain.TradeRequest{
		Action: domain.TradeActionRemove,
		Order:  ticket,
		Magic:  s.config.DefaultMagic,
	}
	return s.Execute(ctx, req)
}

// ModifyPosition cambia SL y/o TP de una posición abierta. Valores en
// cero conservan el campo actual.
func (s *TradeService) ModifyPosition(ctx context.Context, ticket int64, sl, tp float64) (*domain.TradeResult, error) {
	pos, err := s.Position(ctx, ticket)
	if err != nil {
		return nil, err
	}
	if sl == 0 {
		sl = pos.StopLoss
	}
	if tp == 0 {
		tp = pos.TakeProfit
	}

	req := &domain.TradeRequest{
		Action:     domain.TradeActionSLTP,
		Symbol:     pos.Symbol,
		Position:   ticket,
		StopLoss:   sl,
		TakeProfit: tp,
		Magic:      s.config.DefaultMagic,
	}
	return s.Execute(ctx, req)
}

// ClosePosition cierra una posición, total o parcialmente.
//
// volume 0 cierra el total; un volumen menor al de la posición hace un
// cierre parcial. El cierre es un deal del tipo opuesto sobre la misma
// posición.
func (s *TradeService) ClosePosition(ctx context.Context, ticket int64, volume float64, opts ...OrderOption) (*domain.TradeResult, error) {
	pos, err := s.Position(ctx, ticket)
	if err != nil {
		return nil, err
	}

	if volume <= 0 || volume > pos.Volume {
		volume = pos.Volume
	}

	closeType := pos.Type.Opposite()
	price, err := s.entryPrice(ctx, pos.Symbol, closeType)
	if err != nil {
		return nil, err
	}

	req := s.BuildRequest(domain.TradeActionDeal, pos.Symbol, closeType, volume, price, opts...)
	req.Position = ticket
	return s.Execute(ctx, req)
}

// CloseBy cierra una posición contra otra opuesta del mismo símbolo.
func (s *TradeService) CloseBy(ctx context.Context, ticket, byTicket int64) (*domain.TradeResult, error) {
	if err := domain.ValidateTicket(ticket); err != nil {
		return nil, err
	}
	if err := domain.ValidateTicket(byTicket); err != nil {
		return nil, err
	}
	req := &domain.TradeRequest{
		Action:     domain.TradeActionCloseBy,
		Position:   ticket,
		PositionBy: byTicket,
		Magic:      s.config.DefaultMagic,
	}
	return s.Execute(ctx, req)
}

// CloseAll cierra todas las posiciones que pasan el filtro. Retorna los
// resultados por ticket; un fallo individual no detiene el resto.
func (s *TradeService) CloseAll(ctx context.Context, filter *OrderFilter) (map[int64]*domain.TradeResult, error) {
	positions, err := s.Positions(ctx, filter)
	if err != nil {
		return nil, err
	}

	results := make(map[int64]*domain.TradeResult, len(positions))
	var firstErr error
	for _, pos := range positions {
		result, err := s.ClosePosition(ctx, pos.Ticket, 0)
		results[pos.Ticket] = result
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return results, firstErr
}

// ReversePosition cierra una posición y abre la opuesta con el mismo
// volumen. Retorna el resultado de la apertura.
func (s *TradeService) ReversePosition(ctx context.Context, ticket int64, opts ...OrderOption) (*domain.TradeResult, error) {
	pos, err := s.Position(ctx, ticket)
	if err != nil {
		return nil, err
	}

	if _, err := s.ClosePosition(ctx, ticket, 0); err != nil {
		return nil, err
	}
	return s.marketOrder(ctx, pos.Symbol, pos.Type.Opposite(), pos.Volume, opts...)
}

// ---------- Análisis ----------

// PositionAnalysis describe el estado de una posición abierta.
type PositionAnalysis struct {
	Ticket         int64         `json:"ticket"`
	Symbol         string        `json:"symbol"`
	Type           string        `json:"type"`
	Volume         float64       `json:"volume"`
	PriceOpen      float64       `json:"price_open"`
	PriceCurrent   float64       `json:"price_current"`
	Profit         float64       `json:"profit"`
	Swap           float64       `json:"swap"`
	ProfitPoints   float64       `json:"profit_points"`
	Duration       time.Duration `json:"duration"`
	RiskReward     float64       `json:"risk_reward"`
	DistanceToSL   float64       `json:"distance_to_sl_points"`
	DistanceToTP   float64       `json:"distance_to_tp_points"`
	BreakevenMoved bool          `json:"breakeven_moved"`
}

// AnalyzePosition computa métricas de una posición abierta.
func (s *TradeService) AnalyzePosition(ctx context.Context, ticket int64) (*PositionAnalysis, error) {
	pos, err := s.Position(ctx, ticket)
	if err != nil {
		return nil, err
	}
	info, err := s.symbols.Info(ctx, pos.Symbol)
	if err != nil {
		return nil, err
	}

	a := &PositionAnalysis{
		Ticket:       pos.Ticket,
		Symbol:       pos.Symbol,
		Type:         pos.Type.String(),
		Volume:       pos.Volume,
		PriceOpen:    pos.PriceOpen,
		PriceCurrent: pos.PriceCurrent,
		Profit:       pos.Profit,
		Swap:         pos.Swap,
		Duration:     time.Since(time.UnixMilli(pos.TimeMs)),
	}

	if info.Point > 0 {
		direction := 1.0
		if pos.Type.IsSell() {
			direction = -1.0
		}
		a.ProfitPoints = direction * (pos.PriceCurrent - pos.PriceOpen) / info.Point
		if pos.StopLoss > 0 {
			a.DistanceToSL = direction * (pos.PriceCurrent - pos.StopLoss) / info.Point
		}
		if pos.TakeProfit > 0 {
			a.DistanceToTP = direction * (pos.TakeProfit - pos.PriceCurrent) / info.Point
		}
	}

	if pos.StopLoss > 0 && pos.TakeProfit > 0 {
		risk := pos.PriceOpen - pos.StopLoss
		reward := pos.TakeProfit - pos.PriceOpen
		if pos.Type.IsSell() {
			risk, reward = -risk, -reward
		}
		if risk > 0 {
			a.RiskReward = reward / risk
		}
	}

	// SL del lado ganador de la entrada implica breakeven asegurado.
	if pos.StopLoss > 0 {
		if pos.Type.IsBuy() {
			a.BreakevenMoved = pos.StopLoss >= pos.PriceOpen
		} else {
			a.BreakevenMoved = pos.StopLoss <= pos.PriceOpen
		}
	}
	return a, nil
}

// PositionStats agregados sobre las posiciones abiertas.
type PositionStats struct {
	Count       int                `json:"count"`
	TotalVolume float64            `json:"total_volume"`
	TotalProfit float64            `json:"total_profit"`
	TotalSwap   float64            `json:"total_swap"`
	BySymbol    map[string]int     `json:"by_symbol"`
	ProfitBySym map[string]float64 `json:"profit_by_symbol"`
}

// Stats computa agregados sobre las posiciones que pasan el filtro.
func (s *TradeService) Stats(ctx context.Context, filter *OrderFilter) (*PositionStats, error) {
	positions, err := s.Positions(ctx, filter)
	if err != nil {
		return nil, err
	}

	stats := &PositionStats{
		BySymbol:    make(map[string]int),
		ProfitBySym: make(map[string]float64),
	}
	for _, pos := range positions {
		stats.Count++
		stats.TotalVolume += pos.Volume
		stats.TotalProfit += pos.Profit
		stats.TotalSwap += pos.Swap
		stats.BySymbol[pos.Symbol]++
		stats.ProfitBySym[pos.Symbol] += pos.Profit
	}
	return stats, nil
}

// Summary retorna un resumen compacto de la actividad abierta.
func (s *TradeService) Summary(ctx context.Context) (map[string]interface{}, error) {
	stats, err := s.Stats(ctx, nil)
	if err != nil {
		return nil, err
	}
	orders, err := s.Orders(ctx, nil)
	if err != nil {
		return nil, err
	}

	symbols := make([]string, 0, len(stats.BySymbol))
	for sym := range stats.BySymbol {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	return map[string]interface{}{
		"open_positions": stats.Count,
		"pending_orders": len(orders),
		"total_volume":   stats.TotalVolume,
		"total_profit":   stats.TotalProfit,
		"symbols":        symbols,
	}, nil
}

// ExportPositions exporta las posiciones abiertas como JSON indentado.
func (s *TradeService) ExportPositions(ctx context.Context, filter *OrderFilter) ([]byte, error) {
	positions, err := s.Positions(ctx, filter)
	if err != nil {
		return nil, err
	}
	data, err := utils.MarshalJSON(positions)
	if err != nil {
		return nil, err
	}
	return []byte(utils.PrettyPrint(data)), nil
}
