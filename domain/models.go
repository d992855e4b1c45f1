package domain

import (
	"time"
)

// AccountInfo representa el snapshot de la cuenta que reporta el terminal.
//
// Campos y semántica siguen a AccountInfo* de MQL5; los montos van en la
// divisa de la cuenta.
type AccountInfo struct {
	Login          int64   `json:"login"`
	TradeMode      int     `json:"trade_mode"` // 0=demo, 1=contest, 2=real
	Leverage       int64   `json:"leverage"`
	LimitOrders    int     `json:"limit_orders"`
	MarginSOMode   int     `json:"margin_so_mode"`
	TradeAllowed   bool    `json:"trade_allowed"`
	TradeExpert    bool    `json:"trade_expert"`
	MarginMode     int     `json:"margin_mode"`
	CurrencyDigits int     `json:"currency_digits"`
	FifoClose      bool    `json:"fifo_close"`
	Balance        float64 `json:"balance"`
	Credit         float64 `json:"credit"`
	Profit         float64 `json:"profit"`
	Equity         float64 `json:"equity"`
	Margin         float64 `json:"margin"`
	MarginFree     float64 `json:"margin_free"`
	MarginLevel    float64 `json:"margin_level"`
	MarginSOCall   float64 `json:"margin_so_call"`
	MarginSOSo     float64 `json:"margin_so_so"`
	Name           string  `json:"name"`
	Server         string  `json:"server"`
	Currency       string  `json:"currency"`
	Company        string  `json:"company"`
}

// IsDemo indica si la cuenta es demo.
func (a *AccountInfo) IsDemo() bool { return a.TradeMode == 0 }

// IsReal indica si la cuenta es real.
func (a *AccountInfo) IsReal() bool { return a.TradeMode == 2 }

// SymbolInfo representa la especificación de un símbolo del broker.
//
// ReportedAtMs marca cuándo el terminal reportó el snapshot; las capas de
// caché lo usan para descartar specs viejas.
type SymbolInfo struct {
	Name              string  `json:"name"`
	Description       string  `json:"description"`
	Path              string  `json:"path"` // Grupo del broker (ej. "Forex\\Majors\\EURUSD")
	CurrencyBase      string  `json:"currency_base"`
	CurrencyProfit    string  `json:"currency_profit"`
	CurrencyMargin    string  `json:"currency_margin"`
	Digits            int     `json:"digits"`
	Point             float64 `json:"point"`
	Spread            int64   `json:"spread"` // En points
	SpreadFloat       bool    `json:"spread_float"`
	Visible           bool    `json:"visible"` // Seleccionado en MarketWatch
	TradeMode         int     `json:"trade_mode"` // 0=disabled, 4=full
	Bid               float64 `json:"bid"`
	Ask               float64 `json:"ask"`
	Last              float64 `json:"last"`
	VolumeMin         float64 `json:"volume_min"`
	VolumeMax         float64 `json:"volume_max"`
	VolumeStep        float64 `json:"volume_step"`
	VolumeLimit       float64 `json:"volume_limit"`
	TradeTickValue    float64 `json:"trade_tick_value"`
	TradeTickSize     float64 `json:"trade_tick_size"`
	TradeContractSize float64 `json:"trade_contract_size"`
	TradeStopsLevel   int64   `json:"trade_stops_level"`  // Distancia mínima SL/TP en points
	TradeFreezeLevel  int64   `json:"trade_freeze_level"` // Zona congelada en points
	SwapLong          float64 `json:"swap_long"`
	SwapShort         float64 `json:"swap_short"`
	MarginInitial     float64 `json:"margin_initial"`
	MarginMaintenance float64 `json:"margin_maintenance"`
	SessionDeals      int64   `json:"session_deals"`
	TimeMs            int64   `json:"time_ms"` // Último quote (servidor, ms)
	ReportedAtMs      int64   `json:"reported_at_ms"`
}

// TradeModeFull es el valor de SymbolInfo.TradeMode cuando el símbolo
// admite operar en ambas direcciones (SYMBOL_TRADE_MODE_FULL).
const TradeModeFull = 4

// TradeAllowed indica si el símbolo admite trading.
func (s *SymbolInfo) TradeAllowed() bool {
	return s.TradeMode != 0
}

// AgeMs retorna la antigüedad del snapshot en milisegundos.
func (s *SymbolInfo) AgeMs(nowMs int64) int64 {
	if s.ReportedAtMs == 0 {
		return 0
	}
	return nowMs - s.ReportedAtMs
}

// TerminalInfo representa el estado del terminal MT5.
type TerminalInfo struct {
	Connected            bool    `json:"connected"`
	CommunityAccount     bool    `json:"community_account"`
	CommunityConnection  bool    `json:"community_connection"`
	DLLsAllowed          bool    `json:"dlls_allowed"`
	TradeAllowed         bool    `json:"trade_allowed"`
	TradeAPIDisabled     bool    `json:"tradeapi_disabled"`
	EmailEnabled         bool    `json:"email_enabled"`
	FtpEnabled           bool    `json:"ftp_enabled"`
	NotificationsEnabled bool    `json:"notifications_enabled"`
	MQID                 bool    `json:"mqid"`
	Build                int     `json:"build"`
	MaxBars              int     `json:"maxbars"`
	CodePage             int     `json:"codepage"`
	PingLastMicros       int64   `json:"ping_last"` // Ping al trade server en microsegundos
	CommunityBalance     float64 `json:"community_balance"`
	Retransmission       float64 `json:"retransmission"`
	Company              string  `json:"company"`
	Name                 string  `json:"name"`
	Language             string  `json:"language"`
	Path                 string  `json:"path"`
	DataPath             string  `json:"data_path"`
	CommonDataPath       string  `json:"commondata_path"`
}

// Tick representa un tick de mercado.
type Tick struct {
	Symbol   string  `json:"symbol,omitempty" csv:"symbol"`
	TimeMs   int64   `json:"time_ms" csv:"time_ms"`
	Bid      float64 `json:"bid" csv:"bid"`
	Ask      float64 `json:"ask" csv:"ask"`
	Last     float64 `json:"last" csv:"last"`
	Volume   float64 `json:"volume" csv:"volume"`
	Flags    uint32  `json:"flags" csv:"flags"`
}

// Time retorna el timestamp del tick como time.Time.
func (t *Tick) Time() time.Time { return time.UnixMilli(t.TimeMs) }

// SpreadPoints retorna el spread del tick en points.
func (t *Tick) SpreadPoints(point float64) float64 {
	if point <= 0 {
		return 0
	}
	return (t.Ask - t.Bid) / point
}

// Mid retorna el punto medio bid/ask.
func (t *Tick) Mid() float64 { return (t.Bid + t.Ask) / 2 }

// Candle representa una vela OHLCV.
type Candle struct {
	Symbol     string  `json:"symbol,omitempty" csv:"symbol"`
	TimeMs     int64   `json:"time_ms" csv:"time_ms"` // Apertura de la vela (servidor, ms)
	Open       float64 `json:"open" csv:"open"`
	High       float64 `json:"high" csv:"high"`
	Low        float64 `json:"low" csv:"low"`
	Close      float64 `json:"close" csv:"close"`
	TickVolume int64   `json:"tick_volume" csv:"tick_volume"`
	Spread     int     `json:"spread" csv:"spread"`
	RealVolume int64   `json:"real_volume" csv:"real_volume"`
}

// Time retorna la apertura de la vela como time.Time.
func (c *Candle) Time() time.Time { return time.UnixMilli(c.TimeMs) }

// Range retorna el rango high-low de la vela.
func (c *Candle) Range() float64 { return c.High - c.Low }

// Body retorna el cuerpo (close-open) con signo.
func (c *Candle) Body() float64 { return c.Close - c.Open }

// IsBullish indica si la vela cerró por encima de su apertura.
func (c *Candle) IsBullish() bool { return c.Close > c.Open }

// MarketBookEntry representa una entrada de profundidad de mercado.
type MarketBookEntry struct {
	Type        BookType `json:"type"`
	Price       float64  `json:"price"`
	Volume      float64  `json:"volume"`
}

// Order representa una orden activa (pendiente o en proceso).
type Order struct {
	Ticket           int64     `json:"ticket"`
	TimeSetupMs      int64     `json:"time_setup_ms"`
	TimeExpirationMs int64     `json:"time_expiration_ms"`
	Type             OrderType `json:"type"`
	State            int       `json:"state"`
	Magic            int64     `json:"magic"`
	PositionID       int64     `json:"position_id"`
	VolumeInitial    float64   `json:"volume_initial"`
	VolumeCurrent    float64   `json:"volume_current"`
	PriceOpen        float64   `json:"price_open"`
	StopLoss         float64   `json:"sl"`
	TakeProfit       float64   `json:"tp"`
	PriceCurrent     float64   `json:"price_current"`
	PriceStopLimit   float64   `json:"price_stoplimit"`
	Symbol           string    `json:"symbol"`
	Comment          string    `json:"comment"`
	ExternalID       string    `json:"external_id"`
}

// HistoryOrder representa una orden ya resuelta (llenada/cancelada/expirada).
//
// Mismo shape que Order; el terminal las reporta por history_orders.
type HistoryOrder = Order

// Position representa una posición abierta.
type Position struct {
	Ticket       int64     `json:"ticket"`
	TimeMs       int64     `json:"time_ms"`
	TimeUpdateMs int64     `json:"time_update_ms"`
	Type         OrderType `json:"type"` // BUY o SELL
	Magic        int64     `json:"magic"`
	Identifier   int64     `json:"identifier"`
	Volume       float64   `json:"volume"`
	PriceOpen    float64   `json:"price_open"`
	StopLoss     float64   `json:"sl"`
	TakeProfit   float64   `json:"tp"`
	PriceCurrent float64   `json:"price_current"`
	Swap         float64   `json:"swap"`
	Profit       float64   `json:"profit"`
	Symbol       string    `json:"symbol"`
	Comment      string    `json:"comment"`
	ExternalID   string    `json:"external_id"`
}

// Deal representa un deal del histórico de la cuenta.
type Deal struct {
	Ticket     int64     `json:"ticket" csv:"ticket"`
	Order      int64     `json:"order" csv:"order"`
	TimeMs     int64     `json:"time_ms" csv:"time_ms"`
	Type       DealType  `json:"type" csv:"type"`
	Entry      DealEntry `json:"entry" csv:"entry"`
	Magic      int64     `json:"magic" csv:"magic"`
	PositionID int64     `json:"position_id" csv:"position_id"`
	Volume     float64   `json:"volume" csv:"volume"`
	Price      float64   `json:"price" csv:"price"`
	Commission float64   `json:"commission" csv:"commission"`
	Swap       float64   `json:"swap" csv:"swap"`
	Profit     float64   `json:"profit" csv:"profit"`
	Fee        float64   `json:"fee" csv:"fee"`
	Symbol     string    `json:"symbol" csv:"symbol"`
	Comment    string    `json:"comment" csv:"comment"`
	ExternalID string    `json:"external_id" csv:"-"`
}

// Time retorna el timestamp del deal como time.Time.
func (d *Deal) Time() time.Time { return time.UnixMilli(d.TimeMs) }

// NetProfit retorna profit + swap + commission + fee.
func (d *Deal) NetProfit() float64 {
	return d.Profit + d.Swap + d.Commission + d.Fee
}

// IsClose indica si el deal cierra (total o parcialmente) una posición.
func (d *Deal) IsClose() bool {
	return d.Entry == DealEntryOut || d.Entry == DealEntryOutBy || d.Entry == DealEntryInOut
}

// TradeRequest representa una solicitud de trade (MqlTradeRequest).
//
// Se envía al bridge EA tal cual para que la pase a OrderSend.
type TradeRequest struct {
	Action       TradeAction  `json:"action"`
	Magic        int64        `json:"magic"`
	Order        int64        `json:"order,omitempty"`
	Symbol       string       `json:"symbol"`
	Volume       float64      `json:"volume"`
	Price        float64      `json:"price"`
	StopLimit    float64      `json:"stoplimit,omitempty"`
	StopLoss     float64      `json:"sl,omitempty"`
	TakeProfit   float64      `json:"tp,omitempty"`
	Deviation    int64        `json:"deviation"`
	Type         OrderType    `json:"type"`
	TypeFilling  OrderFilling `json:"type_filling"`
	TypeTime     OrderTime    `json:"type_time"`
	ExpirationMs int64        `json:"expiration_ms,omitempty"`
	Comment      string       `json:"comment,omitempty"`
	Position     int64        `json:"position,omitempty"`
	PositionBy   int64        `json:"position_by,omitempty"`
}

// TradeResult representa el resultado de OrderSend/OrderCheck (MqlTradeResult).
type TradeResult struct {
	Retcode         int     `json:"retcode"`
	Deal            int64   `json:"deal"`
	Order           int64   `json:"order"`
	Volume          float64 `json:"volume"`
	Price           float64 `json:"price"`
	Bid             float64 `json:"bid"`
	Ask             float64 `json:"ask"`
	Comment         string  `json:"comment"`
	RequestID       int64   `json:"request_id"`
	RetcodeExternal int     `json:"retcode_external"`
}

// Success indica si el trade server aceptó la operación.
func (r *TradeResult) Success() bool {
	return r.Retcode == RetcodeDone || r.Retcode == RetcodeDonePartial ||
		r.Retcode == RetcodePlaced
}

// OrderCheckResult representa el resultado de OrderCheck (MqlTradeCheckResult):
// el estado hipotético de la cuenta si la orden se ejecutara.
type OrderCheckResult struct {
	Retcode     int     `json:"retcode"`
	Balance     float64 `json:"balance"`
	Equity      float64 `json:"equity"`
	Profit      float64 `json:"profit"`
	Margin      float64 `json:"margin"`
	MarginFree  float64 `json:"margin_free"`
	MarginLevel float64 `json:"margin_level"`
	Comment     string  `json:"comment"`
}

// OK indica si la orden pasaría las comprobaciones del servidor.
func (r *OrderCheckResult) OK() bool { return r.Retcode == 0 }
