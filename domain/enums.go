package domain

import (
	"fmt"
	"strings"
	"time"
)

// ConnectionState representa el estado de la conexión con el terminal.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "DISCONNECTED" // Sin sesión con el terminal
	StateInitializing ConnectionState = "INITIALIZING" // Handshake con el bridge en curso
	StateConnected    ConnectionState = "CONNECTED"    // Sesión activa
	StateReconnecting ConnectionState = "RECONNECTING" // Reintentando tras caída
	StateFailed       ConnectionState = "FAILED"       // Reintentos agotados
)

// String implementa fmt.Stringer para ConnectionState.
func (s ConnectionState) String() string {
	return string(s)
}

// OrderType representa el tipo de orden MT5 (ENUM_ORDER_TYPE).
//
// Los valores numéricos son los del terminal.
type OrderType int

const (
	OrderTypeBuy           OrderType = 0 // Market buy
	OrderTypeSell          OrderType = 1 // Market sell
	OrderTypeBuyLimit      OrderType = 2
	OrderTypeSellLimit     OrderType = 3
	OrderTypeBuyStop       OrderType = 4
	OrderTypeSellStop      OrderType = 5
	OrderTypeBuyStopLimit  OrderType = 6
	OrderTypeSellStopLimit OrderType = 7
	OrderTypeCloseBy       OrderType = 8
)

var orderTypeNames = map[OrderType]string{
	OrderTypeBuy:           "BUY",
	OrderTypeSell:          "SELL",
	OrderTypeBuyLimit:      "BUY_LIMIT",
	OrderTypeSellLimit:     "SELL_LIMIT",
	OrderTypeBuyStop:       "BUY_STOP",
	OrderTypeSellStop:      "SELL_STOP",
	OrderTypeBuyStopLimit:  "BUY_STOP_LIMIT",
	OrderTypeSellStopLimit: "SELL_STOP_LIMIT",
	OrderTypeCloseBy:       "CLOSE_BY",
}

// String implementa fmt.Stringer para OrderType.
func (t OrderType) String() string {
	if name, ok := orderTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ORDER_TYPE(%d)", int(t))
}

// IsValid indica si el tipo de orden es uno de los conocidos por MT5.
func (t OrderType) IsValid() bool {
	_, ok := orderTypeNames[t]
	return ok
}

// IsBuy indica si la orden opera en dirección de compra.
func (t OrderType) IsBuy() bool {
	switch t {
	case OrderTypeBuy, OrderTypeBuyLimit, OrderTypeBuyStop, OrderTypeBuyStopLimit:
		return true
	}
	return false
}

// IsSell indica si la orden opera en dirección de venta.
func (t OrderType) IsSell() bool {
	switch t {
	case OrderTypeSell, OrderTypeSellLimit, OrderTypeSellStop, OrderTypeSellStopLimit:
		return true
	}
	return false
}

// IsMarket indica si la orden se ejecuta a mercado.
func (t OrderType) IsMarket() bool {
	return t == OrderTypeBuy || t == OrderTypeSell
}

// IsPending indica si la orden es pendiente (limit/stop/stop-limit).
func (t OrderType) IsPending() bool {
	switch t {
	case OrderTypeBuyLimit, OrderTypeSellLimit, OrderTypeBuyStop,
		OrderTypeSellStop, OrderTypeBuyStopLimit, OrderTypeSellStopLimit:
		return true
	}
	return false
}

// Opposite retorna el tipo de mercado en dirección contraria.
//
// Solo tiene sentido para BUY/SELL; para el resto retorna el mismo tipo.
func (t OrderType) Opposite() OrderType {
	switch t {
	case OrderTypeBuy:
		return OrderTypeSell
	case OrderTypeSell:
		return OrderTypeBuy
	}
	return t
}

// TradeAction representa la acción de un TradeRequest (ENUM_TRADE_REQUEST_ACTIONS).
type TradeAction int

const (
	TradeActionDeal    TradeAction = 1  // Ejecución inmediata a mercado
	TradeActionPending TradeAction = 5  // Colocar orden pendiente
	TradeActionSLTP    TradeAction = 6  // Modificar SL/TP de una posición
	TradeActionModify  TradeAction = 7  // Modificar orden pendiente
	TradeActionRemove  TradeAction = 8  // Eliminar orden pendiente
	TradeActionCloseBy TradeAction = 10 // Cerrar posición con posición opuesta
)

// String implementa fmt.Stringer para TradeAction.
func (a TradeAction) String() string {
	switch a {
	case TradeActionDeal:
		return "DEAL"
	case TradeActionPending:
		return "PENDING"
	case TradeActionSLTP:
		return "SLTP"
	case TradeActionModify:
		return "MODIFY"
	case TradeActionRemove:
		return "REMOVE"
	case TradeActionCloseBy:
		return "CLOSE_BY"
	}
	return fmt.Sprintf("TRADE_ACTION(%d)", int(a))
}

// Timeframe representa un marco temporal MT5 (ENUM_TIMEFRAMES).
//
// Los valores intradiarios hasta M30 son minutos planos; desde H1 el
// terminal usa valores con flag en el bit 14, que se preservan tal cual.
type Timeframe int

const (
	TimeframeM1  Timeframe = 1
	TimeframeM2  Timeframe = 2
	TimeframeM3  Timeframe = 3
	TimeframeM4  Timeframe = 4
	TimeframeM5  Timeframe = 5
	TimeframeM6  Timeframe = 6
	TimeframeM10 Timeframe = 10
	TimeframeM12 Timeframe = 12
	TimeframeM15 Timeframe = 15
	TimeframeM20 Timeframe = 20
	TimeframeM30 Timeframe = 30
	TimeframeH1  Timeframe = 16385
	TimeframeH2  Timeframe = 16386
	TimeframeH3  Timeframe = 16387
	TimeframeH4  Timeframe = 16388
	TimeframeH6  Timeframe = 16390
	TimeframeH8  Timeframe = 16392
	TimeframeH12 Timeframe = 16396
	TimeframeD1  Timeframe = 16408
	TimeframeW1  Timeframe = 32769
	TimeframeMN1 Timeframe = 49153
)

var timeframeNames = map[Timeframe]string{
	TimeframeM1:  "M1",
	TimeframeM2:  "M2",
	TimeframeM3:  "M3",
	TimeframeM4:  "M4",
	TimeframeM5:  "M5",
	TimeframeM6:  "M6",
	TimeframeM10: "M10",
	TimeframeM12: "M12",
	TimeframeM15: "M15",
	TimeframeM20: "M20",
	TimeframeM30: "M30",
	TimeframeH1:  "H1",
	TimeframeH2:  "H2",
	TimeframeH3:  "H3",
	TimeframeH4:  "H4",
	TimeframeH6:  "H6",
	TimeframeH8:  "H8",
	TimeframeH12: "H12",
	TimeframeD1:  "D1",
	TimeframeW1:  "W1",
	TimeframeMN1: "MN1",
}

var timeframeMinutes = map[Timeframe]int{
	TimeframeM1:  1,
	TimeframeM2:  2,
	TimeframeM3:  3,
	TimeframeM4:  4,
	TimeframeM5:  5,
	TimeframeM6:  6,
	TimeframeM10: 10,
	TimeframeM12: 12,
	TimeframeM15: 15,
	TimeframeM20: 20,
	TimeframeM30: 30,
	TimeframeH1:  60,
	TimeframeH2:  120,
	TimeframeH3:  180,
	TimeframeH4:  240,
	TimeframeH6:  360,
	TimeframeH8:  480,
	TimeframeH12: 720,
	TimeframeD1:  1440,
	TimeframeW1:  10080,
	TimeframeMN1: 43200,
}

// String implementa fmt.Stringer para Timeframe.
func (tf Timeframe) String() string {
	if name, ok := timeframeNames[tf]; ok {
		return name
	}
	return fmt.Sprintf("TIMEFRAME(%d)", int(tf))
}

// IsValid indica si el timeframe es uno de los del terminal.
func (tf Timeframe) IsValid() bool {
	_, ok := timeframeNames[tf]
	return ok
}

// Minutes retorna la duración del timeframe en minutos (0 si es inválido).
func (tf Timeframe) Minutes() int {
	return timeframeMinutes[tf]
}

// Duration retorna la duración del timeframe como time.Duration.
func (tf Timeframe) Duration() time.Duration {
	return time.Duration(tf.Minutes()) * time.Minute
}

// TimeframeFromString parsea un nombre de timeframe (M1, H4, D1...).
func TimeframeFromString(name string) (Timeframe, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for tf, n := range timeframeNames {
		if n == upper {
			return tf, nil
		}
	}
	return 0, NewValidationError("timeframe", name, "unknown timeframe name")
}

// TimeframeFromMinutes retorna el timeframe que dura exactamente esos minutos.
func TimeframeFromMinutes(minutes int) (Timeframe, error) {
	for tf, m := range timeframeMinutes {
		if m == minutes {
			return tf, nil
		}
	}
	return 0, NewValidationError("minutes", minutes, "no timeframe matches duration")
}

// Timeframes retorna el catálogo completo, ordenado de menor a mayor duración.
func Timeframes() []Timeframe {
	return []Timeframe{
		TimeframeM1, TimeframeM2, TimeframeM3, TimeframeM4, TimeframeM5,
		TimeframeM6, TimeframeM10, TimeframeM12, TimeframeM15, TimeframeM20,
		TimeframeM30, TimeframeH1, TimeframeH2, TimeframeH3, TimeframeH4,
		TimeframeH6, TimeframeH8, TimeframeH12, TimeframeD1, TimeframeW1,
		TimeframeMN1,
	}
}

// OrderFilling representa la política de llenado (ENUM_ORDER_TYPE_FILLING).
type OrderFilling int

const (
	OrderFillingFOK    OrderFilling = 0 // Fill or kill
	OrderFillingIOC    OrderFilling = 1 // Immediate or cancel
	OrderFillingReturn OrderFilling = 2
)

// OrderTime representa la política de expiración (ENUM_ORDER_TYPE_TIME).
type OrderTime int

const (
	OrderTimeGTC          OrderTime = 0 // Good till cancelled
	OrderTimeDay          OrderTime = 1
	OrderTimeSpecified    OrderTime = 2
	OrderTimeSpecifiedDay OrderTime = 3
)

// CopyTicksFlag controla qué ticks pide copy_ticks (COPY_TICKS_*).
type CopyTicksFlag int

const (
	CopyTicksAll   CopyTicksFlag = -1
	CopyTicksInfo  CopyTicksFlag = 1 // Solo cambios bid/ask
	CopyTicksTrade CopyTicksFlag = 2 // Solo trades (last/volume)
)

// DealEntry representa la dirección de un deal (ENUM_DEAL_ENTRY).
type DealEntry int

const (
	DealEntryIn    DealEntry = 0 // Apertura
	DealEntryOut   DealEntry = 1 // Cierre
	DealEntryInOut DealEntry = 2 // Reversa
	DealEntryOutBy DealEntry = 3 // Cierre por opuesta
)

// DealType representa el tipo de deal (ENUM_DEAL_TYPE, subset operativo).
type DealType int

const (
	DealTypeBuy        DealType = 0
	DealTypeSell       DealType = 1
	DealTypeBalance    DealType = 2
	DealTypeCredit     DealType = 3
	DealTypeCommission DealType = 6
)

// IsTrade indica si el deal corresponde a una operación de mercado
// (y no a un movimiento de balance/crédito/comisión).
func (t DealType) IsTrade() bool {
	return t == DealTypeBuy || t == DealTypeSell
}

// BookType representa el tipo de entrada en profundidad de mercado
// (ENUM_BOOK_TYPE).
type BookType int

const (
	BookTypeSell       BookType = 1
	BookTypeBuy        BookType = 2
	BookTypeSellMarket BookType = 3
	BookTypeBuyMarket  BookType = 4
)
