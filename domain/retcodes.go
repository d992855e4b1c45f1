package domain

// Retcodes del trade server MT5 (TRADE_RETCODE_*).
//
// Son los valores que llegan en TradeResult.Retcode; se mantienen los
// números del terminal sin traducción.
const (
	RetcodeRequote           = 10004
	RetcodeReject            = 10006
	RetcodeCancel            = 10007
	RetcodePlaced            = 10008
	RetcodeDone              = 10009
	RetcodeDonePartial       = 10010
	RetcodeError             = 10011
	RetcodeTimeout           = 10012
	RetcodeInvalid           = 10013
	RetcodeInvalidVolume     = 10014
	RetcodeInvalidPrice      = 10015
	RetcodeInvalidStops      = 10016
	RetcodeTradeDisabled     = 10017
	RetcodeMarketClosed      = 10018
	RetcodeNoMoney           = 10019
	RetcodePriceChanged      = 10020
	RetcodePriceOff          = 10021
	RetcodeInvalidExpiration = 10022
	RetcodeOrderChanged      = 10023
	RetcodeTooManyRequests   = 10024
	RetcodeNoChanges         = 10025
	RetcodeServerDisables    = 10026
	RetcodeClientDisables    = 10027
	RetcodeLocked            = 10028
	RetcodeFrozen            = 10029
	RetcodeInvalidFill       = 10030
	RetcodeConnection        = 10031
	RetcodeOnlyReal          = 10032
	RetcodeLimitOrders       = 10033
	RetcodeLimitVolume       = 10034
	RetcodeInvalidOrder      = 10035
	RetcodePositionClosed    = 10036
	RetcodeInvalidCloseVol   = 10038
	RetcodeCloseOrderExist   = 10039
	RetcodeLimitPositions    = 10040
	RetcodeRejectCancel      = 10041
	RetcodeLongOnly          = 10042
	RetcodeShortOnly         = 10043
	RetcodeCloseOnly         = 10044
	RetcodeFifoClose         = 10045
)

var retcodeDescriptions = map[int]string{
	RetcodeRequote:           "requote",
	RetcodeReject:            "request rejected",
	RetcodeCancel:            "request canceled by trader",
	RetcodePlaced:            "order placed",
	RetcodeDone:              "request completed",
	RetcodeDonePartial:       "request partially completed",
	RetcodeError:             "request processing error",
	RetcodeTimeout:           "request canceled by timeout",
	RetcodeInvalid:           "invalid request",
	RetcodeInvalidVolume:     "invalid volume",
	RetcodeInvalidPrice:      "invalid price",
	RetcodeInvalidStops:      "invalid stops",
	RetcodeTradeDisabled:     "trade disabled",
	RetcodeMarketClosed:      "market closed",
	RetcodeNoMoney:           "not enough money",
	RetcodePriceChanged:      "price changed",
	RetcodePriceOff:          "off quotes",
	RetcodeInvalidExpiration: "invalid expiration",
	RetcodeOrderChanged:      "order state changed",
	RetcodeTooManyRequests:   "too many requests",
	RetcodeNoChanges:         "no changes in request",
	RetcodeServerDisables:    "autotrading disabled by server",
	RetcodeClientDisables:    "autotrading disabled by terminal",
	RetcodeLocked:            "request locked for processing",
	RetcodeFrozen:            "order or position frozen",
	RetcodeInvalidFill:       "invalid fill type",
	RetcodeConnection:        "no connection with trade server",
	RetcodeOnlyReal:          "operation allowed only for live accounts",
	RetcodeLimitOrders:       "pending orders limit reached",
	RetcodeLimitVolume:       "volume limit for symbol reached",
	RetcodeInvalidOrder:      "invalid or prohibited order type",
	RetcodePositionClosed:    "position already closed",
	RetcodeInvalidCloseVol:   "close volume exceeds position volume",
	RetcodeCloseOrderExist:   "close order already exists",
	RetcodeLimitPositions:    "positions limit reached",
	RetcodeRejectCancel:      "pending activation rejected, order canceled",
	RetcodeLongOnly:          "only long positions allowed",
	RetcodeShortOnly:         "only short positions allowed",
	RetcodeCloseOnly:         "only closing allowed",
	RetcodeFifoClose:         "close allowed by FIFO rule only",
}

// RetcodeDescription retorna la descripción del retcode del trade server.
func RetcodeDescription(retcode int) string {
	if desc, ok := retcodeDescriptions[retcode]; ok {
		return desc
	}
	return "unknown retcode"
}

// ErrorFromRetcode convierte un retcode del trade server a ErrorCode.
//
// Los retcodes de éxito (DONE, DONE_PARTIAL, PLACED) mapean a ErrNoError.
func ErrorFromRetcode(retcode int) ErrorCode {
	switch retcode {
	case 0, RetcodeDone, RetcodeDonePartial, RetcodePlaced, RetcodeNoChanges:
		return ErrNoError
	case RetcodeRequote:
		return ErrRequote
	case RetcodeReject, RetcodeRejectCancel:
		return ErrRejected
	case RetcodeError:
		return ErrBrokerBusy
	case RetcodeTimeout:
		return ErrTimeout
	case RetcodeInvalid, RetcodeInvalidOrder:
		return ErrInvalidRequest
	case RetcodeInvalidVolume, RetcodeInvalidCloseVol:
		return ErrInvalidVolume
	case RetcodeInvalidPrice:
		return ErrInvalidPrice
	case RetcodeInvalidStops:
		return ErrInvalidStops
	case RetcodeTradeDisabled, RetcodeServerDisables, RetcodeClientDisables:
		return ErrTradeDisabled
	case RetcodeMarketClosed:
		return ErrMarketClosed
	case RetcodeNoMoney:
		return ErrNoMoney
	case RetcodePriceChanged:
		return ErrPriceChanged
	case RetcodePriceOff:
		return ErrOffQuotes
	case RetcodeInvalidExpiration:
		return ErrInvalidExpiration
	case RetcodeTooManyRequests:
		return ErrTooManyRequests
	case RetcodeFrozen, RetcodeLocked:
		return ErrFrozen
	case RetcodeInvalidFill:
		return ErrInvalidFill
	case RetcodeConnection:
		return ErrConnectionLost
	case RetcodeLimitOrders, RetcodeLimitPositions:
		return ErrLimitOrders
	case RetcodeLimitVolume:
		return ErrLimitVolume
	case RetcodePositionClosed, RetcodeCloseOrderExist:
		return ErrPositionClosed
	case RetcodeLongOnly:
		return ErrLongOnly
	case RetcodeShortOnly:
		return ErrShortOnly
	case RetcodeCloseOnly, RetcodeFifoClose:
		return ErrCloseOnly
	default:
		return ErrUnknown
	}
}

// IsRetryableRetcode indica si vale la pena reenviar la orden tras este retcode.
func IsRetryableRetcode(retcode int) bool {
	return IsRetryable(ErrorFromRetcode(retcode))
}

// ErrorFromTradeResult construye un TradingError desde un resultado fallido.
//
// Retorna nil si el resultado fue exitoso.
func ErrorFromTradeResult(result *TradeResult) *TradingError {
	if result == nil {
		return NewError(ErrUnknown, "nil trade result")
	}
	if result.Success() {
		return nil
	}
	code := ErrorFromRetcode(result.Retcode)
	if code == ErrNoError {
		return nil
	}
	msg := result.Comment
	if msg == "" {
		msg = RetcodeDescription(result.Retcode)
	}
	return NewError(code, msg).WithDetail("retcode", result.Retcode)
}
