package mt5

import (
	"fmt"
	"sync"
	"time"

	"github.com/xKoRx/mt5/domain"
	"github.com/xKoRx/mt5/utils"
)

// Nombres de las reglas registradas por defecto.
const (
	RuleVolume      = "volume"
	RulePrice       = "price"
	RuleStops       = "stops"
	RuleOrderType   = "order_type"
	RuleMagic       = "magic"
	RuleDeviation   = "deviation"
	RuleExpiration  = "expiration"
	RuleTimeframe   = "timeframe"
	RuleDateRange   = "date_range"
	RuleRequest     = "request"
	RuleCredentials = "credentials"
	RuleTicket      = "ticket"
	RuleSymbol      = "symbol"
	RuleCommandID   = "command_id"
)

// RuleFunc valida un valor; el tipo esperado depende de la regla.
type RuleFunc func(value interface{}) error

// Rule es una regla de validación registrada.
type Rule struct {
	Name        string
	Description string
	Enabled     bool
	Fn          RuleFunc
}

// Validator es el registro de reglas de validación del cliente.
//
// Las reglas por defecto delegan en los validadores de domain; se
// pueden deshabilitar, reemplazar o extender en runtime.
type Validator struct {
	mu    sync.RWMutex
	rules map[string]*Rule
}

// NewValidator crea un Validator con las reglas por defecto.
func NewValidator() *Validator {
	v := &Validator{rules: make(map[string]*Rule)}

	v.register(RuleVolume, "volumen en lotes dentro de límites razonables", func(value interface{}) error {
		lot, ok := value.(float64)
		if !ok {
			return domain.NewError(domain.ErrInvalidRequest, "volume rule expects float64")
		}
		return domain.ValidateLotSizeBasic(lot)
	})
	v.register(RulePrice, "precio positivo y finito", func(value interface{}) error {
		price, ok := value.(float64)
		if !ok {
			return domain.NewError(domain.ErrInvalidRequest, "price rule expects float64")
		}
		return domain.ValidatePrice(price)
	})
	v.register(RuleStops, "SL/TP del lado correcto de la entrada", func(value interface{}) error {
		args, ok := value.(StopsArgs)
		if !ok {
			return domain.NewError(domain.ErrInvalidRequest, "stops rule expects StopsArgs")
		}
		if args.StopLoss > 0 {
			if err := domain.ValidateStopLoss(args.StopLoss, args.Entry, args.OrderType); err != nil {
				return err
			}
		}
		if args.TakeProfit > 0 {
			if err := domain.ValidateTakeProfit(args.TakeProfit, args.Entry, args.OrderType); err != nil {
				return err
			}
		}
		return nil
	})
	v.register(RuleOrderType, "tipo de orden conocido", func(value interface{}) error {
		ot, ok := value.(domain.OrderType)
		if !ok {
			return domain.NewError(domain.ErrInvalidRequest, "order_type rule expects domain.OrderType")
		}
		if !ot.IsValid() {
			return domain.NewError(domain.ErrInvalidRequest,
				fmt.Sprintf("invalid order type %d", int(ot)))
		}
		return nil
	})
	v.register(RuleMagic, "magic number no negativo", func(value interface{}) error {
		magic, ok := value.(int64)
		if !ok {
			return domain.NewError(domain.ErrInvalidMagicNumber, "magic rule expects int64")
		}
		return domain.ValidateMagicNumber(magic)
	})
	v.register(RuleDeviation, "deviation dentro de rango", func(value interface{}) error {
		dev, ok := value.(int64)
		if !ok {
			return domain.NewError(domain.ErrInvalidRequest, "deviation rule expects int64")
		}
		return domain.ValidateDeviation(dev)
	})
	v.register(RuleExpiration, "expiración coherente con type_time", func(value interface{}) error {
		args, ok := value.(ExpirationArgs)
		if !ok {
			return domain.NewError(domain.ErrInvalidExpiration, "expiration rule expects ExpirationArgs")
		}
		return domain.ValidateExpiration(args.TypeTime, args.ExpirationMs, utils.NowUnixMilli())
	})
	v.register(RuleTimeframe, "timeframe del catálogo MT5", func(value interface{}) error {
		tf, ok := value.(domain.Timeframe)
		if !ok {
			return domain.NewError(domain.ErrInvalidRequest, "timeframe rule expects domain.Timeframe")
		}
		if !tf.IsValid() {
			return domain.NewError(domain.ErrInvalidRequest,
				fmt.Sprintf("invalid timeframe %d", int(tf)))
		}
		return nil
	})
	v.register(RuleDateRange, "rango de fechas ordenado", func(value interface{}) error {
		args, ok := value.(DateRangeArgs)
		if !ok {
			return domain.NewError(domain.ErrInvalidRequest, "date_range rule expects DateRangeArgs")
		}
		return domain.ValidateDateRange(args.From, args.To)
	})
	v.register(RuleRequest, "trade request completo por acción", func(value interface{}) error {
		req, ok := value.(*domain.TradeRequest)
		if !ok {
			return domain.NewError(domain.ErrInvalidRequest, "request rule expects *domain.TradeRequest")
		}
		return domain.ValidateTradeRequest(req)
	})
	v.register(RuleCredentials, "credenciales con formato válido", func(value interface{}) error {
		args, ok := value.(CredentialsArgs)
		if !ok {
			return domain.NewError(domain.ErrAuthFailed, "credentials rule expects CredentialsArgs")
		}
		return domain.ValidateCredentials(args.Login, args.Password, args.Server)
	})
	v.register(RuleTicket, "ticket positivo", func(value interface{}) error {
		ticket, ok := value.(int64)
		if !ok {
			return domain.NewError(domain.ErrInvalidRequest, "ticket rule expects int64")
		}
		return domain.ValidateTicket(ticket)
	})
	v.register(RuleSymbol, "símbolo con formato de broker", func(value interface{}) error {
		symbol, ok := value.(string)
		if !ok {
			return domain.NewError(domain.ErrInvalidSymbol, "symbol rule expects string")
		}
		return domain.ValidateSymbolFormat(symbol)
	})
	v.register(RuleCommandID, "command_id UUIDv7", func(value interface{}) error {
		id, ok := value.(string)
		if !ok {
			return domain.NewError(domain.ErrInvalidCommandID, "command_id rule expects string")
		}
		return domain.ValidateCommandID(id)
	})

	return v
}

// StopsArgs argumentos de la regla de stops.
type StopsArgs struct {
	OrderType  domain.OrderType
	Entry      float64
	StopLoss   float64
	TakeProfit float64
}

// ExpirationArgs argumentos de la regla de expiración.
type ExpirationArgs struct {
	TypeTime     domain.OrderTime
	ExpirationMs int64
}

// DateRangeArgs argumentos de la regla de rango de fechas.
type DateRangeArgs struct {
	From time.Time
	To   time.Time
}

// CredentialsArgs argumentos de la regla de credenciales.
type CredentialsArgs struct {
	Login    int64
	Password string
	Server   string
}

func (v *Validator) register(name, description string, fn RuleFunc) {
	v.rules[name] = &Rule{
		Name:        name,
		Description: description,
		Enabled:     true,
		Fn:          fn,
	}
}

// Validate ejecuta una regla por nombre.
//
// Una regla deshabilitada pasa siempre; una regla desconocida es error.
func (v *Validator) Validate(name string, value interface{}) error {
	v.mu.RLock()
	rule, ok := v.rules[name]
	v.mu.RUnlock()

	if !ok {
		return domain.NewError(domain.ErrInvalidRequest,
			fmt.Sprintf("unknown validation rule %q", name))
	}
	if !rule.Enabled {
		return nil
	}
	return rule.Fn(value)
}

// ValidateMultiple ejecuta varias reglas y retorna el primer error.
func (v *Validator) ValidateMultiple(checks map[string]interface{}) error {
	for name, value := range checks {
		if err := v.Validate(name, value); err != nil {
			return err
		}
	}
	return nil
}

// Rule retorna una copia de la regla registrada con ese nombre.
func (v *Validator) Rule(name string) (Rule, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	rule, ok := v.rules[name]
	if !ok {
		return Rule{}, false
	}
	return *rule, true
}

// Rules retorna los nombres de todas las reglas registradas.
func (v *Validator) Rules() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	names := make([]string, 0, len(v.rules))
	for name := range v.rules {
		names = append(names, name)
	}
	return names
}

// SetEnabled habilita o deshabilita una regla.
func (v *Validator) SetEnabled(name string, enabled bool) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	rule, ok := v.rules[name]
	if !ok {
		return false
	}
	rule.Enabled = enabled
	return true
}

// Update reemplaza la función de una regla (o la registra si no existe).
func (v *Validator) Update(name, description string, fn RuleFunc) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rules[name] = &Rule{
		Name:        name,
		Description: description,
		Enabled:     true,
		Fn:          fn,
	}
}
