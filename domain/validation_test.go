package domain

import (
	"testing"
	"time"
)

func TestValidateSymbolFormat(t *testing.T) {
	valid := []string{"XAUUSD", "EURUSD.m", "#AAPL", "BTC-USD", "US500"}
	for _, s := range valid {
		if err := ValidateSymbolFormat(s); err != nil {
			t.Errorf("symbol %q should be valid: %v", s, err)
		}
	}

	invalid := []string{"", "A", "EUR USD", "sym(bol)"}
	for _, s := range invalid {
		if err := ValidateSymbolFormat(s); err == nil {
			t.Errorf("symbol %q should be invalid", s)
		}
	}
}

func TestValidateStops(t *testing.T) {
	tests := []struct {
		name      string
		sl, tp    float64
		entry     float64
		orderType OrderType
		wantErr   bool
	}{
		{"buy valid stops", 1940, 1960, 1950, OrderTypeBuy, false},
		{"buy sl above entry", 1955, 0, 1950, OrderTypeBuy, true},
		{"buy tp below entry", 0, 1945, 1950, OrderTypeBuy, true},
		{"sell valid stops", 1960, 1940, 1950, OrderTypeSell, false},
		{"sell sl below entry", 1945, 0, 1950, OrderTypeSell, true},
		{"optional stops omitted", 0, 0, 1950, OrderTypeBuy, false},
		{"pending buy limit uses buy rules", 1890, 1920, 1900, OrderTypeBuyLimit, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStopLoss(tt.sl, tt.entry, tt.orderType)
			if err == nil {
				err = ValidateTakeProfit(tt.tp, tt.entry, tt.orderType)
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error=%t, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateStopsDistance(t *testing.T) {
	// stops level de 50 points con point 0.01 => distancia mínima 0.50
	if err := ValidateStopsDistance(1950.00, 1949.60, 0, 0.01, 50); err == nil {
		t.Fatal("expected error for SL inside stops level")
	}
	if err := ValidateStopsDistance(1950.00, 1949.00, 1951.00, 0.01, 50); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Sin stops level no hay restricción
	if err := ValidateStopsDistance(1950.00, 1949.99, 0, 0.01, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateUUIDv7(t *testing.T) {
	if err := ValidateUUIDv7("01920d5e-9a3f-7abc-8def-123456789abc"); err != nil {
		t.Fatalf("expected valid UUIDv7: %v", err)
	}
	// v4 no pasa
	if err := ValidateUUIDv7("550e8400-e29b-41d4-a716-446655440000"); err == nil {
		t.Fatal("expected error for UUIDv4")
	}
	if err := ValidateUUIDv7("not-a-uuid"); err == nil {
		t.Fatal("expected error for malformed UUID")
	}
}

func TestValidateExpiration(t *testing.T) {
	now := time.Now().UnixMilli()

	if err := ValidateExpiration(OrderTimeGTC, 0, now); err != nil {
		t.Fatalf("GTC should not require expiration: %v", err)
	}
	if err := ValidateExpiration(OrderTimeSpecified, 0, now); err == nil {
		t.Fatal("specified time requires expiration")
	}
	if err := ValidateExpiration(OrderTimeSpecified, now-1000, now); err == nil {
		t.Fatal("expiration in the past should fail")
	}
	if err := ValidateExpiration(OrderTimeSpecified, now+60_000, now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateCredentials(t *testing.T) {
	if err := ValidateCredentials(12345, "secret", "Broker-Demo"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateCredentials(0, "secret", "Broker-Demo"); err == nil {
		t.Fatal("expected error for zero login")
	}
	if err := ValidateCredentials(12345, "", "Broker-Demo"); err == nil {
		t.Fatal("expected error for empty password")
	}
	if err := ValidateCredentials(12345, "secret", ""); err == nil {
		t.Fatal("expected error for empty server")
	}
}

func TestValidateTradeRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     *TradeRequest
		wantErr bool
	}{
		{
			name: "market buy valid",
			req: &TradeRequest{
				Action: TradeActionDeal,
				Symbol: "XAUUSD",
				Volume: 0.1,
				Type:   OrderTypeBuy,
			},
			wantErr: false,
		},
		{
			name: "pending without price",
			req: &TradeRequest{
				Action: TradeActionPending,
				Symbol: "XAUUSD",
				Volume: 0.1,
				Type:   OrderTypeBuyLimit,
			},
			wantErr: true,
		},
		{
			name: "pending with market type",
			req: &TradeRequest{
				Action: TradeActionPending,
				Symbol: "XAUUSD",
				Volume: 0.1,
				Price:  1950,
				Type:   OrderTypeBuy,
			},
			wantErr: true,
		},
		{
			name: "sltp without position",
			req: &TradeRequest{
				Action: TradeActionSLTP,
				Symbol: "XAUUSD",
			},
			wantErr: true,
		},
		{
			name: "remove with order ticket",
			req: &TradeRequest{
				Action: TradeActionRemove,
				Order:  123456,
			},
			wantErr: false,
		},
		{
			name: "close by needs both positions",
			req: &TradeRequest{
				Action:   TradeActionCloseBy,
				Position: 100,
			},
			wantErr: true,
		},
		{
			name:    "nil request",
			req:     nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTradeRequest(tt.req)
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error=%t, got %v", tt.wantErr, err)
			}
		})
	}
}
