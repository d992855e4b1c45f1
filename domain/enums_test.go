package domain

import (
	"testing"
	"time"
)

func TestOrderTypeHelpers(t *testing.T) {
	if !OrderTypeBuy.IsMarket() || !OrderTypeSell.IsMarket() {
		t.Fatal("BUY/SELL should be market orders")
	}
	if OrderTypeBuyLimit.IsMarket() {
		t.Fatal("BUY_LIMIT is not a market order")
	}
	if !OrderTypeSellStopLimit.IsPending() {
		t.Fatal("SELL_STOP_LIMIT should be pending")
	}
	if !OrderTypeBuyStop.IsBuy() || OrderTypeBuyStop.IsSell() {
		t.Fatal("BUY_STOP direction mismatch")
	}
	if OrderTypeBuy.Opposite() != OrderTypeSell || OrderTypeSell.Opposite() != OrderTypeBuy {
		t.Fatal("Opposite should flip market direction")
	}
	if OrderTypeBuy.String() != "BUY" {
		t.Fatalf("unexpected String: %s", OrderTypeBuy.String())
	}
}

func TestTimeframeConversions(t *testing.T) {
	tests := []struct {
		tf      Timeframe
		name    string
		minutes int
	}{
		{TimeframeM1, "M1", 1},
		{TimeframeM30, "M30", 30},
		{TimeframeH1, "H1", 60},
		{TimeframeH4, "H4", 240},
		{TimeframeD1, "D1", 1440},
		{TimeframeW1, "W1", 10080},
		{TimeframeMN1, "MN1", 43200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.tf.String() != tt.name {
				t.Fatalf("String() = %s, want %s", tt.tf.String(), tt.name)
			}
			if tt.tf.Minutes() != tt.minutes {
				t.Fatalf("Minutes() = %d, want %d", tt.tf.Minutes(), tt.minutes)
			}
			if tt.tf.Duration() != time.Duration(tt.minutes)*time.Minute {
				t.Fatalf("Duration mismatch for %s", tt.name)
			}

			parsed, err := TimeframeFromString(tt.name)
			if err != nil {
				t.Fatalf("TimeframeFromString(%s): %v", tt.name, err)
			}
			if parsed != tt.tf {
				t.Fatalf("parsed %d, want %d", parsed, tt.tf)
			}

			fromMinutes, err := TimeframeFromMinutes(tt.minutes)
			if err != nil {
				t.Fatalf("TimeframeFromMinutes(%d): %v", tt.minutes, err)
			}
			if fromMinutes != tt.tf {
				t.Fatalf("from minutes %d, want %d", fromMinutes, tt.tf)
			}
		})
	}

	if _, err := TimeframeFromString("M7"); err == nil {
		t.Fatal("expected error for unknown timeframe")
	}
	if _, err := TimeframeFromMinutes(7); err == nil {
		t.Fatal("expected error for unknown duration")
	}
}

func TestTimeframesCatalogOrdered(t *testing.T) {
	all := Timeframes()
	if len(all) != 21 {
		t.Fatalf("expected 21 timeframes, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].Minutes() <= all[i-1].Minutes() {
			t.Fatalf("catalog not ordered at %s", all[i])
		}
	}
}
