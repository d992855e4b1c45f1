package domain

import (
	"testing"
)

func TestClampLotSize(t *testing.T) {
	tests := []struct {
		name      string
		spec      *VolumeSpec
		lot       float64
		expectLot float64
		wantErr   bool
	}{
		{
			name:      "lot already valid",
			spec:      &VolumeSpec{MinVolume: 0.1, MaxVolume: 10, VolumeStep: 0.1},
			lot:       0.5,
			expectLot: 0.5,
			wantErr:   false,
		},
		{
			name:      "below min clamped",
			spec:      &VolumeSpec{MinVolume: 0.1, MaxVolume: 10, VolumeStep: 0.1},
			lot:       0.05,
			expectLot: 0.1,
			wantErr:   true,
		},
		{
			name:      "above max clamped",
			spec:      &VolumeSpec{MinVolume: 0.1, MaxVolume: 1, VolumeStep: 0.1},
			lot:       2,
			expectLot: 1,
			wantErr:   true,
		},
		{
			name:      "step misalignment",
			spec:      &VolumeSpec{MinVolume: 0.01, MaxVolume: 1, VolumeStep: 0.01},
			lot:       0.015,
			expectLot: 0.02,
			wantErr:   true,
		},
		{
			name:      "zero lot defaults to min",
			spec:      &VolumeSpec{MinVolume: 0.01, MaxVolume: 100, VolumeStep: 0.01},
			lot:       0,
			expectLot: 0.01,
			wantErr:   true,
		},
		{
			name:      "invalid spec",
			spec:      &VolumeSpec{MinVolume: 0, MaxVolume: 1, VolumeStep: 0.1},
			lot:       0.5,
			expectLot: 0,
			wantErr:   true,
		},
		{
			name:      "min above max",
			spec:      &VolumeSpec{MinVolume: 2, MaxVolume: 1, VolumeStep: 0.1},
			lot:       0.5,
			expectLot: 0,
			wantErr:   true,
		},
		{
			name:      "nil spec",
			spec:      nil,
			lot:       0.5,
			expectLot: 0,
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clamped, err := ClampLotSize(tt.spec, tt.lot)
			if clamped != tt.expectLot {
				t.Fatalf("expected lot %.4f, got %.4f", tt.expectLot, clamped)
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error=%t, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestClampLotSizeFromSymbolInfo(t *testing.T) {
	info := &SymbolInfo{
		Name:       "XAUUSD",
		VolumeMin:  0.01,
		VolumeMax:  50,
		VolumeStep: 0.01,
	}

	clamped, err := ClampLotSize(info.VolumeSpec(), 0.1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if clamped != 0.1 {
		t.Fatalf("expected 0.1, got %.4f", clamped)
	}
}
