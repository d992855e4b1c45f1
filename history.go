package mt5

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"sort"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/montanaflynn/stats"
	"github.com/olekukonko/tablewriter"

	"github.com/xKoRx/mt5/bridge"
	"github.com/xKoRx/mt5/domain"
	"github.com/xKoRx/mt5/telemetry"
	"github.com/xKoRx/mt5/utils"
)

// HistoryService consulta el histórico de deals y órdenes de la cuenta
// y calcula métricas de performance sobre él.
type HistoryService struct {
	tx        bridge.Transport
	telemetry *telemetry.Client
}

// NewHistoryService crea el servicio de histórico.
func NewHistoryService(tx bridge.Transport, tel *telemetry.Client) *HistoryService {
	if tel == nil {
		tel = telemetry.NewNop()
	}
	return &HistoryService{tx: tx, telemetry: tel}
}

// Deals retorna los deals del rango de fechas.
func (s *HistoryService) Deals(ctx context.Context, from, to time.Time) ([]domain.Deal, error) {
	if err := domain.ValidateDateRange(from, to); err != nil {
		return nil, err
	}

	params := map[string]interface{}{
		"from_ms": from.UnixMilli(),
		"to_ms":   to.UnixMilli(),
	}
	var out struct {
		Deals []domain.Deal `json:"deals"`
	}
	if err := s.tx.Call(ctx, bridge.MethodHistoryDeals, params, &out); err != nil {
		return nil, err
	}
	return out.Deals, nil
}

// Orders retorna las órdenes resueltas del rango de fechas.
func (s *HistoryService) Orders(ctx context.Context, from, to time.Time) ([]domain.HistoryOrder, error) {
	if err := domain.ValidateDateRange(from, to); err != nil {
		return nil, err
	}

	params := map[string]interface{}{
		"from_ms": from.UnixMilli(),
		"to_ms":   to.UnixMilli(),
	}
	var out struct {
		Orders []domain.HistoryOrder `json:"orders"`
	}
	if err := s.tx.Call(ctx, bridge.MethodHistoryOrders, params, &out); err != nil {
		return nil, err
	}
	return out.Orders, nil
}

// DealsToday retorna los deals desde la medianoche local.
func (s *HistoryService) DealsToday(ctx context.Context) ([]domain.Deal, error) {
	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return s.Deals(ctx, midnight, now)
}

// DealsPeriod retorna los deals de los últimos days días.
func (s *HistoryService) DealsPeriod(ctx context.Context, days int) ([]domain.Deal, error) {
	now := time.Now()
	return s.Deals(ctx, now.AddDate(0, 0, -days), now)
}

// ---------- Métricas de performance ----------

// PerformanceMetrics métricas agregadas sobre un conjunto de deals.
//
// Sólo cuentan los deals de cierre (entry out); los de entrada no
// realizan profit. Con cero trades todas las métricas son cero.
type PerformanceMetrics struct {
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRate       float64 `json:"win_rate"` // porcentaje
	TotalProfit   float64 `json:"total_profit"`
	GrossProfit   float64 `json:"gross_profit"`
	GrossLoss     float64 `json:"gross_loss"`
	ProfitFactor  float64 `json:"profit_factor"`
	AverageWin    float64 `json:"average_win"`
	AverageLoss   float64 `json:"average_loss"`
	LargestWin    float64 `json:"largest_win"`
	LargestLoss   float64 `json:"largest_loss"`
	SharpeRatio   float64 `json:"sharpe_ratio"`
	MaxDrawdown   float64 `json:"max_drawdown"`
	TotalVolume   float64 `json:"total_volume"`
	TotalSwap     float64 `json:"total_swap"`
	TotalFees     float64 `json:"total_commission"`
}

// Calculate computa las métricas de performance de un conjunto de deals.
func Calculate(deals []domain.Deal) *PerformanceMetrics {
	m := &PerformanceMetrics{}

	var profits []float64
	for _, d := range deals {
		if !d.Type.IsTrade() || !d.IsClose() {
			continue
		}

		net := d.NetProfit()
		profits = append(profits, net)

		m.TotalTrades++
		m.TotalProfit += net
		m.TotalVolume += d.Volume
		m.TotalSwap += d.Swap
		m.TotalFees += d.Commission + d.Fee

		if net > 0 {
			m.WinningTrades++
			m.GrossProfit += net
			if net > m.LargestWin {
				m.LargestWin = net
			}
		} else if net < 0 {
			m.LosingTrades++
			m.GrossLoss += -net
			if net < m.LargestLoss {
				m.LargestLoss = net
			}
		}
	}

	if m.TotalTrades == 0 {
		return m
	}

	m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades) * 100
	if m.WinningTrades > 0 {
		m.AverageWin = m.GrossProfit / float64(m.WinningTrades)
	}
	if m.LosingTrades > 0 {
		m.AverageLoss = -m.GrossLoss / float64(m.LosingTrades)
	}
	if m.GrossLoss > 0 {
		m.ProfitFactor = m.GrossProfit / m.GrossLoss
	} else if m.GrossProfit > 0 {
		m.ProfitFactor = math.Inf(1)
	}

	m.SharpeRatio = sharpeRatio(profits)
	m.MaxDrawdown = maxDrawdown(profits)
	return m
}

// sharpeRatio calcula el sharpe simple (media/desvío) de la serie de
// profits por trade. Sin variación retorna cero.
func sharpeRatio(profits []float64) float64 {
	if len(profits) < 2 {
		return 0
	}
	mean, err := stats.Mean(profits)
	if err != nil {
		return 0
	}
	stdev, err := stats.StandardDeviationSample(profits)
	if err != nil || stdev == 0 {
		return 0
	}
	return mean / stdev
}

// maxDrawdown calcula la máxima caída de la curva de equity acumulada.
func maxDrawdown(profits []float64) float64 {
	var equity, peak, maxDD float64
	for _, p := range profits {
		equity += p
		if equity > peak {
			peak = equity
		}
		if dd := peak - equity; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// CalculateRange consulta los deals del rango y computa sus métricas.
func (s *HistoryService) CalculateRange(ctx context.Context, from, to time.Time) (*PerformanceMetrics, error) {
	deals, err := s.Deals(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return Calculate(deals), nil
}

// ---------- Análisis ----------

// AnalyzeBySymbol agrupa métricas por símbolo.
func AnalyzeBySymbol(deals []domain.Deal) map[string]*PerformanceMetrics {
	groups := make(map[string][]domain.Deal)
	for _, d := range deals {
		if d.Symbol == "" {
			continue
		}
		groups[d.Symbol] = append(groups[d.Symbol], d)
	}

	out := make(map[string]*PerformanceMetrics, len(groups))
	for symbol, group := range groups {
		out[symbol] = Calculate(group)
	}
	return out
}

// AnalyzeByHour agrupa el profit neto de cierre por hora del día (0-23).
func AnalyzeByHour(deals []domain.Deal) map[int]float64 {
	out := make(map[int]float64)
	for _, d := range deals {
		if !d.Type.IsTrade() || !d.IsClose() {
			continue
		}
		out[d.Time().Hour()] += d.NetProfit()
	}
	return out
}

// AnalyzeByWeekday agrupa el profit neto de cierre por día de la semana.
func AnalyzeByWeekday(deals []domain.Deal) map[time.Weekday]float64 {
	out := make(map[time.Weekday]float64)
	for _, d := range deals {
		if !d.Type.IsTrade() || !d.IsClose() {
			continue
		}
		out[d.Time().Weekday()] += d.NetProfit()
	}
	return out
}

// ---------- Reportes ----------

// Report escribe un reporte tabular de performance del rango.
func (s *HistoryService) Report(ctx context.Context, w io.Writer, from, to time.Time) error {
	deals, err := s.Deals(ctx, from, to)
	if err != nil {
		return err
	}
	metrics := Calculate(deals)

	fmt.Fprintf(w, "Performance report %s - %s\n\n",
		from.Format("2006-01-02"), to.Format("2006-01-02"))

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Metric", "Value"})
	table.SetBorder(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	pf := fmt.Sprintf("%.2f", metrics.ProfitFactor)
	if math.IsInf(metrics.ProfitFactor, 1) {
		pf = "inf"
	}

	table.AppendBulk([][]string{
		{"Total trades", fmt.Sprintf("%d", metrics.TotalTrades)},
		{"Win rate", fmt.Sprintf("%.1f%%", metrics.WinRate)},
		{"Total profit", fmt.Sprintf("%.2f", metrics.TotalProfit)},
		{"Profit factor", pf},
		{"Average win", fmt.Sprintf("%.2f", metrics.AverageWin)},
		{"Average loss", fmt.Sprintf("%.2f", metrics.AverageLoss)},
		{"Largest win", fmt.Sprintf("%.2f", metrics.LargestWin)},
		{"Largest loss", fmt.Sprintf("%.2f", metrics.LargestLoss)},
		{"Sharpe ratio", fmt.Sprintf("%.3f", metrics.SharpeRatio)},
		{"Max drawdown", fmt.Sprintf("%.2f", metrics.MaxDrawdown)},
		{"Total volume", fmt.Sprintf("%.2f", metrics.TotalVolume)},
	})
	table.Render()

	// Desglose por símbolo, ordenado por profit
	bySymbol := AnalyzeBySymbol(deals)
	if len(bySymbol) == 0 {
		return nil
	}

	symbols := make([]string, 0, len(bySymbol))
	for sym := range bySymbol {
		symbols = append(symbols, sym)
	}
	sort.Slice(symbols, func(i, j int) bool {
		return bySymbol[symbols[i]].TotalProfit > bySymbol[symbols[j]].TotalProfit
	})

	fmt.Fprintf(w, "\nBy symbol\n")
	symTable := tablewriter.NewWriter(w)
	symTable.SetHeader([]string{"Symbol", "Trades", "Win rate", "Profit"})
	symTable.SetBorder(false)
	for _, sym := range symbols {
		sm := bySymbol[sym]
		symTable.Append([]string{
			sym,
			fmt.Sprintf("%d", sm.TotalTrades),
			fmt.Sprintf("%.1f%%", sm.WinRate),
			fmt.Sprintf("%.2f", sm.TotalProfit),
		})
	}
	symTable.Render()
	return nil
}

// Summary retorna un resumen de actividad del rango.
func (s *HistoryService) Summary(ctx context.Context, from, to time.Time) (map[string]interface{}, error) {
	metrics, err := s.CalculateRange(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"from":          from.Format(time.RFC3339),
		"to":            to.Format(time.RFC3339),
		"total_trades":  metrics.TotalTrades,
		"win_rate":      metrics.WinRate,
		"total_profit":  metrics.TotalProfit,
		"profit_factor": metrics.ProfitFactor,
		"max_drawdown":  metrics.MaxDrawdown,
	}, nil
}

// ---------- Export ----------

// ExportDealsCSV serializa deals a CSV.
func ExportDealsCSV(deals []domain.Deal) ([]byte, error) {
	var buf bytes.Buffer
	if err := gocsv.Marshal(&deals, &buf); err != nil {
		return nil, fmt.Errorf("failed to serialize deals: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportDealsJSON serializa deals a JSON indentado.
func ExportDealsJSON(deals []domain.Deal) ([]byte, error) {
	data, err := utils.MarshalJSON(deals)
	if err != nil {
		return nil, err
	}
	return []byte(utils.PrettyPrint(data)), nil
}
