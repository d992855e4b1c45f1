package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/xKoRx/mt5"
	"github.com/xKoRx/mt5/domain"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	switch command {
	case "status":
		runStatus(os.Args[2:])
	case "symbols":
		runSymbols(os.Args[2:])
	case "quote":
		runQuote(os.Args[2:])
	case "candles":
		runCandles(os.Args[2:])
	case "positions":
		runPositions(os.Args[2:])
	case "history":
		runHistory(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "comando desconocido: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	usage := `mt5-cli - herramientas operativas contra el terminal MT5

Uso:
  mt5-cli status    [--pipe mt5_bridge] [--timeout 10s]
  mt5-cli symbols   [--group "*USD*"] [--visible]
  mt5-cli quote     --symbol EURUSD
  mt5-cli candles   --symbol EURUSD [--tf H1] [--count 100] [--csv]
  mt5-cli positions [--symbol EURUSD]
  mt5-cli history   [--days 30]

Comandos:
  status     Estado del terminal y la cuenta conectada.
  symbols    Lista de símbolos del broker.
  quote      Quote actual de un símbolo.
  candles    Últimas velas de un símbolo.
  positions  Posiciones abiertas.
  history    Reporte de performance del período.
`
	fmt.Fprintln(os.Stderr, usage)
}

// commonFlags registra los flags compartidos por todos los subcomandos.
func commonFlags(fs *flag.FlagSet) (*string, *time.Duration) {
	pipe := fs.String("pipe", "mt5_bridge", "Nombre del named pipe del bridge")
	timeout := fs.Duration("timeout", 10*time.Second, "Timeout de la operación")
	return pipe, timeout
}

// connect crea el cliente y espera la conexión del bridge.
func connect(ctx context.Context, pipe string) *mt5.Client {
	client, err := mt5.New(ctx,
		mt5.WithPipeName(pipe),
		mt5.WithAutoReconnect(false, 0, 0),
	)
	if err != nil {
		fatal("error creando cliente: %v", err)
	}
	if err := client.Initialize(ctx); err != nil {
		fatal("error conectando con el terminal: %v", err)
	}
	return client
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func runStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	pipe, timeout := commonFlags(fs)
	fs.Parse(args)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client := connect(ctx, *pipe)
	defer client.Shutdown(context.Background())

	if err := client.Terminal().PrintInfo(ctx, os.Stdout); err != nil {
		fatal("error consultando terminal: %v", err)
	}

	acc, err := client.Account().Get(ctx)
	if err != nil {
		fatal("error consultando cuenta: %v", err)
	}
	fmt.Printf("\nCuenta: %d (%s) - %s\n", acc.Login, acc.Server, acc.Currency)
	fmt.Printf("Balance: %.2f  Equity: %.2f  Margin level: %.1f%%\n",
		acc.Balance, acc.Equity, acc.MarginLevel)

	issues, err := client.Terminal().CheckCompatibility(ctx)
	if err != nil {
		fatal("error verificando compatibilidad: %v", err)
	}
	for _, issue := range issues {
		fmt.Printf("[%s] %s\n", issue.Severity, issue.Message)
	}
}

func runSymbols(args []string) {
	fs := flag.NewFlagSet("symbols", flag.ExitOnError)
	pipe, timeout := commonFlags(fs)
	group := fs.String("group", "", "Filtro de grupo del terminal (ej. \"*USD*\")")
	visible := fs.Bool("visible", false, "Sólo símbolos del MarketWatch")
	fs.Parse(args)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client := connect(ctx, *pipe)
	defer client.Shutdown(context.Background())

	symbols, err := client.Symbols().List(ctx, *group, *visible)
	if err != nil {
		fatal("error listando símbolos: %v", err)
	}
	for _, sym := range symbols {
		fmt.Println(sym)
	}
	fmt.Fprintf(os.Stderr, "%d símbolos\n", len(symbols))
}

func runQuote(args []string) {
	fs := flag.NewFlagSet("quote", flag.ExitOnError)
	pipe, timeout := commonFlags(fs)
	symbol := fs.String("symbol", "", "Símbolo a consultar")
	fs.Parse(args)

	if *symbol == "" {
		fatal("--symbol es requerido")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client := connect(ctx, *pipe)
	defer client.Shutdown(context.Background())

	tick, err := client.Symbols().Price(ctx, *symbol)
	if err != nil {
		fatal("error consultando quote: %v", err)
	}
	spread, err := client.Symbols().Spread(ctx, *symbol)
	if err != nil {
		fatal("error calculando spread: %v", err)
	}

	fmt.Printf("%s  bid=%.5f  ask=%.5f  spread=%.1f pts  %s\n",
		*symbol, tick.Bid, tick.Ask, spread, tick.Time().Format(time.RFC3339))
}

func runCandles(args []string) {
	fs := flag.NewFlagSet("candles", flag.ExitOnError)
	pipe, timeout := commonFlags(fs)
	symbol := fs.String("symbol", "", "Símbolo a consultar")
	tfName := fs.String("tf", "H1", "Timeframe (M1, M5, H1, D1...)")
	count := fs.Int("count", 100, "Cantidad de velas")
	asCSV := fs.Bool("csv", false, "Salida en CSV")
	fs.Parse(args)

	if *symbol == "" {
		fatal("--symbol es requerido")
	}
	tf, err := domain.TimeframeFromString(*tfName)
	if err != nil {
		fatal("timeframe inválido %q: %v", *tfName, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client := connect(ctx, *pipe)
	defer client.Shutdown(context.Background())

	candles, err := client.Data().CandlesByPos(ctx, *symbol, tf, 0, *count)
	if err != nil {
		fatal("error consultando velas: %v", err)
	}

	if *asCSV {
		data, err := mt5.ExportCandlesCSV(candles)
		if err != nil {
			fatal("error exportando CSV: %v", err)
		}
		os.Stdout.Write(data)
		return
	}
	for _, c := range candles {
		fmt.Printf("%s  O=%.5f H=%.5f L=%.5f C=%.5f  v=%d\n",
			c.Time().Format("2006-01-02 15:04"), c.Open, c.High, c.Low, c.Close, c.TickVolume)
	}
}

func runPositions(args []string) {
	fs := flag.NewFlagSet("positions", flag.ExitOnError)
	pipe, timeout := commonFlags(fs)
	symbol := fs.String("symbol", "", "Filtrar por símbolo")
	fs.Parse(args)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client := connect(ctx, *pipe)
	defer client.Shutdown(context.Background())

	var filter *mt5.OrderFilter
	if *symbol != "" {
		filter = &mt5.OrderFilter{Symbol: *symbol}
	}
	positions, err := client.Trade().Positions(ctx, filter)
	if err != nil {
		fatal("error consultando posiciones: %v", err)
	}
	if len(positions) == 0 {
		fmt.Println("sin posiciones abiertas")
		return
	}
	for _, pos := range positions {
		fmt.Printf("#%d  %s %s %.2f @ %.5f  sl=%.5f tp=%.5f  pl=%.2f\n",
			pos.Ticket, pos.Symbol, pos.Type.String(), pos.Volume,
			pos.PriceOpen, pos.StopLoss, pos.TakeProfit, pos.Profit)
	}
}

func runHistory(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	pipe, timeout := commonFlags(fs)
	days := fs.Int("days", 30, "Días hacia atrás a analizar")
	fs.Parse(args)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client := connect(ctx, *pipe)
	defer client.Shutdown(context.Background())

	to := time.Now()
	from := to.AddDate(0, 0, -*days)
	if err := client.History().Report(ctx, os.Stdout, from, to); err != nil {
		fatal("error generando reporte: %v", err)
	}
}
