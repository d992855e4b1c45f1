// mt5-streamd re-publica en NATS los ticks y velas cerradas de los
// símbolos configurados. Pensado para correr junto al terminal y dar
// de comer a consumidores que no pueden (o no deben) hablar con el
// bridge directamente.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/xKoRx/mt5"
	"github.com/xKoRx/mt5/domain"
	"github.com/xKoRx/mt5/publish"
)

func main() {
	pipe := flag.String("pipe", "mt5_bridge", "Nombre del named pipe del bridge")
	natsURL := flag.String("nats", "nats://localhost:4222", "URL del servidor NATS")
	symbolsFlag := flag.String("symbols", "", "Símbolos a streamear, separados por coma (requerido)")
	tfName := flag.String("tf", "M1", "Timeframe de las velas a publicar")
	tickInterval := flag.Duration("tick-interval", 250*time.Millisecond, "Intervalo de polling de ticks")
	otlp := flag.String("otlp", "", "Endpoint OTLP para telemetría (vacío la deshabilita)")
	flag.Parse()

	if *symbolsFlag == "" {
		fmt.Fprintln(os.Stderr, "--symbols es requerido")
		flag.Usage()
		os.Exit(1)
	}
	symbols := strings.Split(*symbolsFlag, ",")
	for i := range symbols {
		symbols[i] = strings.TrimSpace(symbols[i])
	}

	tf, err := domain.TimeframeFromString(*tfName)
	if err != nil {
		fatal("timeframe inválido %q: %v", *tfName, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := []mt5.Option{
		mt5.WithPipeName(*pipe),
		mt5.WithAutoReconnect(true, 0, 0),
	}
	if *otlp != "" {
		opts = append(opts, mt5.WithTelemetry("mt5-streamd", "production", *otlp))
	}

	client, err := mt5.New(ctx, opts...)
	if err != nil {
		fatal("error creando cliente: %v", err)
	}
	if err := client.Initialize(ctx); err != nil {
		fatal("error conectando con el terminal: %v", err)
	}
	defer client.Shutdown(context.Background())

	publisher := publish.New(nil,
		publish.WithURL(*natsURL),
		publish.WithName("mt5-streamd"),
	)
	if err := publisher.Connect(ctx); err != nil {
		fatal("error conectando con NATS: %v", err)
	}
	defer publisher.Close(context.Background())

	var wg sync.WaitGroup
	for _, symbol := range symbols {
		if err := client.Symbols().Select(ctx, symbol); err != nil {
			fatal("error seleccionando %s: %v", symbol, err)
		}

		_, ticks, err := client.Data().StreamTicks(ctx, symbol, *tickInterval)
		if err != nil {
			fatal("error abriendo stream de ticks de %s: %v", symbol, err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for tick := range ticks {
				t := tick
				if err := publisher.PublishTick(ctx, &t); err != nil {
					fmt.Fprintf(os.Stderr, "publish tick %s: %v\n", t.Symbol, err)
				}
			}
		}()

		_, candles, err := client.Data().StreamCandles(ctx, symbol, tf, time.Second)
		if err != nil {
			fatal("error abriendo stream de velas de %s: %v", symbol, err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for candle := range candles {
				c := candle
				if err := publisher.PublishCandle(ctx, &c, tf); err != nil {
					fmt.Fprintf(os.Stderr, "publish candle %s: %v\n", c.Symbol, err)
				}
			}
		}()
	}

	fmt.Fprintf(os.Stderr, "streaming %s hacia %s (velas %s)\n",
		strings.Join(symbols, ","), *natsURL, tf.String())

	<-ctx.Done()
	client.Data().StopAllStreams()
	wg.Wait()
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
