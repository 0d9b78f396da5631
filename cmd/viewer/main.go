package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"blobview/internal/mirror"
	"blobview/internal/transport/feed"
	"blobview/internal/transport/observer"
	"blobview/internal/tuning"
)

func main() {
	var (
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		addr       = flag.String("addr", "", "producer listen address override (host:port)")
		obsAddr    = flag.String("observer", "", "observer http listen address override (empty: tuning value)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[viewer] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("tuning not found (%s); using defaults", *tuningPath)
			tune = tuning.Defaults()
		} else {
			logger.Fatalf("load tuning: %v", err)
		}
	}

	listenAddr := tune.ListenAddr()
	if *addr != "" {
		listenAddr = *addr
	}
	observerAddr := tune.ObserverListen
	if *obsAddr != "" {
		observerAddr = *obsAddr
	}

	buf := feed.NewBuffer(tune.History)
	listener := feed.NewListener(feed.Config{
		Addr:              listenAddr,
		DisconnectTimeout: tune.DisconnectTimeout(),
		ReadTimeout:       tune.ReadTimeout(),
		MaxFrameBytes:     tune.MaxFrameBytes,
	}, buf, log.New(os.Stdout, "[feed] ", log.LstdFlags|log.Lmicroseconds))
	if err := listener.Listen(); err != nil {
		// The one fatal failure: nothing works without the port.
		logger.Fatalf("bind %s: %v", listenAddr, err)
	}

	pop := mirror.NewPopulation()
	rec := mirror.NewReconciler(pop, tune.MissTolerance, tune.Transition())
	engine := mirror.NewEngine(listener, pop, rec, tune.DisconnectTimeout())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := listener.Run(ctx); err != nil {
			logger.Fatalf("feed listener: %v", err)
		}
	}()

	if observerAddr != "" {
		obs := observer.NewServer(listener, pop, time.Second, log.New(os.Stdout, "[observer] ", log.LstdFlags|log.Lmicroseconds))
		mux := http.NewServeMux()
		mux.HandleFunc("/v1/stats", obs.StatsHandler())
		mux.HandleFunc("/v1/ws", obs.WSHandler())
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		srv := &http.Server{Addr: observerAddr, Handler: mux}
		go func() {
			logger.Printf("observer on http://%s/v1/stats", observerAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Printf("observer: %v", err)
			}
		}()
		go func() {
			<-ctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	// Stand-in display loop. A real renderer calls Update once per drawn
	// frame and then reads the population; nothing here blocks on the
	// network.
	frame := time.NewTicker(time.Second / 60)
	defer frame.Stop()
	report := time.NewTicker(5 * time.Second)
	defer report.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Printf("shutting down")
			return
		case now := <-frame.C:
			engine.Update(now)
		case now := <-report.C:
			s := engine.Stats(now)
			logger.Printf("state=%s entities=%d rx_fps=%.1f frames=%d malformed=%d dropped_records=%d",
				s.Feed.State, s.Entities, s.Feed.ReceiveFPS, s.Feed.FramesReceived, s.Feed.MalformedFrames, s.Feed.DroppedRecords)
		}
	}
}
