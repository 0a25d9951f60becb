// Package daemon runs the long-lived bridge mode: it keeps the bridge
// client registered, reconciles the card registry on an interval and on
// reader activity, and optionally serves prometheus metrics.
package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/fleetware/cardbridge/pkg/cards"
	"github.com/fleetware/cardbridge/pkg/reader"
	"github.com/fleetware/cardbridge/pkg/reconcile"
	"github.com/fleetware/cardbridge/pkg/registrar"
	"github.com/fleetware/cardbridge/pkg/telemetry"
)

const (
	DefaultSyncInterval = 15 * time.Minute
	// Reader events arrive in bursts when a card is inserted; the
	// debounce collapses them into one reconciliation run.
	readerDebounce = 2 * time.Second
)

type Options struct {
	SyncInterval  time.Duration
	MetricsListen string
	Source        reader.Source
}

type Daemon struct {
	registrar *registrar.Registrar
	engine    *reconcile.Engine
	registry  *cards.Registry
	metrics   *telemetry.Metrics
	log       *zap.SugaredLogger
	opts      Options
}

func New(reg *registrar.Registrar, engine *reconcile.Engine, registry *cards.Registry, metrics *telemetry.Metrics, log *zap.SugaredLogger, opts Options) *Daemon {
	if opts.SyncInterval <= 0 {
		opts.SyncInterval = DefaultSyncInterval
	}
	return &Daemon{
		registrar: reg,
		engine:    engine,
		registry:  registry,
		metrics:   metrics,
		log:       log,
		opts:      opts,
	}
}

// Run blocks until ctx is cancelled. Registration must succeed before
// the sync loop starts; everything after that is retried forever.
func (d *Daemon) Run(ctx context.Context) error {
	deviceID, err := d.registrar.Ensure(ctx)
	if err != nil {
		return err
	}
	d.log.Infow("bridge client registered", "bridge_device_id", deviceID)

	var metricsSrv *http.Server
	if d.opts.MetricsListen != "" {
		srv, err := d.serveMetrics()
		if err != nil {
			return err
		}
		metricsSrv = srv
	}

	d.runSync(ctx, "startup")

	var events <-chan reader.Event
	if d.opts.Source != nil {
		events = d.opts.Source.Events()
	}

	ticker := time.NewTicker(d.opts.SyncInterval)
	defer ticker.Stop()

	var debounce *time.Timer
	var debounceC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if metricsSrv != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = metricsSrv.Shutdown(shutdownCtx)
			}
			return ctx.Err()
		case <-ticker.C:
			d.runSync(ctx, "interval")
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			d.handleReaderEvent(ev)
			if debounce == nil {
				debounce = time.NewTimer(readerDebounce)
				debounceC = debounce.C
			} else {
				if !debounce.Stop() {
					<-debounce.C
				}
				debounce.Reset(readerDebounce)
			}
		case <-debounceC:
			debounce = nil
			debounceC = nil
			d.runSync(ctx, "reader")
		}
	}
}

func (d *Daemon) runSync(ctx context.Context, trigger string) {
	summary, err := d.engine.Sync(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		d.log.Warnw("reconciliation failed", "trigger", trigger, "error", err)
		return
	}
	d.log.Infow("reconciliation complete", "trigger", trigger, "imported", summary.Imported, "updated", summary.Updated)
}

// handleReaderEvent records a newly observed card in the local registry.
// A card already known keeps its name; only the ICCID is filled in when
// the registry has none yet.
func (d *Daemon) handleReaderEvent(ev reader.Event) {
	if ev.State != reader.CardReadable || ev.CardNumber == "" {
		return
	}
	card, ok, err := d.registry.Get(ev.CardNumber)
	if err != nil {
		d.log.Warnw("registry lookup failed", "card", ev.CardNumber, "error", err)
		return
	}
	if !ok {
		card = cards.Card{Number: ev.CardNumber, ICCID: ev.ICCID, Expiry: ev.Expiry}
	} else {
		changed := false
		if card.ICCID == "" && ev.ICCID != "" {
			card.ICCID = ev.ICCID
			changed = true
		}
		if card.Expiry == "" && ev.Expiry != "" {
			card.Expiry = ev.Expiry
			changed = true
		}
		if !changed {
			return
		}
	}
	if err := d.registry.Upsert(card); err != nil {
		d.log.Warnw("recording observed card failed", "card", ev.CardNumber, "error", err)
		return
	}
	d.log.Infow("card observed at reader", "reader", ev.ReaderName, "card", ev.CardNumber)
}

func (d *Daemon) serveMetrics() (*http.Server, error) {
	ln, err := net.Listen("tcp", d.opts.MetricsListen)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", d.metrics.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.log.Errorw("metrics listener stopped", "error", err)
		}
	}()
	d.log.Infow("serving metrics", "addr", ln.Addr().String())
	return srv, nil
}
