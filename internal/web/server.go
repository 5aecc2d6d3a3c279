// Package web serves the estimator's HTTP API: current attitude, live
// streams, tuning, logs and metrics.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/websocket"

	"imufusion/internal/ahrs"
)

// AttitudeService is the part of ahrs.Service the API drives.
type AttitudeService interface {
	SettingsController
	Snapshot() ahrs.Snapshot
	Reset()
}

type Options struct {
	Service  AttitudeService
	Attitude *AttitudeBroadcaster
	// ConfigPath enables writing settings changes back to disk.
	ConfigPath string
	Logs       *LogBuffer
	Metrics    http.Handler
}

// streamKeepAlive is how often an idle SSE stream gets a comment line.
var streamKeepAlive = 15 * time.Second

func Handler(opts Options) http.Handler {
	mux := http.NewServeMux()
	svc := opts.Service

	mux.HandleFunc("/api/attitude", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if svc == nil {
			http.Error(w, "ahrs unavailable", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, attitudeFromSnapshot(svc.Snapshot()))
	})

	mux.HandleFunc("/api/attitude/stream", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if opts.Attitude == nil {
			http.Error(w, "stream unavailable", http.StatusNotFound)
			return
		}
		serveAttitudeSSE(w, r, opts.Attitude)
	})

	if opts.Attitude != nil {
		mux.Handle("/api/attitude/ws", websocket.Server{
			Handler: func(conn *websocket.Conn) { serveAttitudeWS(conn, opts.Attitude) },
		})
	}

	mux.HandleFunc("/api/ahrs/reset", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if svc == nil {
			http.Error(w, "ahrs unavailable", http.StatusNotFound)
			return
		}
		svc.Reset()
		log.Printf("web: estimator reset")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("{\"ok\":true}\n"))
	})

	var ctl SettingsController
	if svc != nil {
		ctl = svc
	}
	mux.Handle("/api/settings", SettingsStore{Ctl: ctl, ConfigPath: opts.ConfigPath}.Handler())

	if opts.Logs != nil {
		mux.Handle("/api/logs", opts.Logs.Handler())
	}
	if opts.Metrics != nil {
		mux.Handle("/metrics", opts.Metrics)
	}
	mux.Handle("/api/about", aboutHandler(svc, time.Now()))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = fmt.Fprint(w, "<!doctype html><html><head><meta charset=\"utf-8\"><title>imufusion</title></head><body>")
		_, _ = fmt.Fprint(w, "<h1>imufusion</h1><ul>")
		for _, p := range []string{"/api/attitude", "/api/attitude/stream", "/api/settings", "/api/logs", "/metrics", "/api/about"} {
			_, _ = fmt.Fprintf(w, "<li><a href=\"%s\">%s</a></li>", p, p)
		}
		_, _ = fmt.Fprint(w, "</ul></body></html>")
	})

	return mux
}

// serveAttitudeSSE writes each update as a server-sent event until the
// client goes away.
func serveAttitudeSSE(w http.ResponseWriter, r *http.Request, b *AttitudeBroadcaster) {
	rc := http.NewResponseController(w)
	// Streams outlive the server's write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		return
	}

	id, ch := b.Subscribe(4)
	defer b.Unsubscribe(id)

	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
		case att, ok := <-ch:
			if !ok {
				return
			}
			bts, err := json.Marshal(att)
			if err != nil {
				return
			}
			if _, err := fmt.Fprintf(w, "event: attitude\ndata: %s\n\n", bts); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func serveAttitudeWS(conn *websocket.Conn, b *AttitudeBroadcaster) {
	defer conn.Close()
	id, ch := b.Subscribe(4)
	defer b.Unsubscribe(id)

	// Reader only detects the client closing; incoming messages are ignored.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		var discard []byte
		for {
			if err := websocket.Message.Receive(conn, &discard); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case att, ok := <-ch:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
			if err := websocket.JSON.Send(conn, att); err != nil {
				return
			}
		}
	}
}

func Serve(ctx context.Context, listenAddr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       30 * time.Second,
		MaxHeaderBytes:    1 << 20,
		// Cancels open streams on shutdown.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.Printf("web: listening on %s", listenAddr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
