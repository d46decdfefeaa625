// Package main wires the Aida client core: persistent store, offline request
// queue, processor, and the submission surface, plus a localhost WebSocket
// endpoint pushing queue state to the UI shell.
package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/aidapp/aida/backend/internal/connectivity"
	"github.com/aidapp/aida/backend/internal/crypto"
	"github.com/aidapp/aida/backend/internal/logging"
	"github.com/aidapp/aida/backend/internal/processor"
	"github.com/aidapp/aida/backend/internal/queue"
	"github.com/aidapp/aida/backend/internal/services"
	"github.com/aidapp/aida/backend/internal/store"
	"github.com/aidapp/aida/backend/internal/transport"
)

// Version is set at build time.
var Version = "0.1.0"

const wsAddr = "localhost:8787"

func main() {
	fmt.Printf("Aida Core v%s\n", Version)
	logging.Init(os.Stdout, logging.LevelInfo)

	dataDir := os.Getenv("AIDA_DATA_DIR")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			log.Fatalf("failed to resolve home directory: %v", err)
		}
		dataDir = filepath.Join(home, ".aida")
	}

	kv, err := store.OpenSQLite(dataDir)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer kv.Close()

	q, err := queue.New(kv, nil)
	if err != nil {
		log.Fatalf("failed to load request queue: %v", err)
	}

	session := crypto.NewSessionStore(kv, crypto.DeviceIdentifier())
	conn := connectivity.NewMonitor(true)
	tr := transport.NewHTTPTransport(0)

	proc := processor.New(q, tr, conn, session, nil)
	defer proc.Close()

	service := services.NewRequestService(q, proc, tr)

	hub := NewWSHub()
	unsubscribeStats := service.Subscribe(hub.BroadcastQueueStats)
	defer unsubscribeStats()
	unsubscribeSession := service.OnSessionInvalidated(hub.BroadcastSessionInvalidated)
	defer unsubscribeSession()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)

	server := &http.Server{Addr: wsAddr, Handler: mux}
	go func() {
		logging.Info("websocket endpoint listening", map[string]interface{}{
			"addr": wsAddr,
		})
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("websocket server failed: %v", err)
		}
	}()

	// Drain anything left over from the previous run.
	service.Flush()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logging.Info("shutting down")
	server.Close()
}
