package main

import (
	"flag"
	"log"
	"net/http"
	"time"

	"mini-fusion/internal/config"
	"mini-fusion/internal/scheduler"
	"mini-fusion/internal/storage"
)

func main() {
	cfg := config.LoadScheduler()
	addr := flag.String("addr", cfg.Addr, "Direccion de escucha del scheduler")
	mailbox := flag.Int("mailbox", cfg.MailboxCapacity, "Capacidad del mailbox de los event loops")
	backoffMS := flag.Int("backoff-ms", int(cfg.OfferBackoff/time.Millisecond), "Backoff entre rounds de oferta sin capacidad")
	flag.Parse()

	store := storage.NewJobStore()
	state := scheduler.NewState(store)
	clients := scheduler.NewExecutorClients()

	server := scheduler.NewServer(state, clients, *mailbox, time.Duration(*backoffMS)*time.Millisecond)
	if err := server.Start(); err != nil {
		log.Fatalf("[Scheduler] No se pudo iniciar: %v", err)
	}
	defer server.Stop()

	log.Printf("[Scheduler] Iniciado en %s", *addr)
	log.Fatal(http.ListenAndServe(*addr, server.Router()))
}
