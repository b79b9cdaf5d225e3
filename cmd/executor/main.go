package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"mini-fusion/internal/config"
	"mini-fusion/internal/executor"
)

func main() {
	cfg := config.LoadExecutor()
	id := flag.String("id", cfg.ID, "ID del executor (vacio = generado)")
	host := flag.String("host", cfg.Host, "Host anunciado al scheduler")
	port := flag.Int("port", cfg.Port, "Puerto del API de tareas")
	dataPort := flag.Int("data-port", cfg.DataPort, "Puerto del servidor de particiones")
	workDir := flag.String("work-dir", cfg.WorkDir, "Directorio de trabajo local")
	slots := flag.Int("slots", cfg.TaskSlots, "Slots de tareas concurrentes")
	schedulerURL := flag.String("scheduler", cfg.SchedulerURL, "URL del scheduler")
	flag.Parse()

	if *id == "" {
		*id = "executor-" + uuid.New().String()[:8]
	}

	exec, err := executor.New(*id, *host, *port, *workDir, *slots)
	if err != nil {
		log.Fatalf("[Executor] No se pudo crear: %v", err)
	}
	defer exec.Release()

	dataSrv, err := executor.NewDataServer(fmt.Sprintf(":%d", *dataPort), *workDir, cfg.MaxDataConns)
	if err != nil {
		log.Fatalf("[Executor] No se pudo levantar el plano de datos: %v", err)
	}
	defer dataSrv.Close()
	go dataSrv.Serve()

	server := executor.NewServer(exec, *schedulerURL, dataSrv.Port())

	// Registro con reintentos: el scheduler puede arrancar despues.
	for intento := 1; ; intento++ {
		if err := server.Register(); err == nil {
			break
		} else if intento == 10 {
			log.Fatalf("[Executor %s] No se pudo registrar en %s: %v", *id, *schedulerURL, err)
		} else {
			log.Printf("[Executor %s] Registro fallido (intento %d): %v", *id, intento, err)
			time.Sleep(time.Second)
		}
	}
	log.Printf("[Executor %s] Registrado en %s (%d slots, work dir %s)", *id, *schedulerURL, *slots, *workDir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go server.StartHeartbeats(ctx, cfg.HeartbeatInterval)

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("[Executor %s] API de tareas en %s, datos en %s", *id, addr, dataSrv.Addr())
	log.Fatal(http.ListenAndServe(addr, server.Router()))
}
