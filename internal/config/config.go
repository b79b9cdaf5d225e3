// Package config carga la configuracion de los daemons desde un .env
// opcional y variables de entorno con prefijo MINIFUSION_.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "MINIFUSION"

// SchedulerConfig es la superficie de configuracion del scheduler.
type SchedulerConfig struct {
	Addr            string
	MailboxCapacity int
	OfferBackoff    time.Duration
}

// ExecutorConfig es la superficie de configuracion de un executor. WorkDir
// es fijo para todo el nodo: las tareas nunca eligen donde escribir.
type ExecutorConfig struct {
	ID                string
	Host              string
	Port              int
	DataPort          int
	WorkDir           string
	TaskSlots         int
	MaxDataConns      int
	SchedulerURL      string
	HeartbeatInterval time.Duration
}

// nuevoViper arma el lector: .env si existe, y encima las variables de
// entorno (MINIFUSION_SCHEDULER_ADDR pisa scheduler.addr, etc).
func nuevoViper() *viper.Viper {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	// El .env es opcional; si no esta, seguimos solo con el entorno.
	_ = v.ReadInConfig()

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func LoadScheduler() SchedulerConfig {
	v := nuevoViper()
	v.SetDefault("scheduler.addr", ":8080")
	v.SetDefault("scheduler.mailbox_capacity", 100)
	v.SetDefault("scheduler.offer_backoff_ms", 100)

	return SchedulerConfig{
		Addr:            v.GetString("scheduler.addr"),
		MailboxCapacity: v.GetInt("scheduler.mailbox_capacity"),
		OfferBackoff:    time.Duration(v.GetInt("scheduler.offer_backoff_ms")) * time.Millisecond,
	}
}

func LoadExecutor() ExecutorConfig {
	v := nuevoViper()
	v.SetDefault("executor.id", "")
	v.SetDefault("executor.host", "localhost")
	v.SetDefault("executor.port", 8091)
	v.SetDefault("executor.data_port", 8092)
	v.SetDefault("executor.work_dir", "/tmp/mini-fusion")
	v.SetDefault("executor.task_slots", 4)
	v.SetDefault("executor.max_data_conns", 16)
	v.SetDefault("executor.scheduler_url", "http://localhost:8080")
	v.SetDefault("executor.heartbeat_ms", 2000)

	return ExecutorConfig{
		ID:                v.GetString("executor.id"),
		Host:              v.GetString("executor.host"),
		Port:              v.GetInt("executor.port"),
		DataPort:          v.GetInt("executor.data_port"),
		WorkDir:           v.GetString("executor.work_dir"),
		TaskSlots:         v.GetInt("executor.task_slots"),
		MaxDataConns:      v.GetInt("executor.max_data_conns"),
		SchedulerURL:      v.GetString("executor.scheduler_url"),
		HeartbeatInterval: time.Duration(v.GetInt("executor.heartbeat_ms")) * time.Millisecond,
	}
}
