package common

// Heartbeat es lo que un executor reporta periodicamente al scheduler:
// identidad, direccion y slots libres. El timestamp lo pone el scheduler
// al recibirlo (reloj unico, evita drift entre nodos).
type Heartbeat struct {
	Metadata      ExecutorMetadata `json:"metadata"`
	ActiveTasks   int              `json:"active_tasks"`
	LastHeartbeat int64            `json:"last_heartbeat"`
}
