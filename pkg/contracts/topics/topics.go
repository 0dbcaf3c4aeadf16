package topics

const (
	// Jobs (Kafka)
	Ingest         = "minigame_ingest"
	Settle         = "minigame_settle"
	ResultPublish  = "minigame_result_publish"  // round:result atrasado (até minutos)
	DelayedPublish = "minigame_delayed_publish" // notificações de aposta (segundos)

	// DLQs
	SettleDLQ = "minigame_settle_dlq"
)

// Canais Redis Pub/Sub consumidos pelo gateway WebSocket
const (
	RoundNew      = "round:new"
	RoundResult   = "round:result"
	BalanceUpdate = "balance:update"
	WagerResult   = "wager:result"
)

// All lista os canais de eventos publicados pelos workers
var All = []string{RoundNew, RoundResult, BalanceUpdate, WagerResult}
