package ws

// ClientMsg é uma mensagem recebida do cliente WebSocket.
// Type: subscribe | unsubscribe | ping. Game assina os eventos públicos do jogo,
// UserID assina os eventos privados (saldo e resultado de aposta) e precisa
// coincidir com o usuário autenticado da conexão (UserHeader).
type ClientMsg struct {
	Type   string `json:"type"`
	Game   string `json:"game,omitempty"`
	UserID int64  `json:"userId,omitempty"`
}
