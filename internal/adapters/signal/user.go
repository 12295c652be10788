package signal

import "github.com/dkeye/Relay/internal/domain"

func (ctl *SignalWSController) handleWhoAmI(conn *WsSignalConn) {
	resp := struct {
		Type           string           `json:"type"`
		Username       string           `json:"username,omitempty"`
		RoomToken      domain.RoomToken `json:"roomToken,omitempty"`
		UsedShareToken bool             `json:"usedShareToken"`
	}{
		Type: evWhoAmI,
	}
	if sess, ok := ctl.Orch.Sessions.SessionOf(conn.id); ok {
		resp.Username = sess.Username
		resp.RoomToken = sess.RoomToken
		resp.UsedShareToken = sess.UsedShareToken
	}
	ctl.sendJSON(conn, resp)
}
