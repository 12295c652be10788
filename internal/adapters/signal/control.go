package signal

func (ctl *SignalWSController) handlePing(conn *WsSignalConn) {
	resp := struct {
		Type string `json:"type"`
	}{
		Type: evPong,
	}
	ctl.sendJSON(conn, resp)
}
