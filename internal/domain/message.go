package domain

// Message is an opaque ciphertext relayed through a room.
// The server never inspects EncryptedMessage, and Timestamp is whatever the
// client claimed.
type Message struct {
	Username         string `json:"username"`
	EncryptedMessage string `json:"encryptedMessage"`
	Timestamp        int64  `json:"timestamp"`
	MessageID        string `json:"messageId"`
}
