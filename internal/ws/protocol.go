package ws

// InfoPayload is the body of /info.
type InfoPayload struct {
	Status  string `json:"status"`
	Request string `json:"request"`
	Domain  string `json:"domain"`
	Version string `json:"version"`
}
