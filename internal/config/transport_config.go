package config

import "time"

type Transport struct {
	src source
}

var _ TransportConfig = Transport{}

func (t Transport) GetHTTPTimeout() time.Duration {
	return t.src.duration("HTTP_TIMEOUT", 30*time.Second)
}

func (t Transport) GetConnectTimeout() time.Duration {
	return t.src.duration("WS_CONNECT_TIMEOUT", 30*time.Second)
}

func (t Transport) GetWriteTimeout() time.Duration {
	return t.src.duration("WS_WRITE_TIMEOUT", 30*time.Second)
}

func (t Transport) GetHeartbeatInterval() time.Duration {
	return t.src.duration("HEARTBEAT_INTERVAL", 30*time.Second)
}
