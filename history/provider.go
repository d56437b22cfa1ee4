package history

import (
	"bulkmail/config"
	"bulkmail/storage"
)

// Provider picks the history source for a browser according to the
// deployment's history mode
type Provider struct {
	Mode   string
	Remote RemoteAPI
	Local  *storage.HistoryStorage
}

// For returns the source of the session owning token on deviceID
func (p Provider) For(token, deviceID string) Source {
	if p.Mode == config.HistoryLocal {
		return NewLocalSource(p.Local, "device:"+deviceID)
	}
	return NewRemoteSource(p.Remote, token)
}

// Demo returns the local demo source of deviceID, whatever the mode
func (p Provider) Demo(deviceID string) Source {
	return NewLocalSource(p.Local, "demo:"+deviceID)
}
