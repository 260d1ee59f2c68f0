// Package discovery advertises this controller over mDNS so UI clients on
// the local network can find it without a configured address (spec
// SPEC_FULL.md §4.K). The client's instance_discovery.go only resolves
// _ubersdr._tcp services; this package extends the same zeroconf
// dependency to the advertising side the client never needed.
package discovery

import (
	"fmt"

	"github.com/grandcat/zeroconf"
)

const serviceType = "_polarflux._tcp"

// Advertiser owns the registered mDNS service record for one process
// lifetime.
type Advertiser struct {
	server *zeroconf.Server
}

// Advertise registers name on the local network advertising port and the
// given TXT metadata (e.g. "run_id=...", "version=..."), mirroring the
// key=value TXT record convention the client's handleServiceEntry parses.
func Advertise(name string, port int, txt map[string]string) (*Advertiser, error) {
	records := make([]string, 0, len(txt))
	for k, v := range txt {
		records = append(records, fmt.Sprintf("%s=%s", k, v))
	}

	server, err := zeroconf.Register(name, serviceType, "local.", port, records, nil)
	if err != nil {
		return nil, fmt.Errorf("register mDNS service: %w", err)
	}

	return &Advertiser{server: server}, nil
}

// Shutdown withdraws the service record.
func (a *Advertiser) Shutdown() {
	if a.server != nil {
		a.server.Shutdown()
	}
}
