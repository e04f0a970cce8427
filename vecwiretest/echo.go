package vecwiretest

import (
	"net"

	"github.com/mark3982/vecwire"
)

// EchoServer reads raw bytes off conn, feeds them into ep, and replies to
// every fresh vector message (RVector == 0) with the same payload tagged
// as a reply to it. It runs until conn.Read returns an error.
//
// It deliberately bypasses Endpoint.Service: a fresh inbound request
// carries no pending correlation entry, so the L4 dispatcher would
// discard it (§4.5's discard path is for exactly this case). Answering
// requests is an L3-level concern, driven by the caller's own read loop
// via Feed and DrainVectors, the same escape hatch Feed's doc comment
// describes.
func EchoServer(conn net.Conn, ep *vecwire.Endpoint) {
	buf := make([]byte, 32*1024)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			if feedErr := ep.Feed(buf[:n]); feedErr != nil {
				return
			}
			vms, drainErr := ep.DrainVectors()
			if drainErr != nil {
				return
			}
			for _, vm := range vms {
				if vm.RVector != 0 {
					continue
				}
				if _, sendErr := ep.SendVector(vm.Payload, vm.Vector); sendErr != nil {
					return
				}
			}
		}
		if err != nil {
			return
		}
	}
}
