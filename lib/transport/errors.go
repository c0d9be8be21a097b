package transport

import "github.com/samber/oops"

// error for when a packet is handed to a transport that has been closed
var ErrTransportClosed = oops.Errorf("transport closed")
