// Package websocket pushes dashboard state and chart updates to browsers.
//
// A Hub owns the set of connected clients. Dashboard components publish
// events.Message values through it; sticky messages are kept per key and
// replayed to clients that connect later, so a fresh browser sees the
// current state without waiting for the next change. Clients may send
// commands such as range:set, which the hub hands to its CommandHandler.
package websocket
