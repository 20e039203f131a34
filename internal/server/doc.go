// Package server implements the HTTP and WebSocket surface of roomchat.
//
// The implementation is organized into specialized files for configuration,
// authentication, the hub, clients, routing, and HTTP handlers. Room state and
// admission live in the room and session packages; this package only adapts
// them to the network.
package server
