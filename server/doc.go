// Package server implements the tool/resource/prompt registries with their
// builder APIs, capability negotiation for the handshake, and the business
// core dispatcher that routes operational methods.
package server
