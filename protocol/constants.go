package protocol

// Protocol version negotiated during the handshake.
const Version = "2024-11-05"

// Handshake method names. These are exempt from lifecycle gating.
const (
	MethodInitialize  = "initialize"
	MethodInitialized = "notifications/initialized"
	MethodShutdown    = "shutdown"
)

// Operational method names. These require the server to be ready.
const (
	MethodPing          = "ping"
	MethodToolsList     = "tools/list"
	MethodToolsCall     = "tools/call"
	MethodResourcesList = "resources/list"
	MethodResourcesRead = "resources/read"
	MethodPromptsList   = "prompts/list"
	MethodPromptsGet    = "prompts/get"
)

// Notification methods.
const (
	MethodProgress       = "notifications/progress"
	MethodLoggingMessage = "notifications/message"
)

// IsHandshakeMethod reports whether method is part of the session handshake.
func IsHandshakeMethod(method string) bool {
	switch method {
	case MethodInitialize, MethodInitialized, MethodShutdown:
		return true
	}
	return false
}
