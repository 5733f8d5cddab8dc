package ir

// Version constants for the protocol and server.
const (
	// ProtocolVersion is the only request version the server accepts.
	// Clients built against another version must reload.
	ProtocolVersion = 1

	// ServerVersion is the tablesync server version.
	ServerVersion = "0.3.0"
)
