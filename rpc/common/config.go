package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Defaults
// --------------------------------------------------------------------------

const (
	// DefaultKeepAliveInterval is the time between keepalives. It is also the time
	// that is waited for a keepalive acknowledge before the connection is deemed broken.
	DefaultKeepAliveInterval = 10 * time.Second
	DefaultReconnectDelay    = time.Second
	DefaultCallTimeout       = 30 * time.Second
	DefaultDialTimeout       = 5 * time.Second

	// UnlimitedReconnectAttempts makes the endpoint retry forever
	UnlimitedReconnectAttempts = -1

	DefaultDiscoveryGroup = "224.0.1.1"
	DefaultDiscoveryPort  = 9000
)

// --------------------------------------------------------------------------
// Socket configuration structs
// --------------------------------------------------------------------------

// SocketConf holds buffer settings that apply to every stream socket
type SocketConf struct {
	WriteBufferSize int
	ReadBufferSize  int
}

// TCPConf holds TCP specific socket options
type TCPConf struct {
	TCPNoDelay      bool
	TCPKeepAliveSec int
	TCPLingerSec    int
}

// --------------------------------------------------------------------------
// Endpoint configuration struct
// --------------------------------------------------------------------------

// EndpointConfig configures the supervision of a single connection
type EndpointConfig struct {
	// AutoReconnect makes the endpoint reconnect when the connection breaks
	AutoReconnect bool
	// MaxReconnectAttempts before giving up, UnlimitedReconnectAttempts for no limit
	MaxReconnectAttempts int
	// ReconnectDelay is the minimum time between two reconnect attempts
	ReconnectDelay time.Duration

	// SendKeepAlives enables the keepalive loop (structured codec only)
	SendKeepAlives bool
	// KeepAliveInterval is both the probe interval and the acknowledge deadline
	KeepAliveInterval time.Duration

	// SingleThreadProcessing processes requests on the reader goroutine
	SingleThreadProcessing bool

	// CallTimeout is the deadline of a pending call that nobody awaits
	CallTimeout time.Duration
	// DialTimeout bounds a single connect attempt
	DialTimeout time.Duration

	SocketConf
	TCPConf
}

// DefaultEndpointConfig returns the configuration used when nothing else is set
func DefaultEndpointConfig() EndpointConfig {
	return EndpointConfig{
		AutoReconnect:        false,
		MaxReconnectAttempts: UnlimitedReconnectAttempts,
		ReconnectDelay:       DefaultReconnectDelay,
		SendKeepAlives:       true,
		KeepAliveInterval:    DefaultKeepAliveInterval,
		CallTimeout:          DefaultCallTimeout,
		DialTimeout:          DefaultDialTimeout,
		TCPConf: TCPConf{
			TCPNoDelay:   true,
			TCPLingerSec: -1,
		},
	}
}

// String returns a formatted string representation of the endpoint configuration
func (c *EndpointConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Supervision")
	addField("Auto Reconnect", strconv.FormatBool(c.AutoReconnect))
	if c.MaxReconnectAttempts == UnlimitedReconnectAttempts {
		addField("Max Attempts", "unlimited")
	} else {
		addField("Max Attempts", strconv.Itoa(c.MaxReconnectAttempts))
	}
	addField("Reconnect Delay", c.ReconnectDelay.String())
	addField("Keep Alives", strconv.FormatBool(c.SendKeepAlives))
	addField("Keep Alive Interval", c.KeepAliveInterval.String())

	addSection("Processing")
	addField("Single Thread", strconv.FormatBool(c.SingleThreadProcessing))
	addField("Call Timeout", c.CallTimeout.String())
	addField("Dial Timeout", c.DialTimeout.String())

	addSection("Socket")
	addField("Write Buffer", fmt.Sprintf("%d bytes", c.WriteBufferSize))
	addField("Read Buffer", fmt.Sprintf("%d bytes", c.ReadBufferSize))
	addField("TCP No Delay", strconv.FormatBool(c.TCPNoDelay))
	addField("TCP Keep Alive", fmt.Sprintf("%d sec", c.TCPKeepAliveSec))
	addField("TCP Linger", fmt.Sprintf("%d sec", c.TCPLingerSec))

	return sb.String()
}

// --------------------------------------------------------------------------
// Server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds the configuration of a listener and the endpoints it accepts
type ServerConfig struct {
	// Endpoint is the address to listen on (host:port or a socket path)
	Endpoint string

	// Connection is applied to every accepted endpoint
	Connection EndpointConfig

	// Discovery settings, an empty DiscoveryName disables discovery
	DiscoveryName  string
	DiscoveryGroup string
	DiscoveryPort  int

	// Logging configuration
	LogLevel string
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Server")
	addField("Endpoint", c.Endpoint)

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	if c.DiscoveryName != "" {
		addSection("Discovery")
		addField("Name", c.DiscoveryName)
		addField("Group", fmt.Sprintf("%s:%d", c.DiscoveryGroup, c.DiscoveryPort))
	}

	sb.WriteString(c.Connection.String())
	return sb.String()
}

// --------------------------------------------------------------------------
// Engine configuration struct
// --------------------------------------------------------------------------

// EngineConfig configures the shared execution context
type EngineConfig struct {
	// Workers bounds the shared processing pool, 0 means unbounded
	Workers int
	// JanitorInterval is the sweep interval for expired pending calls
	JanitorInterval time.Duration
	// OnUnhandledFault receives faults that require handling but had no subscriber
	OnUnhandledFault func(source string, err error)
}

// String returns a formatted string representation of the engine configuration
func (c *EngineConfig) String() string {
	var sb strings.Builder
	sb.WriteString("\nENGINE\n")
	if c.Workers <= 0 {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", "Workers", "unbounded"))
	} else {
		sb.WriteString(fmt.Sprintf("  %-22s: %d\n", "Workers", c.Workers))
	}
	sb.WriteString(fmt.Sprintf("  %-22s: %s\n", "Janitor Interval", c.JanitorInterval))
	return sb.String()
}
