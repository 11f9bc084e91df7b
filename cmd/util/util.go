package util

import (
	"fmt"
	"github.com/ValentinKolb/dSock/rpc/codec"
	"github.com/ValentinKolb/dSock/rpc/common"
	"github.com/ValentinKolb/dSock/rpc/serializer"
	"github.com/ValentinKolb/dSock/rpc/transport"
	"github.com/ValentinKolb/dSock/rpc/transport/tcp"
	"github.com/ValentinKolb/dSock/rpc/transport/unix"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"strings"
	"time"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupEndpointFlags adds the connection supervision and socket flags to a command
func SetupEndpointFlags(cmd *cobra.Command) {
	key := "keepalive-interval"
	cmd.PersistentFlags().Duration(key, common.DefaultKeepAliveInterval, WrapString("Interval between keepalives. A missing acknowledge within the same interval marks the connection as lost"))

	key = "no-keepalive"
	cmd.PersistentFlags().Bool(key, false, WrapString("Disable sending keepalives"))

	key = "single-thread"
	cmd.PersistentFlags().Bool(key, false, WrapString("Process incoming requests on the reader goroutine, preserving their order"))

	key = "call-timeout"
	cmd.PersistentFlags().Duration(key, common.DefaultCallTimeout, WrapString("Deadline of a single request"))

	key = "dial-timeout"
	cmd.PersistentFlags().Duration(key, common.DefaultDialTimeout, WrapString("Deadline of a single connect attempt"))

	key = "write-buffer"
	cmd.PersistentFlags().Int(key, 512, WrapString("The size of the socket write buffer (in KB, 0 keeps the OS default)"))

	key = "read-buffer"
	cmd.PersistentFlags().Int(key, 512, WrapString("The size of the socket read buffer (in KB, 0 keeps the OS default)"))

	key = "tcp-nodelay"
	cmd.PersistentFlags().Bool(key, true, WrapString("Whether to enable TCP_NODELAY (only for tcp)"))

	key = "tcp-keepalive"
	cmd.PersistentFlags().Int(key, 0, WrapString("The OS level keepalive interval (in seconds, only for tcp)"))

	key = "tcp-linger"
	cmd.PersistentFlags().Int(key, -1, WrapString("The linger time (in seconds, -1 keeps the OS default, only for tcp)"))
}

// SetupReconnectFlags adds the reconnect flags to a client command
func SetupReconnectFlags(cmd *cobra.Command) {
	key := "reconnect"
	cmd.PersistentFlags().Int(key, 0, WrapString("How many times to reconnect after the connection is lost (-1 for unlimited, 0 disables reconnecting)"))

	key = "reconnect-delay"
	cmd.PersistentFlags().Duration(key, common.DefaultReconnectDelay, WrapString("Minimum time between two reconnect attempts"))
}

// InitConfig loads the env files and sets up viper. The format of the environment
// variables is DSOCK_<flag> (e.g. DSOCK_KEEPALIVE_INTERVAL=5s)
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("dsock")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// InitLogging sets the level of all loggers from the log-level flag
func InitLogging() error {
	return common.InitLoggers(viper.GetString("log-level"))
}

// GetEndpointConfig reads the endpoint configuration from viper
func GetEndpointConfig() common.EndpointConfig {
	config := common.DefaultEndpointConfig()

	config.KeepAliveInterval = viper.GetDuration("keepalive-interval")
	config.SendKeepAlives = !viper.GetBool("no-keepalive")
	config.SingleThreadProcessing = viper.GetBool("single-thread")
	config.CallTimeout = viper.GetDuration("call-timeout")
	config.DialTimeout = viper.GetDuration("dial-timeout")

	// the reconnect flags only exist on client commands
	if attempts := viper.GetInt("reconnect"); attempts != 0 {
		config.AutoReconnect = true
		config.MaxReconnectAttempts = attempts
	}
	if delay := viper.GetDuration("reconnect-delay"); delay > 0 {
		config.ReconnectDelay = delay
	}

	config.SocketConf = common.SocketConf{
		WriteBufferSize: viper.GetInt("write-buffer") * 1024,
		ReadBufferSize:  viper.GetInt("read-buffer") * 1024,
	}
	config.TCPConf = common.TCPConf{
		TCPNoDelay:      viper.GetBool("tcp-nodelay"),
		TCPKeepAliveSec: viper.GetInt("tcp-keepalive"),
		TCPLingerSec:    viper.GetInt("tcp-linger"),
	}

	return config
}

// GetSerializer creates a serializer based on configuration
func GetSerializer() (serializer.IRPCSerializer, error) {
	switch viper.GetString("serializer") {
	case "json":
		return serializer.NewJSONSerializer(), nil
	case "gob":
		return serializer.NewGOBSerializer(), nil
	case "binary":
		return serializer.NewBinarySerializer(), nil
	default:
		return nil, fmt.Errorf("invalid serializer %s", viper.GetString("serializer"))
	}
}

// GetClientConnector creates the client side transport based on configuration
func GetClientConnector(dialTimeout time.Duration) (transport.IClientConnector, error) {
	switch viper.GetString("transport") {
	case "tcp":
		return tcp.NewTCPClientConnector(dialTimeout), nil
	case "unix":
		return unix.NewUnixClientConnector(dialTimeout), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}

// GetServerConnector creates the server side transport based on configuration
func GetServerConnector() (transport.IServerConnector, error) {
	switch viper.GetString("transport") {
	case "tcp":
		return tcp.NewTCPServerConnector(), nil
	case "unix":
		return unix.NewUnixServerConnector(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}

// GetFrameReader creates the raw frame reader based on the framing flag
func GetFrameReader() (codec.FrameReader, error) {
	switch framing := viper.GetString("framing"); framing {
	case "", "read":
		return codec.SingleReadFrameReader(codec.DefaultRawReadSize), nil
	case "line":
		return codec.DelimitedFrameReader('\n'), nil
	case "length":
		return codec.LengthPrefixedFrameReader(codec.MaxFrameSize), nil
	default:
		return nil, fmt.Errorf("invalid framing %s (expected one of: read, line, length)", framing)
	}
}
