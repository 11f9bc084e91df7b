package serve

import (
	"bytes"
	"fmt"
	cmdUtil "github.com/ValentinKolb/dSock/cmd/util"
	"github.com/ValentinKolb/dSock/lib/events"
	"github.com/ValentinKolb/dSock/rpc/admin"
	"github.com/ValentinKolb/dSock/rpc/common"
	"github.com/ValentinKolb/dSock/rpc/engine"
	"github.com/ValentinKolb/dSock/rpc/server"
	"github.com/ValentinKolb/dSock/rpc/transport/base"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	Logger = logger.GetLogger("cli")

	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:   "serve",
		Short: "Start a dSock server",
		Long: `Start a dSock server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is DSOCK_<flag> (e.g. DSOCK_KEEPALIVE_INTERVAL=5s)

In object mode the server answers the request "ping" with "pong" and echoes every other value. In raw mode every frame is written back unchanged.`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	cmdUtil.SetupEndpointFlags(ServeCmd)

	// add flags
	key := "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the server will listen (e.g. localhost:8080, /tmp/dsock.sock, ...)"))

	key = "mode"
	ServeCmd.PersistentFlags().String(key, "object", cmdUtil.WrapString("The wire format of the server (object, raw)"))

	key = "framing"
	ServeCmd.PersistentFlags().String(key, "read", cmdUtil.WrapString("(Raw Mode) How incoming bytes are cut into frames (read, line, length)"))

	key = "workers"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("Maximum number of concurrently processed requests, 0 for unbounded"))

	key = "discovery-name"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Answer discovery requests with this name, empty disables discovery"))

	key = "discovery-group"
	ServeCmd.PersistentFlags().String(key, common.DefaultDiscoveryGroup, cmdUtil.WrapString("The multicast group discovery requests are received on"))

	key = "discovery-port"
	ServeCmd.PersistentFlags().Int(key, common.DefaultDiscoveryPort, cmdUtil.WrapString("The port discovery requests are received on"))

	key = "admin-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Serve /metrics, /health and /endpoints over http on this address, empty disables it"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}
	if err := cmdUtil.InitLogging(); err != nil {
		return err
	}

	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.Connection = cmdUtil.GetEndpointConfig()
	serveCmdConfig.DiscoveryName = viper.GetString("discovery-name")
	serveCmdConfig.DiscoveryGroup = viper.GetString("discovery-group")
	serveCmdConfig.DiscoveryPort = viper.GetInt("discovery-port")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	if serveCmdConfig.Endpoint == "" {
		return fmt.Errorf("endpoint must not be empty")
	}
	return nil
}

// run starts the server and blocks until it is killed or a signal is received
func run(_ *cobra.Command, _ []string) error {
	eng := engine.New(common.EngineConfig{
		Workers: viper.GetInt("workers"),
		OnUnhandledFault: func(source string, err error) {
			Logger.Errorf("Unhandled fault in %s: %v", source, err)
		},
	})
	defer eng.Shutdown()

	connector, err := cmdUtil.GetServerConnector()
	if err != nil {
		return err
	}

	var listener *base.Listener
	switch mode := viper.GetString("mode"); mode {
	case "object":
		s, err := cmdUtil.GetSerializer()
		if err != nil {
			return err
		}
		serv := server.NewObjectServer(eng, connector, s, nil, *serveCmdConfig)
		serv.SetDataProcessor(pingPong)
		if err := serv.Start(); err != nil {
			return err
		}
		listener = serv.Listener
	case "raw":
		reader, err := cmdUtil.GetFrameReader()
		if err != nil {
			return err
		}
		serv := server.NewRawServer(eng, connector, reader, *serveCmdConfig)
		serv.SetByteProcessor(bytes.Clone)
		if err := serv.Start(); err != nil {
			return err
		}
		listener = serv.Listener
	default:
		return fmt.Errorf("invalid mode %s (expected one of: object, raw)", mode)
	}

	logEvents(listener)

	if addr := viper.GetString("admin-endpoint"); addr != "" {
		adminServer := admin.NewServer(eng, listener, viper.GetString("log-level") == "debug")
		defer adminServer.Close()

		go func() {
			if err := adminServer.Serve(addr); err != nil {
				Logger.Errorf("Admin server failed: %v", err)
			}
		}()
	}

	if sig := server.WaitForSignal(listener.Done()); sig != nil {
		Logger.Infof("Received %s, shutting down", sig)
	}
	return nil
}

// pingPong answers "ping" with "pong" and echoes everything else
func pingPong(payload any) (any, bool) {
	if payload == "ping" {
		return "pong", true
	}
	return payload, payload != nil
}

// logEvents logs the connection events of the listener and its endpoints. A client
// closing its connection is expected, so it is handled here and not reported as fault.
func logEvents(l *base.Listener) {
	events.On(l.Bus(), func(ev events.ServerError) {
		Logger.Warningf("Server error: %v", ev.Err)
	})

	l.SetConnectionHandler(func(ep *base.Endpoint) {
		events.On(ep.Bus(), func(ev events.KeepAliveTimeout) {
			Logger.Warningf("Keepalive timeout on %s after %s", ev.Source(), ev.Timeout)
		})
		events.On(ep.Bus(), func(ev events.ConnectionLost) {
			Logger.Debugf("Connection %s closed: %v", ev.Source(), ev.Err)
		})
	})
}
