package cmd

import (
	"fmt"
	"github.com/ValentinKolb/dSock/cmd/call"
	"github.com/ValentinKolb/dSock/cmd/discover"
	"github.com/ValentinKolb/dSock/cmd/serve"
	"github.com/ValentinKolb/dSock/cmd/util"
	"github.com/spf13/cobra"
	"os"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dsock",
		Short: "supervised socket client/server engine",
		Long: fmt.Sprintf(`dSock (v%s)

A socket based client/server engine written in Go, with supervised
connections, keepalives, automatic reconnects and request/response calls
on top of plain TCP or unix sockets.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dSock",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dSock v%s\n", Version)
		},
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(call.CallCmd)
	RootCmd.AddCommand(discover.DiscoverCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "json", util.WrapString("serializer to use (json, gob, binary)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "tcp", util.WrapString("transport to use (tcp, unix)"))
	key = "log-level"
	RootCmd.PersistentFlags().String(key, "info", util.WrapString("the level at which logs will be output (debug, info, warn, error)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
