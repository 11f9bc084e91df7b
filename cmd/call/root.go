package call

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/dSock/cmd/util"
	"github.com/ValentinKolb/dSock/rpc/client"
	"github.com/ValentinKolb/dSock/rpc/common"
	"github.com/ValentinKolb/dSock/rpc/engine"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"os"
	"time"
)

var (
	eng       *engine.Engine
	rpcClient *client.ObjectClient

	// CallCmd sends requests to an object server and prints the replies
	CallCmd = &cobra.Command{
		Use:                "call [value...]",
		Short:              "Send requests to a dSock server",
		Long:               `Connect to an object server, send every value as one request and print the replies. Without values a single "ping" is sent.`,
		PersistentPreRunE:  setupClient,
		PersistentPostRunE: teardownClient,
		RunE:               run,
	}
)

func init() {
	// Add common endpoint flags to the call command
	util.SetupEndpointFlags(CallCmd)
	util.SetupReconnectFlags(CallCmd)

	key := "endpoint"
	CallCmd.PersistentFlags().String(key, "localhost:8080", util.WrapString("The address of the dSock server"))

	key = "count"
	CallCmd.Flags().Int(key, 1, util.WrapString("How many times to send each value"))

	key = "interval"
	CallCmd.Flags().Duration(key, 0, util.WrapString("Pause between two requests"))

	key = "stats"
	CallCmd.PersistentFlags().Bool(key, false, util.WrapString("Print the connection statistics before exiting"))

	CallCmd.AddCommand(perfTestCmd)
}

// setupClient creates the engine and connects the client
func setupClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}
	if err := util.InitLogging(); err != nil {
		return err
	}

	config := util.GetEndpointConfig()

	s, err := util.GetSerializer()
	if err != nil {
		return err
	}

	connector, err := util.GetClientConnector(config.DialTimeout)
	if err != nil {
		return err
	}

	eng = engine.New(common.EngineConfig{})
	rpcClient = client.NewObjectClient(eng, connector, s, nil, viper.GetString("endpoint"), config)

	ctx, cancel := context.WithTimeout(context.Background(), config.CallTimeout)
	defer cancel()

	if err := rpcClient.Connect(ctx); err != nil {
		eng.Shutdown()
		return fmt.Errorf("failed to connect to %s: %w", viper.GetString("endpoint"), err)
	}
	return nil
}

// teardownClient prints the statistics if requested and shuts the engine down
func teardownClient(_ *cobra.Command, _ []string) error {
	if viper.GetBool("stats") {
		fmt.Println()
		fmt.Println("Statistics:")
		gometrics.WriteOnce(rpcClient.StatsRegistry(), os.Stdout)
	}
	eng.Shutdown()
	return nil
}

func run(_ *cobra.Command, args []string) error {
	if len(args) == 0 {
		args = []string{"ping"}
	}

	count := viper.GetInt("count")
	interval := viper.GetDuration("interval")

	for i := 0; i < count; i++ {
		for _, arg := range args {
			start := time.Now()
			reply, err := client.RequestAs[any](context.Background(), rpcClient, arg)
			if err != nil {
				return fmt.Errorf("request %q failed: %w", arg, err)
			}

			if reply == nil {
				fmt.Printf("%s => (acknowledged) in %s\n", arg, time.Since(start))
			} else {
				fmt.Printf("%s => %v in %s\n", arg, reply, time.Since(start))
			}

			if interval > 0 {
				time.Sleep(interval)
			}
		}
	}
	return nil
}
