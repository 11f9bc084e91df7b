package discover

import (
	"fmt"
	"github.com/ValentinKolb/dSock/cmd/util"
	"github.com/ValentinKolb/dSock/rpc/common"
	"github.com/ValentinKolb/dSock/rpc/discovery"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"os"
	"text/tabwriter"
	"time"
)

// DiscoverCmd lists the discoverable servers on the local network
var DiscoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find dSock servers on the local network",
	Long:  `Send a discovery request to the multicast group and list every server that answered within the wait time.`,
	Args:  cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := util.BindCommandFlags(cmd); err != nil {
			return err
		}
		return util.InitLogging()
	},
	RunE: run,
}

func init() {
	key := "group"
	DiscoverCmd.Flags().String(key, common.DefaultDiscoveryGroup, util.WrapString("The multicast group to send the request to"))

	key = "port"
	DiscoverCmd.Flags().Int(key, common.DefaultDiscoveryPort, util.WrapString("The port servers receive discovery requests on"))

	key = "wait"
	DiscoverCmd.Flags().Duration(key, 2*time.Second, util.WrapString("How long to collect replies"))
}

func run(cmd *cobra.Command, _ []string) error {
	replies, err := discovery.Probe(cmd.Context(), viper.GetString("group"), viper.GetInt("port"), viper.GetDuration("wait"))
	if err != nil {
		return err
	}

	if len(replies) == 0 {
		fmt.Println("no servers found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tADDRESS\tFROM")
	for _, r := range replies {
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.Name, r.Addr, r.From)
	}
	return w.Flush()
}
