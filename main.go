package main

import (
	"context"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"

	"github.com/discv5-testground/mockpeer/lib/behaviour"
	"github.com/discv5-testground/mockpeer/lib/config"
	"github.com/discv5-testground/mockpeer/lib/keys"
	"github.com/discv5-testground/mockpeer/lib/mock"
	"github.com/discv5-testground/mockpeer/lib/transport"
	"github.com/discv5-testground/mockpeer/lib/util"
	"github.com/discv5-testground/mockpeer/lib/util/signals"
	"github.com/discv5-testground/mockpeer/lib/wire"
	"github.com/ethereum/go-ethereum/p2p/enode"
	"github.com/go-i2p/logger"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var log = logger.GetGoI2PLogger()

var randomPacketTargets []string

var rootCmd = &cobra.Command{
	Use:           "mockpeer",
	Short:         "Scripted discv5 peer for protocol testing",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.InitConfig()
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the mock peer until interrupted or the script fails",
	RunE:  runMock,
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Create the node key if it does not exist and print the node id",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.NewMockConfigFromViper()
		if err != nil {
			return err
		}
		ks, err := openKeystore(cfg)
		if err != nil {
			return err
		}
		key, err := ks.GetKey()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), enode.PubkeyToIDV4(&key.PublicKey).String())
		return nil
	},
}

var enrCmd = &cobra.Command{
	Use:   "enr",
	Short: "Print the record the mock advertises with the current config",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.NewMockConfigFromViper()
		if err != nil {
			return err
		}
		ks, err := openKeystore(cfg)
		if err != nil {
			return err
		}
		listen, err := listenAddr(cfg)
		if err != nil {
			return err
		}
		node, err := ks.ConstructNode(cfg.ENRSeq, mock.ResolveAdvertiseIP(cfg.AdvertiseIP, listen), cfg.ListenPort)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), node.String())
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&config.CfgFile, "config", "", "config file (default $HOME/.discv5-mock/config.yaml)")

	runCmd.Flags().String("script", "", "behaviour script (yaml)")
	runCmd.Flags().StringSliceVar(&randomPacketTargets, "random-packet-to", nil, "enr of a node to send a random packet to on startup")
	_ = viper.BindPFlag("script", runCmd.Flags().Lookup("script"))

	rootCmd.AddCommand(runCmd, keygenCmd, enrCmd)
}

func runMock(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewMockConfigFromViper()
	if err != nil {
		return err
	}
	if cfg.Script == "" {
		return oops.Errorf("no behaviour script configured; use --script or the script key")
	}
	script, err := behaviour.Load(cfg.Script)
	if err != nil {
		return err
	}
	ks, err := openKeystore(cfg)
	if err != nil {
		return err
	}
	key, err := ks.GetKey()
	if err != nil {
		return err
	}
	listen, err := listenAddr(cfg)
	if err != nil {
		return err
	}

	// Parse targets before binding so a typo fails fast.
	var targets []*enode.Node
	for _, s := range randomPacketTargets {
		n, err := enode.Parse(enode.ValidSchemes, s)
		if err != nil {
			return oops.Wrapf(err, "invalid --random-packet-to %q", s)
		}
		targets = append(targets, n)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m, err := mock.Start(ctx, mock.Config{
		ListenAddr:  listen,
		AdvertiseIP: cfg.AdvertiseIP,
		Key:         key,
		RecordSeq:   cfg.ENRSeq,
		Script:      script,
		Transport: transport.Config{
			QueueSize: cfg.QueueSize,
			SendRate:  cfg.SendRate,
		},
		VerifyIDSignature: cfg.VerifyIDSignature,
	})
	if err != nil {
		return err
	}
	util.RegisterCloser(m)

	go signals.Handle()
	signals.RegisterInterruptHandler(func() { cancel() })
	defer signals.StopHandle()

	fmt.Fprintln(cmd.OutOrStdout(), m.LocalNode().String())

	for _, n := range targets {
		if err := m.SendRandomPacket(n.Record()); err != nil {
			util.CloseAll()
			return err
		}
	}

	runErr := m.Wait()
	util.CloseAll()

	for _, c := range m.Captured() {
		log.WithFields(logger.Fields{
			"at":      "runMock",
			"from":    c.From.String(),
			"request": wire.TypeOf(c.Request).String(),
		}).Info("captured_request")
	}
	return runErr
}

func openKeystore(cfg *config.MockConfig) (*keys.NodeKeystore, error) {
	return keys.NewNodeKeystore(filepath.Dir(cfg.KeyFile), filepath.Base(cfg.KeyFile))
}

func listenAddr(cfg *config.MockConfig) (netip.AddrPort, error) {
	ip, ok := netip.AddrFromSlice(cfg.ListenIP)
	if !ok {
		return netip.AddrPort{}, oops.Errorf("invalid listen ip %s", cfg.ListenIP)
	}
	return netip.AddrPortFrom(ip.Unmap(), uint16(cfg.ListenPort)), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Error("mockpeer_failed")
		os.Exit(1)
	}
}
