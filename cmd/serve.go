package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/trueth-protocol/bridge/internal/clients"
	"github.com/trueth-protocol/bridge/internal/server"
	"github.com/trueth-protocol/bridge/internal/store"
	"github.com/trueth-protocol/bridge/internal/verify"
	"github.com/trueth-protocol/bridge/internal/watcher"
)

// serveCmd runs the content-submission API and the completion watcher.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the investigation submission API",
	Long: `Serves the content-submission endpoint. Each submission's bridge payment
is independently verified against the chain before it is accepted; accepted
submissions are monitored until their guardian attestation arrives.`,
	PreRun: func(cmd *cobra.Command, args []string) {
		printBanner()
		configureLogging(cmd, args)
	},
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String(
		"port",
		"8080",
		"HTTP listen port")

	serveCmd.Flags().String(
		"mongo-uri",
		"mongodb://localhost:27017",
		"MongoDB connection URI")

	serveCmd.Flags().String(
		"db-name",
		"trueth",
		"MongoDB database name")

	serveCmd.Flags().String(
		"spy-rpc-host",
		"",
		"Optional wormhole spy service endpoint for streamed completion monitoring")

	serveCmd.Flags().Int(
		"vaa-attempts",
		60,
		"Maximum guardian polling attempts per accepted submission")

	serveCmd.Flags().Duration(
		"vaa-interval",
		10*time.Second,
		"Delay between guardian polling attempts")

	viper.BindPFlag("port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("mongo_uri", serveCmd.Flags().Lookup("mongo-uri"))
	viper.BindPFlag("db_name", serveCmd.Flags().Lookup("db-name"))
	viper.BindPFlag("spy_rpc_host", serveCmd.Flags().Lookup("spy-rpc-host"))
	viper.BindPFlag("vaa_attempts", serveCmd.Flags().Lookup("vaa-attempts"))
	viper.BindPFlag("vaa_interval", serveCmd.Flags().Lookup("vaa-interval"))
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := configureLogging(cmd, args)
	network := loadNetworkConfig()

	vaaAttempts := viper.GetInt("vaa_attempts")
	vaaInterval := viper.GetDuration("vaa_interval")
	port := viper.GetString("port")
	spyHost := viper.GetString("spy_rpc_host")

	logger.Info("Configuration",
		zap.String("port", port),
		zap.String("rpcURL", network.RPCURL),
		zap.String("tokenBridge", network.TokenBridge.Hex()),
		zap.String("usdc", network.USDCContract.Hex()),
		zap.Uint16("sourceChainId", network.SourceChainID),
		zap.String("guardianAPI", network.GuardianAPI),
		zap.String("spyRPC", spyHost))

	investigations, err := store.NewStore(store.Opts{
		URI:          viper.GetString("mongo_uri"),
		DatabaseName: viper.GetString("db_name"),
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to store: %v", err)
	}

	indexCtx, cancelIndex := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelIndex()
	if err := investigations.CreateIndexes(indexCtx); err != nil {
		return fmt.Errorf("failed to create indexes: %v", err)
	}

	// Read-only chain access: the verifier never signs anything.
	evmClient, err := clients.NewEVMClient(logger, network.RPCURL, "")
	if err != nil {
		return fmt.Errorf("failed to create EVM client: %v", err)
	}

	verifier := verify.NewVerifier(logger, verify.Config{
		BridgeContract: network.TokenBridge,
		TokenContract:  network.USDCContract,
		CoreBridge:     network.CoreBridge,
	}, evmClient)

	guardian := clients.NewGuardianClient(logger, network.GuardianAPI, vaaAttempts, vaaInterval)

	var spyClient *clients.SpyClient
	if spyHost != "" {
		spyClient, err = clients.NewSpyClient(logger, spyHost)
		if err != nil {
			return fmt.Errorf("failed to create spy client: %v", err)
		}
		defer spyClient.Close()
	}

	completionWatcher := watcher.New(logger, network.SourceChainID, guardian, investigations, spyClient)

	srv := server.New(server.Opts{
		Logger:   logger,
		Port:     port,
		Store:    investigations,
		Verifier: verifier,
		Watcher:  completionWatcher,
		Emitter:  network.TokenBridge,
	})

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		logger.Info("Received shutdown signal")
		cancel()
	}()

	errCh := make(chan error, 2)
	go func() {
		errCh <- completionWatcher.Start(ctx)
	}()
	go func() {
		errCh <- srv.Start(ctx)
	}()

	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil {
			cancel()
			return fmt.Errorf("service stopped with error: %v", err)
		}
	}

	closeCtx, cancelClose := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelClose()
	return investigations.Close(closeCtx)
}
