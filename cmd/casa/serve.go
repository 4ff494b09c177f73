package main

import (
	"fmt"
	"net"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/GoSim-25-26J-441/casa-core/internal/runmgr"
	"github.com/GoSim-25-26J-441/casa-core/pkg/logger"
)

func serveCommand() *cobra.Command {
	var (
		listen  string
		command string
		cmdArgs []string
		env     []string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "run a gRPC run manager that executes cases with a local simulator",
		RunE: func(cmd *cobra.Command, args []string) error {
			if command == "" {
				return fmt.Errorf("--command is required")
			}
			level := logLevel
			if level == "" {
				level = "info"
			}
			logger.SetDefault(logger.NewText(level, cmd.ErrOrStderr()))
			log := logger.Component("runmgr-server")

			ctx, stop := signalContext()
			defer stop()

			// TODO: add TLS credentials before exposing the run manager outside a trusted network.
			srv := grpc.NewServer()
			runmgr.Register(srv, runmgr.NewServer(&runmgr.Exec{Command: command, Args: cmdArgs, Env: env}, log))

			lis, err := net.Listen("tcp", listen)
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", listen, err)
			}
			errCh := make(chan error, 1)
			go func() {
				log.Info("run manager listening", "addr", lis.Addr().String(), "command", command)
				errCh <- srv.Serve(lis)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
				log.Info("shutdown requested")
				srv.GracefulStop()
				return nil
			}
		},
	}
	cmd.Flags().StringVar(&listen, "listen", ":50051", "gRPC listen address")
	cmd.Flags().StringVar(&command, "command", "", "simulator command")
	cmd.Flags().StringArrayVar(&cmdArgs, "arg", nil, "simulator argument, repeatable")
	cmd.Flags().StringArrayVar(&env, "env", nil, "extra KEY=VALUE for the simulator, repeatable")
	return cmd
}
