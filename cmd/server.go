package cmd

import (
	"context"

	"songforge/logger"
	"songforge/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动 SongForge 服务器",
	Long:  `启动 SongForge 的 HTTP 服务器，提供曲库、创作和任务进度推送接口`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

func runServer(ctx context.Context) error {
	logger.Info("Starting SongForge server...")
	return server.Start(ctx, cfg)
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
