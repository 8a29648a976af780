package cmd

import (
	"fmt"

	"songforge/cache"
	"songforge/db"
	"songforge/logger"

	"github.com/spf13/cobra"
)

var redisFlushLibrary bool

var redisCmd = &cobra.Command{
	Use:   "redis",
	Short: "Redis连接测试",
	Long:  `测试Redis连接是否成功，并进行一次读写删除；--flush-library 清除公共曲库缓存。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		fmt.Println("开始测试Redis连接...")
		fmt.Printf("Redis配置: %s:%s, DB: %d\n", cfg.RedisHost, cfg.RedisPort, cfg.RedisDB)

		client, err := db.ConnectRedis(cfg)
		if err != nil {
			return fmt.Errorf("无法连接到Redis: %w", err)
		}
		defer func() {
			if err := client.Close(); err != nil {
				logger.Warn("关闭Redis连接时发生错误", logger.ErrorField(err))
			}
		}()
		fmt.Println("Redis连接成功！")

		fmt.Println("开始测试Redis基本操作...")
		if err := db.CheckRedis(ctx, client); err != nil {
			return fmt.Errorf("Redis操作测试失败: %w", err)
		}
		fmt.Println("Redis基本操作测试成功！")

		if redisFlushLibrary {
			if err := cache.NewRedisLibraryCache(client, cfg.LibraryCacheTTL).Invalidate(ctx); err != nil {
				return fmt.Errorf("清除公共曲库缓存失败: %w", err)
			}
			fmt.Println("公共曲库缓存已清除。")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(redisCmd)
	redisCmd.Flags().BoolVar(&redisFlushLibrary, "flush-library", false, "清除公共曲库缓存")
}
