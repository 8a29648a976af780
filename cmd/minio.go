package cmd

import (
	"errors"
	"fmt"
	"sort"

	"songforge/core/library"
	"songforge/db"
	"songforge/repository"
	"songforge/server"
	"songforge/storage"

	"github.com/spf13/cobra"
)

var (
	minioPrefix  string
	minioStats   bool
	minioOrphans bool
	minioDelete  bool
)

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "对象存储管理",
	Long:  `查看对象存储中的文件和统计信息，查找没有任何曲目引用的孤儿文件并可删除。`,
	RunE:  runMinio,
}

func init() {
	rootCmd.AddCommand(minioCmd)

	// 添加命令行参数
	minioCmd.Flags().StringVarP(&minioPrefix, "prefix", "p", "", "按前缀过滤文件")
	minioCmd.Flags().BoolVarP(&minioStats, "stats", "s", false, "显示存储桶统计信息")
	minioCmd.Flags().BoolVar(&minioOrphans, "orphans", false, "列出没有曲目引用的文件")
	minioCmd.Flags().BoolVarP(&minioDelete, "delete", "d", false, "删除孤儿文件（需配合 --orphans）")

	minioCmd.Example = `  # 列出所有文件
  songforge minio

  # 按前缀过滤文件并显示统计
  songforge minio -p "songs/" -s

  # 查找并删除孤儿文件
  songforge minio --orphans -d`
}

func runMinio(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if minioDelete && !minioOrphans {
		return errors.New("--delete only removes orphans; add --orphans")
	}

	fmt.Printf("对象存储: %s (%s), Bucket: %s\n", cfg.StorageDriver, cfg.MinioEndpoint, cfg.MinioBucket)
	store, err := server.OpenStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("无法连接对象存储: %w", err)
	}

	if minioOrphans {
		gdb, err := db.Connect(cfg)
		if err != nil {
			return err
		}
		defer db.Close(gdb)

		lib := library.NewService(
			repository.NewGormTrackRepository(gdb),
			repository.NewGormSongRequestRepository(gdb),
			store, nil)
		orphans, err := lib.Orphans(ctx)
		if err != nil {
			return fmt.Errorf("查找孤儿文件失败: %w", err)
		}
		printObjects(orphans)
		if !minioDelete || len(orphans) == 0 {
			return nil
		}

		keys := make([]string, len(orphans))
		for i, o := range orphans {
			keys[i] = o.Key
		}
		if err := store.Remove(ctx, keys...); err != nil {
			return fmt.Errorf("删除孤儿文件失败: %w", err)
		}
		fmt.Printf("\n已删除 %d 个孤儿文件\n", len(keys))
		return nil
	}

	objects, err := store.List(ctx, minioPrefix)
	if err != nil {
		return fmt.Errorf("列出文件失败: %w", err)
	}
	if minioStats {
		printStats(storage.Stats(objects))
		return nil
	}
	printObjects(objects)
	return nil
}

func printObjects(objects []storage.ObjectInfo) {
	fmt.Printf("\n共 %d 个文件:\n", len(objects))
	fmt.Println("----------------------------------------")
	for _, obj := range objects {
		fmt.Printf("%-60s %10s  %s\n", obj.Key, storage.FormatSize(obj.Size), obj.LastModified.Format("2006-01-02 15:04:05"))
	}
}

func printStats(stats *storage.BucketStats) {
	fmt.Println("\n存储桶统计信息:")
	fmt.Println("----------------------------------------")
	fmt.Printf("总文件数: %d\n", stats.TotalObjects)
	fmt.Printf("总大小: %s\n", storage.FormatSize(stats.TotalSize))
	if !stats.LastModified.IsZero() {
		fmt.Printf("最后修改时间: %s\n", stats.LastModified.Format("2006-01-02 15:04:05"))
	}

	categories := make([]string, 0, len(stats.ByCategory))
	for c := range stats.ByCategory {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	fmt.Println("\n按类别统计:")
	for _, c := range categories {
		fmt.Printf("  %-10s %s\n", c, storage.FormatSize(stats.ByCategory[c]))
	}
}
