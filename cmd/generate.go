package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"songforge/core/genai"
	"songforge/core/suno"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	genArtist       string
	genVibe         string
	genTitle        string
	genLyrics       bool
	genInstrumental bool
	genSynth        bool
	genKey          string
	genOut          string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "在终端生成提示词、歌词和歌曲",
	Long:  `根据艺术家风格和氛围生成提示词与歌词；加 --synth 时提交音乐生成任务并等待完成，加 --out 时下载生成的音频。`,
	RunE:  runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringVarP(&genArtist, "artist", "a", "", "参考艺术家或风格（必填）")
	generateCmd.Flags().StringVarP(&genVibe, "vibe", "v", "", "氛围描述（必填）")
	generateCmd.Flags().StringVarP(&genTitle, "title", "t", "", "歌曲标题")
	generateCmd.Flags().BoolVarP(&genLyrics, "lyrics", "l", false, "同时生成歌词")
	generateCmd.Flags().BoolVar(&genInstrumental, "instrumental", false, "纯音乐，不生成歌词")
	generateCmd.Flags().BoolVarP(&genSynth, "synth", "s", false, "提交音乐生成任务")
	generateCmd.Flags().StringVar(&genKey, "key", "", "音乐服务 API Key，默认使用配置中的 SUNO_API_KEY")
	generateCmd.Flags().StringVarP(&genOut, "out", "o", "", "下载生成的音频到该路径（第二个版本追加 -b 后缀）")
	_ = generateCmd.MarkFlagRequired("artist")
	_ = generateCmd.MarkFlagRequired("vibe")

	generateCmd.Example = `  # 只生成提示词
  songforge generate -a "Daft Punk" -v "late night drive"

  # 生成歌词并合成，下载到 out.mp3
  songforge generate -a "Daft Punk" -v "late night drive" -l -s -t "Night Drive" -o out.mp3`
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if genOut != "" && !genSynth {
		return errors.New("--out requires --synth")
	}

	text := genai.NewClient(genai.ConfigFrom(cfg))

	var lyrics string
	if genLyrics && !genInstrumental {
		fmt.Println("正在生成歌词...")
		l, err := text.GenerateLyrics(ctx, genArtist, genVibe)
		if err != nil {
			return fmt.Errorf("generate lyrics: %w", err)
		}
		lyrics = l
		fmt.Printf("\n%s\n\n", lyrics)
	}

	fmt.Println("正在生成提示词...")
	prompt, err := text.GeneratePrompt(ctx, genArtist, genVibe, lyrics)
	if err != nil {
		return fmt.Errorf("generate prompt: %w", err)
	}
	fmt.Printf("\n%s\n\n", prompt)

	if !genSynth {
		return nil
	}

	music := suno.NewClient(suno.ConfigFrom(cfg))
	taskID, err := music.Generate(ctx, genKey, suno.Request{
		Prompt:       prompt,
		Title:        genTitle,
		Lyrics:       lyrics,
		Instrumental: genInstrumental,
	})
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	fmt.Printf("任务已提交: %s\n", taskID)

	spinner := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("等待生成"),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	rec, err := music.Wait(ctx, genKey, taskID, func(poll int, rec *suno.Record) {
		spinner.Describe(fmt.Sprintf("等待生成 [%s] 第 %d 次查询", rec.Status, poll))
		_ = spinner.Add(1)
	})
	_ = spinner.Finish()
	if err != nil {
		return fmt.Errorf("task %s: %w", taskID, err)
	}

	for i, clip := range rec.Clips {
		fmt.Printf("版本 %d: %s (%.0fs)\n", i+1, clip.AudioURL, clip.Duration)
	}
	if genOut == "" {
		return nil
	}

	for i, clip := range rec.Clips {
		if i > 1 {
			break
		}
		path := genOut
		if i == 1 {
			ext := filepath.Ext(genOut)
			path = strings.TrimSuffix(genOut, ext) + "-b" + ext
		}
		if err := download(cmd, music, clip.AudioURL, path); err != nil {
			return err
		}
	}
	return nil
}

func download(cmd *cobra.Command, music *suno.Client, url, path string) error {
	body, size, err := music.Download(cmd.Context(), url)
	if err != nil {
		return err
	}
	defer body.Close()

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	bar := progressbar.DefaultBytes(size, filepath.Base(path))
	if _, err := io.Copy(io.MultiWriter(f, bar), body); err != nil {
		return fmt.Errorf("download %s: %w", path, err)
	}
	fmt.Printf("已保存 %s\n", path)
	return nil
}
