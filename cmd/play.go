package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"songforge/core/analyser"
	"songforge/core/audio"
	"songforge/core/playback"
	"songforge/core/visualizer"
	"songforge/db"
	"songforge/internal/tui"
	"songforge/logger"
	"songforge/model"
	"songforge/repository"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dhowden/tag"
	"github.com/gopxl/beep/v2"
	"github.com/spf13/cobra"
)

const sampleRate = beep.SampleRate(44100)

var (
	playUser          string
	playPublic        bool
	playSnapshot      string
	playSnapshotAfter time.Duration
)

var playCmd = &cobra.Command{
	Use:   "play [files or URLs...]",
	Short: "终端播放器",
	Long:  `在终端中播放曲库或本地文件，展开模式下在封面四周绘制频谱条。`,
	RunE:  runPlay,
}

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().StringVarP(&playUser, "user", "u", "", "播放指定用户的曲库")
	playCmd.Flags().BoolVar(&playPublic, "public", false, "播放整个公共曲库")
	playCmd.Flags().StringVar(&playSnapshot, "snapshot", "", "不启动界面，播放第一首曲目并把一帧频谱写成 PNG")
	playCmd.Flags().DurationVar(&playSnapshotAfter, "after", 5*time.Second, "截图前播放的时长")
	playCmd.MarkFlagsMutuallyExclusive("user", "public")

	playCmd.Example = `  # 播放本地文件
  songforge play "Artist - Song.mp3" demo.wav

  # 播放某个用户的曲库
  songforge play -u alice

  # 播放公共曲库第一首 8 秒后截图
  songforge play --public --snapshot frame.png --after 8s`
}

func runPlay(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	load, closeLoad, err := trackLoader(args)
	if err != nil {
		return err
	}
	defer closeLoad()

	tracks, err := load(ctx)
	if err != nil {
		return fmt.Errorf("load tracks: %w", err)
	}

	out, err := audio.SpeakerOutput(sampleRate)
	if err != nil {
		return fmt.Errorf("audio output: %w", err)
	}
	// 远程音频整段下载，不设整体超时
	el := audio.NewBeepElement(out, sampleRate, &http.Client{})
	queue := playback.NewListQueue(tracks)
	ctrl := playback.NewController(el, analyser.NewBridge(), queue)
	defer func() {
		if err := ctrl.Close(); err != nil {
			logger.Warn("[Play] 关闭播放器失败", logger.ErrorField(err))
		}
	}()

	if playSnapshot != "" {
		if len(tracks) == 0 {
			return errors.New("no tracks to snapshot")
		}
		return runSnapshot(ctx, ctrl, el.Events(), tracks[0], playSnapshot, playSnapshotAfter)
	}

	m, err := tui.NewModel(ctrl, queue, el.Events(), load)
	if err != nil {
		return err
	}
	prog := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := prog.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}

// trackLoader picks the track source: file arguments, one user's library or
// the public library.
func trackLoader(args []string) (tui.Loader, func(), error) {
	if len(args) > 0 {
		tracks := adhocTracks(args)
		return func(context.Context) ([]*model.Track, error) { return tracks, nil }, func() {}, nil
	}
	if playUser == "" && !playPublic {
		return nil, nil, errors.New("nothing to play: pass files, --user or --public")
	}

	gdb, err := db.Connect(cfg)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if err := db.Close(gdb); err != nil {
			logger.Warn("[Play] 关闭数据库失败", logger.ErrorField(err))
		}
	}
	repo := repository.NewGormTrackRepository(gdb)

	if playPublic {
		return repo.ListAll, closeDB, nil
	}

	user, err := repository.NewGormUserRepository(gdb).GetUserByUsername(context.Background(), playUser)
	if err != nil {
		closeDB()
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, fmt.Errorf("user %q not found", playUser)
		}
		return nil, nil, err
	}
	return func(ctx context.Context) ([]*model.Track, error) {
		return repo.ListByUser(ctx, user.ID)
	}, closeDB, nil
}

// adhocTracks turns file paths and URLs into tracks. Unexpanded globs are
// expanded; tags fill in title and artist when the file carries them.
func adhocTracks(args []string) []*model.Track {
	var srcs []string
	for _, arg := range args {
		matches, err := filepath.Glob(arg)
		if err != nil || len(matches) == 0 {
			srcs = append(srcs, arg)
		} else {
			srcs = append(srcs, matches...)
		}
	}

	tracks := make([]*model.Track, 0, len(srcs))
	for _, src := range srcs {
		t := trackFromName(src)
		if m := fileTags(src); m != nil {
			if m.Title() != "" {
				t.Title = m.Title()
			}
			if m.Artist() != "" {
				t.ArtistStyle = m.Artist()
			}
		}
		tracks = append(tracks, t)
	}
	return tracks
}

// trackFromName reads "Artist - Title.ext" style names.
func trackFromName(src string) *model.Track {
	base := filepath.Base(src)
	if i := strings.IndexAny(base, "?#"); i >= 0 {
		base = base[:i]
	}
	name := strings.TrimSuffix(base, filepath.Ext(base))
	t := &model.Track{ID: src, SongURL: src, Title: name}
	if parts := strings.SplitN(name, " - ", 2); len(parts) == 2 {
		t.ArtistStyle = strings.TrimSpace(parts[0])
		t.Title = strings.TrimSpace(parts[1])
	}
	return t
}

func fileTags(src string) tag.Metadata {
	if strings.Contains(src, "://") {
		return nil
	}
	f, err := os.Open(src)
	if err != nil {
		return nil
	}
	defer f.Close()
	m, err := tag.ReadFrom(f)
	if err != nil {
		return nil
	}
	return m
}

// runSnapshot plays track headless for after, rendering every frame so the
// smoothed heights settle, then writes the composed frame to path.
func runSnapshot(ctx context.Context, ctrl *playback.Controller, events <-chan audio.Event, track *model.Track, path string, after time.Duration) error {
	layout := visualizer.DefaultLayout()
	canvases := make([]visualizer.Canvas, len(layout))
	for i, g := range layout {
		canvases[i] = visualizer.NewImageCanvas(g.Width, g.Height)
	}
	r, err := visualizer.NewRenderer(layout, canvases)
	if err != nil {
		return err
	}

	ctrl.Play(track)
	ticker := time.NewTicker(time.Second / 30)
	defer ticker.Stop()

	fmt.Printf("正在播放 %s ...\n", track.Title)
loop:
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-events:
			if ctrl.HandleEvent(ev) {
				switch ev.Type {
				case audio.EventError:
					return fmt.Errorf("play %s: %w", track.Title, ev.Err)
				case audio.EventEnded:
					break loop
				}
			}
		case <-ticker.C:
			snap := ctrl.Snapshot()
			if snap.State != playback.ReadyPlaying {
				continue
			}
			r.Frame(ctrl.Analyser())
			if snap.Position >= after {
				break loop
			}
		}
	}

	frame, err := visualizer.Compose(loadCover(ctx, track), layout, canvases)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := png.Encode(f, frame); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Printf("已写入 %s\n", path)
	return nil
}

// loadCover fetches the cover art, falling back to a picture embedded in a
// local file. nil leaves the cover box black.
func loadCover(ctx context.Context, track *model.Track) image.Image {
	var data []byte
	switch {
	case track.CoverArtURL != "":
		ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, track.CoverArtURL, nil)
		if err != nil {
			return nil
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			logger.Warn("[Play] 下载封面失败", logger.ErrorField(err))
			return nil
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil
		}
		if data, err = io.ReadAll(io.LimitReader(resp.Body, 10<<20)); err != nil {
			return nil
		}
	default:
		m := fileTags(track.SongURL)
		if m == nil || m.Picture() == nil {
			return nil
		}
		data = m.Picture().Data
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		logger.Warn("[Play] 封面解码失败", logger.ErrorField(err))
		return nil
	}
	return fitCover(img)
}

// fitCover scales img to the cover box, nearest neighbour.
func fitCover(img image.Image) image.Image {
	b := img.Bounds()
	if b.Dx() == visualizer.CoverSize && b.Dy() == visualizer.CoverSize {
		return img
	}
	out := image.NewRGBA(image.Rect(0, 0, visualizer.CoverSize, visualizer.CoverSize))
	for y := 0; y < visualizer.CoverSize; y++ {
		sy := b.Min.Y + y*b.Dy()/visualizer.CoverSize
		for x := 0; x < visualizer.CoverSize; x++ {
			out.Set(x, y, img.At(b.Min.X+x*b.Dx()/visualizer.CoverSize, sy))
		}
	}
	return out
}
