package audio

import (
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
)

// Output is the device side of the pipeline. Lock/Unlock guard any state the
// output goroutine reads while streaming.
type Output interface {
	Play(s ...beep.Streamer)
	Clear()
	Lock()
	Unlock()
}

type speakerOutput struct{}

func (speakerOutput) Play(s ...beep.Streamer) { speaker.Play(s...) }
func (speakerOutput) Clear()                  { speaker.Clear() }
func (speakerOutput) Lock()                   { speaker.Lock() }
func (speakerOutput) Unlock()                 { speaker.Unlock() }

var (
	speakerOnce sync.Once
	speakerErr  error
)

// SpeakerOutput initialises the system speaker (once per process) at sr with
// a 100ms buffer.
func SpeakerOutput(sr beep.SampleRate) (Output, error) {
	speakerOnce.Do(func() {
		speakerErr = speaker.Init(sr, sr.N(time.Second/10))
	})
	if speakerErr != nil {
		return nil, speakerErr
	}
	return speakerOutput{}, nil
}
