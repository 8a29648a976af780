package suno

// Remote task statuses.
const (
	StatusPending             = "PENDING"
	StatusTextSuccess         = "TEXT_SUCCESS"
	StatusFirstSuccess        = "FIRST_SUCCESS"
	StatusSuccess             = "SUCCESS"
	StatusCreateTaskFailed    = "CREATE_TASK_FAILED"
	StatusGenerateAudioFailed = "GENERATE_AUDIO_FAILED"
	StatusCallbackException   = "CALLBACK_EXCEPTION"
	StatusSensitiveWordError  = "SENSITIVE_WORD_ERROR"
)

// Failed reports whether status is a terminal failure.
func Failed(status string) bool {
	switch status {
	case StatusCreateTaskFailed, StatusGenerateAudioFailed, StatusCallbackException, StatusSensitiveWordError:
		return true
	}
	return false
}

// Request describes one song to synthesise.
type Request struct {
	Prompt       string // style/sound description
	Style        string // short genre tags; defaults to Prompt
	Title        string
	Lyrics       string
	Instrumental bool
	Model        string
}

// Clip is one generated rendition. A task usually yields two.
type Clip struct {
	ID        string  `json:"id"`
	AudioURL  string  `json:"audioUrl"`
	StreamURL string  `json:"streamAudioUrl"`
	ImageURL  string  `json:"imageUrl"`
	Title     string  `json:"title"`
	Tags      string  `json:"tags"`
	Duration  float64 `json:"duration"`
}

// Record is the state of a generation task.
type Record struct {
	TaskID       string
	Status       string
	Clips        []Clip
	ErrorMessage string
}

type envelope[T any] struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data T      `json:"data"`
}

type generateBody struct {
	Prompt       string `json:"prompt"`
	Style        string `json:"style,omitempty"`
	Title        string `json:"title,omitempty"`
	CustomMode   bool   `json:"customMode"`
	Instrumental bool   `json:"instrumental"`
	Model        string `json:"model"`
	CallBackURL  string `json:"callBackUrl"`
}

type generateData struct {
	TaskID string `json:"taskId"`
}

type recordData struct {
	TaskID   string `json:"taskId"`
	Status   string `json:"status"`
	Response struct {
		SunoData []Clip `json:"sunoData"`
	} `json:"response"`
	ErrorMessage string `json:"errorMessage"`
}
