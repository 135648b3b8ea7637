package domain

const (
	JobStatusQueued  = "queued"
	JobStatusRunning = "running"
	JobStatusDone    = "done"
	JobStatusError   = "error"

	EngineXTTS      = "xtts"
	EnginePiper     = "piper"
	EngineAudiobook = "audiobook"
)

// Job is the client-side record of one unit of remote synthesis or assembly
// work, as reported by the factory server. Timestamps are seconds since epoch
// in the server's wire format. ChapterFile is the primary lookup key on this
// side; ID is the server-assigned identifier that incremental patches are
// keyed by.
type Job struct {
	ID           string   `json:"id"`
	ChapterFile  string   `json:"chapter_file"`
	Engine       string   `json:"engine"`
	Status       string   `json:"status"`
	CreatedAt    float64  `json:"created_at"`
	StartedAt    *float64 `json:"started_at,omitempty"`
	FinishedAt   *float64 `json:"finished_at,omitempty"`
	Progress     float64  `json:"progress"`
	ETASeconds   *float64 `json:"eta_seconds,omitempty"`
	OutputWAV    string   `json:"output_wav,omitempty"`
	OutputMP3    string   `json:"output_mp3,omitempty"`
	Log          string   `json:"log,omitempty"`
	Error        string   `json:"error,omitempty"`
	WarningCount int      `json:"warning_count,omitempty"`
	CustomTitle  string   `json:"custom_title,omitempty"`
}

// Terminal reports whether the job has reached a final status. A terminal job
// never transitions back to queued or running.
func (j Job) Terminal() bool {
	return j.Status == JobStatusDone || j.Status == JobStatusError
}

// Running reports whether the job is actively being processed.
func (j Job) Running() bool {
	return j.Status == JobStatusRunning
}

// TestActivity is side-channel progress for a non-job activity, such as a
// voice-preview synthesis. These are tracked separately from the job map.
type TestActivity struct {
	Name      string   `json:"name"`
	Progress  float64  `json:"progress"`
	StartedAt *float64 `json:"started_at,omitempty"`
}
