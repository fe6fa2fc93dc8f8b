package domain

import "time"

// RecordMeta carries the identity fields shared by every library record.
// Which store assigned ID and CreatedAt depends on where the record lives:
// the remote store issues UUIDs and server timestamps, the device-local
// store synthesizes millisecond-epoch identifiers.
type RecordMeta struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Meta returns a pointer to the embedded metadata so generic library code
// can read and assign identity without knowing the concrete record type.
func (m *RecordMeta) Meta() *RecordMeta { return m }

// Character describes a recurring persona inserted into scene prompts.
type Character struct {
	RecordMeta
	Look     string `json:"look"`
	Demeanor string `json:"demeanor"`
	Voice    string `json:"voice"`
}

// Environment describes a reusable setting for scene prompts.
type Environment struct {
	RecordMeta
	Description string `json:"description"`
	Lighting    string `json:"lighting"`
	Mood        string `json:"mood"`
}

// Brand holds identity details stamped onto generated content.
type Brand struct {
	RecordMeta
	Tagline string `json:"tagline"`
	Palette string `json:"palette"`
	Tone    string `json:"tone"`
}

// SceneStyle captures the visual treatment applied to a scene.
type SceneStyle struct {
	RecordMeta
	Aesthetic      string `json:"aesthetic"`
	CameraMovement string `json:"camera_movement"`
	ColorGrade     string `json:"color_grade"`
}

// Photo is a stored image-prompt reference.
type Photo struct {
	RecordMeta
	Caption string `json:"caption"`
	DataURL string `json:"data_url"`
}

// Scene is a saved SceneBlock. When a video job submitted against a scene
// terminates, VideoURL and VideoStatus are updated best-effort.
type Scene struct {
	RecordMeta
	Description string `json:"description"`
	AspectRatio string `json:"aspect_ratio"`
	VideoURL    string `json:"video_url,omitempty"`
	VideoStatus string `json:"video_status,omitempty"`
}
