package avatar

import "github.com/slidecast/deck2video/internal/core"

// Scene kinds and the default scene background.
const (
	characterTypeTalkingPhoto = "talking_photo"
	voiceTypeText             = "text"
	backgroundTypeColor       = "color"
	backgroundTypeImage       = "image"
	defaultBackgroundColor    = "#FFFFFF"
)

// VideoJob is the submission payload for one multi-scene video.
type VideoJob struct {
	VideoInputs []Scene   `json:"video_inputs"`
	Dimension   Dimension `json:"dimension"`
	Title       string    `json:"title"`
}

// Scene binds one narration to one background image and the fixed avatar.
type Scene struct {
	Character  Character  `json:"character"`
	Voice      Voice      `json:"voice"`
	Background Background `json:"background"`
}

// Character is the talking-photo avatar placed in a scene.
type Character struct {
	Type           string  `json:"type"`
	TalkingPhotoID string  `json:"talking_photo_id"`
	Scale          float64 `json:"scale"`
	Offset         Offset  `json:"offset"`
}

// Offset positions the avatar within the frame.
type Offset struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Voice carries the narration text and the voice to render it with.
type Voice struct {
	Type      string `json:"type"`
	InputText string `json:"input_text"`
	VoiceID   string `json:"voice_id"`
}

// Background is either a solid color or an uploaded image asset.
type Background struct {
	Type         string `json:"type"`
	Value        string `json:"value,omitempty"`
	ImageAssetID string `json:"image_asset_id,omitempty"`
}

// Dimension is the output video size.
type Dimension struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// JobOptions holds the fixed per-run scene configuration.
type JobOptions struct {
	AvatarID string
	VoiceID  string
	Width    int
	Height   int
	Scale    float64
	OffsetX  float64
	OffsetY  float64
}

// BuildVideoJob assembles one scene per narration. Scene i uses the image
// background bound to assets[i] when present, and a solid white background
// otherwise.
func BuildVideoJob(narrations []string, assets []core.SlideAsset, title string, opts JobOptions) VideoJob {
	scenes := make([]Scene, 0, len(narrations))

	for i, narration := range narrations {
		scene := Scene{
			Character: Character{
				Type:           characterTypeTalkingPhoto,
				TalkingPhotoID: opts.AvatarID,
				Scale:          opts.Scale,
				Offset:         Offset{X: opts.OffsetX, Y: opts.OffsetY},
			},
			Voice: Voice{
				Type:      voiceTypeText,
				InputText: narration,
				VoiceID:   opts.VoiceID,
			},
			Background: Background{
				Type:  backgroundTypeColor,
				Value: defaultBackgroundColor,
			},
		}

		if i < len(assets) {
			scene.Background = Background{
				Type:         backgroundTypeImage,
				ImageAssetID: assets[i].AssetID,
			}
		}

		scenes = append(scenes, scene)
	}

	return VideoJob{
		VideoInputs: scenes,
		Dimension:   Dimension{Width: opts.Width, Height: opts.Height},
		Title:       title,
	}
}
