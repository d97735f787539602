package gemini

import "os"

// Image-capable Gemini model IDs.
//
// | Model                       | API Model ID                            |
// |-----------------------------|-----------------------------------------|
// | Gemini 2.5 Flash Image      | gemini-2.5-flash-image                  |
// | Gemini 3 Pro Image          | gemini-3-pro-image-preview              |
// | Gemini 2.0 Flash (exp)      | gemini-2.0-flash-exp-image-generation   |
const (
	// ModelGemini25FlashImage is the stable image generation/edit model.
	ModelGemini25FlashImage = "gemini-2.5-flash-image"

	// ModelGemini3ProImage is for advanced image generation/edit.
	ModelGemini3ProImage = "gemini-3-pro-image-preview"

	// ModelGemini20FlashExpImage is the experimental model the first
	// version of the tool was written against.
	ModelGemini20FlashExpImage = "gemini-2.0-flash-exp-image-generation"
)

// DefaultImageModel is used when GEMINI_MODEL is unset.
const DefaultImageModel = ModelGemini25FlashImage

// GetModelName returns GEMINI_MODEL if set, else DefaultImageModel.
func GetModelName() string {
	if env := os.Getenv("GEMINI_MODEL"); env != "" {
		return env
	}
	return DefaultImageModel
}
