package persona

import "github.com/kalambet/solace/internal/provider"

// Setting keys persisted in the settings table.
const (
	KeyPersonality       = "personality"
	KeyDatasetContext    = "dataset_context"
	KeyModelPreference   = "model_preference"
	KeyUseDatasetContext = "use_dataset_context"
)

// Keys lists the persona settings in display order.
var Keys = []string{KeyPersonality, KeyModelPreference, KeyUseDatasetContext, KeyDatasetContext}

// Persona is the caregiver-configured voice of the assistant and the
// grounding text it may draw on.
type Persona struct {
	Personality       string      `json:"personality"`
	ModelPreference   provider.ID `json:"model_preference"`
	UseDatasetContext bool        `json:"use_dataset_context"`
	DatasetContext    string      `json:"dataset_context"`
}

// Patch is a partial update; nil fields are left unchanged.
type Patch struct {
	Personality       *string `json:"personality,omitempty"`
	ModelPreference   *string `json:"model_preference,omitempty"`
	UseDatasetContext *bool   `json:"use_dataset_context,omitempty"`
	DatasetContext    *string `json:"dataset_context,omitempty"`
}
