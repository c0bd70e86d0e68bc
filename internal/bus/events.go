package bus

// FeaturesPrepared is the payload of TopicFeaturesPrepared.
type FeaturesPrepared struct {
	Train       int    `json:"train"`
	Test        int    `json:"test"`
	Features    int    `json:"features"`
	Weighting   string `json:"weighting"`
	Fingerprint string `json:"fingerprint"`
}

// ModelTrained is the payload of TopicModelTrained.
type ModelTrained struct {
	Model      string `json:"model"`
	Kind       string `json:"kind"`
	Classes    []int  `json:"classes"`
	DurationMs int64  `json:"duration_ms"`
}

// ModelCrossValidated is the payload of TopicModelCrossValidated.
type ModelCrossValidated struct {
	Model  string    `json:"model"`
	Mean   float64   `json:"mean"`
	Std    float64   `json:"std"`
	Scores []float64 `json:"scores"`
}

// ModelSaved is the payload of TopicModelSaved.
type ModelSaved struct {
	Model string `json:"model"`
	Name  string `json:"name"`
	Dir   string `json:"dir"`
}

// EvaluationCompleted is the payload of TopicEvaluationCompleted.
type EvaluationCompleted struct {
	Best    string             `json:"best"`
	Ranking []string           `json:"ranking"`
	Scores  map[string]float64 `json:"scores"` // weighted F1 per model
}
