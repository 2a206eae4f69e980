package remote

type loadRequest struct {
	Model  string `json:"model"`
	Device string `json:"device,omitempty"`
}

type loadResponse struct {
	ModelID             string `json:"model_id"`
	Name                string `json:"name"`
	Device              string `json:"device"`
	Parameters          int64  `json:"parameters"`
	TrainableParameters int64  `json:"trainable_parameters"`
}

type tokenizeRequest struct {
	ModelID    string `json:"model_id"`
	Text       string `json:"text"`
	MaxLength  int    `json:"max_length"`
	Truncation bool   `json:"truncation"`
}

type tokenizeResponse struct {
	InputIDs []int `json:"input_ids"`
}

type generateRequest struct {
	ModelID       string `json:"model_id"`
	InputIDs      []int  `json:"input_ids"`
	NumBeams      int    `json:"num_beams"`
	MaxLength     int    `json:"max_length"`
	EarlyStopping bool   `json:"early_stopping"`
	DoSample      bool   `json:"do_sample"`
}

type generateResponse struct {
	OutputIDs     []int    `json:"output_ids"`
	SequenceScore *float64 `json:"sequence_score,omitempty"`
}

type decodeRequest struct {
	ModelID           string `json:"model_id"`
	IDs               []int  `json:"ids"`
	SkipSpecialTokens bool   `json:"skip_special_tokens"`
}

type decodeResponse struct {
	Text string `json:"text"`
}

type errorResponse struct {
	Error string `json:"error"`
}
