package dto

// GenerateRequest asks the assistant to answer Prompt in a new ai-response
// cell after AfterCellId, or to regenerate CellId in place.
type GenerateRequest struct {
	SessionId   string `json:"sessionId" validate:"required"`
	Prompt      string `json:"prompt"`
	AfterCellId string `json:"afterCellId"`
	CellId      string `json:"cellId"`
}

type ModifyRequest struct {
	SessionId   string `json:"sessionId" validate:"required"`
	CellId      string `json:"-"`
	Modifier    string `json:"modifier" validate:"required,max=64"`
	Instruction string `json:"instruction"`
}

type RefreshRequest struct {
	SessionId string `json:"sessionId" validate:"required"`
	CellId    string `json:"-"`
}

type GenerateResponse struct {
	CellId string `json:"cellId"`
}
