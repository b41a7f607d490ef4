package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"ai-notebook-be/internal/dto"
	"ai-notebook-be/internal/pkg/logger"
	"ai-notebook-be/internal/pkg/serverutils"
	"ai-notebook-be/pkg/llm"
	"ai-notebook-be/pkg/notebook"
	"ai-notebook-be/pkg/reconcile"
	"ai-notebook-be/pkg/registry"
)

const (
	streamTimeout = 5 * time.Minute
	// maxContextCells caps the preceding cells sent as context when a cell
	// references nothing.
	maxContextCells = 8
)

type IAssistantService interface {
	Generate(ctx context.Context, workspaceId string, req *dto.GenerateRequest) (*dto.GenerateResponse, error)
	Modify(ctx context.Context, workspaceId string, req *dto.ModifyRequest) (*dto.GenerateResponse, error)
	RefreshCell(ctx context.Context, workspaceId string, req *dto.RefreshRequest) (*dto.GenerateResponse, error)
	Refresh(workspaceId, sessionId string, cellIds []string)
	// Shutdown cancels running producers and waits for them.
	Shutdown()
}

type assistantService struct {
	sync         ISyncService
	provider     llm.LLMProvider
	systemPrompt string
	logger       logger.ILogger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewAssistantService(syncService ISyncService, provider llm.LLMProvider, systemPrompt string, log logger.ILogger) IAssistantService {
	ctx, cancel := context.WithCancel(context.Background())
	return &assistantService{
		sync:         syncService,
		provider:     provider,
		systemPrompt: systemPrompt,
		logger:       log,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// producer is one stream into one cell.
type producer struct {
	workspaceId string
	sessionId   string
	cellId      string
	kind        registry.AccumulatorKind
	regenerate  bool
	modifier    string
	history     []llm.Message
}

func (s *assistantService) Generate(ctx context.Context, workspaceId string, req *dto.GenerateRequest) (*dto.GenerateResponse, error) {
	cells, err := s.cells(ctx, workspaceId, req.SessionId)
	if err != nil {
		return nil, err
	}

	prompt := strings.TrimSpace(req.Prompt)
	p := producer{
		workspaceId: workspaceId,
		sessionId:   req.SessionId,
		kind:        registry.Streaming,
	}

	if req.CellId != "" {
		target, ok := findCell(cells, req.CellId)
		if !ok {
			return nil, ErrCellNotFound
		}
		if prompt == "" {
			prompt = target.OriginalPrompt
		}
		p.cellId = target.ID
		p.regenerate = true
	}
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}

	refs, err := notebook.ParsePromptReferences(prompt)
	if err != nil {
		return nil, serverutils.NewBadRequestError(fmt.Sprintf("A prompt may reference at most %d cells", notebook.MaxPromptReferences), err)
	}

	if p.cellId == "" {
		cell := notebook.Cell{
			Kind:           notebook.KindAIResponse,
			OriginalPrompt: prompt,
		}
		if len(refs.References) > 0 {
			cell.ProcessingConfig = &notebook.ProcessingConfig{
				Trigger:    notebook.TriggerOnDependencyChange,
				References: refs.References,
			}
		}
		r, err := s.sync.Handle(ctx, workspaceId, reconcile.ExternalInsert{
			SessionID: req.SessionId,
			AfterID:   req.AfterCellId,
			Cells:     []notebook.Cell{cell},
		})
		if err != nil {
			return nil, err
		}
		if !r.Applied || len(r.CellIDs) == 0 {
			return nil, resultError(r)
		}
		p.cellId = r.CellIDs[0]
		cells, err = s.cells(ctx, workspaceId, req.SessionId)
		if err != nil {
			return nil, err
		}
	}

	p.history = s.history(contextCells(cells, p.cellId), promptText(refs, prompt))
	if err := s.start(ctx, p); err != nil {
		return nil, err
	}
	return &dto.GenerateResponse{CellId: p.cellId}, nil
}

func (s *assistantService) Modify(ctx context.Context, workspaceId string, req *dto.ModifyRequest) (*dto.GenerateResponse, error) {
	cells, err := s.cells(ctx, workspaceId, req.SessionId)
	if err != nil {
		return nil, err
	}
	target, ok := findCell(cells, req.CellId)
	if !ok {
		return nil, ErrCellNotFound
	}

	instruction := fmt.Sprintf("Apply the %q transformation to the text below and answer with the transformed text only.", req.Modifier)
	if req.Instruction != "" {
		instruction += "\n" + req.Instruction
	}

	p := producer{
		workspaceId: workspaceId,
		sessionId:   req.SessionId,
		cellId:      target.ID,
		kind:        registry.Modifying,
		modifier:    req.Modifier,
		history: []llm.Message{
			{Role: "system", Content: s.systemPrompt},
			{Role: "user", Content: instruction + "\n\n" + target.Content},
		},
	}
	if err := s.start(ctx, p); err != nil {
		return nil, err
	}
	return &dto.GenerateResponse{CellId: p.cellId}, nil
}

func (s *assistantService) RefreshCell(ctx context.Context, workspaceId string, req *dto.RefreshRequest) (*dto.GenerateResponse, error) {
	cells, err := s.cells(ctx, workspaceId, req.SessionId)
	if err != nil {
		return nil, err
	}
	p, err := s.refreshProducer(workspaceId, req.SessionId, cells, req.CellId)
	if err != nil {
		return nil, err
	}
	if err := s.start(ctx, p); err != nil {
		return nil, err
	}
	return &dto.GenerateResponse{CellId: p.cellId}, nil
}

// Refresh recomputes cells in the given order. Each cell reads its context
// after the previous one completed, so dependents see fresh content.
func (s *assistantService) Refresh(workspaceId, sessionId string, cellIds []string) {
	if s.ctx.Err() != nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for _, id := range cellIds {
			if s.ctx.Err() != nil {
				return
			}
			if err := s.refreshOne(workspaceId, sessionId, id); err != nil {
				s.logger.Warn("AssistantService", "Refresh skipped", map[string]interface{}{
					"workspace_id": workspaceId,
					"cell_id":      id,
					"error":        err.Error(),
				})
				if errors.Is(err, ErrWorkspaceNotOpen) || errors.Is(err, ErrWorkspaceClosed) {
					return
				}
			}
		}
	}()
}

func (s *assistantService) refreshOne(workspaceId, sessionId, cellId string) error {
	cells, err := s.cells(s.ctx, workspaceId, sessionId)
	if err != nil {
		return err
	}
	p, err := s.refreshProducer(workspaceId, sessionId, cells, cellId)
	if err != nil {
		return err
	}
	if err := s.open(s.ctx, p); err != nil {
		return err
	}
	s.run(p)
	return nil
}

func (s *assistantService) refreshProducer(workspaceId, sessionId string, cells []notebook.Cell, cellId string) (producer, error) {
	target, ok := findCell(cells, cellId)
	if !ok {
		return producer{}, ErrCellNotFound
	}
	prompt := target.OriginalPrompt
	if prompt == "" {
		prompt = target.Restatement
	}
	if prompt == "" {
		return producer{}, serverutils.NewBadRequestError("Cell has no prompt to refresh from", nil)
	}
	return producer{
		workspaceId: workspaceId,
		sessionId:   sessionId,
		cellId:      target.ID,
		kind:        registry.Refreshing,
		history:     s.history(contextCells(cells, target.ID), cleanPrompt(prompt)),
	}, nil
}

func (s *assistantService) Shutdown() {
	s.cancel()
	s.wg.Wait()
}

// start opens the accumulator and streams in the background.
func (s *assistantService) start(ctx context.Context, p producer) error {
	if err := s.open(ctx, p); err != nil {
		return err
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(p)
	}()
	return nil
}

func (s *assistantService) open(ctx context.Context, p producer) error {
	r, err := s.sync.Handle(ctx, p.workspaceId, reconcile.StreamStart{
		SessionID:  p.sessionId,
		CellID:     p.cellId,
		Kind:       p.kind,
		Regenerate: p.regenerate,
	})
	if err != nil {
		return err
	}
	if !r.Applied {
		return resultError(r)
	}
	return nil
}

func (s *assistantService) run(p producer) {
	ctx, cancel := context.WithTimeout(s.ctx, streamTimeout)
	defer cancel()

	_, err := s.provider.Stream(ctx, p.history, func(chunk string) error {
		r, err := s.sync.Handle(ctx, p.workspaceId, reconcile.StreamChunk{
			SessionID: p.sessionId,
			CellID:    p.cellId,
			Text:      chunk,
		})
		if err != nil {
			return err
		}
		if r.Dropped {
			return errStreamAbandoned
		}
		return nil
	})

	if errors.Is(err, errStreamAbandoned) || errors.Is(err, ErrWorkspaceNotOpen) || errors.Is(err, ErrWorkspaceClosed) {
		s.logger.Info("AssistantService", "Stream abandoned", map[string]interface{}{
			"workspace_id": p.workspaceId,
			"cell_id":      p.cellId,
		})
		return
	}

	// The final message must arrive even when the stream context ended.
	finishCtx, finishCancel := context.WithTimeout(context.Background(), publishTimeout)
	defer finishCancel()

	var final reconcile.Message
	if err != nil {
		final = reconcile.StreamError{SessionID: p.sessionId, CellID: p.cellId, Error: err.Error()}
	} else {
		final = reconcile.StreamComplete{SessionID: p.sessionId, CellID: p.cellId, Modifier: p.modifier}
	}
	r, herr := s.sync.Handle(finishCtx, p.workspaceId, final)
	if herr != nil {
		s.logger.Warn("AssistantService", "Failed to finish stream", map[string]interface{}{
			"workspace_id": p.workspaceId,
			"cell_id":      p.cellId,
			"error":        herr.Error(),
		})
		return
	}
	s.logger.Debug("AssistantService", "Stream finished", map[string]interface{}{
		"workspace_id": p.workspaceId,
		"cell_id":      p.cellId,
		"kind":         string(p.kind),
		"applied":      r.Applied,
		"reason":       reasonString(r.Reason),
	})
}

// cells returns the current document of the workspace, which must have
// sessionId loaded.
func (s *assistantService) cells(ctx context.Context, workspaceId, sessionId string) ([]notebook.Cell, error) {
	var (
		active string
		cells  []notebook.Cell
	)
	err := s.sync.Read(ctx, workspaceId, func(e *reconcile.Engine) {
		active = e.SessionID()
		cells = e.Document().ExtractCells()
	})
	if err != nil {
		return nil, err
	}
	if active != sessionId {
		return nil, serverutils.NewConflictError("Session is not loaded in this workspace", reconcile.ErrSessionMismatch)
	}
	return cells, nil
}

func (s *assistantService) history(related []notebook.Cell, prompt string) []llm.Message {
	messages := []llm.Message{{Role: "system", Content: s.systemPrompt}}
	if len(related) > 0 {
		var b strings.Builder
		b.WriteString("Notebook context:\n")
		for _, c := range related {
			b.WriteString("\n---\n")
			b.WriteString(c.Content)
			b.WriteString("\n")
		}
		messages = append(messages, llm.Message{Role: "system", Content: b.String()})
	}
	return append(messages, llm.Message{Role: "user", Content: prompt})
}

// contextCells returns the cells a target references, or the cells
// preceding it when it references none.
func contextCells(cells []notebook.Cell, targetId string) []notebook.Cell {
	deps := notebook.BuildGraph(cells).Dependencies(targetId)
	if len(deps) > 0 {
		out := make([]notebook.Cell, 0, len(deps))
		for _, id := range deps {
			if c, ok := findCell(cells, id); ok {
				out = append(out, c)
			}
		}
		return out
	}

	var preceding []notebook.Cell
	for _, c := range cells {
		if c.ID == targetId {
			break
		}
		if strings.TrimSpace(c.Content) == "" {
			continue
		}
		preceding = append(preceding, c)
	}
	if len(preceding) > maxContextCells {
		preceding = preceding[len(preceding)-maxContextCells:]
	}
	return preceding
}

// promptText drops reference markers, keeping the raw prompt when nothing
// else remains.
func promptText(refs notebook.PromptReferences, prompt string) string {
	if refs.CleanPrompt == "" {
		return prompt
	}
	return refs.CleanPrompt
}

func cleanPrompt(prompt string) string {
	refs, _ := notebook.ParsePromptReferences(prompt)
	return promptText(refs, prompt)
}

func findCell(cells []notebook.Cell, id string) (notebook.Cell, bool) {
	for _, c := range cells {
		if c.ID == id {
			return c, true
		}
	}
	return notebook.Cell{}, false
}

func resultError(r reconcile.Result) error {
	switch {
	case errors.Is(r.Reason, registry.ErrAccumulatorBusy):
		return ErrCellBusy
	case errors.Is(r.Reason, reconcile.ErrUnknownCellTarget):
		return ErrCellNotFound
	case errors.Is(r.Reason, reconcile.ErrSessionMismatch), errors.Is(r.Reason, reconcile.ErrNoSession):
		return serverutils.NewConflictError("Session is not loaded in this workspace", r.Reason)
	case r.Reason != nil:
		return serverutils.NewBadRequestError(r.Reason.Error(), r.Reason)
	default:
		return serverutils.NewBadRequestError("Operation was not applied", nil)
	}
}
