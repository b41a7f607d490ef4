package service

import (
	"encoding/json"
	"errors"

	"ai-notebook-be/internal/dto"
	"ai-notebook-be/internal/pkg/serverutils"
	"ai-notebook-be/pkg/notebook"
	"ai-notebook-be/pkg/reconcile"
	"ai-notebook-be/pkg/registry"
)

// DecodeEnvelope turns a wire envelope into an engine message. loadSession
// is not decoded here; opening a session goes through the sync service.
func DecodeEnvelope(env *dto.SyncEnvelope) (reconcile.Message, error) {
	if env == nil || env.Type == "" {
		return nil, invalidMessage("missing type")
	}
	sid := env.SessionId

	switch env.Type {
	case dto.MessageStreamStart:
		var p dto.StreamStartPayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		kind := registry.Streaming
		if p.Kind != "" {
			kind = registry.AccumulatorKind(p.Kind)
		}
		if !kind.Valid() {
			return nil, invalidMessage("unknown accumulator kind %q", p.Kind)
		}
		return reconcile.StreamStart{SessionID: sid, CellID: p.CellId, Kind: kind, Regenerate: p.Regenerate}, nil

	case dto.MessageStreamChunk:
		var p dto.StreamChunkPayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		return reconcile.StreamChunk{SessionID: sid, CellID: p.CellId, Text: p.Text}, nil

	case dto.MessageStreamComplete:
		var p dto.StreamCompletePayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		return reconcile.StreamComplete{
			SessionID: sid,
			CellID:    p.CellId,
			FinalText: p.FinalText,
			Force:     p.Force,
			Modifier:  p.Modifier,
		}, nil

	case dto.MessageStreamError:
		var p dto.StreamErrorPayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		return reconcile.StreamError{SessionID: sid, CellID: p.CellId, Error: p.Error}, nil

	case dto.MessageExternalInsert:
		var p dto.ExternalInsertPayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		cells := make([]notebook.Cell, 0, len(p.Cells))
		for _, in := range p.Cells {
			c, err := cellFromInput(in)
			if err != nil {
				return nil, err
			}
			cells = append(cells, c)
		}
		return reconcile.ExternalInsert{SessionID: sid, AfterID: p.AfterId, Cells: cells}, nil

	case dto.MessageReorderConfirm:
		var p dto.ReorderConfirmPayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		return reconcile.ReorderConfirm{SessionID: sid, OrderedIDs: p.OrderedIds}, nil

	case dto.MessageUserInput:
		var p dto.UserInputPayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		if p.Cursor == nil && p.Selection == nil && p.Key == nil && p.Text == "" {
			return nil, invalidMessage("empty userInput")
		}
		return reconcile.UserInput{SessionID: sid, Cursor: p.Cursor, Selection: p.Selection, Key: p.Key, Text: p.Text}, nil

	case dto.MessageUserPaste:
		var p dto.UserPastePayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		flavours := 0
		if p.Fragment != nil {
			flavours++
		}
		if p.Html != "" {
			flavours++
		}
		if p.Markdown != "" {
			flavours++
		}
		if len(p.Lexical) > 0 {
			flavours++
		}
		if flavours != 1 {
			return nil, invalidMessage("userPaste needs exactly one clipboard flavour, got %d", flavours)
		}
		return reconcile.UserPaste{SessionID: sid, Fragment: p.Fragment, HTML: p.Html, Markdown: p.Markdown, Lexical: p.Lexical}, nil

	case dto.MessageUserEditCell:
		var p dto.UserEditCellPayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		return reconcile.UserEditCell{SessionID: sid, CellID: p.CellId, Content: p.Content}, nil

	case dto.MessageUserDeleteCell:
		var p dto.CellIdPayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		return reconcile.UserDeleteCell{SessionID: sid, CellID: p.CellId}, nil

	case dto.MessageUserConfigureCell:
		var p dto.UserConfigureCellPayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		if p.ProcessingConfig != nil && !p.ProcessingConfig.Trigger.Valid() {
			return nil, invalidMessage("unknown trigger %q", p.ProcessingConfig.Trigger)
		}
		return reconcile.UserConfigureCell{SessionID: sid, CellID: p.CellId, ProcessingConfig: p.ProcessingConfig}, nil

	case dto.MessageFocusCell:
		var p dto.FocusCellPayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		overlay := registry.Overlay(p.Overlay)
		switch overlay {
		case registry.OverlayNone, registry.OverlayModifierMenu, registry.OverlayVersionPicker, registry.OverlayRefreshConfig:
		default:
			return nil, invalidMessage("unknown overlay %q", p.Overlay)
		}
		return reconcile.FocusCell{SessionID: sid, CellID: p.CellId, Overlay: overlay}, nil

	case dto.MessageLoadSession:
		return nil, invalidMessage("loadSession must open the workspace")

	default:
		return nil, invalidMessage("unknown type %q", env.Type)
	}
}

func decodePayload(env *dto.SyncEnvelope, v interface{}) error {
	raw := env.Payload
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return invalidMessage("%s payload: %v", env.Type, err)
	}
	if err := serverutils.ValidateRequest(v); err != nil {
		var verr *serverutils.ValidationError
		if errors.As(err, &verr) {
			return invalidMessage("%s payload: %v", env.Type, verr)
		}
		return err
	}
	return nil
}

func cellFromInput(in dto.CellInput) (notebook.Cell, error) {
	c := notebook.Cell{
		ID:             in.Id,
		Content:        in.Content,
		OriginalPrompt: in.OriginalPrompt,
		SourceApp:      in.SourceApp,
	}
	if in.Kind != "" {
		kind, err := notebook.ParseKind(in.Kind)
		if err != nil {
			return notebook.Cell{}, invalidMessage("%v", err)
		}
		c.Kind = kind
	}
	return c, nil
}
