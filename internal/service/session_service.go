package service

import (
	"context"
	"time"

	"ai-notebook-be/internal/dto"
	"ai-notebook-be/internal/entity"
	"ai-notebook-be/internal/mapper"
	"ai-notebook-be/internal/repository/specification"
	"ai-notebook-be/internal/repository/unitofwork"
	"ai-notebook-be/pkg/lexical"
	"ai-notebook-be/pkg/notebook"

	"github.com/google/uuid"
)

type ISessionService interface {
	Create(ctx context.Context, req *dto.CreateSessionRequest) (*dto.CreateSessionResponse, error)
	Show(ctx context.Context, id uuid.UUID) (*dto.ShowSessionResponse, error)
	List(ctx context.Context, req *dto.ListSessionsRequest) (*dto.ListSessionsResponse, error)
	Update(ctx context.Context, req *dto.UpdateSessionRequest) (*dto.UpdateSessionResponse, error)
	Delete(ctx context.Context, id uuid.UUID) error
	AddSource(ctx context.Context, req *dto.AddSourceRequest) (*dto.SourceResponse, error)
	// Load returns a session and its cells in document order.
	Load(ctx context.Context, id uuid.UUID) (*notebook.Session, []notebook.Cell, error)
}

type sessionService struct {
	uowFactory    unitofwork.RepositoryFactory
	codec         *lexical.Codec
	sessionMapper *mapper.SessionMapper
	cellMapper    *mapper.CellMapper
}

func NewSessionService(uowFactory unitofwork.RepositoryFactory, codec *lexical.Codec) ISessionService {
	return &sessionService{
		uowFactory:    uowFactory,
		codec:         codec,
		sessionMapper: mapper.NewSessionMapper(),
		cellMapper:    mapper.NewCellMapper(),
	}
}

func (s *sessionService) Create(ctx context.Context, req *dto.CreateSessionRequest) (*dto.CreateSessionResponse, error) {
	now := time.Now()
	session := entity.Session{
		Id:        uuid.New(),
		Title:     req.Title,
		CellIds:   []string{},
		CreatedAt: now,
	}

	var seed *entity.Cell
	if req.Source != nil || req.Excerpt != "" {
		content, err := s.codec.Normalize(req.Excerpt)
		if err != nil {
			return nil, err
		}
		seed = &entity.Cell{
			Id:        uuid.NewString(),
			SessionId: session.Id,
			Kind:      notebook.KindQuotedExcerpt,
			Content:   content,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if req.Source != nil {
			seed.SourceApp = req.Source.Path
		}
		session.CellIds = []string{seed.Id}
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	if err := uow.SessionRepository().Create(ctx, &session); err != nil {
		return nil, err
	}
	if req.Source != nil {
		source := entity.SessionSource{
			Id:        uuid.New(),
			SessionId: session.Id,
			Path:      req.Source.Path,
			Title:     req.Source.Title,
			MimeType:  req.Source.MimeType,
			CreatedAt: now,
		}
		if err := uow.SessionRepository().AddSource(ctx, &source); err != nil {
			return nil, err
		}
	}
	if seed != nil {
		if err := uow.CellRepository().UpsertBulk(ctx, []*entity.Cell{seed}); err != nil {
			return nil, err
		}
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}

	return &dto.CreateSessionResponse{Id: session.Id}, nil
}

func (s *sessionService) Show(ctx context.Context, id uuid.UUID) (*dto.ShowSessionResponse, error) {
	session, cells, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	sources := make([]*dto.SourceResponse, 0, len(session.Sources))
	for _, src := range session.Sources {
		sources = append(sources, &dto.SourceResponse{
			Id:       src.Id,
			Path:     src.Path,
			Title:    src.Title,
			MimeType: src.MimeType,
		})
	}

	return &dto.ShowSessionResponse{
		Id:        session.Id,
		Title:     session.Title,
		Sources:   sources,
		Cells:     cells,
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.UpdatedAt,
	}, nil
}

func (s *sessionService) List(ctx context.Context, req *dto.ListSessionsRequest) (*dto.ListSessionsResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	filter := specification.TitleContains{Query: req.Query}
	total, err := uow.SessionRepository().Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	sessions, err := uow.SessionRepository().FindAll(ctx,
		filter,
		specification.OrderBy{Field: "updated_at", Desc: true},
		specification.Pagination{Limit: req.Limit, Offset: req.Offset},
	)
	if err != nil {
		return nil, err
	}

	result := make([]*dto.SessionSummaryResponse, 0, len(sessions))
	for _, session := range sessions {
		result = append(result, &dto.SessionSummaryResponse{
			Id:        session.Id,
			Title:     session.Title,
			CellCount: len(session.CellIds),
			CreatedAt: session.CreatedAt,
			UpdatedAt: session.UpdatedAt,
		})
	}

	return &dto.ListSessionsResponse{Sessions: result, Total: total}, nil
}

func (s *sessionService) Update(ctx context.Context, req *dto.UpdateSessionRequest) (*dto.UpdateSessionResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	session, err := uow.SessionRepository().FindOne(ctx, specification.ByID{ID: req.Id})
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	now := time.Now()
	session.Title = req.Title
	session.UpdatedAt = &now

	if err := uow.SessionRepository().Update(ctx, session); err != nil {
		return nil, err
	}

	return &dto.UpdateSessionResponse{Id: session.Id}, nil
}

func (s *sessionService) Delete(ctx context.Context, id uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	session, err := uow.SessionRepository().FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return err
	}
	if session == nil {
		return ErrSessionNotFound
	}

	if err := uow.CellRepository().DeleteBySessionId(ctx, id); err != nil {
		return err
	}
	if err := uow.SessionRepository().Delete(ctx, id); err != nil {
		return err
	}
	return uow.Commit()
}

func (s *sessionService) AddSource(ctx context.Context, req *dto.AddSourceRequest) (*dto.SourceResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	session, err := uow.SessionRepository().FindOne(ctx, specification.ByID{ID: req.SessionId})
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	source := entity.SessionSource{
		Id:        uuid.New(),
		SessionId: req.SessionId,
		Path:      req.Path,
		Title:     req.Title,
		MimeType:  req.MimeType,
		CreatedAt: time.Now(),
	}
	if err := uow.SessionRepository().AddSource(ctx, &source); err != nil {
		return nil, err
	}

	return &dto.SourceResponse{
		Id:       source.Id,
		Path:     source.Path,
		Title:    source.Title,
		MimeType: source.MimeType,
	}, nil
}

func (s *sessionService) Load(ctx context.Context, id uuid.UUID) (*notebook.Session, []notebook.Cell, error) {
	session, cells, err := s.load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	domain := s.sessionMapper.ToDomain(session)
	domain.CellIDs = make([]string, len(cells))
	for i, c := range cells {
		domain.CellIDs[i] = c.ID
	}
	return &domain, cells, nil
}

func (s *sessionService) load(ctx context.Context, id uuid.UUID) (*entity.Session, []notebook.Cell, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	session, err := uow.SessionRepository().FindOne(ctx,
		specification.ByID{ID: id},
		specification.WithSources{},
	)
	if err != nil {
		return nil, nil, err
	}
	if session == nil {
		return nil, nil, ErrSessionNotFound
	}

	rows, err := uow.CellRepository().FindAll(ctx, specification.BySessionID{SessionID: id})
	if err != nil {
		return nil, nil, err
	}

	return session, s.cellMapper.ToDomainOrdered(session.CellIds, rows), nil
}
