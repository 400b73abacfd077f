package service

import (
	"context"
	"errors"
	"sync"
	"time"

	lotserrors "parksphere/internal/lots/errors"
	"parksphere/internal/lots/repository"
	"parksphere/internal/lots/validator"
	"parksphere/pkg/config"
	apperrors "parksphere/pkg/errors"
	"parksphere/pkg/model"
	"parksphere/pkg/sanitizer"

	"github.com/google/uuid"
)

type LotService interface {
	Create(ctx context.Context, lot *model.Lot) error
	GetByID(ctx context.Context, id string) (*model.Lot, error)
	GetAll(ctx context.Context, limit int, offset int64) ([]*model.Lot, int64, error)
}

type lotService struct {
	repo      repository.LotRepository
	validator *validator.LotValidator
	cfg       *config.Config
}

func NewLotService(
	repo repository.LotRepository,
	validator *validator.LotValidator,
	cfg *config.Config,
) LotService {
	return &lotService{
		repo:      repo,
		validator: validator,
		cfg:       cfg,
	}
}

// Create registers a lot with every slot free.
func (s *lotService) Create(ctx context.Context, lot *model.Lot) error {
	lot.ID = uuid.NewString()
	lot.Name = sanitizer.SanitizeText(lot.Name)
	lot.Address = sanitizer.SanitizeText(lot.Address)
	lot.AvailableSlots = lot.TotalSlots
	lot.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)

	if err := s.validator.Validate(lot); err != nil {
		s.cfg.Log.Warn("Parking lot validation failed",
			"name", lot.Name,
			"error", err,
		)
		return apperrors.Validation("Parking lot validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	if err := s.repo.Create(ctx, lot); err != nil {
		s.cfg.Log.Error("Failed to create parking lot",
			"name", lot.Name,
			"error", err,
		)
		return apperrors.Internal("Failed to create parking lot", err)
	}

	s.cfg.Log.Info("Parking lot created successfully",
		"id", lot.ID,
		"name", lot.Name,
		"total_slots", lot.TotalSlots,
	)
	return nil
}

func (s *lotService) GetByID(ctx context.Context, id string) (*model.Lot, error) {
	id = sanitizer.SanitizeID(id)
	if id == "" {
		return nil, apperrors.InvalidInput("Parking lot ID cannot be empty")
	}

	lot, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, lotserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Parking lot", id)
		}
		s.cfg.Log.Error("Failed to get parking lot by ID",
			"id", id,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to retrieve parking lot", err)
	}

	return lot, nil
}

func (s *lotService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.Lot, int64, error) {
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var count int64
	var lots []*model.Lot
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		var err error
		count, err = s.repo.Count(ctx)
		if err != nil {
			s.cfg.Log.Error("Failed to count parking lots", "error", err)
			errCount = apperrors.Internal("Failed to count parking lots", err)
		}
	}()

	go func() {
		defer wg.Done()
		var err error
		lots, err = s.repo.FindAll(ctx, limit, offset)
		if err != nil {
			s.cfg.Log.Error("Failed to list parking lots",
				"limit", limit,
				"offset", offset,
				"error", err,
			)
			errFind = apperrors.Internal("Failed to retrieve parking lots", err)
		}
	}()
	wg.Wait()

	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return lots, count, nil
}
