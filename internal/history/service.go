package history

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Brownie44l1/leaf-api/internal/analysis"
	"github.com/Brownie44l1/leaf-api/internal/pipeline"
	"github.com/Brownie44l1/leaf-api/internal/verdict"
)

const recentLimit = 5

var ErrNotSuccessful = errors.New("only successful predictions are saved")

// Images is the part of upload storage the history needs.
type Images interface {
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// Entry is a record prepared for display.
type Entry struct {
	ID             uuid.UUID        `json:"id"`
	Filename       string           `json:"filename"`
	Prediction     string           `json:"prediction"`
	Confidence     float64          `json:"confidence"`
	ImageURL       string           `json:"image_url"`
	CreatedAt      time.Time        `json:"created_at"`
	CreatedAtLocal string           `json:"created_at_local"`
	Analysis       *analysis.Result `json:"analysis,omitempty"`
	Feedback       verdict.Feedback `json:"feedback"`
}

type Dashboard struct {
	TotalPredictions int64   `json:"total_predictions"`
	LastPrediction   *Entry  `json:"last_prediction"`
	MostCommon       string  `json:"most_common"`
	MostCommonCount  int64   `json:"most_common_count"`
	Recent           []Entry `json:"recent"`
}

type Service struct {
	repo   Repository
	images Images
	names  analysis.Namer
	policy *verdict.Policy
	now    func() time.Time
}

func NewService(repo Repository, images Images, names analysis.Namer, thresholds verdict.Thresholds) *Service {
	return &Service{
		repo:   repo,
		images: images,
		names:  names,
		policy: verdict.NewPolicy(thresholds),
		now:    time.Now,
	}
}

// Save stores a successful verdict for userID.
func (s *Service) Save(ctx context.Context, userID uuid.UUID, filename, imagePath string, v *pipeline.Verdict) (*Record, error) {
	if v == nil || v.Status != verdict.StatusSuccess || v.Analysis == nil {
		return nil, ErrNotSuccessful
	}

	detailed := make(map[string][]float64, len(v.Distributions))
	for _, d := range v.Distributions {
		detailed[d.Model] = analysis.ToPercentages(d.Scores)
	}

	rec := &Record{
		UserID:          userID,
		Filename:        filename,
		Prediction:      v.Analysis.Top.Name,
		Confidence:      v.Analysis.Top.Score,
		ImagePath:       imagePath,
		DetailedResults: detailed,
		CreatedAt:       s.now().UTC(),
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Service) List(ctx context.Context, userID uuid.UUID, q ListQuery) ([]Entry, error) {
	recs, err := s.repo.List(ctx, userID, q)
	if err != nil {
		return nil, err
	}
	return s.entries(recs), nil
}

func (s *Service) Detail(ctx context.Context, userID, id uuid.UUID) (*Entry, error) {
	rec, err := s.repo.FindByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	e := s.entry(*rec)
	return &e, nil
}

func (s *Service) Dashboard(ctx context.Context, userID uuid.UUID) (*Dashboard, error) {
	total, err := s.repo.Count(ctx, userID)
	if err != nil {
		return nil, err
	}
	recent, err := s.repo.Recent(ctx, userID, recentLimit)
	if err != nil {
		return nil, err
	}
	counts, err := s.repo.CountByPrediction(ctx, userID)
	if err != nil {
		return nil, err
	}

	d := &Dashboard{TotalPredictions: total, Recent: s.entries(recent)}
	if len(d.Recent) > 0 {
		last := d.Recent[0]
		d.LastPrediction = &last
	}
	if len(counts) > 0 {
		sort.SliceStable(counts, func(i, j int) bool { return counts[i].Count > counts[j].Count })
		d.MostCommon = counts[0].Prediction
		d.MostCommonCount = counts[0].Count
	}
	return d, nil
}

// Delete removes the record and its stored image. A failed image removal is
// logged and does not restore the record.
func (s *Service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	rec, err := s.repo.FindByID(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return err
	}
	if rec.ImagePath != "" && s.images != nil {
		if err := s.images.Delete(ctx, rec.ImagePath); err != nil {
			log.Warn().Err(err).Str("path", rec.ImagePath).Msg("failed to delete history image")
		}
	}
	return nil
}

func (s *Service) entries(recs []Record) []Entry {
	out := make([]Entry, len(recs))
	for i, r := range recs {
		out[i] = s.entry(r)
	}
	return out
}

// entry recomputes analysis and feedback from the stored distributions.
func (s *Service) entry(r Record) Entry {
	e := Entry{
		ID:             r.ID,
		Filename:       r.Filename,
		Prediction:     r.Prediction,
		Confidence:     r.Confidence,
		ImageURL:       r.ImagePath,
		CreatedAt:      r.CreatedAt,
		CreatedAtLocal: FormatLocal(r.CreatedAt),
		Feedback:       verdict.Incomplete(),
	}
	if s.images != nil && r.ImagePath != "" {
		e.ImageURL = s.images.URL(r.ImagePath)
	}

	res, err := s.reanalyze(r.DetailedResults)
	if err != nil {
		return e
	}
	e.Analysis = &res
	e.Feedback = s.policy.Feedback(res.Top.Score, res.ConflictScore)
	return e
}

func (s *Service) reanalyze(detailed map[string][]float64) (analysis.Result, error) {
	if len(detailed) == 0 {
		return analysis.Result{}, analysis.ErrEmpty
	}
	models := make([]string, 0, len(detailed))
	for m := range detailed {
		models = append(models, m)
	}
	sort.Strings(models)

	percents := make([][]float64, len(models))
	for i, m := range models {
		percents[i] = detailed[m]
	}
	res, err := analysis.FromPercentages(s.names, percents...)
	if err != nil {
		return analysis.Result{}, fmt.Errorf("failed to reanalyze: %w", err)
	}
	return res, nil
}
