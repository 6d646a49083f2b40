package handlers

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Brownie44l1/leaf-api/internal/auth"
	"github.com/Brownie44l1/leaf-api/internal/history"
	"github.com/Brownie44l1/leaf-api/internal/pipeline"
	"github.com/Brownie44l1/leaf-api/internal/storage"
	"github.com/Brownie44l1/leaf-api/internal/taxonomy"
)

// Classifier is the decision pipeline.
type Classifier interface {
	Classify(ctx context.Context, data []byte) (*pipeline.Verdict, error)
	Ready() error
}

type History interface {
	Save(ctx context.Context, userID uuid.UUID, filename, imagePath string, v *pipeline.Verdict) (*history.Record, error)
	List(ctx context.Context, userID uuid.UUID, q history.ListQuery) ([]history.Entry, error)
	Detail(ctx context.Context, userID, id uuid.UUID) (*history.Entry, error)
	Dashboard(ctx context.Context, userID uuid.UUID) (*history.Dashboard, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

type Accounts interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.User, error)
	Login(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error)
}

type Handler struct {
	classifier    Classifier
	history       History
	accounts      Accounts
	images        storage.Storage
	diseases      *taxonomy.KnowledgeBase
	maxUploadSize int64
	now           func() time.Time
}

type Options struct {
	Classifier    Classifier
	History       History
	Accounts      Accounts
	Images        storage.Storage
	Diseases      *taxonomy.KnowledgeBase
	MaxUploadSize int64
}

func NewHandler(opts Options) *Handler {
	if opts.Diseases == nil {
		opts.Diseases = taxonomy.DefaultKnowledgeBase()
	}
	if opts.MaxUploadSize <= 0 {
		opts.MaxUploadSize = 10 << 20
	}
	return &Handler{
		classifier:    opts.Classifier,
		history:       opts.History,
		accounts:      opts.Accounts,
		images:        opts.Images,
		diseases:      opts.Diseases,
		maxUploadSize: opts.MaxUploadSize,
		now:           time.Now,
	}
}
