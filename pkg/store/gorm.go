package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"reviewhooks/pkg/entity"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// GormStore implements Store on top of GORM.
type GormStore struct {
	db *gorm.DB
}

type mergeRequestRow struct {
	ID           uint   `gorm:"column:id;primaryKey;autoIncrement"`
	ProjectName  string `gorm:"column:project_name;size:255;not null;index:idx_mr_dedup"`
	Author       string `gorm:"column:author;size:255"`
	SourceBranch string `gorm:"column:source_branch;size:255;not null;index:idx_mr_dedup"`
	TargetBranch string `gorm:"column:target_branch;size:255;not null;index:idx_mr_dedup"`
	UpdatedAt    int64  `gorm:"column:updated_at;index"`
	CommitsJSON  string `gorm:"column:commit_messages;type:text"`
	Score        float64
	URL          string `gorm:"column:url;size:512"`
	ReviewResult string `gorm:"column:review_result;type:text"`
	URLSlug      string `gorm:"column:url_slug;size:255"`
	LastCommitID string `gorm:"column:last_commit_id;size:64;index:idx_mr_dedup"`
	Additions    int
	Deletions    int
	WebhookData  string `gorm:"column:webhook_data;type:text"`
}

func (mergeRequestRow) TableName() string { return "mr_review_logs" }

type pushRow struct {
	ID           uint   `gorm:"column:id;primaryKey;autoIncrement"`
	ProjectName  string `gorm:"column:project_name;size:255;not null;index:idx_push_dedup"`
	Branch       string `gorm:"column:branch;size:255;not null;index:idx_push_dedup"`
	BeforeSHA    string `gorm:"column:before_sha;size:64;index:idx_push_dedup"`
	AfterSHA     string `gorm:"column:after_sha;size:64;index:idx_push_dedup"`
	PusherName   string `gorm:"column:pusher_name;size:255"`
	PusherEmail  string `gorm:"column:pusher_email;size:255"`
	UpdatedAt    int64  `gorm:"column:updated_at;index"`
	CommitsJSON  string `gorm:"column:commit_messages;type:text"`
	Score        float64
	WebURL       string `gorm:"column:web_url;size:512"`
	ReviewResult string `gorm:"column:review_result;type:text"`
	URLSlug      string `gorm:"column:url_slug;size:255"`
	WebhookData  string `gorm:"column:webhook_data;type:text"`
}

func (pushRow) TableName() string { return "push_review_logs" }

// Open creates a GORM-backed review log store.
func Open(cfg Config) (*GormStore, error) {
	if cfg.DSN == "" {
		return nil, errors.New("storage dsn is required")
	}
	driver := normalizeDriver(cfg.Driver)
	if driver == "" {
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
	gormDB, err := openGorm(driver, cfg.DSN)
	if err != nil {
		return nil, err
	}
	s := &GormStore{db: gormDB}
	if cfg.AutoMigrate {
		if err := gormDB.AutoMigrate(&mergeRequestRow{}, &pushRow{}); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Config selects the SQL driver and connection for the review log store.
type Config struct {
	Driver      string
	DSN         string
	AutoMigrate bool
}

// Close closes the underlying DB connection.
func (s *GormStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// HasMergeRequestReview reports whether a merge request review log already
// exists for the given project/branch/commit combination.
func (s *GormStore) HasMergeRequestReview(ctx context.Context, project, sourceBranch, targetBranch, lastCommitID string) (bool, error) {
	if s == nil || s.db == nil {
		return false, errors.New("store is not initialized")
	}
	var count int64
	err := s.db.WithContext(ctx).
		Model(&mergeRequestRow{}).
		Where("project_name = ? AND source_branch = ? AND target_branch = ? AND last_commit_id = ?",
			project, sourceBranch, targetBranch, lastCommitID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// HasPushReview reports whether a push review log already exists for the
// given project/branch/revision combination.
func (s *GormStore) HasPushReview(ctx context.Context, project, branch, beforeSHA, afterSHA string) (bool, error) {
	if s == nil || s.db == nil {
		return false, errors.New("store is not initialized")
	}
	var count int64
	err := s.db.WithContext(ctx).
		Model(&pushRow{}).
		Where("project_name = ? AND branch = ? AND before_sha = ? AND after_sha = ?",
			project, branch, beforeSHA, afterSHA).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// InsertMergeRequestReview appends a merge request review log.
func (s *GormStore) InsertMergeRequestReview(ctx context.Context, e *entity.MergeRequestReview) error {
	if s == nil || s.db == nil {
		return errors.New("store is not initialized")
	}
	if e == nil {
		return errors.New("review entity is required")
	}
	data := toMergeRequestRow(e)
	return s.db.WithContext(ctx).Create(&data).Error
}

// InsertPushReview appends a push review log.
func (s *GormStore) InsertPushReview(ctx context.Context, e *entity.PushReview) error {
	if s == nil || s.db == nil {
		return errors.New("store is not initialized")
	}
	if e == nil {
		return errors.New("review entity is required")
	}
	data := toPushRow(e)
	return s.db.WithContext(ctx).Create(&data).Error
}

// ListMergeRequestReviews returns merge request review logs updated inside
// [from, to] unix seconds, newest first.
func (s *GormStore) ListMergeRequestReviews(ctx context.Context, from, to int64) ([]entity.MergeRequestReview, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	var data []mergeRequestRow
	err := s.db.WithContext(ctx).
		Where("updated_at >= ? AND updated_at <= ?", from, to).
		Order("updated_at desc").
		Find(&data).Error
	if err != nil {
		return nil, err
	}
	out := make([]entity.MergeRequestReview, 0, len(data))
	for _, item := range data {
		out = append(out, fromMergeRequestRow(item))
	}
	return out, nil
}

// ListPushReviews returns push review logs updated inside [from, to] unix
// seconds, newest first.
func (s *GormStore) ListPushReviews(ctx context.Context, from, to int64) ([]entity.PushReview, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	var data []pushRow
	err := s.db.WithContext(ctx).
		Where("updated_at >= ? AND updated_at <= ?", from, to).
		Order("updated_at desc").
		Find(&data).Error
	if err != nil {
		return nil, err
	}
	out := make([]entity.PushReview, 0, len(data))
	for _, item := range data {
		out = append(out, fromPushRow(item))
	}
	return out, nil
}

func toMergeRequestRow(e *entity.MergeRequestReview) mergeRequestRow {
	return mergeRequestRow{
		ProjectName:  e.ProjectName,
		Author:       e.Author,
		SourceBranch: e.SourceBranch,
		TargetBranch: e.TargetBranch,
		UpdatedAt:    e.UpdatedAt,
		CommitsJSON:  marshalCommits(e.Commits),
		Score:        e.Score,
		URL:          e.URL,
		ReviewResult: e.ReviewResult,
		URLSlug:      e.URLSlug,
		LastCommitID: e.LastCommitID,
		Additions:    e.Additions,
		Deletions:    e.Deletions,
		WebhookData:  string(e.WebhookData),
	}
}

func fromMergeRequestRow(data mergeRequestRow) entity.MergeRequestReview {
	return entity.MergeRequestReview{
		ProjectName:  data.ProjectName,
		Author:       data.Author,
		SourceBranch: data.SourceBranch,
		TargetBranch: data.TargetBranch,
		UpdatedAt:    data.UpdatedAt,
		Commits:      unmarshalCommits(data.CommitsJSON),
		Score:        data.Score,
		URL:          data.URL,
		ReviewResult: data.ReviewResult,
		URLSlug:      data.URLSlug,
		LastCommitID: data.LastCommitID,
		Additions:    data.Additions,
		Deletions:    data.Deletions,
		WebhookData:  json.RawMessage(data.WebhookData),
	}
}

func toPushRow(e *entity.PushReview) pushRow {
	return pushRow{
		ProjectName:  e.ProjectName,
		Branch:       e.Branch,
		BeforeSHA:    e.BeforeSHA,
		AfterSHA:     e.AfterSHA,
		PusherName:   e.PusherName,
		PusherEmail:  e.PusherEmail,
		UpdatedAt:    e.UpdatedAt,
		CommitsJSON:  marshalCommits(e.Commits),
		Score:        e.Score,
		WebURL:       e.WebURL,
		ReviewResult: e.ReviewResult,
		URLSlug:      e.URLSlug,
		WebhookData:  string(e.WebhookData),
	}
}

func fromPushRow(data pushRow) entity.PushReview {
	return entity.PushReview{
		ProjectName:  data.ProjectName,
		Branch:       data.Branch,
		BeforeSHA:    data.BeforeSHA,
		AfterSHA:     data.AfterSHA,
		PusherName:   data.PusherName,
		PusherEmail:  data.PusherEmail,
		UpdatedAt:    data.UpdatedAt,
		Commits:      unmarshalCommits(data.CommitsJSON),
		Score:        data.Score,
		WebURL:       data.WebURL,
		ReviewResult: data.ReviewResult,
		URLSlug:      data.URLSlug,
		WebhookData:  json.RawMessage(data.WebhookData),
	}
}

func marshalCommits(commits []entity.Commit) string {
	if len(commits) == 0 {
		return "[]"
	}
	data, err := json.Marshal(commits)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func unmarshalCommits(value string) []entity.Commit {
	if value == "" {
		return nil
	}
	var commits []entity.Commit
	if err := json.Unmarshal([]byte(value), &commits); err != nil {
		return nil
	}
	return commits
}

func normalizeDriver(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	switch value {
	case "postgres", "postgresql", "pgx":
		return "postgres"
	case "mysql":
		return "mysql"
	case "sqlite", "sqlite3", "":
		return "sqlite"
	default:
		return ""
	}
}

func openGorm(driver, dsn string) (*gorm.DB, error) {
	switch driver {
	case "postgres":
		return gorm.Open(postgres.Open(dsn), &gorm.Config{})
	case "mysql":
		return gorm.Open(mysql.Open(dsn), &gorm.Config{})
	case "sqlite":
		return gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", driver)
	}
}
