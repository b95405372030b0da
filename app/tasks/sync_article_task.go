package tasks

import (
	"context"
	"strconv"
	"time"

	"github.com/lysyi3m/news-comb/app/indexsync"
)

type ArticleSyncer interface {
	SyncArticle(ctx context.Context, id int64, op indexsync.Operation) error
	BulkSync(ctx context.Context, ids []int64) (int, error)
}

var _ ArticleSyncer = (*indexsync.Syncer)(nil)

// SyncArticleTask carries only the article ID; the syncer reads current state.
type SyncArticleTask struct {
	Task
	ArticleID int64
	Operation indexsync.Operation
	syncer    ArticleSyncer
}

func NewSyncArticleTask(articleID int64, op indexsync.Operation, syncer ArticleSyncer, retryDelay time.Duration) *SyncArticleTask {
	return &SyncArticleTask{
		Task:      NewTask(TaskTypeSyncArticle, strconv.FormatInt(articleID, 10), retryDelay),
		ArticleID: articleID,
		Operation: op,
		syncer:    syncer,
	}
}

func (t *SyncArticleTask) Execute(ctx context.Context) error {
	return t.syncer.SyncArticle(ctx, t.ArticleID, t.Operation)
}

type BulkSyncTask struct {
	Task
	ArticleIDs []int64
	syncer     ArticleSyncer
}

func NewBulkSyncTask(ids []int64, syncer ArticleSyncer, retryDelay time.Duration) *BulkSyncTask {
	subject := "empty"
	if len(ids) > 0 {
		subject = strconv.FormatInt(ids[0], 10) + "-" + strconv.FormatInt(ids[len(ids)-1], 10)
	}
	return &BulkSyncTask{
		Task:       NewTask(TaskTypeBulkSync, subject, retryDelay),
		ArticleIDs: ids,
		syncer:     syncer,
	}
}

func (t *BulkSyncTask) Execute(ctx context.Context) error {
	_, err := t.syncer.BulkSync(ctx, t.ArticleIDs)
	return err
}
