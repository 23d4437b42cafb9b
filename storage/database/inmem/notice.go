package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/trackit/core"
	"github.com/trezcool/trackit/core/notice"
)

type noticeRepository struct {
	db *DB
}

var _ notice.Repository = (*noticeRepository)(nil)

func NewNoticeRepository(db *DB) *noticeRepository {
	return &noticeRepository{db: db}
}

func (repo *noticeRepository) CreateNotice(_ context.Context, n notice.Notice, exec ...core.DBExecutor) (notice.Notice, error) {
	defer repo.db.lockWrite(exec)()
	repo.db.tables.notices = append(repo.db.tables.notices, n)
	return n, nil
}

func (repo *noticeRepository) GetNotice(_ context.Context, id string, _ ...core.DBExecutor) (notice.Notice, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, n := range repo.db.tables.notices {
		if n.ID == id {
			return n, nil
		}
	}
	return notice.Notice{}, notice.ErrNotFound
}

func (repo *noticeRepository) QueryNotices(_ context.Context, filter notice.QueryFilter, _ ...core.DBExecutor) ([]notice.Notice, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	// latest inserted first, so that equal timestamps keep newest-first order
	notices := make([]notice.Notice, 0)
	for i := len(repo.db.tables.notices) - 1; i >= 0; i-- {
		if n := repo.db.tables.notices[i]; filter.Match(n) {
			notices = append(notices, n)
		}
	}
	sort.SliceStable(notices, func(i, j int) bool { return notices[i].CreatedAt.After(notices[j].CreatedAt) })
	return notices, nil
}

func (repo *noticeRepository) DeleteNotice(_ context.Context, id string, exec ...core.DBExecutor) error {
	defer repo.db.lockWrite(exec)()

	for i, n := range repo.db.tables.notices {
		if n.ID == id {
			repo.db.tables.notices = append(repo.db.tables.notices[:i:i], repo.db.tables.notices[i+1:]...)
			return nil
		}
	}
	return notice.ErrNotFound
}
