package sqlxrepos

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/trackit/core"
	"github.com/trezcool/trackit/core/notice"
)

const noticeColumns = "id, title, content, type, group_id, created_by, created_at"

type noticeRow struct {
	ID        string      `db:"id"`
	Title     string      `db:"title"`
	Content   string      `db:"content"`
	Type      string      `db:"type"`
	GroupID   null.String `db:"group_id"`
	CreatedBy string      `db:"created_by"`
	CreatedAt null.Time   `db:"created_at"`
}

func (r noticeRow) toNotice() notice.Notice {
	return notice.Notice{
		ID:        r.ID,
		Title:     r.Title,
		Content:   r.Content,
		Type:      notice.Type(r.Type),
		GroupID:   r.GroupID.Ptr(),
		CreatedBy: r.CreatedBy,
		CreatedAt: r.CreatedAt.Time.UTC(),
	}
}

type noticeRepository struct {
	db *DB
}

var _ notice.Repository = (*noticeRepository)(nil)

func NewNoticeRepository(db *DB) *noticeRepository {
	return &noticeRepository{db: db}
}

func (repo *noticeRepository) CreateNotice(ctx context.Context, n notice.Notice, exec ...core.DBExecutor) (notice.Notice, error) {
	row := noticeRow{
		ID:        n.ID,
		Title:     n.Title,
		Content:   n.Content,
		Type:      string(n.Type),
		GroupID:   null.StringFromPtr(n.GroupID),
		CreatedBy: n.CreatedBy,
		CreatedAt: null.TimeFrom(n.CreatedAt),
	}
	q := `INSERT INTO notices (` + noticeColumns + `)
		VALUES (:id, :title, :content, :type, :group_id, :created_by, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.db.ext(exec), q, row); err != nil {
		return notice.Notice{}, errors.Wrap(err, "inserting notice")
	}
	return n, nil
}

func (repo *noticeRepository) GetNotice(ctx context.Context, id string, exec ...core.DBExecutor) (notice.Notice, error) {
	if !isUUID(id) {
		return notice.Notice{}, notice.ErrNotFound
	}
	var row noticeRow
	q := "SELECT " + noticeColumns + " FROM notices WHERE id = $1"
	if err := sqlx.GetContext(ctx, repo.db.ext(exec), &row, q, id); err != nil {
		if isNoRows(err) {
			return notice.Notice{}, notice.ErrNotFound
		}
		return notice.Notice{}, errors.Wrap(err, "selecting notice")
	}
	return row.toNotice(), nil
}

// QueryNotices ORs the criteria of filter.
func (repo *noticeRepository) QueryNotices(ctx context.Context, filter notice.QueryFilter, exec ...core.DBExecutor) ([]notice.Notice, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.Global {
		conds = append(conds, "group_id IS NULL")
	}
	if len(filter.GroupIDs) > 0 {
		conds = append(conds, "group_id IN (?)")
		args = append(args, filter.GroupIDs)
	}
	if filter.CreatedBy != "" {
		conds = append(conds, "created_by = ?")
		args = append(args, filter.CreatedBy)
	}
	q := "SELECT " + noticeColumns + " FROM notices"
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " OR ")
	}
	q, args, err := repo.db.in(q+" ORDER BY created_at DESC", args...)
	if err != nil {
		return nil, errors.Wrap(err, "building notices query")
	}

	var rows []noticeRow
	if err = sqlx.SelectContext(ctx, repo.db.ext(exec), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting notices")
	}
	notices := make([]notice.Notice, 0, len(rows))
	for _, r := range rows {
		notices = append(notices, r.toNotice())
	}
	return notices, nil
}

func (repo *noticeRepository) DeleteNotice(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !isUUID(id) {
		return notice.ErrNotFound
	}
	res, err := repo.db.ext(exec).ExecContext(ctx, "DELETE FROM notices WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting notice")
	}
	if n, err := rowsAffected(res); err != nil {
		return err
	} else if n == 0 {
		return notice.ErrNotFound
	}
	return nil
}
