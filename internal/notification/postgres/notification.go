package postgres

import (
	"context"
	"errors"

	"github.com/frahmantamala/leave-management/internal/core/database"
	notificationDatamodel "github.com/frahmantamala/leave-management/internal/core/datamodel/notification"
	"github.com/frahmantamala/leave-management/internal/notification"
	"gorm.io/gorm"
)

type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) notification.RepositoryAPI {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, n *notificationDatamodel.Notification) error {
	return database.Conn(ctx, r.db).Create(n).Error
}

func (r *NotificationRepository) ListByEmployee(ctx context.Context, employeeID int64, unreadOnly bool) ([]*notificationDatamodel.Notification, error) {
	var rows []*notificationDatamodel.Notification
	q := database.Conn(ctx, r.db).Where("employee_id = ?", employeeID)
	if unreadOnly {
		q = q.Where("read = ?", false)
	}
	err := q.Order("created_at DESC").Order("id DESC").Find(&rows).Error
	return rows, err
}

func (r *NotificationRepository) MarkRead(ctx context.Context, id, employeeID int64) (bool, error) {
	var row notificationDatamodel.Notification
	err := database.Conn(ctx, r.db).
		Select("id").
		Where("id = ? AND employee_id = ?", id, employeeID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	err = database.Conn(ctx, r.db).
		Model(&notificationDatamodel.Notification{}).
		Where("id = ?", id).
		Update("read", true).Error
	return err == nil, err
}
