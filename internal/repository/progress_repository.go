package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"quizzify_backend/internal/model"
	"quizzify_backend/internal/progress"
	"quizzify_backend/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ProgressRepository 经验写入与账户快照缓存。
// 数据库是唯一可信来源，Redis 中的快照仅用于展示，任何写入或登录后都会作废。
type ProgressRepository struct {
	DB    *gorm.DB
	Redis *redis.Client
	TTL   time.Duration
}

func NewProgressRepository(db *gorm.DB, rdb *redis.Client) *ProgressRepository {
	return &ProgressRepository{
		DB:    db,
		Redis: rdb,
		TTL:   10 * time.Minute,
	}
}

func (r *ProgressRepository) WithTx(tx *gorm.DB) *ProgressRepository {
	return &ProgressRepository{DB: tx, Redis: r.Redis, TTL: r.TTL}
}

func progressVersionKey(userID uint) string {
	return fmt.Sprintf("quizzify:progress:%d:ver", userID)
}

// progressCacheKey 快照键带上版本号，Invalidate 递增版本后旧快照不再被读取
func progressCacheKey(userID uint, version int64) string {
	return fmt.Sprintf("quizzify:progress:%d:v%d", userID, version)
}

// AddXP 原子地累加经验，再依据新的总经验写回等级和奖励次数。
// 应在事务中调用，返回写入后的进度。
func (r *ProgressRepository) AddXP(ctx context.Context, userID uint, award int) (progress.Progress, error) {
	if award < 0 {
		return progress.Progress{}, progress.ErrNegativeXPAward
	}

	db := r.DB.WithContext(ctx)
	res := db.Model(&model.User{}).
		Where("id = ?", userID).
		Update("xp", gorm.Expr("xp + ?", award))
	if res.Error != nil {
		return progress.Progress{}, res.Error
	}
	if res.RowsAffected == 0 {
		return progress.Progress{}, gorm.ErrRecordNotFound
	}

	var xp int
	if err := db.Model(&model.User{}).Where("id = ?", userID).Select("xp").Scan(&xp).Error; err != nil {
		return progress.Progress{}, err
	}

	next := progress.FromXP(xp)
	err := db.Model(&model.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"level":         next.Level,
			"bonus_quizzes": next.BonusQuizzes,
		}).Error
	if err != nil {
		return progress.Progress{}, err
	}
	return next, nil
}

// FindSnapshot 读取账户快照，优先 Redis，未命中时回源数据库并写入缓存。
// 版本号在回源前读取：若期间有写入并调用了 Invalidate，本次写入的是已作废版本的键。
func (r *ProgressRepository) FindSnapshot(ctx context.Context, userID uint) (*model.User, error) {
	version, cached := r.snapshotVersion(ctx, userID)
	if cached {
		raw, err := r.Redis.Get(ctx, progressCacheKey(userID, version)).Bytes()
		if err == nil {
			var user model.User
			if json.Unmarshal(raw, &user) == nil {
				return &user, nil
			}
		}
	}

	var user model.User
	if err := r.DB.WithContext(ctx).First(&user, userID).Error; err != nil {
		return nil, err
	}

	if cached {
		r.storeSnapshot(ctx, version, &user)
	}
	return &user, nil
}

// snapshotVersion 返回当前版本；Redis 不可用时 ok 为 false，直接读库
func (r *ProgressRepository) snapshotVersion(ctx context.Context, userID uint) (version int64, ok bool) {
	if r.Redis == nil {
		return 0, false
	}
	version, err := r.Redis.Get(ctx, progressVersionKey(userID)).Int64()
	switch {
	case err == nil:
		return version, true
	case errors.Is(err, redis.Nil):
		return 0, true
	}
	logger.Log.Warn("progress cache unavailable", zap.Uint("user_id", userID), zap.Error(err))
	return 0, false
}

func (r *ProgressRepository) storeSnapshot(ctx context.Context, version int64, user *model.User) {
	raw, err := json.Marshal(user)
	if err != nil {
		return
	}
	r.Redis.Set(ctx, progressCacheKey(user.ID, version), raw, r.TTL)
}

// Invalidate 递增版本号使现有快照失效；Redis 不可用时忽略
func (r *ProgressRepository) Invalidate(ctx context.Context, userID uint) {
	if r.Redis == nil {
		return
	}
	if err := r.Redis.Incr(ctx, progressVersionKey(userID)).Err(); err != nil {
		logger.Log.Warn("failed to invalidate progress cache", zap.Uint("user_id", userID), zap.Error(err))
	}
}
