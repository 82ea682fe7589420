package cleanup

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mo-amir99/course-market-go/pkg/types"
)

// VideoStore removes hosted lecture videos and course collections.
type VideoStore interface {
	DeleteVideo(ctx context.Context, videoID string) error
	DeleteCollection(ctx context.Context, collectionID string) error
}

// FileStore removes uploaded files such as course thumbnails.
type FileStore interface {
	DeleteFile(ctx context.Context, remotePath string) error
	ExtractRelativePath(cdnURL string) string
}

// Media groups the remote stores. Either field may be nil when the store is not configured.
type Media struct {
	Videos VideoStore
	Files  FileStore
}

type lectureRow struct {
	ID      uuid.UUID `gorm:"column:id"`
	VideoID *string   `gorm:"column:video_id"`
}

// DeleteLectureVideo deletes a lecture video from the video store.
func DeleteLectureVideo(ctx context.Context, videos VideoStore, logger *slog.Logger, lectureID uuid.UUID, videoID string) error {
	if videos == nil || videoID == "" {
		return nil
	}

	if err := videos.DeleteVideo(ctx, videoID); err != nil {
		logger.Error("failed to delete lecture video",
			"lectureId", lectureID,
			"videoId", videoID,
			"error", err)
		return err
	}

	logger.Info("deleted lecture video",
		"lectureId", lectureID,
		"videoId", videoID)
	return nil
}

// DeleteCourseCollection deletes a course's video collection along with the videos in it.
func DeleteCourseCollection(ctx context.Context, videos VideoStore, logger *slog.Logger, courseID uuid.UUID, collectionID string) error {
	if videos == nil || collectionID == "" {
		return nil
	}

	if err := videos.DeleteCollection(ctx, collectionID); err != nil {
		logger.Error("failed to delete course collection",
			"courseId", courseID,
			"collectionId", collectionID,
			"error", err)
		return err
	}

	logger.Info("deleted course collection",
		"courseId", courseID,
		"collectionId", collectionID)
	return nil
}

// DeleteStoredFile deletes an uploaded file referenced by its CDN URL.
func DeleteStoredFile(ctx context.Context, files FileStore, logger *slog.Logger, ownerID uuid.UUID, fileURL *string) error {
	if files == nil || fileURL == nil || *fileURL == "" {
		return nil
	}

	relativePath := files.ExtractRelativePath(*fileURL)
	if err := files.DeleteFile(ctx, relativePath); err != nil {
		logger.Error("failed to delete stored file",
			"ownerId", ownerID,
			"path", relativePath,
			"error", err)
		return err
	}

	logger.Info("deleted stored file",
		"ownerId", ownerID,
		"path", relativePath)
	return nil
}

// BulkDeleteVideos deletes multiple videos, logging failures.
func BulkDeleteVideos(ctx context.Context, videos VideoStore, logger *slog.Logger, videoIDs []string, contextMsg string) {
	if videos == nil || len(videoIDs) == 0 {
		return
	}

	successCount := 0
	for _, videoID := range videoIDs {
		if err := videos.DeleteVideo(ctx, videoID); err != nil {
			logger.Error("failed to delete video in bulk cleanup",
				"context", contextMsg,
				"videoId", videoID,
				"error", err)
		} else {
			successCount++
		}
	}
	if successCount > 0 {
		logger.Info("bulk deleted videos",
			"context", contextMsg,
			"count", successCount)
	}
}

func videoIDs(rows []lectureRow) []string {
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		if row.VideoID != nil && *row.VideoID != "" {
			ids = append(ids, *row.VideoID)
		}
	}
	return ids
}

// CleanupTopic removes a topic and its lectures, then releases the lecture videos.
func CleanupTopic(ctx context.Context, db *gorm.DB, media Media, logger *slog.Logger, topicID uuid.UUID) error {
	var lectures []lectureRow
	if err := db.WithContext(ctx).Table("lectures").
		Select("id, video_id").
		Where("topic_id = ?", topicID).
		Find(&lectures).Error; err != nil {
		return err
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Table("lectures").Where("topic_id = ?", topicID).Delete(nil).Error; err != nil {
			return err
		}
		result := tx.Table("topics").Where("id = ?", topicID).Delete(nil)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info("deleted topic", "topicId", topicID, "lectures", len(lectures))

	// Remote deletes run after commit on a context the request cannot cancel.
	BulkDeleteVideos(context.WithoutCancel(ctx), media.Videos, logger, videoIDs(lectures), "topic "+topicID.String())
	return nil
}

// CleanupCourse removes a course with every topic, lecture and unsettled enrollment,
// then releases its media.
func CleanupCourse(ctx context.Context, db *gorm.DB, media Media, logger *slog.Logger, courseID uuid.UUID) error {
	var course struct {
		CollectionID *string `gorm:"column:collection_id"`
		Thumbnail    *string `gorm:"column:thumbnail"`
	}
	if err := db.WithContext(ctx).Table("courses").
		Select("collection_id, thumbnail").
		Where("id = ?", courseID).
		Take(&course).Error; err != nil {
		return err
	}

	var lectures []lectureRow
	if err := db.WithContext(ctx).Table("lectures").
		Select("id, video_id").
		Where("course_id = ?", courseID).
		Find(&lectures).Error; err != nil {
		return err
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Table("lectures").Where("course_id = ?", courseID).Delete(nil).Error; err != nil {
			return err
		}
		if err := tx.Table("topics").Where("course_id = ?", courseID).Delete(nil).Error; err != nil {
			return err
		}
		if err := tx.Table("enrollments").
			Where("course_id = ? AND payment_status = ?", courseID, types.PaymentStatusPending).
			Delete(nil).Error; err != nil {
			return err
		}
		return tx.Table("courses").Where("id = ?", courseID).Delete(nil).Error
	})
	if err != nil {
		return err
	}

	logger.Info("deleted course", "courseId", courseID, "lectures", len(lectures))

	cleanupCtx := context.WithoutCancel(ctx)
	if course.CollectionID != nil && *course.CollectionID != "" {
		if err := DeleteCourseCollection(cleanupCtx, media.Videos, logger, courseID, *course.CollectionID); err != nil {
			BulkDeleteVideos(cleanupCtx, media.Videos, logger, videoIDs(lectures), "course "+courseID.String())
		}
	} else {
		BulkDeleteVideos(cleanupCtx, media.Videos, logger, videoIDs(lectures), "course "+courseID.String())
	}
	_ = DeleteStoredFile(cleanupCtx, media.Files, logger, courseID, course.Thumbnail)

	return nil
}
