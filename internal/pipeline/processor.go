// Package pipeline 定义了图片归档的后台处理流程。
package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"scope-chat-go/internal/config"
	"scope-chat-go/pkg/imagedata"
	"scope-chat-go/pkg/log"
	"scope-chat-go/pkg/storage"
	"scope-chat-go/pkg/tasks"
)

// Processor 把 Kafka 中的图片归档任务落到对象存储。
type Processor struct {
	minioCfg config.MinIOConfig
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(minioCfg config.MinIOConfig) *Processor {
	return &Processor{minioCfg: minioCfg}
}

// Process 是归档任务的主函数：解析图片引用并写入归档桶。
func (p *Processor) Process(ctx context.Context, task tasks.ImageArchiveTask) error {
	log.Infof("[Processor] 开始归档图片, SessionID: %s", task.SessionID)

	// 1. 解析图片引用（data URI 解码或远程下载）
	resolved, err := imagedata.Resolve(ctx, task.ImageURI)
	if err != nil {
		return fmt.Errorf("解析图片引用失败: %w", err)
	}

	// 2. 写入归档桶，对象名带随机前缀避免覆盖
	filename := task.Filename
	if filename == "" {
		filename = resolved.Filename
	}
	filename = imagedata.SanitizeFilename(filename)
	objectName := fmt.Sprintf("archive/%s/%s_%s", task.SessionID, uuid.NewString(), filename)

	if err := storage.ArchiveObject(ctx, p.minioCfg.BucketName, objectName, resolved.ContentType, resolved.Data); err != nil {
		return fmt.Errorf("写入归档对象失败: %w", err)
	}

	log.Infof("[Processor] 图片归档完成, Object: %s, 大小: %d 字节", objectName, len(resolved.Data))
	return nil
}
