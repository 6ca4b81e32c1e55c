package service

import (
	"fmt"
	"strings"

	"scope-chat-go/internal/model"
)

// AttachmentSet 维护一次提交中的图片附件集合：
// 按 URI 去重，超出上限的添加被丢弃并记录用户可见的提示。
type AttachmentSet struct {
	images  []ImageAttachment
	seen    map[string]bool
	warning string
}

// NewAttachmentSet 以已有附件初始化集合（超出上限的部分直接忽略）。
func NewAttachmentSet(existing []ImageAttachment) *AttachmentSet {
	s := &AttachmentSet{seen: make(map[string]bool)}
	for _, img := range existing {
		if len(s.images) >= maxImagesPerMessage {
			break
		}
		if !s.seen[img.URI] {
			s.seen[img.URI] = true
			s.images = append(s.images, img)
		}
	}
	return s
}

// Add 校验并加入一张图片。
// 校验失败返回 ErrInvalidRequest；重复或超出上限只丢弃并设置提示，不报错。
func (s *AttachmentSet) Add(img ImageAttachment) error {
	if err := validateImage(&img); err != nil {
		return err
	}

	if s.seen[img.URI] {
		if len(s.images) >= maxImagesPerMessage {
			s.noteCapacity()
		}
		return nil
	}
	if len(s.images) >= maxImagesPerMessage {
		s.noteCapacity()
		return nil
	}

	s.seen[img.URI] = true
	s.images = append(s.images, img)
	return nil
}

// Images 返回当前集合中的附件，保持加入顺序。
func (s *AttachmentSet) Images() []ImageAttachment {
	return s.images
}

// Warning 返回截断提示，没有发生截断时为空串。
func (s *AttachmentSet) Warning() string {
	return s.warning
}

func (s *AttachmentSet) noteCapacity() {
	remaining := maxImagesPerMessage - len(s.images)
	if remaining < 0 {
		remaining = 0
	}
	s.warning = fmt.Sprintf("Maximum %d images per message — you can add %d more.", maxImagesPerMessage, remaining)
}

// validateImage 校验单张图片的引用、类型与大小。
// MIME 与大小缺失时尽量从 data URI 推断。
func validateImage(img *ImageAttachment) error {
	if !model.ValidImageRef(img.URI) {
		return fmt.Errorf("%w: image reference must be a data:image/ URI or an absolute http(s) URL", ErrInvalidRequest)
	}

	mime := img.MimeType
	if mime == "" {
		mime = mimeFromDataURI(img.URI)
	}
	// 远程 URL 无法在提交时得知类型，留给下载阶段处理
	if mime != "" && !allowedImageMimes[mime] {
		return fmt.Errorf("%w: image type %s is not supported (png, jpeg, webp, gif)", ErrInvalidRequest, mime)
	}

	size := img.SizeBytes
	if size == 0 {
		size = estimateDataURISize(img.URI)
	}
	if size > maxImageBytes {
		return fmt.Errorf("%w: image exceeds the %dMB limit", ErrInvalidRequest, maxImageBytes>>20)
	}
	return nil
}

// mimeFromDataURI 从 data URI 中提取 MIME 类型，非 data URI 返回空串。
func mimeFromDataURI(uri string) string {
	if !strings.HasPrefix(uri, "data:") {
		return ""
	}
	rest := strings.TrimPrefix(uri, "data:")
	if idx := strings.IndexAny(rest, ";,"); idx > 0 {
		return rest[:idx]
	}
	return ""
}

// estimateDataURISize 估算 data URI 负载解码后的字节数。
func estimateDataURISize(uri string) int64 {
	idx := strings.Index(uri, ";base64,")
	if idx < 0 {
		return 0
	}
	payload := len(uri) - idx - len(";base64,")
	return int64(payload) * 3 / 4
}
