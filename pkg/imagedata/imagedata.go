// Package imagedata 负责把图片引用（data URI 或远程 URL）解析为二进制内容。
package imagedata

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
)

// Resolved 是一个图片引用解析后的结果。
type Resolved struct {
	Data        []byte
	ContentType string
	Filename    string
}

var (
	dataURIPattern   = regexp.MustCompile(`^data:(image/[a-zA-Z0-9.+-]+);base64,(.+)$`)
	unsafeFileChars  = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
	httpClientShared = &http.Client{}
)

// SanitizeFilename 去除文件名中 [a-zA-Z0-9._-] 之外的字符。
func SanitizeFilename(name string) string {
	cleaned := unsafeFileChars.ReplaceAllString(name, "")
	if cleaned == "" {
		return "attachment"
	}
	return cleaned
}

// extensionFor 根据 content-type 推断文件扩展名。
func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".bin"
	}
}

// Resolve 将一个图片引用解析为二进制数据、content-type 与净化后的文件名。
// data URI 直接 base64 解码；http(s) URL 发起 GET 下载。
func Resolve(ctx context.Context, uri string) (*Resolved, error) {
	if m := dataURIPattern.FindStringSubmatch(uri); m != nil {
		data, err := base64.StdEncoding.DecodeString(m[2])
		if err != nil {
			return nil, fmt.Errorf("failed to decode data uri: %w", err)
		}
		contentType := m[1]
		return &Resolved{
			Data:        data,
			ContentType: contentType,
			Filename:    "pasted-image" + extensionFor(contentType),
		}, nil
	}

	if strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://") {
		return fetchRemote(ctx, uri)
	}

	return nil, fmt.Errorf("unsupported image reference")
}

func fetchRemote(ctx context.Context, rawURL string) (*Resolved, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create image request: %w", err)
	}

	resp, err := httpClientShared.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image download returned non-200 status: %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image body: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	filename := "downloaded-image" + extensionFor(contentType)
	if u, perr := url.Parse(rawURL); perr == nil {
		if base := path.Base(u.Path); base != "" && base != "." && base != "/" {
			filename = SanitizeFilename(base)
		}
	}

	return &Resolved{Data: data, ContentType: contentType, Filename: filename}, nil
}
