package objstore

import (
	"fmt"
	"strings"
)

// DocumentSide 证件照的正反面
type DocumentSide string

const (
	SideFront DocumentSide = "front"
	SideBack  DocumentSide = "back"
)

// MaxDocumentSize 单张证件照上限 5 MiB
const MaxDocumentSize = 5 << 20

// allowedDocumentTypes 允许的证件照类型 → 扩展名
var allowedDocumentTypes = map[string]string{
	"image/jpeg":      "jpg",
	"image/png":       "png",
	"application/pdf": "pdf",
}

// DocumentExtension 返回允许类型对应的扩展名
func DocumentExtension(contentType string) (string, bool) {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	ext, ok := allowedDocumentTypes[ct]
	return ext, ok
}

// DocumentKey 证件照对象 key：id-documents/{profile_id}/{side}-{upload_id}.{ext}
func DocumentKey(profileID string, side DocumentSide, uploadID, ext string) string {
	return fmt.Sprintf("id-documents/%s/%s-%s.%s", profileID, side, uploadID, ext)
}
