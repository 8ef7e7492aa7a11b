package upload

import (
	"encoding/hex"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var safeExt = regexp.MustCompile(`^\.[a-z0-9]{1,10}$`)

// Allocator derives storage names of the form {unixMillis}-{16 hex}{.ext}.
// Names are collision resistant, not collision free: Storage.Put refuses to
// overwrite and the caller allocates again.
type Allocator struct {
	now    func() time.Time
	random func() string
}

func NewAllocator() *Allocator {
	return &Allocator{now: time.Now, random: randomHex}
}

func (a *Allocator) Allocate(originalName, mimeType string) string {
	return strconv.FormatInt(a.now().UnixMilli(), 10) + "-" + a.random() + extension(originalName, mimeType)
}

// extension keeps the original's lowercase extension when it is safe and
// falls back to one derived from the mime type.
func extension(originalName, mimeType string) string {
	base := path.Base(strings.ReplaceAll(originalName, "\\", "/"))
	ext := strings.ToLower(path.Ext(base))
	if safeExt.MatchString(ext) {
		return ext
	}
	return mimeToExt(mimeType)
}

func mimeToExt(mime string) string {
	switch mime {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	default:
		return ".bin"
	}
}

func randomHex() string {
	id := uuid.New()
	return hex.EncodeToString(id[:8])
}
