// Package notify announces created documents to chat channels.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
)

// Sender delivers one message to one channel.
type Sender interface {
	Send(ctx context.Context, channelID, message string) error
}

// Summary is what an announcement says about a new document.
type Summary struct {
	DocumentID   string
	CreatedAt    time.Time
	CustomerName string
	WantDate     time.Time
	Creator      string
	Department   string
	Remark       string
	ArtifactURL  string
}

const (
	createdAtFormat = "02/01/2006 15:04:05"
	wantDateFormat  = "02/01/2006"
)

var textPolicy = bluemonday.StrictPolicy()

// FormatMessage renders the HTML announcement. User-entered values are
// stripped of markup so they cannot break the message formatting.
func FormatMessage(s Summary) string {
	wantDate := s.WantDate
	if wantDate.IsZero() {
		wantDate = s.CreatedAt
	}

	var b strings.Builder
	b.WriteString("<b>🔥 New Document Created!!</b>\n")
	fmt.Fprintf(&b, "<b>📄 หมายเลขเอกสาร:</b> %s\n", clean(s.DocumentID))
	fmt.Fprintf(&b, "<b>🕒 วันที่และเวลาที่สร้าง:</b> %s\n", s.CreatedAt.Format(createdAtFormat))
	fmt.Fprintf(&b, "<b>👤 ชื่อลูกค้า:</b> %s\n", clean(s.CustomerName))
	fmt.Fprintf(&b, "<b>📅 วันที่ต้องการ:</b> %s\n", wantDate.Format(wantDateFormat))
	fmt.Fprintf(&b, "<b>👥 ชื่อผู้แจ้งงาน:</b> %s\n", clean(s.Creator))
	fmt.Fprintf(&b, "<b>🏢 แผนก:</b> %s\n", clean(s.Department))
	fmt.Fprintf(&b, "<b>💬 Remark:</b> %s\n", clean(s.Remark))

	if s.ArtifactURL != "" {
		fmt.Fprintf(&b, "<b>📥 PDF เอกสาร:</b> %s", clean(s.ArtifactURL))
	} else {
		fmt.Fprintf(&b, "<b>📄 หมายเลขเอกสาร:</b> %s (PDF will be available soon)", clean(s.DocumentID))
	}
	return b.String()
}

func clean(value string) string {
	return textPolicy.Sanitize(value)
}
