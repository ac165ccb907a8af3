// Package massmail scores a normalized message for signs of bulk or
// automated sending. The verdict is advisory: a lead flagged as spam can
// be moved back by hand.
package massmail

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nhle/leadmail/internal/model"
	"github.com/nhle/leadmail/internal/textnorm"
)

// DefaultThreshold is the score at which a message counts as mass mail.
const DefaultThreshold = 2.0

const maxReasonSubject = 50

// senderPatterns match the lower-cased From value of bulk senders and
// delivery services.
var senderPatterns = []string{
	"noreply", "no-reply", "donotreply", "do-not-reply", "notification",
	"newsletter", "info@", "news@", "mailer-daemon", "bounce",
	"mailout.", "mailchimp.", "sendgrid.", "marketo.", "salesforce.",
	"campaign-", "info.", "amazonses.com", "mailer.", "mta.", "spark.",
	"mailgun.", "benchmarkemail", "edm.",
	"mail.rakuten.com", "cuenote.jp", "mpse.jp", "itmedia.co.jp",
	"bizmkt.jp", "hansoku.jp",
}

// bulkHeaders are set by list managers and marketing platforms.
var bulkHeaders = []string{
	"List-Unsubscribe", "List-Id", "List-Post", "List-Owner",
	"List-Subscribe", "List-Help", "Precedence", "X-Campaign",
	"X-Marketing", "X-Campaign-ID", "X-Newsletter", "Bulk-Sender",
	"X-Report-Abuse", "X-Auto-Response-Suppress", "X-MC-User",
	"Feedback-ID", "X-SES-Outgoing", "X-CSA-Complaints", "X-EDM-Key",
	"X-CNDM", "X-CN-List",
}

// bulkMailers are X-Mailer values of mass sending software.
var bulkMailers = []string{
	"mailchimp", "sendgrid", "marketo", "pardot", "hubspot", "cuenote",
	"benchmark", "blastengine", "mailmagazine", "phpmailer", "acmailer",
}

var unsubscribePhrases = []string{
	"unsubscribe", "opt-out", "opt out", "email preferences",
	"notification settings", "manage subscriptions",
	"you received this email because", "this is an automated message",
	"do not reply to this email",

	"配信停止", "メール配信を停止", "退会", "このメールの配信を停止",
	"※本メールは自動送信されています", "このメールに返信されても回答できません",
	"このアドレスは送信専用です", "メールの変更・停止", "メールマガジン",
	"ニュースレター",

	"取消订阅", "退订", "停止订阅", "系统自动发送", "请勿直接回复",
	"取消訂閱", "退訂", "停止訂閱", "系統自動發送", "請勿直接回覆",
}

var subjectPatterns = []string{
	"newsletter", "bulletin", "digest", "campaign", "special offer",
	"weekly", "monthly", "breaking news", "[pr]", "(pr)", "【pr】",
	"【広告】", "メルマガ", "メールマガジン", "ニュースレター",
	"キャンペーン", "セール", "お知らせ", "配信", "速報",
	"电子报", "快讯", "周报", "优惠", "促销", "電子報", "快訊", "週報", "優惠",
}

var (
	saleWord    = regexp.MustCompile(`\bsale\b`)
	percentOff  = regexp.MustCompile(`\d+\s*%\s*off`)
	trackingURL = []string{
		"utm_", "/click", "/track", "/open", "redirect", "list-manage.com",
		"/unsubscribe", "/wf/", "/ls/",
	}
)

// Verdict is the outcome of Detect.
type Verdict struct {
	IsMassMail bool
	Score      float64

	// Reason joins the triggered signals with " | ". Empty unless
	// IsMassMail.
	Reason string

	// Signals lists every triggered signal, mass mail or not.
	Signals []string
}

// Detector holds the tunables of the heuristic.
type Detector struct {
	Threshold float64

	// Location is used for the off-hours signal.
	Location *time.Location
}

// NewDetector returns a Detector with the default threshold, judging
// off-hours in Japan Standard Time.
func NewDetector() *Detector {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		loc = time.FixedZone("JST", 9*60*60)
	}
	return &Detector{Threshold: DefaultThreshold, Location: loc}
}

// Detect scores msg.
func (d *Detector) Detect(msg *model.NormalizedEmail) Verdict {
	var (
		score   float64
		signals []string
	)
	hit := func(weight float64, signal string) {
		score += weight
		signals = append(signals, signal)
	}

	from := strings.ToLower(msg.Header("from"))
	if from == "" {
		from = strings.ToLower(msg.SenderAddress)
	}
	if p, ok := containsAny(from, senderPatterns); ok {
		hit(1, fmt.Sprintf("Mass mail sender pattern: %s", p))
	}

	if h, ok := bulkHeader(msg); ok {
		hit(1, fmt.Sprintf("Bulk mail header found: %s", h))
	}

	switch p := strings.ToLower(strings.TrimSpace(msg.Header("precedence"))); p {
	case "bulk", "list", "junk":
		hit(1, fmt.Sprintf("Bulk mail precedence: %s", p))
	}

	if found := phrasesIn(strings.ToLower(msg.BodyText), unsubscribePhrases, 3); len(found) > 0 {
		hit(1, fmt.Sprintf("Unsubscribe phrases found: %s", strings.Join(found, ", ")))
	}

	if msg.Recipients > 2 {
		hit(1, fmt.Sprintf("Multiple recipients: %d", msg.Recipients))
	}

	if msg.HTML != "" {
		hit(0.5, "HTML formatted email")
		if s, ok := linkHeavy(msg.HTML); ok {
			hit(1, s)
		}
	}

	if subjectLooksBulk(msg.Subject) {
		hit(1, fmt.Sprintf("Newsletter-like subject: %s", truncateRunes(msg.Subject, maxReasonSubject)))
	}

	if !msg.ReceivedAt.IsZero() && d.Location != nil {
		if h := msg.ReceivedAt.In(d.Location).Hour(); h < 6 {
			hit(0.5, fmt.Sprintf("Sent during off-hours: %d:00", h))
		}
	}

	v := Verdict{
		Score:      score,
		Signals:    signals,
		IsMassMail: score >= d.threshold(),
	}
	if v.IsMassMail {
		v.Reason = strings.Join(signals, " | ")
	}
	return v
}

func (d *Detector) threshold() float64 {
	if d.Threshold > 0 {
		return d.Threshold
	}
	return DefaultThreshold
}

func bulkHeader(msg *model.NormalizedEmail) (string, bool) {
	for _, h := range bulkHeaders {
		if msg.HasHeader(h) {
			return h, true
		}
	}
	if v := strings.ToLower(strings.TrimSpace(msg.Header("auto-submitted"))); v != "" && v != "no" {
		return "Auto-Submitted", true
	}
	if _, ok := containsAny(strings.ToLower(msg.Header("x-mailer")), bulkMailers); ok {
		return "X-Mailer", true
	}
	return "", false
}

// linkHeavy reports an html body that is mostly markup: visible text
// under 30% of the html bytes, or three or more tracking links.
func linkHeavy(html string) (string, bool) {
	tracking := 0
	for _, l := range textnorm.Links(html) {
		if _, ok := containsAny(strings.ToLower(l), trackingURL); ok {
			tracking++
		}
	}
	if tracking >= 3 {
		return fmt.Sprintf("Tracking links: %d", tracking), true
	}

	text := len(textnorm.HTMLToText(html))
	if text*10 < len(html)*3 {
		return fmt.Sprintf("Low text ratio: %d of %d html bytes", text, len(html)), true
	}
	return "", false
}

func subjectLooksBulk(subject string) bool {
	s := strings.ToLower(subject)
	if _, ok := containsAny(s, subjectPatterns); ok {
		return true
	}
	return saleWord.MatchString(s) || percentOff.MatchString(s)
}

func containsAny(s string, patterns []string) (string, bool) {
	if s == "" {
		return "", false
	}
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return p, true
		}
	}
	return "", false
}

func phrasesIn(s string, phrases []string, limit int) []string {
	var found []string
	for _, p := range phrases {
		if strings.Contains(s, p) {
			found = append(found, p)
			if len(found) == limit {
				break
			}
		}
	}
	return found
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
