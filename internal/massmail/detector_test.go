package massmail

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/leadmail/internal/model"
)

var jst = time.FixedZone("JST", 9*60*60)

func daytime() time.Time {
	return time.Date(2025, 1, 6, 10, 0, 0, 0, jst)
}

func TestDetect_GenuineMail(t *testing.T) {
	d := NewDetector()
	v := d.Detect(&model.NormalizedEmail{
		SenderAddress:     "taro@acme.co.jp",
		SenderDisplayName: "山田 太郎",
		Subject:           "見積もりのご依頼",
		BodyText:          "お世話になっております。来週打ち合わせは可能でしょうか。",
		ReceivedAt:        daytime(),
		Recipients:        1,
		Headers:           map[string]string{"from": "山田 太郎 <taro@acme.co.jp>"},
	})

	assert.False(t, v.IsMassMail)
	assert.Zero(t, v.Score)
	assert.Empty(t, v.Reason)
	assert.Empty(t, v.Signals)
}

func TestDetect_Newsletter(t *testing.T) {
	d := NewDetector()
	v := d.Detect(&model.NormalizedEmail{
		SenderAddress: "news@shop.example.com",
		Subject:       "今週のおすすめ商品",
		BodyText:      "いつもご利用ありがとうございます。\n配信停止はこちら",
		ReceivedAt:    daytime(),
		Recipients:    1,
		Headers: map[string]string{
			"from":             "Shop <news@shop.example.com>",
			"list-unsubscribe": "<https://shop.example.com/unsub>",
			"precedence":       "bulk",
		},
	})

	assert.True(t, v.IsMassMail)
	assert.Equal(t, 4.0, v.Score)
	assert.Len(t, v.Signals, 4)
	assert.Contains(t, v.Reason, "Bulk mail header found: List-Unsubscribe")
	assert.Contains(t, v.Reason, "Bulk mail precedence: bulk")
	assert.Equal(t, strings.Join(v.Signals, " | "), v.Reason)
}

func TestDetect_BelowThreshold(t *testing.T) {
	d := NewDetector()
	v := d.Detect(&model.NormalizedEmail{
		SenderAddress: "hanako@globex.com",
		Subject:       "Re: contract",
		BodyText:      "Signed copy attached.",
		HTML:          "<div>Signed copy attached.</div>",
		ReceivedAt:    time.Date(2025, 1, 6, 2, 30, 0, 0, jst),
		Recipients:    1,
	})

	assert.False(t, v.IsMassMail)
	assert.Equal(t, 1.0, v.Score)
	assert.Len(t, v.Signals, 2)
	assert.Empty(t, v.Reason)
}

func TestDetect_TrackingLinks(t *testing.T) {
	html := `<p>Our picks</p>` +
		`<a href="https://t.example.com/a?utm_source=mail">A</a>` +
		`<a href="https://t.example.com/click/b">B</a>` +
		`<a href="https://t.example.com/track/c">C</a>`

	d := NewDetector()
	v := d.Detect(&model.NormalizedEmail{
		SenderAddress: "team@startup.example",
		Subject:       "Weekly digest",
		BodyText:      "Our picks",
		HTML:          html,
		ReceivedAt:    daytime(),
		Recipients:    1,
	})

	assert.True(t, v.IsMassMail)
	assert.Equal(t, 2.5, v.Score)
	assert.Contains(t, v.Reason, "Tracking links: 3")
	assert.Contains(t, v.Reason, "Newsletter-like subject: Weekly digest")
}

func TestDetect_AtThreshold(t *testing.T) {
	d := NewDetector()
	v := d.Detect(&model.NormalizedEmail{
		SenderAddress: "noreply@service.example",
		Subject:       "Your account",
		BodyText:      "Hello",
		ReceivedAt:    daytime(),
		Recipients:    3,
	})

	assert.True(t, v.IsMassMail)
	assert.Equal(t, 2.0, v.Score)
}

func TestDetect_AutoSubmitted(t *testing.T) {
	d := NewDetector()
	base := model.NormalizedEmail{
		SenderAddress: "ops@globex.com",
		Subject:       "status",
		ReceivedAt:    daytime(),
	}

	no := base
	no.Headers = map[string]string{"auto-submitted": "no"}
	assert.Empty(t, d.Detect(&no).Signals)

	yes := base
	yes.Headers = map[string]string{"auto-submitted": "auto-generated"}
	assert.Equal(t, []string{"Bulk mail header found: Auto-Submitted"}, d.Detect(&yes).Signals)
}

func TestSubjectLooksBulk(t *testing.T) {
	tests := []struct {
		subject string
		want    bool
	}{
		{subject: "[PR] 新商品のご案内", want: true},
		{subject: "Summer SALE starts now", want: true},
		{subject: "Get 20% off today", want: true},
		{subject: "Wholesale pricing question", want: false},
		{subject: "お打ち合わせの件", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.subject, func(t *testing.T) {
			assert.Equal(t, tt.want, subjectLooksBulk(tt.subject))
		})
	}
}

func TestLinkHeavy(t *testing.T) {
	layout := `<table width="600" cellpadding="0" cellspacing="0" style="border:0;background:#ffffff">` +
		`<tr><td style="padding:24px;font-family:Arial,sans-serif;font-size:14px;color:#333333">` +
		`<img src="https://cdn.example.com/banner.png" width="600" height="200" alt="">` +
		`</td></tr><tr><td style="padding:0 24px 24px 24px;text-align:center">` +
		`<a href="https://shop.example.com/" style="color:#0066cc;text-decoration:none">Shop now</a>` +
		`</td></tr></table>`

	letter := `<div>Thank you for the meeting yesterday. As discussed, ` +
		`we would like to order fifty units for the Osaka office and ` +
		`need the quote by Friday. <a href="https://acme.example/quote">Details</a></div>`

	tests := []struct {
		name   string
		html   string
		want   bool
		reason string
	}{
		{name: "markup heavy layout", html: layout, want: true, reason: "Low text ratio"},
		{name: "text rich letter", html: letter, want: false},
		{
			name: "tracking links",
			html: `<p>Picks for you this week from our editors and partners</p>` +
				`<a href="https://t.example.com/open?id=1">a</a>` +
				`<a href="https://t.example.com/click?id=2">b</a>` +
				`<a href="https://x.example.com/p?utm_campaign=3">c</a>`,
			want:   true,
			reason: "Tracking links: 3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason, ok := linkHeavy(tt.html)
			assert.Equal(t, tt.want, ok)
			if tt.want {
				assert.Contains(t, reason, tt.reason)
			}
		})
	}
}
