package textnorm

import (
	"bytes"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeHeader(t *testing.T) {
	jis := encodeJIS(t, "こんにちは")
	stripped := bytes.ReplaceAll(jis, []byte{esc}, nil)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "plain", in: "Quote  request\tfor Q3", want: "Quote request for Q3"},
		{name: "utf-8 word", in: "=?UTF-8?B?" + base64.StdEncoding.EncodeToString([]byte("見積依頼")) + "?=", want: "見積依頼"},
		{name: "iso-2022-jp word", in: "=?ISO-2022-JP?B?" + base64.StdEncoding.EncodeToString(jis) + "?=", want: "こんにちは"},
		{name: "iso-2022-jp word without escapes", in: "=?iso-2022-jp?B?" + base64.StdEncoding.EncodeToString(stripped) + "?=", want: "こんにちは"},
		{name: "raw escaped value", in: string(jis), want: "こんにちは"},
		{name: "raw truncated value", in: string(stripped), want: "こんにちは"},
		{name: "raw utf-8", in: "Re: 打ち合わせ", want: "Re: 打ち合わせ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeHeader(tt.in))
		})
	}
}
